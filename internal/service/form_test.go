package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TWRT/smarttask/internal/models"
)

var formNow = time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)

func TestNewTaskForm_Defaults(t *testing.T) {
	f := NewTaskForm(FormDeps{}, nil, formNow)
	v := f.Values()

	assert.Empty(t, f.EditingID())
	assert.Equal(t, models.StatusNotStarted, v.Status)
	assert.Equal(t, models.PriorityMedium, v.Priority)
	assert.Equal(t, "2026-05-01T09:30", v.StartTime)
	assert.Equal(t, "2026-05-01T10:30", v.EndTime)
	assert.Equal(t, []string{}, v.SubTasks)
}

func TestNewTaskForm_CopiesExisting(t *testing.T) {
	existing := &models.Task{
		ID:          "t1",
		Title:       "Write report",
		Description: "draft",
		Status:      models.StatusBlocked,
		Priority:    models.PriorityUrgent,
		StartTime:   "2026-04-30T08:00:00.000Z",
		EndTime:     "2026-04-30T09:15:00.000Z",
		SubTasks:    []string{"outline"},
		ImageURL:    "https://files.example.com/u/a.png",
	}
	f := NewTaskForm(FormDeps{}, existing, formNow)
	v := f.Values()

	assert.Equal(t, "t1", f.EditingID())
	assert.Equal(t, "Write report", v.Title)
	assert.Equal(t, models.StatusBlocked, v.Status)
	assert.Equal(t, "2026-04-30T08:00", v.StartTime)
	assert.Equal(t, "2026-04-30T09:15", v.EndTime)
	assert.Equal(t, []string{"outline"}, v.SubTasks)

	existing.SubTasks[0] = "changed"
	assert.Equal(t, "outline", f.Values().SubTasks[0])
}

func TestTaskForm_Submit(t *testing.T) {
	f := NewTaskForm(FormDeps{}, nil, formNow)

	_, err := f.Submit()
	assert.ErrorIs(t, err, ErrTitleRequired)

	f.Update(func(v *FormValues) {
		v.Title = "  Write report "
		v.Priority = models.PriorityHigh
	})
	patch, err := f.Submit()
	require.NoError(t, err)

	task := models.Task{ID: "t1", Owner: "u1"}
	patch.Apply(&task)
	assert.Equal(t, "Write report", task.Title)
	assert.Equal(t, models.PriorityHigh, task.Priority)
	assert.Equal(t, models.StatusNotStarted, task.Status)
	assert.Equal(t, "2026-05-01T09:30:00.000Z", task.StartTime)
	assert.Equal(t, "2026-05-01T10:30:00.000Z", task.EndTime)
	assert.Equal(t, []string{}, task.SubTasks)
	assert.Equal(t, "t1", task.ID)
	assert.Equal(t, "u1", task.Owner)

	f.Update(func(v *FormValues) { v.EndTime = "tomorrow" })
	_, err = f.Submit()
	assert.ErrorIs(t, err, ErrInvalidTime)
}

func TestTaskForm_SubmitBlockedDuringUpload(t *testing.T) {
	f := NewTaskForm(FormDeps{}, nil, formNow)
	f.Update(func(v *FormValues) { v.Title = "x" })
	f.uploading = true

	_, err := f.Submit()
	assert.ErrorIs(t, err, ErrUploadInFlight)
}

func TestTaskForm_RequestAdviceApplies(t *testing.T) {
	model := &fakeModel{reply: `{"suggestedPriority":"Urgent","suggestedSubTasks":["Gather data","Write draft"],"tips":"Block two hours."}`}
	f := NewTaskForm(FormDeps{Advisor: NewAdvisor(model, 0, nil, nil)}, nil, formNow)
	f.Update(func(v *FormValues) {
		v.Title = "Write report"
		v.Description = "Quarterly numbers"
		v.SubTasks = []string{"old step"}
	})

	require.True(t, f.RequestAdvice(context.Background()))
	v := f.Values()
	assert.Equal(t, models.PriorityUrgent, v.Priority)
	assert.Equal(t, []string{"Gather data", "Write draft"}, v.SubTasks)
	assert.Equal(t, "Quarterly numbers\n\n--- AI Tips ---\nBlock two hours.", v.Description)
	assert.Equal(t, "Write report", v.Title)
}

func TestTaskForm_RequestAdviceWithEmptyDescription(t *testing.T) {
	model := &fakeModel{reply: `{"suggestedPriority":"Low","suggestedSubTasks":[],"tips":"Relax."}`}
	f := NewTaskForm(FormDeps{Advisor: NewAdvisor(model, 0, nil, nil)}, nil, formNow)
	f.Update(func(v *FormValues) { v.Title = "Water plants" })

	require.True(t, f.RequestAdvice(context.Background()))
	assert.Equal(t, "--- AI Tips ---\nRelax.", f.Values().Description)
}

func TestTaskForm_AdviceFailureLeavesFieldsUntouched(t *testing.T) {
	model := &fakeModel{err: errors.New("dial tcp: connection refused")}
	f := NewTaskForm(FormDeps{Advisor: NewAdvisor(model, 0, nil, nil)}, nil, formNow)
	f.Update(func(v *FormValues) {
		v.Title = "Write report"
		v.Description = "as typed"
		v.Priority = models.PriorityLow
		v.SubTasks = []string{"mine"}
	})
	before := f.Values()

	assert.False(t, f.RequestAdvice(context.Background()))
	assert.Equal(t, before, f.Values())
	advice, upload := f.Pending()
	assert.False(t, advice)
	assert.False(t, upload)
}

func TestTaskForm_RequestAdviceNoOps(t *testing.T) {
	model := &fakeModel{reply: "{}"}
	f := NewTaskForm(FormDeps{Advisor: NewAdvisor(model, 0, nil, nil)}, nil, formNow)

	f.Update(func(v *FormValues) { v.Title = "   " })
	assert.False(t, f.RequestAdvice(context.Background()))

	f.Update(func(v *FormValues) { v.Title = "x" })
	f.advicePending = true
	assert.False(t, f.RequestAdvice(context.Background()))
	assert.Equal(t, 0, model.calls())

	disabled := NewTaskForm(FormDeps{}, nil, formNow)
	disabled.Update(func(v *FormValues) { v.Title = "x" })
	assert.False(t, disabled.RequestAdvice(context.Background()))
}

func TestTaskForm_UploadAttachment(t *testing.T) {
	backend := newFakeBackend()
	_, err := backend.SignInWithPassword(context.Background(), "a@example.com", "x")
	require.NoError(t, err)

	f := NewTaskForm(FormDeps{Sessions: backend, Attachments: backend}, nil, formNow)
	f.newID = func() string { return "rand" }

	png := []byte("\x89PNG\r\n\x1a\n0000")
	url, err := f.UploadAttachment(context.Background(), "Photo.PNG", png, "")
	require.NoError(t, err)
	assert.Equal(t, "https://files.example.com/user-a@example.com/rand.png", url)
	assert.Equal(t, url, f.Values().ImageURL)
	assert.Equal(t, png, backend.objects["user-a@example.com/rand.png"])
}

func TestTaskForm_UploadAttachmentErrors(t *testing.T) {
	backend := newFakeBackend()
	f := NewTaskForm(FormDeps{Sessions: backend, Attachments: backend}, nil, formNow)
	f.Update(func(v *FormValues) { v.ImageURL = "https://files.example.com/previous.png" })
	ctx := context.Background()

	_, err := f.UploadAttachment(ctx, "a.png", nil, "image/png")
	assert.ErrorIs(t, err, ErrEmptyUpload)

	_, err = f.UploadAttachment(ctx, "notes.txt", []byte("hello"), "text/plain")
	assert.ErrorIs(t, err, ErrNotAnImage)

	_, err = f.UploadAttachment(ctx, "a.png", []byte("x"), "image/png")
	assert.ErrorIs(t, err, ErrSessionExpired)

	_, err = backend.SignInWithPassword(ctx, "a@example.com", "x")
	require.NoError(t, err)
	backend.uploadErr = errRemote
	_, err = f.UploadAttachment(ctx, "a.png", []byte("x"), "image/png")
	assert.ErrorIs(t, err, errRemote)

	assert.Equal(t, "https://files.example.com/previous.png", f.Values().ImageURL)
	_, upload := f.Pending()
	assert.False(t, upload)
}
