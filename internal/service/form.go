package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/TWRT/smarttask/internal/client"
	"github.com/TWRT/smarttask/internal/models"
)

var (
	ErrTitleRequired  = errors.New("title is required")
	ErrUploadInFlight = errors.New("an upload is still in progress")
	ErrNotAnImage     = errors.New("attachment is not an image")
	ErrEmptyUpload    = errors.New("attachment is empty")
	ErrInvalidTime    = errors.New("invalid time")
)

const tipsSeparator = "--- AI Tips ---\n"

// FormDeps are the collaborators a task form may call. Any of them may be nil;
// the corresponding action then reports itself unavailable.
type FormDeps struct {
	Advisor     *Advisor
	Sessions    client.SessionProvider
	Attachments client.AttachmentStore
	Logger      *zap.Logger
}

// FormValues are the editable fields. Times use models.InputTimeLayout in the
// form's local zone.
type FormValues struct {
	Title       string
	Description string
	Status      models.Status
	Priority    models.Priority
	StartTime   string
	EndTime     string
	SubTasks    []string
	ImageURL    string
}

type TaskForm struct {
	deps      FormDeps
	logger    *zap.Logger
	editingID string
	loc       *time.Location
	newID     func() string

	mu            sync.Mutex
	values        FormValues
	advicePending bool
	uploading     bool
}

// NewTaskForm copies existing field for field, or starts from defaults with a
// one hour window beginning at now.
func NewTaskForm(deps FormDeps, existing *models.Task, now time.Time) *TaskForm {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &TaskForm{
		deps:   deps,
		logger: logger,
		loc:    now.Location(),
		newID:  uuid.NewString,
	}

	if existing != nil {
		t := existing.Clone()
		f.editingID = t.ID
		f.values = FormValues{
			Title:       t.Title,
			Description: t.Description,
			Status:      t.Status,
			Priority:    t.Priority,
			StartTime:   toInputTime(t.StartTime, f.loc),
			EndTime:     toInputTime(t.EndTime, f.loc),
			SubTasks:    t.SubTasks,
			ImageURL:    t.ImageURL,
		}
		if f.values.SubTasks == nil {
			f.values.SubTasks = []string{}
		}
		return f
	}

	f.values = FormValues{
		Status:    models.StatusNotStarted,
		Priority:  models.PriorityMedium,
		StartTime: now.Format(models.InputTimeLayout),
		EndTime:   now.Add(time.Hour).Format(models.InputTimeLayout),
		SubTasks:  []string{},
	}
	return f
}

// EditingID is empty for a new task.
func (f *TaskForm) EditingID() string {
	return f.editingID
}

func (f *TaskForm) Values() FormValues {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.copyValuesLocked()
}

// Update lets the caller edit fields in place.
func (f *TaskForm) Update(fn func(v *FormValues)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(&f.values)
}

// Pending reports whether an advice request or an upload is in flight.
func (f *TaskForm) Pending() (advice, upload bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.advicePending, f.uploading
}

// RequestAdvice asks the advisor about the current title and description. On
// success it overwrites priority and subtasks and appends the tips to the
// description. It reports whether advice was applied; failures leave every
// field as it was.
func (f *TaskForm) RequestAdvice(ctx context.Context) bool {
	f.mu.Lock()
	title, description := strings.TrimSpace(f.values.Title), f.values.Description
	if title == "" || f.advicePending {
		f.mu.Unlock()
		return false
	}
	f.advicePending = true
	f.mu.Unlock()

	advice := f.deps.Advisor.GetTaskAdvice(ctx, title, description)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.advicePending = false
	if advice == nil {
		return false
	}

	f.values.Priority = advice.Priority
	f.values.SubTasks = append([]string{}, advice.SubTasks...)
	if advice.Tips != "" {
		if f.values.Description != "" {
			f.values.Description += "\n\n"
		}
		f.values.Description += tipsSeparator + advice.Tips
	}
	return true
}

// UploadAttachment stores data under the signed-in user's namespace with a
// random name and records its public URL. The previous attachment is kept on failure.
func (f *TaskForm) UploadAttachment(ctx context.Context, filename string, data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyUpload
	}
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("%w: %s", ErrNotAnImage, contentType)
	}
	if f.deps.Sessions == nil || f.deps.Attachments == nil {
		return "", errors.New("attachments are not configured")
	}

	sess, err := f.deps.Sessions.CurrentSession(ctx)
	if err != nil {
		return "", fmt.Errorf("read session: %w", err)
	}
	if sess == nil {
		return "", ErrSessionExpired
	}

	f.mu.Lock()
	if f.uploading {
		f.mu.Unlock()
		return "", ErrUploadInFlight
	}
	f.uploading = true
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.uploading = false
		f.mu.Unlock()
	}()

	path := sess.User.ID + "/" + f.newID() + strings.ToLower(filepath.Ext(filename))
	if err := f.deps.Attachments.Upload(ctx, path, data, contentType); err != nil {
		f.logger.Error("upload attachment", zap.String("path", path), zap.Error(err))
		return "", fmt.Errorf("upload image: %w", err)
	}

	url := f.deps.Attachments.PublicURL(path)
	f.mu.Lock()
	f.values.ImageURL = url
	f.mu.Unlock()
	return url, nil
}

// Submit assembles a patch carrying every form field.
func (f *TaskForm) Submit() (models.TaskPatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if strings.TrimSpace(f.values.Title) == "" {
		return models.TaskPatch{}, ErrTitleRequired
	}
	if f.uploading {
		return models.TaskPatch{}, ErrUploadInFlight
	}

	start, err := fromInputTime(f.values.StartTime, f.loc)
	if err != nil {
		return models.TaskPatch{}, fmt.Errorf("start: %w", err)
	}
	end, err := fromInputTime(f.values.EndTime, f.loc)
	if err != nil {
		return models.TaskPatch{}, fmt.Errorf("end: %w", err)
	}

	v := f.copyValuesLocked()
	title := strings.TrimSpace(v.Title)
	return models.TaskPatch{
		Title:       &title,
		Description: &v.Description,
		Status:      &v.Status,
		Priority:    &v.Priority,
		StartTime:   &start,
		EndTime:     &end,
		SubTasks:    &v.SubTasks,
		ImageURL:    &v.ImageURL,
	}, nil
}

func (f *TaskForm) copyValuesLocked() FormValues {
	v := f.values
	v.SubTasks = append([]string{}, f.values.SubTasks...)
	return v
}

// toInputTime renders a stored ISO timestamp for editing. Unparseable values
// are cut to minute precision as they are.
func toInputTime(iso string, loc *time.Location) string {
	if iso == "" {
		return ""
	}
	if ts, err := time.Parse(time.RFC3339Nano, iso); err == nil {
		return ts.In(loc).Format(models.InputTimeLayout)
	}
	if len(iso) > len(models.InputTimeLayout) {
		return iso[:len(models.InputTimeLayout)]
	}
	return iso
}

// fromInputTime converts form input to a stored ISO timestamp. Empty stays empty.
func fromInputTime(v string, loc *time.Location) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", nil
	}
	if ts, err := time.ParseInLocation(models.InputTimeLayout, v, loc); err == nil {
		return models.FormatISO(ts), nil
	}
	if ts, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return models.FormatISO(ts), nil
	}
	return "", fmt.Errorf("%w %q, want %s", ErrInvalidTime, v, models.InputTimeLayout)
}
