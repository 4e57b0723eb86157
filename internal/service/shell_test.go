package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TWRT/smarttask/internal/models"
)

func newStartedShell(t *testing.T, backend *fakeBackend) *Shell {
	t.Helper()
	shell := NewShell(backend, backend, NewAdvisor(nil, 0, nil, nil), nil)
	n := 0
	shell.newID = func() string {
		n++
		return fmt.Sprintf("task-%d", n)
	}
	shell.now = func() time.Time { return time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC) }
	require.NoError(t, shell.Start(context.Background()))
	t.Cleanup(shell.Close)
	return shell
}

func signIn(t *testing.T, shell *Shell) {
	t.Helper()
	require.NoError(t, shell.SignIn(context.Background(), "a@example.com", "secret1"))
}

func ptr[T any](v T) *T { return &v }

func TestShell_SessionDrivesTaskList(t *testing.T) {
	backend := newFakeBackend()
	backend.seed(
		models.Task{ID: "old", Owner: "user-a@example.com", Title: "Old", Status: models.StatusDone, Priority: models.PriorityLow},
		models.Task{ID: "new", Owner: "user-a@example.com", Title: "New", Status: models.StatusNotStarted, Priority: models.PriorityLow},
		models.Task{ID: "theirs", Owner: "user-b@example.com", Title: "Not mine", Status: models.StatusNotStarted, Priority: models.PriorityLow},
	)
	shell := newStartedShell(t, backend)
	assert.Nil(t, shell.Session())
	assert.Empty(t, shell.Tasks())

	signIn(t, shell)
	require.NotNil(t, shell.Session())
	tasks := shell.Tasks()
	require.Len(t, tasks, 2)
	assert.Equal(t, "new", tasks[0].ID)
	assert.Equal(t, "old", tasks[1].ID)

	require.NoError(t, shell.SignOut(context.Background()))
	assert.Nil(t, shell.Session())
	assert.Empty(t, shell.Tasks())
}

func TestShell_StartWithExistingSessionLoads(t *testing.T) {
	backend := newFakeBackend()
	_, err := backend.SignInWithPassword(context.Background(), "a@example.com", "x")
	require.NoError(t, err)
	backend.seed(models.Task{ID: "t1", Owner: "user-a@example.com", Title: "x", Status: models.StatusDone, Priority: models.PriorityLow})

	shell := newStartedShell(t, backend)
	assert.Len(t, shell.Tasks(), 1)
	assert.Equal(t, 1, backend.lists)
}

func TestShell_CloseUnsubscribes(t *testing.T) {
	backend := newFakeBackend()
	shell := newStartedShell(t, backend)
	shell.Close()
	shell.Close()
	assert.Equal(t, 0, backend.events.Len())

	signIn(t, shell)
	assert.Nil(t, shell.Session(), "closed shell must ignore session events")
}

func TestShell_SaveCreate(t *testing.T) {
	backend := newFakeBackend()
	shell := newStartedShell(t, backend)
	signIn(t, shell)
	ctx := context.Background()

	first, err := shell.Save(ctx, "", models.TaskPatch{Title: ptr("Write report")})
	require.NoError(t, err)
	second, err := shell.Save(ctx, "", models.TaskPatch{Title: ptr("Review"), Priority: ptr(models.PriorityHigh)})
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, "user-a@example.com", first.Owner)
	assert.Equal(t, models.StatusNotStarted, first.Status)
	assert.Equal(t, models.PriorityMedium, first.Priority)
	assert.Equal(t, "2026-05-01T09:30:00.000Z", first.StartTime)
	assert.Equal(t, first.StartTime, first.EndTime)
	assert.Equal(t, time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC).UnixMilli(), first.CreatedAt)
	assert.Equal(t, []string{}, first.SubTasks)
	assert.Equal(t, models.PriorityHigh, second.Priority)

	tasks := shell.Tasks()
	require.Len(t, tasks, 2)
	assert.Equal(t, second.ID, tasks[0].ID, "new tasks are prepended")

	stored, ok := backend.stored(first.ID)
	require.True(t, ok)
	assert.Equal(t, first, stored)
}

func TestShell_SaveEditPreservesIdentity(t *testing.T) {
	backend := newFakeBackend()
	shell := newStartedShell(t, backend)
	signIn(t, shell)
	ctx := context.Background()

	created, err := shell.Save(ctx, "", models.TaskPatch{Title: ptr("Write report"), Description: ptr("draft")})
	require.NoError(t, err)

	edited, err := shell.Save(ctx, created.ID, models.TaskPatch{Status: ptr(models.StatusInProgress)})
	require.NoError(t, err)

	assert.Equal(t, created.ID, edited.ID)
	assert.Equal(t, created.Owner, edited.Owner)
	assert.Equal(t, created.CreatedAt, edited.CreatedAt)
	assert.Equal(t, "Write report", edited.Title)
	assert.Equal(t, "draft", edited.Description)
	assert.Equal(t, models.StatusInProgress, edited.Status)
	assert.Equal(t, []models.Task{edited}, shell.Tasks())
}

func TestShell_SaveErrors(t *testing.T) {
	backend := newFakeBackend()
	shell := newStartedShell(t, backend)
	ctx := context.Background()

	_, err := shell.Save(ctx, "", models.TaskPatch{Title: ptr("x")})
	assert.ErrorIs(t, err, ErrSessionExpired)

	signIn(t, shell)
	_, err = shell.Save(ctx, "missing", models.TaskPatch{Title: ptr("x")})
	assert.ErrorIs(t, err, ErrTaskNotFound)

	_, err = shell.Save(ctx, "", models.TaskPatch{})
	assert.ErrorIs(t, err, ErrTitleRequired)

	backend.upsertErr = errRemote
	_, err = shell.Save(ctx, "", models.TaskPatch{Title: ptr("x")})
	assert.ErrorIs(t, err, errRemote)
	assert.Empty(t, shell.Tasks(), "failed write must leave local state unchanged")
}

func TestShell_SaveRejectsExpiredSession(t *testing.T) {
	backend := newFakeBackend()
	shell := newStartedShell(t, backend)
	signIn(t, shell)

	shell.mu.Lock()
	shell.session.ExpiresAt = shell.now().Add(-time.Second)
	shell.mu.Unlock()

	_, err := shell.Save(context.Background(), "", models.TaskPatch{Title: ptr("x")})
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.Equal(t, 0, backend.upserts)
}

func TestShell_Delete(t *testing.T) {
	backend := newFakeBackend()
	shell := newStartedShell(t, backend)
	signIn(t, shell)
	ctx := context.Background()

	var ids []string
	for _, title := range []string{"a", "b", "c"} {
		task, err := shell.Save(ctx, "", models.TaskPatch{Title: ptr(title)})
		require.NoError(t, err)
		ids = append(ids, task.ID)
	}

	require.NoError(t, shell.Delete(ctx, ids[1]))
	tasks := shell.Tasks()
	require.Len(t, tasks, 2)
	assert.Equal(t, ids[2], tasks[0].ID)
	assert.Equal(t, ids[0], tasks[1].ID)
	_, ok := backend.stored(ids[1])
	assert.False(t, ok)

	assert.ErrorIs(t, shell.Delete(ctx, "missing"), ErrTaskNotFound)
	assert.Equal(t, 1, backend.deletes, "unknown ids never reach the store")

	backend.deleteErr = errRemote
	assert.ErrorIs(t, shell.Delete(ctx, ids[0]), errRemote)
	assert.Len(t, shell.Tasks(), 2)
}

func TestShell_ToggleDone(t *testing.T) {
	tests := []struct {
		from     models.Status
		afterOne models.Status
		afterTwo models.Status
	}{
		{models.StatusNotStarted, models.StatusDone, models.StatusNotStarted},
		{models.StatusDone, models.StatusNotStarted, models.StatusDone},
		{models.StatusInProgress, models.StatusDone, models.StatusNotStarted},
		{models.StatusBlocked, models.StatusDone, models.StatusNotStarted},
	}
	for _, tt := range tests {
		t.Run(string(tt.from), func(t *testing.T) {
			backend := newFakeBackend()
			shell := newStartedShell(t, backend)
			signIn(t, shell)
			ctx := context.Background()

			task, err := shell.Save(ctx, "", models.TaskPatch{Title: ptr("Write report"), Status: ptr(tt.from)})
			require.NoError(t, err)

			toggled, err := shell.ToggleDone(ctx, task.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.afterOne, toggled.Status)

			toggled, err = shell.ToggleDone(ctx, task.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.afterTwo, toggled.Status)

			stored, _ := backend.stored(task.ID)
			assert.Equal(t, tt.afterTwo, stored.Status)
			assert.Equal(t, tt.afterTwo, shell.Tasks()[0].Status)
		})
	}
}

func TestShell_ToggleDoneErrors(t *testing.T) {
	backend := newFakeBackend()
	shell := newStartedShell(t, backend)
	ctx := context.Background()

	_, err := shell.ToggleDone(ctx, "t1")
	assert.ErrorIs(t, err, ErrSessionExpired)

	signIn(t, shell)
	_, err = shell.ToggleDone(ctx, "t1")
	assert.ErrorIs(t, err, ErrTaskNotFound)

	task, err := shell.Save(ctx, "", models.TaskPatch{Title: ptr("x")})
	require.NoError(t, err)
	backend.upsertErr = errRemote
	_, err = shell.ToggleDone(ctx, task.ID)
	assert.ErrorIs(t, err, errRemote)
	assert.Equal(t, models.StatusNotStarted, shell.Tasks()[0].Status)
}

func TestFilterTasks(t *testing.T) {
	tasks := []models.Task{
		{ID: "1", Status: models.StatusDone},
		{ID: "2", Status: models.StatusBlocked},
		{ID: "3", Status: models.StatusDone},
		{ID: "4", Status: models.StatusNotStarted},
	}

	assert.Equal(t, tasks, FilterTasks(tasks, FilterAll))

	done := FilterTasks(tasks, Filter(models.StatusDone))
	require.Len(t, done, 2)
	assert.Equal(t, "1", done[0].ID)
	assert.Equal(t, "3", done[1].ID)

	assert.Empty(t, FilterTasks(tasks, Filter(models.StatusInProgress)))
}

func TestParseFilter(t *testing.T) {
	f, err := ParseFilter("")
	require.NoError(t, err)
	assert.Equal(t, FilterAll, f)

	f, err = ParseFilter("In progress")
	require.NoError(t, err)
	assert.Equal(t, Filter(models.StatusInProgress), f)

	_, err = ParseFilter("later")
	assert.ErrorIs(t, err, ErrInvalidFilter)
}

func TestShell_FilteredAndStats(t *testing.T) {
	backend := newFakeBackend()
	shell := newStartedShell(t, backend)
	signIn(t, shell)
	ctx := context.Background()

	for _, st := range []models.Status{models.StatusDone, models.StatusNotStarted, models.StatusNotStarted, models.StatusBlocked} {
		_, err := shell.Save(ctx, "", models.TaskPatch{Title: ptr("x"), Status: ptr(st)})
		require.NoError(t, err)
	}

	require.NoError(t, shell.SetFilter(Filter(models.StatusNotStarted)))
	assert.Len(t, shell.Filtered(), 2)
	assert.ErrorIs(t, shell.SetFilter("someday"), ErrInvalidFilter)
	assert.Equal(t, Filter(models.StatusNotStarted), shell.Filter())

	stats := shell.Stats()
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 1, stats.Done())
	assert.Equal(t, 2, stats.Todo())
	assert.Equal(t, 0, stats.ByStatus[models.StatusInProgress])
}

func TestShell_SyncPushesAllTasks(t *testing.T) {
	backend := newFakeBackend()
	shell := newStartedShell(t, backend)
	signIn(t, shell)
	ctx := context.Background()

	_, err := shell.Save(ctx, "", models.TaskPatch{Title: ptr("x")})
	require.NoError(t, err)
	require.NoError(t, shell.Sync(ctx))
	assert.Equal(t, 2, backend.upserts)
}

func TestShell_SummaryOfEmptyListSkipsModel(t *testing.T) {
	backend := newFakeBackend()
	model := &fakeModel{reply: "unused"}
	shell := NewShell(backend, backend, NewAdvisor(model, 0, nil, nil), nil)
	require.NoError(t, shell.Start(context.Background()))
	defer shell.Close()

	assert.Equal(t, EmptyWorkloadSummary, shell.Summary(context.Background()))
	assert.Equal(t, 0, model.calls())
}

func TestShell_ScenarioCreateAndToggleTwice(t *testing.T) {
	backend := newFakeBackend()
	shell := newStartedShell(t, backend)
	signIn(t, shell)
	ctx := context.Background()

	task, err := shell.Save(ctx, "", models.TaskPatch{
		Title:    ptr("Write report"),
		Status:   ptr(models.StatusNotStarted),
		Priority: ptr(models.PriorityMedium),
	})
	require.NoError(t, err)

	task, err = shell.ToggleDone(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDone, task.Status)

	task, err = shell.ToggleDone(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusNotStarted, task.Status)
}
