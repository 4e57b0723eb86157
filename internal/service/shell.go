package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/TWRT/smarttask/internal/client"
	"github.com/TWRT/smarttask/internal/models"
)

var (
	ErrSessionExpired = errors.New("session expired, please sign in again")
	ErrTaskNotFound   = errors.New("task not found")
	ErrInvalidFilter  = errors.New("invalid filter")
	ErrInvalidTask    = errors.New("invalid task")
)

// Filter is either FilterAll or a task status.
type Filter string

const FilterAll Filter = "all"

// ParseFilter accepts "all" or anything models.ParseStatus accepts.
func ParseFilter(v string) (Filter, error) {
	if strings.EqualFold(strings.TrimSpace(v), string(FilterAll)) || strings.TrimSpace(v) == "" {
		return FilterAll, nil
	}
	status, err := models.ParseStatus(v)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidFilter, v)
	}
	return Filter(status), nil
}

// FilterTasks returns the tasks whose status equals f, preserving order.
func FilterTasks(tasks []models.Task, f Filter) []models.Task {
	out := make([]models.Task, 0, len(tasks))
	for _, t := range tasks {
		if f == FilterAll || models.Status(f) == t.Status {
			out = append(out, t.Clone())
		}
	}
	return out
}

func ComputeStats(tasks []models.Task) models.Stats {
	stats := models.Stats{Total: len(tasks), ByStatus: make(map[models.Status]int, len(models.Statuses))}
	for _, s := range models.Statuses {
		stats.ByStatus[s] = 0
	}
	for _, t := range tasks {
		stats.ByStatus[t.Status]++
	}
	return stats
}

// Shell owns the in-memory task list of the signed-in user. Remote writes go
// first; local state is updated from the write's result and never re-read.
type Shell struct {
	auth    client.SessionProvider
	store   client.TaskStore
	advisor *Advisor
	logger  *zap.Logger
	now     func() time.Time
	newID   func() string

	// ctx is the Start context, used for reloads triggered by session events.
	ctx         context.Context
	unsubscribe func()
	closeOnce   sync.Once

	mu      sync.RWMutex
	session *models.Session
	tasks   []models.Task
	filter  Filter
}

func NewShell(auth client.SessionProvider, store client.TaskStore, advisor *Advisor, logger *zap.Logger) *Shell {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Shell{
		auth:    auth,
		store:   store,
		advisor: advisor,
		logger:  logger,
		now:     time.Now,
		newID:   uuid.NewString,
		ctx:     context.Background(),
		filter:  FilterAll,
		tasks:   []models.Task{},
	}
}

// Start restores the current session, subscribes to session changes and loads
// the task list when signed in. Callers must defer Close.
func (s *Shell) Start(ctx context.Context) error {
	s.ctx = context.WithoutCancel(ctx)

	current, err := s.auth.CurrentSession(ctx)
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	s.unsubscribe = s.auth.OnSessionChange(s.handleSessionEvent)

	if current == nil {
		s.clear()
		return nil
	}
	s.setSession(current)
	return s.Reload(ctx)
}

// Close detaches the shell from the session provider. Safe to call more than once.
func (s *Shell) Close() {
	s.closeOnce.Do(func() {
		if s.unsubscribe != nil {
			s.unsubscribe()
		}
	})
}

func (s *Shell) handleSessionEvent(event models.SessionEvent) {
	switch {
	case event.Type == models.SessionSignedOut || event.Session == nil:
		s.logger.Info("session ended, clearing tasks")
		s.clear()
	case event.Type == models.SessionSignedIn || event.Type == models.SessionInitial:
		s.logger.Info("session acquired", zap.String("user_id", event.Session.User.ID))
		s.setSession(event.Session)
		if err := s.Reload(s.ctx); err != nil {
			s.logger.Error("load tasks after sign-in", zap.Error(err))
		}
	}
}

// Reload replaces local state wholesale with the remote task list.
func (s *Shell) Reload(ctx context.Context) error {
	if s.Session() == nil {
		return ErrSessionExpired
	}
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		s.logger.Error("load tasks", zap.Error(err))
		return fmt.Errorf("load tasks: %w", err)
	}
	s.mu.Lock()
	s.tasks = tasks
	s.mu.Unlock()
	s.logger.Debug("tasks loaded", zap.Int("count", len(tasks)))
	return nil
}

func (s *Shell) SignIn(ctx context.Context, email, password string) error {
	if _, err := s.auth.SignInWithPassword(ctx, email, password); err != nil {
		return fmt.Errorf("sign in: %w", err)
	}
	return nil
}

// SignUp reports whether a session was issued right away.
func (s *Shell) SignUp(ctx context.Context, email, password string) (bool, error) {
	sess, err := s.auth.SignUp(ctx, email, password)
	if err != nil {
		return false, fmt.Errorf("sign up: %w", err)
	}
	return sess != nil, nil
}

func (s *Shell) SignOut(ctx context.Context) error {
	if err := s.auth.SignOut(ctx); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}

// Save creates a task when editingID is empty, otherwise merges patch into the
// existing task. It returns the record that was persisted.
func (s *Shell) Save(ctx context.Context, editingID string, patch models.TaskPatch) (models.Task, error) {
	sess, err := s.activeSession()
	if err != nil {
		return models.Task{}, err
	}

	var task models.Task
	if editingID != "" {
		existing, ok := s.find(editingID)
		if !ok {
			return models.Task{}, fmt.Errorf("edit %s: %w", editingID, ErrTaskNotFound)
		}
		task = existing
		patch.Apply(&task)
	} else {
		now := s.now()
		task = models.Task{
			ID:        s.newID(),
			Owner:     sess.User.ID,
			Status:    models.StatusNotStarted,
			Priority:  models.PriorityMedium,
			StartTime: models.FormatISO(now),
			EndTime:   models.FormatISO(now),
			CreatedAt: now.UnixMilli(),
			SubTasks:  []string{},
		}
		patch.Apply(&task)
	}
	if err := validateTask(task); err != nil {
		return models.Task{}, err
	}

	if err := s.store.UpsertTask(ctx, task); err != nil {
		s.logger.Error("save task", zap.String("task_id", task.ID), zap.Error(err))
		return models.Task{}, fmt.Errorf("save task: %w", err)
	}

	s.mu.Lock()
	if editingID != "" {
		s.replaceLocked(task)
	} else {
		s.tasks = append([]models.Task{task.Clone()}, s.tasks...)
	}
	s.mu.Unlock()

	return task.Clone(), nil
}

// Delete removes the task remotely, then locally.
func (s *Shell) Delete(ctx context.Context, id string) error {
	if _, ok := s.find(id); !ok {
		return fmt.Errorf("delete %s: %w", id, ErrTaskNotFound)
	}
	if err := s.store.DeleteTask(ctx, id); err != nil {
		s.logger.Error("delete task", zap.String("task_id", id), zap.Error(err))
		return fmt.Errorf("delete task: %w", err)
	}

	s.mu.Lock()
	kept := s.tasks[:0:0]
	for _, t := range s.tasks {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	s.tasks = kept
	s.mu.Unlock()
	return nil
}

// ToggleDone flips done to not started and anything else to done.
func (s *Shell) ToggleDone(ctx context.Context, id string) (models.Task, error) {
	if _, err := s.activeSession(); err != nil {
		return models.Task{}, err
	}
	task, ok := s.find(id)
	if !ok {
		return models.Task{}, fmt.Errorf("toggle %s: %w", id, ErrTaskNotFound)
	}

	if task.Status == models.StatusDone {
		task.Status = models.StatusNotStarted
	} else {
		task.Status = models.StatusDone
	}

	if err := s.store.UpsertTask(ctx, task); err != nil {
		s.logger.Error("toggle task", zap.String("task_id", id), zap.Error(err))
		return models.Task{}, fmt.Errorf("update status: %w", err)
	}

	s.mu.Lock()
	s.replaceLocked(task)
	s.mu.Unlock()
	return task.Clone(), nil
}

// Sync pushes every local task to the store in one bulk upsert.
func (s *Shell) Sync(ctx context.Context) error {
	if _, err := s.activeSession(); err != nil {
		return err
	}
	tasks := s.Tasks()
	if err := s.store.UpsertTasks(ctx, tasks); err != nil {
		s.logger.Error("sync tasks", zap.Int("count", len(tasks)), zap.Error(err))
		return fmt.Errorf("sync tasks: %w", err)
	}
	return nil
}

// Summary asks the advisor for a short workload assessment of all tasks.
func (s *Shell) Summary(ctx context.Context) string {
	return s.advisor.GetWorkloadSummary(ctx, s.Tasks())
}

func (s *Shell) Tasks() []models.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return FilterTasks(s.tasks, FilterAll)
}

func (s *Shell) Filtered() []models.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return FilterTasks(s.tasks, s.filter)
}

func (s *Shell) Filter() Filter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter
}

func (s *Shell) SetFilter(f Filter) error {
	if f != FilterAll && !models.Status(f).Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidFilter, f)
	}
	s.mu.Lock()
	s.filter = f
	s.mu.Unlock()
	return nil
}

func (s *Shell) Stats() models.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ComputeStats(s.tasks)
}

// Session returns a copy of the current session, or nil when signed out.
func (s *Shell) Session() *models.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return nil
	}
	sess := *s.session
	return &sess
}

func (s *Shell) activeSession() (*models.Session, error) {
	sess := s.Session()
	if sess == nil || sess.Expired(s.now()) {
		return nil, ErrSessionExpired
	}
	return sess, nil
}

func (s *Shell) find(id string) (models.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tasks {
		if t.ID == id {
			return t.Clone(), true
		}
	}
	return models.Task{}, false
}

func (s *Shell) replaceLocked(task models.Task) {
	for i := range s.tasks {
		if s.tasks[i].ID == task.ID {
			s.tasks[i] = task.Clone()
			return
		}
	}
}

func (s *Shell) setSession(sess *models.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sess
	s.session = &cp
}

func (s *Shell) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = nil
	s.tasks = []models.Task{}
}

func validateTask(t models.Task) error {
	switch {
	case strings.TrimSpace(t.Title) == "":
		return fmt.Errorf("%w: %w", ErrInvalidTask, ErrTitleRequired)
	case !t.Status.Valid():
		return fmt.Errorf("%w: status %q", ErrInvalidTask, t.Status)
	case !t.Priority.Valid():
		return fmt.Errorf("%w: priority %q", ErrInvalidTask, t.Priority)
	}
	return nil
}
