package service

import (
	"context"
	"errors"
	"sync"

	"github.com/TWRT/smarttask/internal/client"
	"github.com/TWRT/smarttask/internal/models"
	"github.com/TWRT/smarttask/internal/session"
)

// fakeBackend is an in-memory client.Backend. Set the *Err fields to make the
// next calls fail.
type fakeBackend struct {
	mu       sync.Mutex
	events   *session.Broadcaster
	session  *models.Session
	tasks    map[string]models.Task
	order    []string
	objects  map[string][]byte
	upserts  int
	deletes  int
	lists    int
	signUpOK bool

	upsertErr error
	deleteErr error
	listErr   error
	uploadErr error
}

var _ client.Backend = (*fakeBackend)(nil)

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		events:  session.NewBroadcaster(),
		tasks:   make(map[string]models.Task),
		objects: make(map[string][]byte),
	}
}

func (f *fakeBackend) CurrentSession(ctx context.Context) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.session == nil {
		return nil, nil
	}
	s := *f.session
	return &s, nil
}

func (f *fakeBackend) OnSessionChange(fn func(models.SessionEvent)) func() {
	return f.events.Subscribe(fn)
}

func (f *fakeBackend) SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error) {
	if password == "wrong" {
		return nil, client.ErrUnauthorized
	}
	s := &models.Session{AccessToken: "tok-" + email, User: models.User{ID: "user-" + email, Email: email}}
	f.mu.Lock()
	f.session = s
	f.mu.Unlock()
	f.events.Publish(models.SessionEvent{Type: models.SessionSignedIn, Session: s})
	return s, nil
}

func (f *fakeBackend) SignUp(ctx context.Context, email, password string) (*models.Session, error) {
	if !f.signUpOK {
		return nil, nil
	}
	return f.SignInWithPassword(ctx, email, password)
}

func (f *fakeBackend) SignOut(ctx context.Context) error {
	f.mu.Lock()
	f.session = nil
	f.mu.Unlock()
	f.events.Publish(models.SessionEvent{Type: models.SessionSignedOut})
	return nil
}

func (f *fakeBackend) ListTasks(ctx context.Context) ([]models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	if f.listErr != nil {
		return nil, f.listErr
	}
	if f.session == nil {
		return nil, client.ErrNoSession
	}
	out := []models.Task{}
	for i := len(f.order) - 1; i >= 0; i-- {
		t := f.tasks[f.order[i]]
		if t.Owner == f.session.User.ID {
			out = append(out, t.Clone())
		}
	}
	return out, nil
}

func (f *fakeBackend) UpsertTask(ctx context.Context, task models.Task) error {
	return f.UpsertTasks(ctx, []models.Task{task})
}

func (f *fakeBackend) UpsertTasks(ctx context.Context, tasks []models.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	if f.upsertErr != nil {
		return f.upsertErr
	}
	for _, t := range tasks {
		if _, ok := f.tasks[t.ID]; !ok {
			f.order = append(f.order, t.ID)
		}
		f.tasks[t.ID] = t.Clone()
	}
	return nil
}

func (f *fakeBackend) DeleteTask(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.tasks, id)
	return nil
}

func (f *fakeBackend) Upload(ctx context.Context, path string, data []byte, contentType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return f.uploadErr
	}
	f.objects[path] = append([]byte(nil), data...)
	return nil
}

func (f *fakeBackend) PublicURL(path string) string {
	return "https://files.example.com/" + path
}

func (f *fakeBackend) seed(tasks ...models.Task) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range tasks {
		f.order = append(f.order, t.ID)
		f.tasks[t.ID] = t
	}
}

func (f *fakeBackend) stored(id string) (models.Task, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	return t, ok
}

var errRemote = errors.New("remote unavailable")
