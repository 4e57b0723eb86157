package client

import (
	"context"
	"errors"

	"github.com/TWRT/smarttask/internal/models"
)

var (
	ErrNoSession    = errors.New("no active session")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

type SessionProvider interface {
	CurrentSession(ctx context.Context) (*models.Session, error)
	OnSessionChange(fn func(models.SessionEvent)) (unsubscribe func())
	SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error)
	// SignUp returns a nil session when the provider requires confirmation first.
	SignUp(ctx context.Context, email, password string) (*models.Session, error)
	SignOut(ctx context.Context) error
}

// TaskStore is scoped to the current session's owner.
type TaskStore interface {
	ListTasks(ctx context.Context) ([]models.Task, error)
	UpsertTask(ctx context.Context, task models.Task) error
	UpsertTasks(ctx context.Context, tasks []models.Task) error
	DeleteTask(ctx context.Context, id string) error
}

type AttachmentStore interface {
	Upload(ctx context.Context, path string, data []byte, contentType string) error
	PublicURL(path string) string
}

type Backend interface {
	SessionProvider
	TaskStore
	AttachmentStore
}
