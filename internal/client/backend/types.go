package backend

import (
	"fmt"
	"time"

	"github.com/TWRT/smarttask/internal/models"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned by sign-in and sign-up. AccessToken is empty when
// sign-up is waiting on confirmation.
type AuthResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresIn   int64       `json:"expires_in"`
	ExpiresAt   int64       `json:"expires_at"`
	User        models.User `json:"user"`
}

func (r AuthResponse) session(now time.Time) *models.Session {
	if r.AccessToken == "" {
		return nil
	}
	expiresAt := time.Time{}
	switch {
	case r.ExpiresAt > 0:
		expiresAt = time.Unix(r.ExpiresAt, 0).UTC()
	case r.ExpiresIn > 0:
		expiresAt = now.Add(time.Duration(r.ExpiresIn) * time.Second).UTC()
	}
	tokenType := r.TokenType
	if tokenType == "" {
		tokenType = "bearer"
	}
	return &models.Session{
		AccessToken: r.AccessToken,
		TokenType:   tokenType,
		ExpiresAt:   expiresAt,
		User:        r.User,
	}
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Msg     string `json:"msg"`
}

func (e errorBody) text() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Msg != "":
		return e.Msg
	default:
		return e.Error
	}
}

// APIError is a non-2xx response from the backend.
type APIError struct {
	StatusCode int
	Message    string
	cause      error
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend error status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend error status %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.cause
}
