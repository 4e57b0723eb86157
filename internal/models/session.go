package models

import "time"

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session is an authenticated user context issued by the auth provider.
type Session struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        User      `json:"user"`
}

// Expired reports whether the session is past its expiry. A zero expiry never expires.
func (s *Session) Expired(now time.Time) bool {
	if s == nil {
		return true
	}
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

type SessionEventType string

const (
	SessionInitial   SessionEventType = "initial_session"
	SessionSignedIn  SessionEventType = "signed_in"
	SessionSignedOut SessionEventType = "signed_out"
)

// SessionEvent is published whenever the current session changes. Session is nil on sign-out.
type SessionEvent struct {
	Type    SessionEventType
	Session *Session
}
