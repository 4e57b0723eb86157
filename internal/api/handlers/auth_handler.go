package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/TWRT/smarttask/internal/auth"
	"github.com/TWRT/smarttask/internal/models"
)

type credentialsRequestBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponseBody struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresIn   int64       `json:"expires_in"`
	ExpiresAt   int64       `json:"expires_at"`
	User        models.User `json:"user"`
}

type AuthHandler struct {
	authService *auth.Service
	logger      *zap.Logger
}

func NewAuthHandler(authService *auth.Service, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{
		authService: authService,
		logger:      logger,
	}
}

func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	creds, ok := decodeCredentials(w, r)
	if !ok {
		return
	}

	session, err := h.authService.SignUp(r.Context(), creds.Email, creds.Password)
	switch {
	case errors.Is(err, auth.ErrUserExists):
		writeError(w, http.StatusUnprocessableEntity, "User already registered")
		return
	case errors.Is(err, auth.ErrInvalidEmail), errors.Is(err, auth.ErrWeakPassword), errors.Is(err, auth.ErrPasswordTooLong):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.logger.Error("sign up failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Error trying to sign up")
		return
	}

	writeJSON(w, http.StatusOK, toSessionResponse(session))
}

// Token implements the password grant.
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	if grant := r.URL.Query().Get("grant_type"); grant != "password" {
		writeError(w, http.StatusBadRequest, "unsupported grant_type: "+grant)
		return
	}
	creds, ok := decodeCredentials(w, r)
	if !ok {
		return
	}

	session, err := h.authService.SignIn(r.Context(), creds.Email, creds.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusBadRequest, "Invalid login credentials")
		return
	case err != nil:
		h.logger.Error("sign in failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Error trying to sign in")
		return
	}

	writeJSON(w, http.StatusOK, toSessionResponse(session))
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if err := h.authService.SignOut(r.Context(), claims); err != nil {
		h.logger.Error("sign out failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Error trying to sign out")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) User(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	user, err := h.authService.User(r.Context(), claims.UserID())
	if err != nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func decodeCredentials(w http.ResponseWriter, r *http.Request) (credentialsRequestBody, bool) {
	var body credentialsRequestBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "JSON error: "+err.Error())
		return body, false
	}
	return body, true
}

func toSessionResponse(s *auth.Session) sessionResponseBody {
	return sessionResponseBody{
		AccessToken: s.AccessToken,
		TokenType:   "bearer",
		ExpiresIn:   int64(time.Until(s.ExpiresAt).Seconds()),
		ExpiresAt:   s.ExpiresAt.Unix(),
		User:        s.User,
	}
}
