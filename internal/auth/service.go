// Package auth implements password sign-up and sign-in with revocable JWT
// access tokens for the self-hosted backend.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/TWRT/smarttask/internal/models"
	"github.com/TWRT/smarttask/internal/repository"
)

const (
	MinPasswordLength = 6
	// MaxPasswordLength is bcrypt's input limit.
	MaxPasswordLength = 72
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidEmail       = errors.New("invalid email format")
	ErrWeakPassword       = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	ErrPasswordTooLong    = fmt.Errorf("password must be at most %d bytes", MaxPasswordLength)
	ErrUserExists         = repository.ErrUserExists
	ErrRevokedToken       = errors.New("token has been revoked")
)

// Session is what sign-in and sign-up hand back to the client.
type Session struct {
	AccessToken string
	ExpiresAt   time.Time
	User        models.User
}

type Service struct {
	users  *repository.UserRepository
	tokens *repository.TokenRepository
	hasher *PasswordHasher
	jwt    *TokenManager
	logger *zap.Logger
}

func NewService(users *repository.UserRepository, tokens *repository.TokenRepository, hasher *PasswordHasher, jwt *TokenManager, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		users:  users,
		tokens: tokens,
		hasher: hasher,
		jwt:    jwt,
		logger: logger,
	}
}

// SignUp creates the account and signs it in straight away.
func (s *Service) SignUp(ctx context.Context, email, password string) (*Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if len(password) < MinPasswordLength {
		return nil, ErrWeakPassword
	}
	if len(password) > MaxPasswordLength {
		return nil, ErrPasswordTooLong
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &repository.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("user signed up", zap.String("user_id", user.ID))

	return s.issue(user.ID, user.Email)
}

func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		s.hasher.VerifyUnknown(password)
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		s.hasher.VerifyUnknown(password)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return s.issue(user.ID, user.Email)
}

// SignOut revokes the token the claims were parsed from.
func (s *Service) SignOut(ctx context.Context, claims *Claims) error {
	expiresAt := time.Now().Add(s.jwt.TTL())
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	if err := s.tokens.Revoke(ctx, claims.ID, expiresAt); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	s.logger.Info("user signed out", zap.String("user_id", claims.UserID()))
	return nil
}

// Authenticate validates an access token and rejects revoked ones.
func (s *Service) Authenticate(ctx context.Context, token string) (*Claims, error) {
	claims, err := s.jwt.Validate(token)
	if err != nil {
		return nil, err
	}
	revoked, err := s.tokens.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check token: %w", err)
	}
	if revoked {
		return nil, ErrRevokedToken
	}
	return claims, nil
}

func (s *Service) User(ctx context.Context, id string) (*models.User, error) {
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.User{ID: u.ID, Email: u.Email}, nil
}

func (s *Service) issue(userID, email string) (*Session, error) {
	token, expiresAt, err := s.jwt.Issue(userID, email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	return &Session{
		AccessToken: token,
		ExpiresAt:   expiresAt,
		User:        models.User{ID: userID, Email: email},
	}, nil
}

func normalizeEmail(email string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil || addr.Name != "" {
		return "", ErrInvalidEmail
	}
	return strings.ToLower(addr.Address), nil
}
