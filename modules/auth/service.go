package auth

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	domain "github.com/example/realtime-chat-demo/domain/user"
)

const (
	// MinUsernameLength and MaxUsernameLength bound account usernames.
	MinUsernameLength = 3
	MaxUsernameLength = 50
)

var (
	// ErrInvalidCredentials is returned when login credentials are invalid.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrInvalidUsername is returned when the username is malformed.
	ErrInvalidUsername = errors.New("username must be 3-50 valid characters")
	// ErrWeakPassword is returned when password is too weak.
	ErrWeakPassword = errors.New("password must be at least 8 characters")
	// ErrPasswordTooLong is returned when password exceeds bcrypt's 72-byte limit.
	ErrPasswordTooLong = errors.New("password must be at most 72 characters")
)

// AuthService handles authentication business logic.
type AuthService struct {
	store *UserStore
	creds *Credentials
}

// NewAuthService creates a new AuthService.
func NewAuthService(store *UserStore, creds *Credentials) *AuthService {
	return &AuthService{
		store: store,
		creds: creds,
	}
}

// ValidateUsername checks that a username is acceptable for registration.
func ValidateUsername(username string) error {
	if len(username) < MinUsernameLength || len(username) > MaxUsernameLength {
		return ErrInvalidUsername
	}
	if !utf8.ValidString(username) {
		return ErrInvalidUsername
	}
	return nil
}

// Register creates a new user account. Username collisions surface from the
// insert itself, so two concurrent registrations cannot both pass a check.
func (s *AuthService) Register(_ context.Context, username, password string) (*domain.User, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if len(password) < 8 {
		return nil, ErrWeakPassword
	}
	if len(password) > 72 {
		return nil, ErrPasswordTooLong
	}

	passwordHash, err := s.creds.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	user := &domain.User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.store.Insert(user); err != nil {
		if errors.Is(err, ErrUserExists) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// Login authenticates a user and returns tokens.
func (s *AuthService) Login(_ context.Context, username, password string) (*domain.TokenPair, error) {
	user, err := s.store.ByUsername(username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if !s.creds.CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	return s.creds.IssueTokens(user)
}

// RefreshTokens validates a refresh token and issues a new token pair.
func (s *AuthService) RefreshTokens(_ context.Context, refreshToken string) (*domain.TokenPair, error) {
	userID, err := s.creds.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, err
	}

	// Re-read the user so a deleted account cannot refresh its way back in.
	user, err := s.store.ByID(userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	return s.creds.IssueTokens(user)
}

// ValidateToken validates an access token and returns the verified claims.
func (s *AuthService) ValidateToken(_ context.Context, token string) (*domain.Claims, error) {
	claims, err := s.creds.VerifyAccess(token)
	if err != nil {
		return nil, err
	}
	return &claims, nil
}

// GetUser retrieves a user by ID.
func (s *AuthService) GetUser(_ context.Context, userID string) (*domain.User, error) {
	return s.store.ByID(userID)
}
