package service

import (
	"context"
	"errors"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/marketplace-service/internal/auth"
	"github.com/spec-kit/marketplace-service/internal/config"
	"github.com/spec-kit/marketplace-service/internal/domain"
	"github.com/spec-kit/marketplace-service/internal/repository"
	apperrors "github.com/spec-kit/marketplace-service/pkg/util/errorutil"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,30}$`)

const (
	minPasswordLength = 8
	maxPasswordBytes  = 72
)

// AuthService coordinates registration and login flows.
type AuthService struct {
	users      repository.UserRepository
	tokenMgr   *auth.TokenManager
	bcryptCost int
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	UserRepo repository.UserRepository
}

// RegisterInput describes a new account.
type RegisterInput struct {
	Username    string
	Email       string
	Password    string
	DisplayName string
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	return &AuthService{
		users:      deps.UserRepo,
		tokenMgr:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		bcryptCost: cfg.Auth.BcryptCost,
	}
}

// ValidateUsername checks the allowed username shape.
func ValidateUsername(username string) error {
	if !usernamePattern.MatchString(username) {
		return apperrors.NewValidationError("username must be 3-30 letters, digits or underscores",
			map[string]any{"field": "username"})
	}
	return nil
}

// Register creates a USER account and signs a token for it. Username and
// email are unique regardless of case.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*domain.User, string, time.Time, error) {
	username := strings.TrimSpace(input.Username)
	email := strings.TrimSpace(input.Email)
	if err := ValidateUsername(username); err != nil {
		return nil, "", time.Time{}, err
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, "", time.Time{}, apperrors.NewValidationError("invalid email address", map[string]any{"field": "email"})
	}
	if len(input.Password) < minPasswordLength || len(input.Password) > maxPasswordBytes {
		return nil, "", time.Time{}, apperrors.NewValidationError("password must be between 8 and 72 characters",
			map[string]any{"field": "password"})
	}

	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return nil, "", time.Time{}, apperrors.NewConflict("username already taken", map[string]any{"username": username})
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, "", time.Time{}, apperrors.MapError(err)
	}
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, "", time.Time{}, apperrors.NewConflict("email already registered", nil)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, "", time.Time{}, apperrors.MapError(err)
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, "", time.Time{}, apperrors.NewInternalError(err)
	}

	displayName := strings.TrimSpace(input.DisplayName)
	if displayName == "" {
		displayName = username
	}
	user := &domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		DisplayName:  displayName,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, "", time.Time{}, apperrors.NewConflict("username or email already taken", nil)
		}
		return nil, "", time.Time{}, apperrors.MapError(err)
	}

	token, exp, err := s.tokenMgr.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, "", time.Time{}, apperrors.NewInternalError(err)
	}
	return user, token, exp, nil
}

// Login authenticates by username or email.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (*domain.User, string, time.Time, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, "", time.Time{}, apperrors.NewValidationError("identifier and password are required", nil)
	}

	var (
		user *domain.User
		err  error
	)
	if strings.Contains(identifier, "@") {
		user, err = s.users.GetByEmail(ctx, identifier)
	} else {
		user, err = s.users.GetByUsername(ctx, identifier)
	}
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, "", time.Time{}, apperrors.MapError(err)
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
	}
	if user.Disabled {
		return nil, "", time.Time{}, apperrors.NewForbidden("account disabled")
	}

	token, exp, err := s.tokenMgr.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, "", time.Time{}, apperrors.NewInternalError(err)
	}
	return user, token, exp, nil
}

// Me reloads the caller.
func (s *AuthService) Me(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, lookupError(err, "user", nil)
	}
	return user, nil
}

// UsernameAvailable reports whether nobody holds username in any letter case.
func (s *AuthService) UsernameAvailable(ctx context.Context, username string) (bool, error) {
	username = strings.TrimSpace(username)
	if err := ValidateUsername(username); err != nil {
		return false, err
	}
	_, err := s.users.GetByUsername(ctx, username)
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, pgx.ErrNoRows):
		return true, nil
	default:
		return false, apperrors.MapError(err)
	}
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
