package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/marketplace-service/internal/domain"
	apperrors "github.com/spec-kit/marketplace-service/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// UserLoader loads the account behind a token subject.
type UserLoader interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

// Principal represents the authenticated caller.
type Principal struct {
	User *domain.User
}

// ID returns the caller's user id.
func (p *Principal) ID() string {
	return p.User.ID
}

// Role returns the caller's current role.
func (p *Principal) Role() domain.Role {
	return p.User.Role
}

// AuthMiddleware validates bearer tokens or the session cookie and loads principals.
type AuthMiddleware struct {
	tokens     *TokenManager
	users      UserLoader
	cookieName string
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, users UserLoader, cookieName string) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, users: users, cookieName: cookieName}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	raw, err := m.extractToken(c)
	if err != nil {
		return err
	}
	user, err := m.Authenticate(c.UserContext(), raw)
	if err != nil {
		return err
	}
	SetPrincipal(c, &Principal{User: user})
	return c.Next()
}

// Optional attaches a principal when credentials are present but never rejects.
func (m *AuthMiddleware) Optional(c *fiber.Ctx) error {
	raw, err := m.extractToken(c)
	if err == nil {
		if user, err := m.Authenticate(c.UserContext(), raw); err == nil {
			SetPrincipal(c, &Principal{User: user})
		}
	}
	return c.Next()
}

// Authenticate verifies a raw token and returns the active user behind it.
func (m *AuthMiddleware) Authenticate(ctx context.Context, raw string) (*domain.User, error) {
	claims, err := m.tokens.ParseToken(raw)
	if err != nil {
		return nil, apperrors.NewUnauthorized("invalid token")
	}
	user, err := m.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewUnauthorized("user not found")
		}
		return nil, apperrors.MapError(err)
	}
	if user.Disabled {
		return nil, apperrors.NewForbidden("account disabled")
	}
	return user, nil
}

func (m *AuthMiddleware) extractToken(c *fiber.Ctx) (string, error) {
	if authHeader := c.Get(fiber.HeaderAuthorization); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			return "", apperrors.NewUnauthorized("invalid authorization header")
		}
		return strings.TrimSpace(parts[1]), nil
	}
	if m.cookieName != "" {
		if cookie := c.Cookies(m.cookieName); cookie != "" {
			return cookie, nil
		}
	}
	return "", apperrors.NewUnauthorized("missing credentials")
}

// SetPrincipal stores the authenticated caller on the request.
func SetPrincipal(c *fiber.Ctx, principal *Principal) {
	c.Locals(principalKey, principal)
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok && principal != nil && principal.User != nil
}
