package handlers

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/marketplace-service/internal/api/dto"
	"github.com/spec-kit/marketplace-service/internal/domain"
	"github.com/spec-kit/marketplace-service/internal/service"
	apperrors "github.com/spec-kit/marketplace-service/pkg/util/errorutil"
)

// AuthHandler exposes registration, login and session endpoints.
type AuthHandler struct {
	auth         *service.AuthService
	cookieName   string
	cookieSecure bool
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService, cookieName string, cookieSecure bool) *AuthHandler {
	return &AuthHandler{auth: authService, cookieName: cookieName, cookieSecure: cookieSecure}
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	user, token, exp, err := h.auth.Register(c.UserContext(), service.RegisterInput{
		Username:    req.Username,
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		return err
	}
	h.setCookie(c, token, exp)
	return c.Status(http.StatusCreated).JSON(authPayload(user, token, exp))
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	identifier := req.Identifier
	if identifier == "" {
		identifier = req.Username
	}
	if identifier == "" {
		identifier = req.Email
	}
	if identifier == "" || req.Password == "" {
		return apperrors.NewValidationError("identifier and password required", nil)
	}

	user, token, exp, err := h.auth.Login(c.UserContext(), identifier, req.Password)
	if err != nil {
		return err
	}
	h.setCookie(c, token, exp)
	return c.JSON(authPayload(user, token, exp))
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     h.cookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   h.cookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.SendStatus(http.StatusNoContent)
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	caller, err := currentUser(c)
	if err != nil {
		return err
	}
	user, err := h.auth.Me(c.UserContext(), caller.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userResponse(user)})
}

// UsernameAvailable handles GET /api/auth/username-available.
func (h *AuthHandler) UsernameAvailable(c *fiber.Ctx) error {
	username := c.Query("username")
	available, err := h.auth.UsernameAvailable(c.UserContext(), username)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"username": username, "available": available}})
}

func (h *AuthHandler) setCookie(c *fiber.Ctx, token string, exp time.Time) {
	if h.cookieName == "" {
		return
	}
	c.Cookie(&fiber.Cookie{
		Name:     h.cookieName,
		Value:    token,
		Path:     "/",
		Expires:  exp,
		HTTPOnly: true,
		Secure:   h.cookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func authPayload(user *domain.User, token string, exp time.Time) fiber.Map {
	return fiber.Map{
		"data": fiber.Map{
			"user": userResponse(user),
			"auth": dto.AuthResponse{Token: token, ExpiresAt: exp},
		},
	}
}
