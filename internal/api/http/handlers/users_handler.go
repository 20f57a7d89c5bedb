package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/marketplace-service/internal/domain"
	"github.com/spec-kit/marketplace-service/internal/service"
)

const maxSearchResults = 50

// UsersHandler serves user search plus follow and block relations.
type UsersHandler struct {
	users *service.UserService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(userService *service.UserService) *UsersHandler {
	return &UsersHandler{users: userService}
}

// Search GET /api/users/search?q=.
func (h *UsersHandler) Search(c *fiber.Ctx) error {
	limit := parseInt(c.Query("limit"), defaultPageSize)
	if limit > maxSearchResults {
		limit = maxSearchResults
	}
	results, err := h.users.Search(c.UserContext(), optionalUser(c), strings.TrimSpace(c.Query("q")), limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userSummaries(results)})
}

// Followers GET /api/users/:username/followers.
func (h *UsersHandler) Followers(c *fiber.Ctx) error {
	limit, offset := pagination(c)
	list, err := h.users.Followers(c.UserContext(), c.Params("username"), limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userSummaries(list)})
}

// Following GET /api/users/:username/following.
func (h *UsersHandler) Following(c *fiber.Ctx) error {
	limit, offset := pagination(c)
	list, err := h.users.Following(c.UserContext(), c.Params("username"), limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userSummaries(list)})
}

// Blocked GET /api/users/blocked.
func (h *UsersHandler) Blocked(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	list, err := h.users.ListBlocked(c.UserContext(), user)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userSummaries(list)})
}

// Follow POST /api/users/:username/follow.
func (h *UsersHandler) Follow(c *fiber.Ctx) error {
	return h.relation(c, h.users.Follow)
}

// Unfollow DELETE /api/users/:username/follow.
func (h *UsersHandler) Unfollow(c *fiber.Ctx) error {
	return h.relation(c, h.users.Unfollow)
}

// Block POST /api/users/:username/block.
func (h *UsersHandler) Block(c *fiber.Ctx) error {
	return h.relation(c, h.users.Block)
}

// Unblock DELETE /api/users/:username/block.
func (h *UsersHandler) Unblock(c *fiber.Ctx) error {
	return h.relation(c, h.users.Unblock)
}

type relationFunc func(ctx context.Context, actor *domain.User, username string) error

func (h *UsersHandler) relation(c *fiber.Ctx, apply relationFunc) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	if err := apply(c.UserContext(), user, c.Params("username")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}
