package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/marketplace-service/internal/api/dto"
	"github.com/spec-kit/marketplace-service/internal/service"
)

// NotificationsHandler exposes the caller's notification inbox.
type NotificationsHandler struct {
	notifications *service.NotificationService
}

// NewNotificationsHandler constructs handler.
func NewNotificationsHandler(notificationService *service.NotificationService) *NotificationsHandler {
	return &NotificationsHandler{notifications: notificationService}
}

// List GET /api/notifications?unread=true.
func (h *NotificationsHandler) List(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	limit, offset := pagination(c)
	list, err := h.notifications.List(c.UserContext(), user.ID, c.QueryBool("unread"), limit, offset)
	if err != nil {
		return err
	}
	items := make([]dto.NotificationResponse, 0, len(list))
	for i := range list {
		items = append(items, notificationResponse(&list[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// UnreadCount GET /api/notifications/unread-count.
func (h *NotificationsHandler) UnreadCount(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	count, err := h.notifications.UnreadCount(c.UserContext(), user.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"count": count}})
}

// MarkRead PATCH /api/notifications/:id/read.
func (h *NotificationsHandler) MarkRead(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	if err := h.notifications.MarkRead(c.UserContext(), user.ID, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// MarkAllRead PATCH /api/notifications/read-all.
func (h *NotificationsHandler) MarkAllRead(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	updated, err := h.notifications.MarkAllRead(c.UserContext(), user.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"updated": updated}})
}

// Delete DELETE /api/notifications/:id.
func (h *NotificationsHandler) Delete(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	if err := h.notifications.Delete(c.UserContext(), user.ID, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}
