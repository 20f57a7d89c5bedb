package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/marketplace-service/internal/api/dto"
	"github.com/spec-kit/marketplace-service/internal/domain"
	"github.com/spec-kit/marketplace-service/internal/repository"
	"github.com/spec-kit/marketplace-service/internal/service"
)

// AdminHandler manages account administration endpoints.
type AdminHandler struct {
	admin   *service.AdminService
	support *service.SupportService
}

// NewAdminHandler constructs handler.
func NewAdminHandler(adminService *service.AdminService, supportService *service.SupportService) *AdminHandler {
	return &AdminHandler{admin: adminService, support: supportService}
}

// ListUsers GET /api/admin/users.
func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	limit, offset := pagination(c)
	filter := repository.UserFilter{
		Query:  strings.TrimSpace(c.Query("q")),
		Limit:  limit,
		Offset: offset,
	}
	if role := c.Query("role"); role != "" {
		r := domain.Role(strings.ToUpper(role))
		filter.Role = &r
	}
	if disabled := c.Query("disabled"); disabled != "" {
		val := disabled == "true"
		filter.Disabled = &val
	}
	users, err := h.admin.ListUsers(c.UserContext(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		items = append(items, userResponse(&users[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// ChangeRole PATCH /api/admin/users/:id/role.
func (h *AdminHandler) ChangeRole(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.ChangeRoleRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	role := domain.Role(strings.ToUpper(strings.TrimSpace(string(req.Role))))
	user, err := h.admin.ChangeRole(c.UserContext(), actor, c.Params("id"), role)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userResponse(user)})
}

// SetDisabled PATCH /api/admin/users/:id/status.
func (h *AdminHandler) SetDisabled(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.SetDisabledRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	user, err := h.admin.SetDisabled(c.UserContext(), actor, c.Params("id"), req.Disabled)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userResponse(user)})
}

// ListAuditLogs GET /api/admin/audit-logs.
func (h *AdminHandler) ListAuditLogs(c *fiber.Ctx) error {
	limit, offset := pagination(c)
	filter := repository.AuditFilter{Limit: limit, Offset: offset}
	if actor := c.Query("actor_id"); actor != "" {
		filter.ActorID = &actor
	}
	if targetType := c.Query("target_type"); targetType != "" {
		filter.TargetType = &targetType
	}
	if targetID := c.Query("target_id"); targetID != "" {
		filter.TargetID = &targetID
	}
	entries, err := h.admin.ListAuditLogs(c.UserContext(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.AuditLogResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, dto.AuditLogResponse{
			ID:         e.ID,
			ActorID:    e.ActorID,
			Action:     e.Action,
			TargetType: e.TargetType,
			TargetID:   e.TargetID,
			Metadata:   e.Metadata,
			CreatedAt:  e.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

// ForceAssign POST /api/admin/support/tickets/:id/assign.
func (h *AdminHandler) ForceAssign(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.AssignTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	ticket, err := h.support.ForceAssign(c.UserContext(), actor, c.Params("id"), strings.TrimSpace(req.AssigneeID))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}
