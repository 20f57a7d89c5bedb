package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/marketplace-service/internal/api/dto"
	"github.com/spec-kit/marketplace-service/internal/domain"
	"github.com/spec-kit/marketplace-service/internal/service"
)

// SupportHandler serves the helpdesk for users and support staff.
type SupportHandler struct {
	support *service.SupportService
}

// NewSupportHandler constructs handler.
func NewSupportHandler(supportService *service.SupportService) *SupportHandler {
	return &SupportHandler{support: supportService}
}

// Create POST /api/support/tickets.
func (h *SupportHandler) Create(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	ticket, err := h.support.CreateTicket(c.UserContext(), user, service.TicketCreateInput{
		Subject:     req.Subject,
		Description: req.Description,
		Category:    req.Category,
		Priority:    domain.TicketPriority(strings.ToUpper(strings.TrimSpace(string(req.Priority)))),
		Public:      req.Public,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// List GET /api/support/tickets?scope=mine|assigned|queue|public|all.
func (h *SupportHandler) List(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	limit, offset := pagination(c)
	filter := service.TicketListFilter{Limit: limit, Offset: offset}
	for _, s := range splitCSV(c.Query("status")) {
		filter.Statuses = append(filter.Statuses, domain.TicketStatus(strings.ToUpper(s)))
	}
	for _, p := range splitCSV(c.Query("priority")) {
		filter.Priorities = append(filter.Priorities, domain.TicketPriority(strings.ToUpper(p)))
	}
	if category := strings.TrimSpace(c.Query("category")); category != "" {
		filter.Category = &category
	}
	if term := strings.TrimSpace(c.Query("q")); term != "" {
		filter.SearchTerm = &term
	}
	scope := service.TicketScope(strings.ToLower(strings.TrimSpace(c.Query("scope"))))

	tickets, err := h.support.ListTickets(c.UserContext(), user, scope, filter)
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketResponse(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get GET /api/support/tickets/:id.
func (h *SupportHandler) Get(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	detail, err := h.support.GetTicket(c.UserContext(), user, c.Params("id"))
	if err != nil {
		return err
	}
	resp := dto.TicketDetailResponse{
		TicketResponse: ticketResponse(detail.Ticket),
		Comments:       make([]dto.CommentResponse, 0, len(detail.Comments)),
	}
	for i := range detail.Comments {
		resp.Comments = append(resp.Comments, commentResponse(&detail.Comments[i]))
	}
	return c.JSON(fiber.Map{"data": resp})
}

// Update PATCH /api/support/tickets/:id.
func (h *SupportHandler) Update(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.UpdateTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	update := service.TicketUpdate{
		Subject:     req.Subject,
		Description: req.Description,
		Public:      req.Public,
		Category:    req.Category,
	}
	if req.Priority != nil {
		p := domain.TicketPriority(strings.ToUpper(strings.TrimSpace(string(*req.Priority))))
		update.Priority = &p
	}
	if req.Status != nil {
		s := domain.TicketStatus(strings.ToUpper(strings.TrimSpace(string(*req.Status))))
		update.Status = &s
	}
	ticket, err := h.support.UpdateTicket(c.UserContext(), user, c.Params("id"), update)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// Claim POST /api/support/tickets/:id/claim. Losing a race yields 409.
func (h *SupportHandler) Claim(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	ticket, err := h.support.ClaimTicket(c.UserContext(), user, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// AddComment POST /api/support/tickets/:id/comments.
func (h *SupportHandler) AddComment(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.CreateCommentRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	comment, err := h.support.AddComment(c.UserContext(), user, c.Params("id"), req.Message)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": commentResponse(comment)})
}
