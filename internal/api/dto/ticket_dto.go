package dto

import (
	"time"

	"github.com/spec-kit/marketplace-service/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Subject     string                `json:"subject"`
	Description string                `json:"description"`
	Category    string                `json:"category"`
	Priority    domain.TicketPriority `json:"priority"`
	Public      bool                  `json:"is_public"`
}

// UpdateTicketRequest carries optional ticket edits.
type UpdateTicketRequest struct {
	Subject     *string                `json:"subject"`
	Description *string                `json:"description"`
	Public      *bool                  `json:"is_public"`
	Category    *string                `json:"category"`
	Priority    *domain.TicketPriority `json:"priority"`
	Status      *domain.TicketStatus   `json:"status"`
}

// AssignTicketRequest payload for forced assignment.
type AssignTicketRequest struct {
	AssigneeID string `json:"assignee_id"`
}

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Message string `json:"message"`
}

// TicketResponse is a support ticket.
type TicketResponse struct {
	ID          string                `json:"id"`
	Subject     string                `json:"subject"`
	Description string                `json:"description"`
	Category    string                `json:"category"`
	Priority    domain.TicketPriority `json:"priority"`
	Status      domain.TicketStatus   `json:"status"`
	CreatedBy   string                `json:"created_by"`
	AssignedTo  *string               `json:"assigned_to"`
	Public      bool                  `json:"is_public"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

// TicketDetailResponse is a ticket with its comment thread.
type TicketDetailResponse struct {
	TicketResponse
	Comments []CommentResponse `json:"comments"`
}

// CommentResponse is one ticket reply.
type CommentResponse struct {
	ID        string    `json:"id"`
	TicketID  string    `json:"ticket_id"`
	AuthorID  string    `json:"author_id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
