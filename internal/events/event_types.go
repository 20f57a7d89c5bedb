package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/marketplace-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketAssigned      EventType = "ticket_assigned"
	EventTicketCommented     EventType = "ticket_commented"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventOrderPlaced         EventType = "order_placed"
	EventOrderStatusChanged  EventType = "order_status_changed"
	EventUserFollowed        EventType = "user_followed"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	ActorID   string    `json:"actor_id"`
	SubjectID string    `json:"subject_id"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// New stamps an event with a fresh id and the current time.
func New(eventType EventType, actorID, subjectID string, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		ActorID:   actorID,
		SubjectID: subjectID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Subject   string                `json:"subject"`
	Category  string                `json:"category"`
	Priority  domain.TicketPriority `json:"priority"`
	CreatedBy string                `json:"created_by"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	Subject    string  `json:"subject"`
	CreatedBy  string  `json:"created_by"`
	AssigneeID string  `json:"assignee_id"`
	Previous   *string `json:"previous_assignee_id,omitempty"`
	Forced     bool    `json:"forced"`
}

// TicketCommentedPayload payload.
type TicketCommentedPayload struct {
	Subject    string  `json:"subject"`
	CreatedBy  string  `json:"created_by"`
	AssignedTo *string `json:"assigned_to,omitempty"`
	CommentID  string  `json:"comment_id"`
	Preview    string  `json:"preview"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	Subject   string              `json:"subject"`
	CreatedBy string              `json:"created_by"`
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
}

// OrderPlacedPayload payload.
type OrderPlacedPayload struct {
	BuyerID    string `json:"buyer_id"`
	SellerID   string `json:"seller_id"`
	TotalCents int64  `json:"total_cents"`
	ItemCount  int    `json:"item_count"`
}

// OrderStatusChangedPayload payload.
type OrderStatusChangedPayload struct {
	BuyerID   string             `json:"buyer_id"`
	SellerID  string             `json:"seller_id"`
	OldStatus domain.OrderStatus `json:"old_status"`
	NewStatus domain.OrderStatus `json:"new_status"`
}

// UserFollowedPayload payload.
type UserFollowedPayload struct {
	FollowerUsername string `json:"follower_username"`
	FolloweeID       string `json:"followee_id"`
}
