package dto

import (
	"time"

	"github.com/spec-kit/marketplace-service/internal/domain"
)

// SendMessageRequest payload.
type SendMessageRequest struct {
	ReceiverID string `json:"receiver_id"`
	Content    string `json:"content"`
}

// MessageResponse is one direct message.
type MessageResponse struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// ConversationResponse summarizes one thread.
type ConversationResponse struct {
	UserID      string          `json:"user_id"`
	Username    string          `json:"username"`
	AvatarURL   string          `json:"avatar_url"`
	LastMessage MessageResponse `json:"last_message"`
}

// NotificationResponse is one notification.
type NotificationResponse struct {
	ID        string                  `json:"id"`
	Type      domain.NotificationType `json:"type"`
	Content   string                  `json:"content"`
	Link      *string                 `json:"link"`
	Read      bool                    `json:"is_read"`
	CreatedAt time.Time               `json:"created_at"`
}
