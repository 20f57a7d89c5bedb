package realtime

import (
	"encoding/json"
	"time"

	"github.com/spec-kit/marketplace-service/internal/domain"
)

// Frame event names.
const (
	EventConnected      = "connected"
	EventJoin           = "join"
	EventSendMessage    = "send_message"
	EventReceiveMessage = "receive_message"
	EventNotification   = "notification"
	EventError          = "error"
)

// Frame is the JSON envelope exchanged over the socket.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// MessagePayload is the data of a receive_message frame.
type MessagePayload struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewMessagePayload converts a stored message.
func NewMessagePayload(msg *domain.Message) MessagePayload {
	return MessagePayload{
		ID:         msg.ID,
		SenderID:   msg.SenderID,
		ReceiverID: msg.ReceiverID,
		Content:    msg.Content,
		CreatedAt:  msg.CreatedAt,
	}
}

// NotificationPayload is the data of a notification frame.
type NotificationPayload struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Content   string    `json:"content"`
	Link      *string   `json:"link,omitempty"`
	Read      bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// NewNotificationPayload converts a stored notification.
func NewNotificationPayload(n *domain.Notification) NotificationPayload {
	return NotificationPayload{
		ID:        n.ID,
		Type:      string(n.Type),
		Content:   n.Content,
		Link:      n.Link,
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
	}
}

// ErrorPayload is the data of an error frame.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SendMessageRequest is the data of a client send_message frame.
type SendMessageRequest struct {
	ReceiverID string `json:"receiver_id"`
	Content    string `json:"content"`
}

// JoinRequest is the data of a client join frame.
type JoinRequest struct {
	UserID string `json:"user_id"`
}

func encodeFrame(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: event, Data: raw})
}
