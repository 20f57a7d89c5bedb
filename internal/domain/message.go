package domain

import "time"

// Message is a direct message between two users.
type Message struct {
	ID         string
	SenderID   string
	ReceiverID string
	Content    string
	CreatedAt  time.Time
}

// Counterpart returns the other participant of the conversation.
func (m *Message) Counterpart(userID string) string {
	if m.SenderID == userID {
		return m.ReceiverID
	}
	return m.SenderID
}

// Conversation summarizes a thread with one counterpart.
type Conversation struct {
	UserID      string
	Username    string
	AvatarURL   string
	LastMessage Message
}
