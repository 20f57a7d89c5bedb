package domain

import "time"

// NotificationType identifies what produced a notification.
type NotificationType string

const (
	NotificationMessage       NotificationType = "message"
	NotificationTicketUpdate  NotificationType = "ticket_update"
	NotificationTicketComment NotificationType = "ticket_comment"
	NotificationOrder         NotificationType = "order"
	NotificationFollow        NotificationType = "follow"
)

// Notification is owned by its recipient; only Read is ever mutated.
type Notification struct {
	ID        string
	UserID    string
	Type      NotificationType
	Content   string
	Link      *string
	Read      bool
	CreatedAt time.Time
}
