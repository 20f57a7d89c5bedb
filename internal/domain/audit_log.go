package domain

import "time"

// AuditAction names an audited operation.
type AuditAction string

const (
	AuditRoleChanged     AuditAction = "USER_ROLE_CHANGED"
	AuditUserDisabled    AuditAction = "USER_DISABLED"
	AuditUserEnabled     AuditAction = "USER_ENABLED"
	AuditOwnerGranted    AuditAction = "OWNER_GRANTED"
	AuditTicketClaimed   AuditAction = "TICKET_CLAIMED"
	AuditTicketAssigned  AuditAction = "TICKET_ASSIGNED"
	AuditTicketStatus    AuditAction = "TICKET_STATUS_CHANGED"
	AuditProductRemoved  AuditAction = "PRODUCT_REMOVED"
	AuditOrderStatusEdit AuditAction = "ORDER_STATUS_CHANGED"
)

// AuditLog is an immutable audit trail entry.
type AuditLog struct {
	ID         string
	ActorID    *string
	Action     AuditAction
	TargetType string
	TargetID   string
	Metadata   map[string]any
	CreatedAt  time.Time
}
