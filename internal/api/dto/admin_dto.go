package dto

import (
	"time"

	"github.com/spec-kit/marketplace-service/internal/domain"
)

// ChangeRoleRequest payload.
type ChangeRoleRequest struct {
	Role domain.Role `json:"role"`
}

// SetDisabledRequest payload.
type SetDisabledRequest struct {
	Disabled bool `json:"is_disabled"`
}

// AuditLogResponse is one audit trail entry.
type AuditLogResponse struct {
	ID         string             `json:"id"`
	ActorID    *string            `json:"actor_id"`
	Action     domain.AuditAction `json:"action"`
	TargetType string             `json:"target_type"`
	TargetID   string             `json:"target_id"`
	Metadata   map[string]any     `json:"metadata"`
	CreatedAt  time.Time          `json:"created_at"`
}
