package domain

import (
	"strings"
	"time"
)

// Role is the account-level authorization role.
type Role string

const (
	RoleUser    Role = "USER"
	RoleSupport Role = "SUPPORT"
	RoleAdmin   Role = "ADMIN"
	RoleOwner   Role = "OWNER"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleSupport, RoleAdmin, RoleOwner:
		return true
	}
	return false
}

// IsStaff reports whether the role may work the support queue.
func (r Role) IsStaff() bool {
	return r == RoleSupport || r == RoleAdmin || r == RoleOwner
}

// IsAdmin reports whether the role may perform administrative actions.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleOwner
}

// User is an account holder; profile fields live on the same row.
type User struct {
	ID              string
	Username        string
	Email           string
	PasswordHash    string
	Role            Role
	Disabled        bool
	DisplayName     string
	Bio             string
	AvatarURL       string
	DOB             *time.Time
	Location        string
	EmailVisible    bool
	DOBVisible      bool
	LocationVisible bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// UsernameKey returns the canonical form used for uniqueness checks.
func UsernameKey(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// EmailKey returns the canonical form used for uniqueness checks.
func EmailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
