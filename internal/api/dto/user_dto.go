package dto

import (
	"time"

	"github.com/spec-kit/marketplace-service/internal/domain"
)

// RegisterRequest payload for new accounts.
type RegisterRequest struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

// LoginRequest accepts a username or email as identifier.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// UserResponse is the account as seen by itself or an admin.
type UserResponse struct {
	ID          string      `json:"id"`
	Username    string      `json:"username"`
	Email       string      `json:"email"`
	Role        domain.Role `json:"role"`
	DisplayName string      `json:"display_name"`
	AvatarURL   string      `json:"avatar_url"`
	Disabled    bool        `json:"is_disabled"`
	CreatedAt   time.Time   `json:"created_at"`
}

// UserSummaryResponse is the public list projection.
type UserSummaryResponse struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}

// ProfileResponse omits private fields the viewer may not see.
type ProfileResponse struct {
	ID          string      `json:"id"`
	Username    string      `json:"username"`
	DisplayName string      `json:"display_name"`
	Bio         string      `json:"bio"`
	AvatarURL   string      `json:"avatar_url"`
	Role        domain.Role `json:"role"`
	Email       *string     `json:"email,omitempty"`
	DOB         *string     `json:"dob,omitempty"`
	Location    *string     `json:"location,omitempty"`
	Followers   int         `json:"followers"`
	Following   int         `json:"following"`
	IsFollowing bool        `json:"is_following"`
	IsOwner     bool        `json:"is_owner"`
	CreatedAt   time.Time   `json:"created_at"`

	Visibility *VisibilityResponse `json:"visibility,omitempty"`
}

// VisibilityResponse is returned to the profile owner only.
type VisibilityResponse struct {
	EmailVisible    bool `json:"email_visible"`
	DOBVisible      bool `json:"dob_visible"`
	LocationVisible bool `json:"location_visible"`
}

// UpdateProfileRequest carries optional profile edits.
type UpdateProfileRequest struct {
	DisplayName     *string `json:"display_name"`
	Bio             *string `json:"bio"`
	Location        *string `json:"location"`
	DOB             *string `json:"dob"`
	EmailVisible    *bool   `json:"email_visible"`
	DOBVisible      *bool   `json:"dob_visible"`
	LocationVisible *bool   `json:"location_visible"`
}
