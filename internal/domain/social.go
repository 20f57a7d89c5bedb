package domain

import "time"

// Follow records that FollowerID follows FolloweeID.
type Follow struct {
	FollowerID string
	FolloweeID string
	CreatedAt  time.Time
}

// Block records that BlockerID blocked BlockedID.
type Block struct {
	BlockerID string
	BlockedID string
	CreatedAt time.Time
}

// UserSummary is the public projection used in lists.
type UserSummary struct {
	ID          string
	Username    string
	DisplayName string
	AvatarURL   string
}
