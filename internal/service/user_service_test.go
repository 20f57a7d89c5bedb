package service

import (
	"context"
	"testing"

	"github.com/spec-kit/marketplace-service/internal/domain"
	apperrors "github.com/spec-kit/marketplace-service/pkg/util/errorutil"
)

func TestFollow_IdempotentAndNotifies(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	alice := seedUser(t, env.store, "alice", domain.RoleUser)
	bob := seedUser(t, env.store, "bob", domain.RoleUser)

	for i := 0; i < 2; i++ {
		if err := env.users.Follow(ctx, alice, "bob"); err != nil {
			t.Fatalf("Follow() attempt %d error = %v", i+1, err)
		}
	}
	notes := env.notificationsFor(t, bob.ID)
	if len(notes) != 1 || notes[0].Type != domain.NotificationFollow {
		t.Errorf("notifications = %+v, want one follow", notes)
	}

	followers, err := env.users.Followers(ctx, "bob", 10, 0)
	if err != nil || len(followers) != 1 || followers[0].ID != alice.ID {
		t.Errorf("Followers() = %+v, %v; want alice", followers, err)
	}

	if err := env.users.Follow(ctx, alice, "alice"); !apperrors.IsCode(err, "VALIDATION_FAILED") {
		t.Errorf("Follow(self) error = %v, want VALIDATION_FAILED", err)
	}
	if err := env.users.Unfollow(ctx, alice, "bob"); err != nil {
		t.Errorf("Unfollow() error = %v", err)
	}
	if err := env.users.Unfollow(ctx, alice, "bob"); !apperrors.IsCode(err, "NOT_FOUND") {
		t.Errorf("Unfollow() repeat error = %v, want NOT_FOUND", err)
	}
}

func TestBlock_DropsFollowsAndHidesFromSearch(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	alice := seedUser(t, env.store, "alice", domain.RoleUser)
	bob := seedUser(t, env.store, "bobby", domain.RoleUser)
	seedUser(t, env.store, "bobcat", domain.RoleUser)

	if err := env.users.Follow(ctx, bob, "alice"); err != nil {
		t.Fatalf("Follow() error = %v", err)
	}
	if err := env.users.Block(ctx, alice, "bobby"); err != nil {
		t.Fatalf("Block() error = %v", err)
	}
	if following, _ := env.store.Social().IsFollowing(ctx, bob.ID, alice.ID); following {
		t.Error("follow survived the block")
	}
	if err := env.users.Follow(ctx, bob, "alice"); !apperrors.IsCode(err, "FORBIDDEN") {
		t.Errorf("Follow(blocked) error = %v, want FORBIDDEN", err)
	}

	found, err := env.users.Search(ctx, alice, "BOB", 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(found) != 1 || found[0].Username != "bobcat" {
		t.Errorf("Search() = %+v, want only bobcat", found)
	}

	blocked, err := env.users.ListBlocked(ctx, alice)
	if err != nil || len(blocked) != 1 {
		t.Errorf("ListBlocked() = %+v, %v; want one", blocked, err)
	}
	if err := env.users.Unblock(ctx, alice, "bobby"); err != nil {
		t.Errorf("Unblock() error = %v", err)
	}
}
