package service

import (
	"context"
	"testing"

	"github.com/spec-kit/marketplace-service/internal/domain"
	apperrors "github.com/spec-kit/marketplace-service/pkg/util/errorutil"
)

func TestNotificationService_ReadState(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	owner := seedUser(t, env.store, "owner", domain.RoleUser)
	other := seedUser(t, env.store, "other", domain.RoleUser)

	first, err := env.notifications.Notify(ctx, owner.ID, domain.NotificationFollow, "first", nil)
	if err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if _, err := env.notifications.Notify(ctx, owner.ID, domain.NotificationFollow, "second", nil); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}

	if n, _ := env.notifications.UnreadCount(ctx, owner.ID); n != 2 {
		t.Fatalf("UnreadCount() = %d, want 2", n)
	}
	for i := 0; i < 2; i++ {
		if err := env.notifications.MarkRead(ctx, owner.ID, first.ID); err != nil {
			t.Fatalf("MarkRead() attempt %d error = %v", i+1, err)
		}
	}
	if n, _ := env.notifications.UnreadCount(ctx, owner.ID); n != 1 {
		t.Errorf("UnreadCount() after MarkRead = %d, want 1", n)
	}

	if err := env.notifications.MarkRead(ctx, other.ID, first.ID); !apperrors.IsCode(err, "NOT_FOUND") {
		t.Errorf("MarkRead(other user) error = %v, want NOT_FOUND", err)
	}
	if err := env.notifications.Delete(ctx, other.ID, first.ID); !apperrors.IsCode(err, "NOT_FOUND") {
		t.Errorf("Delete(other user) error = %v, want NOT_FOUND", err)
	}

	unread, err := env.notifications.List(ctx, owner.ID, true, 10, 0)
	if err != nil {
		t.Fatalf("List(unread) error = %v", err)
	}
	if len(unread) != 1 || unread[0].Content != "second" {
		t.Errorf("unread = %+v, want only second", unread)
	}

	changed, err := env.notifications.MarkAllRead(ctx, owner.ID)
	if err != nil || changed != 1 {
		t.Errorf("MarkAllRead() = %d, %v; want 1", changed, err)
	}
	if err := env.notifications.Delete(ctx, owner.ID, first.ID); err != nil {
		t.Errorf("Delete() error = %v", err)
	}
	if all := env.notificationsFor(t, owner.ID); len(all) != 1 {
		t.Errorf("remaining = %d, want 1", len(all))
	}
}

func TestNotificationService_OrderEvents(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	seller := seedUser(t, env.store, "seller", domain.RoleUser)
	buyer := seedUser(t, env.store, "buyer", domain.RoleUser)
	product := seedProduct(t, env, seller, 500, 3)

	orders, err := env.orders.Checkout(ctx, buyer, cart(product.ID, 1))
	if err != nil {
		t.Fatalf("Checkout() error = %v", err)
	}
	if notes := env.notificationsFor(t, seller.ID); len(notes) != 1 || notes[0].Type != domain.NotificationOrder {
		t.Fatalf("seller notifications = %+v, want one order notice", notes)
	}

	if _, err := env.orders.UpdateStatus(ctx, buyer, orders[0].ID, domain.OrderStatusCancelled); err != nil {
		t.Fatalf("UpdateStatus(cancel) error = %v", err)
	}
	if notes := env.notificationsFor(t, seller.ID); len(notes) != 2 {
		t.Errorf("seller notifications = %d, want 2 after buyer cancel", len(notes))
	}
	if notes := env.notificationsFor(t, buyer.ID); len(notes) != 0 {
		t.Errorf("buyer notifications = %d, want 0 for own actions", len(notes))
	}
}

func TestStringPreview(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"héllo wörld", 8, "héllo..."},
	}
	for _, tt := range tests {
		if got := stringPreview(tt.in, tt.max); got != tt.want {
			t.Errorf("stringPreview(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}
