package service

import (
	"context"
	"strings"
	"testing"

	"github.com/spec-kit/marketplace-service/internal/domain"
	"github.com/spec-kit/marketplace-service/internal/realtime"
	apperrors "github.com/spec-kit/marketplace-service/pkg/util/errorutil"
)

func TestSendMessage_DeliversAndNotifies(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	alice := seedUser(t, env.store, "alice", domain.RoleUser)
	bob := seedUser(t, env.store, "bob", domain.RoleUser)

	msg, err := env.messages.SendMessage(ctx, alice, bob.ID, "  hello bob  ")
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if msg.Content != "hello bob" || msg.SenderID != alice.ID || msg.ReceiverID != bob.ID {
		t.Errorf("message = %+v, want trimmed alice->bob", msg)
	}

	if got := env.emitter.count(bob.ID, realtime.EventReceiveMessage); got != 1 {
		t.Errorf("receiver receive_message frames = %d, want 1", got)
	}
	if got := env.emitter.count(alice.ID, realtime.EventReceiveMessage); got != 1 {
		t.Errorf("sender receive_message frames = %d, want 1", got)
	}
	if got := env.emitter.count(bob.ID, realtime.EventNotification); got != 1 {
		t.Errorf("receiver notification frames = %d, want 1", got)
	}
	if got := env.emitter.count(alice.ID, realtime.EventNotification); got != 0 {
		t.Errorf("sender notification frames = %d, want 0", got)
	}

	notes := env.notificationsFor(t, bob.ID)
	if len(notes) != 1 {
		t.Fatalf("notifications = %d, want 1", len(notes))
	}
	if notes[0].Type != domain.NotificationMessage || notes[0].Read {
		t.Errorf("notification = %+v, want unread message", notes[0])
	}
	if notes[0].Link == nil || *notes[0].Link != "/messages/"+alice.ID {
		t.Errorf("link = %v, want conversation link", notes[0].Link)
	}

	thread, err := env.messages.Conversation(ctx, bob, alice.ID, 50, 0)
	if err != nil {
		t.Fatalf("Conversation() error = %v", err)
	}
	if len(thread) != 1 || thread[0].ID != msg.ID {
		t.Errorf("thread = %+v, want the sent message", thread)
	}
}

func TestSendMessage_Rejections(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	alice := seedUser(t, env.store, "alice", domain.RoleUser)
	bob := seedUser(t, env.store, "bob", domain.RoleUser)
	carol := seedUser(t, env.store, "carol", domain.RoleUser)
	gone := seedUser(t, env.store, "gone", domain.RoleUser)
	if err := env.store.Users().SetDisabled(ctx, gone.ID, true); err != nil {
		t.Fatalf("SetDisabled() error = %v", err)
	}
	if err := env.users.Block(ctx, carol, "alice"); err != nil {
		t.Fatalf("Block() error = %v", err)
	}

	tests := []struct {
		name     string
		receiver string
		content  string
		wantCode string
	}{
		{"empty", bob.ID, "   ", "VALIDATION_FAILED"},
		{"too long", bob.ID, strings.Repeat("é", MaxMessageLength+1), "VALIDATION_FAILED"},
		{"self", alice.ID, "hi me", "VALIDATION_FAILED"},
		{"unknown receiver", "00000000-0000-0000-0000-000000000000", "hi", "NOT_FOUND"},
		{"disabled receiver", gone.ID, "hi", "NOT_FOUND"},
		{"blocked", carol.ID, "hi", "FORBIDDEN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.messages.SendMessage(ctx, alice, tt.receiver, tt.content)
			if !apperrors.IsCode(err, tt.wantCode) {
				t.Errorf("SendMessage() error = %v, want %s", err, tt.wantCode)
			}
		})
	}

	if _, err := env.messages.SendMessage(ctx, alice, bob.ID, strings.Repeat("é", MaxMessageLength)); err != nil {
		t.Errorf("SendMessage(max length) error = %v", err)
	}
	if n := len(env.notificationsFor(t, carol.ID)); n != 0 {
		t.Errorf("blocked receiver notifications = %d, want 0", n)
	}
}

func TestConversations_LatestFirst(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	alice := seedUser(t, env.store, "alice", domain.RoleUser)
	bob := seedUser(t, env.store, "bob", domain.RoleUser)
	carol := seedUser(t, env.store, "carol", domain.RoleUser)

	for _, step := range []struct {
		from, to *domain.User
		text     string
	}{
		{alice, bob, "one"},
		{alice, carol, "two"},
		{bob, alice, "three"},
	} {
		if _, err := env.messages.SendMessage(ctx, step.from, step.to.ID, step.text); err != nil {
			t.Fatalf("SendMessage(%s) error = %v", step.text, err)
		}
	}

	convs, err := env.messages.Conversations(ctx, alice)
	if err != nil {
		t.Fatalf("Conversations() error = %v", err)
	}
	if len(convs) != 2 {
		t.Fatalf("conversations = %d, want 2", len(convs))
	}
	if convs[0].UserID != bob.ID || convs[0].LastMessage.Content != "three" {
		t.Errorf("first conversation = %+v, want bob with last message three", convs[0])
	}
	if convs[1].UserID != carol.ID {
		t.Errorf("second conversation = %+v, want carol", convs[1])
	}
}
