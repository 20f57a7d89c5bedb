package service

import (
	"context"
	"sync"
	"testing"

	"github.com/spec-kit/marketplace-service/internal/domain"
	"github.com/spec-kit/marketplace-service/internal/events"
	"github.com/spec-kit/marketplace-service/internal/repository/repotest"
)

type emitted struct {
	userID string
	event  string
	data   any
}

type recordingEmitter struct {
	mu     sync.Mutex
	frames []emitted
}

func (r *recordingEmitter) EmitToUser(_ context.Context, userID, event string, data any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, emitted{userID: userID, event: event, data: data})
	return nil
}

func (r *recordingEmitter) count(userID, event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, f := range r.frames {
		if f.userID == userID && f.event == event {
			n++
		}
	}
	return n
}

func seedUser(t *testing.T, store *repotest.Store, username string, role domain.Role) *domain.User {
	t.Helper()
	user := &domain.User{
		Username:    username,
		Email:       username + "@example.com",
		Role:        role,
		DisplayName: username,
	}
	if err := store.Users().Create(context.Background(), user); err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
	return user
}

// testEnv wires services over one in-memory store the way the server does.
type testEnv struct {
	store         *repotest.Store
	dispatcher    events.Dispatcher
	emitter       *recordingEmitter
	notifications *NotificationService
	support       *SupportService
	messages      *MessageService
	users         *UserService
	orders        *OrderService
	inventory     *InventoryService
	admin         *AdminService
}

func newTestEnv() *testEnv {
	store := repotest.NewStore()
	dispatcher := events.NewInMemoryDispatcher(nil)
	emitter := &recordingEmitter{}
	notifications := NewNotificationService(NotificationDependencies{
		NotificationRepo: store.Notifications(),
		Dispatcher:       dispatcher,
		Emitter:          emitter,
	})
	notifications.RegisterHandlers()
	return &testEnv{
		store:         store,
		dispatcher:    dispatcher,
		emitter:       emitter,
		notifications: notifications,
		support: NewSupportService(SupportDependencies{
			TicketRepo:  store.Tickets(),
			CommentRepo: store.Comments(),
			UserRepo:    store.Users(),
			AuditRepo:   store.AuditLogs(),
			Dispatcher:  dispatcher,
		}),
		messages: NewMessageService(MessageDependencies{
			UserRepo:    store.Users(),
			MessageRepo: store.Messages(),
			SocialRepo:  store.Social(),
			Notifier:    notifications,
			Emitter:     emitter,
		}),
		users: NewUserService(UserDependencies{
			UserRepo:   store.Users(),
			SocialRepo: store.Social(),
			Dispatcher: dispatcher,
		}),
		orders: NewOrderService(OrderDependencies{
			OrderRepo:   store.Orders(),
			ProductRepo: store.Products(),
			AuditRepo:   store.AuditLogs(),
			Dispatcher:  dispatcher,
		}),
		inventory: NewInventoryService(InventoryDependencies{
			ProductRepo: store.Products(),
			SocialRepo:  store.Social(),
			AuditRepo:   store.AuditLogs(),
		}),
		admin: NewAdminService(AdminDependencies{
			UserRepo:  store.Users(),
			AuditRepo: store.AuditLogs(),
		}),
	}
}

func (e *testEnv) notificationsFor(t *testing.T, userID string) []domain.Notification {
	t.Helper()
	list, err := e.notifications.List(context.Background(), userID, false, 100, 0)
	if err != nil {
		t.Fatalf("List notifications: %v", err)
	}
	return list
}
