package repotest

import (
	"context"
	"sort"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/marketplace-service/internal/domain"
	"github.com/spec-kit/marketplace-service/internal/repository"
)

// Notifications returns the notification repository view.
func (s *Store) Notifications() repository.NotificationRepository { return notificationRepo{s} }

// Messages returns the direct message repository view.
func (s *Store) Messages() repository.MessageRepository { return messageRepo{s} }

type notificationRepo struct{ s *Store }

func (r notificationRepo) Create(_ context.Context, n *domain.Notification) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	n.ID = newID()
	n.Read = false
	n.CreatedAt = s.now()
	cp := *n
	s.notifications[n.ID] = &cp
	return nil
}

func (r notificationRepo) ListByUser(_ context.Context, userID string, unreadOnly bool, limit, offset int) ([]domain.Notification, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Notification
	for _, n := range s.notifications {
		if n.UserID != userID || (unreadOnly && n.Read) {
			continue
		}
		out = append(out, *n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	from, to := page(len(out), limit, offset)
	return out[from:to], nil
}

func (r notificationRepo) CountUnread(_ context.Context, userID string) (int, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, n := range s.notifications {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}

func (r notificationRepo) MarkRead(_ context.Context, userID, id string) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok || n.UserID != userID {
		return pgx.ErrNoRows
	}
	n.Read = true
	return nil
}

func (r notificationRepo) MarkAllRead(_ context.Context, userID string) (int64, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var changed int64
	for _, n := range s.notifications {
		if n.UserID == userID && !n.Read {
			n.Read = true
			changed++
		}
	}
	return changed, nil
}

func (r notificationRepo) Delete(_ context.Context, userID, id string) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok || n.UserID != userID {
		return pgx.ErrNoRows
	}
	delete(s.notifications, id)
	return nil
}

type messageRepo struct{ s *Store }

func (r messageRepo) Create(_ context.Context, msg *domain.Message) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	msg.ID = newID()
	msg.CreatedAt = s.now()
	s.messages = append(s.messages, *msg)
	return nil
}

func (r messageRepo) ListConversation(_ context.Context, userA, userB string, limit, offset int) ([]domain.Message, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var thread []domain.Message
	for i := len(s.messages) - 1; i >= 0; i-- {
		m := s.messages[i]
		if (m.SenderID == userA && m.ReceiverID == userB) || (m.SenderID == userB && m.ReceiverID == userA) {
			thread = append(thread, m)
		}
	}
	from, to := page(len(thread), limit, offset)
	out := append([]domain.Message(nil), thread[from:to]...)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r messageRepo) ListConversations(_ context.Context, userID string) ([]domain.Conversation, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]bool{}
	var out []domain.Conversation
	for i := len(s.messages) - 1; i >= 0; i-- {
		m := s.messages[i]
		if m.SenderID != userID && m.ReceiverID != userID {
			continue
		}
		other := m.Counterpart(userID)
		if seen[other] {
			continue
		}
		seen[other] = true
		summary := s.summary(other)
		out = append(out, domain.Conversation{
			UserID:      other,
			Username:    summary.Username,
			AvatarURL:   summary.AvatarURL,
			LastMessage: m,
		})
	}
	return out, nil
}
