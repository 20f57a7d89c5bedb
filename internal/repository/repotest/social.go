package repotest

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/marketplace-service/internal/domain"
	"github.com/spec-kit/marketplace-service/internal/repository"
)

// Social returns the follow/block repository view.
func (s *Store) Social() repository.SocialRepository { return socialRepo{s} }

// AuditLogs returns the audit log repository view.
func (s *Store) AuditLogs() repository.AuditLogRepository { return auditRepo{s} }

// AuditEntries returns a copy of every recorded audit entry, oldest first.
func (s *Store) AuditEntries() []domain.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.AuditLog(nil), s.audit...)
}

type socialRepo struct{ s *Store }

func (r socialRepo) Follow(_ context.Context, followerID, followeeID string) (bool, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	key := [2]string{followerID, followeeID}
	if _, ok := s.follows[key]; ok {
		return false, nil
	}
	s.follows[key] = s.now()
	return true, nil
}

func (r socialRepo) Unfollow(_ context.Context, followerID, followeeID string) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	key := [2]string{followerID, followeeID}
	if _, ok := s.follows[key]; !ok {
		return pgx.ErrNoRows
	}
	delete(s.follows, key)
	return nil
}

func (r socialRepo) IsFollowing(_ context.Context, followerID, followeeID string) (bool, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.follows[[2]string{followerID, followeeID}]
	return ok, nil
}

// relations lists one side of a relation map, newest first.
func (s *Store) relations(rel map[[2]string]time.Time, match func(key [2]string) (string, bool)) []domain.UserSummary {
	type entry struct {
		id string
		at time.Time
	}
	var entries []entry
	for key, at := range rel {
		if id, ok := match(key); ok {
			entries = append(entries, entry{id, at})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].at.After(entries[j].at) })
	out := make([]domain.UserSummary, 0, len(entries))
	for _, e := range entries {
		out = append(out, s.summary(e.id))
	}
	return out
}

func (r socialRepo) Followers(_ context.Context, userID string, limit, offset int) ([]domain.UserSummary, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.relations(s.follows, func(key [2]string) (string, bool) { return key[0], key[1] == userID })
	from, to := page(len(out), limit, offset)
	return out[from:to], nil
}

func (r socialRepo) Following(_ context.Context, userID string, limit, offset int) ([]domain.UserSummary, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.relations(s.follows, func(key [2]string) (string, bool) { return key[1], key[0] == userID })
	from, to := page(len(out), limit, offset)
	return out[from:to], nil
}

func (r socialRepo) Counts(_ context.Context, userID string) (int, int, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var followers, following int
	for key := range s.follows {
		if key[1] == userID {
			followers++
		}
		if key[0] == userID {
			following++
		}
	}
	return followers, following, nil
}

func (r socialRepo) Block(_ context.Context, blockerID, blockedID string) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	key := [2]string{blockerID, blockedID}
	if _, ok := s.blocks[key]; !ok {
		s.blocks[key] = s.now()
	}
	delete(s.follows, [2]string{blockerID, blockedID})
	delete(s.follows, [2]string{blockedID, blockerID})
	return nil
}

func (r socialRepo) Unblock(_ context.Context, blockerID, blockedID string) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	key := [2]string{blockerID, blockedID}
	if _, ok := s.blocks[key]; !ok {
		return pgx.ErrNoRows
	}
	delete(s.blocks, key)
	return nil
}

func (r socialRepo) IsBlocked(_ context.Context, blockerID, blockedID string) (bool, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.blocks[[2]string{blockerID, blockedID}]
	return ok, nil
}

func (r socialRepo) IsBlockedEither(_ context.Context, userA, userB string) (bool, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blockedEither(userA, userB), nil
}

func (r socialRepo) ListBlocked(_ context.Context, blockerID string) ([]domain.UserSummary, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.relations(s.blocks, func(key [2]string) (string, bool) { return key[1], key[0] == blockerID }), nil
}

func (r socialRepo) SearchUsers(_ context.Context, prefix, viewerID string, limit int) ([]domain.UserSummary, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	var out []domain.UserSummary
	for _, u := range s.users {
		if u.Disabled || !strings.HasPrefix(strings.ToLower(u.Username), prefix) {
			continue
		}
		if viewerID != "" && s.blockedEither(u.ID, viewerID) {
			continue
		}
		out = append(out, s.summary(u.ID))
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i].Username) < strings.ToLower(out[j].Username) })
	_, to := page(len(out), limit, 0)
	return out[:to], nil
}

type auditRepo struct{ s *Store }

func (r auditRepo) Create(_ context.Context, entry *domain.AuditLog) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.ID = newID()
	entry.CreatedAt = s.now()
	s.audit = append(s.audit, *entry)
	return nil
}

func (r auditRepo) List(_ context.Context, filter repository.AuditFilter) ([]domain.AuditLog, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.AuditLog
	for i := len(s.audit) - 1; i >= 0; i-- {
		entry := s.audit[i]
		if filter.ActorID != nil && (entry.ActorID == nil || *entry.ActorID != *filter.ActorID) {
			continue
		}
		if filter.TargetType != nil && entry.TargetType != *filter.TargetType {
			continue
		}
		if filter.TargetID != nil && entry.TargetID != *filter.TargetID {
			continue
		}
		out = append(out, entry)
	}
	from, to := page(len(out), filter.Limit, filter.Offset)
	return out[from:to], nil
}
