// Package repotest provides in-memory repository implementations for tests.
// They honor the same contracts as the Postgres repositories, including
// pgx.ErrNoRows for missing rows and the single-winner claim.
package repotest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/marketplace-service/internal/domain"
	"github.com/spec-kit/marketplace-service/internal/repository"
)

// Store backs every fake repository with shared maps so cross-table rules
// (blocks hiding sellers, follows removed on block) behave as in SQL.
type Store struct {
	mu sync.Mutex

	users         map[string]*domain.User
	products      map[string]*domain.Product
	orders        map[string]*domain.Order
	messages      []domain.Message
	notifications map[string]*domain.Notification
	tickets       map[string]*domain.SupportTicket
	comments      []domain.SupportComment
	follows       map[[2]string]time.Time
	blocks        map[[2]string]time.Time
	audit         []domain.AuditLog

	clock time.Time
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		users:         map[string]*domain.User{},
		products:      map[string]*domain.Product{},
		orders:        map[string]*domain.Order{},
		notifications: map[string]*domain.Notification{},
		tickets:       map[string]*domain.SupportTicket{},
		follows:       map[[2]string]time.Time{},
		blocks:        map[[2]string]time.Time{},
		clock:         time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// now returns strictly increasing timestamps so ordering is deterministic.
func (s *Store) now() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func newID() string { return uuid.NewString() }

func page(n, limit, offset int) (int, int) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	if offset > n {
		offset = n
	}
	end := offset + limit
	if end > n {
		end = n
	}
	return offset, end
}

func (s *Store) blockedEither(a, b string) bool {
	_, ab := s.blocks[[2]string{a, b}]
	_, ba := s.blocks[[2]string{b, a}]
	return ab || ba
}

// Users returns the user repository view.
func (s *Store) Users() repository.UserRepository { return userRepo{s} }

type userRepo struct{ s *Store }

func (r userRepo) Create(_ context.Context, user *domain.User) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if domain.UsernameKey(existing.Username) == domain.UsernameKey(user.Username) ||
			domain.EmailKey(existing.Email) == domain.EmailKey(user.Email) {
			return repository.ErrDuplicate
		}
	}
	if user.ID == "" {
		user.ID = newID()
	}
	if user.Role == "" {
		user.Role = domain.RoleUser
	}
	user.CreatedAt = s.now()
	user.UpdatedAt = user.CreatedAt
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (r userRepo) UpdateProfile(_ context.Context, user *domain.User) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.users[user.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	existing.DisplayName = user.DisplayName
	existing.Bio = user.Bio
	existing.Location = user.Location
	existing.DOB = user.DOB
	existing.EmailVisible = user.EmailVisible
	existing.DOBVisible = user.DOBVisible
	existing.LocationVisible = user.LocationVisible
	existing.UpdatedAt = s.now()
	user.UpdatedAt = existing.UpdatedAt
	return nil
}

func (r userRepo) mutate(id string, fn func(u *domain.User)) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	fn(existing)
	existing.UpdatedAt = s.now()
	return nil
}

func (r userRepo) UpdateAvatar(_ context.Context, userID, avatarURL string) error {
	return r.mutate(userID, func(u *domain.User) { u.AvatarURL = avatarURL })
}

func (r userRepo) UpdateRole(_ context.Context, userID string, role domain.Role) error {
	return r.mutate(userID, func(u *domain.User) { u.Role = role })
}

func (r userRepo) SetDisabled(_ context.Context, userID string, disabled bool) error {
	return r.mutate(userID, func(u *domain.User) { u.Disabled = disabled })
}

func (r userRepo) find(match func(u *domain.User) bool) (*domain.User, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r userRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.ID == id })
}

func (r userRepo) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	key := domain.UsernameKey(username)
	return r.find(func(u *domain.User) bool { return domain.UsernameKey(u.Username) == key })
}

func (r userRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	key := domain.EmailKey(email)
	return r.find(func(u *domain.User) bool { return domain.EmailKey(u.Email) == key })
}

func (r userRepo) List(_ context.Context, filter repository.UserFilter) ([]domain.User, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	q := strings.ToLower(strings.TrimSpace(filter.Query))
	var out []domain.User
	for _, u := range s.users {
		if q != "" && !strings.HasPrefix(strings.ToLower(u.Username), q) && !strings.HasPrefix(strings.ToLower(u.Email), q) {
			continue
		}
		if filter.Role != nil && u.Role != *filter.Role {
			continue
		}
		if filter.Disabled != nil && u.Disabled != *filter.Disabled {
			continue
		}
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	from, to := page(len(out), filter.Limit, filter.Offset)
	return out[from:to], nil
}

func (s *Store) summary(id string) domain.UserSummary {
	u := s.users[id]
	if u == nil {
		return domain.UserSummary{ID: id}
	}
	return domain.UserSummary{ID: u.ID, Username: u.Username, DisplayName: u.DisplayName, AvatarURL: u.AvatarURL}
}
