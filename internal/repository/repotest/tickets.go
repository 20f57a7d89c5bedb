package repotest

import (
	"context"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/marketplace-service/internal/domain"
	"github.com/spec-kit/marketplace-service/internal/repository"
)

// Tickets returns the support ticket repository view.
func (s *Store) Tickets() repository.TicketRepository { return ticketRepo{s} }

// Comments returns the ticket comment repository view.
func (s *Store) Comments() repository.CommentRepository { return commentRepo{s} }

type ticketRepo struct{ s *Store }

func cloneTicket(t *domain.SupportTicket) *domain.SupportTicket {
	cp := *t
	if t.AssignedTo != nil {
		assignee := *t.AssignedTo
		cp.AssignedTo = &assignee
	}
	return &cp
}

func (r ticketRepo) Create(_ context.Context, ticket *domain.SupportTicket) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket.ID = newID()
	ticket.CreatedAt = s.now()
	ticket.UpdatedAt = ticket.CreatedAt
	s.tickets[ticket.ID] = cloneTicket(ticket)
	return nil
}

func (r ticketRepo) Update(_ context.Context, ticket *domain.SupportTicket) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.tickets[ticket.ID]
	if !ok || !existing.UpdatedAt.Equal(ticket.UpdatedAt) {
		return pgx.ErrNoRows
	}
	ticket.CreatedAt = existing.CreatedAt
	ticket.CreatedBy = existing.CreatedBy
	ticket.UpdatedAt = s.now()
	s.tickets[ticket.ID] = cloneTicket(ticket)
	return nil
}

func (r ticketRepo) GetByID(_ context.Context, id string) (*domain.SupportTicket, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return cloneTicket(t), nil
}

func (r ticketRepo) Exists(_ context.Context, id string) (bool, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tickets[id]
	return ok, nil
}

// Claim checks and writes under one lock, mirroring the conditional UPDATE.
func (r ticketRepo) Claim(_ context.Context, id, assigneeID string) (*domain.SupportTicket, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok || t.AssignedTo != nil || t.Status == domain.TicketStatusClosed {
		return nil, pgx.ErrNoRows
	}
	assignee := assigneeID
	t.AssignedTo = &assignee
	t.Status = domain.TicketStatusAssigned
	t.UpdatedAt = s.now()
	return cloneTicket(t), nil
}

func (r ticketRepo) ForceAssign(_ context.Context, id, assigneeID string) (*domain.SupportTicket, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	assignee := assigneeID
	t.AssignedTo = &assignee
	t.Status = domain.TicketStatusAssigned
	t.UpdatedAt = s.now()
	return cloneTicket(t), nil
}

func (r ticketRepo) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.SupportTicket, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.SupportTicket
	for _, t := range s.tickets {
		if filter.CreatedBy != nil && t.CreatedBy != *filter.CreatedBy {
			continue
		}
		if filter.AssignedTo != nil && (t.AssignedTo == nil || *t.AssignedTo != *filter.AssignedTo) {
			continue
		}
		if filter.Unassigned && t.AssignedTo != nil {
			continue
		}
		if filter.PublicOnly && !t.Public {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, t.Status) {
			continue
		}
		if len(filter.Priorities) > 0 && !containsPriority(filter.Priorities, t.Priority) {
			continue
		}
		if filter.Category != nil && t.Category != *filter.Category {
			continue
		}
		if filter.SearchTerm != nil {
			term := strings.ToLower(strings.TrimSpace(*filter.SearchTerm))
			if !strings.Contains(strings.ToLower(t.Subject), term) && !strings.Contains(strings.ToLower(t.Description), term) {
				continue
			}
		}
		out = append(out, *cloneTicket(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	from, to := page(len(out), filter.Limit, filter.Offset)
	return out[from:to], nil
}

func containsStatus(list []domain.TicketStatus, status domain.TicketStatus) bool {
	for _, candidate := range list {
		if candidate == status {
			return true
		}
	}
	return false
}

func containsPriority(list []domain.TicketPriority, priority domain.TicketPriority) bool {
	for _, candidate := range list {
		if candidate == priority {
			return true
		}
	}
	return false
}

type commentRepo struct{ s *Store }

func (r commentRepo) Create(_ context.Context, comment *domain.SupportComment) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	comment.ID = newID()
	comment.CreatedAt = s.now()
	s.comments = append(s.comments, *comment)
	if t, ok := s.tickets[comment.TicketID]; ok {
		t.UpdatedAt = comment.CreatedAt
	}
	return nil
}

func (r commentRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.SupportComment, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.SupportComment
	for _, c := range s.comments {
		if c.TicketID == ticketID {
			out = append(out, c)
		}
	}
	return out, nil
}
