package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-service/internal/domain"
	"github.com/spec-kit/marketplace-service/internal/events"
	"github.com/spec-kit/marketplace-service/internal/repository"
	apperrors "github.com/spec-kit/marketplace-service/pkg/util/errorutil"
)

const (
	maxTicketSubject     = 200
	maxTicketDescription = 5000
	maxCommentLength     = 5000
	defaultCategory      = "general"
)

// TicketScope selects which tickets a listing covers.
type TicketScope string

const (
	ScopeMine     TicketScope = "mine"
	ScopeAssigned TicketScope = "assigned"
	ScopeQueue    TicketScope = "queue"
	ScopePublic   TicketScope = "public"
	ScopeAll      TicketScope = "all"
)

// SupportService coordinates helpdesk tickets, claims and comments.
type SupportService struct {
	tickets    repository.TicketRepository
	comments   repository.CommentRepository
	users      repository.UserRepository
	audit      repository.AuditLogRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// SupportDependencies bundles repositories for the support service.
type SupportDependencies struct {
	TicketRepo  repository.TicketRepository
	CommentRepo repository.CommentRepository
	UserRepo    repository.UserRepository
	AuditRepo   repository.AuditLogRepository
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Subject     string
	Description string
	Category    string
	Priority    domain.TicketPriority
	Public      bool
}

// TicketUpdate carries editable ticket fields; nil leaves a field unchanged.
type TicketUpdate struct {
	Subject     *string
	Description *string
	Public      *bool
	Category    *string
	Priority    *domain.TicketPriority
	Status      *domain.TicketStatus
}

// TicketListFilter describes listing filters shared by every scope.
type TicketListFilter struct {
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	Category   *string
	SearchTerm *string
	Limit      int
	Offset     int
}

// TicketDetail is a ticket with its comment thread.
type TicketDetail struct {
	Ticket   *domain.SupportTicket
	Comments []domain.SupportComment
}

// NewSupportService constructs the service.
func NewSupportService(deps SupportDependencies) *SupportService {
	return &SupportService{
		tickets:    deps.TicketRepo,
		comments:   deps.CommentRepo,
		users:      deps.UserRepo,
		audit:      deps.AuditRepo,
		dispatcher: deps.Dispatcher,
		logger:     orNop(deps.Logger),
	}
}

// CreateTicket opens a ticket on behalf of actor.
func (s *SupportService) CreateTicket(ctx context.Context, actor *domain.User, input TicketCreateInput) (*domain.SupportTicket, error) {
	ticket := &domain.SupportTicket{
		Subject:     strings.TrimSpace(input.Subject),
		Description: strings.TrimSpace(input.Description),
		Category:    strings.TrimSpace(input.Category),
		Priority:    input.Priority,
		Status:      domain.TicketStatusOpen,
		CreatedBy:   actor.ID,
		Public:      input.Public,
	}
	if ticket.Category == "" {
		ticket.Category = defaultCategory
	}
	if ticket.Priority == "" {
		ticket.Priority = domain.TicketPriorityMedium
	}
	if err := validateTicket(ticket); err != nil {
		return nil, err
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	publishEvent(ctx, s.dispatcher, events.New(events.EventTicketCreated, actor.ID, ticket.ID, events.TicketCreatedPayload{
		Subject:   ticket.Subject,
		Category:  ticket.Category,
		Priority:  ticket.Priority,
		CreatedBy: ticket.CreatedBy,
	}))
	return ticket, nil
}

// GetTicket returns a ticket with comments if viewer may read it.
func (s *SupportService) GetTicket(ctx context.Context, viewer *domain.User, ticketID string) (*TicketDetail, error) {
	ticket, err := s.load(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !canView(viewer, ticket) {
		return nil, apperrors.NewForbidden("access denied")
	}
	comments, err := s.comments.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return &TicketDetail{Ticket: ticket, Comments: comments}, nil
}

// ListTickets lists one scope. queue and all are staff only.
func (s *SupportService) ListTickets(ctx context.Context, viewer *domain.User, scope TicketScope, filter TicketListFilter) ([]domain.SupportTicket, error) {
	repoFilter := repository.TicketFilter{
		Statuses:   filter.Statuses,
		Priorities: filter.Priorities,
		Category:   filter.Category,
		SearchTerm: filter.SearchTerm,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}
	switch scope {
	case ScopeMine, "":
		repoFilter.CreatedBy = &viewer.ID
	case ScopeAssigned:
		repoFilter.AssignedTo = &viewer.ID
	case ScopeQueue:
		if !viewer.Role.IsStaff() {
			return nil, apperrors.NewForbidden("support role required")
		}
		repoFilter.Unassigned = true
		repoFilter.Statuses = []domain.TicketStatus{domain.TicketStatusOpen}
	case ScopePublic:
		repoFilter.PublicOnly = true
	case ScopeAll:
		if !viewer.Role.IsStaff() {
			return nil, apperrors.NewForbidden("support role required")
		}
	default:
		return nil, apperrors.NewValidationError("unknown scope", map[string]any{"scope": scope})
	}
	tickets, err := s.tickets.ListWithFilter(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// AddComment appends a reply. The creator and staff may comment until the
// ticket is closed.
func (s *SupportService) AddComment(ctx context.Context, actor *domain.User, ticketID, message string) (*domain.SupportComment, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, apperrors.NewValidationError("message is required", map[string]any{"field": "message"})
	}
	if utf8.RuneCountInString(message) > maxCommentLength {
		return nil, apperrors.NewValidationError("message is too long", map[string]any{"field": "message", "max": maxCommentLength})
	}
	ticket, err := s.load(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.CreatedBy != actor.ID && !actor.Role.IsStaff() {
		return nil, apperrors.NewForbidden("access denied")
	}
	if ticket.Status.Terminal() {
		return nil, apperrors.NewConflict("ticket is closed", map[string]any{"ticket_id": ticketID})
	}

	comment := &domain.SupportComment{TicketID: ticket.ID, AuthorID: actor.ID, Message: message}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, apperrors.MapError(err)
	}
	publishEvent(ctx, s.dispatcher, events.New(events.EventTicketCommented, actor.ID, ticket.ID, events.TicketCommentedPayload{
		Subject:    ticket.Subject,
		CreatedBy:  ticket.CreatedBy,
		AssignedTo: ticket.AssignedTo,
		CommentID:  comment.ID,
		Preview:    stringPreview(comment.Message, 120),
	}))
	return comment, nil
}

// ClaimTicket assigns an unassigned ticket to actor. Concurrent claims race on
// a single conditional update: one wins and the rest get a conflict.
func (s *SupportService) ClaimTicket(ctx context.Context, actor *domain.User, ticketID string) (*domain.SupportTicket, error) {
	if actor == nil || !actor.Role.IsStaff() {
		return nil, apperrors.NewForbidden("support role required")
	}
	ticket, err := s.tickets.Claim(ctx, ticketID, actor.ID)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.MapError(err)
		}
		exists, existsErr := s.tickets.Exists(ctx, ticketID)
		if existsErr != nil {
			return nil, apperrors.MapError(existsErr)
		}
		if !exists {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.NewConflict("ticket already assigned", map[string]any{"ticket_id": ticketID})
	}

	recordAudit(ctx, s.audit, s.logger, &domain.AuditLog{
		ActorID:    actorRef(actor),
		Action:     domain.AuditTicketClaimed,
		TargetType: "support_ticket",
		TargetID:   ticket.ID,
	})
	publishEvent(ctx, s.dispatcher, events.New(events.EventTicketAssigned, actor.ID, ticket.ID, events.TicketAssignedPayload{
		Subject:    ticket.Subject,
		CreatedBy:  ticket.CreatedBy,
		AssigneeID: actor.ID,
	}))
	return ticket, nil
}

// ForceAssign hands a ticket to assigneeID regardless of its current holder.
func (s *SupportService) ForceAssign(ctx context.Context, actor *domain.User, ticketID, assigneeID string) (*domain.SupportTicket, error) {
	if actor == nil || !actor.Role.IsAdmin() {
		return nil, apperrors.NewForbidden("admin role required")
	}
	assignee, err := s.users.GetByID(ctx, assigneeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewValidationError("assignee not found", map[string]any{"assignee_id": assigneeID})
		}
		return nil, apperrors.MapError(err)
	}
	if !assignee.Role.IsStaff() || assignee.Disabled {
		return nil, apperrors.NewValidationError("assignee must be an active support, admin or owner account",
			map[string]any{"assignee_id": assigneeID})
	}

	current, err := s.load(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if current.Status.Terminal() {
		return nil, apperrors.NewConflict("ticket is closed", map[string]any{"ticket_id": ticketID})
	}
	ticket, err := s.tickets.ForceAssign(ctx, ticketID, assignee.ID)
	if err != nil {
		return nil, lookupError(err, "ticket", map[string]any{"ticket_id": ticketID})
	}

	meta := map[string]any{"assignee_id": assignee.ID}
	if current.AssignedTo != nil {
		meta["previous_assignee_id"] = *current.AssignedTo
	}
	recordAudit(ctx, s.audit, s.logger, &domain.AuditLog{
		ActorID:    actorRef(actor),
		Action:     domain.AuditTicketAssigned,
		TargetType: "support_ticket",
		TargetID:   ticket.ID,
		Metadata:   meta,
	})
	publishEvent(ctx, s.dispatcher, events.New(events.EventTicketAssigned, actor.ID, ticket.ID, events.TicketAssignedPayload{
		Subject:    ticket.Subject,
		CreatedBy:  ticket.CreatedBy,
		AssigneeID: assignee.ID,
		Previous:   current.AssignedTo,
		Forced:     true,
	}))
	return ticket, nil
}

// UpdateTicket applies an edit. The creator may change subject, description
// and visibility while the ticket is OPEN; staff may change category,
// priority and status. Status follows domain.TicketStatus.CanTransition.
func (s *SupportService) UpdateTicket(ctx context.Context, actor *domain.User, ticketID string, update TicketUpdate) (*domain.SupportTicket, error) {
	ticket, err := s.load(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	isCreator := ticket.CreatedBy == actor.ID
	isStaff := actor.Role.IsStaff()
	if !isCreator && !isStaff {
		return nil, apperrors.NewForbidden("access denied")
	}
	if ticket.Status.Terminal() {
		return nil, apperrors.NewConflict("ticket is closed", map[string]any{"ticket_id": ticketID})
	}

	if update.Subject != nil || update.Description != nil || update.Public != nil {
		if !isCreator {
			return nil, apperrors.NewForbidden("only the creator may edit the ticket content")
		}
		if ticket.Status != domain.TicketStatusOpen {
			return nil, apperrors.NewConflict("ticket content can only be edited while open", nil)
		}
		if update.Subject != nil {
			ticket.Subject = strings.TrimSpace(*update.Subject)
		}
		if update.Description != nil {
			ticket.Description = strings.TrimSpace(*update.Description)
		}
		if update.Public != nil {
			ticket.Public = *update.Public
		}
	}

	if update.Category != nil || update.Priority != nil || update.Status != nil {
		if !isStaff {
			return nil, apperrors.NewForbidden("support role required")
		}
		if update.Category != nil {
			ticket.Category = strings.TrimSpace(*update.Category)
			if ticket.Category == "" {
				ticket.Category = defaultCategory
			}
		}
		if update.Priority != nil {
			ticket.Priority = *update.Priority
		}
	}

	oldStatus := ticket.Status
	if update.Status != nil && *update.Status != oldStatus {
		next := *update.Status
		if !next.Valid() {
			return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": next})
		}
		if !oldStatus.CanTransition(next) {
			return nil, apperrors.NewValidationError("invalid status transition",
				map[string]any{"from": oldStatus, "to": next})
		}
		switch next {
		case domain.TicketStatusOpen:
			ticket.AssignedTo = nil
		case domain.TicketStatusAssigned:
			if ticket.AssignedTo == nil {
				return nil, apperrors.NewValidationError("ticket has no assignee to reopen with", nil)
			}
		}
		ticket.Status = next
	}

	if err := validateTicket(ticket); err != nil {
		return nil, err
	}
	if err := s.tickets.Update(ctx, ticket); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewConflict("ticket was modified concurrently, reload and retry",
				map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}

	if ticket.Status != oldStatus {
		recordAudit(ctx, s.audit, s.logger, &domain.AuditLog{
			ActorID:    actorRef(actor),
			Action:     domain.AuditTicketStatus,
			TargetType: "support_ticket",
			TargetID:   ticket.ID,
			Metadata:   map[string]any{"old_status": oldStatus, "new_status": ticket.Status},
		})
		publishEvent(ctx, s.dispatcher, events.New(events.EventTicketStatusChanged, actor.ID, ticket.ID, events.TicketStatusChangedPayload{
			Subject:   ticket.Subject,
			CreatedBy: ticket.CreatedBy,
			OldStatus: oldStatus,
			NewStatus: ticket.Status,
		}))
	}
	return ticket, nil
}

func (s *SupportService) load(ctx context.Context, ticketID string) (*domain.SupportTicket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, lookupError(err, "ticket", map[string]any{"ticket_id": ticketID})
	}
	return ticket, nil
}

func canView(viewer *domain.User, ticket *domain.SupportTicket) bool {
	if ticket.Public {
		return true
	}
	if viewer == nil {
		return false
	}
	return ticket.CreatedBy == viewer.ID || viewer.Role.IsStaff()
}

func validateTicket(t *domain.SupportTicket) error {
	switch {
	case t.Subject == "":
		return apperrors.NewValidationError("subject is required", map[string]any{"field": "subject"})
	case utf8.RuneCountInString(t.Subject) > maxTicketSubject:
		return apperrors.NewValidationError("subject is too long", map[string]any{"field": "subject", "max": maxTicketSubject})
	case t.Description == "":
		return apperrors.NewValidationError("description is required", map[string]any{"field": "description"})
	case utf8.RuneCountInString(t.Description) > maxTicketDescription:
		return apperrors.NewValidationError("description is too long", map[string]any{"field": "description", "max": maxTicketDescription})
	case !t.Priority.Valid():
		return apperrors.NewValidationError("unknown priority", map[string]any{"priority": t.Priority})
	}
	return nil
}
