package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/marketplace-service/internal/domain"
)

// TicketFilter captures listing parameters for every ticket scope.
type TicketFilter struct {
	CreatedBy  *string
	AssignedTo *string
	Unassigned bool
	PublicOnly bool
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	Category   *string
	SearchTerm *string
	Limit      int
	Offset     int
}

// TicketRepository encapsulates support ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.SupportTicket) error
	Update(ctx context.Context, ticket *domain.SupportTicket) error
	GetByID(ctx context.Context, id string) (*domain.SupportTicket, error)
	Exists(ctx context.Context, id string) (bool, error)
	Claim(ctx context.Context, id, assigneeID string) (*domain.SupportTicket, error)
	ForceAssign(ctx context.Context, id, assigneeID string) (*domain.SupportTicket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.SupportTicket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, subject, description, category, priority, status, created_by, assigned_to, is_public, created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.SupportTicket) error {
	const query = `
        INSERT INTO support_tickets (subject, description, category, priority, status, created_by, is_public)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.Subject,
		ticket.Description,
		ticket.Category,
		ticket.Priority,
		ticket.Status,
		ticket.CreatedBy,
		ticket.Public,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

// Update writes the editable fields. It only applies when the row is
// unchanged since it was read (matching updated_at), so an edit cannot undo
// a claim that landed in between; pgx.ErrNoRows signals a stale or missing row.
func (r *ticketRepository) Update(ctx context.Context, ticket *domain.SupportTicket) error {
	const query = `
        UPDATE support_tickets SET subject=$1, description=$2, category=$3, priority=$4, status=$5,
            assigned_to=$6, is_public=$7, updated_at=NOW()
        WHERE id=$8 AND updated_at=$9
        RETURNING updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.Subject,
		ticket.Description,
		ticket.Category,
		ticket.Priority,
		ticket.Status,
		ticket.AssignedTo,
		ticket.Public,
		ticket.ID,
		ticket.UpdatedAt,
	).Scan(&ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.SupportTicket, error) {
	query := `SELECT ` + ticketColumns + ` FROM support_tickets WHERE id=$1`
	return scanTicket(r.pool.QueryRow(ctx, query, id))
}

func (r *ticketRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM support_tickets WHERE id=$1)`, id).Scan(&exists)
	return exists, err
}

// Claim assigns the ticket only if nobody holds it. The check and the write
// are a single statement, so concurrent claims serialize on the row lock and
// exactly one of them sees assigned_to IS NULL. pgx.ErrNoRows means the
// ticket is missing or already taken.
func (r *ticketRepository) Claim(ctx context.Context, id, assigneeID string) (*domain.SupportTicket, error) {
	query := `
        UPDATE support_tickets SET assigned_to=$2, status='ASSIGNED', updated_at=NOW()
        WHERE id=$1 AND assigned_to IS NULL AND status <> 'CLOSED'
        RETURNING ` + ticketColumns
	return scanTicket(r.pool.QueryRow(ctx, query, id, assigneeID))
}

// ForceAssign overwrites any current assignee.
func (r *ticketRepository) ForceAssign(ctx context.Context, id, assigneeID string) (*domain.SupportTicket, error) {
	query := `
        UPDATE support_tickets SET assigned_to=$2, status='ASSIGNED', updated_at=NOW()
        WHERE id=$1
        RETURNING ` + ticketColumns
	return scanTicket(r.pool.QueryRow(ctx, query, id, assigneeID))
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.SupportTicket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.CreatedBy != nil {
		args = append(args, *filter.CreatedBy)
		clauses = append(clauses, fmt.Sprintf("created_by=$%d", len(args)))
	}
	if filter.AssignedTo != nil {
		args = append(args, *filter.AssignedTo)
		clauses = append(clauses, fmt.Sprintf("assigned_to=$%d", len(args)))
	}
	if filter.Unassigned {
		clauses = append(clauses, "assigned_to IS NULL")
	}
	if filter.PublicOnly {
		clauses = append(clauses, "is_public")
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Category != nil {
		args = append(args, *filter.Category)
		clauses = append(clauses, fmt.Sprintf("category=$%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		args = append(args, containsPattern(*filter.SearchTerm))
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(subject) LIKE %s OR LOWER(description) LIKE %s)", placeholder, placeholder))
	}

	limit, offset := clampPage(filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM support_tickets WHERE %s ORDER BY updated_at DESC LIMIT %d OFFSET %d`,
		ticketColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.SupportTicket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func scanTicket(row pgx.Row) (*domain.SupportTicket, error) {
	var ticket domain.SupportTicket
	if err := row.Scan(
		&ticket.ID,
		&ticket.Subject,
		&ticket.Description,
		&ticket.Category,
		&ticket.Priority,
		&ticket.Status,
		&ticket.CreatedBy,
		&ticket.AssignedTo,
		&ticket.Public,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}
