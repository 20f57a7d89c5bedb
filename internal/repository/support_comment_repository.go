package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/marketplace-service/internal/domain"
)

// CommentRepository manages ticket comment threads.
type CommentRepository interface {
	Create(ctx context.Context, comment *domain.SupportComment) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.SupportComment, error)
}

type commentRepository struct {
	pool *pgxpool.Pool
}

// NewCommentRepository builds repository.
func NewCommentRepository(pool *pgxpool.Pool) CommentRepository {
	return &commentRepository{pool: pool}
}

func (r *commentRepository) Create(ctx context.Context, comment *domain.SupportComment) error {
	const query = `
        INSERT INTO support_comments (ticket_id, author_id, message)
        VALUES ($1,$2,$3)
        RETURNING id, created_at`
	if err := r.pool.QueryRow(ctx, query, comment.TicketID, comment.AuthorID, comment.Message).
		Scan(&comment.ID, &comment.CreatedAt); err != nil {
		return err
	}
	_, err := r.pool.Exec(ctx, `UPDATE support_tickets SET updated_at=NOW() WHERE id=$1`, comment.TicketID)
	return err
}

func (r *commentRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.SupportComment, error) {
	const query = `
        SELECT id, ticket_id, author_id, message, created_at
        FROM support_comments WHERE ticket_id=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.SupportComment
	for rows.Next() {
		var comment domain.SupportComment
		if err := rows.Scan(
			&comment.ID,
			&comment.TicketID,
			&comment.AuthorID,
			&comment.Message,
			&comment.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, comment)
	}
	return result, rows.Err()
}
