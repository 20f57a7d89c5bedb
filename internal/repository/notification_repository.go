package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/marketplace-service/internal/domain"
)

// NotificationRepository persists notifications; rows are owned by user_id.
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	ListByUser(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]domain.Notification, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, userID, id string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	Delete(ctx context.Context, userID, id string) error
}

type notificationRepository struct {
	pool *pgxpool.Pool
}

// NewNotificationRepository builds repository.
func NewNotificationRepository(pool *pgxpool.Pool) NotificationRepository {
	return &notificationRepository{pool: pool}
}

func (r *notificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	const query = `
        INSERT INTO notifications (user_id, type, content, link)
        VALUES ($1,$2,$3,$4)
        RETURNING id, is_read, created_at`
	return r.pool.QueryRow(ctx, query, n.UserID, n.Type, n.Content, n.Link).Scan(&n.ID, &n.Read, &n.CreatedAt)
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]domain.Notification, error) {
	limit, offset = clampPage(limit, offset)
	const query = `
        SELECT id, user_id, type, content, link, is_read, created_at
        FROM notifications
        WHERE user_id=$1 AND (NOT $2 OR NOT is_read)
        ORDER BY created_at DESC
        LIMIT $3 OFFSET $4`
	rows, err := r.pool.Query(ctx, query, userID, unreadOnly, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Content, &n.Link, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, rows.Err()
}

func (r *notificationRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id=$1 AND NOT is_read`, userID).Scan(&count)
	return count, err
}

// MarkRead is idempotent: an already-read row still matches and stays read.
func (r *notificationRepository) MarkRead(ctx context.Context, userID, id string) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE notifications SET is_read=TRUE WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	cmd, err := r.pool.Exec(ctx, `UPDATE notifications SET is_read=TRUE WHERE user_id=$1 AND NOT is_read`, userID)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *notificationRepository) Delete(ctx context.Context, userID, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM notifications WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
