package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/marketplace-service/internal/domain"
)

// MessageRepository manages direct messages.
type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	ListConversation(ctx context.Context, userA, userB string, limit, offset int) ([]domain.Message, error)
	ListConversations(ctx context.Context, userID string) ([]domain.Conversation, error)
}

type messageRepository struct {
	pool *pgxpool.Pool
}

// NewMessageRepository builds repository.
func NewMessageRepository(pool *pgxpool.Pool) MessageRepository {
	return &messageRepository{pool: pool}
}

func (r *messageRepository) Create(ctx context.Context, msg *domain.Message) error {
	const query = `
        INSERT INTO messages (sender_id, receiver_id, content)
        VALUES ($1,$2,$3)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query, msg.SenderID, msg.ReceiverID, msg.Content).Scan(&msg.ID, &msg.CreatedAt)
}

// ListConversation returns the newest page of a thread in ascending order.
func (r *messageRepository) ListConversation(ctx context.Context, userA, userB string, limit, offset int) ([]domain.Message, error) {
	limit, offset = clampPage(limit, offset)
	const query = `
        SELECT id, sender_id, receiver_id, content, created_at FROM (
            SELECT id, sender_id, receiver_id, content, created_at
            FROM messages
            WHERE (sender_id=$1 AND receiver_id=$2) OR (sender_id=$2 AND receiver_id=$1)
            ORDER BY created_at DESC
            LIMIT $3 OFFSET $4
        ) page ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, userA, userB, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Message
	for rows.Next() {
		var msg domain.Message
		if err := rows.Scan(&msg.ID, &msg.SenderID, &msg.ReceiverID, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, msg)
	}
	return result, rows.Err()
}

// ListConversations returns the latest message per counterpart, newest first.
func (r *messageRepository) ListConversations(ctx context.Context, userID string) ([]domain.Conversation, error) {
	const query = `
        SELECT c.counterpart, u.username, u.avatar_url, c.id, c.sender_id, c.receiver_id, c.content, c.created_at
        FROM (
            SELECT DISTINCT ON (counterpart) *
            FROM (
                SELECT m.*, CASE WHEN m.sender_id=$1 THEN m.receiver_id ELSE m.sender_id END AS counterpart
                FROM messages m
                WHERE m.sender_id=$1 OR m.receiver_id=$1
            ) threads
            ORDER BY counterpart, created_at DESC
        ) c
        JOIN users u ON u.id = c.counterpart
        ORDER BY c.created_at DESC`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Conversation
	for rows.Next() {
		var conv domain.Conversation
		if err := rows.Scan(
			&conv.UserID,
			&conv.Username,
			&conv.AvatarURL,
			&conv.LastMessage.ID,
			&conv.LastMessage.SenderID,
			&conv.LastMessage.ReceiverID,
			&conv.LastMessage.Content,
			&conv.LastMessage.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, conv)
	}
	return result, rows.Err()
}
