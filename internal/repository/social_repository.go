package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/marketplace-service/internal/domain"
)

// SocialRepository manages follow and block relations.
type SocialRepository interface {
	Follow(ctx context.Context, followerID, followeeID string) (bool, error)
	Unfollow(ctx context.Context, followerID, followeeID string) error
	IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error)
	Followers(ctx context.Context, userID string, limit, offset int) ([]domain.UserSummary, error)
	Following(ctx context.Context, userID string, limit, offset int) ([]domain.UserSummary, error)
	Counts(ctx context.Context, userID string) (followers int, following int, err error)
	Block(ctx context.Context, blockerID, blockedID string) error
	Unblock(ctx context.Context, blockerID, blockedID string) error
	IsBlocked(ctx context.Context, blockerID, blockedID string) (bool, error)
	IsBlockedEither(ctx context.Context, userA, userB string) (bool, error)
	ListBlocked(ctx context.Context, blockerID string) ([]domain.UserSummary, error)
	SearchUsers(ctx context.Context, prefix, viewerID string, limit int) ([]domain.UserSummary, error)
}

type socialRepository struct {
	pool *pgxpool.Pool
}

// NewSocialRepository builds repository.
func NewSocialRepository(pool *pgxpool.Pool) SocialRepository {
	return &socialRepository{pool: pool}
}

// Follow reports whether a new relation was created.
func (r *socialRepository) Follow(ctx context.Context, followerID, followeeID string) (bool, error) {
	cmd, err := r.pool.Exec(ctx, `
        INSERT INTO follows (follower_id, followee_id) VALUES ($1,$2)
        ON CONFLICT DO NOTHING`, followerID, followeeID)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *socialRepository) Unfollow(ctx context.Context, followerID, followeeID string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM follows WHERE follower_id=$1 AND followee_id=$2`, followerID, followeeID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *socialRepository) IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM follows WHERE follower_id=$1 AND followee_id=$2)`,
		followerID, followeeID).Scan(&exists)
	return exists, err
}

func (r *socialRepository) Followers(ctx context.Context, userID string, limit, offset int) ([]domain.UserSummary, error) {
	limit, offset = clampPage(limit, offset)
	const query = `
        SELECT u.id, u.username, u.display_name, u.avatar_url
        FROM follows f JOIN users u ON u.id = f.follower_id
        WHERE f.followee_id=$1 AND NOT u.is_disabled
        ORDER BY f.created_at DESC LIMIT $2 OFFSET $3`
	return r.summaries(ctx, query, userID, limit, offset)
}

func (r *socialRepository) Following(ctx context.Context, userID string, limit, offset int) ([]domain.UserSummary, error) {
	limit, offset = clampPage(limit, offset)
	const query = `
        SELECT u.id, u.username, u.display_name, u.avatar_url
        FROM follows f JOIN users u ON u.id = f.followee_id
        WHERE f.follower_id=$1 AND NOT u.is_disabled
        ORDER BY f.created_at DESC LIMIT $2 OFFSET $3`
	return r.summaries(ctx, query, userID, limit, offset)
}

func (r *socialRepository) Counts(ctx context.Context, userID string) (int, int, error) {
	var followers, following int
	err := r.pool.QueryRow(ctx, `
        SELECT
            (SELECT COUNT(*) FROM follows WHERE followee_id=$1),
            (SELECT COUNT(*) FROM follows WHERE follower_id=$1)`, userID).Scan(&followers, &following)
	return followers, following, err
}

// Block records the relation and drops follows in both directions atomically.
func (r *socialRepository) Block(ctx context.Context, blockerID, blockedID string) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
            INSERT INTO blocks (blocker_id, blocked_id) VALUES ($1,$2)
            ON CONFLICT DO NOTHING`, blockerID, blockedID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
            DELETE FROM follows
            WHERE (follower_id=$1 AND followee_id=$2) OR (follower_id=$2 AND followee_id=$1)`,
			blockerID, blockedID)
		return err
	})
}

func (r *socialRepository) Unblock(ctx context.Context, blockerID, blockedID string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM blocks WHERE blocker_id=$1 AND blocked_id=$2`, blockerID, blockedID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *socialRepository) IsBlocked(ctx context.Context, blockerID, blockedID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM blocks WHERE blocker_id=$1 AND blocked_id=$2)`,
		blockerID, blockedID).Scan(&exists)
	return exists, err
}

func (r *socialRepository) IsBlockedEither(ctx context.Context, userA, userB string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
        SELECT EXISTS(
            SELECT 1 FROM blocks
            WHERE (blocker_id=$1 AND blocked_id=$2) OR (blocker_id=$2 AND blocked_id=$1))`,
		userA, userB).Scan(&exists)
	return exists, err
}

func (r *socialRepository) ListBlocked(ctx context.Context, blockerID string) ([]domain.UserSummary, error) {
	const query = `
        SELECT u.id, u.username, u.display_name, u.avatar_url
        FROM blocks b JOIN users u ON u.id = b.blocked_id
        WHERE b.blocker_id=$1
        ORDER BY b.created_at DESC`
	return r.summaries(ctx, query, blockerID)
}

// SearchUsers matches a case-insensitive username prefix, hiding disabled
// accounts and anyone in a block relation with the viewer.
func (r *socialRepository) SearchUsers(ctx context.Context, prefix, viewerID string, limit int) ([]domain.UserSummary, error) {
	limit, _ = clampPage(limit, 0)
	const query = `
        SELECT u.id, u.username, u.display_name, u.avatar_url
        FROM users u
        WHERE LOWER(u.username) LIKE $1 AND NOT u.is_disabled
          AND NOT EXISTS (
              SELECT 1 FROM blocks b
              WHERE (b.blocker_id=u.id AND b.blocked_id::text=$2) OR (b.blocked_id=u.id AND b.blocker_id::text=$2))
        ORDER BY LOWER(u.username) ASC
        LIMIT $3`
	return r.summaries(ctx, query, prefixPattern(prefix), viewerID, limit)
}

func (r *socialRepository) summaries(ctx context.Context, query string, args ...any) ([]domain.UserSummary, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.UserSummary
	for rows.Next() {
		var summary domain.UserSummary
		if err := rows.Scan(&summary.ID, &summary.Username, &summary.DisplayName, &summary.AvatarURL); err != nil {
			return nil, err
		}
		result = append(result, summary)
	}
	return result, rows.Err()
}
