package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/marketplace-service/internal/domain"
)

// AuditFilter narrows audit log listings.
type AuditFilter struct {
	ActorID    *string
	TargetType *string
	TargetID   *string
	Limit      int
	Offset     int
}

// AuditLogRepository stores audit entries.
type AuditLogRepository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
	List(ctx context.Context, filter AuditFilter) ([]domain.AuditLog, error)
}

type auditLogRepository struct {
	pool *pgxpool.Pool
}

// NewAuditLogRepository builds repository.
func NewAuditLogRepository(pool *pgxpool.Pool) AuditLogRepository {
	return &auditLogRepository{pool: pool}
}

func (r *auditLogRepository) Create(ctx context.Context, entry *domain.AuditLog) error {
	if entry.Metadata == nil {
		entry.Metadata = map[string]any{}
	}
	const query = `
        INSERT INTO audit_logs (actor_id, action, target_type, target_id, metadata)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		entry.ActorID,
		entry.Action,
		entry.TargetType,
		entry.TargetID,
		entry.Metadata,
	).Scan(&entry.ID, &entry.CreatedAt)
}

func (r *auditLogRepository) List(ctx context.Context, filter AuditFilter) ([]domain.AuditLog, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if filter.ActorID != nil {
		args = append(args, *filter.ActorID)
		clauses = append(clauses, fmt.Sprintf("actor_id=$%d", len(args)))
	}
	if filter.TargetType != nil {
		args = append(args, *filter.TargetType)
		clauses = append(clauses, fmt.Sprintf("target_type=$%d", len(args)))
	}
	if filter.TargetID != nil {
		args = append(args, *filter.TargetID)
		clauses = append(clauses, fmt.Sprintf("target_id=$%d", len(args)))
	}
	limit, offset := clampPage(filter.Limit, filter.Offset)
	query := fmt.Sprintf(`
        SELECT id, actor_id, action, target_type, target_id, metadata, created_at
        FROM audit_logs WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AuditLog
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(
			&entry.ID,
			&entry.ActorID,
			&entry.Action,
			&entry.TargetType,
			&entry.TargetID,
			&entry.Metadata,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
