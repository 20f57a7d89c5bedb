package service

import (
	"context"
	"errors"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-service/internal/domain"
	"github.com/spec-kit/marketplace-service/internal/events"
	"github.com/spec-kit/marketplace-service/internal/repository"
	apperrors "github.com/spec-kit/marketplace-service/pkg/util/errorutil"
)

var errNoAvatarStore = errors.New("avatar storage is not configured")

// lookupError maps a repository read failure to a 404 for missing rows.
func lookupError(err error, resource string, details map[string]any) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound(resource, details)
	}
	return apperrors.MapError(err)
}

func publishEvent(ctx context.Context, dispatcher events.Dispatcher, event events.Event) {
	if dispatcher == nil {
		return
	}
	_ = dispatcher.Publish(ctx, event)
}

// recordAudit writes an audit entry. Failures are logged; the audited action
// already happened and is not rolled back.
func recordAudit(ctx context.Context, repo repository.AuditLogRepository, logger *zap.Logger, entry *domain.AuditLog) {
	if repo == nil {
		return
	}
	if err := repo.Create(ctx, entry); err != nil && logger != nil {
		logger.Error("audit write failed",
			zap.String("action", string(entry.Action)),
			zap.String("target_id", entry.TargetID),
			zap.Error(err))
	}
}

func actorRef(user *domain.User) *string {
	if user == nil {
		return nil
	}
	id := user.ID
	return &id
}

func stringPreview(body string, max int) string {
	if utf8.RuneCountInString(body) <= max {
		return body
	}
	runes := []rune(body)
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

func orNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
