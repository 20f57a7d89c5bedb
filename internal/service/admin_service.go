package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-service/internal/domain"
	"github.com/spec-kit/marketplace-service/internal/repository"
	apperrors "github.com/spec-kit/marketplace-service/pkg/util/errorutil"
)

// AdminService covers account administration and the audit trail.
type AdminService struct {
	users  repository.UserRepository
	audit  repository.AuditLogRepository
	logger *zap.Logger
}

// AdminDependencies bundles repositories for the admin service.
type AdminDependencies struct {
	UserRepo  repository.UserRepository
	AuditRepo repository.AuditLogRepository
	Logger    *zap.Logger
}

// NewAdminService creates the service.
func NewAdminService(deps AdminDependencies) *AdminService {
	return &AdminService{
		users:  deps.UserRepo,
		audit:  deps.AuditRepo,
		logger: orNop(deps.Logger),
	}
}

// ListUsers searches accounts.
func (s *AdminService) ListUsers(ctx context.Context, filter repository.UserFilter) ([]domain.User, error) {
	users, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return users, nil
}

// ChangeRole updates target's role. ADMIN may hand out USER and SUPPORT;
// only OWNER may grant or revoke ADMIN. OWNER is never granted here.
func (s *AdminService) ChangeRole(ctx context.Context, actor *domain.User, targetID string, role domain.Role) (*domain.User, error) {
	if actor == nil || !actor.Role.IsAdmin() {
		return nil, apperrors.NewForbidden("admin role required")
	}
	if !role.Valid() {
		return nil, apperrors.NewValidationError("unknown role", map[string]any{"role": role})
	}
	if role == domain.RoleOwner {
		return nil, apperrors.NewForbidden("owner role can only be granted from the command line")
	}
	target, err := s.loadTarget(ctx, actor, targetID)
	if err != nil {
		return nil, err
	}
	if (role == domain.RoleAdmin || target.Role == domain.RoleAdmin) && actor.Role != domain.RoleOwner {
		return nil, apperrors.NewForbidden("only the owner may grant or revoke admin")
	}
	if target.Role == role {
		return target, nil
	}

	oldRole := target.Role
	if err := s.users.UpdateRole(ctx, target.ID, role); err != nil {
		return nil, lookupError(err, "user", map[string]any{"user_id": targetID})
	}
	target.Role = role
	recordAudit(ctx, s.audit, s.logger, &domain.AuditLog{
		ActorID:    actorRef(actor),
		Action:     domain.AuditRoleChanged,
		TargetType: "user",
		TargetID:   target.ID,
		Metadata:   map[string]any{"old_role": oldRole, "new_role": role},
	})
	return target, nil
}

// SetDisabled disables or re-enables an account. Disabled users cannot log in
// and existing tokens stop working on the next request.
func (s *AdminService) SetDisabled(ctx context.Context, actor *domain.User, targetID string, disabled bool) (*domain.User, error) {
	if actor == nil || !actor.Role.IsAdmin() {
		return nil, apperrors.NewForbidden("admin role required")
	}
	target, err := s.loadTarget(ctx, actor, targetID)
	if err != nil {
		return nil, err
	}
	if target.Role == domain.RoleAdmin && actor.Role != domain.RoleOwner {
		return nil, apperrors.NewForbidden("only the owner may disable an admin")
	}
	if target.Disabled == disabled {
		return target, nil
	}
	if err := s.users.SetDisabled(ctx, target.ID, disabled); err != nil {
		return nil, lookupError(err, "user", map[string]any{"user_id": targetID})
	}
	target.Disabled = disabled

	action := domain.AuditUserEnabled
	if disabled {
		action = domain.AuditUserDisabled
	}
	recordAudit(ctx, s.audit, s.logger, &domain.AuditLog{
		ActorID:    actorRef(actor),
		Action:     action,
		TargetType: "user",
		TargetID:   target.ID,
	})
	return target, nil
}

func (s *AdminService) loadTarget(ctx context.Context, actor *domain.User, targetID string) (*domain.User, error) {
	if actor.ID == targetID {
		return nil, apperrors.NewForbidden("cannot change your own account")
	}
	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return nil, lookupError(err, "user", map[string]any{"user_id": targetID})
	}
	if target.Role == domain.RoleOwner {
		return nil, apperrors.NewForbidden("owner accounts cannot be changed")
	}
	return target, nil
}

// ListAuditLogs returns audit entries newest first.
func (s *AdminService) ListAuditLogs(ctx context.Context, filter repository.AuditFilter) ([]domain.AuditLog, error) {
	entries, err := s.audit.List(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

// GrantOwner promotes an existing account to OWNER. It is reachable only from
// the command line.
func (s *AdminService) GrantOwner(ctx context.Context, username string) (*domain.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"username": username})
		}
		return nil, apperrors.MapError(err)
	}
	if user.Role == domain.RoleOwner {
		return user, nil
	}
	oldRole := user.Role
	if err := s.users.UpdateRole(ctx, user.ID, domain.RoleOwner); err != nil {
		return nil, apperrors.MapError(err)
	}
	user.Role = domain.RoleOwner
	recordAudit(ctx, s.audit, s.logger, &domain.AuditLog{
		Action:     domain.AuditOwnerGranted,
		TargetType: "user",
		TargetID:   user.ID,
		Metadata:   map[string]any{"old_role": oldRole},
	})
	return user, nil
}
