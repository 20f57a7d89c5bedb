package service

import (
	"context"
	"strings"

	"github.com/spec-kit/marketplace-service/internal/domain"
	"github.com/spec-kit/marketplace-service/internal/events"
	"github.com/spec-kit/marketplace-service/internal/repository"
	apperrors "github.com/spec-kit/marketplace-service/pkg/util/errorutil"
)

// UserService covers user search and the follow/block graph.
type UserService struct {
	users      repository.UserRepository
	social     repository.SocialRepository
	dispatcher events.Dispatcher
}

// UserDependencies bundles collaborators for the user service.
type UserDependencies struct {
	UserRepo   repository.UserRepository
	SocialRepo repository.SocialRepository
	Dispatcher events.Dispatcher
}

// NewUserService creates the service.
func NewUserService(deps UserDependencies) *UserService {
	return &UserService{
		users:      deps.UserRepo,
		social:     deps.SocialRepo,
		dispatcher: deps.Dispatcher,
	}
}

// Search finds users by username prefix.
func (s *UserService) Search(ctx context.Context, viewer *domain.User, query string, limit int) ([]domain.UserSummary, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperrors.NewValidationError("query is required", map[string]any{"field": "q"})
	}
	viewerID := ""
	if viewer != nil {
		viewerID = viewer.ID
	}
	users, err := s.social.SearchUsers(ctx, query, viewerID, limit)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return users, nil
}

// Follow makes actor follow username. Following twice is a no-op.
func (s *UserService) Follow(ctx context.Context, actor *domain.User, username string) error {
	target, err := s.target(ctx, actor, username)
	if err != nil {
		return err
	}
	blocked, err := s.social.IsBlockedEither(ctx, actor.ID, target.ID)
	if err != nil {
		return apperrors.MapError(err)
	}
	if blocked {
		return apperrors.NewForbidden("cannot follow this user")
	}
	created, err := s.social.Follow(ctx, actor.ID, target.ID)
	if err != nil {
		return apperrors.MapError(err)
	}
	if created {
		publishEvent(ctx, s.dispatcher, events.New(events.EventUserFollowed, actor.ID, target.ID, events.UserFollowedPayload{
			FollowerUsername: actor.Username,
			FolloweeID:       target.ID,
		}))
	}
	return nil
}

// Unfollow removes the follow relation.
func (s *UserService) Unfollow(ctx context.Context, actor *domain.User, username string) error {
	target, err := s.target(ctx, actor, username)
	if err != nil {
		return err
	}
	if err := s.social.Unfollow(ctx, actor.ID, target.ID); err != nil {
		return lookupError(err, "follow", map[string]any{"username": username})
	}
	return nil
}

// Followers lists who follows username.
func (s *UserService) Followers(ctx context.Context, username string, limit, offset int) ([]domain.UserSummary, error) {
	user, err := s.lookup(ctx, username)
	if err != nil {
		return nil, err
	}
	list, err := s.social.Followers(ctx, user.ID, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return list, nil
}

// Following lists who username follows.
func (s *UserService) Following(ctx context.Context, username string, limit, offset int) ([]domain.UserSummary, error) {
	user, err := s.lookup(ctx, username)
	if err != nil {
		return nil, err
	}
	list, err := s.social.Following(ctx, user.ID, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return list, nil
}

// Block blocks username and drops follows in both directions.
func (s *UserService) Block(ctx context.Context, actor *domain.User, username string) error {
	target, err := s.target(ctx, actor, username)
	if err != nil {
		return err
	}
	if err := s.social.Block(ctx, actor.ID, target.ID); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

// Unblock removes a block placed by actor.
func (s *UserService) Unblock(ctx context.Context, actor *domain.User, username string) error {
	target, err := s.target(ctx, actor, username)
	if err != nil {
		return err
	}
	if err := s.social.Unblock(ctx, actor.ID, target.ID); err != nil {
		return lookupError(err, "block", map[string]any{"username": username})
	}
	return nil
}

// ListBlocked lists users blocked by actor.
func (s *UserService) ListBlocked(ctx context.Context, actor *domain.User) ([]domain.UserSummary, error) {
	list, err := s.social.ListBlocked(ctx, actor.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return list, nil
}

func (s *UserService) lookup(ctx context.Context, username string) (*domain.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, lookupError(err, "user", map[string]any{"username": username})
	}
	if user.Disabled {
		return nil, apperrors.NewNotFound("user", map[string]any{"username": username})
	}
	return user, nil
}

func (s *UserService) target(ctx context.Context, actor *domain.User, username string) (*domain.User, error) {
	user, err := s.lookup(ctx, username)
	if err != nil {
		return nil, err
	}
	if user.ID == actor.ID {
		return nil, apperrors.NewValidationError("cannot target yourself", nil)
	}
	return user, nil
}
