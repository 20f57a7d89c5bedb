package service

import (
	"context"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-service/internal/domain"
	"github.com/spec-kit/marketplace-service/internal/repository"
	"github.com/spec-kit/marketplace-service/internal/storage"
	apperrors "github.com/spec-kit/marketplace-service/pkg/util/errorutil"
)

const (
	maxDisplayName = 50
	maxBio         = 500
	maxLocation    = 100
	dobLayout      = "2006-01-02"
)

var avatarTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Profile is a user as seen by a particular viewer. Private fields are nil
// unless the viewer owns the profile or the owner made them visible.
type Profile struct {
	ID          string
	Username    string
	DisplayName string
	Bio         string
	AvatarURL   string
	Role        domain.Role
	Email       *string
	DOB         *time.Time
	Location    *string
	Followers   int
	Following   int
	IsFollowing bool
	IsOwner     bool
	CreatedAt   time.Time

	EmailVisible    bool
	DOBVisible      bool
	LocationVisible bool
}

// ProjectProfile applies per-field visibility for viewer, which may be nil.
func ProjectProfile(user *domain.User, viewer *domain.User) *Profile {
	isOwner := viewer != nil && viewer.ID == user.ID
	profile := &Profile{
		ID:          user.ID,
		Username:    user.Username,
		DisplayName: user.DisplayName,
		Bio:         user.Bio,
		AvatarURL:   user.AvatarURL,
		Role:        user.Role,
		IsOwner:     isOwner,
		CreatedAt:   user.CreatedAt,
	}
	if isOwner || user.EmailVisible {
		email := user.Email
		profile.Email = &email
	}
	if (isOwner || user.DOBVisible) && user.DOB != nil {
		dob := *user.DOB
		profile.DOB = &dob
	}
	if isOwner || user.LocationVisible {
		location := user.Location
		profile.Location = &location
	}
	if isOwner {
		profile.EmailVisible = user.EmailVisible
		profile.DOBVisible = user.DOBVisible
		profile.LocationVisible = user.LocationVisible
	}
	return profile
}

// ProfileUpdate holds editable profile fields; nil leaves a field unchanged.
// DOB is YYYY-MM-DD and the empty string clears it.
type ProfileUpdate struct {
	DisplayName     *string
	Bio             *string
	Location        *string
	DOB             *string
	EmailVisible    *bool
	DOBVisible      *bool
	LocationVisible *bool
}

// ProfileService serves public profiles and profile editing.
type ProfileService struct {
	users    repository.UserRepository
	social   repository.SocialRepository
	avatars  storage.AvatarStore
	maxBytes int64
	logger   *zap.Logger
	now      func() time.Time
}

// ProfileDependencies bundles collaborators for the profile service.
type ProfileDependencies struct {
	UserRepo       repository.UserRepository
	SocialRepo     repository.SocialRepository
	AvatarStore    storage.AvatarStore
	MaxUploadBytes int64
	Logger         *zap.Logger
}

// NewProfileService creates the service.
func NewProfileService(deps ProfileDependencies) *ProfileService {
	return &ProfileService{
		users:    deps.UserRepo,
		social:   deps.SocialRepo,
		avatars:  deps.AvatarStore,
		maxBytes: deps.MaxUploadBytes,
		logger:   orNop(deps.Logger),
		now:      time.Now,
	}
}

// GetProfile loads username as seen by viewer. Users who blocked the viewer
// and disabled accounts look missing, except to admins.
func (s *ProfileService) GetProfile(ctx context.Context, username string, viewer *domain.User) (*Profile, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, lookupError(err, "user", map[string]any{"username": username})
	}
	isAdmin := viewer != nil && viewer.Role.IsAdmin()
	if user.Disabled && !isAdmin {
		return nil, apperrors.NewNotFound("user", map[string]any{"username": username})
	}

	profile := ProjectProfile(user, viewer)
	if viewer != nil && !profile.IsOwner {
		blocked, err := s.social.IsBlocked(ctx, user.ID, viewer.ID)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		if blocked && !isAdmin {
			return nil, apperrors.NewNotFound("user", map[string]any{"username": username})
		}
		following, err := s.social.IsFollowing(ctx, viewer.ID, user.ID)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		profile.IsFollowing = following
	}

	followers, following, err := s.social.Counts(ctx, user.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	profile.Followers = followers
	profile.Following = following
	return profile, nil
}

// UpdateProfile applies update to the caller's own profile.
func (s *ProfileService) UpdateProfile(ctx context.Context, user *domain.User, update ProfileUpdate) (*Profile, error) {
	current, err := s.users.GetByID(ctx, user.ID)
	if err != nil {
		return nil, lookupError(err, "user", nil)
	}

	if update.DisplayName != nil {
		name := strings.TrimSpace(*update.DisplayName)
		if name == "" || utf8.RuneCountInString(name) > maxDisplayName {
			return nil, apperrors.NewValidationError("display name must be 1-50 characters", map[string]any{"field": "display_name"})
		}
		current.DisplayName = name
	}
	if update.Bio != nil {
		bio := strings.TrimSpace(*update.Bio)
		if utf8.RuneCountInString(bio) > maxBio {
			return nil, apperrors.NewValidationError("bio is too long", map[string]any{"field": "bio", "max": maxBio})
		}
		current.Bio = bio
	}
	if update.Location != nil {
		location := strings.TrimSpace(*update.Location)
		if utf8.RuneCountInString(location) > maxLocation {
			return nil, apperrors.NewValidationError("location is too long", map[string]any{"field": "location", "max": maxLocation})
		}
		current.Location = location
	}
	if update.DOB != nil {
		raw := strings.TrimSpace(*update.DOB)
		if raw == "" {
			current.DOB = nil
		} else {
			dob, err := time.Parse(dobLayout, raw)
			if err != nil {
				return nil, apperrors.NewValidationError("dob must be YYYY-MM-DD", map[string]any{"field": "dob"})
			}
			if dob.After(s.now()) {
				return nil, apperrors.NewValidationError("dob must be in the past", map[string]any{"field": "dob"})
			}
			current.DOB = &dob
		}
	}
	if update.EmailVisible != nil {
		current.EmailVisible = *update.EmailVisible
	}
	if update.DOBVisible != nil {
		current.DOBVisible = *update.DOBVisible
	}
	if update.LocationVisible != nil {
		current.LocationVisible = *update.LocationVisible
	}

	if err := s.users.UpdateProfile(ctx, current); err != nil {
		return nil, lookupError(err, "user", nil)
	}
	return ProjectProfile(current, current), nil
}

// AvatarUpload describes an uploaded image.
type AvatarUpload struct {
	ContentType string
	Size        int64
	Body        io.Reader
}

// UploadAvatar stores the image and points the caller's avatar at it.
func (s *ProfileService) UploadAvatar(ctx context.Context, user *domain.User, upload AvatarUpload) (string, error) {
	contentType := strings.ToLower(strings.TrimSpace(strings.SplitN(upload.ContentType, ";", 2)[0]))
	ext, ok := avatarTypes[contentType]
	if !ok {
		return "", apperrors.NewValidationError("avatar must be a jpeg, png, gif or webp image",
			map[string]any{"field": "avatar", "content_type": upload.ContentType})
	}
	if upload.Size <= 0 {
		return "", apperrors.NewValidationError("avatar file is empty", map[string]any{"field": "avatar"})
	}
	if s.maxBytes > 0 && upload.Size > s.maxBytes {
		return "", apperrors.NewValidationError("avatar file is too large",
			map[string]any{"field": "avatar", "max_bytes": s.maxBytes})
	}
	if s.avatars == nil {
		return "", apperrors.NewInternalError(errNoAvatarStore)
	}

	body := upload.Body
	if s.maxBytes > 0 {
		body = io.LimitReader(body, s.maxBytes)
	}
	url, err := s.avatars.SaveAvatar(ctx, user.ID, ext, body)
	if err != nil {
		s.logger.Error("avatar upload failed", zap.String("user_id", user.ID), zap.Error(err))
		return "", apperrors.NewInternalError(err)
	}
	if err := s.users.UpdateAvatar(ctx, user.ID, url); err != nil {
		return "", lookupError(err, "user", nil)
	}
	return url, nil
}
