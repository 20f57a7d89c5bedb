package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/marketplace-service/internal/api/dto"
	"github.com/spec-kit/marketplace-service/internal/service"
	apperrors "github.com/spec-kit/marketplace-service/pkg/util/errorutil"
)

const avatarField = "avatar"

// ProfileHandler serves profile pages and profile editing.
type ProfileHandler struct {
	profiles *service.ProfileService
}

// NewProfileHandler constructs handler.
func NewProfileHandler(profileService *service.ProfileService) *ProfileHandler {
	return &ProfileHandler{profiles: profileService}
}

// Get GET /api/profile/:username. Hidden fields are omitted unless the viewer owns the profile.
func (h *ProfileHandler) Get(c *fiber.Ctx) error {
	profile, err := h.profiles.GetProfile(c.UserContext(), c.Params("username"), optionalUser(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": profileResponse(profile)})
}

// Update PATCH /api/profile.
func (h *ProfileHandler) Update(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.UpdateProfileRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	profile, err := h.profiles.UpdateProfile(c.UserContext(), user, service.ProfileUpdate{
		DisplayName:     req.DisplayName,
		Bio:             req.Bio,
		Location:        req.Location,
		DOB:             req.DOB,
		EmailVisible:    req.EmailVisible,
		DOBVisible:      req.DOBVisible,
		LocationVisible: req.LocationVisible,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": profileResponse(profile)})
}

// UploadAvatar POST /api/profile/avatar (multipart field "avatar").
func (h *ProfileHandler) UploadAvatar(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	header, err := c.FormFile(avatarField)
	if err != nil {
		return apperrors.NewValidationError("avatar file required", map[string]any{"field": avatarField})
	}
	file, err := header.Open()
	if err != nil {
		return apperrors.NewValidationError("unreadable avatar file", map[string]any{"field": avatarField})
	}
	defer file.Close()

	url, err := h.profiles.UploadAvatar(c.UserContext(), user, service.AvatarUpload{
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"avatar_url": url}})
}
