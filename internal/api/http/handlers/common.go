package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/marketplace-service/internal/api/dto"
	"github.com/spec-kit/marketplace-service/internal/auth"
	"github.com/spec-kit/marketplace-service/internal/domain"
	"github.com/spec-kit/marketplace-service/internal/service"
	apperrors "github.com/spec-kit/marketplace-service/pkg/util/errorutil"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	dobLayout       = "2006-01-02"
)

func currentUser(c *fiber.Ctx) (*domain.User, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return principal.User, nil
}

// optionalUser returns nil for anonymous callers.
func optionalUser(c *fiber.Ctx) *domain.User {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return nil
	}
	return principal.User
}

func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return nil
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

// pagination reads page and page_size, returning limit and offset.
func pagination(c *fiber.Ctx) (int, int) {
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), defaultPageSize)
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return pageSize, (page - 1) * pageSize
}

func splitCSV(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func userResponse(u *domain.User) dto.UserResponse {
	return dto.UserResponse{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		Role:        u.Role,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
		Disabled:    u.Disabled,
		CreatedAt:   u.CreatedAt,
	}
}

func userSummaries(list []domain.UserSummary) []dto.UserSummaryResponse {
	out := make([]dto.UserSummaryResponse, 0, len(list))
	for _, u := range list {
		out = append(out, dto.UserSummaryResponse{
			ID:          u.ID,
			Username:    u.Username,
			DisplayName: u.DisplayName,
			AvatarURL:   u.AvatarURL,
		})
	}
	return out
}

func profileResponse(p *service.Profile) dto.ProfileResponse {
	resp := dto.ProfileResponse{
		ID:          p.ID,
		Username:    p.Username,
		DisplayName: p.DisplayName,
		Bio:         p.Bio,
		AvatarURL:   p.AvatarURL,
		Role:        p.Role,
		Email:       p.Email,
		Location:    p.Location,
		Followers:   p.Followers,
		Following:   p.Following,
		IsFollowing: p.IsFollowing,
		IsOwner:     p.IsOwner,
		CreatedAt:   p.CreatedAt,
	}
	if p.DOB != nil {
		dob := p.DOB.Format(dobLayout)
		resp.DOB = &dob
	}
	if p.IsOwner {
		resp.Visibility = &dto.VisibilityResponse{
			EmailVisible:    p.EmailVisible,
			DOBVisible:      p.DOBVisible,
			LocationVisible: p.LocationVisible,
		}
	}
	return resp
}

func ticketResponse(t *domain.SupportTicket) dto.TicketResponse {
	return dto.TicketResponse{
		ID:          t.ID,
		Subject:     t.Subject,
		Description: t.Description,
		Category:    t.Category,
		Priority:    t.Priority,
		Status:      t.Status,
		CreatedBy:   t.CreatedBy,
		AssignedTo:  t.AssignedTo,
		Public:      t.Public,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func commentResponse(cm *domain.SupportComment) dto.CommentResponse {
	return dto.CommentResponse{
		ID:        cm.ID,
		TicketID:  cm.TicketID,
		AuthorID:  cm.AuthorID,
		Message:   cm.Message,
		CreatedAt: cm.CreatedAt,
	}
}

func productResponse(p *domain.Product) dto.ProductResponse {
	return dto.ProductResponse{
		ID:          p.ID,
		SellerID:    p.SellerID,
		Name:        p.Name,
		Description: p.Description,
		Category:    p.Category,
		PriceCents:  p.PriceCents,
		Stock:       p.Stock,
		ImageURL:    p.ImageURL,
		Listed:      p.Listed,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func orderResponse(o *domain.Order) dto.OrderResponse {
	items := make([]dto.OrderItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, dto.OrderItemResponse{
			ProductID:      it.ProductID,
			ProductName:    it.ProductName,
			Quantity:       it.Quantity,
			UnitPriceCents: it.UnitPriceCents,
		})
	}
	return dto.OrderResponse{
		ID:         o.ID,
		BuyerID:    o.BuyerID,
		SellerID:   o.SellerID,
		Status:     o.Status,
		TotalCents: o.TotalCents,
		Items:      items,
		CreatedAt:  o.CreatedAt,
		UpdatedAt:  o.UpdatedAt,
	}
}

func orderResponses(orders []domain.Order) []dto.OrderResponse {
	out := make([]dto.OrderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, orderResponse(&orders[i]))
	}
	return out
}

func messageResponse(m *domain.Message) dto.MessageResponse {
	return dto.MessageResponse{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Content:    m.Content,
		CreatedAt:  m.CreatedAt,
	}
}

func notificationResponse(n *domain.Notification) dto.NotificationResponse {
	return dto.NotificationResponse{
		ID:        n.ID,
		Type:      n.Type,
		Content:   n.Content,
		Link:      n.Link,
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
	}
}
