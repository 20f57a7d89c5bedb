package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-service/internal/domain"
	"github.com/spec-kit/marketplace-service/internal/repository"
	apperrors "github.com/spec-kit/marketplace-service/pkg/util/errorutil"
)

const (
	maxProductName        = 120
	maxProductDescription = 4000
)

// InventoryService manages seller products and the marketplace listing.
type InventoryService struct {
	products repository.ProductRepository
	social   repository.SocialRepository
	audit    repository.AuditLogRepository
	logger   *zap.Logger
}

// InventoryDependencies bundles repositories for the inventory service.
type InventoryDependencies struct {
	ProductRepo repository.ProductRepository
	SocialRepo  repository.SocialRepository
	AuditRepo   repository.AuditLogRepository
	Logger      *zap.Logger
}

// ProductInput describes a new product.
type ProductInput struct {
	Name        string
	Description string
	Category    string
	PriceCents  int64
	Stock       int
	ImageURL    string
	Listed      *bool
}

// ProductUpdate carries the fields a seller may change; nil leaves a field as is.
type ProductUpdate struct {
	Name        *string
	Description *string
	Category    *string
	PriceCents  *int64
	Stock       *int
	ImageURL    *string
	Listed      *bool
}

// MarketplaceFilter narrows the public listing.
type MarketplaceFilter struct {
	Query    string
	Category string
	Limit    int
	Offset   int
}

// NewInventoryService creates the service.
func NewInventoryService(deps InventoryDependencies) *InventoryService {
	return &InventoryService{
		products: deps.ProductRepo,
		social:   deps.SocialRepo,
		audit:    deps.AuditRepo,
		logger:   orNop(deps.Logger),
	}
}

// Create adds a product owned by seller.
func (s *InventoryService) Create(ctx context.Context, seller *domain.User, input ProductInput) (*domain.Product, error) {
	product := &domain.Product{
		SellerID:    seller.ID,
		Name:        strings.TrimSpace(input.Name),
		Description: strings.TrimSpace(input.Description),
		Category:    strings.TrimSpace(input.Category),
		PriceCents:  input.PriceCents,
		Stock:       input.Stock,
		ImageURL:    strings.TrimSpace(input.ImageURL),
		Listed:      true,
	}
	if input.Listed != nil {
		product.Listed = *input.Listed
	}
	if err := validateProduct(product); err != nil {
		return nil, err
	}
	if err := s.products.Create(ctx, product); err != nil {
		return nil, apperrors.MapError(err)
	}
	return product, nil
}

// Update edits a product. Sellers edit their own; ADMIN and OWNER edit any.
func (s *InventoryService) Update(ctx context.Context, actor *domain.User, productID string, update ProductUpdate) (*domain.Product, error) {
	product, err := s.editable(ctx, actor, productID)
	if err != nil {
		return nil, err
	}
	if update.Name != nil {
		product.Name = strings.TrimSpace(*update.Name)
	}
	if update.Description != nil {
		product.Description = strings.TrimSpace(*update.Description)
	}
	if update.Category != nil {
		product.Category = strings.TrimSpace(*update.Category)
	}
	if update.PriceCents != nil {
		product.PriceCents = *update.PriceCents
	}
	if update.Stock != nil {
		product.Stock = *update.Stock
	}
	if update.ImageURL != nil {
		product.ImageURL = strings.TrimSpace(*update.ImageURL)
	}
	if update.Listed != nil {
		product.Listed = *update.Listed
	}
	if err := validateProduct(product); err != nil {
		return nil, err
	}
	if err := s.products.Update(ctx, product); err != nil {
		return nil, lookupError(err, "product", map[string]any{"product_id": productID})
	}
	return product, nil
}

// Delete removes a product, or unlists it when orders still reference it.
func (s *InventoryService) Delete(ctx context.Context, actor *domain.User, productID string) error {
	product, err := s.editable(ctx, actor, productID)
	if err != nil {
		return err
	}
	if err := s.products.Delete(ctx, productID); err != nil {
		return lookupError(err, "product", map[string]any{"product_id": productID})
	}
	if product.SellerID != actor.ID {
		recordAudit(ctx, s.audit, s.logger, &domain.AuditLog{
			ActorID:    actorRef(actor),
			Action:     domain.AuditProductRemoved,
			TargetType: "product",
			TargetID:   productID,
			Metadata:   map[string]any{"seller_id": product.SellerID, "name": product.Name},
		})
	}
	return nil
}

// Get returns a product. Unlisted products are visible only to their seller
// and admins; products of users in a block relation with viewer are hidden.
func (s *InventoryService) Get(ctx context.Context, viewer *domain.User, productID string) (*domain.Product, error) {
	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, lookupError(err, "product", map[string]any{"product_id": productID})
	}
	notFound := apperrors.NewNotFound("product", map[string]any{"product_id": productID})
	isOwner := viewer != nil && viewer.ID == product.SellerID
	isAdmin := viewer != nil && viewer.Role.IsAdmin()
	if !product.Listed && !isOwner && !isAdmin {
		return nil, notFound
	}
	if viewer != nil && !isOwner {
		blocked, err := s.social.IsBlockedEither(ctx, viewer.ID, product.SellerID)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		if blocked {
			return nil, notFound
		}
	}
	return product, nil
}

// ListMarketplace returns listed, in-stock products newest first.
func (s *InventoryService) ListMarketplace(ctx context.Context, viewer *domain.User, filter MarketplaceFilter) ([]domain.Product, error) {
	repoFilter := repository.ProductFilter{
		OnlyListed:  true,
		OnlyInStock: true,
		Limit:       filter.Limit,
		Offset:      filter.Offset,
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		repoFilter.SearchTerm = &q
	}
	if category := strings.TrimSpace(filter.Category); category != "" {
		repoFilter.Category = &category
	}
	if viewer != nil {
		repoFilter.ViewerID = &viewer.ID
	}
	products, err := s.products.List(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return products, nil
}

// ListMine returns every product of seller, listed or not.
func (s *InventoryService) ListMine(ctx context.Context, seller *domain.User, limit, offset int) ([]domain.Product, error) {
	products, err := s.products.List(ctx, repository.ProductFilter{SellerID: &seller.ID, Limit: limit, Offset: offset})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return products, nil
}

func (s *InventoryService) editable(ctx context.Context, actor *domain.User, productID string) (*domain.Product, error) {
	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, lookupError(err, "product", map[string]any{"product_id": productID})
	}
	if product.SellerID != actor.ID && !actor.Role.IsAdmin() {
		return nil, apperrors.NewForbidden("not the seller of this product")
	}
	return product, nil
}

func validateProduct(p *domain.Product) error {
	switch {
	case p.Name == "":
		return apperrors.NewValidationError("name is required", map[string]any{"field": "name"})
	case len([]rune(p.Name)) > maxProductName:
		return apperrors.NewValidationError("name is too long", map[string]any{"field": "name", "max": maxProductName})
	case len([]rune(p.Description)) > maxProductDescription:
		return apperrors.NewValidationError("description is too long", map[string]any{"field": "description", "max": maxProductDescription})
	case p.PriceCents < 0:
		return apperrors.NewValidationError("price must not be negative", map[string]any{"field": "price_cents"})
	case p.Stock < 0:
		return apperrors.NewValidationError("stock must not be negative", map[string]any{"field": "stock"})
	}
	return nil
}
