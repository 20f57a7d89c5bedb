package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-service/internal/domain"
	"github.com/spec-kit/marketplace-service/internal/events"
	"github.com/spec-kit/marketplace-service/internal/repository"
	apperrors "github.com/spec-kit/marketplace-service/pkg/util/errorutil"
)

const (
	maxCartLines    = 50
	maxLineQuantity = 10_000
)

// OrderService handles checkout and order lifecycle.
type OrderService struct {
	orders     repository.OrderRepository
	products   repository.ProductRepository
	audit      repository.AuditLogRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// OrderDependencies bundles repositories for the order service.
type OrderDependencies struct {
	OrderRepo   repository.OrderRepository
	ProductRepo repository.ProductRepository
	AuditRepo   repository.AuditLogRepository
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// NewOrderService creates the service.
func NewOrderService(deps OrderDependencies) *OrderService {
	return &OrderService{
		orders:     deps.OrderRepo,
		products:   deps.ProductRepo,
		audit:      deps.AuditRepo,
		dispatcher: deps.Dispatcher,
		logger:     orNop(deps.Logger),
	}
}

// Checkout buys every line at once, producing one order per seller.
func (s *OrderService) Checkout(ctx context.Context, buyer *domain.User, lines []repository.CartLine) ([]domain.Order, error) {
	if len(lines) == 0 {
		return nil, apperrors.NewValidationError("cart is empty", nil)
	}
	if len(lines) > maxCartLines {
		return nil, apperrors.NewValidationError("too many items", map[string]any{"max": maxCartLines})
	}

	merged := make([]repository.CartLine, 0, len(lines))
	index := map[string]int{}
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, apperrors.NewValidationError("quantity must be positive", map[string]any{"product_id": line.ProductID})
		}
		if line.Quantity > maxLineQuantity {
			return nil, quantityTooLarge(line.ProductID)
		}
		if i, ok := index[line.ProductID]; ok {
			// Both operands are capped, so the sum cannot overflow.
			if merged[i].Quantity+line.Quantity > maxLineQuantity {
				return nil, quantityTooLarge(line.ProductID)
			}
			merged[i].Quantity += line.Quantity
			continue
		}
		index[line.ProductID] = len(merged)
		merged = append(merged, line)
	}

	for _, line := range merged {
		product, err := s.products.GetByID(ctx, line.ProductID)
		if err != nil {
			return nil, lookupError(err, "product", map[string]any{"product_id": line.ProductID})
		}
		if product.SellerID == buyer.ID {
			return nil, apperrors.NewValidationError("cannot buy your own product", map[string]any{"product_id": line.ProductID})
		}
		if !product.Listed {
			return nil, apperrors.NewNotFound("product", map[string]any{"product_id": line.ProductID})
		}
	}

	orders, err := s.orders.Checkout(ctx, buyer.ID, merged)
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientStock) {
			return nil, apperrors.NewConflict("insufficient stock", nil)
		}
		return nil, apperrors.MapError(err)
	}

	for _, order := range orders {
		publishEvent(ctx, s.dispatcher, events.New(events.EventOrderPlaced, buyer.ID, order.ID, events.OrderPlacedPayload{
			BuyerID:    order.BuyerID,
			SellerID:   order.SellerID,
			TotalCents: order.TotalCents,
			ItemCount:  len(order.Items),
		}))
	}
	return orders, nil
}

func quantityTooLarge(productID string) error {
	return apperrors.NewValidationError("quantity is too large",
		map[string]any{"product_id": productID, "max": maxLineQuantity})
}

// Get returns an order visible to its buyer, its seller and admins.
func (s *OrderService) Get(ctx context.Context, actor *domain.User, orderID string) (*domain.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, lookupError(err, "order", map[string]any{"order_id": orderID})
	}
	if order.BuyerID != actor.ID && order.SellerID != actor.ID && !actor.Role.IsAdmin() {
		return nil, apperrors.NewForbidden("access denied")
	}
	return order, nil
}

// ListPurchases lists orders placed by buyer.
func (s *OrderService) ListPurchases(ctx context.Context, buyer *domain.User, limit, offset int) ([]domain.Order, error) {
	orders, err := s.orders.ListByBuyer(ctx, buyer.ID, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return orders, nil
}

// ListSales lists orders received by seller.
func (s *OrderService) ListSales(ctx context.Context, seller *domain.User, limit, offset int) ([]domain.Order, error) {
	orders, err := s.orders.ListBySeller(ctx, seller.ID, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return orders, nil
}

// UpdateStatus moves an order along its lifecycle. Sellers and admins drive
// fulfilment; a buyer may only cancel while the order is PENDING.
func (s *OrderService) UpdateStatus(ctx context.Context, actor *domain.User, orderID string, next domain.OrderStatus) (*domain.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, lookupError(err, "order", map[string]any{"order_id": orderID})
	}

	isSeller := order.SellerID == actor.ID
	isAdmin := actor.Role.IsAdmin()
	isBuyer := order.BuyerID == actor.ID
	switch {
	case isSeller || isAdmin:
	case isBuyer:
		if next != domain.OrderStatusCancelled || order.Status != domain.OrderStatusPending {
			return nil, apperrors.NewForbidden("buyers may only cancel pending orders")
		}
	default:
		return nil, apperrors.NewForbidden("access denied")
	}

	if !order.Status.CanTransition(next) {
		return nil, apperrors.NewValidationError("invalid status transition",
			map[string]any{"from": order.Status, "to": next})
	}

	previous := order.Status
	updated, err := s.orders.UpdateStatus(ctx, order.ID, previous, next)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewConflict("order status changed concurrently", map[string]any{"order_id": orderID})
		}
		return nil, apperrors.MapError(err)
	}

	if isAdmin && !isSeller && !isBuyer {
		recordAudit(ctx, s.audit, s.logger, &domain.AuditLog{
			ActorID:    actorRef(actor),
			Action:     domain.AuditOrderStatusEdit,
			TargetType: "order",
			TargetID:   order.ID,
			Metadata:   map[string]any{"old_status": previous, "new_status": next},
		})
	}
	publishEvent(ctx, s.dispatcher, events.New(events.EventOrderStatusChanged, actor.ID, order.ID, events.OrderStatusChangedPayload{
		BuyerID:   updated.BuyerID,
		SellerID:  updated.SellerID,
		OldStatus: previous,
		NewStatus: next,
	}))
	return updated, nil
}
