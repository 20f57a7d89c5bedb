package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/marketplace-service/internal/api/dto"
	"github.com/spec-kit/marketplace-service/internal/domain"
	"github.com/spec-kit/marketplace-service/internal/repository"
	"github.com/spec-kit/marketplace-service/internal/service"
	apperrors "github.com/spec-kit/marketplace-service/pkg/util/errorutil"
)

// OrdersHandler serves checkout and order tracking.
type OrdersHandler struct {
	orders *service.OrderService
}

// NewOrdersHandler constructs handler.
func NewOrdersHandler(orderService *service.OrderService) *OrdersHandler {
	return &OrdersHandler{orders: orderService}
}

// Checkout POST /api/orders. One order is created per seller in the cart.
func (h *OrdersHandler) Checkout(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.CheckoutRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if len(req.Items) == 0 {
		return apperrors.NewValidationError("cart is empty", map[string]any{"field": "items"})
	}
	lines := make([]repository.CartLine, 0, len(req.Items))
	for _, item := range req.Items {
		lines = append(lines, repository.CartLine{ProductID: strings.TrimSpace(item.ProductID), Quantity: item.Quantity})
	}
	orders, err := h.orders.Checkout(c.UserContext(), user, lines)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": orderResponses(orders)})
}

// Purchases GET /api/orders.
func (h *OrdersHandler) Purchases(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	limit, offset := pagination(c)
	orders, err := h.orders.ListPurchases(c.UserContext(), user, limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": orderResponses(orders)})
}

// Sales GET /api/orders/sales.
func (h *OrdersHandler) Sales(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	limit, offset := pagination(c)
	orders, err := h.orders.ListSales(c.UserContext(), user, limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": orderResponses(orders)})
}

// Get GET /api/orders/:id.
func (h *OrdersHandler) Get(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	order, err := h.orders.Get(c.UserContext(), user, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": orderResponse(order)})
}

// UpdateStatus PATCH /api/orders/:id/status.
func (h *OrdersHandler) UpdateStatus(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.UpdateOrderStatusRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	status := domain.OrderStatus(strings.ToUpper(strings.TrimSpace(string(req.Status))))
	order, err := h.orders.UpdateStatus(c.UserContext(), user, c.Params("id"), status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": orderResponse(order)})
}
