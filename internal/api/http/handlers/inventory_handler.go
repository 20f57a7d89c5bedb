package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/marketplace-service/internal/api/dto"
	"github.com/spec-kit/marketplace-service/internal/service"
)

// InventoryHandler serves product listings and seller inventory.
type InventoryHandler struct {
	inventory *service.InventoryService
}

// NewInventoryHandler constructs handler.
func NewInventoryHandler(inventoryService *service.InventoryService) *InventoryHandler {
	return &InventoryHandler{inventory: inventoryService}
}

// Marketplace GET /api/inventory.
func (h *InventoryHandler) Marketplace(c *fiber.Ctx) error {
	limit, offset := pagination(c)
	products, err := h.inventory.ListMarketplace(c.UserContext(), optionalUser(c), service.MarketplaceFilter{
		Query:    strings.TrimSpace(c.Query("q")),
		Category: strings.TrimSpace(c.Query("category")),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		return err
	}
	items := make([]dto.ProductResponse, 0, len(products))
	for i := range products {
		items = append(items, productResponse(&products[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Mine GET /api/inventory/mine.
func (h *InventoryHandler) Mine(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	limit, offset := pagination(c)
	products, err := h.inventory.ListMine(c.UserContext(), user, limit, offset)
	if err != nil {
		return err
	}
	items := make([]dto.ProductResponse, 0, len(products))
	for i := range products {
		items = append(items, productResponse(&products[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get GET /api/inventory/:id.
func (h *InventoryHandler) Get(c *fiber.Ctx) error {
	product, err := h.inventory.Get(c.UserContext(), optionalUser(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": productResponse(product)})
}

// Create POST /api/inventory.
func (h *InventoryHandler) Create(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.CreateProductRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	product, err := h.inventory.Create(c.UserContext(), user, service.ProductInput{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		PriceCents:  req.PriceCents,
		Stock:       req.Stock,
		ImageURL:    req.ImageURL,
		Listed:      req.Listed,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": productResponse(product)})
}

// Update PATCH /api/inventory/:id.
func (h *InventoryHandler) Update(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.UpdateProductRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	product, err := h.inventory.Update(c.UserContext(), user, c.Params("id"), service.ProductUpdate{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		PriceCents:  req.PriceCents,
		Stock:       req.Stock,
		ImageURL:    req.ImageURL,
		Listed:      req.Listed,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": productResponse(product)})
}

// Delete DELETE /api/inventory/:id.
func (h *InventoryHandler) Delete(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	if err := h.inventory.Delete(c.UserContext(), user, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}
