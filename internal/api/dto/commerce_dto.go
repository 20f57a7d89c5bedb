package dto

import (
	"time"

	"github.com/spec-kit/marketplace-service/internal/domain"
)

// CreateProductRequest payload.
type CreateProductRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	PriceCents  int64  `json:"price_cents"`
	Stock       int    `json:"stock"`
	ImageURL    string `json:"image_url"`
	Listed      *bool  `json:"is_listed"`
}

// UpdateProductRequest carries optional product edits.
type UpdateProductRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Category    *string `json:"category"`
	PriceCents  *int64  `json:"price_cents"`
	Stock       *int    `json:"stock"`
	ImageURL    *string `json:"image_url"`
	Listed      *bool   `json:"is_listed"`
}

// ProductResponse is one inventory item.
type ProductResponse struct {
	ID          string    `json:"id"`
	SellerID    string    `json:"seller_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	PriceCents  int64     `json:"price_cents"`
	Stock       int       `json:"stock"`
	ImageURL    string    `json:"image_url"`
	Listed      bool      `json:"is_listed"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CheckoutRequest lists cart lines.
type CheckoutRequest struct {
	Items []CartItemRequest `json:"items"`
}

// CartItemRequest is one cart line.
type CartItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// UpdateOrderStatusRequest payload.
type UpdateOrderStatusRequest struct {
	Status domain.OrderStatus `json:"status"`
}

// OrderResponse is one order with its items.
type OrderResponse struct {
	ID         string              `json:"id"`
	BuyerID    string              `json:"buyer_id"`
	SellerID   string              `json:"seller_id"`
	Status     domain.OrderStatus  `json:"status"`
	TotalCents int64               `json:"total_cents"`
	Items      []OrderItemResponse `json:"items"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

// OrderItemResponse is one order line.
type OrderItemResponse struct {
	ProductID      string `json:"product_id"`
	ProductName    string `json:"product_name"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}
