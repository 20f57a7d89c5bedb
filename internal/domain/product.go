package domain

import "time"

// Product is an inventory item owned by a seller.
type Product struct {
	ID          string
	SellerID    string
	Name        string
	Description string
	Category    string
	PriceCents  int64
	Stock       int
	ImageURL    string
	Listed      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
