package repotest

import (
	"context"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/marketplace-service/internal/domain"
	"github.com/spec-kit/marketplace-service/internal/repository"
)

// Products returns the product repository view.
func (s *Store) Products() repository.ProductRepository { return productRepo{s} }

// Orders returns the order repository view.
func (s *Store) Orders() repository.OrderRepository { return orderRepo{s} }

type productRepo struct{ s *Store }

func (r productRepo) Create(_ context.Context, product *domain.Product) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	product.ID = newID()
	product.CreatedAt = s.now()
	product.UpdatedAt = product.CreatedAt
	cp := *product
	s.products[product.ID] = &cp
	return nil
}

func (r productRepo) Update(_ context.Context, product *domain.Product) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.products[product.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	product.SellerID = existing.SellerID
	product.CreatedAt = existing.CreatedAt
	product.UpdatedAt = s.now()
	cp := *product
	s.products[product.ID] = &cp
	return nil
}

func (r productRepo) Delete(_ context.Context, id string) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.products[id]
	if !ok {
		return pgx.ErrNoRows
	}
	for _, order := range s.orders {
		for _, item := range order.Items {
			if item.ProductID == id {
				existing.Listed = false
				return nil
			}
		}
	}
	delete(s.products, id)
	return nil
}

func (r productRepo) GetByID(_ context.Context, id string) (*domain.Product, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *p
	return &cp, nil
}

func (r productRepo) List(_ context.Context, filter repository.ProductFilter) ([]domain.Product, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Product
	for _, p := range s.products {
		if filter.SellerID != nil && p.SellerID != *filter.SellerID {
			continue
		}
		if filter.OnlyListed && !p.Listed {
			continue
		}
		if filter.OnlyInStock && p.Stock <= 0 {
			continue
		}
		if filter.Category != nil && *filter.Category != "" && !strings.EqualFold(p.Category, strings.TrimSpace(*filter.Category)) {
			continue
		}
		if filter.SearchTerm != nil && *filter.SearchTerm != "" {
			term := strings.ToLower(strings.TrimSpace(*filter.SearchTerm))
			if !strings.Contains(strings.ToLower(p.Name), term) && !strings.Contains(strings.ToLower(p.Description), term) {
				continue
			}
		}
		if filter.ViewerID != nil && s.blockedEither(p.SellerID, *filter.ViewerID) {
			continue
		}
		if seller := s.users[p.SellerID]; seller != nil && seller.Disabled {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	from, to := page(len(out), filter.Limit, filter.Offset)
	return out[from:to], nil
}

type orderRepo struct{ s *Store }

func cloneOrder(o *domain.Order) domain.Order {
	cp := *o
	cp.Items = append([]domain.OrderItem(nil), o.Items...)
	return cp
}

// Checkout validates every line before touching stock, so a failure leaves
// the store unchanged like a rolled back transaction.
func (r orderRepo) Checkout(_ context.Context, buyerID string, lines []repository.CartLine) ([]domain.Order, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	need := map[string]int{}
	for _, line := range lines {
		need[line.ProductID] += line.Quantity
	}
	for id, qty := range need {
		p, ok := s.products[id]
		if !ok || !p.Listed || p.Stock < qty || p.SellerID == buyerID {
			return nil, repository.ErrInsufficientStock
		}
	}

	bySeller := map[string]*domain.Order{}
	var sellers []string
	for _, line := range lines {
		p := s.products[line.ProductID]
		p.Stock -= line.Quantity
		order, ok := bySeller[p.SellerID]
		if !ok {
			order = &domain.Order{ID: newID(), BuyerID: buyerID, SellerID: p.SellerID, Status: domain.OrderStatusPending}
			bySeller[p.SellerID] = order
			sellers = append(sellers, p.SellerID)
		}
		order.TotalCents += p.PriceCents * int64(line.Quantity)
		order.Items = append(order.Items, domain.OrderItem{
			ID:             newID(),
			OrderID:        order.ID,
			ProductID:      p.ID,
			ProductName:    p.Name,
			Quantity:       line.Quantity,
			UnitPriceCents: p.PriceCents,
		})
	}

	out := make([]domain.Order, 0, len(sellers))
	for _, sellerID := range sellers {
		order := bySeller[sellerID]
		order.CreatedAt = s.now()
		order.UpdatedAt = order.CreatedAt
		s.orders[order.ID] = order
		out = append(out, cloneOrder(order))
	}
	return out, nil
}

func (r orderRepo) GetByID(_ context.Context, id string) (*domain.Order, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := cloneOrder(o)
	return &cp, nil
}

func (r orderRepo) list(match func(o *domain.Order) bool, limit, offset int) []domain.Order {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Order
	for _, o := range s.orders {
		if match(o) {
			out = append(out, cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	from, to := page(len(out), limit, offset)
	return out[from:to]
}

func (r orderRepo) ListByBuyer(_ context.Context, buyerID string, limit, offset int) ([]domain.Order, error) {
	return r.list(func(o *domain.Order) bool { return o.BuyerID == buyerID }, limit, offset), nil
}

func (r orderRepo) ListBySeller(_ context.Context, sellerID string, limit, offset int) ([]domain.Order, error) {
	return r.list(func(o *domain.Order) bool { return o.SellerID == sellerID }, limit, offset), nil
}

func (r orderRepo) UpdateStatus(_ context.Context, id string, from, to domain.OrderStatus) (*domain.Order, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.Status != from {
		return nil, pgx.ErrNoRows
	}
	o.Status = to
	o.UpdatedAt = s.now()
	if to == domain.OrderStatusCancelled {
		for _, item := range o.Items {
			if p, ok := s.products[item.ProductID]; ok {
				p.Stock += item.Quantity
			}
		}
	}
	cp := cloneOrder(o)
	return &cp, nil
}
