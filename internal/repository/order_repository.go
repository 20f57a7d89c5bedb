package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/marketplace-service/internal/domain"
)

// CartLine is one requested product and quantity at checkout.
type CartLine struct {
	ProductID string
	Quantity  int
}

// OrderRepository encapsulates order persistence.
type OrderRepository interface {
	Checkout(ctx context.Context, buyerID string, lines []CartLine) ([]domain.Order, error)
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	ListByBuyer(ctx context.Context, buyerID string, limit, offset int) ([]domain.Order, error)
	ListBySeller(ctx context.Context, sellerID string, limit, offset int) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus) (*domain.Order, error)
}

type orderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository builds repository.
func NewOrderRepository(pool *pgxpool.Pool) OrderRepository {
	return &orderRepository{pool: pool}
}

const orderColumns = `id, buyer_id, seller_id, status, total_cents, created_at, updated_at`

// Checkout decrements stock for every line and creates one order per seller in
// a single transaction. Any line that cannot be fulfilled rolls back the lot.
func (r *orderRepository) Checkout(ctx context.Context, buyerID string, lines []CartLine) ([]domain.Order, error) {
	var orders []domain.Order
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		bySeller := map[string]*domain.Order{}
		sellerOrder := []string{}

		for _, line := range lines {
			const reserve = `
                UPDATE products SET stock = stock - $2, updated_at=NOW()
                WHERE id=$1 AND is_listed AND stock >= $2 AND seller_id <> $3
                RETURNING seller_id, name, price_cents`
			var sellerID, name string
			var price int64
			if err := tx.QueryRow(ctx, reserve, line.ProductID, line.Quantity, buyerID).Scan(&sellerID, &name, &price); err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return ErrInsufficientStock
				}
				return err
			}
			order, ok := bySeller[sellerID]
			if !ok {
				order = &domain.Order{BuyerID: buyerID, SellerID: sellerID, Status: domain.OrderStatusPending}
				bySeller[sellerID] = order
				sellerOrder = append(sellerOrder, sellerID)
			}
			order.TotalCents += price * int64(line.Quantity)
			order.Items = append(order.Items, domain.OrderItem{
				ProductID:      line.ProductID,
				ProductName:    name,
				Quantity:       line.Quantity,
				UnitPriceCents: price,
			})
		}

		for _, sellerID := range sellerOrder {
			order := bySeller[sellerID]
			const insertOrder = `
                INSERT INTO orders (buyer_id, seller_id, status, total_cents)
                VALUES ($1,$2,$3,$4)
                RETURNING id, created_at, updated_at`
			if err := tx.QueryRow(ctx, insertOrder, order.BuyerID, order.SellerID, order.Status, order.TotalCents).
				Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt); err != nil {
				return err
			}
			for i := range order.Items {
				item := &order.Items[i]
				item.OrderID = order.ID
				const insertItem = `
                    INSERT INTO order_items (order_id, product_id, product_name, quantity, unit_price_cents)
                    VALUES ($1,$2,$3,$4,$5)
                    RETURNING id`
				if err := tx.QueryRow(ctx, insertItem, item.OrderID, item.ProductID, item.ProductName, item.Quantity, item.UnitPriceCents).
					Scan(&item.ID); err != nil {
					return err
				}
			}
			orders = append(orders, *order)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *orderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	order, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
	if err != nil {
		return nil, err
	}
	items, err := r.listItems(ctx, r.pool, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return order, nil
}

func (r *orderRepository) ListByBuyer(ctx context.Context, buyerID string, limit, offset int) ([]domain.Order, error) {
	return r.list(ctx, `buyer_id=$1`, buyerID, limit, offset)
}

func (r *orderRepository) ListBySeller(ctx context.Context, sellerID string, limit, offset int) ([]domain.Order, error) {
	return r.list(ctx, `seller_id=$1`, sellerID, limit, offset)
}

func (r *orderRepository) list(ctx context.Context, where string, arg any, limit, offset int) ([]domain.Order, error) {
	limit, offset = clampPage(limit, offset)
	query := `SELECT ` + orderColumns + ` FROM orders WHERE ` + where + ` ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, arg, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range result {
		items, err := r.listItems(ctx, r.pool, result[i].ID)
		if err != nil {
			return nil, err
		}
		result[i].Items = items
	}
	return result, nil
}

// UpdateStatus moves an order from `from` to `to`; cancelling restores stock in
// the same transaction. pgx.ErrNoRows means the order was not in `from`.
func (r *orderRepository) UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus) (*domain.Order, error) {
	var order *domain.Order
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		const query = `
            UPDATE orders SET status=$3, updated_at=NOW()
            WHERE id=$1 AND status=$2
            RETURNING ` + orderColumns
		updated, err := scanOrder(tx.QueryRow(ctx, query, id, from, to))
		if err != nil {
			return err
		}
		if to == domain.OrderStatusCancelled {
			const restock = `
                UPDATE products p SET stock = p.stock + oi.quantity, updated_at=NOW()
                FROM order_items oi
                WHERE oi.order_id=$1 AND oi.product_id=p.id`
			if _, err := tx.Exec(ctx, restock, id); err != nil {
				return err
			}
		}
		items, err := r.listItems(ctx, tx, id)
		if err != nil {
			return err
		}
		updated.Items = items
		order = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *orderRepository) listItems(ctx context.Context, q queryer, orderID string) ([]domain.OrderItem, error) {
	const query = `
        SELECT id, order_id, product_id, product_name, quantity, unit_price_cents
        FROM order_items WHERE order_id=$1 ORDER BY product_name ASC`
	rows, err := q.Query(ctx, query, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.ProductName,
			&item.Quantity,
			&item.UnitPriceCents,
		); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	if err := row.Scan(
		&o.ID,
		&o.BuyerID,
		&o.SellerID,
		&o.Status,
		&o.TotalCents,
		&o.CreatedAt,
		&o.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &o, nil
}
