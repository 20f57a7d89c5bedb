package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/marketplace-service/internal/domain"
)

// ProductFilter captures marketplace and inventory listing parameters.
type ProductFilter struct {
	SellerID    *string
	ViewerID    *string
	Category    *string
	SearchTerm  *string
	OnlyListed  bool
	OnlyInStock bool
	Limit       int
	Offset      int
}

// ProductRepository encapsulates product persistence.
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	Update(ctx context.Context, product *domain.Product) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	List(ctx context.Context, filter ProductFilter) ([]domain.Product, error)
}

type productRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository instantiates repository.
func NewProductRepository(pool *pgxpool.Pool) ProductRepository {
	return &productRepository{pool: pool}
}

const productColumns = `id, seller_id, name, description, category, price_cents, stock, image_url, is_listed, created_at, updated_at`

func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	const query = `
        INSERT INTO products (seller_id, name, description, category, price_cents, stock, image_url, is_listed)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		product.SellerID,
		product.Name,
		product.Description,
		product.Category,
		product.PriceCents,
		product.Stock,
		product.ImageURL,
		product.Listed,
	).Scan(&product.ID, &product.CreatedAt, &product.UpdatedAt)
}

func (r *productRepository) Update(ctx context.Context, product *domain.Product) error {
	const query = `
        UPDATE products SET name=$1, description=$2, category=$3, price_cents=$4, stock=$5,
            image_url=$6, is_listed=$7, updated_at=NOW()
        WHERE id=$8
        RETURNING updated_at`
	return r.pool.QueryRow(ctx, query,
		product.Name,
		product.Description,
		product.Category,
		product.PriceCents,
		product.Stock,
		product.ImageURL,
		product.Listed,
		product.ID,
	).Scan(&product.UpdatedAt)
}

// Delete unlists products that appear on orders instead of removing the row.
func (r *productRepository) Delete(ctx context.Context, id string) error {
	const query = `
        WITH referenced AS (SELECT 1 FROM order_items WHERE product_id=$1 LIMIT 1),
        unlisted AS (
            UPDATE products SET is_listed=FALSE, updated_at=NOW()
            WHERE id=$1 AND EXISTS (SELECT 1 FROM referenced) RETURNING id
        ),
        removed AS (
            DELETE FROM products
            WHERE id=$1 AND NOT EXISTS (SELECT 1 FROM referenced) RETURNING id
        )
        SELECT COUNT(*) FROM (SELECT id FROM unlisted UNION ALL SELECT id FROM removed) touched`
	var touched int
	if err := r.pool.QueryRow(ctx, query, id).Scan(&touched); err != nil {
		return err
	}
	if touched == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *productRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	return scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id))
}

func (r *productRepository) List(ctx context.Context, filter ProductFilter) ([]domain.Product, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.SellerID != nil {
		args = append(args, *filter.SellerID)
		clauses = append(clauses, fmt.Sprintf("p.seller_id=$%d", len(args)))
	}
	if filter.OnlyListed {
		clauses = append(clauses, "p.is_listed")
	}
	if filter.OnlyInStock {
		clauses = append(clauses, "p.stock > 0")
	}
	if filter.Category != nil && strings.TrimSpace(*filter.Category) != "" {
		args = append(args, strings.ToLower(strings.TrimSpace(*filter.Category)))
		clauses = append(clauses, fmt.Sprintf("LOWER(p.category)=$%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		args = append(args, containsPattern(*filter.SearchTerm))
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(p.name) LIKE %s OR LOWER(p.description) LIKE %s)", placeholder, placeholder))
	}
	if filter.ViewerID != nil {
		args = append(args, *filter.ViewerID)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf(`NOT EXISTS (
            SELECT 1 FROM blocks b
            WHERE (b.blocker_id=p.seller_id AND b.blocked_id=%[1]s) OR (b.blocker_id=%[1]s AND b.blocked_id=p.seller_id))`, placeholder))
	}
	// disabled sellers disappear from the marketplace
	clauses = append(clauses, "NOT EXISTS (SELECT 1 FROM users u WHERE u.id=p.seller_id AND u.is_disabled)")

	limit, offset := clampPage(filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM products p WHERE %s ORDER BY p.created_at DESC LIMIT %d OFFSET %d`,
		prefixed("p", productColumns), strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *product)
	}
	return result, rows.Err()
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var p domain.Product
	if err := row.Scan(
		&p.ID,
		&p.SellerID,
		&p.Name,
		&p.Description,
		&p.Category,
		&p.PriceCents,
		&p.Stock,
		&p.ImageURL,
		&p.Listed,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &p, nil
}

// prefixed qualifies a comma separated column list with a table alias.
func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, part := range parts {
		parts[i] = alias + "." + strings.TrimSpace(part)
	}
	return strings.Join(parts, ", ")
}
