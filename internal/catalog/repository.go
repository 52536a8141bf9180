package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/consigna/consigna/internal/platform/db"
	"github.com/consigna/consigna/internal/shared"
)

// Repository reads products from PostgreSQL. Prices are never cached so that a payout
// always uses the price in effect when it is computed.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetProduct loads a single product.
func (r *Repository) GetProduct(ctx context.Context, id int64) (Product, error) {
	const query = `SELECT id, supplier_id, name, price_buy, price_sell, status, updated_at FROM products WHERE id = $1`
	var p Product
	err := db.Conn(ctx, r.pool).QueryRow(ctx, query, id).Scan(&p.ID, &p.SupplierID, &p.Name, &p.PriceBuy, &p.PriceSell, &p.Status, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, fmt.Errorf("product %d: %w", id, shared.ErrNotFound)
	}
	if err != nil {
		return Product{}, shared.NewStorageError("catalog: get product", err)
	}
	return p, nil
}
