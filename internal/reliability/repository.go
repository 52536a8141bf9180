package reliability

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/consigna/consigna/internal/platform/db"
	"github.com/consigna/consigna/internal/shared"
)

const selectStats = `SELECT supplier_id, store_id, total_transactions, completed_transactions, cancelled_by_supplier,
no_show_count, total_planned_qty, total_actual_qty, total_sold_qty, total_revenue, average_accuracy,
reliability_score, last_transaction_at FROM supplier_stats`

// TxRepository exposes operations that must run inside one transaction.
type TxRepository interface {
	LockStats(ctx context.Context, supplierID, storeID int64) (SupplierStats, error)
	SaveStats(ctx context.Context, stats SupplierStats) error
}

// Repository provides PostgreSQL backed stats persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx runs fn in a read-committed transaction, joining one already carried by ctx.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

// Get returns stats without creating them.
func (r *Repository) Get(ctx context.Context, supplierID, storeID int64) (SupplierStats, error) {
	stats, err := scanStats(r.pool.QueryRow(ctx, selectStats+` WHERE supplier_id = $1 AND store_id = $2`, supplierID, storeID))
	if errors.Is(err, pgx.ErrNoRows) {
		return SupplierStats{}, fmt.Errorf("supplier stats %d/%d: %w", supplierID, storeID, shared.ErrNotFound)
	}
	if err != nil {
		return SupplierStats{}, shared.NewStorageError("reliability: get", err)
	}
	return stats, nil
}

// ListByStore returns every supplier's stats for a store, best score first.
func (r *Repository) ListByStore(ctx context.Context, storeID int64) ([]SupplierStats, error) {
	rows, err := r.pool.Query(ctx, selectStats+` WHERE store_id = $1 ORDER BY reliability_score DESC, supplier_id`, storeID)
	if err != nil {
		return nil, shared.NewStorageError("reliability: list", err)
	}
	defer rows.Close()
	var out []SupplierStats
	for rows.Next() {
		stats, err := scanStats(rows)
		if err != nil {
			return nil, shared.NewStorageError("reliability: scan", err)
		}
		out = append(out, stats)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.NewStorageError("reliability: list", err)
	}
	return out, nil
}

// LockStats creates the row on first reference and locks it for the rest of the transaction.
func (t *txRepo) LockStats(ctx context.Context, supplierID, storeID int64) (SupplierStats, error) {
	if _, err := t.tx.Exec(ctx, `INSERT INTO supplier_stats (supplier_id, store_id) VALUES ($1, $2)
ON CONFLICT (supplier_id, store_id) DO NOTHING`, supplierID, storeID); err != nil {
		return SupplierStats{}, shared.NewStorageError("reliability: ensure stats", err)
	}
	stats, err := scanStats(t.tx.QueryRow(ctx, selectStats+` WHERE supplier_id = $1 AND store_id = $2 FOR UPDATE`, supplierID, storeID))
	if err != nil {
		return SupplierStats{}, shared.NewStorageError("reliability: lock stats", err)
	}
	return stats, nil
}

// SaveStats writes back a locked row.
func (t *txRepo) SaveStats(ctx context.Context, s SupplierStats) error {
	_, err := t.tx.Exec(ctx, `UPDATE supplier_stats SET total_transactions = $3, completed_transactions = $4,
cancelled_by_supplier = $5, no_show_count = $6, total_planned_qty = $7, total_actual_qty = $8, total_sold_qty = $9,
total_revenue = $10, average_accuracy = $11, reliability_score = $12, last_transaction_at = $13, updated_at = NOW()
WHERE supplier_id = $1 AND store_id = $2`,
		s.SupplierID, s.StoreID, s.TotalTransactions, s.CompletedTransactions, s.CancelledBySupplier, s.NoShowCount,
		s.TotalPlannedQty, s.TotalActualQty, s.TotalSoldQty, s.TotalRevenue, s.AverageAccuracy, s.ReliabilityScore,
		s.LastTransactionAt)
	if err != nil {
		return shared.NewStorageError("reliability: save stats", err)
	}
	return nil
}

func scanStats(row pgx.Row) (SupplierStats, error) {
	var s SupplierStats
	err := row.Scan(&s.SupplierID, &s.StoreID, &s.TotalTransactions, &s.CompletedTransactions, &s.CancelledBySupplier,
		&s.NoShowCount, &s.TotalPlannedQty, &s.TotalActualQty, &s.TotalSoldQty, &s.TotalRevenue, &s.AverageAccuracy,
		&s.ReliabilityScore, &s.LastTransactionAt)
	return s, err
}
