package consignment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/consigna/consigna/internal/platform/db"
	"github.com/consigna/consigna/internal/shared"
)

const selectTransaction = `SELECT id, store_id, supplier_id, trx_date, status, total_items_in, total_items_sold,
total_payout, admin_note, cancel_reason, created_at, updated_at FROM daily_transactions`

const selectItem = `SELECT id, trx_id, product_id, qty_planned, qty_actual, qty_returned FROM transaction_items`

// TxRepository exposes ledger operations that must run inside one transaction.
type TxRepository interface {
	FindOrCreateDraft(ctx context.Context, storeID, supplierID int64, date time.Time) (DailyTransaction, bool, error)
	LockTransaction(ctx context.Context, id int64) (DailyTransaction, error)
	ListItems(ctx context.Context, trxID int64) ([]TransactionItem, error)
	AddPlannedQty(ctx context.Context, trxID, productID, qty int64) error
	SetActualQty(ctx context.Context, trxID, itemID, qty int64) error
	SetReturnedQty(ctx context.Context, trxID, itemID, qty int64) error
	UpdateTotals(ctx context.Context, trxID int64, totals Totals, note *string) error
	TransitionStatus(ctx context.Context, trxID int64, from, to Status, reason *string) error
}

// Repository provides PostgreSQL backed ledger persistence.
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

// WithTx runs fn in a read-committed transaction. Row locks taken by LockTransaction make
// a waiting writer observe the status committed by the one ahead of it.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

// GetTransaction loads one header.
func (r *Repository) GetTransaction(ctx context.Context, id int64) (DailyTransaction, error) {
	trx, err := scanTransaction(r.pool.QueryRow(ctx, selectTransaction+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return DailyTransaction{}, fmt.Errorf("transaction %d: %w", id, shared.ErrNotFound)
	}
	if err != nil {
		return DailyTransaction{}, shared.NewStorageError("consignment: get transaction", err)
	}
	return trx, nil
}

// ListItems loads the lines of a transaction.
func (r *Repository) ListItems(ctx context.Context, trxID int64) ([]TransactionItem, error) {
	return listItems(ctx, r.pool, trxID)
}

// ListTransactions returns a filtered page of headers and the total match count.
func (r *Repository) ListTransactions(ctx context.Context, filter ListFilter) ([]DailyTransaction, int, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.StoreID > 0 {
		add("store_id = $%d", filter.StoreID)
	}
	if filter.SupplierID > 0 {
		add("supplier_id = $%d", filter.SupplierID)
	}
	if filter.Date != nil {
		add("trx_date = $%d", *filter.Date)
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM daily_transactions`+where, args...).Scan(&total); err != nil {
		return nil, 0, shared.NewStorageError("consignment: count transactions", err)
	}

	page := shared.NewPagination(filter.Page, filter.PerPage, total)
	args = append(args, page.PerPage, page.Offset())
	query := selectTransaction + where + fmt.Sprintf(` ORDER BY trx_date DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, shared.NewStorageError("consignment: list transactions", err)
	}
	defer rows.Close()
	var out []DailyTransaction
	for rows.Next() {
		trx, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, shared.NewStorageError("consignment: scan transaction", err)
		}
		out = append(out, trx)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, shared.NewStorageError("consignment: list transactions", err)
	}
	return out, total, nil
}

// DraftIDs lists drafts of a store for one date.
func (r *Repository) DraftIDs(ctx context.Context, storeID int64, date time.Time) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM daily_transactions WHERE store_id = $1 AND trx_date = $2 AND status = $3 ORDER BY id`,
		storeID, date, string(StatusDraft))
	if err != nil {
		return nil, shared.NewStorageError("consignment: list drafts", err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, shared.NewStorageError("consignment: scan draft", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.NewStorageError("consignment: list drafts", err)
	}
	return ids, nil
}

// FindOrCreateDraft returns the live transaction for the key, creating a draft when none
// exists. The boolean reports creation. A concurrent insert surfaces as errDraftConflict.
func (t *txRepo) FindOrCreateDraft(ctx context.Context, storeID, supplierID int64, date time.Time) (DailyTransaction, bool, error) {
	trx, err := scanTransaction(t.tx.QueryRow(ctx, selectTransaction+`
WHERE store_id = $1 AND supplier_id = $2 AND trx_date = $3 AND status <> $4 FOR UPDATE`,
		storeID, supplierID, date, string(StatusCancelled)))
	if err == nil {
		return trx, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return DailyTransaction{}, false, shared.NewStorageError("consignment: find draft", err)
	}
	trx, err = scanTransaction(t.tx.QueryRow(ctx, `INSERT INTO daily_transactions (store_id, supplier_id, trx_date, status)
VALUES ($1, $2, $3, $4)
RETURNING id, store_id, supplier_id, trx_date, status, total_items_in, total_items_sold, total_payout, admin_note,
cancel_reason, created_at, updated_at`, storeID, supplierID, date, string(StatusDraft)))
	if db.IsUniqueViolation(err) {
		return DailyTransaction{}, false, errDraftConflict
	}
	if err != nil {
		return DailyTransaction{}, false, shared.NewStorageError("consignment: create draft", err)
	}
	return trx, true, nil
}

// LockTransaction loads a header FOR UPDATE.
func (t *txRepo) LockTransaction(ctx context.Context, id int64) (DailyTransaction, error) {
	trx, err := scanTransaction(t.tx.QueryRow(ctx, selectTransaction+` WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return DailyTransaction{}, fmt.Errorf("transaction %d: %w", id, shared.ErrNotFound)
	}
	if err != nil {
		return DailyTransaction{}, shared.NewStorageError("consignment: lock transaction", err)
	}
	return trx, nil
}

func (t *txRepo) ListItems(ctx context.Context, trxID int64) ([]TransactionItem, error) {
	return listItems(ctx, t.tx, trxID)
}

// AddPlannedQty inserts a line or adds to the planned quantity of an existing one.
func (t *txRepo) AddPlannedQty(ctx context.Context, trxID, productID, qty int64) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO transaction_items (trx_id, product_id, qty_planned) VALUES ($1, $2, $3)
ON CONFLICT (trx_id, product_id) DO UPDATE SET qty_planned = transaction_items.qty_planned + EXCLUDED.qty_planned`,
		trxID, productID, qty)
	if err != nil {
		return shared.NewStorageError("consignment: add planned qty", err)
	}
	return nil
}

func (t *txRepo) SetActualQty(ctx context.Context, trxID, itemID, qty int64) error {
	return t.updateItem(ctx, "consignment: set actual qty", `UPDATE transaction_items SET qty_actual = $3 WHERE id = $1 AND trx_id = $2`, trxID, itemID, qty)
}

func (t *txRepo) SetReturnedQty(ctx context.Context, trxID, itemID, qty int64) error {
	return t.updateItem(ctx, "consignment: set returned qty", `UPDATE transaction_items SET qty_returned = $3 WHERE id = $1 AND trx_id = $2`, trxID, itemID, qty)
}

func (t *txRepo) updateItem(ctx context.Context, op, sql string, trxID, itemID, qty int64) error {
	tag, err := t.tx.Exec(ctx, sql, itemID, trxID, qty)
	if err != nil {
		return shared.NewStorageError(op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("item %d of transaction %d: %w", itemID, trxID, shared.ErrNotFound)
	}
	return nil
}

// UpdateTotals rewrites the derived header columns. A nil note keeps the current one.
func (t *txRepo) UpdateTotals(ctx context.Context, trxID int64, totals Totals, note *string) error {
	_, err := t.tx.Exec(ctx, `UPDATE daily_transactions SET total_items_in = $2, total_items_sold = $3, total_payout = $4,
admin_note = COALESCE($5, admin_note), updated_at = NOW() WHERE id = $1`,
		trxID, totals.ItemsIn, totals.ItemsSold, totals.Payout, note)
	if err != nil {
		return shared.NewStorageError("consignment: update totals", err)
	}
	return nil
}

// TransitionStatus moves the header from one status to another only if it still holds from.
func (t *txRepo) TransitionStatus(ctx context.Context, trxID int64, from, to Status, reason *string) error {
	tag, err := t.tx.Exec(ctx, `UPDATE daily_transactions SET status = $3, cancel_reason = COALESCE($4, cancel_reason),
updated_at = NOW() WHERE id = $1 AND status = $2`, trxID, string(from), string(to), reason)
	if err != nil {
		return shared.NewStorageError("consignment: transition status", err)
	}
	if tag.RowsAffected() == 0 {
		return &StateError{TrxID: trxID, Op: "transition"}
	}
	return nil
}

func listItems(ctx context.Context, q db.Querier, trxID int64) ([]TransactionItem, error) {
	rows, err := q.Query(ctx, selectItem+` WHERE trx_id = $1 ORDER BY id`, trxID)
	if err != nil {
		return nil, shared.NewStorageError("consignment: list items", err)
	}
	defer rows.Close()
	var items []TransactionItem
	for rows.Next() {
		var item TransactionItem
		if err := rows.Scan(&item.ID, &item.TrxID, &item.ProductID, &item.QtyPlanned, &item.QtyActual, &item.QtyReturned); err != nil {
			return nil, shared.NewStorageError("consignment: scan item", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.NewStorageError("consignment: list items", err)
	}
	return items, nil
}

func scanTransaction(row pgx.Row) (DailyTransaction, error) {
	var (
		trx    DailyTransaction
		status string
	)
	err := row.Scan(&trx.ID, &trx.StoreID, &trx.SupplierID, &trx.Date, &status, &trx.TotalItemsIn, &trx.TotalItemsSold,
		&trx.TotalPayout, &trx.AdminNote, &trx.CancelReason, &trx.CreatedAt, &trx.UpdatedAt)
	trx.Status = Status(status)
	return trx, err
}
