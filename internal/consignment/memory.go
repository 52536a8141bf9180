package consignment

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/consigna/consigna/internal/shared"
)

// MemoryRepository keeps the ledger in process. Transactions are serialized by one mutex
// and rolled back by restoring a snapshot, mirroring the row-locked PostgreSQL repository.
type MemoryRepository struct {
	mu       sync.Mutex
	nextTrx  int64
	nextItem int64
	trx      map[int64]DailyTransaction
	items    map[int64][]TransactionItem
	clock    func() time.Time

	// draftConflicts makes the next n draft creations fail as if another writer won the race.
	draftConflicts int
}

// NewMemoryRepository constructs an empty ledger.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		trx:   make(map[int64]DailyTransaction),
		items: make(map[int64][]TransactionItem),
		clock: time.Now,
	}
}

// InjectDraftConflicts makes the next n draft creations report a lost race.
func (r *MemoryRepository) InjectDraftConflicts(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.draftConflicts = n
}

type memoryTx struct {
	repo *MemoryRepository
}

// WithTx runs fn atomically; every write is undone when fn fails.
func (r *MemoryRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	trx, items, nextTrx, nextItem := r.snapshot()
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.trx, r.items, r.nextTrx, r.nextItem = trx, items, nextTrx, nextItem
		return err
	}
	return nil
}

// GetTransaction loads one header.
func (r *MemoryRepository) GetTransaction(ctx context.Context, id int64) (DailyTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	trx, ok := r.trx[id]
	if !ok {
		return DailyTransaction{}, fmt.Errorf("transaction %d: %w", id, shared.ErrNotFound)
	}
	return trx, nil
}

// ListItems loads the lines of a transaction.
func (r *MemoryRepository) ListItems(ctx context.Context, trxID int64) ([]TransactionItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneItems(r.items[trxID]), nil
}

// ListTransactions filters and pages headers, newest date first.
func (r *MemoryRepository) ListTransactions(ctx context.Context, filter ListFilter) ([]DailyTransaction, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []DailyTransaction
	for _, trx := range r.trx {
		if filter.StoreID > 0 && trx.StoreID != filter.StoreID {
			continue
		}
		if filter.SupplierID > 0 && trx.SupplierID != filter.SupplierID {
			continue
		}
		if filter.Date != nil && !trx.Date.Equal(DateOf(*filter.Date)) {
			continue
		}
		if filter.Status != "" && trx.Status != filter.Status {
			continue
		}
		matched = append(matched, trx)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].Date.Equal(matched[j].Date) {
			return matched[i].Date.After(matched[j].Date)
		}
		return matched[i].ID > matched[j].ID
	})
	page := shared.NewPagination(filter.Page, filter.PerPage, len(matched))
	start := page.Offset()
	if start > len(matched) {
		start = len(matched)
	}
	end := start + page.PerPage
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], len(matched), nil
}

// DraftIDs lists drafts of a store for one date.
func (r *MemoryRepository) DraftIDs(ctx context.Context, storeID int64, date time.Time) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []int64
	for id, trx := range r.trx {
		if trx.StoreID == storeID && trx.Date.Equal(date) && trx.Status == StatusDraft {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r *MemoryRepository) snapshot() (map[int64]DailyTransaction, map[int64][]TransactionItem, int64, int64) {
	trx := make(map[int64]DailyTransaction, len(r.trx))
	for k, v := range r.trx {
		trx[k] = v
	}
	items := make(map[int64][]TransactionItem, len(r.items))
	for k, v := range r.items {
		items[k] = cloneItems(v)
	}
	return trx, items, r.nextTrx, r.nextItem
}

func (t *memoryTx) FindOrCreateDraft(ctx context.Context, storeID, supplierID int64, date time.Time) (DailyTransaction, bool, error) {
	r := t.repo
	for _, trx := range r.trx {
		if trx.StoreID == storeID && trx.SupplierID == supplierID && trx.Date.Equal(date) && trx.Status != StatusCancelled {
			return trx, false, nil
		}
	}
	if r.draftConflicts > 0 {
		r.draftConflicts--
		return DailyTransaction{}, false, errDraftConflict
	}
	r.nextTrx++
	now := r.clock().UTC()
	trx := DailyTransaction{
		ID:          r.nextTrx,
		StoreID:     storeID,
		SupplierID:  supplierID,
		Date:        date,
		Status:      StatusDraft,
		TotalPayout: decimal.Zero,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	r.trx[trx.ID] = trx
	return trx, true, nil
}

func (t *memoryTx) LockTransaction(ctx context.Context, id int64) (DailyTransaction, error) {
	trx, ok := t.repo.trx[id]
	if !ok {
		return DailyTransaction{}, fmt.Errorf("transaction %d: %w", id, shared.ErrNotFound)
	}
	return trx, nil
}

func (t *memoryTx) ListItems(ctx context.Context, trxID int64) ([]TransactionItem, error) {
	return cloneItems(t.repo.items[trxID]), nil
}

func (t *memoryTx) AddPlannedQty(ctx context.Context, trxID, productID, qty int64) error {
	r := t.repo
	items := r.items[trxID]
	for i := range items {
		if items[i].ProductID == productID {
			items[i].QtyPlanned += qty
			return nil
		}
	}
	r.nextItem++
	r.items[trxID] = append(items, TransactionItem{ID: r.nextItem, TrxID: trxID, ProductID: productID, QtyPlanned: qty})
	return nil
}

func (t *memoryTx) SetActualQty(ctx context.Context, trxID, itemID, qty int64) error {
	return t.updateItem(trxID, itemID, func(item *TransactionItem) { item.QtyActual = qty })
}

func (t *memoryTx) SetReturnedQty(ctx context.Context, trxID, itemID, qty int64) error {
	return t.updateItem(trxID, itemID, func(item *TransactionItem) { item.QtyReturned = qty })
}

func (t *memoryTx) updateItem(trxID, itemID int64, mutate func(*TransactionItem)) error {
	items := t.repo.items[trxID]
	for i := range items {
		if items[i].ID == itemID {
			mutate(&items[i])
			return nil
		}
	}
	return fmt.Errorf("item %d of transaction %d: %w", itemID, trxID, shared.ErrNotFound)
}

func (t *memoryTx) UpdateTotals(ctx context.Context, trxID int64, totals Totals, note *string) error {
	trx, ok := t.repo.trx[trxID]
	if !ok {
		return fmt.Errorf("transaction %d: %w", trxID, shared.ErrNotFound)
	}
	trx.TotalItemsIn, trx.TotalItemsSold, trx.TotalPayout = totals.ItemsIn, totals.ItemsSold, totals.Payout
	if note != nil {
		trx.AdminNote = note
	}
	trx.UpdatedAt = t.repo.clock().UTC()
	t.repo.trx[trxID] = trx
	return nil
}

func (t *memoryTx) TransitionStatus(ctx context.Context, trxID int64, from, to Status, reason *string) error {
	trx, ok := t.repo.trx[trxID]
	if !ok || trx.Status != from {
		return &StateError{TrxID: trxID, Op: "transition"}
	}
	trx.Status = to
	if reason != nil {
		trx.CancelReason = reason
	}
	trx.UpdatedAt = t.repo.clock().UTC()
	t.repo.trx[trxID] = trx
	return nil
}
