package reliability

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/consigna/consigna/internal/shared"
)

type statsKey struct {
	supplierID int64
	storeID    int64
}

// MemoryRepository keeps stats in process. A single mutex serializes transactions, which
// gives the same per-key guarantee as the row lock in Repository.
type MemoryRepository struct {
	mu    sync.Mutex
	stats map[statsKey]SupplierStats
}

// NewMemoryRepository constructs an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{stats: make(map[statsKey]SupplierStats)}
}

type memoryTx struct {
	repo    *MemoryRepository
	pending map[statsKey]SupplierStats
}

// WithTx runs fn atomically; writes are discarded when fn fails.
func (r *MemoryRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx := &memoryTx{repo: r, pending: make(map[statsKey]SupplierStats)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for k, v := range tx.pending {
		r.stats[k] = v
	}
	return nil
}

// Get returns stats without creating them.
func (r *MemoryRepository) Get(ctx context.Context, supplierID, storeID int64) (SupplierStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats, ok := r.stats[statsKey{supplierID, storeID}]
	if !ok {
		return SupplierStats{}, fmt.Errorf("supplier stats %d/%d: %w", supplierID, storeID, shared.ErrNotFound)
	}
	return stats, nil
}

// ListByStore returns stats for a store, best score first.
func (r *MemoryRepository) ListByStore(ctx context.Context, storeID int64) ([]SupplierStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []SupplierStats
	for k, v := range r.stats {
		if k.storeID == storeID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ReliabilityScore != out[j].ReliabilityScore {
			return out[i].ReliabilityScore > out[j].ReliabilityScore
		}
		return out[i].SupplierID < out[j].SupplierID
	})
	return out, nil
}

func (t *memoryTx) LockStats(ctx context.Context, supplierID, storeID int64) (SupplierStats, error) {
	key := statsKey{supplierID, storeID}
	if stats, ok := t.pending[key]; ok {
		return stats, nil
	}
	if stats, ok := t.repo.stats[key]; ok {
		return stats, nil
	}
	return NewSupplierStats(supplierID, storeID), nil
}

func (t *memoryTx) SaveStats(ctx context.Context, stats SupplierStats) error {
	t.pending[statsKey{stats.SupplierID, stats.StoreID}] = stats
	return nil
}
