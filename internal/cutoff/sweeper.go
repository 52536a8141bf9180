package cutoff

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"golang.org/x/sync/errgroup"

	"github.com/consigna/consigna/internal/shared"
	"github.com/consigna/consigna/internal/stores"
)

const (
	defaultConcurrency = 4
	defaultLockTTL     = 2 * time.Minute
)

// Lifecycle is the part of the lifecycle engine the sweep drives.
type Lifecycle interface {
	DraftIDs(ctx context.Context, storeID int64, date time.Time) ([]int64, error)
	CancelForCutoff(ctx context.Context, trxID int64) error
}

// StoreSource lists stores with auto-cancel enabled and a cutoff configured.
type StoreSource interface {
	AutoCancelStores(ctx context.Context) ([]stores.Config, error)
}

// Config tunes the sweep.
type Config struct {
	Concurrency int
	LockTTL     time.Duration
}

// StoreResult reports one store's sweep.
type StoreResult struct {
	StoreID        int64 `json:"store_id"`
	PastCutoff     bool  `json:"past_cutoff"`
	Cancelled      int   `json:"cancelled"`
	AlreadyHandled int   `json:"already_handled"`
}

// Failure is a store whose sweep did not finish cleanly.
type Failure struct {
	StoreID int64  `json:"store_id"`
	Error   string `json:"error"`
}

// Summary aggregates a SweepAll run.
type Summary struct {
	StoresProcessed       int           `json:"stores_processed"`
	TransactionsCancelled int           `json:"transactions_cancelled"`
	Stores                []StoreResult `json:"stores"`
	Failures              []Failure     `json:"failures"`
	Skipped               bool          `json:"skipped"`
}

// Sweeper cancels drafts left open after each store's cutoff. Every pass only touches
// drafts that are still open, so running it repeatedly is harmless.
type Sweeper struct {
	stores    StoreSource
	lifecycle Lifecycle
	locker    *redislock.Client
	cfg       Config
	logger    *slog.Logger
}

// NewSweeper builds a sweeper. A nil locker disables the cluster-wide guard.
func NewSweeper(source StoreSource, lifecycle Lifecycle, locker *redislock.Client, cfg Config, logger *slog.Logger) *Sweeper {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = defaultLockTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{stores: source, lifecycle: lifecycle, locker: locker, cfg: cfg, logger: logger}
}

// SweepStore cancels the store's drafts for its local today once the cutoff has passed.
// Drafts that changed state concurrently count as already handled.
func (s *Sweeper) SweepStore(ctx context.Context, store stores.Config, now time.Time) (StoreResult, error) {
	result := StoreResult{StoreID: store.StoreID}
	if !store.AutoCancelEnabled || !store.HasCutoff() {
		return result, nil
	}
	past, err := StoreIsPastCutoff(store, now)
	if err != nil {
		return result, err
	}
	if !past {
		return result, nil
	}
	result.PastCutoff = true

	ids, err := s.lifecycle.DraftIDs(ctx, store.StoreID, store.LocalDate(now))
	if err != nil {
		return result, fmt.Errorf("cutoff: list drafts of store %d: %w", store.StoreID, err)
	}
	var errs []error
	for _, id := range ids {
		err := s.lifecycle.CancelForCutoff(ctx, id)
		switch {
		case err == nil:
			result.Cancelled++
		case errors.Is(err, shared.ErrInvalidState), errors.Is(err, shared.ErrNotFound):
			result.AlreadyHandled++
		default:
			errs = append(errs, fmt.Errorf("cutoff: cancel transaction %d: %w", id, err))
		}
	}
	if result.Cancelled > 0 {
		s.logger.Info("cutoff cancelled drafts",
			slog.Int64("store_id", store.StoreID),
			slog.Int("cancelled", result.Cancelled))
	}
	return result, errors.Join(errs...)
}

// SweepAll sweeps every auto-cancel store with bounded concurrency. One store failing never
// stops the others; failures are collected in the summary. When another instance holds the
// sweep lock the run is skipped.
func (s *Sweeper) SweepAll(ctx context.Context, now time.Time) (Summary, error) {
	if s.locker != nil {
		lock, err := s.locker.Obtain(ctx, shared.CutoffSweepLockKey, s.cfg.LockTTL, nil)
		switch {
		case errors.Is(err, redislock.ErrNotObtained):
			s.logger.Info("cutoff sweep already running elsewhere")
			return Summary{Skipped: true, Failures: []Failure{}}, nil
		case err != nil:
			s.logger.Warn("cutoff lock unavailable, sweeping unguarded", slog.Any("error", err))
		default:
			defer func() {
				if err := lock.Release(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
					s.logger.Warn("release cutoff lock", slog.Any("error", err))
				}
			}()
		}
	}

	list, err := s.stores.AutoCancelStores(ctx)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{Failures: []Failure{}}
	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.cfg.Concurrency)
	for _, store := range list {
		store := store
		g.Go(func() error {
			res, err := s.SweepStore(ctx, store, now)
			mu.Lock()
			defer mu.Unlock()
			summary.StoresProcessed++
			summary.TransactionsCancelled += res.Cancelled
			if res.PastCutoff {
				summary.Stores = append(summary.Stores, res)
			}
			if err != nil {
				s.logger.Error("cutoff sweep store failed", slog.Int64("store_id", store.StoreID), slog.Any("error", err))
				summary.Failures = append(summary.Failures, Failure{StoreID: store.StoreID, Error: err.Error()})
			}
			return nil
		})
	}
	_ = g.Wait()
	sort.Slice(summary.Failures, func(i, j int) bool { return summary.Failures[i].StoreID < summary.Failures[j].StoreID })
	sort.Slice(summary.Stores, func(i, j int) bool { return summary.Stores[i].StoreID < summary.Stores[j].StoreID })
	return summary, nil
}
