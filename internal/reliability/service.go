package reliability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/consigna/consigna/internal/platform/db"
	"github.com/consigna/consigna/internal/shared"
)

const auditEntity = "supplier_stats"

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, supplierID, storeID int64) (SupplierStats, error)
	ListByStore(ctx context.Context, storeID int64) ([]SupplierStats, error)
}

// StoreOwners resolves who owns a store.
type StoreOwners interface {
	OwnerOf(ctx context.Context, storeID int64) (int64, error)
}

// AuditPort receives one entry per stats mutation.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog)
}

// Service is the only writer of SupplierStats. Each mutation entry point represents exactly
// one real-world event; callers must not replay it.
type Service struct {
	repo   RepositoryPort
	owners StoreOwners
	audit  AuditPort
	logger *slog.Logger
	clock  func() time.Time
}

// NewService constructs the scoring service.
func NewService(repo RepositoryPort, owners StoreOwners, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, owners: owners, audit: audit, logger: logger, clock: time.Now}
}

// WithClock overrides the time source.
func (s *Service) WithClock(clock func() time.Time) *Service {
	if clock != nil {
		s.clock = clock
	}
	return s
}

// OnCompleted folds one completed transaction into the aggregate.
func (s *Service) OnCompleted(ctx context.Context, supplierID, storeID int64, c Completion) (SupplierStats, error) {
	if c.PlannedQty < 0 || c.ActualQty < 0 || c.SoldQty < 0 || c.Revenue.IsNegative() {
		return SupplierStats{}, fmt.Errorf("reliability: negative completion totals: %w", shared.ErrInvalidQuantity)
	}
	return s.apply(ctx, supplierID, storeID, "stats.completed", func(st *SupplierStats) {
		st.applyCompleted(c)
	})
}

// OnNoShow records a day on which the supplier delivered nothing.
func (s *Service) OnNoShow(ctx context.Context, supplierID, storeID int64) (SupplierStats, error) {
	return s.apply(ctx, supplierID, storeID, "stats.no_show", (*SupplierStats).applyNoShow)
}

// OnSupplierCancelled records a cancellation attributable to the supplier.
func (s *Service) OnSupplierCancelled(ctx context.Context, supplierID, storeID int64) (SupplierStats, error) {
	return s.apply(ctx, supplierID, storeID, "stats.supplier_cancelled", (*SupplierStats).applySupplierCancelled)
}

func (s *Service) apply(ctx context.Context, supplierID, storeID int64, action string, mutate func(*SupplierStats)) (SupplierStats, error) {
	if supplierID <= 0 || storeID <= 0 {
		return SupplierStats{}, fmt.Errorf("reliability: supplier and store required: %w", shared.ErrValidation)
	}
	var before, after SupplierStats
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		stats, err := tx.LockStats(ctx, supplierID, storeID)
		if err != nil {
			return err
		}
		before = stats
		mutate(&stats)
		now := s.clock().UTC()
		stats.LastTransactionAt = &now
		if err := tx.SaveStats(ctx, stats); err != nil {
			return err
		}
		after = stats
		return nil
	})
	if err != nil {
		return SupplierStats{}, err
	}
	db.AfterCommit(ctx, func(ctx context.Context) {
		s.recordAudit(ctx, action, before, after)
	})
	return after, nil
}

// Reliability returns the full stats, including the score, to the owner of the store.
func (s *Service) Reliability(ctx context.Context, viewer shared.Principal, supplierID, storeID int64) (SupplierStats, error) {
	if err := s.requireOwner(ctx, viewer, storeID); err != nil {
		return SupplierStats{}, err
	}
	return s.load(ctx, supplierID, storeID)
}

// Summary returns the supplier-safe projection to the supplier itself or the store owner.
func (s *Service) Summary(ctx context.Context, viewer shared.Principal, supplierID, storeID int64) (SupplierSummary, error) {
	if !(viewer.IsSupplier() && viewer.UserID == supplierID) {
		if err := s.requireOwner(ctx, viewer, storeID); err != nil {
			return SupplierSummary{}, err
		}
	}
	stats, err := s.load(ctx, supplierID, storeID)
	if err != nil {
		return SupplierSummary{}, err
	}
	return stats.Summary(), nil
}

// Leaderboard lists every supplier of a store for its owner.
func (s *Service) Leaderboard(ctx context.Context, viewer shared.Principal, storeID int64) ([]SupplierStats, error) {
	if err := s.requireOwner(ctx, viewer, storeID); err != nil {
		return nil, err
	}
	return s.repo.ListByStore(ctx, storeID)
}

// RecordNoShow lets the store owner report an externally detected no-show.
func (s *Service) RecordNoShow(ctx context.Context, viewer shared.Principal, supplierID, storeID int64) (SupplierStats, error) {
	if err := s.requireOwner(ctx, viewer, storeID); err != nil {
		return SupplierStats{}, err
	}
	return s.OnNoShow(ctx, supplierID, storeID)
}

func (s *Service) load(ctx context.Context, supplierID, storeID int64) (SupplierStats, error) {
	stats, err := s.repo.Get(ctx, supplierID, storeID)
	if errors.Is(err, shared.ErrNotFound) {
		return NewSupplierStats(supplierID, storeID), nil
	}
	return stats, err
}

func (s *Service) requireOwner(ctx context.Context, viewer shared.Principal, storeID int64) error {
	if !viewer.IsOwner() {
		return shared.ErrForbidden
	}
	ownerID, err := s.owners.OwnerOf(ctx, storeID)
	if err != nil {
		return err
	}
	if ownerID != viewer.UserID {
		return shared.ErrForbidden
	}
	return nil
}

func (s *Service) recordAudit(ctx context.Context, action string, before, after SupplierStats) {
	if s.audit == nil {
		return
	}
	actor := shared.ActorSystem
	if p, ok := shared.PrincipalFromContext(ctx); ok {
		actor = p.UserID
	}
	s.audit.Record(ctx, shared.AuditLog{
		ActorID:    actor,
		Action:     action,
		EntityType: auditEntity,
		EntityID:   fmt.Sprintf("%d:%d", after.SupplierID, after.StoreID),
		OldValue:   snapshot(before),
		NewValue:   snapshot(after),
	})
}

func snapshot(s SupplierStats) map[string]any {
	return map[string]any{
		"total_transactions":     s.TotalTransactions,
		"completed_transactions": s.CompletedTransactions,
		"cancelled_by_supplier":  s.CancelledBySupplier,
		"no_show_count":          s.NoShowCount,
		"average_accuracy":       s.AverageAccuracy,
		"reliability_score":      s.ReliabilityScore,
	}
}
