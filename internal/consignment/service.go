package consignment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/consigna/consigna/internal/cutoff"
	"github.com/consigna/consigna/internal/reliability"
	"github.com/consigna/consigna/internal/shared"
	"github.com/consigna/consigna/internal/stores"
)

// DefaultSubmitRetries bounds how often Submit replays after losing a draft creation race.
const DefaultSubmitRetries = 3

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetTransaction(ctx context.Context, id int64) (DailyTransaction, error)
	ListItems(ctx context.Context, trxID int64) ([]TransactionItem, error)
	ListTransactions(ctx context.Context, filter ListFilter) ([]DailyTransaction, int, error)
	DraftIDs(ctx context.Context, storeID int64, date time.Time) ([]int64, error)
}

// Service is the lifecycle engine and the only writer of transactions and their items.
type Service struct {
	repo          RepositoryPort
	catalog       Catalog
	stores        StoreDirectory
	scorer        Scorer
	audit         AuditPort
	notifier      Notifier
	logger        *slog.Logger
	clock         func() time.Time
	submitRetries int
}

// Deps groups the collaborators of Service.
type Deps struct {
	Repo     RepositoryPort
	Catalog  Catalog
	Stores   StoreDirectory
	Scorer   Scorer
	Audit    AuditPort
	Notifier Notifier
	Logger   *slog.Logger
}

// NewService constructs the lifecycle engine.
func NewService(deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:          deps.Repo,
		catalog:       deps.Catalog,
		stores:        deps.Stores,
		scorer:        deps.Scorer,
		audit:         deps.Audit,
		notifier:      deps.Notifier,
		logger:        logger,
		clock:         time.Now,
		submitRetries: DefaultSubmitRetries,
	}
}

// WithClock overrides the time source.
func (s *Service) WithClock(clock func() time.Time) *Service {
	if clock != nil {
		s.clock = clock
	}
	return s
}

// WithSubmitRetries overrides DefaultSubmitRetries.
func (s *Service) WithSubmitRetries(n int) *Service {
	if n >= 0 {
		s.submitRetries = n
	}
	return s
}

// Submit adds a supplier's planned lines to the draft for (store, supplier, date), creating
// the draft on first submission. Repeated lines for a product accumulate.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (Transaction, error) {
	lines, err := normalizeSubmitLines(in)
	if err != nil {
		return Transaction{}, err
	}
	store, err := s.stores.StoreConfig(ctx, in.StoreID)
	if err != nil {
		return Transaction{}, err
	}
	if !store.AcceptingSubmissions() {
		return Transaction{}, fmt.Errorf("%w: store %d is not accepting deliveries", shared.ErrStoreClosed, in.StoreID)
	}
	date := DateOf(in.Date)
	now := s.clock()
	today := store.LocalDate(now)
	if date.Before(today) {
		return Transaction{}, fmt.Errorf("%w: delivery date %s is in the past", shared.ErrValidation, date.Format(time.DateOnly))
	}
	if date.Equal(today) && store.AutoCancelEnabled {
		past, err := cutoff.StoreIsPastCutoff(store, now)
		if err != nil {
			return Transaction{}, err
		}
		if past {
			return Transaction{}, fmt.Errorf("%w: cutoff %s has passed for store %d", shared.ErrStoreClosed, store.CutoffTime, in.StoreID)
		}
	}
	if err := s.checkProducts(ctx, in.SupplierID, lines); err != nil {
		return Transaction{}, err
	}

	var (
		before  DailyTransaction
		result  Transaction
		created bool
	)
	attempt := 0
	for ; ; attempt++ {
		err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			trx, isNew, err := tx.FindOrCreateDraft(ctx, in.StoreID, in.SupplierID, date)
			if err != nil {
				return err
			}
			if !trx.Status.CanSubmit() {
				return &StateError{TrxID: trx.ID, Op: "submit to", Current: trx.Status}
			}
			before, created = trx, isNew
			for _, line := range lines {
				if err := tx.AddPlannedQty(ctx, trx.ID, line.ProductID, line.Qty); err != nil {
					return err
				}
			}
			items, err := tx.ListItems(ctx, trx.ID)
			if err != nil {
				return err
			}
			trx.TotalItemsIn = sumPlanned(items)
			if err := tx.UpdateTotals(ctx, trx.ID, Totals{ItemsIn: trx.TotalItemsIn, Payout: decimal.Zero}, nil); err != nil {
				return err
			}
			result = Transaction{DailyTransaction: trx, Items: items}
			return nil
		})
		if errors.Is(err, errDraftConflict) && attempt < s.submitRetries {
			s.logger.Debug("draft creation raced, retrying", slog.Int64("store_id", in.StoreID), slog.Int("attempt", attempt+1))
			continue
		}
		break
	}
	if errors.Is(err, errDraftConflict) {
		return Transaction{}, &DraftRaceError{StoreID: in.StoreID, SupplierID: in.SupplierID, Date: date, Attempts: attempt + 1}
	}
	if err != nil {
		return Transaction{}, err
	}

	action, oldValue := "transaction.submitted", snapshot(before)
	if created {
		action, oldValue = "transaction.created", nil
	}
	s.recordAudit(ctx, in.SupplierID, action, result.ID, oldValue, snapshotWithLines(result.DailyTransaction, submitLinesSnapshot(lines)), nil)
	s.notify(ctx, result.DailyTransaction, EventSubmitted, nil)
	return result, nil
}

// Verify records the quantities that physically arrived and moves the draft to verified.
func (s *Service) Verify(ctx context.Context, in VerifyInput) (Transaction, error) {
	actual := make(map[int64]int64, len(in.Lines))
	for _, line := range in.Lines {
		if line.QtyActual < 0 {
			return Transaction{}, &QuantityError{ItemID: line.ItemID, Reason: "actual quantity is negative"}
		}
		if _, dup := actual[line.ItemID]; dup {
			return Transaction{}, &QuantityError{ItemID: line.ItemID, Reason: "item listed twice"}
		}
		actual[line.ItemID] = line.QtyActual
	}

	var before, after Transaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		trx, err := tx.LockTransaction(ctx, in.TrxID)
		if err != nil {
			return err
		}
		if !trx.Status.CanVerify() {
			return &StateError{TrxID: trx.ID, Op: "verify", Current: trx.Status}
		}
		items, err := tx.ListItems(ctx, trx.ID)
		if err != nil {
			return err
		}
		if err := requireKnownItems(trx.ID, items, keysOf(actual)); err != nil {
			return err
		}
		before = Transaction{DailyTransaction: trx, Items: cloneItems(items)}
		for i := range items {
			qty := actual[items[i].ID]
			if qty != items[i].QtyActual {
				if err := tx.SetActualQty(ctx, trx.ID, items[i].ID, qty); err != nil {
					return err
				}
			}
			items[i].QtyActual = qty
		}
		trx.TotalItemsIn = sumActual(items)
		if err := tx.UpdateTotals(ctx, trx.ID, Totals{ItemsIn: trx.TotalItemsIn, Payout: decimal.Zero}, in.Note); err != nil {
			return err
		}
		if err := tx.TransitionStatus(ctx, trx.ID, StatusDraft, StatusVerified, nil); err != nil {
			return err
		}
		trx.Status = StatusVerified
		if in.Note != nil {
			trx.AdminNote = in.Note
		}
		after = Transaction{DailyTransaction: trx, Items: items}
		return nil
	})
	if err != nil {
		return Transaction{}, err
	}
	s.recordAudit(ctx, in.ActorID, "transaction.verified", after.ID, snapshotWithItems(before), snapshotWithItems(after), nil)
	s.notify(ctx, after.DailyTransaction, EventVerified, nil)
	return after, nil
}

// Complete records returns, computes the payout at current buy prices and scores the
// supplier in the same database transaction.
func (s *Service) Complete(ctx context.Context, in CompleteInput) (Transaction, error) {
	returned := make(map[int64]int64, len(in.Lines))
	for _, line := range in.Lines {
		if line.QtyReturned < 0 {
			return Transaction{}, &QuantityError{ItemID: line.ItemID, Reason: "returned quantity is negative"}
		}
		if _, dup := returned[line.ItemID]; dup {
			return Transaction{}, &QuantityError{ItemID: line.ItemID, Reason: "item listed twice"}
		}
		returned[line.ItemID] = line.QtyReturned
	}

	var before, after Transaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		trx, err := tx.LockTransaction(ctx, in.TrxID)
		if err != nil {
			return err
		}
		if !trx.Status.CanComplete() {
			return &StateError{TrxID: trx.ID, Op: "complete", Current: trx.Status}
		}
		items, err := tx.ListItems(ctx, trx.ID)
		if err != nil {
			return err
		}
		if err := requireKnownItems(trx.ID, items, keysOf(returned)); err != nil {
			return err
		}
		for _, item := range items {
			if returned[item.ID] > item.QtyActual {
				return &QuantityError{ItemID: item.ID, Reason: fmt.Sprintf("returned %d exceeds delivered %d", returned[item.ID], item.QtyActual)}
			}
		}
		before = Transaction{DailyTransaction: trx, Items: cloneItems(items)}

		payout := decimal.Zero
		var sold int64
		for i := range items {
			qty := returned[items[i].ID]
			if qty != items[i].QtyReturned {
				if err := tx.SetReturnedQty(ctx, trx.ID, items[i].ID, qty); err != nil {
					return err
				}
			}
			items[i].QtyReturned = qty
			itemSold := items[i].QtySold()
			if itemSold == 0 {
				continue
			}
			product, err := s.catalog.GetProduct(ctx, items[i].ProductID)
			if err != nil {
				return err
			}
			payout = payout.Add(product.PriceBuy.Mul(decimal.NewFromInt(itemSold)))
			sold += itemSold
		}

		totals := Totals{ItemsIn: sumActual(items), ItemsSold: sold, Payout: payout}
		if err := tx.UpdateTotals(ctx, trx.ID, totals, in.Note); err != nil {
			return err
		}
		if err := tx.TransitionStatus(ctx, trx.ID, StatusVerified, StatusCompleted, nil); err != nil {
			return err
		}
		_, err = s.scorer.OnCompleted(ctx, trx.SupplierID, trx.StoreID, reliability.Completion{
			PlannedQty: sumPlanned(items),
			ActualQty:  totals.ItemsIn,
			SoldQty:    sold,
			Revenue:    payout,
		})
		if err != nil {
			return err
		}
		trx.Status = StatusCompleted
		trx.TotalItemsIn, trx.TotalItemsSold, trx.TotalPayout = totals.ItemsIn, totals.ItemsSold, totals.Payout
		if in.Note != nil {
			trx.AdminNote = in.Note
		}
		after = Transaction{DailyTransaction: trx, Items: items}
		return nil
	})
	if err != nil {
		return Transaction{}, err
	}
	s.recordAudit(ctx, in.ActorID, "transaction.completed", after.ID, snapshotWithItems(before), snapshotWithItems(after), nil)
	s.notify(ctx, after.DailyTransaction, EventCompleted, nil)
	return after, nil
}

// Cancel ends a draft or verified transaction. Supplier and cutoff cancellations count
// against the supplier's reliability; owner cancellations do not.
func (s *Service) Cancel(ctx context.Context, in CancelInput) (DailyTransaction, error) {
	switch in.Origin {
	case CancelByOwner, CancelBySupplier:
		if in.Reason == "" {
			return DailyTransaction{}, fmt.Errorf("%w: cancel reason required", shared.ErrValidation)
		}
	case CancelByCutoff:
		in.ActorID = shared.ActorSystem
		in.Reason = CutoffReason
	default:
		return DailyTransaction{}, fmt.Errorf("%w: unknown cancel origin %q", shared.ErrValidation, in.Origin)
	}

	var before, after DailyTransaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		trx, err := tx.LockTransaction(ctx, in.TrxID)
		if err != nil {
			return err
		}
		if !trx.Status.CanCancel(in.Origin) {
			return &StateError{TrxID: trx.ID, Op: "cancel", Current: trx.Status}
		}
		before = trx
		reason := in.Reason
		if err := tx.TransitionStatus(ctx, trx.ID, trx.Status, StatusCancelled, &reason); err != nil {
			return err
		}
		if in.Origin.PenalizesSupplier() {
			if _, err := s.scorer.OnSupplierCancelled(ctx, trx.SupplierID, trx.StoreID); err != nil {
				return err
			}
		}
		trx.Status = StatusCancelled
		trx.CancelReason = &reason
		after = trx
		return nil
	})
	if err != nil {
		return DailyTransaction{}, err
	}
	reason := in.Reason
	newValue := snapshot(after)
	newValue["origin"] = string(in.Origin)
	s.recordAudit(ctx, in.ActorID, "transaction.cancelled", after.ID, snapshot(before), newValue, &reason)
	s.notify(ctx, after, EventCancelled, map[string]any{"reason": reason, "origin": string(in.Origin)})
	return after, nil
}

// CancelForCutoff cancels one draft on behalf of the cutoff sweep.
func (s *Service) CancelForCutoff(ctx context.Context, trxID int64) error {
	_, err := s.Cancel(ctx, CancelInput{TrxID: trxID, Origin: CancelByCutoff})
	return err
}

// Get loads a transaction with its items.
func (s *Service) Get(ctx context.Context, id int64) (Transaction, error) {
	trx, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return Transaction{}, err
	}
	items, err := s.repo.ListItems(ctx, id)
	if err != nil {
		return Transaction{}, err
	}
	return Transaction{DailyTransaction: trx, Items: items}, nil
}

// List returns a page of transaction headers.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]DailyTransaction, shared.Pagination, error) {
	list, total, err := s.repo.ListTransactions(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return list, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// DraftIDs lists the drafts of a store for one store-local date.
func (s *Service) DraftIDs(ctx context.Context, storeID int64, date time.Time) ([]int64, error) {
	return s.repo.DraftIDs(ctx, storeID, DateOf(date))
}

// AuthorizeOwner fails with shared.ErrForbidden unless viewer owns the store of the transaction.
func (s *Service) AuthorizeOwner(ctx context.Context, viewer shared.Principal, trxID int64) error {
	trx, err := s.repo.GetTransaction(ctx, trxID)
	if err != nil {
		return err
	}
	return s.requireOwner(ctx, viewer, trx.StoreID)
}

// AuthorizeViewer allows the store owner or the delivering supplier.
func (s *Service) AuthorizeViewer(ctx context.Context, viewer shared.Principal, trxID int64) (DailyTransaction, error) {
	trx, err := s.repo.GetTransaction(ctx, trxID)
	if err != nil {
		return DailyTransaction{}, err
	}
	if viewer.IsSupplier() && viewer.UserID == trx.SupplierID {
		return trx, nil
	}
	if err := s.requireOwner(ctx, viewer, trx.StoreID); err != nil {
		return DailyTransaction{}, err
	}
	return trx, nil
}

// AuthorizeSupplier allows only the delivering supplier.
func (s *Service) AuthorizeSupplier(ctx context.Context, viewer shared.Principal, trxID int64) error {
	trx, err := s.repo.GetTransaction(ctx, trxID)
	if err != nil {
		return err
	}
	if !viewer.IsSupplier() || viewer.UserID != trx.SupplierID {
		return fmt.Errorf("%w: transaction %d belongs to another supplier", shared.ErrForbidden, trxID)
	}
	return nil
}

// RequireStoreOwner fails unless viewer owns storeID.
func (s *Service) RequireStoreOwner(ctx context.Context, viewer shared.Principal, storeID int64) error {
	return s.requireOwner(ctx, viewer, storeID)
}

func (s *Service) requireOwner(ctx context.Context, viewer shared.Principal, storeID int64) error {
	if !viewer.IsOwner() {
		return fmt.Errorf("%w: owner role required", shared.ErrForbidden)
	}
	store, err := s.stores.StoreConfig(ctx, storeID)
	if err != nil {
		return err
	}
	if store.OwnerID != viewer.UserID {
		return fmt.Errorf("%w: store %d belongs to another owner", shared.ErrForbidden, storeID)
	}
	return nil
}

func (s *Service) checkProducts(ctx context.Context, supplierID int64, lines []SubmitLine) error {
	for _, line := range lines {
		product, err := s.catalog.GetProduct(ctx, line.ProductID)
		if err != nil {
			return err
		}
		if product.SupplierID != supplierID {
			return fmt.Errorf("%w: product %d is not supplied by %d", shared.ErrValidation, line.ProductID, supplierID)
		}
		if !product.Approved() {
			return fmt.Errorf("%w: product %d is %s", shared.ErrValidation, line.ProductID, product.Status)
		}
	}
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, trxID int64, oldValue, newValue map[string]any, reason *string) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, shared.AuditLog{
		ActorID:    actorID,
		Action:     action,
		EntityType: EntityType,
		EntityID:   strconv.FormatInt(trxID, 10),
		OldValue:   oldValue,
		NewValue:   newValue,
		Reason:     reason,
		At:         s.clock().UTC(),
	})
}

func (s *Service) notify(ctx context.Context, trx DailyTransaction, kind string, extra map[string]any) {
	if s.notifier == nil {
		return
	}
	payload := map[string]any{
		"trx_id":           trx.ID,
		"store_id":         trx.StoreID,
		"date":             trx.Date.Format(time.DateOnly),
		"status":           string(trx.Status),
		"total_items_in":   trx.TotalItemsIn,
		"total_items_sold": trx.TotalItemsSold,
		"total_payout":     trx.TotalPayout.StringFixed(2),
	}
	for k, v := range extra {
		payload[k] = v
	}
	if err := s.notifier.Notify(ctx, trx.SupplierID, kind, payload); err != nil {
		s.logger.Warn("notify supplier failed",
			slog.Int64("trx_id", trx.ID),
			slog.String("kind", kind),
			slog.Any("error", err))
	}
}

func normalizeSubmitLines(in SubmitInput) ([]SubmitLine, error) {
	if in.StoreID <= 0 || in.SupplierID <= 0 {
		return nil, fmt.Errorf("%w: store and supplier required", shared.ErrValidation)
	}
	if in.Date.IsZero() {
		return nil, fmt.Errorf("%w: delivery date required", shared.ErrValidation)
	}
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("%w: at least one item required", shared.ErrValidation)
	}
	index := make(map[int64]int, len(in.Items))
	lines := make([]SubmitLine, 0, len(in.Items))
	for _, line := range in.Items {
		if line.Qty <= 0 {
			return nil, &QuantityError{Reason: fmt.Sprintf("planned quantity for product %d must be positive", line.ProductID)}
		}
		if pos, ok := index[line.ProductID]; ok {
			lines[pos].Qty += line.Qty
			continue
		}
		index[line.ProductID] = len(lines)
		lines = append(lines, line)
	}
	return lines, nil
}

func requireKnownItems(trxID int64, items []TransactionItem, ids []int64) error {
	known := make(map[int64]struct{}, len(items))
	for _, item := range items {
		known[item.ID] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			return fmt.Errorf("item %d of transaction %d: %w", id, trxID, shared.ErrNotFound)
		}
	}
	return nil
}

func keysOf(m map[int64]int64) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

func cloneItems(items []TransactionItem) []TransactionItem {
	out := make([]TransactionItem, len(items))
	copy(out, items)
	return out
}

func snapshot(trx DailyTransaction) map[string]any {
	if trx.ID == 0 {
		return nil
	}
	return map[string]any{
		"status":           string(trx.Status),
		"total_items_in":   trx.TotalItemsIn,
		"total_items_sold": trx.TotalItemsSold,
		"total_payout":     trx.TotalPayout.StringFixed(2),
	}
}

func snapshotWithLines(trx DailyTransaction, lines []map[string]any) map[string]any {
	out := snapshot(trx)
	out["lines"] = lines
	return out
}

func snapshotWithItems(trx Transaction) map[string]any {
	out := snapshot(trx.DailyTransaction)
	items := make([]map[string]any, 0, len(trx.Items))
	for _, item := range trx.Items {
		items = append(items, map[string]any{
			"item_id":      item.ID,
			"product_id":   item.ProductID,
			"qty_planned":  item.QtyPlanned,
			"qty_actual":   item.QtyActual,
			"qty_returned": item.QtyReturned,
		})
	}
	out["items"] = items
	return out
}

func submitLinesSnapshot(lines []SubmitLine) []map[string]any {
	out := make([]map[string]any, 0, len(lines))
	for _, line := range lines {
		out = append(out, map[string]any{"product_id": line.ProductID, "qty": line.Qty})
	}
	return out
}

var _ StoreDirectory = (*stores.Directory)(nil)
