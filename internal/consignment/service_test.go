package consignment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consigna/consigna/internal/shared"
	"github.com/consigna/consigna/internal/stores"
)

func TestDeliveryLifecycleEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	trx := f.submit(t, SubmitLine{ProductID: productA, Qty: 10})
	require.Equal(t, StatusDraft, trx.Status)
	require.Equal(t, int64(10), trx.TotalItemsIn)
	item := itemFor(t, trx, productA)

	verified, err := f.svc.Verify(ctx, VerifyInput{TrxID: trx.ID, ActorID: testOwner, Lines: []ActualLine{{ItemID: item.ID, QtyActual: 8}}})
	require.NoError(t, err)
	require.Equal(t, StatusVerified, verified.Status)
	require.Equal(t, int64(8), verified.TotalItemsIn)

	completed, err := f.svc.Complete(ctx, CompleteInput{TrxID: trx.ID, ActorID: testOwner, Lines: []ReturnLine{{ItemID: item.ID, QtyReturned: 2}}})
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, completed.Status)
	require.Equal(t, int64(6), completed.TotalItemsSold)
	require.True(t, decimal.NewFromInt(6000).Equal(completed.TotalPayout), completed.TotalPayout.String())
	require.Equal(t, int64(6), itemFor(t, completed, productA).QtySold())

	stored, err := f.svc.Get(ctx, trx.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, stored.Status)
	require.True(t, decimal.NewFromInt(6000).Equal(stored.TotalPayout))

	stats, err := f.statsRepo.Get(ctx, testSupplier, testStore)
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.CompletedTransactions)
	require.Equal(t, int64(1), stats.TotalTransactions)
	require.Equal(t, 80, stats.AverageAccuracy)
	require.Equal(t, 100, stats.ReliabilityScore)
	require.True(t, decimal.NewFromInt(6000).Equal(stats.TotalRevenue))

	require.Equal(t, []string{"transaction.created", "transaction.verified", "transaction.completed"}, f.audit.actions(EntityType))
	require.Equal(t, []string{"stats.completed"}, f.audit.actions("supplier_stats"))
	require.Equal(t, []string{EventSubmitted, EventVerified, EventCompleted}, f.notifier.kinds())
	for _, e := range f.notifier.events {
		require.Equal(t, testSupplier, e.userID)
	}
}

func TestRepeatedSubmissionsAccumulateIntoOneLine(t *testing.T) {
	f := newFixture(t)

	first := f.submit(t, SubmitLine{ProductID: productA, Qty: 5})
	second := f.submit(t, SubmitLine{ProductID: productA, Qty: 3})

	require.Equal(t, first.ID, second.ID)
	require.Len(t, second.Items, 1)
	require.Equal(t, int64(8), second.Items[0].QtyPlanned)
	require.Equal(t, int64(0), second.Items[0].QtyActual)
	require.Equal(t, int64(8), second.TotalItemsIn)

	third := f.submit(t, SubmitLine{ProductID: productB, Qty: 2}, SubmitLine{ProductID: productB, Qty: 4})
	require.Len(t, third.Items, 2)
	require.Equal(t, int64(6), itemFor(t, third, productB).QtyPlanned)
	require.Equal(t, int64(14), third.TotalItemsIn)
	require.Equal(t, []string{"transaction.created", "transaction.submitted", "transaction.submitted"}, f.audit.actions(EntityType))
}

func TestCompleteRejectsReturnAboveActual(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	trx := f.submit(t, SubmitLine{ProductID: productA, Qty: 10}, SubmitLine{ProductID: productB, Qty: 4})
	a, b := itemFor(t, trx, productA), itemFor(t, trx, productB)
	_, err := f.svc.Verify(ctx, VerifyInput{TrxID: trx.ID, ActorID: testOwner, Lines: []ActualLine{{ItemID: a.ID, QtyActual: 8}, {ItemID: b.ID, QtyActual: 4}}})
	require.NoError(t, err)

	_, err = f.svc.Complete(ctx, CompleteInput{TrxID: trx.ID, ActorID: testOwner, Lines: []ReturnLine{{ItemID: a.ID, QtyReturned: 1}, {ItemID: b.ID, QtyReturned: 5}}})
	require.ErrorIs(t, err, shared.ErrInvalidQuantity)
	var qerr *QuantityError
	require.True(t, errors.As(err, &qerr))
	require.Equal(t, b.ID, qerr.ItemID)

	stored, err := f.svc.Get(ctx, trx.ID)
	require.NoError(t, err)
	require.Equal(t, StatusVerified, stored.Status)
	for _, item := range stored.Items {
		require.Zero(t, item.QtyReturned)
	}
	_, err = f.statsRepo.Get(ctx, testSupplier, testStore)
	require.ErrorIs(t, err, shared.ErrNotFound)

	_, err = f.svc.Complete(ctx, CompleteInput{TrxID: trx.ID, ActorID: testOwner, Lines: []ReturnLine{{ItemID: a.ID, QtyReturned: -1}}})
	require.ErrorIs(t, err, shared.ErrInvalidQuantity)
}

func TestCompletedTotalsConserveQuantities(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	trx := f.submit(t, SubmitLine{ProductID: productA, Qty: 12}, SubmitLine{ProductID: productB, Qty: 5})
	a, b := itemFor(t, trx, productA), itemFor(t, trx, productB)
	_, err := f.svc.Verify(ctx, VerifyInput{TrxID: trx.ID, ActorID: testOwner, Lines: []ActualLine{{ItemID: a.ID, QtyActual: 10}, {ItemID: b.ID, QtyActual: 5}}})
	require.NoError(t, err)

	completed, err := f.svc.Complete(ctx, CompleteInput{TrxID: trx.ID, ActorID: testOwner, Lines: []ReturnLine{{ItemID: a.ID, QtyReturned: 3}, {ItemID: b.ID, QtyReturned: 3}}})
	require.NoError(t, err)

	var sold int64
	payout := decimal.Zero
	for _, item := range completed.Items {
		p, err := f.catalog.GetProduct(ctx, item.ProductID)
		require.NoError(t, err)
		sold += item.QtyActual - item.QtyReturned
		payout = payout.Add(p.PriceBuy.Mul(decimal.NewFromInt(item.QtySold())))
	}
	require.Equal(t, sold, completed.TotalItemsSold)
	require.Equal(t, int64(9), completed.TotalItemsSold)
	require.True(t, payout.Equal(completed.TotalPayout))
	require.Equal(t, "12001.00", completed.TotalPayout.StringFixed(2))

	stats, err := f.statsRepo.Get(ctx, testSupplier, testStore)
	require.NoError(t, err)
	require.Equal(t, int64(17), stats.TotalPlannedQty)
	require.Equal(t, int64(15), stats.TotalActualQty)
	require.Equal(t, int64(9), stats.TotalSoldQty)
	require.Equal(t, 88, stats.AverageAccuracy)
}

func TestPayoutUsesPriceAtCompletion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	trx := f.submit(t, SubmitLine{ProductID: productA, Qty: 4})
	item := itemFor(t, trx, productA)
	_, err := f.svc.Verify(ctx, VerifyInput{TrxID: trx.ID, ActorID: testOwner, Lines: []ActualLine{{ItemID: item.ID, QtyActual: 4}}})
	require.NoError(t, err)

	f.catalog.setPrice(productA, 1200)
	completed, err := f.svc.Complete(ctx, CompleteInput{TrxID: trx.ID, ActorID: testOwner})
	require.NoError(t, err)
	require.True(t, decimal.NewFromInt(4800).Equal(completed.TotalPayout))
}

func TestTransitionsNeverGoBackward(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	completed := f.submit(t, SubmitLine{ProductID: productA, Qty: 1})
	item := itemFor(t, completed, productA)
	_, err := f.svc.Complete(ctx, CompleteInput{TrxID: completed.ID, ActorID: testOwner})
	require.ErrorIs(t, err, shared.ErrInvalidState, "complete requires verified")
	_, err = f.svc.Verify(ctx, VerifyInput{TrxID: completed.ID, ActorID: testOwner, Lines: []ActualLine{{ItemID: item.ID, QtyActual: 1}}})
	require.NoError(t, err)
	_, err = f.svc.Verify(ctx, VerifyInput{TrxID: completed.ID, ActorID: testOwner})
	require.ErrorIs(t, err, shared.ErrInvalidState, "verify is exactly once")
	_, err = f.svc.Submit(ctx, SubmitInput{StoreID: testStore, SupplierID: testSupplier, Date: testDate, Items: []SubmitLine{{ProductID: productA, Qty: 1}}})
	require.ErrorIs(t, err, shared.ErrInvalidState, "submit into verified")
	_, err = f.svc.Complete(ctx, CompleteInput{TrxID: completed.ID, ActorID: testOwner})
	require.NoError(t, err)

	cancelled, err := f.svc.Submit(ctx, SubmitInput{StoreID: testStore, SupplierID: otherSupplier, Date: testDate, Items: []SubmitLine{{ProductID: foreignProduct, Qty: 1}}})
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, CancelInput{TrxID: cancelled.ID, ActorID: testOwner, Reason: "rak penuh", Origin: CancelByOwner})
	require.NoError(t, err)

	for _, id := range []int64{completed.ID, cancelled.ID} {
		_, err = f.svc.Verify(ctx, VerifyInput{TrxID: id, ActorID: testOwner})
		require.ErrorIs(t, err, shared.ErrInvalidState)
		_, err = f.svc.Complete(ctx, CompleteInput{TrxID: id, ActorID: testOwner})
		require.ErrorIs(t, err, shared.ErrInvalidState)
		_, err = f.svc.Cancel(ctx, CancelInput{TrxID: id, ActorID: testOwner, Reason: "again", Origin: CancelByOwner})
		require.ErrorIs(t, err, shared.ErrInvalidState)
	}

	got, err := f.svc.Get(ctx, completed.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, got.Status)
	got, err = f.svc.Get(ctx, cancelled.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, got.Status)
}

func TestSubmitValidation(t *testing.T) {
	tomorrow := testDate.AddDate(0, 0, 1)
	cases := []struct {
		name  string
		in    SubmitInput
		setup func(f *fixture)
		want  error
	}{
		{
			name:  "store closed",
			in:    SubmitInput{StoreID: testStore, SupplierID: testSupplier, Date: testDate, Items: []SubmitLine{{ProductID: productA, Qty: 1}}},
			setup: func(f *fixture) { f.stores.update(testStore, func(c *stores.Config) { c.IsOpen = false }) },
			want:  shared.ErrStoreClosed,
		},
		{
			name:  "emergency mode",
			in:    SubmitInput{StoreID: testStore, SupplierID: testSupplier, Date: testDate, Items: []SubmitLine{{ProductID: productA, Qty: 1}}},
			setup: func(f *fixture) { f.stores.update(testStore, func(c *stores.Config) { c.EmergencyMode = true }) },
			want:  shared.ErrStoreClosed,
		},
		{
			name: "zero quantity",
			in:   SubmitInput{StoreID: testStore, SupplierID: testSupplier, Date: testDate, Items: []SubmitLine{{ProductID: productA, Qty: 0}}},
			want: shared.ErrInvalidQuantity,
		},
		{
			name: "negative quantity",
			in:   SubmitInput{StoreID: testStore, SupplierID: testSupplier, Date: testDate, Items: []SubmitLine{{ProductID: productA, Qty: -2}}},
			want: shared.ErrInvalidQuantity,
		},
		{
			name: "no items",
			in:   SubmitInput{StoreID: testStore, SupplierID: testSupplier, Date: testDate},
			want: shared.ErrValidation,
		},
		{
			name: "unknown product",
			in:   SubmitInput{StoreID: testStore, SupplierID: testSupplier, Date: testDate, Items: []SubmitLine{{ProductID: 999, Qty: 1}}},
			want: shared.ErrNotFound,
		},
		{
			name: "product of another supplier",
			in:   SubmitInput{StoreID: testStore, SupplierID: testSupplier, Date: testDate, Items: []SubmitLine{{ProductID: foreignProduct, Qty: 1}}},
			want: shared.ErrValidation,
		},
		{
			name: "product not approved",
			in:   SubmitInput{StoreID: testStore, SupplierID: testSupplier, Date: testDate, Items: []SubmitLine{{ProductID: pendingProduct, Qty: 1}}},
			want: shared.ErrValidation,
		},
		{
			name: "unknown store",
			in:   SubmitInput{StoreID: 77, SupplierID: testSupplier, Date: testDate, Items: []SubmitLine{{ProductID: productA, Qty: 1}}},
			want: shared.ErrNotFound,
		},
		{
			name: "past date",
			in:   SubmitInput{StoreID: testStore, SupplierID: testSupplier, Date: testDate.AddDate(0, 0, -1), Items: []SubmitLine{{ProductID: productA, Qty: 1}}},
			want: shared.ErrValidation,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			if tc.setup != nil {
				tc.setup(f)
			}
			_, err := f.svc.Submit(context.Background(), tc.in)
			require.ErrorIs(t, err, tc.want)
			page, _, err := f.repo.ListTransactions(context.Background(), ListFilter{})
			require.NoError(t, err)
			require.Empty(t, page)
			require.Empty(t, f.notifier.kinds())
		})
	}

	t.Run("after cutoff for today", func(t *testing.T) {
		f := newFixture(t)
		// 11:31 in Jakarta, one minute past cutoff plus grace.
		f.svc.WithClock(func() time.Time { return time.Date(2024, 5, 1, 4, 31, 0, 0, time.UTC) })
		_, err := f.svc.Submit(context.Background(), SubmitInput{StoreID: testStore, SupplierID: testSupplier, Date: testDate, Items: []SubmitLine{{ProductID: productA, Qty: 1}}})
		require.ErrorIs(t, err, shared.ErrStoreClosed)

		trx, err := f.svc.Submit(context.Background(), SubmitInput{StoreID: testStore, SupplierID: testSupplier, Date: tomorrow, Items: []SubmitLine{{ProductID: productA, Qty: 1}}})
		require.NoError(t, err)
		require.True(t, tomorrow.Equal(trx.Date))

		f.stores.update(testStore, func(c *stores.Config) { c.AutoCancelEnabled = false })
		_, err = f.svc.Submit(context.Background(), SubmitInput{StoreID: testStore, SupplierID: testSupplier, Date: testDate, Items: []SubmitLine{{ProductID: productA, Qty: 1}}})
		require.NoError(t, err)
	})
}

func TestSubmitRetriesLostDraftRace(t *testing.T) {
	f := newFixture(t)
	f.repo.InjectDraftConflicts(2)
	trx := f.submit(t, SubmitLine{ProductID: productA, Qty: 2})
	require.Equal(t, StatusDraft, trx.Status)

	f = newFixture(t)
	f.repo.InjectDraftConflicts(DefaultSubmitRetries + 1)
	_, err := f.svc.Submit(context.Background(), SubmitInput{StoreID: testStore, SupplierID: testSupplier, Date: testDate, Items: []SubmitLine{{ProductID: productA, Qty: 2}}})
	require.ErrorIs(t, err, shared.ErrInvalidState)
	var race *DraftRaceError
	require.ErrorAs(t, err, &race)
	require.Equal(t, testStore, race.StoreID)
	require.Equal(t, testSupplier, race.SupplierID)
	require.True(t, testDate.Equal(race.Date))
	require.Equal(t, DefaultSubmitRetries+1, race.Attempts)
	require.Contains(t, err.Error(), "store 10 for supplier 200 on 2024-05-01")
	require.NotContains(t, err.Error(), "transaction 0")
}

func TestVerifyLineRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	trx := f.submit(t, SubmitLine{ProductID: productA, Qty: 10}, SubmitLine{ProductID: productB, Qty: 3})
	a := itemFor(t, trx, productA)

	_, err := f.svc.Verify(ctx, VerifyInput{TrxID: trx.ID, ActorID: testOwner, Lines: []ActualLine{{ItemID: a.ID, QtyActual: -1}}})
	require.ErrorIs(t, err, shared.ErrInvalidQuantity)
	_, err = f.svc.Verify(ctx, VerifyInput{TrxID: trx.ID, ActorID: testOwner, Lines: []ActualLine{{ItemID: a.ID, QtyActual: 1}, {ItemID: a.ID, QtyActual: 2}}})
	require.ErrorIs(t, err, shared.ErrInvalidQuantity)
	_, err = f.svc.Verify(ctx, VerifyInput{TrxID: trx.ID, ActorID: testOwner, Lines: []ActualLine{{ItemID: 9999, QtyActual: 1}}})
	require.ErrorIs(t, err, shared.ErrNotFound)
	_, err = f.svc.Verify(ctx, VerifyInput{TrxID: 9999, ActorID: testOwner})
	require.ErrorIs(t, err, shared.ErrNotFound)

	note := "satu kotak penyok"
	verified, err := f.svc.Verify(ctx, VerifyInput{TrxID: trx.ID, ActorID: testOwner, Note: &note, Lines: []ActualLine{{ItemID: a.ID, QtyActual: 12}}})
	require.NoError(t, err)
	require.Equal(t, int64(12), itemFor(t, verified, productA).QtyActual)
	require.Equal(t, int64(0), itemFor(t, verified, productB).QtyActual, "unlisted items arrive as zero")
	require.Equal(t, int64(12), verified.TotalItemsIn)
	require.NotNil(t, verified.AdminNote)
	require.Equal(t, note, *verified.AdminNote)
}

func TestCancelAttribution(t *testing.T) {
	ctx := context.Background()

	t.Run("owner cancel does not penalize", func(t *testing.T) {
		f := newFixture(t)
		trx := f.submit(t, SubmitLine{ProductID: productA, Qty: 1})
		cancelled, err := f.svc.Cancel(ctx, CancelInput{TrxID: trx.ID, ActorID: testOwner, Reason: "toko tutup", Origin: CancelByOwner})
		require.NoError(t, err)
		require.Equal(t, StatusCancelled, cancelled.Status)
		require.Equal(t, "toko tutup", *cancelled.CancelReason)
		_, err = f.statsRepo.Get(ctx, testSupplier, testStore)
		require.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("supplier cancel penalizes", func(t *testing.T) {
		f := newFixture(t)
		trx := f.submit(t, SubmitLine{ProductID: productA, Qty: 1})
		_, err := f.svc.Cancel(ctx, CancelInput{TrxID: trx.ID, ActorID: testSupplier, Reason: "kendaraan rusak", Origin: CancelBySupplier})
		require.NoError(t, err)
		stats, err := f.statsRepo.Get(ctx, testSupplier, testStore)
		require.NoError(t, err)
		require.Equal(t, int64(1), stats.CancelledBySupplier)
		require.Equal(t, 0, stats.ReliabilityScore)
	})

	t.Run("cutoff cancel is a system action", func(t *testing.T) {
		f := newFixture(t)
		trx := f.submit(t, SubmitLine{ProductID: productA, Qty: 1})
		require.NoError(t, f.svc.CancelForCutoff(ctx, trx.ID))

		got, err := f.svc.Get(ctx, trx.ID)
		require.NoError(t, err)
		require.Equal(t, StatusCancelled, got.Status)
		require.Equal(t, CutoffReason, *got.CancelReason)

		last := f.audit.entries[len(f.audit.entries)-1]
		for _, e := range f.audit.entries {
			if e.EntityType == EntityType {
				last = e
			}
		}
		require.Equal(t, "transaction.cancelled", last.Action)
		require.Equal(t, shared.ActorSystem, last.ActorID)
		require.Equal(t, CutoffReason, *last.Reason)
		require.Equal(t, "cutoff", last.NewValue["origin"])

		stats, err := f.statsRepo.Get(ctx, testSupplier, testStore)
		require.NoError(t, err)
		require.Equal(t, int64(1), stats.CancelledBySupplier)
	})

	t.Run("cutoff never cancels a verified delivery", func(t *testing.T) {
		f := newFixture(t)
		trx := f.submit(t, SubmitLine{ProductID: productA, Qty: 1})
		_, err := f.svc.Verify(ctx, VerifyInput{TrxID: trx.ID, ActorID: testOwner})
		require.NoError(t, err)
		require.ErrorIs(t, f.svc.CancelForCutoff(ctx, trx.ID), shared.ErrInvalidState)
	})

	t.Run("reason required", func(t *testing.T) {
		f := newFixture(t)
		trx := f.submit(t, SubmitLine{ProductID: productA, Qty: 1})
		_, err := f.svc.Cancel(ctx, CancelInput{TrxID: trx.ID, ActorID: testOwner, Origin: CancelByOwner})
		require.ErrorIs(t, err, shared.ErrValidation)
		_, err = f.svc.Cancel(ctx, CancelInput{TrxID: trx.ID, ActorID: testOwner, Reason: "x", Origin: "alien"})
		require.ErrorIs(t, err, shared.ErrValidation)
	})
}

func TestCancelledKeyAllowsNewDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.submit(t, SubmitLine{ProductID: productA, Qty: 1})
	_, err := f.svc.Cancel(ctx, CancelInput{TrxID: first.ID, ActorID: testSupplier, Reason: "salah input", Origin: CancelBySupplier})
	require.NoError(t, err)

	second := f.submit(t, SubmitLine{ProductID: productA, Qty: 4})
	require.NotEqual(t, first.ID, second.ID)
	require.Equal(t, int64(4), second.TotalItemsIn)
}

func TestNotifyFailureDoesNotFailOperation(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("broker down")
	trx := f.submit(t, SubmitLine{ProductID: productA, Qty: 1})
	require.Equal(t, StatusDraft, trx.Status)
	require.Equal(t, []string{EventSubmitted}, f.notifier.kinds())
}

func TestListAndDraftIDs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.submit(t, SubmitLine{ProductID: productA, Qty: 1})
	b, err := f.svc.Submit(ctx, SubmitInput{StoreID: testStore, SupplierID: otherSupplier, Date: testDate, Items: []SubmitLine{{ProductID: foreignProduct, Qty: 1}}})
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, CancelInput{TrxID: b.ID, ActorID: testOwner, Reason: "tidak jadi", Origin: CancelByOwner})
	require.NoError(t, err)

	ids, err := f.svc.DraftIDs(ctx, testStore, testDate.Add(5*time.Hour))
	require.NoError(t, err)
	require.Equal(t, []int64{a.ID}, ids)

	list, page, err := f.svc.List(ctx, ListFilter{StoreID: testStore, PerPage: 1})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, 2, page.Total)
	require.Equal(t, 2, page.TotalPages)

	list, _, err = f.svc.List(ctx, ListFilter{StoreID: testStore, Status: StatusCancelled})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, b.ID, list[0].ID)
}

func TestAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	trx := f.submit(t, SubmitLine{ProductID: productA, Qty: 1})

	owner := shared.Principal{UserID: testOwner, Role: shared.RoleOwner}
	strangerOwner := shared.Principal{UserID: 999, Role: shared.RoleOwner}
	supplier := shared.Principal{UserID: testSupplier, Role: shared.RoleSupplier}
	rival := shared.Principal{UserID: otherSupplier, Role: shared.RoleSupplier}

	require.NoError(t, f.svc.AuthorizeOwner(ctx, owner, trx.ID))
	require.ErrorIs(t, f.svc.AuthorizeOwner(ctx, strangerOwner, trx.ID), shared.ErrForbidden)
	require.ErrorIs(t, f.svc.AuthorizeOwner(ctx, supplier, trx.ID), shared.ErrForbidden)
	require.ErrorIs(t, f.svc.AuthorizeOwner(ctx, owner, 404), shared.ErrNotFound)

	_, err := f.svc.AuthorizeViewer(ctx, supplier, trx.ID)
	require.NoError(t, err)
	_, err = f.svc.AuthorizeViewer(ctx, rival, trx.ID)
	require.ErrorIs(t, err, shared.ErrForbidden)
	require.NoError(t, f.svc.AuthorizeSupplier(ctx, supplier, trx.ID))
	require.ErrorIs(t, f.svc.AuthorizeSupplier(ctx, owner, trx.ID), shared.ErrForbidden)
}

func TestConcurrentVerifyHasOneWinner(t *testing.T) {
	f := newFixture(t)
	trx := f.submit(t, SubmitLine{ProductID: productA, Qty: 5})
	item := itemFor(t, trx, productA)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(qty int64) {
			defer wg.Done()
			_, err := f.svc.Verify(context.Background(), VerifyInput{TrxID: trx.ID, ActorID: testOwner, Lines: []ActualLine{{ItemID: item.ID, QtyActual: qty}}})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, shared.ErrInvalidState):
				conflicts++
			default:
				assert.NoError(t, err)
			}
		}(int64(i))
	}
	wg.Wait()
	require.Equal(t, 1, successes)
	require.Equal(t, workers-1, conflicts)
}

func TestConcurrentSubmissionsShareOneDraft(t *testing.T) {
	f := newFixture(t)
	const workers = 10
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Submit(context.Background(), SubmitInput{StoreID: testStore, SupplierID: testSupplier, Date: testDate, Items: []SubmitLine{{ProductID: productA, Qty: 1}}})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	list, _, err := f.svc.List(context.Background(), ListFilter{StoreID: testStore})
	require.NoError(t, err)
	require.Len(t, list, 1)
	trx, err := f.svc.Get(context.Background(), list[0].ID)
	require.NoError(t, err)
	require.Len(t, trx.Items, 1)
	require.Equal(t, int64(workers), trx.Items[0].QtyPlanned)
	require.Equal(t, int64(workers), trx.TotalItemsIn)
}
