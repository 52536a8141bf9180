package consignment

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/consigna/consigna/internal/catalog"
	"github.com/consigna/consigna/internal/reliability"
	"github.com/consigna/consigna/internal/shared"
	"github.com/consigna/consigna/internal/stores"
)

const (
	testStore     = int64(10)
	testOwner     = int64(100)
	testSupplier  = int64(200)
	otherSupplier = int64(201)

	productA       = int64(1)
	productB       = int64(2)
	foreignProduct = int64(3)
	pendingProduct = int64(4)
)

// 09:00 in Jakarta.
var (
	testNow  = time.Date(2024, 5, 1, 2, 0, 0, 0, time.UTC)
	testDate = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
)

type stubCatalog struct {
	mu       sync.Mutex
	products map[int64]catalog.Product
}

func (c *stubCatalog) GetProduct(ctx context.Context, id int64) (catalog.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[id]
	if !ok {
		return catalog.Product{}, fmt.Errorf("product %d: %w", id, shared.ErrNotFound)
	}
	return p, nil
}

func (c *stubCatalog) setPrice(id int64, price int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.products[id]
	p.PriceBuy = decimal.NewFromInt(price)
	c.products[id] = p
}

type stubDirectory struct {
	mu     sync.Mutex
	stores map[int64]stores.Config
}

func (d *stubDirectory) StoreConfig(ctx context.Context, id int64) (stores.Config, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cfg, ok := d.stores[id]
	if !ok {
		return stores.Config{}, fmt.Errorf("store %d: %w", id, shared.ErrNotFound)
	}
	return cfg, nil
}

func (d *stubDirectory) OwnerOf(ctx context.Context, id int64) (int64, error) {
	cfg, err := d.StoreConfig(ctx, id)
	return cfg.OwnerID, err
}

func (d *stubDirectory) update(id int64, mutate func(*stores.Config)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cfg := d.stores[id]
	mutate(&cfg)
	d.stores[id] = cfg
}

type recordingAudit struct {
	mu      sync.Mutex
	entries []shared.AuditLog
}

func (a *recordingAudit) Record(ctx context.Context, log shared.AuditLog) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, log)
}

func (a *recordingAudit) actions(entityType string) []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []string
	for _, e := range a.entries {
		if e.EntityType == entityType {
			out = append(out, e.Action)
		}
	}
	return out
}

type sentEvent struct {
	userID  int64
	kind    string
	payload map[string]any
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []sentEvent
	err    error
}

func (n *recordingNotifier) Notify(ctx context.Context, userID int64, kind string, payload map[string]any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, sentEvent{userID: userID, kind: kind, payload: payload})
	return n.err
}

func (n *recordingNotifier) kinds() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.kind)
	}
	return out
}

type fixture struct {
	svc       *Service
	repo      *MemoryRepository
	scorer    *reliability.Service
	statsRepo *reliability.MemoryRepository
	catalog   *stubCatalog
	stores    *stubDirectory
	audit     *recordingAudit
	notifier  *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:      NewMemoryRepository(),
		statsRepo: reliability.NewMemoryRepository(),
		audit:     &recordingAudit{},
		notifier:  &recordingNotifier{},
		catalog: &stubCatalog{products: map[int64]catalog.Product{
			productA:       {ID: productA, SupplierID: testSupplier, Name: "Kue lapis", PriceBuy: decimal.NewFromInt(1000), PriceSell: decimal.NewFromInt(1500), Status: catalog.StatusApproved},
			productB:       {ID: productB, SupplierID: testSupplier, Name: "Risoles", PriceBuy: decimal.RequireFromString("2500.50"), PriceSell: decimal.NewFromInt(3500), Status: catalog.StatusApproved},
			foreignProduct: {ID: foreignProduct, SupplierID: otherSupplier, Name: "Onde-onde", PriceBuy: decimal.NewFromInt(800), Status: catalog.StatusApproved},
			pendingProduct: {ID: pendingProduct, SupplierID: testSupplier, Name: "Lemper", PriceBuy: decimal.NewFromInt(900), Status: catalog.StatusPending},
		}},
		stores: &stubDirectory{stores: map[int64]stores.Config{
			testStore: {
				StoreID:            testStore,
				OwnerID:            testOwner,
				Name:               "Warung Bu Sri",
				CutoffTime:         "11:00",
				GracePeriodMinutes: 30,
				AutoCancelEnabled:  true,
				IsOpen:             true,
				Timezone:           "Asia/Jakarta",
			},
		}},
	}
	clock := func() time.Time { return testNow }
	f.scorer = reliability.NewService(f.statsRepo, f.stores, f.audit, nil).WithClock(clock)
	f.svc = NewService(Deps{
		Repo:     f.repo,
		Catalog:  f.catalog,
		Stores:   f.stores,
		Scorer:   f.scorer,
		Audit:    f.audit,
		Notifier: f.notifier,
	}).WithClock(clock)
	return f
}

func (f *fixture) submit(t *testing.T, lines ...SubmitLine) Transaction {
	t.Helper()
	trx, err := f.svc.Submit(context.Background(), SubmitInput{StoreID: testStore, SupplierID: testSupplier, Date: testDate, Items: lines})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	return trx
}

func itemFor(t *testing.T, trx Transaction, productID int64) TransactionItem {
	t.Helper()
	for _, item := range trx.Items {
		if item.ProductID == productID {
			return item
		}
	}
	t.Fatalf("no item for product %d", productID)
	return TransactionItem{}
}
