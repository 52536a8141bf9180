package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/consigna/consigna/internal/app"
	"github.com/consigna/consigna/internal/audit"
	audithttp "github.com/consigna/consigna/internal/audit/http"
	"github.com/consigna/consigna/internal/catalog"
	"github.com/consigna/consigna/internal/consignment"
	"github.com/consigna/consigna/internal/cutoff"
	jobmetrics "github.com/consigna/consigna/internal/jobs"
	"github.com/consigna/consigna/internal/observability"
	"github.com/consigna/consigna/internal/rbac"
	"github.com/consigna/consigna/internal/reliability"
	"github.com/consigna/consigna/internal/shared"
	"github.com/consigna/consigna/internal/stores"
	"github.com/consigna/consigna/jobs"
)

const (
	storeID    = int64(10)
	ownerID    = int64(100)
	supplierID = int64(200)
)

// 09:00 in Jakarta; the store cutoff is 10:00 with 30 minutes of grace.
var morning = time.Date(2024, 5, 1, 2, 0, 0, 0, time.UTC)

type storeRepo struct {
	mu     sync.Mutex
	stores map[int64]stores.Config
}

func (r *storeRepo) Get(ctx context.Context, id int64) (stores.Config, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, ok := r.stores[id]
	if !ok {
		return stores.Config{}, fmt.Errorf("store %d: %w", id, shared.ErrNotFound)
	}
	return cfg, nil
}

func (r *storeRepo) ListAutoCancel(ctx context.Context) ([]stores.Config, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []stores.Config
	for _, cfg := range r.stores {
		if cfg.AutoCancelEnabled && cfg.HasCutoff() {
			out = append(out, cfg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StoreID < out[j].StoreID })
	return out, nil
}

func (r *storeRepo) UpdateSettings(ctx context.Context, id int64, in stores.SettingsInput) error {
	return shared.ErrForbidden
}

type products map[int64]catalog.Product

func (p products) GetProduct(ctx context.Context, id int64) (catalog.Product, error) {
	product, ok := p[id]
	if !ok {
		return catalog.Product{}, fmt.Errorf("product %d: %w", id, shared.ErrNotFound)
	}
	return product, nil
}

type auditStore struct {
	mu      sync.Mutex
	entries []shared.AuditLog
}

func (s *auditStore) Record(ctx context.Context, entry shared.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.ID = int64(len(s.entries) + 1)
	s.entries = append(s.entries, entry)
	return nil
}

func (s *auditStore) List(ctx context.Context, entityType, entityID string, limit int) ([]shared.AuditLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []shared.AuditLog
	for _, e := range s.entries {
		if e.EntityType == entityType && e.EntityID == entityID {
			out = append(out, e)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type inbox struct {
	mu    sync.Mutex
	kinds []string
}

func (n *inbox) Notify(ctx context.Context, userID int64, kind string, payload map[string]any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.kinds = append(n.kinds, kind)
	return nil
}

type idempotencyKeys struct {
	mu   sync.Mutex
	keys map[string]string
}

func (s *idempotencyKeys) CheckAndInsert(ctx context.Context, key, module string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[key]; ok {
		return shared.ErrIdempotencyConflict
	}
	s.keys[key] = module
	return nil
}

func (s *idempotencyKeys) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, key)
	return nil
}

type harness struct {
	router   http.Handler
	engine   *consignment.Service
	sweeper  *cutoff.Sweeper
	inbox    *inbox
	registry *prometheus.Registry
	jobs     *jobmetrics.Metrics
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	repo := &storeRepo{stores: map[int64]stores.Config{
		storeID: {
			StoreID: storeID, OwnerID: ownerID, Name: "Warung Bu Sri",
			CutoffTime: "10:00", GracePeriodMinutes: 30, AutoCancelEnabled: true,
			IsOpen: true, Timezone: "Asia/Jakarta",
		},
	}}
	directory := stores.NewDirectory(repo, nil, "Asia/Jakarta", nil)
	catalogue := products{
		1: {ID: 1, SupplierID: supplierID, Name: "Nasi Uduk", PriceBuy: decimal.NewFromInt(4000), Status: catalog.StatusApproved},
		2: {ID: 2, SupplierID: supplierID, Name: "Bakwan", PriceBuy: decimal.NewFromInt(800), Status: catalog.StatusApproved},
	}

	registry := prometheus.NewRegistry()
	sink := &auditStore{}
	recorder := audit.NewRecorder(sink, nil, registry)
	scorer := reliability.NewService(reliability.NewMemoryRepository(), directory, recorder, nil)
	notifications := &inbox{}
	clock := func() time.Time { return morning }

	engine := consignment.NewService(consignment.Deps{
		Repo:     consignment.NewMemoryRepository(),
		Catalog:  catalogue,
		Stores:   directory,
		Scorer:   scorer,
		Audit:    recorder,
		Notifier: notifications,
	}).WithClock(clock)
	sweeper := cutoff.NewSweeper(directory, engine, nil, cutoff.Config{}, nil)
	mw := rbac.Middleware{}

	router := app.NewRouter(app.RouterParams{
		Config:             &app.Config{AppEnv: "test"},
		RBACMiddleware:     mw,
		Audit:              recorder,
		TransactionHandler: consignment.NewHandler(engine, &idempotencyKeys{keys: map[string]string{}}, mw, nil),
		CutoffHandler:      cutoff.NewHandler(sweeper, mw, nil),
		ReliabilityHandler: reliability.NewHandler(scorer, nil),
		StoreHandler:       stores.NewHandler(directory, nil),
		AuditHandler:       audithttp.NewHandler(nil, audit.NewTrailService(sink), engine),
		Metrics:            observability.NewMetrics(),
	})
	return &harness{
		router:   router,
		engine:   engine,
		sweeper:  sweeper,
		inbox:    notifications,
		registry: registry,
		jobs:     jobmetrics.NewMetrics(registry),
	}
}

func (h *harness) do(t *testing.T, method, path string, actor int64, role shared.Role, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(rbac.HeaderActorID, strconv.FormatInt(actor, 10))
	req.Header.Set(rbac.HeaderActorRole, string(role))
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	h.router.ServeHTTP(rr, req)
	return rr
}

func (h *harness) sweepJob(now time.Time) *jobs.CutoffSweepJob {
	job := jobs.NewCutoffSweepJob(h.sweeper, nil, h.jobs)
	job.WithClock(func() time.Time { return now })
	return job
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func counterValue(families []*dto.MetricFamily, name string, labels map[string]string) (float64, bool) {
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if matchLabels(metric.GetLabel(), labels) && metric.GetCounter() != nil {
				return metric.GetCounter().GetValue(), true
			}
		}
	}
	return 0, false
}

func matchLabels(pairs []*dto.LabelPair, expected map[string]string) bool {
	seen := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		seen[pair.GetName()] = pair.GetValue()
	}
	for k, v := range expected {
		if seen[k] != v {
			return false
		}
	}
	return true
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
