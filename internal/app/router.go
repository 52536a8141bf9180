package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	audithttp "github.com/consigna/consigna/internal/audit/http"
	"github.com/consigna/consigna/internal/consignment"
	"github.com/consigna/consigna/internal/cutoff"
	"github.com/consigna/consigna/internal/observability"
	"github.com/consigna/consigna/internal/platform/httpx"
	"github.com/consigna/consigna/internal/rbac"
	"github.com/consigna/consigna/internal/reliability"
	"github.com/consigna/consigna/internal/stores"
	"github.com/consigna/consigna/jobs"
)

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DegradedReporter reports a dependency that works but lost a best-effort guarantee.
type DegradedReporter interface {
	Degraded() bool
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	RBACMiddleware rbac.Middleware
	Database       Pinger
	Audit          DegradedReporter

	TransactionHandler *consignment.Handler
	CutoffHandler      *cutoff.Handler
	ReliabilityHandler *reliability.Handler
	StoreHandler       *stores.Handler
	AuditHandler       *audithttp.Handler
	JobHandler         *jobs.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with Consigna defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		RBAC:    params.RBACMiddleware,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", healthHandler(params))

	if params.TransactionHandler != nil {
		r.Route("/transactions", params.TransactionHandler.MountRoutes)
	}
	if params.CutoffHandler != nil {
		r.Route("/cutoff", params.CutoffHandler.MountRoutes)
	}
	if params.ReliabilityHandler != nil {
		r.Route("/reliability", params.ReliabilityHandler.MountRoutes)
	}
	if params.StoreHandler != nil {
		r.Route("/stores", params.StoreHandler.MountRoutes)
	}
	if params.AuditHandler != nil {
		r.Route("/audit", params.AuditHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}

type healthStatus struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Audit    string `json:"audit"`
}

func healthHandler(params RouterParams) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := healthStatus{Status: "ok", Database: "ok", Audit: "ok"}
		code := http.StatusOK
		if params.Database != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := params.Database.Ping(ctx); err != nil {
				if params.Logger != nil {
					params.Logger.Warn("health: database ping", slog.Any("error", err))
				}
				status.Status, status.Database = "unavailable", "down"
				code = http.StatusServiceUnavailable
			}
		}
		if params.Audit != nil && params.Audit.Degraded() {
			status.Audit = "degraded"
			if code == http.StatusOK {
				status.Status = "degraded"
			}
		}
		httpx.JSON(w, code, status)
	}
}
