package cutoff

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/consigna/consigna/internal/platform/httpx"
	"github.com/consigna/consigna/internal/rbac"
	"github.com/consigna/consigna/internal/shared"
)

// Runner is the contract used by Handler.
type Runner interface {
	SweepAll(ctx context.Context, now time.Time) (Summary, error)
}

// Handler exposes an on-demand sweep for operators.
type Handler struct {
	runner Runner
	rbac   rbac.Middleware
	logger *slog.Logger
	clock  func() time.Time
}

// NewHandler builds the cutoff handler.
func NewHandler(runner Runner, rbac rbac.Middleware, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{runner: runner, rbac: rbac, logger: logger, clock: time.Now}
}

// MountRoutes registers cutoff routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.RequireRole(shared.RoleAdmin)).Post("/sweep", h.sweep)
}

func (h *Handler) sweep(w http.ResponseWriter, r *http.Request) {
	summary, err := h.runner.SweepAll(r.Context(), h.clock())
	if err != nil {
		h.logger.Error("manual cutoff sweep", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}
