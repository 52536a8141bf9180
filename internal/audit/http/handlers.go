package audithttp

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/consigna/consigna/internal/platform/httpx"
	"github.com/consigna/consigna/internal/shared"
)

const entityTransaction = "daily_transaction"

// TrailService defines the read contract for audit history.
type TrailService interface {
	Trail(ctx context.Context, entityType string, entityID int64) ([]shared.AuditLog, error)
}

// TransactionAccess decides whether a viewer may read a transaction's history.
type TransactionAccess interface {
	AuthorizeOwner(ctx context.Context, viewer shared.Principal, trxID int64) error
}

// Handler menangani permintaan jejak audit.
type Handler struct {
	logger  *slog.Logger
	service TrailService
	access  TransactionAccess
}

// NewHandler membuat handler audit baru.
func NewHandler(logger *slog.Logger, service TrailService, access TransactionAccess) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, access: access}
}

func (h *Handler) handleTransactionTrail(w http.ResponseWriter, r *http.Request) {
	if h.service == nil || h.access == nil {
		http.Error(w, http.StatusText(http.StatusNotImplemented), http.StatusNotImplemented)
		return
	}
	trxID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || trxID <= 0 {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	viewer, _ := shared.PrincipalFromContext(r.Context())
	if err := h.access.AuthorizeOwner(r.Context(), viewer, trxID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	entries, err := h.service.Trail(r.Context(), entityTransaction, trxID)
	if err != nil {
		h.logger.Error("load audit trail", slog.Int64("trx_id", trxID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"trx_id": trxID, "entries": entries})
}
