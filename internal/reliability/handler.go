package reliability

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/consigna/consigna/internal/platform/httpx"
	"github.com/consigna/consigna/internal/shared"
)

// ReadService is the contract used by Handler.
type ReadService interface {
	Reliability(ctx context.Context, viewer shared.Principal, supplierID, storeID int64) (SupplierStats, error)
	Summary(ctx context.Context, viewer shared.Principal, supplierID, storeID int64) (SupplierSummary, error)
	Leaderboard(ctx context.Context, viewer shared.Principal, storeID int64) ([]SupplierStats, error)
	RecordNoShow(ctx context.Context, viewer shared.Principal, supplierID, storeID int64) (SupplierStats, error)
}

// Handler exposes reliability reads and no-show recording.
type Handler struct {
	service   ReadService
	validator *validator.Validate
	logger    *slog.Logger
}

// NewHandler builds a reliability handler.
func NewHandler(service ReadService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, validator: validator.New(), logger: logger}
}

// NoShowRequest is the body of POST /no-show.
type NoShowRequest struct {
	SupplierID int64 `json:"supplier_id" validate:"required,gt=0"`
	StoreID    int64 `json:"store_id" validate:"required,gt=0"`
}

// MountRoutes registers reliability routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/suppliers/{supplierID}", h.reliability)
	r.Get("/suppliers/{supplierID}/summary", h.summary)
	r.Get("/stores/{storeID}", h.leaderboard)
	r.Post("/no-show", h.noShow)
}

func (h *Handler) reliability(w http.ResponseWriter, r *http.Request) {
	supplierID, storeID, err := supplierAndStore(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	viewer, _ := shared.PrincipalFromContext(r.Context())
	stats, err := h.service.Reliability(r.Context(), viewer, supplierID, storeID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	supplierID, storeID, err := supplierAndStore(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	viewer, _ := shared.PrincipalFromContext(r.Context())
	summary, err := h.service.Summary(r.Context(), viewer, supplierID, storeID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) leaderboard(w http.ResponseWriter, r *http.Request) {
	storeID, err := strconv.ParseInt(chi.URLParam(r, "storeID"), 10, 64)
	if err != nil || storeID <= 0 {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	viewer, _ := shared.PrincipalFromContext(r.Context())
	list, err := h.service.Leaderboard(r.Context(), viewer, storeID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"store_id": storeID, "suppliers": list})
}

func (h *Handler) noShow(w http.ResponseWriter, r *http.Request) {
	var req NoShowRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", shared.ErrValidation, err))
		return
	}
	viewer, _ := shared.PrincipalFromContext(r.Context())
	stats, err := h.service.RecordNoShow(r.Context(), viewer, req.SupplierID, req.StoreID)
	if err != nil {
		h.logger.Info("record no-show rejected", slog.Int64("supplier_id", req.SupplierID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

func supplierAndStore(r *http.Request) (int64, int64, error) {
	supplierID, err := strconv.ParseInt(chi.URLParam(r, "supplierID"), 10, 64)
	if err != nil || supplierID <= 0 {
		return 0, 0, fmt.Errorf("%w: supplier id", shared.ErrValidation)
	}
	storeID, err := strconv.ParseInt(r.URL.Query().Get("store_id"), 10, 64)
	if err != nil || storeID <= 0 {
		return 0, 0, fmt.Errorf("%w: store_id", shared.ErrValidation)
	}
	return supplierID, storeID, nil
}
