package stores

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

// SettingsService is the contract used by Handler.
type SettingsService interface {
	StoreConfig(ctx context.Context, storeID int64) (Config, error)
	UpdateSettings(ctx context.Context, viewer shared.Principal, storeID int64, in SettingsInput) (Config, error)
}

// Handler exposes store settings to owners.
type Handler struct {
	service   SettingsService
	validator *validator.Validate
	logger    *slog.Logger
}

// NewHandler builds a store settings handler.
func NewHandler(service SettingsService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, validator: validator.New(), logger: logger}
}

// MountRoutes registers store routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{id}/settings", h.show)
	r.Put("/{id}/settings", h.update)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	storeID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	viewer, _ := shared.PrincipalFromContext(r.Context())
	cfg, err := h.service.StoreConfig(r.Context(), storeID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if !viewer.IsOwner() || viewer.UserID != cfg.OwnerID {
		httpx.RespondError(w, shared.ErrForbidden)
		return
	}
	httpx.JSON(w, http.StatusOK, cfg)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	storeID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	var in SettingsInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(in); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", shared.ErrValidation, err))
		return
	}
	viewer, _ := shared.PrincipalFromContext(r.Context())
	cfg, err := h.service.UpdateSettings(r.Context(), viewer, storeID, in)
	if err != nil {
		h.logger.Info("update store settings rejected", slog.Int64("store_id", storeID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, cfg)
}
