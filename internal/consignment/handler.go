package consignment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/consigna/consigna/internal/platform/httpx"
	"github.com/consigna/consigna/internal/rbac"
	"github.com/consigna/consigna/internal/shared"
)

const idempotencyModule = "consignment.submit"

// Engine is the contract used by Handler.
type Engine interface {
	Submit(ctx context.Context, in SubmitInput) (Transaction, error)
	Verify(ctx context.Context, in VerifyInput) (Transaction, error)
	Complete(ctx context.Context, in CompleteInput) (Transaction, error)
	Cancel(ctx context.Context, in CancelInput) (DailyTransaction, error)
	Get(ctx context.Context, id int64) (Transaction, error)
	List(ctx context.Context, filter ListFilter) ([]DailyTransaction, shared.Pagination, error)
	AuthorizeOwner(ctx context.Context, viewer shared.Principal, trxID int64) error
	AuthorizeViewer(ctx context.Context, viewer shared.Principal, trxID int64) (DailyTransaction, error)
	RequireStoreOwner(ctx context.Context, viewer shared.Principal, storeID int64) error
}

// IdempotencyPort records processed submission keys.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Handler exposes the delivery lifecycle over HTTP.
type Handler struct {
	engine      Engine
	idempotency IdempotencyPort
	rbac        rbac.Middleware
	validator   *validator.Validate
	logger      *slog.Logger
}

// NewHandler builds the transaction handler. idempotency may be nil.
func NewHandler(engine Engine, idempotency IdempotencyPort, rbac rbac.Middleware, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{engine: engine, idempotency: idempotency, rbac: rbac, validator: validator.New(), logger: logger}
}

// SubmitRequest is the body of POST /transactions.
type SubmitRequest struct {
	StoreID int64               `json:"store_id" validate:"required,gt=0"`
	Date    string              `json:"date" validate:"required,datetime=2006-01-02"`
	Items   []SubmitItemRequest `json:"items" validate:"required,min=1,dive"`
}

// SubmitItemRequest plans one product.
type SubmitItemRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Qty       int64 `json:"qty"`
}

// VerifyRequest is the body of POST /transactions/{id}/verify.
type VerifyRequest struct {
	Items []ActualItemRequest `json:"items" validate:"dive"`
	Note  *string             `json:"note" validate:"omitempty,max=500"`
}

// ActualItemRequest records what arrived for one item.
type ActualItemRequest struct {
	ItemID    int64 `json:"item_id" validate:"required,gt=0"`
	QtyActual int64 `json:"qty_actual"`
}

// CompleteRequest is the body of POST /transactions/{id}/complete.
type CompleteRequest struct {
	Items []ReturnItemRequest `json:"items" validate:"dive"`
	Note  *string             `json:"note" validate:"omitempty,max=500"`
}

// ReturnItemRequest records unsold units of one item.
type ReturnItemRequest struct {
	ItemID      int64 `json:"item_id" validate:"required,gt=0"`
	QtyReturned int64 `json:"qty_returned"`
}

// CancelRequest is the body of POST /transactions/{id}/cancel.
type CancelRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// MountRoutes registers transaction routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRole(shared.RoleOwner, shared.RoleSupplier))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Post("/{id}/cancel", h.cancel)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRole(shared.RoleSupplier))
		r.Post("/", h.submit)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRole(shared.RoleOwner))
		r.Post("/{id}/verify", h.verify)
		r.Post("/{id}/complete", h.complete)
	})
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	date, err := time.Parse(time.DateOnly, req.Date)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: date", shared.ErrValidation))
		return
	}
	viewer, _ := shared.PrincipalFromContext(r.Context())

	key := r.Header.Get("Idempotency-Key")
	if key != "" && h.idempotency != nil {
		key = fmt.Sprintf("%d:%s", viewer.UserID, key)
		if err := h.idempotency.CheckAndInsert(r.Context(), key, idempotencyModule); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}

	in := SubmitInput{StoreID: req.StoreID, SupplierID: viewer.UserID, Date: date}
	for _, item := range req.Items {
		in.Items = append(in.Items, SubmitLine{ProductID: item.ProductID, Qty: item.Qty})
	}
	trx, err := h.engine.Submit(r.Context(), in)
	if err != nil {
		if key != "" && h.idempotency != nil {
			if delErr := h.idempotency.Delete(r.Context(), key); delErr != nil {
				h.logger.Warn("release idempotency key", slog.String("key", key), slog.Any("error", delErr))
			}
		}
		h.logger.Info("submit rejected", slog.Int64("store_id", req.StoreID), slog.Int64("supplier_id", viewer.UserID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, trx)
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	id, viewer, ok := h.ownerAction(w, r)
	if !ok {
		return
	}
	var req VerifyRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	in := VerifyInput{TrxID: id, ActorID: viewer.UserID, Note: req.Note}
	for _, item := range req.Items {
		in.Lines = append(in.Lines, ActualLine{ItemID: item.ItemID, QtyActual: item.QtyActual})
	}
	trx, err := h.engine.Verify(r.Context(), in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, trx)
}

func (h *Handler) complete(w http.ResponseWriter, r *http.Request) {
	id, viewer, ok := h.ownerAction(w, r)
	if !ok {
		return
	}
	var req CompleteRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	in := CompleteInput{TrxID: id, ActorID: viewer.UserID, Note: req.Note}
	for _, item := range req.Items {
		in.Lines = append(in.Lines, ReturnLine{ItemID: item.ItemID, QtyReturned: item.QtyReturned})
	}
	trx, err := h.engine.Complete(r.Context(), in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, trx)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	viewer, _ := shared.PrincipalFromContext(r.Context())
	if _, err := h.engine.AuthorizeViewer(r.Context(), viewer, id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req CancelRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	origin := CancelByOwner
	if viewer.IsSupplier() {
		origin = CancelBySupplier
	}
	trx, err := h.engine.Cancel(r.Context(), CancelInput{TrxID: id, ActorID: viewer.UserID, Reason: req.Reason, Origin: origin})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, trx)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	viewer, _ := shared.PrincipalFromContext(r.Context())
	if _, err := h.engine.AuthorizeViewer(r.Context(), viewer, id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	trx, err := h.engine.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, trx)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	viewer, _ := shared.PrincipalFromContext(r.Context())
	filter := ListFilter{Status: Status(q.Get("status"))}
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.PerPage, _ = strconv.Atoi(q.Get("per_page"))
	if filter.PerPage > 100 {
		filter.PerPage = 100
	}
	if raw := q.Get("store_id"); raw != "" {
		storeID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || storeID <= 0 {
			httpx.RespondError(w, fmt.Errorf("%w: store_id", shared.ErrValidation))
			return
		}
		filter.StoreID = storeID
	}
	if raw := q.Get("date"); raw != "" {
		date, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			httpx.RespondError(w, fmt.Errorf("%w: date", shared.ErrValidation))
			return
		}
		filter.Date = &date
	}
	switch filter.Status {
	case "", StatusDraft, StatusVerified, StatusCompleted, StatusCancelled:
	default:
		httpx.RespondError(w, fmt.Errorf("%w: status", shared.ErrValidation))
		return
	}

	if viewer.IsSupplier() {
		filter.SupplierID = viewer.UserID
	} else {
		if filter.StoreID == 0 {
			httpx.RespondError(w, fmt.Errorf("%w: store_id required", shared.ErrValidation))
			return
		}
		if err := h.engine.RequireStoreOwner(r.Context(), viewer, filter.StoreID); err != nil {
			httpx.RespondError(w, err)
			return
		}
		if raw := q.Get("supplier_id"); raw != "" {
			filter.SupplierID, _ = strconv.ParseInt(raw, 10, 64)
		}
	}

	list, page, err := h.engine.List(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if list == nil {
		list = []DailyTransaction{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"transactions": list, "pagination": page})
}

func (h *Handler) ownerAction(w http.ResponseWriter, r *http.Request) (int64, shared.Principal, bool) {
	id, err := parseID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return 0, shared.Principal{}, false
	}
	viewer, _ := shared.PrincipalFromContext(r.Context())
	if err := h.engine.AuthorizeOwner(r.Context(), viewer, id); err != nil {
		httpx.RespondError(w, err)
		return 0, shared.Principal{}, false
	}
	return id, viewer, true
}

func (h *Handler) decode(r *http.Request, dst any) error {
	if err := httpx.DecodeJSON(r, dst); err != nil {
		return err
	}
	if err := h.validator.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s failed %s", shared.ErrValidation, verrs[0].Namespace(), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	return nil
}

func parseID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: transaction id", shared.ErrValidation)
	}
	return id, nil
}
