package consignment

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a daily transaction.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusVerified  Status = "verified"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// CanSubmit reports whether more lines may be added.
func (s Status) CanSubmit() bool {
	return s == StatusDraft
}

// CanVerify reports whether actual quantities may be recorded.
func (s Status) CanVerify() bool {
	return s == StatusDraft
}

// CanComplete reports whether returns may be recorded and payout finalised.
func (s Status) CanComplete() bool {
	return s == StatusVerified
}

// CanCancel reports whether origin may cancel a transaction in this state. The cutoff sweep
// only ever cancels drafts so it loses any race against an owner verifying.
func (s Status) CanCancel(origin CancelOrigin) bool {
	switch origin {
	case CancelByOwner, CancelBySupplier:
		return s == StatusDraft || s == StatusVerified
	case CancelByCutoff:
		return s == StatusDraft
	default:
		return false
	}
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CancelOrigin identifies who caused a cancellation; it decides reliability attribution.
type CancelOrigin string

const (
	CancelByOwner    CancelOrigin = "owner"
	CancelBySupplier CancelOrigin = "supplier"
	CancelByCutoff   CancelOrigin = "cutoff"
)

// PenalizesSupplier reports whether the cancellation counts against the supplier.
func (o CancelOrigin) PenalizesSupplier() bool {
	return o == CancelBySupplier || o == CancelByCutoff
}

// EntityType is the audit entity name of a daily transaction.
const EntityType = "daily_transaction"

// CutoffReason is recorded on drafts cancelled by the cutoff sweep.
const CutoffReason = "cutoff exceeded"

// Notification kinds sent to suppliers.
const (
	EventSubmitted = "delivery.submitted"
	EventVerified  = "delivery.verified"
	EventCompleted = "delivery.completed"
	EventCancelled = "delivery.cancelled"
)

// DailyTransaction is one delivery per (store, supplier, store-local date).
type DailyTransaction struct {
	ID             int64           `json:"id"`
	StoreID        int64           `json:"store_id"`
	SupplierID     int64           `json:"supplier_id"`
	Date           time.Time       `json:"date"`
	Status         Status          `json:"status"`
	TotalItemsIn   int64           `json:"total_items_in"`
	TotalItemsSold int64           `json:"total_items_sold"`
	TotalPayout    decimal.Decimal `json:"total_payout"`
	AdminNote      *string         `json:"admin_note,omitempty"`
	CancelReason   *string         `json:"cancel_reason,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// TransactionItem is one product line of a transaction.
type TransactionItem struct {
	ID          int64 `json:"id"`
	TrxID       int64 `json:"trx_id"`
	ProductID   int64 `json:"product_id"`
	QtyPlanned  int64 `json:"qty_planned"`
	QtyActual   int64 `json:"qty_actual"`
	QtyReturned int64 `json:"qty_returned"`
}

// QtySold is what the store pays for.
func (i TransactionItem) QtySold() int64 {
	return i.QtyActual - i.QtyReturned
}

// Transaction is a header with its lines.
type Transaction struct {
	DailyTransaction
	Items []TransactionItem `json:"items"`
}

// Totals are the derived header columns.
type Totals struct {
	ItemsIn   int64
	ItemsSold int64
	Payout    decimal.Decimal
}

// ListFilter narrows transaction listings.
type ListFilter struct {
	StoreID    int64
	SupplierID int64
	Date       *time.Time
	Status     Status
	Page       int
	PerPage    int
}

// SubmitInput is a supplier's delivery plan for one date.
type SubmitInput struct {
	StoreID    int64
	SupplierID int64
	Date       time.Time
	Items      []SubmitLine
}

// SubmitLine plans qty units of a product.
type SubmitLine struct {
	ProductID int64
	Qty       int64
}

// VerifyInput records what physically arrived.
type VerifyInput struct {
	TrxID   int64
	ActorID int64
	Lines   []ActualLine
	Note    *string
}

// ActualLine sets the delivered quantity of an item.
type ActualLine struct {
	ItemID    int64
	QtyActual int64
}

// CompleteInput records unsold units after the sales window.
type CompleteInput struct {
	TrxID   int64
	ActorID int64
	Lines   []ReturnLine
	Note    *string
}

// ReturnLine sets the returned quantity of an item.
type ReturnLine struct {
	ItemID      int64
	QtyReturned int64
}

// CancelInput cancels a draft or verified transaction.
type CancelInput struct {
	TrxID   int64
	ActorID int64
	Reason  string
	Origin  CancelOrigin
}

// DateOf truncates t to its calendar day in UTC, the representation pgx uses for DATE.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func sumPlanned(items []TransactionItem) int64 {
	var total int64
	for _, item := range items {
		total += item.QtyPlanned
	}
	return total
}

func sumActual(items []TransactionItem) int64 {
	var total int64
	for _, item := range items {
		total += item.QtyActual
	}
	return total
}
