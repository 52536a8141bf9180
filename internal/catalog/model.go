package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

// ApprovalStatus tracks owner review of a supplier's product.
type ApprovalStatus string

const (
	StatusPending  ApprovalStatus = "pending"
	StatusApproved ApprovalStatus = "approved"
	StatusRejected ApprovalStatus = "rejected"
)

// Product is a consigned item listed by a supplier.
type Product struct {
	ID         int64           `json:"id"`
	SupplierID int64           `json:"supplier_id"`
	Name       string          `json:"name"`
	PriceBuy   decimal.Decimal `json:"price_buy"`
	PriceSell  decimal.Decimal `json:"price_sell"`
	Status     ApprovalStatus  `json:"status"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Approved reports whether the product may be delivered.
func (p Product) Approved() bool {
	return p.Status == StatusApproved
}
