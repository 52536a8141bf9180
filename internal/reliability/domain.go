package reliability

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

const (
	maxScore        = 100
	noShowWeight    = 10
	cancelWeight    = 5
	defaultScore    = 100
	defaultAccuracy = 100
)

// SupplierStats is the running aggregate per (supplier, store). ReliabilityScore is an
// owner-only signal; supplier-facing reads use SupplierSummary instead.
type SupplierStats struct {
	SupplierID            int64           `json:"supplier_id"`
	StoreID               int64           `json:"store_id"`
	TotalTransactions     int64           `json:"total_transactions"`
	CompletedTransactions int64           `json:"completed_transactions"`
	CancelledBySupplier   int64           `json:"cancelled_by_supplier"`
	NoShowCount           int64           `json:"no_show_count"`
	TotalPlannedQty       int64           `json:"total_planned_qty"`
	TotalActualQty        int64           `json:"total_actual_qty"`
	TotalSoldQty          int64           `json:"total_sold_qty"`
	TotalRevenue          decimal.Decimal `json:"total_revenue"`
	AverageAccuracy       int             `json:"average_accuracy"`
	ReliabilityScore      int             `json:"reliability_score"`
	LastTransactionAt     *time.Time      `json:"last_transaction_at,omitempty"`
}

// NewSupplierStats returns the lazily created defaults.
func NewSupplierStats(supplierID, storeID int64) SupplierStats {
	return SupplierStats{
		SupplierID:       supplierID,
		StoreID:          storeID,
		TotalRevenue:     decimal.Zero,
		AverageAccuracy:  defaultAccuracy,
		ReliabilityScore: defaultScore,
	}
}

// Completion carries the totals of one completed transaction.
type Completion struct {
	PlannedQty int64
	ActualQty  int64
	SoldQty    int64
	Revenue    decimal.Decimal
}

// SupplierSummary is the supplier-safe projection of SupplierStats.
type SupplierSummary struct {
	SupplierID            int64           `json:"supplier_id"`
	StoreID               int64           `json:"store_id"`
	TotalTransactions     int64           `json:"total_transactions"`
	CompletedTransactions int64           `json:"completed_transactions"`
	TotalSoldQty          int64           `json:"total_sold_qty"`
	TotalRevenue          decimal.Decimal `json:"total_revenue"`
	AverageAccuracy       int             `json:"average_accuracy"`
	LastTransactionAt     *time.Time      `json:"last_transaction_at,omitempty"`
}

// Summary projects the stats without the reliability score.
func (s SupplierStats) Summary() SupplierSummary {
	return SupplierSummary{
		SupplierID:            s.SupplierID,
		StoreID:               s.StoreID,
		TotalTransactions:     s.TotalTransactions,
		CompletedTransactions: s.CompletedTransactions,
		TotalSoldQty:          s.TotalSoldQty,
		TotalRevenue:          s.TotalRevenue,
		AverageAccuracy:       s.AverageAccuracy,
		LastTransactionAt:     s.LastTransactionAt,
	}
}

func (s *SupplierStats) applyCompleted(c Completion) {
	s.TotalTransactions++
	s.CompletedTransactions++
	s.TotalPlannedQty += c.PlannedQty
	s.TotalActualQty += c.ActualQty
	s.TotalSoldQty += c.SoldQty
	s.TotalRevenue = s.TotalRevenue.Add(c.Revenue)
	s.AverageAccuracy = Accuracy(s.TotalActualQty, s.TotalPlannedQty)
	s.ReliabilityScore = Score(*s)
}

func (s *SupplierStats) applyNoShow() {
	s.TotalTransactions++
	s.NoShowCount++
	s.ReliabilityScore = Score(*s)
}

func (s *SupplierStats) applySupplierCancelled() {
	s.TotalTransactions++
	s.CancelledBySupplier++
	s.ReliabilityScore = Score(*s)
}

// Accuracy is min(100, round(actual/planned*100)), 100 when nothing was planned.
func Accuracy(actual, planned int64) int {
	if planned <= 0 {
		return defaultAccuracy
	}
	return clamp(round(float64(actual) / float64(planned) * 100))
}

// Score derives the reliability score from the counters.
func Score(s SupplierStats) int {
	completionRate := float64(maxScore)
	if s.TotalTransactions > 0 {
		completionRate = float64(s.CompletedTransactions) / float64(s.TotalTransactions) * 100
	}
	raw := completionRate - float64(s.NoShowCount*noShowWeight) - float64(s.CancelledBySupplier*cancelWeight)
	return clamp(round(raw))
}

// round is half away from zero.
func round(v float64) int {
	return int(math.Round(v))
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > maxScore {
		return maxScore
	}
	return v
}
