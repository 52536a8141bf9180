package consignment

import (
	"errors"
	"fmt"
	"time"

	"github.com/consigna/consigna/internal/shared"
)

// errDraftConflict signals a lost race creating the draft for a (store, supplier, date) key;
// Submit retries the whole unit of work when it sees it.
var errDraftConflict = errors.New("consignment: concurrent draft creation")

// StateError reports a transition attempted from the wrong status.
type StateError struct {
	TrxID   int64
	Op      string
	Current Status
}

func (e *StateError) Error() string {
	if e.Current == "" {
		return fmt.Sprintf("consignment: %s transaction %d: status changed concurrently", e.Op, e.TrxID)
	}
	return fmt.Sprintf("consignment: cannot %s transaction %d in status %s", e.Op, e.TrxID, e.Current)
}

// Is reports shared.ErrInvalidState equivalence.
func (e *StateError) Is(target error) bool {
	return target == shared.ErrInvalidState
}

// DraftRaceError reports a submit that kept losing the draft creation race for its key.
type DraftRaceError struct {
	StoreID    int64
	SupplierID int64
	Date       time.Time
	Attempts   int
}

func (e *DraftRaceError) Error() string {
	return fmt.Sprintf("consignment: submit to store %d for supplier %d on %s: draft changed concurrently after %d attempts",
		e.StoreID, e.SupplierID, e.Date.Format(time.DateOnly), e.Attempts)
}

// Is reports shared.ErrInvalidState equivalence.
func (e *DraftRaceError) Is(target error) bool {
	return target == shared.ErrInvalidState
}

// QuantityError reports a negative quantity or more returned than delivered.
type QuantityError struct {
	ItemID int64
	Reason string
}

func (e *QuantityError) Error() string {
	if e.ItemID == 0 {
		return fmt.Sprintf("consignment: invalid quantity: %s", e.Reason)
	}
	return fmt.Sprintf("consignment: invalid quantity for item %d: %s", e.ItemID, e.Reason)
}

// Is reports shared.ErrInvalidQuantity equivalence.
func (e *QuantityError) Is(target error) bool {
	return target == shared.ErrInvalidQuantity
}
