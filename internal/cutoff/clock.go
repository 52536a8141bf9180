// Package cutoff cancels drafts that are still open after a store's daily cutoff.
package cutoff

import (
	"fmt"
	"time"

	"github.com/consigna/consigna/internal/shared"
	"github.com/consigna/consigna/internal/stores"
)

const lastMinuteOfDay = 23*60 + 59

// IsPastCutoff reports whether the wall clock of now, already in store-local time, is strictly
// after cutoff plus grace minutes. The comparison ignores seconds and never rolls past 23:59.
func IsPastCutoff(cutoff string, graceMinutes int, now time.Time) (bool, error) {
	at, err := time.Parse(stores.ClockLayout, cutoff)
	if err != nil {
		return false, fmt.Errorf("cutoff: parse %q: %w", cutoff, shared.ErrValidation)
	}
	if graceMinutes < 0 {
		graceMinutes = 0
	}
	deadline := at.Hour()*60 + at.Minute() + graceMinutes
	if deadline > lastMinuteOfDay {
		deadline = lastMinuteOfDay
	}
	return now.Hour()*60+now.Minute() > deadline, nil
}

// StoreIsPastCutoff applies IsPastCutoff to a store in its own timezone. Stores without a
// cutoff are never past it.
func StoreIsPastCutoff(cfg stores.Config, now time.Time) (bool, error) {
	if !cfg.HasCutoff() {
		return false, nil
	}
	return IsPastCutoff(cfg.CutoffTime, cfg.GracePeriodMinutes, now.In(cfg.Location()))
}
