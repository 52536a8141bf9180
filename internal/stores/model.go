package stores

import (
	"time"
)

// ClockLayout is the wall-clock format used for cutoff times.
const ClockLayout = "15:04"

// Config holds the settings the consignment core reads from a store.
type Config struct {
	StoreID            int64  `json:"store_id"`
	OwnerID            int64  `json:"owner_id"`
	Name               string `json:"name"`
	CutoffTime         string `json:"cutoff_time,omitempty"`
	GracePeriodMinutes int    `json:"grace_period_minutes"`
	AutoCancelEnabled  bool   `json:"auto_cancel_enabled"`
	IsOpen             bool   `json:"is_open"`
	EmergencyMode      bool   `json:"emergency_mode"`
	Timezone           string `json:"timezone,omitempty"`
}

// AcceptingSubmissions reports whether suppliers may submit deliveries.
func (c Config) AcceptingSubmissions() bool {
	return c.IsOpen && !c.EmergencyMode
}

// HasCutoff reports whether a cutoff time is configured.
func (c Config) HasCutoff() bool {
	return c.CutoffTime != ""
}

// Location resolves the store timezone, defaulting to UTC.
func (c Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// LocalDate returns the store-local calendar day for now, at midnight UTC so it
// compares equal to DATE columns scanned by pgx.
func (c Config) LocalDate(now time.Time) time.Time {
	local := now.In(c.Location())
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

// SettingsInput is the owner-editable part of Config.
type SettingsInput struct {
	CutoffTime         string `json:"cutoff_time" validate:"omitempty,datetime=15:04"`
	GracePeriodMinutes int    `json:"grace_period_minutes" validate:"gte=0,lte=720"`
	AutoCancelEnabled  bool   `json:"auto_cancel_enabled"`
	IsOpen             bool   `json:"is_open"`
	EmergencyMode      bool   `json:"emergency_mode"`
	Timezone           string `json:"timezone" validate:"omitempty,timezone"`
}
