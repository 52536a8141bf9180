package stores

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/consigna/consigna/internal/shared"
)

const selectConfig = `SELECT id, owner_id, name, COALESCE(to_char(cutoff_time, 'HH24:MI'), ''), grace_period_minutes,
auto_cancel_enabled, is_open, emergency_mode, COALESCE(timezone, '') FROM stores`

// Repository provides PostgreSQL backed store settings.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get loads a store's settings.
func (r *Repository) Get(ctx context.Context, id int64) (Config, error) {
	cfg, err := scanConfig(r.pool.QueryRow(ctx, selectConfig+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Config{}, fmt.Errorf("store %d: %w", id, shared.ErrNotFound)
	}
	if err != nil {
		return Config{}, shared.NewStorageError("stores: get", err)
	}
	return cfg, nil
}

// ListAutoCancel returns every store with auto-cancel enabled and a cutoff configured.
func (r *Repository) ListAutoCancel(ctx context.Context) ([]Config, error) {
	rows, err := r.pool.Query(ctx, selectConfig+` WHERE auto_cancel_enabled AND cutoff_time IS NOT NULL ORDER BY id`)
	if err != nil {
		return nil, shared.NewStorageError("stores: list auto-cancel", err)
	}
	defer rows.Close()
	var out []Config
	for rows.Next() {
		cfg, err := scanConfig(rows)
		if err != nil {
			return nil, shared.NewStorageError("stores: scan", err)
		}
		out = append(out, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.NewStorageError("stores: list auto-cancel", err)
	}
	return out, nil
}

// UpdateSettings persists owner-editable settings.
func (r *Repository) UpdateSettings(ctx context.Context, id int64, in SettingsInput) error {
	var cutoff *string
	if in.CutoffTime != "" {
		cutoff = &in.CutoffTime
	}
	var tz *string
	if in.Timezone != "" {
		tz = &in.Timezone
	}
	tag, err := r.pool.Exec(ctx, `UPDATE stores SET cutoff_time = $2::time, grace_period_minutes = $3, auto_cancel_enabled = $4,
is_open = $5, emergency_mode = $6, timezone = $7, updated_at = NOW() WHERE id = $1`,
		id, cutoff, in.GracePeriodMinutes, in.AutoCancelEnabled, in.IsOpen, in.EmergencyMode, tz)
	if err != nil {
		return shared.NewStorageError("stores: update settings", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("store %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

func scanConfig(row pgx.Row) (Config, error) {
	var cfg Config
	err := row.Scan(&cfg.StoreID, &cfg.OwnerID, &cfg.Name, &cfg.CutoffTime, &cfg.GracePeriodMinutes,
		&cfg.AutoCancelEnabled, &cfg.IsOpen, &cfg.EmergencyMode, &cfg.Timezone)
	return cfg, err
}
