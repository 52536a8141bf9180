package stores

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/consigna/consigna/internal/platform/cache"
	"github.com/consigna/consigna/internal/shared"
)

// RepositoryPort describes persistence used by Directory.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (Config, error)
	ListAutoCancel(ctx context.Context) ([]Config, error)
	UpdateSettings(ctx context.Context, id int64, in SettingsInput) error
}

// Directory serves store settings through a Redis cache keyed by store id. Writers must go
// through UpdateSettings or call Invalidate so readers never keep a stale cutoff.
type Directory struct {
	repo      RepositoryPort
	cache     *cache.JSONCache
	defaultTZ string
	logger    *slog.Logger
}

// NewDirectory constructs the directory. defaultTZ applies to stores without a timezone.
func NewDirectory(repo RepositoryPort, c *cache.JSONCache, defaultTZ string, logger *slog.Logger) *Directory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Directory{repo: repo, cache: c, defaultTZ: defaultTZ, logger: logger}
}

// StoreConfig returns the settings of one store.
func (d *Directory) StoreConfig(ctx context.Context, storeID int64) (Config, error) {
	var cfg Config
	err := d.cache.Fetch(ctx, shared.StoreConfigCacheKey(storeID), &cfg, func(ctx context.Context) (any, error) {
		return d.repo.Get(ctx, storeID)
	})
	if err != nil {
		return Config{}, err
	}
	return d.withDefaults(cfg), nil
}

// AutoCancelStores lists stores the cutoff sweep must visit. It bypasses the cache.
func (d *Directory) AutoCancelStores(ctx context.Context) ([]Config, error) {
	list, err := d.repo.ListAutoCancel(ctx)
	if err != nil {
		return nil, err
	}
	for i := range list {
		list[i] = d.withDefaults(list[i])
	}
	return list, nil
}

// UpdateSettings lets the store owner change cutoff and availability settings.
func (d *Directory) UpdateSettings(ctx context.Context, viewer shared.Principal, storeID int64, in SettingsInput) (Config, error) {
	current, err := d.repo.Get(ctx, storeID)
	if err != nil {
		return Config{}, err
	}
	if !viewer.IsOwner() || viewer.UserID != current.OwnerID {
		return Config{}, shared.ErrForbidden
	}
	if in.AutoCancelEnabled && in.CutoffTime == "" {
		return Config{}, fmt.Errorf("%w: auto-cancel requires a cutoff time", shared.ErrValidation)
	}
	if err := d.repo.UpdateSettings(ctx, storeID, in); err != nil {
		return Config{}, err
	}
	if err := d.Invalidate(ctx, storeID); err != nil {
		d.logger.Warn("invalidate store config", slog.Int64("store_id", storeID), slog.Any("error", err))
	}
	return d.StoreConfig(ctx, storeID)
}

// Invalidate drops the cached settings for a store.
func (d *Directory) Invalidate(ctx context.Context, storeID int64) error {
	return d.cache.Invalidate(ctx, shared.StoreConfigCacheKey(storeID))
}

// OwnerOf returns the owner user id of a store.
func (d *Directory) OwnerOf(ctx context.Context, storeID int64) (int64, error) {
	cfg, err := d.StoreConfig(ctx, storeID)
	if err != nil {
		return 0, err
	}
	return cfg.OwnerID, nil
}

func (d *Directory) withDefaults(cfg Config) Config {
	if cfg.Timezone == "" {
		cfg.Timezone = d.defaultTZ
	}
	return cfg
}
