package shared

import "fmt"

// CutoffSweepLockKey is the redis key guarding the cluster-wide cutoff sweep.
const CutoffSweepLockKey = "consigna:cutoff:sweep:lock"

// StoreConfigCacheKey builds the redis key holding a store's cached settings.
func StoreConfigCacheKey(storeID int64) string {
	return fmt.Sprintf("consigna:store:%d:config", storeID)
}
