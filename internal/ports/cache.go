package ports

import (
	"context"
	"time"
)

// SyncState records the last successful metafield sync for a shop. It is
// best-effort and non-durable; losing it costs at most one redundant sync.
type SyncState struct {
	LastSyncedAt time.Time `json:"last_synced_at"`
	CatalogHash  string    `json:"catalog_hash"`
}

// SyncStateCache is a shared key-value store with expiring entries, keyed by
// shop domain, used to throttle redundant metafield syncs across server
// instances.
type SyncStateCache interface {
	// Get returns the sync state for a shop, or (nil, nil) when absent or expired.
	Get(ctx context.Context, shop string) (*SyncState, error)

	// Set stores the sync state for a shop with the given TTL.
	Set(ctx context.Context, shop string, state *SyncState, ttl time.Duration) error
}
