package cache

import (
	"context"
	"sync"
	"time"

	"github.com/adedayo14/shopifycart-sub000/internal/ports"
)

type memoryEntry struct {
	state     ports.SyncState
	expiresAt time.Time
}

// MemorySyncCache is an in-process sync-state cache used when no Redis is
// configured, and in tests. Entries are lost on restart; the worst case is
// one extra redundant sync per shop.
type MemorySyncCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

// NewMemorySyncCache creates an in-memory sync-state cache.
func NewMemorySyncCache() *MemorySyncCache {
	return &MemorySyncCache{entries: make(map[string]memoryEntry)}
}

// Get returns the sync state for a shop, or (nil, nil) when absent or expired.
func (c *MemorySyncCache) Get(_ context.Context, shop string) (*ports.SyncState, error) {
	c.mu.RLock()
	entry, ok := c.entries[shop]
	c.mu.RUnlock()

	if !ok {
		return nil, nil
	}
	if time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, shop)
		c.mu.Unlock()
		return nil, nil
	}
	state := entry.state
	return &state, nil
}

// Set stores the sync state for a shop with the given TTL.
func (c *MemorySyncCache) Set(_ context.Context, shop string, state *ports.SyncState, ttl time.Duration) error {
	c.mu.Lock()
	c.entries[shop] = memoryEntry{state: *state, expiresAt: time.Now().Add(ttl)}
	c.mu.Unlock()
	return nil
}
