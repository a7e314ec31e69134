// Package cache provides sync-state cache implementations. The state is
// best-effort: losing an entry costs at most one redundant metafield sync.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/adedayo14/shopifycart-sub000/internal/ports"

	"github.com/redis/go-redis/v9"
)

const syncKeyPrefix = "blocksync:"

// RedisSyncCache stores sync state in Redis so cooldown throttling behaves
// consistently across server instances.
type RedisSyncCache struct {
	client *redis.Client
}

// NewRedisSyncCache creates a Redis-backed sync-state cache.
func NewRedisSyncCache(client *redis.Client) *RedisSyncCache {
	return &RedisSyncCache{client: client}
}

// Get returns the sync state for a shop, or (nil, nil) when absent.
func (c *RedisSyncCache) Get(ctx context.Context, shop string) (*ports.SyncState, error) {
	data, err := c.client.Get(ctx, syncKeyPrefix+shop).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read sync state: %w", err)
	}

	var state ports.SyncState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to decode sync state: %w", err)
	}
	return &state, nil
}

// Set stores the sync state for a shop with the given TTL.
func (c *RedisSyncCache) Set(ctx context.Context, shop string, state *ports.SyncState, ttl time.Duration) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode sync state: %w", err)
	}
	if err := c.client.Set(ctx, syncKeyPrefix+shop, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write sync state: %w", err)
	}
	return nil
}
