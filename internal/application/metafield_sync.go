package application

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/adedayo14/shopifycart-sub000/internal/domain"
	"github.com/adedayo14/shopifycart-sub000/internal/infrastructure/metrics"
	"github.com/adedayo14/shopifycart-sub000/internal/ports"

	"github.com/rs/zerolog"
)

// MetafieldNamespace is the single namespace the theme extension reads
// block-access flags from.
const MetafieldNamespace = "trifoli_blocks"

// DefaultSyncCooldown gates redundant syncs for the same shop.
const DefaultSyncCooldown = time.Hour

// MetafieldKey derives the deterministic metafield key for a block ID.
func MetafieldKey(blockID string) string {
	return strings.ReplaceAll(blockID, "-", "_") + "_access"
}

// SyncResult reports the outcome of one entitlement sync.
type SyncResult struct {
	Synced  bool     `json:"synced"`
	Skipped bool     `json:"skipped"`
	Written int      `json:"written"`
	Failed  []string `json:"failed,omitempty"`
	Message string   `json:"message,omitempty"`
}

// MetafieldSynchronizer writes one boolean access metafield per catalog
// block to the app installation in a single batched mutation. Syncing the
// same entitlement twice yields the same final metafield state, so retries
// are safe.
type MetafieldSynchronizer struct {
	admin    ports.AdminClient
	cache    ports.SyncStateCache
	catalog  *domain.Catalog
	cooldown time.Duration
	logger   zerolog.Logger
}

// NewMetafieldSynchronizer creates a new synchronizer. A non-positive
// cooldown falls back to DefaultSyncCooldown.
func NewMetafieldSynchronizer(
	admin ports.AdminClient,
	cache ports.SyncStateCache,
	catalog *domain.Catalog,
	cooldown time.Duration,
	logger zerolog.Logger,
) *MetafieldSynchronizer {
	if cooldown <= 0 {
		cooldown = DefaultSyncCooldown
	}
	return &MetafieldSynchronizer{
		admin:    admin,
		cache:    cache,
		catalog:  catalog,
		cooldown: cooldown,
		logger:   logger,
	}
}

// Sync pushes the entitlement set to Shopify. Metafields cover the FULL
// catalog, not just the entitled subset, so revoked blocks flip to "false"
// rather than lingering. The cooldown is bypassed when force is set or when
// the catalog hash changed since the shop's last sync (new blocks must reach
// existing subscribers without manual action).
func (m *MetafieldSynchronizer) Sync(ctx context.Context, shop string, accessToken string, ent *domain.Entitlement, force bool) (*SyncResult, error) {
	normalized := domain.NormalizeShopDomain(shop)

	if !force {
		state, err := m.cache.Get(ctx, normalized)
		if err != nil {
			// Cache is best-effort; a miss just costs one redundant sync.
			m.logger.Warn().Err(err).Str("shop", normalized).Msg("Sync-state cache read failed")
		}
		if state != nil && state.CatalogHash == m.catalog.Hash() && time.Since(state.LastSyncedAt) < m.cooldown {
			metrics.SyncSkips.Inc()
			return &SyncResult{Skipped: true, Message: "sync cooldown active"}, nil
		}
	}

	metrics.SyncAttempts.Inc()

	ownerID, err := m.admin.CurrentAppInstallationID(ctx, normalized, accessToken)
	if err != nil {
		metrics.SyncFailures.Inc()
		return nil, fmt.Errorf("failed to resolve app installation for %s: %w", normalized, err)
	}

	ids := m.catalog.AllIDs()
	inputs := make([]ports.MetafieldInput, 0, len(ids))
	for _, id := range ids {
		value := "false"
		if ent.Allows(id) {
			value = "true"
		}
		inputs = append(inputs, ports.MetafieldInput{
			OwnerID:   ownerID,
			Namespace: MetafieldNamespace,
			Key:       MetafieldKey(id),
			Value:     value,
			Type:      "boolean",
		})
	}

	res, err := m.admin.SetMetafields(ctx, normalized, accessToken, inputs)
	if err != nil {
		metrics.SyncFailures.Inc()
		return nil, fmt.Errorf("metafieldsSet failed for %s: %w", normalized, err)
	}

	var failed []string
	for key, msg := range res.Failed {
		m.logger.Warn().
			Str("shop", normalized).
			Str("key", key).
			Str("userError", msg).
			Msg("Metafield write rejected")
		failed = append(failed, key)
	}
	sort.Strings(failed)

	if res.Written == 0 {
		metrics.SyncFailures.Inc()
		return nil, fmt.Errorf("metafieldsSet wrote no fields for %s (%d rejected)", normalized, len(failed))
	}

	state := &ports.SyncState{LastSyncedAt: time.Now(), CatalogHash: m.catalog.Hash()}
	if err := m.cache.Set(ctx, normalized, state, m.cooldown); err != nil {
		m.logger.Warn().Err(err).Str("shop", normalized).Msg("Sync-state cache write failed")
	}

	m.logger.Info().
		Str("shop", normalized).
		Int("written", res.Written).
		Int("rejected", len(failed)).
		Bool("forced", force).
		Msg("Entitlement metafields synced")

	return &SyncResult{
		Synced:  true,
		Written: res.Written,
		Failed:  failed,
		Message: fmt.Sprintf("%d metafields written", res.Written),
	}, nil
}
