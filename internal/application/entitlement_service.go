package application

import (
	"context"
	"fmt"

	"github.com/adedayo14/shopifycart-sub000/internal/domain"
	"github.com/adedayo14/shopifycart-sub000/internal/ports"

	"github.com/rs/zerolog"
)

// EntitlementService computes the set of block IDs a shop may use from the
// union of subscription status, one-time purchases, and the free tier.
type EntitlementService struct {
	subscriptions ports.SubscriptionRepository
	purchases     ports.PurchaseRepository
	catalog       *domain.Catalog
	logger        zerolog.Logger
}

// NewEntitlementService creates a new entitlement service.
func NewEntitlementService(
	subscriptions ports.SubscriptionRepository,
	purchases ports.PurchaseRepository,
	catalog *domain.Catalog,
	logger zerolog.Logger,
) *EntitlementService {
	return &EntitlementService{
		subscriptions: subscriptions,
		purchases:     purchases,
		catalog:       catalog,
		logger:        logger,
	}
}

// Compute determines the full entitlement for a shop. Subscribers get every
// active catalog block, including ones added after they subscribed. Without
// an active subscription the entitlement is free-tier blocks plus completed
// purchases. Persistence errors are returned, never silently mapped to "no
// access".
func (s *EntitlementService) Compute(ctx context.Context, shop string) (*domain.Entitlement, error) {
	normalized := domain.NormalizeShopDomain(shop)

	sub, err := s.subscriptions.ActiveForShop(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscription for %s: %w", normalized, err)
	}

	if sub != nil {
		return domain.NewEntitlement(normalized, s.catalog.AllIDs(), sub), nil
	}

	ids := s.catalog.FreeIDs()

	purchases, err := s.purchases.CompletedForShop(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to query purchases for %s: %w", normalized, err)
	}

	purchased := false
	for _, p := range purchases {
		if !s.catalog.Contains(p.BlockID) {
			s.logger.Warn().
				Str("shop", normalized).
				Str("blockId", p.BlockID).
				Msg("Skipping purchased block that is no longer in the catalog")
			continue
		}
		ids = append(ids, p.BlockID)
		purchased = true
	}

	ent := domain.NewEntitlement(normalized, ids, nil)
	if purchased {
		ent.AccessType = domain.AccessPurchased
	}
	return ent, nil
}
