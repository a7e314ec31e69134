package ports

import (
	"context"

	"github.com/adedayo14/shopifycart-sub000/internal/domain"
)

// SessionRepository defines the interface for shop session persistence.
type SessionRepository interface {
	// SaveSession upserts a session keyed by shop domain.
	SaveSession(ctx context.Context, session *domain.ShopSession) error

	// LatestSession retrieves the most recently updated session for any of
	// the given shop keys (fully-qualified and bare forms), or (nil, nil)
	// when none exists.
	LatestSession(ctx context.Context, shopKeys ...string) (*domain.ShopSession, error)

	// SessionByOAuthState retrieves a pending session by its OAuth state nonce.
	SessionByOAuthState(ctx context.Context, state string) (*domain.ShopSession, error)

	// DeleteSessionsForShop removes all session rows for a shop (uninstall).
	DeleteSessionsForShop(ctx context.Context, shop string) error
}

// SubscriptionRepository defines the interface for subscription persistence.
type SubscriptionRepository interface {
	// Upsert creates or replaces the subscription row for a shop.
	Upsert(ctx context.Context, sub *domain.Subscription) error

	// ActiveForShop retrieves the most recently updated active subscription
	// for a shop, or (nil, nil) when none exists.
	ActiveForShop(ctx context.Context, shop string) (*domain.Subscription, error)

	// LatestForShop retrieves the most recently updated subscription row
	// regardless of status, or (nil, nil) when none exists.
	LatestForShop(ctx context.Context, shop string) (*domain.Subscription, error)

	// DeleteForShop removes all subscription rows for a shop (uninstall).
	DeleteForShop(ctx context.Context, shop string) error
}

// PurchaseRepository defines the interface for one-time purchase persistence.
type PurchaseRepository interface {
	// Insert stores a new purchase row.
	Insert(ctx context.Context, purchase *domain.Purchase) error

	// ByChargeID retrieves a purchase by its charge identifier, or (nil, nil)
	// when none exists. Used as the dedup check before inserting.
	ByChargeID(ctx context.Context, chargeID string) (*domain.Purchase, error)

	// CompletedForShop retrieves all completed purchases for a shop, most
	// recent first.
	CompletedForShop(ctx context.Context, shop string) ([]*domain.Purchase, error)

	// UpdateStatusByChargeID flips the status of the purchase with the given
	// charge identifier.
	UpdateStatusByChargeID(ctx context.Context, chargeID string, status string) error

	// DeleteForShop removes all purchase rows for a shop (uninstall).
	DeleteForShop(ctx context.Context, shop string) error
}
