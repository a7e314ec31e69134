package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/adedayo14/shopifycart-sub000/internal/domain"
	"github.com/adedayo14/shopifycart-sub000/internal/errs"
	"github.com/adedayo14/shopifycart-sub000/internal/infrastructure/metrics"
	"github.com/adedayo14/shopifycart-sub000/internal/ports"

	"github.com/rs/zerolog"
)

// Charge statuses Shopify reports for a charge that grants access.
func chargeGrantsAccess(status string) bool {
	switch strings.ToLower(status) {
	case "active", "accepted":
		return true
	default:
		return false
	}
}

// BillingReconciler processes billing webhooks and purchase/subscribe
// confirmation callbacks: it updates local subscription/purchase state and
// triggers entitlement recomputation plus a forced metafield sync.
//
// The database write always lands before any Shopify API call, so a failed
// sync recomputes from durable state on the next trigger. Sync failures are
// logged, never surfaced as billing failures.
type BillingReconciler struct {
	subscriptions ports.SubscriptionRepository
	purchases     ports.PurchaseRepository
	sessions      ports.SessionRepository
	crypto        ports.EncryptionService
	admin         ports.AdminClient
	catalog       *domain.Catalog
	entitlements  *EntitlementService
	synchronizer  *MetafieldSynchronizer
	events        ports.EntitlementPublisher
	logger        zerolog.Logger
}

// NewBillingReconciler creates a new billing reconciler. events may be nil.
func NewBillingReconciler(
	subscriptions ports.SubscriptionRepository,
	purchases ports.PurchaseRepository,
	sessions ports.SessionRepository,
	crypto ports.EncryptionService,
	admin ports.AdminClient,
	catalog *domain.Catalog,
	entitlements *EntitlementService,
	synchronizer *MetafieldSynchronizer,
	events ports.EntitlementPublisher,
	logger zerolog.Logger,
) *BillingReconciler {
	return &BillingReconciler{
		subscriptions: subscriptions,
		purchases:     purchases,
		sessions:      sessions,
		crypto:        crypto,
		admin:         admin,
		catalog:       catalog,
		entitlements:  entitlements,
		synchronizer:  synchronizer,
		events:        events,
		logger:        logger,
	}
}

// ConfirmSubscription verifies a recurring charge against Shopify's
// charge-status API and, on success, upserts an active subscription with
// fresh period bounds. The client-supplied charge ID is never trusted
// without verification; a failed verification writes nothing.
func (r *BillingReconciler) ConfirmSubscription(ctx context.Context, shop string, chargeID string, planType string) (*domain.Subscription, error) {
	normalized := domain.NormalizeShopDomain(shop)

	if planType != domain.PlanMonthlyAccess && planType != domain.PlanAnnualAccess {
		return nil, fmt.Errorf("unknown plan type %q", planType)
	}

	accessToken, err := r.accessTokenForShop(ctx, normalized)
	if err != nil {
		return nil, err
	}

	charge, err := r.admin.GetRecurringCharge(ctx, normalized, accessToken, chargeID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrChargeVerificationFailed, err)
	}
	if !chargeGrantsAccess(charge.Status) {
		return nil, fmt.Errorf("%w: recurring charge %s has status %q", errs.ErrChargeVerificationFailed, chargeID, charge.Status)
	}

	now := time.Now()
	sub := &domain.Subscription{
		Shop:               normalized,
		PlanType:           planType,
		Status:             domain.SubscriptionActive,
		ChargeID:           chargeID,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now.Add(domain.PeriodLength(planType)),
	}
	if err := r.subscriptions.Upsert(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to save subscription for %s: %w", normalized, err)
	}

	metrics.SubscriptionTransitions.WithLabelValues(domain.SubscriptionActive).Inc()
	r.syncAfterBilling(ctx, normalized, accessToken, "subscription_activated")
	return sub, nil
}

// ConfirmPurchase verifies a one-time charge and, on success, records a
// completed purchase. The charge ID is the dedup key: a confirmation seen
// before returns the existing row without inserting a second one.
func (r *BillingReconciler) ConfirmPurchase(ctx context.Context, shop string, blockID string, chargeID string, purchaseType string) (*domain.Purchase, error) {
	normalized := domain.NormalizeShopDomain(shop)

	if !r.catalog.Contains(blockID) {
		return nil, fmt.Errorf("%w: %s", errs.ErrUnknownBlock, blockID)
	}
	if purchaseType == "" {
		purchaseType = domain.PurchaseIndividual
	}

	existing, err := r.purchases.ByChargeID(ctx, chargeID)
	if err != nil {
		return nil, fmt.Errorf("failed to check charge %s: %w", chargeID, err)
	}
	if existing != nil {
		r.logger.Info().
			Str("shop", normalized).
			Str("chargeId", chargeID).
			Msg("Duplicate purchase confirmation, returning existing record")
		return existing, nil
	}

	accessToken, err := r.accessTokenForShop(ctx, normalized)
	if err != nil {
		return nil, err
	}

	charge, err := r.admin.GetOneTimeCharge(ctx, normalized, accessToken, chargeID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrChargeVerificationFailed, err)
	}
	if !chargeGrantsAccess(charge.Status) {
		return nil, fmt.Errorf("%w: one-time charge %s has status %q", errs.ErrChargeVerificationFailed, chargeID, charge.Status)
	}

	purchase := &domain.Purchase{
		Shop:        normalized,
		BlockID:     blockID,
		Type:        purchaseType,
		Status:      domain.PurchaseCompleted,
		ChargeID:    chargeID,
		PurchasedAt: time.Now(),
	}
	if err := r.purchases.Insert(ctx, purchase); err != nil {
		return nil, fmt.Errorf("failed to save purchase for %s: %w", normalized, err)
	}

	metrics.PurchasesRecorded.Inc()
	r.syncAfterBilling(ctx, normalized, accessToken, "block_purchased")
	return purchase, nil
}

// CancelSubscription flips the shop's active subscription to cancelled.
// Entitlement drops immediately; the current period end is preserved as
// informational only.
func (r *BillingReconciler) CancelSubscription(ctx context.Context, shop string) (*domain.Subscription, error) {
	normalized := domain.NormalizeShopDomain(shop)

	sub, err := r.subscriptions.ActiveForShop(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscription for %s: %w", normalized, err)
	}
	if sub == nil {
		return nil, fmt.Errorf("%w: no active subscription for %s", errs.ErrNotFound, normalized)
	}

	sub.Status = domain.SubscriptionCancelled
	if err := r.subscriptions.Upsert(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to cancel subscription for %s: %w", normalized, err)
	}

	metrics.SubscriptionTransitions.WithLabelValues(domain.SubscriptionCancelled).Inc()

	if accessToken, err := r.accessTokenForShop(ctx, normalized); err == nil {
		r.syncAfterBilling(ctx, normalized, accessToken, "subscription_cancelled")
	} else {
		r.logger.Warn().Err(err).Str("shop", normalized).Msg("Skipping sync after cancellation, no access token")
	}
	return sub, nil
}

// ApplySubscriptionStatus reconciles a subscription billing webhook. The
// payload is trusted to be signature-verified upstream, so no charge-status
// round-trip is made. A webhook reporting active for an already-active shop
// is a renewal: the period bounds refresh, nothing else changes.
func (r *BillingReconciler) ApplySubscriptionStatus(ctx context.Context, shop string, chargeID string, planType string, status string) error {
	normalized := domain.NormalizeShopDomain(shop)

	if chargeGrantsAccess(status) {
		if planType != domain.PlanMonthlyAccess && planType != domain.PlanAnnualAccess {
			r.logger.Warn().
				Str("shop", normalized).
				Str("planType", planType).
				Msg("Subscription webhook with unknown plan, defaulting to monthly")
			planType = domain.PlanMonthlyAccess
		}
		now := time.Now()
		sub := &domain.Subscription{
			Shop:               normalized,
			PlanType:           planType,
			Status:             domain.SubscriptionActive,
			ChargeID:           chargeID,
			CurrentPeriodStart: now,
			CurrentPeriodEnd:   now.Add(domain.PeriodLength(planType)),
		}
		if err := r.subscriptions.Upsert(ctx, sub); err != nil {
			return fmt.Errorf("failed to save subscription for %s: %w", normalized, err)
		}
		metrics.SubscriptionTransitions.WithLabelValues(domain.SubscriptionActive).Inc()
	} else {
		sub, err := r.subscriptions.LatestForShop(ctx, normalized)
		if err != nil {
			return fmt.Errorf("failed to query subscription for %s: %w", normalized, err)
		}
		if sub == nil || sub.Status == domain.SubscriptionCancelled {
			return nil
		}
		sub.Status = domain.SubscriptionCancelled
		if err := r.subscriptions.Upsert(ctx, sub); err != nil {
			return fmt.Errorf("failed to cancel subscription for %s: %w", normalized, err)
		}
		metrics.SubscriptionTransitions.WithLabelValues(domain.SubscriptionCancelled).Inc()
	}

	if accessToken, err := r.accessTokenForShop(ctx, normalized); err == nil {
		r.syncAfterBilling(ctx, normalized, accessToken, "subscription_webhook")
	} else {
		r.logger.Warn().Err(err).Str("shop", normalized).Msg("Skipping sync after subscription webhook, no access token")
	}
	return nil
}

// ApplyPurchaseStatus reconciles a one-time charge webhook. Shopify delivers
// at least once; the charge ID dedups repeated deliveries.
func (r *BillingReconciler) ApplyPurchaseStatus(ctx context.Context, shop string, chargeID string, blockID string, status string) error {
	normalized := domain.NormalizeShopDomain(shop)

	existing, err := r.purchases.ByChargeID(ctx, chargeID)
	if err != nil {
		return fmt.Errorf("failed to check charge %s: %w", chargeID, err)
	}

	if !chargeGrantsAccess(status) {
		if existing != nil && existing.Status != domain.PurchaseCompleted {
			if err := r.purchases.UpdateStatusByChargeID(ctx, chargeID, domain.PurchasePending); err != nil {
				return fmt.Errorf("failed to update charge %s: %w", chargeID, err)
			}
		}
		return nil
	}

	if existing != nil {
		if existing.Status == domain.PurchaseCompleted {
			return nil
		}
		if err := r.purchases.UpdateStatusByChargeID(ctx, chargeID, domain.PurchaseCompleted); err != nil {
			return fmt.Errorf("failed to complete charge %s: %w", chargeID, err)
		}
	} else {
		if !r.catalog.Contains(blockID) {
			r.logger.Warn().
				Str("shop", normalized).
				Str("blockId", blockID).
				Str("chargeId", chargeID).
				Msg("One-time charge webhook for unknown block, skipping")
			return nil
		}
		purchase := &domain.Purchase{
			Shop:        normalized,
			BlockID:     blockID,
			Type:        domain.PurchaseIndividual,
			Status:      domain.PurchaseCompleted,
			ChargeID:    chargeID,
			PurchasedAt: time.Now(),
		}
		if err := r.purchases.Insert(ctx, purchase); err != nil {
			return fmt.Errorf("failed to save purchase for %s: %w", normalized, err)
		}
		metrics.PurchasesRecorded.Inc()
	}

	if accessToken, err := r.accessTokenForShop(ctx, normalized); err == nil {
		r.syncAfterBilling(ctx, normalized, accessToken, "purchase_webhook")
	} else {
		r.logger.Warn().Err(err).Str("shop", normalized).Msg("Skipping sync after purchase webhook, no access token")
	}
	return nil
}

// RedactShop deletes all billing and session state for a shop (uninstall /
// GDPR redact).
func (r *BillingReconciler) RedactShop(ctx context.Context, shop string) error {
	normalized := domain.NormalizeShopDomain(shop)

	if err := r.subscriptions.DeleteForShop(ctx, normalized); err != nil {
		return fmt.Errorf("failed to delete subscriptions for %s: %w", normalized, err)
	}
	if err := r.purchases.DeleteForShop(ctx, normalized); err != nil {
		return fmt.Errorf("failed to delete purchases for %s: %w", normalized, err)
	}
	if err := r.sessions.DeleteSessionsForShop(ctx, normalized); err != nil {
		return fmt.Errorf("failed to delete sessions for %s: %w", normalized, err)
	}

	r.logger.Info().Str("shop", normalized).Msg("Shop data redacted")
	return nil
}

// accessTokenForShop fetches and decrypts the latest stored token for a shop.
func (r *BillingReconciler) accessTokenForShop(ctx context.Context, shop string) (string, error) {
	session, err := r.sessions.LatestSession(ctx, shop, domain.BareShopName(shop))
	if err != nil {
		return "", fmt.Errorf("failed to look up session for %s: %w", shop, err)
	}
	if session == nil || session.AccessToken == "" {
		return "", fmt.Errorf("%w: no access token stored for %s", errs.ErrOAuthRequired, shop)
	}
	token, err := r.crypto.Decrypt(session.AccessToken)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt access token for %s: %w", shop, err)
	}
	return token, nil
}

// syncAfterBilling recomputes the entitlement and pushes it with a forced
// refresh. Failures are logged and swallowed: a broken sync must never block
// a confirmed purchase from reaching the merchant, and the next entry point
// re-triggers it from durable state.
func (r *BillingReconciler) syncAfterBilling(ctx context.Context, shop string, accessToken string, reason string) {
	ent, err := r.entitlements.Compute(ctx, shop)
	if err != nil {
		r.logger.Error().Err(err).Str("shop", shop).Str("reason", reason).Msg("Entitlement recompute after billing event failed")
		return
	}

	if _, err := r.synchronizer.Sync(ctx, shop, accessToken, ent, true); err != nil {
		r.logger.Error().Err(err).Str("shop", shop).Str("reason", reason).Msg("Entitlement sync after billing event failed")
		return
	}

	if r.events != nil {
		r.events.Publish(&domain.EntitlementEvent{
			Shop:       shop,
			Kind:       reason,
			BlockIDs:   ent.BlockIDs,
			AccessType: ent.AccessType,
		})
	}
}
