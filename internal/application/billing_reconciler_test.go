package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/adedayo14/shopifycart-sub000/internal/domain"
	"github.com/adedayo14/shopifycart-sub000/internal/errs"
	"github.com/adedayo14/shopifycart-sub000/internal/ports"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type reconcilerEnv struct {
	subs      *fakeSubscriptionRepo
	purchases *fakePurchaseRepo
	sessions  *fakeSessionRepo
	admin     *fakeAdminClient
	events    *fakePublisher
	catalog   *domain.Catalog
	ent       *EntitlementService
	rec       *BillingReconciler
}

func newReconcilerEnv(t *testing.T) *reconcilerEnv {
	t.Helper()
	env := &reconcilerEnv{
		subs:      newFakeSubscriptionRepo(),
		purchases: &fakePurchaseRepo{},
		sessions:  newFakeSessionRepo(),
		admin:     newFakeAdminClient(),
		events:    &fakePublisher{},
		catalog:   domain.DefaultCatalog(),
	}
	env.sessions.sessions["alpha.myshopify.com"] = &domain.ShopSession{
		Shop:        "alpha.myshopify.com",
		AccessToken: "enc:shpat_alpha",
		UpdatedAt:   time.Now(),
	}
	env.ent = NewEntitlementService(env.subs, env.purchases, env.catalog, zerolog.Nop())
	sync := NewMetafieldSynchronizer(env.admin, newFakeSyncCache(), env.catalog, time.Hour, zerolog.Nop())
	env.rec = NewBillingReconciler(env.subs, env.purchases, env.sessions, plaintextCrypto{}, env.admin, env.catalog, env.ent, sync, env.events, zerolog.Nop())
	return env
}

func TestBillingReconciler_ConfirmSubscription_OK(t *testing.T) {
	env := newReconcilerEnv(t)
	env.admin.recurringCharge = &ports.ChargeStatus{ID: "501", Name: "annual-access", Status: "active"}

	sub, err := env.rec.ConfirmSubscription(context.Background(), "alpha", "501", domain.PlanAnnualAccess)
	require.NoError(t, err)
	require.Equal(t, domain.SubscriptionActive, sub.Status)
	require.Equal(t, "alpha.myshopify.com", sub.Shop)
	require.Equal(t, "501", sub.ChargeID)
	require.WithinDuration(t, time.Now().Add(365*24*time.Hour), sub.CurrentPeriodEnd, time.Minute)

	// Entitlement now covers the whole catalog and was pushed to Shopify.
	require.Len(t, env.admin.setCalls, 1)
	for _, in := range env.admin.setCalls[0] {
		require.Equal(t, "true", in.Value)
	}

	require.Len(t, env.events.events, 1)
	require.Equal(t, "subscription_activated", env.events.events[0].Kind)
	require.Equal(t, domain.AccessSubscription, env.events.events[0].AccessType)
}

func TestBillingReconciler_ConfirmSubscription_UnknownPlan(t *testing.T) {
	env := newReconcilerEnv(t)

	_, err := env.rec.ConfirmSubscription(context.Background(), "alpha", "501", "lifetime-access")
	require.Error(t, err)
	require.Zero(t, env.subs.upserts)
}

func TestBillingReconciler_ConfirmSubscription_DeclinedCharge(t *testing.T) {
	env := newReconcilerEnv(t)
	env.admin.recurringCharge = &ports.ChargeStatus{ID: "501", Status: "declined"}

	_, err := env.rec.ConfirmSubscription(context.Background(), "alpha", "501", domain.PlanMonthlyAccess)
	require.ErrorIs(t, err, errs.ErrChargeVerificationFailed)
	require.Zero(t, env.subs.upserts)
	require.Empty(t, env.admin.setCalls)
}

func TestBillingReconciler_ConfirmSubscription_NoStoredToken(t *testing.T) {
	env := newReconcilerEnv(t)

	_, err := env.rec.ConfirmSubscription(context.Background(), "stranger", "501", domain.PlanMonthlyAccess)
	require.ErrorIs(t, err, errs.ErrOAuthRequired)
}

func TestBillingReconciler_ConfirmPurchase_OK(t *testing.T) {
	env := newReconcilerEnv(t)
	env.admin.oneTimeCharge = &ports.ChargeStatus{ID: "601", Name: "scrolling-bar", Status: "active"}

	p, err := env.rec.ConfirmPurchase(context.Background(), "alpha", "scrolling-bar", "601", "")
	require.NoError(t, err)
	require.Equal(t, domain.PurchaseCompleted, p.Status)
	require.Equal(t, domain.PurchaseIndividual, p.Type)
	require.Equal(t, "scrolling-bar", p.BlockID)
	require.Equal(t, 1, env.purchases.inserts)

	require.Len(t, env.events.events, 1)
	require.Equal(t, "block_purchased", env.events.events[0].Kind)
	require.Contains(t, env.events.events[0].BlockIDs, "scrolling-bar")
}

func TestBillingReconciler_ConfirmPurchase_DuplicateChargeID(t *testing.T) {
	env := newReconcilerEnv(t)
	env.admin.oneTimeCharge = &ports.ChargeStatus{ID: "601", Status: "active"}

	first, err := env.rec.ConfirmPurchase(context.Background(), "alpha", "scrolling-bar", "601", "")
	require.NoError(t, err)

	second, err := env.rec.ConfirmPurchase(context.Background(), "alpha", "scrolling-bar", "601", "")
	require.NoError(t, err)
	require.Same(t, first, second)
	require.Equal(t, 1, env.purchases.inserts)
}

func TestBillingReconciler_ConfirmPurchase_UnknownBlock(t *testing.T) {
	env := newReconcilerEnv(t)

	_, err := env.rec.ConfirmPurchase(context.Background(), "alpha", "nonexistent-block", "601", "")
	require.ErrorIs(t, err, errs.ErrUnknownBlock)
	require.Zero(t, env.purchases.inserts)
}

func TestBillingReconciler_ConfirmPurchase_PendingCharge(t *testing.T) {
	env := newReconcilerEnv(t)
	env.admin.oneTimeCharge = &ports.ChargeStatus{ID: "601", Status: "pending"}

	_, err := env.rec.ConfirmPurchase(context.Background(), "alpha", "scrolling-bar", "601", "")
	require.ErrorIs(t, err, errs.ErrChargeVerificationFailed)
	require.Zero(t, env.purchases.inserts)
}

func TestBillingReconciler_ConfirmPurchase_SyncFailureDoesNotSurface(t *testing.T) {
	env := newReconcilerEnv(t)
	env.admin.oneTimeCharge = &ports.ChargeStatus{ID: "601", Status: "active"}
	env.admin.installationErr = errors.New("shopify 500")

	p, err := env.rec.ConfirmPurchase(context.Background(), "alpha", "scrolling-bar", "601", "")
	require.NoError(t, err)
	require.Equal(t, domain.PurchaseCompleted, p.Status)
	// Sync never ran, so no event was published either.
	require.Empty(t, env.events.events)
}

func TestBillingReconciler_CancelSubscription_OK(t *testing.T) {
	env := newReconcilerEnv(t)
	env.subs.subs["alpha.myshopify.com"] = &domain.Subscription{
		Shop:     "alpha.myshopify.com",
		PlanType: domain.PlanMonthlyAccess,
		Status:   domain.SubscriptionActive,
	}

	sub, err := env.rec.CancelSubscription(context.Background(), "alpha")
	require.NoError(t, err)
	require.Equal(t, domain.SubscriptionCancelled, sub.Status)

	// Access drops immediately: the post-cancel sync writes only free blocks.
	ent, err := env.ent.Compute(context.Background(), "alpha.myshopify.com")
	require.NoError(t, err)
	require.ElementsMatch(t, env.catalog.FreeIDs(), ent.BlockIDs)

	require.Len(t, env.admin.setCalls, 1)
	values := make(map[string]string)
	for _, in := range env.admin.setCalls[0] {
		values[in.Key] = in.Value
	}
	require.Equal(t, "true", values["divider_block_access"])
	require.Equal(t, "false", values["scrolling_bar_access"])
}

func TestBillingReconciler_CancelSubscription_NoneActive(t *testing.T) {
	env := newReconcilerEnv(t)

	_, err := env.rec.CancelSubscription(context.Background(), "alpha")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestBillingReconciler_ApplySubscriptionStatus_Activates(t *testing.T) {
	env := newReconcilerEnv(t)

	err := env.rec.ApplySubscriptionStatus(context.Background(), "alpha.myshopify.com", "701", domain.PlanMonthlyAccess, "ACTIVE")
	require.NoError(t, err)

	sub := env.subs.subs["alpha.myshopify.com"]
	require.NotNil(t, sub)
	require.Equal(t, domain.SubscriptionActive, sub.Status)
	require.Len(t, env.admin.setCalls, 1)
}

func TestBillingReconciler_ApplySubscriptionStatus_UnknownPlanDefaultsMonthly(t *testing.T) {
	env := newReconcilerEnv(t)

	err := env.rec.ApplySubscriptionStatus(context.Background(), "alpha.myshopify.com", "701", "Mystery Plan", "active")
	require.NoError(t, err)
	require.Equal(t, domain.PlanMonthlyAccess, env.subs.subs["alpha.myshopify.com"].PlanType)
}

func TestBillingReconciler_ApplySubscriptionStatus_Cancels(t *testing.T) {
	env := newReconcilerEnv(t)
	env.subs.subs["alpha.myshopify.com"] = &domain.Subscription{
		Shop:   "alpha.myshopify.com",
		Status: domain.SubscriptionActive,
	}

	err := env.rec.ApplySubscriptionStatus(context.Background(), "alpha.myshopify.com", "701", domain.PlanMonthlyAccess, "cancelled")
	require.NoError(t, err)
	require.Equal(t, domain.SubscriptionCancelled, env.subs.subs["alpha.myshopify.com"].Status)
}

func TestBillingReconciler_ApplySubscriptionStatus_CancelNoSubscription(t *testing.T) {
	env := newReconcilerEnv(t)

	err := env.rec.ApplySubscriptionStatus(context.Background(), "alpha.myshopify.com", "701", domain.PlanMonthlyAccess, "cancelled")
	require.NoError(t, err)
	require.Zero(t, env.subs.upserts)
}

func TestBillingReconciler_ApplyPurchaseStatus_InsertsCompleted(t *testing.T) {
	env := newReconcilerEnv(t)

	err := env.rec.ApplyPurchaseStatus(context.Background(), "alpha.myshopify.com", "801", "scrolling-bar", "active")
	require.NoError(t, err)
	require.Equal(t, 1, env.purchases.inserts)
	require.Equal(t, domain.PurchaseCompleted, env.purchases.purchases[0].Status)
}

func TestBillingReconciler_ApplyPurchaseStatus_RedeliveryIsNoop(t *testing.T) {
	env := newReconcilerEnv(t)

	require.NoError(t, env.rec.ApplyPurchaseStatus(context.Background(), "alpha.myshopify.com", "801", "scrolling-bar", "active"))
	require.NoError(t, env.rec.ApplyPurchaseStatus(context.Background(), "alpha.myshopify.com", "801", "scrolling-bar", "active"))
	require.Equal(t, 1, env.purchases.inserts)
	require.Len(t, env.purchases.purchases, 1)
}

func TestBillingReconciler_ApplyPurchaseStatus_CompletesPendingRow(t *testing.T) {
	env := newReconcilerEnv(t)
	env.purchases.purchases = append(env.purchases.purchases, &domain.Purchase{
		Shop:     "alpha.myshopify.com",
		BlockID:  "scrolling-bar",
		Status:   domain.PurchasePending,
		ChargeID: "801",
	})

	err := env.rec.ApplyPurchaseStatus(context.Background(), "alpha.myshopify.com", "801", "scrolling-bar", "accepted")
	require.NoError(t, err)
	require.Equal(t, domain.PurchaseCompleted, env.purchases.purchases[0].Status)
	require.Zero(t, env.purchases.inserts)
}

func TestBillingReconciler_ApplyPurchaseStatus_UnknownBlockSkipped(t *testing.T) {
	env := newReconcilerEnv(t)

	err := env.rec.ApplyPurchaseStatus(context.Background(), "alpha.myshopify.com", "801", "nonexistent-block", "active")
	require.NoError(t, err)
	require.Zero(t, env.purchases.inserts)
}

func TestBillingReconciler_ApplyPurchaseStatus_DeclinedChargeWritesNothing(t *testing.T) {
	env := newReconcilerEnv(t)

	err := env.rec.ApplyPurchaseStatus(context.Background(), "alpha.myshopify.com", "801", "scrolling-bar", "declined")
	require.NoError(t, err)
	require.Zero(t, env.purchases.inserts)
	require.Empty(t, env.admin.setCalls)
}

func TestBillingReconciler_RedactShop(t *testing.T) {
	env := newReconcilerEnv(t)
	env.subs.subs["alpha.myshopify.com"] = &domain.Subscription{Shop: "alpha.myshopify.com", Status: domain.SubscriptionActive}
	env.purchases.purchases = append(env.purchases.purchases, &domain.Purchase{
		Shop: "alpha.myshopify.com", BlockID: "scrolling-bar", Status: domain.PurchaseCompleted, ChargeID: "901",
	})

	err := env.rec.RedactShop(context.Background(), "alpha.myshopify.com")
	require.NoError(t, err)
	require.Empty(t, env.subs.subs)
	require.Empty(t, env.purchases.purchases)
	require.Empty(t, env.sessions.sessions)
}
