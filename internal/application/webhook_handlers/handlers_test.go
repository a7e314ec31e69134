package webhook_handlers

import (
	"context"
	"testing"
	"time"

	"github.com/adedayo14/shopifycart-sub000/internal/application"
	"github.com/adedayo14/shopifycart-sub000/internal/domain"
	"github.com/adedayo14/shopifycart-sub000/internal/ports"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type memSubRepo struct {
	subs map[string]*domain.Subscription
}

func (m *memSubRepo) Upsert(_ context.Context, sub *domain.Subscription) error {
	m.subs[sub.Shop] = sub
	return nil
}

func (m *memSubRepo) ActiveForShop(_ context.Context, shop string) (*domain.Subscription, error) {
	if s, ok := m.subs[shop]; ok && s.Status == domain.SubscriptionActive {
		return s, nil
	}
	return nil, nil
}

func (m *memSubRepo) LatestForShop(_ context.Context, shop string) (*domain.Subscription, error) {
	return m.subs[shop], nil
}

func (m *memSubRepo) DeleteForShop(_ context.Context, shop string) error {
	delete(m.subs, shop)
	return nil
}

type memPurchaseRepo struct{ purchases []*domain.Purchase }

func (m *memPurchaseRepo) Insert(_ context.Context, p *domain.Purchase) error {
	m.purchases = append(m.purchases, p)
	return nil
}

func (m *memPurchaseRepo) ByChargeID(_ context.Context, chargeID string) (*domain.Purchase, error) {
	for _, p := range m.purchases {
		if p.ChargeID == chargeID {
			return p, nil
		}
	}
	return nil, nil
}

func (m *memPurchaseRepo) CompletedForShop(_ context.Context, shop string) ([]*domain.Purchase, error) {
	var out []*domain.Purchase
	for _, p := range m.purchases {
		if p.Shop == shop && p.Status == domain.PurchaseCompleted {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memPurchaseRepo) UpdateStatusByChargeID(_ context.Context, chargeID string, status string) error {
	for _, p := range m.purchases {
		if p.ChargeID == chargeID {
			p.Status = status
		}
	}
	return nil
}

func (m *memPurchaseRepo) DeleteForShop(_ context.Context, shop string) error {
	kept := m.purchases[:0]
	for _, p := range m.purchases {
		if p.Shop != shop {
			kept = append(kept, p)
		}
	}
	m.purchases = kept
	return nil
}

type memSessionRepo struct {
	sessions map[string]*domain.ShopSession
}

func (m *memSessionRepo) SaveSession(_ context.Context, s *domain.ShopSession) error {
	m.sessions[s.Shop] = s
	return nil
}

func (m *memSessionRepo) LatestSession(_ context.Context, shopKeys ...string) (*domain.ShopSession, error) {
	for _, key := range shopKeys {
		if s, ok := m.sessions[key]; ok {
			return s, nil
		}
	}
	return nil, nil
}

func (m *memSessionRepo) SessionByOAuthState(context.Context, string) (*domain.ShopSession, error) {
	return nil, nil
}

func (m *memSessionRepo) DeleteSessionsForShop(_ context.Context, shop string) error {
	delete(m.sessions, domain.NormalizeShopDomain(shop))
	return nil
}

type noopCrypto struct{}

func (noopCrypto) Encrypt(s string) (string, error) { return s, nil }
func (noopCrypto) Decrypt(s string) (string, error) { return s, nil }

type noopAdmin struct{}

func (noopAdmin) GenerateAuthURL(string, []string, string, string) string { return "" }
func (noopAdmin) ExchangeToken(context.Context, string, string) (string, error) {
	return "", nil
}
func (noopAdmin) CurrentAppInstallationID(context.Context, string, string) (string, error) {
	return "gid://shopify/AppInstallation/1", nil
}
func (noopAdmin) SetMetafields(_ context.Context, _ string, _ string, inputs []ports.MetafieldInput) (*ports.MetafieldsSetResult, error) {
	return &ports.MetafieldsSetResult{Written: len(inputs)}, nil
}
func (noopAdmin) GetRecurringCharge(context.Context, string, string, string) (*ports.ChargeStatus, error) {
	return &ports.ChargeStatus{Status: "active"}, nil
}
func (noopAdmin) GetOneTimeCharge(context.Context, string, string, string) (*ports.ChargeStatus, error) {
	return &ports.ChargeStatus{Status: "active"}, nil
}

type noopCache struct{}

func (noopCache) Get(context.Context, string) (*ports.SyncState, error) { return nil, nil }
func (noopCache) Set(context.Context, string, *ports.SyncState, time.Duration) error {
	return nil
}

type handlerEnv struct {
	subs      *memSubRepo
	purchases *memPurchaseRepo
	sessions  *memSessionRepo
	rec       *application.BillingReconciler
}

func newHandlerEnv(t *testing.T) *handlerEnv {
	t.Helper()
	env := &handlerEnv{
		subs:      &memSubRepo{subs: make(map[string]*domain.Subscription)},
		purchases: &memPurchaseRepo{},
		sessions:  &memSessionRepo{sessions: make(map[string]*domain.ShopSession)},
	}
	env.sessions.sessions["alpha.myshopify.com"] = &domain.ShopSession{
		Shop:        "alpha.myshopify.com",
		AccessToken: "shpat_alpha",
	}
	catalog := domain.DefaultCatalog()
	logger := zerolog.Nop()
	entitlements := application.NewEntitlementService(env.subs, env.purchases, catalog, logger)
	synchronizer := application.NewMetafieldSynchronizer(noopAdmin{}, noopCache{}, catalog, time.Hour, logger)
	env.rec = application.NewBillingReconciler(env.subs, env.purchases, env.sessions, noopCrypto{}, noopAdmin{}, catalog, entitlements, synchronizer, nil, logger)
	return env
}

func TestSubscriptionHandler_Handle_Activates(t *testing.T) {
	env := newHandlerEnv(t)
	h := NewSubscriptionHandler(zerolog.Nop(), env.rec)

	require.True(t, h.CanHandle("app_subscriptions/update"))
	require.False(t, h.CanHandle("app_purchases_one_time/update"))

	event := &domain.WebhookEvent{
		Topic: "app_subscriptions/update",
		Shop:  "alpha.myshopify.com",
		Payload: []byte(`{"app_subscription": {
			"admin_graphql_api_id": "gid://shopify/AppSubscription/12345",
			"name": "annual-access",
			"status": "ACTIVE"
		}}`),
		Verified: true,
	}
	require.NoError(t, h.Handle(context.Background(), event))

	sub := env.subs.subs["alpha.myshopify.com"]
	require.NotNil(t, sub)
	require.Equal(t, domain.SubscriptionActive, sub.Status)
	require.Equal(t, domain.PlanAnnualAccess, sub.PlanType)
	require.Equal(t, "12345", sub.ChargeID)
}

func TestSubscriptionHandler_Handle_Cancels(t *testing.T) {
	env := newHandlerEnv(t)
	env.subs.subs["alpha.myshopify.com"] = &domain.Subscription{
		Shop:   "alpha.myshopify.com",
		Status: domain.SubscriptionActive,
	}
	h := NewSubscriptionHandler(zerolog.Nop(), env.rec)

	event := &domain.WebhookEvent{
		Topic: "app_subscriptions/update",
		Shop:  "alpha.myshopify.com",
		Payload: []byte(`{"app_subscription": {
			"admin_graphql_api_id": "gid://shopify/AppSubscription/12345",
			"name": "monthly-access",
			"status": "CANCELLED"
		}}`),
	}
	require.NoError(t, h.Handle(context.Background(), event))
	require.Equal(t, domain.SubscriptionCancelled, env.subs.subs["alpha.myshopify.com"].Status)
}

func TestSubscriptionHandler_Handle_BadPayload(t *testing.T) {
	env := newHandlerEnv(t)
	h := NewSubscriptionHandler(zerolog.Nop(), env.rec)

	event := &domain.WebhookEvent{Topic: "app_subscriptions/update", Payload: []byte("not json")}
	require.Error(t, h.Handle(context.Background(), event))
}

func TestPurchaseHandler_Handle_RecordsPurchase(t *testing.T) {
	env := newHandlerEnv(t)
	h := NewPurchaseHandler(zerolog.Nop(), env.rec)

	require.True(t, h.CanHandle("app_purchases_one_time/update"))

	event := &domain.WebhookEvent{
		Topic: "app_purchases_one_time/update",
		Shop:  "alpha.myshopify.com",
		Payload: []byte(`{"app_purchase_one_time": {
			"admin_graphql_api_id": "gid://shopify/AppPurchaseOneTime/67890",
			"name": "scrolling-bar",
			"status": "ACTIVE"
		}}`),
	}
	require.NoError(t, h.Handle(context.Background(), event))

	require.Len(t, env.purchases.purchases, 1)
	p := env.purchases.purchases[0]
	require.Equal(t, "scrolling-bar", p.BlockID)
	require.Equal(t, "67890", p.ChargeID)
	require.Equal(t, domain.PurchaseCompleted, p.Status)
}

func TestAppUninstalledHandler_Handle_RedactsShop(t *testing.T) {
	env := newHandlerEnv(t)
	env.subs.subs["alpha.myshopify.com"] = &domain.Subscription{Shop: "alpha.myshopify.com", Status: domain.SubscriptionActive}
	h := NewAppUninstalledHandler(zerolog.Nop(), env.rec)

	require.True(t, h.CanHandle("app/uninstalled"))
	require.True(t, h.CanHandle("shop/redact"))

	event := &domain.WebhookEvent{
		Topic:   "app/uninstalled",
		Payload: []byte(`{"domain": "alpha.myshopify.com"}`),
	}
	require.NoError(t, h.Handle(context.Background(), event))
	require.Empty(t, env.subs.subs)
	require.Empty(t, env.sessions.sessions)
}

func TestAppUninstalledHandler_Handle_NoShop(t *testing.T) {
	env := newHandlerEnv(t)
	h := NewAppUninstalledHandler(zerolog.Nop(), env.rec)

	event := &domain.WebhookEvent{Topic: "app/uninstalled", Payload: []byte(`{}`)}
	require.Error(t, h.Handle(context.Background(), event))
}

func TestGidNumericID(t *testing.T) {
	require.Equal(t, "123", gidNumericID("gid://shopify/AppSubscription/123"))
	require.Equal(t, "123", gidNumericID("123"))
}
