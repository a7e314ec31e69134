package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/adedayo14/shopifycart-sub000/internal/domain"
	"github.com/adedayo14/shopifycart-sub000/internal/ports"
)

type fakeSessionRepo struct {
	sessions map[string]*domain.ShopSession
	err      error
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]*domain.ShopSession)}
}

func (f *fakeSessionRepo) SaveSession(_ context.Context, session *domain.ShopSession) error {
	if f.err != nil {
		return f.err
	}
	session.UpdatedAt = time.Now()
	f.sessions[session.Shop] = session
	return nil
}

func (f *fakeSessionRepo) LatestSession(_ context.Context, shopKeys ...string) (*domain.ShopSession, error) {
	if f.err != nil {
		return nil, f.err
	}
	var latest *domain.ShopSession
	for _, key := range shopKeys {
		if s, ok := f.sessions[key]; ok {
			if latest == nil || s.UpdatedAt.After(latest.UpdatedAt) {
				latest = s
			}
		}
	}
	return latest, nil
}

func (f *fakeSessionRepo) SessionByOAuthState(_ context.Context, state string) (*domain.ShopSession, error) {
	for _, s := range f.sessions {
		if s.OAuthState == state {
			return s, nil
		}
	}
	return nil, nil
}

func (f *fakeSessionRepo) DeleteSessionsForShop(_ context.Context, shop string) error {
	delete(f.sessions, domain.NormalizeShopDomain(shop))
	delete(f.sessions, domain.BareShopName(shop))
	return nil
}

type fakeSubscriptionRepo struct {
	subs    map[string]*domain.Subscription
	upserts int
	err     error
}

func newFakeSubscriptionRepo() *fakeSubscriptionRepo {
	return &fakeSubscriptionRepo{subs: make(map[string]*domain.Subscription)}
}

func (f *fakeSubscriptionRepo) Upsert(_ context.Context, sub *domain.Subscription) error {
	if f.err != nil {
		return f.err
	}
	f.upserts++
	sub.UpdatedAt = time.Now()
	f.subs[sub.Shop] = sub
	return nil
}

func (f *fakeSubscriptionRepo) ActiveForShop(_ context.Context, shop string) (*domain.Subscription, error) {
	if f.err != nil {
		return nil, f.err
	}
	if sub, ok := f.subs[shop]; ok && sub.Status == domain.SubscriptionActive {
		return sub, nil
	}
	return nil, nil
}

func (f *fakeSubscriptionRepo) LatestForShop(_ context.Context, shop string) (*domain.Subscription, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.subs[shop], nil
}

func (f *fakeSubscriptionRepo) DeleteForShop(_ context.Context, shop string) error {
	delete(f.subs, shop)
	return nil
}

type fakePurchaseRepo struct {
	purchases []*domain.Purchase
	inserts   int
	err       error
}

func (f *fakePurchaseRepo) Insert(_ context.Context, purchase *domain.Purchase) error {
	if f.err != nil {
		return f.err
	}
	for _, p := range f.purchases {
		if p.ChargeID == purchase.ChargeID {
			return errors.New("duplicate key: chargeId")
		}
	}
	f.inserts++
	f.purchases = append(f.purchases, purchase)
	return nil
}

func (f *fakePurchaseRepo) ByChargeID(_ context.Context, chargeID string) (*domain.Purchase, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, p := range f.purchases {
		if p.ChargeID == chargeID {
			return p, nil
		}
	}
	return nil, nil
}

func (f *fakePurchaseRepo) CompletedForShop(_ context.Context, shop string) ([]*domain.Purchase, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*domain.Purchase
	for _, p := range f.purchases {
		if p.Shop == shop && p.Status == domain.PurchaseCompleted {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePurchaseRepo) UpdateStatusByChargeID(_ context.Context, chargeID string, status string) error {
	for _, p := range f.purchases {
		if p.ChargeID == chargeID {
			p.Status = status
			return nil
		}
	}
	return errors.New("purchase not found")
}

func (f *fakePurchaseRepo) DeleteForShop(_ context.Context, shop string) error {
	kept := f.purchases[:0]
	for _, p := range f.purchases {
		if p.Shop != shop {
			kept = append(kept, p)
		}
	}
	f.purchases = kept
	return nil
}

type fakeSyncCache struct {
	states map[string]*ports.SyncState
	getErr error
	setErr error
}

func newFakeSyncCache() *fakeSyncCache {
	return &fakeSyncCache{states: make(map[string]*ports.SyncState)}
}

func (f *fakeSyncCache) Get(_ context.Context, shop string) (*ports.SyncState, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.states[shop], nil
}

func (f *fakeSyncCache) Set(_ context.Context, shop string, state *ports.SyncState, _ time.Duration) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.states[shop] = state
	return nil
}

// fakeAdminClient records every metafieldsSet batch it receives.
type fakeAdminClient struct {
	installationID  string
	installationErr error

	setCalls  [][]ports.MetafieldInput
	setResult *ports.MetafieldsSetResult
	setErr    error

	recurringCharge *ports.ChargeStatus
	recurringErr    error
	oneTimeCharge   *ports.ChargeStatus
	oneTimeErr      error
}

func newFakeAdminClient() *fakeAdminClient {
	return &fakeAdminClient{installationID: "gid://shopify/AppInstallation/1"}
}

func (f *fakeAdminClient) GenerateAuthURL(shop string, _ []string, _ string, state string) string {
	return "https://" + shop + "/admin/oauth/authorize?state=" + state
}

func (f *fakeAdminClient) ExchangeToken(context.Context, string, string) (string, error) {
	return "shpat_fake", nil
}

func (f *fakeAdminClient) CurrentAppInstallationID(context.Context, string, string) (string, error) {
	if f.installationErr != nil {
		return "", f.installationErr
	}
	return f.installationID, nil
}

func (f *fakeAdminClient) SetMetafields(_ context.Context, _ string, _ string, inputs []ports.MetafieldInput) (*ports.MetafieldsSetResult, error) {
	if f.setErr != nil {
		return nil, f.setErr
	}
	f.setCalls = append(f.setCalls, inputs)
	if f.setResult != nil {
		return f.setResult, nil
	}
	return &ports.MetafieldsSetResult{Written: len(inputs)}, nil
}

func (f *fakeAdminClient) GetRecurringCharge(context.Context, string, string, string) (*ports.ChargeStatus, error) {
	if f.recurringErr != nil {
		return nil, f.recurringErr
	}
	return f.recurringCharge, nil
}

func (f *fakeAdminClient) GetOneTimeCharge(context.Context, string, string, string) (*ports.ChargeStatus, error) {
	if f.oneTimeErr != nil {
		return nil, f.oneTimeErr
	}
	return f.oneTimeCharge, nil
}

// plaintextCrypto prefixes instead of encrypting, so tests can assert that
// stored tokens actually pass through Decrypt.
type plaintextCrypto struct{}

func (plaintextCrypto) Encrypt(plaintext string) (string, error) {
	return "enc:" + plaintext, nil
}

func (plaintextCrypto) Decrypt(ciphertext string) (string, error) {
	if !strings.HasPrefix(ciphertext, "enc:") {
		return "", errors.New("not encrypted")
	}
	return strings.TrimPrefix(ciphertext, "enc:"), nil
}

type fakePublisher struct {
	events []*domain.EntitlementEvent
}

func (f *fakePublisher) Publish(event *domain.EntitlementEvent) {
	f.events = append(f.events, event)
}
