package ports

import "context"

// MetafieldInput is one entry of a batched metafieldsSet mutation.
type MetafieldInput struct {
	OwnerID   string `json:"ownerId"`
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Value     string `json:"value"`
	Type      string `json:"type"`
}

// MetafieldsSetResult reports the outcome of a batched metafieldsSet call.
// Failed maps metafield keys to the user error Shopify returned for them.
type MetafieldsSetResult struct {
	Written int
	Failed  map[string]string
}

// ChargeStatus is the server-side view of a Shopify application charge.
type ChargeStatus struct {
	ID     string
	Name   string
	Status string
	Test   bool
}

// AdminClient defines the Shopify Admin API operations this core consumes.
type AdminClient interface {
	// GenerateAuthURL builds the OAuth authorization URL for a shop.
	GenerateAuthURL(shop string, scopes []string, redirectURI string, state string) string

	// ExchangeToken exchanges an OAuth authorization code for an access token.
	ExchangeToken(ctx context.Context, shop string, code string) (string, error)

	// CurrentAppInstallationID resolves the GraphQL node ID the metafields
	// are attached to.
	CurrentAppInstallationID(ctx context.Context, shop string, accessToken string) (string, error)

	// SetMetafields submits all metafields in a single batched metafieldsSet
	// mutation. Per-field user errors are reported in the result, not as an
	// error; the error return is reserved for mutation-level failures.
	SetMetafields(ctx context.Context, shop string, accessToken string, inputs []MetafieldInput) (*MetafieldsSetResult, error)

	// GetRecurringCharge verifies a recurring application charge.
	GetRecurringCharge(ctx context.Context, shop string, accessToken string, chargeID string) (*ChargeStatus, error)

	// GetOneTimeCharge verifies a one-time application charge.
	GetOneTimeCharge(ctx context.Context, shop string, accessToken string, chargeID string) (*ChargeStatus, error)
}
