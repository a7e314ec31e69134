package domain

// WebhookEvent represents a verified Shopify webhook delivery.
type WebhookEvent struct {
	Topic    string `json:"topic"`
	Shop     string `json:"shop"`
	Payload  []byte `json:"payload"`
	Verified bool   `json:"verified"`
}

// EntitlementEvent is published on the in-process feed whenever a shop's
// entitlement state changes (purchase, subscription transition, sync).
type EntitlementEvent struct {
	Shop       string   `json:"shop"`
	Kind       string   `json:"kind"`
	BlockIDs   []string `json:"block_ids,omitempty"`
	AccessType string   `json:"access_type,omitempty"`
}
