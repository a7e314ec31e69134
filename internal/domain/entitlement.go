package domain

import "sort"

// Access types reported alongside an entitlement.
const (
	AccessSubscription = "subscription"
	AccessPurchased    = "purchased"
	AccessFree         = "free"
)

// Entitlement is the computed set of block IDs a shop is authorized to use.
// It is derived, never persisted.
type Entitlement struct {
	Shop                  string        `json:"shop"`
	BlockIDs              []string      `json:"block_ids"`
	HasActiveSubscription bool          `json:"has_active_subscription"`
	Subscription          *Subscription `json:"subscription,omitempty"`
	AccessType            string        `json:"access_type"`
}

// Allows reports whether the entitlement covers the given block ID.
func (e *Entitlement) Allows(blockID string) bool {
	for _, id := range e.BlockIDs {
		if id == blockID {
			return true
		}
	}
	return false
}

// NewEntitlement builds an entitlement with a sorted, deduplicated block set.
func NewEntitlement(shop string, blockIDs []string, sub *Subscription) *Entitlement {
	seen := make(map[string]struct{}, len(blockIDs))
	ids := make([]string, 0, len(blockIDs))
	for _, id := range blockIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Strings(ids)

	e := &Entitlement{
		Shop:       shop,
		BlockIDs:   ids,
		AccessType: AccessFree,
	}
	if sub != nil && sub.Status == SubscriptionActive {
		e.HasActiveSubscription = true
		e.Subscription = sub
		e.AccessType = AccessSubscription
	}
	return e
}
