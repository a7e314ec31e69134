package domain

import "time"

// Purchase types.
const (
	PurchaseIndividual   = "individual"
	PurchasePickAndMix   = "pick-and-mix"
	PurchaseSubscription = "subscription"
)

// Purchase status values.
const (
	PurchaseCompleted = "completed"
	PurchasePending   = "pending"
)

// Purchase is a one-time grant of a single block to a shop. The charge ID is
// the natural dedup key: processing the same confirmation twice must not
// create a second row. Entitlement counts completed rows only, deduplicated
// by block ID.
type Purchase struct {
	ID          string    `json:"id" bson:"_id"`
	Shop        string    `json:"shop" bson:"shop"`
	BlockID     string    `json:"block_id" bson:"block_id"`
	Type        string    `json:"type" bson:"type"`
	Status      string    `json:"status" bson:"status"`
	ChargeID    string    `json:"charge_id" bson:"charge_id"`
	PurchasedAt time.Time `json:"purchased_at" bson:"purchased_at"`
	UpdatedAt   time.Time `json:"updated_at" bson:"updated_at"`
}
