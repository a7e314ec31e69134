package domain

import "time"

// Subscription plan types.
const (
	PlanMonthlyAccess = "monthly-access"
	PlanAnnualAccess  = "annual-access"
)

// Subscription status values.
const (
	SubscriptionActive    = "active"
	SubscriptionCancelled = "cancelled"
)

// Subscription represents a recurring billing plan grant for a shop. At most
// one row with status=active per shop is meaningful; if multiple exist the
// most recently updated one wins. Rows are never hard-deleted except on shop
// uninstall (GDPR redact).
type Subscription struct {
	ID                 string    `json:"id" bson:"_id"`
	Shop               string    `json:"shop" bson:"shop"`
	PlanType           string    `json:"plan_type" bson:"plan_type"`
	Status             string    `json:"status" bson:"status"`
	ChargeID           string    `json:"charge_id" bson:"charge_id"`
	CurrentPeriodStart time.Time `json:"current_period_start" bson:"current_period_start"`
	CurrentPeriodEnd   time.Time `json:"current_period_end" bson:"current_period_end"`
	CreatedAt          time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt          time.Time `json:"updated_at" bson:"updated_at"`
}

// PeriodLength returns the billing period for a plan type.
func PeriodLength(planType string) time.Duration {
	if planType == PlanAnnualAccess {
		return 365 * 24 * time.Hour
	}
	return 30 * 24 * time.Hour
}
