package entity

import (
	"time"

	"github.com/adedayo14/shopifycart-sub000/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MongoSubscriptionDoc represents a subscription in MongoDB.
type MongoSubscriptionDoc struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty"`
	Shop               string             `bson:"shop"`
	PlanType           string             `bson:"planType"`
	Status             string             `bson:"status"`
	ChargeID           string             `bson:"chargeId"`
	CurrentPeriodStart time.Time          `bson:"currentPeriodStart"`
	CurrentPeriodEnd   time.Time          `bson:"currentPeriodEnd"`
	CreatedAt          time.Time          `bson:"createdAt"`
	UpdatedAt          time.Time          `bson:"updatedAt"`
}

// ToDomain converts the MongoDB document to a domain entity.
func (d *MongoSubscriptionDoc) ToDomain() *domain.Subscription {
	return &domain.Subscription{
		ID:                 d.ID.Hex(),
		Shop:               d.Shop,
		PlanType:           d.PlanType,
		Status:             d.Status,
		ChargeID:           d.ChargeID,
		CurrentPeriodStart: d.CurrentPeriodStart,
		CurrentPeriodEnd:   d.CurrentPeriodEnd,
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
	}
}

// MongoSubscriptionDocFromDomain converts a domain entity to a MongoDB document.
func MongoSubscriptionDocFromDomain(sub *domain.Subscription) *MongoSubscriptionDoc {
	doc := &MongoSubscriptionDoc{
		Shop:               sub.Shop,
		PlanType:           sub.PlanType,
		Status:             sub.Status,
		ChargeID:           sub.ChargeID,
		CurrentPeriodStart: sub.CurrentPeriodStart,
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
		CreatedAt:          sub.CreatedAt,
		UpdatedAt:          sub.UpdatedAt,
	}
	if sub.ID != "" {
		if objID, err := primitive.ObjectIDFromHex(sub.ID); err == nil {
			doc.ID = objID
		}
	}
	return doc
}

// MongoPurchaseDoc represents a one-time block purchase in MongoDB.
type MongoPurchaseDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Shop        string             `bson:"shop"`
	BlockID     string             `bson:"blockId"`
	Type        string             `bson:"type"`
	Status      string             `bson:"status"`
	ChargeID    string             `bson:"chargeId"`
	PurchasedAt time.Time          `bson:"purchasedAt"`
	UpdatedAt   time.Time          `bson:"updatedAt"`
}

// ToDomain converts the MongoDB document to a domain entity.
func (d *MongoPurchaseDoc) ToDomain() *domain.Purchase {
	return &domain.Purchase{
		ID:          d.ID.Hex(),
		Shop:        d.Shop,
		BlockID:     d.BlockID,
		Type:        d.Type,
		Status:      d.Status,
		ChargeID:    d.ChargeID,
		PurchasedAt: d.PurchasedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

// MongoPurchaseDocFromDomain converts a domain entity to a MongoDB document.
func MongoPurchaseDocFromDomain(purchase *domain.Purchase) *MongoPurchaseDoc {
	doc := &MongoPurchaseDoc{
		Shop:        purchase.Shop,
		BlockID:     purchase.BlockID,
		Type:        purchase.Type,
		Status:      purchase.Status,
		ChargeID:    purchase.ChargeID,
		PurchasedAt: purchase.PurchasedAt,
		UpdatedAt:   purchase.UpdatedAt,
	}
	if purchase.ID != "" {
		if objID, err := primitive.ObjectIDFromHex(purchase.ID); err == nil {
			doc.ID = objID
		}
	}
	return doc
}
