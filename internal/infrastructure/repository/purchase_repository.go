package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/adedayo14/shopifycart-sub000/internal/domain"
	"github.com/adedayo14/shopifycart-sub000/internal/infrastructure/repository/entity"
	"github.com/adedayo14/shopifycart-sub000/internal/ports"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoPurchaseRepository implements PurchaseRepository using MongoDB.
type MongoPurchaseRepository struct {
	collection *mongo.Collection
}

// NewMongoPurchaseRepository creates a new MongoDB purchase repository.
func NewMongoPurchaseRepository(db *mongo.Database) ports.PurchaseRepository {
	return &MongoPurchaseRepository{
		collection: db.Collection("purchases"),
	}
}

// Insert stores a new purchase row. A unique index on chargeId backs the
// at-least-once-delivery dedup done at the service layer.
func (r *MongoPurchaseRepository) Insert(ctx context.Context, purchase *domain.Purchase) error {
	doc := entity.MongoPurchaseDocFromDomain(purchase)
	doc.UpdatedAt = time.Now()
	if doc.PurchasedAt.IsZero() {
		doc.PurchasedAt = time.Now()
	}

	indexModel := mongo.IndexModel{
		Keys:    bson.D{{Key: "chargeId", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	_, _ = r.collection.Indexes().CreateOne(ctx, indexModel)

	_, err := r.collection.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("failed to save purchase: %w", err)
	}
	return nil
}

// ByChargeID retrieves a purchase by its charge identifier.
func (r *MongoPurchaseRepository) ByChargeID(ctx context.Context, chargeID string) (*domain.Purchase, error) {
	var doc entity.MongoPurchaseDoc
	filter := bson.M{"chargeId": chargeID}

	err := r.collection.FindOne(ctx, filter).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get purchase: %w", err)
	}
	return doc.ToDomain(), nil
}

// CompletedForShop retrieves all completed purchases for a shop, most
// recent first.
func (r *MongoPurchaseRepository) CompletedForShop(ctx context.Context, shop string) ([]*domain.Purchase, error) {
	filter := bson.M{"shop": shop, "status": domain.PurchaseCompleted}
	opts := options.Find().SetSort(bson.D{{Key: "purchasedAt", Value: -1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list purchases: %w", err)
	}
	defer cursor.Close(ctx)

	var purchases []*domain.Purchase
	for cursor.Next(ctx) {
		var doc entity.MongoPurchaseDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode purchase: %w", err)
		}
		purchases = append(purchases, doc.ToDomain())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return purchases, nil
}

// UpdateStatusByChargeID flips the status of the purchase with the given
// charge identifier.
func (r *MongoPurchaseRepository) UpdateStatusByChargeID(ctx context.Context, chargeID string, status string) error {
	filter := bson.M{"chargeId": chargeID}
	update := bson.M{"$set": bson.M{"status": status, "updatedAt": time.Now()}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update purchase: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("purchase not found for charge %s", chargeID)
	}
	return nil
}

// DeleteForShop removes all purchase rows for a shop.
func (r *MongoPurchaseRepository) DeleteForShop(ctx context.Context, shop string) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{"shop": shop})
	if err != nil {
		return fmt.Errorf("failed to delete purchases: %w", err)
	}
	return nil
}
