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

// MongoSubscriptionRepository implements SubscriptionRepository using MongoDB.
type MongoSubscriptionRepository struct {
	collection *mongo.Collection
}

// NewMongoSubscriptionRepository creates a new MongoDB subscription repository.
func NewMongoSubscriptionRepository(db *mongo.Database) ports.SubscriptionRepository {
	return &MongoSubscriptionRepository{
		collection: db.Collection("subscriptions"),
	}
}

// Upsert creates or replaces the subscription row for a shop. One row per
// shop keeps the at-most-one-active invariant trivially true.
func (r *MongoSubscriptionRepository) Upsert(ctx context.Context, sub *domain.Subscription) error {
	doc := entity.MongoSubscriptionDocFromDomain(sub)
	doc.UpdatedAt = time.Now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}

	opts := options.Update().SetUpsert(true)
	filter := bson.M{"shop": sub.Shop}
	update := bson.M{"$set": doc}

	_, err := r.collection.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return fmt.Errorf("failed to save subscription: %w", err)
	}
	return nil
}

// ActiveForShop retrieves the most recently updated active subscription.
func (r *MongoSubscriptionRepository) ActiveForShop(ctx context.Context, shop string) (*domain.Subscription, error) {
	var doc entity.MongoSubscriptionDoc
	filter := bson.M{"shop": shop, "status": domain.SubscriptionActive}
	opts := options.FindOne().SetSort(bson.D{{Key: "updatedAt", Value: -1}})

	err := r.collection.FindOne(ctx, filter, opts).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return doc.ToDomain(), nil
}

// LatestForShop retrieves the most recently updated subscription row
// regardless of status.
func (r *MongoSubscriptionRepository) LatestForShop(ctx context.Context, shop string) (*domain.Subscription, error) {
	var doc entity.MongoSubscriptionDoc
	filter := bson.M{"shop": shop}
	opts := options.FindOne().SetSort(bson.D{{Key: "updatedAt", Value: -1}})

	err := r.collection.FindOne(ctx, filter, opts).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return doc.ToDomain(), nil
}

// DeleteForShop removes all subscription rows for a shop.
func (r *MongoSubscriptionRepository) DeleteForShop(ctx context.Context, shop string) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{"shop": shop})
	if err != nil {
		return fmt.Errorf("failed to delete subscriptions: %w", err)
	}
	return nil
}
