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

// MongoSessionRepository implements SessionRepository using MongoDB.
type MongoSessionRepository struct {
	collection *mongo.Collection
}

// NewMongoSessionRepository creates a new MongoDB session repository.
func NewMongoSessionRepository(db *mongo.Database) ports.SessionRepository {
	return &MongoSessionRepository{
		collection: db.Collection("shop_sessions"),
	}
}

// SaveSession saves or updates a session keyed by shop domain.
func (r *MongoSessionRepository) SaveSession(ctx context.Context, session *domain.ShopSession) error {
	doc := entity.MongoSessionDocFromDomain(session)
	doc.UpdatedAt = time.Now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}

	opts := options.Update().SetUpsert(true)
	filter := bson.M{"shop": session.Shop}
	update := bson.M{"$set": doc}

	_, err := r.collection.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// LatestSession retrieves the most recently updated session matching any of
// the given shop keys. Historical rows were written with both the
// fully-qualified domain and the bare shop name, so callers pass both.
func (r *MongoSessionRepository) LatestSession(ctx context.Context, shopKeys ...string) (*domain.ShopSession, error) {
	var doc entity.MongoSessionDoc
	filter := bson.M{"shop": bson.M{"$in": shopKeys}}
	opts := options.FindOne().SetSort(bson.D{{Key: "updatedAt", Value: -1}})

	err := r.collection.FindOne(ctx, filter, opts).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return doc.ToDomain(), nil
}

// SessionByOAuthState retrieves a pending session by its OAuth state nonce.
func (r *MongoSessionRepository) SessionByOAuthState(ctx context.Context, state string) (*domain.ShopSession, error) {
	var doc entity.MongoSessionDoc
	filter := bson.M{"oauthState": state}

	err := r.collection.FindOne(ctx, filter).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session by state: %w", err)
	}
	return doc.ToDomain(), nil
}

// DeleteSessionsForShop removes all session rows for a shop.
func (r *MongoSessionRepository) DeleteSessionsForShop(ctx context.Context, shop string) error {
	filter := bson.M{"shop": bson.M{"$in": []string{
		domain.NormalizeShopDomain(shop),
		domain.BareShopName(shop),
	}}}

	_, err := r.collection.DeleteMany(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to delete sessions: %w", err)
	}
	return nil
}
