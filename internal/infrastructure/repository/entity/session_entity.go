package entity

import (
	"time"

	"github.com/adedayo14/shopifycart-sub000/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MongoSessionDoc represents a shop session in MongoDB.
type MongoSessionDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Shop        string             `bson:"shop"`
	AccessToken string             `bson:"accessToken"`
	Scope       string             `bson:"scope"`
	State       string             `bson:"state"`
	OAuthState  string             `bson:"oauthState"`
	CreatedAt   time.Time          `bson:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt"`
}

// ToDomain converts the MongoDB document to a domain entity.
func (d *MongoSessionDoc) ToDomain() *domain.ShopSession {
	return &domain.ShopSession{
		ID:          d.ID.Hex(),
		Shop:        d.Shop,
		AccessToken: d.AccessToken,
		Scope:       d.Scope,
		State:       d.State,
		OAuthState:  d.OAuthState,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

// MongoSessionDocFromDomain converts a domain entity to a MongoDB document.
func MongoSessionDocFromDomain(session *domain.ShopSession) *MongoSessionDoc {
	doc := &MongoSessionDoc{
		Shop:        session.Shop,
		AccessToken: session.AccessToken,
		Scope:       session.Scope,
		State:       session.State,
		OAuthState:  session.OAuthState,
		CreatedAt:   session.CreatedAt,
		UpdatedAt:   session.UpdatedAt,
	}
	if session.ID != "" {
		if objID, err := primitive.ObjectIDFromHex(session.ID); err == nil {
			doc.ID = objID
		}
	}
	return doc
}
