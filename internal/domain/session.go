package domain

import (
	"strings"
	"time"
)

// Session state values.
const (
	SessionAuthenticated = "authenticated"
	SessionPending       = "pending"
)

// ShopSession identifies a shop's current OAuth grant. The access token is
// stored encrypted and is empty until the OAuth flow completes. Multiple
// historical rows may exist per shop; consumers must select the most
// recently updated one.
type ShopSession struct {
	ID          string    `json:"id" bson:"_id"`
	Shop        string    `json:"shop" bson:"shop"`
	AccessToken string    `json:"-" bson:"access_token"`
	Scope       string    `json:"scope" bson:"scope"`
	State       string    `json:"state" bson:"state"`
	OAuthState  string    `json:"-" bson:"oauth_state"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" bson:"updated_at"`
}

// NormalizeShopDomain lower-cases and trims a shop identifier and ensures
// the ".myshopify.com" suffix. It accepts bare shop names, full domains,
// and https:// URLs as they appear in session token dest/iss claims.
func NormalizeShopDomain(shop string) string {
	s := strings.ToLower(strings.TrimSpace(shop))
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	if s == "" {
		return ""
	}
	if !strings.HasSuffix(s, ".myshopify.com") {
		s += ".myshopify.com"
	}
	return s
}

// BareShopName strips the ".myshopify.com" suffix. Historical session rows
// were written with both forms, so lookups try both keys.
func BareShopName(shop string) string {
	return strings.TrimSuffix(NormalizeShopDomain(shop), ".myshopify.com")
}
