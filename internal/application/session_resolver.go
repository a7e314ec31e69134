package application

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/adedayo14/shopifycart-sub000/internal/domain"
	"github.com/adedayo14/shopifycart-sub000/internal/errs"
	"github.com/adedayo14/shopifycart-sub000/internal/ports"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

// RequestAuth carries the session-relevant parts of an inbound request. The
// HTTP layer extracts them; the resolver decides what they mean.
type RequestAuth struct {
	// Candidate session tokens, in priority order.
	BearerToken string // Authorization: Bearer
	IDToken     string // X-Shopify-ID-Token header
	BodyToken   string // JSON body field

	// Candidate shop domains, in priority order.
	HeaderShop string
	BodyShop   string
	QueryShop  string
}

// sessionTokenClaims are the claims of a Shopify embedded session token.
// dest carries the shop origin ("https://{shop}.myshopify.com").
type sessionTokenClaims struct {
	Dest string `json:"dest"`
	jwt.RegisteredClaims
}

// SessionResolver determines shop identity and a usable access token for an
// inbound request, disambiguating embedded (JWT session token) and direct
// (stored OAuth token) contexts.
type SessionResolver struct {
	sessions  ports.SessionRepository
	crypto    ports.EncryptionService
	appSecret []byte
	clientID  string
	appURL    string
	logger    zerolog.Logger
}

// NewSessionResolver creates a new session resolver. appSecret is the app's
// shared secret used to sign session tokens; clientID is the app's API key,
// validated against the token audience.
func NewSessionResolver(
	sessions ports.SessionRepository,
	crypto ports.EncryptionService,
	appSecret []byte,
	clientID string,
	appURL string,
	logger zerolog.Logger,
) *SessionResolver {
	return &SessionResolver{
		sessions:  sessions,
		crypto:    crypto,
		appSecret: appSecret,
		clientID:  clientID,
		appURL:    appURL,
		logger:    logger,
	}
}

// Resolve produces a tagged session result for the request. JWT verification
// failures other than expiry are returned as errors wrapping
// errs.ErrSessionInvalid and are never retried server-side.
func (r *SessionResolver) Resolve(ctx context.Context, req RequestAuth) (domain.ResolvedSession, error) {
	token := firstNonEmpty(req.BearerToken, req.IDToken, req.BodyToken)
	shop := firstNonEmpty(req.HeaderShop, req.BodyShop, req.QueryShop)
	embedded := token != ""

	if embedded {
		claims, err := r.verifySessionToken(token)
		if errors.Is(err, jwt.ErrTokenExpired) {
			// The token decoded fine, it is just stale. App Bridge can mint a
			// fresh one without an OAuth round-trip.
			if shop == "" && claims != nil {
				shop = shopFromClaims(claims)
			}
			if shop == "" {
				return domain.ResolvedSession{Outcome: domain.OutcomeMissingShop}, nil
			}
			return domain.ResolvedSession{
				Outcome:  domain.OutcomeNeedsFreshToken,
				Shop:     domain.NormalizeShopDomain(shop),
				Embedded: true,
			}, nil
		}
		if err != nil {
			return domain.ResolvedSession{}, err
		}
		if shop == "" {
			shop = shopFromClaims(claims)
		}
	}

	if shop == "" {
		return domain.ResolvedSession{Outcome: domain.OutcomeMissingShop}, nil
	}

	normalized := domain.NormalizeShopDomain(shop)

	session, err := r.sessions.LatestSession(ctx, normalized, domain.BareShopName(normalized))
	if err != nil {
		return domain.ResolvedSession{}, fmt.Errorf("failed to look up session for %s: %w", normalized, err)
	}

	if session == nil || session.AccessToken == "" {
		r.logger.Info().
			Str("shop", normalized).
			Bool("embedded", embedded).
			Msg("No stored access token, OAuth required")
		return domain.ResolvedSession{
			Outcome:  domain.OutcomeNeedsOAuth,
			Shop:     normalized,
			Embedded: embedded,
			AuthURL:  r.appURL + "/auth/shopify?shop=" + url.QueryEscape(normalized),
		}, nil
	}

	accessToken, err := r.crypto.Decrypt(session.AccessToken)
	if err != nil {
		return domain.ResolvedSession{}, fmt.Errorf("failed to decrypt access token for %s: %w", normalized, err)
	}

	return domain.ResolvedSession{
		Outcome:     domain.OutcomeAuthenticated,
		Shop:        normalized,
		AccessToken: accessToken,
		Scope:       session.Scope,
		Embedded:    embedded,
	}, nil
}

// verifySessionToken parses and validates an embedded session token. On
// expiry it returns the decoded claims together with jwt.ErrTokenExpired so
// the caller can still derive the shop from the dest claim.
func (r *SessionResolver) verifySessionToken(raw string) (*sessionTokenClaims, error) {
	claims := &sessionTokenClaims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (interface{}, error) { return r.appSecret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return claims, jwt.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", errs.ErrSessionInvalid, err)
	}

	if !audienceContains(claims.Audience, r.clientID) {
		return nil, fmt.Errorf("%w: audience mismatch", errs.ErrSessionInvalid)
	}

	return claims, nil
}

func shopFromClaims(claims *sessionTokenClaims) string {
	if claims.Dest != "" {
		return claims.Dest
	}
	return claims.Issuer
}

func audienceContains(aud jwt.ClaimStrings, clientID string) bool {
	for _, a := range aud {
		if a == clientID {
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
