package domain

// SessionOutcome discriminates the possible results of resolving an inbound
// request's session. Callers switch on it exhaustively instead of probing
// optional fields.
type SessionOutcome int

const (
	// OutcomeMissingShop means the shop identity could not be determined at all.
	OutcomeMissingShop SessionOutcome = iota

	// OutcomeAuthenticated means a usable access token was found.
	OutcomeAuthenticated

	// OutcomeNeedsOAuth means no stored token exists; the caller should
	// redirect the merchant through OAuth with billing scopes.
	OutcomeNeedsOAuth

	// OutcomeNeedsFreshToken means an embedded session token was present but
	// expired; the caller must re-fetch one from App Bridge and retry. No
	// OAuth round-trip is needed.
	OutcomeNeedsFreshToken
)

func (o SessionOutcome) String() string {
	switch o {
	case OutcomeAuthenticated:
		return "authenticated"
	case OutcomeNeedsOAuth:
		return "needs_oauth"
	case OutcomeNeedsFreshToken:
		return "needs_fresh_token"
	default:
		return "missing_shop"
	}
}

// ResolvedSession is the tagged result of session resolution. Shop is set
// for every outcome except OutcomeMissingShop. AccessToken and Scope are
// only set for OutcomeAuthenticated. Embedded reports whether the request
// carried a session token (embedded admin context).
type ResolvedSession struct {
	Outcome     SessionOutcome
	Shop        string
	AccessToken string
	Scope       string
	Embedded    bool

	// AuthURL is a ready-to-use OAuth authorization URL, populated for
	// OutcomeNeedsOAuth so the HTTP layer can redirect without rebuilding it.
	AuthURL string
}
