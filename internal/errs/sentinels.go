// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrSessionInvalid indicates a malformed session token or an audience
	// mismatch. Not retryable server-side; the caller must re-authenticate.
	ErrSessionInvalid = errors.New("session invalid")

	// ErrOAuthRequired indicates no usable access token is stored for the shop.
	ErrOAuthRequired = errors.New("oauth required")

	// ErrChargeVerificationFailed indicates Shopify did not confirm the charge.
	ErrChargeVerificationFailed = errors.New("charge verification failed")

	// ErrUnknownBlock indicates a block ID that is not part of the catalog.
	ErrUnknownBlock = errors.New("unknown block")
)
