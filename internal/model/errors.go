package model

import "errors"

// Error taxonomy for the ledger core. Every rejected operation is reported
// with one of these sentinels (possibly wrapped with context), never as a
// bare boolean or an empty success value.
var (
	ErrInvalidParameters = errors.New("invalid parameters")
	ErrMarketNotFound    = errors.New("market not found")
	ErrBettingNotAllowed = errors.New("betting not allowed")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrAmountOverflow    = errors.New("amount overflow")
	ErrUnauthenticated   = errors.New("missing caller identity")
	ErrStorageFailure    = errors.New("storage failure")

	// ErrDuplicateDelivery is returned by the store when a cross-domain
	// delivery key has already been recorded. The router treats it as an
	// idempotent acknowledgment, not a failure.
	ErrDuplicateDelivery = errors.New("duplicate cross-domain delivery")
)
