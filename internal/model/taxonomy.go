package model

import "errors"

// Taxonomy codes reported in rejection payloads, both to HTTP callers and
// in cross-domain receipts routed back to the origin domain.
const (
	CodeInvalidParameters = "INVALID_PARAMETERS"
	CodeMarketNotFound    = "MARKET_NOT_FOUND"
	CodeBettingNotAllowed = "BETTING_NOT_ALLOWED"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeAmountOverflow    = "AMOUNT_OVERFLOW"
	CodeUnauthenticated   = "UNAUTHENTICATED"
	CodeStorageFailure    = "STORAGE_FAILURE"
	CodeInternal          = "INTERNAL"
)

// CodeOf maps an error to its taxonomy code.
func CodeOf(err error) string {
	switch {
	case errors.Is(err, ErrInvalidParameters):
		return CodeInvalidParameters
	case errors.Is(err, ErrMarketNotFound):
		return CodeMarketNotFound
	case errors.Is(err, ErrBettingNotAllowed):
		return CodeBettingNotAllowed
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, ErrAmountOverflow):
		return CodeAmountOverflow
	case errors.Is(err, ErrUnauthenticated):
		return CodeUnauthenticated
	case errors.Is(err, ErrStorageFailure):
		return CodeStorageFailure
	default:
		return CodeInternal
	}
}
