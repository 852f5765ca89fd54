package auction

import "errors"

// Errors returned by engine operations. Validation errors leave all state
// unchanged. ErrSettlementFailed is the exception: it reports a partially
// applied multi-step transfer and is an operational alert, not a user
// error; the listing involved stays in the store for retry.
var (
	ErrNotFound          = errors.New("listing not found")
	ErrUnauthorized      = errors.New("not the listing's seller")
	ErrSelfBidForbidden  = errors.New("cannot bid on your own listing")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrBidTooLow         = errors.New("bid does not exceed current bid")
	ErrHasActiveBid      = errors.New("listing has an active bid and cannot be cancelled")
	ErrQuotaExceeded     = errors.New("seller has reached the listing limit")
	ErrAlreadyExpired    = errors.New("listing has expired")
	ErrNoBuyoutAvailable = errors.New("listing has no buyout price")
	ErrSettlementFailed  = errors.New("settlement failed")
)
