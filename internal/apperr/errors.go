package apperr

import "errors"

// Sentinel errors for the core. Expected concurrency outcomes
// (ErrSlotUnavailable, ErrRefundExceedsCaptured) are normal negative
// results and must never be logged as system errors.
var (
	ErrValidation            = errors.New("invalid request")
	ErrUnauthorized          = errors.New("credential is missing or invalid")
	ErrScopeDenied           = errors.New("principal is not scoped to the target tenant")
	ErrNotFound              = errors.New("resource not found")
	ErrSlotUnavailable       = errors.New("slot has no remaining capacity")
	ErrConflict              = errors.New("invalid state transition")
	ErrRefundExceedsCaptured = errors.New("refund amount exceeds captured total")
	ErrDuplicateEvent        = errors.New("event already processed")
	ErrProcessor             = errors.New("payment processor unavailable")
)
