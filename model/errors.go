package model

import "errors"

// Error kinds shared by stores, the workflow and the HTTP layer.
// Specific errors wrap one of these with %w so callers can branch on the kind.
var (
	// ErrValidation: malformed or out-of-range input. Never partially applied.
	ErrValidation = errors.New("validation error")

	// ErrInvalidOperation: the call breaks a workflow guard (own listing, wrong actor, wrong state).
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrConflict: a conditional update lost against a concurrent mutation. Re-fetch and decide.
	ErrConflict = errors.New("conflict")

	// ErrNotFound: the referenced listing, request or image does not exist.
	ErrNotFound = errors.New("not found")

	// ErrStoreUnavailable: the backing store failed to answer.
	ErrStoreUnavailable = errors.New("store unavailable")
)
