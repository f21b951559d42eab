package order

import "errors"

var (
	// ErrNotFound means the order does not exist.
	ErrNotFound = errors.New("order not found")

	// ErrValidation covers unresolvable users/products and bad input.
	// Surfaced synchronously to the caller, never retried automatically.
	ErrValidation = errors.New("validation failed")

	// ErrUpstreamUnavailable means a collaborator call errored. The caller
	// is expected to retry with the same idempotency key.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrInvalidTransition means the order is not in a state the requested
	// transition accepts.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrDuplicateKey is returned by the repository when an insert loses the
	// race on the idempotency-key uniqueness constraint.
	ErrDuplicateKey = errors.New("duplicate idempotency key")
)
