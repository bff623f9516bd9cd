// internal/services/errors.go
package services

import "errors"

// Error taxonomy shared by all lifecycle services. Handlers map these to HTTP
// statuses; services wrap them with context via fmt.Errorf("%w: ...").
var (
	// ErrNotFound covers both a missing record and a record outside the
	// caller's scope, so existence is never leaked.
	ErrNotFound = errors.New("resource not accessible")

	// ErrUnauthorized means the wrong actor or role attempted a transition.
	ErrUnauthorized = errors.New("actor not allowed to perform this operation")

	// ErrStateConflict means the operation was requested from an illegal
	// source state. Idempotent re-runs of already-applied transitions do NOT
	// return this; each operation documents which redundant calls it tolerates.
	ErrStateConflict = errors.New("operation not allowed in current state")

	// ErrValidation covers missing or malformed inputs rejected before any
	// write.
	ErrValidation = errors.New("validation failed")
)
