package domain

import "errors"

var (
	// ErrNotFound marks lookups for entities that do not exist or are
	// owned by a different tenant. The two cases are deliberately
	// indistinguishable to callers.
	ErrNotFound = errors.New("not found")

	// ErrValidation marks caller input rejected at the service boundary.
	ErrValidation = errors.New("validation error")

	// ErrConflict marks state transitions rejected by the current state.
	ErrConflict = errors.New("conflict")
)
