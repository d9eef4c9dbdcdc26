package pool

import "errors"

var (
	// ErrNotFound is returned when a referenced user does not exist.
	ErrNotFound = errors.New("pool: not found")

	// ErrDuplicateTransaction is returned when a deposit reuses a
	// transaction reference that was already recorded.
	ErrDuplicateTransaction = errors.New("pool: duplicate transaction")

	// ErrInvalidInput is returned when a request fails validation. No state
	// is mutated when it is returned.
	ErrInvalidInput = errors.New("pool: invalid input")
)
