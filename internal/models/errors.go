package models

import "errors"

// Sentinel errors shared across the store, lifecycle manager, and API layer.
// Call sites wrap them with fmt.Errorf("...: %w", ...) and handlers classify
// with errors.Is.
var (
	// ErrValidation marks bad caller input (empty content, negative budget).
	ErrValidation = errors.New("invalid input")

	// ErrNotFound marks a referenced record that does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidState marks an operation that is not legal in the record's
	// current lifecycle state, including lost compare-and-set races and
	// repeated execute calls.
	ErrInvalidState = errors.New("operation not allowed in current state")

	// ErrBackendFailure marks a configured advisory backend call that failed
	// or timed out. A missing backend is not an error at all: the gateway
	// returns a sentinel advice value instead.
	ErrBackendFailure = errors.New("advisory backend call failed")
)
