/*
errors.go - Shared error types

PURPOSE:
  Errors that are not specific to payment semantics: malformed periods,
  missing records and optimistic-locking conflicts raised by stores.
  The payment package wraps these with domain context.

USAGE:
  if generic.IsRetryable(err) {
      // reload the chain and try again
  }

SEE ALSO:
  - payment/errors.go: Invariant violations and strategy preconditions
  - payment/store.go: Stores return ErrConcurrentModification
*/
package generic

import "errors"

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrConcurrentModification is returned when optimistic locking detects a
	// conflict: the chain grew between reading it and appending to it.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrEntityNotFound is returned when a referenced record doesn't exist.
	ErrEntityNotFound = errors.New("entity not found")

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")
)

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEntityNotFound)
}
