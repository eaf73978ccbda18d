/*
errors.go - Centralized error types for the rules engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. Input validation - malformed pay type, negative duration/count
  2. Concurrency conflicts - CAS precondition mismatch, duplicate create
  3. External failures - transfer collaborator reported failure
  4. Configuration - no active tier/cancellation config

USAGE:
  Callers branch with errors.Is():

    if errors.Is(err, engine.ErrConcurrentModification) {
        // another worker already applied this transition
    }

SEE ALSO:
  - payout/ledger.go: Wraps these with transition context
  - store/sqlite/: Translates constraint violations to these sentinels
*/
package engine

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidInput is returned for malformed input: negative durations,
	// zero worker counts, unparseable rates. Never silently coerced.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDuplicateAssignment is returned when a payout already exists for an
	// assignment. Expected under racing completion reports; the loser treats
	// the payout as already created.
	ErrDuplicateAssignment = errors.New("payout already exists for assignment")

	// ErrInvalidTransition is returned when a status transition is not in the
	// legal transition table (e.g. completed -> processing).
	ErrInvalidTransition = errors.New("invalid payout transition")

	// ErrConcurrentModification is returned when a CAS update finds the row
	// no longer in the expected state. The caller must not reapply financial
	// effects; a concurrent actor already moved the payout.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrPayoutNotFound is returned when a referenced payout doesn't exist.
	ErrPayoutNotFound = errors.New("payout not found")

	// ErrNoActiveConfig is returned when no tier threshold config version is
	// active. Callers fall back to zero-perk defaults rather than blocking.
	ErrNoActiveConfig = errors.New("no active tier configuration")

	// ErrTransferFailed is returned when the payment-transfer collaborator
	// reports a failure. Recorded as the payout's failure reason; retries are
	// an external scheduler's concern.
	ErrTransferFailed = errors.New("external transfer failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// TransitionError describes a rejected payout status transition.
type TransitionError struct {
	PayoutID string
	From     string
	To       string
	Reason   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot transition payout %s from %s to %s: %s",
		e.PayoutID, e.From, e.To, e.Reason)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// ValidationError describes rejected input with the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the operation might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrDuplicateAssignment)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPayoutNotFound)
}
