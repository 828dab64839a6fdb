/*
errors.go - Error types of the payment ledger

ERROR CATEGORIES:
  1. Invariant violations - The chain (or a proposed batch) breaks one of the
     structural invariants. These signal a defect in a generator or a
     corrupted chain. Never retried, never repaired.
  2. Preconditions - A strategy cannot produce a batch for the current chain
     (nothing to pause, date not on a month boundary, ...). These are meant
     to be shown to the caseworker.
  3. Lifecycle - Illegal batch status transitions.

USAGE:
  batch, err := svc.Apply(ctx, caseID, actor, payment.Pause{})
  switch {
  case errors.Is(err, payment.ErrAlreadyPaused):
      // tell the user
  case payment.IsInvariantViolation(err):
      // bug: fail the request
  }

SEE ALSO:
  - validate.go: Produces InvariantError
  - strategy.go: Produces PreconditionError
*/
package payment

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvariantViolation is wrapped by every InvariantError.
	ErrInvariantViolation = errors.New("chain invariant violated")

	// ErrEmptyBatch is returned when appending a batch without lines.
	ErrEmptyBatch = errors.New("batch has no lines")

	// ErrInvalidStatusTransition is returned for illegal batch status moves.
	ErrInvalidStatusTransition = errors.New("invalid batch status transition")
)

// Strategy preconditions. Each is a distinct, user-actionable outcome.
var (
	ErrEmptyChain          = errors.New("case has no payment lines")
	ErrEmptySchedule       = errors.New("benefit schedule is empty")
	ErrNotWholeMonths      = errors.New("schedule period must cover whole months")
	ErrNegativeAmount      = errors.New("schedule amount is negative")
	ErrOverlappingSchedule = errors.New("schedule periods overlap")
	ErrAlreadyPaused       = errors.New("payments are already paused")
	ErrNotPaused           = errors.New("payments are not paused")
	ErrTerminated          = errors.New("payments are terminated")
	ErrNothingToPause      = errors.New("no payments left to pause")
	ErrResumeOutsidePause  = errors.New("resume date is outside the paused period")
	ErrNotInFuture         = errors.New("date must be in the future")
	ErrNotMonthBoundary    = errors.New("date must be the first or last day of a month")
	ErrAfterLastLine       = errors.New("date is after the end of the last payment line")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// Invariant enumerates the structural rules of an accepted chain.
type Invariant int

const (
	InvariantWellFormed       Invariant = 0 // malformed line: bad period, negative amount, unknown kind
	InvariantFirstLine        Invariant = 1 // first line is a New without predecessor
	InvariantOrderTokens      Invariant = 2 // tokens unique, contiguous from 0
	InvariantLinkedList       Invariant = 3 // New points at the line right before it
	InvariantSharedPrevious   Invariant = 4 // all facts of an id share its predecessor
	InvariantUniquePrevious   Invariant = 5 // no two ids claim the same predecessor
	InvariantTerminal         Invariant = 6 // nothing follows a Terminate
	InvariantResumeAfterPause Invariant = 7 // Resume only targets a paused line
	InvariantPauseAfterActive Invariant = 8 // Pause only targets a New or resumed line
)

func (i Invariant) String() string {
	switch i {
	case InvariantWellFormed:
		return "well_formed"
	case InvariantFirstLine:
		return "first_line"
	case InvariantOrderTokens:
		return "order_tokens"
	case InvariantLinkedList:
		return "linked_list"
	case InvariantSharedPrevious:
		return "shared_previous"
	case InvariantUniquePrevious:
		return "unique_previous"
	case InvariantTerminal:
		return "terminal"
	case InvariantResumeAfterPause:
		return "resume_after_pause"
	case InvariantPauseAfterActive:
		return "pause_after_active"
	default:
		return fmt.Sprintf("invariant_%d", int(i))
	}
}

// InvariantError names the violated invariant and the offending line.
type InvariantError struct {
	Invariant  Invariant
	OrderToken int64
	LineID     LineID
	Detail     string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant %d (%s) violated at order %d, line %s: %s",
		int(e.Invariant), e.Invariant, e.OrderToken, e.LineID, e.Detail)
}

func (e *InvariantError) Unwrap() error {
	return ErrInvariantViolation
}

// PreconditionError is returned by strategies. Err is one of the
// precondition sentinels above.
type PreconditionError struct {
	Intent Intent
	CaseID CaseID
	Err    error
	Detail string
}

func (e *PreconditionError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s for case %s: %v", e.Intent, e.CaseID, e.Err)
	}
	return fmt.Sprintf("%s for case %s: %v (%s)", e.Intent, e.CaseID, e.Err, e.Detail)
}

func (e *PreconditionError) Unwrap() error {
	return e.Err
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsInvariantViolation returns true for structural chain errors.
func IsInvariantViolation(err error) bool {
	return errors.Is(err, ErrInvariantViolation)
}

// IsPrecondition returns true if a strategy refused to produce a batch.
func IsPrecondition(err error) bool {
	var pe *PreconditionError
	return errors.As(err, &pe)
}
