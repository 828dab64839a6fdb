package payment

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
)

// =============================================================================
// BATCH - Lines produced by one strategy invocation
// =============================================================================

// Intent names the strategy that produced a batch.
type Intent string

const (
	IntentGrant     Intent = "grant"
	IntentPause     Intent = "pause"
	IntentResume    Intent = "resume"
	IntentTerminate Intent = "terminate"
)

// Status tracks a batch through simulation, submission and receipt.
type Status string

const (
	StatusPendingSimulation Status = "pending_simulation"
	StatusAwaitingReceipt   Status = "awaiting_receipt"
	StatusConfirmed         Status = "confirmed"
	StatusFailed            Status = "failed"
)

// IsFinal reports whether a receipt has settled the batch.
func (s Status) IsFinal() bool { return s == StatusConfirmed || s == StatusFailed }

var statusTransitions = map[Status][]Status{
	StatusPendingSimulation: {StatusAwaitingReceipt},
	StatusAwaitingReceipt:   {StatusConfirmed, StatusFailed},
}

// CanTransition reports whether a batch may move from s to next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Batch is a non-empty, causally contiguous slice of the chain produced by
// one strategy. Its lines never change after the batch is appended; only
// Status moves forward as the disbursement system reports back.
type Batch struct {
	ID        snowflake.ID
	CaseID    CaseID
	Intent    Intent
	Status    Status
	Lines     []Line
	Actor     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FirstOrder returns the order token of the first line in the batch.
func (b *Batch) FirstOrder() int64 {
	if len(b.Lines) == 0 {
		return -1
	}
	return b.Lines[0].Order()
}

// Transition moves the batch to next or returns ErrInvalidStatusTransition.
func (b *Batch) Transition(next Status, at time.Time) error {
	if !b.Status.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, b.Status, next)
	}
	b.Status = next
	b.UpdatedAt = at
	return nil
}
