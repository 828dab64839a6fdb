/*
strategy.go - Generators that extend a case's chain

PURPOSE:
  A Strategy turns a caseworker's intent (grant, pause, resume, terminate)
  into a batch of new lines appended after the accepted chain. Strategies
  are pure: they read the frozen chain and the clock, and either return a
  batch or a PreconditionError naming why the intent cannot be honored.

  Strategies never persist anything. The Ledger validates the batch
  against the same chain snapshot and appends it atomically.

STRATEGIES:
  Grant      one New line per contiguous run of equal amounts (grant.go)
  Pause      zero payments from the first of next month (pause.go)
  Resume     undo the latest pause from a date (resume.go)
  Terminate  void payments after a month-boundary date (terminate.go)

SEE ALSO:
  - validate.go: What every generated batch must satisfy
  - service.go: Generate, validate, append with retry
*/
package payment

import (
	"fmt"
	"time"

	"github.com/warp/payment-ledger/generic"
)

// Request carries everything a strategy reads.
type Request struct {
	CaseID CaseID
	Chain  Chain
	Actor  string
	Clock  generic.Clock
}

func (r Request) now() time.Time {
	if r.Clock == nil {
		return generic.SystemClock{}.Now()
	}
	return r.Clock.Now()
}

func (r Request) today() generic.TimePoint { return generic.DateOf(r.now()) }

// Strategy produces a non-empty batch or a *PreconditionError.
type Strategy interface {
	Intent() Intent
	Generate(req Request) (*Batch, error)
}

// Compile-time checks
var (
	_ Strategy = Grant{}
	_ Strategy = Pause{}
	_ Strategy = Resume{}
	_ Strategy = Terminate{}
)

// newBatch stamps lines into a pending batch. The batch id is assigned by
// the Service when the batch is appended.
func newBatch(req Request, intent Intent, lines []Line) *Batch {
	now := req.now()
	return &Batch{
		CaseID:    req.CaseID,
		Intent:    intent,
		Status:    StatusPendingSimulation,
		Lines:     lines,
		Actor:     req.Actor,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func refuse(req Request, intent Intent, err error, format string, args ...any) *PreconditionError {
	pe := &PreconditionError{Intent: intent, CaseID: req.CaseID, Err: err}
	if format != "" {
		pe.Detail = fmt.Sprintf(format, args...)
	}
	return pe
}

// change builds a ChangeLine on the id of target, inheriting its previous id.
func change(req Request, target Line, kind ChangeKind, window generic.Period) *ChangeLine {
	return &ChangeLine{
		ID:         target.LineID(),
		OrderToken: req.Chain.NextOrder(),
		CreatedAt:  req.now(),
		PreviousID: target.Previous(),
		Kind:       kind,
		Period:     window,
	}
}
