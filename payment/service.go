/*
service.go - Application service over the ledger

PURPOSE:
  Orchestrates strategies and the ledger for callers (HTTP, CLI):

    Apply      load chain -> generate -> validate -> append
    Simulate   same, but return the resulting timeline without appending
    Timeline   reconstruct a case's current timeline
    Compare    detect drift between two cases' timelines

CONCURRENCY:
  Appends are optimistic. When another writer appended to the same case
  between load and append, the store reports ErrConcurrentModification and
  Apply regenerates the batch against the fresh chain, up to MaxRetries
  times. Precondition and invariant errors are never retried.

BATCH LIFECYCLE:
  pending_simulation -> awaiting_receipt      MarkSubmitted
  awaiting_receipt   -> confirmed | failed    RecordReceipt
*/
package payment

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	"github.com/warp/payment-ledger/generic"
)

const DefaultMaxRetries = 3

type ServiceParams struct {
	Store      Store
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      generic.Clock
	MaxRetries int
}

type Service struct {
	ledger     *Ledger
	store      Store
	log        *zap.Logger
	genID      *snowflake.Node
	clock      generic.Clock
	maxRetries int
}

func NewService(p ServiceParams) *Service {
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	clock := p.Clock
	if clock == nil {
		clock = generic.SystemClock{}
	}
	retries := p.MaxRetries
	if retries <= 0 {
		retries = DefaultMaxRetries
	}
	return &Service{
		ledger:     NewLedger(p.Store),
		store:      p.Store,
		log:        log.Named("payment.service"),
		genID:      p.GenID,
		clock:      clock,
		maxRetries: retries,
	}
}

// =============================================================================
// WRITES
// =============================================================================

// Apply generates a batch with strategy and appends it to the case's chain.
func (s *Service) Apply(ctx context.Context, caseID CaseID, actor string, strategy Strategy) (*Batch, error) {
	for attempt := 0; ; attempt++ {
		chain, err := s.ledger.Chain(ctx, caseID)
		if err != nil {
			return nil, err
		}

		batch, err := strategy.Generate(s.request(caseID, chain, actor))
		if err != nil {
			s.log.Debug("strategy refused",
				zap.String("case_id", string(caseID)),
				zap.String("intent", string(strategy.Intent())),
				zap.Error(err))
			return nil, err
		}
		batch.ID = s.genID.Generate()

		err = s.ledger.Append(ctx, chain, batch)
		switch {
		case err == nil:
			s.log.Info("batch appended",
				zap.String("case_id", string(caseID)),
				zap.String("intent", string(batch.Intent)),
				zap.Int64("batch_id", batch.ID.Int64()),
				zap.Int64("first_order", batch.FirstOrder()),
				zap.Int("lines", len(batch.Lines)))
			return batch, nil
		case generic.IsRetryable(err) && attempt < s.maxRetries:
			s.log.Warn("concurrent append, retrying",
				zap.String("case_id", string(caseID)),
				zap.Int("attempt", attempt+1))
			continue
		case IsInvariantViolation(err):
			s.log.Error("generated batch violates chain invariants",
				zap.String("case_id", string(caseID)),
				zap.String("intent", string(strategy.Intent())),
				zap.Error(err))
		}
		return nil, err
	}
}

// MarkSubmitted records that a batch was handed to the disbursement system.
func (s *Service) MarkSubmitted(ctx context.Context, id snowflake.ID) (*Batch, error) {
	return s.transition(ctx, id, StatusAwaitingReceipt)
}

// RecordReceipt settles a submitted batch as confirmed or failed.
func (s *Service) RecordReceipt(ctx context.Context, id snowflake.ID, ok bool) (*Batch, error) {
	next := StatusConfirmed
	if !ok {
		next = StatusFailed
	}
	return s.transition(ctx, id, next)
}

func (s *Service) transition(ctx context.Context, id snowflake.ID, next Status) (*Batch, error) {
	batch, err := s.store.GetBatch(ctx, id)
	if err != nil {
		return nil, err
	}
	from := batch.Status
	if err := batch.Transition(next, s.clock.Now()); err != nil {
		return nil, err
	}
	if err := s.store.UpdateBatchStatus(ctx, id, from, next, batch.UpdatedAt); err != nil {
		return nil, fmt.Errorf("update batch %d: %w", id.Int64(), err)
	}
	s.log.Info("batch status changed",
		zap.Int64("batch_id", id.Int64()),
		zap.String("from", string(from)),
		zap.String("to", string(next)))
	return batch, nil
}

// =============================================================================
// READS
// =============================================================================

// Simulation is the outcome of a dry run.
type Simulation struct {
	Batch  *Batch
	Before Timeline
	After  Timeline
}

// Simulate generates and validates a batch and reconstructs the timeline it
// would produce. Nothing is persisted and the batch has no id.
func (s *Service) Simulate(ctx context.Context, caseID CaseID, actor string, strategy Strategy) (*Simulation, error) {
	chain, err := s.ledger.Chain(ctx, caseID)
	if err != nil {
		return nil, err
	}
	batch, err := strategy.Generate(s.request(caseID, chain, actor))
	if err != nil {
		return nil, err
	}
	if err := ValidateAppend(chain, batch.Lines); err != nil {
		return nil, err
	}
	return &Simulation{
		Batch:  batch,
		Before: Reconstruct(chain),
		After:  Reconstruct(chain.Append(batch.Lines...)),
	}, nil
}

func (s *Service) Chain(ctx context.Context, caseID CaseID) (Chain, error) {
	return s.ledger.Chain(ctx, caseID)
}

func (s *Service) Timeline(ctx context.Context, caseID CaseID) (Timeline, error) {
	chain, err := s.ledger.Chain(ctx, caseID)
	if err != nil {
		return Timeline{}, err
	}
	return Reconstruct(chain), nil
}

func (s *Service) Batches(ctx context.Context, caseID CaseID) ([]*Batch, error) {
	return s.store.ListBatches(ctx, caseID)
}

func (s *Service) Batch(ctx context.Context, id snowflake.ID) (*Batch, error) {
	return s.store.GetBatch(ctx, id)
}

// Comparison reports whether two cases' timelines match, optionally
// restricted to a window.
type Comparison struct {
	Equivalent bool
	Left       Timeline
	Right      Timeline
	Within     *generic.Period
}

// Compare reconstructs both cases and compares them. With a window, both
// timelines are clipped to it first and returned clipped.
func (s *Service) Compare(ctx context.Context, left, right CaseID, within *generic.Period) (*Comparison, error) {
	a, err := s.Timeline(ctx, left)
	if err != nil {
		return nil, err
	}
	b, err := s.Timeline(ctx, right)
	if err != nil {
		return nil, err
	}
	if within == nil {
		return &Comparison{Equivalent: Equivalent(a, b), Left: a, Right: b}, nil
	}
	return &Comparison{
		Equivalent: EquivalentWithin(a, b, *within),
		Left:       Timeline{Segments: ClipSegments(a.Segments, *within)},
		Right:      Timeline{Segments: ClipSegments(b.Segments, *within)},
		Within:     within,
	}, nil
}

func (s *Service) request(caseID CaseID, chain Chain, actor string) Request {
	return Request{CaseID: caseID, Chain: chain, Actor: actor, Clock: s.clock}
}
