package payment

import (
	"context"
	"fmt"
)

// =============================================================================
// LEDGER - Validated append over a Store
// =============================================================================

// Ledger is the only writer of chains. Every batch is validated against the
// frozen chain it was generated from, then appended with that chain's
// length as the expected version.
type Ledger struct {
	Store Store
}

func NewLedger(store Store) *Ledger {
	return &Ledger{Store: store}
}

// Chain loads the accepted chain of a case.
func (l *Ledger) Chain(ctx context.Context, caseID CaseID) (Chain, error) {
	chain, err := l.Store.LoadChain(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("load chain %s: %w", caseID, err)
	}
	return chain, nil
}

// Append validates batch against chain and persists it. Nothing is written
// if validation fails.
func (l *Ledger) Append(ctx context.Context, chain Chain, batch *Batch) error {
	if err := ValidateAppend(chain, batch.Lines); err != nil {
		return err
	}
	return l.Store.AppendBatch(ctx, batch, len(chain))
}
