// Package store provides in-memory payment.Store implementations.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"

	"github.com/warp/payment-ledger/generic"
	"github.com/warp/payment-ledger/payment"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu      sync.RWMutex
	chains  map[payment.CaseID]payment.Chain
	batches map[snowflake.ID]*payment.Batch
	byCase  map[payment.CaseID][]snowflake.ID
}

var _ payment.Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		chains:  make(map[payment.CaseID]payment.Chain),
		batches: make(map[snowflake.ID]*payment.Batch),
		byCase:  make(map[payment.CaseID][]snowflake.ID),
	}
}

func (m *Memory) LoadChain(_ context.Context, caseID payment.CaseID) (payment.Chain, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(payment.Chain, len(m.chains[caseID]))
	copy(result, m.chains[caseID])
	return result, nil
}

// AppendBatch checks the version and writes the batch under one lock, so the
// check and the write are atomic.
func (m *Memory) AppendBatch(_ context.Context, batch *payment.Batch, expectedVersion int) error {
	if len(batch.Lines) == 0 {
		return payment.ErrEmptyBatch
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	chain := m.chains[batch.CaseID]
	if len(chain) != expectedVersion {
		return fmt.Errorf("%w: case %s has %d lines, expected %d",
			generic.ErrConcurrentModification, batch.CaseID, len(chain), expectedVersion)
	}
	if _, exists := m.batches[batch.ID]; exists {
		return fmt.Errorf("%w: batch %d already stored", generic.ErrConcurrentModification, batch.ID.Int64())
	}

	m.chains[batch.CaseID] = chain.Append(batch.Lines...)
	m.batches[batch.ID] = cloneBatch(batch)
	m.byCase[batch.CaseID] = append(m.byCase[batch.CaseID], batch.ID)
	return nil
}

func (m *Memory) GetBatch(_ context.Context, id snowflake.ID) (*payment.Batch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.batches[id]
	if !ok {
		return nil, fmt.Errorf("%w: batch %d", generic.ErrEntityNotFound, id.Int64())
	}
	return cloneBatch(b), nil
}

func (m *Memory) ListBatches(_ context.Context, caseID payment.CaseID) ([]*payment.Batch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := m.byCase[caseID]
	result := make([]*payment.Batch, 0, len(ids))
	for _, id := range ids {
		result = append(result, cloneBatch(m.batches[id]))
	}
	return result, nil
}

func (m *Memory) UpdateBatchStatus(_ context.Context, id snowflake.ID, from, to payment.Status, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.batches[id]
	if !ok {
		return fmt.Errorf("%w: batch %d", generic.ErrEntityNotFound, id.Int64())
	}
	if b.Status != from {
		return fmt.Errorf("%w: batch %d is %s, expected %s", generic.ErrConcurrentModification, id.Int64(), b.Status, from)
	}
	b.Status = to
	b.UpdatedAt = at
	return nil
}

// Lines are immutable once appended, so only the slice is copied.
func cloneBatch(b *payment.Batch) *payment.Batch {
	c := *b
	c.Lines = append([]payment.Line(nil), b.Lines...)
	return &c
}
