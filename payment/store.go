/*
store.go - Persistence interface for payment chains and batches

APPEND-ONLY CONTRACT:
  Lines are written once, as part of a batch, and never updated or
  deleted. The only mutable column is a batch's status, which moves
  forward through the submission lifecycle.

OPTIMISTIC CONCURRENCY:
  AppendBatch takes the chain length the batch was generated against.
  If another batch was appended in the meantime the store rejects the
  write with generic.ErrConcurrentModification, and the caller regenerates
  against the fresh chain. Appends for different cases never conflict.

IMPLEMENTATIONS:
  - payment/store/memory.go: In-memory for testing
  - store/sqlite/sqlite.go: SQLite
*/
package payment

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Store persists chains and batches.
type Store interface {
	// LoadChain returns every line of the case sorted by order token.
	// An unknown case yields an empty chain.
	LoadChain(ctx context.Context, caseID CaseID) (Chain, error)

	// AppendBatch writes the batch and its lines atomically if the case's
	// chain still has expectedVersion lines.
	AppendBatch(ctx context.Context, batch *Batch, expectedVersion int) error

	// GetBatch returns generic.ErrEntityNotFound for unknown ids.
	GetBatch(ctx context.Context, id snowflake.ID) (*Batch, error)

	// ListBatches returns the case's batches in append order.
	ListBatches(ctx context.Context, caseID CaseID) ([]*Batch, error)

	// UpdateBatchStatus moves a batch from one status to another. Fails with
	// generic.ErrConcurrentModification if the stored status is not from.
	UpdateBatchStatus(ctx context.Context, id snowflake.ID, from, to Status, at time.Time) error
}
