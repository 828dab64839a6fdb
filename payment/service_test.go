package payment_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/warp/payment-ledger/generic"
	"github.com/warp/payment-ledger/payment"
	"github.com/warp/payment-ledger/payment/store"
)

const caseID payment.CaseID = "case-1"

func yearSchedule(year int, amount string) payment.Grant {
	return payment.Grant{Schedule: []payment.ScheduleEntry{
		entry(months(year, time.January, time.December), amount),
	}}
}

func newTestService(t *testing.T, s payment.Store, retries int) *payment.Service {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return payment.NewService(payment.ServiceParams{
		Store:      s,
		Log:        zaptest.NewLogger(t),
		GenID:      node,
		Clock:      testClock,
		MaxRetries: retries,
	})
}

// flakyStore rejects the first n appends as concurrent modifications.
type flakyStore struct {
	payment.Store
	mu       sync.Mutex
	failures int
	appends  int
}

func (f *flakyStore) AppendBatch(ctx context.Context, batch *payment.Batch, expectedVersion int) error {
	f.mu.Lock()
	f.appends++
	fail := f.appends <= f.failures
	f.mu.Unlock()
	if fail {
		return fmt.Errorf("%w: injected", generic.ErrConcurrentModification)
	}
	return f.Store.AppendBatch(ctx, batch, expectedVersion)
}

// racingStore lets another writer append a grant right before the first
// append of the service under test.
type racingStore struct {
	payment.Store
	raced bool
	rival *payment.Batch
}

func (r *racingStore) AppendBatch(ctx context.Context, batch *payment.Batch, expectedVersion int) error {
	if !r.raced {
		r.raced = true
		if err := r.Store.AppendBatch(ctx, r.rival, expectedVersion); err != nil {
			return err
		}
	}
	return r.Store.AppendBatch(ctx, batch, expectedVersion)
}

// =============================================================================
// APPLY
// =============================================================================

func TestService_Apply_PersistsBatch(t *testing.T) {
	// GIVEN: An empty case
	mem := store.NewMemory()
	svc := newTestService(t, mem, 0)
	ctx := context.Background()

	// WHEN: Granting
	batch, err := svc.Apply(ctx, caseID, "caseworker", yearSchedule(2025, "1000"))

	// THEN: The batch has an id and is stored with its lines
	require.NoError(t, err)
	assert.NotZero(t, batch.ID)
	assert.Equal(t, payment.StatusPendingSimulation, batch.Status)

	chain, err := svc.Chain(ctx, caseID)
	require.NoError(t, err)
	assert.Len(t, chain, 1)

	stored, err := svc.Batch(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.IntentGrant, stored.Intent)
}

func TestService_Apply_RetriesOnConflict(t *testing.T) {
	// GIVEN: A store that rejects the first two appends
	flaky := &flakyStore{Store: store.NewMemory(), failures: 2}
	svc := newTestService(t, flaky, 3)

	// WHEN: Granting
	_, err := svc.Apply(context.Background(), caseID, "caseworker", yearSchedule(2025, "1000"))

	// THEN: The third attempt succeeds
	require.NoError(t, err)
	assert.Equal(t, 3, flaky.appends)
}

func TestService_Apply_GivesUpAfterMaxRetries(t *testing.T) {
	// GIVEN: A store that always conflicts
	flaky := &flakyStore{Store: store.NewMemory(), failures: 100}
	svc := newTestService(t, flaky, 2)

	// WHEN: Granting
	_, err := svc.Apply(context.Background(), caseID, "caseworker", yearSchedule(2025, "1000"))

	// THEN: One try plus two retries, then the conflict surfaces
	require.Error(t, err)
	assert.True(t, generic.IsRetryable(err))
	assert.Equal(t, 3, flaky.appends)
}

func TestService_Apply_RegeneratesAgainstFreshChain(t *testing.T) {
	// GIVEN: Another writer grants 2025 between our load and our append
	rivalLine := &payment.NewLine{
		ID: payment.NewLineID(), OrderToken: 0, CreatedAt: testNow,
		Period: months(2025, time.January, time.December), Amount: amt("1000"),
	}
	racing := &racingStore{
		Store: store.NewMemory(),
		rival: &payment.Batch{
			ID: snowflake.ID(42), CaseID: caseID, Intent: payment.IntentGrant,
			Status: payment.StatusPendingSimulation, Lines: []payment.Line{rivalLine},
		},
	}
	svc := newTestService(t, racing, 3)

	// WHEN: We grant 2026
	batch, err := svc.Apply(context.Background(), caseID, "caseworker", yearSchedule(2026, "1100"))

	// THEN: Our batch was rebuilt on top of the rival's line
	require.NoError(t, err)
	line := batch.Lines[0].(*payment.NewLine)
	assert.Equal(t, int64(1), line.OrderToken)
	require.NotNil(t, line.PreviousID)
	assert.Equal(t, rivalLine.ID, *line.PreviousID)

	chain, err := svc.Chain(context.Background(), caseID)
	require.NoError(t, err)
	assert.NoError(t, payment.ValidateChain(chain))
}

func TestService_Apply_PreconditionNotRetried(t *testing.T) {
	// GIVEN: An empty case
	flaky := &flakyStore{Store: store.NewMemory()}
	svc := newTestService(t, flaky, 3)

	// WHEN: Pausing nothing
	_, err := svc.Apply(context.Background(), caseID, "caseworker", payment.Pause{})

	// THEN: Refused without touching the store
	assert.ErrorIs(t, err, payment.ErrEmptyChain)
	assert.Zero(t, flaky.appends)
}

func TestService_Apply_ConcurrentWritersKeepChainValid(t *testing.T) {
	// GIVEN: Eight writers granting distinct years to the same case
	const writers = 8
	svc := newTestService(t, store.NewMemory(), writers+2)
	ctx := context.Background()

	// WHEN: They all apply at once
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Apply(ctx, caseID, "caseworker", yearSchedule(2030+i, "1000"))
		}(i)
	}
	wg.Wait()

	// THEN: Every writer got in and the chain still holds together
	for _, err := range errs {
		assert.NoError(t, err)
	}
	chain, err := svc.Chain(ctx, caseID)
	require.NoError(t, err)
	assert.Len(t, chain, writers)
	assert.NoError(t, payment.ValidateChain(chain))
}

// =============================================================================
// SIMULATE
// =============================================================================

func TestService_Simulate_DoesNotPersist(t *testing.T) {
	// GIVEN: A granted case
	svc := newTestService(t, store.NewMemory(), 0)
	ctx := context.Background()
	_, err := svc.Apply(ctx, caseID, "caseworker", payment.Grant{Schedule: []payment.ScheduleEntry{
		entry(months(2025, time.January, time.April), "1000"),
		entry(months(2025, time.May, time.December), "2000"),
	}})
	require.NoError(t, err)

	// WHEN: Simulating a pause
	sim, err := svc.Simulate(ctx, caseID, "caseworker", payment.Pause{})

	// THEN: Before and after timelines, nothing written
	require.NoError(t, err)
	assert.Zero(t, sim.Batch.ID)
	assert.Equal(t, []seg{
		{months(2025, time.January, time.April), "1000.00", payment.SegmentNew},
		{months(2025, time.May, time.December), "2000.00", payment.SegmentNew},
	}, segsOf(sim.Before))
	assert.Equal(t, []seg{
		{months(2025, time.January, time.March), "1000.00", payment.SegmentNew},
		{months(2025, time.April, time.December), "0.00", payment.SegmentPause},
	}, segsOf(sim.After))

	chain, err := svc.Chain(ctx, caseID)
	require.NoError(t, err)
	assert.Len(t, chain, 2)
	batches, err := svc.Batches(ctx, caseID)
	require.NoError(t, err)
	assert.Len(t, batches, 1)
}

func TestService_Simulate_Refusal(t *testing.T) {
	svc := newTestService(t, store.NewMemory(), 0)

	_, err := svc.Simulate(context.Background(), caseID, "caseworker", payment.Resume{})

	assert.True(t, payment.IsPrecondition(err))
}

// =============================================================================
// BATCH LIFECYCLE
// =============================================================================

func TestService_BatchLifecycle(t *testing.T) {
	// GIVEN: An appended batch
	svc := newTestService(t, store.NewMemory(), 0)
	ctx := context.Background()
	batch, err := svc.Apply(ctx, caseID, "caseworker", yearSchedule(2025, "1000"))
	require.NoError(t, err)

	// WHEN: Receipt before submission
	_, err = svc.RecordReceipt(ctx, batch.ID, true)

	// THEN: Rejected
	assert.ErrorIs(t, err, payment.ErrInvalidStatusTransition)

	// WHEN: Submitted, then confirmed
	submitted, err := svc.MarkSubmitted(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusAwaitingReceipt, submitted.Status)

	confirmed, err := svc.RecordReceipt(ctx, batch.ID, true)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusConfirmed, confirmed.Status)
	assert.True(t, confirmed.Status.IsFinal())

	// THEN: Final statuses do not move
	_, err = svc.RecordReceipt(ctx, batch.ID, false)
	assert.ErrorIs(t, err, payment.ErrInvalidStatusTransition)

	stored, err := svc.Batch(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusConfirmed, stored.Status)
}

func TestService_RecordReceipt_Failed(t *testing.T) {
	svc := newTestService(t, store.NewMemory(), 0)
	ctx := context.Background()
	batch, err := svc.Apply(ctx, caseID, "caseworker", yearSchedule(2025, "1000"))
	require.NoError(t, err)
	_, err = svc.MarkSubmitted(ctx, batch.ID)
	require.NoError(t, err)

	failed, err := svc.RecordReceipt(ctx, batch.ID, false)

	require.NoError(t, err)
	assert.Equal(t, payment.StatusFailed, failed.Status)
}

func TestService_UnknownBatch(t *testing.T) {
	svc := newTestService(t, store.NewMemory(), 0)

	_, err := svc.MarkSubmitted(context.Background(), snowflake.ID(12345))

	assert.True(t, generic.IsNotFound(err))
}

// =============================================================================
// COMPARE
// =============================================================================

func TestService_Compare(t *testing.T) {
	// GIVEN: Two cases paying the same 2025, differing in 2026
	svc := newTestService(t, store.NewMemory(), 0)
	ctx := context.Background()
	_, err := svc.Apply(ctx, "left", "caseworker", payment.Grant{Schedule: []payment.ScheduleEntry{
		entry(months(2025, time.January, time.December), "1000"),
		entry(months(2026, time.January, time.December), "1100"),
	}})
	require.NoError(t, err)
	_, err = svc.Apply(ctx, "right", "caseworker", payment.Grant{Schedule: []payment.ScheduleEntry{
		entry(months(2025, time.January, time.December), "1000"),
		entry(months(2026, time.January, time.December), "1200"),
	}})
	require.NoError(t, err)

	// WHEN: Comparing overall
	all, err := svc.Compare(ctx, "left", "right", nil)

	// THEN: Different
	require.NoError(t, err)
	assert.False(t, all.Equivalent)
	assert.Nil(t, all.Within)
	assert.Len(t, all.Left.Segments, 2)

	// WHEN: Comparing within 2025
	window := months(2025, time.January, time.December)
	within, err := svc.Compare(ctx, "left", "right", &window)

	// THEN: Equivalent, and both sides are returned clipped
	require.NoError(t, err)
	assert.True(t, within.Equivalent)
	assert.Len(t, within.Left.Segments, 1)
	assert.Len(t, within.Right.Segments, 1)
}
