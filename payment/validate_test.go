package payment_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payment-ledger/payment"
)

func requireInvariant(t *testing.T, err error, want payment.Invariant) *payment.InvariantError {
	t.Helper()
	require.Error(t, err)
	assert.True(t, payment.IsInvariantViolation(err), "expected invariant violation, got %v", err)
	var ie *payment.InvariantError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, want, ie.Invariant, "violated invariant: %s", ie.Detail)
	return ie
}

// =============================================================================
// ACCEPTED CHAINS
// =============================================================================

func TestValidateChain_EmptyChain_Valid(t *testing.T) {
	assert.NoError(t, payment.ValidateChain(nil))
}

func TestValidateChain_FullLifecycle_Valid(t *testing.T) {
	// GIVEN: New, New, Pause, Resume, Pause, Resume, Terminate
	b := newChain()
	b.New(months(2025, time.January, time.April), "1000")
	second := b.New(months(2025, time.May, time.December), "2000")
	b.Change(second, payment.ChangePause, months(2025, time.April, time.December)).
		Change(second, payment.ChangeResume, months(2025, time.April, time.December)).
		Change(second, payment.ChangePause, months(2025, time.June, time.December)).
		Change(second, payment.ChangeResume, months(2025, time.June, time.December)).
		Change(second, payment.ChangeTerminate, months(2025, time.October, time.December))

	// THEN: All invariants hold
	assert.NoError(t, payment.ValidateChain(b.Chain()))
}

func TestValidateChain_InputOrderIgnored(t *testing.T) {
	// GIVEN: A valid chain handed over in reverse
	b := newChain()
	b.New(months(2025, time.January, time.April), "1000")
	b.New(months(2025, time.May, time.December), "2000")
	chain := b.Chain()
	reversed := []payment.Line{chain[1], chain[0]}

	// THEN: Lines are checked by order token, not by position
	assert.NoError(t, payment.ValidateChain(reversed))
}

func TestValidateChain_SuccessiveChangesOnSameLine_NotDuplicates(t *testing.T) {
	// GIVEN: Two Changes sharing id and previous id
	b := newChain()
	id := b.New(months(2025, time.January, time.December), "1000")
	b.Change(id, payment.ChangePause, months(2025, time.June, time.December)).
		Change(id, payment.ChangeResume, months(2025, time.August, time.December))

	// THEN: Legal edits of one conceptual line
	assert.NoError(t, payment.ValidateChain(b.Chain()))
}

// =============================================================================
// INVARIANT VIOLATIONS
// =============================================================================

func TestValidateChain_FirstLineIsChange_Invariant1(t *testing.T) {
	id := payment.NewLineID()
	chain := []payment.Line{&payment.ChangeLine{
		ID: id, OrderToken: 0, Kind: payment.ChangePause,
		Period: months(2025, time.January, time.March),
	}}

	requireInvariant(t, payment.ValidateChain(chain), payment.InvariantFirstLine)
}

func TestValidateChain_FirstLineWithPrevious_Invariant1(t *testing.T) {
	ghost := payment.NewLineID()
	chain := []payment.Line{&payment.NewLine{
		ID: payment.NewLineID(), OrderToken: 0, PreviousID: &ghost,
		Period: months(2025, time.January, time.March), Amount: amt("1000"),
	}}

	requireInvariant(t, payment.ValidateChain(chain), payment.InvariantFirstLine)
}

func TestValidateChain_OrderTokenGap_Invariant2(t *testing.T) {
	b := newChain()
	first := b.New(months(2025, time.January, time.March), "1000")
	gap := &payment.NewLine{
		ID: payment.NewLineID(), OrderToken: 2, PreviousID: &first,
		Period: months(2025, time.April, time.June), Amount: amt("1000"),
	}

	ie := requireInvariant(t, payment.ValidateChain(b.Chain().Append(gap)), payment.InvariantOrderTokens)
	assert.Equal(t, int64(2), ie.OrderToken)
}

func TestValidateChain_DuplicateOrderToken_Invariant2(t *testing.T) {
	b := newChain()
	first := b.New(months(2025, time.January, time.March), "1000")
	dup := &payment.NewLine{
		ID: payment.NewLineID(), OrderToken: 0, PreviousID: &first,
		Period: months(2025, time.April, time.June), Amount: amt("1000"),
	}

	requireInvariant(t, payment.ValidateChain(b.Chain().Append(dup)), payment.InvariantOrderTokens)
}

func TestValidateChain_NewLinksToWrongPredecessor_Invariant3(t *testing.T) {
	// GIVEN: A, B(prev A), C(prev A) - C should point at B
	b := newChain()
	first := b.New(months(2025, time.January, time.March), "1000")
	b.New(months(2025, time.April, time.June), "1000")
	branch := &payment.NewLine{
		ID: payment.NewLineID(), OrderToken: 2, PreviousID: &first,
		Period: months(2025, time.July, time.September), Amount: amt("1000"),
	}

	ie := requireInvariant(t, payment.ValidateChain(b.Chain().Append(branch)), payment.InvariantLinkedList)
	assert.Equal(t, branch.ID, ie.LineID)
}

func TestValidateChain_ChangeOnUnknownLine_Invariant4(t *testing.T) {
	b := newChain()
	b.New(months(2025, time.January, time.December), "1000")
	b.Change(payment.NewLineID(), payment.ChangePause, months(2025, time.June, time.December))

	requireInvariant(t, payment.ValidateChain(b.Chain()), payment.InvariantSharedPrevious)
}

func TestValidateChain_ChangeWithForeignPrevious_Invariant4(t *testing.T) {
	// GIVEN: A, B(prev A), then a Pause on B claiming previous = B
	b := newChain()
	b.New(months(2025, time.January, time.March), "1000")
	second := b.New(months(2025, time.April, time.December), "1000")
	bad := &payment.ChangeLine{
		ID: second, OrderToken: 2, PreviousID: &second,
		Kind: payment.ChangePause, Period: months(2025, time.June, time.December),
	}

	requireInvariant(t, payment.ValidateChain(b.Chain().Append(bad)), payment.InvariantSharedPrevious)
}

func TestValidateChain_NewReusesId_Invariant4(t *testing.T) {
	b := newChain()
	first := b.New(months(2025, time.January, time.March), "1000")
	reuse := &payment.NewLine{
		ID: first, OrderToken: 1, PreviousID: &first,
		Period: months(2025, time.April, time.June), Amount: amt("1000"),
	}

	requireInvariant(t, payment.ValidateChain(b.Chain().Append(reuse)), payment.InvariantSharedPrevious)
}

func TestValidateChain_TwoLinesClaimSamePrevious_Invariant5(t *testing.T) {
	// GIVEN: A, B(prev A), Pause A, C(prev A)
	// C follows the Pause on A, so it links to A - which B already claimed
	b := newChain()
	first := b.New(months(2025, time.January, time.December), "1000")
	b.New(months(2026, time.January, time.June), "1000")
	b.Change(first, payment.ChangePause, months(2025, time.June, time.December))
	b.New(months(2026, time.July, time.December), "1000")

	requireInvariant(t, payment.ValidateChain(b.Chain()), payment.InvariantUniquePrevious)
}

func TestValidateChain_ChangeAfterTerminate_Invariant6(t *testing.T) {
	for _, kind := range []payment.ChangeKind{payment.ChangePause, payment.ChangeResume, payment.ChangeTerminate} {
		t.Run(string(kind), func(t *testing.T) {
			b := newChain()
			id := b.New(months(2025, time.January, time.December), "1000")
			b.Change(id, payment.ChangeTerminate, months(2025, time.July, time.December)).
				Change(id, kind, months(2025, time.September, time.December))

			requireInvariant(t, payment.ValidateChain(b.Chain()), payment.InvariantTerminal)
		})
	}
}

func TestValidateChain_ResumeWithoutPause_Invariant7(t *testing.T) {
	b := newChain()
	id := b.New(months(2025, time.January, time.December), "1000")
	b.Change(id, payment.ChangeResume, months(2025, time.June, time.December))

	requireInvariant(t, payment.ValidateChain(b.Chain()), payment.InvariantResumeAfterPause)
}

func TestValidateChain_ResumeTwice_Invariant7(t *testing.T) {
	b := newChain()
	id := b.New(months(2025, time.January, time.December), "1000")
	b.Change(id, payment.ChangePause, months(2025, time.June, time.December)).
		Change(id, payment.ChangeResume, months(2025, time.June, time.December)).
		Change(id, payment.ChangeResume, months(2025, time.June, time.December))

	requireInvariant(t, payment.ValidateChain(b.Chain()), payment.InvariantResumeAfterPause)
}

func TestValidateChain_PauseTwice_Invariant8(t *testing.T) {
	b := newChain()
	id := b.New(months(2025, time.January, time.December), "1000")
	b.Change(id, payment.ChangePause, months(2025, time.June, time.December)).
		Change(id, payment.ChangePause, months(2025, time.August, time.December))

	requireInvariant(t, payment.ValidateChain(b.Chain()), payment.InvariantPauseAfterActive)
}

func TestValidateChain_MalformedLines(t *testing.T) {
	t.Run("negative amount", func(t *testing.T) {
		b := newChain()
		b.New(months(2025, time.January, time.December), "-1")
		requireInvariant(t, payment.ValidateChain(b.Chain()), payment.InvariantWellFormed)
	})
	t.Run("end before start", func(t *testing.T) {
		b := newChain()
		b.New(span(date(2025, time.May, 1), date(2025, time.April, 30)), "1000")
		requireInvariant(t, payment.ValidateChain(b.Chain()), payment.InvariantWellFormed)
	})
	t.Run("unknown change kind", func(t *testing.T) {
		b := newChain()
		id := b.New(months(2025, time.January, time.December), "1000")
		b.Change(id, payment.ChangeKind("suspend"), months(2025, time.June, time.December))
		requireInvariant(t, payment.ValidateChain(b.Chain()), payment.InvariantWellFormed)
	})
}

// =============================================================================
// APPEND
// =============================================================================

func TestValidateAppend_EmptyBatch_Rejected(t *testing.T) {
	b := newChain()
	b.New(months(2025, time.January, time.December), "1000")

	err := payment.ValidateAppend(b.Chain(), nil)
	assert.True(t, errors.Is(err, payment.ErrEmptyBatch))
}

func TestValidateAppend_BatchMustStartAtNextOrder(t *testing.T) {
	// GIVEN: A chain of one line and a batch starting at token 0
	b := newChain()
	first := b.New(months(2025, time.January, time.March), "1000")
	stale := &payment.NewLine{
		ID: payment.NewLineID(), OrderToken: 0, PreviousID: &first,
		Period: months(2025, time.April, time.June), Amount: amt("1000"),
	}

	// THEN: Rejected before the combined chain is checked
	ie := requireInvariant(t, payment.ValidateAppend(b.Chain(), []payment.Line{stale}), payment.InvariantOrderTokens)
	assert.Contains(t, ie.Detail, "order token 1")
}

func TestValidateAppend_ValidBatch_Accepted(t *testing.T) {
	b := newChain()
	id := b.New(months(2025, time.January, time.December), "1000")
	base := b.Chain()
	b.Change(id, payment.ChangePause, months(2025, time.June, time.December))

	assert.NoError(t, payment.ValidateAppend(base, b.Chain()[len(base):]))
}

func TestInvariantError_MessageNamesInvariantAndLine(t *testing.T) {
	b := newChain()
	id := b.New(months(2025, time.January, time.December), "1000")
	b.Change(id, payment.ChangeResume, months(2025, time.June, time.December))

	err := payment.ValidateChain(b.Chain())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resume_after_pause")
	assert.Contains(t, err.Error(), id.String())
	assert.Contains(t, err.Error(), "order 1")
}
