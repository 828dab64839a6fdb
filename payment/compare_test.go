package payment_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payment-ledger/payment"
)

// =============================================================================
// EQUIVALENCE
// =============================================================================

func TestEquivalent_IgnoresKindsAndIds(t *testing.T) {
	// GIVEN: A paused-and-resumed chain and a plain chain paying the same
	resumed, _, second := twoGrants()
	resumed.Change(second, payment.ChangePause, months(2025, time.April, time.December)).
		Change(second, payment.ChangeResume, months(2025, time.April, time.December))

	plain := newChain()
	plain.New(months(2025, time.January, time.April), "1000")
	plain.New(months(2025, time.May, time.December), "2000")

	// WHEN: Comparing their timelines
	a := payment.Reconstruct(resumed.Chain())
	b := payment.Reconstruct(plain.Chain())

	// THEN: Equal in periods and amounts, different only in provenance
	assert.True(t, payment.Equivalent(a, b))
	assert.True(t, payment.Equivalent(b, a))
}

func TestEquivalent_SplitSegmentsDiffer(t *testing.T) {
	// GIVEN: One Jan-Dec line vs. Jan-Jun + Jul-Dec at the same amount
	whole := newChain()
	whole.New(months(2025, time.January, time.December), "1000")
	split := newChain()
	split.New(months(2025, time.January, time.June), "1000")
	split.New(months(2025, time.July, time.December), "1000")

	// THEN: Segment boundaries are part of the comparison
	assert.False(t, payment.Equivalent(
		payment.Reconstruct(whole.Chain()),
		payment.Reconstruct(split.Chain())))
}

func TestEquivalent_DetectsAmountDifference(t *testing.T) {
	a := newChain()
	a.New(months(2025, time.January, time.December), "1000")
	b := newChain()
	b.New(months(2025, time.January, time.December), "1000.01")

	assert.False(t, payment.Equivalent(payment.Reconstruct(a.Chain()), payment.Reconstruct(b.Chain())))
}

func TestEquivalent_Reflexive(t *testing.T) {
	for name, chain := range propertyChains() {
		t.Run(name, func(t *testing.T) {
			timeline := payment.Reconstruct(chain)
			assert.True(t, payment.Equivalent(timeline, timeline))
		})
	}
}

func TestEquivalent_EmptyTimelines(t *testing.T) {
	assert.True(t, payment.Equivalent(payment.Timeline{}, payment.Reconstruct(nil)))
}

func TestEquivalentWithin_ComparesOnlyTheWindow(t *testing.T) {
	// GIVEN: Same Jan-Mar, different Apr-Dec
	a, _, _ := twoGrants()
	b := newChain()
	b.New(months(2025, time.January, time.April), "1000")
	b.New(months(2025, time.May, time.December), "2500")
	ta := payment.Reconstruct(a.Chain())
	tb := payment.Reconstruct(b.Chain())

	// THEN: Equal inside Jan-Apr, different over the year, in both directions
	window := months(2025, time.January, time.April)
	assert.True(t, payment.EquivalentWithin(ta, tb, window))
	assert.True(t, payment.EquivalentWithin(tb, ta, window))
	assert.False(t, payment.EquivalentWithin(ta, tb, months(2025, time.January, time.December)))
	assert.False(t, payment.EquivalentWithin(tb, ta, months(2025, time.January, time.December)))
}

func TestEquivalentWithin_EmptyClipIsNotEquivalent(t *testing.T) {
	// GIVEN: Two identical 2025 timelines and a 2026 window
	b := newChain()
	b.New(months(2025, time.January, time.December), "1000")
	timeline := payment.Reconstruct(b.Chain())

	// THEN: Nothing to compare means no equivalence claim
	assert.False(t, payment.EquivalentWithin(timeline, timeline, months(2026, time.January, time.March)))
}

// =============================================================================
// SHRINK / CLIP
// =============================================================================

func TestShrinkTo_DisjointWindow_NoResult(t *testing.T) {
	b := newChain()
	b.New(months(2025, time.January, time.December), "1000")

	_, ok := payment.ShrinkTo(payment.Reconstruct(b.Chain()), months(2024, time.January, time.December))
	assert.False(t, ok)

	_, ok = payment.ShrinkTo(payment.Timeline{}, months(2025, time.January, time.December))
	assert.False(t, ok, "empty timeline has nothing to shrink")
}

func TestShrinkTo_WindowInsideGap_EmptyButPresent(t *testing.T) {
	// GIVEN: Jan-Mar and Jul-Sep
	b := newChain()
	b.New(months(2025, time.January, time.March), "1000")
	b.New(months(2025, time.July, time.September), "1000")

	// WHEN: Shrinking to May
	shrunk, ok := payment.ShrinkTo(payment.Reconstruct(b.Chain()), months(2025, time.May, time.May))

	// THEN: The window overlaps the covering period but holds no segment
	require.True(t, ok)
	assert.NotNil(t, shrunk.Segments)
	assert.Empty(t, shrunk.Segments)
}

func TestShrinkTo_TruncatesBoundarySegments(t *testing.T) {
	// GIVEN: The two grants, shrunk to mid-March .. mid-June
	b, _, _ := twoGrants()
	window := span(date(2025, time.March, 15), date(2025, time.June, 14))

	// WHEN: Shrinking
	shrunk, ok := payment.ShrinkTo(payment.Reconstruct(b.Chain()), window)

	// THEN: Segments are cut at the window edges
	require.True(t, ok)
	assert.Equal(t, []seg{
		{span(date(2025, time.March, 15), date(2025, time.April, 30)), "1000.00", payment.SegmentNew},
		{span(date(2025, time.May, 1), date(2025, time.June, 14)), "2000.00", payment.SegmentNew},
	}, segsOf(shrunk))
}

func TestShrinkTo_MatchesReconstructionOfRestrictedLines(t *testing.T) {
	// GIVEN: Overlapping New lines
	b := newChain()
	b.New(months(2025, time.January, time.December), "1000")
	b.New(months(2025, time.April, time.September), "1500")
	b.New(months(2025, time.August, time.October), "1200")
	window := months(2025, time.June, time.November)

	// WHEN: Shrinking the full reconstruction, and reconstructing lines
	// whose periods were cut to the window first
	shrunk, ok := payment.ShrinkTo(payment.Reconstruct(b.Chain()), window)
	require.True(t, ok)

	restricted := newChain()
	for _, l := range b.Chain() {
		n := l.(*payment.NewLine)
		p, _ := n.Period.Intersect(window)
		restricted.New(p, n.Amount.String())
	}

	// THEN: Both views agree
	assert.True(t, payment.Equivalent(shrunk, payment.Reconstruct(restricted.Chain())))
}

func TestClipSegments_NoOverlap_EmptyNonNil(t *testing.T) {
	b := newChain()
	b.New(months(2025, time.January, time.March), "1000")

	clipped := payment.ClipSegments(payment.Reconstruct(b.Chain()).Segments, months(2025, time.May, time.June))
	assert.NotNil(t, clipped)
	assert.Empty(t, clipped)
}

func TestClipSegments_DoesNotMutateInput(t *testing.T) {
	b := newChain()
	b.New(months(2025, time.January, time.December), "1000")
	segments := payment.Reconstruct(b.Chain()).Segments

	clipped := payment.ClipSegments(segments, months(2025, time.March, time.March))

	require.Len(t, clipped, 1)
	assert.Equal(t, months(2025, time.March, time.March), clipped[0].Period)
	assert.Equal(t, months(2025, time.January, time.December), segments[0].Period)
}
