package payment

import "github.com/warp/payment-ledger/generic"

// =============================================================================
// COMPARISON AND CLIPPING
// =============================================================================
//
// Used to detect drift between two versions of a case's payment history,
// e.g. the timeline before and after a recalculation. Only periods and
// amounts matter; ids, order tokens and kind tags are ignored.

// Equivalent is true iff a and b have identical (period, amount) sequences.
func Equivalent(a, b Timeline) bool {
	return sameSegments(a.Segments, b.Segments)
}

// EquivalentWithin compares a and b after clipping both to p. Returns false
// if either clipped timeline is empty.
func EquivalentWithin(a, b Timeline, p generic.Period) bool {
	ca := ClipSegments(a.Segments, p)
	cb := ClipSegments(b.Segments, p)
	if len(ca) == 0 || len(cb) == 0 {
		return false
	}
	return sameSegments(ca, cb)
}

// ShrinkTo restricts t to p, truncating boundary segments. The second
// result is false only when p does not intersect t's covering period; a
// p that falls into a gap inside the covering period yields an empty
// timeline and true.
func ShrinkTo(t Timeline, p generic.Period) (Timeline, bool) {
	cover, ok := t.CoveringPeriod()
	if !ok || !cover.Overlaps(p) {
		return Timeline{}, false
	}
	return Timeline{Segments: ClipSegments(t.Segments, p)}, true
}

// ClipSegments truncates partially overlapping segments to p and drops
// disjoint ones. Always returns a list, possibly empty.
func ClipSegments(segments []Segment, p generic.Period) []Segment {
	out := make([]Segment, 0, len(segments))
	for _, s := range segments {
		clipped, ok := s.Period.Intersect(p)
		if !ok {
			continue
		}
		s.Period = clipped
		out = append(out, s)
	}
	return out
}

func sameSegments(a, b []Segment) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Period.Equal(b[i].Period) || !a[i].Amount.Equal(b[i].Amount) {
			return false
		}
	}
	return true
}
