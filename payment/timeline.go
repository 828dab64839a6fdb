/*
timeline.go - Reconstruction of the effective payment timeline

PURPOSE:
  Turns a validated chain into a flat, date-ordered list of disjoint
  segments answering "what is being paid, and when". The timeline is a
  derived view: it is rebuilt from scratch on every call and never stored.

ALGORITHM:
  Lines are replayed strictly by order token over a function-local, sorted
  segment list. Later order tokens override earlier ones for the dates
  they touch, regardless of created-at timestamps.

    New        overwrite [from, to] with the line's amount
    Pause      remember what the window looked like, then zero every
               covered (non-terminated) part of it
    Resume     give back what the undone pause took away, per date, from
               the snapshot remembered at pause time
    Terminate  drop all coverage in the window and leave a zero-amount
               Terminate marker in its place

  Example (amounts per month):

    New  Jan-Apr 1000     |1000|1000|1000|1000|
    New  May-Dec 2000                          |2000|...|2000|
    Pause from Apr        |1000|1000|1000|  0 |  0 |...|  0 |
    Resume from Apr       |1000|1000|1000|1000|2000|...|2000|

  The resumed April keeps 1000 and May-Dec keep 2000 because the amounts
  come from what each date held before the pause, not from the Resume line.

NESTED PAUSES:
  A pause snapshot may itself contain Pause segments. An earlier pause of
  the resumed line is walked through, via that pause's own snapshot, until
  a New or Resume amount is found. Another line's pause stays a zero Pause
  segment unless that line has since resumed the dates in question.
*/
package payment

import (
	"sort"

	"github.com/warp/payment-ledger/generic"
)

// =============================================================================
// SEGMENTS
// =============================================================================

// SegmentKind tags the fact a segment was derived from.
type SegmentKind string

const (
	SegmentNew       SegmentKind = "new"
	SegmentPause     SegmentKind = "pause"
	SegmentResume    SegmentKind = "resume"
	SegmentTerminate SegmentKind = "terminate"
)

// Segment is one disjoint piece of the reconstructed timeline.
type Segment struct {
	Period     generic.Period
	Amount     generic.Amount
	Kind       SegmentKind
	LineID     LineID // id of the chain record the segment was derived from
	OrderToken int64  // order token of that record
}

// Timeline is the reconstruction output: disjoint segments sorted by period.
type Timeline struct {
	Segments []Segment
}

// IsEmpty reports whether the timeline has no segments.
func (t Timeline) IsEmpty() bool { return len(t.Segments) == 0 }

// CoveringPeriod spans from the first segment's start to the last segment's end.
func (t Timeline) CoveringPeriod() (generic.Period, bool) {
	if t.IsEmpty() {
		return generic.Period{}, false
	}
	return generic.Period{
		Start: t.Segments[0].Period.Start,
		End:   t.Segments[len(t.Segments)-1].Period.End,
	}, true
}

// Active drops Terminate markers, leaving the dates that are paid or paused.
func (t Timeline) Active() Timeline {
	out := make([]Segment, 0, len(t.Segments))
	for _, s := range t.Segments {
		if s.Kind != SegmentTerminate {
			out = append(out, s)
		}
	}
	return Timeline{Segments: out}
}

// SegmentAt returns the segment covering date, if any.
func (t Timeline) SegmentAt(date generic.TimePoint) (Segment, bool) {
	i := sort.Search(len(t.Segments), func(i int) bool {
		return t.Segments[i].Period.End.AfterOrEqual(date)
	})
	if i < len(t.Segments) && t.Segments[i].Period.Contains(date) {
		return t.Segments[i], true
	}
	return Segment{}, false
}

// ActiveEnd is the end of the last segment that is paid or paused.
func (t Timeline) ActiveEnd() (generic.TimePoint, bool) {
	for i := len(t.Segments) - 1; i >= 0; i-- {
		if t.Segments[i].Kind != SegmentTerminate {
			return t.Segments[i].Period.End, true
		}
	}
	return generic.TimePoint{}, false
}

// AmountAt returns the amount in effect on date. Terminated and uncovered
// dates report false.
func (t Timeline) AmountAt(date generic.TimePoint) (generic.Amount, bool) {
	s, ok := t.SegmentAt(date)
	if !ok || s.Kind == SegmentTerminate {
		return generic.ZeroAmount(), false
	}
	return s.Amount, true
}

// =============================================================================
// RECONSTRUCTION
// =============================================================================

// Reconstruct replays lines by order token and returns the flat timeline.
// Lines must satisfy ValidateChain; the result is unspecified otherwise.
func Reconstruct(lines []Line) Timeline {
	r := &reconstructor{
		snapshots: make(map[int64][]Segment),
		lastPause: make(map[LineID]int64),
		resumed:   make(map[int64]generic.Period),
	}
	for _, l := range Sorted(lines) {
		switch line := l.(type) {
		case *NewLine:
			r.applyNew(line)
		case *ChangeLine:
			switch line.Kind {
			case ChangePause:
				r.applyPause(line)
			case ChangeResume:
				r.applyResume(line)
			case ChangeTerminate:
				r.applyTerminate(line)
			}
		}
	}
	return Timeline{Segments: r.segments}
}

type reconstructor struct {
	segments  []Segment                // sorted and disjoint at all times
	snapshots map[int64][]Segment      // pause order token -> covered segments before the pause
	lastPause map[LineID]int64         // line id -> order token of its latest pause
	resumed   map[int64]generic.Period // pause order token -> window of the resume that undid it
}

func (r *reconstructor) applyNew(l *NewLine) {
	r.overwrite(l.Period, Segment{
		Period:     l.Period,
		Amount:     l.Amount,
		Kind:       SegmentNew,
		LineID:     l.ID,
		OrderToken: l.OrderToken,
	})
}

func (r *reconstructor) applyPause(l *ChangeLine) {
	var covered []Segment
	for _, s := range ClipSegments(r.segments, l.Period) {
		if s.Kind != SegmentTerminate {
			covered = append(covered, s)
		}
	}
	r.snapshots[l.OrderToken] = covered
	r.lastPause[l.ID] = l.OrderToken

	for _, run := range contiguousRuns(covered) {
		r.overwrite(run, Segment{
			Period:     run,
			Amount:     generic.ZeroAmount(),
			Kind:       SegmentPause,
			LineID:     l.ID,
			OrderToken: l.OrderToken,
		})
	}
}

func (r *reconstructor) applyResume(l *ChangeLine) {
	pauseOrder, ok := r.lastPause[l.ID]
	if !ok {
		return
	}
	delete(r.lastPause, l.ID)
	r.resumed[pauseOrder] = l.Period

	var paused []Segment
	for _, s := range ClipSegments(r.segments, l.Period) {
		if s.Kind == SegmentPause && s.OrderToken == pauseOrder {
			paused = append(paused, s)
		}
	}
	for _, p := range paused {
		restored := r.restore(l.ID, pauseOrder, p.Period)
		for i := range restored {
			if restored[i].Kind == SegmentPause {
				continue
			}
			restored[i].Kind = SegmentResume
			restored[i].LineID = l.ID
			restored[i].OrderToken = l.OrderToken
		}
		r.overwrite(p.Period, restored...)
	}
}

// restore returns what window held right before the pause with the given
// order token. Earlier pauses of line id are resolved down to New or Resume
// amounts. Another line's pause is kept as a Pause segment except where that
// line has resumed it since.
func (r *reconstructor) restore(id LineID, pauseOrder int64, window generic.Period) []Segment {
	var out []Segment
	for _, s := range ClipSegments(r.snapshots[pauseOrder], window) {
		switch {
		case s.Kind != SegmentPause:
			out = append(out, s)
		case s.LineID == id:
			out = append(out, r.restore(id, s.OrderToken, s.Period)...)
		default:
			undone, ok := r.resumed[s.OrderToken]
			if !ok {
				out = append(out, s)
				continue
			}
			for _, rest := range s.Period.Subtract(undone) {
				piece := s
				piece.Period = rest
				out = append(out, piece)
			}
			if inside, ok := s.Period.Intersect(undone); ok {
				out = append(out, r.restore(s.LineID, s.OrderToken, inside)...)
			}
		}
	}
	return out
}

func (r *reconstructor) applyTerminate(l *ChangeLine) {
	r.overwrite(l.Period, Segment{
		Period:     l.Period,
		Amount:     generic.ZeroAmount(),
		Kind:       SegmentTerminate,
		LineID:     l.ID,
		OrderToken: l.OrderToken,
	})
}

// overwrite removes all coverage inside window and inserts replacements,
// which must lie inside window.
func (r *reconstructor) overwrite(window generic.Period, replacements ...Segment) {
	kept := make([]Segment, 0, len(r.segments)+len(replacements)+1)
	for _, s := range r.segments {
		for _, rest := range s.Period.Subtract(window) {
			piece := s
			piece.Period = rest
			kept = append(kept, piece)
		}
	}
	kept = append(kept, replacements...)
	sort.Slice(kept, func(i, j int) bool {
		return kept[i].Period.Start.Before(kept[j].Period.Start)
	})
	r.segments = kept
}

// contiguousRuns merges back-to-back segment periods into single periods.
func contiguousRuns(segments []Segment) []generic.Period {
	var runs []generic.Period
	for _, s := range segments {
		if n := len(runs); n > 0 && runs[n-1].IsFollowedBy(s.Period) {
			runs[n-1].End = s.Period.End
			continue
		}
		runs = append(runs, s.Period)
	}
	return runs
}
