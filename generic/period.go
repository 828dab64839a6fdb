package generic

import "fmt"

// =============================================================================
// PERIOD - Inclusive date range
// =============================================================================

// Period is the inclusive range [Start, End] of calendar dates.
//
// Payment lines cover whole months (Jan 1 - Apr 30), but changes such as
// pauses and terminations cut periods at arbitrary dates, so all set
// operations here are day-granular.
type Period struct {
	Start TimePoint `json:"from" yaml:"from"`
	End   TimePoint `json:"to" yaml:"to"`
}

// NewPeriod builds a period and rejects ranges that end before they start.
func NewPeriod(start, end TimePoint) (Period, error) {
	p := Period{Start: start, End: end}
	if err := p.Validate(); err != nil {
		return Period{}, err
	}
	return p, nil
}

// MonthPeriod covers whole months from the first month to the last month, inclusive.
func MonthPeriod(from, to TimePoint) Period {
	return Period{
		Start: StartOfMonth(from.Year(), from.Month()),
		End:   EndOfMonth(to.Year(), to.Month()),
	}
}

// Validate returns ErrInvalidPeriod if End is before Start.
func (p Period) Validate() error {
	if p.End.Before(p.Start) {
		return fmt.Errorf("%w: %s", ErrInvalidPeriod, p)
	}
	return nil
}

// Contains returns true if the time point is within the period [Start, End]
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

// Covers reports whether other lies entirely inside p.
func (p Period) Covers(other Period) bool {
	return p.Contains(other.Start) && p.Contains(other.End)
}

// Overlaps reports whether the two periods share at least one day.
func (p Period) Overlaps(other Period) bool {
	return p.Start.BeforeOrEqual(other.End) && other.Start.BeforeOrEqual(p.End)
}

// Intersect returns the shared days of both periods.
func (p Period) Intersect(other Period) (Period, bool) {
	if !p.Overlaps(other) {
		return Period{}, false
	}
	return Period{
		Start: MaxTimePoint(p.Start, other.Start),
		End:   MinTimePoint(p.End, other.End),
	}, true
}

// Subtract returns what is left of p after removing other: zero, one or two periods.
func (p Period) Subtract(other Period) []Period {
	if !p.Overlaps(other) {
		return []Period{p}
	}
	var rest []Period
	if p.Start.Before(other.Start) {
		rest = append(rest, Period{Start: p.Start, End: other.Start.AddDays(-1)})
	}
	if other.End.Before(p.End) {
		rest = append(rest, Period{Start: other.End.AddDays(1), End: p.End})
	}
	return rest
}

// IsFollowedBy reports whether next starts the day after p ends.
func (p Period) IsFollowedBy(next Period) bool {
	return p.End.AddDays(1).Equal(next.Start)
}

// IsWholeMonths reports whether the period starts on a 1st and ends on a month's last day.
func (p Period) IsWholeMonths() bool {
	return p.Start.IsFirstOfMonth() && p.End.IsLastOfMonth()
}

// Equal compares both bounds.
func (p Period) Equal(other Period) bool {
	return p.Start.Equal(other.Start) && p.End.Equal(other.End)
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}
