package generic

import (
	"fmt"
	"time"
)

// =============================================================================
// TIME POINT - Calendar date (payment periods are day-granular)
// =============================================================================

// TimePoint is a calendar date in UTC. Payment periods never carry a time of day,
// so every TimePoint is normalized to midnight.
type TimePoint struct {
	Time time.Time
}

const dateLayout = "2006-01-02"

// Constructors
func NewTimePoint(year int, month time.Month, day int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date in UTC.
func DateOf(t time.Time) TimePoint {
	u := t.UTC()
	return NewTimePoint(u.Year(), u.Month(), u.Day())
}

// ParseTimePoint parses a YYYY-MM-DD date.
func ParseTimePoint(s string) (TimePoint, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return TimePoint{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD): %w", s, err)
	}
	return DateOf(t), nil
}

// Comparison
func (tp TimePoint) Before(other TimePoint) bool        { return tp.Time.Before(other.Time) }
func (tp TimePoint) Equal(other TimePoint) bool         { return tp.Time.Equal(other.Time) }
func (tp TimePoint) After(other TimePoint) bool         { return tp.Time.After(other.Time) }
func (tp TimePoint) BeforeOrEqual(other TimePoint) bool { return !tp.After(other) }
func (tp TimePoint) AfterOrEqual(other TimePoint) bool  { return !tp.Before(other) }

// Arithmetic
func (tp TimePoint) AddDays(n int) TimePoint   { return TimePoint{Time: tp.Time.AddDate(0, 0, n)} }
func (tp TimePoint) AddMonths(n int) TimePoint { return TimePoint{Time: tp.Time.AddDate(0, n, 0)} }

// Properties
func (tp TimePoint) Year() int         { return tp.Time.Year() }
func (tp TimePoint) Month() time.Month { return tp.Time.Month() }
func (tp TimePoint) Day() int          { return tp.Time.Day() }
func (tp TimePoint) IsZero() bool      { return tp.Time.IsZero() }

// IsFirstOfMonth reports whether the date is the 1st of its month.
func (tp TimePoint) IsFirstOfMonth() bool { return tp.Day() == 1 }

// IsLastOfMonth reports whether the date is the last day of its month.
func (tp TimePoint) IsLastOfMonth() bool { return tp.AddDays(1).Day() == 1 }

// IsMonthBoundary is true on the first or the last day of a month.
func (tp TimePoint) IsMonthBoundary() bool { return tp.IsFirstOfMonth() || tp.IsLastOfMonth() }

func (tp TimePoint) String() string { return tp.Time.Format(dateLayout) }

// MarshalText implements encoding.TextMarshaler so dates travel as YYYY-MM-DD.
func (tp TimePoint) MarshalText() ([]byte, error) { return []byte(tp.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (tp *TimePoint) UnmarshalText(b []byte) error {
	parsed, err := ParseTimePoint(string(b))
	if err != nil {
		return err
	}
	*tp = parsed
	return nil
}

// =============================================================================
// TIME UTILITIES
// =============================================================================

func MinTimePoint(a, b TimePoint) TimePoint {
	if a.Before(b) {
		return a
	}
	return b
}

func MaxTimePoint(a, b TimePoint) TimePoint {
	if a.After(b) {
		return a
	}
	return b
}

func StartOfMonth(year int, month time.Month) TimePoint { return NewTimePoint(year, month, 1) }
func EndOfMonth(year int, month time.Month) TimePoint {
	return StartOfMonth(year, month).AddMonths(1).AddDays(-1)
}

// FirstOfNextMonth returns the 1st of the month following t.
func FirstOfNextMonth(t TimePoint) TimePoint {
	return StartOfMonth(t.Year(), t.Month()).AddMonths(1)
}
