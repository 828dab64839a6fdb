package payment

import (
	"sort"

	"github.com/warp/payment-ledger/generic"
)

// =============================================================================
// GRANT - New lines from a computed benefit schedule
// =============================================================================

// ScheduleEntry is one (period, amount) pair from the benefit calculation.
type ScheduleEntry struct {
	Period     generic.Period `json:"period" yaml:"period"`
	Amount     generic.Amount `json:"amount" yaml:"amount"`
	Attributes Attributes     `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// Grant emits one New line per contiguous run of entries with equal amount
// and attributes. The first line links to the chain's last line; each later
// line links to the one before it.
//
//	Jan-Mar 1000, Apr 1000, May-Dec 2000  ->  New(Jan-Apr 1000), New(May-Dec 2000)
type Grant struct {
	Schedule []ScheduleEntry
}

func (Grant) Intent() Intent { return IntentGrant }

func (g Grant) Generate(req Request) (*Batch, error) {
	if len(g.Schedule) == 0 {
		return nil, refuse(req, IntentGrant, ErrEmptySchedule, "")
	}

	entries := make([]ScheduleEntry, len(g.Schedule))
	copy(entries, g.Schedule)
	for _, e := range entries {
		if err := e.Period.Validate(); err != nil || !e.Period.IsWholeMonths() {
			return nil, refuse(req, IntentGrant, ErrNotWholeMonths, "%s", e.Period)
		}
		if e.Amount.IsNegative() {
			return nil, refuse(req, IntentGrant, ErrNegativeAmount, "%s at %s", e.Amount, e.Period)
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Period.Start.Before(entries[j].Period.Start)
	})
	for i := 1; i < len(entries); i++ {
		if entries[i-1].Period.Overlaps(entries[i].Period) {
			return nil, refuse(req, IntentGrant, ErrOverlappingSchedule, "%s and %s", entries[i-1].Period, entries[i].Period)
		}
	}

	runs := mergeRuns(entries)

	var previous *LineID
	if last, ok := req.Chain.Last(); ok {
		previous = idPtr(last.LineID())
	}
	next := req.Chain.NextOrder()
	now := req.now()

	lines := make([]Line, 0, len(runs))
	for i, run := range runs {
		line := &NewLine{
			ID:         NewLineID(),
			OrderToken: next + int64(i),
			CreatedAt:  now,
			Period:     run.Period,
			Amount:     run.Amount,
			PreviousID: previous,
			Attributes: run.Attributes,
		}
		lines = append(lines, line)
		previous = idPtr(line.ID)
	}
	return newBatch(req, IntentGrant, lines), nil
}

// mergeRuns joins back-to-back entries carrying the same amount and
// attributes. Entries must be sorted and non-overlapping.
func mergeRuns(entries []ScheduleEntry) []ScheduleEntry {
	runs := make([]ScheduleEntry, 0, len(entries))
	for _, e := range entries {
		if n := len(runs); n > 0 {
			last := &runs[n-1]
			if last.Period.IsFollowedBy(e.Period) && last.Amount.Equal(e.Amount) && last.Attributes.Equal(e.Attributes) {
				last.Period.End = e.Period.End
				continue
			}
		}
		runs = append(runs, e)
	}
	return runs
}
