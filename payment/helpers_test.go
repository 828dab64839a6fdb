package payment_test

import (
	"time"

	"github.com/warp/payment-ledger/generic"
	"github.com/warp/payment-ledger/payment"
)

// =============================================================================
// TEST INFRASTRUCTURE
// =============================================================================

var (
	testNow   = time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC)
	testClock = generic.FixedClock{At: testNow}
)

func date(year int, month time.Month, day int) generic.TimePoint {
	return generic.NewTimePoint(year, month, day)
}

// months covers whole months from..to of one year.
func months(year int, from, to time.Month) generic.Period {
	return generic.Period{
		Start: generic.StartOfMonth(year, from),
		End:   generic.EndOfMonth(year, to),
	}
}

func span(from, to generic.TimePoint) generic.Period {
	return generic.Period{Start: from, End: to}
}

func amt(s string) generic.Amount {
	return generic.MustParseAmount(s)
}

// chainBuilder appends well-linked lines with contiguous order tokens.
type chainBuilder struct {
	lines    payment.Chain
	previous map[payment.LineID]*payment.LineID
}

func newChain() *chainBuilder {
	return &chainBuilder{previous: make(map[payment.LineID]*payment.LineID)}
}

// New appends a New line linked to the current last line.
func (b *chainBuilder) New(p generic.Period, amount string) payment.LineID {
	var prev *payment.LineID
	if last, ok := b.lines.Last(); ok {
		id := last.LineID()
		prev = &id
	}
	line := &payment.NewLine{
		ID:         payment.NewLineID(),
		OrderToken: b.lines.NextOrder(),
		CreatedAt:  testNow,
		Period:     p,
		Amount:     amt(amount),
		PreviousID: prev,
	}
	b.lines = b.lines.Append(line)
	b.previous[line.ID] = prev
	return line.ID
}

// Change appends a Change line on id, inheriting its previous id.
func (b *chainBuilder) Change(id payment.LineID, kind payment.ChangeKind, p generic.Period) *chainBuilder {
	b.lines = b.lines.Append(&payment.ChangeLine{
		ID:         id,
		OrderToken: b.lines.NextOrder(),
		CreatedAt:  testNow,
		PreviousID: b.previous[id],
		Kind:       kind,
		Period:     p,
	})
	return b
}

func (b *chainBuilder) Chain() payment.Chain { return b.lines }

// seg is a compact expectation of a timeline segment.
type seg struct {
	period generic.Period
	amount string
	kind   payment.SegmentKind
}

func segsOf(t payment.Timeline) []seg {
	out := make([]seg, 0, len(t.Segments))
	for _, s := range t.Segments {
		out = append(out, seg{period: s.Period, amount: s.Amount.String(), kind: s.Kind})
	}
	return out
}

func request(chain payment.Chain) payment.Request {
	return payment.Request{CaseID: "case-1", Chain: chain, Actor: "caseworker", Clock: testClock}
}
