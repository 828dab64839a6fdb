package payment

import "github.com/warp/payment-ledger/generic"

// Terminate voids payments after Date. Date must be in the future and on a
// month boundary:
//
//	Date = Jul 1   ->  void [Jul 1, active end]   (nothing paid from July)
//	Date = Jun 30  ->  void [Jul 1, active end]   (paid through June)
//
// The voided coverage is removed from the timeline, not zeroed.
type Terminate struct {
	Date generic.TimePoint
}

func (Terminate) Intent() Intent { return IntentTerminate }

func (t Terminate) Generate(req Request) (*Batch, error) {
	last, ok := req.Chain.Last()
	if !ok {
		return nil, refuse(req, IntentTerminate, ErrEmptyChain, "")
	}
	if IsChange(last, ChangeTerminate) {
		return nil, refuse(req, IntentTerminate, ErrTerminated, "line %s", last.LineID())
	}
	if today := req.today(); !t.Date.After(today) {
		return nil, refuse(req, IntentTerminate, ErrNotInFuture, "%s is not after %s", t.Date, today)
	}
	if !t.Date.IsMonthBoundary() {
		return nil, refuse(req, IntentTerminate, ErrNotMonthBoundary, "%s", t.Date)
	}

	end, ok := Reconstruct(req.Chain).ActiveEnd()
	start := t.Date
	if !start.IsFirstOfMonth() {
		start = start.AddDays(1)
	}
	if !ok || t.Date.After(end) || start.After(end) {
		return nil, refuse(req, IntentTerminate, ErrAfterLastLine, "payments end %s", end)
	}

	line := change(req, last, ChangeTerminate, generic.Period{Start: start, End: end})
	return newBatch(req, IntentTerminate, []Line{line}), nil
}
