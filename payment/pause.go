package payment

import "github.com/warp/payment-ledger/generic"

// Pause stops payments from the first day of the month after today until
// the end of the coverage that is not terminated. The target is the line of
// the chain's last fact.
type Pause struct{}

func (Pause) Intent() Intent { return IntentPause }

func (Pause) Generate(req Request) (*Batch, error) {
	last, ok := req.Chain.Last()
	if !ok {
		return nil, refuse(req, IntentPause, ErrEmptyChain, "")
	}
	switch {
	case IsChange(last, ChangePause):
		return nil, refuse(req, IntentPause, ErrAlreadyPaused, "line %s", last.LineID())
	case IsChange(last, ChangeTerminate):
		return nil, refuse(req, IntentPause, ErrTerminated, "line %s", last.LineID())
	}

	from := generic.FirstOfNextMonth(req.today())
	end, ok := Reconstruct(req.Chain).ActiveEnd()
	if !ok || end.Before(from) {
		return nil, refuse(req, IntentPause, ErrNothingToPause, "payments end %s, pause would start %s", end, from)
	}

	line := change(req, last, ChangePause, generic.Period{Start: from, End: end})
	return newBatch(req, IntentPause, []Line{line}), nil
}
