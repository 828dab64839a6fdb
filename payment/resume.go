package payment

import "github.com/warp/payment-ledger/generic"

// Resume undoes the pause that is the chain's last fact. From defaults to
// the first paused day and must lie inside the pause window.
type Resume struct {
	From *generic.TimePoint
}

func (Resume) Intent() Intent { return IntentResume }

func (r Resume) Generate(req Request) (*Batch, error) {
	last, ok := req.Chain.Last()
	if !ok {
		return nil, refuse(req, IntentResume, ErrEmptyChain, "")
	}
	pause, ok := last.(*ChangeLine)
	if !ok || pause.Kind != ChangePause {
		return nil, refuse(req, IntentResume, ErrNotPaused, "")
	}

	from := pause.Period.Start
	if r.From != nil {
		if !pause.Period.Contains(*r.From) {
			return nil, refuse(req, IntentResume, ErrResumeOutsidePause, "%s not in %s", *r.From, pause.Period)
		}
		from = *r.From
	}

	line := change(req, pause, ChangeResume, generic.Period{Start: from, End: pause.Period.End})
	return newBatch(req, IntentResume, []Line{line}), nil
}
