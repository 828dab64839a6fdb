/*
validate.go - Structural invariants of a payment chain

INVARIANTS (always true of an accepted chain):
  1. The first line by order token is a New without a previous-line id.
  2. Order tokens are unique and form the contiguous range 0..n-1.
  3. Every New line's previous id is the id of the line with the
     immediately preceding order token. The chain never branches.
  4. All lines sharing an id (a New and its Changes) share its previous id.
     A Change must target an id introduced by an earlier New.
  5. No two distinct ids claim the same previous id.
  6. Terminate is terminal: no Change may follow it on the same id.
  7. Resume only targets a line whose latest fact is a Pause.
  8. Pause only targets a line whose latest fact is a New or a Resume.

  Two Changes with the same id and the same previous id are successive
  edits of one conceptual line, not a duplicate-id error.

WHEN TO RUN:
  Before every append, against the frozen chain the batch was generated
  from. A violation means a generator produced a bad batch or the stored
  chain is corrupt: the append is rejected as a whole.
*/
package payment

import "fmt"

type lineState struct {
	previous *LineID
	latest   Line
}

// ValidateChain checks invariants 1-8 over lines. The input order does not
// matter; lines are checked in order-token order.
func ValidateChain(lines []Line) error {
	chain := Sorted(lines)
	if len(chain) == 0 {
		return nil
	}

	for i, l := range chain {
		if l.Order() != int64(i) {
			return violation(InvariantOrderTokens, l, "expected order token %d", i)
		}
	}

	first, ok := chain[0].(*NewLine)
	if !ok || first.PreviousID != nil {
		return violation(InvariantFirstLine, chain[0], "first line must be a New line without previous id")
	}

	states := make(map[LineID]*lineState, len(chain))
	claimedBy := make(map[LineID]LineID, len(chain)) // previous id -> line claiming it

	for i, l := range chain {
		switch line := l.(type) {
		case *NewLine:
			if err := checkNewLine(line); err != nil {
				return err
			}
			if _, exists := states[line.ID]; exists {
				return violation(InvariantSharedPrevious, line, "id already introduced by an earlier New line")
			}
			if i > 0 {
				want := chain[i-1].LineID()
				if line.PreviousID == nil || *line.PreviousID != want {
					return violation(InvariantLinkedList, line, "previous id must be %s", want)
				}
			}
			if line.PreviousID != nil {
				if other, taken := claimedBy[*line.PreviousID]; taken && other != line.ID {
					return violation(InvariantUniquePrevious, line, "previous id %s already claimed by %s", *line.PreviousID, other)
				}
				claimedBy[*line.PreviousID] = line.ID
			}
			states[line.ID] = &lineState{previous: line.PreviousID, latest: line}

		case *ChangeLine:
			if err := checkChangeLine(line); err != nil {
				return err
			}
			st, exists := states[line.ID]
			if !exists {
				return violation(InvariantSharedPrevious, line, "change targets an unknown line")
			}
			if !samePrevious(st.previous, line.PreviousID) {
				return violation(InvariantSharedPrevious, line, "change must carry the previous id of its target")
			}
			if IsChange(st.latest, ChangeTerminate) {
				return violation(InvariantTerminal, line, "line is terminated")
			}
			switch line.Kind {
			case ChangeResume:
				if !IsChange(st.latest, ChangePause) {
					return violation(InvariantResumeAfterPause, line, "latest fact is not a pause")
				}
			case ChangePause:
				if IsChange(st.latest, ChangePause) {
					return violation(InvariantPauseAfterActive, line, "line is already paused")
				}
			}
			st.latest = line
		}
	}
	return nil
}

// ValidateAppend checks that batch extends chain: it must be non-empty,
// carry contiguous order tokens starting at chain.NextOrder(), and the
// combined chain must satisfy every invariant.
func ValidateAppend(chain Chain, batch []Line) error {
	if len(batch) == 0 {
		return ErrEmptyBatch
	}
	next := chain.NextOrder()
	for i, l := range batch {
		if l.Order() != next+int64(i) {
			return violation(InvariantOrderTokens, l, "batch line must carry order token %d", next+int64(i))
		}
	}
	return ValidateChain(chain.Append(batch...))
}

func checkNewLine(l *NewLine) error {
	if err := l.Period.Validate(); err != nil {
		return violation(InvariantWellFormed, l, "%v", err)
	}
	if l.Amount.IsNegative() {
		return violation(InvariantWellFormed, l, "negative amount %s", l.Amount)
	}
	return nil
}

func checkChangeLine(l *ChangeLine) error {
	switch l.Kind {
	case ChangePause, ChangeResume, ChangeTerminate:
	default:
		return violation(InvariantWellFormed, l, "unknown change kind %q", l.Kind)
	}
	if err := l.Period.Validate(); err != nil {
		return violation(InvariantWellFormed, l, "%v", err)
	}
	return nil
}

func violation(inv Invariant, l Line, format string, args ...any) *InvariantError {
	return &InvariantError{
		Invariant:  inv,
		OrderToken: l.Order(),
		LineID:     l.LineID(),
		Detail:     fmt.Sprintf(format, args...),
	}
}
