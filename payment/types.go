/*
Package payment implements the payment-instruction ledger of a case.

PURPOSE:
  Records changes to a recipient's recurring payment schedule (grants,
  pauses, resumptions, terminations) as an append-only, causally ordered
  chain of payment lines, and reconstructs from that chain a flat,
  non-overlapping timeline of what is in effect at any date.

KEY CONCEPTS IN THIS FILE (types.go):
  - Line:       Sealed sum type, either a NewLine or a ChangeLine
  - NewLine:    Establishes a payment instruction for a period and amount
  - ChangeLine: Pauses, resumes or terminates an existing line from a date on
  - Chain:      All lines of one case, sorted by order token

CAUSAL ORDER:
  Every line carries an order token: a per-case integer starting at 0,
  contiguous and strictly increasing. It is the only notion of "happened
  after" the ledger uses; created-at timestamps are informational because
  several lines are minted within the same instant.

  New lines also point at their predecessor (PreviousID). The chain is a
  single linked list: no two lines may claim the same predecessor.

    order 0   New  A  prev=nil
    order 1   New  B  prev=A
    order 2   Pause B prev=A      <- same id and previous as its target
    order 3   Resume B prev=A

SEE ALSO:
  - validate.go: Structural invariants of an accepted chain
  - timeline.go: Reconstruction of the effective timeline
  - strategy.go: Generators that extend the chain
*/
package payment

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/warp/payment-ledger/generic"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

// CaseID identifies the recipient case that owns a chain.
type CaseID string

// LineID identifies a payment line. Change lines reuse the id of their target.
type LineID uuid.UUID

// NewLineID mints a fresh line id.
func NewLineID() LineID { return LineID(uuid.New()) }

// ParseLineID parses the canonical uuid form.
func ParseLineID(s string) (LineID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return LineID{}, err
	}
	return LineID(id), nil
}

func (id LineID) String() string { return uuid.UUID(id).String() }

func (id LineID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *LineID) UnmarshalText(b []byte) error {
	parsed, err := ParseLineID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// =============================================================================
// LINE - Sealed sum type
// =============================================================================

// Line is either a *NewLine or a *ChangeLine. The unexported marker keeps the
// set closed so type switches over lines are exhaustive.
type Line interface {
	LineID() LineID
	Order() int64
	Previous() *LineID
	Created() time.Time

	isLine()
}

// Attributes are carried untouched for downstream consumers.
type Attributes struct {
	DisabilityGrade int               `json:"disability_grade,omitempty" yaml:"disability_grade,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Equal compares grade and metadata.
func (a Attributes) Equal(b Attributes) bool {
	if a.DisabilityGrade != b.DisabilityGrade || len(a.Metadata) != len(b.Metadata) {
		return false
	}
	for k, v := range a.Metadata {
		if other, ok := b.Metadata[k]; !ok || other != v {
			return false
		}
	}
	return true
}

// NewLine establishes a fresh payment instruction.
type NewLine struct {
	ID         LineID
	OrderToken int64
	CreatedAt  time.Time
	Period     generic.Period
	Amount     generic.Amount
	PreviousID *LineID
	Attributes Attributes
}

func (l *NewLine) LineID() LineID     { return l.ID }
func (l *NewLine) Order() int64       { return l.OrderToken }
func (l *NewLine) Previous() *LineID  { return l.PreviousID }
func (l *NewLine) Created() time.Time { return l.CreatedAt }
func (*NewLine) isLine()              {}

// ChangeKind says how a ChangeLine alters its target.
type ChangeKind string

const (
	ChangePause     ChangeKind = "pause"     // zero the amount from an effective date
	ChangeResume    ChangeKind = "resume"    // restore the amount from an effective date
	ChangeTerminate ChangeKind = "terminate" // void a trailing sub-period retroactively
)

// ChangeLine alters the meaning of an existing line from some date onward
// without touching history. ID and PreviousID equal those of the target.
type ChangeLine struct {
	ID         LineID
	OrderToken int64
	CreatedAt  time.Time
	PreviousID *LineID
	Kind       ChangeKind
	Period     generic.Period // effective window the kind applies to
}

func (l *ChangeLine) LineID() LineID     { return l.ID }
func (l *ChangeLine) Order() int64       { return l.OrderToken }
func (l *ChangeLine) Previous() *LineID  { return l.PreviousID }
func (l *ChangeLine) Created() time.Time { return l.CreatedAt }
func (*ChangeLine) isLine()              {}

// Compile-time checks
var (
	_ Line = (*NewLine)(nil)
	_ Line = (*ChangeLine)(nil)
)

// IsChange reports whether l is a ChangeLine of the given kind.
func IsChange(l Line, kind ChangeKind) bool {
	c, ok := l.(*ChangeLine)
	return ok && c.Kind == kind
}

func samePrevious(a, b *LineID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func idPtr(id LineID) *LineID { return &id }

// =============================================================================
// CHAIN - All lines of one case
// =============================================================================

// Chain is the order-token-sorted sequence of lines of one case, spanning all
// of its batches. Accepted chains are never edited, only appended to.
type Chain []Line

// Sorted returns a copy ordered by order token.
func Sorted(lines []Line) Chain {
	out := make(Chain, len(lines))
	copy(out, lines)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order() < out[j].Order() })
	return out
}

// Last returns the line with the highest order token.
func (c Chain) Last() (Line, bool) {
	if len(c) == 0 {
		return nil, false
	}
	return c[len(c)-1], true
}

// NextOrder is the order token the next appended line must carry.
func (c Chain) NextOrder() int64 { return int64(len(c)) }

// Append returns a new chain with lines added after c.
func (c Chain) Append(lines ...Line) Chain {
	out := make(Chain, 0, len(c)+len(lines))
	out = append(out, c...)
	return append(out, lines...)
}

// LatestFact returns the most recent line (New or Change) carrying id.
func (c Chain) LatestFact(id LineID) (Line, bool) {
	for i := len(c) - 1; i >= 0; i-- {
		if c[i].LineID() == id {
			return c[i], true
		}
	}
	return nil, false
}

// NewLineFor returns the New line that introduced id.
func (c Chain) NewLineFor(id LineID) (*NewLine, bool) {
	for _, l := range c {
		if n, ok := l.(*NewLine); ok && n.ID == id {
			return n, true
		}
	}
	return nil, false
}
