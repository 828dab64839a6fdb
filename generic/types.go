/*
Package generic provides the domain-agnostic building blocks of the ledger.

PURPOSE:
  The payment ledger reasons about dates, inclusive periods and money. None of
  these know anything about payment lines, chains or cases; they live here so
  the payment package can stay focused on its invariants.

KEY CONCEPTS:
  - TimePoint: A calendar date (time.go)
  - Period:    An inclusive date range with set operations (period.go)
  - Amount:    A monetary amount backed by decimal.Decimal (this file)
  - Clock:     Source of "now" for effective-date computations (clock.go)

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors
  2. Value types: Everything here is immutable and safe to share between goroutines

SEE ALSO:
  - payment/types.go: Payment lines built from these types
*/
package generic

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Monetary amount
// =============================================================================

// Amount is a monetary amount. The ledger never does currency arithmetic
// beyond comparisons, so no currency is attached.
type Amount struct {
	Value decimal.Decimal
}

func NewAmount(value int64) Amount {
	return Amount{Value: decimal.NewFromInt(value)}
}

// ParseAmount parses a decimal string such as "1250.50". Amounts carry at
// most two decimals so that String and MarshalText never round.
func ParseAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if !d.Equal(d.Round(2)) {
		return Amount{}, fmt.Errorf("invalid amount %q: more than two decimals", s)
	}
	return Amount{Value: d}, nil
}

func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

func ZeroAmount() Amount { return Amount{Value: decimal.Zero} }

func (a Amount) Add(b Amount) Amount       { return Amount{Value: a.Value.Add(b.Value)} }
func (a Amount) Sub(b Amount) Amount       { return Amount{Value: a.Value.Sub(b.Value)} }
func (a Amount) IsNegative() bool          { return a.Value.IsNegative() }
func (a Amount) IsZero() bool              { return a.Value.IsZero() }
func (a Amount) IsPositive() bool          { return a.Value.IsPositive() }
func (a Amount) Equal(b Amount) bool       { return a.Value.Equal(b.Value) }
func (a Amount) GreaterThan(b Amount) bool { return a.Value.GreaterThan(b.Value) }
func (a Amount) String() string            { return a.Value.StringFixed(2) }

// MarshalText keeps amounts exact on the wire ("1000.00", never a float).
func (a Amount) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Amount) UnmarshalText(b []byte) error {
	parsed, err := ParseAmount(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
