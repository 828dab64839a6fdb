/*
Package factory converts benefit schedules into Grant input.

PURPOSE:
  The benefit-calculation collaborator hands over its result as a document
  of (period, amount) pairs. The factory parses that document into
  []payment.ScheduleEntry for the Grant strategy. Amount arithmetic stays
  with the collaborator; this package only parses and checks shape.

FORMAT (YAML or JSON; JSON is parsed as YAML):
  entries:
    - from: 2025-01-01
      to: 2025-04-30
      amount: "1000.00"
      disability_grade: 50
    - from: 2025-05-01
      to: 2025-12-31
      amount: "2000.00"
      metadata:
        basis: recalculated

  A bare list of entries is accepted as well.

USAGE:
  f := factory.NewScheduleFactory()
  entries, err := f.ParseFile("schedule.yaml")
  batch, err := svc.Apply(ctx, caseID, actor, payment.Grant{Schedule: entries})

SEE ALSO:
  - payment/grant.go: Consumes the entries
*/
package factory

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/warp/payment-ledger/generic"
	"github.com/warp/payment-ledger/payment"
)

// =============================================================================
// SCHEMA TYPES
// =============================================================================

// ScheduleJSON is the document form of a benefit schedule.
type ScheduleJSON struct {
	Entries []EntryJSON `json:"entries" yaml:"entries"`
}

// EntryJSON is one (period, amount) pair. Dates are YYYY-MM-DD, amounts are
// decimal strings or numbers.
type EntryJSON struct {
	From            string            `json:"from" yaml:"from"`
	To              string            `json:"to" yaml:"to"`
	Amount          json.Number       `json:"amount" yaml:"amount"`
	DisabilityGrade int               `json:"disability_grade,omitempty" yaml:"disability_grade,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// =============================================================================
// FACTORY
// =============================================================================

type ScheduleFactory struct{}

func NewScheduleFactory() *ScheduleFactory {
	return &ScheduleFactory{}
}

// ParseFile reads and parses a schedule document.
func (f *ScheduleFactory) ParseFile(path string) ([]payment.ScheduleEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schedule: %w", err)
	}
	return f.Parse(data)
}

// Parse accepts a YAML or JSON document, either an object with "entries"
// or a bare list.
func (f *ScheduleFactory) Parse(data []byte) ([]payment.ScheduleEntry, error) {
	var doc ScheduleJSON
	if err := yaml.Unmarshal(data, &doc); err != nil {
		var list []EntryJSON
		if listErr := yaml.Unmarshal(data, &list); listErr != nil {
			return nil, fmt.Errorf("invalid schedule: %w", err)
		}
		doc.Entries = list
	}
	return f.FromJSON(doc)
}

// FromJSON converts the document form into schedule entries.
func (f *ScheduleFactory) FromJSON(doc ScheduleJSON) ([]payment.ScheduleEntry, error) {
	entries := make([]payment.ScheduleEntry, 0, len(doc.Entries))
	for i, ej := range doc.Entries {
		e, err := parseEntry(ej)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func parseEntry(ej EntryJSON) (payment.ScheduleEntry, error) {
	from, err := generic.ParseTimePoint(ej.From)
	if err != nil {
		return payment.ScheduleEntry{}, fmt.Errorf("from: %w", err)
	}
	to, err := generic.ParseTimePoint(ej.To)
	if err != nil {
		return payment.ScheduleEntry{}, fmt.Errorf("to: %w", err)
	}
	period, err := generic.NewPeriod(from, to)
	if err != nil {
		return payment.ScheduleEntry{}, err
	}
	amount, err := generic.ParseAmount(ej.Amount.String())
	if err != nil {
		return payment.ScheduleEntry{}, fmt.Errorf("amount: %w", err)
	}
	return payment.ScheduleEntry{
		Period: period,
		Amount: amount,
		Attributes: payment.Attributes{
			DisabilityGrade: ej.DisabilityGrade,
			Metadata:        ej.Metadata,
		},
	}, nil
}
