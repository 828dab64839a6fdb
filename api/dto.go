/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the payment model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Chain:      LineDTO
  Batches:    BatchDTO, SimulationResponse
  Timeline:   SegmentDTO, TimelineResponse
  Strategies: GrantRequest, PauseRequest, ResumeRequest, TerminateRequest
  Lifecycle:  ReceiptRequest
  Drift:      CompareRequest, CompareResponse

VALIDATION:
  Validation is done in handlers and strategies, not in DTOs.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/schedule.go: EntryJSON type
*/
package api

import (
	"time"

	"github.com/warp/payment-ledger/factory"
	"github.com/warp/payment-ledger/payment"
)

// =============================================================================
// CHAIN
// =============================================================================

// LineDTO is one chain record. Amount and Attributes are set for New lines only.
type LineDTO struct {
	OrderToken int64               `json:"order_token"`
	ID         string              `json:"id"`
	Type       string              `json:"type"` // "new", "pause", "resume", "terminate"
	PreviousID *string             `json:"previous_id,omitempty"`
	From       string              `json:"from"`
	To         string              `json:"to"`
	Amount     *string             `json:"amount,omitempty"`
	Attributes *payment.Attributes `json:"attributes,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
}

// BatchDTO is a batch with its lines. IDs are strings so JavaScript clients
// keep all 64 bits.
type BatchDTO struct {
	ID        string    `json:"id,omitempty"`
	CaseID    string    `json:"case_id"`
	Intent    string    `json:"intent"`
	Status    string    `json:"status"`
	Actor     string    `json:"actor"`
	Lines     []LineDTO `json:"lines"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// =============================================================================
// TIMELINE
// =============================================================================

type SegmentDTO struct {
	From       string `json:"from"`
	To         string `json:"to"`
	Amount     string `json:"amount"`
	Kind       string `json:"kind"`
	LineID     string `json:"line_id"`
	OrderToken int64  `json:"order_token"`
}

type TimelineResponse struct {
	CaseID   string       `json:"case_id"`
	Segments []SegmentDTO `json:"segments"`
}

// SimulationResponse shows what a batch would do without appending it.
type SimulationResponse struct {
	Batch  BatchDTO     `json:"batch"`
	Before []SegmentDTO `json:"before"`
	After  []SegmentDTO `json:"after"`
}

// =============================================================================
// STRATEGY REQUESTS
// =============================================================================

type GrantRequest struct {
	Actor   string              `json:"actor"`
	Entries []factory.EntryJSON `json:"entries"`
}

type PauseRequest struct {
	Actor string `json:"actor"`
}

type ResumeRequest struct {
	Actor string `json:"actor"`
	From  string `json:"from,omitempty"` // YYYY-MM-DD, defaults to the first paused day
}

type TerminateRequest struct {
	Actor string `json:"actor"`
	Date  string `json:"date"` // YYYY-MM-DD, first or last day of a month
}

// ReceiptRequest reports the disbursement system's verdict on a batch.
type ReceiptRequest struct {
	OK bool `json:"ok"`
}

// =============================================================================
// COMPARISON
// =============================================================================

// CompareRequest compares two cases, optionally within [From, To].
type CompareRequest struct {
	Left  string `json:"left"`
	Right string `json:"right"`
	From  string `json:"from,omitempty"`
	To    string `json:"to,omitempty"`
}

type CompareResponse struct {
	Equivalent bool         `json:"equivalent"`
	Left       []SegmentDTO `json:"left"`
	Right      []SegmentDTO `json:"right"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toLineDTO(l payment.Line) LineDTO {
	dto := LineDTO{
		OrderToken: l.Order(),
		ID:         l.LineID().String(),
		CreatedAt:  l.Created(),
	}
	if prev := l.Previous(); prev != nil {
		s := prev.String()
		dto.PreviousID = &s
	}
	switch line := l.(type) {
	case *payment.NewLine:
		amount := line.Amount.String()
		attrs := line.Attributes
		dto.Type = "new"
		dto.From, dto.To = line.Period.Start.String(), line.Period.End.String()
		dto.Amount = &amount
		dto.Attributes = &attrs
	case *payment.ChangeLine:
		dto.Type = string(line.Kind)
		dto.From, dto.To = line.Period.Start.String(), line.Period.End.String()
	}
	return dto
}

func toLineDTOs(lines []payment.Line) []LineDTO {
	result := make([]LineDTO, 0, len(lines))
	for _, l := range lines {
		result = append(result, toLineDTO(l))
	}
	return result
}

func toBatchDTO(b *payment.Batch) BatchDTO {
	dto := BatchDTO{
		CaseID:    string(b.CaseID),
		Intent:    string(b.Intent),
		Status:    string(b.Status),
		Actor:     b.Actor,
		Lines:     toLineDTOs(b.Lines),
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
	if b.ID != 0 {
		dto.ID = b.ID.String()
	}
	return dto
}

func toSegmentDTOs(segments []payment.Segment) []SegmentDTO {
	result := make([]SegmentDTO, 0, len(segments))
	for _, s := range segments {
		result = append(result, SegmentDTO{
			From:       s.Period.Start.String(),
			To:         s.Period.End.String(),
			Amount:     s.Amount.String(),
			Kind:       string(s.Kind),
			LineID:     s.LineID.String(),
			OrderToken: s.OrderToken,
		})
	}
	return result
}
