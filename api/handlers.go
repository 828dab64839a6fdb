/*
handlers.go - HTTP API handlers for the payment ledger

PURPOSE:
  Exposes payment.Service via REST. Handles HTTP request/response and JSON
  serialization, and delegates everything else to the service.

ENDPOINTS:
  Cases:
    GET    /api/cases/{caseID}/lines          Accepted chain
    GET    /api/cases/{caseID}/timeline       Reconstructed timeline (?from=&to= to clip)
    GET    /api/cases/{caseID}/batches        Batches in chain order

  Strategies (?simulate=true for a dry run):
    POST   /api/cases/{caseID}/grants         Grant a benefit schedule
    POST   /api/cases/{caseID}/pauses         Pause from next month
    POST   /api/cases/{caseID}/resumptions    Resume the latest pause
    POST   /api/cases/{caseID}/terminations   Terminate from a date

  Batches:
    GET    /api/batches/{batchID}             Batch with lines
    POST   /api/batches/{batchID}/submit      Mark handed to disbursement
    POST   /api/batches/{batchID}/receipt     Record disbursement receipt

  Drift:
    POST   /api/compare                       Compare two cases' timelines

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Malformed input
  - 404: Unknown batch
  - 409: Concurrent append, illegal status transition
  - 422: Strategy precondition (nothing to pause, date not in future, ...)
  - 500: Chain invariant violation, internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/warp/payment-ledger/factory"
	"github.com/warp/payment-ledger/generic"
	"github.com/warp/payment-ledger/payment"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service   *payment.Service
	Schedules *factory.ScheduleFactory
	log       *zap.Logger
}

// NewHandler creates a new handler over the given service.
func NewHandler(svc *payment.Service, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		Service:   svc,
		Schedules: factory.NewScheduleFactory(),
		log:       log.Named("api"),
	}
}

// =============================================================================
// CASE ENDPOINTS
// =============================================================================

// GetLines returns the accepted chain of a case.
func (h *Handler) GetLines(w http.ResponseWriter, r *http.Request) {
	caseID := payment.CaseID(chi.URLParam(r, "caseID"))

	chain, err := h.Service.Chain(r.Context(), caseID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLineDTOs(chain))
}

// GetTimeline returns the reconstructed timeline, clipped to ?from=&to= if given.
func (h *Handler) GetTimeline(w http.ResponseWriter, r *http.Request) {
	caseID := payment.CaseID(chi.URLParam(r, "caseID"))

	window, err := parseWindow(r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid window", err)
		return
	}

	timeline, err := h.Service.Timeline(r.Context(), caseID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if window != nil {
		timeline, _ = payment.ShrinkTo(timeline, *window)
	}
	writeJSON(w, http.StatusOK, TimelineResponse{
		CaseID:   string(caseID),
		Segments: toSegmentDTOs(timeline.Segments),
	})
}

// ListBatches returns all batches of a case.
func (h *Handler) ListBatches(w http.ResponseWriter, r *http.Request) {
	caseID := payment.CaseID(chi.URLParam(r, "caseID"))

	batches, err := h.Service.Batches(r.Context(), caseID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	result := make([]BatchDTO, 0, len(batches))
	for _, b := range batches {
		result = append(result, toBatchDTO(b))
	}
	writeJSON(w, http.StatusOK, result)
}

// =============================================================================
// STRATEGY ENDPOINTS
// =============================================================================

// Grant appends New lines for a benefit schedule.
func (h *Handler) Grant(w http.ResponseWriter, r *http.Request) {
	var req GrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	entries, err := h.Schedules.FromJSON(factory.ScheduleJSON{Entries: req.Entries})
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid schedule", err)
		return
	}
	h.apply(w, r, req.Actor, payment.Grant{Schedule: entries})
}

// Pause pauses payments from the first of next month.
func (h *Handler) Pause(w http.ResponseWriter, r *http.Request) {
	var req PauseRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	h.apply(w, r, req.Actor, payment.Pause{})
}

// Resume undoes the latest pause.
func (h *Handler) Resume(w http.ResponseWriter, r *http.Request) {
	var req ResumeRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	strategy := payment.Resume{}
	if req.From != "" {
		from, err := generic.ParseTimePoint(req.From)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid from date", err)
			return
		}
		strategy.From = &from
	}
	h.apply(w, r, req.Actor, strategy)
}

// Terminate voids payments after a month-boundary date.
func (h *Handler) Terminate(w http.ResponseWriter, r *http.Request) {
	var req TerminateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	date, err := generic.ParseTimePoint(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date", err)
		return
	}
	h.apply(w, r, req.Actor, payment.Terminate{Date: date})
}

// apply runs the strategy for real, or as a dry run with ?simulate=true.
func (h *Handler) apply(w http.ResponseWriter, r *http.Request, actor string, strategy payment.Strategy) {
	caseID := payment.CaseID(chi.URLParam(r, "caseID"))

	simulate, _ := strconv.ParseBool(r.URL.Query().Get("simulate"))
	if simulate {
		sim, err := h.Service.Simulate(r.Context(), caseID, actor, strategy)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, SimulationResponse{
			Batch:  toBatchDTO(sim.Batch),
			Before: toSegmentDTOs(sim.Before.Segments),
			After:  toSegmentDTOs(sim.After.Segments),
		})
		return
	}

	batch, err := h.Service.Apply(r.Context(), caseID, actor, strategy)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBatchDTO(batch))
}

// =============================================================================
// BATCH ENDPOINTS
// =============================================================================

// GetBatch returns one batch.
func (h *Handler) GetBatch(w http.ResponseWriter, r *http.Request) {
	id, err := snowflake.ParseString(chi.URLParam(r, "batchID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid batch id", err)
		return
	}
	batch, err := h.Service.Batch(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBatchDTO(batch))
}

// SubmitBatch marks a batch as handed to the disbursement system.
func (h *Handler) SubmitBatch(w http.ResponseWriter, r *http.Request) {
	id, err := snowflake.ParseString(chi.URLParam(r, "batchID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid batch id", err)
		return
	}
	batch, err := h.Service.MarkSubmitted(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBatchDTO(batch))
}

// RecordReceipt settles a submitted batch.
func (h *Handler) RecordReceipt(w http.ResponseWriter, r *http.Request) {
	id, err := snowflake.ParseString(chi.URLParam(r, "batchID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid batch id", err)
		return
	}
	var req ReceiptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	batch, err := h.Service.RecordReceipt(r.Context(), id, req.OK)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBatchDTO(batch))
}

// =============================================================================
// COMPARISON
// =============================================================================

// Compare reports whether two cases' timelines match.
func (h *Handler) Compare(w http.ResponseWriter, r *http.Request) {
	var req CompareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Left == "" || req.Right == "" {
		writeError(w, http.StatusBadRequest, "left and right are required", nil)
		return
	}
	window, err := parseWindow(req.From, req.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid window", err)
		return
	}

	cmp, err := h.Service.Compare(r.Context(), payment.CaseID(req.Left), payment.CaseID(req.Right), window)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CompareResponse{
		Equivalent: cmp.Equivalent,
		Left:       toSegmentDTOs(cmp.Left.Segments),
		Right:      toSegmentDTOs(cmp.Right.Segments),
	})
}

// =============================================================================
// HELPERS
// =============================================================================

// parseWindow returns nil when both bounds are empty.
func parseWindow(from, to string) (*generic.Period, error) {
	if from == "" && to == "" {
		return nil, nil
	}
	start, err := generic.ParseTimePoint(from)
	if err != nil {
		return nil, err
	}
	end, err := generic.ParseTimePoint(to)
	if err != nil {
		return nil, err
	}
	p, err := generic.NewPeriod(start, end)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// decodeOptional decodes a JSON body if one was sent.
func decodeOptional(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	var pe *payment.PreconditionError
	switch {
	case errors.As(err, &pe):
		writeError(w, http.StatusUnprocessableEntity, pe.Err.Error(), err)
	case payment.IsInvariantViolation(err):
		h.log.Error("invariant violation", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "chain invariant violated", err)
	case errors.Is(err, payment.ErrInvalidStatusTransition):
		writeError(w, http.StatusConflict, "invalid status transition", err)
	case generic.IsRetryable(err):
		writeError(w, http.StatusConflict, "concurrent modification", err)
	case generic.IsNotFound(err):
		writeError(w, http.StatusNotFound, "not found", err)
	default:
		h.log.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
