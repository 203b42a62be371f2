/*
handlers.go - HTTP API handlers for the point engine

PURPOSE:
  Thin adapter over point.Engine: parse the request, call the engine,
  serialize the response. No business rules live here.

REQUEST FLOW:
  1. Parse {id} from the path (integer user id)
  2. Parse the body (charge/use: raw JSON integer)
  3. Call the engine
  4. Serialize response / map error to status

ERROR HANDLING:
  Errors are returned as JSON ErrorResponse with:
  - 400: Malformed id/body, negative amount
  - 404: Unknown user (only if a not-found policy is ever used)
  - 409: Insufficient balance
  - 422: Balance ceiling exceeded
  - 429: Busy (try-lock policy), with Retry-After
  - 500: Internal errors

SEE ALSO:
  - dto.go: Response shapes
  - server.go: Router setup and middleware
  - scenarios.go: Demo scenario handlers
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/warp/point-engine/point"
)

// maxBodyBytes bounds charge/use bodies; a raw integer needs far less.
const maxBodyBytes = 1 << 10

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine *point.Engine

	// Store is reset before a demo scenario loads. Nil skips the reset.
	Store Resetter

	scenario scenarioState
}

// NewHandler creates a new handler around the engine.
func NewHandler(engine *point.Engine) *Handler {
	return &Handler{Engine: engine}
}

// =============================================================================
// QUERY HANDLERS
// =============================================================================

// GetPoint returns the current balance.
// GET /point/{id}
func (h *Handler) GetPoint(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseUserID(w, r)
	if !ok {
		return
	}

	acct, err := h.Engine.GetBalance(r.Context(), userID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserPointDTO(acct))
}

// GetHistories returns accepted charges/uses, oldest first.
// GET /point/{id}/histories
func (h *Handler) GetHistories(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseUserID(w, r)
	if !ok {
		return
	}

	entries, err := h.Engine.GetHistory(r.Context(), userID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toHistoryDTOs(entries))
}

// GetFailures returns rejected charges/uses, oldest first.
// GET /point/{id}/failures
func (h *Handler) GetFailures(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseUserID(w, r)
	if !ok {
		return
	}

	events, err := h.Engine.GetFailedEvents(r.Context(), userID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toFailedEventDTOs(events))
}

// =============================================================================
// MUTATION HANDLERS
// =============================================================================

// Charge adds points.
// PATCH /point/{id}/charge
func (h *Handler) Charge(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, point.TxCharge)
}

// Use spends points.
// PATCH /point/{id}/use
func (h *Handler) Use(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, point.TxUse)
}

func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, op point.TxType) {
	userID, ok := parseUserID(w, r)
	if !ok {
		return
	}
	amount, err := parseAmount(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount body (expected an integer)", err)
		return
	}

	var acct point.Account
	switch op {
	case point.TxCharge:
		acct, err = h.Engine.Charge(r.Context(), userID, amount)
	case point.TxUse:
		acct, err = h.Engine.Use(r.Context(), userID, amount)
	}
	if err != nil {
		writeEngineError(w, err)
		return
	}

	log.Printf("[API] %s user=%d amount=%d balance=%d", op, userID, amount, acct.Balance)
	writeJSON(w, http.StatusOK, toUserPointDTO(acct))
}

// Health reports liveness.
// GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func parseUserID(w http.ResponseWriter, r *http.Request) (point.UserID, bool) {
	raw := chi.URLParam(r, "id")
	userID, err := point.ParseUserID(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid user id %q", raw), err)
		return 0, false
	}
	return userID, true
}

// parseAmount reads a raw JSON integer body such as `1000`.
func parseAmount(r *http.Request) (int64, error) {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.UseNumber()

	var n json.Number
	if err := dec.Decode(&n); err != nil {
		return 0, err
	}
	if dec.More() {
		return 0, errors.New("unexpected data after amount")
	}
	return n.Int64()
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, point.ErrBusy):
		return http.StatusTooManyRequests
	case errors.Is(err, point.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, point.ErrInsufficientBalance):
		return http.StatusConflict
	case errors.Is(err, point.ErrCeilingExceeded):
		return http.StatusUnprocessableEntity
	case point.IsNotFound(err):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeEngineError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	switch {
	case point.IsRetryable(err):
		w.Header().Set("Retry-After", "1")
		writeError(w, status, point.ErrBusy.Error(), err)
	case status == http.StatusInternalServerError:
		log.Printf("[API] internal error: %v", err)
		writeError(w, status, "Internal error", err)
	default:
		writeError(w, status, err.Error(), nil)
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
