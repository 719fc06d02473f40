package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/arrowlane/fairthrottle/core"
	"github.com/arrowlane/fairthrottle/telemetry"
)

// Handler serves a JSON admission-decision endpoint for callers that
// want to ask "would this key be admitted?" out of band, without going
// through the HTTP middleware (e.g. a non-HTTP RPC server consulting the
// same throttle over a sidecar). Since such a caller can't hold onto a
// Go ThrottleResult between requests, an allowed decision is issued a
// ticket (see tickets.go) that a later POST /decide/{token}/outcome
// redeems to invoke OnSuccess/OnFailure on the same, still-referenced
// ThrottleResult.
type Handler struct {
	throttle core.FairThrottle
	recorder *telemetry.Recorder
	tickets  *ticketStore
}

// NewHandler creates a Handler wrapping throttle. recorder may be nil if
// the caller doesn't want decisions counted.
func NewHandler(throttle core.FairThrottle, recorder *telemetry.Recorder) *Handler {
	return &Handler{throttle: throttle, recorder: recorder, tickets: newTicketStore(defaultTicketTTL)}
}

// StartTicketCleanup starts a background goroutine that periodically
// purges tickets issued by Decide whose outcome was never reported (a
// caller that decided against the downstream call). Call the returned
// function to stop it.
func (h *Handler) StartTicketCleanup(interval time.Duration) func() {
	return h.tickets.startBackgroundCleanup(interval)
}

// DecideRequest is the body of POST /decide.
type DecideRequest struct {
	Key string `json:"key"` // required: the tenant key to check
}

// DecideResponse is the body returned by POST /decide. An allowed
// decision carries the bucket(s) consulted and a Ticket identifying the
// still-live ThrottleResult; report its outcome with a follow-up
// POST /decide/{token}/outcome once the downstream call completes.
type DecideResponse struct {
	Allowed       bool   `json:"allowed"`
	Key           string `json:"key"`
	BucketIndices []int  `json:"bucket_indices,omitempty"`
	Ticket        string `json:"ticket,omitempty"`
}

// OutcomeRequest is the body of POST /decide/{token}/outcome.
type OutcomeRequest struct {
	Success bool `json:"success"` // required: whether the downstream call succeeded
}

// ErrorResponse is the JSON body of a non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Decide handles POST /decide: decide whether key is admitted right now.
func (h *Handler) Decide(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.sendError(w, http.StatusMethodNotAllowed, "method_not_allowed", "only POST is allowed")
		return
	}

	var req DecideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Key == "" {
		h.sendError(w, http.StatusBadRequest, "missing_key", "key is required")
		return
	}

	result := h.throttle.ShouldAccept(req.Key)
	allowed := result.IsAllowed()
	if h.recorder != nil {
		h.recorder.RecordDecision(allowed)
	}

	resp := DecideResponse{Allowed: allowed, Key: req.Key}
	if indexer, ok := result.(core.BucketIndexer); ok {
		resp.BucketIndices = indexer.BucketIndices()
	}

	if allowed {
		ticket, err := h.tickets.issue(result)
		if err != nil {
			h.sendError(w, http.StatusInternalServerError, "ticket_failed", "failed to issue outcome ticket")
			return
		}
		resp.Ticket = ticket
	}

	w.Header().Set("Content-Type", "application/json")
	if !allowed {
		w.WriteHeader(http.StatusTooManyRequests)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	json.NewEncoder(w).Encode(resp)
}

// Outcome handles POST /decide/{token}/outcome: report the downstream
// call's result for the ThrottleResult a prior Decide call issued token
// for, invoking OnSuccess or OnFailure on it. A token is redeemable
// exactly once and expires if never redeemed.
func (h *Handler) Outcome(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.sendError(w, http.StatusMethodNotAllowed, "method_not_allowed", "only POST is allowed")
		return
	}

	token := r.PathValue("token")
	if token == "" {
		h.sendError(w, http.StatusBadRequest, "missing_token", "token is required")
		return
	}

	var req OutcomeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	result, ok := h.tickets.take(token)
	if !ok {
		h.sendError(w, http.StatusNotFound, "unknown_ticket", "ticket not found, already redeemed, or expired")
		return
	}

	if h.recorder != nil {
		h.recorder.RecordOutcome(req.Success)
	}
	if req.Success {
		result.OnSuccess()
	} else {
		result.OnFailure()
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) sendError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{Error: errorCode, Message: message})
}
