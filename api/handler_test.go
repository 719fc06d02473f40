package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/arrowlane/fairthrottle/core"
	"github.com/arrowlane/fairthrottle/telemetry"
)

func TestDecideAllowsRequests(t *testing.T) {
	throttle := core.NewStochasticFairThrottle(core.NewSFTConfig())
	handler := NewHandler(throttle, nil)

	reqBody := DecideRequest{Key: "tenant-a"}
	body, _ := json.Marshal(reqBody)
	req := httptest.NewRequest(http.MethodPost, "/decide", bytes.NewBuffer(body))
	w := httptest.NewRecorder()

	handler.Decide(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp DecideResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if !resp.Allowed {
		t.Error("first request should be allowed")
	}
	if len(resp.BucketIndices) == 0 {
		t.Error("expected bucket_indices on an allowed decision")
	}
	if resp.Ticket == "" {
		t.Error("expected a ticket on an allowed decision")
	}
}

func TestDecideDeniedHasNoTicketOrBucketIndices(t *testing.T) {
	cfg := core.NewSFTConfig()
	cfg.TimeSource = core.NewMockTimeSource(0)
	cfg.Buckets = 1
	cfg.InitialTps = 1
	cfg.FloorTps = 1
	throttle := core.NewStochasticFairThrottle(cfg)
	handler := NewHandler(throttle, nil)

	decide := func() DecideResponse {
		reqBody := DecideRequest{Key: "tenant-a"}
		body, _ := json.Marshal(reqBody)
		req := httptest.NewRequest(http.MethodPost, "/decide", bytes.NewBuffer(body))
		w := httptest.NewRecorder()
		handler.Decide(w, req)
		var resp DecideResponse
		json.NewDecoder(w.Body).Decode(&resp)
		return resp
	}

	var denied DecideResponse
	for i := 0; i < 10; i++ {
		resp := decide()
		if !resp.Allowed {
			denied = resp
			break
		}
	}
	if denied.Allowed {
		t.Fatal("expected a denied decision against a 1-token-per-second throttle")
	}
	if denied.Ticket != "" {
		t.Error("denied decision should not carry a ticket")
	}
	if denied.BucketIndices != nil {
		t.Error("denied decision should not carry bucket_indices")
	}
}

func TestOutcomeInvokesCallbackAndConsumesTicket(t *testing.T) {
	cfg := core.NewSFTConfig()
	cfg.TimeSource = core.NewMockTimeSource(0)
	cfg.Buckets = 1
	cfg.InitialTps = 20
	cfg.FloorTps = 5
	throttle := core.NewStochasticFairThrottle(cfg)
	handler := NewHandler(throttle, nil)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /decide/{token}/outcome", handler.Outcome)

	reqBody := DecideRequest{Key: "tenant-a"}
	body, _ := json.Marshal(reqBody)
	decideReq := httptest.NewRequest(http.MethodPost, "/decide", bytes.NewBuffer(body))
	decideW := httptest.NewRecorder()
	handler.Decide(decideW, decideReq)

	var decided DecideResponse
	json.NewDecoder(decideW.Body).Decode(&decided)
	if decided.Ticket == "" {
		t.Fatal("expected a ticket from the allowed decision")
	}

	before := throttle.TargetTps()

	outcomeBody, _ := json.Marshal(OutcomeRequest{Success: false})
	outcomeReq := httptest.NewRequest(http.MethodPost, "/decide/"+decided.Ticket+"/outcome", bytes.NewBuffer(outcomeBody))
	outcomeW := httptest.NewRecorder()
	mux.ServeHTTP(outcomeW, outcomeReq)

	if outcomeW.Code != http.StatusNoContent {
		t.Fatalf("outcome status = %d, want %d", outcomeW.Code, http.StatusNoContent)
	}
	if after := throttle.TargetTps(); after >= before {
		t.Errorf("target TPS = %v, want it to have decayed below %v after a failure outcome", after, before)
	}

	// The ticket is one-shot: redeeming it again should fail.
	replayReq := httptest.NewRequest(http.MethodPost, "/decide/"+decided.Ticket+"/outcome", bytes.NewBuffer(outcomeBody))
	replayW := httptest.NewRecorder()
	mux.ServeHTTP(replayW, replayReq)
	if replayW.Code != http.StatusNotFound {
		t.Errorf("replayed outcome status = %d, want %d", replayW.Code, http.StatusNotFound)
	}
}

func TestOutcomeRejectsUnknownTicket(t *testing.T) {
	throttle := core.NewStochasticFairThrottle(core.NewSFTConfig())
	handler := NewHandler(throttle, nil)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /decide/{token}/outcome", handler.Outcome)

	outcomeBody, _ := json.Marshal(OutcomeRequest{Success: true})
	req := httptest.NewRequest(http.MethodPost, "/decide/does-not-exist/outcome", bytes.NewBuffer(outcomeBody))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestDecideBlocksWhenExceeded(t *testing.T) {
	cfg := core.NewSFTConfig()
	cfg.TimeSource = core.NewMockTimeSource(0)
	cfg.Buckets = 1
	cfg.InitialTps = 1
	cfg.FloorTps = 1
	throttle := core.NewStochasticFairThrottle(cfg)
	handler := NewHandler(throttle, nil)

	blocked := false
	for i := 0; i < 10; i++ {
		reqBody := DecideRequest{Key: "tenant-a"}
		body, _ := json.Marshal(reqBody)
		req := httptest.NewRequest(http.MethodPost, "/decide", bytes.NewBuffer(body))
		w := httptest.NewRecorder()
		handler.Decide(w, req)
		if w.Code == http.StatusTooManyRequests {
			blocked = true
			break
		}
	}
	if !blocked {
		t.Error("expected at least one 429 against a 1-token-per-second throttle")
	}
}

func TestDecideRequiresKey(t *testing.T) {
	throttle := core.NewStochasticFairThrottle(core.NewSFTConfig())
	handler := NewHandler(throttle, nil)

	reqBody := DecideRequest{}
	body, _ := json.Marshal(reqBody)
	req := httptest.NewRequest(http.MethodPost, "/decide", bytes.NewBuffer(body))
	w := httptest.NewRecorder()

	handler.Decide(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestDecideRecordsToRecorder(t *testing.T) {
	throttle := core.NewStochasticFairThrottle(core.NewSFTConfig())
	recorder := telemetry.NewRecorder()
	handler := NewHandler(throttle, recorder)

	reqBody := DecideRequest{Key: "tenant-a"}
	body, _ := json.Marshal(reqBody)
	req := httptest.NewRequest(http.MethodPost, "/decide", bytes.NewBuffer(body))
	w := httptest.NewRecorder()

	handler.Decide(w, req)

	snap := recorder.GetSnapshot(nil)
	if snap.TotalRequests != 1 {
		t.Errorf("TotalRequests = %d, want 1", snap.TotalRequests)
	}
}

func TestDecideRejectsNonPost(t *testing.T) {
	throttle := core.NewStochasticFairThrottle(core.NewSFTConfig())
	handler := NewHandler(throttle, nil)

	req := httptest.NewRequest(http.MethodGet, "/decide", nil)
	w := httptest.NewRecorder()
	handler.Decide(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", w.Code, http.StatusMethodNotAllowed)
	}
}
