package api

import (
	"encoding/json"
	"net/http"

	"github.com/arrowlane/fairthrottle/telemetry"
)

// MetricsHandler serves a Recorder's aggregate Snapshot as JSON.
type MetricsHandler struct {
	recorder *telemetry.Recorder
	targets  map[string]telemetry.TpsSource
}

// NewMetricsHandler creates a MetricsHandler. targets names the
// throttle(s) whose current AIMD target TPS should be attached to each
// snapshot (see telemetry.Recorder.GetSnapshot); it may be nil.
func NewMetricsHandler(recorder *telemetry.Recorder, targets map[string]telemetry.TpsSource) *MetricsHandler {
	return &MetricsHandler{recorder: recorder, targets: targets}
}

// ServeHTTP handles GET /metrics.
func (h *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snapshot := h.recorder.GetSnapshot(h.targets)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	json.NewEncoder(w).Encode(snapshot)
}
