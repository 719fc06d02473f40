// Package telemetry records and mirrors aggregate admission statistics.
//
// It intentionally never keeps per-tenant state: a FairThrottle's whole
// point is to run with O(1) memory regardless of how many distinct
// tenant keys it sees, and a per-client stats map (of the kind a
// conventional rate limiter keeps for dashboards) would silently
// reintroduce the O(tenants) footprint the throttle itself avoids. The
// Recorder here tracks only process-wide counters and the throttles'
// own shared AIMD target, which is already O(1) per throttle.
package telemetry

import (
	"sync/atomic"
	"time"
)

// Recorder accumulates process-wide admission counters. It is safe for
// concurrent use by many goroutines.
type Recorder struct {
	totalRequests   atomic.Int64
	allowedRequests atomic.Int64
	deniedRequests  atomic.Int64
	successOutcomes atomic.Int64
	failureOutcomes atomic.Int64

	startTime time.Time
}

// NewRecorder returns a Recorder with its uptime clock starting now.
func NewRecorder() *Recorder {
	return &Recorder{startTime: time.Now()}
}

// RecordDecision records one ShouldAccept outcome.
func (r *Recorder) RecordDecision(allowed bool) {
	r.totalRequests.Add(1)
	if allowed {
		r.allowedRequests.Add(1)
	} else {
		r.deniedRequests.Add(1)
	}
}

// RecordOutcome records one OnSuccess/OnFailure callback.
func (r *Recorder) RecordOutcome(success bool) {
	if success {
		r.successOutcomes.Add(1)
	} else {
		r.failureOutcomes.Add(1)
	}
}

// Snapshot is a point-in-time, read-only view of a Recorder's counters
// plus whatever target-TPS values the caller chooses to attach (the
// targets argument of GetSnapshot). It contains no per-tenant information.
type Snapshot struct {
	TotalRequests   int64              `json:"total_requests"`
	AllowedRequests int64              `json:"allowed_requests"`
	DeniedRequests  int64              `json:"denied_requests"`
	SuccessOutcomes int64              `json:"success_outcomes"`
	FailureOutcomes int64              `json:"failure_outcomes"`
	TargetTps       map[string]float64 `json:"target_tps,omitempty"`
	UptimeSeconds   int64              `json:"uptime_seconds"`
	StartTime       time.Time          `json:"start_time"`
}

// TpsSource names and reports a throttle's current shared AIMD target.
// core.StochasticFairThrottle and core.BloomFilterFairThrottle both
// satisfy this via their TargetTps method.
type TpsSource interface {
	TargetTps() float64
}

// GetSnapshot returns the current aggregate counters. targets lets the
// caller attach zero or more named throttles' current TargetTps (e.g.
// GetSnapshot(map[string]telemetry.TpsSource{"default": throttle})) so
// the snapshot carries the AIMD's live state without the Recorder
// needing to hold a reference to any throttle itself.
func (r *Recorder) GetSnapshot(targets map[string]TpsSource) *Snapshot {
	var tps map[string]float64
	if len(targets) > 0 {
		tps = make(map[string]float64, len(targets))
		for name, src := range targets {
			tps[name] = src.TargetTps()
		}
	}

	return &Snapshot{
		TotalRequests:   r.totalRequests.Load(),
		AllowedRequests: r.allowedRequests.Load(),
		DeniedRequests:  r.deniedRequests.Load(),
		SuccessOutcomes: r.successOutcomes.Load(),
		FailureOutcomes: r.failureOutcomes.Load(),
		TargetTps:       tps,
		UptimeSeconds:   int64(time.Since(r.startTime).Seconds()),
		StartTime:       r.startTime,
	}
}
