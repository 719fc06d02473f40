// Package simulation drives a FairThrottle against a synthetic server and
// clients on mock time: no wall-clock sleeps and no goroutines racing real
// time. Client start jitter, the server's constant-failure draw and the
// throttles' tweak come from randomly seeded generators, so two runs of
// the same scenario can differ in their exact counts.
//
// Grounded in the original Java test harness (Simulator/SimulationConfig):
// a SimulatedServer has a goodput schedule (a queue of time-stamped TPS
// steps, optionally with a constant failure rate) and each
// SimulatedClient has its own request-rate schedule and key. Metrics are
// written as CSV rows, one per entity per tick, with header
// "t,goodput,throttled,offered,type,name".
package simulation

import (
	"fmt"
	"io"
	"math/rand"

	"github.com/arrowlane/fairthrottle/core"
)

// TimeStep is a scheduled change: at StartNs, Value takes effect.
type TimeStep struct {
	StartNs int64
	Value   float64
}

// Config describes one simulation run.
type Config struct {
	// ClientRequestTps is the initial offered rate of each client; one
	// SimulatedClient is created per entry.
	ClientRequestTps []float64

	// ServerGoodput is the server's TPS schedule over time. The first
	// step's Value seeds the server's own token bucket capacity. The
	// throttle's shared AIMD always starts at core.DefaultInitialTps.
	ServerGoodput []TimeStep

	// ServerConstantFailureRate is the fraction of admitted calls the
	// server fails outright (simulating a flaky backend independent of
	// the throttle's own admission decision).
	ServerConstantFailureRate float64

	// Buckets is the fairness-scheme bucket count.
	Buckets int

	// FloorTps and CeilingTps bound the throttle's shared AIMD. Zero
	// means "use the package default" (see core.DefaultFloorTps,
	// core.DefaultCeilingTps).
	FloorTps   float64
	CeilingTps float64

	// UseBloomFilter selects BloomFilterFairThrottle; otherwise
	// StochasticFairThrottle is used.
	UseBloomFilter bool

	// RunUntilNs ends the simulation once mock time reaches this value.
	RunUntilNs int64

	// MetricsEveryNs controls how often a metrics row is emitted.
	MetricsEveryNs int64
}

// Result is the outcome of RunSimulation: one Totals per entity (the
// server, plus each client by name), accumulated across the whole run.
type Result struct {
	Server  Totals
	Clients map[string]Totals
}

// Totals tallies one entity's offered/successful/throttled call counts.
type Totals struct {
	Offered   int
	Successes int
	Throttled int
}

// RunSimulation runs config to completion, writing one CSV row per
// entity per metrics tick to out, and returns the accumulated per-entity
// totals.
func RunSimulation(config Config, out io.Writer) (*Result, error) {
	if len(config.ServerGoodput) == 0 {
		return nil, fmt.Errorf("simulation: ServerGoodput must have at least one step")
	}
	if len(config.ClientRequestTps) == 0 {
		return nil, fmt.Errorf("simulation: ClientRequestTps must have at least one client")
	}

	mockTime := core.NewMockTimeSource(0)

	server := newSimulatedServer(config.ServerGoodput, mockTime, config.ServerConstantFailureRate)

	var throttle core.FairThrottle
	if config.UseBloomFilter {
		cfg := core.NewBFFTConfig(config.Buckets)
		cfg.TimeSource = mockTime
		if config.FloorTps != 0 {
			cfg.FloorTps = config.FloorTps
		}
		if config.CeilingTps != 0 {
			cfg.CeilingTps = config.CeilingTps
		}
		throttle = core.NewBloomFilterFairThrottleWithConfig(cfg)
	} else {
		cfg := core.NewSFTConfig()
		cfg.TimeSource = mockTime
		cfg.Buckets = config.Buckets
		if config.FloorTps != 0 {
			cfg.FloorTps = config.FloorTps
		}
		if config.CeilingTps != 0 {
			cfg.CeilingTps = config.CeilingTps
		}
		throttle = core.NewStochasticFairThrottle(cfg)
	}

	clients := make([]*simulatedClient, len(config.ClientRequestTps))
	for i, tps := range config.ClientRequestTps {
		name := fmt.Sprintf("client_%d_%.2f", i, tps)
		clients[i] = newSimulatedClient(tps, mockTime, throttle, name, server)
	}

	result := &Result{Clients: make(map[string]Totals, len(clients))}

	fmt.Fprintln(out, "t,goodput,throttled,offered,type,name")

	// printMetrics resets each entity's per-tick counters, so fold them
	// into the run totals before every print and once more at the end.
	accumulate := func() {
		result.Server.Offered += server.totals.Offered
		result.Server.Successes += server.totals.Successes
		result.Server.Throttled += server.totals.Throttled
		for _, c := range clients {
			t := result.Clients[c.name]
			t.Offered += c.result.Offered
			t.Successes += c.result.Successes
			t.Throttled += c.result.Throttled
			result.Clients[c.name] = t
		}
	}

	var lastMetricsNs int64
	for mockTime.NowNs() < config.RunUntilNs {
		mockTime.SetNs(nextClientAttempt(clients))
		for _, c := range clients {
			c.call()
		}
		if mockTime.NowNs()-lastMetricsNs > config.MetricsEveryNs {
			lastMetricsNs = mockTime.NowNs()
			accumulate()
			server.printMetrics(out, mockTime)
			for _, c := range clients {
				c.printMetrics(out, mockTime)
			}
		}
	}

	accumulate()
	return result, nil
}

func nextClientAttempt(clients []*simulatedClient) int64 {
	next := int64(1) << 62
	for _, c := range clients {
		if c.nextAttemptNs < next {
			next = c.nextAttemptNs
		}
	}
	return next
}

// jittered returns a random duration in [0, 2*d).
func jittered(d int64) int64 {
	return int64(2 * rand.Float64() * float64(d))
}

type simulatedServer struct {
	time                *core.MockTimeSource
	bucket              *simServerBucket
	aimd                *core.SharedAIMD
	goodput             []TimeStep
	constantFailureRate float64
	totals              Totals
}

// simServerBucket is a minimal standalone token bucket for the
// simulated server's own goodput limit — deliberately not core's
// internal aimdTokenBucket (unexported, package-private), since the
// simulated server is a load generator stand-in, not a FairThrottle
// participant. It has the same wouldAllow/claimToken/refill shape as
// core/bucket.go but is single-threaded, and its refill adds fractional
// tokens on every call instead of skipping refills worth under one token.
type simServerBucket struct {
	capacity     float64
	tokens       float64
	lastRefillNs int64
	aimd         *core.SharedAIMD
	time         core.TimeSource
}

func newSimServerBucket(capacity float64, time core.TimeSource, aimd *core.SharedAIMD) *simServerBucket {
	return &simServerBucket{capacity: capacity, tokens: capacity, lastRefillNs: time.NowNs(), aimd: aimd, time: time}
}

func (b *simServerBucket) refill() float64 {
	now := b.time.NowNs()
	elapsedSec := float64(now-b.lastRefillNs) / 1e9
	b.lastRefillNs = now
	if elapsedSec <= 0 {
		return b.tokens
	}
	add := b.aimd.GetTargetTps() * elapsedSec
	if add > b.capacity-b.tokens {
		add = b.capacity - b.tokens
	}
	b.tokens += add
	return b.tokens
}

func (b *simServerBucket) wouldAllow() bool {
	if b.tokens > 1.0 {
		return true
	}
	return b.refill() > 1.0
}

func (b *simServerBucket) claimToken() {
	b.tokens -= 1.0
}

func newSimulatedServer(goodput []TimeStep, time *core.MockTimeSource, constantFailureRate float64) *simulatedServer {
	steps := append([]TimeStep(nil), goodput...)
	initialTps := steps[0].Value
	steps = steps[1:]

	aimd := core.NewSharedAIMD(initialTps, 0, core.DefaultCeilingTps)
	return &simulatedServer{
		time:                time,
		bucket:              newSimServerBucket(initialTps, time, aimd),
		aimd:                aimd,
		goodput:             steps,
		constantFailureRate: constantFailureRate,
	}
}

// call simulates one request reaching the server: advances the goodput
// schedule if due, then admits or rejects against the server's own
// capacity, plus an independent constant failure chance.
func (s *simulatedServer) call() bool {
	s.totals.Offered++
	if len(s.goodput) > 0 && s.goodput[0].StartNs < s.time.NowNs() {
		s.aimd.SetTargetTps(s.goodput[0].Value)
		s.goodput = s.goodput[1:]
	}
	if s.bucket.wouldAllow() && rand.Float64() > s.constantFailureRate {
		s.bucket.claimToken()
		s.totals.Successes++
		return true
	}
	s.totals.Throttled++
	return false
}

func (s *simulatedServer) printMetrics(out io.Writer, time core.TimeSource) {
	fmt.Fprintf(out, "%f, %d, %d, %d, %s, %s\n",
		float64(time.NowNs())/1e9, s.totals.Successes, s.totals.Throttled, s.totals.Offered, "server", "server")
	s.totals = Totals{}
}

type simulatedClient struct {
	time           *core.MockTimeSource
	throttle       core.FairThrottle
	name           string
	server         *simulatedServer
	attemptEveryNs int64
	nextAttemptNs  int64
	result         Totals
}

func newSimulatedClient(initialTps float64, time *core.MockTimeSource, throttle core.FairThrottle, name string, server *simulatedServer) *simulatedClient {
	attemptEvery := int64(1e9 / initialTps)
	return &simulatedClient{
		time:           time,
		throttle:       throttle,
		name:           name,
		server:         server,
		attemptEveryNs: attemptEvery,
		nextAttemptNs:  time.NowNs() + jittered(attemptEvery),
	}
}

func (c *simulatedClient) call() {
	if c.time.NowNs() < c.nextAttemptNs {
		return
	}
	c.nextAttemptNs = c.time.NowNs() + c.attemptEveryNs

	result := c.throttle.ShouldAccept(c.name)
	if !result.IsAllowed() {
		c.result.Throttled++
		return
	}
	c.result.Offered++
	if c.server.call() {
		c.result.Successes++
		result.OnSuccess()
	} else {
		result.OnFailure()
	}
}

func (c *simulatedClient) printMetrics(out io.Writer, time core.TimeSource) {
	fmt.Fprintf(out, "%f, %d, %d, %d, %s, %s\n",
		float64(time.NowNs())/1e9, c.result.Successes, c.result.Throttled, c.result.Offered, "client", c.name)
	c.result = Totals{}
}
