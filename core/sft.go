package core

import (
	"math/rand/v2"
	"sync/atomic"
)

const (
	// DefaultSFTBuckets is the default number of fairness slots.
	DefaultSFTBuckets = 17
	// DefaultInitialTps is the default starting target throughput.
	DefaultInitialTps = 100.0

	sftTweakUpdateNs = 5 * 1e9
)

// StochasticFairThrottle allocates the available call rate across tenants
// by hashing each tenant key to one of a fixed array of token buckets,
// all sharing one SharedAIMD control loop. It is O(1) in both space and
// time regardless of how many distinct tenant keys are seen.
//
// The hash is keyed by a time-varying tweak, rotated roughly every 5
// seconds. Rotating the tweak reshuffles which tenants share a bucket, so
// an unlucky, persistent collision between two greedy tenants dissolves
// over time rather than lasting forever. This is loosely inspired by
// Stochastic Fair Queueing (McKenney).
//
// StochasticFairThrottle is safe for concurrent use. Construct one per
// remote endpoint; see FairThrottle's doc comment for why.
type StochasticFairThrottle struct {
	falseResult *sftResult
	buckets     []*aimdTokenBucket
	time        TimeSource
	aimd        *SharedAIMD

	tweak             atomic.Int32
	lastTweakUpdateNs atomic.Int64
}

var _ FairThrottle = (*StochasticFairThrottle)(nil)

// SFTConfig configures a StochasticFairThrottle. The zero value is not
// usable directly; use NewSFTConfig to get one pre-filled with defaults.
type SFTConfig struct {
	TimeSource TimeSource
	Buckets    int
	InitialTps float64
	FloorTps   float64
	CeilingTps float64
}

// NewSFTConfig returns an SFTConfig filled with the spec's defaults: 17
// buckets, 100 initial TPS, floor 5, unbounded ceiling, system time.
func NewSFTConfig() SFTConfig {
	return SFTConfig{
		TimeSource: DefaultTimeSource,
		Buckets:    DefaultSFTBuckets,
		InitialTps: DefaultInitialTps,
		FloorTps:   DefaultFloorTps,
		CeilingTps: DefaultCeilingTps,
	}
}

// NewStochasticFairThrottle constructs a StochasticFairThrottle from the
// given config. It panics with a PreconditionError if Buckets <= 0, if
// TimeSource is nil, or if the floor/initial/ceiling TPS ordering is
// invalid (see NewSharedAIMD).
func NewStochasticFairThrottle(config SFTConfig) *StochasticFairThrottle {
	if config.Buckets <= 0 {
		panic(&PreconditionError{Msg: "buckets must be > 0"})
	}
	if config.TimeSource == nil {
		panic(&PreconditionError{Msg: "time source must not be nil"})
	}

	aimd := NewSharedAIMD(config.InitialTps, config.FloorTps, config.CeilingTps)
	buckets := make([]*aimdTokenBucket, config.Buckets)
	for i := range buckets {
		buckets[i] = newAIMDTokenBucket(config.InitialTps, config.TimeSource, aimd)
	}

	sft := &StochasticFairThrottle{
		falseResult: &sftResult{allowed: false},
		buckets:     buckets,
		time:        config.TimeSource,
		aimd:        aimd,
	}
	sft.tweak.Store(rand.Int32())
	sft.lastTweakUpdateNs.Store(config.TimeSource.NowNs())
	return sft
}

// ShouldAccept hashes key to one of the throttle's buckets (reshuffled
// periodically by the tweak) and admits iff that bucket currently has a
// token available.
func (t *StochasticFairThrottle) ShouldAccept(key string) ThrottleResult {
	t.updateTweak()
	tweak := t.tweak.Load()
	idx := tweakedHash(key, tweak, uint32(len(t.buckets)))
	bucket := t.buckets[idx]
	if bucket.wouldAllow() {
		bucket.claimToken()
		return &sftResult{allowed: true, bucket: bucket, index: int(idx)}
	}
	return t.falseResult
}

// TargetTps returns the throttle's current shared AIMD target throughput,
// for observability (metrics, telemetry mirrors). It is not used by the
// admission algorithm itself, which reads per-bucket token counts.
func (t *StochasticFairThrottle) TargetTps() float64 {
	return t.aimd.GetTargetTps()
}

// updateTweak rotates the tweak at most once per ~5s window. Only the
// goroutine that wins the CAS on lastTweakUpdateNs performs the rotation;
// everyone else observes the window hasn't elapsed (yet, or anymore) and
// does nothing. This guarantees no lock and at most one rotation per
// window even under heavy concurrent traffic.
func (t *StochasticFairThrottle) updateTweak() {
	lastUpdate := t.lastTweakUpdateNs.Load()
	now := t.time.NowNs()
	if now-lastUpdate > sftTweakUpdateNs {
		if t.lastTweakUpdateNs.CompareAndSwap(lastUpdate, now) {
			t.tweak.Store(rand.Int32())
		}
	}
}

// sftResult is StochasticFairThrottle's ThrottleResult. A denied result
// has bucket == nil; IsAllowed distinguishes it from an allowed result
// bound to bucket index 0.
type sftResult struct {
	allowed bool
	bucket  *aimdTokenBucket
	index   int
}

var _ ThrottleResult = (*sftResult)(nil)
var _ BucketIndexer = (*sftResult)(nil)

func (r *sftResult) IsAllowed() bool { return r.allowed }

// BucketIndices returns the single bucket index this decision was bound
// to, or nil for a denied result (which was never bound to one).
func (r *sftResult) BucketIndices() []int {
	if !r.allowed {
		return nil
	}
	return []int{r.index}
}

func (r *sftResult) OnSuccess() {
	if !r.allowed {
		panic(&PreconditionError{Msg: "OnSuccess called on a denied ThrottleResult"})
	}
	r.bucket.onSuccess()
}

func (r *sftResult) OnFailure() {
	if !r.allowed {
		panic(&PreconditionError{Msg: "OnFailure called on a denied ThrottleResult"})
	}
	r.bucket.onFailure()
}
