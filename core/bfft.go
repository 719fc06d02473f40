package core

import (
	"math/rand/v2"
	"sync/atomic"
)

const (
	// DefaultBFFTBucketCapacity is the default per-bucket capacity for
	// BloomFilterFairThrottle. Unlike StochasticFairThrottle, this does
	// not default to initialTps; the asymmetry is inherited from the
	// original implementation and is deliberately preserved (see
	// DESIGN.md), but is overridable via BFFTConfig.
	DefaultBFFTBucketCapacity = 100.0

	bfftTweakUpdateNs = 60 * 1e9

	bfftMaxProbes = 3
)

// BloomFilterFairThrottle allocates available call rate across tenants by
// hashing each tenant key to a small set of k = min(3, buckets) token
// buckets (a bit like a Bloom filter of buckets) and admitting only when
// ALL k buckets currently have a token available. All k buckets share one
// SharedAIMD control loop.
//
// Compared to StochasticFairThrottle, this provides weaker fairness for a
// small number of tenants (two tenants that collide in all k probes
// behave like one), but scales with less cross-talk between unrelated
// tenants as the tenant count grows, since sharing a single probe no
// longer makes two tenants fully share fate.
//
// BloomFilterFairThrottle is safe for concurrent use. Construct one per
// remote endpoint.
type BloomFilterFairThrottle struct {
	falseResult *bfftResult
	buckets     []*aimdTokenBucket
	probes      int
	time        TimeSource
	aimd        *SharedAIMD

	tweak             atomic.Int32
	lastTweakUpdateNs atomic.Int64
}

var _ FairThrottle = (*BloomFilterFairThrottle)(nil)

// BFFTConfig configures a BloomFilterFairThrottle.
type BFFTConfig struct {
	TimeSource TimeSource
	Buckets    int
	InitialTps float64
	FloorTps   float64
	CeilingTps float64
	BucketCap  float64
}

// NewBFFTConfig returns a BFFTConfig filled with the spec's defaults: 100
// initial TPS, floor 5, unbounded ceiling, bucket capacity 100, system
// time. Buckets has no sensible default and must be set by the caller.
func NewBFFTConfig(buckets int) BFFTConfig {
	return BFFTConfig{
		TimeSource: DefaultTimeSource,
		Buckets:    buckets,
		InitialTps: DefaultInitialTps,
		FloorTps:   DefaultFloorTps,
		CeilingTps: DefaultCeilingTps,
		BucketCap:  DefaultBFFTBucketCapacity,
	}
}

// NewBloomFilterFairThrottle constructs a BloomFilterFairThrottle from
// initialTps, a bucket count, and a time source, using the package
// defaults for floor/ceiling/bucket-capacity. For full control, build a
// BFFTConfig with NewBFFTConfig and call NewBloomFilterFairThrottleWithConfig.
func NewBloomFilterFairThrottle(initialTps float64, buckets int, timeSource TimeSource) *BloomFilterFairThrottle {
	cfg := NewBFFTConfig(buckets)
	cfg.InitialTps = initialTps
	cfg.TimeSource = timeSource
	return NewBloomFilterFairThrottleWithConfig(cfg)
}

// NewBloomFilterFairThrottleWithConfig constructs a BloomFilterFairThrottle
// from a fully specified BFFTConfig. It panics with a PreconditionError if
// Buckets <= 0, if TimeSource is nil, or if the floor/initial/ceiling TPS
// ordering is invalid (see NewSharedAIMD).
func NewBloomFilterFairThrottleWithConfig(config BFFTConfig) *BloomFilterFairThrottle {
	if config.Buckets <= 0 {
		panic(&PreconditionError{Msg: "buckets must be > 0"})
	}
	if config.TimeSource == nil {
		panic(&PreconditionError{Msg: "time source must not be nil"})
	}
	probes := config.Buckets
	if probes > bfftMaxProbes {
		probes = bfftMaxProbes
	}

	aimd := NewSharedAIMD(config.InitialTps, config.FloorTps, config.CeilingTps)
	buckets := make([]*aimdTokenBucket, config.Buckets)
	for i := range buckets {
		buckets[i] = newAIMDTokenBucket(config.BucketCap, config.TimeSource, aimd)
	}

	bfft := &BloomFilterFairThrottle{
		falseResult: &bfftResult{allowed: false},
		buckets:     buckets,
		probes:      probes,
		time:        config.TimeSource,
		aimd:        aimd,
	}
	bfft.tweak.Store(rand.Int32())
	bfft.lastTweakUpdateNs.Store(config.TimeSource.NowNs())
	return bfft
}

// ShouldAccept probes the throttle's k buckets for key and admits only if
// all k currently have a token available, consuming one token from each
// on admit.
func (t *BloomFilterFairThrottle) ShouldAccept(key string) ThrottleResult {
	t.updateTweak()
	tweak := t.tweak.Load()
	hashes := generateNHashes(key, tweak, t.probes, uint32(len(t.buckets)))

	for _, idx := range hashes {
		if !t.buckets[idx].wouldAllow() {
			return t.falseResult
		}
	}
	for _, idx := range hashes {
		t.buckets[idx].claimToken()
	}

	probed := make([]*aimdTokenBucket, len(hashes))
	indices := make([]int, len(hashes))
	for i, idx := range hashes {
		probed[i] = t.buckets[idx]
		indices[i] = int(idx)
	}
	return &bfftResult{allowed: true, probed: probed, indices: indices}
}

// TargetTps returns the throttle's current shared AIMD target throughput,
// for observability (metrics, telemetry mirrors).
func (t *BloomFilterFairThrottle) TargetTps() float64 {
	return t.aimd.GetTargetTps()
}

// updateTweak rotates the tweak at most once per ~60s window, using the
// same winner-takes-the-CAS scheme as StochasticFairThrottle.
func (t *BloomFilterFairThrottle) updateTweak() {
	lastUpdate := t.lastTweakUpdateNs.Load()
	now := t.time.NowNs()
	if now-lastUpdate > bfftTweakUpdateNs {
		if t.lastTweakUpdateNs.CompareAndSwap(lastUpdate, now) {
			t.tweak.Store(rand.Int32())
		}
	}
}

// bfftResult is BloomFilterFairThrottle's ThrottleResult. A single
// success or failure outcome is forwarded to every probed bucket, keeping
// all of them — and hence the shared AIMD, since they're all fed by it —
// in sync for that call.
type bfftResult struct {
	allowed bool
	probed  []*aimdTokenBucket
	indices []int
}

var _ ThrottleResult = (*bfftResult)(nil)
var _ BucketIndexer = (*bfftResult)(nil)

func (r *bfftResult) IsAllowed() bool { return r.allowed }

// BucketIndices returns all k probed bucket indices, or nil for a denied
// result (which was never bound to any of them).
func (r *bfftResult) BucketIndices() []int {
	if !r.allowed {
		return nil
	}
	return r.indices
}

func (r *bfftResult) OnSuccess() {
	if !r.allowed {
		panic(&PreconditionError{Msg: "OnSuccess called on a denied ThrottleResult"})
	}
	for _, b := range r.probed {
		b.onSuccess()
	}
}

func (r *bfftResult) OnFailure() {
	if !r.allowed {
		panic(&PreconditionError{Msg: "OnFailure called on a denied ThrottleResult"})
	}
	for _, b := range r.probed {
		b.onFailure()
	}
}
