package fairthrottle

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/arrowlane/fairthrottle/core"
)

// ThrottleKind selects which fairness scheme a Config builds.
type ThrottleKind string

const (
	// KindStochastic builds a core.StochasticFairThrottle.
	KindStochastic ThrottleKind = "stochastic"
	// KindBloom builds a core.BloomFilterFairThrottle.
	KindBloom ThrottleKind = "bloom"
)

// Config holds the parameters needed to build a FairThrottle. It is the
// YAML-friendly counterpart to the core package's SFTConfig/BFFTConfig,
// picking one of the two fairness schemes by name.
type Config struct {
	// Kind selects the fairness scheme: "stochastic" (default) or "bloom".
	Kind ThrottleKind `yaml:"kind,omitempty"`

	// Buckets is the number of fairness slots. Default 17.
	Buckets int `yaml:"buckets,omitempty"`

	// InitialTps, FloorTps, CeilingTps bound the shared AIMD control
	// loop. Defaults: 100, 5, unbounded.
	InitialTps float64 `yaml:"initial_tps,omitempty"`
	FloorTps   float64 `yaml:"floor_tps,omitempty"`
	CeilingTps float64 `yaml:"ceiling_tps,omitempty"`

	// BucketCapacity overrides the per-bucket capacity for Kind ==
	// KindBloom. Ignored for KindStochastic, which always uses
	// InitialTps as its bucket capacity. Default 100.
	BucketCapacity float64 `yaml:"bucket_capacity,omitempty"`

	// KeyExtractor names a KeyExtractor by the same strings accepted by
	// ParseKeyExtractorConfig ("ip", "ip-proxy", "header:X", "bearer",
	// "cookie:name", "static:key"). Default "ip-proxy".
	KeyExtractor string `yaml:"key_extractor,omitempty"`
}

// NewConfig returns a Config filled with the spec's default stochastic
// throttle: 17 buckets, 100 initial TPS, floor 5, unbounded ceiling.
func NewConfig() *Config {
	return &Config{
		Kind:           KindStochastic,
		Buckets:        core.DefaultSFTBuckets,
		InitialTps:     core.DefaultInitialTps,
		FloorTps:       core.DefaultFloorTps,
		CeilingTps:     core.DefaultCeilingTps,
		BucketCapacity: core.DefaultBFFTBucketCapacity,
		KeyExtractor:   "ip-proxy",
	}
}

// LoadConfigFromFile loads and validates a Config from a YAML file.
func LoadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read config file: %v", ErrInvalidConfig, err)
	}

	config := NewConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse YAML: %v", ErrInvalidConfig, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks that Config can be turned into a throttle. It does not
// duplicate the core package's own precondition checks (floor <= initial
// <= ceiling, buckets > 0): Build lets those surface as the core's own
// PreconditionError panics, since a bad Config is exactly the kind of
// programmer error the core already treats that way. Validate only
// catches what the core has no opinion on: an unrecognized Kind.
func (c *Config) Validate() error {
	switch c.Kind {
	case "", KindStochastic, KindBloom:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidKind, c.Kind)
	}
	return nil
}

// BuildKeyExtractor parses the Config's KeyExtractor field into a usable
// KeyExtractor, via ParseKeyExtractorConfig. An empty KeyExtractor falls
// back to "ip-proxy".
func (c *Config) BuildKeyExtractor() (KeyExtractor, error) {
	spec := c.KeyExtractor
	if spec == "" {
		spec = "ip-proxy"
	}
	return ParseKeyExtractorConfig(spec)
}

// Build constructs the FairThrottle described by this Config, using the
// system clock. Use BuildWithTimeSource to inject a mock clock (tests,
// the simulation harness).
func (c *Config) Build() (core.FairThrottle, error) {
	return c.BuildWithTimeSource(core.DefaultTimeSource)
}

// BuildWithTimeSource constructs the FairThrottle described by this
// Config using the given TimeSource.
func (c *Config) BuildWithTimeSource(timeSource core.TimeSource) (core.FairThrottle, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	switch c.Kind {
	case KindBloom:
		cfg := core.NewBFFTConfig(c.Buckets)
		cfg.TimeSource = timeSource
		if c.InitialTps != 0 {
			cfg.InitialTps = c.InitialTps
		}
		if c.FloorTps != 0 {
			cfg.FloorTps = c.FloorTps
		}
		if c.CeilingTps != 0 {
			cfg.CeilingTps = c.CeilingTps
		}
		if c.BucketCapacity != 0 {
			cfg.BucketCap = c.BucketCapacity
		}
		return core.NewBloomFilterFairThrottleWithConfig(cfg), nil
	default: // "" and KindStochastic
		cfg := core.NewSFTConfig()
		cfg.TimeSource = timeSource
		if c.Buckets != 0 {
			cfg.Buckets = c.Buckets
		}
		if c.InitialTps != 0 {
			cfg.InitialTps = c.InitialTps
		}
		if c.FloorTps != 0 {
			cfg.FloorTps = c.FloorTps
		}
		if c.CeilingTps != 0 {
			cfg.CeilingTps = c.CeilingTps
		}
		return core.NewStochasticFairThrottle(cfg), nil
	}
}
