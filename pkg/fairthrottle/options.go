package fairthrottle

import (
	"fmt"

	"github.com/arrowlane/fairthrottle/core"
)

// builderState accumulates Option side effects before New builds the
// final throttle.
type builderState struct {
	config     *Config
	timeSource core.TimeSource
}

// Option is a functional option for New.
type Option func(*builderState) error

// WithConfig sets the full Config to build from, replacing any defaults.
func WithConfig(config *Config) Option {
	return func(b *builderState) error {
		if config == nil {
			return fmt.Errorf("%w: config cannot be nil", ErrInvalidConfig)
		}
		if err := config.Validate(); err != nil {
			return err
		}
		b.config = config
		return nil
	}
}

// WithConfigFile loads a Config from a YAML file.
func WithConfigFile(path string) Option {
	return func(b *builderState) error {
		config, err := LoadConfigFromFile(path)
		if err != nil {
			return err
		}
		b.config = config
		return nil
	}
}

// WithKind selects the fairness scheme.
func WithKind(kind ThrottleKind) Option {
	return func(b *builderState) error {
		b.config.Kind = kind
		return nil
	}
}

// WithBuckets sets the number of fairness slots.
func WithBuckets(buckets int) Option {
	return func(b *builderState) error {
		b.config.Buckets = buckets
		return nil
	}
}

// WithTps sets the AIMD's initial, floor, and ceiling target throughput.
func WithTps(initial, floor, ceiling float64) Option {
	return func(b *builderState) error {
		b.config.InitialTps = initial
		b.config.FloorTps = floor
		b.config.CeilingTps = ceiling
		return nil
	}
}

// WithBucketCapacity overrides the per-bucket capacity used by a bloom
// throttle (ignored for a stochastic throttle, which always uses
// InitialTps as its bucket capacity).
func WithBucketCapacity(capacity float64) Option {
	return func(b *builderState) error {
		b.config.BucketCapacity = capacity
		return nil
	}
}

// WithKeyExtractorConfig sets the KeyExtractor by name; see
// ParseKeyExtractorConfig for the accepted formats.
func WithKeyExtractorConfig(spec string) Option {
	return func(b *builderState) error {
		b.config.KeyExtractor = spec
		return nil
	}
}

// WithTimeSource injects a TimeSource, overriding the system clock. Used
// by tests and the simulation harness.
func WithTimeSource(timeSource core.TimeSource) Option {
	return func(b *builderState) error {
		if timeSource == nil {
			return fmt.Errorf("%w: time source cannot be nil", ErrInvalidConfig)
		}
		b.timeSource = timeSource
		return nil
	}
}

// New builds a FairThrottle from the given options. With no options, it
// builds a stochastic throttle using NewConfig()'s defaults and the
// system clock. An unrecognized Config.KeyExtractor is not validated
// here — it only surfaces when something actually resolves it, via
// NewWithKeyExtractor or Config.BuildKeyExtractor.
func New(opts ...Option) (core.FairThrottle, error) {
	b, err := resolveBuilder(opts)
	if err != nil {
		return nil, err
	}
	return b.config.BuildWithTimeSource(b.timeSource)
}

// NewWithKeyExtractor is New, additionally resolving and returning the
// KeyExtractor named by the resolved Config's KeyExtractor field (see
// Config.BuildKeyExtractor). Callers that need both the throttle and the
// extractor it was configured with (e.g. to wire up an HTTP middleware)
// should use this instead of calling New and ParseKeyExtractorConfig
// separately. Unlike New, this fails if Config.KeyExtractor names an
// unrecognized extractor.
func NewWithKeyExtractor(opts ...Option) (core.FairThrottle, KeyExtractor, error) {
	b, err := resolveBuilder(opts)
	if err != nil {
		return nil, nil, err
	}
	throttle, err := b.config.BuildWithTimeSource(b.timeSource)
	if err != nil {
		return nil, nil, err
	}
	extractor, err := b.config.BuildKeyExtractor()
	if err != nil {
		return nil, nil, err
	}
	return throttle, extractor, nil
}

func resolveBuilder(opts []Option) (*builderState, error) {
	b := &builderState{
		config:     NewConfig(),
		timeSource: core.DefaultTimeSource,
	}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}
	return b, nil
}
