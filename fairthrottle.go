package fairthrottle

import (
	"github.com/arrowlane/fairthrottle/core"
	"github.com/arrowlane/fairthrottle/pkg/fairthrottle"
)

// Re-export the public API for convenience so callers need only import
// the module root.
type (
	FairThrottle   = core.FairThrottle
	ThrottleResult = core.ThrottleResult
	Config         = fairthrottle.Config
	ThrottleKind   = fairthrottle.ThrottleKind
	Option         = fairthrottle.Option
	KeyExtractor   = fairthrottle.KeyExtractor
)

const (
	KindStochastic = fairthrottle.KindStochastic
	KindBloom      = fairthrottle.KindBloom
)

// New builds a FairThrottle from the given options.
var New = fairthrottle.New

// NewWithKeyExtractor is New, additionally returning the KeyExtractor
// named by the resolved Config's KeyExtractor field.
var NewWithKeyExtractor = fairthrottle.NewWithKeyExtractor

// NewConfig returns a Config filled with the default stochastic throttle.
var NewConfig = fairthrottle.NewConfig

// LoadConfigFromFile loads and validates a Config from a YAML file.
var LoadConfigFromFile = fairthrottle.LoadConfigFromFile

var (
	WithConfig             = fairthrottle.WithConfig
	WithConfigFile         = fairthrottle.WithConfigFile
	WithKind               = fairthrottle.WithKind
	WithBuckets            = fairthrottle.WithBuckets
	WithTps                = fairthrottle.WithTps
	WithBucketCapacity     = fairthrottle.WithBucketCapacity
	WithKeyExtractorConfig = fairthrottle.WithKeyExtractorConfig
	WithTimeSource         = fairthrottle.WithTimeSource
)

var (
	ExtractIP          = fairthrottle.ExtractIP
	ExtractIPWithProxy = fairthrottle.ExtractIPWithProxy
	ExtractHeader      = fairthrottle.ExtractHeader
	ExtractBearer      = fairthrottle.ExtractBearer
	ExtractCookie      = fairthrottle.ExtractCookie
	ExtractStatic      = fairthrottle.ExtractStatic
	ExtractComposite   = fairthrottle.ExtractComposite
)
