package fairthrottle

import "errors"

var (
	// ErrInvalidConfig is returned when a Config fails validation.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidKind is returned when Config.Kind names neither
	// "stochastic" nor "bloom".
	ErrInvalidKind = errors.New("unknown throttle kind")

	// ErrKeyExtractionFailed is returned when a KeyExtractor cannot
	// derive a tenant key from a request.
	ErrKeyExtractionFailed = errors.New("failed to extract tenant key from request")
)
