package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/arrowlane/fairthrottle/core"
	"github.com/arrowlane/fairthrottle/pkg/fairthrottle"
)

// Admission wraps an http.Handler with admission control backed by a
// core.FairThrottle. Unlike a plain token-bucket limiter, it closes the
// loop: the downstream handler's outcome (status code) feeds back into
// the throttle's AIMD control loop via OnSuccess/OnFailure, so sustained
// 5xx responses push the admitted rate down even though every request
// that reached the handler was, by definition, "allowed".
type Admission struct {
	throttle  core.FairThrottle
	extractor fairthrottle.KeyExtractor
}

// Config configures an Admission middleware.
type Config struct {
	Throttle     core.FairThrottle         // required
	KeyExtractor fairthrottle.KeyExtractor // optional: defaults to ExtractIPWithProxy
}

// New builds an Admission middleware from the given Config.
func New(config Config) (*Admission, error) {
	if config.Throttle == nil {
		return nil, fmt.Errorf("middleware: Throttle is required")
	}
	extractor := config.KeyExtractor
	if extractor == nil {
		extractor = fairthrottle.ExtractIPWithProxy()
	}
	return &Admission{throttle: config.Throttle, extractor: extractor}, nil
}

// Middleware returns an http.Handler wrapping next with admission
// control. Denied requests receive 429 with a JSON body and a
// Retry-After header; admitted requests are forwarded to next, and the
// downstream status code is reported back to the throttle once next
// returns.
func (a *Admission) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, err := a.extractor(r)
		if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		result := a.throttle.ShouldAccept(key)
		if !result.IsAllowed() {
			w.Header().Set("Retry-After", "1")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"error":   "throttled",
				"message": "too many requests for this key, try again shortly",
				"key":     key,
			})
			return
		}

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		if sw.status >= 500 {
			result.OnFailure()
		} else {
			result.OnSuccess()
		}
	})
}

// statusWriter captures the status code written by a downstream handler
// so the outcome can be reported back to the throttle after ServeHTTP
// returns.
type statusWriter struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (sw *statusWriter) WriteHeader(status int) {
	if !sw.wrote {
		sw.status = status
		sw.wrote = true
	}
	sw.ResponseWriter.WriteHeader(status)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	if !sw.wrote {
		sw.status = http.StatusOK
		sw.wrote = true
	}
	return sw.ResponseWriter.Write(b)
}
