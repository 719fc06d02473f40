package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/arrowlane/fairthrottle/api"
	"github.com/arrowlane/fairthrottle/core"
	"github.com/arrowlane/fairthrottle/middleware"
	"github.com/arrowlane/fairthrottle/pkg/fairthrottle"
	"github.com/arrowlane/fairthrottle/telemetry"
)

func main() {
	port := getEnv("PORT", "8080")
	redisAddr := getEnv("REDIS_ADDR", "")
	configFile := getEnv("FAIRTHROTTLE_CONFIG", "")

	var opts []fairthrottle.Option
	if configFile != "" {
		opts = append(opts, fairthrottle.WithConfigFile(configFile))
	}
	throttle, keyExtractor, err := fairthrottle.NewWithKeyExtractor(opts...)
	if err != nil {
		log.Fatalf("failed to build throttle: %v", err)
	}

	recorder := telemetry.NewRecorder()

	var publisher *telemetry.RedisPublisher
	if redisAddr != "" {
		publisher = telemetry.NewRedisPublisher(telemetry.RedisPublisherConfig{
			Addr:     redisAddr,
			Password: getEnv("REDIS_PASSWORD", ""),
		})
		if err := publisher.Ping(); err != nil {
			log.Fatalf("failed to connect to Redis: %v", err)
		}
		fmt.Println("connected to Redis telemetry mirror at", redisAddr)

		targets := map[string]telemetry.TpsSource{"default": targetTpsSource(throttle)}
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go publisher.Run(ctx, recorder, targets, 10*time.Second)
	} else {
		fmt.Println("no REDIS_ADDR set; telemetry mirror disabled")
	}

	adm, err := middleware.New(middleware.Config{Throttle: throttle, KeyExtractor: keyExtractor})
	if err != nil {
		log.Fatalf("failed to build admission middleware: %v", err)
	}

	apiHandler := api.NewHandler(throttle, recorder)
	stopTicketCleanup := apiHandler.StartTicketCleanup(10 * time.Second)
	defer stopTicketCleanup()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("POST /decide", apiHandler.Decide)
	mux.HandleFunc("POST /decide/{token}/outcome", apiHandler.Outcome)
	mux.Handle("/metrics", metricsHandler(recorder, throttle))
	mux.Handle("/", adm.Middleware(http.HandlerFunc(rootHandler)))

	addr := ":" + port
	fmt.Println("fairthrottle admission sidecar")
	fmt.Println("listening on http://localhost" + addr)
	fmt.Println()
	fmt.Println("endpoints:")
	fmt.Println("  POST /decide                  - ask whether a key would be admitted")
	fmt.Println("  POST /decide/{token}/outcome  - report the outcome for a prior decision")
	fmt.Println("  GET  /metrics                 - aggregate admission counters (JSON)")
	fmt.Println("  GET  /health                  - health check")
	fmt.Println("  *    /                        - admission-controlled passthrough")

	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal(err)
	}
}

func metricsHandler(recorder *telemetry.Recorder, throttle core.FairThrottle) http.Handler {
	targets := map[string]telemetry.TpsSource{"default": targetTpsSource(throttle)}
	return api.NewMetricsHandler(recorder, targets)
}

// targetTpsSource adapts a core.FairThrottle to telemetry.TpsSource. Both
// concrete throttle types expose TargetTps, but the FairThrottle
// interface itself deliberately doesn't (only ShouldAccept is part of
// the admission contract) so this is resolved at the call site.
func targetTpsSource(throttle core.FairThrottle) telemetry.TpsSource {
	switch t := throttle.(type) {
	case *core.StochasticFairThrottle:
		return t
	case *core.BloomFilterFairThrottle:
		return t
	default:
		return zeroTpsSource{}
	}
}

type zeroTpsSource struct{}

func (zeroTpsSource) TargetTps() float64 { return 0 }

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "fairthrottle",
	})
}

func rootHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"service": "fairthrottle admission sidecar",
		"endpoints": map[string]string{
			"POST /decide": "ask whether a key would be admitted",
			"GET /metrics": "aggregate admission counters",
			"GET /health":  "health check",
		},
	})
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
