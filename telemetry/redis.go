package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher periodically mirrors a Recorder's aggregate Snapshot to
// Redis for external dashboards. It is write-only: the throttle's own
// admission decisions never read this key back, so publishing here does
// not reintroduce cross-process coordination into the hot path — a
// restarted or newly started process still makes its admission
// decisions purely from its own in-process AIMD state.
type RedisPublisher struct {
	client *redis.Client
	ctx    context.Context
	key    string
	ttl    time.Duration
}

// RedisPublisherConfig configures a RedisPublisher.
type RedisPublisherConfig struct {
	Addr     string        // Redis address, e.g. "localhost:6379"
	Password string        // empty for no auth
	DB       int
	Key      string        // Redis key the snapshot is written to; default "fairthrottle:telemetry"
	TTL      time.Duration // expiry on the published key; default 5 minutes
}

// NewRedisPublisher creates a RedisPublisher from config.
func NewRedisPublisher(config RedisPublisherConfig) *RedisPublisher {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	key := config.Key
	if key == "" {
		key = "fairthrottle:telemetry"
	}
	ttl := config.TTL
	if ttl == 0 {
		ttl = 5 * time.Minute
	}

	return &RedisPublisher{client: client, ctx: context.Background(), key: key, ttl: ttl}
}

// Publish writes snapshot to Redis as JSON, with an expiry so a process
// that stops publishing (crash, shutdown) doesn't leave stale telemetry
// visible forever.
func (p *RedisPublisher) Publish(snapshot *Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("telemetry: failed to marshal snapshot: %w", err)
	}
	return p.client.Set(p.ctx, p.key, data, p.ttl).Err()
}

// Run publishes recorder's snapshot (with the given target TPS sources
// attached) every interval until ctx is cancelled. It is meant to be run
// in its own goroutine.
func (p *RedisPublisher) Run(ctx context.Context, recorder *Recorder, targets map[string]TpsSource, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = p.Publish(recorder.GetSnapshot(targets))
		}
	}
}

// Ping checks the Redis connection is alive.
func (p *RedisPublisher) Ping() error {
	return p.client.Ping(p.ctx).Err()
}

// Close closes the Redis connection.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
