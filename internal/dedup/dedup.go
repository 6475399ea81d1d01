// Package dedup suppresses duplicate webhook deliveries.
//
// Webhook providers redeliver events; without a dedup cache a redelivered
// publish event would create a second campaign downstream. Keys are
// remembered in Redis with a TTL so the cache stays small and a genuinely
// new event with a recycled key (outside the window) still processes.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper records webhook event keys and reports whether a key was
// already seen inside the TTL window.
type Deduper interface {
	// Seen reports whether key was already processed. It must not claim
	// the key: a delivery whose downstream work fails has to stay
	// retryable. Callers treat an error as "not seen" and process the
	// event anyway: losing dedup is preferable to dropping a delivery.
	Seen(ctx context.Context, key string) (bool, error)

	// Mark commits key as processed for the TTL window. Called only
	// after the delivery's side effects succeeded (or were durably
	// parked), so a failed delivery is not suppressed on retry.
	Mark(ctx context.Context, key string) error

	Close() error
}

type redisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDeduper connects to Redis and returns a TTL-backed Deduper.
func NewRedisDeduper(redisURL string, ttl time.Duration) (Deduper, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &redisDeduper{client: client, ttl: ttl}, nil
}

func (d *redisDeduper) Seen(ctx context.Context, key string) (bool, error) {
	n, err := d.client.Exists(ctx, "dedup:"+key).Result()
	if err != nil {
		return false, fmt.Errorf("dedup check failed: %w", err)
	}
	return n > 0, nil
}

func (d *redisDeduper) Mark(ctx context.Context, key string) error {
	err := d.client.Set(ctx, "dedup:"+key, time.Now().UTC().Format(time.RFC3339), d.ttl).Err()
	if err != nil {
		return fmt.Errorf("dedup mark failed: %w", err)
	}
	return nil
}

func (d *redisDeduper) Close() error {
	if d.client != nil {
		return d.client.Close()
	}
	return nil
}

// NoOpDeduper never reports duplicates (for disabled dedup or testing).
type NoOpDeduper struct{}

func (NoOpDeduper) Seen(ctx context.Context, key string) (bool, error) {
	return false, nil
}

func (NoOpDeduper) Mark(ctx context.Context, key string) error {
	return nil
}

func (NoOpDeduper) Close() error {
	return nil
}
