// Package ratelimit caps how many requests a single device may make per window.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"tablet-sync-backend/config"
)

// Decision is the outcome of a single Allow call.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter is a fixed-window request counter keyed by caller identity.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// RetryAfterSeconds rounds d up to whole seconds, never below one.
func RetryAfterSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

func decide(count, limit int, retryAfter time.Duration) Decision {
	if count > limit {
		return Decision{Allowed: false, Remaining: 0, RetryAfter: retryAfter}
	}
	return Decision{Allowed: true, Remaining: limit - count}
}

// FromConfig builds the configured backend. The returned close function
// releases the Redis connection and is a no-op for the memory backend.
func FromConfig(ctx context.Context, rl config.RateLimitConfig, rc config.RedisConfig) (Limiter, func() error, error) {
	switch rl.Backend {
	case "", "memory":
		return NewMemoryLimiter(rl.MaxRequests, rl.Window), func() error { return nil }, nil
	case "redis":
		client, err := NewRedisClient(ctx, rc)
		if err != nil {
			return nil, nil, err
		}
		return NewRedisLimiter(client, rc.KeyPrefix, rl.MaxRequests, rl.Window), client.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported rate limit backend %q", rl.Backend)
	}
}
