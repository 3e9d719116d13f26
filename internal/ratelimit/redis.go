package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"tablet-sync-backend/config"
)

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return client, nil
}

// RedisLimiter keeps counters in Redis so every instance enforces the same cap.
type RedisLimiter struct {
	client redis.Cmdable
	prefix string
	limit  int
	window time.Duration
}

// NewRedisLimiter returns a limiter allowing limit requests per window.
func NewRedisLimiter(client redis.Cmdable, prefix string, limit int, per time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		prefix: prefix,
		limit:  limit,
		window: per,
	}
}

// Allow implements Limiter.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	k := l.prefix + key

	count, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit incr: %w", err)
	}
	if count == 1 {
		if err := l.client.PExpire(ctx, k, l.window).Err(); err != nil {
			return Decision{}, fmt.Errorf("rate limit expire: %w", err)
		}
	}

	var retryAfter time.Duration
	if int(count) > l.limit {
		ttl, err := l.client.PTTL(ctx, k).Result()
		if err != nil {
			return Decision{}, fmt.Errorf("rate limit ttl: %w", err)
		}
		if ttl < 0 {
			// Counter lost its expiry; start the window over.
			if err := l.client.PExpire(ctx, k, l.window).Err(); err != nil {
				return Decision{}, fmt.Errorf("rate limit expire: %w", err)
			}
			ttl = l.window
		}
		retryAfter = ttl
	}

	return decide(int(count), l.limit, retryAfter), nil
}
