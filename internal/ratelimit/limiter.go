package ratelimit

import (
	"context"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Count      int64
	Limit      int64
	RetryAfter time.Duration
}

// Limiter is a fixed-window counter per key kept in Redis, so every instance
// behind the load balancer shares the same budget.
type Limiter struct {
	client *redisv9.Client
	limit  int64
	window time.Duration
	prefix string
}

func New(client *redisv9.Client, limit int, window time.Duration) *Limiter {
	if limit <= 0 {
		limit = 20
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Limiter{
		client: client,
		limit:  int64(limit),
		window: window,
		prefix: "ratelimit:turn:",
	}
}

func (l *Limiter) Allow(ctx context.Context, key string) (Decision, error) {
	k := l.counterKey(key)
	count, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("redis incr rate counter failed: %w", err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, k, l.window).Err(); err != nil {
			return Decision{}, fmt.Errorf("redis expire rate counter failed: %w", err)
		}
	}

	d := Decision{Allowed: count <= l.limit, Count: count, Limit: l.limit}
	if d.Allowed {
		return d, nil
	}

	ttl, err := l.client.TTL(ctx, k).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("redis ttl rate counter failed: %w", err)
	}
	if ttl < 0 {
		// Counter lost its expiry; restart the window.
		if err := l.client.Expire(ctx, k, l.window).Err(); err != nil {
			return Decision{}, fmt.Errorf("redis expire rate counter failed: %w", err)
		}
		ttl = l.window
	}
	d.RetryAfter = ttl
	return d, nil
}

func (l *Limiter) Reset(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, l.counterKey(key)).Err(); err != nil {
		return fmt.Errorf("redis delete rate counter failed: %w", err)
	}
	return nil
}

func (l *Limiter) counterKey(key string) string {
	return l.prefix + key
}
