package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter implements fixed window rate limiting using Redis. The window key
// carries the window start so counts reset cleanly at the boundary; INCR and
// EXPIRE run in one pipeline so the key can never live without a TTL.
type Limiter struct {
	client    *redis.Client
	keyPrefix string
}

// NewLimiter creates a new rate limiter with Redis backend.
func NewLimiter(client *redis.Client, keyPrefix string) *Limiter {
	return &Limiter{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// RateLimitResult contains the result of a rate limit check.
type RateLimitResult struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
	Limit     int
}

// Allow checks if a request is allowed under the rate limit.
func (l *Limiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (*RateLimitResult, error) {
	now := time.Now()
	windowStart := now.Truncate(window)
	resetAt := windowStart.Add(window)

	redisKey := fmt.Sprintf("%s%s:%d", l.keyPrefix, key, windowStart.Unix())

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.ExpireNX(ctx, redisKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("redis pipeline error: %w", err)
	}

	count := int(incr.Val())
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}

	return &RateLimitResult{
		Allowed:   count <= limit,
		Remaining: remaining,
		ResetAt:   resetAt,
		Limit:     limit,
	}, nil
}

// Reset clears the current window for a key.
func (l *Limiter) Reset(ctx context.Context, key string, window time.Duration) error {
	windowStart := time.Now().Truncate(window)
	redisKey := fmt.Sprintf("%s%s:%d", l.keyPrefix, key, windowStart.Unix())
	return l.client.Del(ctx, redisKey).Err()
}

// Count returns the request count of the current window.
func (l *Limiter) Count(ctx context.Context, key string, window time.Duration) (int, error) {
	windowStart := time.Now().Truncate(window)
	redisKey := fmt.Sprintf("%s%s:%d", l.keyPrefix, key, windowStart.Unix())

	count, err := l.client.Get(ctx, redisKey).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return count, nil
}
