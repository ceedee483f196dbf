// Package ratelimit caps how many issues one caller may report per window.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/issue-engine/internal/clock"
)

// Limiter counts one hit for key and reports whether it is within limit.
// retryAfter is only meaningful when allowed is false.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

// RedisLimiter is a fixed-window counter shared by every API instance.
type RedisLimiter struct {
	client redis.UniversalClient
	prefix string
	limit  int
	window time.Duration
}

// NewRedisLimiter allows limit hits per key per window.
func NewRedisLimiter(client redis.UniversalClient, prefix string, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: prefix, limit: limit, window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	userKey := l.prefix + ":" + key

	count, err := l.client.Incr(ctx, userKey).Result()
	if err != nil {
		return false, 0, fmt.Errorf("incrementing %s: %w", userKey, err)
	}
	// The window starts with the first hit.
	if count == 1 {
		if err := l.client.Expire(ctx, userKey, l.window).Err(); err != nil {
			return false, 0, fmt.Errorf("setting ttl on %s: %w", userKey, err)
		}
	}
	if count <= int64(l.limit) {
		return true, 0, nil
	}

	retryAfter, err := l.client.TTL(ctx, userKey).Result()
	if err != nil || retryAfter < 0 {
		retryAfter = l.window
	}
	return false, retryAfter, nil
}

type window struct {
	start time.Time
	count int
}

// LocalLimiter is the in-process fixed-window counter used without Redis.
type LocalLimiter struct {
	mu      sync.Mutex
	clock   clock.Clock
	limit   int
	window  time.Duration
	windows map[string]*window
}

// NewLocalLimiter allows limit hits per key per window.
func NewLocalLimiter(clk clock.Clock, limit int, win time.Duration) *LocalLimiter {
	return &LocalLimiter{clock: clk, limit: limit, window: win, windows: make(map[string]*window)}
}

func (l *LocalLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	w, ok := l.windows[key]
	if !ok || !now.Before(w.start.Add(l.window)) {
		w = &window{start: now}
		l.windows[key] = w
	}
	w.count++
	if w.count <= l.limit {
		return true, 0, nil
	}
	return false, w.start.Add(l.window).Sub(now), nil
}
