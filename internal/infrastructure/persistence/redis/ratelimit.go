package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ══════════════════════════════════════════════════════════════════════════════
// RATE LIMITING - Sliding window over sorted sets
// ══════════════════════════════════════════════════════════════════════════════

// Decision is the outcome of a rate limit check.
type Decision struct {
	// Allowed is true when the request may proceed.
	Allowed bool

	// Remaining is the number of requests left in the current window.
	Remaining int

	// RetryAfter is how long the caller should wait before retrying.
	// Zero when Allowed.
	RetryAfter time.Duration
}

// Limiter decides whether a keyed request may proceed. Denied requests also
// count against the window so a client hammering a full window never makes
// forward progress toward a free slot.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// LimiterConfig holds sliding window parameters.
type LimiterConfig struct {
	// MaxRequests is the number of requests allowed per window.
	MaxRequests int

	// Window is the sliding window size.
	Window time.Duration
}

// DefaultLimiterConfig returns the per-user mutation budget.
func DefaultLimiterConfig() LimiterConfig {
	return LimiterConfig{
		MaxRequests: 60,
		Window:      time.Minute,
	}
}

// SlidingWindowLimiter implements Limiter on a Redis sorted set per key.
// Each request is a member scored by its arrival time; members older than
// the window are trimmed before counting. Survives process restarts and is
// shared across replicas.
type SlidingWindowLimiter struct {
	cache  *Cache
	config LimiterConfig
}

// NewSlidingWindowLimiter creates a Redis-backed sliding window limiter.
func NewSlidingWindowLimiter(cache *Cache, cfg LimiterConfig) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		cache:  cache,
		config: cfg,
	}
}

// Allow records the request and reports whether it fits in the window.
func (l *SlidingWindowLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	redisKey := PrefixRateLimit + key
	now := time.Now()
	windowStart := now.Add(-l.config.Window)

	pipe := l.cache.Client().TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey,
		"0", fmt.Sprintf("%d", windowStart.UnixNano()))
	pipe.ZAdd(ctx, redisKey, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: fmt.Sprintf("%d:%s", now.UnixNano(), uuid.NewString()),
	})
	countCmd := pipe.ZCard(ctx, redisKey)
	oldestCmd := pipe.ZRangeWithScores(ctx, redisKey, 0, 0)
	pipe.Expire(ctx, redisKey, l.config.Window)

	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrCacheConnection, err)
	}

	count := int(countCmd.Val())
	if count <= l.config.MaxRequests {
		return Decision{
			Allowed:   true,
			Remaining: l.config.MaxRequests - count,
		}, nil
	}

	retryAfter := l.config.Window
	if oldest := oldestCmd.Val(); len(oldest) > 0 {
		oldestAt := time.Unix(0, int64(oldest[0].Score))
		retryAfter = l.config.Window - now.Sub(oldestAt)
		if retryAfter < 0 {
			retryAfter = 0
		}
	}

	return Decision{
		Allowed:    false,
		Remaining:  0,
		RetryAfter: retryAfter,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// IN-PROCESS FALLBACK
// ══════════════════════════════════════════════════════════════════════════════

// MemoryLimiter implements Limiter with per-key in-process windows. Used
// when Redis is not configured; state is lost on restart and not shared
// across replicas.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	config  LimiterConfig
	now     func() time.Time
}

// NewMemoryLimiter creates an in-process sliding window limiter.
func NewMemoryLimiter(cfg LimiterConfig) *MemoryLimiter {
	return &MemoryLimiter{
		windows: make(map[string][]time.Time),
		config:  cfg,
		now:     time.Now,
	}
}

// Allow records the request and reports whether it fits in the window.
func (l *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	windowStart := now.Add(-l.config.Window)

	kept := l.windows[key][:0]
	for _, t := range l.windows[key] {
		if t.After(windowStart) {
			kept = append(kept, t)
		}
	}
	kept = append(kept, now)
	l.windows[key] = kept

	if len(kept) <= l.config.MaxRequests {
		return Decision{
			Allowed:   true,
			Remaining: l.config.MaxRequests - len(kept),
		}, nil
	}

	retryAfter := l.config.Window - now.Sub(kept[0])
	if retryAfter < 0 {
		retryAfter = 0
	}

	return Decision{
		Allowed:    false,
		Remaining:  0,
		RetryAfter: retryAfter,
	}, nil
}
