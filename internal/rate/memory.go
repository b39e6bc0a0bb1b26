package rate

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter is the in-process counterpart of RedisLimiter: same
// fixed-window algorithm, no sharing across instances.
type MemoryLimiter struct {
	mu     sync.Mutex
	max    int64
	window time.Duration
	start  time.Time
	hits   map[string]int64
}

// NewMemoryLimiter returns a limiter allowing max hits per window.
func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		max:    int64(max),
		window: window,
		hits:   make(map[string]int64),
	}
}

func (l *MemoryLimiter) Allow(ctx context.Context, key string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	now := time.Now().UTC()
	winStart := now.Truncate(l.window)

	l.mu.Lock()
	defer l.mu.Unlock()
	if !winStart.Equal(l.start) {
		l.start = winStart
		l.hits = make(map[string]int64)
	}
	l.hits[key]++
	hits := l.hits[key]

	if hits > l.max {
		return Result{
			Allowed:    false,
			Remaining:  0,
			RetryAfter: winStart.Add(l.window).Sub(now),
		}, nil
	}
	return Result{Allowed: true, Remaining: l.max - hits}, nil
}
