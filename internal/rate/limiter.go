// Package rate provides fixed-window request limiting for the credential
// endpoints. The Redis limiter is shared across instances; the memory
// limiter serves single-node and development setups.
package rate

import (
	"context"
	"fmt"
	"time"

	rdb "github.com/redis/go-redis/v9"
)

// Result is the outcome of one Allow call.
type Result struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

// Limiter decides whether a keyed request may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// RedisLimiter is a fixed-window limiter over INCR+EXPIRE. Windows align to
// wall-clock boundaries so all instances agree on them.
type RedisLimiter struct {
	client *rdb.Client
	prefix string
	max    int64
	window time.Duration
}

// NewRedisLimiter returns a limiter allowing max hits per window.
func NewRedisLimiter(client *rdb.Client, prefix string, max int, window time.Duration) *RedisLimiter {
	if prefix == "" {
		prefix = "rl:"
	}
	return &RedisLimiter{client: client, prefix: prefix, max: int64(max), window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	winStart := time.Now().UTC().Truncate(l.window)
	redisKey := fmt.Sprintf("%s%s:%d", l.prefix, key, winStart.Unix())

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, err
	}
	hits := incr.Val()
	if hits == 1 {
		_ = l.client.Expire(ctx, redisKey, l.window).Err()
	}

	if hits > l.max {
		return Result{
			Allowed:    false,
			Remaining:  0,
			RetryAfter: time.Until(winStart.Add(l.window)),
		}, nil
	}
	return Result{Allowed: true, Remaining: l.max - hits}, nil
}
