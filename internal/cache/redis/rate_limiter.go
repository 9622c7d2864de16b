package redis

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/basketopt/internal/domain"
)

//go:embed scripts/sliding_window.lua
var slidingWindowLua string

// RateLimiter implements domain.RateLimiter over a sorted set of request
// timestamps per key. One script call trims, counts and records atomically,
// so API replicas sharing Redis share one budget per client.
type RateLimiter struct {
	rdb    *redis.Client
	script *redis.Script
	now    func() time.Time
}

// NewRateLimiter creates a RateLimiter on c.
func NewRateLimiter(c *Client) *RateLimiter {
	return &RateLimiter{
		rdb:    c.Underlying(),
		script: redis.NewScript(slidingWindowLua),
		now:    time.Now,
	}
}

func rateLimitKey(key string) string {
	return "ratelimit:" + key
}

// Allow records a request for key unless limit requests already fall inside
// the trailing window.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (domain.RateDecision, error) {
	if limit <= 0 || window <= 0 {
		return domain.RateDecision{}, fmt.Errorf("redis: rate limit %s: limit and window must be positive", key)
	}
	reply, err := rl.script.Run(ctx, rl.rdb,
		[]string{rateLimitKey(key)},
		rl.now().UnixMicro(), window.Microseconds(), limit,
	).Int64Slice()
	if err != nil {
		return domain.RateDecision{}, fmt.Errorf("redis: rate limit %s: %w", key, err)
	}
	return decision(reply, window)
}

// decision converts the script reply. A denied request waits at least one
// microsecond and at most one window.
func decision(reply []int64, window time.Duration) (domain.RateDecision, error) {
	if len(reply) != 2 {
		return domain.RateDecision{}, fmt.Errorf("redis: rate limit: unexpected reply %v", reply)
	}
	if reply[0] == 1 {
		return domain.RateDecision{Allowed: true, Remaining: int(reply[1])}, nil
	}
	wait := time.Duration(reply[1]) * time.Microsecond
	wait = min(max(wait, time.Microsecond), window)
	return domain.RateDecision{RetryAfter: wait}, nil
}

var _ domain.RateLimiter = (*RateLimiter)(nil)
