package domain

import (
	"context"
	"strconv"
	"time"
)

// ResultCache keeps the latest result summary per order.
type ResultCache interface {
	Set(ctx context.Context, summary ResultSummary) error
	Get(ctx context.Context, orderID int64) (ResultSummary, error)
	Invalidate(ctx context.Context, orderID int64) error
}

// RateDecision is the outcome of one rate limit check. Remaining is set when
// the request is allowed, RetryAfter when it is not.
type RateDecision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (RateDecision, error)
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// StreamMessage represents a single entry from a Redis stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// EventBus provides pub/sub and durable streams.
type EventBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	// StreamGroupRead reads as consumer of group. id ">" asks for entries
	// never delivered to the group; any other id re-reads the consumer's own
	// unacknowledged entries after it.
	StreamGroupRead(ctx context.Context, stream, group, consumer, id string, count int, block time.Duration) ([]StreamMessage, error)
	StreamAck(ctx context.Context, stream, group string, ids ...string) error
}

// Bus channel and stream names.
const (
	ChannelOptimization = "optimization"
	StreamOptimize      = "optimize:requests"
)

// OptimizationEvent is published on ChannelOptimization when a run ends.
type OptimizationEvent struct {
	Type    string        `json:"type"`
	Summary ResultSummary `json:"summary"`
}

// OptimizeRequest is one queued order on StreamOptimize.
type OptimizeRequest struct {
	OrderID     int64     `json:"order_id"`
	RequestedAt time.Time `json:"requested_at"`
}

// OrderLockKey is the lock key guarding one order's optimization.
func OrderLockKey(orderID int64) string {
	return "optimize:" + strconv.FormatInt(orderID, 10)
}
