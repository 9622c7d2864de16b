package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/basketopt/internal/domain"
)

// ResultCache implements domain.ResultCache with one JSON string per order.
//
// Key schema:
//
//	result:order:{orderID} - JSON encoded domain.ResultSummary
type ResultCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewResultCache creates a ResultCache whose entries expire after ttl.
func NewResultCache(c *Client, ttl time.Duration) *ResultCache {
	return &ResultCache{rdb: c.Underlying(), ttl: ttl}
}

func resultKey(orderID int64) string {
	return "result:order:" + strconv.FormatInt(orderID, 10)
}

// Set stores the summary, replacing any previous one for the order.
func (rc *ResultCache) Set(ctx context.Context, summary domain.ResultSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("redis: marshal result %d: %w", summary.OrderID, err)
	}
	if err := rc.rdb.Set(ctx, resultKey(summary.OrderID), data, rc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set result %d: %w", summary.OrderID, err)
	}
	return nil
}

// Get returns the cached summary or domain.ErrNotFound.
func (rc *ResultCache) Get(ctx context.Context, orderID int64) (domain.ResultSummary, error) {
	data, err := rc.rdb.Get(ctx, resultKey(orderID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.ResultSummary{}, domain.ErrNotFound
		}
		return domain.ResultSummary{}, fmt.Errorf("redis: get result %d: %w", orderID, err)
	}
	var s domain.ResultSummary
	if err := json.Unmarshal(data, &s); err != nil {
		return domain.ResultSummary{}, fmt.Errorf("redis: unmarshal result %d: %w", orderID, err)
	}
	return s, nil
}

// Invalidate drops the cached summary.
func (rc *ResultCache) Invalidate(ctx context.Context, orderID int64) error {
	if err := rc.rdb.Del(ctx, resultKey(orderID)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate result %d: %w", orderID, err)
	}
	return nil
}

var _ domain.ResultCache = (*ResultCache)(nil)
