// Package redis implements the domain cache, lock, rate limit and bus
// interfaces using go-redis/v9.
package redis

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

// minMajorVersion is the first Redis release with stream consumer groups,
// which the request queue relies on.
const minMajorVersion = 5

// ClientConfig holds connection parameters for the Redis client.
type ClientConfig struct {
	Addr       string
	Password   string
	DB         int
	PoolSize   int
	MaxRetries int
	TLSEnabled bool
	// ClientName shows up in CLIENT LIST, e.g. "basketopt-worker".
	ClientName string
}

// Client owns the connection pool shared by the cache, lock, limiter and bus.
type Client struct {
	rdb     *redis.Client
	version string
}

// New connects to Redis and checks that the server supports consumer groups.
// Servers that hide INFO are accepted unchecked.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	opts := &redis.Options{
		Addr:       cfg.Addr,
		Password:   cfg.Password,
		DB:         cfg.DB,
		PoolSize:   cfg.PoolSize,
		MaxRetries: cfg.MaxRetries,
		ClientName: cfg.ClientName,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", cfg.Addr, err)
	}

	c := &Client{rdb: rdb}
	if info, err := rdb.Info(ctx, "server").Result(); err == nil {
		c.version = serverVersion(info)
		if major, ok := majorVersion(c.version); ok && major < minMajorVersion {
			_ = rdb.Close()
			return nil, fmt.Errorf("redis: server %s at %s has no stream consumer groups (need %d.0+)", c.version, cfg.Addr, minMajorVersion)
		}
	}
	return c, nil
}

// Version returns the server version seen at connect time, or "" if the
// server did not report one.
func (c *Client) Version() string { return c.version }

// Ping checks the Redis connection and reports pool exhaustion as degraded.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}
	if st := c.rdb.PoolStats(); st.Timeouts > 0 && st.IdleConns == 0 && st.TotalConns >= uint32(c.rdb.Options().PoolSize) {
		return fmt.Errorf("redis: pool exhausted: %d conns, %d wait timeouts", st.TotalConns, st.Timeouts)
	}
	return nil
}

// Close closes the connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Underlying returns the raw *redis.Client.
func (c *Client) Underlying() *redis.Client {
	return c.rdb
}

// serverVersion extracts redis_version from an INFO server reply.
func serverVersion(info string) string {
	sc := bufio.NewScanner(strings.NewReader(info))
	for sc.Scan() {
		if v, ok := strings.CutPrefix(strings.TrimSpace(sc.Text()), "redis_version:"); ok {
			return v
		}
	}
	return ""
}

func majorVersion(v string) (int, bool) {
	head, _, _ := strings.Cut(v, ".")
	n, err := strconv.Atoi(head)
	return n, err == nil
}
