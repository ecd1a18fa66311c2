// Package cache provides the Redis-backed cache layer: a best-effort
// key/value client plus the session and embedding caches derived from it.
//
// The cache is a pure performance layer. Every operation degrades to an
// absent/false result when the backend is unreachable; correctness of the
// system never depends on it.
package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// connectTimeout bounds the startup ping so a dead backend never stalls
	// process start.
	connectTimeout = time.Second
	// opTimeout bounds every cache operation on the request path.
	opTimeout = time.Second

	// scanBatchSize is the number of keys fetched per SCAN iteration when
	// deleting by pattern.
	scanBatchSize = 100
)

// Config holds the Redis connection configuration.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// Client is a best-effort connection to a Redis backend. A nil or disabled
// client behaves as if caching were turned off: reads miss, writes report
// false, and no operation returns an error.
type Client struct {
	client  *redis.Client
	enabled bool
}

// NewClient connects to Redis and verifies the connection with a single ping.
// If the backend is unreachable the returned client is permanently disabled
// for the process lifetime; loss of caching degrades performance, not
// correctness, so no reconnection is attempted.
func NewClient(cfg Config) *Client {
	if cfg.Addr == "" {
		slog.Info("redis address not configured, caching disabled")
		return &Client{}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  connectTimeout,
		ReadTimeout:  opTimeout,
		WriteTimeout: opTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Warn("redis unavailable, caching disabled", "addr", cfg.Addr, "error", err)
		_ = rdb.Close()
		return &Client{}
	}

	slog.Info("redis cache enabled", "addr", cfg.Addr)
	return &Client{client: rdb, enabled: true}
}

// Enabled reports whether the backend was reachable at startup.
func (c *Client) Enabled() bool {
	return c != nil && c.enabled
}

// Get returns the value for key, or absent on miss, disabled client, or any
// backend error.
func (c *Client) Get(ctx context.Context, key string) (string, bool) {
	if !c.Enabled() {
		return "", false
	}

	value, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			slog.Warn("cache read error", "key", key, "error", err)
		}
		return "", false
	}
	return value, true
}

// Set stores value under key. A zero ttl means no expiry. Returns false on
// disabled client or backend error.
func (c *Client) Set(ctx context.Context, key, value string, ttl time.Duration) bool {
	if !c.Enabled() {
		return false
	}

	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		slog.Warn("cache write error", "key", key, "error", err)
		return false
	}
	return true
}

// Delete removes key. Returns false on disabled client or backend error.
func (c *Client) Delete(ctx context.Context, key string) bool {
	if !c.Enabled() {
		return false
	}

	if err := c.client.Del(ctx, key).Err(); err != nil {
		slog.Warn("cache delete error", "key", key, "error", err)
		return false
	}
	return true
}

// DeleteByPattern removes all keys matching the glob pattern using SCAN so
// the backend is never blocked by a full keyspace walk.
func (c *Client) DeleteByPattern(ctx context.Context, pattern string) bool {
	if !c.Enabled() {
		return false
	}

	iter := c.client.Scan(ctx, 0, pattern, scanBatchSize).Iterator()
	keys := make([]string, 0, scanBatchSize)
	deleted := 0
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) >= scanBatchSize {
			deleted += c.deleteKeys(ctx, keys)
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		slog.Warn("cache pattern delete error", "pattern", pattern, "error", err)
		return false
	}
	if len(keys) > 0 {
		deleted += c.deleteKeys(ctx, keys)
	}

	if deleted > 0 {
		slog.Debug("deleted cache keys by pattern", "pattern", pattern, "count", deleted)
	}
	return true
}

func (c *Client) deleteKeys(ctx context.Context, keys []string) int {
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		slog.Warn("cache delete error", "keys", len(keys), "error", err)
		return 0
	}
	return len(keys)
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Close()
}
