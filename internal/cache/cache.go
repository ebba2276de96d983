// Package cache is the Redis layer: per-IP rate limiting and a
// short-TTL assessment cache in front of SQLite. Every method on a nil
// *Cache degrades to a no-op so the server runs without Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"

	"argus/internal/types"
)

const (
	assessmentTTL = 5 * time.Minute
	rateWindow    = time.Minute
)

// Cache wraps the Redis client.
type Cache struct {
	rdb *redis.Client
	log *slog.Logger
}

// New connects to Redis at addr. An empty addr or a failed ping
// returns (nil, err); a nil *Cache is valid and inert.
func New(ctx context.Context, addr string, log *slog.Logger) (*Cache, error) {
	if addr == "" {
		return nil, errors.New("cache: no redis address configured")
	}
	if log == nil {
		log = slog.Default()
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("cache: ping %s: %w", addr, err)
	}
	return &Cache{rdb: rdb, log: log}, nil
}

func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}

// IsRateLimited counts the request against ip's one-minute window and
// reports whether the caller exceeded perMinute. Redis errors fail
// open: limiting is protection, not correctness.
func (c *Cache) IsRateLimited(ctx context.Context, ip string, perMinute int) (bool, error) {
	if c == nil || perMinute <= 0 {
		return false, nil
	}
	key := "argus:rl:" + ip
	n, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("cache: incr %s: %w", key, err)
	}
	if n == 1 {
		if err := c.rdb.Expire(ctx, key, rateWindow).Err(); err != nil {
			c.log.Warn("rate limit window not set", "key", key, "error", err)
		}
	}
	return n > int64(perMinute), nil
}

// GetAssessment returns the cached verdict for a hash, or nil on miss.
func (c *Cache) GetAssessment(ctx context.Context, hash string) *types.Assessment {
	if c == nil {
		return nil
	}
	raw, err := c.rdb.Get(ctx, "argus:assess:"+hash).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		c.log.Warn("assessment cache read failed", "fingerprint", hash, "error", err)
		return nil
	}
	var a types.Assessment
	if err := json.Unmarshal(raw, &a); err != nil {
		c.log.Warn("assessment cache entry unreadable", "fingerprint", hash, "error", err)
		return nil
	}
	return &a
}

// SetAssessment caches a verdict. Failures are logged, never surfaced:
// SQLite remains the source of truth.
func (c *Cache) SetAssessment(ctx context.Context, a *types.Assessment) {
	if c == nil || a == nil {
		return
	}
	raw, err := json.Marshal(a)
	if err != nil {
		c.log.Warn("assessment cache encode failed", "fingerprint", a.FingerprintHash, "error", err)
		return
	}
	if err := c.rdb.Set(ctx, "argus:assess:"+a.FingerprintHash, raw, assessmentTTL).Err(); err != nil {
		c.log.Warn("assessment cache write failed", "fingerprint", a.FingerprintHash, "error", err)
	}
}
