package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"feedline/internal/observability"

	"github.com/redis/go-redis/v9"
)

const (
	PostKeyPrefix    = "post:%d"
	RevokedJTIPrefix = "revoked:jti:%s"
)

const PostTTL = 5 * time.Minute

// StaleReadWindow is how long after a write a racing reader may still cache
// the pre-write row. Writers invalidate once more when it has passed.
const StaleReadWindow = 500 * time.Millisecond

func PostKey(postID uint) string {
	return fmt.Sprintf(PostKeyPrefix, postID)
}

func RevokedJTIKey(jti string) string {
	return fmt.Sprintf(RevokedJTIPrefix, jti)
}

// Cache is a JSON cache over Redis. A Cache with a nil client is a no-op, so
// callers never branch on whether Redis is configured.
type Cache struct {
	rdb *redis.Client
}

// New wraps rdb, which may be nil.
func New(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb}
}

// Enabled reports whether a Redis client is attached.
func (c *Cache) Enabled() bool {
	return c != nil && c.rdb != nil
}

// GetJSON reads key into dest. It returns false when the key is absent.
func (c *Cache) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if !c.Enabled() {
		return false, nil
	}
	s, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(s), dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON marshals v and stores it under key with ttl.
func (c *Cache) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	if !c.Enabled() {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, b, ttl).Err()
}

// Aside serves key from Redis, or calls fetch to fill dest and stores the
// result. Redis failures degrade to calling fetch.
func (c *Cache) Aside(ctx context.Context, key string, dest any, ttl time.Duration, fetch func() error) error {
	found, err := c.GetJSON(ctx, key, dest)
	switch {
	case err != nil:
		observability.CacheLookups.WithLabelValues("error").Inc()
		observability.Logger.WarnContext(ctx, "cache read failed", slog.String("key", key), slog.String("error", err.Error()))
	case found:
		observability.CacheLookups.WithLabelValues("hit").Inc()
		return nil
	case c.Enabled():
		observability.CacheLookups.WithLabelValues("miss").Inc()
	}

	if err := fetch(); err != nil {
		return err
	}

	if err := c.SetJSON(ctx, key, dest, ttl); err != nil {
		observability.Logger.WarnContext(ctx, "cache write failed", slog.String("key", key), slog.String("error", err.Error()))
	}
	return nil
}

// Invalidate deletes key, ignoring errors.
func (c *Cache) Invalidate(ctx context.Context, key string) {
	if c.Enabled() {
		c.rdb.Del(ctx, key)
	}
}

// InvalidateTwice deletes key now and again after delay, evicting an entry
// cached by a read that loaded the row before the write committed.
func (c *Cache) InvalidateTwice(ctx context.Context, key string, delay time.Duration) {
	if !c.Enabled() {
		return
	}
	c.Invalidate(ctx, key)
	bg := context.WithoutCancel(ctx)
	time.AfterFunc(delay, func() {
		if err := c.rdb.Del(bg, key).Err(); err != nil && !errors.Is(err, redis.ErrClosed) {
			observability.Logger.Warn("delayed cache invalidation failed",
				slog.String("key", key), slog.String("error", err.Error()))
		}
	})
}

// Mark sets key with ttl as a presence flag.
func (c *Cache) Mark(ctx context.Context, key string, ttl time.Duration) error {
	if !c.Enabled() || ttl <= 0 {
		return nil
	}
	return c.rdb.Set(ctx, key, "1", ttl).Err()
}

// Marked reports whether a flag set by Mark is present.
func (c *Cache) Marked(ctx context.Context, key string) (bool, error) {
	if !c.Enabled() {
		return false, nil
	}
	n, err := c.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
