package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a JSON cache over Redis. A Cache with a nil client is valid and
// behaves as a permanent miss.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New returns a Cache storing entries for ttl. client may be nil.
func New(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Enabled reports whether a Redis client backs the cache.
func (c *Cache) Enabled() bool {
	return c != nil && c.client != nil
}

// GetJSON attempts to get the key from Redis and unmarshal into dest.
// Returns (true, nil) if found and unmarshaled, (false, nil) if not found.
func (c *Cache) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if !c.Enabled() {
		return false, nil
	}
	b, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(b, dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON marshals v and sets the key with the cache TTL.
func (c *Cache) SetJSON(ctx context.Context, key string, v any) error {
	if !c.Enabled() {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, b, c.ttl).Err()
}

// Aside tries Redis first; on a miss it calls fetch, which must populate
// dest, then stores dest best-effort. It reports whether dest came from Redis.
//
// The fill runs under WATCH on the key's fill guard, so a fill racing an
// Invalidate of the same key is dropped instead of writing a stale value.
func (c *Cache) Aside(ctx context.Context, key string, dest any, fetch func() error) (bool, error) {
	found, err := c.GetJSON(ctx, key, dest)
	if err == nil && found {
		return true, nil
	}
	if !c.Enabled() {
		return false, fetch()
	}

	var fetched bool
	var fetchErr error
	_ = c.client.Watch(ctx, func(tx *redis.Tx) error {
		fetched = true
		if fetchErr = fetch(); fetchErr != nil {
			return fetchErr
		}
		b, err := json.Marshal(dest)
		if err != nil {
			return err
		}
		// Fails with redis.TxFailedErr when the guard moved during fetch.
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, b, c.ttl)
			return nil
		})
		return err
	}, fillGuardKey(key))

	if !fetched {
		// Redis went away before WATCH; serve from the source uncached.
		return false, fetch()
	}
	return false, fetchErr
}

// Invalidate removes the given keys and bumps their fill guards so that
// in-flight Aside fills started before the invalidation are discarded.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) error {
	if !c.Enabled() || len(keys) == 0 {
		return nil
	}
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, key := range keys {
			pipe.Incr(ctx, fillGuardKey(key))
			pipe.Expire(ctx, fillGuardKey(key), fillGuardTTL)
		}
		pipe.Del(ctx, keys...)
		return nil
	})
	return err
}
