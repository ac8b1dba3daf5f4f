package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func newTestCache(t *testing.T, ttl time.Duration) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, ttl), mr
}

func TestCache_SetGetJSON(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.SetJSON(ctx, "k", entry{Name: "a", Count: 2}))
	assert.True(t, mr.Exists("k"))
	assert.Equal(t, time.Minute, mr.TTL("k"))

	var got entry
	found, err := c.GetJSON(ctx, "k", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, entry{Name: "a", Count: 2}, got)

	found, err = c.GetJSON(ctx, "missing", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCache_AsideFetchesOnceThenHits(t *testing.T) {
	c, _ := newTestCache(t, time.Minute)
	ctx := context.Background()

	calls := 0
	fetch := func(dest *entry) func() error {
		return func() error {
			calls++
			*dest = entry{Name: "fresh", Count: calls}
			return nil
		}
	}

	var first entry
	hit, err := c.Aside(ctx, PostKey("1"), &first, fetch(&first))
	require.NoError(t, err)
	assert.False(t, hit)

	var second entry
	hit, err = c.Aside(ctx, PostKey("1"), &second, fetch(&second))
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)

	require.NoError(t, c.Invalidate(ctx, PostKey("1")))
	var third entry
	hit, err = c.Aside(ctx, PostKey("1"), &third, fetch(&third))
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, calls)
}

func TestCache_AsideDropsFillRacingInvalidate(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	ctx := context.Background()
	key := PostKey("1")

	// The source changes and is invalidated while the stale read is in flight.
	var stale entry
	hit, err := c.Aside(ctx, key, &stale, func() error {
		stale = entry{Name: "old"}
		return c.Invalidate(ctx, key)
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "old", stale.Name)
	assert.False(t, mr.Exists(key))

	var fresh entry
	hit, err = c.Aside(ctx, key, &fresh, func() error {
		fresh = entry{Name: "new"}
		return nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.True(t, mr.Exists(key))

	var cached entry
	found, err := c.GetJSON(ctx, key, &cached)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "new", cached.Name)
}

func TestCache_AsideFallsBackWhenRedisDown(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	mr.Close()

	calls := 0
	var dest entry
	hit, err := c.Aside(context.Background(), "k", &dest, func() error {
		calls++
		dest = entry{Name: "db"}
		return nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "db", dest.Name)
}

func TestCache_AsidePropagatesFetchError(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	boom := errors.New("boom")

	var dest entry
	_, err := c.Aside(context.Background(), "k", &dest, func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("k"))
}

func TestCache_NilClientIsPermanentMiss(t *testing.T) {
	c := New(nil, time.Minute)
	ctx := context.Background()

	assert.False(t, c.Enabled())
	assert.NoError(t, c.SetJSON(ctx, "k", entry{}))
	assert.NoError(t, c.Invalidate(ctx, "k"))

	calls := 0
	var dest entry
	hit, err := c.Aside(ctx, "k", &dest, func() error { calls++; return nil })
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 1, calls)
}

func TestNewClient_UnreachableReturnsNil(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	assert.Nil(t, NewClient(context.Background(), addr))
}

func TestNewClient_Connects(t *testing.T) {
	mr := miniredis.RunT(t)
	client := NewClient(context.Background(), "redis://"+mr.Addr())
	require.NotNil(t, client)
	_ = client.Close()
}
