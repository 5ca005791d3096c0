package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
)

func exerciseCache(t *testing.T, c Cache, advance func(time.Duration)) {
	t.Helper()
	ctx := context.Background()

	_, err := c.Get(ctx, "missing")
	require.True(t, errors.Is(err, ErrMiss), "expected miss, got %v", err)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "v", string(got))

	ok, err := c.SetNX(ctx, "k", []byte("other"), time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = c.SetNX(ctx, "fresh", []byte("1"), time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	n, err := c.Incr(ctx, "gen")
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	n, err = c.Incr(ctx, "gen")
	require.NoError(t, err)
	require.Equal(t, int64(2), n)

	require.NoError(t, c.Delete(ctx, "k"))
	_, err = c.Get(ctx, "k")
	require.ErrorIs(t, err, ErrMiss)

	advance(2 * time.Second)
	_, err = c.Get(ctx, "fresh")
	require.ErrorIs(t, err, ErrMiss)
}

func TestMemoryCache(t *testing.T) {
	mem := NewMemory()
	now := time.Now()
	mem.now = func() time.Time { return now }
	exerciseCache(t, mem, func(d time.Duration) { now = now.Add(d) })
}

func TestRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := NewRedisFromClient(client, "test:")
	defer c.Close()

	exerciseCache(t, c, mr.FastForward)
	require.True(t, mr.Exists("test:gen"), "expected prefixed key in redis")
}

func TestNewRedisPings(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := NewRedis(context.Background(), RedisOptions{Addr: mr.Addr(), Prefix: "x:"})
	require.NoError(t, err)
	defer c.Close()

	mr.Close()
	_, err = NewRedis(context.Background(), RedisOptions{Addr: mr.Addr()})
	require.Error(t, err)
}
