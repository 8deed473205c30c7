package rediscache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestRedisCache_GetSetDelete(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = c.Close() })

	ctx := context.Background()
	require.NoError(t, c.Ping(ctx))
	require.NoError(t, c.Set(ctx, "order:1:tracking", []byte(`{"orderId":1}`), time.Minute))

	b, ok, err := c.Get(ctx, "order:1:tracking")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte(`{"orderId":1}`), b)

	require.NoError(t, c.Delete(ctx, "order:1:tracking", "order:2:tracking"))
	_, ok, err = c.Get(ctx, "order:1:tracking")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.Delete(ctx))
}

func TestRedisCache_TTL(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(Options{Addr: mr.Addr()})

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	mr.FastForward(2 * time.Minute)

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisCache_GetError(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(Options{Addr: mr.Addr()})
	mr.Close()

	_, _, err := c.Get(context.Background(), "k")
	require.Error(t, err)
}

func TestRateLimiter_Allow(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(Options{Addr: mr.Addr()})
	rl := NewRateLimiter(c.Client())

	ctx := context.Background()
	ok, n, err := rl.Allow(ctx, "rl:pathao:202601010000", 2, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(1), n)

	ok, n, _ = rl.Allow(ctx, "rl:pathao:202601010000", 2, time.Minute)
	require.True(t, ok)
	require.Equal(t, int64(2), n)

	ok, n, _ = rl.Allow(ctx, "rl:pathao:202601010000", 2, time.Minute)
	require.False(t, ok)
	require.Equal(t, int64(3), n)

	// другое окно считается отдельно
	ok, n, _ = rl.Allow(ctx, "rl:pathao:202601010001", 2, time.Minute)
	require.True(t, ok)
	require.Equal(t, int64(1), n)
}

func TestRateLimiter_WindowExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	rl := NewRateLimiter(New(Options{Addr: mr.Addr()}).Client())

	ctx := context.Background()
	ok, _, err := rl.Allow(ctx, "rl:k", 1, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	ok, _, _ = rl.Allow(ctx, "rl:k", 1, time.Minute)
	require.False(t, ok)

	mr.FastForward(61 * time.Second)
	ok, n, _ := rl.Allow(ctx, "rl:k", 1, time.Minute)
	require.True(t, ok)
	require.Equal(t, int64(1), n)
}
