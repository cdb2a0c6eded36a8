package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rosenstahl/weather-risk-service/internal/observability"
)

func TestMemory(t *testing.T) {
	ctx := context.Background()

	t.Run("set and get", func(t *testing.T) {
		c := NewMemory(time.Minute)
		c.Set(ctx, "key", []byte("value"), time.Minute)

		got, ok := c.Get(ctx, "key")
		require.True(t, ok)
		assert.Equal(t, []byte("value"), got)
	})

	t.Run("missing key", func(t *testing.T) {
		c := NewMemory(time.Minute)
		_, ok := c.Get(ctx, "absent")
		assert.False(t, ok)
	})

	t.Run("expired entry is a miss", func(t *testing.T) {
		c := NewMemory(time.Minute)
		c.Set(ctx, "key", []byte("value"), time.Millisecond)

		time.Sleep(10 * time.Millisecond)

		_, ok := c.Get(ctx, "key")
		assert.False(t, ok)
	})
}

func TestRedis(t *testing.T) {
	ctx := context.Background()

	newRedisCache := func(t *testing.T) (*Redis, *miniredis.Miniredis) {
		t.Helper()
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { client.Close() })
		return NewRedis(client, observability.NopLogger()), mr
	}

	t.Run("set and get", func(t *testing.T) {
		c, _ := newRedisCache(t)
		c.Set(ctx, "key", []byte("value"), time.Minute)

		got, ok := c.Get(ctx, "key")
		require.True(t, ok)
		assert.Equal(t, []byte("value"), got)
	})

	t.Run("missing key", func(t *testing.T) {
		c, _ := newRedisCache(t)
		_, ok := c.Get(ctx, "absent")
		assert.False(t, ok)
	})

	t.Run("expired entry is a miss", func(t *testing.T) {
		c, mr := newRedisCache(t)
		c.Set(ctx, "key", []byte("value"), time.Minute)

		mr.FastForward(2 * time.Minute)

		_, ok := c.Get(ctx, "key")
		assert.False(t, ok)
	})

	t.Run("backend failure degrades to miss", func(t *testing.T) {
		c, mr := newRedisCache(t)
		mr.Close()

		_, ok := c.Get(ctx, "key")
		assert.False(t, ok)
	})
}
