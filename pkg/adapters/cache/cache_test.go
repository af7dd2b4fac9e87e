package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_GetSetDelete(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "shorturl:abc")
	require.NoError(t, err)
	assert.False(t, ok)

	value := []byte(`{"short_code":"abc"}`)
	require.NoError(t, c.Set(ctx, "shorturl:abc", value, time.Minute))
	require.NoError(t, c.Set(ctx, "shorturl:abc:stats", []byte("stats"), time.Minute))
	value[0] = 'X'

	got, ok, err := c.Get(ctx, "shorturl:abc")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"short_code":"abc"}`, string(got))

	require.NoError(t, c.Delete(ctx, "shorturl:abc", "shorturl:abc:stats"))
	_, ok, _ = c.Get(ctx, "shorturl:abc")
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, "shorturl:abc:stats")
	assert.False(t, ok)
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 20*time.Millisecond))
	time.Sleep(40 * time.Millisecond)

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCache_BreakerOpensWhenUnreachable(t *testing.T) {
	// Nothing listens on port 1.
	c := NewRedisCache(NewRedisClient("127.0.0.1:1"))
	defer c.Close()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _, err := c.Get(ctx, "k")
		require.Error(t, err)
	}

	_, _, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.ErrorIs(t, c.Set(ctx, "k", []byte("v"), time.Second), gobreaker.ErrOpenState)
}

func TestRedisCache_RoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	c := NewRedisCache(NewRedisClient(addr))
	defer c.Close()
	ctx := context.Background()
	require.NoError(t, c.Ping(ctx))

	key := "shorturl:test-" + time.Now().Format("150405.000000")
	_, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, key, []byte("payload"), time.Minute))
	got, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "payload", string(got))

	require.NoError(t, c.Delete(ctx, key, key+":stats"))
	_, ok, err = c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
}
