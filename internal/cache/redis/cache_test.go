package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/meridian/internal/repository"
)

// These tests need a reachable server; set MERIDIAN_TEST_REDIS_ADDR to run them.
func connectTestCache(t *testing.T) *Cache {
	t.Helper()
	addr := os.Getenv("MERIDIAN_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("MERIDIAN_TEST_REDIS_ADDR not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	c, err := Connect(ctx, Config{Addr: addr, KeyPrefix: "meridian-test:" + uuid.NewString() + ":"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCache_RoundTrip(t *testing.T) {
	c := connectTestCache(t)
	ctx := context.Background()

	_, err := c.Get(ctx, "absent")
	require.ErrorIs(t, err, repository.ErrCacheMiss)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("v"), got)

	ok, err := c.Exists(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, c.DeleteMulti(ctx, "k", "other"))
	ok, err = c.Exists(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestConnect_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	_, err := Connect(ctx, Config{Addr: "127.0.0.1:1"})
	require.ErrorIs(t, err, repository.ErrCacheUnavailable)
}

func TestCache_KeyPrefix(t *testing.T) {
	c := New(NewClient(Config{Addr: "127.0.0.1:1"}), "app:")
	t.Cleanup(func() { _ = c.Close() })
	require.Equal(t, "app:user", c.key("user"))
}
