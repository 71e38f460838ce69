package lock

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestMemoryLocker(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	l := NewMemoryLocker()
	l.now = func() time.Time { return now }
	key := Keys.ReportPublish()

	ok, err := l.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = l.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	require.False(t, ok, "held lease blocks a second holder")

	released, err := l.Release(ctx, key)
	require.NoError(t, err)
	require.True(t, released)

	released, err = l.Release(ctx, key)
	require.NoError(t, err)
	require.False(t, released)
}

func TestMemoryLocker_ExpiredLeaseIsTakenOver(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	l := NewMemoryLocker()
	l.now = func() time.Time { return now }

	ok, err := l.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	now = now.Add(2 * time.Minute)
	ok, err = l.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestMemoryLocker_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMemoryLocker().Acquire(ctx, "k", time.Minute)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRedisLocker(t *testing.T) {
	addr := os.Getenv("MERIDIAN_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("MERIDIAN_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	prefix := "meridian-test:" + t.Name() + ":"
	a := NewRedisLocker(client, prefix)
	b := NewRedisLocker(client, prefix)

	ok, err := a.Acquire(ctx, "job", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = b.Acquire(ctx, "job", time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	released, err := b.Release(ctx, "job")
	require.NoError(t, err)
	require.False(t, released, "only the holder can release")

	released, err = a.Release(ctx, "job")
	require.NoError(t, err)
	require.True(t, released)
}
