package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/meridian/internal/lock"
	"github.com/prn-tf/meridian/internal/storage"
)

func newReportService(t *testing.T, f *fixture) (*ReportService, *storage.FilesystemBackend) {
	t.Helper()
	backend, err := storage.NewFilesystemBackend(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	return NewReportService(f.users, f.products, backend, "reports", nil, zerolog.Nop(), WithClock(fixedClock)), backend
}

func TestReportService_Publish(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc, backend := newReportService(t, f)

	_, ok := svc.Latest()
	assert.False(t, ok)
	_, err := svc.LoadLatest(ctx)
	require.ErrorIs(t, err, ErrNoReport)

	key, err := svc.Publish(ctx)
	require.NoError(t, err)
	assert.Equal(t, "reports/2024/03/15/statistics-20240315T100000Z.json", key)

	exists, err := backend.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)

	latest, ok := svc.Latest()
	require.True(t, ok)
	assert.Equal(t, key, latest)

	data, err := svc.LoadLatest(ctx)
	require.NoError(t, err)

	var doc struct {
		GeneratedAt time.Time `json:"generated_at"`
		Users       struct {
			TotalUsers int `json:"total_users"`
		} `json:"users"`
		Products struct {
			TotalProducts int `json:"total_products"`
		} `json:"products"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, testNow, doc.GeneratedAt)
	assert.Equal(t, 10, doc.Users.TotalUsers)
	assert.Equal(t, 10, doc.Products.TotalProducts)
}

func TestReportService_LoadLatestAfterDelete(t *testing.T) {
	ctx := context.Background()
	svc, backend := newReportService(t, newFixture(t))

	key, err := svc.Publish(ctx)
	require.NoError(t, err)
	require.NoError(t, backend.Delete(ctx, key))

	_, err = svc.LoadLatest(ctx)
	require.ErrorIs(t, err, ErrNoReport)
}

// countingPublisher records how often the scheduler publishes.
type countingPublisher struct {
	calls atomic.Int32
	err   error
}

func (p *countingPublisher) Publish(context.Context) (string, error) {
	p.calls.Add(1)
	if p.err != nil {
		return "", p.err
	}
	return "reports/x.json", nil
}

func TestReportScheduler_RunNow(t *testing.T) {
	ctx := context.Background()

	t.Run("publishes and keeps the lease", func(t *testing.T) {
		pub := &countingPublisher{}
		locker := lock.NewMemoryLocker()
		rs := NewReportScheduler(pub, locker, time.Hour, zerolog.Nop())

		res := rs.RunNow(ctx)
		require.NoError(t, res.Err)
		assert.Equal(t, "reports/x.json", res.Key)
		assert.False(t, res.Skipped)

		res = rs.RunNow(ctx)
		assert.True(t, res.Skipped, "second run in the same interval is skipped")
		assert.EqualValues(t, 1, pub.calls.Load())
	})

	t.Run("skips when another holder has the lease", func(t *testing.T) {
		pub := &countingPublisher{}
		locker := lock.NewMemoryLocker()
		acquired, err := locker.Acquire(ctx, lock.Keys.ReportPublish(), time.Minute)
		require.NoError(t, err)
		require.True(t, acquired)

		res := NewReportScheduler(pub, locker, time.Hour, zerolog.Nop()).RunNow(ctx)
		assert.True(t, res.Skipped)
		assert.Zero(t, pub.calls.Load())
	})

	t.Run("failure releases the lease", func(t *testing.T) {
		pub := &countingPublisher{err: errors.New("disk full")}
		locker := lock.NewMemoryLocker()
		rs := NewReportScheduler(pub, locker, time.Hour, zerolog.Nop())

		res := rs.RunNow(ctx)
		require.Error(t, res.Err)

		res = rs.RunNow(ctx)
		assert.False(t, res.Skipped, "a failed run can be retried")
		assert.EqualValues(t, 2, pub.calls.Load())
	})
}

func TestReportScheduler_StartStop(t *testing.T) {
	pub := &countingPublisher{}
	rs := NewReportScheduler(pub, lock.NewMemoryLocker(), time.Hour, zerolog.Nop())

	rs.Start()
	rs.Start()
	require.Eventually(t, func() bool { return pub.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	rs.Stop()
	rs.Stop()

	assert.EqualValues(t, 1, pub.calls.Load())
}

func TestReportScheduler_Restart(t *testing.T) {
	pub := &countingPublisher{}
	locker := lock.NewMemoryLocker()
	rs := NewReportScheduler(pub, locker, time.Hour, zerolog.Nop())

	rs.Start()
	require.Eventually(t, func() bool { return pub.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	rs.Stop()

	// Free the lease kept by the first run so the restart publishes again.
	_, err := locker.Release(context.Background(), lock.Keys.ReportPublish())
	require.NoError(t, err)

	rs.Start()
	require.Eventually(t, func() bool { return pub.calls.Load() == 2 }, time.Second, 5*time.Millisecond)
	rs.Stop()
}

func TestReportScheduler_LeaseTTL(t *testing.T) {
	tests := []struct {
		interval time.Duration
		want     time.Duration
	}{
		{time.Hour, 54 * time.Minute},
		{10 * time.Second, 9 * time.Second},
		{100 * time.Millisecond, minLeaseTTL},
	}
	for _, tt := range tests {
		rs := NewReportScheduler(&countingPublisher{}, lock.NewMemoryLocker(), tt.interval, zerolog.Nop())
		assert.Equal(t, tt.want, rs.leaseTTL(), tt.interval.String())
	}
}
