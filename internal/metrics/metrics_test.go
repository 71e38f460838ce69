package metrics

import (
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/meridian/internal/domain"
)

func TestResult(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ResultOK},
		{domain.ErrInvalidEmail, ResultValidation},
		{fmt.Errorf("lookup: %w", domain.ErrUserNotFound), ResultNotFound},
		{domain.ErrUserAlreadyExists, ResultConflict},
		{errors.New("disk on fire"), ResultError},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, Result(tt.err))
	}
}

func TestRecorders(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordUserOperation("create", nil)
	m.RecordUserOperation("create", domain.ErrUserAlreadyExists)
	m.RecordBulkItem("status", domain.ErrUserNotFound)
	m.RecordCacheLookup(true)
	m.RecordCacheLookup(false)
	m.RecordCacheLookup(false)

	require.Equal(t, 1.0, testutil.ToFloat64(m.UserOperations.WithLabelValues("create", ResultOK)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.UserOperations.WithLabelValues("create", ResultConflict)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.BulkItems.WithLabelValues("status", ResultNotFound)))
	require.Equal(t, 2.0, testutil.ToFloat64(m.CacheRequests.WithLabelValues("miss")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.RecordUserOperation("create", nil)
		m.RecordProductOperation("reserve", nil)
		m.RecordReport(nil)
		m.ObserveHTTP("GET", "/health", 200, 0)
	})
	require.NotNil(t, m.Handler())
}
