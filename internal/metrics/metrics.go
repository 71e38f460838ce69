// Package metrics holds the Prometheus collectors for Meridian.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/prn-tf/meridian/internal/domain"
)

const namespace = "meridian"

// Result labels.
const (
	ResultOK         = "ok"
	ResultValidation = "validation"
	ResultNotFound   = "not_found"
	ResultConflict   = "conflict"
	ResultError      = "error"
)

// Metrics groups every collector the services and handlers report to.
type Metrics struct {
	UserOperations    *prometheus.CounterVec
	ProductOperations *prometheus.CounterVec
	BulkItems         *prometheus.CounterVec
	CacheRequests     *prometheus.CounterVec
	ReportsPublished  *prometheus.CounterVec
	HTTPLatency       *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them with reg.
// If reg is also a Gatherer it backs Handler.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		UserOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "user_operations_total",
				Help:      "User service operations by outcome.",
			},
			[]string{"operation", "result"},
		),
		ProductOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "product_operations_total",
				Help:      "Product service operations by outcome.",
			},
			[]string{"operation", "result"},
		),
		BulkItems: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bulk_items_total",
				Help:      "Items processed by bulk operations.",
			},
			[]string{"operation", "result"},
		),
		CacheRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_requests_total",
				Help:      "Repository cache lookups by result.",
			},
			[]string{"result"},
		),
		ReportsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reports_published_total",
				Help:      "Statistics reports written to storage.",
			},
			[]string{"result"},
		),
		HTTPLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Latency of HTTP requests.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
	}

	reg.MustRegister(
		m.UserOperations,
		m.ProductOperations,
		m.BulkItems,
		m.CacheRequests,
		m.ReportsPublished,
		m.HTTPLatency,
	)
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	}
	return m
}

// Result maps an error to its result label.
func Result(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case domain.IsValidation(err):
		return ResultValidation
	case domain.IsNotFound(err):
		return ResultNotFound
	case domain.IsConflict(err):
		return ResultConflict
	default:
		return ResultError
	}
}

// RecordUserOperation counts one user service call.
func (m *Metrics) RecordUserOperation(op string, err error) {
	if m == nil {
		return
	}
	m.UserOperations.WithLabelValues(op, Result(err)).Inc()
}

// RecordProductOperation counts one product service call.
func (m *Metrics) RecordProductOperation(op string, err error) {
	if m == nil {
		return
	}
	m.ProductOperations.WithLabelValues(op, Result(err)).Inc()
}

// RecordBulkItem counts one item of a bulk operation.
func (m *Metrics) RecordBulkItem(op string, err error) {
	if m == nil {
		return
	}
	m.BulkItems.WithLabelValues(op, Result(err)).Inc()
}

// RecordCacheLookup counts a cache hit or miss.
func (m *Metrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheRequests.WithLabelValues(result).Inc()
}

// RecordReport counts one report publication.
func (m *Metrics) RecordReport(err error) {
	if m == nil {
		return
	}
	m.ReportsPublished.WithLabelValues(Result(err)).Inc()
}

// ObserveHTTP records the latency of one request.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPLatency.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// Handler serves the registered collectors in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
