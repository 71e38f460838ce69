package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/meridian/internal/metrics"
	"github.com/prn-tf/meridian/internal/repository"
	"github.com/prn-tf/meridian/internal/storage"
)

// Report is a point-in-time snapshot of user and catalogue statistics.
type Report struct {
	GeneratedAt time.Time                     `json:"generated_at"`
	Users       *repository.UserStatistics    `json:"users"`
	Products    *repository.ProductStatistics `json:"products"`
}

// ReportService builds statistics reports and publishes them to a storage backend.
type ReportService struct {
	users    repository.UserQuerier
	products repository.ProductQuerier
	backend  storage.Backend
	prefix   string
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	opts     options

	mu     sync.RWMutex
	latest string
}

// NewReportService creates a new ReportService.
func NewReportService(
	users repository.UserQuerier,
	products repository.ProductQuerier,
	backend storage.Backend,
	prefix string,
	m *metrics.Metrics,
	logger zerolog.Logger,
	opts ...Option,
) *ReportService {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &ReportService{
		users:    users,
		products: products,
		backend:  backend,
		prefix:   prefix,
		metrics:  m,
		logger:   logger.With().Str("service", "report").Logger(),
		opts:     o,
	}
}

// Build computes a report without storing it.
func (s *ReportService) Build(ctx context.Context) (*Report, error) {
	userStats, err := s.users.Statistics(ctx)
	if err != nil {
		return nil, passThrough(err)
	}
	productStats, err := s.products.Statistics(ctx)
	if err != nil {
		return nil, passThrough(err)
	}
	return &Report{
		GeneratedAt: s.opts.now().UTC(),
		Users:       userStats,
		Products:    productStats,
	}, nil
}

// Publish builds a report, writes it as JSON and returns its storage key.
func (s *ReportService) Publish(ctx context.Context) (key string, err error) {
	defer func() { s.metrics.RecordReport(err) }()

	report, err := s.Build(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to build report")
		return "", err
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("%w: encode report: %v", ErrInternalError, err)
	}

	key = storage.ReportKey(s.prefix, report.GeneratedAt)
	if err := s.backend.Put(ctx, key, bytes.NewReader(data), int64(len(data))); err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("failed to store report")
		return "", fmt.Errorf("%w: store report: %v", ErrInternalError, err)
	}

	s.mu.Lock()
	s.latest = key
	s.mu.Unlock()

	s.logger.Info().
		Str("key", key).
		Int("size", len(data)).
		Int("users", report.Users.TotalUsers).
		Int("products", report.Products.TotalProducts).
		Msg("report published")
	return key, nil
}

// Latest returns the key of the last report published by this process.
func (s *ReportService) Latest() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.latest != ""
}

// LoadLatest reads back the last published report as stored.
func (s *ReportService) LoadLatest(ctx context.Context) ([]byte, error) {
	key, ok := s.Latest()
	if !ok {
		return nil, ErrNoReport
	}

	rc, err := s.backend.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, ErrNoReport
		}
		return nil, fmt.Errorf("%w: read report: %v", ErrInternalError, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: read report: %v", ErrInternalError, err)
	}
	return data, nil
}
