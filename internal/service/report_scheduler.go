package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/meridian/internal/lock"
)

// minLeaseTTL bounds the publish lease for very short intervals.
const minLeaseTTL = time.Second

// Publisher produces one report and returns its key.
type Publisher interface {
	Publish(ctx context.Context) (string, error)
}

// ReportScheduler publishes a report on a fixed interval.
// Replicas sharing a locker publish at most once per interval between them.
type ReportScheduler struct {
	reports  Publisher
	locker   lock.Locker
	interval time.Duration
	logger   zerolog.Logger

	// Control
	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewReportScheduler creates a new report scheduler.
func NewReportScheduler(reports Publisher, locker lock.Locker, interval time.Duration, logger zerolog.Logger) *ReportScheduler {
	return &ReportScheduler{
		reports:  reports,
		locker:   locker,
		interval: interval,
		logger:   logger.With().Str("service", "report_scheduler").Logger(),
	}
}

// Start begins publishing in the background. It is a no-op when already
// running. A stopped scheduler can be started again.
func (rs *ReportScheduler) Start() {
	rs.mu.Lock()
	if rs.running {
		rs.mu.Unlock()
		return
	}
	rs.running = true
	rs.stopChan = make(chan struct{})
	rs.doneChan = make(chan struct{})
	stop, done := rs.stopChan, rs.doneChan
	rs.mu.Unlock()

	rs.logger.Info().Dur("interval", rs.interval).Msg("starting report scheduler")

	go rs.runLoop(stop, done)
}

// Stop halts the scheduler and waits for an in-flight run to finish.
func (rs *ReportScheduler) Stop() {
	rs.mu.Lock()
	if !rs.running {
		rs.mu.Unlock()
		return
	}
	rs.running = false
	stop, done := rs.stopChan, rs.doneChan
	rs.mu.Unlock()

	close(stop)
	<-done

	rs.logger.Info().Msg("report scheduler stopped")
}

func (rs *ReportScheduler) runLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	// Run immediately on start
	rs.RunNow(ctx)

	ticker := time.NewTicker(rs.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rs.RunNow(ctx)
		case <-stop:
			return
		}
	}
}

// RunResult describes one scheduled run.
type RunResult struct {
	// Key is the published report, empty when the run was skipped or failed.
	Key string

	// Skipped is true when another holder had the publish lease.
	Skipped bool

	Err      error
	Duration time.Duration
}

// RunNow takes the publish lease and publishes one report.
// The lease is kept after success so no other replica publishes again
// before the next interval.
func (rs *ReportScheduler) RunNow(ctx context.Context) RunResult {
	start := time.Now()
	key := lock.Keys.ReportPublish()

	acquired, err := rs.locker.Acquire(ctx, key, rs.leaseTTL())
	if err != nil {
		rs.logger.Error().Err(err).Msg("failed to acquire report lock")
		return RunResult{Err: err, Duration: time.Since(start)}
	}
	if !acquired {
		rs.logger.Debug().Msg("report lock held by another process, skipping run")
		return RunResult{Skipped: true, Duration: time.Since(start)}
	}

	reportKey, err := rs.reports.Publish(ctx)
	if err != nil {
		if _, relErr := rs.locker.Release(ctx, key); relErr != nil {
			rs.logger.Error().Err(relErr).Msg("failed to release report lock")
		}
		rs.logger.Error().Err(err).Msg("scheduled report failed")
		return RunResult{Err: err, Duration: time.Since(start)}
	}

	result := RunResult{Key: reportKey, Duration: time.Since(start)}
	rs.logger.Info().Str("key", reportKey).Dur("duration", result.Duration).Msg("scheduled report published")
	return result
}

// leaseTTL expires shortly before the next tick.
func (rs *ReportScheduler) leaseTTL() time.Duration {
	ttl := rs.interval * 9 / 10
	if ttl < minLeaseTTL {
		ttl = minLeaseTTL
	}
	return ttl
}
