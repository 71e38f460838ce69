// Package lock provides leases that keep periodic jobs from overlapping.
// A single instance uses the memory locker; replicas sharing a Redis
// server use the Redis locker so only one of them runs each job.
package lock

import (
	"context"
	"time"
)

// Locker hands out expiring leases on named keys.
type Locker interface {
	// Acquire attempts to take the lease on key.
	// Returns false if another holder has it. The lease expires after ttl.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Release gives up a lease this locker holds.
	// Returns false if the lease was not held or has already expired.
	Release(ctx context.Context, key string) (bool, error)
}

// =============================================================================
// Common Lock Keys
// =============================================================================

// Keys provides lock key generation for scheduled jobs.
var Keys = lockKeys{}

type lockKeys struct{}

// ReportPublish returns the lock key for the statistics report job.
func (lockKeys) ReportPublish() string {
	return "lock:reports:publish"
}
