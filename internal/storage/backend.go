// Package storage persists published documents such as statistics reports.
// Backends address content by slash-separated keys; the filesystem backend
// serves single-node deployments and the S3 backend shared ones.
package storage

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrObjectNotFound is returned when no content exists under a key.
	ErrObjectNotFound = errors.New("object not found")

	// ErrInvalidKey is returned for empty, absolute or escaping keys.
	ErrInvalidKey = errors.New("invalid storage key")
)

// Backend defines the interface for storage backends.
type Backend interface {
	// Put stores size bytes from reader under key, replacing any existing content.
	// Readers never observe a partially written object.
	Put(ctx context.Context, key string, reader io.Reader, size int64) error

	// Get opens the content stored under key. The caller must close it.
	// Returns ErrObjectNotFound if nothing is stored there.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the content under key.
	// Returns ErrObjectNotFound if nothing is stored there.
	Delete(ctx context.Context, key string) error

	// Exists checks if content is stored under key.
	Exists(ctx context.Context, key string) (bool, error)
}
