package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// FilesystemBackend stores content as files below a base directory.
type FilesystemBackend struct {
	basePath string
	logger   zerolog.Logger
}

// NewFilesystemBackend creates the base directory if needed.
func NewFilesystemBackend(basePath string, logger zerolog.Logger) (*FilesystemBackend, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &FilesystemBackend{
		basePath: basePath,
		logger:   logger.With().Str("component", "storage").Str("backend", "filesystem").Logger(),
	}, nil
}

// Put writes to a temporary file in the target directory and renames it into place.
func (b *FilesystemBackend) Put(ctx context.Context, key string, reader io.Reader, size int64) error {
	target, err := ComputePath(b.basePath, key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if tmpName != "" {
			_ = os.Remove(tmpName)
		}
	}()

	written, err := io.Copy(tmp, reader)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write content: %w", err)
	}
	if size >= 0 && written != size {
		tmp.Close()
		return fmt.Errorf("size mismatch: expected %d bytes, wrote %d", size, written)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync content: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpName, target); err != nil {
		return fmt.Errorf("failed to move content into place: %w", err)
	}
	tmpName = ""

	b.logger.Debug().Str("key", key).Int64("size", written).Msg("stored object")
	return nil
}

func (b *FilesystemBackend) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	target, err := ComputePath(b.basePath, key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(target)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return nil, fmt.Errorf("failed to open object: %w", err)
	}
	return f, nil
}

func (b *FilesystemBackend) Delete(ctx context.Context, key string) error {
	target, err := ComputePath(b.basePath, key)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

func (b *FilesystemBackend) Exists(ctx context.Context, key string) (bool, error) {
	target, err := ComputePath(b.basePath, key)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(target)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat object: %w", err)
	}
	return info.Mode().IsRegular(), nil
}

var _ Backend = (*FilesystemBackend)(nil)
