package repository

import (
	"errors"

	"github.com/prn-tf/meridian/internal/domain"
)

// Repository errors
var (
	// ErrNotFound indicates the requested entity was not found.
	// It is the domain kind so errors.Is works across layers.
	ErrNotFound = domain.ErrNotFound
)

// Cache errors
var (
	// ErrCacheMiss indicates the key was not found in cache.
	ErrCacheMiss = errors.New("cache miss")

	// ErrCacheUnavailable indicates the cache is unavailable.
	ErrCacheUnavailable = errors.New("cache unavailable")
)
