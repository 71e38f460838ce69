package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/meridian/internal/domain"
	"github.com/prn-tf/meridian/internal/metrics"
)

// cachedUserRepository serves FindByID from a cache and invalidates on writes.
// Every other call goes straight to the wrapped repository.
type cachedUserRepository struct {
	UserRepository
	cache   Cache
	ttl     time.Duration
	keys    CacheKey
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewCachedUserRepository wraps inner with a read-through cache.
// Cached entries are user records, rebuilt through domain.UserFromRecord on read.
func NewCachedUserRepository(inner UserRepository, cache Cache, ttl time.Duration, m *metrics.Metrics, logger zerolog.Logger) UserRepository {
	return &cachedUserRepository{
		UserRepository: inner,
		cache:          cache,
		ttl:            ttl,
		metrics:        m,
		logger:         logger.With().Str("component", "user_cache").Logger(),
	}
}

// FindByID retrieves a user, consulting the cache first.
func (r *cachedUserRepository) FindByID(ctx context.Context, id domain.UserID) (*domain.User, error) {
	key := r.keys.UserByID(id.String())

	data, err := r.cache.Get(ctx, key)
	switch {
	case err == nil:
		user, decodeErr := decodeUser(data)
		if decodeErr == nil {
			r.metrics.RecordCacheLookup(true)
			return user, nil
		}
		r.logger.Warn().Err(decodeErr).Str("key", key).Msg("dropping undecodable cache entry")
		_ = r.cache.Delete(ctx, key)
	case !errors.Is(err, ErrCacheMiss):
		r.logger.Warn().Err(err).Str("key", key).Msg("cache read failed")
	}
	r.metrics.RecordCacheLookup(false)

	user, err := r.UserRepository.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(user.Record()); err == nil {
		if err := r.cache.Set(ctx, key, data, r.ttl); err != nil {
			r.logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
		}
	}
	return user, nil
}

// Save persists the user and evicts its cache entry.
func (r *cachedUserRepository) Save(ctx context.Context, user *domain.User) error {
	if err := r.UserRepository.Save(ctx, user); err != nil {
		return err
	}
	r.evict(ctx, user.ID())
	return nil
}

// Update persists the user and evicts its cache entry.
func (r *cachedUserRepository) Update(ctx context.Context, user *domain.User) error {
	if err := r.UserRepository.Update(ctx, user); err != nil {
		return err
	}
	r.evict(ctx, user.ID())
	return nil
}

// Delete removes the user and evicts its cache entry.
func (r *cachedUserRepository) Delete(ctx context.Context, id domain.UserID) (bool, error) {
	removed, err := r.UserRepository.Delete(ctx, id)
	if err != nil {
		return false, err
	}
	r.evict(ctx, id)
	return removed, nil
}

func (r *cachedUserRepository) evict(ctx context.Context, id domain.UserID) {
	key := r.keys.UserByID(id.String())
	if err := r.cache.Delete(ctx, key); err != nil {
		r.logger.Warn().Err(err).Str("key", key).Msg("cache eviction failed")
	}
}

func decodeUser(data []byte) (*domain.User, error) {
	var rec domain.UserRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return domain.UserFromRecord(rec)
}

var _ UserRepository = (*cachedUserRepository)(nil)
