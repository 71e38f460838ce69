package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	cachemem "github.com/prn-tf/meridian/internal/cache/memory"
	"github.com/prn-tf/meridian/internal/domain"
	"github.com/prn-tf/meridian/internal/metrics"
	"github.com/prn-tf/meridian/internal/repository"
	"github.com/prn-tf/meridian/internal/repository/memory"
)

func newCachedRepo(t *testing.T) (repository.UserRepository, repository.UserRepository, *cachemem.Cache, *metrics.Metrics) {
	t.Helper()
	inner := memory.NewUserRepository()
	cache := cachemem.NewCache(time.Hour)
	t.Cleanup(cache.Stop)
	m := metrics.New(prometheus.NewRegistry())
	return repository.NewCachedUserRepository(inner, cache, time.Minute, m, zerolog.Nop()), inner, cache, m
}

func testUser(t *testing.T) *domain.User {
	t.Helper()
	u, err := domain.NewUser(domain.NewUserParams{
		ID:        "u1",
		Email:     "cached@example.com",
		Role:      domain.RoleUser,
		FirstName: "Cache",
		LastName:  "Me",
		Now:       time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return u
}

func TestCachedUserRepository_ReadThrough(t *testing.T) {
	ctx := context.Background()
	repo, _, cache, m := newCachedRepo(t)
	u := testUser(t)
	require.NoError(t, repo.Save(ctx, u))

	got, err := repo.FindByID(ctx, u.ID())
	require.NoError(t, err)
	require.Equal(t, u.Record(), got.Record())
	require.Equal(t, 1.0, testutil.ToFloat64(m.CacheRequests.WithLabelValues("miss")))

	ok, err := cache.Exists(ctx, repository.CacheKey{}.UserByID("u1"))
	require.NoError(t, err)
	require.True(t, ok)

	got, err = repo.FindByID(ctx, u.ID())
	require.NoError(t, err)
	require.Equal(t, u.Record(), got.Record())
	require.Equal(t, 1.0, testutil.ToFloat64(m.CacheRequests.WithLabelValues("hit")))
}

func TestCachedUserRepository_WritesEvict(t *testing.T) {
	ctx := context.Background()
	repo, _, cache, _ := newCachedRepo(t)
	u := testUser(t)
	key := repository.CacheKey{}.UserByID("u1")

	require.NoError(t, repo.Save(ctx, u))
	_, err := repo.FindByID(ctx, u.ID())
	require.NoError(t, err)

	updated := u.WithProfile(domain.Profile{FirstName: "Fresh", LastName: "Name"}, u.UpdatedAt().Add(time.Hour))
	require.NoError(t, repo.Update(ctx, updated))

	ok, err := cache.Exists(ctx, key)
	require.NoError(t, err)
	require.False(t, ok)

	got, err := repo.FindByID(ctx, u.ID())
	require.NoError(t, err)
	require.Equal(t, "Fresh", got.Profile().FirstName)

	removed, err := repo.Delete(ctx, u.ID())
	require.NoError(t, err)
	require.True(t, removed)

	_, err = repo.FindByID(ctx, u.ID())
	require.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestCachedUserRepository_DropsCorruptEntries(t *testing.T) {
	ctx := context.Background()
	repo, inner, cache, _ := newCachedRepo(t)
	u := testUser(t)
	require.NoError(t, inner.Save(ctx, u))

	key := repository.CacheKey{}.UserByID("u1")
	require.NoError(t, cache.Set(ctx, key, []byte(`{"id":"u1","email":"not-an-email"}`), 0))

	got, err := repo.FindByID(ctx, u.ID())
	require.NoError(t, err)
	require.Equal(t, "cached@example.com", got.Email().Value())
}
