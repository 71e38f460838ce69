package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/prn-tf/meridian/internal/domain"
	"github.com/prn-tf/meridian/internal/repository"
	"github.com/prn-tf/meridian/internal/seed"
)

var testNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func mustUserID(t *testing.T, s string) domain.UserID {
	t.Helper()
	id, err := domain.NewUserID(s)
	require.NoError(t, err)
	return id
}

func mustEmail(t *testing.T, s string) domain.Email {
	t.Helper()
	e, err := domain.NewEmail(s)
	require.NoError(t, err)
	return e
}

func seededUsers(t *testing.T) repository.ExtendedUserRepository {
	t.Helper()
	repo := NewUserRepository(WithClock(func() time.Time { return testNow }))
	users, err := seed.Users()
	require.NoError(t, err)
	for _, u := range users {
		require.NoError(t, repo.Save(context.Background(), u))
	}
	return repo
}

func TestUserRepository_Basic(t *testing.T) {
	ctx := context.Background()
	repo := seededUsers(t)

	u, err := repo.FindByID(ctx, mustUserID(t, "1"))
	require.NoError(t, err)
	require.Equal(t, "admin@company.com", u.Email().Value())

	_, err = repo.FindByID(ctx, mustUserID(t, "404"))
	require.ErrorIs(t, err, domain.ErrUserNotFound)
	require.ErrorIs(t, err, repository.ErrNotFound)

	byEmail, err := repo.FindByEmail(ctx, mustEmail(t, "mike.chen@company.com"))
	require.NoError(t, err)
	require.Equal(t, "3", byEmail.ID().String())

	active, err := repo.FindActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 7)

	mods, err := repo.FindByRole(ctx, domain.RoleModerator)
	require.NoError(t, err)
	require.Len(t, mods, 2)

	n, err := repo.CountByStatus(ctx, domain.StateSuspended)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = repo.CountByRole(ctx, domain.RoleAdmin)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	none, err := repo.FindByStatus(ctx, "archived")
	require.NoError(t, err)
	require.NotNil(t, none)
	require.Empty(t, none)
}

func TestUserRepository_SaveReplacesAndRejectsDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	repo := seededUsers(t)

	u, err := repo.FindByID(ctx, mustUserID(t, "2"))
	require.NoError(t, err)
	renamed := u.WithProfile(domain.Profile{FirstName: "Sally", LastName: "Johnson"}, testNow)
	require.NoError(t, repo.Save(ctx, renamed))

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 10, count, "save with an existing id replaces")

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	require.Equal(t, "Sally", all[1].Profile().FirstName, "replacement keeps insertion position")

	dup, err := domain.NewUser(domain.NewUserParams{
		ID: "99", Email: "admin@company.com", Role: domain.RoleUser, FirstName: "X", LastName: "Y", Now: testNow,
	})
	require.NoError(t, err)
	err = repo.Save(ctx, dup)
	require.ErrorIs(t, err, domain.ErrUserAlreadyExists)
	require.ErrorIs(t, err, domain.ErrConflict)
}

func TestUserRepository_UpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository()

	ghost, err := domain.NewUser(domain.NewUserParams{
		ID: "ghost", Email: "ghost@example.com", Role: domain.RoleUser, FirstName: "G", LastName: "H", Now: testNow,
	})
	require.NoError(t, err)
	require.ErrorIs(t, repo.Update(ctx, ghost), domain.ErrUserNotFound)

	require.NoError(t, repo.Save(ctx, ghost))
	ok, err := repo.Exists(ctx, ghost.ID())
	require.NoError(t, err)
	require.True(t, ok)

	moved, err := domain.NewUser(domain.NewUserParams{
		ID: "ghost", Email: "other@example.com", Role: domain.RoleUser, FirstName: "G", LastName: "H", Now: testNow,
	})
	require.NoError(t, err)
	err = repo.Update(ctx, moved)
	require.ErrorIs(t, err, domain.ErrEmailImmutable)
	require.ErrorIs(t, err, domain.ErrValidation)
	require.ErrorIs(t, repo.Save(ctx, moved), domain.ErrEmailImmutable)
	stored, err := repo.FindByID(ctx, ghost.ID())
	require.NoError(t, err)
	require.Equal(t, "ghost@example.com", stored.Email().Value())

	removed, err := repo.Delete(ctx, ghost.ID())
	require.NoError(t, err)
	require.True(t, removed)

	removed, err = repo.Delete(ctx, ghost.ID())
	require.NoError(t, err)
	require.False(t, removed)
}

func TestUserRepository_FindAllReturnsSnapshot(t *testing.T) {
	ctx := context.Background()
	repo := seededUsers(t)

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	all[0] = nil

	again, err := repo.FindAll(ctx)
	require.NoError(t, err)
	require.NotNil(t, again[0])
}

func TestUserRepository_QueryTier(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(WithClock(func() time.Time { return testNow }))

	for i := 0; i < 25; i++ {
		u, err := domain.NewUser(domain.NewUserParams{
			ID:        fmt.Sprintf("u%02d", i),
			Email:     fmt.Sprintf("user%02d@example.com", i),
			Role:      domain.RoleUser,
			FirstName: fmt.Sprintf("First%02d", i),
			LastName:  "Last",
			State:     domain.StateActive,
			Now:       testNow.AddDate(0, 0, -i),
		})
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, u))
	}

	res, err := repo.Search(ctx, repository.UserSearchCriteria{Limit: 10, Offset: 20})
	require.NoError(t, err)
	require.Len(t, res.Users, 5)
	require.Equal(t, 3, res.Page.Page)
	require.Equal(t, 3, res.TotalPages)

	stats, err := repo.Statistics(ctx)
	require.NoError(t, err)
	require.Equal(t, 25, stats.TotalUsers)
	require.Equal(t, 15, stats.NewUsersThisMonth, "created on March 1 through 15")

	low, err := repo.FindWithLowActivity(ctx, 30)
	require.NoError(t, err)
	require.Len(t, low, 25, "nobody has logged in")

	writers, err := repo.FindByPermission(ctx, domain.PermissionWrite)
	require.NoError(t, err)
	require.Len(t, writers, 25)
}

func seededProducts(t *testing.T) repository.ExtendedProductRepository {
	t.Helper()
	repo := NewProductRepository()
	products, err := seed.Products()
	require.NoError(t, err)
	for _, p := range products {
		require.NoError(t, repo.Save(context.Background(), p))
	}
	return repo
}

func mustProductID(t *testing.T, s string) domain.ProductID {
	t.Helper()
	id, err := domain.NewProductID(s)
	require.NoError(t, err)
	return id
}

func TestProductRepository_Basic(t *testing.T) {
	ctx := context.Background()
	repo := seededProducts(t)

	p, err := repo.FindByName(ctx, "  smart fitness WATCH ")
	require.NoError(t, err)
	require.Equal(t, "2", p.ID().String())

	_, err = repo.FindByName(ctx, "Nope")
	require.ErrorIs(t, err, domain.ErrProductNotFound)

	electronics, err := repo.FindByCategory(ctx, "electronics")
	require.NoError(t, err)
	require.Len(t, electronics, 4)

	n, err := repo.CountByCategory(ctx, "clothing")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	bluetooth, err := repo.FindByTag(ctx, "bluetooth")
	require.NoError(t, err)
	require.Len(t, bluetooth, 2)

	hidden := p.WithActive(false, testNow)
	require.NoError(t, repo.Update(ctx, hidden))
	n, err = repo.CountByActive(ctx, false)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	active, err := repo.FindActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 9)
}

func TestProductRepository_DuplicateName(t *testing.T) {
	ctx := context.Background()
	repo := seededProducts(t)

	dup, err := domain.NewProduct(domain.NewProductParams{
		ID:       "new",
		Name:     "garden tool set",
		Price:    10,
		Category: domain.Category{ID: "home", Name: "Home"},
		Now:      testNow,
	})
	require.NoError(t, err)
	require.ErrorIs(t, repo.Save(ctx, dup), domain.ErrProductAlreadyExists)

	require.ErrorIs(t, repo.Update(ctx, dup), domain.ErrProductNotFound)
}

func TestProductRepository_QueryTier(t *testing.T) {
	ctx := context.Background()
	repo := seededProducts(t)

	res, err := repo.Search(ctx, repository.ProductSearchCriteria{CategoryID: "electronics", SortBy: "price", SortOrder: repository.SortDesc})
	require.NoError(t, err)
	require.Equal(t, 4, res.Total)
	require.Equal(t, "Smart Fitness Watch", res.Products[0].Name().String())
	require.Len(t, res.Facets.Categories, 1)

	related, err := repo.FindRelated(ctx, mustProductID(t, "1"), 0)
	require.NoError(t, err)
	require.Equal(t, "10", related[0].ID().String(), "speaker shares category and the bluetooth tag")
	require.LessOrEqual(t, len(related), 4)

	_, err = repo.FindRelated(ctx, mustProductID(t, "missing"), 4)
	require.ErrorIs(t, err, domain.ErrProductNotFound)

	stats, err := repo.Statistics(ctx)
	require.NoError(t, err)
	require.Equal(t, 10, stats.TotalProducts)
	require.Len(t, stats.TopRated, 5)
	require.Equal(t, "10", stats.RecentlyAdded[0].ID().String())

	out, err := repo.FindOutOfStock(ctx)
	require.NoError(t, err)
	require.Empty(t, out)

	threshold := 80
	low, err := repo.FindLowStock(ctx, &threshold)
	require.NoError(t, err)
	require.Len(t, low, 2)
}
