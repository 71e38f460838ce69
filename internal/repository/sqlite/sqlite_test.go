package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/meridian/internal/domain"
	"github.com/prn-tf/meridian/internal/query"
	"github.com/prn-tf/meridian/internal/repository"
	"github.com/prn-tf/meridian/internal/seed"
)

var testNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()
	db, err := NewDB(ctx, DefaultConfig(MemoryPath), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	applied, err := db.Migrate(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, applied)
	return db
}

func TestMigrate(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	version, err := db.Version(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, version)

	applied, err := db.Migrate(ctx)
	require.NoError(t, err)
	require.Zero(t, applied, "second run is a no-op")

	statuses, err := db.MigrationStatus(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	require.True(t, statuses[0].Applied)
	require.NoError(t, db.Health(ctx))
}

func TestNewDB_FileCreatesDirectory(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "meridian.db")

	db, err := NewDB(ctx, DefaultConfig(path), zerolog.Nop())
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Migrate(ctx)
	require.NoError(t, err)
	require.FileExists(t, path)
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(newTestDB(t))
	require.NoError(t, seed.Load(ctx, repo, NewProductRepository(newTestDB(t))))

	users, err := seed.Users()
	require.NoError(t, err)

	got, err := repo.FindByID(ctx, users[0].ID())
	require.NoError(t, err)
	require.Equal(t, users[0].Record(), got.Record(), "rows rebuild the same aggregate")

	byEmail, err := repo.FindByEmail(ctx, users[2].Email())
	require.NoError(t, err)
	require.Equal(t, users[2].ID(), byEmail.ID())

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 10)
	require.Equal(t, "1", all[0].ID().String())

	active, err := repo.FindActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 7)

	n, err := repo.CountByRole(ctx, domain.RoleModerator)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	n, err = repo.CountByStatus(ctx, domain.StatePending)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	suspended, err := repo.FindByStatus(ctx, domain.StateSuspended)
	require.NoError(t, err)
	require.Len(t, suspended, 1)

	// Replace keeps position.
	status, err := domain.NewStatus(domain.StateActive, "appeal granted", "admin", testNow)
	require.NoError(t, err)
	require.NoError(t, repo.Update(ctx, suspended[0].WithStatus(status, testNow)))
	all, err = repo.FindAll(ctx)
	require.NoError(t, err)
	require.Equal(t, "7", all[6].ID().String())
	require.True(t, all[6].IsActive())
	require.Equal(t, "appeal granted", all[6].Status().Reason())

	dup, err := domain.NewUser(domain.NewUserParams{
		ID: "x", Email: users[0].Email().Value(), Role: domain.RoleUser, FirstName: "A", LastName: "B", Now: testNow,
	})
	require.NoError(t, err)
	require.ErrorIs(t, repo.Save(ctx, dup), domain.ErrUserAlreadyExists)
	require.ErrorIs(t, repo.Update(ctx, dup), domain.ErrUserNotFound)

	moved, err := domain.NewUser(domain.NewUserParams{
		ID: users[1].ID().String(), Email: "moved@example.com", Role: domain.RoleUser, FirstName: "A", LastName: "B",
	})
	require.NoError(t, err)
	require.ErrorIs(t, repo.Update(ctx, moved), domain.ErrEmailImmutable)
	require.ErrorIs(t, repo.Save(ctx, moved), domain.ErrEmailImmutable)
	kept, err := repo.FindByID(ctx, users[1].ID())
	require.NoError(t, err)
	require.Equal(t, users[1].Email(), kept.Email())

	removed, err := repo.Delete(ctx, users[0].ID())
	require.NoError(t, err)
	require.True(t, removed)
	_, err = repo.FindByID(ctx, users[0].ID())
	require.ErrorIs(t, err, repository.ErrNotFound)

	removed, err = repo.Delete(ctx, users[0].ID())
	require.NoError(t, err)
	require.False(t, removed)
}

func TestProductRepository(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewProductRepository(db)

	products, err := seed.Products()
	require.NoError(t, err)
	for _, p := range products {
		require.NoError(t, repo.Save(ctx, p))
	}

	got, err := repo.FindByID(ctx, products[0].ID())
	require.NoError(t, err)
	require.Equal(t, products[0].Record(), got.Record())

	byName, err := repo.FindByName(ctx, "PORTABLE bluetooth speaker")
	require.NoError(t, err)
	require.Equal(t, "10", byName.ID().String())

	tagged, err := repo.FindByTag(ctx, "fashion")
	require.NoError(t, err)
	require.Len(t, tagged, 2)

	n, err := repo.CountByCategory(ctx, "electronics")
	require.NoError(t, err)
	require.Equal(t, 4, n)

	retagged := products[2].WithTags([]string{"basics"}, testNow).WithActive(false, testNow)
	require.NoError(t, repo.Update(ctx, retagged))

	tagged, err = repo.FindByTag(ctx, "fashion")
	require.NoError(t, err)
	require.Len(t, tagged, 1)

	n, err = repo.CountByActive(ctx, false)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	dup, err := domain.NewProduct(domain.NewProductParams{
		ID: "dup", Name: "smart fitness watch", Price: 1, Category: domain.Category{ID: "x", Name: "X"}, Now: testNow,
	})
	require.NoError(t, err)
	require.ErrorIs(t, repo.Save(ctx, dup), domain.ErrProductAlreadyExists)

	removed, err := repo.Delete(ctx, products[2].ID())
	require.NoError(t, err)
	require.True(t, removed)
	total, err := repo.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 9, total)
}

func TestProductScannerOverSQLite(t *testing.T) {
	ctx := context.Background()
	repo := NewProductRepository(newTestDB(t))
	products, err := seed.Products()
	require.NoError(t, err)
	for _, p := range products {
		require.NoError(t, repo.Save(ctx, p))
	}

	scanner := query.NewProductScanner(repo)
	res, err := scanner.Search(ctx, repository.ProductSearchCriteria{Tags: []string{"bluetooth"}, SortBy: "price"})
	require.NoError(t, err)
	require.Equal(t, 2, res.Total)
	require.Equal(t, "10", res.Products[0].ID().String())
}
