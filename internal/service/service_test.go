package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/meridian/internal/domain"
	"github.com/prn-tf/meridian/internal/repository"
	"github.com/prn-tf/meridian/internal/repository/memory"
	"github.com/prn-tf/meridian/internal/seed"
)

var testNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

// sequentialIDs returns "new-1", "new-2", ...
func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("new-%d", n)
	}
}

type fixture struct {
	users    repository.ExtendedUserRepository
	products repository.ExtendedProductRepository
	userSvc  *UserService
	prodSvc  *ProductService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	users := memory.NewUserRepository(memory.WithClock(fixedClock))
	products := memory.NewProductRepository()
	require.NoError(t, seed.Load(context.Background(), users, products))

	opts := []Option{WithClock(fixedClock), WithIDGenerator(sequentialIDs())}
	return &fixture{
		users:    users,
		products: products,
		userSvc:  NewUserService(users, users, nil, zerolog.Nop(), opts...),
		prodSvc:  NewProductService(products, products, seed.Categories(), nil, zerolog.Nop(), opts...),
	}
}

func ptr[T any](v T) *T { return &v }

// ===== Mocks =====

// mockUserRepository is a testify mock of repository.UserRepository.
type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) FindByID(ctx context.Context, id domain.UserID) (*domain.User, error) {
	args := m.Called(ctx, id)
	if u := args.Get(0); u != nil {
		return u.(*domain.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserRepository) FindByEmail(ctx context.Context, email domain.Email) (*domain.User, error) {
	args := m.Called(ctx, email)
	if u := args.Get(0); u != nil {
		return u.(*domain.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserRepository) list(method string, args ...any) ([]*domain.User, error) {
	res := m.MethodCalled(method, args...)
	if u := res.Get(0); u != nil {
		return u.([]*domain.User), res.Error(1)
	}
	return nil, res.Error(1)
}

func (m *mockUserRepository) FindAll(ctx context.Context) ([]*domain.User, error) {
	return m.list("FindAll", ctx)
}

func (m *mockUserRepository) FindActive(ctx context.Context) ([]*domain.User, error) {
	return m.list("FindActive", ctx)
}

func (m *mockUserRepository) FindByRole(ctx context.Context, role domain.Role) ([]*domain.User, error) {
	return m.list("FindByRole", ctx, role)
}

func (m *mockUserRepository) FindByStatus(ctx context.Context, state domain.UserState) ([]*domain.User, error) {
	return m.list("FindByStatus", ctx, state)
}

func (m *mockUserRepository) Save(ctx context.Context, user *domain.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockUserRepository) Update(ctx context.Context, user *domain.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockUserRepository) Delete(ctx context.Context, id domain.UserID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *mockUserRepository) Exists(ctx context.Context, id domain.UserID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *mockUserRepository) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockUserRepository) CountByStatus(ctx context.Context, state domain.UserState) (int, error) {
	args := m.Called(ctx, state)
	return args.Int(0), args.Error(1)
}

func (m *mockUserRepository) CountByRole(ctx context.Context, role domain.Role) (int, error) {
	args := m.Called(ctx, role)
	return args.Int(0), args.Error(1)
}

var _ repository.UserRepository = (*mockUserRepository)(nil)
