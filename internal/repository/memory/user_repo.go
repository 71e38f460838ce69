// Package memory implements both repository tiers in process memory.
// It backs the default "memory" database driver and the service tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/prn-tf/meridian/internal/domain"
	"github.com/prn-tf/meridian/internal/query"
	"github.com/prn-tf/meridian/internal/repository"
)

// Option configures a memory repository.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock sets the clock used for statistics and activity windows.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// userRepository keeps users in insertion order.
// Aggregates are immutable, so stored pointers are handed out directly.
type userRepository struct {
	mu    sync.RWMutex
	users []*domain.User
	now   func() time.Time
}

// NewUserRepository creates an empty user repository.
func NewUserRepository(opts ...Option) repository.ExtendedUserRepository {
	o := buildOptions(opts)
	return &userRepository{now: o.now}
}

func (r *userRepository) indexOf(id domain.UserID) int {
	for i, u := range r.users {
		if u.ID().Equals(id) {
			return i
		}
	}
	return -1
}

func (r *userRepository) snapshot() []*domain.User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.User, len(r.users))
	copy(out, r.users)
	return out
}

func (r *userRepository) filter(keep func(*domain.User) bool) []*domain.User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []*domain.User{}
	for _, u := range r.users {
		if keep(u) {
			out = append(out, u)
		}
	}
	return out
}

// ===== Basic tier =====

func (r *userRepository) FindByID(_ context.Context, id domain.UserID) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i := r.indexOf(id); i >= 0 {
		return r.users[i], nil
	}
	return nil, domain.ErrUserNotFound
}

func (r *userRepository) FindByEmail(_ context.Context, email domain.Email) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.Email().Equals(email) {
			return u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *userRepository) FindAll(_ context.Context) ([]*domain.User, error) {
	return r.snapshot(), nil
}

func (r *userRepository) FindActive(_ context.Context) ([]*domain.User, error) {
	return r.filter((*domain.User).IsActive), nil
}

func (r *userRepository) FindByRole(_ context.Context, role domain.Role) ([]*domain.User, error) {
	return r.filter(func(u *domain.User) bool { return u.Role() == role }), nil
}

func (r *userRepository) FindByStatus(_ context.Context, state domain.UserState) ([]*domain.User, error) {
	return r.filter(func(u *domain.User) bool { return u.Status().State() == state }), nil
}

// Save inserts or replaces by ID. The email must not belong to another user
// and a replace must keep the stored email.
func (r *userRepository) Save(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Email().Equals(user.Email()) && !u.ID().Equals(user.ID()) {
			return domain.ErrUserAlreadyExists
		}
	}
	if i := r.indexOf(user.ID()); i >= 0 {
		if !r.users[i].Email().Equals(user.Email()) {
			return domain.ErrEmailImmutable
		}
		r.users[i] = user
		return nil
	}
	r.users = append(r.users, user)
	return nil
}

func (r *userRepository) Update(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(user.ID())
	if i < 0 {
		return domain.ErrUserNotFound
	}
	if !r.users[i].Email().Equals(user.Email()) {
		return domain.ErrEmailImmutable
	}
	for j, u := range r.users {
		if j != i && u.Email().Equals(user.Email()) {
			return domain.ErrUserAlreadyExists
		}
	}
	r.users[i] = user
	return nil
}

func (r *userRepository) Delete(_ context.Context, id domain.UserID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return false, nil
	}
	r.users = append(r.users[:i], r.users[i+1:]...)
	return true, nil
}

func (r *userRepository) Exists(_ context.Context, id domain.UserID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.indexOf(id) >= 0, nil
}

func (r *userRepository) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users), nil
}

func (r *userRepository) CountByStatus(ctx context.Context, state domain.UserState) (int, error) {
	users, _ := r.FindByStatus(ctx, state)
	return len(users), nil
}

func (r *userRepository) CountByRole(ctx context.Context, role domain.Role) (int, error) {
	users, _ := r.FindByRole(ctx, role)
	return len(users), nil
}

// ===== Query tier =====

func (r *userRepository) Search(_ context.Context, c repository.UserSearchCriteria) (*repository.UserSearchResult, error) {
	return query.SearchUsers(r.snapshot(), c), nil
}

func (r *userRepository) Statistics(_ context.Context) (*repository.UserStatistics, error) {
	return query.UserStatistics(r.snapshot(), r.now()), nil
}

func (r *userRepository) FindWithLowActivity(_ context.Context, inactiveDays int) ([]*domain.User, error) {
	return query.UsersWithLowActivity(r.snapshot(), inactiveDays, r.now()), nil
}

func (r *userRepository) FindByPermission(_ context.Context, p domain.Permission) ([]*domain.User, error) {
	return query.UsersByPermission(r.snapshot(), p), nil
}

var _ repository.ExtendedUserRepository = (*userRepository)(nil)
