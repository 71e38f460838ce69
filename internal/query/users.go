package query

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/prn-tf/meridian/internal/domain"
	"github.com/prn-tf/meridian/internal/repository"
)

// FilterUsers keeps the users matching every criterion. Pagination and sort are ignored.
func FilterUsers(users []*domain.User, c repository.UserSearchCriteria) []*domain.User {
	term := strings.ToLower(strings.TrimSpace(c.SearchTerm))

	out := make([]*domain.User, 0, len(users))
	for _, u := range users {
		if c.Role != "" && u.Role() != c.Role {
			continue
		}
		if c.State != "" && u.Status().State() != c.State {
			continue
		}
		if c.IsActive != nil && u.IsActive() != *c.IsActive {
			continue
		}
		if c.CreatedAfter != nil && u.CreatedAt().Before(*c.CreatedAfter) {
			continue
		}
		if c.CreatedBefore != nil && u.CreatedAt().After(*c.CreatedBefore) {
			continue
		}
		if term != "" && !userMatches(u, term) {
			continue
		}
		out = append(out, u)
	}
	return out
}

func userMatches(u *domain.User, term string) bool {
	p := u.Profile()
	return containsFold(p.FirstName, term) ||
		containsFold(p.LastName, term) ||
		containsFold(u.Email().Value(), term) ||
		containsFold(p.Bio, term) ||
		containsFold(p.Location, term)
}

// userComparators maps normalized sort keys to comparisons.
var userComparators = map[string]func(a, b *domain.User) int{
	"firstname": func(a, b *domain.User) int { return compareFold(a.Profile().FirstName, b.Profile().FirstName) },
	"lastname":  func(a, b *domain.User) int { return compareFold(a.Profile().LastName, b.Profile().LastName) },
	"email":     func(a, b *domain.User) int { return compareFold(a.Email().Value(), b.Email().Value()) },
	"role":      func(a, b *domain.User) int { return strings.Compare(string(a.Role()), string(b.Role())) },
	"status": func(a, b *domain.User) int {
		return strings.Compare(string(a.Status().State()), string(b.Status().State()))
	},
	"createdat": func(a, b *domain.User) int { return a.CreatedAt().Compare(b.CreatedAt()) },
	"updatedat": func(a, b *domain.User) int { return a.UpdatedAt().Compare(b.UpdatedAt()) },
}

// SortUsers returns a stably sorted copy. An empty sortBy keeps the input order
// and an unknown one sorts by first name.
func SortUsers(users []*domain.User, sortBy string, order repository.SortOrder) []*domain.User {
	out := slices.Clone(users)
	if sortBy == "" {
		return out
	}
	cmpFn, ok := userComparators[sortKey(sortBy)]
	if !ok {
		cmpFn = userComparators["firstname"]
	}
	dir := direction(order)
	slices.SortStableFunc(out, func(a, b *domain.User) int { return dir * cmpFn(a, b) })
	return out
}

// SearchUsers filters, sorts and paginates users.
func SearchUsers(users []*domain.User, c repository.UserSearchCriteria) *repository.UserSearchResult {
	matched := SortUsers(FilterUsers(users, c), c.SortBy, c.SortOrder)
	items, page := Paginate(matched, c.Limit, c.Offset)
	return &repository.UserSearchResult{Users: items, Page: page}
}

// StartOfMonth returns midnight UTC on the first day of now's month.
func StartOfMonth(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// UserStatistics aggregates counts over users as of now.
func UserStatistics(users []*domain.User, now time.Time) *repository.UserStatistics {
	stats := &repository.UserStatistics{
		TotalUsers:     len(users),
		UsersByRole:    make(map[domain.Role]int),
		UsersByStatus:  make(map[domain.UserState]int),
		SignupsByMonth: make(map[string]int),
	}
	for _, r := range domain.Roles() {
		stats.UsersByRole[r] = 0
	}
	for _, s := range domain.UserStates() {
		stats.UsersByStatus[s] = 0
	}

	monthStart := StartOfMonth(now)
	for _, u := range users {
		stats.UsersByRole[u.Role()]++
		stats.UsersByStatus[u.Status().State()]++
		stats.SignupsByMonth[u.CreatedAt().UTC().Format("2006-01")]++

		if !u.CreatedAt().Before(monthStart) {
			stats.NewUsersThisMonth++
		}
		if at, ok := u.LastLoginAt(); ok && !at.Before(monthStart) {
			stats.ActiveUsersThisMonth++
		}
	}

	stats.ActiveUsers = stats.UsersByStatus[domain.StateActive]
	stats.PendingUsers = stats.UsersByStatus[domain.StatePending]
	stats.SuspendedUsers = stats.UsersByStatus[domain.StateSuspended]
	stats.InactiveUsers = stats.UsersByStatus[domain.StateInactive]
	return stats
}

// NewUsersSince returns users created at or after since.
func NewUsersSince(users []*domain.User, since time.Time) []*domain.User {
	var out []*domain.User
	for _, u := range users {
		if !u.CreatedAt().Before(since) {
			out = append(out, u)
		}
	}
	return out
}

// UsersWithLowActivity returns users who never logged in or whose last login
// is older than inactiveDays before now.
func UsersWithLowActivity(users []*domain.User, inactiveDays int, now time.Time) []*domain.User {
	cutoff := now.Add(-time.Duration(inactiveDays) * 24 * time.Hour)

	var out []*domain.User
	for _, u := range users {
		at, ok := u.LastLoginAt()
		if !ok || at.Before(cutoff) {
			out = append(out, u)
		}
	}
	return out
}

// UsersByPermission returns users whose role grants p.
func UsersByPermission(users []*domain.User, p domain.Permission) []*domain.User {
	var out []*domain.User
	for _, u := range users {
		if u.HasPermission(p) {
			out = append(out, u)
		}
	}
	return out
}

// UserScanner serves the user query tier by loading every user from a basic repository.
type UserScanner struct {
	repo repository.UserRepository
	now  func() time.Time
}

// NewUserScanner creates a scanner over repo. A nil clock means time.Now.
func NewUserScanner(repo repository.UserRepository, now func() time.Time) *UserScanner {
	if now == nil {
		now = time.Now
	}
	return &UserScanner{repo: repo, now: now}
}

// TODO: push filters down into SQL for the sqlite and postgres adapters instead of scanning FindAll.

// Search filters, sorts and paginates every stored user.
func (s *UserScanner) Search(ctx context.Context, c repository.UserSearchCriteria) (*repository.UserSearchResult, error) {
	users, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	return SearchUsers(users, c), nil
}

// Statistics aggregates every stored user.
func (s *UserScanner) Statistics(ctx context.Context) (*repository.UserStatistics, error) {
	users, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	return UserStatistics(users, s.now()), nil
}

// FindWithLowActivity returns users inactive for at least inactiveDays.
func (s *UserScanner) FindWithLowActivity(ctx context.Context, inactiveDays int) ([]*domain.User, error) {
	users, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	return UsersWithLowActivity(users, inactiveDays, s.now()), nil
}

// FindByPermission returns users whose role grants p.
func (s *UserScanner) FindByPermission(ctx context.Context, p domain.Permission) ([]*domain.User, error) {
	users, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	return UsersByPermission(users, p), nil
}

var _ repository.UserQuerier = (*UserScanner)(nil)
