// Package repository defines data access interfaces for Meridian.
// Each resource has a basic tier implemented by every storage adapter and
// a query tier (search, facets, statistics) that adapters either implement
// natively or obtain from the query package.
package repository

import (
	"context"

	"github.com/prn-tf/meridian/internal/domain"
)

// UserRepository defines the basic persistence operations for users.
// Lookups of a missing user return domain.ErrUserNotFound.
type UserRepository interface {
	// FindByID retrieves a user by identifier.
	FindByID(ctx context.Context, id domain.UserID) (*domain.User, error)

	// FindByEmail retrieves a user by exact email address.
	FindByEmail(ctx context.Context, email domain.Email) (*domain.User, error)

	// FindAll returns every user in insertion order.
	FindAll(ctx context.Context) ([]*domain.User, error)

	// FindActive returns users whose status is active.
	FindActive(ctx context.Context) ([]*domain.User, error)

	// FindByRole returns users holding role.
	FindByRole(ctx context.Context, role domain.Role) ([]*domain.User, error)

	// FindByStatus returns users in state.
	FindByStatus(ctx context.Context, state domain.UserState) ([]*domain.User, error)

	// Save inserts the user or replaces the stored user with the same ID.
	// Returns domain.ErrUserAlreadyExists if another user holds the email.
	Save(ctx context.Context, user *domain.User) error

	// Update replaces an existing user.
	// Returns domain.ErrUserNotFound if no user has the ID.
	Update(ctx context.Context, user *domain.User) error

	// Delete removes a user and reports whether one was removed.
	Delete(ctx context.Context, id domain.UserID) (bool, error)

	// Exists checks if a user with the ID exists.
	Exists(ctx context.Context, id domain.UserID) (bool, error)

	// Count returns the total number of users.
	Count(ctx context.Context) (int, error)

	// CountByStatus returns the number of users in state.
	CountByStatus(ctx context.Context, state domain.UserState) (int, error)

	// CountByRole returns the number of users holding role.
	CountByRole(ctx context.Context, role domain.Role) (int, error)
}

// UserQuerier defines the query tier for users.
type UserQuerier interface {
	// Search filters, sorts and paginates users.
	Search(ctx context.Context, criteria UserSearchCriteria) (*UserSearchResult, error)

	// Statistics computes aggregate counts over all users.
	Statistics(ctx context.Context) (*UserStatistics, error)

	// FindWithLowActivity returns users who have not logged in for inactiveDays
	// (or never logged in).
	FindWithLowActivity(ctx context.Context, inactiveDays int) ([]*domain.User, error)

	// FindByPermission returns users whose role grants p.
	FindByPermission(ctx context.Context, p domain.Permission) ([]*domain.User, error)
}

// ExtendedUserRepository is an adapter that serves both tiers natively.
type ExtendedUserRepository interface {
	UserRepository
	UserQuerier
}

// ProductRepository defines the basic persistence operations for products.
// Lookups of a missing product return domain.ErrProductNotFound.
type ProductRepository interface {
	// FindByID retrieves a product by identifier.
	FindByID(ctx context.Context, id domain.ProductID) (*domain.Product, error)

	// FindByName retrieves a product by name, ignoring case.
	FindByName(ctx context.Context, name string) (*domain.Product, error)

	// FindAll returns every product in insertion order.
	FindAll(ctx context.Context) ([]*domain.Product, error)

	// FindActive returns products that are listed.
	FindActive(ctx context.Context) ([]*domain.Product, error)

	// FindByCategory returns products in the category with the given ID.
	FindByCategory(ctx context.Context, categoryID string) ([]*domain.Product, error)

	// FindByTag returns products carrying tag.
	FindByTag(ctx context.Context, tag string) ([]*domain.Product, error)

	// Save inserts the product or replaces the stored product with the same ID.
	// Returns domain.ErrProductAlreadyExists if another product holds the name.
	Save(ctx context.Context, product *domain.Product) error

	// Update replaces an existing product.
	// Returns domain.ErrProductNotFound if no product has the ID.
	Update(ctx context.Context, product *domain.Product) error

	// Delete removes a product and reports whether one was removed.
	Delete(ctx context.Context, id domain.ProductID) (bool, error)

	// Exists checks if a product with the ID exists.
	Exists(ctx context.Context, id domain.ProductID) (bool, error)

	// Count returns the total number of products.
	Count(ctx context.Context) (int, error)

	// CountByCategory returns the number of products in a category.
	CountByCategory(ctx context.Context, categoryID string) (int, error)

	// CountByActive returns the number of products with the given listing state.
	CountByActive(ctx context.Context, active bool) (int, error)
}

// ProductQuerier defines the query tier for products.
type ProductQuerier interface {
	// Search filters, sorts, paginates and facets products.
	Search(ctx context.Context, criteria ProductSearchCriteria) (*ProductSearchResult, error)

	// Statistics computes catalogue-wide aggregates.
	Statistics(ctx context.Context) (*ProductStatistics, error)

	// FindLowStock returns products at or below threshold available units.
	// A nil threshold uses each product's own threshold.
	FindLowStock(ctx context.Context, threshold *int) ([]*domain.Product, error)

	// FindOutOfStock returns products with nothing available.
	FindOutOfStock(ctx context.Context) ([]*domain.Product, error)

	// FindByRating returns products whose average is at least minAverage.
	FindByRating(ctx context.Context, minAverage float64) ([]*domain.Product, error)

	// FindRelated returns up to limit products sharing the category or a tag.
	FindRelated(ctx context.Context, id domain.ProductID, limit int) ([]*domain.Product, error)
}

// ExtendedProductRepository is an adapter that serves both tiers natively.
type ExtendedProductRepository interface {
	ProductRepository
	ProductQuerier
}
