package repository

import (
	"time"

	"github.com/prn-tf/meridian/internal/domain"
)

// DefaultPageSize is used when a search does not set a positive limit.
const DefaultPageSize = 10

// SortOrder is the direction of a search sort.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Page describes the slice of results returned by a search.
type Page struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalPages int `json:"total_pages"`
}

// =============================================================================
// Users
// =============================================================================

// UserSearchCriteria filters a user search. Zero values match everything.
type UserSearchCriteria struct {
	Role          domain.Role
	State         domain.UserState
	IsActive      *bool
	CreatedAfter  *time.Time
	CreatedBefore *time.Time

	// SearchTerm matches first name, last name, email, bio and location, ignoring case.
	SearchTerm string

	Limit  int
	Offset int

	// SortBy is one of firstName, lastName, email, role, status, createdAt, updatedAt.
	// Unknown values sort by firstName. Empty keeps insertion order.
	SortBy    string
	SortOrder SortOrder
}

// UserSearchResult is one page of users.
type UserSearchResult struct {
	Users []*domain.User `json:"users"`
	Page
}

// UserStatistics aggregates counts over all users.
type UserStatistics struct {
	TotalUsers           int                      `json:"total_users"`
	ActiveUsers          int                      `json:"active_users"`
	PendingUsers         int                      `json:"pending_users"`
	SuspendedUsers       int                      `json:"suspended_users"`
	InactiveUsers        int                      `json:"inactive_users"`
	UsersByRole          map[domain.Role]int      `json:"users_by_role"`
	UsersByStatus        map[domain.UserState]int `json:"users_by_status"`
	NewUsersThisMonth    int                      `json:"new_users_this_month"`
	ActiveUsersThisMonth int                      `json:"active_users_this_month"`
	SignupsByMonth       map[string]int           `json:"signups_by_month"`
}

// =============================================================================
// Products
// =============================================================================

// Range is an inclusive numeric range. A zero Max means unbounded.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains reports whether v lies within the range.
func (r Range) Contains(v float64) bool {
	if v < r.Min {
		return false
	}
	return r.Max == 0 || v <= r.Max
}

// ProductSearchCriteria filters a product search. Zero values match everything.
type ProductSearchCriteria struct {
	CategoryID string

	// Tags matches products carrying any of the listed tags.
	Tags []string

	PriceRange  *Range
	RatingRange *Range
	InStock     *bool
	IsActive    *bool

	// SearchTerm matches name, description and tags, ignoring case.
	SearchTerm string

	Limit  int
	Offset int

	// SortBy is one of name, price, rating, createdAt, updatedAt.
	// Unknown values sort by name. Empty keeps insertion order.
	SortBy    string
	SortOrder SortOrder
}

// CategoryFacet counts matching products in a category.
type CategoryFacet struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// PriceRangeFacet counts matching products in a price bucket. Max 0 means open ended.
type PriceRangeFacet struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Count int     `json:"count"`
}

// RatingFacet counts matching products whose rounded average equals Rating.
type RatingFacet struct {
	Rating int `json:"rating"`
	Count  int `json:"count"`
}

// TagFacet counts matching products carrying Tag.
type TagFacet struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// ProductFacets summarizes the filtered set before pagination.
type ProductFacets struct {
	Categories  []CategoryFacet   `json:"categories"`
	PriceRanges []PriceRangeFacet `json:"price_ranges"`
	Ratings     []RatingFacet     `json:"ratings"`
	Tags        []TagFacet        `json:"tags"`
}

// ProductSearchResult is one page of products plus facets.
type ProductSearchResult struct {
	Products []*domain.Product `json:"products"`
	Page
	Facets ProductFacets `json:"facets"`
}

// ProductStatistics aggregates catalogue-wide numbers.
type ProductStatistics struct {
	TotalProducts      int               `json:"total_products"`
	ActiveProducts     int               `json:"active_products"`
	InactiveProducts   int               `json:"inactive_products"`
	LowStockProducts   int               `json:"low_stock_products"`
	OutOfStockProducts int               `json:"out_of_stock_products"`
	ByCategory         map[string]int    `json:"by_category"`
	AveragePrice       float64           `json:"average_price"`
	TotalValue         float64           `json:"total_value"`
	TopRated           []*domain.Product `json:"top_rated"`
	RecentlyAdded      []*domain.Product `json:"recently_added"`
}
