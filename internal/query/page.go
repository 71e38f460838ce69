// Package query implements search, pagination and statistics over slices of
// aggregates. Storage adapters without native query support get the
// repository query tier from the scanners in this package.
package query

import (
	"cmp"
	"strings"

	"github.com/prn-tf/meridian/internal/repository"
)

// Paginate returns the page of items selected by limit and offset.
// A non-positive limit means repository.DefaultPageSize.
func Paginate[T any](items []T, limit, offset int) ([]T, repository.Page) {
	pageSize := limit
	if pageSize <= 0 {
		pageSize = repository.DefaultPageSize
	}
	offset = max(offset, 0)
	total := len(items)

	page := repository.Page{
		Total:      total,
		Page:       offset/pageSize + 1,
		PageSize:   pageSize,
		TotalPages: (total + pageSize - 1) / pageSize,
	}

	if offset >= total {
		return []T{}, page
	}
	end := min(offset+pageSize, total)
	out := make([]T, end-offset)
	copy(out, items[offset:end])
	return out, page
}

// containsFold reports whether substr occurs in s, ignoring case.
func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), substr)
}

// compareFold orders strings ignoring case.
func compareFold(a, b string) int {
	return cmp.Compare(strings.ToLower(a), strings.ToLower(b))
}

// direction flips comparisons for descending order.
func direction(order repository.SortOrder) int {
	if strings.EqualFold(string(order), string(repository.SortDesc)) {
		return -1
	}
	return 1
}

// sortKey normalizes a sort field name so firstName, first_name and FirstName match.
func sortKey(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, "_", ""))
}
