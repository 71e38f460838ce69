package query

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"github.com/prn-tf/meridian/internal/domain"
	"github.com/prn-tf/meridian/internal/repository"
)

const (
	// DefaultRelatedLimit is used when FindRelated is called without a positive limit.
	DefaultRelatedLimit = 4

	statsListSize = 5
)

// priceBuckets are the facet boundaries. The last bucket is open ended.
var priceBuckets = []repository.PriceRangeFacet{
	{Min: 0, Max: 50},
	{Min: 50, Max: 100},
	{Min: 100, Max: 200},
	{Min: 200, Max: 300},
	{Min: 300, Max: 400},
	{Min: 400, Max: 0},
}

// FilterProducts keeps the products matching every criterion.
func FilterProducts(products []*domain.Product, c repository.ProductSearchCriteria) []*domain.Product {
	term := strings.ToLower(strings.TrimSpace(c.SearchTerm))

	out := make([]*domain.Product, 0, len(products))
	for _, p := range products {
		if c.CategoryID != "" && p.Category().ID != c.CategoryID {
			continue
		}
		if len(c.Tags) > 0 && !slices.ContainsFunc(c.Tags, p.HasTag) {
			continue
		}
		if c.PriceRange != nil && !c.PriceRange.Contains(p.Price().Amount()) {
			continue
		}
		if c.RatingRange != nil && !c.RatingRange.Contains(p.Rating().Average()) {
			continue
		}
		if c.InStock != nil && p.IsInStock() != *c.InStock {
			continue
		}
		if c.IsActive != nil && p.IsActive() != *c.IsActive {
			continue
		}
		if term != "" && !productMatches(p, term) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func productMatches(p *domain.Product, term string) bool {
	if containsFold(p.Name().String(), term) || containsFold(p.Description(), term) {
		return true
	}
	return slices.ContainsFunc(p.Tags(), func(tag string) bool { return containsFold(tag, term) })
}

var productComparators = map[string]func(a, b *domain.Product) int{
	"name":      func(a, b *domain.Product) int { return compareFold(a.Name().String(), b.Name().String()) },
	"price":     func(a, b *domain.Product) int { return cmp.Compare(a.Price().Amount(), b.Price().Amount()) },
	"rating":    func(a, b *domain.Product) int { return cmp.Compare(a.Rating().Average(), b.Rating().Average()) },
	"createdat": func(a, b *domain.Product) int { return a.CreatedAt().Compare(b.CreatedAt()) },
	"updatedat": func(a, b *domain.Product) int { return a.UpdatedAt().Compare(b.UpdatedAt()) },
}

// SortProducts returns a stably sorted copy. An empty sortBy keeps the input
// order and an unknown one sorts by name.
func SortProducts(products []*domain.Product, sortBy string, order repository.SortOrder) []*domain.Product {
	out := slices.Clone(products)
	if sortBy == "" {
		return out
	}
	cmpFn, ok := productComparators[sortKey(sortBy)]
	if !ok {
		cmpFn = productComparators["name"]
	}
	dir := direction(order)
	slices.SortStableFunc(out, func(a, b *domain.Product) int { return dir * cmpFn(a, b) })
	return out
}

// SearchProducts filters, facets, sorts and paginates products.
func SearchProducts(products []*domain.Product, c repository.ProductSearchCriteria) *repository.ProductSearchResult {
	matched := FilterProducts(products, c)
	facets := Facets(matched)
	items, page := Paginate(SortProducts(matched, c.SortBy, c.SortOrder), c.Limit, c.Offset)
	return &repository.ProductSearchResult{Products: items, Page: page, Facets: facets}
}

// Facets summarizes products by category, price bucket, rounded rating and tag.
func Facets(products []*domain.Product) repository.ProductFacets {
	facets := repository.ProductFacets{
		Categories:  []repository.CategoryFacet{},
		PriceRanges: slices.Clone(priceBuckets),
		Ratings:     make([]repository.RatingFacet, 5),
		Tags:        []repository.TagFacet{},
	}
	for i := range facets.Ratings {
		facets.Ratings[i].Rating = i + 1
	}

	categoryIndex := make(map[string]int)
	tagCounts := make(map[string]int)

	for _, p := range products {
		cat := p.Category()
		if i, ok := categoryIndex[cat.ID]; ok {
			facets.Categories[i].Count++
		} else {
			categoryIndex[cat.ID] = len(facets.Categories)
			facets.Categories = append(facets.Categories, repository.CategoryFacet{ID: cat.ID, Name: cat.Name, Count: 1})
		}

		amount := p.Price().Amount()
		for i, b := range facets.PriceRanges {
			if amount >= b.Min && (b.Max == 0 || amount < b.Max) {
				facets.PriceRanges[i].Count++
				break
			}
		}

		if r := p.Rating().Rounded(); r >= 1 && r <= 5 {
			facets.Ratings[r-1].Count++
		}

		for _, tag := range p.Tags() {
			tagCounts[tag]++
		}
	}

	for tag, n := range tagCounts {
		facets.Tags = append(facets.Tags, repository.TagFacet{Tag: tag, Count: n})
	}
	slices.SortFunc(facets.Tags, func(a, b repository.TagFacet) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return strings.Compare(a.Tag, b.Tag)
	})
	return facets
}

// LowStock returns products at or below threshold available units.
// A nil threshold uses each product's own threshold.
func LowStock(products []*domain.Product, threshold *int) []*domain.Product {
	var out []*domain.Product
	for _, p := range products {
		inv := p.Inventory()
		low := inv.IsLowStock()
		if threshold != nil {
			low = inv.Available() <= *threshold
		}
		if low {
			out = append(out, p)
		}
	}
	return out
}

// OutOfStock returns products with nothing available.
func OutOfStock(products []*domain.Product) []*domain.Product {
	var out []*domain.Product
	for _, p := range products {
		if p.Inventory().IsOutOfStock() {
			out = append(out, p)
		}
	}
	return out
}

// ByRating returns products whose average is at least minAverage, best first.
func ByRating(products []*domain.Product, minAverage float64) []*domain.Product {
	var out []*domain.Product
	for _, p := range products {
		if p.Rating().Average() >= minAverage {
			out = append(out, p)
		}
	}
	return SortProducts(out, "rating", repository.SortDesc)
}

// Related ranks active products sharing target's category or tags.
// Each shared tag scores one point and a shared category scores one more.
func Related(products []*domain.Product, target *domain.Product, limit int) []*domain.Product {
	if limit <= 0 {
		limit = DefaultRelatedLimit
	}

	type scored struct {
		product *domain.Product
		score   int
	}
	var candidates []scored
	for _, p := range products {
		if p.ID().Equals(target.ID()) || !p.IsActive() {
			continue
		}
		score := 0
		if p.Category().ID == target.Category().ID {
			score++
		}
		for _, tag := range target.Tags() {
			if p.HasTag(tag) {
				score++
			}
		}
		if score > 0 {
			candidates = append(candidates, scored{product: p, score: score})
		}
	}

	slices.SortStableFunc(candidates, func(a, b scored) int { return cmp.Compare(b.score, a.score) })

	out := make([]*domain.Product, 0, min(limit, len(candidates)))
	for i := 0; i < len(candidates) && i < limit; i++ {
		out = append(out, candidates[i].product)
	}
	return out
}

// ProductStatistics aggregates catalogue-wide numbers.
// Prices are summed as plain amounts regardless of currency.
func ProductStatistics(products []*domain.Product) *repository.ProductStatistics {
	stats := &repository.ProductStatistics{
		TotalProducts: len(products),
		ByCategory:    make(map[string]int),
	}

	var priceSum float64
	for _, p := range products {
		if p.IsActive() {
			stats.ActiveProducts++
		} else {
			stats.InactiveProducts++
		}
		inv := p.Inventory()
		if inv.IsOutOfStock() {
			stats.OutOfStockProducts++
		}
		if inv.IsLowStock() {
			stats.LowStockProducts++
		}
		stats.ByCategory[p.Category().ID]++
		priceSum += p.Price().Amount()
		stats.TotalValue += p.StockValue()
	}
	if len(products) > 0 {
		stats.AveragePrice = priceSum / float64(len(products))
	}

	var rated []*domain.Product
	for _, p := range products {
		if p.Rating().Count() > 0 {
			rated = append(rated, p)
		}
	}
	stats.TopRated = head(SortProducts(rated, "rating", repository.SortDesc), statsListSize)
	stats.RecentlyAdded = head(SortProducts(products, "createdAt", repository.SortDesc), statsListSize)
	return stats
}

func head(products []*domain.Product, n int) []*domain.Product {
	if len(products) > n {
		return products[:n]
	}
	if products == nil {
		return []*domain.Product{}
	}
	return products
}

// ProductScanner serves the product query tier by loading every product from a basic repository.
type ProductScanner struct {
	repo repository.ProductRepository
}

// NewProductScanner creates a scanner over repo.
func NewProductScanner(repo repository.ProductRepository) *ProductScanner {
	return &ProductScanner{repo: repo}
}

func (s *ProductScanner) Search(ctx context.Context, c repository.ProductSearchCriteria) (*repository.ProductSearchResult, error) {
	products, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	return SearchProducts(products, c), nil
}

func (s *ProductScanner) Statistics(ctx context.Context) (*repository.ProductStatistics, error) {
	products, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	return ProductStatistics(products), nil
}

func (s *ProductScanner) FindLowStock(ctx context.Context, threshold *int) ([]*domain.Product, error) {
	products, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	return LowStock(products, threshold), nil
}

func (s *ProductScanner) FindOutOfStock(ctx context.Context) ([]*domain.Product, error) {
	products, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	return OutOfStock(products), nil
}

func (s *ProductScanner) FindByRating(ctx context.Context, minAverage float64) ([]*domain.Product, error) {
	products, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	return ByRating(products, minAverage), nil
}

func (s *ProductScanner) FindRelated(ctx context.Context, id domain.ProductID, limit int) ([]*domain.Product, error) {
	target, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	products, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	return Related(products, target, limit), nil
}

var _ repository.ProductQuerier = (*ProductScanner)(nil)
