package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/prn-tf/meridian/internal/domain"
	"github.com/prn-tf/meridian/internal/query"
	"github.com/prn-tf/meridian/internal/repository"
)

type productRepository struct {
	mu       sync.RWMutex
	products []*domain.Product
}

// NewProductRepository creates an empty product repository.
func NewProductRepository() repository.ExtendedProductRepository {
	return &productRepository{}
}

func (r *productRepository) indexOf(id domain.ProductID) int {
	for i, p := range r.products {
		if p.ID().Equals(id) {
			return i
		}
	}
	return -1
}

func (r *productRepository) snapshot() []*domain.Product {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Product, len(r.products))
	copy(out, r.products)
	return out
}

func (r *productRepository) filter(keep func(*domain.Product) bool) []*domain.Product {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []*domain.Product{}
	for _, p := range r.products {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}

// nameTaken reports whether a product other than id already uses name.
func (r *productRepository) nameTaken(name string, id domain.ProductID) bool {
	for _, p := range r.products {
		if strings.EqualFold(p.Name().String(), name) && !p.ID().Equals(id) {
			return true
		}
	}
	return false
}

// ===== Basic tier =====

func (r *productRepository) FindByID(_ context.Context, id domain.ProductID) (*domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i := r.indexOf(id); i >= 0 {
		return r.products[i], nil
	}
	return nil, domain.ErrProductNotFound
}

func (r *productRepository) FindByName(_ context.Context, name string) (*domain.Product, error) {
	name = strings.TrimSpace(name)
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.products {
		if strings.EqualFold(p.Name().String(), name) {
			return p, nil
		}
	}
	return nil, domain.ErrProductNotFound
}

func (r *productRepository) FindAll(_ context.Context) ([]*domain.Product, error) {
	return r.snapshot(), nil
}

func (r *productRepository) FindActive(_ context.Context) ([]*domain.Product, error) {
	return r.filter((*domain.Product).IsActive), nil
}

func (r *productRepository) FindByCategory(_ context.Context, categoryID string) ([]*domain.Product, error) {
	return r.filter(func(p *domain.Product) bool { return p.Category().ID == categoryID }), nil
}

func (r *productRepository) FindByTag(_ context.Context, tag string) ([]*domain.Product, error) {
	return r.filter(func(p *domain.Product) bool { return p.HasTag(tag) }), nil
}

func (r *productRepository) Save(_ context.Context, product *domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.nameTaken(product.Name().String(), product.ID()) {
		return domain.ErrProductAlreadyExists
	}
	if i := r.indexOf(product.ID()); i >= 0 {
		r.products[i] = product
		return nil
	}
	r.products = append(r.products, product)
	return nil
}

func (r *productRepository) Update(_ context.Context, product *domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(product.ID())
	if i < 0 {
		return domain.ErrProductNotFound
	}
	if r.nameTaken(product.Name().String(), product.ID()) {
		return domain.ErrProductAlreadyExists
	}
	r.products[i] = product
	return nil
}

func (r *productRepository) Delete(_ context.Context, id domain.ProductID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return false, nil
	}
	r.products = append(r.products[:i], r.products[i+1:]...)
	return true, nil
}

func (r *productRepository) Exists(_ context.Context, id domain.ProductID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.indexOf(id) >= 0, nil
}

func (r *productRepository) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.products), nil
}

func (r *productRepository) CountByCategory(ctx context.Context, categoryID string) (int, error) {
	products, _ := r.FindByCategory(ctx, categoryID)
	return len(products), nil
}

func (r *productRepository) CountByActive(_ context.Context, active bool) (int, error) {
	return len(r.filter(func(p *domain.Product) bool { return p.IsActive() == active })), nil
}

// ===== Query tier =====

func (r *productRepository) Search(_ context.Context, c repository.ProductSearchCriteria) (*repository.ProductSearchResult, error) {
	return query.SearchProducts(r.snapshot(), c), nil
}

func (r *productRepository) Statistics(_ context.Context) (*repository.ProductStatistics, error) {
	return query.ProductStatistics(r.snapshot()), nil
}

func (r *productRepository) FindLowStock(_ context.Context, threshold *int) ([]*domain.Product, error) {
	return query.LowStock(r.snapshot(), threshold), nil
}

func (r *productRepository) FindOutOfStock(_ context.Context) ([]*domain.Product, error) {
	return query.OutOfStock(r.snapshot()), nil
}

func (r *productRepository) FindByRating(_ context.Context, minAverage float64) ([]*domain.Product, error) {
	return query.ByRating(r.snapshot(), minAverage), nil
}

func (r *productRepository) FindRelated(ctx context.Context, id domain.ProductID, limit int) ([]*domain.Product, error) {
	target, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return query.Related(r.snapshot(), target, limit), nil
}

var _ repository.ExtendedProductRepository = (*productRepository)(nil)
