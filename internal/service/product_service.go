package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/meridian/internal/domain"
	"github.com/prn-tf/meridian/internal/metrics"
	"github.com/prn-tf/meridian/internal/repository"
)

// ProductService handles catalogue and inventory operations.
type ProductService struct {
	productRepo  repository.ProductRepository
	productQuery repository.ProductQuerier
	categories   map[string]domain.Category
	order        []string
	metrics      *metrics.Metrics
	logger       zerolog.Logger
	opts         options
}

// NewProductService creates a new ProductService.
// Products may only be filed under one of categories.
func NewProductService(
	productRepo repository.ProductRepository,
	productQuery repository.ProductQuerier,
	categories []domain.Category,
	m *metrics.Metrics,
	logger zerolog.Logger,
	opts ...Option,
) *ProductService {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	s := &ProductService{
		productRepo:  productRepo,
		productQuery: productQuery,
		categories:   make(map[string]domain.Category, len(categories)),
		metrics:      m,
		logger:       logger.With().Str("service", "product").Logger(),
		opts:         o,
	}
	for _, c := range categories {
		if _, dup := s.categories[c.ID]; !dup {
			s.order = append(s.order, c.ID)
		}
		s.categories[c.ID] = c
	}
	return s
}

func (s *ProductService) now() time.Time {
	return s.opts.now().UTC()
}

// ===== Requests =====

// CreateProductRequest contains the data needed to create a product.
type CreateProductRequest struct {
	Name              string            `json:"name" validate:"required"`
	Description       string            `json:"description,omitempty"`
	Price             float64           `json:"price" validate:"required,gt=0"`
	Currency          string            `json:"currency,omitempty" validate:"omitempty,len=3"`
	CategoryID        string            `json:"category_id" validate:"required"`
	Quantity          int               `json:"quantity" validate:"gte=0"`
	LowStockThreshold *int              `json:"low_stock_threshold,omitempty" validate:"omitnil,gte=0"`
	Images            []string          `json:"images,omitempty"`
	Tags              []string          `json:"tags,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

// UpdateProductRequest changes product details. Nil fields are kept;
// an empty, non-nil slice or map clears the field.
type UpdateProductRequest struct {
	ID          string            `json:"id" validate:"required"`
	Name        *string           `json:"name,omitempty"`
	Description *string           `json:"description,omitempty"`
	Price       *float64          `json:"price,omitempty" validate:"omitnil,gt=0"`
	Currency    *string           `json:"currency,omitempty" validate:"omitnil,len=3"`
	CategoryID  *string           `json:"category_id,omitempty"`
	Images      []string          `json:"images,omitempty"`
	Tags        []string          `json:"tags,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// InventoryUpdate sets the stock on hand of one product.
type InventoryUpdate struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gte=0"`
}

// =============================================================================
// Categories
// =============================================================================

// ListCategories returns the catalogue's categories in registration order.
func (s *ProductService) ListCategories() []domain.Category {
	out := make([]domain.Category, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.categories[id])
	}
	return out
}

func (s *ProductService) category(id string) (domain.Category, error) {
	c, ok := s.categories[id]
	if !ok {
		return domain.Category{}, domain.NewDomainError(ErrUnknownCategory, "category not in catalogue", id)
	}
	return c, nil
}

// =============================================================================
// Create / update / delete
// =============================================================================

// CreateProduct adds an active product with an empty rating.
func (s *ProductService) CreateProduct(ctx context.Context, req CreateProductRequest) (product *domain.Product, err error) {
	defer func() { s.metrics.RecordProductOperation("create", err) }()

	if err := validateRequest(req); err != nil {
		return nil, err
	}
	category, err := s.category(req.CategoryID)
	if err != nil {
		return nil, err
	}
	if err := s.checkNameFree(ctx, req.Name, ""); err != nil {
		return nil, err
	}

	now := s.now()
	product, err = domain.NewProduct(domain.NewProductParams{
		ID:          s.opts.newID(),
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Currency:    req.Currency,
		Category:    category,
		Quantity:    req.Quantity,
		Images:      req.Images,
		Tags:        req.Tags,
		Metadata:    req.Metadata,
		Now:         now,
	})
	if err != nil {
		return nil, err
	}
	if req.LowStockThreshold != nil {
		inv, err := domain.NewInventory(req.Quantity, 0, *req.LowStockThreshold)
		if err != nil {
			return nil, err
		}
		product = product.WithInventory(inv, now)
	}

	if err := s.productRepo.Save(ctx, product); err != nil {
		if !domain.IsConflict(err) {
			s.logger.Error().Err(err).Str("name", req.Name).Msg("failed to create product")
		}
		return nil, passThrough(err)
	}

	s.logger.Info().
		Str("product_id", product.ID().String()).
		Str("name", product.Name().String()).
		Str("category", category.ID).
		Msg("product created")

	return product, nil
}

// checkNameFree fails with a conflict when another product already uses name.
func (s *ProductService) checkNameFree(ctx context.Context, name, selfID string) error {
	existing, err := s.productRepo.FindByName(ctx, name)
	switch {
	case err == nil:
		if existing.ID().String() == selfID {
			return nil
		}
		return domain.NewDomainError(domain.ErrProductAlreadyExists, "name already in use", strings.TrimSpace(name))
	case domain.IsNotFound(err):
		return nil
	default:
		s.logger.Error().Err(err).Str("name", name).Msg("failed to check product name")
		return passThrough(err)
	}
}

// UpdateProduct applies detail changes to a stored product.
func (s *ProductService) UpdateProduct(ctx context.Context, req UpdateProductRequest) (product *domain.Product, err error) {
	defer func() { s.metrics.RecordProductOperation("update", err) }()

	if err := validateRequest(req); err != nil {
		return nil, err
	}
	product, err = s.GetProduct(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	now := s.now()

	if req.Name != nil {
		name, err := domain.NewProductName(*req.Name)
		if err != nil {
			return nil, err
		}
		if err := s.checkNameFree(ctx, name.String(), req.ID); err != nil {
			return nil, err
		}
		product = product.WithName(name, now)
	}
	if req.Description != nil {
		product = product.WithDescription(*req.Description, now)
	}
	if req.Price != nil || req.Currency != nil {
		amount, currency := product.Price().Amount(), product.Price().Currency()
		if req.Price != nil {
			amount = *req.Price
		}
		if req.Currency != nil {
			currency = *req.Currency
		}
		price, err := domain.NewPrice(amount, currency)
		if err != nil {
			return nil, err
		}
		product = product.WithPrice(price, now)
	}
	if req.CategoryID != nil {
		category, err := s.category(*req.CategoryID)
		if err != nil {
			return nil, err
		}
		if product, err = product.WithCategory(category, now); err != nil {
			return nil, err
		}
	}
	if req.Images != nil {
		product = product.WithImages(req.Images, now)
	}
	if req.Tags != nil {
		product = product.WithTags(req.Tags, now)
	}
	if req.Metadata != nil {
		product = product.WithMetadata(req.Metadata, now)
	}

	if err := s.persist(ctx, product, "failed to update product"); err != nil {
		return nil, err
	}
	s.logger.Info().Str("product_id", req.ID).Msg("product updated")
	return product, nil
}

// DeleteProduct removes a product and reports whether one existed.
func (s *ProductService) DeleteProduct(ctx context.Context, id string) (removed bool, err error) {
	defer func() { s.metrics.RecordProductOperation("delete", err) }()

	productID, err := domain.NewProductID(id)
	if err != nil {
		return false, err
	}
	removed, err = s.productRepo.Delete(ctx, productID)
	if err != nil {
		s.logger.Error().Err(err).Str("product_id", id).Msg("failed to delete product")
		return false, passThrough(err)
	}
	if removed {
		s.logger.Info().Str("product_id", id).Msg("product deleted")
	}
	return removed, nil
}

// SetProductActive lists or unlists a product.
func (s *ProductService) SetProductActive(ctx context.Context, id string, active bool) (product *domain.Product, err error) {
	defer func() { s.metrics.RecordProductOperation("set_active", err) }()

	product, err = s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	product = product.WithActive(active, s.now())
	if err := s.persist(ctx, product, "failed to update product listing"); err != nil {
		return nil, err
	}
	s.logger.Info().Str("product_id", id).Bool("active", active).Msg("product listing changed")
	return product, nil
}

func (s *ProductService) persist(ctx context.Context, product *domain.Product, msg string) error {
	if err := s.productRepo.Update(ctx, product); err != nil {
		if !domain.IsNotFound(err) && !domain.IsConflict(err) {
			s.logger.Error().Err(err).Str("product_id", product.ID().String()).Msg(msg)
		}
		return passThrough(err)
	}
	return nil
}

// =============================================================================
// Inventory and rating
// =============================================================================

// ReserveStock holds n units of a product.
func (s *ProductService) ReserveStock(ctx context.Context, id string, n int) (*domain.Product, error) {
	return s.adjustInventory(ctx, "reserve", id, func(inv domain.Inventory) (domain.Inventory, error) {
		return inv.Reserve(n)
	})
}

// ReleaseStock returns n reserved units to available stock.
func (s *ProductService) ReleaseStock(ctx context.Context, id string, n int) (*domain.Product, error) {
	return s.adjustInventory(ctx, "release", id, func(inv domain.Inventory) (domain.Inventory, error) {
		return inv.Release(n)
	})
}

// Restock adds n units to the stock on hand.
func (s *ProductService) Restock(ctx context.Context, id string, n int) (*domain.Product, error) {
	return s.adjustInventory(ctx, "restock", id, func(inv domain.Inventory) (domain.Inventory, error) {
		if n <= 0 {
			return domain.Inventory{}, domain.ErrInvalidQuantity
		}
		return inv.WithQuantity(inv.Quantity() + n)
	})
}

// SetStock replaces the stock on hand, keeping reservations.
func (s *ProductService) SetStock(ctx context.Context, id string, quantity int) (*domain.Product, error) {
	return s.adjustInventory(ctx, "set_stock", id, func(inv domain.Inventory) (domain.Inventory, error) {
		return inv.WithQuantity(quantity)
	})
}

func (s *ProductService) adjustInventory(
	ctx context.Context,
	op, id string,
	fn func(domain.Inventory) (domain.Inventory, error),
) (product *domain.Product, err error) {
	defer func() { s.metrics.RecordProductOperation(op, err) }()

	product, err = s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	before := product.Inventory()
	inv, err := fn(before)
	if err != nil {
		return nil, domain.NewDomainError(err, op+" rejected", id)
	}
	product = product.WithInventory(inv, s.now())
	if err := s.persist(ctx, product, "failed to update inventory"); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("product_id", id).
		Str("operation", op).
		Int("quantity", inv.Quantity()).
		Int("reserved", inv.Reserved()).
		Int("available", inv.Available()).
		Msg("inventory changed")

	if inv.IsLowStock() && !before.IsLowStock() {
		s.logger.Warn().Str("product_id", id).Int("available", inv.Available()).Msg("product is low on stock")
	}
	return product, nil
}

// AddRating records one customer rating of 1 to 5 stars.
func (s *ProductService) AddRating(ctx context.Context, id string, stars int) (product *domain.Product, err error) {
	defer func() { s.metrics.RecordProductOperation("rate", err) }()

	product, err = s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	rating, err := product.Rating().AddRating(stars)
	if err != nil {
		return nil, err
	}
	product = product.WithRating(rating, s.now())
	if err := s.persist(ctx, product, "failed to update rating"); err != nil {
		return nil, err
	}
	return product, nil
}

// BulkUpdateInventory sets the stock of each listed product in order.
// Per-item failures are recorded and never stop the batch.
func (s *ProductService) BulkUpdateInventory(ctx context.Context, updates []InventoryUpdate) (*BatchReport, error) {
	report := newBatchReport(len(updates))
	for _, u := range updates {
		err := validateRequest(u)
		if err == nil {
			_, err = s.SetStock(ctx, u.ProductID, u.Quantity)
		}
		if err != nil {
			s.logger.Warn().Err(err).Str("product_id", u.ProductID).Msg("bulk inventory item failed")
		}
		s.metrics.RecordBulkItem("bulk_inventory", err)
		report.record(u.ProductID, err)
	}

	s.logger.Info().
		Int("requested", report.Requested).
		Int("succeeded", report.Succeeded).
		Int("failed", report.Failed).
		Msg("bulk inventory update finished")
	return report, nil
}

// =============================================================================
// Lookups and queries
// =============================================================================

// GetProduct retrieves a product by ID.
func (s *ProductService) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	productID, err := domain.NewProductID(id)
	if err != nil {
		return nil, err
	}
	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		if !domain.IsNotFound(err) {
			s.logger.Error().Err(err).Str("product_id", id).Msg("failed to get product")
		}
		return nil, passThrough(err)
	}
	return product, nil
}

// SearchProducts filters, sorts, paginates and facets products.
func (s *ProductService) SearchProducts(ctx context.Context, criteria repository.ProductSearchCriteria) (*repository.ProductSearchResult, error) {
	res, err := s.productQuery.Search(ctx, criteria)
	if err != nil {
		return nil, passThrough(err)
	}
	return res, nil
}

// GetProductStatistics computes catalogue-wide aggregates.
func (s *ProductService) GetProductStatistics(ctx context.Context) (*repository.ProductStatistics, error) {
	stats, err := s.productQuery.Statistics(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to compute product statistics")
		return nil, passThrough(err)
	}
	return stats, nil
}

// GetLowStockProducts returns products at or below threshold available units.
// A nil threshold uses each product's own threshold.
func (s *ProductService) GetLowStockProducts(ctx context.Context, threshold *int) ([]*domain.Product, error) {
	if threshold != nil && *threshold < 0 {
		return nil, domain.NewDomainError(domain.ErrValidation, "threshold must not be negative", fmt.Sprint(*threshold))
	}
	products, err := s.productQuery.FindLowStock(ctx, threshold)
	return products, passThrough(err)
}

// GetOutOfStockProducts returns products with nothing available.
func (s *ProductService) GetOutOfStockProducts(ctx context.Context) ([]*domain.Product, error) {
	products, err := s.productQuery.FindOutOfStock(ctx)
	return products, passThrough(err)
}

// GetProductsByRating returns products rated at least minAverage, best first.
func (s *ProductService) GetProductsByRating(ctx context.Context, minAverage float64) ([]*domain.Product, error) {
	if minAverage < 0 || minAverage > 5 {
		return nil, domain.NewDomainError(domain.ErrInvalidRating, "minimum must be between 0 and 5", fmt.Sprint(minAverage))
	}
	products, err := s.productQuery.FindByRating(ctx, minAverage)
	return products, passThrough(err)
}

// GetRelatedProducts returns up to limit active products similar to id.
func (s *ProductService) GetRelatedProducts(ctx context.Context, id string, limit int) ([]*domain.Product, error) {
	productID, err := domain.NewProductID(id)
	if err != nil {
		return nil, err
	}
	products, err := s.productQuery.FindRelated(ctx, productID, limit)
	return products, passThrough(err)
}

// GetProductsByCategory returns products in a category of the catalogue.
func (s *ProductService) GetProductsByCategory(ctx context.Context, categoryID string) ([]*domain.Product, error) {
	if _, err := s.category(categoryID); err != nil {
		return nil, err
	}
	products, err := s.productRepo.FindByCategory(ctx, categoryID)
	return products, passThrough(err)
}

// GetProductsByTag returns products carrying tag.
func (s *ProductService) GetProductsByTag(ctx context.Context, tag string) ([]*domain.Product, error) {
	products, err := s.productRepo.FindByTag(ctx, tag)
	return products, passThrough(err)
}
