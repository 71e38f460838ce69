package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/prn-tf/meridian/internal/domain"
	"github.com/prn-tf/meridian/internal/repository"
)

// productRepository implements repository.ProductRepository for PostgreSQL.
// Tags are a text[] column behind a GIN index.
type productRepository struct {
	db *DB
}

// NewProductRepository creates a new PostgreSQL product repository.
func NewProductRepository(db *DB) repository.ProductRepository {
	return &productRepository{db: db}
}

func scanProduct(scan func(dest ...any) error) (*domain.Product, error) {
	var (
		id      string
		payload []byte
	)
	if err := scan(&id, &payload); err != nil {
		return nil, err
	}
	var rec domain.ProductRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("corrupt product row %s: %v", id, err)
	}
	product, err := domain.ProductFromRecord(rec)
	if err != nil {
		return nil, fmt.Errorf("corrupt product row %s: %v", id, err)
	}
	return product, nil
}

func (r *productRepository) findOne(ctx context.Context, where string, arg any) (*domain.Product, error) {
	row := r.db.Pool.QueryRow(ctx, `SELECT id, payload FROM products WHERE `+where, arg)
	product, err := scanProduct(row.Scan)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return product, nil
}

func (r *productRepository) findMany(ctx context.Context, where string, args ...any) ([]*domain.Product, error) {
	query := `SELECT id, payload FROM products`
	if where != "" {
		query += ` WHERE ` + where
	}
	query += ` ORDER BY seq`

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := []*domain.Product{}
	for rows.Next() {
		product, err := scanProduct(rows.Scan)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate products: %w", err)
	}
	return products, nil
}

func (r *productRepository) count(ctx context.Context, where string, args ...any) (int, error) {
	query := `SELECT COUNT(*) FROM products`
	if where != "" {
		query += ` WHERE ` + where
	}
	var n int
	if err := r.db.Pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return n, nil
}

// FindByID retrieves a product by ID.
func (r *productRepository) FindByID(ctx context.Context, id domain.ProductID) (*domain.Product, error) {
	return r.findOne(ctx, `id = $1`, id.String())
}

// FindByName matches names case-insensitively through the lower(name) index.
func (r *productRepository) FindByName(ctx context.Context, name string) (*domain.Product, error) {
	return r.findOne(ctx, `lower(name) = $1`, strings.ToLower(strings.TrimSpace(name)))
}

func (r *productRepository) FindAll(ctx context.Context) ([]*domain.Product, error) {
	return r.findMany(ctx, "")
}

func (r *productRepository) FindActive(ctx context.Context) ([]*domain.Product, error) {
	return r.findMany(ctx, `is_active`)
}

func (r *productRepository) FindByCategory(ctx context.Context, categoryID string) ([]*domain.Product, error) {
	return r.findMany(ctx, `category_id = $1`, categoryID)
}

func (r *productRepository) FindByTag(ctx context.Context, tag string) ([]*domain.Product, error) {
	return r.findMany(ctx, `$1 = ANY(tags)`, tag)
}

// Save inserts the product or replaces the row with the same ID.
func (r *productRepository) Save(ctx context.Context, product *domain.Product) error {
	payload, err := json.Marshal(product.Record())
	if err != nil {
		return fmt.Errorf("failed to encode product: %w", err)
	}
	tags := product.Tags()
	if tags == nil {
		tags = []string{}
	}

	_, err = r.db.Pool.Exec(ctx, `
		INSERT INTO products (id, name, category_id, is_active, price, tags, created_at, updated_at, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			category_id = EXCLUDED.category_id,
			is_active = EXCLUDED.is_active,
			price = EXCLUDED.price,
			tags = EXCLUDED.tags,
			updated_at = EXCLUDED.updated_at,
			payload = EXCLUDED.payload
	`,
		product.ID().String(),
		strings.TrimSpace(product.Name().String()),
		product.Category().ID,
		product.IsActive(),
		product.Price().Amount(),
		tags,
		product.CreatedAt(),
		product.UpdatedAt(),
		payload,
	)
	if err != nil {
		if isUniqueViolation(err, "idx_products_name_lower") {
			return fmt.Errorf("%w: %s", domain.ErrProductAlreadyExists, product.Name())
		}
		return fmt.Errorf("failed to save product: %w", err)
	}
	return nil
}

// Update replaces an existing product.
func (r *productRepository) Update(ctx context.Context, product *domain.Product) error {
	exists, err := r.Exists(ctx, product.ID())
	if err != nil {
		return err
	}
	if !exists {
		return domain.ErrProductNotFound
	}
	return r.Save(ctx, product)
}

// Delete removes a product by ID.
func (r *productRepository) Delete(ctx context.Context, id domain.ProductID) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id.String())
	if err != nil {
		return false, fmt.Errorf("failed to delete product: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *productRepository) Exists(ctx context.Context, id domain.ProductID) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM products WHERE id = $1)`, id.String()).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check product existence: %w", err)
	}
	return exists, nil
}

func (r *productRepository) Count(ctx context.Context) (int, error) {
	return r.count(ctx, "")
}

func (r *productRepository) CountByCategory(ctx context.Context, categoryID string) (int, error) {
	return r.count(ctx, `category_id = $1`, categoryID)
}

func (r *productRepository) CountByActive(ctx context.Context, active bool) (int, error) {
	return r.count(ctx, `is_active = $1`, active)
}

var _ repository.ProductRepository = (*productRepository)(nil)
