package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/prn-tf/meridian/internal/domain"
	"github.com/prn-tf/meridian/internal/repository"
)

// productRepository implements repository.ProductRepository for SQLite.
// Tags live in product_tags so FindByTag can use an index.
type productRepository struct {
	db *DB
}

// NewProductRepository creates a new SQLite product repository.
func NewProductRepository(db *DB) repository.ProductRepository {
	return &productRepository{db: db}
}

func scanProduct(scan func(dest ...any) error) (*domain.Product, error) {
	var id, payload string
	if err := scan(&id, &payload); err != nil {
		return nil, err
	}
	var rec domain.ProductRecord
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return nil, fmt.Errorf("corrupt product row %s: %v", id, err)
	}
	product, err := domain.ProductFromRecord(rec)
	if err != nil {
		return nil, fmt.Errorf("corrupt product row %s: %v", id, err)
	}
	return product, nil
}

func (r *productRepository) findOne(ctx context.Context, where string, arg any) (*domain.Product, error) {
	row := r.db.QueryRowContext(ctx, `SELECT p.id, p.payload FROM products p WHERE `+where, arg)
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
	query := `SELECT p.id, p.payload FROM products p`
	if where != "" {
		query += ` WHERE ` + where
	}
	query += ` ORDER BY p.rowid`

	rows, err := r.db.QueryContext(ctx, query, args...)
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
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return n, nil
}

// FindByID retrieves a product by ID.
func (r *productRepository) FindByID(ctx context.Context, id domain.ProductID) (*domain.Product, error) {
	return r.findOne(ctx, `p.id = ?`, id.String())
}

// FindByName matches the lower-cased name key.
func (r *productRepository) FindByName(ctx context.Context, name string) (*domain.Product, error) {
	return r.findOne(ctx, `p.name_key = ?`, nameKey(name))
}

func (r *productRepository) FindAll(ctx context.Context) ([]*domain.Product, error) {
	return r.findMany(ctx, "")
}

func (r *productRepository) FindActive(ctx context.Context) ([]*domain.Product, error) {
	return r.findMany(ctx, `p.is_active = 1`)
}

func (r *productRepository) FindByCategory(ctx context.Context, categoryID string) ([]*domain.Product, error) {
	return r.findMany(ctx, `p.category_id = ?`, categoryID)
}

func (r *productRepository) FindByTag(ctx context.Context, tag string) ([]*domain.Product, error) {
	return r.findMany(ctx, `EXISTS (SELECT 1 FROM product_tags t WHERE t.product_id = p.id AND t.tag = ?)`, tag)
}

// Save upserts the product row and rewrites its tags in one transaction.
func (r *productRepository) Save(ctx context.Context, product *domain.Product) error {
	payload, err := json.Marshal(product.Record())
	if err != nil {
		return fmt.Errorf("failed to encode product: %w", err)
	}
	id := product.ID().String()

	err = r.db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO products (id, name, name_key, category_id, is_active, price, created_at, updated_at, payload)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				name_key = excluded.name_key,
				category_id = excluded.category_id,
				is_active = excluded.is_active,
				price = excluded.price,
				updated_at = excluded.updated_at,
				payload = excluded.payload
		`,
			id,
			product.Name().String(),
			nameKey(product.Name().String()),
			product.Category().ID,
			boolToInt(product.IsActive()),
			product.Price().Amount(),
			formatTime(product.CreatedAt()),
			formatTime(product.UpdatedAt()),
			string(payload),
		)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM product_tags WHERE product_id = ?`, id); err != nil {
			return err
		}
		for _, tag := range product.Tags() {
			if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO product_tags (product_id, tag) VALUES (?, ?)`, id, tag); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if isUniqueViolation(err, "products.name_key") {
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

// Delete removes a product; its tags go with it through the foreign key.
func (r *productRepository) Delete(ctx context.Context, id domain.ProductID) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id.String())
	if err != nil {
		return false, fmt.Errorf("failed to delete product: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

func (r *productRepository) Exists(ctx context.Context, id domain.ProductID) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM products WHERE id = ?`, id.String()).Scan(&one)
	if isNoRows(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check product existence: %w", err)
	}
	return true, nil
}

func (r *productRepository) Count(ctx context.Context) (int, error) {
	return r.count(ctx, "")
}

func (r *productRepository) CountByCategory(ctx context.Context, categoryID string) (int, error) {
	return r.count(ctx, `category_id = ?`, categoryID)
}

func (r *productRepository) CountByActive(ctx context.Context, active bool) (int, error) {
	return r.count(ctx, `is_active = ?`, boolToInt(active))
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

var _ repository.ProductRepository = (*productRepository)(nil)
