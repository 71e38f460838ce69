package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prn-tf/meridian/internal/domain"
	"github.com/prn-tf/meridian/internal/repository"
)

// userRepository implements repository.UserRepository for PostgreSQL.
type userRepository struct {
	db *DB
}

// NewUserRepository creates a new PostgreSQL user repository.
func NewUserRepository(db *DB) repository.UserRepository {
	return &userRepository{db: db}
}

func scanUser(scan func(dest ...any) error) (*domain.User, error) {
	var (
		id      string
		payload []byte
	)
	if err := scan(&id, &payload); err != nil {
		return nil, err
	}
	var rec domain.UserRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("corrupt user row %s: %v", id, err)
	}
	user, err := domain.UserFromRecord(rec)
	if err != nil {
		return nil, fmt.Errorf("corrupt user row %s: %v", id, err)
	}
	return user, nil
}

func (r *userRepository) findOne(ctx context.Context, where string, arg any) (*domain.User, error) {
	row := r.db.Pool.QueryRow(ctx, `SELECT id, payload FROM users WHERE `+where, arg)
	user, err := scanUser(row.Scan)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (r *userRepository) findMany(ctx context.Context, where string, args ...any) ([]*domain.User, error) {
	query := `SELECT id, payload FROM users`
	if where != "" {
		query += ` WHERE ` + where
	}
	query += ` ORDER BY seq`

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []*domain.User{}
	for rows.Next() {
		user, err := scanUser(rows.Scan)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

func (r *userRepository) count(ctx context.Context, where string, args ...any) (int, error) {
	query := `SELECT COUNT(*) FROM users`
	if where != "" {
		query += ` WHERE ` + where
	}
	var n int
	if err := r.db.Pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

// FindByID retrieves a user by ID.
func (r *userRepository) FindByID(ctx context.Context, id domain.UserID) (*domain.User, error) {
	return r.findOne(ctx, `id = $1`, id.String())
}

// FindByEmail retrieves a user by email.
func (r *userRepository) FindByEmail(ctx context.Context, email domain.Email) (*domain.User, error) {
	return r.findOne(ctx, `email = $1`, email.Value())
}

func (r *userRepository) FindAll(ctx context.Context) ([]*domain.User, error) {
	return r.findMany(ctx, "")
}

func (r *userRepository) FindActive(ctx context.Context) ([]*domain.User, error) {
	return r.findMany(ctx, `status = $1`, string(domain.StateActive))
}

func (r *userRepository) FindByRole(ctx context.Context, role domain.Role) ([]*domain.User, error) {
	return r.findMany(ctx, `role = $1`, string(role))
}

func (r *userRepository) FindByStatus(ctx context.Context, state domain.UserState) ([]*domain.User, error) {
	return r.findMany(ctx, `status = $1`, string(state))
}

// Save inserts the user or replaces the row with the same ID.
// seq is assigned on insert only, so a replace keeps the listing position.
// A replace that changes the email is refused.
func (r *userRepository) Save(ctx context.Context, user *domain.User) error {
	payload, err := json.Marshal(user.Record())
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}
	var lastLogin *time.Time
	if at, ok := user.LastLoginAt(); ok {
		lastLogin = &at
	}

	tag, err := r.db.Pool.Exec(ctx, `
		INSERT INTO users (id, email, role, status, first_name, last_name, created_at, updated_at, last_login_at, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			role = EXCLUDED.role,
			status = EXCLUDED.status,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			updated_at = EXCLUDED.updated_at,
			last_login_at = EXCLUDED.last_login_at,
			payload = EXCLUDED.payload
		WHERE users.email = EXCLUDED.email
	`,
		user.ID().String(),
		user.Email().Value(),
		string(user.Role()),
		string(user.Status().State()),
		user.Profile().FirstName,
		user.Profile().LastName,
		user.CreatedAt(),
		user.UpdatedAt(),
		lastLogin,
		payload,
	)
	if err != nil {
		if isUniqueViolation(err, "users_email_key") {
			return fmt.Errorf("%w: %s", domain.ErrUserAlreadyExists, user.Email())
		}
		return fmt.Errorf("failed to save user: %w", err)
	}
	// The upsert skips the update when the stored email differs.
	if tag.RowsAffected() == 0 {
		return domain.ErrEmailImmutable
	}
	return nil
}

// Update replaces an existing user.
func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	exists, err := r.Exists(ctx, user.ID())
	if err != nil {
		return err
	}
	if !exists {
		return domain.ErrUserNotFound
	}
	return r.Save(ctx, user)
}

// Delete removes a user by ID.
func (r *userRepository) Delete(ctx context.Context, id domain.UserID) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id.String())
	if err != nil {
		return false, fmt.Errorf("failed to delete user: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *userRepository) Exists(ctx context.Context, id domain.UserID) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, id.String()).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return exists, nil
}

func (r *userRepository) Count(ctx context.Context) (int, error) {
	return r.count(ctx, "")
}

func (r *userRepository) CountByStatus(ctx context.Context, state domain.UserState) (int, error) {
	return r.count(ctx, `status = $1`, string(state))
}

func (r *userRepository) CountByRole(ctx context.Context, role domain.Role) (int, error) {
	return r.count(ctx, `role = $1`, string(role))
}

var _ repository.UserRepository = (*userRepository)(nil)
