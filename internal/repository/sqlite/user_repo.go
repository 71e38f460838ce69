package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/prn-tf/meridian/internal/domain"
	"github.com/prn-tf/meridian/internal/repository"
)

// userRepository implements repository.UserRepository for SQLite.
type userRepository struct {
	db *DB
}

// NewUserRepository creates a new SQLite user repository.
func NewUserRepository(db *DB) repository.UserRepository {
	return &userRepository{db: db}
}

const userColumns = `id, payload`

func scanUser(scan func(dest ...any) error) (*domain.User, error) {
	var id, payload string
	if err := scan(&id, &payload); err != nil {
		return nil, err
	}
	var rec domain.UserRecord
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return nil, fmt.Errorf("corrupt user row %s: %v", id, err)
	}
	user, err := domain.UserFromRecord(rec)
	if err != nil {
		return nil, fmt.Errorf("corrupt user row %s: %v", id, err)
	}
	return user, nil
}

func (r *userRepository) findOne(ctx context.Context, where string, arg any) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg)
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
	query := `SELECT ` + userColumns + ` FROM users`
	if where != "" {
		query += ` WHERE ` + where
	}
	query += ` ORDER BY rowid`

	rows, err := r.db.QueryContext(ctx, query, args...)
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
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

// FindByID retrieves a user by ID.
func (r *userRepository) FindByID(ctx context.Context, id domain.UserID) (*domain.User, error) {
	return r.findOne(ctx, `id = ?`, id.String())
}

// FindByEmail retrieves a user by email.
func (r *userRepository) FindByEmail(ctx context.Context, email domain.Email) (*domain.User, error) {
	return r.findOne(ctx, `email = ?`, email.Value())
}

func (r *userRepository) FindAll(ctx context.Context) ([]*domain.User, error) {
	return r.findMany(ctx, "")
}

func (r *userRepository) FindActive(ctx context.Context) ([]*domain.User, error) {
	return r.findMany(ctx, `status = ?`, string(domain.StateActive))
}

func (r *userRepository) FindByRole(ctx context.Context, role domain.Role) ([]*domain.User, error) {
	return r.findMany(ctx, `role = ?`, string(role))
}

func (r *userRepository) FindByStatus(ctx context.Context, state domain.UserState) ([]*domain.User, error) {
	return r.findMany(ctx, `status = ?`, string(state))
}

// Save inserts the user or replaces the row with the same ID.
// The rowid, and so the listing position, survives a replace. A replace
// that changes the email is refused.
func (r *userRepository) Save(ctx context.Context, user *domain.User) error {
	payload, err := json.Marshal(user.Record())
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}
	lastLogin, hasLogin := user.LastLoginAt()

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, role, status, first_name, last_name, created_at, updated_at, last_login_at, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			role = excluded.role,
			status = excluded.status,
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			updated_at = excluded.updated_at,
			last_login_at = excluded.last_login_at,
			payload = excluded.payload
		WHERE users.email = excluded.email
	`,
		user.ID().String(),
		user.Email().Value(),
		string(user.Role()),
		string(user.Status().State()),
		user.Profile().FirstName,
		user.Profile().LastName,
		formatTime(user.CreatedAt()),
		formatTime(user.UpdatedAt()),
		nullTime(lastLogin, hasLogin),
		string(payload),
	)
	if err != nil {
		if isUniqueViolation(err, "users.email") {
			return fmt.Errorf("%w: %s", domain.ErrUserAlreadyExists, user.Email())
		}
		return fmt.Errorf("failed to save user: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	// The upsert skips the update when the stored email differs.
	if n == 0 {
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
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id.String())
	if err != nil {
		return false, fmt.Errorf("failed to delete user: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

func (r *userRepository) Exists(ctx context.Context, id domain.UserID) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = ?`, id.String()).Scan(&one)
	if isNoRows(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return true, nil
}

func (r *userRepository) Count(ctx context.Context) (int, error) {
	return r.count(ctx, "")
}

func (r *userRepository) CountByStatus(ctx context.Context, state domain.UserState) (int, error) {
	return r.count(ctx, `status = ?`, string(state))
}

func (r *userRepository) CountByRole(ctx context.Context, role domain.Role) (int, error) {
	return r.count(ctx, `role = ?`, string(role))
}

var _ repository.UserRepository = (*userRepository)(nil)
