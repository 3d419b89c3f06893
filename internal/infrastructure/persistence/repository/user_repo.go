package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/payment-requests/internal/application/port"
	"github.com/garyjia/payment-requests/internal/domain/entity"
	"github.com/garyjia/payment-requests/internal/infrastructure/persistence/sqlite"
)

// UserRepository implements port.UserRepository
type UserRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB, logger *zap.Logger) *UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

const userColumns = `u.id, u.name, u.email, u.role_id, u.department_id, u.lark_open_id, u.created_at, u.updated_at`

// Create inserts a new user
func (r *UserRepository) Create(ctx context.Context, user *entity.User) error {
	query := `
		INSERT INTO users (name, email, role_id, department_id, lark_open_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		user.Name,
		user.Email,
		nullInt64(user.RoleID),
		user.DepartmentID,
		user.LarkOpenID,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create user", zap.String("email", user.Email), zap.Error(err))
		return fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	user.ID = id
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	query := `SELECT ` + userColumns + ` FROM users u WHERE u.id = ?`
	user, err := scanUser(r.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get user", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// Update rewrites a user's profile
func (r *UserRepository) Update(ctx context.Context, user *entity.User) error {
	query := `
		UPDATE users
		SET name = ?, email = ?, role_id = ?, department_id = ?, lark_open_id = ?, updated_at = ?
		WHERE id = ?
	`
	_, err := r.getExecutor(ctx).ExecContext(ctx, query,
		user.Name,
		user.Email,
		nullInt64(user.RoleID),
		user.DepartmentID,
		user.LarkOpenID,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update user", zap.Int64("id", user.ID), zap.Error(err))
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// Delete removes a user who has never raised a payment request
func (r *UserRepository) Delete(ctx context.Context, id int64) (bool, error) {
	query := `
		DELETE FROM users
		WHERE id = ? AND NOT EXISTS (SELECT 1 FROM payment_requests WHERE requester_id = ?)
	`
	result, err := r.getExecutor(ctx).ExecContext(ctx, query, id, id)
	if err != nil {
		r.logger.Error("Failed to delete user", zap.Int64("id", id), zap.Error(err))
		return false, fmt.Errorf("failed to delete user: %w", err)
	}
	return affectedOne(result)
}

// List returns all users ordered by ID
func (r *UserRepository) List(ctx context.Context) ([]*entity.User, error) {
	rows, err := r.getExecutor(ctx).QueryContext(ctx, `SELECT `+userColumns+` FROM users u ORDER BY u.id`)
	if err != nil {
		r.logger.Error("Failed to list users", zap.Error(err))
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*entity.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// Count returns the number of users
func (r *UserRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.getExecutor(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

// FirstByRoleName returns the lowest-id user holding the named role
func (r *UserRepository) FirstByRoleName(ctx context.Context, roleName string) (*entity.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users u
		JOIN roles ro ON ro.id = u.role_id
		WHERE ro.name = ?
		ORDER BY u.id
		LIMIT 1
	`
	user, err := scanUser(r.getExecutor(ctx).QueryRowContext(ctx, query, roleName))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to find user by role", zap.String("role", roleName), zap.Error(err))
		return nil, fmt.Errorf("failed to find user by role: %w", err)
	}
	return user, nil
}

func scanUser(row rowScanner) (*entity.User, error) {
	var user entity.User
	var roleID sql.NullInt64
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&roleID,
		&user.DepartmentID,
		&user.LarkOpenID,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	user.RoleID = int64Ptr(roleID)
	return &user, nil
}

func (r *UserRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFor(ctx, r.db)
}

// Verify interface compliance
var (
	_ port.UserRepository    = (*UserRepository)(nil)
	_ port.ApproverDirectory = (*UserRepository)(nil)
)
