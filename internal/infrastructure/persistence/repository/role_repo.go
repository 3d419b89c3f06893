package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/payment-requests/internal/application/port"
	"github.com/garyjia/payment-requests/internal/domain/entity"
	"github.com/garyjia/payment-requests/internal/infrastructure/persistence/sqlite"
)

// RoleRepository implements port.RoleRepository
type RoleRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRoleRepository creates a new role repository
func NewRoleRepository(db *sql.DB, logger *zap.Logger) port.RoleRepository {
	return &RoleRepository{
		db:     db,
		logger: logger,
	}
}

const roleColumns = `id, name, permissions, created_at, updated_at`

// GetByID retrieves a role by ID
func (r *RoleRepository) GetByID(ctx context.Context, id int64) (*entity.Role, error) {
	query := `SELECT ` + roleColumns + ` FROM roles WHERE id = ?`
	role, err := scanRole(r.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get role by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	return role, nil
}

// GetByName retrieves a role by name
func (r *RoleRepository) GetByName(ctx context.Context, name string) (*entity.Role, error) {
	query := `SELECT ` + roleColumns + ` FROM roles WHERE name = ?`
	role, err := scanRole(r.getExecutor(ctx).QueryRowContext(ctx, query, name))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get role by name", zap.String("name", name), zap.Error(err))
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	return role, nil
}

// List returns all roles ordered by ID
func (r *RoleRepository) List(ctx context.Context) ([]*entity.Role, error) {
	rows, err := r.getExecutor(ctx).QueryContext(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY id`)
	if err != nil {
		r.logger.Error("Failed to list roles", zap.Error(err))
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	var roles []*entity.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func scanRole(row rowScanner) (*entity.Role, error) {
	var role entity.Role
	var permissions string
	if err := row.Scan(&role.ID, &role.Name, &permissions, &role.CreatedAt, &role.UpdatedAt); err != nil {
		return nil, err
	}

	raw := map[string]bool{}
	if err := json.Unmarshal([]byte(permissions), &raw); err != nil {
		return nil, fmt.Errorf("role %s: decode permissions: %w", role.Name, err)
	}
	caps, err := entity.ParseCapabilities(raw)
	if err != nil {
		return nil, err
	}
	role.Capabilities = caps
	return &role, nil
}

func (r *RoleRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFor(ctx, r.db)
}

// Verify interface compliance
var _ port.RoleRepository = (*RoleRepository)(nil)
