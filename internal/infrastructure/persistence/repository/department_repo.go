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

// DepartmentRepository implements port.DepartmentRepository
type DepartmentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDepartmentRepository creates a new department repository
func NewDepartmentRepository(db *sql.DB, logger *zap.Logger) port.DepartmentRepository {
	return &DepartmentRepository{
		db:     db,
		logger: logger,
	}
}

const departmentColumns = `id, name, code, default_role_id, created_at, updated_at`

// GetByID retrieves a department by ID
func (r *DepartmentRepository) GetByID(ctx context.Context, id int64) (*entity.Department, error) {
	query := `SELECT ` + departmentColumns + ` FROM departments WHERE id = ?`
	dept, err := scanDepartment(r.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get department", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get department: %w", err)
	}
	return dept, nil
}

// List returns all departments ordered by ID
func (r *DepartmentRepository) List(ctx context.Context) ([]*entity.Department, error) {
	rows, err := r.getExecutor(ctx).QueryContext(ctx, `SELECT `+departmentColumns+` FROM departments ORDER BY id`)
	if err != nil {
		r.logger.Error("Failed to list departments", zap.Error(err))
		return nil, fmt.Errorf("failed to list departments: %w", err)
	}
	defer rows.Close()

	var depts []*entity.Department
	for rows.Next() {
		dept, err := scanDepartment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan department: %w", err)
		}
		depts = append(depts, dept)
	}
	return depts, rows.Err()
}

// Count returns the number of departments
func (r *DepartmentRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.getExecutor(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM departments`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count departments: %w", err)
	}
	return n, nil
}

func scanDepartment(row rowScanner) (*entity.Department, error) {
	var dept entity.Department
	var defaultRole sql.NullInt64
	if err := row.Scan(&dept.ID, &dept.Name, &dept.Code, &defaultRole, &dept.CreatedAt, &dept.UpdatedAt); err != nil {
		return nil, err
	}
	dept.DefaultRoleID = int64Ptr(defaultRole)
	return &dept, nil
}

func (r *DepartmentRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFor(ctx, r.db)
}

// Verify interface compliance
var _ port.DepartmentRepository = (*DepartmentRepository)(nil)
