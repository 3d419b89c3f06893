package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/payment-requests/internal/application/port"
	"github.com/garyjia/payment-requests/internal/domain/access"
	"github.com/garyjia/payment-requests/internal/domain/entity"
	"github.com/garyjia/payment-requests/internal/infrastructure/persistence/sqlite"
)

// ProjectRepository implements port.ProjectRepository
type ProjectRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewProjectRepository creates a new project repository
func NewProjectRepository(db *sql.DB, logger *zap.Logger) port.ProjectRepository {
	return &ProjectRepository{
		db:     db,
		logger: logger,
	}
}

const projectColumns = `id, name, department_id, status, created_at, updated_at`

// Create inserts a new project
func (r *ProjectRepository) Create(ctx context.Context, project *entity.Project) error {
	query := `
		INSERT INTO projects (name, department_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`
	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		project.Name,
		project.DepartmentID,
		project.Status,
		project.CreatedAt,
		project.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create project", zap.Error(err))
		return fmt.Errorf("failed to create project: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	project.ID = id
	return nil
}

// Get retrieves a project visible under scope
func (r *ProjectRepository) Get(ctx context.Context, scope access.Scope, id int64) (*entity.Project, error) {
	where, args := scopeClause(scope, "department_id")
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = ? AND ` + where

	project, err := scanProject(r.getExecutor(ctx).QueryRowContext(ctx, query, append([]interface{}{id}, args...)...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get project", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return project, nil
}

// List returns projects visible under scope ordered by ID
func (r *ProjectRepository) List(ctx context.Context, scope access.Scope) ([]*entity.Project, error) {
	where, args := scopeClause(scope, "department_id")
	query := `SELECT ` + projectColumns + ` FROM projects WHERE ` + where + ` ORDER BY id`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list projects", zap.Error(err))
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*entity.Project
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, project)
	}
	return projects, rows.Err()
}

// Update rewrites a project
func (r *ProjectRepository) Update(ctx context.Context, project *entity.Project) error {
	query := `UPDATE projects SET name = ?, department_id = ?, status = ?, updated_at = ? WHERE id = ?`
	_, err := r.getExecutor(ctx).ExecContext(ctx, query,
		project.Name,
		project.DepartmentID,
		project.Status,
		project.UpdatedAt,
		project.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update project", zap.Int64("id", project.ID), zap.Error(err))
		return fmt.Errorf("failed to update project: %w", err)
	}
	return nil
}

// Delete removes a project
func (r *ProjectRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.getExecutor(ctx).ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id); err != nil {
		r.logger.Error("Failed to delete project", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete project: %w", err)
	}
	return nil
}

// Count returns the number of projects visible under scope
func (r *ProjectRepository) Count(ctx context.Context, scope access.Scope) (int, error) {
	where, args := scopeClause(scope, "department_id")
	var n int
	if err := r.getExecutor(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM projects WHERE `+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count projects: %w", err)
	}
	return n, nil
}

func scanProject(row rowScanner) (*entity.Project, error) {
	var project entity.Project
	err := row.Scan(
		&project.ID,
		&project.Name,
		&project.DepartmentID,
		&project.Status,
		&project.CreatedAt,
		&project.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &project, nil
}

func (r *ProjectRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFor(ctx, r.db)
}

// Verify interface compliance
var _ port.ProjectRepository = (*ProjectRepository)(nil)
