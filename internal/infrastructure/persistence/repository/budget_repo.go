package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/garyjia/payment-requests/internal/application/port"
	"github.com/garyjia/payment-requests/internal/domain/access"
	"github.com/garyjia/payment-requests/internal/domain/entity"
	"github.com/garyjia/payment-requests/internal/infrastructure/persistence/sqlite"
)

// BudgetRepository implements port.BudgetRepository. Amounts are stored in cents.
type BudgetRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewBudgetRepository creates a new budget repository
func NewBudgetRepository(db *sql.DB, logger *zap.Logger) port.BudgetRepository {
	return &BudgetRepository{
		db:     db,
		logger: logger,
	}
}

const budgetColumns = `
	id, department_id, project_id, amount_allocated_cents, amount_spent_cents, status,
	period_start, period_end, approved_by, approved_at, created_at, updated_at`

// Create inserts a new budget
func (r *BudgetRepository) Create(ctx context.Context, budget *entity.Budget) error {
	allocated, err := entity.ToCents(budget.AmountAllocated)
	if err != nil {
		return err
	}
	spent, err := entity.ToCents(budget.AmountSpent)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO budgets (
			department_id, project_id, amount_allocated_cents, amount_spent_cents, status,
			period_start, period_end, approved_by, approved_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		budget.DepartmentID,
		nullInt64(budget.ProjectID),
		allocated,
		spent,
		string(budget.Status),
		nullTime(budget.PeriodStart),
		nullTime(budget.PeriodEnd),
		nullInt64(budget.ApprovedBy),
		nullTime(budget.ApprovedAt),
		budget.CreatedAt,
		budget.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create budget", zap.Int64("department_id", budget.DepartmentID), zap.Error(err))
		return fmt.Errorf("failed to create budget: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	budget.ID = id
	return nil
}

// Get retrieves a budget visible under scope
func (r *BudgetRepository) Get(ctx context.Context, scope access.Scope, id int64) (*entity.Budget, error) {
	where, args := scopeClause(scope, "department_id")
	query := `SELECT ` + budgetColumns + ` FROM budgets WHERE id = ? AND ` + where

	budget, err := scanBudget(r.getExecutor(ctx).QueryRowContext(ctx, query, append([]interface{}{id}, args...)...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get budget", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get budget: %w", err)
	}
	return budget, nil
}

// List returns budgets visible under scope ordered by ID
func (r *BudgetRepository) List(ctx context.Context, scope access.Scope) ([]*entity.Budget, error) {
	where, args := scopeClause(scope, "department_id")
	return r.query(ctx, `SELECT `+budgetColumns+` FROM budgets WHERE `+where+` ORDER BY id`, args...)
}

// Update rewrites the editable fields. Spent and status are left to the ledger
// and approval paths. It reports false when the new allocation would drop
// below the amount already spent.
func (r *BudgetRepository) Update(ctx context.Context, budget *entity.Budget) (bool, error) {
	allocated, err := entity.ToCents(budget.AmountAllocated)
	if err != nil {
		return false, err
	}
	query := `
		UPDATE budgets
		SET department_id = ?, project_id = ?, amount_allocated_cents = ?,
			period_start = ?, period_end = ?, updated_at = ?
		WHERE id = ? AND amount_spent_cents <= ?
	`
	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		budget.DepartmentID,
		nullInt64(budget.ProjectID),
		allocated,
		nullTime(budget.PeriodStart),
		nullTime(budget.PeriodEnd),
		budget.UpdatedAt,
		budget.ID,
		allocated,
	)
	if err != nil {
		r.logger.Error("Failed to update budget", zap.Int64("id", budget.ID), zap.Error(err))
		return false, fmt.Errorf("failed to update budget: %w", err)
	}
	return affectedOne(result)
}

// Delete removes a budget with no recorded spending. It reports false when
// the budget is gone or a debit has landed.
func (r *BudgetRepository) Delete(ctx context.Context, id int64) (bool, error) {
	result, err := r.getExecutor(ctx).ExecContext(ctx,
		`DELETE FROM budgets WHERE id = ? AND amount_spent_cents = 0`, id)
	if err != nil {
		r.logger.Error("Failed to delete budget", zap.Int64("id", id), zap.Error(err))
		return false, fmt.Errorf("failed to delete budget: %w", err)
	}
	return affectedOne(result)
}

// FindActive returns the lowest-id Active budget of the department
func (r *BudgetRepository) FindActive(ctx context.Context, scope access.Scope, departmentID int64, projectID *int64) (*entity.Budget, error) {
	where, args := scopeClause(scope, "department_id")
	query := `SELECT ` + budgetColumns + ` FROM budgets WHERE department_id = ? AND status = ? AND ` + where
	params := append([]interface{}{departmentID, string(entity.BudgetStatusActive)}, args...)
	if projectID != nil {
		query += ` AND project_id = ?`
		params = append(params, *projectID)
	}
	query += ` ORDER BY id LIMIT 1`

	budget, err := scanBudget(r.getExecutor(ctx).QueryRowContext(ctx, query, params...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to find active budget", zap.Int64("department_id", departmentID), zap.Error(err))
		return nil, fmt.Errorf("failed to find active budget: %w", err)
	}
	return budget, nil
}

// Approve moves a Pending budget to Active
func (r *BudgetRepository) Approve(ctx context.Context, id, approverID int64, at time.Time) (bool, error) {
	query := `
		UPDATE budgets
		SET status = ?, approved_by = ?, approved_at = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`
	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		string(entity.BudgetStatusActive), approverID, at, at, id, string(entity.BudgetStatusPending))
	if err != nil {
		r.logger.Error("Failed to approve budget", zap.Int64("id", id), zap.Error(err))
		return false, fmt.Errorf("failed to approve budget: %w", err)
	}
	return affectedOne(result)
}

// Debit adds amount to the spent total in one conditional statement, so a
// concurrent writer can never push spent past allocated.
func (r *BudgetRepository) Debit(ctx context.Context, id int64, amount decimal.Decimal) (bool, error) {
	cents, err := entity.ToCents(amount)
	if err != nil {
		return false, err
	}
	query := `
		UPDATE budgets
		SET amount_spent_cents = amount_spent_cents + ?, updated_at = ?
		WHERE id = ? AND status = ? AND amount_spent_cents + ? <= amount_allocated_cents
	`
	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		cents, time.Now(), id, string(entity.BudgetStatusActive), cents)
	if err != nil {
		r.logger.Error("Failed to debit budget", zap.Int64("id", id), zap.Int64("cents", cents), zap.Error(err))
		return false, fmt.Errorf("failed to debit budget: %w", err)
	}
	return affectedOne(result)
}

// ArchiveExpired archives Active budgets whose period ended before now
func (r *BudgetRepository) ArchiveExpired(ctx context.Context, now time.Time) ([]int64, error) {
	candidates, err := r.query(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE status = ? AND period_end IS NOT NULL ORDER BY id`,
		string(entity.BudgetStatusActive))
	if err != nil {
		return nil, err
	}

	var archived []int64
	for _, budget := range candidates {
		if !budget.Expired(now) {
			continue
		}
		result, err := r.getExecutor(ctx).ExecContext(ctx,
			`UPDATE budgets SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
			string(entity.BudgetStatusArchived), now, budget.ID, string(entity.BudgetStatusActive))
		if err != nil {
			return archived, fmt.Errorf("failed to archive budget %d: %w", budget.ID, err)
		}
		if ok, _ := affectedOne(result); ok {
			archived = append(archived, budget.ID)
		}
	}
	return archived, nil
}

// Totals sums allocated and spent amounts visible under scope
func (r *BudgetRepository) Totals(ctx context.Context, scope access.Scope) (*port.BudgetTotals, error) {
	where, args := scopeClause(scope, "department_id")
	query := `
		SELECT COALESCE(SUM(amount_allocated_cents), 0), COALESCE(SUM(amount_spent_cents), 0)
		FROM budgets WHERE ` + where

	var allocated, spent int64
	if err := r.getExecutor(ctx).QueryRowContext(ctx, query, args...).Scan(&allocated, &spent); err != nil {
		return nil, fmt.Errorf("failed to total budgets: %w", err)
	}
	return &port.BudgetTotals{
		Allocated: entity.FromCents(allocated),
		Spent:     entity.FromCents(spent),
	}, nil
}

func (r *BudgetRepository) query(ctx context.Context, query string, args ...interface{}) ([]*entity.Budget, error) {
	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query budgets", zap.Error(err))
		return nil, fmt.Errorf("failed to query budgets: %w", err)
	}
	defer rows.Close()

	var budgets []*entity.Budget
	for rows.Next() {
		budget, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan budget: %w", err)
		}
		budgets = append(budgets, budget)
	}
	return budgets, rows.Err()
}

func scanBudget(row rowScanner) (*entity.Budget, error) {
	var (
		budget                 entity.Budget
		projectID, approvedBy  sql.NullInt64
		allocated, spent       int64
		status                 string
		periodStart, periodEnd sql.NullTime
		approvedAt             sql.NullTime
	)
	err := row.Scan(
		&budget.ID,
		&budget.DepartmentID,
		&projectID,
		&allocated,
		&spent,
		&status,
		&periodStart,
		&periodEnd,
		&approvedBy,
		&approvedAt,
		&budget.CreatedAt,
		&budget.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	budget.ProjectID = int64Ptr(projectID)
	budget.AmountAllocated = entity.FromCents(allocated)
	budget.AmountSpent = entity.FromCents(spent)
	budget.Status = entity.BudgetStatus(status)
	budget.PeriodStart = timePtr(periodStart)
	budget.PeriodEnd = timePtr(periodEnd)
	budget.ApprovedBy = int64Ptr(approvedBy)
	budget.ApprovedAt = timePtr(approvedAt)
	return &budget, nil
}

func affectedOne(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n == 1, nil
}

func (r *BudgetRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFor(ctx, r.db)
}

// Verify interface compliance
var _ port.BudgetRepository = (*BudgetRepository)(nil)
