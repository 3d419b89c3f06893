package port

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/payment-requests/internal/domain/access"
	"github.com/garyjia/payment-requests/internal/domain/entity"
)

// Getters return (nil, nil) when a row is absent or outside the given scope.

// RoleRepository defines read operations for roles. Roles are seeded by migrations.
type RoleRepository interface {
	GetByID(ctx context.Context, id int64) (*entity.Role, error)
	GetByName(ctx context.Context, name string) (*entity.Role, error)
	List(ctx context.Context) ([]*entity.Role, error)
}

// DepartmentRepository defines read operations for departments
type DepartmentRepository interface {
	GetByID(ctx context.Context, id int64) (*entity.Department, error)
	List(ctx context.Context) ([]*entity.Department, error)
	Count(ctx context.Context) (int, error)
}

// UserRepository defines persistence operations for users
type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, id int64) (*entity.User, error)
	Update(ctx context.Context, user *entity.User) error
	// Delete reports false when the user is gone or still owns payment requests.
	Delete(ctx context.Context, id int64) (bool, error)
	List(ctx context.Context) ([]*entity.User, error)
	Count(ctx context.Context) (int, error)

	// FirstByRoleName returns the lowest-id user holding the named role
	FirstByRoleName(ctx context.Context, roleName string) (*entity.User, error)
}

// ProjectRepository defines persistence operations for projects
type ProjectRepository interface {
	Create(ctx context.Context, project *entity.Project) error
	Get(ctx context.Context, scope access.Scope, id int64) (*entity.Project, error)
	List(ctx context.Context, scope access.Scope) ([]*entity.Project, error)
	Update(ctx context.Context, project *entity.Project) error
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context, scope access.Scope) (int, error)
}

// BudgetTotals aggregates allocated and spent amounts
type BudgetTotals struct {
	Allocated decimal.Decimal
	Spent     decimal.Decimal
}

// BudgetRepository defines persistence operations for budgets
type BudgetRepository interface {
	Create(ctx context.Context, budget *entity.Budget) error
	Get(ctx context.Context, scope access.Scope, id int64) (*entity.Budget, error)
	List(ctx context.Context, scope access.Scope) ([]*entity.Budget, error)
	// Update reports false when the new allocation is below the amount spent.
	Update(ctx context.Context, budget *entity.Budget) (bool, error)
	// Delete reports false when the budget is gone or has recorded spending.
	Delete(ctx context.Context, id int64) (bool, error)

	// FindActive returns the first Active budget of the department,
	// restricted to the project when projectID is set
	FindActive(ctx context.Context, scope access.Scope, departmentID int64, projectID *int64) (*entity.Budget, error)

	// Approve moves a Pending budget to Active. Returns false when the budget was not Pending.
	Approve(ctx context.Context, id, approverID int64, at time.Time) (bool, error)

	// Debit adds amount to amount_spent only if the result stays within
	// amount_allocated and the budget is Active. Returns false otherwise.
	Debit(ctx context.Context, id int64, amount decimal.Decimal) (bool, error)

	// ArchiveExpired archives Active budgets whose period ended before now
	ArchiveExpired(ctx context.Context, now time.Time) ([]int64, error)

	Totals(ctx context.Context, scope access.Scope) (*BudgetTotals, error)
}

// PaymentRequestRepository defines persistence operations for payment requests
type PaymentRequestRepository interface {
	Create(ctx context.Context, req *entity.PaymentRequest) error
	Get(ctx context.Context, scope access.Scope, id int64) (*entity.PaymentRequest, error)
	List(ctx context.Context, scope access.Scope, filter entity.RequestFilter) (*entity.RequestPage, error)

	// UpdateDraft rewrites editable fields while the request is still a draft.
	// Returns false when the stored status is no longer draft.
	UpdateDraft(ctx context.Context, req *entity.PaymentRequest) (bool, error)

	// Transition persists the status and decision fields of req only if the
	// stored status still equals from. Returns false when it does not.
	Transition(ctx context.Context, req *entity.PaymentRequest, from entity.RequestStatus) (bool, error)

	CountByStatus(ctx context.Context, scope access.Scope) (map[entity.RequestStatus]int, error)
}

// AuditLogRepository defines persistence operations for audit records
type AuditLogRepository interface {
	Create(ctx context.Context, record *entity.AuditRecord) error
	ListBySubject(ctx context.Context, subjectType string, subjectID int64) ([]*entity.AuditRecord, error)
}

// CommentRepository defines persistence operations for request comments
type CommentRepository interface {
	Create(ctx context.Context, comment *entity.Comment) error
	// ListByRequest returns comments oldest first with the author's name filled in
	ListByRequest(ctx context.Context, requestID int64) ([]*entity.Comment, error)
}

// NotificationRepository defines persistence operations for the in-app inbox.
// Every operation is keyed by the recipient so one user never touches another's inbox.
type NotificationRepository interface {
	Create(ctx context.Context, n *entity.Notification) error
	// ListForUser returns the newest first
	ListForUser(ctx context.Context, userID int64, unreadOnly bool) ([]*entity.Notification, error)
	CountUnread(ctx context.Context, userID int64) (int, error)
	// MarkAllRead stamps every unread notification of the user and returns how many changed
	MarkAllRead(ctx context.Context, userID int64, at time.Time) (int64, error)
	// Delete reports false when no notification with that id belongs to the user
	Delete(ctx context.Context, userID, id int64) (bool, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
