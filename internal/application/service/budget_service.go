package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/payment-requests/internal/application/dispatcher"
	"github.com/garyjia/payment-requests/internal/application/port"
	"github.com/garyjia/payment-requests/internal/domain/access"
	"github.com/garyjia/payment-requests/internal/domain/apperr"
	"github.com/garyjia/payment-requests/internal/domain/entity"
	"github.com/garyjia/payment-requests/internal/domain/event"
	"github.com/garyjia/payment-requests/pkg/utils"
)

// BudgetInput carries the editable fields of a budget
type BudgetInput struct {
	DepartmentID    int64           `json:"department_id" validate:"required,gt=0"`
	ProjectID       *int64          `json:"project_id,omitempty" validate:"omitempty,gt=0"`
	AmountAllocated decimal.Decimal `json:"amount_allocated"`
	PeriodStart     *time.Time      `json:"period_start,omitempty"`
	PeriodEnd       *time.Time      `json:"period_end,omitempty"`
}

// BudgetAvailability reports the remaining funds of a budget
type BudgetAvailability struct {
	BudgetID        int64           `json:"budget_id"`
	AmountAllocated decimal.Decimal `json:"amount_allocated"`
	AmountSpent     decimal.Decimal `json:"amount_spent"`
	Available       decimal.Decimal `json:"available"`
	Status          string          `json:"status"`
}

// BudgetService manages budgets outside the payment lifecycle
type BudgetService interface {
	List(ctx context.Context, p *entity.Principal) ([]*entity.Budget, error)
	Get(ctx context.Context, p *entity.Principal, id int64) (*entity.Budget, error)
	Create(ctx context.Context, p *entity.Principal, input BudgetInput) (*entity.Budget, error)
	Update(ctx context.Context, p *entity.Principal, id int64, input BudgetInput) (*entity.Budget, error)
	Delete(ctx context.Context, p *entity.Principal, id int64) error
	Approve(ctx context.Context, p *entity.Principal, id int64) (*entity.Budget, error)
	Available(ctx context.Context, p *entity.Principal, id int64) (*BudgetAvailability, error)

	// ArchiveExpired archives Active budgets past their period end. Used by the expiry worker.
	ArchiveExpired(ctx context.Context, now time.Time) (int, error)
}

type budgetServiceImpl struct {
	budgetRepo  port.BudgetRepository
	projectRepo port.ProjectRepository
	audit       port.AuditRecorder
	dispatcher  dispatcher.Dispatcher
	gate        *access.Gate
	validator   *utils.Validator
	logger      Logger
	now         func() time.Time
}

// NewBudgetService creates a new BudgetService. dispatcher may be nil.
func NewBudgetService(
	budgetRepo port.BudgetRepository,
	projectRepo port.ProjectRepository,
	audit port.AuditRecorder,
	dispatcher dispatcher.Dispatcher,
	gate *access.Gate,
	logger Logger,
) BudgetService {
	return &budgetServiceImpl{
		budgetRepo:  budgetRepo,
		projectRepo: projectRepo,
		audit:       audit,
		dispatcher:  dispatcher,
		gate:        gate,
		validator:   utils.NewValidator(),
		logger:      logger,
		now:         time.Now,
	}
}

func (s *budgetServiceImpl) List(ctx context.Context, p *entity.Principal) ([]*entity.Budget, error) {
	if err := authorize(s.gate, p, access.ActionManageBudgets); err != nil {
		return nil, err
	}
	budgets, err := s.budgetRepo.List(ctx, access.ScopeFor(p))
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	return budgets, nil
}

func (s *budgetServiceImpl) Get(ctx context.Context, p *entity.Principal, id int64) (*entity.Budget, error) {
	if err := authorize(s.gate, p, access.ActionManageBudgets); err != nil {
		return nil, err
	}
	return s.load(ctx, p, id)
}

func (s *budgetServiceImpl) Create(ctx context.Context, p *entity.Principal, input BudgetInput) (*entity.Budget, error) {
	if err := authorize(s.gate, p, access.ActionManageBudgets); err != nil {
		return nil, err
	}
	if err := s.validate(ctx, p, input); err != nil {
		return nil, err
	}

	now := s.now()
	budget := &entity.Budget{
		DepartmentID:    input.DepartmentID,
		ProjectID:       input.ProjectID,
		AmountAllocated: input.AmountAllocated,
		AmountSpent:     decimal.Zero,
		Status:          entity.BudgetStatusPending,
		PeriodStart:     input.PeriodStart,
		PeriodEnd:       input.PeriodEnd,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	// Budgets set by the approving role need no second signature
	if s.gate.Authorize(p, access.ActionApproveBudget) {
		approver := p.UserID
		budget.Status = entity.BudgetStatusActive
		budget.ApprovedBy = &approver
		budget.ApprovedAt = &now
	}

	if err := s.budgetRepo.Create(ctx, budget); err != nil {
		s.logger.Error("Failed to create budget", "error", err, "department_id", input.DepartmentID)
		return nil, fmt.Errorf("create budget: %w", err)
	}

	s.logger.Info("Budget created",
		"budget_id", budget.ID,
		"department_id", budget.DepartmentID,
		"status", string(budget.Status),
	)
	return budget, nil
}

func (s *budgetServiceImpl) Update(ctx context.Context, p *entity.Principal, id int64, input BudgetInput) (*entity.Budget, error) {
	if err := authorize(s.gate, p, access.ActionManageBudgets); err != nil {
		return nil, err
	}
	budget, err := s.load(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if err := s.validate(ctx, p, input); err != nil {
		return nil, err
	}
	if input.AmountAllocated.LessThan(budget.AmountSpent) {
		return nil, apperr.Validation("amount_allocated: cannot drop below the %s already spent", budget.AmountSpent.StringFixed(2))
	}

	budget.DepartmentID = input.DepartmentID
	budget.ProjectID = input.ProjectID
	budget.AmountAllocated = input.AmountAllocated
	budget.PeriodStart = input.PeriodStart
	budget.PeriodEnd = input.PeriodEnd
	budget.UpdatedAt = s.now()

	updated, err := s.budgetRepo.Update(ctx, budget)
	if err != nil {
		return nil, fmt.Errorf("update budget: %w", err)
	}
	if !updated {
		return nil, apperr.Validation("amount_allocated: cannot drop below the amount already spent on budget %d", id)
	}
	return budget, nil
}

func (s *budgetServiceImpl) Delete(ctx context.Context, p *entity.Principal, id int64) error {
	if err := authorize(s.gate, p, access.ActionManageBudgets); err != nil {
		return err
	}
	budget, err := s.load(ctx, p, id)
	if err != nil {
		return err
	}
	if !budget.AmountSpent.IsZero() {
		return apperr.Validation("budget %d has recorded spending and cannot be deleted", id)
	}
	deleted, err := s.budgetRepo.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	if !deleted {
		return apperr.Validation("budget %d has recorded spending and cannot be deleted", id)
	}
	s.logger.Info("Budget deleted", "budget_id", id, "actor_id", p.UserID)
	return nil
}

func (s *budgetServiceImpl) Approve(ctx context.Context, p *entity.Principal, id int64) (*entity.Budget, error) {
	if err := authorize(s.gate, p, access.ActionApproveBudget); err != nil {
		return nil, err
	}
	budget, err := s.load(ctx, p, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	ok, err := s.budgetRepo.Approve(ctx, id, p.UserID, now)
	if err != nil {
		return nil, fmt.Errorf("approve budget: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: budget %d is %s, not Pending", apperr.ErrInvalidTransition, id, budget.Status)
	}

	approver := p.UserID
	from := budget.Status
	budget.Status = entity.BudgetStatusActive
	budget.ApprovedBy = &approver
	budget.ApprovedAt = &now

	s.record(ctx, p.UserID, id, entity.AuditActionBudgetApproved, string(from), string(budget.Status))
	if s.dispatcher != nil {
		s.dispatcher.DispatchAsync(ctx, event.NewEvent(event.TypeBudgetApproved, id, map[string]interface{}{
			event.KeyActorID:      p.UserID,
			event.KeyDepartmentID: budget.DepartmentID,
			event.KeyAmount:       budget.AmountAllocated.StringFixed(2),
		}))
	}
	return budget, nil
}

func (s *budgetServiceImpl) Available(ctx context.Context, p *entity.Principal, id int64) (*BudgetAvailability, error) {
	if err := authorize(s.gate, p, access.ActionManageBudgets); err != nil {
		return nil, err
	}
	budget, err := s.load(ctx, p, id)
	if err != nil {
		return nil, err
	}
	return &BudgetAvailability{
		BudgetID:        budget.ID,
		AmountAllocated: budget.AmountAllocated,
		AmountSpent:     budget.AmountSpent,
		Available:       budget.Available(),
		Status:          string(budget.Status),
	}, nil
}

func (s *budgetServiceImpl) ArchiveExpired(ctx context.Context, now time.Time) (int, error) {
	ids, err := s.budgetRepo.ArchiveExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("archive expired budgets: %w", err)
	}
	for _, id := range ids {
		s.record(ctx, 0, id, entity.AuditActionBudgetArchived, string(entity.BudgetStatusActive), string(entity.BudgetStatusArchived))
		if s.dispatcher != nil {
			s.dispatcher.DispatchAsync(ctx, event.NewEvent(event.TypeBudgetArchived, id, nil))
		}
	}
	return len(ids), nil
}

func (s *budgetServiceImpl) load(ctx context.Context, p *entity.Principal, id int64) (*entity.Budget, error) {
	budget, err := s.budgetRepo.Get(ctx, access.ScopeFor(p), id)
	if err != nil {
		return nil, fmt.Errorf("get budget: %w", err)
	}
	if budget == nil {
		return nil, apperr.NotFound("budget", id)
	}
	return budget, nil
}

func (s *budgetServiceImpl) validate(ctx context.Context, p *entity.Principal, input BudgetInput) error {
	if err := s.validator.Struct(input); err != nil {
		return apperr.Validation("%v", err)
	}
	if input.AmountAllocated.IsNegative() || !entity.IsMoney(input.AmountAllocated) {
		return apperr.Validation("amount_allocated: must be a non-negative amount with at most two decimal places")
	}
	if !entity.WithinLimit(input.AmountAllocated) {
		return apperr.Validation("amount_allocated: must not exceed %s", entity.MaxAmount.StringFixed(2))
	}
	if input.PeriodStart != nil && input.PeriodEnd != nil && input.PeriodEnd.Before(*input.PeriodStart) {
		return apperr.Validation("period_end: must not precede period_start")
	}

	scope := access.ScopeFor(p)
	if !scope.Admits(input.DepartmentID) {
		return fmt.Errorf("%w: department %d is outside your scope", apperr.ErrForbidden, input.DepartmentID)
	}
	if input.ProjectID != nil {
		project, err := s.projectRepo.Get(ctx, scope, *input.ProjectID)
		if err != nil {
			return fmt.Errorf("get project: %w", err)
		}
		if project == nil || project.DepartmentID != input.DepartmentID {
			return apperr.Validation("project_id: project %d does not belong to department %d", *input.ProjectID, input.DepartmentID)
		}
	}
	return nil
}

func (s *budgetServiceImpl) record(ctx context.Context, actorID, budgetID int64, action, from, to string) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, &entity.AuditRecord{
		ActorID:     actorID,
		SubjectType: entity.SubjectBudget,
		SubjectID:   budgetID,
		Action:      action,
		OldValues:   map[string]interface{}{"status": from},
		NewValues:   map[string]interface{}{"status": to},
		Timestamp:   s.now(),
	})
	if err != nil {
		s.logger.Error("Failed to record budget audit", "error", err, "budget_id", budgetID, "action", action)
	}
}
