package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/garyjia/payment-requests/internal/application/port"
	"github.com/garyjia/payment-requests/internal/domain/access"
	"github.com/garyjia/payment-requests/internal/domain/entity"
)

// Overview summarizes budgets and requests visible to the principal
type Overview struct {
	TotalAllocated   decimal.Decimal              `json:"total_allocated"`
	TotalSpent       decimal.Decimal              `json:"total_spent"`
	TotalRemaining   decimal.Decimal              `json:"total_remaining"`
	PercentageSpent  decimal.Decimal              `json:"percentage_spent"`
	TotalUsers       int                          `json:"total_users"`
	TotalDepartments int                          `json:"total_departments"`
	TotalProjects    int                          `json:"total_projects"`
	RequestsByStatus map[entity.RequestStatus]int `json:"requests_by_status"`
}

// DashboardService builds the overview
type DashboardService interface {
	Overview(ctx context.Context, p *entity.Principal) (*Overview, error)
}

type dashboardServiceImpl struct {
	budgetRepo  port.BudgetRepository
	requestRepo port.PaymentRequestRepository
	projectRepo port.ProjectRepository
	userRepo    port.UserRepository
	deptRepo    port.DepartmentRepository
	gate        *access.Gate
}

// NewDashboardService creates a new DashboardService
func NewDashboardService(
	budgetRepo port.BudgetRepository,
	requestRepo port.PaymentRequestRepository,
	projectRepo port.ProjectRepository,
	userRepo port.UserRepository,
	deptRepo port.DepartmentRepository,
	gate *access.Gate,
) DashboardService {
	return &dashboardServiceImpl{
		budgetRepo:  budgetRepo,
		requestRepo: requestRepo,
		projectRepo: projectRepo,
		userRepo:    userRepo,
		deptRepo:    deptRepo,
		gate:        gate,
	}
}

func (s *dashboardServiceImpl) Overview(ctx context.Context, p *entity.Principal) (*Overview, error) {
	if err := authorize(s.gate, p, access.ActionViewDashboard); err != nil {
		return nil, err
	}
	scope := access.ScopeFor(p)

	totals, err := s.budgetRepo.Totals(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("budget totals: %w", err)
	}
	byStatus, err := s.requestRepo.CountByStatus(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("count requests: %w", err)
	}
	projects, err := s.projectRepo.Count(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("count projects: %w", err)
	}
	users, err := s.userRepo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	depts, err := s.deptRepo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count departments: %w", err)
	}

	// every status appears, zero or not
	counts := make(map[entity.RequestStatus]int, len(entity.AllRequestStatuses))
	for _, status := range entity.AllRequestStatuses {
		counts[status] = byStatus[status]
	}

	overview := &Overview{
		TotalAllocated:   totals.Allocated,
		TotalSpent:       totals.Spent,
		TotalRemaining:   totals.Allocated.Sub(totals.Spent),
		PercentageSpent:  decimal.Zero,
		TotalUsers:       users,
		TotalDepartments: depts,
		TotalProjects:    projects,
		RequestsByStatus: counts,
	}
	if totals.Allocated.IsPositive() {
		overview.PercentageSpent = totals.Spent.Div(totals.Allocated).Mul(decimal.NewFromInt(100)).Round(2)
	}
	return overview, nil
}
