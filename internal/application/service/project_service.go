package service

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/payment-requests/internal/application/port"
	"github.com/garyjia/payment-requests/internal/domain/access"
	"github.com/garyjia/payment-requests/internal/domain/apperr"
	"github.com/garyjia/payment-requests/internal/domain/entity"
	"github.com/garyjia/payment-requests/pkg/utils"
)

// ProjectInput carries the editable fields of a project
type ProjectInput struct {
	Name         string `json:"name" validate:"required,max=255"`
	DepartmentID int64  `json:"department_id" validate:"required,gt=0"`
	Status       string `json:"status" validate:"omitempty,oneof=Active Completed"`
}

// ProjectService manages projects
type ProjectService interface {
	List(ctx context.Context, p *entity.Principal) ([]*entity.Project, error)
	Get(ctx context.Context, p *entity.Principal, id int64) (*entity.Project, error)
	Create(ctx context.Context, p *entity.Principal, input ProjectInput) (*entity.Project, error)
	Update(ctx context.Context, p *entity.Principal, id int64, input ProjectInput) (*entity.Project, error)
	Delete(ctx context.Context, p *entity.Principal, id int64) error
}

type projectServiceImpl struct {
	projectRepo port.ProjectRepository
	deptRepo    port.DepartmentRepository
	gate        *access.Gate
	validator   *utils.Validator
	logger      Logger
}

// NewProjectService creates a new ProjectService
func NewProjectService(
	projectRepo port.ProjectRepository,
	deptRepo port.DepartmentRepository,
	gate *access.Gate,
	logger Logger,
) ProjectService {
	return &projectServiceImpl{
		projectRepo: projectRepo,
		deptRepo:    deptRepo,
		gate:        gate,
		validator:   utils.NewValidator(),
		logger:      logger,
	}
}

// List returns the projects visible to the principal. Any role may browse.
func (s *projectServiceImpl) List(ctx context.Context, p *entity.Principal) ([]*entity.Project, error) {
	if err := authorize(s.gate, p, access.ActionViewLookups); err != nil {
		return nil, err
	}
	projects, err := s.projectRepo.List(ctx, access.ScopeFor(p))
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

func (s *projectServiceImpl) Get(ctx context.Context, p *entity.Principal, id int64) (*entity.Project, error) {
	if err := authorize(s.gate, p, access.ActionViewLookups); err != nil {
		return nil, err
	}
	return s.load(ctx, p, id)
}

func (s *projectServiceImpl) Create(ctx context.Context, p *entity.Principal, input ProjectInput) (*entity.Project, error) {
	if err := authorize(s.gate, p, access.ActionManageProjects); err != nil {
		return nil, err
	}
	if err := s.validate(ctx, p, &input); err != nil {
		return nil, err
	}

	now := time.Now()
	project := &entity.Project{
		Name:         input.Name,
		DepartmentID: input.DepartmentID,
		Status:       input.Status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.projectRepo.Create(ctx, project); err != nil {
		s.logger.Error("Failed to create project", "error", err, "name", input.Name)
		return nil, fmt.Errorf("create project: %w", err)
	}
	return project, nil
}

func (s *projectServiceImpl) Update(ctx context.Context, p *entity.Principal, id int64, input ProjectInput) (*entity.Project, error) {
	if err := authorize(s.gate, p, access.ActionManageProjects); err != nil {
		return nil, err
	}
	project, err := s.load(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if err := s.validate(ctx, p, &input); err != nil {
		return nil, err
	}

	project.Name = input.Name
	project.DepartmentID = input.DepartmentID
	project.Status = input.Status
	project.UpdatedAt = time.Now()

	if err := s.projectRepo.Update(ctx, project); err != nil {
		return nil, fmt.Errorf("update project: %w", err)
	}
	return project, nil
}

func (s *projectServiceImpl) Delete(ctx context.Context, p *entity.Principal, id int64) error {
	if err := authorize(s.gate, p, access.ActionManageProjects); err != nil {
		return err
	}
	if _, err := s.load(ctx, p, id); err != nil {
		return err
	}
	if err := s.projectRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return nil
}

func (s *projectServiceImpl) load(ctx context.Context, p *entity.Principal, id int64) (*entity.Project, error) {
	project, err := s.projectRepo.Get(ctx, access.ScopeFor(p), id)
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	if project == nil {
		return nil, apperr.NotFound("project", id)
	}
	return project, nil
}

func (s *projectServiceImpl) validate(ctx context.Context, p *entity.Principal, input *ProjectInput) error {
	input.Name = utils.SanitizeString(input.Name)
	if input.Status == "" {
		input.Status = entity.ProjectStatusActive
	}
	if err := s.validator.Struct(input); err != nil {
		return apperr.Validation("%v", err)
	}
	if !access.ScopeFor(p).Admits(input.DepartmentID) {
		return fmt.Errorf("%w: department %d is outside your scope", apperr.ErrForbidden, input.DepartmentID)
	}
	dept, err := s.deptRepo.GetByID(ctx, input.DepartmentID)
	if err != nil {
		return fmt.Errorf("get department: %w", err)
	}
	if dept == nil {
		return apperr.Validation("department_id: department %d does not exist", input.DepartmentID)
	}
	return nil
}
