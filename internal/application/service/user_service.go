package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/garyjia/payment-requests/internal/application/port"
	"github.com/garyjia/payment-requests/internal/domain/access"
	"github.com/garyjia/payment-requests/internal/domain/apperr"
	"github.com/garyjia/payment-requests/internal/domain/entity"
	"github.com/garyjia/payment-requests/pkg/utils"
)

// UserInput carries the editable fields of a user.
// A nil RoleID falls back to the department's default role.
type UserInput struct {
	Name         string `json:"name" validate:"required,max=255"`
	Email        string `json:"email" validate:"required,email,max=255"`
	RoleID       *int64 `json:"role_id,omitempty" validate:"omitempty,gt=0"`
	DepartmentID int64  `json:"department_id" validate:"required,gt=0"`
	LarkOpenID   string `json:"lark_open_id,omitempty" validate:"max=64"`
}

// UserView is a user joined with its role and department names
type UserView struct {
	*entity.User
	RoleName       string `json:"role_name,omitempty"`
	DepartmentName string `json:"department_name,omitempty"`
}

// UserService manages user provisioning and principal resolution
type UserService interface {
	List(ctx context.Context, p *entity.Principal) ([]*UserView, error)
	Get(ctx context.Context, p *entity.Principal, id int64) (*UserView, error)
	Create(ctx context.Context, p *entity.Principal, input UserInput) (*UserView, error)
	Update(ctx context.Context, p *entity.Principal, id int64, input UserInput) (*UserView, error)
	Delete(ctx context.Context, p *entity.Principal, id int64) error

	// Principal resolves the acting principal of a user id
	Principal(ctx context.Context, userID int64) (*entity.Principal, error)
}

type userServiceImpl struct {
	userRepo  port.UserRepository
	roleRepo  port.RoleRepository
	deptRepo  port.DepartmentRepository
	gate      *access.Gate
	validator *utils.Validator
	logger    Logger
}

// NewUserService creates a new UserService
func NewUserService(
	userRepo port.UserRepository,
	roleRepo port.RoleRepository,
	deptRepo port.DepartmentRepository,
	gate *access.Gate,
	logger Logger,
) UserService {
	return &userServiceImpl{
		userRepo:  userRepo,
		roleRepo:  roleRepo,
		deptRepo:  deptRepo,
		gate:      gate,
		validator: utils.NewValidator(),
		logger:    logger,
	}
}

func (s *userServiceImpl) List(ctx context.Context, p *entity.Principal) ([]*UserView, error) {
	if err := authorize(s.gate, p, access.ActionManageUsers); err != nil {
		return nil, err
	}
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	roles, err := s.roleRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	depts, err := s.deptRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	roleNames := lo.SliceToMap(roles, func(r *entity.Role) (int64, string) { return r.ID, r.Name })
	deptNames := lo.SliceToMap(depts, func(d *entity.Department) (int64, string) { return d.ID, d.Name })

	return lo.Map(users, func(u *entity.User, _ int) *UserView {
		view := &UserView{User: u, DepartmentName: deptNames[u.DepartmentID]}
		if u.RoleID != nil {
			view.RoleName = roleNames[*u.RoleID]
		}
		return view
	}), nil
}

func (s *userServiceImpl) Get(ctx context.Context, p *entity.Principal, id int64) (*UserView, error) {
	if err := authorize(s.gate, p, access.ActionManageUsers); err != nil {
		return nil, err
	}
	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, user)
}

func (s *userServiceImpl) Create(ctx context.Context, p *entity.Principal, input UserInput) (*UserView, error) {
	if err := authorize(s.gate, p, access.ActionManageUsers); err != nil {
		return nil, err
	}
	dept, err := s.validate(ctx, &input)
	if err != nil {
		return nil, err
	}

	roleID := input.RoleID
	if roleID == nil {
		roleID = dept.DefaultRoleID
	}

	now := time.Now()
	user := &entity.User{
		Name:         input.Name,
		Email:        input.Email,
		RoleID:       roleID,
		DepartmentID: input.DepartmentID,
		LarkOpenID:   input.LarkOpenID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		s.logger.Error("Failed to create user", "error", err, "email", input.Email)
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("User provisioned", "user_id", user.ID, "department_id", user.DepartmentID, "actor_id", p.UserID)
	return s.view(ctx, user)
}

func (s *userServiceImpl) Update(ctx context.Context, p *entity.Principal, id int64, input UserInput) (*UserView, error) {
	if err := authorize(s.gate, p, access.ActionManageUsers); err != nil {
		return nil, err
	}
	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.validate(ctx, &input); err != nil {
		return nil, err
	}

	user.Name = input.Name
	user.Email = input.Email
	if input.RoleID != nil {
		user.RoleID = input.RoleID
	}
	user.DepartmentID = input.DepartmentID
	user.LarkOpenID = input.LarkOpenID
	user.UpdatedAt = time.Now()

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return s.view(ctx, user)
}

func (s *userServiceImpl) Delete(ctx context.Context, p *entity.Principal, id int64) error {
	if err := authorize(s.gate, p, access.ActionManageUsers); err != nil {
		return err
	}
	if id == p.UserID {
		return apperr.Validation("cannot delete your own account")
	}
	if _, err := s.load(ctx, id); err != nil {
		return err
	}
	deleted, err := s.userRepo.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if !deleted {
		return apperr.Validation("user %d has payment requests and cannot be deleted", id)
	}
	s.logger.Info("User deleted", "user_id", id, "actor_id", p.UserID)
	return nil
}

func (s *userServiceImpl) Principal(ctx context.Context, userID int64) (*entity.Principal, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: unknown user %d", apperr.ErrUnauthenticated, userID)
	}

	var role *entity.Role
	if user.RoleID != nil {
		role, err = s.roleRepo.GetByID(ctx, *user.RoleID)
		if err != nil {
			return nil, fmt.Errorf("get role: %w", err)
		}
	}
	return entity.NewPrincipal(user, role), nil
}

func (s *userServiceImpl) load(ctx context.Context, id int64) (*entity.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, apperr.NotFound("user", id)
	}
	return user, nil
}

func (s *userServiceImpl) view(ctx context.Context, user *entity.User) (*UserView, error) {
	view := &UserView{User: user}
	if user.RoleID != nil {
		role, err := s.roleRepo.GetByID(ctx, *user.RoleID)
		if err != nil {
			return nil, fmt.Errorf("get role: %w", err)
		}
		if role != nil {
			view.RoleName = role.Name
		}
	}
	dept, err := s.deptRepo.GetByID(ctx, user.DepartmentID)
	if err != nil {
		return nil, fmt.Errorf("get department: %w", err)
	}
	if dept != nil {
		view.DepartmentName = dept.Name
	}
	return view, nil
}

func (s *userServiceImpl) validate(ctx context.Context, input *UserInput) (*entity.Department, error) {
	input.Name = utils.SanitizeString(input.Name)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if err := s.validator.Struct(input); err != nil {
		return nil, apperr.Validation("%v", err)
	}

	dept, err := s.deptRepo.GetByID(ctx, input.DepartmentID)
	if err != nil {
		return nil, fmt.Errorf("get department: %w", err)
	}
	if dept == nil {
		return nil, apperr.Validation("department_id: department %d does not exist", input.DepartmentID)
	}

	if input.RoleID != nil {
		role, err := s.roleRepo.GetByID(ctx, *input.RoleID)
		if err != nil {
			return nil, fmt.Errorf("get role: %w", err)
		}
		if role == nil {
			return nil, apperr.Validation("role_id: role %d does not exist", *input.RoleID)
		}
	}
	return dept, nil
}
