package service

import (
	"context"
	"fmt"

	"github.com/garyjia/payment-requests/internal/application/port"
	"github.com/garyjia/payment-requests/internal/domain/access"
	"github.com/garyjia/payment-requests/internal/domain/entity"
)

// LookupService serves reference data for forms
type LookupService interface {
	Departments(ctx context.Context, p *entity.Principal) ([]*entity.Department, error)
	Roles(ctx context.Context, p *entity.Principal) ([]*entity.Role, error)
}

type lookupServiceImpl struct {
	deptRepo port.DepartmentRepository
	roleRepo port.RoleRepository
	gate     *access.Gate
}

// NewLookupService creates a new LookupService
func NewLookupService(deptRepo port.DepartmentRepository, roleRepo port.RoleRepository, gate *access.Gate) LookupService {
	return &lookupServiceImpl{deptRepo: deptRepo, roleRepo: roleRepo, gate: gate}
}

func (s *lookupServiceImpl) Departments(ctx context.Context, p *entity.Principal) ([]*entity.Department, error) {
	if err := authorize(s.gate, p, access.ActionViewLookups); err != nil {
		return nil, err
	}
	depts, err := s.deptRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	return depts, nil
}

func (s *lookupServiceImpl) Roles(ctx context.Context, p *entity.Principal) ([]*entity.Role, error) {
	if err := authorize(s.gate, p, access.ActionViewLookups); err != nil {
		return nil, err
	}
	roles, err := s.roleRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	return roles, nil
}
