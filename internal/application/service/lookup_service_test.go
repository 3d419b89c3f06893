package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/payment-requests/internal/domain/access"
	"github.com/garyjia/payment-requests/internal/domain/apperr"
	"github.com/garyjia/payment-requests/internal/domain/entity"
)

func TestLookupService(t *testing.T) {
	roles := &mockRoleRepo{roles: map[int64]*entity.Role{
		1: {ID: 1, Name: entity.RoleCEO},
		5: {ID: 5, Name: entity.RoleRequestor},
	}}
	svc := NewLookupService(testDepartments(), roles, access.NewGate())
	ctx := context.Background()

	requestor := principal(t, 3, entity.RoleRequestor, deptTech, nil)

	depts, err := svc.Departments(ctx, requestor)
	require.NoError(t, err)
	assert.Len(t, depts, 5)

	got, err := svc.Roles(ctx, requestor)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = svc.Departments(ctx, nil)
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
}
