package entity

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"
)

// Role names with special meaning to the permission gate
const (
	RoleCEO            = "CEO"
	RoleFinanceManager = "Finance Manager"
	RoleFinanceOfficer = "Finance Officer"
	RoleHR             = "HR"
	RoleRequestor      = "Requestor"
)

// Capability is a named boolean right a role may hold
type Capability string

const (
	CanViewAllDepartmentData Capability = "can_view_all_department_data"
	CanViewAllRequest        Capability = "can_view_all_request"
	CanViewDepartmentRequest Capability = "can_view_department_request"
	CanApproveRequest        Capability = "can_approve_request"
	CanRejectRequest         Capability = "can_reject_request"
	CanViewAllBudgets        Capability = "can_view_all_budgets"
	CanViewDepartmentBudgets Capability = "can_view_department_budgets"
	CanManageBudgets         Capability = "can_manage_budgets"
	CanCreateBudget          Capability = "can_create_budget"
	CanMarkAsPaid            Capability = "can_mark_as_paid"
	CanCreateRequest         Capability = "can_create_request"
	CanUploadDocuments       Capability = "can_upload_documents"
	CanCreateUser            Capability = "can_create_user"
	CanViewAuditLogs         Capability = "can_view_audit_logs"
	CanManageRoles           Capability = "can_manage_roles"
)

var knownCapabilities = map[Capability]bool{
	CanViewAllDepartmentData: true,
	CanViewAllRequest:        true,
	CanViewDepartmentRequest: true,
	CanApproveRequest:        true,
	CanRejectRequest:         true,
	CanViewAllBudgets:        true,
	CanViewDepartmentBudgets: true,
	CanManageBudgets:         true,
	CanCreateBudget:          true,
	CanMarkAsPaid:            true,
	CanCreateRequest:         true,
	CanUploadDocuments:       true,
	CanCreateUser:            true,
	CanViewAuditLogs:         true,
	CanManageRoles:           true,
}

// IsValid returns true if the capability belongs to the closed set
func (c Capability) IsValid() bool {
	return knownCapabilities[c]
}

// String returns the string representation of the capability
func (c Capability) String() string {
	return string(c)
}

// Capabilities is the set of capabilities granted to a role.
// Only granted capabilities are kept; absent means false.
type Capabilities map[Capability]bool

// ParseCapabilities validates a raw permission map. Unknown keys are rejected
// so typos surface when the role is defined, not when a check silently fails.
func ParseCapabilities(raw map[string]bool) (Capabilities, error) {
	caps := make(Capabilities, len(raw))
	for name, granted := range raw {
		c := Capability(name)
		if !c.IsValid() {
			return nil, fmt.Errorf("unknown capability %q", name)
		}
		if granted {
			caps[c] = true
		}
	}
	return caps, nil
}

// Has reports whether the capability is granted
func (c Capabilities) Has(capability Capability) bool {
	return c[capability]
}

// List returns granted capabilities in sorted order
func (c Capabilities) List() []Capability {
	granted := lo.Filter(lo.Keys(map[Capability]bool(c)), func(k Capability, _ int) bool { return c[k] })
	sort.Slice(granted, func(i, j int) bool { return granted[i] < granted[j] })
	return granted
}

// Raw converts the set back to a plain map for persistence
func (c Capabilities) Raw() map[string]bool {
	return lo.MapEntries(c, func(k Capability, v bool) (string, bool) {
		return string(k), v
	})
}

// Role is a named set of capabilities
type Role struct {
	ID           int64        `json:"id"`
	Name         string       `json:"name"`
	Capabilities Capabilities `json:"permissions"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// NewRole defines a role, validating its capability map
func NewRole(name string, raw map[string]bool) (*Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("role name is required")
	}
	caps, err := ParseCapabilities(raw)
	if err != nil {
		return nil, fmt.Errorf("role %s: %w", name, err)
	}
	return &Role{Name: name, Capabilities: caps}, nil
}

// IsUniversal reports whether the role is the universal-override role
func (r *Role) IsUniversal() bool {
	return r != nil && r.Name == RoleCEO
}

// Can reports whether the role grants the capability. The universal role
// grants every capability regardless of its explicit set.
func (r *Role) Can(capability Capability) bool {
	if r == nil {
		return false
	}
	if r.IsUniversal() {
		return true
	}
	return r.Capabilities.Has(capability)
}
