package access

import (
	"github.com/samber/lo"

	"github.com/garyjia/payment-requests/internal/domain/entity"
)

// Action names a class of operation guarded by the gate
type Action string

const (
	ActionListRequests   Action = "list_requests"
	ActionViewRequest    Action = "view_request"
	ActionCreateRequest  Action = "create_request"
	ActionUpdateDraft    Action = "update_draft"
	ActionSubmitRequest  Action = "submit_request"
	ActionApproveRequest Action = "approve_request"
	ActionRejectRequest  Action = "reject_request"
	ActionMarkPaid       Action = "mark_paid"
	ActionManageBudgets  Action = "manage_budgets"
	ActionApproveBudget  Action = "approve_budget"
	ActionManageUsers    Action = "manage_users"
	ActionManageProjects Action = "manage_projects"
	ActionViewAuditLog   Action = "view_audit_log"
	ActionViewDashboard  Action = "view_dashboard"
	ActionExportRequests Action = "export_requests"
	ActionViewLookups    Action = "view_lookups"
	ActionComment        Action = "comment_request"
	ActionViewInbox      Action = "view_inbox"
)

// Requirement declares what a principal needs for an action.
// Roles and Capabilities are OR-ed: matching either is sufficient.
type Requirement struct {
	AnyRole      bool
	Roles        []string
	Capabilities []entity.Capability
}

// Satisfied reports whether the role meets the requirement, ignoring the override
func (r Requirement) Satisfied(role *entity.Role) bool {
	if role == nil {
		return false
	}
	if r.AnyRole {
		return true
	}
	if lo.Contains(r.Roles, role.Name) {
		return true
	}
	return lo.SomeBy(r.Capabilities, role.Capabilities.Has)
}

// DefaultRequirements is the fixed action table
func DefaultRequirements() map[Action]Requirement {
	return map[Action]Requirement{
		ActionListRequests:   {AnyRole: true},
		ActionViewRequest:    {AnyRole: true},
		ActionCreateRequest:  {AnyRole: true},
		ActionUpdateDraft:    {AnyRole: true},
		ActionSubmitRequest:  {AnyRole: true},
		ActionApproveRequest: {Roles: []string{entity.RoleCEO}},
		ActionRejectRequest:  {Roles: []string{entity.RoleCEO}},
		ActionMarkPaid:       {Roles: []string{entity.RoleFinanceManager}},
		ActionManageBudgets:  {Roles: []string{entity.RoleFinanceManager, entity.RoleCEO}},
		ActionApproveBudget:  {Roles: []string{entity.RoleCEO}},
		ActionManageUsers:    {Roles: []string{entity.RoleHR, entity.RoleCEO}},
		ActionManageProjects: {Roles: []string{entity.RoleFinanceManager, entity.RoleCEO}},
		ActionViewAuditLog:   {Capabilities: []entity.Capability{entity.CanViewAuditLogs}},
		ActionViewDashboard:  {AnyRole: true},
		ActionExportRequests: {AnyRole: true},
		ActionViewLookups:    {AnyRole: true},
		ActionComment:        {AnyRole: true},
		ActionViewInbox:      {AnyRole: true},
	}
}

// Gate answers whether a principal may perform a class of action at all.
// It has no side effects and does not consider row visibility.
type Gate struct {
	requirements map[Action]Requirement
}

// NewGate creates a gate over the default requirement table
func NewGate() *Gate {
	return &Gate{requirements: DefaultRequirements()}
}

// Authorize returns true if the principal may perform the action.
// Unknown actions are denied to everyone but the override role.
func (g *Gate) Authorize(p *entity.Principal, action Action) bool {
	if p.IsUniversal() {
		return true
	}
	req, ok := g.requirements[action]
	if !ok || !p.HasRole() {
		return false
	}
	return req.Satisfied(p.Role)
}

// Requirement returns the requirement registered for an action
func (g *Gate) Requirement(action Action) (Requirement, bool) {
	req, ok := g.requirements[action]
	return req, ok
}

// Actions returns every action known to the gate
func (g *Gate) Actions() []Action {
	return lo.Keys(g.requirements)
}
