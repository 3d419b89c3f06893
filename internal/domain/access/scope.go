package access

import (
	"fmt"

	"github.com/garyjia/payment-requests/internal/domain/entity"
)

// ScopeKind enumerates how much department-scoped data a principal may see
type ScopeKind int

const (
	// ScopeNone admits nothing
	ScopeNone ScopeKind = iota
	// ScopeDepartment admits rows of a single department
	ScopeDepartment
	// ScopeAll admits every row
	ScopeAll
)

// Scope is the row filter applied to every read of a department-scoped entity
// (budgets, projects, payment requests). The zero value admits nothing.
type Scope struct {
	Kind         ScopeKind
	DepartmentID int64
}

// ScopeFor derives the read scope of a principal from its role and department
func ScopeFor(p *entity.Principal) Scope {
	if !p.HasRole() {
		return Scope{Kind: ScopeNone}
	}
	if p.Role.Can(entity.CanViewAllDepartmentData) {
		return Scope{Kind: ScopeAll}
	}
	return Scope{Kind: ScopeDepartment, DepartmentID: p.DepartmentID}
}

// All returns a scope admitting every row. Used by system processes only.
func All() Scope {
	return Scope{Kind: ScopeAll}
}

// Admits reports whether a row belonging to departmentID is visible
func (s Scope) Admits(departmentID int64) bool {
	switch s.Kind {
	case ScopeAll:
		return true
	case ScopeDepartment:
		return s.DepartmentID == departmentID
	default:
		return false
	}
}

// IsNone reports whether the scope admits nothing
func (s Scope) IsNone() bool {
	return s.Kind != ScopeAll && s.Kind != ScopeDepartment
}

// String returns a readable representation for logs
func (s Scope) String() string {
	switch s.Kind {
	case ScopeAll:
		return "all"
	case ScopeDepartment:
		return fmt.Sprintf("department:%d", s.DepartmentID)
	default:
		return "none"
	}
}
