package entity

import "time"

// User is a provisioned account. Credentials are issued elsewhere.
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	RoleID       *int64    `json:"role_id,omitempty"`
	DepartmentID int64     `json:"department_id"`
	LarkOpenID   string    `json:"lark_open_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Principal is the authenticated actor attempting an action.
// Its effective rights are entirely determined by Role.
type Principal struct {
	UserID       int64
	Role         *Role
	DepartmentID int64
}

// NewPrincipal builds a principal from a user and its (possibly nil) role
func NewPrincipal(user *User, role *Role) *Principal {
	return &Principal{
		UserID:       user.ID,
		Role:         role,
		DepartmentID: user.DepartmentID,
	}
}

// HasRole reports whether a role is assigned
func (p *Principal) HasRole() bool {
	return p != nil && p.Role != nil
}

// RoleName returns the role name or empty string
func (p *Principal) RoleName() string {
	if !p.HasRole() {
		return ""
	}
	return p.Role.Name
}

// IsUniversal reports whether the principal holds the override role
func (p *Principal) IsUniversal() bool {
	return p.HasRole() && p.Role.IsUniversal()
}
