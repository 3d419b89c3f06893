package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Budget is an allocation of money to a department and optionally a project.
// Invariant: AmountSpent <= AmountAllocated after every mutation.
type Budget struct {
	ID              int64           `json:"id"`
	DepartmentID    int64           `json:"department_id"`
	ProjectID       *int64          `json:"project_id,omitempty"`
	AmountAllocated decimal.Decimal `json:"amount_allocated"`
	AmountSpent     decimal.Decimal `json:"amount_spent"`
	Status          BudgetStatus    `json:"status"`
	PeriodStart     *time.Time      `json:"period_start,omitempty"`
	PeriodEnd       *time.Time      `json:"period_end,omitempty"`
	ApprovedBy      *int64          `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time      `json:"approved_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Available returns allocated minus spent
func (b *Budget) Available() decimal.Decimal {
	return b.AmountAllocated.Sub(b.AmountSpent)
}

// IsActive reports whether the budget backs approvals and payments
func (b *Budget) IsActive() bool {
	return b.Status == BudgetStatusActive
}

// Covers reports whether amount fits in what is still available
func (b *Budget) Covers(amount decimal.Decimal) bool {
	return amount.LessThanOrEqual(b.Available())
}

// Expired reports whether the validity period ended before now
func (b *Budget) Expired(now time.Time) bool {
	return b.PeriodEnd != nil && b.PeriodEnd.Before(now)
}
