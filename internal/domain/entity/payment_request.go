package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// VendorDetails holds optional contact details of the payee vendor
type VendorDetails struct {
	Address       string `json:"address,omitempty" validate:"max=255"`
	ContactPerson string `json:"contact_person,omitempty" validate:"max=255"`
	Phone         string `json:"phone,omitempty" validate:"max=20"`
}

// PaymentRequest is a request to pay a vendor against a department budget.
// Approver, payee and rejector are annotations set only by their transition.
type PaymentRequest struct {
	ID               int64           `json:"id"`
	RequesterID      int64           `json:"requester_id"`
	DepartmentID     int64           `json:"department_id"`
	ProjectID        *int64          `json:"project_id,omitempty"`
	Title            string          `json:"title"`
	Description      string          `json:"description,omitempty"`
	Amount           decimal.Decimal `json:"amount"`
	VendorName       string          `json:"vendor_name"`
	VendorDetails    *VendorDetails  `json:"vendor_details,omitempty"`
	ExpenseCategory  string          `json:"expense_category"`
	InvoiceReference string          `json:"invoice_reference,omitempty"`
	Status           RequestStatus   `json:"status"`
	ApproverID       *int64          `json:"approver_id,omitempty"`
	PayeeID          *int64          `json:"payee_id,omitempty"`
	RejectorID       *int64          `json:"rejected_by_id,omitempty"`
	RejectionReason  string          `json:"rejection_reason,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	SubmittedAt      *time.Time      `json:"submitted_at,omitempty"`
	ApprovedAt       *time.Time      `json:"approved_at,omitempty"`
	RejectedAt       *time.Time      `json:"rejected_at,omitempty"`
	PaidAt           *time.Time      `json:"paid_at,omitempty"`
}

// IsOwnedBy reports whether the principal created the request
func (r *PaymentRequest) IsOwnedBy(p *Principal) bool {
	return p != nil && r.RequesterID == p.UserID
}

// IsTerminal reports whether no further transition is possible
func (r *PaymentRequest) IsTerminal() bool {
	return r.Status == StatusPaid || r.Status == StatusRejected
}

// RequestFilter narrows a request listing
type RequestFilter struct {
	Status       RequestStatus
	DepartmentID *int64
	Search       string
	Page         int
	PerPage      int
}

// Normalize applies paging defaults
func (f *RequestFilter) Normalize() {
	if f.PerPage <= 0 || f.PerPage > 100 {
		f.PerPage = 20
	}
	if f.Page <= 0 {
		f.Page = 1
	}
}

// Offset returns the row offset for the current page
func (f RequestFilter) Offset() int {
	return (f.Page - 1) * f.PerPage
}

// RequestPage is one page of a request listing
type RequestPage struct {
	Items   []*PaymentRequest `json:"data"`
	Total   int               `json:"total"`
	Page    int               `json:"current_page"`
	PerPage int               `json:"per_page"`
}
