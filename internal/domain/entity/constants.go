package entity

// RequestStatus is the lifecycle status of a PaymentRequest
type RequestStatus string

// Status constants for PaymentRequest
const (
	StatusDraft    RequestStatus = "draft"
	StatusPending  RequestStatus = "pending"
	StatusApproved RequestStatus = "approved"
	StatusRejected RequestStatus = "rejected"
	StatusPaid     RequestStatus = "paid"
)

// AllRequestStatuses lists statuses in lifecycle order
var AllRequestStatuses = []RequestStatus{
	StatusDraft,
	StatusPending,
	StatusApproved,
	StatusRejected,
	StatusPaid,
}

// IsValid returns true if the status is a known request status
func (s RequestStatus) IsValid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusApproved, StatusRejected, StatusPaid:
		return true
	default:
		return false
	}
}

// BudgetStatus is the status of a Budget
type BudgetStatus string

// Status constants for Budget
const (
	BudgetStatusPending  BudgetStatus = "Pending"
	BudgetStatusActive   BudgetStatus = "Active"
	BudgetStatusArchived BudgetStatus = "Archived"
)

// IsValid returns true if the status is a known budget status
func (s BudgetStatus) IsValid() bool {
	switch s {
	case BudgetStatusPending, BudgetStatusActive, BudgetStatusArchived:
		return true
	default:
		return false
	}
}

// Project status constants
const (
	ProjectStatusActive    = "Active"
	ProjectStatusCompleted = "Completed"
)

// Audit subject types
const (
	SubjectPaymentRequest = "payment_request"
	SubjectBudget         = "budget"
)

// Audit action constants
const (
	AuditActionCreatedDraft          = "created_draft"
	AuditActionUpdatedDraft          = "updated_draft"
	AuditActionSubmitted             = "submitted"
	AuditActionApproved              = "approved"
	AuditActionRejectedAutoBudget    = "rejected_auto_budget"
	AuditActionRejectedNoBudget      = "rejected_no_budget"
	AuditActionRejected              = "rejected"
	AuditActionMarkedAsPaid          = "marked_as_paid"
	AuditActionPaymentRejectedBudget = "payment_rejected_budget"
	AuditActionBudgetApproved        = "budget_approved"
	AuditActionBudgetArchived        = "budget_archived"
)

// Field limits
const (
	MaxTitleLength           = 255
	MaxVendorNameLength      = 255
	MaxRejectionReasonLength = 500
)
