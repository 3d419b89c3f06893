package workflow

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/garyjia/payment-requests/internal/domain/apperr"
	"github.com/garyjia/payment-requests/internal/domain/entity"
	"github.com/garyjia/payment-requests/pkg/utils"
)

// RequestInput carries the editable fields of a payment request
type RequestInput struct {
	DepartmentID     int64                 `json:"department_id" validate:"required,gt=0"`
	ProjectID        *int64                `json:"project_id,omitempty" validate:"omitempty,gt=0"`
	Title            string                `json:"title" validate:"required,max=255"`
	Description      string                `json:"description"`
	Amount           decimal.Decimal       `json:"amount"`
	VendorName       string                `json:"vendor_name" validate:"required,max=255"`
	VendorDetails    *entity.VendorDetails `json:"vendor_details,omitempty"`
	ExpenseCategory  string                `json:"expense_category" validate:"required,max=100"`
	InvoiceReference string                `json:"invoice_reference,omitempty" validate:"max=512"`
}

func (in *RequestInput) normalize() {
	in.Title = utils.SanitizeString(in.Title)
	in.VendorName = utils.SanitizeString(in.VendorName)
	in.ExpenseCategory = utils.SanitizeString(in.ExpenseCategory)
	in.Description = strings.TrimSpace(in.Description)
	in.InvoiceReference = strings.TrimSpace(in.InvoiceReference)
}

func (in RequestInput) validate(v *utils.Validator) error {
	if err := v.Struct(in); err != nil {
		return apperr.Validation("%v", err)
	}
	if !in.Amount.IsPositive() {
		return apperr.Validation("amount: must be greater than 0")
	}
	if !entity.IsMoney(in.Amount) {
		return apperr.Validation("amount: at most two decimal places")
	}
	if !entity.WithinLimit(in.Amount) {
		return apperr.Validation("amount: must not exceed %s", entity.MaxAmount.StringFixed(2))
	}
	return nil
}

func (in RequestInput) applyTo(req *entity.PaymentRequest) {
	req.DepartmentID = in.DepartmentID
	req.ProjectID = in.ProjectID
	req.Title = in.Title
	req.Description = in.Description
	req.Amount = in.Amount
	req.VendorName = in.VendorName
	req.VendorDetails = in.VendorDetails
	req.ExpenseCategory = in.ExpenseCategory
	req.InvoiceReference = in.InvoiceReference
}

// normalizeReason trims a rejection reason and enforces its bounds
func normalizeReason(reason string) (string, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return "", apperr.Validation("rejection_reason: is required")
	}
	if len([]rune(reason)) > entity.MaxRejectionReasonLength {
		return "", apperr.Validation("rejection_reason: must be at most %d characters", entity.MaxRejectionReasonLength)
	}
	return reason, nil
}
