// Package apperr defines the error taxonomy shared by every layer of the
// payment request service. Callers classify failures with errors.Is and
// errors.As; the HTTP layer maps each class to a status code.
package apperr

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrUnauthenticated is returned when no principal is attached to an action
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrForbidden is returned when the permission gate denies an action
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound is returned when a row is absent or outside the caller's scope
	ErrNotFound = errors.New("not found")

	// ErrValidation is returned for malformed input
	ErrValidation = errors.New("validation failed")

	// ErrInvalidTransition is returned when the current state does not permit the action
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrBudgetNotFound is returned when no active budget matches a request
	ErrBudgetNotFound = errors.New("no active budget found")

	// ErrBudgetExceeded is returned when approval would exceed the available budget
	ErrBudgetExceeded = errors.New("request exceeds available budget")

	// ErrInsufficientFunds is returned when a ledger debit cannot be covered
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// BudgetExceededError carries the amount that was still available when an
// approval was refused.
type BudgetExceededError struct {
	BudgetID  int64
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("%s: requested %s, available %s (budget %d)",
		ErrBudgetExceeded, e.Requested.StringFixed(2), e.Available.StringFixed(2), e.BudgetID)
}

// Is lets errors.Is(err, ErrBudgetExceeded) match
func (e *BudgetExceededError) Is(target error) bool {
	return target == ErrBudgetExceeded
}

// Validation wraps a formatted message with ErrValidation
func Validation(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFound wraps a subject description with ErrNotFound
func NotFound(subject string, id int64) error {
	return fmt.Errorf("%w: %s %d", ErrNotFound, subject, id)
}
