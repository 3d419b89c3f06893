package workflow

import (
	"errors"

	"github.com/garyjia/payment-requests/internal/domain/apperr"
)

var (
	// ErrInvalidTransition is returned when a state transition is not allowed
	ErrInvalidTransition = apperr.ErrInvalidTransition

	// ErrGuardFailed is returned when a guard condition fails
	ErrGuardFailed = errors.New("guard condition failed")
)
