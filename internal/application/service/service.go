package service

import (
	"fmt"

	"github.com/garyjia/payment-requests/internal/domain/access"
	"github.com/garyjia/payment-requests/internal/domain/apperr"
	"github.com/garyjia/payment-requests/internal/domain/entity"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// authorize maps a gate decision onto the error taxonomy
func authorize(gate *access.Gate, p *entity.Principal, action access.Action) error {
	if p == nil {
		return apperr.ErrUnauthenticated
	}
	if !gate.Authorize(p, action) {
		return fmt.Errorf("%w: %s", apperr.ErrForbidden, action)
	}
	return nil
}
