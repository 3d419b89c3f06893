// Package ledger is the sole place where budget money is consumed.
package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/garyjia/payment-requests/internal/application/port"
	"github.com/garyjia/payment-requests/internal/domain/apperr"
	"github.com/garyjia/payment-requests/internal/domain/entity"
	"github.com/garyjia/payment-requests/pkg/keylock"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type noopLogger struct{}

func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}

// Ledger serializes debits per budget
type Ledger struct {
	budgets port.BudgetRepository
	locks   *keylock.Locker
	logger  Logger
}

// Option configures the ledger
type Option func(*Ledger)

// WithLogger sets a logger for the ledger
func WithLogger(logger Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

// New creates a ledger over the budget store
func New(budgets port.BudgetRepository, opts ...Option) *Ledger {
	l := &Ledger{
		budgets: budgets,
		locks:   keylock.New(),
		logger:  noopLogger{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Debit consumes amount from the budget or fails with apperr.ErrInsufficientFunds,
// leaving the budget untouched. The check and the write are one conditional
// update, executed while holding the budget's lock. When ctx carries a
// transaction the debit joins it.
func (l *Ledger) Debit(ctx context.Context, budgetID int64, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperr.Validation("debit amount must be positive, got %s", amount)
	}
	if !entity.IsMoney(amount) {
		return apperr.Validation("debit amount %s has more than two decimal places", amount)
	}
	if !entity.WithinLimit(amount) {
		return apperr.Validation("debit amount %s exceeds %s", amount, entity.MaxAmount)
	}

	unlock := l.locks.Lock(budgetID)
	defer unlock()

	ok, err := l.budgets.Debit(ctx, budgetID, amount)
	if err != nil {
		l.logger.Error("Budget debit failed", "budget_id", budgetID, "amount", amount.String(), "error", err)
		return fmt.Errorf("failed to debit budget %d: %w", budgetID, err)
	}
	if !ok {
		l.logger.Info("Budget debit refused", "budget_id", budgetID, "amount", amount.String())
		return fmt.Errorf("%w: budget %d cannot cover %s", apperr.ErrInsufficientFunds, budgetID, amount)
	}

	l.logger.Info("Budget debited", "budget_id", budgetID, "amount", amount.String())
	return nil
}

// Available reports allocated minus spent
func (l *Ledger) Available(budget *entity.Budget) decimal.Decimal {
	return budget.Available()
}

// Check returns a BudgetExceededError when amount does not fit the budget.
// It reads a snapshot and does not reserve anything.
func (l *Ledger) Check(budget *entity.Budget, amount decimal.Decimal) error {
	if budget.Covers(amount) {
		return nil
	}
	return &apperr.BudgetExceededError{
		BudgetID:  budget.ID,
		Requested: amount,
		Available: budget.Available(),
	}
}
