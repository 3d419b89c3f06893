package entity

import (
	"github.com/shopspring/decimal"

	"github.com/garyjia/payment-requests/internal/domain/apperr"
)

// moneyScale is the number of fractional digits kept for amounts
const moneyScale = 2

// MaxAmount is the largest amount a request or budget may carry (DECIMAL(15,2)).
// Sums of many such amounts in cents still fit in an int64.
var MaxAmount = decimal.RequireFromString("9999999999999.99")

// ToCents converts an amount to integer minor units for storage. Amounts
// that do not fit in an int64 fail instead of wrapping.
func ToCents(d decimal.Decimal) (int64, error) {
	cents := d.Shift(moneyScale).Round(0).BigInt()
	if !cents.IsInt64() {
		return 0, apperr.Validation("amount %s is out of range", d.String())
	}
	return cents.Int64(), nil
}

// FromCents converts stored minor units back to an amount
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -moneyScale)
}

// IsMoney reports whether d is representable with two fractional digits
func IsMoney(d decimal.Decimal) bool {
	return d.Equal(d.Round(moneyScale))
}

// WithinLimit reports whether |d| does not exceed MaxAmount
func WithinLimit(d decimal.Decimal) bool {
	return d.Abs().LessThanOrEqual(MaxAmount)
}
