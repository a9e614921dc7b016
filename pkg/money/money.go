// Package money wraps fixed-point decimal arithmetic for escrow and
// installment amounts. All engine math goes through these helpers so rounding
// behavior stays in one place and no float64 ever touches a balance.
package money

import (
	"github.com/shopspring/decimal"
)

// LateFeeRate is the flat penalty applied to an overdue installment amount.
var LateFeeRate = decimal.NewFromFloat(0.02)

// Round2 rounds an amount to 2 decimal places using half-up rounding.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// IsPositive reports whether the amount is strictly greater than zero.
func IsPositive(d decimal.Decimal) bool {
	return d.GreaterThan(decimal.Zero)
}

// InstallmentAmount computes the per-installment amount for a plan:
// round2((total - down) / count). The remainder is not redistributed; every
// installment carries the same rounded amount.
func InstallmentAmount(total, down decimal.Decimal, count int) decimal.Decimal {
	return Round2(total.Sub(down).Div(decimal.NewFromInt(int64(count))))
}

// LateFee computes the penalty for an overdue installment amount.
func LateFee(amount decimal.Decimal) decimal.Decimal {
	return Round2(amount.Mul(LateFeeRate))
}

// Parse converts a string amount into a decimal, for DTO boundaries.
func Parse(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}
