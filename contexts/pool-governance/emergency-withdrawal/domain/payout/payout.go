// Package payout computes the penalty split for an executed emergency
// withdrawal. Pure arithmetic; actual fund movement belongs to the external
// executor.
package payout

import "github.com/shopspring/decimal"

// DefaultPenaltyRate is the fraction of the withdrawn amount retained by
// the pool when a request executes.
var DefaultPenaltyRate = decimal.NewFromFloat(0.10)

type Split struct {
	Gross   decimal.Decimal
	Penalty decimal.Decimal
	Net     decimal.Decimal
}

func Compute(amount decimal.Decimal, rate decimal.Decimal) Split {
	if rate.IsNegative() {
		rate = decimal.Zero
	}
	if rate.GreaterThan(decimal.NewFromInt(1)) {
		rate = decimal.NewFromInt(1)
	}
	penalty := amount.Mul(rate)
	return Split{
		Gross:   amount,
		Penalty: penalty,
		Net:     amount.Sub(penalty),
	}
}
