package payout

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestComputeDefaultRate(t *testing.T) {
	amount := decimal.RequireFromString("250.00")
	split := Compute(amount, DefaultPenaltyRate)

	if !split.Gross.Equal(amount) {
		t.Fatalf("gross = %s, want %s", split.Gross, amount)
	}
	if !split.Penalty.Equal(decimal.RequireFromString("25.00")) {
		t.Fatalf("penalty = %s, want 25.00", split.Penalty)
	}
	if !split.Net.Equal(decimal.RequireFromString("225.00")) {
		t.Fatalf("net = %s, want 225.00", split.Net)
	}
}

func TestComputePenaltyPlusNetEqualsGross(t *testing.T) {
	for _, raw := range []string{"0.01", "1", "99.99", "12345.67", "0.1"} {
		amount := decimal.RequireFromString(raw)
		split := Compute(amount, DefaultPenaltyRate)
		if !split.Penalty.Add(split.Net).Equal(split.Gross) {
			t.Fatalf("amount %s: penalty %s + net %s != gross %s", raw, split.Penalty, split.Net, split.Gross)
		}
	}
}

func TestComputeNoFloatDrift(t *testing.T) {
	// 0.1 * 0.1 would drift under float64; decimals keep it exact.
	split := Compute(decimal.RequireFromString("0.1"), DefaultPenaltyRate)
	if !split.Penalty.Equal(decimal.RequireFromString("0.01")) {
		t.Fatalf("penalty = %s, want 0.01", split.Penalty)
	}
}

func TestComputeClampsRate(t *testing.T) {
	amount := decimal.RequireFromString("100")

	split := Compute(amount, decimal.RequireFromString("-0.5"))
	if !split.Penalty.IsZero() || !split.Net.Equal(amount) {
		t.Fatalf("negative rate must clamp to zero penalty, got penalty=%s net=%s", split.Penalty, split.Net)
	}

	split = Compute(amount, decimal.RequireFromString("1.5"))
	if !split.Penalty.Equal(amount) || !split.Net.IsZero() {
		t.Fatalf("rate above one must clamp to full penalty, got penalty=%s net=%s", split.Penalty, split.Net)
	}
}
