package limits

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func TestCheckDeposit_WithinLimits(t *testing.T) {
	limiter := NewDepositLimiter(d(1000), d(5000))

	if err := limiter.CheckDeposit(d(100), d(0)); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestCheckDeposit_PerDepositExceeded(t *testing.T) {
	limiter := NewDepositLimiter(d(1000), d(5000))

	if err := limiter.CheckDeposit(d(1000.01), d(0)); err != ErrDepositLimitExceeded {
		t.Errorf("expected ErrDepositLimitExceeded, got %v", err)
	}
}

func TestCheckDeposit_AtLimitAllowed(t *testing.T) {
	limiter := NewDepositLimiter(d(1000), d(5000))

	// Exactly at both ceilings.
	if err := limiter.CheckDeposit(d(1000), d(4000)); err != nil {
		t.Errorf("deposit at limit should pass, got %v", err)
	}
}

func TestCheckDeposit_PerUserExceeded(t *testing.T) {
	limiter := NewDepositLimiter(d(1000), d(5000))

	// Existing 4500 + new 600 = 5100 > 5000.
	if err := limiter.CheckDeposit(d(600), d(4500)); err != ErrUserLimitExceeded {
		t.Errorf("expected ErrUserLimitExceeded, got %v", err)
	}
}

func TestCheckDeposit_ZeroDisables(t *testing.T) {
	limiter := NewDepositLimiter(decimal.Zero, decimal.Zero)

	if err := limiter.CheckDeposit(d(1e9), d(1e12)); err != nil {
		t.Errorf("zero limits should disable checks, got %v", err)
	}
}

func TestCheckDeposit_NegativeTreatedAsZero(t *testing.T) {
	limiter := NewDepositLimiter(d(-1), d(-1))

	if !limiter.MaxPerDeposit.IsZero() || !limiter.MaxPerUser.IsZero() {
		t.Errorf("negative limits should clamp to zero, got %s/%s",
			limiter.MaxPerDeposit, limiter.MaxPerUser)
	}
}

func TestCheckDeposit_NilLimiter(t *testing.T) {
	var limiter *DepositLimiter
	if err := limiter.CheckDeposit(d(1e9), d(0)); err != nil {
		t.Errorf("nil limiter should accept, got %v", err)
	}
}
