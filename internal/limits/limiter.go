// Package limits enforces operator-configured ceilings on deposits.
//
// Two independent limits apply to every deposit:
//   - MaxPerDeposit caps a single deposit amount
//   - MaxPerUser caps a participant's cumulative deposited amount
//
// A zero limit disables the check.
package limits

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrDepositLimitExceeded is returned when a single deposit is larger
	// than MaxPerDeposit.
	ErrDepositLimitExceeded = errors.New("limits: per-deposit limit exceeded")

	// ErrUserLimitExceeded is returned when a deposit would push a user's
	// cumulative deposited amount beyond MaxPerUser.
	ErrUserLimitExceeded = errors.New("limits: per-user deposit limit exceeded")
)

// DepositLimiter checks deposits against configured ceilings.
type DepositLimiter struct {
	// MaxPerDeposit is the largest accepted single deposit. Zero disables.
	MaxPerDeposit decimal.Decimal

	// MaxPerUser is the largest cumulative amount one wallet may deposit.
	// Zero disables.
	MaxPerUser decimal.Decimal
}

// NewDepositLimiter creates a limiter. Negative limits are treated as zero.
func NewDepositLimiter(maxPerDeposit, maxPerUser decimal.Decimal) *DepositLimiter {
	if maxPerDeposit.IsNegative() {
		maxPerDeposit = decimal.Zero
	}
	if maxPerUser.IsNegative() {
		maxPerUser = decimal.Zero
	}
	return &DepositLimiter{
		MaxPerDeposit: maxPerDeposit,
		MaxPerUser:    maxPerUser,
	}
}

// CheckDeposit validates a deposit of amount by a user who has already
// deposited alreadyDeposited. A nil limiter accepts everything.
func (l *DepositLimiter) CheckDeposit(amount, alreadyDeposited decimal.Decimal) error {
	if l == nil {
		return nil
	}

	// 1. Single-deposit ceiling.
	if l.MaxPerDeposit.IsPositive() && amount.GreaterThan(l.MaxPerDeposit) {
		return ErrDepositLimitExceeded
	}

	// 2. Cumulative ceiling.
	if l.MaxPerUser.IsPositive() && alreadyDeposited.Add(amount).GreaterThan(l.MaxPerUser) {
		return ErrUserLimitExceeded
	}

	return nil
}
