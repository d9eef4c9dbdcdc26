// Package nav implements the share (NAV) arithmetic for a pooled fund.
//
// A pool issues shares the way a mutual fund or LP token does:
//   - NAV per share = totalPoolValue / totalShares
//   - a deposit buys amount / NAV shares, priced before its own capital lands
//   - a participant's claim = shares × NAV, their allocation = shares / totalShares
//
// Every function is pure. The pool value is always supplied by the caller
// from an external pricing source; nothing here reads prices or storage.
//
// All values use shopspring/decimal, never float64.
package nav

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrNonPositiveNAV is returned when shares are requested at a NAV <= 0.
	ErrNonPositiveNAV = errors.New("nav: price per share must be positive")

	// Scale is the number of fractional digits kept on every division.
	Scale int32 = 18

	// DisplayScale is the rounding used for values shown on leaderboards
	// and dashboards.
	DisplayScale int32 = 2

	// One is the NAV pegged at pool bootstrap.
	One = decimal.NewFromInt(1)

	hundred = decimal.NewFromInt(100)
)

// NAV returns totalPoolValue / totalShares.
//
// A degenerate pool (no shares or no value) reports 1.0 rather than dividing
// by zero or advertising a misleading price before any capital exists.
func NAV(totalPoolValue, totalShares decimal.Decimal) decimal.Decimal {
	if totalShares.Sign() <= 0 || totalPoolValue.Sign() <= 0 {
		return One
	}
	return totalPoolValue.DivRound(totalShares, Scale)
}

// PreDepositValue strips the deposit itself from a pool value that already
// includes it.
func PreDepositValue(totalPoolValueIncludingDeposit, amount decimal.Decimal) decimal.Decimal {
	return totalPoolValueIncludingDeposit.Sub(amount)
}

// IssuanceNAV is the price at which a deposit of amount buys shares:
//
//	nav = (totalPoolValueIncludingDeposit - amount) / totalShares
//
// Shares are issued at the NAV measured before the deposit's capital is
// added; pricing at the post-deposit NAV would under-issue and dilute the
// depositor. When the pre-deposit value is not positive (the first capital
// inflow, or a pool value that does not yet reflect earlier deposits) or no
// shares exist, the deposit is priced at 1.0.
func IssuanceNAV(totalPoolValueIncludingDeposit, amount, totalShares decimal.Decimal) decimal.Decimal {
	pre := PreDepositValue(totalPoolValueIncludingDeposit, amount)
	if pre.Sign() <= 0 || totalShares.Sign() <= 0 {
		return One
	}
	return pre.DivRound(totalShares, Scale)
}

// SharesFor returns amount / nav.
func SharesFor(amount, nav decimal.Decimal) (decimal.Decimal, error) {
	if nav.Sign() <= 0 {
		return decimal.Zero, ErrNonPositiveNAV
	}
	return amount.DivRound(nav, Scale), nil
}

// Allocation returns a holder's percentage of the pool:
//
//	allocation = shares × 100 / totalShares
//
// It is zero when the pool has no shares.
func Allocation(shares, totalShares decimal.Decimal) decimal.Decimal {
	if totalShares.Sign() <= 0 {
		return decimal.Zero
	}
	return shares.Mul(hundred).DivRound(totalShares, Scale)
}

// Value returns the mark-to-market value of shares at nav.
func Value(shares, nav decimal.Decimal) decimal.Decimal {
	return shares.Mul(nav)
}

// Split returns a holder's part of a pool-level quantity:
//
//	part = amount × pct / 100
//
// Remainders from splitting are not reconciled across holders.
func Split(amount, pct decimal.Decimal) decimal.Decimal {
	return amount.Mul(pct).DivRound(hundred, Scale)
}

// PnLPercent returns (value / deposited - 1) × 100, or zero when nothing
// has been deposited.
func PnLPercent(value, deposited decimal.Decimal) decimal.Decimal {
	if deposited.Sign() <= 0 {
		return decimal.Zero
	}
	return value.DivRound(deposited, Scale).Sub(One).Mul(hundred)
}

// Display rounds a value for presentation.
func Display(v decimal.Decimal) decimal.Decimal {
	return v.Round(DisplayScale)
}
