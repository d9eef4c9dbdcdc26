// Package model defines the core domain types shared across the pool engine.
// All monetary values, share counts and percentages use shopspring/decimal,
// never float64.
package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Trade directions.
const (
	DirectionBuy  = "buy"
	DirectionSell = "sell"
)

// DepositStatusCompleted is the only status the engine writes today.
const DepositStatusCompleted = "completed"

// PoolState is the singleton share counter for the whole pool.
// TotalShares only grows (initialization and deposits) and is never negative.
type PoolState struct {
	TotalShares   decimal.Decimal `json:"total_shares" db:"total_shares"`
	InitializedAt *time.Time      `json:"initialized_at,omitempty" db:"initialized_at"`
}

// Initialized reports whether shares have been issued for the pool.
func (p PoolState) Initialized() bool {
	return p.TotalShares.IsPositive()
}

// User is a pool participant keyed by wallet address.
// Allocation is a cached projection of Shares / TotalShares; Shares is
// authoritative.
type User struct {
	WalletAddress  string                     `json:"wallet_address" db:"wallet_address"`
	Shares         decimal.Decimal            `json:"shares" db:"shares"`
	TotalDeposited decimal.Decimal            `json:"total_deposited" db:"total_deposited"`
	TotalWithdrawn decimal.Decimal            `json:"total_withdrawn" db:"total_withdrawn"`
	Allocation     decimal.Decimal            `json:"allocation" db:"allocation"` // percent, 0..100
	Holdings       map[string]decimal.Decimal `json:"holdings"`                   // asset → signed qty
	JoinedAt       time.Time                  `json:"joined_at" db:"joined_at"`
	LastLoginAt    time.Time                  `json:"last_login_at" db:"last_login_at"`
	IsActive       bool                       `json:"is_active" db:"is_active"`
}

// Deposit is an immutable record of share issuance against an external
// transfer. TxRef is unique across the ledger.
type Deposit struct {
	ID        string          `json:"id" db:"id"`
	UserID    string          `json:"user_id" db:"user_id"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
	Currency  string          `json:"currency" db:"currency"`
	TxRef     string          `json:"tx_ref" db:"tx_ref"`
	Shares    decimal.Decimal `json:"shares" db:"shares"` // shares issued
	NAV       decimal.Decimal `json:"nav" db:"nav"`       // NAV at issuance
	Timestamp time.Time       `json:"timestamp" db:"timestamp"`
	Status    string          `json:"status" db:"status"`
}

// Trade is an immutable record of a pool-level trade together with the
// allocation snapshot used to distribute it.
type Trade struct {
	ID              string                     `json:"id" db:"id"`
	Asset           string                     `json:"asset" db:"asset"`
	Direction       string                     `json:"direction" db:"direction"` // "buy" or "sell"
	Amount          decimal.Decimal            `json:"amount" db:"amount"`
	Price           decimal.Decimal            `json:"price" db:"price"`
	Timestamp       time.Time                  `json:"timestamp" db:"timestamp"`
	UserAllocations map[string]decimal.Decimal `json:"user_allocations"`
}

// Withdrawal is a recorded payout event. It does not burn shares.
type Withdrawal struct {
	ID        string          `json:"id" db:"id"`
	UserID    string          `json:"user_id" db:"user_id"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
	Currency  string          `json:"currency" db:"currency"`
	Timestamp time.Time       `json:"timestamp" db:"timestamp"`
}

// TraderState is the automation blob shared across operator devices.
// The engine stores it but never interprets the values.
type TraderState map[string]json.RawMessage

// Counts holds raw record counts per collection.
type Counts struct {
	Users       int `json:"users"`
	Deposits    int `json:"deposits"`
	Trades      int `json:"trades"`
	Withdrawals int `json:"withdrawals"`
	PoolState   int `json:"pool_state"`
	TraderState int `json:"trader_state"`
}

// Position is a user's mark-to-market claim on the pool.
type Position struct {
	WalletAddress  string          `json:"wallet_address"`
	Shares         decimal.Decimal `json:"shares"`
	NAV            decimal.Decimal `json:"nav"`
	CurrentValue   decimal.Decimal `json:"current_value"`
	Allocation     decimal.Decimal `json:"allocation"`
	TotalDeposited decimal.Decimal `json:"total_deposited"`
}

// Profile is a user record as presented to clients, with its role.
type Profile struct {
	User
	Role string `json:"role"` // "admin" or "user"
}

// LeaderboardEntry is one ranked row of the public leaderboard.
type LeaderboardEntry struct {
	Rank              int             `json:"rank"`
	WalletAddress     string          `json:"wallet_address"`
	WalletShort       string          `json:"wallet_short"`
	JoinedAt          time.Time       `json:"joined_at"`
	LastDeposit       *time.Time      `json:"last_deposit,omitempty"`
	LastDepositAmount decimal.Decimal `json:"last_deposit_amount"`
	TotalDeposited    decimal.Decimal `json:"total_deposited"`
	CurrentValue      decimal.Decimal `json:"current_value"`
	Allocation        decimal.Decimal `json:"allocation"`
	Shares            decimal.Decimal `json:"shares"`
}

// AdminStats aggregates pool-wide figures for the operator dashboard.
type AdminStats struct {
	UserCount          int             `json:"user_count"`
	TotalUserDeposited decimal.Decimal `json:"total_user_deposited"`
	TotalUserValue     decimal.Decimal `json:"total_user_value"`
	PoolValue          decimal.Decimal `json:"pool_value"`
	NAV                decimal.Decimal `json:"nav"`
	TotalShares        decimal.Decimal `json:"total_shares"`
	TradeCount         int             `json:"trade_count"`
	DepositCount       int             `json:"deposit_count"`
	WithdrawalCount    int             `json:"withdrawal_count"`
	LastDeposit        *time.Time      `json:"last_deposit,omitempty"`
	LastDepositWallet  string          `json:"last_deposit_wallet,omitempty"`
	LastDepositAmount  decimal.Decimal `json:"last_deposit_amount"`
	LastUserJoined     *time.Time      `json:"last_user_joined,omitempty"`
	PnLPercent         decimal.Decimal `json:"pnl_percent"`
	DBCounts           Counts          `json:"db_counts"`
}

// Transaction kinds in the history feed.
const (
	TxKindDeposit    = "deposit"
	TxKindWithdrawal = "withdrawal"
)

// Transaction is one row of the merged history feed. Kind is "deposit",
// "withdrawal", "buy" or "sell".
type Transaction struct {
	Kind        string           `json:"type"`
	Wallet      string           `json:"wallet,omitempty"`
	WalletShort string           `json:"wallet_short,omitempty"`
	Asset       string           `json:"asset,omitempty"`
	Amount      decimal.Decimal  `json:"amount"`
	Currency    string           `json:"currency,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	TxRef       string           `json:"tx_ref,omitempty"`
	Shares      *decimal.Decimal `json:"shares,omitempty"`
	NAV         *decimal.Decimal `json:"nav,omitempty"`
	IsAdmin     bool             `json:"is_admin,omitempty"`
	Timestamp   time.Time        `json:"timestamp"`
}

// ShareAudit compares the pool counter with the sum of user shares.
type ShareAudit struct {
	TotalShares   decimal.Decimal `json:"total_shares"`
	UserShares    decimal.Decimal `json:"user_shares"`
	Unattributed  decimal.Decimal `json:"unattributed"` // TotalShares - UserShares
	AllocationSum decimal.Decimal `json:"allocation_sum"`
	ActiveHolders int             `json:"active_holders"`
	CheckedAt     time.Time       `json:"checked_at"`
}
