// Package store defines the ledger persistence interface for the pool engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/flub/pool-engine/internal/model"
)

var (
	// ErrNotFound is returned when a user or record does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrDuplicateUser is returned when a wallet address is already registered.
	ErrDuplicateUser = errors.New("store: duplicate wallet address")

	// ErrDuplicateTxRef is returned when a deposit reuses an external
	// transaction reference.
	ErrDuplicateTxRef = errors.New("store: duplicate deposit transaction reference")
)

// UserFilter narrows ListUsers.
type UserFilter struct {
	ActiveOnly     bool
	PositiveShares bool
}

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer.
//
// Counter mutations are delta operations applied atomically by the
// implementation; callers never read-modify-write whole documents.
type Store interface {
	// --- Users ---

	// CreateUser inserts a new user. Returns ErrDuplicateUser if the wallet
	// is already registered.
	CreateUser(ctx context.Context, user *model.User) error

	// GetUser retrieves a user with its holdings.
	GetUser(ctx context.Context, wallet string) (*model.User, error)

	// TouchLogin sets the user's last login time.
	TouchLogin(ctx context.Context, wallet string, at time.Time) error

	// ListUsers returns users in registration order.
	ListUsers(ctx context.Context, filter UserFilter) ([]model.User, error)

	// IncrementUserPosition atomically adds to the user's shares and total
	// deposited amount and returns the updated user.
	IncrementUserPosition(ctx context.Context, wallet string, sharesDelta, depositedDelta decimal.Decimal) (*model.User, error)

	// IncrementUserWithdrawn atomically adds to the user's total withdrawn.
	IncrementUserWithdrawn(ctx context.Context, wallet string, amount decimal.Decimal) error

	// IncrementHolding atomically adds delta to holdings[asset]. Returns
	// ErrNotFound if the user does not exist.
	IncrementHolding(ctx context.Context, wallet, asset string, delta decimal.Decimal) error

	// SetAllocations writes cached allocation percentages.
	SetAllocations(ctx context.Context, allocations map[string]decimal.Decimal) error

	// --- Pool state ---

	// GetPoolState returns the pool counter; zero state when absent.
	GetPoolState(ctx context.Context) (model.PoolState, error)

	// InitializePool sets total shares to totalShares if, and only if, the
	// pool currently has no shares. Returns the resulting state and whether
	// this call performed the initialization.
	InitializePool(ctx context.Context, totalShares decimal.Decimal, at time.Time) (model.PoolState, bool, error)

	// IncrementPoolShares atomically adds delta to total shares and returns
	// the new total.
	IncrementPoolShares(ctx context.Context, delta decimal.Decimal, at time.Time) (decimal.Decimal, error)

	// --- Immutable ledgers ---

	// InsertDeposit appends a deposit. Returns ErrDuplicateTxRef when the
	// transaction reference was already recorded.
	InsertDeposit(ctx context.Context, deposit *model.Deposit) error

	// GetDepositByTxRef retrieves a deposit by external reference.
	GetDepositByTxRef(ctx context.Context, txRef string) (*model.Deposit, error)

	// ListDeposits returns deposits newest first; wallet "" lists all.
	ListDeposits(ctx context.Context, wallet string) ([]model.Deposit, error)

	// LatestDeposit returns the newest deposit; wallet "" considers all.
	// Returns ErrNotFound when there is none.
	LatestDeposit(ctx context.Context, wallet string) (*model.Deposit, error)

	// InsertTrade appends a trade together with its allocation snapshot.
	InsertTrade(ctx context.Context, trade *model.Trade) error

	// ListTrades returns all trades newest first.
	ListTrades(ctx context.Context) ([]model.Trade, error)

	// InsertWithdrawal appends a withdrawal record.
	InsertWithdrawal(ctx context.Context, withdrawal *model.Withdrawal) error

	// ListWithdrawals returns withdrawals newest first; wallet "" lists all.
	ListWithdrawals(ctx context.Context, wallet string) ([]model.Withdrawal, error)

	// Counts returns raw record counts per collection.
	Counts(ctx context.Context) (model.Counts, error)

	// --- Trader state ---

	// GetTraderState returns the stored blob. Returns ErrNotFound if it was
	// never saved.
	GetTraderState(ctx context.Context) (model.TraderState, error)

	// MergeTraderState upserts the given top-level keys.
	MergeTraderState(ctx context.Context, patch model.TraderState) error
}
