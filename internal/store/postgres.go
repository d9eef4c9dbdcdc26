package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/flub/pool-engine/internal/model"
)

const (
	poolStateID   = "pool"
	traderStateID = "main"

	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// --- Users ---

func (s *PostgresStore) CreateUser(ctx context.Context, u *model.User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (wallet_address, shares, total_deposited, total_withdrawn, allocation,
		                    joined_at, last_login_at, is_active)
		 VALUES ($1, $2::NUMERIC, $3::NUMERIC, $4::NUMERIC, $5::NUMERIC, $6, $7, $8)`,
		u.WalletAddress,
		u.Shares.String(), u.TotalDeposited.String(), u.TotalWithdrawn.String(), u.Allocation.String(),
		u.JoinedAt, u.LastLoginAt, u.IsActive,
	)
	if pgCode(err) == pgUniqueViolation {
		return ErrDuplicateUser
	}
	return err
}

func (s *PostgresStore) GetUser(ctx context.Context, wallet string) (*model.User, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT wallet_address, shares::TEXT, total_deposited::TEXT, total_withdrawn::TEXT,
		        allocation::TEXT, joined_at, last_login_at, is_active
		 FROM users WHERE wallet_address = $1`, wallet)

	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", wallet, err)
	}

	holdings, err := s.holdings(ctx, wallet)
	if err != nil {
		return nil, err
	}
	u.Holdings = holdings[wallet]
	if u.Holdings == nil {
		u.Holdings = make(map[string]decimal.Decimal)
	}
	return u, nil
}

func (s *PostgresStore) TouchLogin(ctx context.Context, wallet string, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET last_login_at = $2 WHERE wallet_address = $1`, wallet, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListUsers(ctx context.Context, filter UserFilter) ([]model.User, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT wallet_address, shares::TEXT, total_deposited::TEXT, total_withdrawn::TEXT,
		        allocation::TEXT, joined_at, last_login_at, is_active
		 FROM users
		 WHERE ($1 = FALSE OR is_active)
		   AND ($2 = FALSE OR shares > 0)
		 ORDER BY seq`, filter.ActiveOnly, filter.PositiveShares)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	holdings, err := s.holdings(ctx, "")
	if err != nil {
		return nil, err
	}
	for i := range users {
		users[i].Holdings = holdings[users[i].WalletAddress]
		if users[i].Holdings == nil {
			users[i].Holdings = make(map[string]decimal.Decimal)
		}
	}
	return users, nil
}

func (s *PostgresStore) IncrementUserPosition(ctx context.Context, wallet string, sharesDelta, depositedDelta decimal.Decimal) (*model.User, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE users
		 SET shares = shares + $2::NUMERIC,
		     total_deposited = total_deposited + $3::NUMERIC
		 WHERE wallet_address = $1
		 RETURNING wallet_address, shares::TEXT, total_deposited::TEXT, total_withdrawn::TEXT,
		           allocation::TEXT, joined_at, last_login_at, is_active`,
		wallet, sharesDelta.String(), depositedDelta.String())

	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("increment position %s: %w", wallet, err)
	}
	u.Holdings = make(map[string]decimal.Decimal)
	return u, nil
}

func (s *PostgresStore) IncrementUserWithdrawn(ctx context.Context, wallet string, amount decimal.Decimal) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET total_withdrawn = total_withdrawn + $2::NUMERIC WHERE wallet_address = $1`,
		wallet, amount.String())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) IncrementHolding(ctx context.Context, wallet, asset string, delta decimal.Decimal) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO user_holdings (wallet_address, asset, quantity)
		 VALUES ($1, $2, $3::NUMERIC)
		 ON CONFLICT (wallet_address, asset)
		 DO UPDATE SET quantity = user_holdings.quantity + EXCLUDED.quantity`,
		wallet, asset, delta.String())
	if pgCode(err) == pgForeignKeyViolation {
		return ErrNotFound
	}
	return err
}

func (s *PostgresStore) SetAllocations(ctx context.Context, allocations map[string]decimal.Decimal) error {
	if len(allocations) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for wallet, pct := range allocations {
		batch.Queue(`UPDATE users SET allocation = $2::NUMERIC WHERE wallet_address = $1`,
			wallet, pct.String())
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range allocations {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("set allocations: %w", err)
		}
	}
	return nil
}

// --- Pool state ---

func (s *PostgresStore) GetPoolState(ctx context.Context) (model.PoolState, error) {
	var state model.PoolState
	var sharesS string

	err := s.pool.QueryRow(ctx,
		`SELECT total_shares::TEXT, initialized_at FROM pool_state WHERE id = $1`, poolStateID).
		Scan(&sharesS, &state.InitializedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.PoolState{}, nil
	}
	if err != nil {
		return model.PoolState{}, fmt.Errorf("get pool state: %w", err)
	}

	state.TotalShares, _ = decimal.NewFromString(sharesS)
	return state, nil
}

func (s *PostgresStore) InitializePool(ctx context.Context, totalShares decimal.Decimal, at time.Time) (model.PoolState, bool, error) {
	var state model.PoolState
	var sharesS string

	// The conditional upsert is the compare-and-set: a pool that already has
	// shares matches no row and returns nothing.
	err := s.pool.QueryRow(ctx,
		`INSERT INTO pool_state (id, total_shares, initialized_at)
		 VALUES ($1, $2::NUMERIC, $3)
		 ON CONFLICT (id) DO UPDATE
		 SET total_shares = EXCLUDED.total_shares, initialized_at = EXCLUDED.initialized_at
		 WHERE pool_state.total_shares <= 0
		 RETURNING total_shares::TEXT, initialized_at`,
		poolStateID, totalShares.String(), at).
		Scan(&sharesS, &state.InitializedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		current, err := s.GetPoolState(ctx)
		return current, false, err
	}
	if err != nil {
		return model.PoolState{}, false, fmt.Errorf("initialize pool: %w", err)
	}

	state.TotalShares, _ = decimal.NewFromString(sharesS)
	return state, true, nil
}

func (s *PostgresStore) IncrementPoolShares(ctx context.Context, delta decimal.Decimal, at time.Time) (decimal.Decimal, error) {
	var totalS string
	err := s.pool.QueryRow(ctx,
		`INSERT INTO pool_state (id, total_shares, initialized_at)
		 VALUES ($1, $2::NUMERIC, $3)
		 ON CONFLICT (id) DO UPDATE
		 SET total_shares = pool_state.total_shares + EXCLUDED.total_shares,
		     initialized_at = COALESCE(pool_state.initialized_at, EXCLUDED.initialized_at)
		 RETURNING total_shares::TEXT`,
		poolStateID, delta.String(), at).
		Scan(&totalS)
	if err != nil {
		return decimal.Zero, fmt.Errorf("increment pool shares: %w", err)
	}

	total, _ := decimal.NewFromString(totalS)
	return total, nil
}

// --- Immutable ledgers ---

func (s *PostgresStore) InsertDeposit(ctx context.Context, dep *model.Deposit) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO deposits (id, user_id, amount, currency, tx_ref, shares, nav, timestamp, status)
		 VALUES ($1, $2, $3::NUMERIC, $4, $5, $6::NUMERIC, $7::NUMERIC, $8, $9)`,
		dep.ID, dep.UserID, dep.Amount.String(), dep.Currency, dep.TxRef,
		dep.Shares.String(), dep.NAV.String(), dep.Timestamp, dep.Status,
	)
	if pgCode(err) == pgUniqueViolation {
		return ErrDuplicateTxRef
	}
	return err
}

func (s *PostgresStore) GetDepositByTxRef(ctx context.Context, txRef string) (*model.Deposit, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, user_id, amount::TEXT, currency, tx_ref, shares::TEXT, nav::TEXT, timestamp, status
		 FROM deposits WHERE tx_ref = $1`, txRef)

	dep, err := scanDeposit(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get deposit %s: %w", txRef, err)
	}
	return dep, nil
}

func (s *PostgresStore) ListDeposits(ctx context.Context, wallet string) ([]model.Deposit, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, amount::TEXT, currency, tx_ref, shares::TEXT, nav::TEXT, timestamp, status
		 FROM deposits
		 WHERE ($1 = '' OR user_id = $1)
		 ORDER BY timestamp DESC, seq DESC`, wallet)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deposits []model.Deposit
	for rows.Next() {
		dep, err := scanDeposit(rows)
		if err != nil {
			return nil, err
		}
		deposits = append(deposits, *dep)
	}
	return deposits, rows.Err()
}

func (s *PostgresStore) LatestDeposit(ctx context.Context, wallet string) (*model.Deposit, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, user_id, amount::TEXT, currency, tx_ref, shares::TEXT, nav::TEXT, timestamp, status
		 FROM deposits
		 WHERE ($1 = '' OR user_id = $1)
		 ORDER BY timestamp DESC, seq DESC
		 LIMIT 1`, wallet)

	dep, err := scanDeposit(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest deposit: %w", err)
	}
	return dep, nil
}

func (s *PostgresStore) InsertTrade(ctx context.Context, t *model.Trade) error {
	allocations, err := json.Marshal(t.UserAllocations)
	if err != nil {
		return fmt.Errorf("encode trade allocations: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO trades (id, asset, direction, amount, price, timestamp, user_allocations)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5::NUMERIC, $6, $7::JSONB)`,
		t.ID, t.Asset, t.Direction, t.Amount.String(), t.Price.String(), t.Timestamp,
		string(allocations),
	)
	return err
}

func (s *PostgresStore) ListTrades(ctx context.Context) ([]model.Trade, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, asset, direction, amount::TEXT, price::TEXT, timestamp, user_allocations::TEXT
		 FROM trades ORDER BY timestamp DESC, seq DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []model.Trade
	for rows.Next() {
		var t model.Trade
		var amountS, priceS, allocationsS string
		if err := rows.Scan(&t.ID, &t.Asset, &t.Direction, &amountS, &priceS,
			&t.Timestamp, &allocationsS); err != nil {
			return nil, err
		}
		t.Amount, _ = decimal.NewFromString(amountS)
		t.Price, _ = decimal.NewFromString(priceS)
		if err := json.Unmarshal([]byte(allocationsS), &t.UserAllocations); err != nil {
			return nil, fmt.Errorf("decode trade %s allocations: %w", t.ID, err)
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

func (s *PostgresStore) InsertWithdrawal(ctx context.Context, w *model.Withdrawal) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO withdrawals (id, user_id, amount, currency, timestamp)
		 VALUES ($1, $2, $3::NUMERIC, $4, $5)`,
		w.ID, w.UserID, w.Amount.String(), w.Currency, w.Timestamp,
	)
	return err
}

func (s *PostgresStore) ListWithdrawals(ctx context.Context, wallet string) ([]model.Withdrawal, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, amount::TEXT, currency, timestamp
		 FROM withdrawals
		 WHERE ($1 = '' OR user_id = $1)
		 ORDER BY timestamp DESC, seq DESC`, wallet)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var withdrawals []model.Withdrawal
	for rows.Next() {
		var w model.Withdrawal
		var amountS string
		if err := rows.Scan(&w.ID, &w.UserID, &amountS, &w.Currency, &w.Timestamp); err != nil {
			return nil, err
		}
		w.Amount, _ = decimal.NewFromString(amountS)
		withdrawals = append(withdrawals, w)
	}
	return withdrawals, rows.Err()
}

func (s *PostgresStore) Counts(ctx context.Context) (model.Counts, error) {
	var c model.Counts
	err := s.pool.QueryRow(ctx,
		`SELECT (SELECT COUNT(*) FROM users),
		        (SELECT COUNT(*) FROM deposits),
		        (SELECT COUNT(*) FROM trades),
		        (SELECT COUNT(*) FROM withdrawals),
		        (SELECT COUNT(*) FROM pool_state),
		        (SELECT COUNT(*) FROM trader_state)`).
		Scan(&c.Users, &c.Deposits, &c.Trades, &c.Withdrawals, &c.PoolState, &c.TraderState)
	if err != nil {
		return model.Counts{}, fmt.Errorf("count records: %w", err)
	}
	return c, nil
}

// --- Trader state ---

func (s *PostgresStore) GetTraderState(ctx context.Context) (model.TraderState, error) {
	var raw string
	err := s.pool.QueryRow(ctx,
		`SELECT state::TEXT FROM trader_state WHERE id = $1`, traderStateID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get trader state: %w", err)
	}

	var state model.TraderState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, fmt.Errorf("decode trader state: %w", err)
	}
	return state, nil
}

func (s *PostgresStore) MergeTraderState(ctx context.Context, patch model.TraderState) error {
	data, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("encode trader state: %w", err)
	}

	// JSONB || replaces matching top-level keys and keeps the rest.
	_, err = s.pool.Exec(ctx,
		`INSERT INTO trader_state (id, state, updated_at)
		 VALUES ($1, $2::JSONB, NOW())
		 ON CONFLICT (id) DO UPDATE
		 SET state = trader_state.state || EXCLUDED.state, updated_at = NOW()`,
		traderStateID, string(data))
	return err
}

// --- scan helpers ---

// pgxRow is satisfied by both pgx.Row and pgx.Rows.
type pgxRow interface {
	Scan(dest ...any) error
}

func scanUser(row pgxRow) (*model.User, error) {
	var u model.User
	var sharesS, depositedS, withdrawnS, allocationS string

	if err := row.Scan(&u.WalletAddress, &sharesS, &depositedS, &withdrawnS,
		&allocationS, &u.JoinedAt, &u.LastLoginAt, &u.IsActive); err != nil {
		return nil, err
	}

	u.Shares, _ = decimal.NewFromString(sharesS)
	u.TotalDeposited, _ = decimal.NewFromString(depositedS)
	u.TotalWithdrawn, _ = decimal.NewFromString(withdrawnS)
	u.Allocation, _ = decimal.NewFromString(allocationS)
	return &u, nil
}

func scanDeposit(row pgxRow) (*model.Deposit, error) {
	var dep model.Deposit
	var amountS, sharesS, navS string

	if err := row.Scan(&dep.ID, &dep.UserID, &amountS, &dep.Currency, &dep.TxRef,
		&sharesS, &navS, &dep.Timestamp, &dep.Status); err != nil {
		return nil, err
	}

	dep.Amount, _ = decimal.NewFromString(amountS)
	dep.Shares, _ = decimal.NewFromString(sharesS)
	dep.NAV, _ = decimal.NewFromString(navS)
	return &dep, nil
}

// holdings loads per-asset quantities keyed by wallet; wallet "" loads all.
func (s *PostgresStore) holdings(ctx context.Context, wallet string) (map[string]map[string]decimal.Decimal, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT wallet_address, asset, quantity::TEXT
		 FROM user_holdings
		 WHERE ($1 = '' OR wallet_address = $1)`, wallet)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]map[string]decimal.Decimal)
	for rows.Next() {
		var w, asset, qtyS string
		if err := rows.Scan(&w, &asset, &qtyS); err != nil {
			return nil, err
		}
		qty, _ := decimal.NewFromString(qtyS)
		if result[w] == nil {
			result[w] = make(map[string]decimal.Decimal)
		}
		result[w][asset] = qty
	}
	return result, rows.Err()
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
