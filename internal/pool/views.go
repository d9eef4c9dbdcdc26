package pool

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/flub/pool-engine/internal/model"
	"github.com/flub/pool-engine/internal/nav"
	"github.com/flub/pool-engine/internal/store"
	"github.com/flub/pool-engine/internal/wallet"
)

// Wallet labels used for pool trades in the transaction history.
const (
	PoolWallet      = "pool"
	PoolWalletShort = "Pool Trade"
)

// navDisplayScale is the rounding for NAV on the admin dashboard.
const navDisplayScale int32 = 6

// Position returns wallet's mark-to-market claim at poolValue. An unknown
// wallet gets an empty position rather than an error.
func (s *Service) Position(ctx context.Context, addr string, poolValue decimal.Decimal) (*model.Position, error) {
	user, err := s.store.GetUser(ctx, addr)
	if errors.Is(err, store.ErrNotFound) {
		return &model.Position{WalletAddress: addr, NAV: nav.One}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", addr, err)
	}

	state, err := s.store.GetPoolState(ctx)
	if err != nil {
		return nil, fmt.Errorf("get pool state: %w", err)
	}

	price := nav.NAV(poolValue, state.TotalShares)
	return &model.Position{
		WalletAddress:  addr,
		Shares:         user.Shares,
		NAV:            price,
		CurrentValue:   nav.Value(user.Shares, price),
		Allocation:     nav.Allocation(user.Shares, state.TotalShares),
		TotalDeposited: user.TotalDeposited,
	}, nil
}

// Portfolio returns the stored user record with its role and holdings.
func (s *Service) Portfolio(ctx context.Context, addr string) (*model.Profile, error) {
	user, err := s.store.GetUser(ctx, addr)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, addr)
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", addr, err)
	}
	return s.profile(user), nil
}

// ActiveUsers returns every active user with its role, in registration order.
func (s *Service) ActiveUsers(ctx context.Context) ([]model.Profile, error) {
	users, err := s.store.ListUsers(ctx, store.UserFilter{ActiveOnly: true})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	profiles := make([]model.Profile, 0, len(users))
	for i := range users {
		profiles = append(profiles, *s.profile(&users[i]))
	}
	return profiles, nil
}

// Leaderboard ranks active non-admin users by current value at poolValue,
// highest first. Ties keep registration order.
func (s *Service) Leaderboard(ctx context.Context, poolValue decimal.Decimal) ([]model.LeaderboardEntry, error) {
	state, err := s.store.GetPoolState(ctx)
	if err != nil {
		return nil, fmt.Errorf("get pool state: %w", err)
	}
	users, err := s.store.ListUsers(ctx, store.UserFilter{ActiveOnly: true})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	latest, err := s.latestDeposits(ctx)
	if err != nil {
		return nil, err
	}

	price := nav.NAV(poolValue, state.TotalShares)

	type ranked struct {
		entry model.LeaderboardEntry
		value decimal.Decimal
	}
	rows := make([]ranked, 0, len(users))
	for _, u := range users {
		if s.IsAdmin(u.WalletAddress) {
			continue
		}

		value := nav.Value(u.Shares, price)
		entry := model.LeaderboardEntry{
			WalletAddress:  u.WalletAddress,
			WalletShort:    wallet.Short(u.WalletAddress),
			JoinedAt:       u.JoinedAt,
			TotalDeposited: u.TotalDeposited,
			CurrentValue:   nav.Display(value),
			Allocation:     nav.Display(nav.Allocation(u.Shares, state.TotalShares)),
			Shares:         u.Shares,
		}
		if dep, ok := latest[u.WalletAddress]; ok {
			at := dep.Timestamp
			entry.LastDeposit = &at
			entry.LastDepositAmount = dep.Amount
		}
		rows = append(rows, ranked{entry: entry, value: value})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].value.GreaterThan(rows[j].value)
	})

	board := make([]model.LeaderboardEntry, len(rows))
	for i, r := range rows {
		r.entry.Rank = i + 1
		board[i] = r.entry
	}
	return board, nil
}

// latestDeposits maps each wallet to its newest deposit.
func (s *Service) latestDeposits(ctx context.Context) (map[string]model.Deposit, error) {
	deposits, err := s.store.ListDeposits(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list deposits: %w", err)
	}

	latest := make(map[string]model.Deposit)
	for _, dep := range deposits {
		if _, seen := latest[dep.UserID]; !seen {
			latest[dep.UserID] = dep
		}
	}
	return latest, nil
}

// AdminStats aggregates pool-wide figures over all active users, admins
// included, at poolValue.
func (s *Service) AdminStats(ctx context.Context, poolValue decimal.Decimal) (*model.AdminStats, error) {
	state, err := s.store.GetPoolState(ctx)
	if err != nil {
		return nil, fmt.Errorf("get pool state: %w", err)
	}
	users, err := s.store.ListUsers(ctx, store.UserFilter{})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	counts, err := s.store.Counts(ctx)
	if err != nil {
		return nil, fmt.Errorf("count records: %w", err)
	}

	price := nav.NAV(poolValue, state.TotalShares)

	stats := &model.AdminStats{
		PoolValue:       nav.Display(poolValue),
		NAV:             price.Round(navDisplayScale),
		TotalShares:     nav.Display(state.TotalShares),
		TradeCount:      counts.Trades,
		DepositCount:    counts.Deposits,
		WithdrawalCount: counts.Withdrawals,
		DBCounts:        counts,
	}

	deposited := decimal.Zero
	value := decimal.Zero
	var lastJoined time.Time
	for _, u := range users {
		if u.JoinedAt.After(lastJoined) {
			lastJoined = u.JoinedAt
		}
		if !u.IsActive {
			continue
		}
		stats.UserCount++
		deposited = deposited.Add(u.TotalDeposited)
		value = value.Add(nav.Value(u.Shares, price))
	}
	if !lastJoined.IsZero() {
		stats.LastUserJoined = &lastJoined
	}

	stats.TotalUserDeposited = nav.Display(deposited)
	stats.TotalUserValue = nav.Display(value)
	stats.PnLPercent = nav.Display(nav.PnLPercent(value, deposited))

	last, err := s.store.LatestDeposit(ctx, "")
	switch {
	case err == nil:
		at := last.Timestamp
		stats.LastDeposit = &at
		stats.LastDepositWallet = wallet.Short(last.UserID)
		stats.LastDepositAmount = last.Amount
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("latest deposit: %w", err)
	}

	return stats, nil
}

// Transactions returns the merged history newest first. Admins see every
// deposit, pool trade and withdrawal; other users see only their own
// deposits and withdrawals.
func (s *Service) Transactions(ctx context.Context, addr string, isAdmin bool) ([]model.Transaction, error) {
	addr = strings.TrimSpace(addr)
	if !isAdmin && addr == "" {
		return []model.Transaction{}, nil
	}

	filter := addr
	if isAdmin {
		filter = ""
	}

	deposits, err := s.store.ListDeposits(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list deposits: %w", err)
	}
	withdrawals, err := s.store.ListWithdrawals(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list withdrawals: %w", err)
	}

	txs := make([]model.Transaction, 0, len(deposits)+len(withdrawals))
	for _, dep := range deposits {
		shares, price := dep.Shares, dep.NAV
		tx := model.Transaction{
			Kind:      model.TxKindDeposit,
			Amount:    dep.Amount,
			Currency:  dep.Currency,
			TxRef:     dep.TxRef,
			Shares:    &shares,
			NAV:       &price,
			Timestamp: dep.Timestamp,
		}
		if isAdmin {
			tx.Wallet = dep.UserID
			tx.WalletShort = wallet.Short(dep.UserID)
			tx.IsAdmin = s.IsAdmin(dep.UserID)
		}
		txs = append(txs, tx)
	}

	if isAdmin {
		trades, err := s.store.ListTrades(ctx)
		if err != nil {
			return nil, fmt.Errorf("list trades: %w", err)
		}
		for _, t := range trades {
			price := t.Price
			txs = append(txs, model.Transaction{
				Kind:        t.Direction,
				Wallet:      PoolWallet,
				WalletShort: PoolWalletShort,
				Asset:       t.Asset,
				Amount:      t.Amount,
				Price:       &price,
				Timestamp:   t.Timestamp,
			})
		}
	}

	for _, wd := range withdrawals {
		tx := model.Transaction{
			Kind:      model.TxKindWithdrawal,
			Amount:    wd.Amount,
			Currency:  wd.Currency,
			Timestamp: wd.Timestamp,
		}
		if isAdmin {
			tx.Wallet = wd.UserID
			tx.WalletShort = wallet.Short(wd.UserID)
			tx.IsAdmin = s.IsAdmin(wd.UserID)
		}
		txs = append(txs, tx)
	}

	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].Timestamp.After(txs[j].Timestamp)
	})
	return txs, nil
}
