// Package pool implements share-based accounting for a pooled fund:
// share issuance on deposit, allocation recomputation, distribution of
// pool trades across participants, and the read-only reporting views.
//
// The pool value is never computed here. Every operation that needs a NAV
// takes the current total pool value from the caller.
//
// All monetary values use shopspring/decimal, never float64.
package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/flub/pool-engine/internal/events"
	"github.com/flub/pool-engine/internal/limits"
	"github.com/flub/pool-engine/internal/metrics"
	"github.com/flub/pool-engine/internal/model"
	"github.com/flub/pool-engine/internal/nav"
	"github.com/flub/pool-engine/internal/store"
	"github.com/flub/pool-engine/internal/wallet"
)

// Roles reported for users.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// DefaultCurrency is accepted when no currency list is configured.
const DefaultCurrency = "USDC"

// Config holds the operator settings of a Service.
type Config struct {
	// AdminWallets are wallets with operator rights. They are excluded from
	// the public leaderboard.
	AdminWallets []string

	// AcceptedCurrencies lists deposit and withdrawal currencies. The first
	// entry is used when a request omits its currency.
	AcceptedCurrencies []string
}

// Service is the pool accounting engine.
//
// Deposits run concurrently under the read lock; their counter updates are
// atomic deltas in the store. Deposits for the same wallet are serialized so
// the cumulative limit and the duplicate check see every earlier deposit
// from that wallet. ExecuteTrade takes the write lock so the allocation
// snapshot it distributes by cannot be changed by a deposit landing between
// snapshot and distribution.
type Service struct {
	store      store.Store
	limiter    *limits.DepositLimiter
	notifier   events.Notifier
	admins     map[string]bool
	currencies []string
	mu         sync.RWMutex
	deposits   walletLocks
	now        func() time.Time
}

// NewService creates a pool service.
// Pass nil for limiter to accept any deposit size and nil for notifier if
// event publishing is not needed.
func NewService(st store.Store, limiter *limits.DepositLimiter, notifier events.Notifier, cfg Config) *Service {
	if notifier == nil {
		notifier = events.Nop{}
	}

	admins := make(map[string]bool, len(cfg.AdminWallets))
	for _, w := range cfg.AdminWallets {
		if w = strings.TrimSpace(w); w != "" {
			admins[w] = true
		}
	}

	var currencies []string
	for _, c := range cfg.AcceptedCurrencies {
		if c = strings.ToUpper(strings.TrimSpace(c)); c != "" {
			currencies = append(currencies, c)
		}
	}
	if len(currencies) == 0 {
		currencies = []string{DefaultCurrency}
	}

	return &Service{
		store:      st,
		limiter:    limiter,
		notifier:   notifier,
		admins:     admins,
		currencies: currencies,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// IsAdmin reports whether wallet has operator rights.
func (s *Service) IsAdmin(addr string) bool {
	return s.admins[addr]
}

// Role returns RoleAdmin or RoleUser for wallet.
func (s *Service) Role(addr string) string {
	if s.IsAdmin(addr) {
		return RoleAdmin
	}
	return RoleUser
}

// --- Users ---

// RegisterUser creates a user on first sight and refreshes the last login
// time on later calls. The bool result reports whether the user was created.
func (s *Service) RegisterUser(ctx context.Context, addr string) (*model.Profile, bool, error) {
	if err := wallet.Validate(addr); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	now := s.now()
	existing, err := s.store.GetUser(ctx, addr)
	switch {
	case err == nil:
		if err := s.store.TouchLogin(ctx, addr, now); err != nil {
			return nil, false, fmt.Errorf("touch login %s: %w", addr, err)
		}
		existing.LastLoginAt = now
		return s.profile(existing), false, nil
	case !errors.Is(err, store.ErrNotFound):
		return nil, false, fmt.Errorf("get user %s: %w", addr, err)
	}

	u := &model.User{
		WalletAddress: addr,
		Holdings:      map[string]decimal.Decimal{},
		JoinedAt:      now,
		LastLoginAt:   now,
		IsActive:      true,
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrDuplicateUser) {
			// Lost a registration race; the winner's record stands.
			existing, err := s.store.GetUser(ctx, addr)
			if err != nil {
				return nil, false, fmt.Errorf("get user %s: %w", addr, err)
			}
			return s.profile(existing), false, nil
		}
		return nil, false, fmt.Errorf("create user %s: %w", addr, err)
	}

	slog.Info("user registered", "wallet", addr, "role", s.Role(addr))
	s.notifier.Notify(events.Event{
		Type:      events.TypeUserRegistered,
		Wallet:    addr,
		Timestamp: now,
	})

	return s.profile(u), true, nil
}

func (s *Service) profile(u *model.User) *model.Profile {
	if u.Holdings == nil {
		u.Holdings = map[string]decimal.Decimal{}
	}
	return &model.Profile{User: *u, Role: s.Role(u.WalletAddress)}
}

// --- Pool state ---

// InitResult is the outcome of InitializePool.
type InitResult struct {
	TotalShares        decimal.Decimal `json:"total_shares"`
	NAV                decimal.Decimal `json:"nav"`
	InitializedAt      *time.Time      `json:"initialized_at,omitempty"`
	AlreadyInitialized bool            `json:"already_initialized"`
}

// PoolState returns the share counter. An uninitialized pool reports zero
// shares and no initialization time.
func (s *Service) PoolState(ctx context.Context) (model.PoolState, error) {
	state, err := s.store.GetPoolState(ctx)
	if err != nil {
		return model.PoolState{}, fmt.Errorf("get pool state: %w", err)
	}
	return state, nil
}

// InitializePool issues totalPoolValue shares at NAV 1 if the pool has no
// shares yet. On an initialized pool it returns the existing state.
func (s *Service) InitializePool(ctx context.Context, totalPoolValue decimal.Decimal) (*InitResult, error) {
	if !totalPoolValue.IsPositive() {
		return nil, fmt.Errorf("%w: total pool value must be positive", ErrInvalidInput)
	}

	state, done, err := s.store.InitializePool(ctx, totalPoolValue, s.now())
	if err != nil {
		return nil, fmt.Errorf("initialize pool: %w", err)
	}

	if !done {
		return &InitResult{
			TotalShares:        state.TotalShares,
			NAV:                nav.NAV(totalPoolValue, state.TotalShares),
			InitializedAt:      state.InitializedAt,
			AlreadyInitialized: true,
		}, nil
	}

	slog.Info("pool initialized", "total_shares", state.TotalShares.String())
	metrics.TotalShares.Set(state.TotalShares.InexactFloat64())
	metrics.NAV.Set(1)
	s.notifier.Notify(events.Event{
		Type:        events.TypePoolInitialized,
		TotalShares: state.TotalShares.String(),
		NAV:         nav.One.String(),
		Timestamp:   s.now(),
	})

	return &InitResult{
		TotalShares:   state.TotalShares,
		NAV:           nav.One,
		InitializedAt: state.InitializedAt,
	}, nil
}

// --- Deposits ---

// DepositRequest describes an external transfer into the pool.
type DepositRequest struct {
	UserID   string
	Amount   decimal.Decimal
	TxRef    string
	Currency string
	// TotalPoolValue is the current pool value including this deposit.
	TotalPoolValue decimal.Decimal
}

// DepositResult reports the shares issued for a deposit.
type DepositResult struct {
	DepositID          string          `json:"deposit_id"`
	SharesIssued       decimal.Decimal `json:"shares_issued"`
	NAV                decimal.Decimal `json:"nav"`
	TotalShares        decimal.Decimal `json:"total_shares"`
	UserShares         decimal.Decimal `json:"user_shares"`
	UserTotalDeposited decimal.Decimal `json:"user_total_deposited"`
}

// RecordDeposit converts a deposit into shares priced at the NAV before the
// deposit's own capital:
//
//	nav    = (totalPoolValue - amount) / totalShares   (1 when not positive)
//	shares = amount / nav
//
// An uninitialized pool with pre-existing value is first bootstrapped with
// that value at NAV 1. The deposit record is appended before any counter
// moves, so a duplicate transaction reference leaves every counter intact.
func (s *Service) RecordDeposit(ctx context.Context, req DepositRequest) (*DepositResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	currency, err := s.validateDeposit(&req)
	if err != nil {
		metrics.DepositRejections.WithLabelValues("invalid").Inc()
		return nil, err
	}

	unlock := s.deposits.lock(req.UserID)
	defer unlock()

	user, err := s.store.GetUser(ctx, req.UserID)
	if errors.Is(err, store.ErrNotFound) {
		metrics.DepositRejections.WithLabelValues("unknown_user").Inc()
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, req.UserID)
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", req.UserID, err)
	}

	if _, err := s.store.GetDepositByTxRef(ctx, req.TxRef); err == nil {
		metrics.DepositRejections.WithLabelValues("duplicate").Inc()
		return nil, fmt.Errorf("%w: tx ref %s", ErrDuplicateTransaction, req.TxRef)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("lookup tx ref %s: %w", req.TxRef, err)
	}

	if err := s.limiter.CheckDeposit(req.Amount, user.TotalDeposited); err != nil {
		metrics.DepositRejections.WithLabelValues("limit").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	now := s.now()
	state, err := s.store.GetPoolState(ctx)
	if err != nil {
		return nil, fmt.Errorf("get pool state: %w", err)
	}

	totalShares := state.TotalShares
	preDeposit := nav.PreDepositValue(req.TotalPoolValue, req.Amount)
	// The bootstrap is the one pool mutation ahead of the append. It is a
	// compare-and-swap that succeeds once, so a cross-wallet tx ref
	// collision that reaches it cannot change the share count.
	if !state.Initialized() && preDeposit.IsPositive() {
		boot, done, err := s.store.InitializePool(ctx, preDeposit, now)
		if err != nil {
			return nil, fmt.Errorf("bootstrap pool: %w", err)
		}
		if done {
			slog.Info("pool bootstrapped from deposit",
				"pre_deposit_value", preDeposit.String(),
				"tx_ref", req.TxRef,
			)
		}
		totalShares = boot.TotalShares
	}

	price := nav.IssuanceNAV(req.TotalPoolValue, req.Amount, totalShares)
	issued, err := nav.SharesFor(req.Amount, price)
	if err != nil {
		return nil, fmt.Errorf("issue shares: %w", err)
	}

	dep := &model.Deposit{
		ID:        uuid.New().String(),
		UserID:    req.UserID,
		Amount:    req.Amount,
		Currency:  currency,
		TxRef:     req.TxRef,
		Shares:    issued,
		NAV:       price,
		Timestamp: now,
		Status:    model.DepositStatusCompleted,
	}
	if err := s.store.InsertDeposit(ctx, dep); err != nil {
		if errors.Is(err, store.ErrDuplicateTxRef) {
			metrics.DepositRejections.WithLabelValues("duplicate").Inc()
			return nil, fmt.Errorf("%w: tx ref %s", ErrDuplicateTransaction, req.TxRef)
		}
		return nil, fmt.Errorf("insert deposit: %w", err)
	}

	newTotal, err := s.store.IncrementPoolShares(ctx, issued, now)
	if err != nil {
		return nil, fmt.Errorf("increment pool shares: %w", err)
	}

	updated, err := s.store.IncrementUserPosition(ctx, req.UserID, issued, req.Amount)
	if err != nil {
		return nil, fmt.Errorf("increment user position: %w", err)
	}

	if _, err := s.recalculate(ctx); err != nil {
		// The deposit is committed; allocations catch up on the next recompute.
		slog.Warn("allocation recompute after deposit failed", "tx_ref", req.TxRef, "err", err)
	}

	slog.Info("deposit recorded",
		"deposit_id", dep.ID,
		"wallet", req.UserID,
		"amount", req.Amount.String(),
		"currency", currency,
		"tx_ref", req.TxRef,
		"nav", price.String(),
		"shares", issued.String(),
		"total_shares", newTotal.String(),
	)

	metrics.DepositsTotal.WithLabelValues(currency).Inc()
	metrics.SharesIssued.Add(issued.InexactFloat64())
	metrics.TotalShares.Set(newTotal.InexactFloat64())
	metrics.NAV.Set(price.InexactFloat64())

	s.notifier.Notify(events.Event{
		Type:        events.TypeDepositRecorded,
		ID:          dep.ID,
		Wallet:      req.UserID,
		Amount:      req.Amount.String(),
		Currency:    currency,
		TxRef:       req.TxRef,
		Shares:      issued.String(),
		NAV:         price.String(),
		TotalShares: newTotal.String(),
		Timestamp:   now,
	})

	return &DepositResult{
		DepositID:          dep.ID,
		SharesIssued:       issued,
		NAV:                price,
		TotalShares:        newTotal,
		UserShares:         updated.Shares,
		UserTotalDeposited: updated.TotalDeposited,
	}, nil
}

func (s *Service) validateDeposit(req *DepositRequest) (string, error) {
	req.UserID = strings.TrimSpace(req.UserID)
	req.TxRef = strings.TrimSpace(req.TxRef)

	if req.UserID == "" {
		return "", fmt.Errorf("%w: wallet address is required", ErrInvalidInput)
	}
	if !req.Amount.IsPositive() {
		return "", fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	if req.TxRef == "" {
		return "", fmt.Errorf("%w: transaction reference is required", ErrInvalidInput)
	}
	if req.TotalPoolValue.IsNegative() {
		return "", fmt.Errorf("%w: total pool value must not be negative", ErrInvalidInput)
	}
	return s.currency(req.Currency)
}

func (s *Service) currency(c string) (string, error) {
	c = strings.ToUpper(strings.TrimSpace(c))
	if c == "" {
		return s.currencies[0], nil
	}
	for _, accepted := range s.currencies {
		if c == accepted {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: currency %s is not accepted", ErrInvalidInput, c)
}

// --- Allocations ---

// RecalculateAllocations refreshes every active holder's cached allocation
// from share counts. It is a no-op while the pool has no shares.
func (s *Service) RecalculateAllocations(ctx context.Context) error {
	allocations, err := s.recalculate(ctx)
	if err != nil {
		return err
	}

	s.notifier.Notify(events.Event{
		Type:      events.TypeAllocationsRecalculated,
		Users:     len(allocations),
		Timestamp: s.now(),
	})
	return nil
}

// SnapshotAllocations recomputes allocations and returns them keyed by
// wallet. The map is empty when the pool has no shares or no holders.
func (s *Service) SnapshotAllocations(ctx context.Context) (map[string]decimal.Decimal, error) {
	return s.recalculate(ctx)
}

func (s *Service) recalculate(ctx context.Context) (map[string]decimal.Decimal, error) {
	state, err := s.store.GetPoolState(ctx)
	if err != nil {
		return nil, fmt.Errorf("get pool state: %w", err)
	}
	if !state.Initialized() {
		return map[string]decimal.Decimal{}, nil
	}

	holders, err := s.store.ListUsers(ctx, store.UserFilter{ActiveOnly: true, PositiveShares: true})
	if err != nil {
		return nil, fmt.Errorf("list holders: %w", err)
	}

	allocations := make(map[string]decimal.Decimal, len(holders))
	for _, u := range holders {
		allocations[u.WalletAddress] = nav.Allocation(u.Shares, state.TotalShares)
	}

	if err := s.store.SetAllocations(ctx, allocations); err != nil {
		return nil, fmt.Errorf("set allocations: %w", err)
	}
	return allocations, nil
}

// --- Trades ---

// TradeRequest describes a trade executed by the pool as a whole.
type TradeRequest struct {
	Asset     string
	Direction string
	Amount    decimal.Decimal
	Price     decimal.Decimal
}

// TradeResult reports a recorded trade.
type TradeResult struct {
	TradeID      string                     `json:"trade_id"`
	UsersUpdated int                        `json:"users_updated"`
	Allocations  map[string]decimal.Decimal `json:"allocations"`
}

// ExecuteTrade snapshots allocations and distributes the trade by that
// snapshot. It holds the exclusive lock throughout, so no deposit can
// change shares in between.
func (s *Service) ExecuteTrade(ctx context.Context, req TradeRequest) (*TradeResult, error) {
	if err := validateTrade(&req); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot, err := s.recalculate(ctx)
	if err != nil {
		return nil, err
	}
	if len(snapshot) == 0 {
		return nil, fmt.Errorf("%w: no active participants hold shares", ErrInvalidInput)
	}

	return s.recordTrade(ctx, req, snapshot)
}

// RecordTrade appends the trade with its allocation snapshot and applies it
// to holdings:
//
//	part = amount × pct / 100   (added on buy, subtracted on sell)
//
// Snapshot users that no longer exist are skipped. Split remainders are not
// reconciled.
func (s *Service) RecordTrade(ctx context.Context, req TradeRequest, snapshot map[string]decimal.Decimal) (*TradeResult, error) {
	if err := validateTrade(&req); err != nil {
		return nil, err
	}
	if len(snapshot) == 0 {
		return nil, fmt.Errorf("%w: allocation snapshot is empty", ErrInvalidInput)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.recordTrade(ctx, req, snapshot)
}

func (s *Service) recordTrade(ctx context.Context, req TradeRequest, snapshot map[string]decimal.Decimal) (*TradeResult, error) {
	start := time.Now()
	now := s.now()

	t := &model.Trade{
		ID:              uuid.New().String(),
		Asset:           req.Asset,
		Direction:       req.Direction,
		Amount:          req.Amount,
		Price:           req.Price,
		Timestamp:       now,
		UserAllocations: snapshot,
	}
	if err := s.store.InsertTrade(ctx, t); err != nil {
		return nil, fmt.Errorf("insert trade: %w", err)
	}

	// Fixed order keeps logs and partial failures reproducible.
	wallets := make([]string, 0, len(snapshot))
	for w := range snapshot {
		wallets = append(wallets, w)
	}
	sort.Strings(wallets)

	updated := 0
	for _, w := range wallets {
		part := nav.Split(req.Amount, snapshot[w])
		if req.Direction == model.DirectionSell {
			part = part.Neg()
		}

		err := s.store.IncrementHolding(ctx, w, req.Asset, part)
		if errors.Is(err, store.ErrNotFound) {
			slog.Warn("trade distribution skipped unknown user", "trade_id", t.ID, "wallet", w)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("distribute trade %s to %s: %w", t.ID, w, err)
		}
		updated++
	}

	slog.Info("trade recorded",
		"trade_id", t.ID,
		"asset", req.Asset,
		"direction", req.Direction,
		"amount", req.Amount.String(),
		"price", req.Price.String(),
		"users_updated", updated,
	)

	metrics.TradesTotal.WithLabelValues(req.Direction).Inc()
	metrics.TradeLatency.WithLabelValues(req.Direction).Observe(time.Since(start).Seconds())

	s.notifier.Notify(events.Event{
		Type:      events.TypeTradeExecuted,
		ID:        t.ID,
		Asset:     req.Asset,
		Direction: req.Direction,
		Amount:    req.Amount.String(),
		Price:     req.Price.String(),
		Users:     updated,
		Timestamp: now,
	})

	return &TradeResult{TradeID: t.ID, UsersUpdated: updated, Allocations: snapshot}, nil
}

func validateTrade(req *TradeRequest) error {
	req.Asset = strings.ToUpper(strings.TrimSpace(req.Asset))
	req.Direction = strings.ToLower(strings.TrimSpace(req.Direction))

	if req.Asset == "" {
		return fmt.Errorf("%w: asset is required", ErrInvalidInput)
	}
	if req.Direction != model.DirectionBuy && req.Direction != model.DirectionSell {
		return fmt.Errorf("%w: direction must be buy or sell", ErrInvalidInput)
	}
	if !req.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	if !req.Price.IsPositive() {
		return fmt.Errorf("%w: price must be positive", ErrInvalidInput)
	}
	return nil
}

// --- Withdrawals ---

// WithdrawalRequest describes a payout to a participant.
type WithdrawalRequest struct {
	UserID   string
	Amount   decimal.Decimal
	Currency string
}

// RecordWithdrawal appends a withdrawal record and adds to the user's total
// withdrawn. Shares are not burned.
func (s *Service) RecordWithdrawal(ctx context.Context, req WithdrawalRequest) (*model.Withdrawal, error) {
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		return nil, fmt.Errorf("%w: wallet address is required", ErrInvalidInput)
	}
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	currency, err := s.currency(req.Currency)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := s.store.GetUser(ctx, req.UserID); errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, req.UserID)
	} else if err != nil {
		return nil, fmt.Errorf("get user %s: %w", req.UserID, err)
	}

	wd := &model.Withdrawal{
		ID:        uuid.New().String(),
		UserID:    req.UserID,
		Amount:    req.Amount,
		Currency:  currency,
		Timestamp: s.now(),
	}
	if err := s.store.InsertWithdrawal(ctx, wd); err != nil {
		return nil, fmt.Errorf("insert withdrawal: %w", err)
	}
	if err := s.store.IncrementUserWithdrawn(ctx, req.UserID, req.Amount); err != nil {
		return nil, fmt.Errorf("increment withdrawn: %w", err)
	}

	slog.Info("withdrawal recorded",
		"withdrawal_id", wd.ID,
		"wallet", req.UserID,
		"amount", req.Amount.String(),
		"currency", currency,
	)

	metrics.WithdrawalsTotal.Inc()
	s.notifier.Notify(events.Event{
		Type:      events.TypeWithdrawalRecorded,
		ID:        wd.ID,
		Wallet:    req.UserID,
		Amount:    req.Amount.String(),
		Currency:  currency,
		Timestamp: wd.Timestamp,
	})

	return wd, nil
}

// --- Audit ---

// AuditShares compares the pool share counter with the shares held by
// users. Shares issued by pool initialization belong to no user and show up
// as unattributed; a negative figure means users hold more than the pool.
func (s *Service) AuditShares(ctx context.Context) (*model.ShareAudit, error) {
	state, err := s.store.GetPoolState(ctx)
	if err != nil {
		return nil, fmt.Errorf("get pool state: %w", err)
	}
	users, err := s.store.ListUsers(ctx, store.UserFilter{})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	audit := &model.ShareAudit{
		TotalShares: state.TotalShares,
		CheckedAt:   s.now(),
	}
	for _, u := range users {
		audit.UserShares = audit.UserShares.Add(u.Shares)
		if u.IsActive && u.Shares.IsPositive() {
			audit.ActiveHolders++
			audit.AllocationSum = audit.AllocationSum.Add(nav.Allocation(u.Shares, state.TotalShares))
		}
	}
	audit.Unattributed = audit.TotalShares.Sub(audit.UserShares)

	metrics.ShareDrift.Set(audit.Unattributed.InexactFloat64())

	if audit.Unattributed.IsNegative() {
		slog.Warn("share audit: users hold more shares than the pool",
			"total_shares", audit.TotalShares.String(),
			"user_shares", audit.UserShares.String(),
		)
	} else {
		slog.Info("share audit",
			"total_shares", audit.TotalShares.String(),
			"user_shares", audit.UserShares.String(),
			"unattributed", audit.Unattributed.String(),
			"holders", audit.ActiveHolders,
		)
	}
	return audit, nil
}
