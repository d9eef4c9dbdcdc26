package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/flub/pool-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu          sync.RWMutex
	users       map[string]*model.User
	userOrder   []string // registration order
	pool        model.PoolState
	poolExists  bool
	deposits    []model.Deposit
	txRefs      map[string]int // tx ref → index into deposits
	trades      []model.Trade
	withdrawals []model.Withdrawal
	traderState model.TraderState
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:  make(map[string]*model.User),
		txRefs: make(map[string]int),
	}
}

// --- Users ---

func (s *MemoryStore) CreateUser(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[u.WalletAddress]; ok {
		return ErrDuplicateUser
	}

	// Store a copy to avoid external mutation.
	s.users[u.WalletAddress] = copyUser(u)
	s.userOrder = append(s.userOrder, u.WalletAddress)
	return nil
}

func (s *MemoryStore) GetUser(_ context.Context, wallet string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[wallet]
	if !ok {
		return nil, ErrNotFound
	}
	return copyUser(u), nil
}

func (s *MemoryStore) TouchLogin(_ context.Context, wallet string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[wallet]
	if !ok {
		return ErrNotFound
	}
	u.LastLoginAt = at
	return nil
}

func (s *MemoryStore) ListUsers(_ context.Context, filter UserFilter) ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]model.User, 0, len(s.userOrder))
	for _, wallet := range s.userOrder {
		u := s.users[wallet]
		if filter.ActiveOnly && !u.IsActive {
			continue
		}
		if filter.PositiveShares && !u.Shares.IsPositive() {
			continue
		}
		users = append(users, *copyUser(u))
	}
	return users, nil
}

func (s *MemoryStore) IncrementUserPosition(_ context.Context, wallet string, sharesDelta, depositedDelta decimal.Decimal) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[wallet]
	if !ok {
		return nil, ErrNotFound
	}
	u.Shares = u.Shares.Add(sharesDelta)
	u.TotalDeposited = u.TotalDeposited.Add(depositedDelta)
	return copyUser(u), nil
}

func (s *MemoryStore) IncrementUserWithdrawn(_ context.Context, wallet string, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[wallet]
	if !ok {
		return ErrNotFound
	}
	u.TotalWithdrawn = u.TotalWithdrawn.Add(amount)
	return nil
}

func (s *MemoryStore) IncrementHolding(_ context.Context, wallet, asset string, delta decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[wallet]
	if !ok {
		return ErrNotFound
	}
	if u.Holdings == nil {
		u.Holdings = make(map[string]decimal.Decimal)
	}
	u.Holdings[asset] = u.Holdings[asset].Add(delta)
	return nil
}

func (s *MemoryStore) SetAllocations(_ context.Context, allocations map[string]decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for wallet, pct := range allocations {
		if u, ok := s.users[wallet]; ok {
			u.Allocation = pct
		}
	}
	return nil
}

// --- Pool state ---

func (s *MemoryStore) GetPoolState(_ context.Context) (model.PoolState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return copyPool(s.pool), nil
}

func (s *MemoryStore) InitializePool(_ context.Context, totalShares decimal.Decimal, at time.Time) (model.PoolState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pool.TotalShares.IsPositive() {
		return copyPool(s.pool), false, nil
	}
	s.pool.TotalShares = totalShares
	s.pool.InitializedAt = &at
	s.poolExists = true
	return copyPool(s.pool), true, nil
}

func (s *MemoryStore) IncrementPoolShares(_ context.Context, delta decimal.Decimal, at time.Time) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pool.TotalShares = s.pool.TotalShares.Add(delta)
	if s.pool.InitializedAt == nil {
		s.pool.InitializedAt = &at
	}
	s.poolExists = true
	return s.pool.TotalShares, nil
}

// --- Immutable ledgers ---

func (s *MemoryStore) InsertDeposit(_ context.Context, dep *model.Deposit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.txRefs[dep.TxRef]; ok {
		return ErrDuplicateTxRef
	}
	s.txRefs[dep.TxRef] = len(s.deposits)
	s.deposits = append(s.deposits, *dep)
	return nil
}

func (s *MemoryStore) GetDepositByTxRef(_ context.Context, txRef string) (*model.Deposit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.txRefs[txRef]
	if !ok {
		return nil, ErrNotFound
	}
	dep := s.deposits[i]
	return &dep, nil
}

// ListDeposits walks the ledger backwards; entries are appended in time order.
func (s *MemoryStore) ListDeposits(_ context.Context, wallet string) ([]model.Deposit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Deposit
	for i := len(s.deposits) - 1; i >= 0; i-- {
		if wallet == "" || s.deposits[i].UserID == wallet {
			result = append(result, s.deposits[i])
		}
	}
	return result, nil
}

func (s *MemoryStore) LatestDeposit(_ context.Context, wallet string) (*model.Deposit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.deposits) - 1; i >= 0; i-- {
		if wallet == "" || s.deposits[i].UserID == wallet {
			dep := s.deposits[i]
			return &dep, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) InsertTrade(_ context.Context, trade *model.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := *trade
	t.UserAllocations = make(map[string]decimal.Decimal, len(trade.UserAllocations))
	for k, v := range trade.UserAllocations {
		t.UserAllocations[k] = v
	}
	s.trades = append(s.trades, t)
	return nil
}

func (s *MemoryStore) ListTrades(_ context.Context) ([]model.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.Trade, 0, len(s.trades))
	for i := len(s.trades) - 1; i >= 0; i-- {
		result = append(result, s.trades[i])
	}
	return result, nil
}

func (s *MemoryStore) InsertWithdrawal(_ context.Context, w *model.Withdrawal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.withdrawals = append(s.withdrawals, *w)
	return nil
}

func (s *MemoryStore) ListWithdrawals(_ context.Context, wallet string) ([]model.Withdrawal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Withdrawal
	for i := len(s.withdrawals) - 1; i >= 0; i-- {
		if wallet == "" || s.withdrawals[i].UserID == wallet {
			result = append(result, s.withdrawals[i])
		}
	}
	return result, nil
}

func (s *MemoryStore) Counts(_ context.Context) (model.Counts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := model.Counts{
		Users:       len(s.users),
		Deposits:    len(s.deposits),
		Trades:      len(s.trades),
		Withdrawals: len(s.withdrawals),
	}
	if s.poolExists {
		c.PoolState = 1
	}
	if s.traderState != nil {
		c.TraderState = 1
	}
	return c, nil
}

// --- Trader state ---

func (s *MemoryStore) GetTraderState(_ context.Context) (model.TraderState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.traderState == nil {
		return nil, ErrNotFound
	}
	out := make(model.TraderState, len(s.traderState))
	for k, v := range s.traderState {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out, nil
}

func (s *MemoryStore) MergeTraderState(_ context.Context, patch model.TraderState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.traderState == nil {
		s.traderState = make(model.TraderState, len(patch))
	}
	for k, v := range patch {
		s.traderState[k] = append(json.RawMessage(nil), v...)
	}
	return nil
}

// --- helpers ---

func copyUser(u *model.User) *model.User {
	c := *u
	c.Holdings = make(map[string]decimal.Decimal, len(u.Holdings))
	for k, v := range u.Holdings {
		c.Holdings[k] = v
	}
	return &c
}

func copyPool(p model.PoolState) model.PoolState {
	if p.InitializedAt != nil {
		at := *p.InitializedAt
		p.InitializedAt = &at
	}
	return p
}
