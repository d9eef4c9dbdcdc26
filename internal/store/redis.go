package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/flub/pool-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Writes go to the primary store and invalidate the cache; reads
// check Redis first then fall back to the primary.
//
// Every cached key has a generation counter. Writers bump it when they
// invalidate; a reader only fills the cache if the generation it watched
// before reading the primary is unchanged, so a fill racing a write cannot
// leave the pre-write value behind.
//
// Pool state and the ledgers are never cached: issuance must read the
// authoritative share counter.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) CreateUser(ctx context.Context, u *model.User) error {
	if err := s.primary.CreateUser(ctx, u); err != nil {
		return err
	}
	s.invalidate(ctx, userKey(u.WalletAddress))
	return nil
}

func (s *CachedStore) TouchLogin(ctx context.Context, wallet string, at time.Time) error {
	if err := s.primary.TouchLogin(ctx, wallet, at); err != nil {
		return err
	}
	s.invalidate(ctx, userKey(wallet))
	return nil
}

func (s *CachedStore) IncrementUserPosition(ctx context.Context, wallet string, sharesDelta, depositedDelta decimal.Decimal) (*model.User, error) {
	u, err := s.primary.IncrementUserPosition(ctx, wallet, sharesDelta, depositedDelta)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, userKey(wallet))
	return u, nil
}

func (s *CachedStore) IncrementUserWithdrawn(ctx context.Context, wallet string, amount decimal.Decimal) error {
	if err := s.primary.IncrementUserWithdrawn(ctx, wallet, amount); err != nil {
		return err
	}
	s.invalidate(ctx, userKey(wallet))
	return nil
}

func (s *CachedStore) IncrementHolding(ctx context.Context, wallet, asset string, delta decimal.Decimal) error {
	if err := s.primary.IncrementHolding(ctx, wallet, asset, delta); err != nil {
		return err
	}
	s.invalidate(ctx, userKey(wallet))
	return nil
}

func (s *CachedStore) SetAllocations(ctx context.Context, allocations map[string]decimal.Decimal) error {
	if err := s.primary.SetAllocations(ctx, allocations); err != nil {
		return err
	}
	if len(allocations) == 0 {
		return nil
	}
	keys := make([]string, 0, len(allocations))
	for wallet := range allocations {
		keys = append(keys, userKey(wallet))
	}
	s.invalidate(ctx, keys...)
	return nil
}

func (s *CachedStore) MergeTraderState(ctx context.Context, patch model.TraderState) error {
	if err := s.primary.MergeTraderState(ctx, patch); err != nil {
		return err
	}
	s.invalidate(ctx, traderStateKey)
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetUser(ctx context.Context, wallet string) (*model.User, error) {
	return readThrough(ctx, s, userKey(wallet), func(ctx context.Context) (*model.User, error) {
		return s.primary.GetUser(ctx, wallet)
	})
}

func (s *CachedStore) GetTraderState(ctx context.Context) (model.TraderState, error) {
	return readThrough(ctx, s, traderStateKey, s.primary.GetTraderState)
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ListUsers(ctx context.Context, filter UserFilter) ([]model.User, error) {
	return s.primary.ListUsers(ctx, filter)
}

func (s *CachedStore) GetPoolState(ctx context.Context) (model.PoolState, error) {
	return s.primary.GetPoolState(ctx)
}

func (s *CachedStore) InitializePool(ctx context.Context, totalShares decimal.Decimal, at time.Time) (model.PoolState, bool, error) {
	return s.primary.InitializePool(ctx, totalShares, at)
}

func (s *CachedStore) IncrementPoolShares(ctx context.Context, delta decimal.Decimal, at time.Time) (decimal.Decimal, error) {
	return s.primary.IncrementPoolShares(ctx, delta, at)
}

func (s *CachedStore) InsertDeposit(ctx context.Context, dep *model.Deposit) error {
	return s.primary.InsertDeposit(ctx, dep)
}

func (s *CachedStore) GetDepositByTxRef(ctx context.Context, txRef string) (*model.Deposit, error) {
	return s.primary.GetDepositByTxRef(ctx, txRef)
}

func (s *CachedStore) ListDeposits(ctx context.Context, wallet string) ([]model.Deposit, error) {
	return s.primary.ListDeposits(ctx, wallet)
}

func (s *CachedStore) LatestDeposit(ctx context.Context, wallet string) (*model.Deposit, error) {
	return s.primary.LatestDeposit(ctx, wallet)
}

func (s *CachedStore) InsertTrade(ctx context.Context, t *model.Trade) error {
	return s.primary.InsertTrade(ctx, t)
}

func (s *CachedStore) ListTrades(ctx context.Context) ([]model.Trade, error) {
	return s.primary.ListTrades(ctx)
}

func (s *CachedStore) InsertWithdrawal(ctx context.Context, w *model.Withdrawal) error {
	return s.primary.InsertWithdrawal(ctx, w)
}

func (s *CachedStore) ListWithdrawals(ctx context.Context, wallet string) ([]model.Withdrawal, error) {
	return s.primary.ListWithdrawals(ctx, wallet)
}

func (s *CachedStore) Counts(ctx context.Context) (model.Counts, error) {
	return s.primary.Counts(ctx)
}

// --- Cache helpers ---

// readThrough serves key from Redis or loads it from the primary. The fill
// runs under WATCH on the key's generation and is skipped when a writer
// invalidated the key in the meantime.
func readThrough[T any](ctx context.Context, s *CachedStore, key string, load func(context.Context) (T, error)) (T, error) {
	var value T
	if data, err := s.rdb.Get(ctx, key).Bytes(); err == nil && json.Unmarshal(data, &value) == nil {
		return value, nil
	}

	var (
		loaded  bool
		loadErr error
	)
	fill := func(tx *redis.Tx) error {
		value, loadErr = load(ctx)
		if loadErr != nil {
			return loadErr
		}
		loaded = true

		data, err := json.Marshal(value)
		if err != nil {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			return nil
		})
		return err
	}

	// redis.TxFailedErr means a writer won; the loaded value is still
	// returned, just not cached.
	if err := s.rdb.Watch(ctx, fill, genKey(key)); err != nil && !loaded && loadErr == nil {
		// Redis unavailable.
		return load(ctx)
	}
	return value, loadErr
}

// invalidate bumps each key's generation and drops the cached value.
func (s *CachedStore) invalidate(ctx context.Context, keys ...string) {
	pipe := s.rdb.TxPipeline()
	for _, key := range keys {
		pipe.Incr(ctx, genKey(key))
		pipe.Del(ctx, key)
	}
	pipe.Exec(ctx)
}

const traderStateKey = "trader_state"

func userKey(wallet string) string { return fmt.Sprintf("user:%s", wallet) }

func genKey(key string) string { return "gen:" + key }
