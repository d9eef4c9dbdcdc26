package store_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/flub/pool-engine/internal/model"
	"github.com/flub/pool-engine/internal/store"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

const (
	alice = "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin"
	bob   = "So11111111111111111111111111111111111111112"
)

func seedUser(t *testing.T, s store.Store, wallet string) {
	t.Helper()
	now := time.Now().UTC()
	err := s.CreateUser(context.Background(), &model.User{
		WalletAddress: wallet,
		JoinedAt:      now,
		LastLoginAt:   now,
		IsActive:      true,
		Holdings:      map[string]decimal.Decimal{},
	})
	if err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
}

func TestMemoryStore_CreateUserDuplicate(t *testing.T) {
	ms := store.NewMemoryStore()
	seedUser(t, ms, alice)

	err := ms.CreateUser(context.Background(), &model.User{WalletAddress: alice})
	if !errors.Is(err, store.ErrDuplicateUser) {
		t.Errorf("expected ErrDuplicateUser, got %v", err)
	}
}

func TestMemoryStore_GetUserNotFound(t *testing.T) {
	ms := store.NewMemoryStore()
	if _, err := ms.GetUser(context.Background(), alice); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_ListUsersFilterAndOrder(t *testing.T) {
	ctx := context.Background()
	ms := store.NewMemoryStore()
	seedUser(t, ms, alice)
	seedUser(t, ms, bob)

	if _, err := ms.IncrementUserPosition(ctx, bob, d(10), d(10)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	all, _ := ms.ListUsers(ctx, store.UserFilter{})
	if len(all) != 2 || all[0].WalletAddress != alice || all[1].WalletAddress != bob {
		t.Fatalf("expected registration order [alice bob], got %v", all)
	}

	holders, _ := ms.ListUsers(ctx, store.UserFilter{ActiveOnly: true, PositiveShares: true})
	if len(holders) != 1 || holders[0].WalletAddress != bob {
		t.Errorf("expected only bob to hold shares, got %v", holders)
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	ms := store.NewMemoryStore()
	seedUser(t, ms, alice)

	u, _ := ms.GetUser(ctx, alice)
	u.Shares = d(999)
	u.Holdings["BTC"] = d(1)

	again, _ := ms.GetUser(ctx, alice)
	if !again.Shares.IsZero() || len(again.Holdings) != 0 {
		t.Errorf("mutating a returned user leaked into the store: %+v", again)
	}
}

func TestMemoryStore_IncrementHolding(t *testing.T) {
	ctx := context.Background()
	ms := store.NewMemoryStore()
	seedUser(t, ms, alice)

	_ = ms.IncrementHolding(ctx, alice, "SOL", d(0.6))
	_ = ms.IncrementHolding(ctx, alice, "SOL", d(-0.2))

	u, _ := ms.GetUser(ctx, alice)
	if !u.Holdings["SOL"].Equal(d(0.4)) {
		t.Errorf("expected SOL 0.4, got %s", u.Holdings["SOL"])
	}

	if err := ms.IncrementHolding(ctx, bob, "SOL", d(1)); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown user, got %v", err)
	}
}

func TestMemoryStore_InitializePoolOnce(t *testing.T) {
	ctx := context.Background()
	ms := store.NewMemoryStore()
	at := time.Now().UTC()

	state, done, err := ms.InitializePool(ctx, d(1000), at)
	if err != nil || !done {
		t.Fatalf("expected first initialization to succeed, got done=%v err=%v", done, err)
	}
	if !state.TotalShares.Equal(d(1000)) || state.InitializedAt == nil {
		t.Errorf("unexpected state after init: %+v", state)
	}

	state, done, _ = ms.InitializePool(ctx, d(5), at.Add(time.Hour))
	if done {
		t.Error("second initialization should be a no-op")
	}
	if !state.TotalShares.Equal(d(1000)) {
		t.Errorf("expected shares to stay 1000, got %s", state.TotalShares)
	}
}

func TestMemoryStore_IncrementPoolSharesUpserts(t *testing.T) {
	ctx := context.Background()
	ms := store.NewMemoryStore()
	at := time.Now().UTC()

	total, _ := ms.IncrementPoolShares(ctx, d(100), at)
	if !total.Equal(d(100)) {
		t.Fatalf("expected 100, got %s", total)
	}
	state, _ := ms.GetPoolState(ctx)
	if state.InitializedAt == nil || !state.InitializedAt.Equal(at) {
		t.Errorf("expected initialized_at to be set on first increment, got %v", state.InitializedAt)
	}

	counts, _ := ms.Counts(ctx)
	if counts.PoolState != 1 {
		t.Errorf("expected pool state record to exist, got %d", counts.PoolState)
	}
}

func TestMemoryStore_ConcurrentIncrements(t *testing.T) {
	ctx := context.Background()
	ms := store.NewMemoryStore()
	seedUser(t, ms, alice)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = ms.IncrementUserPosition(ctx, alice, d(1), d(2))
			_, _ = ms.IncrementPoolShares(ctx, d(1), time.Now())
		}()
	}
	wg.Wait()

	u, _ := ms.GetUser(ctx, alice)
	state, _ := ms.GetPoolState(ctx)
	if !u.Shares.Equal(d(50)) || !u.TotalDeposited.Equal(d(100)) {
		t.Errorf("lost updates: shares=%s deposited=%s", u.Shares, u.TotalDeposited)
	}
	if !state.TotalShares.Equal(d(50)) {
		t.Errorf("lost pool updates: %s", state.TotalShares)
	}
}

func TestMemoryStore_DepositLedger(t *testing.T) {
	ctx := context.Background()
	ms := store.NewMemoryStore()
	base := time.Now().UTC()

	deps := []model.Deposit{
		{ID: "1", UserID: alice, TxRef: "tx-1", Amount: d(100), Timestamp: base},
		{ID: "2", UserID: bob, TxRef: "tx-2", Amount: d(50), Timestamp: base.Add(time.Minute)},
		{ID: "3", UserID: alice, TxRef: "tx-3", Amount: d(25), Timestamp: base.Add(2 * time.Minute)},
	}
	for i := range deps {
		if err := ms.InsertDeposit(ctx, &deps[i]); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	dup := model.Deposit{ID: "4", UserID: bob, TxRef: "tx-1"}
	if err := ms.InsertDeposit(ctx, &dup); !errors.Is(err, store.ErrDuplicateTxRef) {
		t.Errorf("expected ErrDuplicateTxRef, got %v", err)
	}

	all, _ := ms.ListDeposits(ctx, "")
	if len(all) != 3 || all[0].ID != "3" || all[2].ID != "1" {
		t.Errorf("expected newest first, got %v", all)
	}

	mine, _ := ms.ListDeposits(ctx, alice)
	if len(mine) != 2 {
		t.Errorf("expected 2 deposits for alice, got %d", len(mine))
	}

	latest, err := ms.LatestDeposit(ctx, bob)
	if err != nil || latest.ID != "2" {
		t.Errorf("expected bob's latest deposit 2, got %v (%v)", latest, err)
	}

	if _, err := ms.LatestDeposit(ctx, "nobody"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	got, err := ms.GetDepositByTxRef(ctx, "tx-2")
	if err != nil || got.UserID != bob {
		t.Errorf("lookup by tx ref failed: %v %v", got, err)
	}
}

func TestMemoryStore_TraderStateMerge(t *testing.T) {
	ctx := context.Background()
	ms := store.NewMemoryStore()

	if _, err := ms.GetTraderState(ctx); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound before first save, got %v", err)
	}

	_ = ms.MergeTraderState(ctx, model.TraderState{
		"pendingOrders": json.RawMessage(`[1]`),
		"autoTradeLog":  json.RawMessage(`["a"]`),
	})
	_ = ms.MergeTraderState(ctx, model.TraderState{
		"pendingOrders": json.RawMessage(`[2,3]`),
	})

	state, err := ms.GetTraderState(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(state["pendingOrders"]) != `[2,3]` {
		t.Errorf("expected pendingOrders replaced, got %s", state["pendingOrders"])
	}
	if string(state["autoTradeLog"]) != `["a"]` {
		t.Errorf("expected autoTradeLog kept, got %s", state["autoTradeLog"])
	}
}
