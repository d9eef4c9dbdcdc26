package pool_test

import (
	"context"
	"errors"
	"testing"

	"github.com/flub/pool-engine/internal/model"
	"github.com/flub/pool-engine/internal/nav"
	"github.com/flub/pool-engine/internal/pool"
	"github.com/flub/pool-engine/internal/wallet"
)

// seedViews builds a pool at 1600 shares: alice 1000, bob 500, admin 100,
// carol registered without shares. At pool value 3200 the NAV is 2.
func seedViews(t *testing.T, svc *pool.Service) {
	t.Helper()
	register(t, svc, alice, bob, carol, admin)
	deposit(t, svc, alice, 1000, 1000, "tx-alice")
	deposit(t, svc, bob, 500, 1500, "tx-bob")
	deposit(t, svc, admin, 100, 1600, "tx-admin")
}

func TestPosition(t *testing.T) {
	svc, _, _ := newTestService(t)
	seedViews(t, svc)

	pos, err := svc.Position(context.Background(), alice, d(3200))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !pos.NAV.Equal(d(2)) {
		t.Errorf("expected NAV 2, got %s", pos.NAV)
	}
	if !pos.CurrentValue.Equal(d(2000)) {
		t.Errorf("expected value 2000, got %s", pos.CurrentValue)
	}
	if !pos.Allocation.Equal(d(62.5)) {
		t.Errorf("expected allocation 62.5, got %s", pos.Allocation)
	}
	if !pos.TotalDeposited.Equal(d(1000)) {
		t.Errorf("expected 1000 deposited, got %s", pos.TotalDeposited)
	}
}

func TestPosition_UnknownUser(t *testing.T) {
	svc, _, _ := newTestService(t)

	pos, err := svc.Position(context.Background(), alice, d(1000))
	if err != nil {
		t.Fatalf("unknown user should not error, got %v", err)
	}
	if !pos.Shares.IsZero() || !pos.CurrentValue.IsZero() || !pos.NAV.Equal(nav.One) {
		t.Errorf("expected empty position, got %+v", pos)
	}
}

func TestPortfolio(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	seedViews(t, svc)

	if _, err := svc.ExecuteTrade(ctx, pool.TradeRequest{Asset: "SOL", Direction: "buy", Amount: d(16), Price: d(100)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p, err := svc.Portfolio(ctx, bob)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Role != pool.RoleUser || !p.Holdings["SOL"].Equal(d(5)) {
		t.Errorf("unexpected portfolio: %+v", p)
	}

	if _, err := svc.Portfolio(ctx, "nobody"); !errors.Is(err, pool.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestActiveUsers(t *testing.T) {
	svc, _, _ := newTestService(t)
	seedViews(t, svc)

	users, err := svc.ActiveUsers(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(users) != 4 {
		t.Fatalf("expected 4 users, got %d", len(users))
	}
	if users[3].WalletAddress != admin || users[3].Role != pool.RoleAdmin {
		t.Errorf("expected admin last with admin role, got %+v", users[3])
	}
}

func TestLeaderboard(t *testing.T) {
	svc, _, _ := newTestService(t)
	seedViews(t, svc)

	board, err := svc.Leaderboard(context.Background(), d(3200))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(board) != 3 {
		t.Fatalf("expected 3 entries (admin excluded), got %d", len(board))
	}

	want := []struct {
		wallet string
		value  float64
	}{
		{alice, 2000},
		{bob, 1000},
		{carol, 0},
	}
	for i, w := range want {
		e := board[i]
		if e.Rank != i+1 || e.WalletAddress != w.wallet {
			t.Errorf("rank %d: expected %s, got %s (rank %d)", i+1, w.wallet, e.WalletAddress, e.Rank)
		}
		if !e.CurrentValue.Equal(d(w.value)) {
			t.Errorf("rank %d: expected value %v, got %s", i+1, w.value, e.CurrentValue)
		}
		if e.WalletShort != wallet.Short(w.wallet) {
			t.Errorf("rank %d: unexpected short wallet %s", i+1, e.WalletShort)
		}
	}

	if board[0].LastDeposit == nil || !board[0].LastDepositAmount.Equal(d(1000)) {
		t.Errorf("expected alice's last deposit of 1000, got %+v", board[0])
	}
	if board[2].LastDeposit != nil {
		t.Errorf("carol never deposited, got %v", board[2].LastDeposit)
	}
	if !board[0].Allocation.Equal(d(62.5)) {
		t.Errorf("expected allocation 62.5, got %s", board[0].Allocation)
	}
}

func TestLeaderboard_TiesKeepRegistrationOrder(t *testing.T) {
	svc, _, _ := newTestService(t)
	register(t, svc, bob, alice)
	deposit(t, svc, bob, 100, 100, "tx-1")
	deposit(t, svc, alice, 100, 200, "tx-2")

	board, _ := svc.Leaderboard(context.Background(), d(200))
	if board[0].WalletAddress != bob || board[1].WalletAddress != alice {
		t.Errorf("expected registration order on ties, got %s, %s", board[0].WalletAddress, board[1].WalletAddress)
	}
}

func TestAdminStats(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	seedViews(t, svc)

	if _, err := svc.RecordWithdrawal(ctx, pool.WithdrawalRequest{UserID: bob, Amount: d(50)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stats, err := svc.AdminStats(ctx, d(3200))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.UserCount != 4 {
		t.Errorf("expected 4 users, got %d", stats.UserCount)
	}
	if !stats.TotalUserDeposited.Equal(d(1600)) || !stats.TotalUserValue.Equal(d(3200)) {
		t.Errorf("unexpected totals: deposited %s value %s", stats.TotalUserDeposited, stats.TotalUserValue)
	}
	if !stats.NAV.Equal(d(2)) || !stats.TotalShares.Equal(d(1600)) {
		t.Errorf("unexpected NAV %s / shares %s", stats.NAV, stats.TotalShares)
	}
	if !stats.PnLPercent.Equal(d(100)) {
		t.Errorf("expected 100%% P&L, got %s", stats.PnLPercent)
	}
	if stats.DepositCount != 3 || stats.WithdrawalCount != 1 || stats.TradeCount != 0 {
		t.Errorf("unexpected counts: %+v", stats)
	}
	if stats.LastDepositWallet != wallet.Short(admin) || !stats.LastDepositAmount.Equal(d(100)) {
		t.Errorf("unexpected last deposit: %s %s", stats.LastDepositWallet, stats.LastDepositAmount)
	}
	if stats.LastDeposit == nil || stats.LastUserJoined == nil {
		t.Error("expected last deposit and last joined times")
	}
	if stats.DBCounts.PoolState != 1 || stats.DBCounts.Users != 4 {
		t.Errorf("unexpected db counts: %+v", stats.DBCounts)
	}
}

func TestAdminStats_EmptyPool(t *testing.T) {
	svc, _, _ := newTestService(t)

	stats, err := svc.AdminStats(context.Background(), d(0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !stats.NAV.Equal(nav.One) || !stats.PnLPercent.IsZero() || stats.LastDeposit != nil {
		t.Errorf("unexpected empty stats: %+v", stats)
	}
}

func TestTransactions(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	seedViews(t, svc)

	if _, err := svc.ExecuteTrade(ctx, pool.TradeRequest{Asset: "SOL", Direction: "sell", Amount: d(1), Price: d(100)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.RecordWithdrawal(ctx, pool.WithdrawalRequest{UserID: alice, Amount: d(25)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	all, err := svc.Transactions(ctx, admin, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("expected 5 transactions for admin, got %d", len(all))
	}
	if all[0].Kind != model.TxKindWithdrawal || all[1].Kind != model.DirectionSell {
		t.Errorf("expected newest first, got %s, %s", all[0].Kind, all[1].Kind)
	}
	if all[1].Wallet != pool.PoolWallet || all[1].WalletShort != pool.PoolWalletShort || all[1].Price == nil {
		t.Errorf("unexpected trade row: %+v", all[1])
	}
	if all[2].Wallet != admin || !all[2].IsAdmin {
		t.Errorf("expected admin deposit flagged, got %+v", all[2])
	}

	mine, err := svc.Transactions(ctx, alice, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("expected alice's deposit and withdrawal, got %d", len(mine))
	}
	if mine[0].Kind != model.TxKindWithdrawal || mine[1].Kind != model.TxKindDeposit {
		t.Errorf("unexpected order: %s, %s", mine[0].Kind, mine[1].Kind)
	}
	if mine[1].Wallet != "" || mine[1].Shares == nil || !mine[1].Shares.Equal(d(1000)) {
		t.Errorf("unexpected user deposit row: %+v", mine[1])
	}

	none, _ := svc.Transactions(ctx, "", false)
	if len(none) != 0 {
		t.Errorf("expected no transactions without a wallet, got %d", len(none))
	}
}
