package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/flub/pool-engine/internal/api"
	"github.com/flub/pool-engine/internal/model"
	"github.com/flub/pool-engine/internal/pool"
	"github.com/flub/pool-engine/internal/store"
)

const secret = "test-secret"

const (
	alice = "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin"
	bob   = "So11111111111111111111111111111111111111112"
	admin = "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// newTestEnv creates the full router over an in-memory store.
func newTestEnv(t *testing.T) (*pool.Service, chi.Router) {
	t.Helper()
	svc := pool.NewService(store.NewMemoryStore(), nil, nil, pool.Config{
		AdminWallets: []string{admin},
	})
	auth := api.NewAuthenticator(secret, svc.IsAdmin)
	return svc, api.NewRouter(api.NewHandler(svc), auth, nil)
}

func token(t *testing.T, wallet string) string {
	t.Helper()
	tok, err := api.NewToken(secret, wallet, time.Hour)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return tok
}

// do sends a request as wallet. An empty wallet sends no token.
func do(t *testing.T, r chi.Router, method, path, wallet string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if wallet != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, wallet))
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v (body %s)", err, w.Body.String())
	}
}

func TestHealth(t *testing.T) {
	_, r := newTestEnv(t)

	w := do(t, r, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestAuth_Rejections(t *testing.T) {
	_, r := newTestEnv(t)

	w := do(t, r, http.MethodGet, "/api/v1/transactions", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("missing token: expected 401, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/transactions", nil)
	req.Header.Set("Authorization", "Token abc")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad scheme: expected 401, got %d", rec.Code)
	}

	other, _ := api.NewToken("other-secret", alice, time.Hour)
	req = httptest.NewRequest(http.MethodGet, "/api/v1/transactions", nil)
	req.Header.Set("Authorization", "Bearer "+other)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong secret: expected 401, got %d", rec.Code)
	}

	expired, _ := api.NewToken(secret, alice, -time.Minute)
	req = httptest.NewRequest(http.MethodGet, "/api/v1/transactions", nil)
	req.Header.Set("Authorization", "Bearer "+expired)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expired: expected 401, got %d", rec.Code)
	}
}

func TestParseToken(t *testing.T) {
	tok, err := api.NewToken(secret, alice, time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wallet, err := api.ParseToken(secret, tok)
	if err != nil || wallet != alice {
		t.Errorf("expected %s, got %s (%v)", alice, wallet, err)
	}
}

func TestRegister(t *testing.T) {
	_, r := newTestEnv(t)

	w := do(t, r, http.MethodPost, "/api/v1/users/register", alice, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp api.RegisterResponse
	decode(t, w, &resp)
	if resp.WalletAddress != alice || resp.Role != pool.RoleUser || !resp.Created {
		t.Errorf("unexpected response: %+v", resp)
	}

	w = do(t, r, http.MethodPost, "/api/v1/users/register", alice, nil)
	if w.Code != http.StatusOK {
		t.Errorf("re-register: expected 200, got %d", w.Code)
	}

	w = do(t, r, http.MethodPost, "/api/v1/users/register", admin, nil)
	decode(t, w, &resp)
	if resp.Role != pool.RoleAdmin {
		t.Errorf("expected admin role, got %s", resp.Role)
	}
}

func TestRegister_InvalidWallet(t *testing.T) {
	_, r := newTestEnv(t)

	w := do(t, r, http.MethodPost, "/api/v1/users/register", "not-a-wallet", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestDeposit(t *testing.T) {
	_, r := newTestEnv(t)
	do(t, r, http.MethodPost, "/api/v1/users/register", alice, nil)
	do(t, r, http.MethodPost, "/api/v1/users/register", bob, nil)

	w := do(t, r, http.MethodPost, "/api/v1/deposits", alice, api.DepositRequest{
		Amount: d(1000), TxRef: "tx-1", TotalPoolValue: d(1000),
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var res pool.DepositResult
	decode(t, w, &res)
	if !res.SharesIssued.Equal(d(1000)) || !res.NAV.Equal(d(1)) {
		t.Errorf("unexpected result: %+v", res)
	}

	// Bob deposits 500 after the pool grew to 1500 before his capital.
	w = do(t, r, http.MethodPost, "/api/v1/deposits", bob, api.DepositRequest{
		Amount: d(500), TxRef: "tx-2", TotalPoolValue: d(2000),
	})
	decode(t, w, &res)
	if !res.NAV.Equal(d(1.5)) || !res.TotalShares.Round(6).Equal(d(1333.333333)) {
		t.Errorf("unexpected result: %+v", res)
	}

	w = do(t, r, http.MethodPost, "/api/v1/deposits", bob, api.DepositRequest{
		Amount: d(500), TxRef: "tx-2", TotalPoolValue: d(2500),
	})
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate: expected 409, got %d", w.Code)
	}
}

func TestDeposit_Errors(t *testing.T) {
	_, r := newTestEnv(t)
	do(t, r, http.MethodPost, "/api/v1/users/register", alice, nil)

	tests := []struct {
		name   string
		wallet string
		body   any
		want   int
	}{
		{"zero amount", alice, api.DepositRequest{Amount: d(0), TxRef: "a", TotalPoolValue: d(1)}, http.StatusBadRequest},
		{"missing tx ref", alice, api.DepositRequest{Amount: d(1), TotalPoolValue: d(1)}, http.StatusBadRequest},
		{"unregistered", bob, api.DepositRequest{Amount: d(1), TxRef: "b", TotalPoolValue: d(1)}, http.StatusNotFound},
		{"other wallet", bob, api.DepositRequest{WalletAddress: alice, Amount: d(1), TxRef: "c", TotalPoolValue: d(1)}, http.StatusForbidden},
		{"bad body", alice, "not json object", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, r, http.MethodPost, "/api/v1/deposits", tt.wallet, tt.body)
			if w.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestDeposit_AdminForOtherWallet(t *testing.T) {
	_, r := newTestEnv(t)
	do(t, r, http.MethodPost, "/api/v1/users/register", alice, nil)

	w := do(t, r, http.MethodPost, "/api/v1/deposits", admin, api.DepositRequest{
		WalletAddress: alice, Amount: d(100), TxRef: "tx-admin", TotalPoolValue: d(100),
	})
	if w.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAdminRoutes_Forbidden(t *testing.T) {
	_, r := newTestEnv(t)

	routes := []struct{ method, path string }{
		{http.MethodGet, "/api/v1/users"},
		{http.MethodPost, "/api/v1/pool/initialize"},
		{http.MethodPost, "/api/v1/trades"},
		{http.MethodGet, "/api/v1/admin/stats?pool_value=1"},
		{http.MethodGet, "/api/v1/admin/audit"},
		{http.MethodGet, "/api/v1/trader-state"},
		{http.MethodPost, "/api/v1/trader-state"},
	}
	for _, rt := range routes {
		w := do(t, r, rt.method, rt.path, alice, map[string]any{})
		if w.Code != http.StatusForbidden {
			t.Errorf("%s %s: expected 403, got %d", rt.method, rt.path, w.Code)
		}
	}
}

func TestInitializePool(t *testing.T) {
	_, r := newTestEnv(t)

	w := do(t, r, http.MethodPost, "/api/v1/pool/initialize", admin, api.InitializeRequest{TotalPoolValue: d(5000)})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	w = do(t, r, http.MethodPost, "/api/v1/pool/initialize", admin, api.InitializeRequest{TotalPoolValue: d(9000)})
	if w.Code != http.StatusOK {
		t.Fatalf("second init: expected 200, got %d", w.Code)
	}
	var res pool.InitResult
	decode(t, w, &res)
	if !res.AlreadyInitialized || !res.TotalShares.Equal(d(5000)) {
		t.Errorf("unexpected result: %+v", res)
	}

	w = do(t, r, http.MethodGet, "/api/v1/pool/state?pool_value=10000", alice, nil)
	var state api.PoolStateResponse
	decode(t, w, &state)
	if !state.Initialized || state.NAV == nil || !state.NAV.Equal(d(2)) {
		t.Errorf("unexpected state: %+v", state)
	}

	w = do(t, r, http.MethodGet, "/api/v1/pool/state", alice, nil)
	state = api.PoolStateResponse{}
	decode(t, w, &state)
	if state.NAV != nil {
		t.Errorf("expected no NAV without pool_value, got %s", state.NAV)
	}
}

func TestTradeFlow(t *testing.T) {
	_, r := newTestEnv(t)
	do(t, r, http.MethodPost, "/api/v1/users/register", alice, nil)
	do(t, r, http.MethodPost, "/api/v1/users/register", bob, nil)
	do(t, r, http.MethodPost, "/api/v1/deposits", alice, api.DepositRequest{Amount: d(600), TxRef: "a", TotalPoolValue: d(600)})
	do(t, r, http.MethodPost, "/api/v1/deposits", bob, api.DepositRequest{Amount: d(400), TxRef: "b", TotalPoolValue: d(1000)})

	w := do(t, r, http.MethodPost, "/api/v1/trades", admin, api.TradeRequest{
		Asset: "sol", Direction: "BUY", Amount: d(10), Price: d(150),
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var res pool.TradeResult
	decode(t, w, &res)
	if res.UsersUpdated != 2 {
		t.Errorf("expected 2 users updated, got %d", res.UsersUpdated)
	}

	w = do(t, r, http.MethodGet, "/api/v1/users/"+alice+"/portfolio", alice, nil)
	var p model.Profile
	decode(t, w, &p)
	if !p.Holdings["SOL"].Equal(d(6)) {
		t.Errorf("expected 6 SOL for alice, got %s", p.Holdings["SOL"])
	}

	w = do(t, r, http.MethodGet, "/api/v1/users/"+bob+"/portfolio", alice, nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("foreign portfolio: expected 403, got %d", w.Code)
	}

	w = do(t, r, http.MethodPost, "/api/v1/trades", admin, api.TradeRequest{
		Asset: "SOL", Direction: "hold", Amount: d(1), Price: d(1),
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad direction: expected 400, got %d", w.Code)
	}

	w = do(t, r, http.MethodGet, "/api/v1/pool/allocations", bob, nil)
	var allocs map[string]decimal.Decimal
	decode(t, w, &allocs)
	if !allocs[alice].Equal(d(60)) || !allocs[bob].Equal(d(40)) {
		t.Errorf("unexpected allocations: %v", allocs)
	}
}

func TestPositionAndLeaderboard(t *testing.T) {
	_, r := newTestEnv(t)
	do(t, r, http.MethodPost, "/api/v1/users/register", alice, nil)
	do(t, r, http.MethodPost, "/api/v1/deposits", alice, api.DepositRequest{Amount: d(100), TxRef: "a", TotalPoolValue: d(100)})

	w := do(t, r, http.MethodGet, "/api/v1/users/"+alice+"/position?pool_value=250", alice, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var pos model.Position
	decode(t, w, &pos)
	if !pos.CurrentValue.Equal(d(250)) || !pos.NAV.Equal(d(2.5)) {
		t.Errorf("unexpected position: %+v", pos)
	}

	w = do(t, r, http.MethodGet, "/api/v1/users/"+alice+"/position", alice, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing pool_value: expected 400, got %d", w.Code)
	}
	w = do(t, r, http.MethodGet, "/api/v1/users/"+alice+"/position?pool_value=-1", alice, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("negative pool_value: expected 400, got %d", w.Code)
	}

	w = do(t, r, http.MethodGet, "/api/v1/leaderboard?pool_value=250", bob, nil)
	var board []model.LeaderboardEntry
	decode(t, w, &board)
	if len(board) != 1 || board[0].WalletAddress != alice || !board[0].CurrentValue.Equal(d(250)) {
		t.Errorf("unexpected leaderboard: %+v", board)
	}
}

func TestTransactions(t *testing.T) {
	_, r := newTestEnv(t)
	do(t, r, http.MethodPost, "/api/v1/users/register", alice, nil)
	do(t, r, http.MethodPost, "/api/v1/users/register", bob, nil)
	do(t, r, http.MethodPost, "/api/v1/deposits", alice, api.DepositRequest{Amount: d(100), TxRef: "a", TotalPoolValue: d(100)})
	do(t, r, http.MethodPost, "/api/v1/deposits", bob, api.DepositRequest{Amount: d(100), TxRef: "b", TotalPoolValue: d(200)})

	w := do(t, r, http.MethodPost, "/api/v1/withdrawals", alice, api.WithdrawalRequest{Amount: d(10)})
	if w.Code != http.StatusCreated {
		t.Fatalf("withdrawal: expected 201, got %d: %s", w.Code, w.Body.String())
	}

	w = do(t, r, http.MethodGet, "/api/v1/transactions", alice, nil)
	var txs []model.Transaction
	decode(t, w, &txs)
	if len(txs) != 2 {
		t.Errorf("expected alice's 2 transactions, got %d", len(txs))
	}

	w = do(t, r, http.MethodGet, "/api/v1/transactions", admin, nil)
	txs = nil
	decode(t, w, &txs)
	if len(txs) != 3 {
		t.Errorf("expected 3 transactions for admin, got %d", len(txs))
	}
}

func TestAdminStatsAndAudit(t *testing.T) {
	_, r := newTestEnv(t)
	do(t, r, http.MethodPost, "/api/v1/users/register", alice, nil)
	do(t, r, http.MethodPost, "/api/v1/deposits", alice, api.DepositRequest{Amount: d(100), TxRef: "a", TotalPoolValue: d(100)})

	w := do(t, r, http.MethodGet, "/api/v1/admin/stats?pool_value=150", admin, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var stats model.AdminStats
	decode(t, w, &stats)
	if stats.UserCount != 1 || !stats.PnLPercent.Equal(d(50)) {
		t.Errorf("unexpected stats: %+v", stats)
	}

	w = do(t, r, http.MethodGet, "/api/v1/admin/audit", admin, nil)
	var audit model.ShareAudit
	decode(t, w, &audit)
	if !audit.Unattributed.IsZero() {
		t.Errorf("expected no unattributed shares, got %s", audit.Unattributed)
	}
}

func TestTraderState(t *testing.T) {
	_, r := newTestEnv(t)

	w := do(t, r, http.MethodGet, "/api/v1/trader-state", admin, nil)
	var state map[string]json.RawMessage
	decode(t, w, &state)
	if string(state["pendingOrders"]) != "[]" {
		t.Errorf("expected default pendingOrders, got %s", state["pendingOrders"])
	}

	w = do(t, r, http.MethodPost, "/api/v1/trader-state", admin, map[string]any{
		"pendingOrders": []map[string]any{{"asset": "SOL", "side": "buy"}},
		"bogus":         1,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	state = nil
	decode(t, w, &state)
	if _, ok := state["bogus"]; ok {
		t.Error("unknown key should be ignored")
	}
	var orders []map[string]string
	if err := json.Unmarshal(state["pendingOrders"], &orders); err != nil || len(orders) != 1 || orders[0]["asset"] != "SOL" {
		t.Errorf("unexpected pendingOrders: %s", state["pendingOrders"])
	}

	w = do(t, r, http.MethodPost, "/api/v1/trader-state", admin, map[string]any{"bogus": 1})
	if w.Code != http.StatusBadRequest {
		t.Errorf("only unknown keys: expected 400, got %d", w.Code)
	}
}
