// Package api exposes the pool service over HTTP. Handlers decode JSON,
// enforce caller identity and map service errors to status codes.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/flub/pool-engine/internal/model"
	"github.com/flub/pool-engine/internal/nav"
	"github.com/flub/pool-engine/internal/pool"
)

// Handler serves the pool API.
type Handler struct {
	svc *pool.Service
}

// NewHandler creates a handler backed by svc.
func NewHandler(svc *pool.Service) *Handler {
	return &Handler{svc: svc}
}

// --- Request/Response types ---

// DepositRequest is the JSON body for POST /deposits. WalletAddress
// defaults to the caller; only admins may record deposits for others.
type DepositRequest struct {
	WalletAddress  string          `json:"wallet_address"`
	Amount         decimal.Decimal `json:"amount"`
	TxRef          string          `json:"tx_ref"`
	Currency       string          `json:"currency"`
	TotalPoolValue decimal.Decimal `json:"total_pool_value"` // includes this deposit
}

// WithdrawalRequest is the JSON body for POST /withdrawals.
type WithdrawalRequest struct {
	WalletAddress string          `json:"wallet_address"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
}

// TradeRequest is the JSON body for POST /trades.
type TradeRequest struct {
	Asset     string          `json:"asset"`
	Direction string          `json:"direction"` // "buy" or "sell"
	Amount    decimal.Decimal `json:"amount"`
	Price     decimal.Decimal `json:"price"`
}

// InitializeRequest is the JSON body for POST /pool/initialize.
type InitializeRequest struct {
	TotalPoolValue decimal.Decimal `json:"total_pool_value"`
}

// PoolStateResponse is the JSON body for GET /pool/state. NAV is only set
// when the caller passes pool_value.
type PoolStateResponse struct {
	model.PoolState
	Initialized bool             `json:"initialized"`
	NAV         *decimal.Decimal `json:"nav,omitempty"`
}

// RegisterResponse is the JSON body for POST /users/register.
type RegisterResponse struct {
	*model.Profile
	Created bool `json:"created"`
}

// --- HTTP Handlers ---

// Register handles POST /api/v1/users/register
// Creates the caller's user record, or refreshes its last login.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())

	profile, created, err := h.svc.RegisterUser(r.Context(), id.Wallet)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, RegisterResponse{Profile: profile, Created: created})
}

// ListUsers handles GET /api/v1/users (admin)
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.ActiveUsers(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// GetPortfolio handles GET /api/v1/users/{wallet}/portfolio
func (h *Handler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	wallet, ok := ownWallet(w, r, chi.URLParam(r, "wallet"))
	if !ok {
		return
	}

	profile, err := h.svc.Portfolio(r.Context(), wallet)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// GetPosition handles GET /api/v1/users/{wallet}/position?pool_value=
func (h *Handler) GetPosition(w http.ResponseWriter, r *http.Request) {
	wallet, ok := ownWallet(w, r, chi.URLParam(r, "wallet"))
	if !ok {
		return
	}
	poolValue, ok := poolValueParam(w, r, true)
	if !ok {
		return
	}

	pos, err := h.svc.Position(r.Context(), wallet, poolValue)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pos)
}

// RecordDeposit handles POST /api/v1/deposits
func (h *Handler) RecordDeposit(w http.ResponseWriter, r *http.Request) {
	var req DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	wallet, ok := ownWallet(w, r, req.WalletAddress)
	if !ok {
		return
	}

	result, err := h.svc.RecordDeposit(r.Context(), pool.DepositRequest{
		UserID:         wallet,
		Amount:         req.Amount,
		TxRef:          req.TxRef,
		Currency:       req.Currency,
		TotalPoolValue: req.TotalPoolValue,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// RecordWithdrawal handles POST /api/v1/withdrawals
func (h *Handler) RecordWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req WithdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	wallet, ok := ownWallet(w, r, req.WalletAddress)
	if !ok {
		return
	}

	wd, err := h.svc.RecordWithdrawal(r.Context(), pool.WithdrawalRequest{
		UserID:   wallet,
		Amount:   req.Amount,
		Currency: req.Currency,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, wd)
}

// ListTransactions handles GET /api/v1/transactions
// Admins see the whole history; users see their own.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())

	txs, err := h.svc.Transactions(r.Context(), id.Wallet, id.IsAdmin)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

// GetPoolState handles GET /api/v1/pool/state?pool_value=
func (h *Handler) GetPoolState(w http.ResponseWriter, r *http.Request) {
	poolValue, ok := poolValueParam(w, r, false)
	if !ok {
		return
	}

	state, err := h.svc.PoolState(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp := PoolStateResponse{PoolState: state, Initialized: state.Initialized()}
	if r.URL.Query().Get("pool_value") != "" {
		price := nav.NAV(poolValue, state.TotalShares)
		resp.NAV = &price
	}
	writeJSON(w, http.StatusOK, resp)
}

// InitializePool handles POST /api/v1/pool/initialize (admin)
// Returns 201 on first initialization and 200 with the existing state after.
func (h *Handler) InitializePool(w http.ResponseWriter, r *http.Request) {
	var req InitializeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.svc.InitializePool(r.Context(), req.TotalPoolValue)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	status := http.StatusCreated
	if result.AlreadyInitialized {
		status = http.StatusOK
	}
	writeJSON(w, status, result)
}

// GetAllocations handles GET /api/v1/pool/allocations
// Recomputes and returns every holder's allocation percentage.
func (h *Handler) GetAllocations(w http.ResponseWriter, r *http.Request) {
	allocs, err := h.svc.SnapshotAllocations(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, allocs)
}

// ExecuteTrade handles POST /api/v1/trades (admin)
func (h *Handler) ExecuteTrade(w http.ResponseWriter, r *http.Request) {
	var req TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.svc.ExecuteTrade(r.Context(), pool.TradeRequest{
		Asset:     req.Asset,
		Direction: req.Direction,
		Amount:    req.Amount,
		Price:     req.Price,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// GetLeaderboard handles GET /api/v1/leaderboard?pool_value=
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	poolValue, ok := poolValueParam(w, r, true)
	if !ok {
		return
	}

	board, err := h.svc.Leaderboard(r.Context(), poolValue)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

// GetAdminStats handles GET /api/v1/admin/stats?pool_value= (admin)
func (h *Handler) GetAdminStats(w http.ResponseWriter, r *http.Request) {
	poolValue, ok := poolValueParam(w, r, true)
	if !ok {
		return
	}

	stats, err := h.svc.AdminStats(r.Context(), poolValue)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// GetAudit handles GET /api/v1/admin/audit (admin)
func (h *Handler) GetAudit(w http.ResponseWriter, r *http.Request) {
	audit, err := h.svc.AuditShares(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, audit)
}

// GetTraderState handles GET /api/v1/trader-state (admin)
func (h *Handler) GetTraderState(w http.ResponseWriter, r *http.Request) {
	state, err := h.svc.TraderState(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// SaveTraderState handles POST /api/v1/trader-state (admin)
// Merges the posted keys into the stored state.
func (h *Handler) SaveTraderState(w http.ResponseWriter, r *http.Request) {
	var patch model.TraderState
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.svc.SaveTraderState(r.Context(), patch); err != nil {
		writeServiceError(w, r, err)
		return
	}

	state, err := h.svc.TraderState(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// --- Helpers ---

// ownWallet resolves the wallet a request acts on. An empty target means
// the caller; a different wallet requires admin rights.
func ownWallet(w http.ResponseWriter, r *http.Request, target string) (string, bool) {
	id, _ := IdentityFrom(r.Context())
	target = strings.TrimSpace(target)
	if target == "" {
		return id.Wallet, true
	}
	if target != id.Wallet && !id.IsAdmin {
		writeError(w, "cannot act on another wallet", http.StatusForbidden)
		return "", false
	}
	return target, true
}

// poolValueParam parses the pool_value query parameter.
func poolValueParam(w http.ResponseWriter, r *http.Request, required bool) (decimal.Decimal, bool) {
	raw := r.URL.Query().Get("pool_value")
	if raw == "" {
		if required {
			writeError(w, "pool_value is required", http.StatusBadRequest)
			return decimal.Zero, false
		}
		return decimal.Zero, true
	}

	v, err := decimal.NewFromString(raw)
	if err != nil || v.IsNegative() {
		writeError(w, "pool_value must be a non-negative number", http.StatusBadRequest)
		return decimal.Zero, false
	}
	return v, true
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, pool.ErrInvalidInput):
		writeError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, pool.ErrNotFound):
		writeError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, pool.ErrDuplicateTransaction):
		writeError(w, err.Error(), http.StatusConflict)
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
