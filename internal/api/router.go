package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/flub/pool-engine/internal/events"
	"github.com/flub/pool-engine/internal/metrics"
)

// NewRouter builds the HTTP router. hub may be nil to disable the
// WebSocket endpoint.
func NewRouter(h *Handler, auth *Authenticator, hub *events.WSHub) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metrics.Middleware)
	r.Use(cors)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"pool-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket stream of ledger events. Registered outside the
		// timeout middleware, which would cut long-lived connections.
		if hub != nil {
			r.Get("/ws", hub.HandleWS)
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))
			r.Use(auth.Middleware)

			r.Post("/users/register", h.Register)
			r.Get("/users/{wallet}/portfolio", h.GetPortfolio)
			r.Get("/users/{wallet}/position", h.GetPosition)

			r.Post("/deposits", h.RecordDeposit)
			r.Post("/withdrawals", h.RecordWithdrawal)
			r.Get("/transactions", h.ListTransactions)

			r.Get("/pool/state", h.GetPoolState)
			r.Get("/pool/allocations", h.GetAllocations)
			r.Get("/leaderboard", h.GetLeaderboard)

			// Operator routes.
			r.Group(func(r chi.Router) {
				r.Use(RequireAdmin)

				r.Get("/users", h.ListUsers)
				r.Post("/pool/initialize", h.InitializePool)
				r.Post("/trades", h.ExecuteTrade)
				r.Get("/admin/stats", h.GetAdminStats)
				r.Get("/admin/audit", h.GetAudit)
				r.Get("/trader-state", h.GetTraderState)
				r.Post("/trader-state", h.SaveTraderState)
			})
		})
	})

	return r
}

// cors allows cross-origin requests from the dashboard frontend.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
