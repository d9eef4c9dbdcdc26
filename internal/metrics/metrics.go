// Package metrics provides Prometheus instrumentation for the pool engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// DepositsTotal counts recorded deposits by currency.
	DepositsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pool_deposits_total",
		Help: "Total number of deposits recorded",
	}, []string{"currency"})

	// DepositRejections counts deposits refused before any mutation, by reason.
	DepositRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pool_deposit_rejections_total",
		Help: "Deposits rejected by validation, limits or duplicate detection",
	}, []string{"reason"})

	// SharesIssued tracks cumulative shares issued to depositors.
	SharesIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pool_shares_issued_total",
		Help: "Cumulative shares issued by deposits",
	})

	// TradesTotal counts pool trades by direction.
	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pool_trades_total",
		Help: "Total number of pool trades recorded",
	}, []string{"direction"})

	// TradeLatency tracks snapshot plus distribution time.
	TradeLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pool_trade_latency_seconds",
		Help:    "Trade distribution latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"direction"})

	// WithdrawalsTotal counts recorded withdrawals.
	WithdrawalsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pool_withdrawals_total",
		Help: "Total number of withdrawals recorded",
	})

	// TotalShares mirrors the pool share counter after the last mutation.
	TotalShares = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pool_total_shares",
		Help: "Total shares outstanding",
	})

	// NAV is the issuance NAV of the most recent deposit.
	NAV = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pool_nav",
		Help: "NAV per share at the most recent issuance",
	})

	// ShareDrift is total shares minus the sum of user shares at the last audit.
	ShareDrift = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pool_share_drift",
		Help: "Pool shares not attributed to any user at the last audit",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pool_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pool_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		// chi's wrapper keeps http.Hijacker for WebSocket upgrades.
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		duration := time.Since(start).Seconds()

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		// Use the route pattern for path label to avoid high cardinality.
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

