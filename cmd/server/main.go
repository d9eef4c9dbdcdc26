package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/redis/go-redis/v9"

	"github.com/flub/pool-engine/internal/api"
	"github.com/flub/pool-engine/internal/config"
	"github.com/flub/pool-engine/internal/events"
	"github.com/flub/pool-engine/internal/limits"
	"github.com/flub/pool-engine/internal/pool"
	"github.com/flub/pool-engine/internal/scheduler"
	"github.com/flub/pool-engine/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	if cfg.Auth.JWTSecret == "" {
		slog.Error("JWT_SECRET must be set")
		os.Exit(1)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	if cfg.Database.URL != "" {
		db, err := pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, db.Close)
		if err := store.Migrate(ctx, db); err != nil {
			slog.Error("migration failed", "err", err)
			os.Exit(1)
		}
		st = store.NewPostgresStore(db)
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if cfg.Redis.URL != "" {
			opt, err := redis.ParseURL(cfg.Redis.URL)
			if err != nil {
				slog.Error("invalid REDIS_URL", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, cfg.Redis.CacheTTL)
			slog.Info("Redis cache enabled", "ttl", cfg.Redis.CacheTTL)
		}
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Event fan-out ---
	wsHub := events.NewWSHub()
	go wsHub.Run()
	notifiers := events.Fanout{wsHub}

	if cfg.NATS.URL != "" {
		nc, err := nats.Connect(cfg.NATS.URL, nats.Name("pool-engine"))
		if err != nil {
			slog.Error("NATS connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, nc.Close)

		js, err := jetstream.New(nc)
		if err != nil {
			slog.Error("JetStream unavailable", "err", err)
			os.Exit(1)
		}
		if err := events.EnsureStream(ctx, js); err != nil {
			slog.Error("event stream setup failed", "err", err)
			os.Exit(1)
		}

		publisher := events.NewNATSPublisher(js, 256)
		go func() {
			if err := publisher.Run(ctx); err != nil {
				slog.Info("event publisher stopped", "err", err)
			}
		}()
		notifiers = append(notifiers, publisher)
		slog.Info("publishing events to NATS", "stream", events.StreamName)
	}

	// --- Pool service ---
	limiter := limits.NewDepositLimiter(cfg.Pool.MaxDeposit, cfg.Pool.MaxUserDeposited)
	poolSvc := pool.NewService(st, limiter, notifiers, pool.Config{
		AdminWallets:       cfg.Auth.AdminWallets,
		AcceptedCurrencies: cfg.Pool.AcceptedCurrencies,
	})

	if cfg.Scheduler.RecalcSchedule != "" {
		sched := scheduler.NewScheduler(poolSvc, time.Minute)
		if err := sched.Start(cfg.Scheduler.RecalcSchedule); err != nil {
			slog.Error("invalid RECALC_SCHEDULE", "err", err)
			os.Exit(1)
		}
		defer sched.Stop()
	}

	// --- HTTP router ---
	auth := api.NewAuthenticator(cfg.Auth.JWTSecret, poolSvc.IsAdmin)
	r := api.NewRouter(api.NewHandler(poolSvc), auth, wsHub)

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("pool-engine listening", "port", cfg.Server.Port, "admins", len(cfg.Auth.AdminWallets))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down pool-engine...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	stop()
	fmt.Println("pool-engine stopped")
}
