package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/flub/pool-engine/internal/config"
	"github.com/flub/pool-engine/internal/limits"
	"github.com/flub/pool-engine/internal/pool"
	"github.com/flub/pool-engine/internal/store"
)

var errNoDatabase = errors.New("DATABASE_URL is not set")

// env is the configured backend shared by the commands.
type env struct {
	cfg *config.Config
	db  *pgxpool.Pool
	rdb *redis.Client
	svc *pool.Service
}

// openEnv connects to the database and builds a pool service over it.
// Events are not published from the CLI.
func openEnv(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cfg.Database.URL == "" {
		return nil, errNoDatabase
	}

	db, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	e := &env{cfg: cfg, db: db}

	var st store.Store = store.NewPostgresStore(db)
	if cfg.Redis.URL != "" {
		opt, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		// Writes must still invalidate the server's cached entries.
		e.rdb = redis.NewClient(opt)
		st = store.NewCachedStore(st, e.rdb, cfg.Redis.CacheTTL)
	}

	e.svc = pool.NewService(st, limits.NewDepositLimiter(cfg.Pool.MaxDeposit, cfg.Pool.MaxUserDeposited), nil, pool.Config{
		AdminWallets:       cfg.Auth.AdminWallets,
		AcceptedCurrencies: cfg.Pool.AcceptedCurrencies,
	})
	return e, nil
}

func (e *env) Close() {
	if e.rdb != nil {
		e.rdb.Close()
	}
	e.db.Close()
}
