package store

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/001_init_schema.sql
var migrationSQL string

// Migrate applies the ledger schema. Every statement is idempotent, so it is
// safe to run on each startup.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	slog.Info("running database migrations")

	if _, err := db.Exec(ctx, migrationSQL); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	slog.Info("database migrations complete")
	return nil
}
