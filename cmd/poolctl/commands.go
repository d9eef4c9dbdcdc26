package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"github.com/flub/pool-engine/internal/api"
	"github.com/flub/pool-engine/internal/config"
	"github.com/flub/pool-engine/internal/store"
	"github.com/flub/pool-engine/internal/wallet"
)

// migrateCmd applies the database schema.
type migrateCmd struct{}

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "apply the database schema" }
func (*migrateCmd) Usage() string {
	return `poolctl migrate

  Creates any missing tables in the database named by DATABASE_URL.
`
}
func (*migrateCmd) SetFlags(*flag.FlagSet) {}

func (*migrateCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	e, err := openEnv(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer e.Close()

	if err := store.Migrate(ctx, e.db); err != nil {
		fmt.Fprintf(os.Stderr, "Error applying migrations: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Println("schema up to date")
	return subcommands.ExitSuccess
}

// initPoolCmd issues the opening shares.
type initPoolCmd struct {
	value string
}

func (*initPoolCmd) Name() string     { return "init-pool" }
func (*initPoolCmd) Synopsis() string { return "initialize the pool at NAV 1" }
func (*initPoolCmd) Usage() string {
	return `poolctl init-pool -value <total_pool_value>

  Issues one share per unit of the current pool value. Does nothing if the
  pool already has shares.
`
}

func (c *initPoolCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.value, "value", "", "current total pool value")
}

func (c *initPoolCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	value, err := decimal.NewFromString(c.value)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing -value: %v\n", err)
		return subcommands.ExitUsageError
	}

	e, err := openEnv(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer e.Close()

	res, err := e.svc.InitializePool(ctx, value)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing pool: %v\n", err)
		return subcommands.ExitFailure
	}
	if res.AlreadyInitialized {
		fmt.Printf("pool already initialized with %s shares\n", res.TotalShares.StringFixed(6))
		return subcommands.ExitSuccess
	}
	fmt.Printf("pool initialized with %s shares at NAV %s\n", res.TotalShares.StringFixed(6), res.NAV)
	return subcommands.ExitSuccess
}

// recalcCmd runs the maintenance job once.
type recalcCmd struct {
	timeout time.Duration
}

func (*recalcCmd) Name() string     { return "recalc" }
func (*recalcCmd) Synopsis() string { return "recompute allocations and audit share totals" }
func (*recalcCmd) Usage() string {
	return `poolctl recalc [-timeout <duration>]

  Runs the same job as the server's RECALC_SCHEDULE once and prints the
  share audit.
`
}

func (c *recalcCmd) SetFlags(f *flag.FlagSet) {
	f.DurationVar(&c.timeout, "timeout", time.Minute, "job timeout")
}

func (c *recalcCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	e, err := openEnv(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer e.Close()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := e.svc.RecalculateAllocations(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error recalculating allocations: %v\n", err)
		return subcommands.ExitFailure
	}
	audit, err := e.svc.AuditShares(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error auditing shares: %v\n", err)
		return subcommands.ExitFailure
	}
	printMarkdown(auditMarkdown(audit))
	return subcommands.ExitSuccess
}

// auditCmd compares the pool counter with the users' shares.
type auditCmd struct{}

func (*auditCmd) Name() string     { return "audit" }
func (*auditCmd) Synopsis() string { return "compare total shares with the sum of user shares" }
func (*auditCmd) Usage() string {
	return `poolctl audit

  Reports shares held by no user, such as those issued by bootstrapping.
`
}
func (*auditCmd) SetFlags(*flag.FlagSet) {}

func (*auditCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	e, err := openEnv(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer e.Close()

	audit, err := e.svc.AuditShares(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error auditing shares: %v\n", err)
		return subcommands.ExitFailure
	}
	printMarkdown(auditMarkdown(audit))
	return subcommands.ExitSuccess
}

// statsCmd prints the admin dashboard.
type statsCmd struct {
	poolValue string
}

func (*statsCmd) Name() string     { return "stats" }
func (*statsCmd) Synopsis() string { return "display pool statistics" }
func (*statsCmd) Usage() string {
	return `poolctl stats -pool-value <value>

  Displays NAV, totals and activity counts at the given pool value.
`
}

func (c *statsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.poolValue, "pool-value", "", "current total pool value")
}

func (c *statsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	value, err := decimal.NewFromString(c.poolValue)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing -pool-value: %v\n", err)
		return subcommands.ExitUsageError
	}

	e, err := openEnv(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer e.Close()

	stats, err := e.svc.AdminStats(ctx, value)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading stats: %v\n", err)
		return subcommands.ExitFailure
	}
	printMarkdown(statsMarkdown(stats))
	return subcommands.ExitSuccess
}

// leaderboardCmd prints the ranking.
type leaderboardCmd struct {
	poolValue string
}

func (*leaderboardCmd) Name() string     { return "leaderboard" }
func (*leaderboardCmd) Synopsis() string { return "rank participants by current value" }
func (*leaderboardCmd) Usage() string {
	return `poolctl leaderboard -pool-value <value>
`
}

func (c *leaderboardCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.poolValue, "pool-value", "", "current total pool value")
}

func (c *leaderboardCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	value, err := decimal.NewFromString(c.poolValue)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing -pool-value: %v\n", err)
		return subcommands.ExitUsageError
	}

	e, err := openEnv(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer e.Close()

	board, err := e.svc.Leaderboard(ctx, value)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading leaderboard: %v\n", err)
		return subcommands.ExitFailure
	}
	printMarkdown(leaderboardMarkdown(board))
	return subcommands.ExitSuccess
}

// traderStateCmd prints the automation blob, or one value from it.
type traderStateCmd struct {
	path string
}

func (*traderStateCmd) Name() string     { return "trader-state" }
func (*traderStateCmd) Synopsis() string { return "display the shared trader state" }
func (*traderStateCmd) Usage() string {
	return `poolctl trader-state [-path <jsonpath>]

  Prints the stored trader state as JSON. With -path, prints only the
  matching value, e.g. -path '$.autoTiers.tier1.deviation'.
`
}

func (c *traderStateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.path, "path", "", "JSONPath expression to select")
}

func (c *traderStateCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	e, err := openEnv(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer e.Close()

	state, err := e.svc.TraderState(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading trader state: %v\n", err)
		return subcommands.ExitFailure
	}

	var out any = state
	if c.path != "" {
		if out, err = selectPath(state, c.path); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// tokenCmd mints a bearer token for the HTTP API.
type tokenCmd struct {
	wallet string
	ttl    time.Duration
}

func (*tokenCmd) Name() string     { return "token" }
func (*tokenCmd) Synopsis() string { return "mint an API bearer token for a wallet" }
func (*tokenCmd) Usage() string {
	return `poolctl token -wallet <address> [-ttl <duration>]

  Signs a token with JWT_SECRET. Does not require a database.
`
}

func (c *tokenCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.wallet, "wallet", "", "wallet address the token is issued to")
	f.DurationVar(&c.ttl, "ttl", 24*time.Hour, "token lifetime")
}

func (c *tokenCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := wallet.Validate(c.wallet); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	if cfg.Auth.JWTSecret == "" {
		fmt.Fprintln(os.Stderr, "JWT_SECRET is not set")
		return subcommands.ExitFailure
	}

	tok, err := api.NewToken(cfg.Auth.JWTSecret, c.wallet, c.ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error signing token: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Println(tok)
	return subcommands.ExitSuccess
}
