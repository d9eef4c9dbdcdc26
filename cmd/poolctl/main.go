// Command poolctl is the operator CLI for the pool engine. It works directly
// against the configured database.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"path"

	"github.com/google/subcommands"
	"github.com/joho/godotenv"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))
	_ = godotenv.Load()

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")

	commander.Register(&migrateCmd{}, "database")
	commander.Register(&initPoolCmd{}, "pool")
	commander.Register(&recalcCmd{}, "pool")
	commander.Register(&auditCmd{}, "pool")
	commander.Register(&statsCmd{}, "reports")
	commander.Register(&leaderboardCmd{}, "reports")
	commander.Register(&traderStateCmd{}, "reports")
	commander.Register(&tokenCmd{}, "auth")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
