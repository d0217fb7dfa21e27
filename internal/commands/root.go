// Package commands implements budgetctl, the operator CLI for the ledger store.
package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"budgetbook/internal/cli"
	"budgetbook/internal/clock"
	"budgetbook/internal/config"
	"budgetbook/internal/log"
	"budgetbook/internal/storage"
)

// Version is overridden at build time with -ldflags.
var Version = "dev"

type globals struct {
	dbPath   string
	logLevel string
	clk      clock.Clock
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	return newRootCommand(clock.System{})
}

func newRootCommand(clk clock.Clock) *cobra.Command {
	g := &globals{clk: clk}

	rootCmd := &cobra.Command{
		Use:     "budgetctl",
		Short:   "Operate the budgetbook ledger: migrations, materialization, projections and reports",
		Version: Version,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&g.dbPath, "db", "", "SQLite database path (default $SQLITE_DB_PATH)")
	rootCmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "warn", "log level written to stderr")

	rootCmd.AddCommand(
		newMigrateCommand(g),
		newMaterializeCommand(g),
		newProjectCommand(g),
		newReportCommand(g),
	)

	return rootCmd
}

// config resolves the environment configuration with flag overrides applied.
func (g *globals) config() (*config.Config, error) {
	cfg := config.Load()
	if g.dbPath != "" {
		cfg.SQLiteDBPath = g.dbPath
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (g *globals) logger(w io.Writer) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Level = log.ParseLevel(g.logLevel)
	cfg.Component = log.ComponentCLI
	cfg.Output = w
	return log.New(cfg)
}

// open loads config and the store; the caller closes the repository.
func (g *globals) open(cmd *cobra.Command) (*config.Config, *storage.SQLiteRepository, error) {
	cfg, err := g.config()
	if err != nil {
		return nil, nil, err
	}
	repo, err := cli.OpenStore(g.logger(cmd.ErrOrStderr()), cfg.SQLiteDBPath)
	if err != nil {
		return nil, nil, err
	}
	return cfg, repo, nil
}

func usageError(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}
