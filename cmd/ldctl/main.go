// Command ldctl runs maintenance tasks against the association database:
// schema migrations, bulk imports and account bootstrap.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/rog/backend/internal/infra"
)

// cliContext is shared by all subcommands. Config is loaded once in the
// root PersistentPreRunE.
type cliContext struct {
	cfg    *infra.Config
	logger *slog.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	cc := &cliContext{}
	var envFile string

	rootCmd := &cobra.Command{
		Use:           "ldctl",
		Short:         "Maintenance CLI for the hunting association backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := infra.LoadDotEnv(envFile); err != nil {
			return err
		}
		cfg, err := infra.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		// The CLI never issues tokens, so secret checks do not apply.
		cfg.AllowInsecureDefaults = true
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		cc.cfg = cfg
		cc.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
		return nil
	}

	rootCmd.AddCommand(
		migrateCommand(cc),
		importCommand(cc),
		accountCommand(cc),
	)
	return rootCmd
}

// connect opens a pool against the configured database.
func (cc *cliContext) connect(ctx context.Context) (*pgxpool.Pool, error) {
	pool, err := infra.NewPostgresPool(ctx, cc.cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return pool, nil
}
