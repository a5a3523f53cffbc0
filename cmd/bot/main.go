package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/spf13/cobra"

	"github.com/ivanoskov/lazzyfinance/internal/config"
	"github.com/ivanoskov/lazzyfinance/internal/logging"
	"github.com/ivanoskov/lazzyfinance/internal/repository"
)

var rootCmd = &cobra.Command{
	Use:   "lazzyfinance",
	Short: "💸 LazzyFinance Telegram finance bot",
	Long: `LazzyFinance records expenses and income sent to a Telegram bot in plain
Portuguese, reminds about fixed monthly expenses and serves the data to a
web dashboard.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(remindCmd())
	rootCmd.AddCommand(migrateCmd())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads the configuration and installs the logger.
func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger := logging.Setup(logging.NewConfig(cfg.LogLevel, cfg.LogFormat))
	return cfg, logger, nil
}

// openRepository connects to the configured ledger backend. The postgres
// backend is migrated on connect.
func openRepository(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repository.Repository, error) {
	switch cfg.LedgerBackend {
	case config.BackendPostgres:
		repo, err := repository.NewPostgresRepository(ctx, repository.PostgresConfig{URL: cfg.DatabaseURL}, logger)
		if err != nil {
			return nil, err
		}
		if err := repo.Migrate(ctx); err != nil {
			repo.Close()
			return nil, err
		}
		return repo, nil
	default:
		repo, err := repository.NewSupabaseRepository(cfg.SupabaseURL, cfg.SupabaseKey, logger)
		if err != nil {
			return nil, err
		}
		return repo, nil
	}
}
