package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ivanoskov/lazzyfinance/internal/config"
	"github.com/ivanoskov/lazzyfinance/internal/repository"
)

func migrateCmd() *cobra.Command {
	var printOnly bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the ledger tables",
		Long: `migrate applies the schema to DATABASE_URL. Supabase projects are migrated
by pasting the output of --print into the SQL editor.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if printOnly {
				_, err := fmt.Fprint(cmd.OutOrStdout(), repository.SchemaSQL)
				return err
			}

			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			if cfg.LedgerBackend != config.BackendPostgres {
				return errors.New("migrate needs LEDGER_BACKEND=postgres; use --print for Supabase")
			}

			repo, err := repository.NewPostgresRepository(cmd.Context(), repository.PostgresConfig{URL: cfg.DatabaseURL}, logger)
			if err != nil {
				return err
			}
			defer repo.Close()

			if err := repo.Migrate(cmd.Context()); err != nil {
				return err
			}
			logger.Info("schema applied")
			return nil
		},
	}
	cmd.Flags().BoolVar(&printOnly, "print", false, "print the schema instead of applying it")
	return cmd
}
