package main

import (
	"fmt"

	"github.com/spf13/cobra"

	riverAdapter "github.com/neomorfeo/delayguard/internal/adapter/river"
	"github.com/neomorfeo/delayguard/internal/adapter/sqlite"
)

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply ledger and job queue migrations, then exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFromCommand(cmd)
			if err != nil {
				return err
			}
			logger, err := commonRun()
			if err != nil {
				return err
			}

			repo, err := sqlite.New(cfg.DatabasePath)
			if err != nil {
				return fmt.Errorf("database: %w", err)
			}
			defer repo.Close()

			if err := riverAdapter.Migrate(cmd.Context(), repo.DB()); err != nil {
				return fmt.Errorf("river: %w", err)
			}

			logger.Info("migrations applied", "database", cfg.DatabasePath)
			return nil
		},
	}
}
