package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/decimal-labs/leakwatch/internal/cli"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Initialize or update the database schema to the latest version.

Every other command migrates on open; this command does it on its own, for
example before handing the database to a read-only consumer.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			slog.Info("Running database migrations", "backend", cfg.Storage.Backend, "database", cfg.Storage.Path)
			store, err := initStorage(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			if err := store.Close(); err != nil {
				return fmt.Errorf("failed to close database: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Database migrations completed"))
			return nil
		},
	}
}
