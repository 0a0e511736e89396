package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/decimal-labs/leakwatch/internal/mcpserver"
)

func mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve leak records over MCP on stdio",
		Long: `Start a read-only Model Context Protocol server on stdin/stdout exposing the
search_leaks, get_leak and leak_stats tools. Logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := initStorage(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			slog.Info("Starting MCP server", "database", cfg.Storage.Path)
			return mcpserver.New(store, version, slog.Default()).ServeStdio()
		},
	}
}
