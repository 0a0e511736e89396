package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/decimal-labs/leakwatch/internal/model"
	"github.com/decimal-labs/leakwatch/internal/tui"
	"github.com/decimal-labs/leakwatch/internal/tui/themes"
)

func triageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "triage",
		Short: "Review leak records interactively",
		Long: `Open an interactive queue of leak records. Move with j/k, press enter for
detail and history, r to mark reviewed, a to archive, n to reopen and q to
quit. By default the queue shows records still marked new.`,
		Args: cobra.NoArgs,
		RunE: runTriage,
	}

	addQueryFlags(cmd)
	cmd.Flags().Bool("all", false, "include reviewed and archived records")
	cmd.Flags().Bool("unmasked", false, "start with identifier values shown in full")
	cmd.Flags().String("theme", "default", "color theme (default, catppuccin)")

	return cmd
}

func runTriage(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	query, err := queryFromFlags(cmd, time.Now())
	if err != nil {
		return err
	}
	if all, _ := cmd.Flags().GetBool("all"); !all && !cmd.Flags().Changed("status") {
		query.Status = model.StatusNew
	}
	unmasked, _ := cmd.Flags().GetBool("unmasked")
	themeName, _ := cmd.Flags().GetString("theme")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := initStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	return tui.Run(ctx, tui.Config{
		Store:    store,
		Theme:    themes.ByName(themeName),
		Query:    query,
		Unmasked: unmasked,
	})
}
