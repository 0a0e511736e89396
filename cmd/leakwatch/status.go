package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/decimal-labs/leakwatch/internal/cli"
	"github.com/decimal-labs/leakwatch/internal/model"
)

// statusCmd builds a command that records one review decision per
// fingerprint argument.
func statusCmd(use, short string, status model.Status) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <fingerprint>...",
		Short: short,
		Long: short + `.

Status changes are manual review decisions; the pipeline never changes a
record's status. Fingerprints may be shortened to a unique prefix.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := initStorage(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			for _, arg := range args {
				fp, err := resolveFingerprint(ctx, store, arg)
				if err != nil {
					return err
				}
				if err := store.SetStatus(ctx, fp, status); err != nil {
					return fmt.Errorf("failed to mark %s %s: %w", fp.Short(), status, err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("%s marked %s", fp.Short(), status)))
			}
			return nil
		},
	}
}
