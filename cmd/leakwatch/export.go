package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/decimal-labs/leakwatch/internal/cli"
	"github.com/decimal-labs/leakwatch/internal/config"
	"github.com/decimal-labs/leakwatch/internal/export"
	"github.com/decimal-labs/leakwatch/internal/model"
	"github.com/decimal-labs/leakwatch/internal/service"
	"github.com/decimal-labs/leakwatch/internal/sheets"
)

const formatSheets = "sheets"

// newSheetsWriter is replaced in tests.
var newSheetsWriter = func(cmd *cobra.Command, cfg sheets.Config) (service.ReportWriter, error) {
	return sheets.NewWriter(cmd.Context(), cfg, slog.Default())
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export leak records",
		Long: `Export every leak record matching the filters.

File formats (json, jsonl, csv, yaml) stream to --output or stdout. The sheets
format writes a Leaks tab and a Summary tab to a Google Sheets spreadsheet;
configure it with the sheets.* keys or GOOGLE_SHEETS_* environment variables.

Identifier values are masked unless --unmasked is given. Sheets exports are
always masked.`,
		Example: `  leakwatch export --format csv --output leaks.csv --min-severity high
  leakwatch export --format sheets --status new`,
		Args: cobra.NoArgs,
		RunE: runExport,
	}

	addQueryFlags(cmd)
	cmd.Flags().StringP("format", "f", "json", "export format (json, jsonl, csv, yaml, sheets)")
	cmd.Flags().StringP("output", "o", "", "output file (default: stdout)")
	cmd.Flags().Bool("unmasked", false, "write identifier values in full")

	return cmd
}

func runExport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	query, err := queryFromFlags(cmd, time.Now())
	if err != nil {
		return err
	}
	formatName, _ := cmd.Flags().GetString("format")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := initStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if formatName == formatSheets {
		return exportToSheets(cmd, store, query)
	}

	format, err := export.ParseFormat(formatName)
	if err != nil {
		return err
	}
	unmasked, _ := cmd.Flags().GetBool("unmasked")
	output, _ := cmd.Flags().GetString("output")

	var w io.Writer = cmd.OutOrStdout()
	if output != "" {
		f, err := os.Create(config.ExpandPath(output)) //nolint:gosec // operator-supplied output path
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() { _ = f.Close() }()
		w = f
	}

	n, err := export.Write(w, format, store.Search(ctx, query), export.Options{Mask: !unmasked})
	if err != nil {
		return fmt.Errorf("export failed after %d records: %w", n, err)
	}
	if output != "" {
		fmt.Fprintln(cmd.ErrOrStderr(), cli.FormatSuccess(fmt.Sprintf("Exported %d records to %s", n, output)))
	}
	slog.Debug("Export complete", "format", format, "records", n)
	return nil
}

func exportToSheets(cmd *cobra.Command, store service.LeakStore, query model.SearchQuery) error {
	ctx := cmd.Context()
	sheetsConfig, err := config.LoadSheetsConfig(viper.GetViper())
	if err != nil {
		return fmt.Errorf("invalid sheets configuration: %w", err)
	}

	var records []*model.LeakRecord
	for rec, err := range store.Search(ctx, query) {
		if err != nil {
			return fmt.Errorf("failed to load leak records: %w", err)
		}
		records = append(records, rec)
	}
	stats, err := store.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to compute stats: %w", err)
	}

	writer, err := newSheetsWriter(cmd, *sheetsConfig)
	if err != nil {
		return fmt.Errorf("failed to create sheets writer: %w", err)
	}
	if err := writer.Write(ctx, records, stats); err != nil {
		return fmt.Errorf("failed to write spreadsheet: %w", err)
	}

	fmt.Fprintln(cmd.ErrOrStderr(), cli.FormatSuccess(fmt.Sprintf("Exported %d records to Google Sheets", len(records))))
	return nil
}
