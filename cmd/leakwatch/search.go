package main

import (
	"encoding/json"
	"fmt"
	"iter"
	"time"

	"github.com/spf13/cobra"

	"github.com/decimal-labs/leakwatch/internal/cli"
	"github.com/decimal-labs/leakwatch/internal/export"
	"github.com/decimal-labs/leakwatch/internal/model"
	"github.com/decimal-labs/leakwatch/internal/storage"
)

func searchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search leak records",
		Long: `List leak records matching the given filters, most recently seen first.

Identifier values are masked unless --unmasked is given. When more records
match than --limit, the cursor for the next page is printed.`,
		Example: `  leakwatch search --category aadhaar --min-severity high
  leakwatch search --status new --since 24h --format csv`,
		Args: cobra.NoArgs,
		RunE: runSearch,
	}

	addQueryFlags(cmd)
	cmd.Flags().Int("limit", 50, "maximum records to list")
	cmd.Flags().String("cursor", "", "resume after the cursor printed by a previous search")
	cmd.Flags().StringP("format", "f", "table", "output format (table, json, jsonl, csv, yaml)")
	cmd.Flags().Bool("unmasked", false, "show identifier values in full")

	return cmd
}

func runSearch(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	query, err := queryFromFlags(cmd, time.Now())
	if err != nil {
		return err
	}
	query.Cursor, _ = cmd.Flags().GetString("cursor")
	limit, _ := cmd.Flags().GetInt("limit")
	if limit <= 0 {
		return fmt.Errorf("--limit must be positive")
	}
	// One extra row tells us whether another page exists.
	query.Limit = limit + 1

	formatName, _ := cmd.Flags().GetString("format")
	unmasked, _ := cmd.Flags().GetBool("unmasked")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := initStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	var records []*model.LeakRecord
	for rec, err := range store.Search(ctx, query) {
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
		records = append(records, rec)
	}
	next := ""
	if len(records) > limit {
		records = records[:limit]
		next = storage.EncodeCursor(records[limit-1])
	}

	out := cmd.OutOrStdout()
	if formatName == "table" {
		if !unmasked {
			for i, rec := range records {
				records[i] = rec.Masked()
			}
		}
		fmt.Fprint(out, cli.RenderRecordTable(records))
		if next != "" {
			fmt.Fprintln(cmd.ErrOrStderr(), cli.FormatInfo("More records match; continue with --cursor "+next))
		}
		return nil
	}

	format, err := export.ParseFormat(formatName)
	if err != nil {
		return err
	}
	if _, err := export.Write(out, format, sliceSeq(records), export.Options{Mask: !unmasked}); err != nil {
		return err
	}
	if next != "" {
		fmt.Fprintln(cmd.ErrOrStderr(), "next cursor:", next)
	}
	return nil
}

func showCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <fingerprint>",
		Short: "Show one leak record with its sighting history",
		Long: `Show a leak record in full, including every finding and the audit log of
each time its content was seen. The fingerprint may be shortened to any
unique prefix of at least six characters.`,
		Args: cobra.ExactArgs(1),
		RunE: runShow,
	}
	cmd.Flags().Bool("unmasked", false, "show identifier values in full")
	cmd.Flags().Bool("json", false, "print the record and history as JSON")
	return cmd
}

func runShow(cmd *cobra.Command, args []string) error {
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

	fp, err := resolveFingerprint(ctx, store, args[0])
	if err != nil {
		return err
	}
	rec, err := store.Lookup(ctx, fp)
	if err != nil {
		return err
	}
	history, err := store.History(ctx, fp)
	if err != nil {
		return err
	}

	unmasked, _ := cmd.Flags().GetBool("unmasked")
	asJSON, _ := cmd.Flags().GetBool("json")
	if asJSON {
		if !unmasked {
			rec = rec.Masked()
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Record  *model.LeakRecord   `json:"record"`
			History []model.SightingLog `json:"history"`
		}{rec, history})
	}

	fmt.Fprint(cmd.OutOrStdout(), cli.RenderRecordDetail(rec, history, !unmasked))
	return nil
}

func statsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show aggregate leak statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
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

			stats, err := store.Stats(ctx)
			if err != nil {
				return fmt.Errorf("failed to compute stats: %w", err)
			}
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(stats)
			}
			fmt.Fprint(cmd.OutOrStdout(), cli.RenderStats(stats))
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "print the statistics as JSON")
	return cmd
}

// sliceSeq adapts a slice to the iterator form export.Write consumes.
func sliceSeq(records []*model.LeakRecord) iter.Seq2[*model.LeakRecord, error] {
	return func(yield func(*model.LeakRecord, error) bool) {
		for _, rec := range records {
			if !yield(rec, nil) {
				return
			}
		}
	}
}
