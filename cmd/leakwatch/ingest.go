package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/decimal-labs/leakwatch/internal/cli"
	"github.com/decimal-labs/leakwatch/internal/engine"
	"github.com/decimal-labs/leakwatch/internal/ingest"
)

func ingestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest [path]",
		Short: "Run crawled documents through the leak pipeline",
		Long: `Process documents from the crawler and record every leak found.

The input is either a JSON lines file (one {"source", "text", "discovered_at"}
object per line; "-" or no argument reads stdin) or a directory, in which case
every regular file becomes one document.

Each document is extracted locally, optionally classified by the AI client,
scored, deduplicated by content fingerprint and persisted. Classifier outages
degrade the verdict to local-only results instead of stopping the run.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runIngest,
	}

	cmd.Flags().String("input-format", "auto", "input format (auto, jsonl, dir)")
	cmd.Flags().String("run-id", "", "run identifier recorded in the audit log (default: random UUID)")
	cmd.Flags().Int("workers", 0, "concurrent documents (overrides pipeline.workers)")
	cmd.Flags().Bool("ai", false, "enable AI classification (overrides ai.enabled)")
	cmd.Flags().Bool("no-progress", false, "disable the progress indicator")
	cmd.Flags().Bool("include-hidden", false, "walk dot-files when ingesting a directory")

	_ = viper.BindPFlag("pipeline.workers", cmd.Flags().Lookup("workers"))
	_ = viper.BindPFlag("ai.enabled", cmd.Flags().Lookup("ai"))

	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := slog.Default()

	path := "-"
	if len(args) == 1 {
		path = args[0]
	}
	format, _ := cmd.Flags().GetString("input-format")
	includeHidden, _ := cmd.Flags().GetBool("include-hidden")
	src, closeSrc, err := openSource(path, format, includeHidden, logger)
	if err != nil {
		return err
	}
	defer closeSrc()

	store, err := initStorage(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	classifier, closeClassifier, err := initClassifier(cfg, logger)
	if err != nil {
		return err
	}
	defer closeClassifier()

	pcfg, err := cfg.PipelineConfig()
	if err != nil {
		return err
	}
	pcfg.RunID, _ = cmd.Flags().GetString("run-id")

	noProgress, _ := cmd.Flags().GetBool("no-progress")
	var bar *progressbar.ProgressBar
	if !noProgress {
		bar = newProgressBar(cmd.ErrOrStderr())
		pcfg.OnResult = func(engine.Result) {
			if err := bar.Add(1); err != nil {
				slog.Warn("Failed to update progress bar", "error", err)
			}
		}
	}

	pipeline, err := engine.New(store, classifier, pcfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}

	handler := cli.NewInterruptHandler(cmd.ErrOrStderr())
	ctx := handler.HandleInterrupts(cmd.Context(),
		"Documents not yet persisted were not recorded; re-run with the same input to resume.")

	docs, wait := ingest.Feed(ctx, src, pcfg.Workers*2)
	summary, runErr := pipeline.Run(ctx, docs)
	srcErr := wait()

	if bar != nil {
		_ = bar.Finish()
	}
	fmt.Fprint(cmd.OutOrStdout(), cli.RenderRunSummary(summary))

	if jsonl, ok := src.(*ingest.JSONLSource); ok && jsonl.Skipped > 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), cli.FormatWarning(fmt.Sprintf("%d malformed input lines were skipped", jsonl.Skipped)))
	}

	if handler.WasInterrupted() {
		return nil
	}
	if runErr != nil {
		return fmt.Errorf("ingest stopped early: %w", runErr)
	}
	if srcErr != nil && !errors.Is(srcErr, context.Canceled) {
		return fmt.Errorf("failed to read input: %w", srcErr)
	}
	return nil
}

// openSource picks a document source for path. format "auto" chooses the
// directory walker for directories and JSON lines otherwise.
func openSource(path, format string, includeHidden bool, logger *slog.Logger) (ingest.Source, func(), error) {
	if format == "auto" {
		format = "jsonl"
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			format = "dir"
		}
	}

	switch format {
	case "dir":
		src := ingest.NewDirSource(path, logger)
		src.IncludeHidden = includeHidden
		return src, func() {}, nil
	case "jsonl":
		var r io.ReadCloser = os.Stdin
		if path != "-" {
			f, err := os.Open(path) //nolint:gosec // operator-supplied input path
			if err != nil {
				return nil, nil, fmt.Errorf("failed to open input: %w", err)
			}
			r = f
		}
		return ingest.NewJSONLSource(r, logger), func() { _ = r.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown input format %q (expected auto, jsonl or dir)", format)
	}
}

func newProgressBar(w io.Writer) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("docs"),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetDescription("[cyan][bold]Processing documents...[reset]"),
		progressbar.OptionOnCompletion(func() {
			if _, err := fmt.Fprintln(w); err != nil {
				slog.Warn("Failed to write newline after progress bar", "error", err)
			}
		}),
	)
}
