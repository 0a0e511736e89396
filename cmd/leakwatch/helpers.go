package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/decimal-labs/leakwatch/internal/common"
	"github.com/decimal-labs/leakwatch/internal/config"
	"github.com/decimal-labs/leakwatch/internal/llm"
	"github.com/decimal-labs/leakwatch/internal/model"
	"github.com/decimal-labs/leakwatch/internal/service"
	"github.com/decimal-labs/leakwatch/internal/storage"
)

// fingerprintLen is the length of a full hex fingerprint.
const fingerprintLen = 64

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// initStorage opens the configured store and brings its schema up to date.
func initStorage(ctx context.Context, cfg *config.Config) (service.LeakStore, error) {
	store, err := storage.Open(cfg.Storage.Backend, cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return store, nil
}

// initClassifier returns the AI classifier, or nil when AI processing is
// disabled. The returned close function is always safe to call.
func initClassifier(cfg *config.Config, logger *slog.Logger) (service.Classifier, func(), error) {
	if !cfg.AI.Enabled {
		return nil, func() {}, nil
	}
	classifier, err := llm.NewClassifier(cfg.LLMConfig(), logger)
	if err != nil {
		return nil, func() {}, fmt.Errorf("failed to create AI classifier: %w", err)
	}
	return classifier, classifier.Close, nil
}

// resolveFingerprint accepts a full fingerprint or a unique prefix of one,
// such as the short form printed by search.
func resolveFingerprint(ctx context.Context, store service.LeakReader, arg string) (model.Fingerprint, error) {
	arg = strings.ToLower(strings.TrimSpace(arg))
	if len(arg) == fingerprintLen {
		return model.Fingerprint(arg), nil
	}
	if len(arg) < 6 {
		return "", fmt.Errorf("%w: fingerprint prefix %q is too short", common.ErrInvalidInput, arg)
	}

	var match model.Fingerprint
	for rec, err := range store.Search(ctx, model.SearchQuery{}) {
		if err != nil {
			return "", err
		}
		if !strings.HasPrefix(string(rec.Fingerprint), arg) {
			continue
		}
		if match != "" {
			return "", fmt.Errorf("%w: fingerprint prefix %q is ambiguous", common.ErrInvalidInput, arg)
		}
		match = rec.Fingerprint
	}
	if match == "" {
		return "", fmt.Errorf("%w: no leak record matches %q", common.ErrNotFound, arg)
	}
	return match, nil
}

// addQueryFlags registers the record filter flags shared by search, export
// and triage.
func addQueryFlags(cmd *cobra.Command) {
	cmd.Flags().String("category", "", "only records with a finding in this category")
	cmd.Flags().String("min-severity", "", "minimum severity (low, medium, high, critical)")
	cmd.Flags().String("max-severity", "", "maximum severity")
	cmd.Flags().String("status", "", "review status (new, reviewed, archived)")
	cmd.Flags().String("source", "", "source URL substring")
	cmd.Flags().String("identifier", "", "finding value substring")
	cmd.Flags().String("since", "", "last seen at or after (RFC 3339 timestamp or duration such as 24h)")
	cmd.Flags().String("until", "", "last seen at or before (RFC 3339 timestamp or duration)")
}

// queryFromFlags builds a search query from the flags added by addQueryFlags.
func queryFromFlags(cmd *cobra.Command, now time.Time) (model.SearchQuery, error) {
	var q model.SearchQuery
	flags := cmd.Flags()

	q.Source, _ = flags.GetString("source")
	q.Identifier, _ = flags.GetString("identifier")

	if v, _ := flags.GetString("category"); v != "" {
		c, err := model.ParseCategory(v)
		if err != nil {
			return q, fmt.Errorf("%w: %w", common.ErrInvalidInput, err)
		}
		q.Category = c
	}
	for name, dst := range map[string]*model.Severity{"min-severity": &q.MinSeverity, "max-severity": &q.MaxSeverity} {
		if v, _ := flags.GetString(name); v != "" {
			sev, err := model.ParseSeverity(v)
			if err != nil {
				return q, fmt.Errorf("%w: --%s: %w", common.ErrInvalidInput, name, err)
			}
			*dst = sev
		}
	}
	if v, _ := flags.GetString("status"); v != "" {
		st, err := model.ParseStatus(v)
		if err != nil {
			return q, fmt.Errorf("%w: %w", common.ErrInvalidInput, err)
		}
		q.Status = st
	}
	for name, dst := range map[string]**time.Time{"since": &q.Since, "until": &q.Until} {
		if v, _ := flags.GetString(name); v != "" {
			t, err := parseTimeFlag(v, now)
			if err != nil {
				return q, fmt.Errorf("%w: --%s: %w", common.ErrInvalidInput, name, err)
			}
			*dst = &t
		}
	}
	return q, nil
}

// parseTimeFlag accepts an RFC 3339 timestamp, a date, or a duration
// measured back from now.
func parseTimeFlag(v string, now time.Time) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.DateOnly, v); err == nil {
		return t, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return time.Time{}, errors.New("expected an RFC 3339 timestamp, a YYYY-MM-DD date or a duration")
	}
	return now.Add(-d.Abs()), nil
}
