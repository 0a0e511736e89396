package main

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decimal-labs/leakwatch/internal/common"
	"github.com/decimal-labs/leakwatch/internal/fingerprint"
	"github.com/decimal-labs/leakwatch/internal/ingest"
	"github.com/decimal-labs/leakwatch/internal/model"
	"github.com/decimal-labs/leakwatch/internal/storage"
)

func TestParseTimeFlag(t *testing.T) {
	now := time.Date(2024, 6, 2, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		want    time.Time
		name    string
		input   string
		wantErr bool
	}{
		{name: "rfc3339", input: "2024-06-01T08:30:00Z", want: time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC)},
		{name: "date", input: "2024-05-31", want: time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC)},
		{name: "duration", input: "24h", want: now.Add(-24 * time.Hour)},
		{name: "negative duration", input: "-2h", want: now.Add(-2 * time.Hour)},
		{name: "garbage", input: "yesterday", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseTimeFlag(tt.input, now)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}
}

func TestQueryFromFlags(t *testing.T) {
	newCmd := func(args ...string) *cobra.Command {
		cmd := &cobra.Command{Use: "test"}
		addQueryFlags(cmd)
		require.NoError(t, cmd.Flags().Parse(args))
		return cmd
	}
	now := time.Date(2024, 6, 2, 12, 0, 0, 0, time.UTC)

	t.Run("all filters", func(t *testing.T) {
		q, err := queryFromFlags(newCmd(
			"--category", "aadhaar", "--min-severity", "medium", "--max-severity", "critical",
			"--status", "new", "--source", "paste", "--identifier", "2346", "--since", "1h",
		), now)
		require.NoError(t, err)
		assert.Equal(t, model.CategoryAadhaar, q.Category)
		assert.Equal(t, model.SeverityMedium, q.MinSeverity)
		assert.Equal(t, model.SeverityCritical, q.MaxSeverity)
		assert.Equal(t, model.StatusNew, q.Status)
		assert.Equal(t, "paste", q.Source)
		assert.Equal(t, "2346", q.Identifier)
		require.NotNil(t, q.Since)
		assert.Equal(t, now.Add(-time.Hour), *q.Since)
		assert.Nil(t, q.Until)
	})

	t.Run("no filters", func(t *testing.T) {
		q, err := queryFromFlags(newCmd(), now)
		require.NoError(t, err)
		assert.Equal(t, model.SearchQuery{}, q)
	})

	for _, args := range [][]string{
		{"--category", "ssn"},
		{"--min-severity", "extreme"},
		{"--status", "closed"},
		{"--until", "soon"},
	} {
		t.Run("invalid "+args[0], func(t *testing.T) {
			_, err := queryFromFlags(newCmd(args...), now)
			assert.ErrorIs(t, err, common.ErrInvalidInput)
		})
	}
}

func TestResolveFingerprint(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(ctx))

	fp := fingerprint.Compute("resolve me")
	_, _, err = store.Upsert(ctx, model.Sighting{
		Fingerprint: fp,
		Source:      "https://paste.example/r",
		SeenAt:      time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		Severity:    model.SeverityLow,
	})
	require.NoError(t, err)

	t.Run("full", func(t *testing.T) {
		got, err := resolveFingerprint(ctx, store, string(fp))
		require.NoError(t, err)
		assert.Equal(t, fp, got)
	})
	t.Run("prefix", func(t *testing.T) {
		got, err := resolveFingerprint(ctx, store, fp.Short())
		require.NoError(t, err)
		assert.Equal(t, fp, got)
	})
	t.Run("too short", func(t *testing.T) {
		_, err := resolveFingerprint(ctx, store, "abc")
		assert.ErrorIs(t, err, common.ErrInvalidInput)
	})
	t.Run("unknown", func(t *testing.T) {
		_, err := resolveFingerprint(ctx, store, "zzzzzzzzzzzz")
		assert.ErrorIs(t, err, common.ErrNotFound)
	})
}

func TestOpenSource(t *testing.T) {
	dir := t.TempDir()

	src, closeFn, err := openSource(dir, "auto", false, nil)
	require.NoError(t, err)
	closeFn()
	assert.IsType(t, &ingest.DirSource{}, src)

	file := writeInput(t, `{"source": "https://paste.example/x", "text": "x"}`)
	src, closeFn, err = openSource(file, "auto", false, nil)
	require.NoError(t, err)
	closeFn()
	assert.IsType(t, &ingest.JSONLSource{}, src)

	_, _, err = openSource(file, "xml", false, nil)
	assert.Error(t, err)

	_, _, err = openSource(dir+"/missing.jsonl", "jsonl", false, nil)
	assert.Error(t, err)
}
