package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decimal-labs/leakwatch/internal/service"
	"github.com/decimal-labs/leakwatch/internal/sheets"
)

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := rootCmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeInput(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "crawl.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0600))
	return path
}

func TestIngestSearchAndReview(t *testing.T) {
	t.Setenv("AI_PROCESSING_ENABLED", "false")
	db := filepath.Join(t.TempDir(), "leaks.db")

	input := writeInput(t,
		`{"source": "https://paste.example/a", "text": "Contact alice@example.com, PAN ABCPE1234F"}`,
		`{"source": "https://mirror.example/a", "text": "contact   ALICE@example.com, pan abcpe1234f"}`,
		`{"source": "https://paste.example/b", "text": "reach bob@example.org for the files"}`,
		`not json`,
	)

	stdout, stderr, err := execute(t, "--db", db, "ingest", input, "--no-progress")
	require.NoError(t, err, stderr)
	assert.Contains(t, stdout, "Ingest complete")
	assert.Contains(t, stdout, "2 new, 1 rediscovered")
	assert.Contains(t, stderr, "1 malformed input lines were skipped")

	stdout, stderr, err = execute(t, "--db", db, "search", "--format", "json", "--unmasked", "--limit", "10")
	require.NoError(t, err, stderr)

	var records []struct {
		Fingerprint   string   `json:"fingerprint"`
		Severity      string   `json:"severity"`
		Status        string   `json:"status"`
		Sources       []string `json:"sources"`
		SightingCount int      `json:"sighting_count"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &records))
	require.Len(t, records, 2)

	var dup *struct {
		Fingerprint   string   `json:"fingerprint"`
		Severity      string   `json:"severity"`
		Status        string   `json:"status"`
		Sources       []string `json:"sources"`
		SightingCount int      `json:"sighting_count"`
	}
	for i := range records {
		if records[i].SightingCount == 2 {
			dup = &records[i]
		}
	}
	require.NotNil(t, dup, "case and whitespace variants share one record")
	assert.Equal(t, "high", dup.Severity)
	assert.ElementsMatch(t, []string{"https://paste.example/a", "https://mirror.example/a"}, dup.Sources)

	stdout, stderr, err = execute(t, "--db", db, "review", dup.Fingerprint[:12])
	require.NoError(t, err, stderr)
	assert.Contains(t, stdout, "marked reviewed")

	stdout, stderr, err = execute(t, "--db", db, "show", dup.Fingerprint, "--json")
	require.NoError(t, err, stderr)
	var detail struct {
		Record struct {
			Status string `json:"status"`
		} `json:"record"`
		History []json.RawMessage `json:"history"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &detail))
	assert.Equal(t, "reviewed", detail.Record.Status)
	assert.Len(t, detail.History, 2)

	stdout, stderr, err = execute(t, "--db", db, "stats", "--json")
	require.NoError(t, err, stderr)
	var stats struct {
		TotalRecords int            `json:"total_records"`
		ByStatus     map[string]int `json:"by_status"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &stats))
	assert.Equal(t, 2, stats.TotalRecords)
	assert.Equal(t, 1, stats.ByStatus["reviewed"])
}

func TestExportCSVToFile(t *testing.T) {
	t.Setenv("AI_PROCESSING_ENABLED", "false")
	dir := t.TempDir()
	db := filepath.Join(dir, "leaks.db")
	input := writeInput(t, `{"source": "https://paste.example/c", "text": "PAN ABCPE1234F leaked"}`)

	_, stderr, err := execute(t, "--db", db, "ingest", input, "--no-progress")
	require.NoError(t, err, stderr)

	out := filepath.Join(dir, "leaks.csv")
	_, stderr, err = execute(t, "--db", db, "export", "--format", "csv", "--output", out, "--unmasked=false")
	require.NoError(t, err, stderr)
	assert.Contains(t, stderr, "Exported 1 records")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "https://paste.example/c")
	assert.Contains(t, string(data), "******234F")
	assert.NotContains(t, string(data), "ABCPE1234F")
}

func TestExportToSheets(t *testing.T) {
	t.Setenv("AI_PROCESSING_ENABLED", "false")
	t.Setenv("GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH", filepath.Join(t.TempDir(), "key.json"))
	db := filepath.Join(t.TempDir(), "leaks.db")
	input := writeInput(t,
		`{"source": "https://paste.example/d", "text": "PAN ABCPE1234F leaked"}`,
		`{"source": "https://paste.example/e", "text": "mail carol@example.net"}`,
	)
	_, stderr, err := execute(t, "--db", db, "ingest", input, "--no-progress")
	require.NoError(t, err, stderr)

	mock := sheets.NewMockWriter()
	orig := newSheetsWriter
	newSheetsWriter = func(_ *cobra.Command, cfg sheets.Config) (service.ReportWriter, error) {
		assert.Equal(t, "Leak Records", cfg.SpreadsheetName)
		return mock, nil
	}
	t.Cleanup(func() { newSheetsWriter = orig })

	_, stderr, err = execute(t, "--db", db, "export", "--format", "sheets", "--min-severity", "high")
	require.NoError(t, err, stderr)
	assert.Contains(t, stderr, "Exported 1 records to Google Sheets")

	calls := mock.GetWriteCalls()
	require.Len(t, calls, 1)
	require.Len(t, calls[0].Records, 1)
	assert.Equal(t, "https://paste.example/d", calls[0].Records[0].Sources[0])
	assert.Equal(t, 2, calls[0].Stats.TotalRecords)

	mock.SetWriteError(errors.New("quota exceeded"))
	_, _, err = execute(t, "--db", db, "export", "--format", "sheets")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestSearch_InvalidFilter(t *testing.T) {
	db := filepath.Join(t.TempDir(), "leaks.db")
	_, _, err := execute(t, "--db", db, "search", "--min-severity", "severe")
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	stdout, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "leakwatch dev\n", stdout)
}
