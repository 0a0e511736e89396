// Package export writes leak records to files in machine-readable formats.
package export

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/decimal-labs/leakwatch/internal/common"
	"github.com/decimal-labs/leakwatch/internal/model"
)

// Format is an export file format.
type Format string

// Supported formats.
const (
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
	FormatCSV   Format = "csv"
	FormatYAML  Format = "yaml"
)

// Formats lists the file formats in display order.
var Formats = []Format{FormatJSON, FormatJSONL, FormatCSV, FormatYAML}

// ParseFormat resolves a format name, ignoring case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatJSONL, FormatCSV, FormatYAML:
		return f, nil
	case "yml":
		return FormatYAML, nil
	case "ndjson":
		return FormatJSONL, nil
	}
	return "", fmt.Errorf("%w: unknown export format %q", common.ErrInvalidInput, s)
}

// Options control how records are rendered.
type Options struct {
	// Mask replaces identifier values with model.MaskValue output.
	Mask bool
}

// CSVHeader is the column order of CSV exports.
var CSVHeader = []string{
	"fingerprint",
	"severity",
	"status",
	"categories",
	"identifiers",
	"sources",
	"sighting_count",
	"first_seen",
	"last_seen",
	"ai_enriched",
	"degraded",
	"rationale",
}

// Write renders every record yielded by records to w and returns how many
// were written. Iteration stops at the first error.
func Write(w io.Writer, format Format, records iter.Seq2[*model.LeakRecord, error], opts Options) (int, error) {
	buf := bufio.NewWriter(w)
	var (
		n   int
		err error
	)
	switch format {
	case FormatJSON:
		n, err = writeJSON(buf, records, opts)
	case FormatJSONL:
		n, err = writeJSONL(buf, records, opts)
	case FormatCSV:
		n, err = writeCSV(buf, records, opts)
	case FormatYAML:
		n, err = writeYAML(buf, records, opts)
	default:
		return 0, fmt.Errorf("%w: unknown export format %q", common.ErrInvalidInput, format)
	}
	if err != nil {
		return n, err
	}
	if err := buf.Flush(); err != nil {
		return n, fmt.Errorf("failed to flush export: %w", err)
	}
	return n, nil
}

// prepare applies options to rec.
func prepare(rec *model.LeakRecord, opts Options) *model.LeakRecord {
	if opts.Mask {
		return rec.Masked()
	}
	return rec
}

func writeJSON(w *bufio.Writer, records iter.Seq2[*model.LeakRecord, error], opts Options) (int, error) {
	n := 0
	if _, err := w.WriteString("["); err != nil {
		return 0, err
	}
	for rec, err := range records {
		if err != nil {
			return n, err
		}
		data, err := json.MarshalIndent(prepare(rec, opts), "  ", "  ")
		if err != nil {
			return n, fmt.Errorf("failed to encode record %s: %w", rec.Fingerprint.Short(), err)
		}
		sep := ",\n  "
		if n == 0 {
			sep = "\n  "
		}
		if _, err := w.WriteString(sep); err != nil {
			return n, err
		}
		if _, err := w.Write(data); err != nil {
			return n, err
		}
		n++
	}
	closing := "\n]\n"
	if n == 0 {
		closing = "]\n"
	}
	_, err := w.WriteString(closing)
	return n, err
}

func writeJSONL(w *bufio.Writer, records iter.Seq2[*model.LeakRecord, error], opts Options) (int, error) {
	enc := json.NewEncoder(w)
	n := 0
	for rec, err := range records {
		if err != nil {
			return n, err
		}
		if err := enc.Encode(prepare(rec, opts)); err != nil {
			return n, fmt.Errorf("failed to encode record %s: %w", rec.Fingerprint.Short(), err)
		}
		n++
	}
	return n, nil
}

func writeCSV(w *bufio.Writer, records iter.Seq2[*model.LeakRecord, error], opts Options) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return 0, err
	}
	n := 0
	for rec, err := range records {
		if err != nil {
			return n, err
		}
		if err := cw.Write(csvRow(prepare(rec, opts))); err != nil {
			return n, err
		}
		n++
	}
	cw.Flush()
	return n, cw.Error()
}

func csvRow(rec *model.LeakRecord) []string {
	categories := make([]string, 0, len(rec.Findings))
	for _, c := range rec.Categories() {
		categories = append(categories, string(c))
	}
	identifiers := make([]string, 0, len(rec.Findings))
	for _, f := range rec.Findings {
		identifiers = append(identifiers, string(f.Category)+":"+f.Value)
	}
	return []string{
		string(rec.Fingerprint),
		rec.Severity.String(),
		string(rec.Status),
		strings.Join(categories, ";"),
		strings.Join(identifiers, ";"),
		strings.Join(rec.Sources, ";"),
		strconv.Itoa(rec.SightingCount),
		rec.FirstSeen.UTC().Format(time.RFC3339),
		rec.LastSeen.UTC().Format(time.RFC3339),
		strconv.FormatBool(rec.AIEnriched),
		strconv.FormatBool(rec.Degraded),
		rec.Rationale,
	}
}

// yamlDocument is the top-level shape of a YAML export.
type yamlDocument struct {
	Exported time.Time           `yaml:"exported_at"`
	Records  []*model.LeakRecord `yaml:"records"`
}

func writeYAML(w *bufio.Writer, records iter.Seq2[*model.LeakRecord, error], opts Options) (int, error) {
	doc := yamlDocument{Exported: time.Now().UTC(), Records: []*model.LeakRecord{}}
	for rec, err := range records {
		if err != nil {
			return 0, err
		}
		doc.Records = append(doc.Records, prepare(rec, opts))
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return 0, fmt.Errorf("failed to encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return 0, err
	}
	return len(doc.Records), nil
}
