package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/decimal-labs/leakwatch/internal/common"
	"github.com/decimal-labs/leakwatch/internal/model"
)

// maxLineBytes caps a single JSONL record.
const maxLineBytes = 16 << 20

// jsonlRecord is one line of crawler output.
type jsonlRecord struct {
	DiscoveredAt *time.Time `json:"discovered_at"`
	Source       string     `json:"source"`
	URL          string     `json:"url"`
	Text         string     `json:"text"`
	ByteLength   int        `json:"byte_length"`
}

// JSONLSource reads one JSON document per line:
//
//	{"source": "https://...", "text": "...", "discovered_at": "2026-01-02T15:04:05Z"}
//
// "url" is accepted as an alias for "source". Blank lines are ignored and
// malformed lines are logged and skipped.
type JSONLSource struct {
	r       io.Reader
	logger  *slog.Logger
	now     func() time.Time
	Skipped int
}

// NewJSONLSource creates a source reading from r.
func NewJSONLSource(r io.Reader, logger *slog.Logger) *JSONLSource {
	return &JSONLSource{r: r, logger: common.OrDefault(logger), now: time.Now}
}

// Stream implements Source.
func (s *JSONLSource) Stream(ctx context.Context, out chan<- model.Document) error {
	scanner := bufio.NewScanner(s.r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}

		var rec jsonlRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			s.Skipped++
			s.logger.Warn("Skipping malformed input line", "line", line, "error", err)
			continue
		}

		doc := model.Document{
			Source:       CanonicalSource(firstNonEmpty(rec.Source, rec.URL)),
			Text:         rec.Text,
			ByteLength:   rec.ByteLength,
			DiscoveredAt: s.now(),
		}
		if rec.DiscoveredAt != nil {
			doc.DiscoveredAt = *rec.DiscoveredAt
		}
		if err := send(ctx, out, doc); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input at line %d: %w", line+1, err)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
