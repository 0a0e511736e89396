package storage

import (
	"cmp"
	"encoding/base64"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/decimal-labs/leakwatch/internal/common"
	"github.com/decimal-labs/leakwatch/internal/model"
)

const (
	defaultPageSize = 100
	// maxCASAttempts bounds the optimistic upsert loop.
	maxCASAttempts = 32
)

// pageCursor is a keyset position in (last_seen DESC, fingerprint ASC) order.
type pageCursor struct {
	lastSeen    time.Time
	fingerprint model.Fingerprint
}

// EncodeCursor returns an opaque cursor that resumes a search after rec.
func EncodeCursor(rec *model.LeakRecord) string {
	if rec == nil {
		return ""
	}
	raw := strconv.FormatInt(rec.LastSeen.UnixNano(), 10) + ":" + string(rec.Fingerprint)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(s string) (*pageCursor, error) {
	if s == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed cursor", common.ErrInvalidInput)
	}
	nanos, fp, ok := strings.Cut(string(raw), ":")
	if !ok {
		return nil, fmt.Errorf("%w: malformed cursor", common.ErrInvalidInput)
	}
	n, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed cursor", common.ErrInvalidInput)
	}
	return &pageCursor{lastSeen: time.Unix(0, n).UTC(), fingerprint: model.Fingerprint(fp)}, nil
}

// after reports whether rec sorts strictly after the cursor position.
func (c *pageCursor) after(rec *model.LeakRecord) bool {
	if c == nil {
		return true
	}
	if !rec.LastSeen.Equal(c.lastSeen) {
		return rec.LastSeen.Before(c.lastSeen)
	}
	return rec.Fingerprint > c.fingerprint
}

// compareRecords orders records by last-seen descending, then fingerprint.
func compareRecords(a, b *model.LeakRecord) int {
	return cmp.Or(
		b.LastSeen.Compare(a.LastSeen),
		cmp.Compare(a.Fingerprint, b.Fingerprint),
	)
}

// matchesQuery applies every filter in q to rec.
func matchesQuery(rec *model.LeakRecord, q model.SearchQuery) bool {
	if q.Since != nil && rec.LastSeen.Before(*q.Since) {
		return false
	}
	if q.Until != nil && rec.LastSeen.After(*q.Until) {
		return false
	}
	if q.Status != "" && rec.Status != q.Status {
		return false
	}
	if q.MinSeverity != 0 && rec.Severity < q.MinSeverity {
		return false
	}
	if q.MaxSeverity != 0 && rec.Severity > q.MaxSeverity {
		return false
	}
	if q.Category != "" && !slices.Contains(rec.Categories(), q.Category) {
		return false
	}
	if q.Source != "" && !slices.ContainsFunc(rec.Sources, containsFold(q.Source)) {
		return false
	}
	if q.Identifier != "" {
		match := containsFold(q.Identifier)
		if !slices.ContainsFunc(rec.Findings, func(f model.Finding) bool { return match(f.Value) }) {
			return false
		}
	}
	return true
}

func containsFold(needle string) func(string) bool {
	needle = strings.ToLower(needle)
	return func(s string) bool {
		return strings.Contains(strings.ToLower(s), needle)
	}
}

// likePattern builds a substring LIKE pattern with '\' as the escape character.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

// likeSafe reports whether s appears verbatim in JSON-encoded columns and
// folds under SQLite's ASCII-only LIKE. Other needles are filtered in Go.
func likeSafe(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 0x20 || c >= 0x80 || c == '"' || c == '\\' || c == '<' || c == '>' || c == '&' {
			return false
		}
	}
	return true
}
