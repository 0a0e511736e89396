package model

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Fingerprint is the hex digest of a document's normalized content.
type Fingerprint string

// Short returns an abbreviated form for display.
func (f Fingerprint) Short() string {
	if len(f) <= 12 {
		return string(f)
	}
	return string(f[:12])
}

func (f Fingerprint) String() string {
	return string(f)
}

// Status is the review state of a leak record.
type Status string

// Record statuses.
const (
	StatusNew      Status = "new"
	StatusReviewed Status = "reviewed"
	StatusArchived Status = "archived"
)

// ParseStatus validates a status name.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusNew, StatusReviewed, StatusArchived:
		return st, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// LeakRecord is the persisted, deduplicated representation of one distinct
// piece of discovered sensitive content.
type LeakRecord struct {
	FirstSeen     time.Time   `json:"first_seen" yaml:"first_seen"`
	LastSeen      time.Time   `json:"last_seen" yaml:"last_seen"`
	Fingerprint   Fingerprint `json:"fingerprint" yaml:"fingerprint"`
	Status        Status      `json:"status" yaml:"status"`
	Rationale     string      `json:"rationale,omitempty" yaml:"rationale,omitempty"`
	Sources       []string    `json:"sources" yaml:"sources"`
	Findings      []Finding   `json:"findings" yaml:"findings"`
	Severity      Severity    `json:"severity" yaml:"severity"`
	SightingCount int         `json:"sighting_count" yaml:"sighting_count"`
	Version       int64       `json:"version" yaml:"-"`
	// Degraded is true when the most recent sighting could not be enriched by
	// the AI classifier.
	Degraded   bool `json:"degraded" yaml:"degraded"`
	AIEnriched bool `json:"ai_enriched" yaml:"ai_enriched"`
}

// Categories returns the distinct categories among the record's findings.
func (r *LeakRecord) Categories() []Category {
	return CategorySet(r.Findings)
}

// HasSource reports whether source is already in the record's source set.
func (r *LeakRecord) HasSource(source string) bool {
	return slices.Contains(r.Sources, source)
}

// Sighting is one observation of a fingerprint, the input to an upsert.
type Sighting struct {
	SeenAt      time.Time
	Fingerprint Fingerprint
	Source      string
	Rationale   string
	Findings    []Finding
	Severity    Severity
	Degraded    bool
	AIEnriched  bool
}

// Merge folds a sighting into an existing record and returns the result. The
// receiver is not modified. Severity never decreases, first-seen never moves
// forward and last-seen never moves backward.
func (r *LeakRecord) Merge(s Sighting) *LeakRecord {
	merged := *r
	merged.Sources = slices.Clone(r.Sources)
	if s.Source != "" && !merged.HasSource(s.Source) {
		merged.Sources = append(merged.Sources, s.Source)
	}
	merged.Findings = MergeFindings(r.Findings, s.Findings)
	merged.Severity = MaxSeverity(r.Severity, s.Severity)
	if s.SeenAt.Before(merged.FirstSeen) {
		merged.FirstSeen = s.SeenAt
	}
	if s.SeenAt.After(merged.LastSeen) {
		merged.LastSeen = s.SeenAt
	}
	if s.Severity >= r.Severity && s.Rationale != "" {
		merged.Rationale = s.Rationale
	}
	merged.Degraded = s.Degraded
	merged.AIEnriched = r.AIEnriched || s.AIEnriched
	merged.SightingCount = r.SightingCount + 1
	return &merged
}

// NewLeakRecord creates the record for the first sighting of a fingerprint.
func NewLeakRecord(s Sighting) *LeakRecord {
	rec := &LeakRecord{
		Fingerprint:   s.Fingerprint,
		Findings:      slices.Clone(s.Findings),
		Severity:      s.Severity,
		FirstSeen:     s.SeenAt,
		LastSeen:      s.SeenAt,
		Status:        StatusNew,
		Rationale:     s.Rationale,
		Degraded:      s.Degraded,
		AIEnriched:    s.AIEnriched,
		SightingCount: 1,
	}
	if s.Source != "" {
		rec.Sources = []string{s.Source}
	}
	return rec
}

// MergeFindings folds a later sighting's findings into a record's. Every
// existing finding is kept, including repeated occurrences of one identifier
// at different offsets. An incoming finding is added only when its category
// and value are new to the record, so a rediscovery keeps the offsets of the
// first sighting.
func MergeFindings(existing, incoming []Finding) []Finding {
	type key struct {
		category Category
		value    string
	}
	known := make(map[key]bool, len(existing))
	for _, f := range existing {
		known[key{f.Category, f.Value}] = true
	}
	out := slices.Clone(existing)
	for _, f := range incoming {
		if !known[key{f.Category, f.Value}] {
			out = append(out, f)
		}
	}
	return out
}

// Masked returns a copy of r whose finding values are replaced by MaskValue.
func (r *LeakRecord) Masked() *LeakRecord {
	out := *r
	out.Findings = slices.Clone(r.Findings)
	for i := range out.Findings {
		out.Findings[i].Value = MaskValue(out.Findings[i].Value)
	}
	return &out
}
