// Package service defines the interfaces shared between the pipeline and its collaborators.
package service

import (
	"context"
	"iter"
	"time"

	"github.com/decimal-labs/leakwatch/internal/model"
)

// LeakStore is the Fingerprint Store and Leak Record sink.
type LeakStore interface {
	LeakReader

	// Upsert merges a sighting into the record for its fingerprint, creating
	// the record on first sighting. It is atomic per fingerprint: concurrent
	// sightings of the same content produce one record. The boolean reports
	// whether the record was created.
	Upsert(ctx context.Context, sighting model.Sighting) (*model.LeakRecord, bool, error)

	// SetStatus records a manual review decision.
	SetStatus(ctx context.Context, fp model.Fingerprint, status model.Status) error

	// RecordSighting appends an entry to the audit log.
	RecordSighting(ctx context.Context, entry model.SightingLog) error

	Migrate(ctx context.Context) error
	Close() error
}

// LeakReader is the read-only surface exposed to search and dashboard consumers.
type LeakReader interface {
	// Lookup returns the record for fp, or an error wrapping common.ErrNotFound.
	Lookup(ctx context.Context, fp model.Fingerprint) (*model.LeakRecord, error)

	// Search yields matching records ordered by last-seen descending. The
	// sequence is lazy and may be ranged over again to restart the query.
	Search(ctx context.Context, query model.SearchQuery) iter.Seq2[*model.LeakRecord, error]

	// History returns the audit log entries for fp, oldest first.
	History(ctx context.Context, fp model.Fingerprint) ([]model.SightingLog, error)

	// Stats returns aggregate counts.
	Stats(ctx context.Context) (*model.Stats, error)
}

// Classifier is the AI classification capability.
type Classifier interface {
	Classify(ctx context.Context, req ClassifyRequest) (*model.ClassificationResult, error)
}

// ClassifyRequest is one document submitted to a Classifier.
type ClassifyRequest struct {
	Fingerprint model.Fingerprint
	Text        string
	Findings    []model.Finding
	Budget      Budget
}

// Budget caps what a classification call may consume.
type Budget struct {
	// MaxChars is the maximum number of characters submitted; longer text is
	// truncated from the tail.
	MaxChars int
	// Timeout caps the wall-clock wait for the call, retries included.
	Timeout time.Duration
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// Jitter is the randomization factor applied to each delay, in [0,1).
	Jitter float64
}

// WithDefaults fills zero fields with defaults.
func (o RetryOptions) WithDefaults() RetryOptions {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.InitialDelay <= 0 {
		o.InitialDelay = 100 * time.Millisecond
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 30 * time.Second
	}
	if o.Multiplier <= 0 {
		o.Multiplier = 2.0
	}
	if o.Jitter < 0 || o.Jitter >= 1 {
		o.Jitter = 0.5
	}
	return o
}

// ReportWriter publishes a snapshot of leak records to an external sink.
type ReportWriter interface {
	Write(ctx context.Context, records []*model.LeakRecord, stats *model.Stats) error
}
