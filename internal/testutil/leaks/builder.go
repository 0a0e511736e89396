// Package leaks builds deterministic sightings for seeding test stores.
//
// Example usage:
//
//	sightings := leaks.NewBuilder(t).
//		WithRecords(3).
//		WithFixture(leaks.FixtureMixed).
//		Build()
//
//	db := testutil.SetupTestDB(t, sightings)
package leaks

import (
	"fmt"
	"testing"
	"time"

	"github.com/decimal-labs/leakwatch/internal/fingerprint"
	"github.com/decimal-labs/leakwatch/internal/model"
)

// BaseTime is the first-seen time of the first generated sighting. Later
// sightings are one minute apart.
var BaseTime = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

// AadhaarValue is the identifier attached to generated high-severity records.
const AadhaarValue = "234123412346"

// Sightings is an ordered list of sightings to seed.
type Sightings []model.Sighting

// Builder provides a fluent interface for constructing test sightings.
type Builder interface {
	// WithSighting appends a hand-built sighting.
	WithSighting(s model.Sighting) Builder

	// WithRecords appends n distinct generated sightings. Even-numbered ones
	// are high severity with an aadhaar finding; all carry an email finding.
	WithRecords(n int) Builder

	// WithRediscovery appends a second sighting of the i-th sighting so far,
	// from a new source, one hour later.
	WithRediscovery(i int, source string) Builder

	// WithFixture appends a predefined set of sightings.
	WithFixture(f Fixture) Builder

	// Build returns the sightings in the order they were added.
	Build() Sightings
}

type builder struct {
	t         *testing.T
	sightings Sightings
}

// NewBuilder creates a builder scoped to t.
func NewBuilder(t *testing.T) Builder {
	t.Helper()
	return &builder{t: t}
}

func (b *builder) WithSighting(s model.Sighting) Builder {
	b.sightings = append(b.sightings, s)
	return b
}

func (b *builder) WithRecords(n int) Builder {
	start := len(b.sightings)
	for i := range n {
		idx := start + i
		findings := []model.Finding{{
			Category: model.CategoryEmail, Value: fmt.Sprintf("user%d@example.com", idx),
			Method: model.MethodLocalRegex, Start: 0, End: 17, Confidence: 0.8,
		}}
		severity := model.SeverityMedium
		if i%2 == 0 {
			severity = model.SeverityHigh
			findings = append(findings, model.Finding{
				Category: model.CategoryAadhaar, Value: AadhaarValue,
				Method: model.MethodLocalRegex, Start: 20, End: 32, Confidence: 0.95,
			})
		}
		b.sightings = append(b.sightings, model.Sighting{
			Fingerprint: fingerprint.Compute(fmt.Sprintf("document %d", idx)),
			Source:      fmt.Sprintf("https://paste.example/%d", idx),
			SeenAt:      BaseTime.Add(time.Duration(idx) * time.Minute),
			Severity:    severity,
			Findings:    findings,
			Rationale:   "local findings",
		})
	}
	return b
}

func (b *builder) WithRediscovery(i int, source string) Builder {
	b.t.Helper()
	if i < 0 || i >= len(b.sightings) {
		b.t.Fatalf("leaks: no sighting at index %d to rediscover", i)
	}
	s := b.sightings[i]
	s.Source = source
	s.SeenAt = s.SeenAt.Add(time.Hour)
	b.sightings = append(b.sightings, s)
	return b
}

func (b *builder) WithFixture(f Fixture) Builder {
	b.sightings = append(b.sightings, f.sightings()...)
	return b
}

func (b *builder) Build() Sightings {
	out := make(Sightings, len(b.sightings))
	copy(out, b.sightings)
	return out
}
