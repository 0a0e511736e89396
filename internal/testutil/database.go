// Package testutil provides shared test fixtures: an in-memory leak store
// seeded through the leaks builder.
package testutil

import (
	"context"
	"testing"

	"github.com/decimal-labs/leakwatch/internal/model"
	"github.com/decimal-labs/leakwatch/internal/service"
	"github.com/decimal-labs/leakwatch/internal/storage"
	"github.com/decimal-labs/leakwatch/internal/testutil/leaks"
)

// RunID is recorded on every seeded audit log entry.
const RunID = "test-run"

// TestDB represents a test database with the records seeded into it.
type TestDB struct {
	Storage service.LeakStore
	t       *testing.T
	// Records holds the stored record after each seeded sighting, in seed order.
	Records []*model.LeakRecord
}

// SetupTestDB creates a new in-memory test database and seeds it with the
// given sightings. Each sighting is upserted and recorded in the audit log.
// Cleanup is registered on t.
//
// Example:
//
//	db := testutil.SetupTestDB(t, leaks.NewBuilder(t).WithRecords(5).Build())
func SetupTestDB(t *testing.T, sightings leaks.Sightings) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	db := &TestDB{Storage: store, t: t}
	for _, s := range sightings {
		db.Records = append(db.Records, db.Seed(s))
	}
	return db
}

// SetupTestDBWithBuilder creates a test database using a leaks builder.
//
// Example:
//
//	db := testutil.SetupTestDBWithBuilder(t, func(b leaks.Builder) leaks.Builder {
//		return b.WithFixture(leaks.FixtureMixed)
//	})
func SetupTestDBWithBuilder(t *testing.T, configure func(leaks.Builder) leaks.Builder) *TestDB {
	t.Helper()

	builder := leaks.NewBuilder(t)
	if configure != nil {
		builder = configure(builder)
	}
	return SetupTestDB(t, builder.Build())
}

// Seed upserts one more sighting and writes its audit entry.
func (db *TestDB) Seed(s model.Sighting) *model.LeakRecord {
	db.t.Helper()
	ctx := context.Background()

	rec, _, err := db.Storage.Upsert(ctx, s)
	if err != nil {
		db.t.Fatalf("failed to seed sighting from %s: %v", s.Source, err)
	}

	outcome := model.OutcomePersisted
	reason := model.ReasonNone
	if s.Degraded {
		outcome = model.OutcomeDegradedPersisted
		reason = model.ReasonClassifierUnavailable
	}
	if err := db.Storage.RecordSighting(ctx, model.SightingLog{
		SeenAt:      s.SeenAt,
		RunID:       RunID,
		Source:      s.Source,
		Fingerprint: s.Fingerprint,
		Outcome:     outcome,
		Stage:       model.StagePersisted,
		Reason:      reason,
		Degraded:    s.Degraded,
	}); err != nil {
		db.t.Fatalf("failed to seed audit entry for %s: %v", s.Source, err)
	}
	return rec
}

// Fingerprints returns the fingerprints of the seeded records, in seed order.
func (db *TestDB) Fingerprints() []model.Fingerprint {
	fps := make([]model.Fingerprint, len(db.Records))
	for i, rec := range db.Records {
		fps[i] = rec.Fingerprint
	}
	return fps
}

// MustLookup returns the stored record for fp or fails the test.
func (db *TestDB) MustLookup(fp model.Fingerprint) *model.LeakRecord {
	db.t.Helper()
	rec, err := db.Storage.Lookup(context.Background(), fp)
	if err != nil {
		db.t.Fatalf("failed to look up %s: %v", fp.Short(), err)
	}
	return rec
}
