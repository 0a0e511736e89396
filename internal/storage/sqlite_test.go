package storage

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decimal-labs/leakwatch/internal/common"
	"github.com/decimal-labs/leakwatch/internal/fingerprint"
	"github.com/decimal-labs/leakwatch/internal/model"
	"github.com/decimal-labs/leakwatch/internal/service"
)

// Helper function to create test storage.
func createTestStorage(t *testing.T) (*SQLiteStorage, func()) {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		t.Fatalf("Failed to migrate: %v", err)
	}

	return store, func() { _ = store.Close() }
}

func createTestBoltStorage(t *testing.T) (*BoltStorage, func()) {
	t.Helper()
	store, err := NewBoltStorage(filepath.Join(t.TempDir(), "test.bolt"))
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	if err := store.Migrate(context.Background()); err != nil {
		_ = store.Close()
		t.Fatalf("Failed to migrate: %v", err)
	}
	return store, func() { _ = store.Close() }
}

// backends runs fn against every LeakStore implementation.
func backends(t *testing.T, fn func(t *testing.T, store service.LeakStore)) {
	t.Helper()
	t.Run("sqlite", func(t *testing.T) {
		store, cleanup := createTestStorage(t)
		defer cleanup()
		fn(t, store)
	})
	t.Run("bolt", func(t *testing.T) {
		store, cleanup := createTestBoltStorage(t)
		defer cleanup()
		fn(t, store)
	})
}

func testFingerprint(seed string) model.Fingerprint {
	return fingerprint.Compute(seed)
}

func testSighting(seed, source string, sev model.Severity, at time.Time, findings ...model.Finding) model.Sighting {
	return model.Sighting{
		Fingerprint: testFingerprint(seed),
		Source:      source,
		Severity:    sev,
		SeenAt:      at,
		Findings:    findings,
		Rationale:   "local " + sev.String(),
	}
}

func emailFinding(value string) model.Finding {
	return model.Finding{
		Category:   model.CategoryEmail,
		Value:      value,
		Method:     model.MethodLocalRegex,
		End:        len(value),
		Confidence: 0.8,
	}
}

func TestLeakStore_UpsertCreatesThenMerges(t *testing.T) {
	backends(t, func(t *testing.T, store service.LeakStore) {
		ctx := context.Background()
		t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

		rec, created, err := store.Upsert(ctx, testSighting("doc", "https://paste.example/a", model.SeverityMedium, t0, emailFinding("a@b.io")))
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, model.StatusNew, rec.Status)
		assert.Equal(t, 1, rec.SightingCount)

		pan := model.Finding{Category: model.CategoryPAN, Value: "ABCPE1234F", Method: model.MethodLocalRegex, Confidence: 0.9}
		rec, created, err = store.Upsert(ctx, testSighting("doc", "https://forum.example/t/9", model.SeverityHigh, t0.Add(time.Hour), pan))
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, model.SeverityHigh, rec.Severity)
		assert.Equal(t, []string{"https://paste.example/a", "https://forum.example/t/9"}, rec.Sources)
		assert.Len(t, rec.Findings, 2)
		assert.Equal(t, 2, rec.SightingCount)

		// A later, milder sighting never lowers severity.
		rec, _, err = store.Upsert(ctx, testSighting("doc", "https://paste.example/a", model.SeverityLow, t0.Add(2*time.Hour)))
		require.NoError(t, err)
		assert.Equal(t, model.SeverityHigh, rec.Severity)
		assert.Len(t, rec.Sources, 2)

		got, err := store.Lookup(ctx, testFingerprint("doc"))
		require.NoError(t, err)
		assert.True(t, got.FirstSeen.Equal(t0))
		assert.True(t, got.LastSeen.Equal(t0.Add(2*time.Hour)))
		assert.Equal(t, model.SeverityHigh, got.Severity)
		assert.Equal(t, 3, got.SightingCount)
		assert.Equal(t, []model.Category{model.CategoryPAN, model.CategoryEmail}, got.Categories())
	})
}

func TestLeakStore_OutOfOrderSightings(t *testing.T) {
	backends(t, func(t *testing.T, store service.LeakStore) {
		ctx := context.Background()
		t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

		_, _, err := store.Upsert(ctx, testSighting("doc", "s1", model.SeverityLow, t0))
		require.NoError(t, err)
		rec, _, err := store.Upsert(ctx, testSighting("doc", "s2", model.SeverityLow, t0.Add(-time.Hour)))
		require.NoError(t, err)

		assert.True(t, rec.FirstSeen.Equal(t0.Add(-time.Hour)))
		assert.True(t, rec.LastSeen.Equal(t0))
	})
}

func TestLeakStore_ConcurrentUpsertSingleRecord(t *testing.T) {
	backends(t, func(t *testing.T, store service.LeakStore) {
		ctx := context.Background()
		const workers = 16
		now := time.Now()

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			created int
			errs    []error
		)
		for i := range workers {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				src := "https://mirror.example/" + string(rune('a'+i))
				_, c, err := store.Upsert(ctx, testSighting("same content", src, model.SeverityMedium, now))
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					errs = append(errs, err)
				}
				if c {
					created++
				}
			}(i)
		}
		wg.Wait()

		require.Empty(t, errs)
		assert.Equal(t, 1, created, "exactly one upsert should create the record")

		rec, err := store.Lookup(ctx, testFingerprint("same content"))
		require.NoError(t, err)
		assert.Len(t, rec.Sources, workers)
		assert.Equal(t, workers, rec.SightingCount)

		var n int
		for r, err := range store.Search(ctx, model.SearchQuery{}) {
			require.NoError(t, err)
			assert.Equal(t, rec.Fingerprint, r.Fingerprint)
			n++
		}
		assert.Equal(t, 1, n)
	})
}

func TestLeakStore_LookupMissing(t *testing.T) {
	backends(t, func(t *testing.T, store service.LeakStore) {
		_, err := store.Lookup(context.Background(), testFingerprint("never stored"))
		assert.ErrorIs(t, err, common.ErrNotFound)

		_, err = store.Lookup(context.Background(), "not-a-fingerprint")
		assert.ErrorIs(t, err, common.ErrInvalidInput)
	})
}

func TestLeakStore_SetStatus(t *testing.T) {
	backends(t, func(t *testing.T, store service.LeakStore) {
		ctx := context.Background()
		_, _, err := store.Upsert(ctx, testSighting("doc", "s", model.SeverityHigh, time.Now()))
		require.NoError(t, err)

		require.NoError(t, store.SetStatus(ctx, testFingerprint("doc"), model.StatusArchived))
		rec, err := store.Lookup(ctx, testFingerprint("doc"))
		require.NoError(t, err)
		assert.Equal(t, model.StatusArchived, rec.Status)

		// Later sightings keep the review decision.
		rec, _, err = store.Upsert(ctx, testSighting("doc", "s2", model.SeverityHigh, time.Now()))
		require.NoError(t, err)
		assert.Equal(t, model.StatusArchived, rec.Status)

		err = store.SetStatus(ctx, testFingerprint("missing"), model.StatusReviewed)
		assert.ErrorIs(t, err, common.ErrNotFound)

		err = store.SetStatus(ctx, testFingerprint("doc"), "deleted")
		assert.ErrorIs(t, err, ErrInvalidStatus)
	})
}

func seedSearchData(t *testing.T, store service.LeakStore) time.Time {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	aadhaar := model.Finding{Category: model.CategoryAadhaar, Value: "234123412346", Method: model.MethodLocalRegex, Confidence: 0.95}

	sightings := []model.Sighting{
		testSighting("one", "https://paste.example/1", model.SeverityHigh, base.Add(1*time.Hour), aadhaar),
		testSighting("two", "https://forum.example/2", model.SeverityMedium, base.Add(2*time.Hour), emailFinding("ops@corp.example")),
		testSighting("three", "https://paste.example/3", model.SeverityLow, base.Add(3*time.Hour)),
		testSighting("four", "https://forum.example/4", model.SeverityHigh, base.Add(4*time.Hour), emailFinding("Admin@Corp.example"), aadhaar),
	}
	for _, s := range sightings {
		_, _, err := store.Upsert(ctx, s)
		require.NoError(t, err)
	}
	return base
}

func collect(t *testing.T, store service.LeakStore, q model.SearchQuery) []model.Fingerprint {
	t.Helper()
	var fps []model.Fingerprint
	for rec, err := range store.Search(context.Background(), q) {
		require.NoError(t, err)
		fps = append(fps, rec.Fingerprint)
	}
	return fps
}

func TestLeakStore_Search(t *testing.T) {
	backends(t, func(t *testing.T, store service.LeakStore) {
		base := seedSearchData(t, store)
		since := base.Add(2 * time.Hour)
		until := base.Add(3 * time.Hour)
		fp := testFingerprint

		tests := []struct {
			name  string
			query model.SearchQuery
			want  []model.Fingerprint
		}{
			{
				name:  "all ordered by last seen descending",
				query: model.SearchQuery{},
				want:  []model.Fingerprint{fp("four"), fp("three"), fp("two"), fp("one")},
			},
			{
				name:  "by category",
				query: model.SearchQuery{Category: model.CategoryAadhaar},
				want:  []model.Fingerprint{fp("four"), fp("one")},
			},
			{
				name:  "by min severity",
				query: model.SearchQuery{MinSeverity: model.SeverityHigh},
				want:  []model.Fingerprint{fp("four"), fp("one")},
			},
			{
				name:  "by max severity",
				query: model.SearchQuery{MaxSeverity: model.SeverityLow},
				want:  []model.Fingerprint{fp("three")},
			},
			{
				name:  "by source substring",
				query: model.SearchQuery{Source: "forum.example"},
				want:  []model.Fingerprint{fp("four"), fp("two")},
			},
			{
				name:  "by identifier case insensitive",
				query: model.SearchQuery{Identifier: "admin@corp"},
				want:  []model.Fingerprint{fp("four")},
			},
			{
				name:  "identifier does not match json keys",
				query: model.SearchQuery{Identifier: "category"},
				want:  nil,
			},
			{
				name:  "by time range",
				query: model.SearchQuery{Since: &since, Until: &until},
				want:  []model.Fingerprint{fp("three"), fp("two")},
			},
			{
				name:  "limit",
				query: model.SearchQuery{Limit: 2},
				want:  []model.Fingerprint{fp("four"), fp("three")},
			},
			{
				name:  "small pages",
				query: model.SearchQuery{PageSize: 1},
				want:  []model.Fingerprint{fp("four"), fp("three"), fp("two"), fp("one")},
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				assert.Equal(t, tt.want, collect(t, store, tt.query))
			})
		}
	})
}

func TestLeakStore_SearchCursorAndRestart(t *testing.T) {
	backends(t, func(t *testing.T, store service.LeakStore) {
		seedSearchData(t, store)
		ctx := context.Background()

		seq := store.Search(ctx, model.SearchQuery{})
		var first *model.LeakRecord
		for rec, err := range seq {
			require.NoError(t, err)
			first = rec
			break
		}
		require.NotNil(t, first)

		// Ranging again restarts from the top.
		var again []model.Fingerprint
		for rec, err := range seq {
			require.NoError(t, err)
			again = append(again, rec.Fingerprint)
		}
		require.Len(t, again, 4)
		assert.Equal(t, first.Fingerprint, again[0])

		rest := collect(t, store, model.SearchQuery{Cursor: EncodeCursor(first)})
		assert.Equal(t, again[1:], rest)
	})
}

func TestLeakStore_SearchInvalidQuery(t *testing.T) {
	backends(t, func(t *testing.T, store service.LeakStore) {
		for _, q := range []model.SearchQuery{{Cursor: "!!"}, {Category: "nope"}} {
			var gotErr error
			for _, err := range store.Search(context.Background(), q) {
				gotErr = err
			}
			assert.Error(t, gotErr)
		}
	})
}

func TestLeakStore_StatsAndHistory(t *testing.T) {
	backends(t, func(t *testing.T, store service.LeakStore) {
		ctx := context.Background()
		seedSearchData(t, store)

		fp := testFingerprint("one")
		now := time.Now()
		entries := []model.SightingLog{
			{RunID: "r1", Source: "s", Fingerprint: fp, Outcome: model.OutcomePersisted, Stage: model.StagePersisted, SeenAt: now},
			{RunID: "r1", Source: "s", Fingerprint: fp, Outcome: model.OutcomeDegradedPersisted, Stage: model.StagePersisted, Reason: model.ReasonClassifierTimeout, Degraded: true, SeenAt: now.Add(time.Second)},
			{RunID: "r1", Source: "bad", Outcome: model.OutcomeFailed, Stage: model.StageExtracted, Reason: model.ReasonExtractionError, SeenAt: now.Add(2 * time.Second)},
		}
		for _, e := range entries {
			require.NoError(t, store.RecordSighting(ctx, e))
		}

		stats, err := store.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 4, stats.TotalRecords)
		assert.Equal(t, 2, stats.BySeverity[model.SeverityHigh])
		assert.Equal(t, 1, stats.BySeverity[model.SeverityMedium])
		assert.Equal(t, 2, stats.ByCategory[model.CategoryAadhaar])
		assert.Equal(t, 2, stats.ByCategory[model.CategoryEmail])
		assert.Equal(t, 4, stats.ByStatus[model.StatusNew])
		assert.Equal(t, 1, stats.ByOutcome[model.OutcomeFailed])
		assert.Equal(t, 1, stats.FailuresByReason[model.ReasonExtractionError])

		history, err := store.History(ctx, fp)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, model.OutcomePersisted, history[0].Outcome)
		assert.Equal(t, model.ReasonClassifierTimeout, history[1].Reason)
		assert.NotEmpty(t, history[0].ID)
	})
}

func TestSQLiteStorage_Migrations(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store1, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	ctx := context.Background()
	if err2 := store1.Migrate(ctx); err2 != nil {
		t.Fatalf("Initial migration failed: %v", err2)
	}
	_ = store1.Close()

	// Running migrations again should not error.
	store2, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	defer func() { _ = store2.Close() }()

	if err := store2.Migrate(ctx); err != nil {
		t.Fatalf("Repeated migration failed: %v", err)
	}

	if _, _, err := store2.Upsert(ctx, testSighting("doc", "s", model.SeverityLow, time.Now())); err != nil {
		t.Errorf("Database not functional after migration: %v", err)
	}
}

func TestSQLiteStorage_CanceledContext(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := store.Upsert(ctx, testSighting("doc", "s", model.SeverityLow, time.Now()))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Upsert() error = %v, want context.Canceled", err)
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	for _, backend := range []string{BackendSQLite, BackendBolt} {
		store, err := Open(backend, filepath.Join(dir, backend+".db"))
		require.NoError(t, err)
		require.NoError(t, store.Migrate(context.Background()))
		require.NoError(t, store.Close())
	}

	_, err := Open("postgres", filepath.Join(dir, "x"))
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}

func TestSQLiteStorage_MigrateRejectsNewerSchema(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	ctx := context.Background()
	_, err := store.db.ExecContext(ctx, "PRAGMA user_version = 99")
	require.NoError(t, err)

	err = store.Migrate(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newer than supported")
}
