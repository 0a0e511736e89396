package storage

import (
	"context"
	"fmt"
)

// schemaVersion is the PRAGMA user_version this build writes and reads.
const schemaVersion = 3

// schemaStep is one forward-only change to the SQLite schema.
type schemaStep struct {
	summary    string
	statements []string
	version    int
}

var schemaSteps = []schemaStep{
	{
		version: 1,
		summary: "leak records and category index",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS leak_records (
				fingerprint TEXT PRIMARY KEY,
				version INTEGER NOT NULL DEFAULT 1,
				sources TEXT NOT NULL,
				findings TEXT NOT NULL,
				severity INTEGER NOT NULL,
				first_seen DATETIME NOT NULL,
				last_seen DATETIME NOT NULL,
				status TEXT NOT NULL DEFAULT 'new',
				rationale TEXT,
				degraded BOOLEAN NOT NULL DEFAULT 0,
				ai_enriched BOOLEAN NOT NULL DEFAULT 0,
				sighting_count INTEGER NOT NULL DEFAULT 1
			)`,
			`CREATE INDEX IF NOT EXISTS idx_leak_records_last_seen ON leak_records(last_seen DESC, fingerprint)`,
			`CREATE INDEX IF NOT EXISTS idx_leak_records_severity ON leak_records(severity)`,
			`CREATE TABLE IF NOT EXISTS record_categories (
				fingerprint TEXT NOT NULL REFERENCES leak_records(fingerprint) ON DELETE CASCADE,
				category TEXT NOT NULL,
				PRIMARY KEY (fingerprint, category)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_record_categories_category ON record_categories(category)`,
		},
	},
	{
		version: 2,
		summary: "sightings audit log",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS sightings (
				id TEXT PRIMARY KEY,
				run_id TEXT,
				source TEXT,
				fingerprint TEXT,
				outcome TEXT NOT NULL,
				stage TEXT NOT NULL,
				reason TEXT,
				degraded BOOLEAN NOT NULL DEFAULT 0,
				seen_at DATETIME NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_sightings_fingerprint ON sightings(fingerprint)`,
			`CREATE INDEX IF NOT EXISTS idx_sightings_run ON sightings(run_id)`,
		},
	},
	{
		version:    3,
		summary:    "status index",
		statements: []string{`CREATE INDEX IF NOT EXISTS idx_leak_records_status ON leak_records(status)`},
	},
}

func (s *SQLiteStorage) userVersion(ctx context.Context) (int, error) {
	var v int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return v, nil
}

// Migrate brings the schema up to schemaVersion. Each step commits on its
// own, so an interrupted run resumes from the last completed step. A
// database written by a newer build is rejected.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	current, err := s.userVersion(ctx)
	if err != nil {
		return err
	}
	if current > schemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", current, schemaVersion)
	}

	for _, step := range schemaSteps {
		if step.version <= current {
			continue
		}
		if err := s.applyStep(ctx, step); err != nil {
			return err
		}
		s.logger.Info("Applied migration", "version", step.version, "description", step.summary)
	}

	if current, err = s.userVersion(ctx); err != nil {
		return err
	}
	if current != schemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", schemaVersion, current)
	}
	return nil
}

func (s *SQLiteStorage) applyStep(ctx context.Context, step schemaStep) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration %d: %w", step.version, err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range step.statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", step.version, step.summary, err)
		}
	}
	// PRAGMA does not accept bound parameters.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", step.version)); err != nil {
		return fmt.Errorf("failed to record schema version %d: %w", step.version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %d: %w", step.version, err)
	}
	return nil
}
