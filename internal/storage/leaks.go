package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/decimal-labs/leakwatch/internal/common"
	"github.com/decimal-labs/leakwatch/internal/model"
)

const recordColumns = `fingerprint, version, sources, findings, severity, first_seen, last_seen,
	status, rationale, degraded, ai_enriched, sighting_count`

// Lookup returns the record for fp.
func (s *SQLiteStorage) Lookup(ctx context.Context, fp model.Fingerprint) (*model.LeakRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateFingerprint(fp); err != nil {
		return nil, err
	}
	return s.lookupTx(ctx, s.db, fp)
}

func (s *SQLiteStorage) lookupTx(ctx context.Context, q queryable, fp model.Fingerprint) (*model.LeakRecord, error) {
	row := q.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM leak_records WHERE fingerprint = ?`, fp)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("leak record %s: %w", fp.Short(), common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query leak record: %w", err)
	}
	return rec, nil
}

// Upsert merges a sighting into its record using optimistic concurrency on
// the version column. Lost races are retried internally.
func (s *SQLiteStorage) Upsert(ctx context.Context, sighting model.Sighting) (*model.LeakRecord, bool, error) {
	if err := validateContext(ctx); err != nil {
		return nil, false, err
	}
	if err := validateSighting(sighting); err != nil {
		return nil, false, err
	}
	sighting.SeenAt = sighting.SeenAt.UTC()

	for attempt := 1; attempt <= maxCASAttempts; attempt++ {
		rec, created, err := s.tryUpsert(ctx, sighting)
		if err == nil {
			return rec, created, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, false, ctxErr
		}
		if !errors.Is(err, common.ErrDedupConflict) {
			return nil, false, fmt.Errorf("%w: %w", common.ErrStorage, err)
		}
		s.logger.Debug("Upsert lost version race, retrying",
			"fingerprint", sighting.Fingerprint.Short(),
			"attempt", attempt)
	}
	return nil, false, fmt.Errorf("%w: %w after %d attempts", common.ErrStorage, common.ErrDedupConflict, maxCASAttempts)
}

func (s *SQLiteStorage) tryUpsert(ctx context.Context, sighting model.Sighting) (*model.LeakRecord, bool, error) {
	current, err := s.lookupTx(ctx, s.db, sighting.Fingerprint)
	switch {
	case errors.Is(err, common.ErrNotFound):
		rec := model.NewLeakRecord(sighting)
		rec.Version = 1
		if err := s.insertRecord(ctx, rec); err != nil {
			return nil, false, err
		}
		return rec, true, nil
	case err != nil:
		return nil, false, err
	}

	merged := current.Merge(sighting)
	merged.Version = current.Version + 1
	if err := s.updateRecord(ctx, merged, current.Version); err != nil {
		return nil, false, err
	}
	return merged, false, nil
}

func (s *SQLiteStorage) insertRecord(ctx context.Context, rec *model.LeakRecord) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		sources, findings, err := encodeRecord(rec)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO leak_records (`+recordColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(fingerprint) DO NOTHING`,
			rec.Fingerprint, rec.Version, sources, findings, int(rec.Severity),
			rec.FirstSeen, rec.LastSeen, string(rec.Status), nullString(rec.Rationale),
			rec.Degraded, rec.AIEnriched, rec.SightingCount)
		if err != nil {
			return fmt.Errorf("failed to insert leak record: %w", err)
		}
		if err := requireRow(res); err != nil {
			return err
		}
		return replaceCategories(ctx, tx, rec)
	})
}

func (s *SQLiteStorage) updateRecord(ctx context.Context, rec *model.LeakRecord, expectedVersion int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		sources, findings, err := encodeRecord(rec)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE leak_records SET
				version = ?, sources = ?, findings = ?, severity = ?,
				first_seen = ?, last_seen = ?, rationale = ?,
				degraded = ?, ai_enriched = ?, sighting_count = ?
			WHERE fingerprint = ? AND version = ?`,
			rec.Version, sources, findings, int(rec.Severity),
			rec.FirstSeen, rec.LastSeen, nullString(rec.Rationale),
			rec.Degraded, rec.AIEnriched, rec.SightingCount,
			rec.Fingerprint, expectedVersion)
		if err != nil {
			return fmt.Errorf("failed to update leak record: %w", err)
		}
		if err := requireRow(res); err != nil {
			return err
		}
		return replaceCategories(ctx, tx, rec)
	})
}

func (s *SQLiteStorage) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// requireRow turns a zero-row write into a dedup conflict.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return common.ErrDedupConflict
	}
	return nil
}

func replaceCategories(ctx context.Context, tx *sql.Tx, rec *model.LeakRecord) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM record_categories WHERE fingerprint = ?`, rec.Fingerprint); err != nil {
		return fmt.Errorf("failed to clear categories: %w", err)
	}
	for _, c := range rec.Categories() {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO record_categories (fingerprint, category) VALUES (?, ?)`,
			rec.Fingerprint, string(c)); err != nil {
			return fmt.Errorf("failed to insert category: %w", err)
		}
	}
	return nil
}

// SetStatus records a manual review decision.
func (s *SQLiteStorage) SetStatus(ctx context.Context, fp model.Fingerprint, status model.Status) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateFingerprint(fp); err != nil {
		return err
	}
	if err := validateStatus(status); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE leak_records SET status = ?, version = version + 1 WHERE fingerprint = ?`,
		string(status), fp)
	if err != nil {
		return fmt.Errorf("%w: failed to update status: %w", common.ErrStorage, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("leak record %s: %w", fp.Short(), common.ErrNotFound)
	}
	return nil
}

// RecordSighting appends an entry to the audit log.
func (s *SQLiteStorage) RecordSighting(ctx context.Context, entry model.SightingLog) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sightings (id, run_id, source, fingerprint, outcome, stage, reason, degraded, seen_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, nullString(entry.RunID), nullString(entry.Source), nullString(string(entry.Fingerprint)),
		string(entry.Outcome), string(entry.Stage), nullString(string(entry.Reason)),
		entry.Degraded, entry.SeenAt.UTC())
	if err != nil {
		return fmt.Errorf("%w: failed to record sighting: %w", common.ErrStorage, err)
	}
	return nil
}

// History returns the audit entries for fp, oldest first.
func (s *SQLiteStorage) History(ctx context.Context, fp model.Fingerprint) ([]model.SightingLog, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateFingerprint(fp); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, source, fingerprint, outcome, stage, reason, degraded, seen_at
		FROM sightings WHERE fingerprint = ? ORDER BY seen_at, id`, fp)
	if err != nil {
		return nil, fmt.Errorf("failed to query sightings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []model.SightingLog
	for rows.Next() {
		var (
			e                            model.SightingLog
			runID, source, fpCol, reason sql.NullString
			outcome, stage               string
		)
		if err := rows.Scan(&e.ID, &runID, &source, &fpCol, &outcome, &stage, &reason, &e.Degraded, &e.SeenAt); err != nil {
			return nil, fmt.Errorf("failed to scan sighting: %w", err)
		}
		e.RunID = runID.String
		e.Source = source.String
		e.Fingerprint = model.Fingerprint(fpCol.String)
		e.Outcome = model.Outcome(outcome)
		e.Stage = model.Stage(stage)
		e.Reason = model.Reason(reason.String)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Search yields matching records ordered by last-seen descending, fetching
// one page per round trip. Ranging over the sequence again restarts the query.
func (s *SQLiteStorage) Search(ctx context.Context, q model.SearchQuery) iter.Seq2[*model.LeakRecord, error] {
	return func(yield func(*model.LeakRecord, error) bool) {
		if err := validateContext(ctx); err != nil {
			yield(nil, err)
			return
		}
		if err := validateQuery(q); err != nil {
			yield(nil, err)
			return
		}
		cursor, err := decodeCursor(q.Cursor)
		if err != nil {
			yield(nil, err)
			return
		}
		pageSize := q.PageSize
		if pageSize == 0 {
			pageSize = defaultPageSize
		}

		yielded := 0
		for {
			page, err := s.searchPage(ctx, q, cursor, pageSize)
			if err != nil {
				yield(nil, err)
				return
			}
			for _, rec := range page {
				if !matchesQuery(rec, q) {
					continue
				}
				if !yield(rec, nil) {
					return
				}
				yielded++
				if q.Limit > 0 && yielded >= q.Limit {
					return
				}
			}
			if len(page) < pageSize {
				return
			}
			last := page[len(page)-1]
			cursor = &pageCursor{lastSeen: last.LastSeen, fingerprint: last.Fingerprint}
		}
	}
}

func (s *SQLiteStorage) searchPage(ctx context.Context, q model.SearchQuery, cursor *pageCursor, pageSize int) ([]*model.LeakRecord, error) {
	var (
		where []string
		args  []any
	)
	if cursor != nil {
		where = append(where, `(last_seen < ? OR (last_seen = ? AND fingerprint > ?))`)
		args = append(args, cursor.lastSeen, cursor.lastSeen, cursor.fingerprint)
	}
	if q.Since != nil {
		where = append(where, `last_seen >= ?`)
		args = append(args, q.Since.UTC())
	}
	if q.Until != nil {
		where = append(where, `last_seen <= ?`)
		args = append(args, q.Until.UTC())
	}
	if q.Status != "" {
		where = append(where, `status = ?`)
		args = append(args, string(q.Status))
	}
	if q.MinSeverity != 0 {
		where = append(where, `severity >= ?`)
		args = append(args, int(q.MinSeverity))
	}
	if q.MaxSeverity != 0 {
		where = append(where, `severity <= ?`)
		args = append(args, int(q.MaxSeverity))
	}
	if q.Category != "" {
		where = append(where, `fingerprint IN (SELECT fingerprint FROM record_categories WHERE category = ?)`)
		args = append(args, string(q.Category))
	}
	if q.Source != "" && likeSafe(q.Source) {
		where = append(where, `sources LIKE ? ESCAPE '\'`)
		args = append(args, likePattern(q.Source))
	}
	if q.Identifier != "" && likeSafe(q.Identifier) {
		where = append(where, `findings LIKE ? ESCAPE '\'`)
		args = append(args, likePattern(q.Identifier))
	}

	query := `SELECT ` + recordColumns + ` FROM leak_records`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY last_seen DESC, fingerprint ASC LIMIT ?`
	args = append(args, pageSize)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search leak records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	page := make([]*model.LeakRecord, 0, pageSize)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan leak record: %w", err)
		}
		page = append(page, rec)
	}
	return page, rows.Err()
}

// Stats returns aggregate counts over records and the audit log.
func (s *SQLiteStorage) Stats(ctx context.Context) (*model.Stats, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	stats := model.NewStats()
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(degraded), 0), COALESCE(SUM(ai_enriched), 0)
		FROM leak_records`).Scan(&stats.TotalRecords, &stats.DegradedRecords, &stats.AIEnriched)
	if err != nil {
		return nil, fmt.Errorf("failed to count leak records: %w", err)
	}

	groups := []struct {
		add   func(key string, n int)
		query string
	}{
		{
			query: `SELECT CAST(severity AS TEXT), COUNT(*) FROM leak_records GROUP BY severity`,
			add: func(key string, n int) {
				if sev, err := strconv.Atoi(key); err == nil {
					stats.BySeverity[model.Severity(sev)] = n
				}
			},
		},
		{
			query: `SELECT status, COUNT(*) FROM leak_records GROUP BY status`,
			add:   func(key string, n int) { stats.ByStatus[model.Status(key)] = n },
		},
		{
			query: `SELECT category, COUNT(*) FROM record_categories GROUP BY category`,
			add:   func(key string, n int) { stats.ByCategory[model.Category(key)] = n },
		},
		{
			query: `SELECT outcome, COUNT(*) FROM sightings GROUP BY outcome`,
			add:   func(key string, n int) { stats.ByOutcome[model.Outcome(key)] = n },
		},
		{
			query: `SELECT COALESCE(reason, ''), COUNT(*) FROM sightings WHERE outcome = 'failed' GROUP BY reason`,
			add:   func(key string, n int) { stats.FailuresByReason[model.Reason(key)] = n },
		},
	}
	for _, g := range groups {
		if err := s.countGroup(ctx, g.query, g.add); err != nil {
			return nil, err
		}
	}
	return stats, nil
}

func (s *SQLiteStorage) countGroup(ctx context.Context, query string, add func(string, int)) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to query stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			key string
			n   int
		)
		if err := rows.Scan(&key, &n); err != nil {
			return fmt.Errorf("failed to scan stats row: %w", err)
		}
		add(key, n)
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*model.LeakRecord, error) {
	var (
		rec               model.LeakRecord
		fp, status        string
		sources, findings string
		rationale         sql.NullString
		severity          int
	)
	err := row.Scan(&fp, &rec.Version, &sources, &findings, &severity,
		&rec.FirstSeen, &rec.LastSeen, &status, &rationale,
		&rec.Degraded, &rec.AIEnriched, &rec.SightingCount)
	if err != nil {
		return nil, err
	}
	rec.Fingerprint = model.Fingerprint(fp)
	rec.Status = model.Status(status)
	rec.Severity = model.Severity(severity)
	rec.Rationale = rationale.String
	rec.FirstSeen = rec.FirstSeen.UTC()
	rec.LastSeen = rec.LastSeen.UTC()
	if err := json.Unmarshal([]byte(sources), &rec.Sources); err != nil {
		return nil, fmt.Errorf("failed to decode sources: %w", err)
	}
	if err := json.Unmarshal([]byte(findings), &rec.Findings); err != nil {
		return nil, fmt.Errorf("failed to decode findings: %w", err)
	}
	return &rec, nil
}

func encodeRecord(rec *model.LeakRecord) (sources, findings string, err error) {
	srcs := rec.Sources
	if srcs == nil {
		srcs = []string{}
	}
	fs := rec.Findings
	if fs == nil {
		fs = []model.Finding{}
	}
	sb, err := json.Marshal(srcs)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode sources: %w", err)
	}
	fb, err := json.Marshal(fs)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode findings: %w", err)
	}
	return string(sb), string(fb), nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
