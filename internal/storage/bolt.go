package storage

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/decimal-labs/leakwatch/internal/common"
	"github.com/decimal-labs/leakwatch/internal/model"
	"github.com/decimal-labs/leakwatch/internal/service"
)

var _ service.LeakStore = (*BoltStorage)(nil)

var (
	recordsBucket   = []byte("records")
	sightingsBucket = []byte("sightings")
	metaBucket      = []byte("meta")
	schemaKey       = []byte("schema_version")
)

// boltSchemaVersion is bumped when the bucket layout changes.
const boltSchemaVersion = 1

// BoltStorage implements service.LeakStore on an embedded bbolt database.
// Writers are serialised by bbolt, so an upsert is a single read-merge-write
// transaction.
type BoltStorage struct {
	db     *bolt.DB
	logger *slog.Logger
}

// NewBoltStorage opens (or creates) the bbolt database at path.
func NewBoltStorage(path string) (*BoltStorage, error) {
	if err := validateString(path, "path"); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt store %q: %w", path, err)
	}
	return &BoltStorage{db: db, logger: slog.Default()}, nil
}

// WithLogger sets the logger used for storage diagnostics.
func (b *BoltStorage) WithLogger(logger *slog.Logger) *BoltStorage {
	if logger != nil {
		b.logger = logger
	}
	return b
}

// Close closes the database.
func (b *BoltStorage) Close() error {
	return b.db.Close()
}

// Migrate creates the buckets and stamps the layout version.
func (b *BoltStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{recordsBucket, sightingsBucket, metaBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %q: %w", name, err)
			}
		}
		meta := tx.Bucket(metaBucket)
		if v := meta.Get(schemaKey); v != nil {
			if got := int(binary.BigEndian.Uint64(v)); got > boltSchemaVersion {
				return fmt.Errorf("database schema version mismatch: expected %d, got %d", boltSchemaVersion, got)
			}
		}
		return meta.Put(schemaKey, binary.BigEndian.AppendUint64(nil, boltSchemaVersion))
	})
}

// Lookup returns the record for fp.
func (b *BoltStorage) Lookup(ctx context.Context, fp model.Fingerprint) (*model.LeakRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateFingerprint(fp); err != nil {
		return nil, err
	}

	var rec *model.LeakRecord
	err := b.db.View(func(tx *bolt.Tx) error {
		var err error
		rec, err = getRecord(tx, fp)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Upsert merges a sighting into its record.
func (b *BoltStorage) Upsert(ctx context.Context, sighting model.Sighting) (*model.LeakRecord, bool, error) {
	if err := validateContext(ctx); err != nil {
		return nil, false, err
	}
	if err := validateSighting(sighting); err != nil {
		return nil, false, err
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	sighting.SeenAt = sighting.SeenAt.UTC()

	var (
		result  *model.LeakRecord
		created bool
	)
	err := b.db.Update(func(tx *bolt.Tx) error {
		current, err := getRecord(tx, sighting.Fingerprint)
		switch {
		case errors.Is(err, common.ErrNotFound):
			result = model.NewLeakRecord(sighting)
			result.Version = 1
			created = true
		case err != nil:
			return err
		default:
			result = current.Merge(sighting)
			result.Version = current.Version + 1
		}
		return putRecord(tx, result)
	})
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", common.ErrStorage, err)
	}
	return result, created, nil
}

// SetStatus records a manual review decision.
func (b *BoltStorage) SetStatus(ctx context.Context, fp model.Fingerprint, status model.Status) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateFingerprint(fp); err != nil {
		return err
	}
	if err := validateStatus(status); err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		rec, err := getRecord(tx, fp)
		if err != nil {
			return err
		}
		rec.Status = status
		rec.Version++
		return putRecord(tx, rec)
	})
}

// RecordSighting appends an entry to the audit log.
func (b *BoltStorage) RecordSighting(ctx context.Context, entry model.SightingLog) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.SeenAt = entry.SeenAt.UTC()
	data, err := json.Marshal(sightingDoc(entry))
	if err != nil {
		return fmt.Errorf("failed to encode sighting: %w", err)
	}
	// Keys sort by time, then id.
	key := binary.BigEndian.AppendUint64(nil, uint64(entry.SeenAt.UnixNano()))
	key = append(key, entry.ID...)

	err = b.db.Update(func(tx *bolt.Tx) error {
		bkt, err := bucket(tx, sightingsBucket)
		if err != nil {
			return err
		}
		return bkt.Put(key, data)
	})
	if err != nil {
		return fmt.Errorf("%w: failed to record sighting: %w", common.ErrStorage, err)
	}
	return nil
}

// History returns the audit entries for fp, oldest first.
func (b *BoltStorage) History(ctx context.Context, fp model.Fingerprint) ([]model.SightingLog, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateFingerprint(fp); err != nil {
		return nil, err
	}

	var entries []model.SightingLog
	err := b.eachSighting(func(e model.SightingLog) {
		if e.Fingerprint == fp {
			entries = append(entries, e)
		}
	})
	return entries, err
}

// Search yields matching records ordered by last-seen descending. The bbolt
// backend has no secondary indexes, so each pass loads and sorts the matches.
func (b *BoltStorage) Search(ctx context.Context, q model.SearchQuery) iter.Seq2[*model.LeakRecord, error] {
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

		var matches []*model.LeakRecord
		err = b.eachRecord(func(rec *model.LeakRecord) {
			if cursor.after(rec) && matchesQuery(rec, q) {
				matches = append(matches, rec)
			}
		})
		if err != nil {
			yield(nil, err)
			return
		}
		slices.SortFunc(matches, compareRecords)

		for i, rec := range matches {
			if q.Limit > 0 && i >= q.Limit {
				return
			}
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}

// Stats returns aggregate counts over records and the audit log.
func (b *BoltStorage) Stats(ctx context.Context) (*model.Stats, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	stats := model.NewStats()
	err := b.eachRecord(func(rec *model.LeakRecord) {
		stats.TotalRecords++
		stats.BySeverity[rec.Severity]++
		stats.ByStatus[rec.Status]++
		for _, c := range rec.Categories() {
			stats.ByCategory[c]++
		}
		if rec.Degraded {
			stats.DegradedRecords++
		}
		if rec.AIEnriched {
			stats.AIEnriched++
		}
	})
	if err != nil {
		return nil, err
	}
	err = b.eachSighting(func(e model.SightingLog) {
		stats.ByOutcome[e.Outcome]++
		if e.Outcome == model.OutcomeFailed {
			stats.FailuresByReason[e.Reason]++
		}
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (b *BoltStorage) eachRecord(fn func(*model.LeakRecord)) error {
	return b.db.View(func(tx *bolt.Tx) error {
		bkt, err := bucket(tx, recordsBucket)
		if err != nil {
			return err
		}
		return bkt.ForEach(func(_, v []byte) error {
			var rec model.LeakRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("failed to decode leak record: %w", err)
			}
			fn(&rec)
			return nil
		})
	})
}

func (b *BoltStorage) eachSighting(fn func(model.SightingLog)) error {
	return b.db.View(func(tx *bolt.Tx) error {
		bkt, err := bucket(tx, sightingsBucket)
		if err != nil {
			return err
		}
		return bkt.ForEach(func(_, v []byte) error {
			var doc sightingJSON
			if err := json.Unmarshal(v, &doc); err != nil {
				return fmt.Errorf("failed to decode sighting: %w", err)
			}
			fn(doc.entry())
			return nil
		})
	})
}

func bucket(tx *bolt.Tx, name []byte) (*bolt.Bucket, error) {
	bkt := tx.Bucket(name)
	if bkt == nil {
		return nil, fmt.Errorf("bucket %q not found; run migrate", name)
	}
	return bkt, nil
}

func getRecord(tx *bolt.Tx, fp model.Fingerprint) (*model.LeakRecord, error) {
	bkt, err := bucket(tx, recordsBucket)
	if err != nil {
		return nil, err
	}
	v := bkt.Get([]byte(fp))
	if v == nil {
		return nil, fmt.Errorf("leak record %s: %w", fp.Short(), common.ErrNotFound)
	}
	var rec model.LeakRecord
	if err := json.Unmarshal(v, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode leak record: %w", err)
	}
	return &rec, nil
}

func putRecord(tx *bolt.Tx, rec *model.LeakRecord) error {
	bkt, err := bucket(tx, recordsBucket)
	if err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode leak record: %w", err)
	}
	return bkt.Put([]byte(rec.Fingerprint), data)
}

// sightingJSON is the stored form of a model.SightingLog.
type sightingJSON struct {
	SeenAt      time.Time `json:"seen_at"`
	ID          string    `json:"id"`
	RunID       string    `json:"run_id,omitempty"`
	Source      string    `json:"source,omitempty"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	Outcome     string    `json:"outcome"`
	Stage       string    `json:"stage"`
	Reason      string    `json:"reason,omitempty"`
	Degraded    bool      `json:"degraded"`
}

func sightingDoc(e model.SightingLog) sightingJSON {
	return sightingJSON{
		SeenAt:      e.SeenAt,
		ID:          e.ID,
		RunID:       e.RunID,
		Source:      e.Source,
		Fingerprint: string(e.Fingerprint),
		Outcome:     string(e.Outcome),
		Stage:       string(e.Stage),
		Reason:      string(e.Reason),
		Degraded:    e.Degraded,
	}
}

func (d sightingJSON) entry() model.SightingLog {
	return model.SightingLog{
		SeenAt:      d.SeenAt,
		ID:          d.ID,
		RunID:       d.RunID,
		Source:      d.Source,
		Fingerprint: model.Fingerprint(d.Fingerprint),
		Outcome:     model.Outcome(d.Outcome),
		Stage:       model.Stage(d.Stage),
		Reason:      model.Reason(d.Reason),
		Degraded:    d.Degraded,
	}
}
