package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Phlares/wow-arena-analysis/internal/domain/types"
	"github.com/Phlares/wow-arena-analysis/pkg/logger"
	"github.com/Phlares/wow-arena-analysis/pkg/metrics"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes.
const schemaVersion = 1

const (
	sqliteBusyCode     = 5
	busyRetryAttempts  = 5
	busyRetryBackoff   = 10 * time.Millisecond
	defaultBusyTimeout = 5 * time.Second
)

const recordColumns = `recording_id, run_id, status, error_kind, error, filename, match_type, location,
	session_key, start_ns, end_ns, open, tier, confidence, ambiguous, location_id, rounds,
	cast_success_own, interrupts_performed, times_interrupted, buff_gained_own, buff_gained_enemy,
	purges_own, times_died, spells_cast, spells_purged, malformed_skipped, processed_at_ns`

// SQLiteStore implements Store on a SQLite file.
type SQLiteStore struct {
	db          *sql.DB
	path        string
	busyTimeout time.Duration
	log         logger.Logger
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	s := &SQLiteStore{
		path:        path,
		busyTimeout: defaultBusyTimeout,
		log:         logger.Get().Named("repository"),
	}
	for _, opt := range opts {
		opt(s)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", s.busyTimeout.Milliseconds()),
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	s.db = db

	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.log.Info(ctx, "match store opened", logger.String("path", path))
	return s, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin schema tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()
		if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit schema: %w", err)
		}
		return nil
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: %s has version %d, expected %d (delete the database to rebuild it)",
			ErrSchemaMismatch, s.path, version, schemaVersion)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Put implements Store.
func (s *SQLiteStore) Put(ctx context.Context, rec types.MatchRecord) error {
	started := time.Now()
	defer func() { metrics.RecordStoreWriteLatency(float64(time.Since(started).Milliseconds())) }()

	cast, err := json.Marshal(nonNil(rec.SpellsCast))
	if err != nil {
		return fmt.Errorf("encode spells_cast: %w", err)
	}
	purged, err := json.Marshal(nonNil(rec.SpellsPurged))
	if err != nil {
		return fmt.Errorf("encode spells_purged: %w", err)
	}
	processed := rec.ProcessedAt
	if processed.IsZero() {
		processed = time.Now()
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", 28), ", ")
	query := "INSERT OR REPLACE INTO match_records (" + recordColumns + ") VALUES (" + placeholders + ")"
	err = s.retryOnBusy(ctx, func() error {
		_, execErr := s.db.ExecContext(ctx, query,
			rec.RecordingID, rec.RunID, rec.Status, rec.ErrorKind, rec.Error, rec.Filename, rec.MatchType, rec.Location,
			rec.SessionKey, nanos(rec.Start), nanos(rec.End), boolInt(rec.Open), rec.Tier, rec.Confidence,
			boolInt(rec.Ambiguous), rec.LocationID, rec.Rounds,
			rec.CastSuccessOwn, rec.InterruptsPerformed, rec.TimesInterrupted, rec.BuffGainedOwn, rec.BuffGainedEnemy,
			rec.PurgesOwn, rec.TimesDied, string(cast), string(purged), rec.MalformedSkipped, processed.UnixNano(),
		)
		return execErr
	})
	if err != nil {
		metrics.RecordStoreError()
		return fmt.Errorf("put %s: %w", rec.RecordingID, err)
	}
	return nil
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, recordingID string) (types.MatchRecord, error) {
	started := time.Now()
	defer func() { metrics.RecordStoreQueryLatency(float64(time.Since(started).Milliseconds())) }()

	row := s.db.QueryRowContext(ctx, "SELECT "+recordColumns+" FROM match_records WHERE recording_id = ?", recordingID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.MatchRecord{}, ErrNotFound
	}
	if err != nil {
		metrics.RecordStoreError()
		return types.MatchRecord{}, fmt.Errorf("get %s: %w", recordingID, err)
	}
	return rec, nil
}

// Latest implements Store.
func (s *SQLiteStore) Latest(ctx context.Context, n int) ([]types.MatchRecord, error) {
	if n <= 0 || n > MaxLimit {
		return nil, ErrInvalidLimit
	}
	started := time.Now()
	defer func() { metrics.RecordStoreQueryLatency(float64(time.Since(started).Milliseconds())) }()

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+recordColumns+" FROM match_records WHERE status = ? ORDER BY start_ns DESC, recording_id ASC LIMIT ?",
		types.StatusResolved, n)
	if err != nil {
		metrics.RecordStoreError()
		return nil, fmt.Errorf("query latest: %w", err)
	}
	defer rows.Close()

	out := make([]types.MatchRecord, 0, n)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan latest: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate latest: %w", err)
	}
	return out, nil
}

// CountByStatus implements Store.
func (s *SQLiteStore) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT status, COUNT(1) FROM match_records GROUP BY status")
	if err != nil {
		metrics.RecordStoreError()
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{types.StatusResolved: 0, types.StatusUnresolved: 0}
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate counts: %w", err)
	}
	for status, n := range counts {
		metrics.UpdateStoreRecords(status, n)
	}
	return counts, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (types.MatchRecord, error) {
	var (
		rec              types.MatchRecord
		start, end       sql.NullInt64
		open, ambiguous  int
		cast, purged     string
		processedAtNanos int64
	)
	err := sc.Scan(
		&rec.RecordingID, &rec.RunID, &rec.Status, &rec.ErrorKind, &rec.Error, &rec.Filename, &rec.MatchType, &rec.Location,
		&rec.SessionKey, &start, &end, &open, &rec.Tier, &rec.Confidence, &ambiguous, &rec.LocationID, &rec.Rounds,
		&rec.CastSuccessOwn, &rec.InterruptsPerformed, &rec.TimesInterrupted, &rec.BuffGainedOwn, &rec.BuffGainedEnemy,
		&rec.PurgesOwn, &rec.TimesDied, &cast, &purged, &rec.MalformedSkipped, &processedAtNanos,
	)
	if err != nil {
		return types.MatchRecord{}, err
	}
	rec.Start = fromNanos(start)
	rec.End = fromNanos(end)
	rec.Open = open != 0
	rec.Ambiguous = ambiguous != 0
	rec.ProcessedAt = time.Unix(0, processedAtNanos).UTC()
	if err := json.Unmarshal([]byte(cast), &rec.SpellsCast); err != nil {
		return types.MatchRecord{}, fmt.Errorf("decode spells_cast: %w", err)
	}
	if err := json.Unmarshal([]byte(purged), &rec.SpellsPurged); err != nil {
		return types.MatchRecord{}, fmt.Errorf("decode spells_purged: %w", err)
	}
	return rec, nil
}

func (s *SQLiteStore) retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil || !isSQLiteBusy(lastErr) {
			return lastErr
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
	}
	return lastErr
}

func isSQLiteBusy(err error) bool {
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func nanos(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func fromNanos(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(0, v.Int64).UTC()
	return &t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
