package store

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/todosync/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
//
// All mutations serialize behind mu. The connection pool is capped at a
// single connection so that ":memory:" databases work and SQLite never sees
// two writers.
type SQLiteStore struct {
	db *sqlx.DB

	mu         sync.RWMutex
	days       model.DaySet
	tombstones bool
	now        func() time.Time

	// lastStamp is the greatest LastModified issued or imported. Guarded by mu.
	lastStamp int64
}

var _ Store = (*SQLiteStore)(nil)

// MaxStamp is the largest last_modified a peer may send,
// 9999-12-31T23:59:59.999Z in Unix milliseconds. Stamps the store issued
// itself are always accepted back.
const MaxStamp int64 = 253402300799999

// Option configures a SQLiteStore.
type Option func(*SQLiteStore)

// WithDays restricts todos to the given day partition keys.
func WithDays(days []string) Option {
	return func(s *SQLiteStore) { s.days = model.NewDaySet(days) }
}

// WithTombstones enables recording and exchanging tombstones for deletes.
func WithTombstones(enabled bool) Option {
	return func(s *SQLiteStore) { s.tombstones = enabled }
}

// WithClock overrides the wall clock used to stamp mutations.
func WithClock(now func() time.Time) Option {
	return func(s *SQLiteStore) { s.now = now }
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string, opts ...Option) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	s := &SQLiteStore{
		db:   db,
		days: model.NewDaySet(nil),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	if err := s.loadClock(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Days returns the partition keys accepted by the store.
func (s *SQLiteStore) Days() []string {
	return s.days.Days()
}

// TombstonesEnabled reports whether deletes are recorded as tombstones.
func (s *SQLiteStore) TombstonesEnabled() bool {
	return s.tombstones
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	ctx := context.Background()
	currentVersion := 0

	// Check if schema_version table exists.
	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if err := s.applyMigration(ctx, m); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

func (s *SQLiteStore) applyMigration(ctx context.Context, m migration) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if m.sql != "" {
		if _, err := tx.ExecContext(ctx, m.sql); err != nil {
			return err
		}
	}
	if m.apply != nil {
		if err := m.apply(ctx, tx); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_version (version) VALUES (?)", m.version,
	); err != nil {
		return fmt.Errorf("recording schema version: %w", err)
	}

	return tx.Commit()
}

// loadClock seeds lastStamp from the newest stored timestamp so stamps stay
// monotonic across restarts even if the wall clock moved backwards.
func (s *SQLiteStore) loadClock() error {
	var last int64
	err := s.db.Get(&last, `
		SELECT MAX(
			(SELECT COALESCE(MAX(last_modified), 0) FROM todos),
			(SELECT COALESCE(MAX(deleted_at), 0) FROM tombstones)
		)`)
	if err != nil {
		return fmt.Errorf("reading latest timestamp: %w", err)
	}
	s.lastStamp = last
	return nil
}

// stamp returns a timestamp strictly greater than prev and than every stamp
// issued before. Callers must hold mu for writing.
func (s *SQLiteStore) stamp(prev int64) int64 {
	ts := s.now().UnixMilli()
	if ts <= s.lastStamp {
		ts = successor(s.lastStamp)
	}
	if ts <= prev {
		ts = successor(prev)
	}
	s.lastStamp = ts
	return ts
}

// successor returns ts+1, saturating at math.MaxInt64.
func successor(ts int64) int64 {
	if ts == math.MaxInt64 {
		return ts
	}
	return ts + 1
}

// observe advances the clock past an imported timestamp. Callers must hold
// mu for writing.
func (s *SQLiteStore) observe(ts int64) {
	if ts > s.lastStamp {
		s.lastStamp = ts
	}
}

// boolToInt converts a boolean to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
