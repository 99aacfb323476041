package build

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/pyrite-lang/pyrite/pkg/check"
)

// Entry is one module's cached check outcome, keyed by content
// fingerprint. InterfaceDigest is what dependents compare against to
// decide whether they must re-check; DepDigests records the interface
// digest of every dependency the result was built against, so the
// entry goes stale when a dependency changes, appears, or is deleted.
type Entry struct {
	Module          string
	Fingerprint     string
	InterfaceDigest string
	DepDigests      map[string]string
	Diagnostics     []check.Diagnostic
	CheckedAt       time.Time
}

// Store persists check results across runs.
type Store interface {
	Get(ctx context.Context, module string) (*Entry, error)
	Put(ctx context.Context, e *Entry) error
	Delete(ctx context.Context, module string) error
	Close() error
}

// MemoryStore keeps entries for the lifetime of one process. Watch mode
// uses it when persistence is disabled; tests use it everywhere.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*Entry)}
}

func (s *MemoryStore) Get(_ context.Context, module string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[module]
	if !ok {
		return nil, nil
	}
	copied := *e
	return &copied, nil
}

func (s *MemoryStore) Put(_ context.Context, e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *e
	s.entries[e.Module] = &copied
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, module string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, module)
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// SQLiteStore persists entries in a single sqlite database under the
// project's cache directory.
type SQLiteStore struct {
	db *sql.DB
}

const cacheSchemaVersion = 2

type migration struct {
	version int
	sql     string
}

var cacheMigrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS check_results (
  module TEXT PRIMARY KEY,
  fingerprint TEXT NOT NULL,
  interface_digest TEXT NOT NULL,
  diagnostics TEXT NOT NULL DEFAULT '[]',
  checked_at_utc TEXT NOT NULL DEFAULT (CURRENT_TIMESTAMP)
);
CREATE INDEX IF NOT EXISTS idx_check_results_fingerprint ON check_results(fingerprint);
`,
	},
	{
		version: 2,
		sql: `
ALTER TABLE check_results ADD COLUMN dep_digests TEXT NOT NULL DEFAULT '{}';
`,
	},
}

func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open cache database")
	}
	// sqlite handles one writer at a time.
	db.SetMaxOpenConns(1)
	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func ensureSchema(db *sql.DB) error {
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER PRIMARY KEY,
  applied_at_utc TEXT NOT NULL DEFAULT (CURRENT_TIMESTAMP)
);
`); err != nil {
		return errors.Wrap(err, "create schema_migrations table")
	}

	var current int
	if err := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return errors.Wrap(err, "read schema_migrations version")
	}
	if current > cacheSchemaVersion {
		return errors.Errorf("cache schema version %d is newer than supported version %d", current, cacheSchemaVersion)
	}

	for _, m := range cacheMigrations {
		if m.version <= current {
			continue
		}
		tx, err := db.Begin()
		if err != nil {
			return errors.Wrapf(err, "begin migration %d", m.version)
		}
		if _, err := tx.Exec(m.sql); err != nil {
			_ = tx.Rollback()
			return errors.Wrapf(err, "apply migration %d", m.version)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations(version) VALUES (?)`, m.version); err != nil {
			_ = tx.Rollback()
			return errors.Wrapf(err, "record migration %d", m.version)
		}
		if err := tx.Commit(); err != nil {
			return errors.Wrapf(err, "commit migration %d", m.version)
		}
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, module string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT module, fingerprint, interface_digest, dep_digests, diagnostics, checked_at_utc
FROM check_results WHERE module = ?`, module)

	var e Entry
	var depsJSON string
	var diagsJSON string
	var checkedAt string
	err := row.Scan(&e.Module, &e.Fingerprint, &e.InterfaceDigest, &depsJSON, &diagsJSON, &checkedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read cache entry for %q", module)
	}
	if err := json.Unmarshal([]byte(diagsJSON), &e.Diagnostics); err != nil {
		// A corrupt row is a cache miss, not a failure.
		return nil, nil
	}
	if err := json.Unmarshal([]byte(depsJSON), &e.DepDigests); err != nil {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, checkedAt); err == nil {
		e.CheckedAt = t
	}
	return &e, nil
}

func (s *SQLiteStore) Put(ctx context.Context, e *Entry) error {
	diagsJSON, err := json.Marshal(e.Diagnostics)
	if err != nil {
		return errors.Wrapf(err, "encode diagnostics for %q", e.Module)
	}
	deps := e.DepDigests
	if deps == nil {
		deps = map[string]string{}
	}
	depsJSON, err := json.Marshal(deps)
	if err != nil {
		return errors.Wrapf(err, "encode dependency digests for %q", e.Module)
	}
	checkedAt := e.CheckedAt
	if checkedAt.IsZero() {
		checkedAt = time.Now().UTC()
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO check_results(module, fingerprint, interface_digest, dep_digests, diagnostics, checked_at_utc)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(module) DO UPDATE SET
  fingerprint = excluded.fingerprint,
  interface_digest = excluded.interface_digest,
  dep_digests = excluded.dep_digests,
  diagnostics = excluded.diagnostics,
  checked_at_utc = excluded.checked_at_utc`,
		e.Module, e.Fingerprint, e.InterfaceDigest, string(depsJSON), string(diagsJSON), checkedAt.Format(time.RFC3339))
	return errors.Wrapf(err, "write cache entry for %q", e.Module)
}

func (s *SQLiteStore) Delete(ctx context.Context, module string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM check_results WHERE module = ?`, module)
	return errors.Wrapf(err, "delete cache entry for %q", module)
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
