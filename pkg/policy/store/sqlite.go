package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // registers "sqlite3" (cgo)
	_ "modernc.org/sqlite"          // registers "sqlite" (pure Go)

	"mercator-hq/policyd/pkg/policy"
)

// SQLiteConfig contains configuration for the SQLite store.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// Driver is the database/sql driver name: "sqlite" or "sqlite3".
	// Default: "sqlite"
	Driver string

	// WALMode enables Write-Ahead Logging mode for better concurrency.
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:        "data/policies.db",
		Driver:      "sqlite",
		WALMode:     true,
		BusyTimeout: 5 * time.Second,
	}
}

// SQLiteStore persists the active policy set in SQLite.
// Each replacement runs in a single transaction, so readers see either the
// previous committed set or the new one.
type SQLiteStore struct {
	db        *sql.DB
	config    *SQLiteConfig
	logger    *slog.Logger
	closeOnce sync.Once

	now func() time.Time
}

var (
	_ Store    = (*SQLiteStore)(nil)
	_ Replacer = (*SQLiteStore)(nil)
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS policies (
	position INTEGER PRIMARY KEY,
	id       TEXT NOT NULL UNIQUE,
	document TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS policy_snapshot (
	singleton  INTEGER PRIMARY KEY CHECK (singleton = 1),
	revision   TEXT NOT NULL,
	version    TEXT NOT NULL,
	applied_at INTEGER NOT NULL,
	count      INTEGER NOT NULL
);
`

// NewSQLiteStore opens (creating if needed) the database and its schema.
func NewSQLiteStore(cfg *SQLiteConfig, logger *slog.Logger) (*SQLiteStore, error) {
	if cfg == nil {
		cfg = DefaultSQLiteConfig()
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.Driver == "" {
		cfg.Driver = "sqlite"
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open(cfg.Driver, cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports a single writer; one long-lived connection also
	// keeps the pragmas below in effect.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStore{
		db:     db,
		config: cfg,
		logger: logger,
		now:    time.Now,
	}

	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug("sqlite policy store opened",
		"path", cfg.Path,
		"driver", cfg.Driver,
		"wal_mode", cfg.WALMode,
	)

	return s, nil
}

func (s *SQLiteStore) init() error {
	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", s.config.BusyTimeout.Milliseconds()),
	}
	if s.config.WALMode {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	if _, err := s.db.Exec(sqliteSchema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// UpdatePolicies replaces the stored set inside one transaction.
func (s *SQLiteStore) UpdatePolicies(ctx context.Context, policies []policy.Policy) ([]policy.Policy, error) {
	applied, _, err := s.ReplacePolicies(ctx, policies)
	return applied, err
}

// ReplacePolicies is UpdatePolicies that also returns the committed snapshot.
func (s *SQLiteStore) ReplacePolicies(ctx context.Context, policies []policy.Policy) ([]policy.Policy, Snapshot, error) {
	if err := validateSet("sqlite", policies); err != nil {
		return nil, Snapshot{}, err
	}

	snap, err := newSnapshot(policies, s.now())
	if err != nil {
		return nil, Snapshot{}, &Error{Backend: "sqlite", Op: "update", Message: "failed to compute version", Cause: err}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, Snapshot{}, &Error{Backend: "sqlite", Op: "update", Message: "failed to begin transaction", Cause: err}
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, `DELETE FROM policies`); err != nil {
		return nil, Snapshot{}, &Error{Backend: "sqlite", Op: "update", Message: "failed to clear policies", Cause: err}
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO policies (position, id, document) VALUES (?, ?, ?)`)
	if err != nil {
		return nil, Snapshot{}, &Error{Backend: "sqlite", Op: "update", Message: "failed to prepare insert", Cause: err}
	}
	defer stmt.Close()

	for i, p := range policies {
		doc, err := json.Marshal(p)
		if err != nil {
			return nil, Snapshot{}, &Error{Backend: "sqlite", Op: "update", Message: fmt.Sprintf("failed to encode policy %q", p.ID), Cause: err}
		}
		if _, err := stmt.ExecContext(ctx, i, p.ID, string(doc)); err != nil {
			return nil, Snapshot{}, &Error{Backend: "sqlite", Op: "update", Message: fmt.Sprintf("failed to insert policy %q", p.ID), Cause: err}
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO policy_snapshot (singleton, revision, version, applied_at, count)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT (singleton) DO UPDATE SET
			revision = excluded.revision,
			version = excluded.version,
			applied_at = excluded.applied_at,
			count = excluded.count
	`, snap.Revision, snap.Version, snap.AppliedAt.UnixNano(), snap.Count)
	if err != nil {
		return nil, Snapshot{}, &Error{Backend: "sqlite", Op: "update", Message: "failed to record snapshot", Cause: err}
	}

	if err := tx.Commit(); err != nil {
		return nil, Snapshot{}, &Error{Backend: "sqlite", Op: "update", Message: "failed to commit", Cause: err}
	}

	return policy.Clone(policies), snap, nil
}

// ReadPolicies returns the stored set in insertion order.
func (s *SQLiteStore) ReadPolicies(ctx context.Context) ([]policy.Policy, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT document FROM policies ORDER BY position`)
	if err != nil {
		return nil, &Error{Backend: "sqlite", Op: "read", Message: "failed to query policies", Cause: err}
	}
	defer rows.Close()

	policies := []policy.Policy{}
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, &Error{Backend: "sqlite", Op: "read", Message: "failed to scan policy", Cause: err}
		}
		var p policy.Policy
		if err := json.Unmarshal([]byte(doc), &p); err != nil {
			return nil, &Error{Backend: "sqlite", Op: "read", Message: "failed to decode stored policy", Cause: err}
		}
		policies = append(policies, p)
	}
	if err := rows.Err(); err != nil {
		return nil, &Error{Backend: "sqlite", Op: "read", Message: "failed to iterate policies", Cause: err}
	}

	return policies, nil
}

// Snapshot returns metadata about the stored set.
func (s *SQLiteStore) Snapshot(ctx context.Context) (Snapshot, error) {
	var (
		snap      Snapshot
		appliedAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT revision, version, applied_at, count FROM policy_snapshot WHERE singleton = 1`,
	).Scan(&snap.Revision, &snap.Version, &appliedAt, &snap.Count)
	if err == sql.ErrNoRows {
		return Snapshot{}, nil
	}
	if err != nil {
		return Snapshot{}, &Error{Backend: "sqlite", Op: "snapshot", Message: "failed to query snapshot", Cause: err}
	}
	snap.AppliedAt = time.Unix(0, appliedAt).UTC()
	return snap, nil
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return &Error{Backend: "sqlite", Op: "ping", Message: "database unreachable", Cause: err}
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.db.Close()
	})
	return err
}
