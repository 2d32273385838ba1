// Package store opens the SQLite database behind analysis history and applies
// per-component schema migrations.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver
)

// ErrMigrationOrder is returned when a component's migrations are not in
// strictly ascending version order starting above zero.
var ErrMigrationOrder = errors.New("migrations out of order")

// Migration is one schema step owned by a component. Statements run first,
// then Up when set, all inside one transaction.
type Migration struct {
	Version     int
	Description string
	Statements  []string
	Up          func(ctx context.Context, tx *sql.Tx) error
}

// SQLiteStore is a SQLite database backed by modernc.org/sqlite.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *zap.Logger
	mu     sync.Mutex
}

type options struct {
	logger      *zap.Logger
	busyTimeout time.Duration
}

// Option configures New.
type Option func(*options)

// WithLogger logs applied migrations to l.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithBusyTimeout sets how long a writer waits on a locked database.
func WithBusyTimeout(d time.Duration) Option {
	return func(o *options) { o.busyTimeout = d }
}

// New opens (or creates) the database at path. ":memory:" gives a private
// in-memory database.
func New(path string, opts ...Option) (*SQLiteStore, error) {
	o := options{logger: zap.NewNop(), busyTimeout: 5 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite %q: %w", path, err)
	}

	// modernc.org/sqlite takes pragmas as statements, not DSN parameters.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", o.busyTimeout.Milliseconds()),
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec %q: %w", p, err)
		}
	}

	return &SQLiteStore{db: db, path: path, logger: o.logger}, nil
}

// DB returns the underlying *sql.DB for direct queries.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Path is the file the store was opened from.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Tx runs fn in a transaction, committing when fn returns nil.
func (s *SQLiteStore) Tx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original: %w)", rbErr, err)
		}
		return err
	}
	return tx.Commit()
}

// Migrate applies the component's pending migrations in order. Versions
// already recorded in _migrations are skipped.
func (s *SQLiteStore) Migrate(ctx context.Context, component string, migrations []Migration) error {
	prev := 0
	for _, m := range migrations {
		if m.Version <= prev {
			return fmt.Errorf("%s version %d after %d: %w", component, m.Version, prev, ErrMigrationOrder)
		}
		prev = m.Version
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS _migrations (
			component   TEXT     NOT NULL,
			version     INTEGER  NOT NULL,
			description TEXT     NOT NULL,
			applied_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (component, version)
		)`); err != nil {
		return fmt.Errorf("create _migrations: %w", err)
	}

	applied, err := s.appliedSet(ctx, component)
	if err != nil {
		return err
	}
	for _, m := range migrations {
		if _, ok := applied[m.Version]; ok {
			continue
		}
		if err := s.apply(ctx, component, m); err != nil {
			return fmt.Errorf("migration %s/%d (%s): %w", component, m.Version, m.Description, err)
		}
		s.logger.Info("migration applied",
			zap.String("component", component),
			zap.Int("version", m.Version),
			zap.String("description", m.Description),
		)
	}
	return nil
}

// Applied returns the component's applied migration versions, ascending.
func (s *SQLiteStore) Applied(ctx context.Context, component string) ([]int, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT version FROM _migrations WHERE component = ? ORDER BY version", component)
	if err != nil {
		return nil, fmt.Errorf("list migrations for %s: %w", component, err)
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) appliedSet(ctx context.Context, component string) (map[int]struct{}, error) {
	versions, err := s.Applied(ctx, component)
	if err != nil {
		return nil, err
	}
	set := make(map[int]struct{}, len(versions))
	for _, v := range versions {
		set[v] = struct{}{}
	}
	return set, nil
}

func (s *SQLiteStore) apply(ctx context.Context, component string, m Migration) error {
	return s.Tx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range m.Statements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		if m.Up != nil {
			if err := m.Up(ctx, tx); err != nil {
				return err
			}
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO _migrations (component, version, description) VALUES (?, ?, ?)",
			component, m.Version, m.Description,
		)
		return err
	})
}
