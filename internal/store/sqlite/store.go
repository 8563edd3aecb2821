// Package sqlite is a single-file fact store on SQLite.
//
// Facts live in one table keyed by an AUTOINCREMENT serial, so serials are
// never reused even after rows are removed by hand. SQLite serialises
// writers, which makes MAX(serial) a valid LatestSerial: no fact with a
// lower serial can commit afterwards.
//
// Append wake-ups are in-process only. Subscribers in other processes rely
// on their fallback timer, or on the Redis bridge when configured.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"sync"

	"github.com/pkg/errors"

	_ "github.com/mattn/go-sqlite3"

	"github.com/otbe/factcast/internal/store"
	"github.com/otbe/factcast/internal/store/wake"
	logpkg "github.com/otbe/factcast/pkg/log"
)

//go:embed schema.sql
var schemaSQL string

// Schema versions:
// 0 - unversioned table without the (ns, type) index
// 1 - idx_fact_ns_type
const currentSchemaVersion = 1

// Store implements store.Store on a SQLite database file.
type Store struct {
	db     *sql.DB
	logger logpkg.Logger

	mu     sync.Mutex // serialises Publish
	signal *wake.Signal
}

var _ store.Store = (*Store)(nil)

// Open creates or opens the database at path and applies pragmas and
// migrations. Open is idempotent.
func Open(path string, logger logpkg.Logger) (*Store, error) {
	if logger == nil {
		logger = logpkg.NewNopLogger()
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite: open")
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "sqlite: connect")
	}

	// One connection: SQLite has a single writer and this avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, err
	}
	s := &Store{
		db:     db,
		logger: logger.WithComponent("sqlite"),
		signal: wake.New(),
	}
	s.logger.Debug("sqlite.open", logpkg.Str("path", path))
	return s, nil
}

// Close stops append listeners and closes the database.
func (s *Store) Close() error {
	s.signal.Close()
	return s.db.Close()
}

// SubscribeToAppends forwards in-process commit wake-ups.
func (s *Store) SubscribeToAppends(ctx context.Context) (<-chan struct{}, error) {
	select {
	case <-s.signal.Closed():
		return nil, store.ErrClosed
	default:
	}
	return s.signal.Subscribe(ctx), nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return errors.Wrapf(err, "sqlite: %s", p)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return errors.Wrap(err, "sqlite: schema")
	}
	return runMigrations(db)
}

// runMigrations applies incremental migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return errors.Wrap(err, "sqlite: user_version")
	}
	if version < 1 {
		if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_fact_ns_type ON fact(ns, type)`); err != nil {
			return errors.Wrap(err, "sqlite: migrate to v1")
		}
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return errors.Wrap(err, "sqlite: set user_version")
	}
	return nil
}

// schemaVersion is exposed to tests.
func (s *Store) schemaVersion() (int, error) {
	var v int
	err := s.db.QueryRow("PRAGMA user_version").Scan(&v)
	return v, err
}
