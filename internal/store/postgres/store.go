// Package postgres is a fact store on PostgreSQL.
//
// Appends take a transaction-scoped advisory lock before drawing serials,
// so serials commit in order and MAX(serial) is a valid LatestSerial. Every
// append transaction also issues pg_notify on the fact_insert channel;
// SubscribeToAppends listens on a dedicated connection, which makes
// wake-ups work across processes sharing the database.
package postgres

import (
	"context"
	_ "embed"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/otbe/factcast/internal/store"
	logpkg "github.com/otbe/factcast/pkg/log"
)

//go:embed schema.sql
var schemaSQL string

const (
	// NotifyChannel is the LISTEN/NOTIFY channel appends are announced on.
	NotifyChannel = "fact_insert"

	appendLockKey = 0x66616374 // "fact"
)

// RelistenDelay is how long the listener waits before reconnecting after
// losing its connection.
var RelistenDelay = time.Second

// Store implements store.Store on a pgx connection pool.
type Store struct {
	pool   *pgxpool.Pool
	logger logpkg.Logger

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

var _ store.Store = (*Store)(nil)

// Open connects to dsn and creates the schema if needed.
func Open(ctx context.Context, dsn string, logger logpkg.Logger) (*Store, error) {
	if logger == nil {
		logger = logpkg.NewNopLogger()
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "postgres: open pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "postgres: ping")
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "postgres: schema")
	}
	sctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		pool:   pool,
		logger: logger.WithComponent("postgres"),
		ctx:    sctx,
		cancel: cancel,
	}
	s.logger.Debug("postgres.open")
	return s, nil
}

// Close ends append listeners and closes the pool.
func (s *Store) Close() error {
	s.once.Do(func() {
		s.cancel()
		s.pool.Close()
	})
	return nil
}

func (s *Store) isClosed() bool {
	return s.ctx.Err() != nil
}
