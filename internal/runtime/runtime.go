package runtime

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	cfgpkg "github.com/otbe/factcast/internal/config"
	"github.com/otbe/factcast/internal/factlog"
	"github.com/otbe/factcast/internal/notify/redisbridge"
	factsvc "github.com/otbe/factcast/internal/services/facts"
	pebblestore "github.com/otbe/factcast/internal/storage/pebble"
	"github.com/otbe/factcast/internal/store"
	"github.com/otbe/factcast/internal/store/memory"
	"github.com/otbe/factcast/internal/store/postgres"
	"github.com/otbe/factcast/internal/store/sqlite"
	"github.com/otbe/factcast/internal/subscription"
	logpkg "github.com/otbe/factcast/pkg/log"
)

// SQLiteFile is the database file name inside Storage.DataDir.
const SQLiteFile = "factcast.db"

// Options for building the Runtime.
type Options struct {
	Config cfgpkg.Config
	Logger logpkg.Logger
	// Registerer receives storage metrics. Nil disables them.
	Registerer prometheus.Registerer
}

// Runtime owns the store, the subscription engine and the facts service of
// a single node.
type Runtime struct {
	config  cfgpkg.Config
	logger  logpkg.Logger
	db      *pebblestore.DB
	redis   *redis.Client
	store   store.Store
	manager *subscription.Manager
	facts   *factsvc.Service
}

// Open validates cfg, opens the configured backend and starts the engine.
func Open(ctx context.Context, opts Options) (*Runtime, error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewNopLogger()
	}
	rt := &Runtime{config: cfg, logger: logger.WithComponent("runtime")}

	st, err := rt.openStore(ctx, opts.Registerer)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	if addr := cfg.Signals.RedisAddr; addr != "" {
		rt.redis = redis.NewClient(&redis.Options{Addr: addr})
		st = redisbridge.Wrap(st, rt.redis, cfg.Signals.RedisChannel, logger)
	}
	rt.store = st
	rt.manager = subscription.NewManager(st, subscription.Options{
		PageSize:         cfg.Subscription.PageSize,
		FallbackInterval: cfg.Subscription.FallbackInterval.D(),
		Logger:           logger,
	})
	rt.facts = factsvc.New(st, rt.manager, factsvc.Options{
		Logger:     logger,
		Properties: cfg.Server.Properties,
	})
	rt.logger.Info("runtime.open",
		logpkg.Str("backend", cfg.Storage.Backend),
		logpkg.Bool("redis", rt.redis != nil))
	return rt, nil
}

func (r *Runtime) openStore(ctx context.Context, reg prometheus.Registerer) (store.Store, error) {
	sc := r.config.Storage
	switch sc.Backend {
	case cfgpkg.BackendPebble:
		mode, err := pebblestore.ParseFsyncMode(sc.Fsync)
		if err != nil {
			return nil, err
		}
		popts := pebblestore.Options{DataDir: sc.DataDir, Fsync: mode, FsyncInterval: sc.FsyncInterval.D()}
		if reg != nil {
			m, err := pebblestore.NewPromMetrics(reg)
			if err != nil {
				return nil, errors.Wrap(err, "runtime: register storage metrics")
			}
			popts.Metrics = m
		}
		db, err := pebblestore.Open(popts)
		if err != nil {
			return nil, err
		}
		r.db = db
		return factlog.Open(db, r.logger)
	case cfgpkg.BackendSQLite:
		if err := os.MkdirAll(sc.DataDir, 0o755); err != nil {
			return nil, errors.Wrap(err, "runtime: data dir")
		}
		return sqlite.Open(filepath.Join(sc.DataDir, SQLiteFile), r.logger)
	case cfgpkg.BackendPostgres:
		return postgres.Open(ctx, sc.DSN, r.logger)
	case cfgpkg.BackendMemory:
		return memory.New(), nil
	}
	return nil, errors.Errorf("runtime: unknown backend %q", sc.Backend)
}

// Close stops every subscription, then closes the store and its resources.
func (r *Runtime) Close() error {
	var first error
	keep := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}
	if r.manager != nil {
		keep(r.manager.Close())
	}
	if r.store != nil {
		keep(r.store.Close())
	}
	if r.redis != nil {
		keep(r.redis.Close())
	}
	if r.db != nil {
		keep(r.db.Close())
	}
	return first
}

// CheckHealth reports whether the store answers.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if r.store == nil {
		return errors.New("store not open")
	}
	if _, err := r.store.LatestSerial(ctx); err != nil {
		return errors.Wrap(err, "store")
	}
	return nil
}

// Facts returns the facts service.
func (r *Runtime) Facts() *factsvc.Service { return r.facts }

// Store exposes the store for internal use.
func (r *Runtime) Store() store.Store { return r.store }

// Manager returns the subscription engine.
func (r *Runtime) Manager() *subscription.Manager { return r.manager }

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }

// Logger returns the root logger.
func (r *Runtime) Logger() logpkg.Logger { return r.logger }
