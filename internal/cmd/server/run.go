package serverrun

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	cfgpkg "github.com/otbe/factcast/internal/config"
	"github.com/otbe/factcast/internal/runtime"
	grpcserver "github.com/otbe/factcast/internal/server/grpc"
	httpserver "github.com/otbe/factcast/internal/server/http"
	logpkg "github.com/otbe/factcast/pkg/log"
)

type Options struct {
	Config cfgpkg.Config
	// Registerer receives storage metrics; defaults to the process registry
	// that /metrics serves.
	Registerer prometheus.Registerer
	// Ready, when set, receives the runtime once both listeners are launched.
	Ready func(*runtime.Runtime)
}

// Run opens the runtime, serves gRPC and HTTP, and blocks until ctx is
// cancelled or a listener fails.
func Run(ctx context.Context, opts Options) error {
	cfg := opts.Config
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = cfgpkg.DefaultDataDir()
	}
	procLogger, err := logpkg.ApplyConfig(cfg.Log)
	if err != nil {
		return err
	}
	logpkg.SetDefaultLogger(procLogger)
	// Pebble logs through the standard library logger.
	restore := logpkg.RedirectStdLog(procLogger)
	defer restore()

	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	rt, err := runtime.Open(ctx, runtime.Options{Config: cfg, Logger: procLogger, Registerer: reg})
	if err != nil {
		return err
	}
	defer rt.Close()

	procLogger.Info("Starting factcast server",
		logpkg.Str("backend", cfg.Storage.Backend),
		logpkg.Str("grpc", cfg.Server.GRPCAddr),
		logpkg.Str("http", cfg.Server.HTTPAddr),
		logpkg.Int("page_size", cfg.Subscription.PageSize),
		logpkg.Dur("fallback", cfg.Subscription.FallbackInterval.D()),
	)

	gsrv := grpcserver.New(rt)
	hsrv := httpserver.New(rt, procLogger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return gsrv.ListenAndServe(gctx, cfg.Server.GRPCAddr) })
	g.Go(func() error { return hsrv.ListenAndServe(gctx, cfg.Server.HTTPAddr) })
	if opts.Ready != nil {
		opts.Ready(rt)
	}
	err = g.Wait()
	// Stop servers before the runtime closes the store.
	gsrv.Close()
	hsrv.Close()
	if err != nil {
		procLogger.Error("server stopped", logpkg.Err(err))
		return err
	}
	procLogger.Info("server stopped")
	return nil
}
