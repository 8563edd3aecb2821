package httpserver

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/otbe/factcast/internal/runtime"
	"github.com/otbe/factcast/internal/server/http/controllers"
	logpkg "github.com/otbe/factcast/pkg/log"
)

// ShutdownGrace bounds how long ListenAndServe waits for requests on stop.
var ShutdownGrace = 5 * time.Second

type Server struct {
	rt     *runtime.Runtime
	srv    *http.Server
	lis    net.Listener
	logger logpkg.Logger
	// base is the parent of every request context; cancelling it ends
	// open SSE subscriptions.
	base   context.Context
	cancel context.CancelFunc
}

func New(rt *runtime.Runtime, logger logpkg.Logger) *Server {
	if logger == nil {
		logger = rt.Logger()
	}
	logger = logger.WithComponent("http")
	mux := http.NewServeMux()
	controllers.NewControllerRegistry(rt, logger).RegisterAllRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	base, cancel := context.WithCancel(context.Background())
	s := &Server{rt: rt, logger: logger, base: base, cancel: cancel}
	s.srv = &http.Server{
		Handler:           cors(accessLog(logger, mux)),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return base },
	}
	return s
}

func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.lis = l
	s.logger.Info("http.listen", logpkg.Str("addr", l.Addr().String()))
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(l) }()
	select {
	case <-ctx.Done():
		s.cancel()
		cctx, cancel := context.WithTimeout(context.Background(), ShutdownGrace)
		defer cancel()
		_ = s.srv.Shutdown(cctx)
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) Close() {
	s.cancel()
	if s.lis != nil {
		_ = s.lis.Close()
	}
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Last-Event-ID")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE working through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func accessLog(logger logpkg.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Debug("http.request",
			logpkg.Str("method", r.Method),
			logpkg.Str("path", r.URL.Path),
			logpkg.Int("status", rec.status),
			logpkg.Dur("took", time.Since(start)))
	})
}
