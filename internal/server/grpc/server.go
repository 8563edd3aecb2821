package grpcserver

import (
	"context"
	"net"
	"time"

	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	factcastv1 "github.com/otbe/factcast/api/factcast/v1"
	"github.com/otbe/factcast/internal/runtime"
	logpkg "github.com/otbe/factcast/pkg/log"
)

const factcastServiceName = factcastv1.ServiceName

// StopGrace bounds how long a stop waits for open streams. Follow
// subscriptions never end on their own, so they are cut after it.
var StopGrace = 5 * time.Second

// Server owns the gRPC server instance and runtime.
type Server struct {
	rt     *runtime.Runtime
	grpc   *grpc.Server
	lis    net.Listener
	logger logpkg.Logger
}

// New constructs a gRPC server and registers the FactStore and health
// services.
func New(rt *runtime.Runtime, opts ...grpc.ServerOption) *Server {
	s := &Server{rt: rt, grpc: grpc.NewServer(opts...), logger: rt.Logger().WithComponent("grpc")}
	healthpb.RegisterHealthServer(s.grpc, &healthSvc{rt: rt})
	factcastv1.RegisterFactStoreServer(s.grpc, &factStoreSvc{svc: rt.Facts()})
	return s
}

// ListenAndServe binds to addr and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, l)
}

// Serve serves on l until ctx is done.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	s.lis = l
	s.logger.Info("grpc.listen", logpkg.Str("addr", l.Addr().String()))
	errCh := make(chan error, 1)
	go func() { errCh <- s.grpc.Serve(l) }()
	select {
	case <-ctx.Done():
		s.stop()
		return nil
	case err := <-errCh:
		return err
	}
}

// Close stops the server and closes the listener.
func (s *Server) Close() {
	if s.grpc != nil {
		s.stop()
	}
	if s.lis != nil {
		_ = s.lis.Close()
	}
}

func (s *Server) stop() {
	done := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(StopGrace):
		s.logger.Warn("grpc.stop.forced", logpkg.Dur("grace", StopGrace))
		s.grpc.Stop()
		<-done
	}
}
