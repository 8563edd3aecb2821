package serverrun

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	cfgpkg "github.com/otbe/factcast/internal/config"
	"github.com/otbe/factcast/internal/fact"
	"github.com/otbe/factcast/internal/runtime"
)

func testConfig(t *testing.T) cfgpkg.Config {
	cfg := cfgpkg.Default()
	cfg.Storage.DataDir = t.TempDir()
	cfg.Storage.Fsync = "never"
	cfg.Server.GRPCAddr = "127.0.0.1:0"
	cfg.Server.HTTPAddr = "127.0.0.1:0"
	cfg.Log.Level = "error"
	return cfg
}

// TestRunIntegration starts both listeners over Pebble, publishes through
// the runtime and stops on cancel.
func TestRunIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	published := make(chan error, 1)
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, Options{
			Config:     testConfig(t),
			Registerer: prometheus.NewRegistry(),
			Ready: func(rt *runtime.Runtime) {
				_, err := rt.Facts().Publish(ctx, []fact.Fact{{Header: fact.Header{Namespace: "orders"}}})
				published <- err
			},
		})
	}()

	select {
	case err := <-published:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatalf("runtime never became ready")
	}
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Backend = "tape"
	require.ErrorIs(t, Run(context.Background(), Options{Config: cfg}), cfgpkg.ErrInvalid)

	cfg = testConfig(t)
	cfg.Log.Format = "xml"
	require.Error(t, Run(context.Background(), Options{Config: cfg}))
}

func TestRunFailsWhenPortTaken(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	cfg := testConfig(t)
	cfg.Storage.Backend = cfgpkg.BackendMemory
	cfg.Server.HTTPAddr = l.Addr().String()
	err = Run(context.Background(), Options{Config: cfg, Registerer: prometheus.NewRegistry()})
	require.Error(t, err)
}
