package client

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	cfgpkg "github.com/otbe/factcast/internal/config"
	"github.com/otbe/factcast/internal/fact"
	"github.com/otbe/factcast/internal/runtime"
	grpcserver "github.com/otbe/factcast/internal/server/grpc"
)

// startServer serves a memory-backed runtime on a loopback port and points
// the CLI at it.
func startServer(t *testing.T) *runtime.Runtime {
	t.Helper()
	cfg := cfgpkg.Default()
	cfg.Storage.Backend = cfgpkg.BackendMemory
	cfg.Subscription.FallbackInterval = cfgpkg.Duration(20 * time.Millisecond)
	rt, err := runtime.Open(context.Background(), runtime.Options{Config: cfg})
	require.NoError(t, err)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := grpcserver.New(rt)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = srv.Serve(ctx, l)
		close(done)
	}()
	t.Setenv("FACTCAST_GRPC", l.Addr().String())
	t.Cleanup(func() {
		cancel()
		<-done
		_ = rt.Close()
	})
	return rt
}

func run(t *testing.T, cmd *cobra.Command, args ...string) (string, string, error) {
	t.Helper()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := cmd.ExecuteContext(ctx)
	return out.String(), errOut.String(), err
}

func TestPublishPrintsSerial(t *testing.T) {
	rt := startServer(t)
	out, _, err := run(t, NewPublishCommand(),
		"--ns", "orders", "--type", "Created", "--meta", "tenant=acme", "--data", `{"total":42}`)
	require.NoError(t, err)

	var res struct {
		ID     string `json:"id"`
		Serial uint64 `json:"serial"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Equal(t, uint64(1), res.Serial)

	latest, err := rt.Facts().LatestSerial(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(1), latest)
}

func TestPublishBatchFromStdin(t *testing.T) {
	startServer(t)
	cmd := NewPublishCommand()
	cmd.SetIn(strings.NewReader(`[{"ns":"orders"},{"ns":"users","type":"Joined"}]`))
	out, _, err := run(t, cmd, "--batch", "-")
	require.NoError(t, err)
	require.Equal(t, 2, strings.Count(out, "\n"))
	require.Contains(t, out, `"serial":2`)
}

func TestPublishRequiresNamespace(t *testing.T) {
	startServer(t)
	_, _, err := run(t, NewPublishCommand(), "--type", "Created")
	require.ErrorContains(t, err, "--ns is required")
	_, _, err = run(t, NewPublishCommand(), "--ns", "orders", "--meta", "novalue")
	require.ErrorContains(t, err, "invalid pair")
}

func TestSubscribeCatchupPrintsFacts(t *testing.T) {
	rt := startServer(t)
	_, err := rt.Facts().Publish(context.Background(), []fact.Fact{
		{Header: fact.Header{Namespace: "orders", Meta: map[string]string{"tenant": "acme"}}, Payload: []byte(`{"n":1}`)},
		{Header: fact.Header{Namespace: "users"}},
		{Header: fact.Header{Namespace: "orders", Meta: map[string]string{"tenant": "other"}}, Payload: []byte("plain")},
	})
	require.NoError(t, err)

	out, errOut, err := run(t, NewSubscribeCommand(), "--ns", "orders")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], `"payload_json":{"n":1}`)
	require.Contains(t, lines[1], `"payload_text":"plain"`)
	require.Contains(t, errOut, "caught up")

	out, _, err = run(t, NewSubscribeCommand(), "--ns", "orders", "--filter", `meta["tenant"] == "acme"`, "--ids")
	require.NoError(t, err)
	require.Equal(t, 1, strings.Count(out, "\n"))
	require.Contains(t, out, `"serial":1`)
}

func TestSubscribeFollowStopsAtLimit(t *testing.T) {
	rt := startServer(t)
	go func() {
		time.Sleep(100 * time.Millisecond)
		_, _ = rt.Facts().Publish(context.Background(), []fact.Fact{
			{Header: fact.Header{Namespace: "orders"}},
			{Header: fact.Header{Namespace: "orders"}},
		})
	}()
	out, _, err := run(t, NewSubscribeCommand(), "--ns", "orders", "--follow", "--limit", "2")
	require.NoError(t, err)
	require.Equal(t, 2, strings.Count(out, "\n"))
}

func TestSubscribeRejectsBadFlags(t *testing.T) {
	startServer(t)
	_, _, err := run(t, NewSubscribeCommand())
	require.ErrorContains(t, err, "--ns is required")
	_, _, err = run(t, NewSubscribeCommand(), "--ns", "a", "--since", "x", "--since-serial", "3")
	require.ErrorContains(t, err, "mutually exclusive")
	_, _, err = run(t, NewSubscribeCommand(), "--ns", "a", "--filter", "ns ==")
	require.ErrorIs(t, err, fact.ErrInvalidRequest)
}

func TestNamespacesAndLookups(t *testing.T) {
	rt := startServer(t)
	out, err := rt.Facts().Publish(context.Background(), []fact.Fact{
		{Header: fact.Header{Namespace: "orders", Type: "Created"}},
		{Header: fact.Header{Namespace: "users", Type: "Joined"}},
	})
	require.NoError(t, err)

	stdout, _, err := run(t, NewNamespacesCommand())
	require.NoError(t, err)
	require.Equal(t, "orders\nusers\n", stdout)

	stdout, _, err = run(t, NewNamespacesCommand(), "types", "users")
	require.NoError(t, err)
	require.Equal(t, "Joined\n", stdout)

	stdout, _, err = run(t, NewFactCommand(), "serial", out[1].ID.String())
	require.NoError(t, err)
	require.Equal(t, "2\n", stdout)

	stdout, _, err = run(t, NewFactCommand(), "serial")
	require.NoError(t, err)
	require.Equal(t, "2\n", stdout)

	stdout, _, err = run(t, NewFactCommand(), "get", out[0].ID.String())
	require.NoError(t, err)
	require.Contains(t, stdout, `"type":"Created"`)

	_, _, err = run(t, NewFactCommand(), "get", "0190b2a4-0000-7000-8000-000000000000")
	require.ErrorContains(t, err, "not found")

	stdout, _, err = run(t, NewInfoCommand())
	require.NoError(t, err)
	require.Contains(t, stdout, `"compatible":true`)
}
