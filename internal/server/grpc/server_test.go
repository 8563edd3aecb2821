package grpcserver

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	factcastv1 "github.com/otbe/factcast/api/factcast/v1"
	cfgpkg "github.com/otbe/factcast/internal/config"
	"github.com/otbe/factcast/internal/fact"
	"github.com/otbe/factcast/internal/runtime"
)

const bufSize = 1 << 20

func dialer(s *grpc.Server) func(context.Context, string) (net.Conn, error) {
	lis := bufconn.Listen(bufSize)
	go func() { _ = s.Serve(lis) }()
	return func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }
}

func setup(t *testing.T) (*grpc.ClientConn, *runtime.Runtime) {
	t.Helper()
	cfg := cfgpkg.Default()
	cfg.Storage.Backend = cfgpkg.BackendMemory
	cfg.Subscription.FallbackInterval = cfgpkg.Duration(20 * time.Millisecond)
	cfg.Server.Properties = map[string]string{"region": "eu"}
	rt, err := runtime.Open(context.Background(), runtime.Options{Config: cfg})
	require.NoError(t, err)
	srv := New(rt)
	d := dialer(srv.grpc)
	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(d),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
		srv.grpc.Stop()
		_ = rt.Close()
	})
	return conn, rt
}

func publish(t *testing.T, c factcastv1.FactStoreClient, facts ...fact.Fact) []fact.Fact {
	t.Helper()
	in, err := factcastv1.EncodeFacts(facts)
	require.NoError(t, err)
	out, err := c.Publish(context.Background(), in)
	require.NoError(t, err)
	got, err := factcastv1.DecodeFacts(out)
	require.NoError(t, err)
	return got
}

func subscribeJSON(t *testing.T, req fact.Request) *wrapperspb.StringValue {
	t.Helper()
	b, err := req.MarshalJSON()
	require.NoError(t, err)
	return wrapperspb.String(string(b))
}

func recvAll(t *testing.T, stream grpc.ServerStreamingClient[structpb.Struct]) []factcastv1.Notification {
	t.Helper()
	var out []factcastv1.Notification
	for {
		msg, err := stream.Recv()
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		n, err := factcastv1.DecodeNotification(msg)
		require.NoError(t, err)
		out = append(out, n)
	}
}

func TestHealthOverGRPC(t *testing.T) {
	conn, _ := setup(t)
	c := healthpb.NewHealthClient(conn)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	res, err := c.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, res.GetStatus())

	res, err = c.Check(ctx, &healthpb.HealthCheckRequest{Service: factcastv1.ServiceName})
	require.NoError(t, err)
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, res.GetStatus())

	_, err = c.Check(ctx, &healthpb.HealthCheckRequest{Service: "nope"})
	require.Equal(t, codes.NotFound, status.Code(err))
}

func TestPublishAndCatchupOverGRPC(t *testing.T) {
	conn, _ := setup(t)
	c := factcastv1.NewFactStoreClient(conn)
	published := publish(t, c,
		fact.Fact{Header: fact.Header{Namespace: "orders", Type: "Created"}, Payload: []byte(`{"n":1}`)},
		fact.Fact{Header: fact.Header{Namespace: "users", Type: "Joined"}},
		fact.Fact{Header: fact.Header{Namespace: "orders", Type: "Shipped"}, Payload: []byte(`{"n":3}`)},
	)
	require.Len(t, published, 3)
	require.Equal(t, uint64(3), published[2].Serial)
	require.NotEqual(t, uuid.Nil, published[0].ID)

	req, err := fact.Catchup(fact.Spec{Namespace: "orders"}).AsFacts().SinceInception()
	require.NoError(t, err)
	stream, err := c.Subscribe(context.Background(), subscribeJSON(t, req))
	require.NoError(t, err)
	got := recvAll(t, stream)

	require.Len(t, got, 4)
	require.Equal(t, factcastv1.TypeFact, got[0].Type)
	require.Equal(t, uint64(1), got[0].Serial)
	require.Equal(t, `{"n":1}`, string(got[0].Fact.Payload))
	require.Equal(t, uint64(3), got[1].Serial)
	require.Equal(t, "Shipped", got[1].Fact.Type)
	require.Equal(t, factcastv1.TypeCatchup, got[2].Type)
	require.Equal(t, factcastv1.TypeComplete, got[3].Type)
}

func TestFollowDeliversNewFactsOverGRPC(t *testing.T) {
	conn, _ := setup(t)
	c := factcastv1.NewFactStoreClient(conn)
	first := publish(t, c, fact.Fact{Header: fact.Header{Namespace: "orders"}})

	req, err := fact.Follow(fact.Spec{Namespace: "orders"}).AsIDs().Since(first[0].ID)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream, err := c.Subscribe(ctx, subscribeJSON(t, req))
	require.NoError(t, err)

	msg, err := stream.Recv()
	require.NoError(t, err)
	n, err := factcastv1.DecodeNotification(msg)
	require.NoError(t, err)
	require.Equal(t, factcastv1.TypeCatchup, n.Type)

	next := publish(t, c, fact.Fact{Header: fact.Header{Namespace: "orders"}})
	msg, err = stream.Recv()
	require.NoError(t, err)
	n, err = factcastv1.DecodeNotification(msg)
	require.NoError(t, err)
	require.Equal(t, factcastv1.TypeID, n.Type)
	require.Equal(t, next[0].ID, n.ID)
	require.Nil(t, n.Fact)

	cancel()
	_, err = stream.Recv()
	require.Equal(t, codes.Canceled, status.Code(err))
}

func TestSubscribeRejectsInvalidRequest(t *testing.T) {
	conn, _ := setup(t)
	c := factcastv1.NewFactStoreClient(conn)
	for _, body := range []string{`{`, `{"specs":[]}`, `{"specs":[{"ns":"a"}],"since":"` + uuid.NewString() + `"}`} {
		stream, err := c.Subscribe(context.Background(), wrapperspb.String(body))
		require.NoError(t, err)
		_, err = stream.Recv()
		require.Equal(t, codes.InvalidArgument, status.Code(err), body)
	}
}

func TestLookupsOverGRPC(t *testing.T) {
	conn, _ := setup(t)
	c := factcastv1.NewFactStoreClient(conn)
	ctx := context.Background()
	published := publish(t, c,
		fact.Fact{Header: fact.Header{Namespace: "orders", Type: "Created"}},
		fact.Fact{Header: fact.Header{Namespace: "users", Type: "Joined"}},
	)

	serial, err := c.SerialOf(ctx, wrapperspb.String(published[1].ID.String()))
	require.NoError(t, err)
	require.Equal(t, uint64(2), serial.GetValue())

	_, err = c.SerialOf(ctx, wrapperspb.String(uuid.NewString()))
	require.Equal(t, codes.NotFound, status.Code(err))
	_, err = c.SerialOf(ctx, wrapperspb.String("garbage"))
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	latest, err := c.LatestSerial(ctx, &emptypb.Empty{})
	require.NoError(t, err)
	require.Equal(t, uint64(2), latest.GetValue())

	fs, err := c.FetchByID(ctx, wrapperspb.String(published[0].ID.String()))
	require.NoError(t, err)
	f, err := factcastv1.DecodeFact(fs)
	require.NoError(t, err)
	require.Equal(t, "Created", f.Type)

	ns, err := c.EnumerateNamespaces(ctx, &emptypb.Empty{})
	require.NoError(t, err)
	require.Equal(t, []string{"orders", "users"}, factcastv1.DecodeStrings(ns))
	types, err := c.EnumerateTypes(ctx, wrapperspb.String("users"))
	require.NoError(t, err)
	require.Equal(t, []string{"Joined"}, factcastv1.DecodeStrings(types))

	sc, err := c.ServerConfig(ctx, &emptypb.Empty{})
	require.NoError(t, err)
	cfg := factcastv1.DecodeServerConfig(sc)
	require.Equal(t, 1, cfg.Major)
	require.Equal(t, "eu", cfg.Properties["region"])
}

func TestPublishDuplicateIsAlreadyExists(t *testing.T) {
	conn, _ := setup(t)
	c := factcastv1.NewFactStoreClient(conn)
	id := uuid.New()
	publish(t, c, fact.Fact{Header: fact.Header{ID: id, Namespace: "orders"}})
	in, err := factcastv1.EncodeFacts([]fact.Fact{{Header: fact.Header{ID: id, Namespace: "orders"}}})
	require.NoError(t, err)
	_, err = c.Publish(context.Background(), in)
	require.Equal(t, codes.AlreadyExists, status.Code(err))
}
