// Package transports provides pluggable transport implementations for the CLI.
package transports

import (
	"context"
	"io"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	factcastv1 "github.com/otbe/factcast/api/factcast/v1"
	"github.com/otbe/factcast/internal/fact"
)

// GrpcTransport implements FactsTransport over gRPC.
type GrpcTransport struct {
	dial func(ctx context.Context) (*grpc.ClientConn, error)
}

var _ FactsTransport = (*GrpcTransport)(nil)

// NewGrpcTransport constructs a new GrpcTransport using the provided dialer.
func NewGrpcTransport(dial func(ctx context.Context) (*grpc.ClientConn, error)) *GrpcTransport {
	return &GrpcTransport{dial: dial}
}

func (t *GrpcTransport) withClient(ctx context.Context, fn func(cli factcastv1.FactStoreClient) error) error {
	conn, err := t.dial(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()
	return fn(factcastv1.NewFactStoreClient(conn))
}

// Publish appends facts and returns their assigned ids and serials.
func (t *GrpcTransport) Publish(ctx context.Context, facts []fact.Fact) ([]fact.Fact, error) {
	in, err := factcastv1.EncodeFacts(facts)
	if err != nil {
		return nil, err
	}
	var out []fact.Fact
	err = t.withClient(ctx, func(cli factcastv1.FactStoreClient) error {
		res, err := cli.Publish(ctx, in)
		if err != nil {
			return err
		}
		out, err = factcastv1.DecodeFacts(res)
		return err
	})
	return out, err
}

// Subscribe streams notifications and invokes onNotification for each.
func (t *GrpcTransport) Subscribe(ctx context.Context, req fact.Request, onNotification func(factcastv1.Notification) error) error {
	body, err := req.MarshalJSON()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	return t.withClient(ctx, func(cli factcastv1.FactStoreClient) error {
		stream, err := cli.Subscribe(ctx, wrapperspb.String(string(body)))
		if err != nil {
			return err
		}
		for {
			m, err := stream.Recv()
			if err != nil {
				if err == io.EOF || status.Code(err) == codes.Canceled {
					return nil
				}
				return err
			}
			n, err := factcastv1.DecodeNotification(m)
			if err != nil {
				return err
			}
			if cbErr := onNotification(n); cbErr != nil {
				if errors.Is(cbErr, ErrStop) {
					return nil
				}
				return cbErr
			}
		}
	})
}

func notFound(err error) bool { return status.Code(err) == codes.NotFound }

// SerialOf resolves a fact id to its serial.
func (t *GrpcTransport) SerialOf(ctx context.Context, id uuid.UUID) (uint64, bool, error) {
	var serial uint64
	var found bool
	err := t.withClient(ctx, func(cli factcastv1.FactStoreClient) error {
		res, err := cli.SerialOf(ctx, wrapperspb.String(id.String()))
		if notFound(err) {
			return nil
		}
		if err != nil {
			return err
		}
		serial, found = res.GetValue(), true
		return nil
	})
	return serial, found, err
}

// LatestSerial returns the highest serial of the store.
func (t *GrpcTransport) LatestSerial(ctx context.Context) (uint64, error) {
	var serial uint64
	err := t.withClient(ctx, func(cli factcastv1.FactStoreClient) error {
		res, err := cli.LatestSerial(ctx, &emptypb.Empty{})
		serial = res.GetValue()
		return err
	})
	return serial, err
}

// FetchByID returns the full fact.
func (t *GrpcTransport) FetchByID(ctx context.Context, id uuid.UUID) (fact.Fact, bool, error) {
	var f fact.Fact
	var found bool
	err := t.withClient(ctx, func(cli factcastv1.FactStoreClient) error {
		res, err := cli.FetchByID(ctx, wrapperspb.String(id.String()))
		if notFound(err) {
			return nil
		}
		if err != nil {
			return err
		}
		f, err = factcastv1.DecodeFact(res)
		found = err == nil
		return err
	})
	return f, found, err
}

// EnumerateNamespaces lists all namespaces.
func (t *GrpcTransport) EnumerateNamespaces(ctx context.Context) ([]string, error) {
	var out []string
	err := t.withClient(ctx, func(cli factcastv1.FactStoreClient) error {
		res, err := cli.EnumerateNamespaces(ctx, &emptypb.Empty{})
		out = factcastv1.DecodeStrings(res)
		return err
	})
	return out, err
}

// EnumerateTypes lists the types seen in ns.
func (t *GrpcTransport) EnumerateTypes(ctx context.Context, ns string) ([]string, error) {
	var out []string
	err := t.withClient(ctx, func(cli factcastv1.FactStoreClient) error {
		res, err := cli.EnumerateTypes(ctx, wrapperspb.String(ns))
		out = factcastv1.DecodeStrings(res)
		return err
	})
	return out, err
}

// ServerConfig returns the server's protocol version and properties.
func (t *GrpcTransport) ServerConfig(ctx context.Context) (factcastv1.ServerConfig, error) {
	var cfg factcastv1.ServerConfig
	err := t.withClient(ctx, func(cli factcastv1.FactStoreClient) error {
		res, err := cli.ServerConfig(ctx, &emptypb.Empty{})
		if err != nil {
			return err
		}
		cfg = factcastv1.DecodeServerConfig(res)
		return nil
	})
	return cfg, err
}
