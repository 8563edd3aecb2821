package grpcserver

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	factcastv1 "github.com/otbe/factcast/api/factcast/v1"
	"github.com/otbe/factcast/internal/fact"
	factsvc "github.com/otbe/factcast/internal/services/facts"
	"github.com/otbe/factcast/internal/store"
	"github.com/otbe/factcast/internal/subscription"
)

type factStoreSvc struct {
	svc *factsvc.Service
}

var _ factcastv1.FactStoreServer = (*factStoreSvc)(nil)

// toStatus maps service errors onto gRPC codes. Context errors keep their
// usual codes.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, fact.ErrInvalidRequest), errors.Is(err, factcastv1.ErrMalformed):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, store.ErrDuplicateID):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, subscription.ErrStoreUnavailable),
		errors.Is(err, subscription.ErrClosed),
		errors.Is(err, store.ErrClosed):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

func parseID(v *wrapperspb.StringValue) (uuid.UUID, error) {
	id, err := uuid.Parse(v.GetValue())
	if err != nil {
		return uuid.Nil, status.Errorf(codes.InvalidArgument, "invalid fact id %q", v.GetValue())
	}
	return id, nil
}

func (s *factStoreSvc) Publish(ctx context.Context, in *structpb.ListValue) (*structpb.ListValue, error) {
	facts, err := factcastv1.DecodeFacts(in)
	if err != nil {
		return nil, toStatus(err)
	}
	out, err := s.svc.Publish(ctx, facts)
	if err != nil {
		return nil, toStatus(err)
	}
	// Payloads are known to the caller; echo only the assigned headers.
	for i := range out {
		out[i].Payload = nil
	}
	res, err := factcastv1.EncodeFacts(out)
	if err != nil {
		return nil, toStatus(err)
	}
	return res, nil
}

type grpcSink struct {
	stream grpc.ServerStreamingServer[structpb.Struct]
}

func (g grpcSink) Send(n factsvc.Notification) error {
	wn := factcastv1.Notification{Type: string(n.Kind), Serial: n.Serial, ID: n.ID, Fact: n.Fact}
	if n.Err != nil {
		wn.Message = n.Err.Error()
	}
	s, err := factcastv1.EncodeNotification(wn)
	if err != nil {
		return err
	}
	return g.stream.Send(s)
}

func (g grpcSink) Context() context.Context { return g.stream.Context() }
func (g grpcSink) Flush() error             { return nil }

func (s *factStoreSvc) Subscribe(in *wrapperspb.StringValue, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	req, err := fact.ParseRequest([]byte(in.GetValue()))
	if err != nil {
		return toStatus(err)
	}
	return toStatus(s.svc.Subscribe(stream.Context(), req, grpcSink{stream: stream}))
}

func (s *factStoreSvc) SerialOf(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.UInt64Value, error) {
	id, err := parseID(in)
	if err != nil {
		return nil, err
	}
	serial, ok, err := s.svc.SerialOf(ctx, id)
	if err != nil {
		return nil, toStatus(err)
	}
	if !ok {
		return nil, status.Errorf(codes.NotFound, "fact %s not found", id)
	}
	return wrapperspb.UInt64(serial), nil
}

func (s *factStoreSvc) LatestSerial(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.UInt64Value, error) {
	serial, err := s.svc.LatestSerial(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.UInt64(serial), nil
}

func (s *factStoreSvc) FetchByID(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	id, err := parseID(in)
	if err != nil {
		return nil, err
	}
	f, ok, err := s.svc.FetchByID(ctx, id)
	if err != nil {
		return nil, toStatus(err)
	}
	if !ok {
		return nil, status.Errorf(codes.NotFound, "fact %s not found", id)
	}
	res, err := factcastv1.EncodeFact(f)
	if err != nil {
		return nil, toStatus(err)
	}
	return res, nil
}

func (s *factStoreSvc) EnumerateNamespaces(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	ns, err := s.svc.EnumerateNamespaces(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return factcastv1.EncodeStrings(ns), nil
}

func (s *factStoreSvc) EnumerateTypes(ctx context.Context, in *wrapperspb.StringValue) (*structpb.ListValue, error) {
	if in.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "namespace is required")
	}
	types, err := s.svc.EnumerateTypes(ctx, in.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	return factcastv1.EncodeStrings(types), nil
}

func (s *factStoreSvc) ServerConfig(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	cfg := s.svc.ServerConfig()
	res, err := factcastv1.EncodeServerConfig(factcastv1.ServerConfig{
		Major:      cfg.Version.Major,
		Minor:      cfg.Version.Minor,
		Patch:      cfg.Version.Patch,
		Properties: cfg.Properties,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return res, nil
}
