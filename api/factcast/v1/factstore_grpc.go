// Package factcastv1 declares the factcast.v1.FactStore gRPC service. The
// service carries only protobuf well-known types: facts and notifications
// travel as google.protobuf.Struct values built by the codec in wire.go,
// and subscription requests as their JSON form in a StringValue.
package factcastv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const ServiceName = "factcast.v1.FactStore"

const (
	FactStore_Publish_FullMethodName             = "/factcast.v1.FactStore/Publish"
	FactStore_Subscribe_FullMethodName           = "/factcast.v1.FactStore/Subscribe"
	FactStore_SerialOf_FullMethodName            = "/factcast.v1.FactStore/SerialOf"
	FactStore_LatestSerial_FullMethodName        = "/factcast.v1.FactStore/LatestSerial"
	FactStore_FetchByID_FullMethodName           = "/factcast.v1.FactStore/FetchByID"
	FactStore_EnumerateNamespaces_FullMethodName = "/factcast.v1.FactStore/EnumerateNamespaces"
	FactStore_EnumerateTypes_FullMethodName      = "/factcast.v1.FactStore/EnumerateTypes"
	FactStore_ServerConfig_FullMethodName        = "/factcast.v1.FactStore/ServerConfig"
)

// FactStoreClient is the client API for the FactStore service.
type FactStoreClient interface {
	// Publish appends a list of fact structs atomically.
	Publish(ctx context.Context, in *structpb.ListValue, opts ...grpc.CallOption) (*structpb.ListValue, error)
	// Subscribe takes the JSON form of a subscription request.
	Subscribe(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error)
	SerialOf(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.UInt64Value, error)
	LatestSerial(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*wrapperspb.UInt64Value, error)
	FetchByID(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error)
	EnumerateNamespaces(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.ListValue, error)
	EnumerateTypes(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.ListValue, error)
	ServerConfig(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type factStoreClient struct {
	cc grpc.ClientConnInterface
}

func NewFactStoreClient(cc grpc.ClientConnInterface) FactStoreClient {
	return &factStoreClient{cc}
}

func (c *factStoreClient) Publish(ctx context.Context, in *structpb.ListValue, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, FactStore_Publish_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *factStoreClient) Subscribe(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error) {
	stream, err := c.cc.NewStream(ctx, &FactStore_ServiceDesc.Streams[0], FactStore_Subscribe_FullMethodName, opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[wrapperspb.StringValue, structpb.Struct]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

func (c *factStoreClient) SerialOf(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.UInt64Value, error) {
	out := new(wrapperspb.UInt64Value)
	if err := c.cc.Invoke(ctx, FactStore_SerialOf_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *factStoreClient) LatestSerial(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*wrapperspb.UInt64Value, error) {
	out := new(wrapperspb.UInt64Value)
	if err := c.cc.Invoke(ctx, FactStore_LatestSerial_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *factStoreClient) FetchByID(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FactStore_FetchByID_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *factStoreClient) EnumerateNamespaces(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, FactStore_EnumerateNamespaces_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *factStoreClient) EnumerateTypes(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, FactStore_EnumerateTypes_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *factStoreClient) ServerConfig(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FactStore_ServerConfig_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// FactStoreServer is the server API for the FactStore service.
type FactStoreServer interface {
	Publish(context.Context, *structpb.ListValue) (*structpb.ListValue, error)
	Subscribe(*wrapperspb.StringValue, grpc.ServerStreamingServer[structpb.Struct]) error
	SerialOf(context.Context, *wrapperspb.StringValue) (*wrapperspb.UInt64Value, error)
	LatestSerial(context.Context, *emptypb.Empty) (*wrapperspb.UInt64Value, error)
	FetchByID(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	EnumerateNamespaces(context.Context, *emptypb.Empty) (*structpb.ListValue, error)
	EnumerateTypes(context.Context, *wrapperspb.StringValue) (*structpb.ListValue, error)
	ServerConfig(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

func RegisterFactStoreServer(s grpc.ServiceRegistrar, srv FactStoreServer) {
	s.RegisterService(&FactStore_ServiceDesc, srv)
}

// unary builds a handler for a method taking Req.
func unary[Req any, PReq interface {
	*Req
}](method string, call func(FactStoreServer, context.Context, PReq) (any, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := PReq(new(Req))
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(FactStoreServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(FactStoreServer), ctx, req.(PReq))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func _FactStore_Subscribe_Handler(srv any, stream grpc.ServerStream) error {
	m := new(wrapperspb.StringValue)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(FactStoreServer).Subscribe(m, &grpc.GenericServerStream[wrapperspb.StringValue, structpb.Struct]{ServerStream: stream})
}

// FactStore_ServiceDesc is the grpc.ServiceDesc for the FactStore service.
var FactStore_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*FactStoreServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Publish",
			Handler: unary(FactStore_Publish_FullMethodName, func(s FactStoreServer, ctx context.Context, in *structpb.ListValue) (any, error) {
				return s.Publish(ctx, in)
			}),
		},
		{
			MethodName: "SerialOf",
			Handler: unary(FactStore_SerialOf_FullMethodName, func(s FactStoreServer, ctx context.Context, in *wrapperspb.StringValue) (any, error) {
				return s.SerialOf(ctx, in)
			}),
		},
		{
			MethodName: "LatestSerial",
			Handler: unary(FactStore_LatestSerial_FullMethodName, func(s FactStoreServer, ctx context.Context, in *emptypb.Empty) (any, error) {
				return s.LatestSerial(ctx, in)
			}),
		},
		{
			MethodName: "FetchByID",
			Handler: unary(FactStore_FetchByID_FullMethodName, func(s FactStoreServer, ctx context.Context, in *wrapperspb.StringValue) (any, error) {
				return s.FetchByID(ctx, in)
			}),
		},
		{
			MethodName: "EnumerateNamespaces",
			Handler: unary(FactStore_EnumerateNamespaces_FullMethodName, func(s FactStoreServer, ctx context.Context, in *emptypb.Empty) (any, error) {
				return s.EnumerateNamespaces(ctx, in)
			}),
		},
		{
			MethodName: "EnumerateTypes",
			Handler: unary(FactStore_EnumerateTypes_FullMethodName, func(s FactStoreServer, ctx context.Context, in *wrapperspb.StringValue) (any, error) {
				return s.EnumerateTypes(ctx, in)
			}),
		},
		{
			MethodName: "ServerConfig",
			Handler: unary(FactStore_ServerConfig_FullMethodName, func(s FactStoreServer, ctx context.Context, in *emptypb.Empty) (any, error) {
				return s.ServerConfig(ctx, in)
			}),
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Subscribe",
			Handler:       _FactStore_Subscribe_Handler,
			ServerStreams: true,
		},
	},
	Metadata: "factcast/v1/factstore.proto",
}
