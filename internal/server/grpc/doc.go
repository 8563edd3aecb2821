// Package grpcserver hosts the factcast.v1.FactStore gRPC service and the
// standard grpc.health.v1 service, delegating to the facts service of a
// Runtime.
//
// Example:
//
//	rt, _ := runtime.Open(ctx, runtime.Options{Config: cfg})
//	s := grpcserver.New(rt)
//	_ = s.ListenAndServe(ctx, ":9090")
package grpcserver
