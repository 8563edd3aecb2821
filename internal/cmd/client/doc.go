// Package client provides the `factcast` command-line client.
//
// The CLI talks to the factcast gRPC endpoint to publish, subscribe and
// look up facts from a terminal. It is primarily intended for developers
// and operators.
//
// # Address configuration
//
// The gRPC address is read from the FACTCAST_GRPC environment variable
// (default 127.0.0.1:9090).
//
// Usage
//
//	factcast publish --ns orders --type OrderCreated \
//	    --agg-id 0b6c7e2e-3c1f-4a49-9d7e-8f5a0e4b1c2d \
//	    --meta tenant=acme --data '{"total":42}'
//
//	# publish a batch atomically
//	factcast publish --batch facts.json
//
//	# replay a namespace, then keep following
//	factcast subscribe --ns orders --follow
//	factcast subscribe --ns orders --ns users --ids --since-serial 120
//	factcast subscribe --ns orders --filter 'meta["tenant"] == "acme"'
//
//	factcast namespaces
//	factcast namespaces types orders
//	factcast fact get 0190b2a4-...
//	factcast fact serial            # latest serial
//	factcast info
//
// Notes
//
//   - subscribe prints one JSON line per fact; "-- caught up" goes to
//     stderr once the backlog is delivered. Without --follow the command
//     exits after that.
//   - publish and subscribe refuse servers speaking another major
//     protocol version.
package client
