// Package factsvc is the transport-neutral facade over a fact store and its
// subscription engine. gRPC and HTTP handlers call it; it assigns missing
// fact ids, runs subscriptions and adapts engine callbacks to a sink.
//
// Example:
//
//	svc := factsvc.New(st, manager, factsvc.Options{Logger: logger})
//	out, _ := svc.Publish(ctx, []fact.Fact{{Header: fact.Header{Namespace: "orders", Type: "Created"}}})
//	req, _ := fact.Follow(fact.Spec{Namespace: "orders"}).AsFacts().SinceSerial(out[0].Serial)
//	_ = svc.Subscribe(ctx, req, mySink) // blocks until complete, error or ctx done
package factsvc
