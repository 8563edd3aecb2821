// Package fact holds the immutable fact record, the FactSpec match predicate
// and the two-phase SubscriptionRequest builder.
//
// Matching is pure: a fact matches a request iff it matches at least one of
// the request's specs; within a spec every constraint must hold.
//
// Building a request:
//
//	req, err := fact.Follow(fact.Spec{Namespace: "orders", Type: "OrderPlaced"}).
//	    Or(fact.Spec{Namespace: "orders", Type: "OrderCancelled"}).
//	    AsFacts().
//	    SinceInception()
package fact
