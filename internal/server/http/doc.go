// Package httpserver provides the REST gateway of factcast: JSON endpoints
// for publishing and lookups, Server-Sent Events for subscriptions, and
// the Prometheus /metrics endpoint.
//
// Example:
//
//	rt, _ := runtime.Open(ctx, runtime.Options{Config: cfg})
//	s := httpserver.New(rt, logger)
//	_ = s.ListenAndServe(ctx, ":8080")
package httpserver
