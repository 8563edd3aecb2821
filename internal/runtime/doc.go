// Package runtime wires config, the selected fact store and the
// subscription engine into a single factcast node. Servers and the CLI
// build one Runtime and reach the facts service through it.
//
// Example:
//
//	cfg := config.Default()
//	cfg.Storage.DataDir = "./data"
//	rt, _ := runtime.Open(ctx, runtime.Options{Config: cfg})
//	defer rt.Close()
//	_ = rt.CheckHealth(ctx)
//	_, _ = rt.Facts().Publish(ctx, []fact.Fact{{Header: fact.Header{Namespace: "orders"}}})
package runtime
