// Package serverrun exposes a shared Run entrypoint used by the CLI to start
// the factcast runtime with gRPC and HTTP servers, handling lifecycle and
// shutdown.
//
// Example:
//
//	cfg, _ := config.Load("factcast.yaml")
//	config.FromEnv(&cfg)
//	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer cancel()
//	_ = serverrun.Run(ctx, serverrun.Options{Config: cfg})
package serverrun
