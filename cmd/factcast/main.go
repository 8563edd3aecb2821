package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	clientcmd "github.com/otbe/factcast/internal/cmd/client"
	serverrun "github.com/otbe/factcast/internal/cmd/server"
	cfgpkg "github.com/otbe/factcast/internal/config"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "factcast",
		Short:        "factcast fact store CLI",
		Long:         "factcast is an append-only fact store with catchup and follow subscriptions. This CLI runs the server and talks to it over gRPC.",
		SilenceUsage: true,
	}

	serverCmd := &cobra.Command{Use: "server", Short: "Server commands"}
	serverStartCmd := &cobra.Command{
		Use:     "start",
		Short:   "Start the factcast server (gRPC and HTTP)",
		Aliases: []string{"run"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			if err := serverrun.Run(ctx, serverrun.Options{Config: cfg}); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		},
	}
	f := serverStartCmd.Flags()
	f.String("config", os.Getenv("FACTCAST_CONFIG"), "Config file (.yaml, .yml or .json)")
	f.String("backend", "", "Storage backend: pebble|sqlite|postgres|memory")
	f.String("data-dir", "", "Data directory (if not specified, uses OS-specific application data directory)")
	f.String("dsn", "", "Postgres connection string")
	f.String("grpc", "", "gRPC listen address")
	f.String("http", "", "HTTP listen address")
	f.String("fsync", "", "Fsync mode: always|interval|never")
	f.Duration("fsync-interval", 0, "When --fsync=interval, group-commit window")
	f.String("redis", "", "Redis address for cross-process append signals")
	f.Int("page-size", 0, "Facts fetched per scan")
	f.Duration("fallback-interval", 0, "Re-scan interval when no append signal arrives")
	f.String("log-level", "", "Log level: debug|info|warn|error")
	f.String("log-format", "", "Log format: text|json")
	serverCmd.AddCommand(serverStartCmd)
	rootCmd.AddCommand(serverCmd)

	clientcmd.AddCommands(rootCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// loadConfig layers file, FACTCAST_* environment and flags, in that order.
func loadConfig(cmd *cobra.Command) (cfgpkg.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := cfgpkg.Load(path)
	if err != nil {
		return cfgpkg.Config{}, err
	}
	cfgpkg.FromEnv(&cfg)

	flags := cmd.Flags()
	str := func(name string, dst *string) {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	str("backend", &cfg.Storage.Backend)
	str("data-dir", &cfg.Storage.DataDir)
	str("dsn", &cfg.Storage.DSN)
	str("grpc", &cfg.Server.GRPCAddr)
	str("http", &cfg.Server.HTTPAddr)
	str("fsync", &cfg.Storage.Fsync)
	str("redis", &cfg.Signals.RedisAddr)
	str("log-level", &cfg.Log.Level)
	str("log-format", &cfg.Log.Format)
	if flags.Changed("fsync-interval") {
		d, _ := flags.GetDuration("fsync-interval")
		cfg.Storage.FsyncInterval = cfgpkg.Duration(d)
	}
	if flags.Changed("page-size") {
		cfg.Subscription.PageSize, _ = flags.GetInt("page-size")
	}
	if flags.Changed("fallback-interval") {
		d, _ := flags.GetDuration("fallback-interval")
		cfg.Subscription.FallbackInterval = cfgpkg.Duration(d)
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = cfgpkg.DefaultDataDir()
	}
	return cfg, cfg.Validate()
}
