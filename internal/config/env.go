package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// FromEnv overlays FACTCAST_* environment variables onto cfg. Values that
// do not parse are ignored.
func FromEnv(cfg *Config) {
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	str("FACTCAST_STORAGE_BACKEND", &cfg.Storage.Backend)
	str("FACTCAST_DATA_DIR", &cfg.Storage.DataDir)
	str("FACTCAST_DSN", &cfg.Storage.DSN)
	str("FACTCAST_FSYNC", &cfg.Storage.Fsync)
	str("FACTCAST_REDIS_ADDR", &cfg.Signals.RedisAddr)
	str("FACTCAST_REDIS_CHANNEL", &cfg.Signals.RedisChannel)
	str("FACTCAST_GRPC_ADDR", &cfg.Server.GRPCAddr)
	str("FACTCAST_HTTP_ADDR", &cfg.Server.HTTPAddr)
	str("FACTCAST_LOG_LEVEL", &cfg.Log.Level)
	str("FACTCAST_LOG_FORMAT", &cfg.Log.Format)

	if v := os.Getenv("FACTCAST_FSYNC_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Storage.FsyncInterval = Duration(d)
		}
	}
	if v := os.Getenv("FACTCAST_PAGE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Subscription.PageSize = n
		}
	}
	if v := os.Getenv("FACTCAST_FALLBACK_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Subscription.FallbackInterval = Duration(d)
		}
	}
	if v := os.Getenv("FACTCAST_PROPERTIES"); v != "" {
		cfg.Server.Properties = map[string]string{}
		for _, kv := range strings.Split(v, ",") {
			k, val, ok := strings.Cut(strings.TrimSpace(kv), "=")
			if ok && k != "" {
				cfg.Server.Properties[k] = val
			}
		}
	}
}
