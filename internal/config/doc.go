// Package config loads factcast server configuration: built-in defaults, an
// optional JSON or YAML file, then FACTCAST_* environment overrides.
//
// Example:
//
//	cfg, err := config.Load("/etc/factcast.yaml")
//	if err != nil {
//	    return err
//	}
//	config.FromEnv(&cfg)
//	if cfg.Storage.DataDir == "" {
//	    cfg.Storage.DataDir = config.DefaultDataDir()
//	}
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
package config
