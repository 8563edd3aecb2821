package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	logpkg "github.com/otbe/factcast/pkg/log"
)

// Storage backends.
const (
	BackendPebble   = "pebble"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("invalid config")

// Config is the top-level configuration loaded from file/env.
type Config struct {
	Storage      Storage       `json:"storage" yaml:"storage"`
	Subscription Subscription  `json:"subscription" yaml:"subscription"`
	Signals      Signals       `json:"signals" yaml:"signals"`
	Server       Server        `json:"server" yaml:"server"`
	Log          logpkg.Config `json:"log" yaml:"log"`
}

// Storage selects and configures the fact store backend.
type Storage struct {
	Backend string `json:"backend" yaml:"backend"`
	// DataDir is the Pebble directory, or the directory holding the SQLite
	// database file.
	DataDir       string   `json:"dataDir" yaml:"dataDir"`
	DSN           string   `json:"dsn,omitempty" yaml:"dsn,omitempty"`
	Fsync         string   `json:"fsync" yaml:"fsync"` // always | interval | never
	FsyncInterval Duration `json:"fsyncInterval,omitempty" yaml:"fsyncInterval,omitempty"`
}

// Subscription holds the engine tunables.
type Subscription struct {
	PageSize         int      `json:"pageSize" yaml:"pageSize"`
	FallbackInterval Duration `json:"fallbackInterval" yaml:"fallbackInterval"`
}

// Signals configures cross-process append signalling. Empty RedisAddr
// disables it.
type Signals struct {
	RedisAddr    string `json:"redisAddr,omitempty" yaml:"redisAddr,omitempty"`
	RedisChannel string `json:"redisChannel,omitempty" yaml:"redisChannel,omitempty"`
}

// Server configures the listeners.
type Server struct {
	GRPCAddr string `json:"grpcAddr" yaml:"grpcAddr"`
	HTTPAddr string `json:"httpAddr" yaml:"httpAddr"`
	// Properties are reported to clients by ServerConfig.
	Properties map[string]string `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		Storage: Storage{
			Backend:       BackendPebble,
			Fsync:         "interval",
			FsyncInterval: Duration(5 * time.Millisecond),
		},
		Subscription: Subscription{
			PageSize:         256,
			FallbackInterval: Duration(100 * time.Millisecond),
		},
		Server: Server{
			GRPCAddr: ":9090",
			HTTPAddr: ":8080",
		},
		Log: logpkg.Config{Level: "info", Format: "json"},
	}
}

// Load reads configuration from a JSON or YAML file (by extension) over the
// defaults. If path is empty, returns defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, errors.Wrapf(err, "config: %s", path)
		}
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, errors.Wrapf(err, "config: %s", path)
		}
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	switch c.Storage.Backend {
	case BackendPebble, BackendSQLite:
		if c.Storage.DataDir == "" {
			return errors.Wrapf(ErrInvalid, "storage.dataDir is required for %s", c.Storage.Backend)
		}
	case BackendPostgres:
		if c.Storage.DSN == "" {
			return errors.Wrap(ErrInvalid, "storage.dsn is required for postgres")
		}
	case BackendMemory:
	default:
		return errors.Wrapf(ErrInvalid, "unknown storage backend %q", c.Storage.Backend)
	}
	switch c.Storage.Fsync {
	case "", "always", "interval", "never":
	default:
		return errors.Wrapf(ErrInvalid, "unknown fsync mode %q", c.Storage.Fsync)
	}
	if c.Subscription.PageSize < 0 {
		return errors.Wrap(ErrInvalid, "subscription.pageSize must not be negative")
	}
	if c.Subscription.FallbackInterval < 0 {
		return errors.Wrap(ErrInvalid, "subscription.fallbackInterval must not be negative")
	}
	if _, err := logpkg.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(ErrInvalid, err.Error())
	}
	return nil
}

// DefaultDataDir is where a node keeps its data when none is configured:
// $XDG_DATA_HOME/factcast, then the per-user data directory of the host OS,
// and ./data when there is no home directory.
func DefaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "factcast")
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "./data"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "factcast")
	case "windows":
		if local := os.Getenv("LocalAppData"); local != "" {
			return filepath.Join(local, "factcast")
		}
		return filepath.Join(home, "AppData", "Local", "factcast")
	}
	return filepath.Join(home, ".local", "share", "factcast")
}
