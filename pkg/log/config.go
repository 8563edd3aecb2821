package log

import (
	"fmt"
	"strings"
	"sync"
)

// OutputConfig selects one log sink.
type OutputConfig struct {
	// Type is one of "console", "file" or "null".
	Type string `json:"type" yaml:"type"`
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// Config is the declarative form of a logger.
type Config struct {
	Level         string         `json:"level" yaml:"level"`
	Format        string         `json:"format" yaml:"format"` // json | text
	IncludeCaller bool           `json:"includeCaller,omitempty" yaml:"includeCaller,omitempty"`
	Outputs       []OutputConfig `json:"outputs,omitempty" yaml:"outputs,omitempty"`
	Redact        []string       `json:"redact,omitempty" yaml:"redact,omitempty"`
	SampleInitial int            `json:"sampleInitial,omitempty" yaml:"sampleInitial,omitempty"`
	SampleEvery   int            `json:"sampleEvery,omitempty" yaml:"sampleEvery,omitempty"`
}

// ApplyConfig builds a logger from cfg.
func ApplyConfig(cfg Config) (Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	opts := []LoggerOption{WithLevel(level)}

	switch strings.ToLower(cfg.Format) {
	case "", "json":
		opts = append(opts, WithFormatter(&JSONFormatter{IncludeCaller: cfg.IncludeCaller}))
	case "text":
		opts = append(opts, WithFormatter(&TextFormatter{IncludeCaller: cfg.IncludeCaller}))
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	for _, oc := range cfg.Outputs {
		switch strings.ToLower(oc.Type) {
		case "", "console":
			opts = append(opts, WithOutput(NewConsoleOutput()))
		case "file":
			if oc.Path == "" {
				return nil, fmt.Errorf("file output requires a path")
			}
			fo, err := NewFileOutput(oc.Path)
			if err != nil {
				return nil, err
			}
			opts = append(opts, WithOutput(fo))
		case "null":
			opts = append(opts, WithOutput(NullOutput{}))
		default:
			return nil, fmt.Errorf("unknown log output %q", oc.Type)
		}
	}
	if len(cfg.Redact) > 0 {
		opts = append(opts, WithRedactedKeys(cfg.Redact...))
	}
	if cfg.SampleEvery > 0 {
		opts = append(opts, WithSampling(cfg.SampleInitial, cfg.SampleEvery))
	}
	return NewLogger(opts...), nil
}

var (
	defaultMu     sync.RWMutex
	defaultLogger Logger
)

// GetDefaultLogger returns the process-wide logger, creating a console one on first use.
func GetDefaultLogger() Logger {
	defaultMu.RLock()
	l := defaultLogger
	defaultMu.RUnlock()
	if l != nil {
		return l
	}
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLogger == nil {
		defaultLogger = NewLogger(WithOutput(NewConsoleOutput()))
	}
	return defaultLogger
}

// SetDefaultLogger replaces the process-wide logger.
func SetDefaultLogger(l Logger) {
	defaultMu.Lock()
	defaultLogger = l
	defaultMu.Unlock()
}
