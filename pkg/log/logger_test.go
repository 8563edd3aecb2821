package log

import (
	"bytes"
	"encoding/json"
	"errors"
	stdlog "log"
	"strings"
	"testing"
)

func newBufLogger(buf *bytes.Buffer, opts ...LoggerOption) Logger {
	return NewLogger(append([]LoggerOption{WithOutput(NewWriterOutput(buf))}, opts...)...)
}

func TestJSONOutputCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	l := newBufLogger(&buf).With(Component("engine"), Str("sub", "s-1"))
	l.Info("subscription.start", Uint64("after", 42))

	var got map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v (%q)", err, buf.String())
	}
	if got["msg"] != "subscription.start" || got["component"] != "engine" || got["sub"] != "s-1" {
		t.Fatalf("unexpected entry: %v", got)
	}
	if got["after"].(float64) != 42 {
		t.Fatalf("after=%v", got["after"])
	}
}

func TestLevelGate(t *testing.T) {
	var buf bytes.Buffer
	l := newBufLogger(&buf, WithLevel(WarnLevel))
	l.Info("dropped")
	l.Debug("dropped")
	if buf.Len() != 0 {
		t.Fatalf("expected no output, got %q", buf.String())
	}
	l.Warn("kept")
	if !strings.Contains(buf.String(), "kept") {
		t.Fatalf("expected warn entry, got %q", buf.String())
	}
}

func TestRedaction(t *testing.T) {
	var buf bytes.Buffer
	l := newBufLogger(&buf, WithRedactedKeys("dsn"))
	l.Info("open", Str("dsn", "postgres://u:secret@h/db"))
	if strings.Contains(buf.String(), "secret") {
		t.Fatalf("dsn leaked: %q", buf.String())
	}
}

func TestSampling(t *testing.T) {
	var buf bytes.Buffer
	l := newBufLogger(&buf, WithSampling(1, 3))
	for i := 0; i < 7; i++ {
		l.Info("tick")
	}
	// n=0 kept (initial), then n=1,4 kept.
	if got := strings.Count(buf.String(), "tick"); got != 3 {
		t.Fatalf("sampled count=%d", got)
	}
}

func TestTextFormatter(t *testing.T) {
	var buf bytes.Buffer
	l := newBufLogger(&buf, WithFormatter(&TextFormatter{}))
	l.WithError(errors.New("boom")).Error("scan failed", Int("page", 3))
	line := buf.String()
	if !strings.Contains(line, "ERROR") || !strings.Contains(line, "error=boom") || !strings.Contains(line, "page=3") {
		t.Fatalf("unexpected line %q", line)
	}
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]Level{"debug": DebugLevel, "INFO": InfoLevel, "warning": WarnLevel, "error": ErrorLevel, "": InfoLevel} {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Fatalf("ParseLevel(%q)=%v,%v", in, got, err)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestApplyConfigRejectsUnknownFormat(t *testing.T) {
	if _, err := ApplyConfig(Config{Format: "xml"}); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := ApplyConfig(Config{Level: "debug", Format: "text", Outputs: []OutputConfig{{Type: "null"}}}); err != nil {
		t.Fatalf("apply: %v", err)
	}
}

func TestRedirectStdLog(t *testing.T) {
	var buf bytes.Buffer
	restore := RedirectStdLog(newBufLogger(&buf))
	stdlog.Print("from stdlib")
	restore()
	if !strings.Contains(buf.String(), "from stdlib") || !strings.Contains(buf.String(), "stdlog") {
		t.Fatalf("std log not redirected: %q", buf.String())
	}
}
