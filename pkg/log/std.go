package log

import (
	stdlog "log"
	"strings"
)

type stdWriter struct {
	logger Logger
	level  Level
}

func (w stdWriter) Write(p []byte) (int, error) {
	msg := strings.TrimRight(string(p), "\n")
	switch w.level {
	case DebugLevel:
		w.logger.Debug(msg)
	case WarnLevel:
		w.logger.Warn(msg)
	case ErrorLevel, FatalLevel:
		w.logger.Error(msg)
	default:
		w.logger.Info(msg)
	}
	return len(p), nil
}

// ToStdLogger adapts l to a *log.Logger writing at level.
func ToStdLogger(l Logger, level Level) *stdlog.Logger {
	return stdlog.New(stdWriter{logger: l, level: level}, "", 0)
}

// RedirectStdLog sends the standard library's default logger through l.
// The returned func restores the previous writer and flags.
func RedirectStdLog(l Logger) func() {
	prevFlags := stdlog.Flags()
	prevPrefix := stdlog.Prefix()
	prevOut := stdlog.Writer()
	stdlog.SetFlags(0)
	stdlog.SetPrefix("")
	stdlog.SetOutput(stdWriter{logger: l.WithComponent("stdlog"), level: InfoLevel})
	return func() {
		stdlog.SetFlags(prevFlags)
		stdlog.SetPrefix(prevPrefix)
		stdlog.SetOutput(prevOut)
	}
}
