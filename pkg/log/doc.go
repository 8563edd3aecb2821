// Package log is the structured logging facade used across factcast.
//
// Loggers carry Fields and are usually scoped per component:
//
//	l := log.NewLogger(log.WithFormatter(&log.JSONFormatter{}))
//	sub := l.WithComponent("subscription")
//	sub.Info("subscription.catchup", log.Uint64("delivered", n), log.Dur("took", d))
//
// Records flow through log/slog into a formatter and one or more outputs.
// ApplyConfig builds the process logger from the `log` section of the
// server configuration; RedirectStdLog captures the standard library logger
// that grpc and net/http write to.
package log
