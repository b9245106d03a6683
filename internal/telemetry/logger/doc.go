// Package logger configures structured logging for pixelflut.
//
// It builds a log/slog logger with a JSON or text handler whose level is
// held in a shared slog.LevelVar, so SetLevel changes the verbosity of
// every logger derived from New at runtime.
//
// Components take a *slog.Logger and fall back to slog.Default() when
// given nil. Request-scoped loggers travel in a context.Context; see
// WithLogger, WithRequestID and L.
package logger
