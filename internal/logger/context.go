package logger

import (
	"context"
	"log/slog"
)

type loggerKey struct{}

// WithLogger returns a new context with the given logger.
func WithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext returns the logger stored in ctx, or the default logger.
func FromContext(ctx context.Context) Logger {
	if value, ok := ctx.Value(loggerKey{}).(Logger); ok {
		return value
	}
	return defaultLogger
}

// WithValues returns a context whose logger carries the given key-value pairs.
func WithValues(ctx context.Context, keyvals ...any) context.Context {
	if len(keyvals)%2 != 0 {
		keyvals = append(keyvals, "MISSING_VALUE")
	}
	return WithLogger(ctx, FromContext(ctx).With(keyvals...))
}

// Debug logs a message with debug level.
func Debug(ctx context.Context, msg string, tags ...any) {
	logAt(ctx, slog.LevelDebug, msg, tags...)
}

// Info logs a message with info level.
func Info(ctx context.Context, msg string, tags ...any) {
	logAt(ctx, slog.LevelInfo, msg, tags...)
}

// Notice logs a message with notice level.
func Notice(ctx context.Context, msg string, tags ...any) {
	logAt(ctx, LevelNotice, msg, tags...)
}

// Warn logs a message with warn level.
func Warn(ctx context.Context, msg string, tags ...any) {
	logAt(ctx, slog.LevelWarn, msg, tags...)
}

// Error logs a message with error level.
func Error(ctx context.Context, msg string, tags ...any) {
	logAt(ctx, slog.LevelError, msg, tags...)
}

// Write writes a message with free form.
func Write(ctx context.Context, msg string) {
	FromContext(ctx).Write(msg)
}

// logAt keeps the source location pointing at the caller of the package
// level helpers.
func logAt(ctx context.Context, level slog.Level, msg string, tags ...any) {
	l := FromContext(ctx)
	if al, ok := l.(*appLogger); ok {
		al.logDepth(2, level, msg, tags...)
		return
	}
	switch level {
	case slog.LevelDebug:
		l.Debug(msg, tags...)
	case LevelNotice:
		l.Notice(msg, tags...)
	case slog.LevelWarn:
		l.Warn(msg, tags...)
	case slog.LevelError:
		l.Error(msg, tags...)
	default:
		l.Info(msg, tags...)
	}
}
