// Package tag provides standardized tag functions for structured logging.
//
// All tag keys use kebab-case naming convention for consistency.
package tag

import (
	"log/slog"
	"time"
)

// Error creates a tag for error objects.
func Error(err any) slog.Attr {
	return slog.Any("err", err)
}

// RunID creates a tag for task run IDs.
func RunID(id string) slog.Attr {
	return slog.String("run-id", id)
}

// Task creates a tag for task names.
func Task(name string) slog.Attr {
	return slog.String("task", name)
}

// Permalink creates a tag for content permalinks.
func Permalink(url string) slog.Attr {
	return slog.String("permalink", url)
}

// File creates a tag for file paths.
func File(path string) slog.Attr {
	return slog.String("file", path)
}

// Dir creates a tag for directory paths.
func Dir(path string) slog.Attr {
	return slog.String("dir", path)
}

// Count creates a tag for numeric counts.
func Count(n int) slog.Attr {
	return slog.Int("count", n)
}

// Time creates a tag for a point in time.
func Time(key string, t time.Time) slog.Attr {
	return slog.Time(key, t)
}

// Duration creates a tag for durations.
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Schedule creates a tag for cron expressions.
func Schedule(expr string) slog.Attr {
	return slog.String("schedule", expr)
}

// Reason creates a tag for a short explanation.
func Reason(r string) slog.Attr {
	return slog.String("reason", r)
}
