// Package logger provides structured logging setup using slog.
package logger

import (
	"context"
	"io"
	"log/slog"
	"strings"
)

// attemptIDKey is the context key for the workflow attempt ID.
type attemptIDKey struct{}

// New creates a structured logger writing to w.
// format is "json" (default) or "text"; level is one of debug, info, warn, error.
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if strings.EqualFold(format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// ParseLevel maps a level name to a slog.Level, defaulting to warn so that
// log lines do not interleave with interactive prompts.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// Discard returns a logger that drops everything. Used by tests and by
// callers that did not configure logging.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// WithAttemptID returns a new context carrying the workflow attempt ID.
func WithAttemptID(ctx context.Context, attemptID string) context.Context {
	return context.WithValue(ctx, attemptIDKey{}, attemptID)
}

// AttemptIDFromContext extracts the attempt ID from the context.
func AttemptIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(attemptIDKey{}).(string); ok {
		return v
	}
	return ""
}

// FromContext returns base with the attempt ID attached, if any.
func FromContext(ctx context.Context, base *slog.Logger) *slog.Logger {
	if base == nil {
		base = Discard()
	}
	if id := AttemptIDFromContext(ctx); id != "" {
		return base.With("attempt_id", id)
	}
	return base
}
