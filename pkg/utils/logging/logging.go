// Package logging wires github.com/m-mizutani/clog into the process-wide
// and context-scoped slog.Logger used throughout the codebase.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/m-mizutani/clog"
)

var defaultLogger atomic.Pointer[slog.Logger]

func init() {
	defaultLogger.Store(slog.New(clog.New(clog.WithWriter(os.Stderr), clog.WithLevel(slog.LevelInfo))))
}

// Default returns the process-wide logger. It is safe to call before
// SetDefault; an initial text-format, info-level logger is installed at
// package init.
func Default() *slog.Logger {
	return defaultLogger.Load()
}

// SetDefault replaces the process-wide logger, used once at startup after
// the --log-level/--log-format flags have been parsed.
func SetDefault(l *slog.Logger) {
	defaultLogger.Store(l)
}

// New builds a logger per the given format ("json" or "text") and level.
// "json" uses slog's JSON handler; any other value uses clog's colorized
// text handler. The format comes from the --log-format flag.
func New(w io.Writer, format string, level slog.Level) *slog.Logger {
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(clog.New(clog.WithWriter(w), clog.WithLevel(level)))
}

type contextKey struct{}

// With returns a new context carrying logger, retrievable via From.
func With(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// From returns the logger stored in ctx by With, or Default() if none was
// attached.
func From(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(contextKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return Default()
}
