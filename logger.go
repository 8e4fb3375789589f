package umapgo

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with umapgo-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithK adds a k (neighbor count) field to the logger.
func (l *Logger) WithK(k int) *Logger {
	return &Logger{
		Logger: l.Logger.With("k", k),
	}
}

// WithDimension adds a dimension field to the logger.
func (l *Logger) WithDimension(dim int) *Logger {
	return &Logger{
		Logger: l.Logger.With("dimension", dim),
	}
}

// WithCount adds a count field to the logger.
func (l *Logger) WithCount(count int) *Logger {
	return &Logger{
		Logger: l.Logger.With("count", count),
	}
}

// WithMethod adds a neighbor backend field to the logger.
func (l *Logger) WithMethod(method Method) *Logger {
	return &Logger{
		Logger: l.Logger.With("method", method.String()),
	}
}

// LogBuild logs the construction of a neighbor index.
// attrs carry backend-specific structure, see indexAttrs.
func (l *Logger) LogBuild(ctx context.Context, duration time.Duration, err error, attrs ...any) {
	if err != nil {
		l.ErrorContext(ctx, "index build failed",
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "index built",
			append([]any{"duration", duration}, attrs...)...,
		)
	}
}

// LogQuery logs a neighbor query.
func (l *Logger) LogQuery(ctx context.Context, k, resultsFound int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "query failed",
			"k", k,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "query completed",
			"k", k,
			"results", resultsFound,
		)
	}
}

// LogRun logs an optimizer slice.
func (l *Logger) LogRun(ctx context.Context, epoch, nEpochs, ran int, duration time.Duration) {
	l.DebugContext(ctx, "optimizer slice completed",
		"epoch", epoch,
		"n_epochs", nEpochs,
		"epochs_run", ran,
		"duration", duration,
	)
}

// LogInitFallback logs that a spectral layout was replaced by a random one.
func (l *Logger) LogInitFallback(ctx context.Context, reason error) {
	l.WarnContext(ctx, "spectral initialization failed, using random layout",
		"reason", reason,
	)
}
