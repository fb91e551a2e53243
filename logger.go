package blockpool

import (
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with pool-specific helpers.
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
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	}))
}

// WithBlock adds a block index field to the logger.
func (l *Logger) WithBlock(index uint32) *Logger {
	return &Logger{
		Logger: l.Logger.With("block", index),
	}
}

// WithCount adds a count field to the logger.
func (l *Logger) WithCount(count int) *Logger {
	return &Logger{
		Logger: l.Logger.With("count", count),
	}
}

// LogGrow logs the outcome of appending a block.
func (l *Logger) LogGrow(blocks, capacity int, err error) {
	if err != nil {
		l.Warn("pool growth failed",
			"blocks", blocks,
			"capacity", capacity,
			"error", err,
		)
	} else {
		l.Debug("pool grew",
			"blocks", blocks,
			"capacity", capacity,
		)
	}
}

// LogDrain logs a deferred destruction drain.
func (l *Logger) LogDrain(destroyed, reclaimed int) {
	l.Debug("deferred destruction drained",
		"destroyed", destroyed,
		"reclaimed", reclaimed,
	)
}

// LogDestroyError logs a failed object destruction.
func (l *Logger) LogDestroyError(err error) {
	l.Error("object destruction failed",
		"error", err,
	)
}

// LogLeak logs objects still allocated when the pool is closed.
func (l *Logger) LogLeak(allocated, active int64) {
	l.Error("pool closed with allocated objects",
		"allocated", allocated,
		"active", active,
	)
}
