// Package log provides the logging infrastructure shared by all parley
// components.
//
// This package provides:
//   - A type alias for *slog.Logger to use as DI dependency
//   - Factory functions to create configured loggers
//   - A Nop logger for testing
//
// Loggers are dependency-injected, never global: each component receives a
// logger via its constructor and may add context with logger.With().
//
// Usage:
//
//	logger := log.New(log.Config{Level: slog.LevelDebug})
//	completer := completion.New(client, logger.With("component", "completion"))
//
//	// In tests, use a Nop logger or capture to a buffer
//	testLogger := log.NewNop()
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger is a type alias for *slog.Logger.
// Using the standard library type directly keeps full compatibility with the
// slog ecosystem and avoids a custom interface definition.
type Logger = *slog.Logger

// MaxMessageLength is the length above which log messages are truncated.
// Streamed model output and raw annotation payloads are routinely logged at
// debug level; truncation keeps a single record from flooding the sink.
const MaxMessageLength = 1000

// Config defines logger configuration options.
type Config struct {
	// Level sets the minimum log level. Default: slog.LevelInfo
	Level slog.Level

	// JSON enables JSON format output. Default: false (text format)
	JSON bool

	// AddSource adds source file information to log entries. Default: false
	AddSource bool
}

// New creates a new logger with the given configuration.
// Output is written to os.Stderr.
func New(cfg Config) Logger {
	return NewWithWriter(os.Stderr, cfg)
}

// NewWithWriter creates a new logger that writes to the specified writer.
// Useful for testing or custom output destinations.
func NewWithWriter(w io.Writer, cfg Config) Logger {
	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(&truncatingHandler{inner: handler})
}

// NewNop creates a logger that discards all output.
//
// WARNING: Only use this in tests. Production code should always use New()
// or NewWithWriter() with proper configuration.
func NewNop() Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// truncatingHandler caps the message of each record at MaxMessageLength.
// Attribute values are left untouched; only the free-form message is capped.
type truncatingHandler struct {
	inner slog.Handler
}

func (h *truncatingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *truncatingHandler) Handle(ctx context.Context, r slog.Record) error {
	if len(r.Message) > MaxMessageLength {
		clone := slog.NewRecord(r.Time, r.Level, r.Message[:MaxMessageLength]+"… [truncated]", r.PC)
		r.Attrs(func(a slog.Attr) bool {
			clone.AddAttrs(a)
			return true
		})
		r = clone
	}
	return h.inner.Handle(ctx, r) //nolint:wrapcheck // transparent handler wrapper
}

func (h *truncatingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &truncatingHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *truncatingHandler) WithGroup(name string) slog.Handler {
	return &truncatingHandler{inner: h.inner.WithGroup(name)}
}
