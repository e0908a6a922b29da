package logger

import (
	"context"
)

// Logger defines the interface for structured logging throughout the library.
// All log methods accept a message string followed by key-value pairs for structured fields.
type Logger interface {
	// Debug logs a debug-level message with optional key-value pairs
	Debug(msg string, args ...any)

	// Info logs an info-level message with optional key-value pairs
	Info(msg string, args ...any)

	// Warn logs a warning-level message with optional key-value pairs
	Warn(msg string, args ...any)

	// Error logs an error-level message with optional key-value pairs
	Error(msg string, args ...any)

	// With creates a child logger with additional key-value pairs that will be
	// included in all subsequent log entries
	With(args ...any) Logger

	// WithContext creates a child logger that extracts the resolution pass
	// identifier from the context
	WithContext(ctx context.Context) Logger
}

type passIDKey struct{}

// ContextWithPassID tags a context with the identifier of the resolution
// pass it belongs to. Loggers derived via WithContext carry it as a field,
// so the fetches of one pass can be correlated in the log stream.
func ContextWithPassID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, passIDKey{}, id)
}

// PassIDFromContext returns the pass identifier carried by the context,
// empty when there is none.
func PassIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(passIDKey{}).(string); ok {
		return id
	}
	return ""
}

// NopLogger discards every log entry. It is the default for components
// constructed without an explicit logger.
type NopLogger struct{}

func (NopLogger) Debug(string, ...any)                 {}
func (NopLogger) Info(string, ...any)                  {}
func (NopLogger) Warn(string, ...any)                  {}
func (NopLogger) Error(string, ...any)                 {}
func (n NopLogger) With(...any) Logger                 { return n }
func (n NopLogger) WithContext(context.Context) Logger { return n }
