// Package observability provides structured logging with OpenTelemetry
// trace correlation for the RTOps platform.
package observability

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

// TracedLogger is a structured logger with automatic trace correlation.
// It wraps slog.Logger and stamps every entry with the owning exercise
// and operator, plus trace/span ids when a span is active.
type TracedLogger struct {
	logger          *slog.Logger
	exerciseID      string
	operator        string
	redactSensitive bool
}

// NewTracedLogger creates a new TracedLogger bound to an exercise and
// operator. Sensitive values are redacted at info level and above;
// debug logs are left untouched for troubleshooting.
func NewTracedLogger(handler slog.Handler, exerciseID, operator string) *TracedLogger {
	return &TracedLogger{
		logger:          slog.New(handler),
		exerciseID:      exerciseID,
		operator:        operator,
		redactSensitive: true,
	}
}

// Debug logs a debug-level message with automatic trace correlation.
// Debug logs include all fields without redaction.
func (l *TracedLogger) Debug(ctx context.Context, msg string, args ...any) {
	l.WithContext(ctx).Debug(msg, args...)
}

// Info logs an info-level message with automatic trace correlation
func (l *TracedLogger) Info(ctx context.Context, msg string, args ...any) {
	logger := l.WithContext(ctx)
	if l.redactSensitive {
		args = redactSensitiveData(args)
	}
	logger.Info(msg, args...)
}

// Warn logs a warning-level message with automatic trace correlation
func (l *TracedLogger) Warn(ctx context.Context, msg string, args ...any) {
	logger := l.WithContext(ctx)
	if l.redactSensitive {
		args = redactSensitiveData(args)
	}
	logger.Warn(msg, args...)
}

// Error logs an error-level message with automatic trace correlation
func (l *TracedLogger) Error(ctx context.Context, msg string, args ...any) {
	logger := l.WithContext(ctx)
	if l.redactSensitive {
		args = redactSensitiveData(args)
	}
	logger.Error(msg, args...)
}

// WithContext creates a new slog.Logger with correlation fields added.
// Extracts trace_id and span_id from the OpenTelemetry span in the context
// and adds exercise_id and operator to every log entry.
func (l *TracedLogger) WithContext(ctx context.Context) *slog.Logger {
	logger := l.logger.With(
		slog.String("exercise_id", l.exerciseID),
		slog.String("operator", l.operator),
	)

	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		spanCtx := span.SpanContext()
		logger = logger.With(
			slog.String("trace_id", spanCtx.TraceID().String()),
			slog.String("span_id", spanCtx.SpanID().String()),
		)
	}

	return logger
}

// NewHandler creates a log handler from config-style format and level
// strings. Unknown formats fall back to JSON; unknown levels to info.
func NewHandler(w io.Writer, format, level string) slog.Handler {
	parsed := ParseLevel(level)
	if format == "text" {
		return NewTextHandler(w, parsed)
	}
	return NewJSONHandler(w, parsed)
}

// ParseLevel maps a level name to a slog.Level, defaulting to info
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewJSONHandler creates a JSON log handler with the specified output and
// level. JSON format is the production default.
func NewJSONHandler(w io.Writer, level slog.Level) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})
}

// NewTextHandler creates a human-readable text handler for development use
func NewTextHandler(w io.Writer, level slog.Level) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	})
}

// redactSensitiveData redacts sensitive fields in log arguments. Red team
// records routinely carry captured credential material; none of it belongs
// in the platform's own logs.
func redactSensitiveData(args []any) []any {
	if len(args)%2 != 0 {
		// Invalid args, return as-is
		return args
	}

	sensitiveFields := map[string]bool{
		"apikey":     true,
		"secret":     true,
		"secretkey":  true,
		"password":   true,
		"hash":       true,
		"ticket":     true,
		"token":      true,
		"credential": true,
	}

	redacted := make([]any, len(args))
	copy(redacted, args)

	for i := 0; i < len(args); i += 2 {
		if key, ok := args[i].(string); ok {
			normalizedKey := strings.ToLower(strings.ReplaceAll(key, "_", ""))
			if sensitiveFields[normalizedKey] {
				redacted[i+1] = "[REDACTED]"
			}
		}
	}

	return redacted
}
