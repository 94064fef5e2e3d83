package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey string

const (
	LoggerKey    contextKey = "logger"
	RequestIDKey contextKey = "request_id"
	UserIDKey    contextKey = "user_id"
)

// WithContext attaches the logger to the context.
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// FromContext retrieves the logger from context. Returns a no-op logger
// when none is attached so call sites never nil-check.
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(LoggerKey).(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}

// stamp stores value under key and returns a logger carrying it as a field,
// attached back into the context so FromContext sees the enriched copy.
func stamp(ctx context.Context, logger *zap.Logger, key contextKey, value string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, key, value)
	enriched := logger.With(zap.String(string(key), value))
	return WithContext(ctx, enriched), enriched
}

func stringValue(ctx context.Context, key contextKey) string {
	s, _ := ctx.Value(key).(string)
	return s
}

// WithRequestID stores the request ID in the context and returns a logger
// that stamps it on every entry.
func WithRequestID(ctx context.Context, logger *zap.Logger, requestID string) (context.Context, *zap.Logger) {
	return stamp(ctx, logger, RequestIDKey, requestID)
}

// WithUserID stores the authenticated user ID in the context and returns a
// logger that stamps it on every entry.
func WithUserID(ctx context.Context, logger *zap.Logger, userID string) (context.Context, *zap.Logger) {
	return stamp(ctx, logger, UserIDKey, userID)
}

// GetRequestID retrieves the request ID from context, empty if absent.
func GetRequestID(ctx context.Context) string {
	return stringValue(ctx, RequestIDKey)
}

// GetUserID retrieves the user ID from context, empty if absent.
func GetUserID(ctx context.Context) string {
	return stringValue(ctx, UserIDKey)
}

// GetTraceID extracts the trace ID from the context's active span, empty
// when no sampled span exists. Surfaced in error responses so a bursar's
// support ticket can be matched to a trace.
func GetTraceID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		return sc.TraceID().String()
	}
	return ""
}

// WithTraceContext returns the logger with trace_id and span_id fields
// drawn from the context's active span. When no valid span exists the
// logger is returned unchanged.
func WithTraceContext(ctx context.Context, logger *zap.Logger) *zap.Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return logger
	}
	return logger.With(
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	)
}
