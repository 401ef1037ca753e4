package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Context key types
type requestCtxKey struct{}
type contentKeyCtxKey struct{}

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 4)

	// Trace correlation (from OpenTelemetry)
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}

	if requestID := RequestIDFromContext(ctx); requestID != "" {
		fields = append(fields, zap.String("request.id", requestID))
	}

	if contentKey := ContentKeyFromContext(ctx); contentKey != "" {
		fields = append(fields, zap.String("content.key", contentKey))
	}

	return fields
}

// WithRequestID attaches a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestCtxKey{}, requestID)
}

// RequestIDFromContext extracts the request ID, or "" if absent.
func RequestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(requestCtxKey{}).(string); ok {
		return v
	}
	return ""
}

// WithContentKey attaches an abbreviated content key to the context so all
// log lines for one analysis can be correlated.
func WithContentKey(ctx context.Context, key string) context.Context {
	if key == "" {
		return ctx
	}
	if len(key) > 12 {
		key = key[:12]
	}
	return context.WithValue(ctx, contentKeyCtxKey{}, key)
}

// ContentKeyFromContext extracts the abbreviated content key, or "" if absent.
func ContentKeyFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(contentKeyCtxKey{}).(string); ok {
		return v
	}
	return ""
}
