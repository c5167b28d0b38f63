package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type requestCtxKey struct{}
type commandCtxKey struct{}
type loggerCtxKey struct{}

const maxIDLen = 128

// ContextFields extracts correlation data from ctx: trace and span ids,
// request id and command name.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 4)

	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	if id := RequestIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("request.id", id))
	}
	if cmd := CommandFromContext(ctx); cmd != "" {
		fields = append(fields, zap.String("command", cmd))
	}
	return fields
}

// WithRequestID stores the request id. Ids longer than 128 bytes are truncated.
func WithRequestID(ctx context.Context, id string) context.Context {
	if len(id) > maxIDLen {
		id = id[:maxIDLen]
	}
	return context.WithValue(ctx, requestCtxKey{}, id)
}

// RequestIDFromContext returns the request id, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestCtxKey{}).(string)
	return id
}

// WithCommand stores the gateway command being served.
func WithCommand(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, commandCtxKey{}, name)
}

// CommandFromContext returns the command name, or "".
func CommandFromContext(ctx context.Context) string {
	name, _ := ctx.Value(commandCtxKey{}).(string)
	return name
}

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext returns the logger stored in ctx, or a no-op logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok {
		return l
	}
	return NewNop()
}
