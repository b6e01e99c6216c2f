package observability

import (
	"context"
	"log/slog"
)

type (
	loggerKey    struct{}
	requestIDKey struct{}
	operationKey struct{}
)

// Operation identifies one orchestrated AI call.
type Operation struct {
	Name        string
	AIRequestID string
}

// ContextWithLogger attaches lg to ctx. A nil logger leaves ctx untouched.
func ContextWithLogger(ctx context.Context, lg *slog.Logger) context.Context {
	if ctx == nil || lg == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerKey{}, lg)
}

// LoggerFromContext returns the attached logger or slog.Default.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if lg, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && lg != nil {
			return lg
		}
	}
	return slog.Default()
}

// ContextWithRequestID stores the inbound HTTP request id.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil || requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext returns the inbound HTTP request id, or "".
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	rid, _ := ctx.Value(requestIDKey{}).(string)
	return rid
}

// WithOperation scopes ctx to one AI operation: the stored logger gains op and
// ai_request_id attributes so every log line below it (orchestrator, limiter,
// provider client) is correlated with the call.
func WithOperation(ctx context.Context, op Operation) context.Context {
	if ctx == nil || op.Name == "" {
		return ctx
	}
	lg := LoggerFromContext(ctx).With(
		slog.String("op", op.Name),
		slog.String("ai_request_id", op.AIRequestID),
	)
	ctx = context.WithValue(ctx, operationKey{}, op)
	return ContextWithLogger(ctx, lg)
}

// OperationFromContext returns the operation set by WithOperation.
func OperationFromContext(ctx context.Context) (Operation, bool) {
	if ctx == nil {
		return Operation{}, false
	}
	op, ok := ctx.Value(operationKey{}).(Operation)
	return op, ok
}
