// Package contextx carries per-request values — the structured logger and
// request id — through a context.Context, the way every HTTP handler in
// the registry and gateway derives its log fields.
package contextx

import (
	"context"

	"go.uber.org/zap"
)

// Key types (unexported).
type (
	loggerKeyType    struct{}
	requestIDKeyType struct{}
)

var (
	loggerKey    = loggerKeyType{}
	requestIDKey = requestIDKeyType{}
)

// Logger helpers.
func WithLogger(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

func Logger(ctx context.Context) *zap.Logger {
	val := ctx.Value(loggerKey)
	if l, ok := val.(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}

// Request ID helpers.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func RequestID(ctx context.Context) string {
	id, ok := ctx.Value(requestIDKey).(string)
	if !ok {
		return ""
	}
	return id
}
