package logger

import "context"

// ctxKey keys logger values in a context without colliding with other
// packages.
type ctxKey int

const requestIDKey ctxKey = iota

// WithRequestID stores the request ID in the context. Dispatch carries it
// through context.WithoutCancel into detached executions, so asynchronous
// task logs stay correlated with the request that started them.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the request ID from the context, or "" if none is set.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
