package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "agenthub"

// StartDispatchSpan starts a span covering one Execute call.
func StartDispatchSpan(ctx context.Context, taskID, contextID, extension string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "dispatch",
		trace.WithAttributes(
			attribute.String("task.id", taskID),
			attribute.String("task.context_id", contextID),
			attribute.String("executor.extension", extension),
		),
	)
}

// StartExecutorSpan starts a span covering the executor function itself.
func StartExecutorSpan(ctx context.Context, extension string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "executor",
		trace.WithAttributes(attribute.String("executor.extension", extension)),
	)
}

// StartLifecycleSpan starts a span for one lifecycle write.
func StartLifecycleSpan(ctx context.Context, op, taskID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "lifecycle."+op,
		trace.WithAttributes(attribute.String("task.id", taskID)),
	)
}
