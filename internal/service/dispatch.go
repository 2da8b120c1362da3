package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	hubotel "github.com/nyuta01/agenthub/internal/adapter/otel"
	"github.com/nyuta01/agenthub/internal/domain"
	"github.com/nyuta01/agenthub/internal/domain/a2a"
	"github.com/nyuta01/agenthub/internal/logger"
	"github.com/nyuta01/agenthub/internal/port/storage"
	"github.com/nyuta01/agenthub/internal/workpool"
)

// ExecuteOptions address an execution when the message itself does not
// carry taskId/contextId. Option values take precedence over message fields.
type ExecuteOptions struct {
	TaskID    string
	ContextID string
}

// Dispatcher routes inbound messages to executors and owns the
// create-or-touch task write that precedes every invocation.
type Dispatcher struct {
	registry  *Registry
	store     storage.Store
	lifecycle *Lifecycle
	metrics   *hubotel.Metrics
	pool      *workpool.Pool
}

// NewDispatcher creates a Dispatcher. metrics may be nil.
func NewDispatcher(registry *Registry, store storage.Store, lifecycle *Lifecycle, metrics *hubotel.Metrics) *Dispatcher {
	return &Dispatcher{registry: registry, store: store, lifecycle: lifecycle, metrics: metrics}
}

// SetPool bounds concurrent executions. A nil pool (the default) runs every
// execution immediately.
func (d *Dispatcher) SetPool(pool *workpool.Pool) {
	d.pool = pool
}

// Lifecycle returns the lifecycle the dispatcher binds task contexts over.
func (d *Dispatcher) Lifecycle() *Lifecycle { return d.lifecycle }

// Execute resolves the executor for msg, persists a fresh submitted task
// and the inbound message, extracts and validates the executor input, and
// invokes the executor. Executor errors propagate to the caller unchanged.
//
// Creation is deliberately not guarded by an existence check: a second
// Execute against the same taskId overwrites the task row, because
// resumption flows legitimately re-enter with the same id.
func (d *Dispatcher) Execute(ctx context.Context, msg *a2a.Message, opts ExecuteOptions) (any, error) {
	executor, ok := d.registry.Resolve(msg.Extensions)
	if !ok {
		return nil, fmt.Errorf("resolve %v: %w", msg.Extensions, domain.ErrNoExecutor)
	}

	taskID := opts.TaskID
	if taskID == "" {
		taskID = msg.TaskID
	}
	contextID := opts.ContextID
	if contextID == "" {
		contextID = msg.ContextID
	}
	if taskID == "" || contextID == "" {
		return nil, domain.ErrMissingIdentifiers
	}

	ctx, span := hubotel.StartDispatchSpan(ctx, taskID, contextID, executor.Extension)
	defer span.End()
	start := time.Now()
	if d.metrics != nil {
		d.metrics.ExecutionsStarted.Add(ctx, 1)
	}

	var result any
	err := d.pool.Run(ctx, func() error {
		var execErr error
		result, execErr = d.execute(ctx, executor, msg, taskID, contextID)
		return execErr
	})
	if err != nil {
		span.RecordError(err)
		if d.metrics != nil {
			d.metrics.ExecutionsFailed.Add(ctx, 1)
		}
		return nil, err
	}
	if d.metrics != nil {
		d.metrics.DispatchDuration.Record(ctx, time.Since(start).Seconds())
	}
	return result, nil
}

func (d *Dispatcher) execute(ctx context.Context, executor Executor, msg *a2a.Message, taskID, contextID string) (any, error) {
	task := a2a.NewTask(taskID, contextID, msg)
	if err := d.store.SaveTask(ctx, task); err != nil {
		return nil, fmt.Errorf("%w: save task %s: %w", domain.ErrStorage, taskID, err)
	}
	if err := d.store.SaveMessage(ctx, taskID, msg); err != nil {
		return nil, fmt.Errorf("%w: save message %s: %w", domain.ErrStorage, msg.MessageID, err)
	}

	input := extractInput(msg)
	if verr := executor.InputSchema.Validate(input); verr != nil {
		return nil, fmt.Errorf("%w: input %s", domain.ErrValidation, verr)
	}

	slog.Info("dispatching",
		"task_id", taskID,
		"context_id", contextID,
		"extension", executor.Extension,
		"request_id", logger.RequestID(ctx),
	)

	execCtx, execSpan := hubotel.StartExecutorSpan(ctx, executor.Extension)
	result, err := executor.Execute(execCtx, input, NewTaskContext(d.lifecycle, taskID, contextID))
	execSpan.End()
	if err != nil {
		return nil, err
	}

	if executor.OutputSchema != nil {
		out, ok := result.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: output: expected object, got %T", domain.ErrValidation, result)
		}
		if verr := executor.OutputSchema.Validate(out); verr != nil {
			return nil, fmt.Errorf("%w: output %s", domain.ErrValidation, verr)
		}
	}
	return result, nil
}

// extractInput builds the executor input: the first text part contributes a
// "text" field, the first data part is spread into the same object.
func extractInput(msg *a2a.Message) map[string]any {
	input := make(map[string]any)
	if text, ok := msg.FirstText(); ok {
		input["text"] = text
	}
	if data, ok := msg.FirstData(); ok {
		for k, v := range data {
			input[k] = v
		}
	}
	return input
}
