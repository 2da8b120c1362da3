package service

import (
	"context"

	"github.com/nyuta01/agenthub/internal/domain/a2a"
)

// TaskContext binds the lifecycle operations to one taskId/contextId pair.
// It is handed to an executor on invocation; a later executor resuming the
// same task gets a fresh TaskContext over the same stored state.
type TaskContext struct {
	taskID    string
	contextID string
	lifecycle *Lifecycle
}

// NewTaskContext binds a lifecycle to a task/context pair.
func NewTaskContext(lifecycle *Lifecycle, taskID, contextID string) *TaskContext {
	return &TaskContext{taskID: taskID, contextID: contextID, lifecycle: lifecycle}
}

// TaskID returns the bound task ID.
func (tc *TaskContext) TaskID() string { return tc.taskID }

// ContextID returns the bound context ID.
func (tc *TaskContext) ContextID() string { return tc.contextID }

// UpdateStatus reports a state transition for the bound task.
func (tc *TaskContext) UpdateStatus(ctx context.Context, status a2a.TaskStatus) error {
	return tc.lifecycle.UpdateStatus(ctx, tc.taskID, tc.contextID, status)
}

// UpdateMessage attaches a narration message to the bound task.
func (tc *TaskContext) UpdateMessage(ctx context.Context, msg *a2a.Message) error {
	return tc.lifecycle.UpdateMessage(ctx, tc.taskID, tc.contextID, msg)
}

// UpdateArtifact upserts an artifact on the bound task.
func (tc *TaskContext) UpdateArtifact(ctx context.Context, artifact *a2a.Artifact) error {
	return tc.lifecycle.UpdateArtifact(ctx, tc.taskID, tc.contextID, artifact)
}

// Cancel marks the bound task canceled.
func (tc *TaskContext) Cancel(ctx context.Context, msg *a2a.Message) error {
	return tc.lifecycle.CancelTask(ctx, tc.taskID, tc.contextID, msg)
}

// GetTask reads the bound task's current stored state.
func (tc *TaskContext) GetTask(ctx context.Context) (*a2a.Task, error) {
	return tc.lifecycle.GetTask(ctx, tc.taskID)
}
