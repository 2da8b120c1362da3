package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nyuta01/agenthub/internal/domain/a2a"
	"github.com/nyuta01/agenthub/internal/port/eventchannel"
	"github.com/nyuta01/agenthub/internal/port/storage"
)

// Lifecycle exposes the operations executors and out-of-process callers use
// to mutate task state. Every mutation is a storage write plus an event
// emission; the write is awaited before the call returns, the emission is
// best-effort. There is no transactional rollback across calls — each is
// independently durable.
type Lifecycle struct {
	store   storage.Store
	channel eventchannel.Channel
}

// NewLifecycle creates a Lifecycle over the given storage and event channel.
func NewLifecycle(store storage.Store, channel eventchannel.Channel) *Lifecycle {
	return &Lifecycle{store: store, channel: channel}
}

// UpdateStatus emits a status-update event and persists the new status. A
// reader polling storage immediately after this call returns sees the new
// status.
func (l *Lifecycle) UpdateStatus(ctx context.Context, taskID, contextID string, status a2a.TaskStatus) error {
	stampStatus(&status)
	l.emit(ctx, a2a.NewStatusUpdate(taskID, contextID, status))

	if err := l.store.UpdateTaskStatus(ctx, taskID, status); err != nil {
		return fmt.Errorf("update status %s: %w", taskID, err)
	}
	return nil
}

// UpdateMessage emits a status-update event with a synthetic working status
// carrying the message, and appends the message to history. Used for
// narration that is not a formal state transition.
func (l *Lifecycle) UpdateMessage(ctx context.Context, taskID, contextID string, msg *a2a.Message) error {
	status := a2a.TaskStatus{State: a2a.StateWorking, Message: msg}
	stampStatus(&status)
	l.emit(ctx, a2a.NewStatusUpdate(taskID, contextID, status))

	if err := l.store.SaveMessage(ctx, taskID, msg); err != nil {
		return fmt.Errorf("update message %s: %w", taskID, err)
	}
	return nil
}

// UpdateArtifact emits an artifact-update event and upserts the artifact.
func (l *Lifecycle) UpdateArtifact(ctx context.Context, taskID, contextID string, artifact *a2a.Artifact) error {
	artifact.TaskID = taskID
	l.emit(ctx, a2a.NewArtifactUpdate(taskID, contextID, *artifact))

	if err := l.store.UpdateArtifact(ctx, artifact); err != nil {
		return fmt.Errorf("update artifact %s: %w", artifact.ArtifactID, err)
	}
	return nil
}

// CancelTask emits and persists a canceled status. It does not interrupt an
// in-flight executor; a running executor's later lifecycle calls still
// succeed.
func (l *Lifecycle) CancelTask(ctx context.Context, taskID, contextID string, msg *a2a.Message) error {
	return l.UpdateStatus(ctx, taskID, contextID, a2a.TaskStatus{
		State:   a2a.StateCanceled,
		Message: msg,
	})
}

// GetTask returns the task or domain.ErrTaskNotFound. Unlike the mutating
// operations this surfaces a hard error, since callers branch on it.
func (l *Lifecycle) GetTask(ctx context.Context, taskID string) (*a2a.Task, error) {
	return l.store.GetTask(ctx, taskID)
}

// emit sends the event and logs failures. Event loss is acceptable; the
// storage write that follows is the source of truth.
func (l *Lifecycle) emit(ctx context.Context, event a2a.Event) {
	if err := l.channel.Send(ctx, event); err != nil {
		slog.Error("event send failed", "kind", event.EventKind(), "task_id", event.EventTaskID(), "error", err)
	}
}

func stampStatus(status *a2a.TaskStatus) {
	if status.Timestamp == nil {
		now := time.Now().UTC()
		status.Timestamp = &now
	}
}
