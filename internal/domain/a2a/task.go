package a2a

import "time"

// TaskState enumerates the nine task lifecycle states. Transitions are
// caller-driven: the core trusts executors to request sane transitions and
// does not enforce a transition graph.
type TaskState string

const (
	StateSubmitted     TaskState = "submitted"
	StateWorking       TaskState = "working"
	StateInputRequired TaskState = "input-required"
	StateCompleted     TaskState = "completed"
	StateCanceled      TaskState = "canceled"
	StateFailed        TaskState = "failed"
	StateRejected      TaskState = "rejected"
	StateAuthRequired  TaskState = "auth-required"
	StateUnknown       TaskState = "unknown"
)

// Valid reports whether s is one of the enumerated states.
func (s TaskState) Valid() bool {
	switch s {
	case StateSubmitted, StateWorking, StateInputRequired, StateCompleted,
		StateCanceled, StateFailed, StateRejected, StateAuthRequired, StateUnknown:
		return true
	}
	return false
}

// Terminal reports whether s is a final state.
func (s TaskState) Terminal() bool {
	switch s {
	case StateCompleted, StateCanceled, StateFailed, StateRejected:
		return true
	}
	return false
}

// TaskStatus is the embedded status value held by exactly one task. It is
// replaced wholesale on each status update; the previous status message, if
// any, lives on in the task's history.
type TaskStatus struct {
	State     TaskState  `json:"state"`
	Message   *Message   `json:"message,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// Validate checks the state enum and the embedded message, if present.
func (ts *TaskStatus) Validate() *ValidationError {
	if !ts.State.Valid() {
		return newValidationError("status.state", "one of the nine task states", string(ts.State))
	}
	if ts.Message != nil {
		if verr := ts.Message.Validate(); verr != nil {
			return verr.under("status")
		}
	}
	return nil
}

// KindTask is the discriminant value for Task.
const KindTask = "task"

// Task is the root of a work unit's lifecycle: status, message history, and
// artifacts. Tasks are mutated only through the lifecycle operations and are
// never deleted by the core.
type Task struct {
	ID        string         `json:"id"`
	ContextID string         `json:"contextId"`
	Kind      string         `json:"kind"` // always "task"
	Status    TaskStatus     `json:"status"`
	Artifacts []Artifact     `json:"artifacts,omitempty"`
	History   []Message      `json:"history,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewTask returns a task in the submitted state carrying the triggering
// message as its status message.
func NewTask(id, contextID string, msg *Message) *Task {
	now := time.Now().UTC()
	return &Task{
		ID:        id,
		ContextID: contextID,
		Kind:      KindTask,
		Status: TaskStatus{
			State:     StateSubmitted,
			Message:   msg,
			Timestamp: &now,
		},
	}
}

// Validate checks the task envelope, status, history, and artifacts.
func (t *Task) Validate() *ValidationError {
	if t.ID == "" {
		return newValidationError("task.id", "non-empty string", "empty")
	}
	if t.ContextID == "" {
		return newValidationError("task.contextId", "non-empty string", "empty")
	}
	if t.Kind != KindTask {
		return newValidationError("task.kind", `"task"`, t.Kind)
	}
	if verr := t.Status.Validate(); verr != nil {
		return verr.under("task")
	}
	for i := range t.History {
		if verr := t.History[i].Validate(); verr != nil {
			return verr.prefixed("task.history", i)
		}
	}
	for i := range t.Artifacts {
		if verr := t.Artifacts[i].Validate(); verr != nil {
			return verr.prefixed("task.artifacts", i)
		}
	}
	return nil
}
