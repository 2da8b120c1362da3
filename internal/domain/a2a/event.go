package a2a

// Event kind tags used on the wire (SSE event names, pub/sub payloads).
const (
	EventKindStatusUpdate   = "status-update"
	EventKindArtifactUpdate = "artifact-update"
	EventKindConnected      = "connected"
)

// Event is a state-change notification fanned out to live observers of a
// task. Delivery is best-effort, at-most-once; storage remains the source
// of truth.
type Event interface {
	EventKind() string
	EventTaskID() string
}

// StatusUpdateEvent announces a task status transition. Final marks
// transitions into a terminal state.
type StatusUpdateEvent struct {
	Kind      string     `json:"kind"` // "status-update"
	TaskID    string     `json:"taskId"`
	ContextID string     `json:"contextId"`
	Status    TaskStatus `json:"status"`
	Final     bool       `json:"final"`
}

// NewStatusUpdate returns a status-update event for the given task.
func NewStatusUpdate(taskID, contextID string, status TaskStatus) StatusUpdateEvent {
	return StatusUpdateEvent{
		Kind:      EventKindStatusUpdate,
		TaskID:    taskID,
		ContextID: contextID,
		Status:    status,
		Final:     status.State.Terminal(),
	}
}

func (e StatusUpdateEvent) EventKind() string   { return EventKindStatusUpdate }
func (e StatusUpdateEvent) EventTaskID() string { return e.TaskID }

// ArtifactUpdateEvent announces an artifact upsert on a task.
type ArtifactUpdateEvent struct {
	Kind      string   `json:"kind"` // "artifact-update"
	TaskID    string   `json:"taskId"`
	ContextID string   `json:"contextId"`
	Artifact  Artifact `json:"artifact"`
}

// NewArtifactUpdate returns an artifact-update event for the given task.
func NewArtifactUpdate(taskID, contextID string, artifact Artifact) ArtifactUpdateEvent {
	return ArtifactUpdateEvent{
		Kind:      EventKindArtifactUpdate,
		TaskID:    taskID,
		ContextID: contextID,
		Artifact:  artifact,
	}
}

func (e ArtifactUpdateEvent) EventKind() string   { return EventKindArtifactUpdate }
func (e ArtifactUpdateEvent) EventTaskID() string { return e.TaskID }

// ConnectedEvent is the synthetic frame written to a new observer so its UI
// has an initial heartbeat. Task carries the current stored snapshot when
// available, letting late subscribers converge on state they missed.
type ConnectedEvent struct {
	Kind      string `json:"kind"` // "connected"
	TaskID    string `json:"taskId"`
	ContextID string `json:"contextId"`
	Task      *Task  `json:"task,omitempty"`
}

// NewConnected returns the subscription handshake event.
func NewConnected(taskID, contextID string, task *Task) ConnectedEvent {
	return ConnectedEvent{
		Kind:      EventKindConnected,
		TaskID:    taskID,
		ContextID: contextID,
		Task:      task,
	}
}

func (e ConnectedEvent) EventKind() string   { return EventKindConnected }
func (e ConnectedEvent) EventTaskID() string { return e.TaskID }
