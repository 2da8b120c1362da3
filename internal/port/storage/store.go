// Package storage defines the port interface that makes tasks durable and
// replayable. Backends: in-memory (internal/adapter/memory), PostgreSQL
// (internal/adapter/postgres), and GORM (internal/adapter/gormstore).
package storage

import (
	"context"

	"github.com/nyuta01/agenthub/internal/domain/a2a"
)

// TaskWithHistory is the composite read of a task plus its ordered message
// history and artifacts, taken as a single logical snapshot.
type TaskWithHistory struct {
	Task      *a2a.Task      `json:"task"`
	Messages  []a2a.Message  `json:"messages"`
	Artifacts []a2a.Artifact `json:"artifacts"`
}

// Store is the port interface every storage backend must satisfy.
//
// Messages attached to a task are ordered by an explicit per-task sequence
// counter, never by wall-clock timestamp. The underlying connection or pool
// is shared process-wide and must be safe for concurrent use.
type Store interface {
	// SaveTask upserts a task by ID.
	SaveTask(ctx context.Context, task *a2a.Task) error

	// GetTask returns the task or domain.ErrTaskNotFound.
	GetTask(ctx context.Context, id string) (*a2a.Task, error)

	// UpdateTaskStatus replaces the task's status wholesale. Fails with
	// domain.ErrTaskNotFound if the task does not exist. When the status
	// carries a message, it is also appended to the task's history.
	UpdateTaskStatus(ctx context.Context, id string, status a2a.TaskStatus) error

	// SaveMessage appends a message to the task's sequence (sequence =
	// current max + 1). Resending the same messageId upserts the payload
	// and keeps the original sequence.
	SaveMessage(ctx context.Context, taskID string, msg *a2a.Message) error

	// GetMessages returns the task's messages ordered by sequence.
	GetMessages(ctx context.Context, taskID string) ([]a2a.Message, error)

	// UpdateArtifact upserts an artifact by artifactId.
	UpdateArtifact(ctx context.Context, artifact *a2a.Artifact) error

	// GetArtifact returns the artifact or domain.ErrArtifactNotFound.
	GetArtifact(ctx context.Context, artifactID string) (*a2a.Artifact, error)

	// GetTaskArtifacts returns all artifacts owned by the task.
	GetTaskArtifacts(ctx context.Context, taskID string) ([]a2a.Artifact, error)

	// GetTaskWithHistory returns the composite snapshot or
	// domain.ErrTaskNotFound. Whether the snapshot is atomic across tables
	// is backend-specific; the postgres and gorm backends read inside a
	// transaction, the memory backend under one lock.
	GetTaskWithHistory(ctx context.Context, taskID string) (*TaskWithHistory, error)
}
