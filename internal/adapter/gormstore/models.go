// Package gormstore implements the storage port on top of GORM, giving
// deployments a single-file SQLite backend (or any other GORM dialect)
// without running a PostgreSQL server.
package gormstore

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/nyuta01/agenthub/internal/domain/a2a"
)

// statusJSON serializes a TaskStatus into a JSON column.
type statusJSON struct {
	a2a.TaskStatus
}

func (s statusJSON) Value() (driver.Value, error) {
	return json.Marshal(s.TaskStatus)
}

func (s *statusJSON) Scan(value any) error {
	bytes, err := columnBytes(value)
	if err != nil {
		return fmt.Errorf("scan status: %w", err)
	}
	if bytes == nil {
		*s = statusJSON{}
		return nil
	}
	return json.Unmarshal(bytes, &s.TaskStatus)
}

// messageJSON serializes a Message into a JSON column.
type messageJSON struct {
	a2a.Message
}

func (m messageJSON) Value() (driver.Value, error) {
	return json.Marshal(m.Message)
}

func (m *messageJSON) Scan(value any) error {
	bytes, err := columnBytes(value)
	if err != nil {
		return fmt.Errorf("scan message: %w", err)
	}
	if bytes == nil {
		*m = messageJSON{}
		return nil
	}
	return json.Unmarshal(bytes, &m.Message)
}

// artifactJSON serializes an Artifact into a JSON column.
type artifactJSON struct {
	a2a.Artifact
}

func (a artifactJSON) Value() (driver.Value, error) {
	return json.Marshal(a.Artifact)
}

func (a *artifactJSON) Scan(value any) error {
	bytes, err := columnBytes(value)
	if err != nil {
		return fmt.Errorf("scan artifact: %w", err)
	}
	if bytes == nil {
		*a = artifactJSON{}
		return nil
	}
	return json.Unmarshal(bytes, &a.Artifact)
}

// metadataJSON serializes a free-form metadata map, keeping nil maps as
// SQL NULL.
type metadataJSON map[string]any

func (m metadataJSON) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(map[string]any(m))
}

func (m *metadataJSON) Scan(value any) error {
	bytes, err := columnBytes(value)
	if err != nil {
		return fmt.Errorf("scan metadata: %w", err)
	}
	if bytes == nil {
		*m = nil
		return nil
	}
	return json.Unmarshal(bytes, (*map[string]any)(m))
}

func columnBytes(value any) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported column type %T", value)
	}
}

// taskRecord is the tasks table row. State is denormalized from Status for
// querying. The associations exist for their foreign keys: deleting a task
// cascades to its history and artifacts.
type taskRecord struct {
	ID        string           `gorm:"primaryKey;size:64"`
	ContextID string           `gorm:"size:64;not null;index"`
	State     string           `gorm:"size:32;not null;index"`
	Status    statusJSON       `gorm:"type:json;not null"`
	Metadata  metadataJSON     `gorm:"type:json"`
	Messages  []messageRecord  `gorm:"foreignKey:TaskID;references:ID;constraint:OnDelete:CASCADE"`
	Artifacts []artifactRecord `gorm:"foreignKey:TaskID;references:ID;constraint:OnDelete:CASCADE"`
}

func (taskRecord) TableName() string { return "tasks" }

func (r *taskRecord) toTask() *a2a.Task {
	return &a2a.Task{
		ID:        r.ID,
		ContextID: r.ContextID,
		Kind:      a2a.KindTask,
		Status:    r.Status.TaskStatus,
		Metadata:  r.Metadata,
	}
}

func newTaskRecord(task *a2a.Task) *taskRecord {
	return &taskRecord{
		ID:        task.ID,
		ContextID: task.ContextID,
		State:     string(task.Status.State),
		Status:    statusJSON{task.Status},
		Metadata:  metadataJSON(task.Metadata),
	}
}

// messageRecord is the task_messages table row. The per-task sequence
// orders the history; a resent message keeps its original sequence.
type messageRecord struct {
	TaskID    string      `gorm:"primaryKey;size:64"`
	MessageID string      `gorm:"primaryKey;size:64"`
	Sequence  int64       `gorm:"not null;index:idx_messages_sequence"`
	Payload   messageJSON `gorm:"type:json;not null"`
}

func (messageRecord) TableName() string { return "task_messages" }

// artifactRecord is the artifacts table row.
type artifactRecord struct {
	ArtifactID string       `gorm:"primaryKey;size:64"`
	TaskID     string       `gorm:"size:64;not null;index"`
	Payload    artifactJSON `gorm:"type:json;not null"`
}

func (artifactRecord) TableName() string { return "artifacts" }
