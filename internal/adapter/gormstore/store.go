package gormstore

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nyuta01/agenthub/internal/domain"
	"github.com/nyuta01/agenthub/internal/domain/a2a"
	"github.com/nyuta01/agenthub/internal/port/storage"
)

// Store implements storage.Store on a GORM database handle.
type Store struct {
	db *gorm.DB
}

var _ storage.Store = (*Store)(nil)

// Open connects with the given dialector, migrates the schema, and returns
// a ready store.
func Open(dialector gorm.Dialector, opts ...gorm.Option) (*Store, error) {
	db, err := gorm.Open(dialector, opts...)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return NewStore(db)
}

// NewStore migrates the schema on an existing handle and wraps it.
func NewStore(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&taskRecord{}, &messageRecord{}, &artifactRecord{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &Store{db: db}, nil
}

// SaveTask upserts a task by ID.
func (s *Store) SaveTask(ctx context.Context, task *a2a.Task) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"context_id", "state", "status", "metadata"}),
		}).
		Create(newTaskRecord(task)).Error
	if err != nil {
		return fmt.Errorf("save task %s: %w", task.ID, err)
	}
	return nil
}

// GetTask returns the task with its current history and artifacts merged in.
func (s *Store) GetTask(ctx context.Context, id string) (*a2a.Task, error) {
	snap, err := s.GetTaskWithHistory(ctx, id)
	if err != nil {
		return nil, err
	}
	return snap.Task, nil
}

// UpdateTaskStatus replaces the task's status and appends the status
// message, if any, to the history.
func (s *Store) UpdateTaskStatus(ctx context.Context, id string, status a2a.TaskStatus) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&taskRecord{}).Where("id = ?", id).Updates(map[string]any{
			"state":  string(status.State),
			"status": statusJSON{status},
		})
		if result.Error != nil {
			return fmt.Errorf("update status %s: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("update status %s: %w", id, domain.ErrTaskNotFound)
		}
		if status.Message != nil {
			if err := appendMessage(tx, id, status.Message); err != nil {
				return fmt.Errorf("append status message %s: %w", id, err)
			}
		}
		return nil
	})
}

// SaveMessage appends to the task's message sequence, or upserts by
// messageId keeping the original sequence.
func (s *Store) SaveMessage(ctx context.Context, taskID string, msg *a2a.Message) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return appendMessage(tx, taskID, msg)
	})
	if err != nil {
		return fmt.Errorf("save message %s/%s: %w", taskID, msg.MessageID, err)
	}
	return nil
}

func appendMessage(tx *gorm.DB, taskID string, msg *a2a.Message) error {
	var existing messageRecord
	err := tx.Where("task_id = ? AND message_id = ?", taskID, msg.MessageID).
		First(&existing).Error
	switch {
	case err == nil:
		// resend keeps its slot
		return tx.Model(&messageRecord{}).
			Where("task_id = ? AND message_id = ?", taskID, msg.MessageID).
			Update("payload", messageJSON{*msg}).Error
	case errors.Is(err, gorm.ErrRecordNotFound):
		var maxSeq int64
		if err := tx.Model(&messageRecord{}).
			Where("task_id = ?", taskID).
			Select("COALESCE(MAX(sequence), 0)").
			Scan(&maxSeq).Error; err != nil {
			return err
		}
		return tx.Create(&messageRecord{
			TaskID:    taskID,
			MessageID: msg.MessageID,
			Sequence:  maxSeq + 1,
			Payload:   messageJSON{*msg},
		}).Error
	default:
		return err
	}
}

// GetMessages returns the task's messages ordered by sequence.
func (s *Store) GetMessages(ctx context.Context, taskID string) ([]a2a.Message, error) {
	return messages(s.db.WithContext(ctx), taskID)
}

func messages(tx *gorm.DB, taskID string) ([]a2a.Message, error) {
	var records []messageRecord
	if err := tx.Where("task_id = ?", taskID).Order("sequence").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("get messages %s: %w", taskID, err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	msgs := make([]a2a.Message, len(records))
	for i, r := range records {
		msgs[i] = r.Payload.Message
	}
	return msgs, nil
}

// UpdateArtifact upserts an artifact by artifactId.
func (s *Store) UpdateArtifact(ctx context.Context, artifact *a2a.Artifact) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "artifact_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"task_id", "payload"}),
		}).
		Create(&artifactRecord{
			ArtifactID: artifact.ArtifactID,
			TaskID:     artifact.TaskID,
			Payload:    artifactJSON{*artifact},
		}).Error
	if err != nil {
		return fmt.Errorf("update artifact %s: %w", artifact.ArtifactID, err)
	}
	return nil
}

// GetArtifact returns the artifact or domain.ErrArtifactNotFound.
func (s *Store) GetArtifact(ctx context.Context, artifactID string) (*a2a.Artifact, error) {
	var record artifactRecord
	err := s.db.WithContext(ctx).Where("artifact_id = ?", artifactID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("get artifact %s: %w", artifactID, domain.ErrArtifactNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get artifact %s: %w", artifactID, err)
	}
	art := record.Payload.Artifact
	return &art, nil
}

// GetTaskArtifacts returns all artifacts owned by the task.
func (s *Store) GetTaskArtifacts(ctx context.Context, taskID string) ([]a2a.Artifact, error) {
	return artifacts(s.db.WithContext(ctx), taskID)
}

func artifacts(tx *gorm.DB, taskID string) ([]a2a.Artifact, error) {
	var records []artifactRecord
	if err := tx.Where("task_id = ?", taskID).Order("artifact_id").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("get artifacts %s: %w", taskID, err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	arts := make([]a2a.Artifact, len(records))
	for i, r := range records {
		arts[i] = r.Payload.Artifact
	}
	return arts, nil
}

// GetTaskWithHistory returns the composite snapshot, read inside one
// transaction.
func (s *Store) GetTaskWithHistory(ctx context.Context, taskID string) (*storage.TaskWithHistory, error) {
	var snap storage.TaskWithHistory
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record taskRecord
		if err := tx.Where("id = ?", taskID).First(&record).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("get task %s: %w", taskID, domain.ErrTaskNotFound)
			}
			return fmt.Errorf("get task %s: %w", taskID, err)
		}

		msgs, err := messages(tx, taskID)
		if err != nil {
			return err
		}
		arts, err := artifacts(tx, taskID)
		if err != nil {
			return err
		}

		task := record.toTask()
		task.History = msgs
		task.Artifacts = arts
		snap = storage.TaskWithHistory{Task: task, Messages: msgs, Artifacts: arts}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &snap, nil
}
