package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nyuta01/agenthub/internal/domain"
	"github.com/nyuta01/agenthub/internal/domain/a2a"
	"github.com/nyuta01/agenthub/internal/port/storage"
)

// Store implements storage.Store using PostgreSQL. The task envelope,
// message payloads, and artifacts are stored as JSONB; the task state is
// denormalized into its own column for querying.
type Store struct {
	pool *pgxpool.Pool
}

var _ storage.Store = (*Store)(nil)

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const insertMessage = `
	INSERT INTO task_messages (task_id, message_id, sequence, payload)
	VALUES ($1, $2,
		(SELECT COALESCE(MAX(sequence), 0) + 1 FROM task_messages WHERE task_id = $1),
		$3)
	ON CONFLICT (task_id, message_id) DO UPDATE SET payload = EXCLUDED.payload`

// SaveTask upserts a task by ID.
func (s *Store) SaveTask(ctx context.Context, task *a2a.Task) error {
	statusJSON, err := json.Marshal(task.Status)
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	metadataJSON, err := marshalJSONB(task.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO tasks (id, context_id, state, status, metadata)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE
		 SET context_id = EXCLUDED.context_id, state = EXCLUDED.state,
		     status = EXCLUDED.status, metadata = EXCLUDED.metadata,
		     updated_at = now()`,
		task.ID, task.ContextID, string(task.Status.State), statusJSON, metadataJSON)
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
// message, if any, to the history. Both writes happen in one transaction.
func (s *Store) UpdateTaskStatus(ctx context.Context, id string, status a2a.TaskStatus) error {
	statusJSON, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("update status %s: %w", id, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		`UPDATE tasks SET state = $2, status = $3, updated_at = now() WHERE id = $1`,
		id, string(status.State), statusJSON)
	if err != nil {
		return fmt.Errorf("update status %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update status %s: %w", id, domain.ErrTaskNotFound)
	}

	if status.Message != nil {
		payload, err := json.Marshal(status.Message)
		if err != nil {
			return fmt.Errorf("marshal status message: %w", err)
		}
		if _, err := tx.Exec(ctx, insertMessage, id, status.Message.MessageID, payload); err != nil {
			return fmt.Errorf("append status message %s: %w", id, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("update status %s: %w", id, err)
	}
	return nil
}

// SaveMessage appends to the task's message sequence, or upserts by
// messageId keeping the original sequence.
func (s *Store) SaveMessage(ctx context.Context, taskID string, msg *a2a.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if _, err := s.pool.Exec(ctx, insertMessage, taskID, msg.MessageID, payload); err != nil {
		return fmt.Errorf("save message %s/%s: %w", taskID, msg.MessageID, err)
	}
	return nil
}

// GetMessages returns the task's messages ordered by sequence.
func (s *Store) GetMessages(ctx context.Context, taskID string) ([]a2a.Message, error) {
	return s.messages(ctx, s.pool, taskID)
}

// UpdateArtifact upserts an artifact by artifactId.
func (s *Store) UpdateArtifact(ctx context.Context, artifact *a2a.Artifact) error {
	payload, err := json.Marshal(artifact)
	if err != nil {
		return fmt.Errorf("marshal artifact: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO artifacts (artifact_id, task_id, payload)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (artifact_id) DO UPDATE
		 SET task_id = EXCLUDED.task_id, payload = EXCLUDED.payload, updated_at = now()`,
		artifact.ArtifactID, artifact.TaskID, payload)
	if err != nil {
		return fmt.Errorf("update artifact %s: %w", artifact.ArtifactID, err)
	}
	return nil
}

// GetArtifact returns the artifact or domain.ErrArtifactNotFound.
func (s *Store) GetArtifact(ctx context.Context, artifactID string) (*a2a.Artifact, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT payload FROM artifacts WHERE artifact_id = $1`, artifactID)

	artifact, err := scanArtifact(row)
	if err != nil {
		return nil, notFoundWrap(err, domain.ErrArtifactNotFound, "get artifact %s", artifactID)
	}
	return artifact, nil
}

// GetTaskArtifacts returns all artifacts owned by the task.
func (s *Store) GetTaskArtifacts(ctx context.Context, taskID string) ([]a2a.Artifact, error) {
	return s.artifacts(ctx, s.pool, taskID)
}

// GetTaskWithHistory returns the composite snapshot, read inside one
// repeatable-read transaction so the task, history, and artifacts are
// mutually consistent.
func (s *Store) GetTaskWithHistory(ctx context.Context, taskID string) (*storage.TaskWithHistory, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", taskID, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx,
		`SELECT id, context_id, status, metadata FROM tasks WHERE id = $1`, taskID)
	task, err := scanTask(row)
	if err != nil {
		return nil, notFoundWrap(err, domain.ErrTaskNotFound, "get task %s", taskID)
	}

	messages, err := s.messages(ctx, tx, taskID)
	if err != nil {
		return nil, err
	}
	artifacts, err := s.artifacts(ctx, tx, taskID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("get task %s: %w", taskID, err)
	}

	task.History = messages
	task.Artifacts = artifacts
	return &storage.TaskWithHistory{Task: task, Messages: messages, Artifacts: artifacts}, nil
}

// querier abstracts pgxpool.Pool and pgx.Tx for shared reads.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (s *Store) messages(ctx context.Context, q querier, taskID string) ([]a2a.Message, error) {
	rows, err := q.Query(ctx,
		`SELECT payload FROM task_messages WHERE task_id = $1 ORDER BY sequence`, taskID)
	if err != nil {
		return nil, fmt.Errorf("get messages %s: %w", taskID, err)
	}
	defer rows.Close()

	var msgs []a2a.Message
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		var msg a2a.Message
		if err := json.Unmarshal(payload, &msg); err != nil {
			return nil, fmt.Errorf("unmarshal message: %w", err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

func (s *Store) artifacts(ctx context.Context, q querier, taskID string) ([]a2a.Artifact, error) {
	rows, err := q.Query(ctx,
		`SELECT payload FROM artifacts WHERE task_id = $1 ORDER BY artifact_id`, taskID)
	if err != nil {
		return nil, fmt.Errorf("get artifacts %s: %w", taskID, err)
	}
	defer rows.Close()

	var arts []a2a.Artifact
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		var art a2a.Artifact
		if err := json.Unmarshal(payload, &art); err != nil {
			return nil, fmt.Errorf("unmarshal artifact: %w", err)
		}
		arts = append(arts, art)
	}
	return arts, rows.Err()
}

func scanTask(row scannable) (*a2a.Task, error) {
	var (
		task         a2a.Task
		statusJSON   []byte
		metadataJSON []byte
	)
	if err := row.Scan(&task.ID, &task.ContextID, &statusJSON, &metadataJSON); err != nil {
		return nil, err
	}
	task.Kind = a2a.KindTask
	if err := json.Unmarshal(statusJSON, &task.Status); err != nil {
		return nil, fmt.Errorf("unmarshal status: %w", err)
	}
	if metadataJSON != nil {
		if err := json.Unmarshal(metadataJSON, &task.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return &task, nil
}

func scanArtifact(row scannable) (*a2a.Artifact, error) {
	var payload []byte
	if err := row.Scan(&payload); err != nil {
		return nil, err
	}
	var art a2a.Artifact
	if err := json.Unmarshal(payload, &art); err != nil {
		return nil, fmt.Errorf("unmarshal artifact: %w", err)
	}
	return &art, nil
}
