// Package memory implements the storage port with in-process maps. It is
// non-durable and intended for tests and local development.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/nyuta01/agenthub/internal/domain"
	"github.com/nyuta01/agenthub/internal/domain/a2a"
	"github.com/nyuta01/agenthub/internal/port/storage"
)

// sequencedMessage pairs a stored message with its per-task sequence number.
type sequencedMessage struct {
	seq int
	msg a2a.Message
}

// Store implements storage.Store using maps guarded by one RWMutex.
type Store struct {
	mu        sync.RWMutex
	tasks     map[string]*a2a.Task
	messages  map[string]map[string]sequencedMessage // taskID -> messageID -> message
	nextSeq   map[string]int                         // taskID -> next sequence number
	artifacts map[string]*a2a.Artifact               // artifactID -> artifact
}

var _ storage.Store = (*Store)(nil)

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		tasks:     make(map[string]*a2a.Task),
		messages:  make(map[string]map[string]sequencedMessage),
		nextSeq:   make(map[string]int),
		artifacts: make(map[string]*a2a.Artifact),
	}
}

// SaveTask upserts a task by ID.
func (s *Store) SaveTask(_ context.Context, task *a2a.Task) error {
	cp, err := deepCopy(task)
	if err != nil {
		return fmt.Errorf("save task %s: %w", task.ID, err)
	}
	s.mu.Lock()
	s.tasks[task.ID] = cp
	s.mu.Unlock()
	return nil
}

// GetTask returns a copy of the task with its current history and artifacts
// merged in.
func (s *Store) GetTask(_ context.Context, id string) (*a2a.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.taskLocked(id)
}

// taskLocked assembles a task copy. Callers must hold at least a read lock.
func (s *Store) taskLocked(id string) (*a2a.Task, error) {
	stored, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("get task %s: %w", id, domain.ErrTaskNotFound)
	}
	cp, err := deepCopy(stored)
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	cp.History = s.messagesLocked(id)
	cp.Artifacts = s.artifactsLocked(id)
	return cp, nil
}

// UpdateTaskStatus replaces the task's status and appends the status
// message, if any, to the history.
func (s *Store) UpdateTaskStatus(_ context.Context, id string, status a2a.TaskStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("update status %s: %w", id, domain.ErrTaskNotFound)
	}
	task.Status = status
	if status.Message != nil {
		s.appendMessageLocked(id, status.Message)
	}
	return nil
}

// SaveMessage appends to the task's message sequence, or upserts by
// messageId keeping the original sequence.
func (s *Store) SaveMessage(_ context.Context, taskID string, msg *a2a.Message) error {
	s.mu.Lock()
	s.appendMessageLocked(taskID, msg)
	s.mu.Unlock()
	return nil
}

func (s *Store) appendMessageLocked(taskID string, msg *a2a.Message) {
	byID, ok := s.messages[taskID]
	if !ok {
		byID = make(map[string]sequencedMessage)
		s.messages[taskID] = byID
		s.nextSeq[taskID] = 1
	}
	seq := s.nextSeq[taskID]
	if existing, ok := byID[msg.MessageID]; ok {
		seq = existing.seq // resend keeps its slot
	} else {
		s.nextSeq[taskID]++
	}
	byID[msg.MessageID] = sequencedMessage{seq: seq, msg: *msg}
}

// GetMessages returns the task's messages ordered by sequence.
func (s *Store) GetMessages(_ context.Context, taskID string) ([]a2a.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.messagesLocked(taskID), nil
}

func (s *Store) messagesLocked(taskID string) []a2a.Message {
	byID := s.messages[taskID]
	if len(byID) == 0 {
		return nil
	}
	seqs := make([]sequencedMessage, 0, len(byID))
	for _, sm := range byID {
		seqs = append(seqs, sm)
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i].seq < seqs[j].seq })
	msgs := make([]a2a.Message, len(seqs))
	for i, sm := range seqs {
		msgs[i] = sm.msg
	}
	return msgs
}

// UpdateArtifact upserts an artifact by artifactId.
func (s *Store) UpdateArtifact(_ context.Context, artifact *a2a.Artifact) error {
	cp, err := deepCopy(artifact)
	if err != nil {
		return fmt.Errorf("update artifact %s: %w", artifact.ArtifactID, err)
	}
	s.mu.Lock()
	s.artifacts[artifact.ArtifactID] = cp
	s.mu.Unlock()
	return nil
}

// GetArtifact returns the artifact or domain.ErrArtifactNotFound.
func (s *Store) GetArtifact(_ context.Context, artifactID string) (*a2a.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.artifacts[artifactID]
	if !ok {
		return nil, fmt.Errorf("get artifact %s: %w", artifactID, domain.ErrArtifactNotFound)
	}
	return deepCopy(stored)
}

// GetTaskArtifacts returns all artifacts owned by the task.
func (s *Store) GetTaskArtifacts(_ context.Context, taskID string) ([]a2a.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.artifactsLocked(taskID), nil
}

func (s *Store) artifactsLocked(taskID string) []a2a.Artifact {
	var out []a2a.Artifact
	for _, art := range s.artifacts {
		if art.TaskID == taskID {
			out = append(out, *art)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ArtifactID < out[j].ArtifactID })
	return out
}

// GetTaskWithHistory returns the composite snapshot under one lock.
func (s *Store) GetTaskWithHistory(_ context.Context, taskID string) (*storage.TaskWithHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, err := s.taskLocked(taskID)
	if err != nil {
		return nil, err
	}
	return &storage.TaskWithHistory{
		Task:      task,
		Messages:  s.messagesLocked(taskID),
		Artifacts: s.artifactsLocked(taskID),
	}, nil
}

// deepCopy round-trips a value through JSON so callers cannot mutate stored
// state through shared slices and maps.
func deepCopy[T any](v *T) (*T, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
