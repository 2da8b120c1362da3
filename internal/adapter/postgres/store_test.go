package postgres_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nyuta01/agenthub/internal/adapter/postgres"
	"github.com/nyuta01/agenthub/internal/domain"
	"github.com/nyuta01/agenthub/internal/domain/a2a"
)

// setupStore creates a pgxpool connection, runs all migrations, and returns a
// ready-to-use Store. The pool is closed via t.Cleanup.
func setupStore(t *testing.T) *postgres.Store {
	t.Helper()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("requires DATABASE_URL")
	}

	ctx := context.Background()

	if err := postgres.RunMigrations(ctx, dsn); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	t.Cleanup(pool.Close)

	return postgres.NewStore(pool)
}

func newTask(t *testing.T) *a2a.Task {
	t.Helper()
	msg := &a2a.Message{
		Kind:      a2a.KindMessage,
		MessageID: uuid.NewString(),
		Role:      a2a.RoleUser,
		Parts:     []a2a.Part{a2a.NewTextPart("start")},
	}
	return a2a.NewTask(uuid.NewString(), uuid.NewString(), msg)
}

func TestSaveAndGetTask(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	task := newTask(t)
	task.Metadata = map[string]any{"source": "test"}
	if err := store.SaveTask(ctx, task); err != nil {
		t.Fatalf("save task: %v", err)
	}

	got, err := store.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if got.ID != task.ID || got.ContextID != task.ContextID {
		t.Fatalf("identity mismatch: %+v", got)
	}
	if got.Status.State != a2a.StateSubmitted {
		t.Fatalf("state = %s", got.Status.State)
	}
	if got.Metadata["source"] != "test" {
		t.Fatalf("metadata = %v", got.Metadata)
	}
}

func TestGetTaskNotFound(t *testing.T) {
	store := setupStore(t)

	_, err := store.GetTask(context.Background(), uuid.NewString())
	if !errors.Is(err, domain.ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestUpdateTaskStatusAppendsMessage(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	task := newTask(t)
	if err := store.SaveTask(ctx, task); err != nil {
		t.Fatalf("save task: %v", err)
	}

	note := &a2a.Message{
		Kind:      a2a.KindMessage,
		MessageID: uuid.NewString(),
		Role:      a2a.RoleAgent,
		Parts:     []a2a.Part{a2a.NewTextPart("working on it")},
	}
	status := a2a.TaskStatus{State: a2a.StateWorking, Message: note}
	if err := store.UpdateTaskStatus(ctx, task.ID, status); err != nil {
		t.Fatalf("update status: %v", err)
	}

	got, err := store.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if got.Status.State != a2a.StateWorking {
		t.Fatalf("state = %s", got.Status.State)
	}
	if len(got.History) != 1 || got.History[0].MessageID != note.MessageID {
		t.Fatalf("history = %+v", got.History)
	}
}

func TestUpdateTaskStatusNotFound(t *testing.T) {
	store := setupStore(t)

	err := store.UpdateTaskStatus(context.Background(), uuid.NewString(),
		a2a.TaskStatus{State: a2a.StateWorking})
	if !errors.Is(err, domain.ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestMessageSequenceOrdering(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	taskID := uuid.NewString()
	if err := store.SaveTask(ctx, a2a.NewTask(taskID, "ctx1", nil)); err != nil {
		t.Fatalf("save task: %v", err)
	}
	for i := range 5 {
		msg := &a2a.Message{
			Kind:      a2a.KindMessage,
			MessageID: fmt.Sprintf("m%d", i),
			Role:      a2a.RoleUser,
			Parts:     []a2a.Part{a2a.NewTextPart(fmt.Sprintf("msg %d", i))},
		}
		if err := store.SaveMessage(ctx, taskID, msg); err != nil {
			t.Fatalf("save message %d: %v", i, err)
		}
	}

	msgs, err := store.GetMessages(ctx, taskID)
	if err != nil {
		t.Fatalf("get messages: %v", err)
	}
	if len(msgs) != 5 {
		t.Fatalf("expected 5 messages, got %d", len(msgs))
	}
	for i, msg := range msgs {
		if want := fmt.Sprintf("m%d", i); msg.MessageID != want {
			t.Fatalf("position %d: got %s, want %s", i, msg.MessageID, want)
		}
	}
}

func TestResendKeepsSequence(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	taskID := uuid.NewString()
	if err := store.SaveTask(ctx, a2a.NewTask(taskID, "ctx1", nil)); err != nil {
		t.Fatalf("save task: %v", err)
	}
	first := &a2a.Message{
		Kind: a2a.KindMessage, MessageID: "m0", Role: a2a.RoleUser,
		Parts: []a2a.Part{a2a.NewTextPart("original")},
	}
	second := &a2a.Message{
		Kind: a2a.KindMessage, MessageID: "m1", Role: a2a.RoleUser,
		Parts: []a2a.Part{a2a.NewTextPart("second")},
	}
	_ = store.SaveMessage(ctx, taskID, first)
	_ = store.SaveMessage(ctx, taskID, second)

	resend := &a2a.Message{
		Kind: a2a.KindMessage, MessageID: "m0", Role: a2a.RoleUser,
		Parts: []a2a.Part{a2a.NewTextPart("updated")},
	}
	if err := store.SaveMessage(ctx, taskID, resend); err != nil {
		t.Fatalf("resend: %v", err)
	}

	msgs, err := store.GetMessages(ctx, taskID)
	if err != nil {
		t.Fatalf("get messages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].MessageID != "m0" {
		t.Fatalf("resend lost its slot: %+v", msgs)
	}
	if text, _ := msgs[0].FirstText(); text != "updated" {
		t.Fatalf("payload not updated: %q", text)
	}
}

func TestArtifactUpsert(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	taskID := uuid.NewString()
	if err := store.SaveTask(ctx, a2a.NewTask(taskID, "ctx1", nil)); err != nil {
		t.Fatalf("save task: %v", err)
	}
	art := &a2a.Artifact{
		ArtifactID: uuid.NewString(),
		TaskID:     taskID,
		Name:       "report",
		Parts:      []a2a.Part{a2a.NewTextPart("v1")},
	}
	if err := store.UpdateArtifact(ctx, art); err != nil {
		t.Fatalf("create artifact: %v", err)
	}

	art.Parts = []a2a.Part{a2a.NewTextPart("v2")}
	if err := store.UpdateArtifact(ctx, art); err != nil {
		t.Fatalf("update artifact: %v", err)
	}

	got, err := store.GetArtifact(ctx, art.ArtifactID)
	if err != nil {
		t.Fatalf("get artifact: %v", err)
	}
	if got.Parts[0].Text != "v2" {
		t.Fatalf("expected v2, got %q", got.Parts[0].Text)
	}

	all, err := store.GetTaskArtifacts(ctx, taskID)
	if err != nil {
		t.Fatalf("get task artifacts: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 artifact, got %d", len(all))
	}
}

func TestGetArtifactNotFound(t *testing.T) {
	store := setupStore(t)

	_, err := store.GetArtifact(context.Background(), uuid.NewString())
	if !errors.Is(err, domain.ErrArtifactNotFound) {
		t.Fatalf("expected ErrArtifactNotFound, got %v", err)
	}
}

func TestGetTaskWithHistory(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	task := newTask(t)
	if err := store.SaveTask(ctx, task); err != nil {
		t.Fatalf("save task: %v", err)
	}
	msg := &a2a.Message{
		Kind: a2a.KindMessage, MessageID: uuid.NewString(), Role: a2a.RoleUser,
		Parts: []a2a.Part{a2a.NewTextPart("hello")},
	}
	_ = store.SaveMessage(ctx, task.ID, msg)
	_ = store.UpdateArtifact(ctx, &a2a.Artifact{
		ArtifactID: uuid.NewString(),
		TaskID:     task.ID,
		Parts:      []a2a.Part{a2a.NewTextPart("plan")},
	})

	snap, err := store.GetTaskWithHistory(ctx, task.ID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Task.ID != task.ID || len(snap.Messages) != 1 || len(snap.Artifacts) != 1 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}
