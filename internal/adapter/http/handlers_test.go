package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	hubhttp "github.com/nyuta01/agenthub/internal/adapter/http"
	"github.com/nyuta01/agenthub/internal/adapter/memory"
	"github.com/nyuta01/agenthub/internal/adapter/stream"
	"github.com/nyuta01/agenthub/internal/config"
	"github.com/nyuta01/agenthub/internal/domain/a2a"
	"github.com/nyuta01/agenthub/internal/port/storage"
	"github.com/nyuta01/agenthub/internal/service"
)

func newTestServer(t *testing.T, executors ...service.Executor) (*httptest.Server, storage.Store) {
	t.Helper()

	store := memory.NewStore()
	channel := stream.NewChannel(stream.WithSnapshots(store))
	lifecycle := service.NewLifecycle(store, channel)
	registry := service.NewRegistry()
	for _, e := range executors {
		registry.Register(e)
	}
	dispatcher := service.NewDispatcher(registry, store, lifecycle, nil)

	agent := config.Agent{Name: "agenthub", Description: "task execution agent", Version: "0.1.0"}
	h := hubhttp.NewHandlers(dispatcher, registry, channel, agent, 1<<20)

	r := chi.NewRouter()
	hubhttp.MountRoutes(r, h)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, store
}

func seedTask(t *testing.T, store storage.Store, taskID, contextID string) *a2a.Task {
	t.Helper()

	msg := &a2a.Message{
		Kind:      a2a.KindMessage,
		MessageID: "msg-1",
		Role:      a2a.RoleUser,
		Parts:     []a2a.Part{a2a.NewTextPart("do the thing")},
		TaskID:    taskID,
		ContextID: contextID,
	}
	task := a2a.NewTask(taskID, contextID, msg)
	if err := store.SaveTask(context.Background(), task); err != nil {
		t.Fatalf("SaveTask: %v", err)
	}
	if err := store.SaveMessage(context.Background(), taskID, msg); err != nil {
		t.Fatalf("SaveMessage: %v", err)
	}
	return task
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()

	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestAgentCard(t *testing.T) {
	srv, _ := newTestServer(t, service.Executor{
		Extension: "urn:example:echo",
		Execute: func(_ context.Context, _ map[string]any, _ *service.TaskContext) (any, error) {
			return nil, nil
		},
	})

	resp, err := http.Get(srv.URL + "/.well-known/agent.json")
	if err != nil {
		t.Fatalf("GET agent card: %v", err)
	}
	defer resp.Body.Close()

	card := decodeBody[hubhttp.AgentCard](t, resp)
	if card.Name != "agenthub" {
		t.Errorf("expected name agenthub, got %q", card.Name)
	}
	if len(card.Extensions) != 1 || card.Extensions[0] != "urn:example:echo" {
		t.Errorf("unexpected extensions: %v", card.Extensions)
	}
	if len(card.Skills) != 1 || card.Skills[0].ID != "urn:example:echo" {
		t.Errorf("unexpected skills: %v", card.Skills)
	}
	if !card.Capabilities.Streaming {
		t.Error("expected streaming capability")
	}
}

func TestGetTaskRequiresContextID(t *testing.T) {
	srv, store := newTestServer(t)
	seedTask(t, store, "task-1", "ctx-1")

	resp, err := http.Get(srv.URL + "/tasks/task-1")
	if err != nil {
		t.Fatalf("GET task: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without contextId, got %d", resp.StatusCode)
	}
}

func TestGetTaskNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/tasks/missing?contextId=ctx-1")
	if err != nil {
		t.Fatalf("GET task: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestGetTaskMergesHistoryAndArtifacts(t *testing.T) {
	srv, store := newTestServer(t)
	seedTask(t, store, "task-1", "ctx-1")

	artifact := &a2a.Artifact{
		ArtifactID: "artifact-1",
		TaskID:     "task-1",
		Parts:      []a2a.Part{a2a.NewTextPart("result")},
	}
	if err := store.UpdateArtifact(context.Background(), artifact); err != nil {
		t.Fatalf("UpdateArtifact: %v", err)
	}

	resp, err := http.Get(srv.URL + "/tasks/task-1?contextId=ctx-1")
	if err != nil {
		t.Fatalf("GET task: %v", err)
	}
	defer resp.Body.Close()

	task := decodeBody[a2a.Task](t, resp)
	if len(task.History) != 1 {
		t.Errorf("expected 1 history message, got %d", len(task.History))
	}
	if len(task.Artifacts) != 1 || task.Artifacts[0].ArtifactID != "artifact-1" {
		t.Errorf("unexpected artifacts: %v", task.Artifacts)
	}
}

func TestUpdateStatusRequiresContextID(t *testing.T) {
	srv, store := newTestServer(t)
	seedTask(t, store, "task-1", "ctx-1")

	resp := postJSON(t, srv.URL+"/tasks/task-1/status", a2a.TaskStatus{State: a2a.StateWorking})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestUpdateStatusUnknownTask(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/tasks/missing/status?contextId=ctx-1", a2a.TaskStatus{State: a2a.StateWorking})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestUpdateStatusThenReadback(t *testing.T) {
	srv, store := newTestServer(t)
	seedTask(t, store, "task-1", "ctx-1")

	resp := postJSON(t, srv.URL+"/tasks/task-1/status?contextId=ctx-1", a2a.TaskStatus{State: a2a.StateWorking})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	get, err := http.Get(srv.URL + "/tasks/task-1?contextId=ctx-1")
	if err != nil {
		t.Fatalf("GET task: %v", err)
	}
	defer get.Body.Close()

	task := decodeBody[a2a.Task](t, get)
	if task.Status.State != a2a.StateWorking {
		t.Errorf("expected working, got %s", task.Status.State)
	}
}

func TestUpdateStatusRejectsInvalidState(t *testing.T) {
	srv, store := newTestServer(t)
	seedTask(t, store, "task-1", "ctx-1")

	resp := postJSON(t, srv.URL+"/tasks/task-1/status?contextId=ctx-1", a2a.TaskStatus{State: "exploded"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestAppendMessageDoesNotAutoCreate(t *testing.T) {
	srv, _ := newTestServer(t)

	msg := a2a.Message{
		Kind:      a2a.KindMessage,
		MessageID: "msg-9",
		Role:      a2a.RoleAgent,
		Parts:     []a2a.Part{a2a.NewTextPart("progress")},
	}
	resp := postJSON(t, srv.URL+"/tasks/missing/messages?contextId=ctx-1", msg)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestAppendMessage(t *testing.T) {
	srv, store := newTestServer(t)
	seedTask(t, store, "task-1", "ctx-1")

	msg := a2a.Message{
		Kind:      a2a.KindMessage,
		MessageID: "msg-2",
		Role:      a2a.RoleAgent,
		Parts:     []a2a.Part{a2a.NewTextPart("halfway there")},
	}
	resp := postJSON(t, srv.URL+"/tasks/task-1/messages?contextId=ctx-1", msg)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	get, err := http.Get(srv.URL + "/tasks/task-1?contextId=ctx-1")
	if err != nil {
		t.Fatalf("GET task: %v", err)
	}
	defer get.Body.Close()

	task := decodeBody[a2a.Task](t, get)
	if len(task.History) != 2 {
		t.Fatalf("expected 2 history messages, got %d", len(task.History))
	}
	if task.History[1].MessageID != "msg-2" {
		t.Errorf("expected msg-2 last, got %s", task.History[1].MessageID)
	}
}

func TestUpsertArtifact(t *testing.T) {
	srv, store := newTestServer(t)
	seedTask(t, store, "task-1", "ctx-1")

	artifact := a2a.Artifact{
		ArtifactID: "artifact-1",
		Parts:      []a2a.Part{a2a.NewTextPart("v1")},
	}
	resp := postJSON(t, srv.URL+"/tasks/task-1/artifacts?contextId=ctx-1", artifact)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	// Same artifactId replaces, not duplicates.
	artifact.Parts = []a2a.Part{a2a.NewTextPart("v2")}
	resp = postJSON(t, srv.URL+"/tasks/task-1/artifacts?contextId=ctx-1", artifact)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on upsert, got %d", resp.StatusCode)
	}

	get, err := http.Get(srv.URL + "/tasks/task-1?contextId=ctx-1")
	if err != nil {
		t.Fatalf("GET task: %v", err)
	}
	defer get.Body.Close()

	task := decodeBody[a2a.Task](t, get)
	if len(task.Artifacts) != 1 {
		t.Fatalf("expected 1 artifact, got %d", len(task.Artifacts))
	}
	if got := task.Artifacts[0].Parts[0].Text; got != "v2" {
		t.Errorf("expected replaced artifact text v2, got %q", got)
	}
}

// waitForState polls the REST endpoint until the task reaches the wanted
// state or the deadline passes.
func waitForState(t *testing.T, baseURL, taskID, contextID string, want a2a.TaskState) *a2a.Task {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(baseURL + "/tasks/" + taskID + "?contextId=" + contextID)
		if err != nil {
			t.Fatalf("GET task: %v", err)
		}
		if resp.StatusCode == http.StatusOK {
			var task a2a.Task
			if err := json.NewDecoder(resp.Body).Decode(&task); err != nil {
				resp.Body.Close()
				t.Fatalf("decode task: %v", err)
			}
			resp.Body.Close()
			if task.Status.State == want {
				return &task
			}
		} else {
			resp.Body.Close()
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("task %s never reached state %s", taskID, want)
	return nil
}
