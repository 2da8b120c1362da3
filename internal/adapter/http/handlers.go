package http

import (
	"net/http"

	"github.com/nyuta01/agenthub/internal/config"
	"github.com/nyuta01/agenthub/internal/domain/a2a"
	"github.com/nyuta01/agenthub/internal/port/eventchannel"
	"github.com/nyuta01/agenthub/internal/service"
)

// Handlers bundles the dependencies shared by all HTTP handlers.
type Handlers struct {
	dispatcher *service.Dispatcher
	registry   *service.Registry
	channel    eventchannel.Channel
	agent      config.Agent
	bodyLimit  int64
}

// NewHandlers creates the handler set. bodyLimit caps request body sizes in
// bytes.
func NewHandlers(dispatcher *service.Dispatcher, registry *service.Registry, channel eventchannel.Channel, agent config.Agent, bodyLimit int64) *Handlers {
	return &Handlers{
		dispatcher: dispatcher,
		registry:   registry,
		channel:    channel,
		agent:      agent,
		bodyLimit:  bodyLimit,
	}
}

func (h *Handlers) lifecycle() *service.Lifecycle {
	return h.dispatcher.Lifecycle()
}

// Health reports liveness.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// AgentCard serves the discovery document at /.well-known/agent.json.
func (h *Handlers) AgentCard(w http.ResponseWriter, r *http.Request) {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	card := BuildAgentCard(h.agent, scheme+"://"+r.Host, h.registry.Extensions())
	writeJSON(w, http.StatusOK, card)
}

// ---------------------------------------------------------------------------
// Task lifecycle sub-API
//
// Out-of-process collaborators (workflow orchestrators holding a suspended
// task's identifiers) push updates here without going through message/send.
// None of these routes auto-create tasks: an unknown taskId is a 404.
// ---------------------------------------------------------------------------

// GetTask returns the task with its history and artifacts merged in.
func (h *Handlers) GetTask(w http.ResponseWriter, r *http.Request) {
	taskID := urlParam(r, "taskID")
	contextID := r.URL.Query().Get("contextId")
	if !requireField(w, contextID, "contextId") {
		return
	}

	task, err := h.lifecycle().GetTask(r.Context(), taskID)
	if err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// UpdateTaskStatus replaces the task's status. The previous status message,
// if any, is preserved in history by the storage layer.
func (h *Handlers) UpdateTaskStatus(w http.ResponseWriter, r *http.Request) {
	taskID := urlParam(r, "taskID")
	contextID := r.URL.Query().Get("contextId")
	if !requireField(w, contextID, "contextId") {
		return
	}

	status, ok := readJSON[a2a.TaskStatus](w, r, h.bodyLimit)
	if !ok {
		return
	}
	if verr := status.Validate(); verr != nil {
		writeError(w, http.StatusBadRequest, verr.Error())
		return
	}

	if err := h.lifecycle().UpdateStatus(r.Context(), taskID, contextID, status); err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"taskId": taskID, "state": string(status.State)})
}

// AppendTaskMessage appends a message to the task's history without a formal
// state transition.
func (h *Handlers) AppendTaskMessage(w http.ResponseWriter, r *http.Request) {
	taskID := urlParam(r, "taskID")
	contextID := r.URL.Query().Get("contextId")
	if !requireField(w, contextID, "contextId") {
		return
	}

	msg, ok := readJSON[a2a.Message](w, r, h.bodyLimit)
	if !ok {
		return
	}
	if verr := msg.Validate(); verr != nil {
		writeError(w, http.StatusBadRequest, verr.Error())
		return
	}

	// SaveMessage upserts without touching the task row, so the existence
	// check has to happen here to keep the no-auto-create contract.
	if _, err := h.lifecycle().GetTask(r.Context(), taskID); err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	if err := h.lifecycle().UpdateMessage(r.Context(), taskID, contextID, &msg); err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"taskId": taskID, "messageId": msg.MessageID})
}

// UpsertTaskArtifact creates or replaces an artifact on the task.
func (h *Handlers) UpsertTaskArtifact(w http.ResponseWriter, r *http.Request) {
	taskID := urlParam(r, "taskID")
	contextID := r.URL.Query().Get("contextId")
	if !requireField(w, contextID, "contextId") {
		return
	}

	artifact, ok := readJSON[a2a.Artifact](w, r, h.bodyLimit)
	if !ok {
		return
	}
	if verr := artifact.Validate(); verr != nil {
		writeError(w, http.StatusBadRequest, verr.Error())
		return
	}

	if _, err := h.lifecycle().GetTask(r.Context(), taskID); err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	if err := h.lifecycle().UpdateArtifact(r.Context(), taskID, contextID, &artifact); err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"taskId": taskID, "artifactId": artifact.ArtifactID})
}
