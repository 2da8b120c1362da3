package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"github.com/nyuta01/agenthub/internal/domain"
	"github.com/nyuta01/agenthub/internal/domain/a2a"
	"github.com/nyuta01/agenthub/internal/service"
)

// JSON-RPC 2.0 error codes. The -320xx range carries protocol-specific
// failures alongside the standard codes.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603
	codeTaskNotFound   = -32001
	codeNoExecutor     = -32002
	codeStorageError   = -32003
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// HandleRPC serves the JSON-RPC endpoint. Protocol errors come back as
// JSON-RPC error envelopes with HTTP 200; only a body that fails to parse as
// JSON is a transport-level 400, and even then the body carries the -32700
// envelope.
func (h *Handlers) HandleRPC(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	r.Body = http.MaxBytesReader(w, r.Body, h.bodyLimit)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRPC(w, http.StatusBadRequest, rpcResponse{
			JSONRPC: "2.0",
			ID:      json.RawMessage("null"),
			Error:   &rpcError{Code: codeParseError, Message: "parse error"},
		})
		return
	}
	if req.ID == nil {
		req.ID = json.RawMessage("null")
	}
	if req.JSONRPC != "2.0" {
		h.writeRPCError(w, req.ID, codeInvalidRequest, "jsonrpc must be \"2.0\"", nil)
		return
	}

	switch req.Method {
	case "message/send":
		h.rpcMessageSend(w, r, req)
	case "tasks/get":
		h.rpcTasksGet(w, r, req)
	case "tasks/cancel":
		h.rpcTasksCancel(w, r, req)
	case "tasks/setPushNotificationConfig", "tasks/getPushNotificationConfig":
		h.writeRPCError(w, req.ID, codeMethodNotFound, "push notification configs are not supported", nil)
	default:
		h.writeRPCError(w, req.ID, codeMethodNotFound, "method not found: "+req.Method, nil)
	}
}

type messageSendParams struct {
	Message *a2a.Message `json:"message"`
	Context *struct {
		TaskID    string `json:"taskId"`
		ContextID string `json:"contextId"`
	} `json:"context"`
}

type messageSendResult struct {
	Task      *a2a.Task `json:"task"`
	StreamURL string    `json:"streamUrl"`
}

// rpcMessageSend accepts a message, resolves its executor, and kicks off the
// execution in the background. The response is a snapshot of the freshly
// submitted task; callers observe further progress via tasks/get or the
// stream URL.
func (h *Handlers) rpcMessageSend(w http.ResponseWriter, r *http.Request, req rpcRequest) {
	var params messageSendParams
	if err := json.Unmarshal(req.Params, &params); err != nil || params.Message == nil {
		h.writeRPCError(w, req.ID, codeInvalidParams, "params.message is required", nil)
		return
	}
	msg := params.Message
	if verr := msg.Validate(); verr != nil {
		h.writeRPCError(w, req.ID, codeInvalidParams, verr.Error(), verr)
		return
	}

	if _, ok := h.registry.Resolve(msg.Extensions); !ok {
		h.writeRPCError(w, req.ID, codeNoExecutor, "No executor found for extensions", msg.Extensions)
		return
	}

	taskID := msg.TaskID
	contextID := msg.ContextID
	if params.Context != nil {
		if params.Context.TaskID != "" {
			taskID = params.Context.TaskID
		}
		if params.Context.ContextID != "" {
			contextID = params.Context.ContextID
		}
	}
	if taskID == "" {
		taskID = uuid.NewString()
	}
	if contextID == "" {
		contextID = uuid.NewString()
	}

	// The execution outlives this request. Detach from the request context
	// so a client that only wanted the snapshot does not cancel the work.
	go h.runExecution(context.WithoutCancel(r.Context()), msg, taskID, contextID)

	snapshot := a2a.NewTask(taskID, contextID, msg)
	snapshot.History = []a2a.Message{*msg}

	h.writeRPCResult(w, req.ID, messageSendResult{
		Task:      snapshot,
		StreamURL: "/events?taskId=" + url.QueryEscape(taskID) + "&contextId=" + url.QueryEscape(contextID),
	})
}

// runExecution drives the dispatcher and, on failure, records a failed
// status so the task does not sit in submitted forever.
func (h *Handlers) runExecution(ctx context.Context, msg *a2a.Message, taskID, contextID string) {
	_, err := h.dispatcher.Execute(ctx, msg, service.ExecuteOptions{TaskID: taskID, ContextID: contextID})
	if err == nil {
		return
	}
	slog.Error("execution failed", "task_id", taskID, "context_id", contextID, "error", err)

	failure := &a2a.Message{
		Kind:      a2a.KindMessage,
		MessageID: uuid.NewString(),
		Role:      a2a.RoleAgent,
		TaskID:    taskID,
		ContextID: contextID,
		Parts:     []a2a.Part{a2a.NewTextPart(err.Error())},
	}
	status := a2a.TaskStatus{State: a2a.StateFailed, Message: failure}
	if uerr := h.lifecycle().UpdateStatus(ctx, taskID, contextID, status); uerr != nil {
		slog.Error("failed to record task failure", "task_id", taskID, "error", uerr)
	}
}

type tasksGetParams struct {
	TaskID string `json:"taskId"`
}

type taskResult struct {
	Task *a2a.Task `json:"task"`
}

func (h *Handlers) rpcTasksGet(w http.ResponseWriter, r *http.Request, req rpcRequest) {
	var params tasksGetParams
	if err := json.Unmarshal(req.Params, &params); err != nil || params.TaskID == "" {
		h.writeRPCError(w, req.ID, codeInvalidParams, "params.taskId is required", nil)
		return
	}

	task, err := h.lifecycle().GetTask(r.Context(), params.TaskID)
	if err != nil {
		h.writeRPCDomainError(w, req.ID, err)
		return
	}
	h.writeRPCResult(w, req.ID, taskResult{Task: task})
}

type tasksCancelParams struct {
	TaskID    string `json:"taskId"`
	ContextID string `json:"contextId"`
	Reason    string `json:"reason"`
}

func (h *Handlers) rpcTasksCancel(w http.ResponseWriter, r *http.Request, req rpcRequest) {
	var params tasksCancelParams
	if err := json.Unmarshal(req.Params, &params); err != nil || params.TaskID == "" || params.ContextID == "" {
		h.writeRPCError(w, req.ID, codeInvalidParams, "params.taskId and params.contextId are required", nil)
		return
	}

	if _, err := h.lifecycle().GetTask(r.Context(), params.TaskID); err != nil {
		h.writeRPCDomainError(w, req.ID, err)
		return
	}

	var reason *a2a.Message
	if params.Reason != "" {
		reason = &a2a.Message{
			Kind:      a2a.KindMessage,
			MessageID: uuid.NewString(),
			Role:      a2a.RoleAgent,
			TaskID:    params.TaskID,
			ContextID: params.ContextID,
			Parts:     []a2a.Part{a2a.NewTextPart(params.Reason)},
		}
	}
	if err := h.lifecycle().CancelTask(r.Context(), params.TaskID, params.ContextID, reason); err != nil {
		h.writeRPCDomainError(w, req.ID, err)
		return
	}

	task, err := h.lifecycle().GetTask(r.Context(), params.TaskID)
	if err != nil {
		h.writeRPCDomainError(w, req.ID, err)
		return
	}
	h.writeRPCResult(w, req.ID, taskResult{Task: task})
}

func (h *Handlers) writeRPCResult(w http.ResponseWriter, id json.RawMessage, result any) {
	writeRPC(w, http.StatusOK, rpcResponse{JSONRPC: "2.0", ID: id, Result: result})
}

func (h *Handlers) writeRPCError(w http.ResponseWriter, id json.RawMessage, code int, message string, data any) {
	writeRPC(w, http.StatusOK, rpcResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &rpcError{Code: code, Message: message, Data: data},
	})
}

// writeRPCDomainError maps domain sentinels onto the protocol error codes.
func (h *Handlers) writeRPCDomainError(w http.ResponseWriter, id json.RawMessage, err error) {
	switch {
	case errors.Is(err, domain.ErrTaskNotFound):
		h.writeRPCError(w, id, codeTaskNotFound, "task not found", nil)
	case errors.Is(err, domain.ErrNoExecutor):
		h.writeRPCError(w, id, codeNoExecutor, "No executor found for extensions", nil)
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrMissingIdentifiers):
		h.writeRPCError(w, id, codeInvalidParams, err.Error(), nil)
	case errors.Is(err, domain.ErrStorage):
		h.writeRPCError(w, id, codeStorageError, "storage error", nil)
	default:
		slog.Error("rpc request failed", "error", err)
		h.writeRPCError(w, id, codeInternalError, "internal error", nil)
	}
}

func writeRPC(w http.ResponseWriter, status int, resp rpcResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to write JSON-RPC response", "error", err)
	}
}
