// Package remote provides an HTTP client for driving a task's lifecycle on
// an agenthub server from another process. Out-of-process executors use it
// the same way in-process executors use the task context: update status,
// append messages, upsert artifacts.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/nyuta01/agenthub/internal/domain/a2a"
	"github.com/nyuta01/agenthub/internal/resilience"
)

// Client talks to the server's task lifecycle API.
type Client struct {
	baseURL    string
	contextID  string
	httpClient *http.Client
	breaker    *resilience.Breaker
}

// NewClient creates a lifecycle client. contextID scopes every call; the
// server rejects lifecycle writes without it.
func NewClient(baseURL, contextID string) *Client {
	return &Client{
		baseURL:   baseURL,
		contextID: contextID,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// SetBreaker attaches a circuit breaker to all outgoing HTTP calls.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b
}

// UpdateStatus replaces the task's status.
func (c *Client) UpdateStatus(ctx context.Context, taskID string, status a2a.TaskStatus) error {
	body, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	if _, err := c.doRequest(ctx, http.MethodPost, "/tasks/"+url.PathEscape(taskID)+"/status", body); err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return nil
}

// UpdateMessage appends a message to the task's history.
func (c *Client) UpdateMessage(ctx context.Context, taskID string, msg *a2a.Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if _, err := c.doRequest(ctx, http.MethodPost, "/tasks/"+url.PathEscape(taskID)+"/messages", body); err != nil {
		return fmt.Errorf("update message: %w", err)
	}
	return nil
}

// UpdateArtifact upserts an artifact on the task.
func (c *Client) UpdateArtifact(ctx context.Context, taskID string, artifact *a2a.Artifact) error {
	body, err := json.Marshal(artifact)
	if err != nil {
		return fmt.Errorf("marshal artifact: %w", err)
	}
	if _, err := c.doRequest(ctx, http.MethodPost, "/tasks/"+url.PathEscape(taskID)+"/artifacts", body); err != nil {
		return fmt.Errorf("update artifact: %w", err)
	}
	return nil
}

// GetTask fetches the task with its history and artifacts.
func (c *Client) GetTask(ctx context.Context, taskID string) (*a2a.Task, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/tasks/"+url.PathEscape(taskID), nil)
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	var task a2a.Task
	if err := json.Unmarshal(resp, &task); err != nil {
		return nil, fmt.Errorf("unmarshal task: %w", err)
	}
	return &task, nil
}

// Health checks whether the server is reachable.
func (c *Client) Health(ctx context.Context) (bool, error) {
	_, err := c.doRequest(ctx, http.MethodGet, "/healthz", nil)
	return err == nil, err
}

func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var result []byte
	call := func() error {
		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}

		target := c.baseURL + path
		if c.contextID != "" {
			target += "?contextId=" + url.QueryEscape(c.contextID)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("http request: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode >= 400 {
			return fmt.Errorf("server error %d: %s", resp.StatusCode, string(data))
		}

		result = data
		return nil
	}

	if c.breaker != nil {
		if err := c.breaker.Do(call); err != nil {
			return nil, err
		}
		return result, nil
	}

	if err := call(); err != nil {
		return nil, err
	}
	return result, nil
}
