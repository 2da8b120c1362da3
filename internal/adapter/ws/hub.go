// Package ws exposes a WebSocket firehose of task events. Every event the
// server fans out is mirrored to all connected firehose clients, which is
// useful for dashboards that watch the whole deployment rather than a
// single task.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
)

// Frame is the envelope written to firehose clients. Type carries the event
// kind (a2a.EventKindStatusUpdate or a2a.EventKindArtifactUpdate) and
// Payload the event body verbatim.
type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// client is one attached firehose consumer. Clients only receive; anything
// they send is read and discarded so pings and close frames are handled.
type client struct {
	sock *websocket.Conn
}

// Hub tracks attached firehose clients and fans frames out to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
	}
}

// HandleWS upgrades the request to a WebSocket, attaches it to the hub, and
// blocks until the client disconnects. Returning earlier would let net/http
// cancel the request context while the connection is still attached.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	sock, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // CORS handled by middleware
	})
	if err != nil {
		slog.Error("websocket accept failed", "error", err)
		return
	}

	c := &client{sock: sock}
	h.attach(c)
	defer h.detach(c)

	slog.Info("firehose client connected", "remote", r.RemoteAddr)

	// Inbound traffic is drained until the peer goes away.
	for {
		if _, _, err := sock.Read(r.Context()); err != nil {
			return
		}
	}
}

// Broadcast writes the frame to every attached client. A client whose write
// fails is detached; its read loop observes the closed socket and exits.
func (h *Hub) Broadcast(ctx context.Context, frame Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		slog.Error("websocket marshal failed", "error", err)
		return
	}

	h.mu.RLock()
	stale := []*client(nil)
	for c := range h.clients {
		if err := c.sock.Write(ctx, websocket.MessageText, data); err != nil {
			slog.Debug("websocket write failed", "error", err)
			stale = append(stale, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range stale {
		h.detach(c)
	}
}

// ConnectionCount returns the number of attached clients.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) attach(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *Hub) detach(c *client) {
	h.mu.Lock()
	_, attached := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()

	if attached {
		_ = c.sock.Close(websocket.StatusNormalClosure, "")
		slog.Info("firehose client disconnected")
	}
}
