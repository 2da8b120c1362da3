package http

import (
	"fmt"
	"net/http"
	"sync"
)

// sseSink adapts an SSE connection into an event sink. Writes are
// serialized; the channel backends may deliver from their own goroutines.
type sseSink struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
}

func (s *sseSink) WriteEvent(kind string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", kind, data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// HandleEvents serves the per-task event feed over SSE. The first frame is
// always `connected`, carrying the current task snapshot when storage has
// one; subsequent frames follow live status and artifact updates until the
// client disconnects.
func (h *Handlers) HandleEvents(w http.ResponseWriter, r *http.Request) {
	taskID := r.URL.Query().Get("taskId")
	contextID := r.URL.Query().Get("contextId")
	if !requireField(w, taskID, "taskId") {
		return
	}
	if !requireField(w, contextID, "contextId") {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sink := &sseSink{w: w, flusher: flusher}
	cancel, err := h.channel.Subscribe(r.Context(), taskID, contextID, sink)
	if err != nil {
		// Headers are already out; all we can do is drop the connection.
		return
	}
	defer cancel()

	<-r.Context().Done()
}
