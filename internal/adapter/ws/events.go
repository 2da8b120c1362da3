package ws

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nyuta01/agenthub/internal/port/broadcast"
)

var _ broadcast.Broadcaster = (*Hub)(nil)

// BroadcastEvent marshals the payload and fans it out as a typed frame.
// It satisfies the broadcaster port so event channels can mirror their
// traffic to the firehose.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal firehose payload", "type", eventType, "error", err)
		return
	}

	h.Broadcast(ctx, Frame{
		Type:    eventType,
		Payload: json.RawMessage(data),
	})
}
