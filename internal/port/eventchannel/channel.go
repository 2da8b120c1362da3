// Package eventchannel defines the port for delivering task state-change
// notifications to live observers. Backends: in-process sink registry
// (internal/adapter/stream) and cross-process NATS pub/sub
// (internal/adapter/nats).
package eventchannel

import (
	"context"

	"github.com/nyuta01/agenthub/internal/domain/a2a"
)

// Sink receives serialized event frames for one connected observer. The
// HTTP layer adapts a server-push connection into a Sink; tests inject
// recorders. A write error marks the sink dead and it is dropped.
type Sink interface {
	WriteEvent(kind string, data []byte) error
}

// Channel is the port interface for event fan-out.
//
// Send is fire-and-forget relative to the lifecycle operation that triggers
// it: a send failure never rolls back the storage write. Delivery is
// at-most-once, best-effort, approximately in emission order.
type Channel interface {
	// Send delivers the event to every live observer of event's task.
	Send(ctx context.Context, event a2a.Event) error

	// Subscribe attaches a sink to the task's event feed. The returned
	// cancel function detaches it; the sink is also detached when ctx is
	// canceled or a write to it fails.
	Subscribe(ctx context.Context, taskID, contextID string, sink Sink) (cancel func(), err error)
}
