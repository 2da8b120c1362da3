// Package broadcast defines the port for broadcasting real-time task events
// to all connected clients, regardless of which task they are watching.
package broadcast

import "context"

// Broadcaster sends a typed event to every connected client. Used for
// dashboard-style observers; per-task observers subscribe through the
// event channel instead.
type Broadcaster interface {
	BroadcastEvent(ctx context.Context, eventType string, payload any)
}
