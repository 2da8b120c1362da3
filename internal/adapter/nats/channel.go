// Package nats implements the event channel port with core NATS pub/sub.
// Events are published to one subject per task so stateless server
// instances can fan events out to observers connected anywhere. Delivery is
// at-most-once and not persisted; storage remains the source of truth, and
// an observer that connects after an event fired relies on the snapshot in
// its connected frame.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/nyuta01/agenthub/internal/domain/a2a"
	"github.com/nyuta01/agenthub/internal/port/broadcast"
	"github.com/nyuta01/agenthub/internal/port/eventchannel"
	"github.com/nyuta01/agenthub/internal/port/storage"
)

// DefaultSubjectPrefix is the subject namespace for task events.
const DefaultSubjectPrefix = "agenthub.tasks"

// envelope is the wire shape published to NATS: the event kind plus the
// serialized event, forwarded verbatim to subscriber sinks.
type envelope struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// Channel implements eventchannel.Channel over a NATS connection.
type Channel struct {
	nc     *nats.Conn
	prefix string

	store       storage.Store
	broadcaster broadcast.Broadcaster
}

var _ eventchannel.Channel = (*Channel)(nil)

// Option configures a Channel.
type Option func(*Channel)

// WithSubjectPrefix overrides the subject namespace.
func WithSubjectPrefix(prefix string) Option {
	return func(c *Channel) { c.prefix = prefix }
}

// WithSnapshots makes Subscribe replay the task's current stored state in
// the connected frame.
func WithSnapshots(store storage.Store) Option {
	return func(c *Channel) { c.store = store }
}

// WithBroadcaster mirrors every locally sent event to the given firehose.
func WithBroadcaster(b broadcast.Broadcaster) Option {
	return func(c *Channel) { c.broadcaster = b }
}

// Connect establishes a NATS connection and returns a channel over it.
func Connect(url string, opts ...Option) (*Channel, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	c := NewChannel(nc, opts...)
	slog.Info("nats connected", "url", url, "prefix", c.prefix)
	return c, nil
}

// NewChannel wraps an existing NATS connection. The caller keeps ownership
// of the connection's lifetime.
func NewChannel(nc *nats.Conn, opts ...Option) *Channel {
	c := &Channel{nc: nc, prefix: DefaultSubjectPrefix}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send publishes the event to the task's subject. Subscribers on any
// instance forward it to their local sinks.
func (c *Channel) Send(ctx context.Context, event a2a.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if c.broadcaster != nil {
		c.broadcaster.BroadcastEvent(ctx, event.EventKind(), json.RawMessage(data))
	}

	env, err := json.Marshal(envelope{Kind: event.EventKind(), Data: data})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := c.nc.Publish(c.subject(event.EventTaskID()), env); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}

// Subscribe writes the connected frame, then subscribes to the task's
// subject and forwards every payload verbatim to the sink until cancel,
// ctx cancellation, or a failed write.
func (c *Channel) Subscribe(ctx context.Context, taskID, contextID string, sink eventchannel.Sink) (func(), error) {
	if err := c.writeConnected(ctx, taskID, contextID, sink); err != nil {
		return nil, fmt.Errorf("connected frame: %w", err)
	}

	var (
		once sync.Once
		sub  *nats.Subscription
	)
	unsubscribe := func() {
		once.Do(func() {
			if err := sub.Unsubscribe(); err != nil {
				slog.Debug("nats unsubscribe failed", "task_id", taskID, "error", err)
			}
		})
	}

	sub, err := c.nc.Subscribe(c.subject(taskID), func(msg *nats.Msg) {
		var env envelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			slog.Error("malformed event envelope", "task_id", taskID, "error", err)
			return
		}
		if err := sink.WriteEvent(env.Kind, env.Data); err != nil {
			slog.Debug("sink write failed, unsubscribing", "task_id", taskID, "error", err)
			unsubscribe()
		}
	})
	if err != nil {
		return nil, fmt.Errorf("nats subscribe: %w", err)
	}

	go func() {
		<-ctx.Done()
		unsubscribe()
	}()

	return unsubscribe, nil
}

// Drain flushes pending messages and closes the connection.
func (c *Channel) Drain() error {
	return c.nc.Drain()
}

// Close shuts down the NATS connection immediately.
func (c *Channel) Close() {
	c.nc.Close()
}

// IsConnected reports whether the underlying connection is up.
func (c *Channel) IsConnected() bool {
	return c.nc.IsConnected()
}

// Conn exposes the underlying connection so siblings (JetStream KV) can
// share it instead of dialing twice.
func (c *Channel) Conn() *nats.Conn {
	return c.nc
}

func (c *Channel) subject(taskID string) string {
	return c.prefix + "." + taskID
}

func (c *Channel) writeConnected(ctx context.Context, taskID, contextID string, sink eventchannel.Sink) error {
	var snapshot *a2a.Task
	if c.store != nil {
		if snap, err := c.store.GetTaskWithHistory(ctx, taskID); err == nil {
			snapshot = snap.Task
			snapshot.History = snap.Messages
			snapshot.Artifacts = snap.Artifacts
		}
	}
	data, err := json.Marshal(a2a.NewConnected(taskID, contextID, snapshot))
	if err != nil {
		return err
	}
	return sink.WriteEvent(a2a.EventKindConnected, data)
}
