// Package stream implements the event channel port with an in-process sink
// registry. It is the single-instance backend: observers connected to other
// instances of the server cannot see events sent here — use the nats
// adapter for multi-instance deployments.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nyuta01/agenthub/internal/domain/a2a"
	"github.com/nyuta01/agenthub/internal/port/broadcast"
	"github.com/nyuta01/agenthub/internal/port/eventchannel"
	"github.com/nyuta01/agenthub/internal/port/storage"
)

// subscription is one attached observer sink.
type subscription struct {
	sink eventchannel.Sink
}

// Channel implements eventchannel.Channel with a task-keyed registry of
// live sinks. The registry is module-private state with an explicit
// lifecycle: register on subscribe, deregister on disconnect or failed
// write; only the Send/Subscribe contract crosses the package boundary.
type Channel struct {
	mu    sync.RWMutex
	sinks map[string]map[*subscription]struct{} // taskID -> subscriptions

	store       storage.Store         // optional: snapshot replay for late subscribers
	broadcaster broadcast.Broadcaster // optional: process-wide firehose
}

var _ eventchannel.Channel = (*Channel)(nil)

// Option configures a Channel.
type Option func(*Channel)

// WithSnapshots makes Subscribe replay the task's current stored state in
// the connected frame, so observers that attach after an event fired still
// converge.
func WithSnapshots(store storage.Store) Option {
	return func(c *Channel) { c.store = store }
}

// WithBroadcaster mirrors every sent event to the given firehose.
func WithBroadcaster(b broadcast.Broadcaster) Option {
	return func(c *Channel) { c.broadcaster = b }
}

// NewChannel creates an in-process event channel.
func NewChannel(opts ...Option) *Channel {
	c := &Channel{sinks: make(map[string]map[*subscription]struct{})}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send serializes the event and writes it to every sink registered for the
// event's task. A write failure silently drops that sink.
func (c *Channel) Send(ctx context.Context, event a2a.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if c.broadcaster != nil {
		c.broadcaster.BroadcastEvent(ctx, event.EventKind(), json.RawMessage(data))
	}

	taskID := event.EventTaskID()
	c.mu.RLock()
	subs := make([]*subscription, 0, len(c.sinks[taskID]))
	for sub := range c.sinks[taskID] {
		subs = append(subs, sub)
	}
	c.mu.RUnlock()

	for _, sub := range subs {
		if err := sub.sink.WriteEvent(event.EventKind(), data); err != nil {
			slog.Debug("sink write failed, dropping", "task_id", taskID, "error", err)
			c.remove(taskID, sub)
		}
	}
	return nil
}

// Subscribe registers the sink for the task, writes the synthetic connected
// frame, and returns a cancel function. The sink is also removed when ctx
// is canceled.
func (c *Channel) Subscribe(ctx context.Context, taskID, contextID string, sink eventchannel.Sink) (func(), error) {
	sub := &subscription{sink: sink}

	c.mu.Lock()
	if c.sinks[taskID] == nil {
		c.sinks[taskID] = make(map[*subscription]struct{})
	}
	c.sinks[taskID][sub] = struct{}{}
	c.mu.Unlock()

	if err := c.writeConnected(ctx, taskID, contextID, sink); err != nil {
		c.remove(taskID, sub)
		return nil, fmt.Errorf("connected frame: %w", err)
	}

	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			c.remove(taskID, sub)
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			c.remove(taskID, sub)
		case <-done:
		}
	}()

	return cancel, nil
}

// SinkCount reports how many sinks are attached to the task.
func (c *Channel) SinkCount(taskID string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sinks[taskID])
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

func (c *Channel) remove(taskID string, sub *subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if subs, ok := c.sinks[taskID]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(c.sinks, taskID)
		}
	}
}
