package logger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Closer flushes and stops a buffered handler.
type Closer interface {
	Close()
}

// nopCloser is the Closer for synchronous mode.
type nopCloser struct{}

func (nopCloser) Close() {}

// queued pairs a record with the handler it was logged through, so records
// from WithAttrs/WithGroup children drain with their own attributes rather
// than the root handler's.
type queued struct {
	rec  slog.Record
	sink slog.Handler
}

// bufCore is the queue and worker pool shared by a BufferedHandler and all
// of its derived children.
type bufCore struct {
	queue   chan queued
	workers sync.WaitGroup
	dropped atomic.Int64
}

func (c *bufCore) drain() {
	defer c.workers.Done()
	for q := range c.queue {
		_ = q.sink.Handle(context.Background(), q.rec)
	}
}

// BufferedHandler decouples log emission from sink I/O: records are queued
// and written by background workers, and dropped when the queue is full so
// a slow sink never blocks request handling.
type BufferedHandler struct {
	sink slog.Handler
	core *bufCore
}

// NewBufferedHandler wraps sink with a queue of the given length drained by
// the given number of workers.
func NewBufferedHandler(sink slog.Handler, queueLen, workers int) *BufferedHandler {
	core := &bufCore{
		queue: make(chan queued, queueLen),
	}
	for range workers {
		core.workers.Add(1)
		go core.drain()
	}
	return &BufferedHandler{sink: sink, core: core}
}

// Enabled delegates to the sink.
func (h *BufferedHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.sink.Enabled(ctx, level)
}

// Handle enqueues the record, dropping it if the queue is full.
func (h *BufferedHandler) Handle(_ context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler interface requires value receiver
	select {
	case h.core.queue <- queued{rec: rec, sink: h.sink}:
	default:
		h.core.dropped.Add(1)
	}
	return nil
}

// WithAttrs returns a child handler sharing the same queue and workers.
func (h *BufferedHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &BufferedHandler{sink: h.sink.WithAttrs(attrs), core: h.core}
}

// WithGroup returns a child handler sharing the same queue and workers.
func (h *BufferedHandler) WithGroup(name string) slog.Handler {
	return &BufferedHandler{sink: h.sink.WithGroup(name), core: h.core}
}

// Dropped returns the number of records discarded because the queue was
// full.
func (h *BufferedHandler) Dropped() int64 {
	return h.core.dropped.Load()
}

// Close stops accepting records and waits for the workers to drain the
// queue.
func (h *BufferedHandler) Close() {
	close(h.core.queue)
	h.core.workers.Wait()
}
