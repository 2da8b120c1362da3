// Package workpool bounds concurrent executor invocations.
package workpool

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Pool limits how many executors run at once using a weighted semaphore.
// Every dispatch goes through a shared Pool so a burst of message/send
// calls cannot exhaust the process.
type Pool struct {
	sem *semaphore.Weighted
}

// NewPool creates a Pool that allows at most limit concurrent executions.
func NewPool(limit int) *Pool {
	if limit < 1 {
		limit = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(limit))}
}

// Run acquires a slot, runs fn, and releases the slot. Blocks if all slots
// are busy and returns ctx.Err() if the context is canceled while waiting.
// A nil pool executes fn directly without concurrency control.
func (p *Pool) Run(ctx context.Context, fn func() error) error {
	if p == nil || p.sem == nil {
		return fn()
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)
	return fn()
}
