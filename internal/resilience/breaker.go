// Package resilience guards calls to remote lifecycle endpoints. A peer hub
// that keeps failing is cut off for a cooldown period instead of being
// hammered by every retry.
package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned when the breaker is rejecting calls because the
// remote endpoint has exceeded its failure threshold.
var ErrOpen = errors.New("breaker open: remote endpoint unavailable")

type phase int

const (
	phaseClosed  phase = iota // calls flow normally
	phaseOpen                 // calls rejected until the cooldown elapses
	phaseProbing              // one call through; its outcome decides
)

// Breaker counts consecutive failures against a remote endpoint and trips
// once they reach the threshold. After the cooldown a single probe call is
// admitted; success closes the breaker, failure re-trips it.
type Breaker struct {
	mu        sync.Mutex
	phase     phase
	strikes   int
	threshold int
	cooldown  time.Duration
	trippedAt time.Time
	clock     func() time.Time // overridable in tests
}

// NewBreaker creates a breaker that trips after threshold consecutive
// failures and stays open for the given cooldown.
func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	return &Breaker{
		threshold: threshold,
		cooldown:  cooldown,
		clock:     time.Now,
	}
}

// Do runs fn unless the breaker is open, and records the outcome.
func (b *Breaker) Do(fn func() error) error {
	if !b.admit() {
		return ErrOpen
	}

	err := fn()
	b.record(err)
	return err
}

func (b *Breaker) admit() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.phase == phaseOpen {
		if b.clock().Sub(b.trippedAt) < b.cooldown {
			return false
		}
		b.phase = phaseProbing
	}
	return true
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.strikes = 0
		b.phase = phaseClosed
		return
	}

	b.strikes++
	if b.phase == phaseProbing || b.strikes >= b.threshold {
		b.phase = phaseOpen
		b.trippedAt = b.clock()
	}
}
