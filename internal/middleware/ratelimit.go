package middleware

import (
	"context"
	"fmt"
	"math"
	"net"
	"net/http"
	"sync"
	"time"
)

// tokenBucket is the refill state for one caller.
type tokenBucket struct {
	tokens   float64
	refilled time.Time
	lastSeen time.Time
}

// take refills the bucket for the elapsed time and consumes one token.
// Returns the remaining whole tokens, the seconds until the next token when
// rejected, and whether the request may proceed.
func (b *tokenBucket) take(now time.Time, rate float64, burst int) (remaining int, wait float64, ok bool) {
	b.tokens += now.Sub(b.refilled).Seconds() * rate
	if b.tokens > float64(burst) {
		b.tokens = float64(burst)
	}
	b.refilled = now
	b.lastSeen = now

	if b.tokens < 1 {
		return 0, (1 - b.tokens) / rate, false
	}
	b.tokens--
	return int(b.tokens), 0, true
}

// RateLimiter throttles callers with per-caller token buckets. Callers are
// keyed by remote IP.
type RateLimiter struct {
	mu         sync.Mutex
	callers    map[string]*tokenBucket
	rate       float64 // tokens per second
	burst      int     // bucket capacity
	maxCallers int     // cap on tracked callers, prevents memory exhaustion
}

// NewRateLimiter creates a limiter with the given sustained rate (requests
// per second) and burst size.
func NewRateLimiter(rate float64, burst int) *RateLimiter {
	return &RateLimiter{
		callers:    make(map[string]*tokenBucket),
		rate:       rate,
		burst:      burst,
		maxCallers: 100000,
	}
}

// Handler returns HTTP middleware that enforces the limit per caller.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		remaining, retryAfter, allowed := rl.allow(callerKey(r))

		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", time.Now().Add(time.Second).Unix()))

		if !allowed {
			w.Header().Set("Retry-After", fmt.Sprintf("%.0f", math.Ceil(retryAfter)))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) allow(key string) (remaining int, retryAfter float64, allowed bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	b, tracked := rl.callers[key]
	if !tracked {
		if len(rl.callers) >= rl.maxCallers {
			return 0, 1.0 / rl.rate, false
		}
		b = &tokenBucket{
			tokens:   float64(rl.burst) - 1, // this request consumes one
			refilled: now,
			lastSeen: now,
		}
		rl.callers[key] = b
		return int(b.tokens), 0, true
	}

	return b.take(now, rl.rate, rl.burst)
}

// StartCleanup spawns a goroutine that forgets idle callers every interval.
// A caller is idle once it has not been seen for longer than maxIdle.
// Returns a cancel function that stops the goroutine.
func (rl *RateLimiter) StartCleanup(interval, maxIdle time.Duration) func() {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.cleanup(maxIdle)
			}
		}
	}()
	return cancel
}

func (rl *RateLimiter) cleanup(maxIdle time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := time.Now().Add(-maxIdle)
	for key, b := range rl.callers {
		if b.lastSeen.Before(cutoff) {
			delete(rl.callers, key)
		}
	}
}

// TrackedCallers returns the number of callers with live buckets.
func (rl *RateLimiter) TrackedCallers() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.callers)
}

// callerKey extracts the client IP from RemoteAddr. Proxy headers are NOT
// consulted here because they can be spoofed to escape the limit; RealIP
// runs earlier in the chain and rewrites RemoteAddr when a trusted proxy
// is in front.
func callerKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
