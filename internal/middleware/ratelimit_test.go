package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiterAllowsUnderLimit(t *testing.T) {
	rl := NewRateLimiter(10, 10)
	handler := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// The full burst of 10 should pass.
	for i := range 10 {
		req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
		req.RemoteAddr = "192.168.1.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("request %d: expected 200, got %d", i+1, rec.Code)
		}
	}
}

func TestRateLimiterRejectsOverLimit(t *testing.T) {
	rl := NewRateLimiter(10, 5)
	handler := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// Exhaust the burst (5 tokens).
	for range 5 {
		req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
		req.RemoteAddr = "192.168.1.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
	}

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.RemoteAddr = "192.168.1.1:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestRateLimiterIsolatesCallers(t *testing.T) {
	rl := NewRateLimiter(10, 1)
	handler := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// Exhaust the single token for the first caller.
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.RemoteAddr = "192.168.1.1:1234"
	handler.ServeHTTP(httptest.NewRecorder(), req)

	// A different caller has its own bucket.
	req = httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.RemoteAddr = "192.168.1.2:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for second caller, got %d", rec.Code)
	}
}

func TestRateLimiterRefills(t *testing.T) {
	rl := NewRateLimiter(100, 1)

	if _, _, allowed := rl.allow("10.0.0.1"); !allowed {
		t.Fatal("expected first request to pass")
	}
	if _, _, allowed := rl.allow("10.0.0.1"); allowed {
		t.Fatal("expected second request to be rejected")
	}

	// At 100 tokens/s a token is back within 10ms.
	time.Sleep(20 * time.Millisecond)
	if _, _, allowed := rl.allow("10.0.0.1"); !allowed {
		t.Fatal("expected request to pass after refill")
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter(10, 10)

	_, _, _ = rl.allow("192.168.1.1")
	_, _, _ = rl.allow("192.168.1.2")
	if rl.TrackedCallers() != 2 {
		t.Fatalf("expected 2 callers, got %d", rl.TrackedCallers())
	}

	time.Sleep(5 * time.Millisecond)
	rl.cleanup(time.Millisecond)
	if rl.TrackedCallers() != 0 {
		t.Fatalf("expected 0 callers after cleanup, got %d", rl.TrackedCallers())
	}
}
