package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nyuta01/agenthub/internal/logger"
	"github.com/nyuta01/agenthub/internal/middleware"
)

func TestRequestIDGenerated(t *testing.T) {
	var captured string
	handler := middleware.RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		captured = logger.RequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	if captured == "" {
		t.Fatal("expected request ID in context")
	}
	if got := rec.Header().Get("X-Request-ID"); got != captured {
		t.Fatalf("response header %q != context ID %q", got, captured)
	}
}

func TestRequestIDPropagated(t *testing.T) {
	var captured string
	handler := middleware.RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		captured = logger.RequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.Header.Set("X-Request-ID", "upstream-id")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if captured != "upstream-id" {
		t.Fatalf("expected upstream-id, got %q", captured)
	}
}
