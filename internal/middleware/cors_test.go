package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORSPreflight(t *testing.T) {
	called := false
	h := CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	req := httptest.NewRequest(http.MethodOptions, "/functions/v1/qwen-chat", nil)
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if called {
		t.Fatal("preflight must not reach the wrapped handler")
	}
	if got := resp.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("unexpected origin header %q", got)
	}
	if got := resp.Header().Get("Access-Control-Allow-Methods"); got != allowedMethods {
		t.Fatalf("unexpected methods header %q", got)
	}
}

func TestCORSPassesThrough(t *testing.T) {
	h := CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/", nil))

	if resp.Code != http.StatusTeapot {
		t.Fatalf("expected wrapped status, got %d", resp.Code)
	}
	if resp.Header().Get("Access-Control-Allow-Headers") != allowedHeaders {
		t.Fatal("expected CORS headers on normal responses")
	}
}
