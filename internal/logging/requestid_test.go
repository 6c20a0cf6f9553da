package logging

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewRequestID(t *testing.T) {
	id := NewRequestID()
	if len(id) != 8 {
		t.Errorf("NewRequestID() length = %d, want 8", len(id))
	}
	if id2 := NewRequestID(); id == id2 {
		t.Errorf("NewRequestID() generated duplicate IDs: %s", id)
	}
}

func TestRequestIDContext(t *testing.T) {
	ctx := context.Background()
	if got := RequestID(ctx); got != "" {
		t.Errorf("RequestID(empty context) = %q, want empty string", got)
	}
	ctx = WithRequestID(ctx, "test1234")
	if got := RequestID(ctx); got != "test1234" {
		t.Errorf("RequestID() = %q, want %q", got, "test1234")
	}
}

func TestMiddleware_GeneratesAndEchoesID(t *testing.T) {
	var seen string
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if seen == "" {
		t.Fatal("handler saw no request id in context")
	}
	if got := rec.Header().Get(HeaderRequestID); got != seen {
		t.Errorf("response header id = %q, context id = %q", got, seen)
	}
}

func TestMiddleware_HonorsInboundHeader(t *testing.T) {
	var seen string
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "caller-id")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "caller-id" {
		t.Errorf("context id = %q, want caller-id", seen)
	}
}
