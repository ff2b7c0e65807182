package stream

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestServeReplaysAfterLastEventID(t *testing.T) {
	buf := NewEventBuffer(8)
	buf.Append("a", "s1", 1)
	buf.Append("b", "s1", 2)
	buf.Append("c", "s1", 3)
	buf.Close()

	req := httptest.NewRequest("GET", "/api/sessions/s1/events", nil)
	req.Header.Set("Last-Event-ID", "1")
	rec := httptest.NewRecorder()
	if err := Serve(rec, req, buf, "s1"); err != nil {
		t.Fatalf("serve: %v", err)
	}
	body := rec.Body.String()
	if strings.Contains(body, "event: a\n") {
		t.Fatalf("replayed event older than Last-Event-ID: %s", body)
	}
	if !strings.Contains(body, "id: 2\nevent: b\n") || !strings.Contains(body, "id: 3\nevent: c\n") {
		t.Fatalf("missing replay events: %s", body)
	}
	if got := rec.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("content type = %q", got)
	}
}

func TestServeStopsOnContextCancel(t *testing.T) {
	buf := NewEventBuffer(8)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest("GET", "/", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		_ = Serve(rec, req, buf, "s1")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}
