package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

var PingInterval = 15 * time.Second

var ErrStreamNotSupported = errors.New("stream_not_supported")

func WriteSSE(w http.ResponseWriter, ev StreamEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if ev.EventID != "" {
		if _, err := fmt.Fprintf(w, "id: %s\n", ev.EventID); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "event: %s\n", ev.Event); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return nil
}

// SetSSEHeaders applies headers that keep event streams stable across proxies.
func SetSSEHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache, no-transform")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	h.Set("X-Content-Type-Options", "nosniff")
}

// Serve replays the buffer after the request's Last-Event-ID and then
// follows it until the client goes away or the buffer closes.
func Serve(w http.ResponseWriter, r *http.Request, buf *EventBuffer, sessionID string) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return ErrStreamNotSupported
	}
	SetSSEHeaders(w)

	ch := buf.Subscribe()
	defer buf.Unsubscribe(ch)

	lastID := r.Header.Get("Last-Event-ID")
	for _, ev := range buf.ReplayAfter(lastID) {
		if err := WriteSSE(w, ev); err != nil {
			return nil
		}
		lastID = ev.EventID
	}
	flusher.Flush()

	ticker := time.NewTicker(PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			if !newer(ev.EventID, lastID) {
				continue
			}
			lastID = ev.EventID
			if err := WriteSSE(w, ev); err != nil {
				return nil
			}
			flusher.Flush()
		case <-ticker.C:
			now := time.Now().UnixMilli()
			ping := StreamEvent{Event: "ping", SessionID: sessionID, ServerTS: now, Data: map[string]any{"ts": now}}
			if err := WriteSSE(w, ping); err != nil {
				return nil
			}
			flusher.Flush()
		}
	}
}

func newer(id, last string) bool {
	a, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return true
	}
	b, err := strconv.ParseInt(last, 10, 64)
	if err != nil {
		return true
	}
	return a > b
}
