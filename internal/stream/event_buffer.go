package stream

import (
	"strconv"
	"sync"
	"time"
)

const DefaultBufferSize = 500

type StreamEvent struct {
	EventID   string `json:"event_id"`
	Event     string `json:"event"`
	SessionID string `json:"session_id,omitempty"`
	ServerTS  int64  `json:"server_ts"`
	Data      any    `json:"data"`
}

// EventBuffer keeps the most recent events for replay and fans new ones out
// to subscribers. Slow subscribers miss live events rather than block.
type EventBuffer struct {
	mu       sync.Mutex
	nextID   int64
	max      int
	events   []StreamEvent
	watchers map[chan StreamEvent]struct{}
	closed   bool
	now      func() time.Time
}

func NewEventBuffer(max int) *EventBuffer {
	if max <= 0 {
		max = DefaultBufferSize
	}
	return &EventBuffer{
		max:      max,
		watchers: map[chan StreamEvent]struct{}{},
		now:      time.Now,
	}
}

func (b *EventBuffer) Append(event, sessionID string, data any) StreamEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return StreamEvent{}
	}
	b.nextID++
	ev := StreamEvent{
		EventID:   strconv.FormatInt(b.nextID, 10),
		Event:     event,
		SessionID: sessionID,
		ServerTS:  b.now().UnixMilli(),
		Data:      data,
	}
	b.events = append(b.events, ev)
	if len(b.events) > b.max {
		b.events = b.events[len(b.events)-b.max:]
	}
	for ch := range b.watchers {
		select {
		case ch <- ev:
		default:
		}
	}
	return ev
}

// ReplayAfter returns buffered events newer than lastEventID. An empty or
// unparseable id replays everything still held.
func (b *EventBuffer) ReplayAfter(lastEventID string) []StreamEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.events) == 0 {
		return nil
	}
	last, err := strconv.ParseInt(lastEventID, 10, 64)
	if lastEventID == "" || err != nil {
		out := make([]StreamEvent, len(b.events))
		copy(out, b.events)
		return out
	}
	out := make([]StreamEvent, 0, len(b.events))
	for _, ev := range b.events {
		id, _ := strconv.ParseInt(ev.EventID, 10, 64)
		if id > last {
			out = append(out, ev)
		}
	}
	return out
}

func (b *EventBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

func (b *EventBuffer) Subscribe() chan StreamEvent {
	ch := make(chan StreamEvent, 32)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.watchers[ch] = struct{}{}
	return ch
}

func (b *EventBuffer) Unsubscribe(ch chan StreamEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.watchers[ch]; ok {
		delete(b.watchers, ch)
		close(ch)
	}
}

func (b *EventBuffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.watchers {
		close(ch)
		delete(b.watchers, ch)
	}
}
