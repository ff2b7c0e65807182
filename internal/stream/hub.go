package stream

import "sync"

// Event names carried on session and user streams.
const (
	EventQueued         = "queued"
	EventLeft           = "left"
	EventSessionFormed  = "session-formed"
	EventPrivateHand    = "private-hand"
	EventTurnStarted    = "turn-started"
	EventActionApplied  = "action-applied"
	EventSessionSettled = "session-settled"
	EventSessionAborted = "session-aborted"
	EventError          = "error"
)

// Hub routes events to per-session and per-user buffers. Session buffers
// only ever see shared events; private events go to the user buffer alone.
type Hub struct {
	mu       sync.Mutex
	size     int
	sessions map[string]*EventBuffer
	users    map[string]*EventBuffer
}

func NewHub(size int) *Hub {
	return &Hub{
		size:     size,
		sessions: map[string]*EventBuffer{},
		users:    map[string]*EventBuffer{},
	}
}

// Broadcast appends a shared event to the session stream and to every
// member's user stream.
func (h *Hub) Broadcast(sessionID string, members []string, event string, data any) {
	h.mu.Lock()
	sess := h.sessions[sessionID]
	if sess == nil {
		sess = NewEventBuffer(h.size)
		h.sessions[sessionID] = sess
	}
	targets := make([]*EventBuffer, 0, len(members))
	for _, userID := range members {
		targets = append(targets, h.userLocked(userID))
	}
	h.mu.Unlock()

	sess.Append(event, sessionID, data)
	for _, buf := range targets {
		buf.Append(event, sessionID, data)
	}
}

// Private appends an event to one user's stream. sessionID may be empty
// for lobby events.
func (h *Hub) Private(sessionID, userID, event string, data any) {
	h.mu.Lock()
	buf := h.userLocked(userID)
	h.mu.Unlock()
	buf.Append(event, sessionID, data)
}

func (h *Hub) userLocked(userID string) *EventBuffer {
	buf := h.users[userID]
	if buf == nil {
		buf = NewEventBuffer(h.size)
		h.users[userID] = buf
	}
	return buf
}

func (h *Hub) SessionBuffer(sessionID string) (*EventBuffer, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	buf, ok := h.sessions[sessionID]
	return buf, ok
}

// UserBuffer returns the user's stream, creating it on first use.
func (h *Hub) UserBuffer(userID string) *EventBuffer {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.userLocked(userID)
}

// CloseSession ends every subscription on the session stream.
func (h *Hub) CloseSession(sessionID string) {
	h.mu.Lock()
	buf := h.sessions[sessionID]
	delete(h.sessions, sessionID)
	h.mu.Unlock()
	if buf != nil {
		buf.Close()
	}
}

func (h *Hub) SessionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}
