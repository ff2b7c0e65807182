package ws

import "teenpatti-casino/internal/stream"

const ProtocolVersion = "1.0"

// Inbound message types.
const (
	TypeJoin  = "join"
	TypeLeave = "leave"
	TypeAct   = "act"
)

// Outbound message types.
const (
	TypeResult = "result"
	TypeEvent  = "event"
)

const maxRequestIDLen = 64

type JoinMessage struct {
	Type        string `json:"type"`
	RequestID   string `json:"request_id,omitempty"`
	Room        string `json:"room"`
	DisplayName string `json:"display_name,omitempty"`
}

type LeaveMessage struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
	Room      string `json:"room,omitempty"`
}

type ActMessage struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
	SessionID string `json:"session_id"`
	Seat      *int   `json:"seat,omitempty"`
	Action    string `json:"action"`
	Amount    int64  `json:"amount,omitempty"`
}

type Result struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	RequestID       string `json:"request_id,omitempty"`
	Command         string `json:"command"`
	Ok              bool   `json:"ok"`
	Error           string `json:"error,omitempty"`
	Data            any    `json:"data,omitempty"`
}

type Event struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	stream.StreamEvent
}
