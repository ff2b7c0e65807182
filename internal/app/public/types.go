package public

import (
	"encoding/json"
	"time"

	"teenpatti-casino/internal/coordinator"
	"teenpatti-casino/internal/game"
	"teenpatti-casino/internal/game/viewmodel"
	"teenpatti-casino/internal/store"
)

type RoomsResponse struct {
	Items []coordinator.RoomView `json:"items"`
}

type SessionsResponse struct {
	ActiveSessions  int   `json:"active_sessions"`
	SettledSessions int64 `json:"settled_sessions"`
}

// SessionResponse carries either the live view or, once the session has
// paid out, its settlement record.
type SessionResponse struct {
	SessionID string                 `json:"session_id"`
	Live      *viewmodel.SessionView `json:"live,omitempty"`
	Settled   *SettledSession        `json:"settled,omitempty"`
}

type SettledSession struct {
	RoomName        string          `json:"room_name"`
	WinnerID        string          `json:"winner_id"`
	WinnerSeat      int             `json:"winner_seat"`
	WinningCategory string          `json:"winning_category"`
	FoldWin         bool            `json:"fold_win"`
	Pot             game.Pot        `json:"pot"`
	Players         json.RawMessage `json:"players"`
	ActionLog       json.RawMessage `json:"action_log"`
	SettledAt       time.Time       `json:"settled_at"`
}

type PlayerResponse struct {
	coordinator.Membership
	Balance int64                  `json:"balance"`
	Session *viewmodel.SessionView `json:"session,omitempty"`
}

type LedgerResponse struct {
	Items []store.LedgerEntry `json:"items"`
	Limit int                 `json:"limit"`
}
