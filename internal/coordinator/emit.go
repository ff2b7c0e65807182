package coordinator

import "teenpatti-casino/internal/game"

type QueuedEvent struct {
	Room     string `json:"room"`
	Position int    `json:"position"`
	Requeued bool   `json:"requeued,omitempty"`
}

type LeftEvent struct {
	Room   string `json:"room"`
	Reason string `json:"reason"`
}

type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

type SeatSummary struct {
	Seat        int    `json:"seat"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name,omitempty"`
}

type SessionFormedEvent struct {
	SessionID string            `json:"session_id"`
	Room      game.RoomTemplate `json:"room"`
	Seats     []SeatSummary     `json:"seats"`
	PotTotal  int64             `json:"pot_total"`
}

type PrivateHandEvent struct {
	Seat  int      `json:"seat"`
	Cards []string `json:"cards"`
}

type TurnStartedEvent struct {
	Seat       int    `json:"seat"`
	UserID     string `json:"user_id"`
	Round      int    `json:"round"`
	RoundStake int64  `json:"round_stake"`
	PotTotal   int64  `json:"pot_total"`
	Deadline   int64  `json:"deadline"`
}

type ActionAppliedEvent struct {
	Seat       int             `json:"seat"`
	UserID     string          `json:"user_id"`
	Action     game.ActionKind `json:"action"`
	Amount     int64           `json:"amount"`
	Reason     string          `json:"reason,omitempty"`
	RoundStake int64           `json:"round_stake"`
	PotTotal   int64           `json:"pot_total"`
	SeatState  game.SeatState  `json:"seat_state"`
}

type RevealedHand struct {
	Seat        int            `json:"seat"`
	UserID      string         `json:"user_id"`
	State       game.SeatState `json:"state"`
	Cards       []string       `json:"cards"`
	Category    string         `json:"category"`
	Description string         `json:"description"`
}

type SessionSettledEvent struct {
	SessionID       string         `json:"session_id"`
	WinnerSeat      int            `json:"winner_seat"`
	WinnerID        string         `json:"winner_id"`
	WinningCategory string         `json:"winning_category"`
	FoldWin         bool           `json:"fold_win"`
	AllHands        []RevealedHand `json:"all_hands"`
	Pot             game.Pot       `json:"pot"`
}

type SessionAbortedEvent struct {
	SessionID string `json:"session_id"`
	Reason    string `json:"reason"`
}

func newSessionFormedEvent(s *game.Session) SessionFormedEvent {
	seats := make([]SeatSummary, 0, len(s.Seats))
	for i, seat := range s.Seats {
		seats = append(seats, SeatSummary{Seat: i, UserID: seat.UserID, DisplayName: seat.DisplayName})
	}
	return SessionFormedEvent{SessionID: s.ID, Room: s.Room, Seats: seats, PotTotal: s.Pot.Total}
}

func newSessionSettledEvent(s *game.Session, res game.Result) SessionSettledEvent {
	hands := make([]RevealedHand, 0, len(s.Seats))
	for i, seat := range s.Seats {
		h := RevealedHand{Seat: i, UserID: seat.UserID, State: seat.State, Cards: seat.Hand.Strings()}
		if i < len(res.Evaluations) {
			h.Category = res.Evaluations[i].Category.String()
			h.Description = res.Evaluations[i].Description
		}
		hands = append(hands, h)
	}
	ev := SessionSettledEvent{
		SessionID:  s.ID,
		WinnerSeat: res.WinnerSeat,
		WinnerID:   res.WinnerID,
		FoldWin:    res.FoldWin,
		AllHands:   hands,
		Pot:        s.Pot,
	}
	if res.WinnerSeat >= 0 && res.WinnerSeat < len(hands) {
		ev.WinningCategory = hands[res.WinnerSeat].Category
	}
	return ev
}
