package viewmodel

import "teenpatti-casino/internal/game"

type SeatView struct {
	SeatIndex      int      `json:"seat_index"`
	UserID         string   `json:"user_id"`
	DisplayName    string   `json:"display_name,omitempty"`
	State          string   `json:"state"`
	CurrentBet     int64    `json:"current_bet"`
	TotalCommitted int64    `json:"total_committed"`
	ToCall         int64    `json:"to_call"`
	LastAction     string   `json:"last_action,omitempty"`
	Cards          []string `json:"cards,omitempty"`
}

type SessionView struct {
	SessionID   string              `json:"session_id"`
	Room        game.RoomTemplate   `json:"room"`
	Status      string              `json:"status"`
	Pot         game.Pot            `json:"pot"`
	RoundStake  int64               `json:"round_stake"`
	Round       int                 `json:"round"`
	TurnPointer int                 `json:"turn_pointer"`
	Seats       []SeatView          `json:"seats"`
	ActionLog   []game.ActionRecord `json:"action_log"`
	MySeat      *int                `json:"my_seat,omitempty"`
	MyHand      []string            `json:"my_hand,omitempty"`
}

// BuildPublicView hides every hand until the session reaches showdown.
func BuildPublicView(s *game.Session) SessionView {
	reveal := s.Status == game.StatusShowdown || s.Status == game.StatusSettled
	return build(s, reveal)
}

// BuildPlayerView is the public view plus the viewer's own hand.
func BuildPlayerView(s *game.Session, userID string) SessionView {
	view := BuildPublicView(s)
	if seat, ok := s.SeatOf(userID); ok {
		idx := seat
		view.MySeat = &idx
		view.MyHand = s.Seats[seat].Hand.Strings()
	}
	return view
}

func build(s *game.Session, reveal bool) SessionView {
	last := map[int]string{}
	for _, rec := range s.ActionLog {
		last[rec.Seat] = string(rec.Action)
	}
	seats := make([]SeatView, 0, len(s.Seats))
	for i, seat := range s.Seats {
		var toCall int64
		if seat.State == game.SeatActive && s.Status == game.StatusBetting {
			toCall = s.RoundStake
		}
		v := SeatView{
			SeatIndex:      i,
			UserID:         seat.UserID,
			DisplayName:    seat.DisplayName,
			State:          string(seat.State),
			CurrentBet:     seat.CurrentBet,
			TotalCommitted: seat.TotalCommitted,
			ToCall:         toCall,
			LastAction:     last[i],
		}
		if reveal {
			v.Cards = seat.Hand.Strings()
		}
		seats = append(seats, v)
	}
	log := make([]game.ActionRecord, len(s.ActionLog))
	copy(log, s.ActionLog)
	return SessionView{
		SessionID:   s.ID,
		Room:        s.Room,
		Status:      string(s.Status),
		Pot:         s.Pot,
		RoundStake:  s.RoundStake,
		Round:       s.Round,
		TurnPointer: s.TurnPointer,
		Seats:       seats,
		ActionLog:   log,
	}
}
