package game

import "time"

const ProtocolVersion = "1.0"

// DefaultMaxPlayers is the seat limit of every stock room.
const DefaultMaxPlayers = 6

type RoomTemplate struct {
	Name       string `json:"name"`
	MinBet     int64  `json:"min_bet"`
	MaxBet     int64  `json:"max_bet"`
	BuyIn      int64  `json:"buy_in"`
	MaxPlayers int    `json:"max_players"`
}

type Status string

const (
	StatusDealing  Status = "dealing"
	StatusBetting  Status = "betting"
	StatusShowdown Status = "showdown"
	StatusSettled  Status = "settled"
)

type SeatState string

const (
	SeatActive       SeatState = "active"
	SeatFolded       SeatState = "folded"
	SeatDisconnected SeatState = "disconnected"
)

type Seat struct {
	UserID         string
	DisplayName    string
	Index          int
	Hand           Hand
	CurrentBet     int64
	TotalCommitted int64
	State          SeatState
}

type ActionRecord struct {
	Round  int        `json:"round"`
	Seat   int        `json:"seat"`
	Action ActionKind `json:"action"`
	Amount int64      `json:"amount"`
	Reason string     `json:"reason,omitempty"`
	At     time.Time  `json:"at"`
}

// Session is one hand of Teen Patti from deal to settlement. It is not safe
// for concurrent use; a single dispatcher owns it.
type Session struct {
	ID             string
	Status         Status
	Room           RoomTemplate
	Seats          []*Seat
	Deck           *Deck
	Pot            Pot
	TurnPointer    int
	RoundStake     int64
	Round          int
	TurnGeneration uint64
	ActionLog      []ActionRecord
	CreatedAt      time.Time
}

type Player struct {
	UserID      string
	DisplayName string
}

type OutcomeKind int

const (
	// OutcomeContinue means betting goes on with TurnPointer set to the next actor.
	OutcomeContinue OutcomeKind = iota
	OutcomeFoldWin
	OutcomeShowdown
)

type Result struct {
	WinnerSeat  int              `json:"winner_seat"`
	WinnerID    string           `json:"winner_id"`
	FoldWin     bool             `json:"fold_win"`
	Evaluations []HandEvaluation `json:"evaluations"`
}
