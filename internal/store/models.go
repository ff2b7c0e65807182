package store

import (
	"encoding/json"
	"time"
)

// Ledger entry types and references written by the game engine.
const (
	EntryBuyIn       = "buy_in"
	EntryBuyInRefund = "buy_in_refund"
	EntryBet         = "bet"
	EntryGameWin     = "game_win"
	EntryCommission  = "commission"
	EntryTopup       = "topup_credit"

	RefSession = "session"
	RefTopup   = "topup"

	// HouseAccountID owns commission entries.
	HouseAccountID = "house"
)

type Account struct {
	UserID    string    `json:"user_id"`
	Balance   int64     `json:"balance"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Room struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	MinBet     int64     `json:"min_bet"`
	MaxBet     int64     `json:"max_bet"`
	BuyIn      int64     `json:"buy_in"`
	MaxPlayers int       `json:"max_players"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

type LedgerEntry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Type      string    `json:"type"`
	Amount    int64     `json:"amount"`
	RefType   string    `json:"ref_type"`
	RefID     string    `json:"ref_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Settlement is the record written when a session pays out. Players and
// ActionLog are stored as JSON documents.
type Settlement struct {
	SessionID       string          `json:"session_id"`
	RoomName        string          `json:"room_name"`
	WinnerID        string          `json:"winner_id"`
	WinnerSeat      int             `json:"winner_seat"`
	WinningCategory string          `json:"winning_category"`
	FoldWin         bool            `json:"fold_win"`
	PotTotal        int64           `json:"pot_total"`
	Commission      int64           `json:"commission"`
	Net             int64           `json:"net"`
	Players         json.RawMessage `json:"players"`
	ActionLog       json.RawMessage `json:"action_log"`
	SettledAt       time.Time       `json:"settled_at"`
}

// DefaultRooms are the stock stake tiers seeded into an empty catalog.
var DefaultRooms = []Room{
	{Name: "Beginner", MinBet: 10, MaxBet: 100, BuyIn: 100, MaxPlayers: 6},
	{Name: "Intermediate", MinBet: 50, MaxBet: 500, BuyIn: 500, MaxPlayers: 6},
	{Name: "Advanced", MinBet: 100, MaxBet: 1000, BuyIn: 1000, MaxPlayers: 6},
	{Name: "VIP", MinBet: 500, MaxBet: 5000, BuyIn: 5000, MaxPlayers: 6},
}
