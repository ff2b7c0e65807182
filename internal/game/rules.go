package game

import (
	"errors"
	"strings"
)

var (
	ErrInvalidAction  = errors.New("invalid_action")
	ErrNotYourTurn    = errors.New("not_your_turn")
	ErrDeckExhausted  = errors.New("deck_exhausted")
	ErrSessionClosed  = errors.New("session_closed")
	ErrInvalidRoom    = errors.New("invalid_room")
	ErrNotEnoughSeats = errors.New("not_enough_seats")
)

type ActionKind string

const (
	ActionFold  ActionKind = "fold"
	ActionCall  ActionKind = "call"
	ActionRaise ActionKind = "raise"
)

// Action is one of Fold, Call or Raise(amount). Build it with ParseAction or
// the constructors so the kind is always known.
type Action struct {
	Kind   ActionKind `json:"action"`
	Amount int64      `json:"amount,omitempty"`
}

func Fold() Action { return Action{Kind: ActionFold} }

func Call() Action { return Action{Kind: ActionCall} }

func Raise(amount int64) Action { return Action{Kind: ActionRaise, Amount: amount} }

func ParseAction(kind string, amount int64) (Action, error) {
	switch ActionKind(strings.ToLower(strings.TrimSpace(kind))) {
	case ActionFold:
		return Fold(), nil
	case ActionCall:
		return Call(), nil
	case ActionRaise:
		if amount <= 0 {
			return Action{}, ErrInvalidAction
		}
		return Raise(amount), nil
	default:
		return Action{}, ErrInvalidAction
	}
}

// ValidateAction checks turn order and stake bounds and returns the chips the
// action must debit. Balance is checked by the ledger debit itself.
func ValidateAction(s *Session, seat int, a Action) (int64, error) {
	if s.Status != StatusBetting {
		return 0, ErrSessionClosed
	}
	if seat != s.TurnPointer || seat < 0 || seat >= len(s.Seats) {
		return 0, ErrNotYourTurn
	}
	if s.Seats[seat].State != SeatActive {
		return 0, ErrNotYourTurn
	}
	switch a.Kind {
	case ActionFold:
		return 0, nil
	case ActionCall:
		return s.RoundStake, nil
	case ActionRaise:
		if a.Amount < 2*s.RoundStake || a.Amount > s.Room.MaxBet {
			return 0, ErrInvalidAction
		}
		return a.Amount, nil
	default:
		return 0, ErrInvalidAction
	}
}

func (r RoomTemplate) Validate() error {
	if strings.TrimSpace(r.Name) == "" || r.MinBet <= 0 || r.MaxBet < r.MinBet || r.BuyIn < 0 {
		return ErrInvalidRoom
	}
	if r.MaxPlayers < 2 || r.MaxPlayers > MaxDealPlayers {
		return ErrInvalidRoom
	}
	return nil
}
