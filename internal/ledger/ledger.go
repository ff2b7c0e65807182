package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"teenpatti-casino/internal/game"
	"teenpatti-casino/internal/store"
)

var ErrInsufficientFunds = errors.New("insufficient_funds")

// Store is the part of a storage backend the ledger writes through.
type Store interface {
	GetAccountBalance(ctx context.Context, userID string) (int64, error)
	Debit(ctx context.Context, userID string, amount int64, entryType, refType, refID string) (int64, error)
	Credit(ctx context.Context, userID string, amount int64, entryType, refType, refID string) (int64, error)
	SettleSession(ctx context.Context, st store.Settlement) (bool, error)
	ListLedgerEntries(ctx context.Context, userID string, limit int) ([]store.LedgerEntry, error)
}

// buyInLookback bounds how far back BuyInDebited searches a user's entries.
const buyInLookback = 50

type Ledger struct {
	Store Store
}

func New(s Store) *Ledger {
	return &Ledger{Store: s}
}

func (l *Ledger) Balance(ctx context.Context, userID string) (int64, error) {
	bal, err := l.Store.GetAccountBalance(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return 0, nil
	}
	return bal, err
}

func (l *Ledger) DebitBuyIn(ctx context.Context, userID, sessionID string, amount int64) (int64, error) {
	return l.debit(ctx, userID, amount, store.EntryBuyIn, sessionID)
}

func (l *Ledger) RefundBuyIn(ctx context.Context, userID, sessionID string, amount int64) (int64, error) {
	return l.Store.Credit(ctx, userID, amount, store.EntryBuyInRefund, store.RefSession, sessionID)
}

func (l *Ledger) DebitBet(ctx context.Context, userID, sessionID string, amount int64) (int64, error) {
	return l.debit(ctx, userID, amount, store.EntryBet, sessionID)
}

// BuyInDebited reports whether the user's buy-in for the session was booked.
// It resolves a debit whose reply was lost to a timeout.
func (l *Ledger) BuyInDebited(ctx context.Context, userID, sessionID string) (bool, error) {
	entries, err := l.Store.ListLedgerEntries(ctx, userID, buyInLookback)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.Type == store.EntryBuyIn && e.RefType == store.RefSession && e.RefID == sessionID {
			return true, nil
		}
	}
	return false, nil
}

func (l *Ledger) debit(ctx context.Context, userID string, amount int64, entryType, sessionID string) (int64, error) {
	bal, err := l.Store.Debit(ctx, userID, amount, entryType, store.RefSession, sessionID)
	if errors.Is(err, store.ErrInsufficientBalance) || errors.Is(err, store.ErrNotFound) {
		return 0, ErrInsufficientFunds
	}
	return bal, err
}

// Settle credits the winner's net share and books the house commission.
// Settling the same session twice is a no-op.
func (l *Ledger) Settle(ctx context.Context, st store.Settlement) error {
	if _, err := l.Store.SettleSession(ctx, st); err != nil {
		return fmt.Errorf("settle session %s: %w", st.SessionID, err)
	}
	return nil
}

type settledSeat struct {
	Seat           int                 `json:"seat"`
	UserID         string              `json:"user_id"`
	State          game.SeatState      `json:"state"`
	TotalCommitted int64               `json:"total_committed"`
	Cards          []string            `json:"cards"`
	Hand           game.HandEvaluation `json:"hand"`
}

// NewSettlement builds the settlement record for a session that reached
// showdown. The pot split must already be fixed.
func NewSettlement(s *game.Session, res game.Result) (store.Settlement, error) {
	seats := make([]settledSeat, 0, len(s.Seats))
	for i, seat := range s.Seats {
		var ev game.HandEvaluation
		if i < len(res.Evaluations) {
			ev = res.Evaluations[i]
		}
		seats = append(seats, settledSeat{
			Seat:           i,
			UserID:         seat.UserID,
			State:          seat.State,
			TotalCommitted: seat.TotalCommitted,
			Cards:          seat.Hand.Strings(),
			Hand:           ev,
		})
	}
	players, err := json.Marshal(seats)
	if err != nil {
		return store.Settlement{}, err
	}
	actions, err := json.Marshal(s.ActionLog)
	if err != nil {
		return store.Settlement{}, err
	}
	category := ""
	if res.WinnerSeat >= 0 && res.WinnerSeat < len(res.Evaluations) {
		category = res.Evaluations[res.WinnerSeat].Category.String()
	}
	return store.Settlement{
		SessionID:       s.ID,
		RoomName:        s.Room.Name,
		WinnerID:        res.WinnerID,
		WinnerSeat:      res.WinnerSeat,
		WinningCategory: category,
		FoldWin:         res.FoldWin,
		PotTotal:        s.Pot.Total,
		Commission:      s.Pot.Commission,
		Net:             s.Pot.Net,
		Players:         players,
		ActionLog:       actions,
	}, nil
}
