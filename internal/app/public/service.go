package public

import (
	"context"
	"errors"
	"strings"

	"teenpatti-casino/internal/coordinator"
	"teenpatti-casino/internal/game"
	"teenpatti-casino/internal/store"
)

const ledgerMaxRows = 500

// Store is the read side of the storage backend used by public queries.
type Store interface {
	GetAccountBalance(ctx context.Context, userID string) (int64, error)
	ListLedgerEntries(ctx context.Context, userID string, limit int) ([]store.LedgerEntry, error)
	GetSettlement(ctx context.Context, sessionID string) (*store.Settlement, error)
	CountSettlements(ctx context.Context, roomName string) (int64, error)
}

type Service struct {
	store Store
	coord *coordinator.Coordinator
}

func NewService(st Store, coord *coordinator.Coordinator) *Service {
	return &Service{store: st, coord: coord}
}

func (s *Service) Rooms(ctx context.Context) (*RoomsResponse, error) {
	items, err := s.coord.RoomStats(ctx)
	if err != nil {
		return nil, err
	}
	return &RoomsResponse{Items: items}, nil
}

func (s *Service) Sessions(ctx context.Context) (*SessionsResponse, error) {
	active, err := s.coord.ActiveSessionCount(ctx)
	if err != nil {
		return nil, err
	}
	settled, err := s.store.CountSettlements(ctx, "")
	if err != nil {
		return nil, err
	}
	return &SessionsResponse{ActiveSessions: active, SettledSessions: settled}, nil
}

// Session returns the live public view, falling back to the stored
// settlement once the session is gone from memory.
func (s *Service) Session(ctx context.Context, sessionID string) (*SessionResponse, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, ErrInvalidRequest
	}
	view, err := s.coord.PublicView(ctx, sessionID)
	if err == nil {
		return &SessionResponse{SessionID: sessionID, Live: &view}, nil
	}
	if !errors.Is(err, coordinator.ErrSessionNotFound) {
		return nil, err
	}
	rec, err := s.store.GetSettlement(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &SessionResponse{
		SessionID: sessionID,
		Settled: &SettledSession{
			RoomName:        rec.RoomName,
			WinnerID:        rec.WinnerID,
			WinnerSeat:      rec.WinnerSeat,
			WinningCategory: rec.WinningCategory,
			FoldWin:         rec.FoldWin,
			Pot:             game.Pot{Total: rec.PotTotal, Commission: rec.Commission, Net: rec.Net},
			Players:         rec.Players,
			ActionLog:       rec.ActionLog,
			SettledAt:       rec.SettledAt,
		},
	}, nil
}

// Player reports where the user is and, when seated, their own view of
// the table including their hand.
func (s *Service) Player(ctx context.Context, userID string) (*PlayerResponse, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrInvalidRequest
	}
	m, err := s.coord.Membership(ctx, userID)
	if err != nil {
		return nil, err
	}
	bal, err := s.store.GetAccountBalance(ctx, userID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	out := &PlayerResponse{Membership: m, Balance: bal}
	if m.Status == coordinator.MemberSeated {
		view, err := s.coord.PlayerView(ctx, m.SessionID, userID)
		if err == nil {
			out.Session = &view
		}
	}
	return out, nil
}

func (s *Service) Ledger(ctx context.Context, userID string, limit int) (*LedgerResponse, error) {
	limit = clampLimit(limit)
	items, err := s.store.ListLedgerEntries(ctx, strings.TrimSpace(userID), limit)
	if err != nil {
		return nil, err
	}
	return &LedgerResponse{Items: items, Limit: limit}, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > ledgerMaxRows {
		return ledgerMaxRows
	}
	return limit
}
