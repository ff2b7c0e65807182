package store

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// SettleSession pays the winner and records commission and the session
// summary in one transaction. A session already settled is left untouched and
// reports applied=false.
func (s *Store) SettleSession(ctx context.Context, st Settlement) (bool, error) {
	if st.Net < 0 || st.Commission < 0 {
		return false, errNegativeAmount
	}
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
INSERT INTO sessions (id, room_name, winner_id, winner_seat, winning_category, fold_win, pot_total, commission, net, players, action_log)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (id) DO NOTHING`,
		st.SessionID, st.RoomName, st.WinnerID, st.WinnerSeat, st.WinningCategory, st.FoldWin,
		st.PotTotal, st.Commission, st.Net, jsonText(st.Players), jsonText(st.ActionLog))
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}
	if _, err := creditTx(ctx, tx, st.WinnerID, st.Net, EntryGameWin, RefSession, st.SessionID); err != nil {
		return false, err
	}
	if st.Commission > 0 {
		if err := insertLedgerEntry(ctx, tx, HouseAccountID, EntryCommission, st.Commission, RefSession, st.SessionID); err != nil {
			return false, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) GetSettlement(ctx context.Context, sessionID string) (*Settlement, error) {
	var st Settlement
	var players, actions string
	err := s.Pool.QueryRow(ctx, `
SELECT id, room_name, winner_id, winner_seat, winning_category, fold_win, pot_total, commission, net, players::text, action_log::text, settled_at
FROM sessions WHERE id = $1`, sessionID).Scan(
		&st.SessionID, &st.RoomName, &st.WinnerID, &st.WinnerSeat, &st.WinningCategory, &st.FoldWin,
		&st.PotTotal, &st.Commission, &st.Net, &players, &actions, &st.SettledAt)
	if err != nil {
		return nil, mapNotFound(err)
	}
	st.Players = []byte(players)
	st.ActionLog = []byte(actions)
	return &st, nil
}

func (s *Store) CountSettlements(ctx context.Context, roomName string) (int64, error) {
	var c int64
	err := s.Pool.QueryRow(ctx, `SELECT COUNT(1) FROM sessions WHERE ($1 = '' OR room_name = $1)`, roomName).Scan(&c)
	return c, err
}

func jsonText(raw []byte) string {
	if len(raw) == 0 {
		return "null"
	}
	return string(raw)
}
