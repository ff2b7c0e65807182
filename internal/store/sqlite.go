package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is the embedded backend used for single-node runs and tests.
type SQLiteStore struct {
	DB *sql.DB
}

func NewSQLite(path string) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("empty sqlite database path")
	}
	if path != ":memory:" {
		parent := filepath.Dir(path)
		if parent != "" && parent != "." {
			if err := os.MkdirAll(parent, 0o755); err != nil {
				return nil, err
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, pragma := range []string{`PRAGMA busy_timeout = 5000;`, `PRAGMA journal_mode = WAL;`, `PRAGMA foreign_keys = ON;`} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := ensureSQLiteSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{DB: db}, nil
}

func ensureSQLiteSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS accounts (
    user_id TEXT PRIMARY KEY,
    balance INTEGER NOT NULL CHECK (balance >= 0),
    updated_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS ledger_entries (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    type TEXT NOT NULL,
    amount INTEGER NOT NULL,
    ref_type TEXT NOT NULL,
    ref_id TEXT NOT NULL,
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ledger_entries_user ON ledger_entries (user_id, created_at);
CREATE TABLE IF NOT EXISTS rooms (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    min_bet INTEGER NOT NULL,
    max_bet INTEGER NOT NULL,
    buy_in INTEGER NOT NULL,
    max_players INTEGER NOT NULL,
    status TEXT NOT NULL DEFAULT 'active',
    created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    room_name TEXT NOT NULL,
    winner_id TEXT NOT NULL,
    winner_seat INTEGER NOT NULL,
    winning_category TEXT NOT NULL,
    fold_win INTEGER NOT NULL,
    pot_total INTEGER NOT NULL,
    commission INTEGER NOT NULL,
    net INTEGER NOT NULL,
    players TEXT NOT NULL,
    action_log TEXT NOT NULL,
    settled_at INTEGER NOT NULL
);`)
	return err
}

func (s *SQLiteStore) Close() {
	if s.DB != nil {
		_ = s.DB.Close()
	}
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.DB.PingContext(ctx)
}

func mapSQLNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func nowMillis() int64 {
	return time.Now().UTC().UnixMilli()
}

func (s *SQLiteStore) GetAccountBalance(ctx context.Context, userID string) (int64, error) {
	var bal int64
	if err := s.DB.QueryRowContext(ctx, `SELECT balance FROM accounts WHERE user_id = ?`, userID).Scan(&bal); err != nil {
		return 0, mapSQLNotFound(err)
	}
	return bal, nil
}

func (s *SQLiteStore) Debit(ctx context.Context, userID string, amount int64, entryType, refType, refID string) (int64, error) {
	if amount < 0 {
		return 0, errNegativeAmount
	}
	tx, err := s.DB.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var bal int64
	if err := tx.QueryRowContext(ctx, `SELECT balance FROM accounts WHERE user_id = ?`, userID).Scan(&bal); err != nil {
		return 0, mapSQLNotFound(err)
	}
	if bal < amount {
		return 0, ErrInsufficientBalance
	}
	newBal := bal - amount
	if _, err := tx.ExecContext(ctx, `UPDATE accounts SET balance = ?, updated_at = ? WHERE user_id = ?`, newBal, nowMillis(), userID); err != nil {
		return 0, err
	}
	if err := insertSQLiteLedgerEntry(ctx, tx, userID, entryType, -amount, refType, refID); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return newBal, nil
}

func (s *SQLiteStore) Credit(ctx context.Context, userID string, amount int64, entryType, refType, refID string) (int64, error) {
	if amount < 0 {
		return 0, errNegativeAmount
	}
	tx, err := s.DB.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	newBal, err := sqliteCreditTx(ctx, tx, userID, amount, entryType, refType, refID)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return newBal, nil
}

func sqliteCreditTx(ctx context.Context, tx *sql.Tx, userID string, amount int64, entryType, refType, refID string) (int64, error) {
	var bal int64
	if err := tx.QueryRowContext(ctx, `SELECT balance FROM accounts WHERE user_id = ?`, userID).Scan(&bal); err != nil {
		return 0, mapSQLNotFound(err)
	}
	newBal := bal + amount
	if _, err := tx.ExecContext(ctx, `UPDATE accounts SET balance = ?, updated_at = ? WHERE user_id = ?`, newBal, nowMillis(), userID); err != nil {
		return 0, err
	}
	if err := insertSQLiteLedgerEntry(ctx, tx, userID, entryType, amount, refType, refID); err != nil {
		return 0, err
	}
	return newBal, nil
}

func insertSQLiteLedgerEntry(ctx context.Context, tx *sql.Tx, userID, entryType string, amount int64, refType, refID string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO ledger_entries (id, user_id, type, amount, ref_type, ref_id, created_at) VALUES (?,?,?,?,?,?,?)`,
		NewID(), userID, entryType, amount, refType, refID, nowMillis())
	return err
}

func (s *SQLiteStore) EnsureAccount(ctx context.Context, userID string, initial int64) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO accounts (user_id, balance, updated_at) VALUES (?,?,?) ON CONFLICT (user_id) DO NOTHING`,
		userID, initial, nowMillis())
	return err
}

func (s *SQLiteStore) ListLedgerEntries(ctx context.Context, userID string, limit int) ([]LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, user_id, type, amount, ref_type, ref_id, created_at
FROM ledger_entries
WHERE (? = '' OR user_id = ?)
ORDER BY created_at DESC, id DESC
LIMIT ?`, userID, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []LedgerEntry{}
	for rows.Next() {
		var e LedgerEntry
		var created int64
		if err := rows.Scan(&e.ID, &e.UserID, &e.Type, &e.Amount, &e.RefType, &e.RefID, &created); err != nil {
			return nil, err
		}
		e.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ListRooms(ctx context.Context) ([]Room, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, name, min_bet, max_bet, buy_in, max_players, status, created_at
FROM rooms WHERE status = 'active' ORDER BY buy_in ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Room{}
	for rows.Next() {
		var r Room
		var created int64
		if err := rows.Scan(&r.ID, &r.Name, &r.MinBet, &r.MaxBet, &r.BuyIn, &r.MaxPlayers, &r.Status, &created); err != nil {
			return nil, err
		}
		r.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) CreateRoom(ctx context.Context, r Room) (string, error) {
	id := NewID()
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO rooms (id, name, min_bet, max_bet, buy_in, max_players, status, created_at) VALUES (?,?,?,?,?,?,'active',?)`,
		id, r.Name, r.MinBet, r.MaxBet, r.BuyIn, r.MaxPlayers, nowMillis())
	return id, err
}

func (s *SQLiteStore) EnsureDefaultRooms(ctx context.Context) error {
	var c int
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(1) FROM rooms`).Scan(&c); err != nil {
		return err
	}
	if c > 0 {
		return nil
	}
	for _, r := range DefaultRooms {
		if _, err := s.CreateRoom(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) SettleSession(ctx context.Context, st Settlement) (bool, error) {
	if st.Net < 0 || st.Commission < 0 {
		return false, errNegativeAmount
	}
	tx, err := s.DB.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
INSERT INTO sessions (id, room_name, winner_id, winner_seat, winning_category, fold_win, pot_total, commission, net, players, action_log, settled_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT (id) DO NOTHING`,
		st.SessionID, st.RoomName, st.WinnerID, st.WinnerSeat, st.WinningCategory, st.FoldWin,
		st.PotTotal, st.Commission, st.Net, jsonText(st.Players), jsonText(st.ActionLog), nowMillis())
	if err != nil {
		return false, err
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return false, err
	}
	if _, err := sqliteCreditTx(ctx, tx, st.WinnerID, st.Net, EntryGameWin, RefSession, st.SessionID); err != nil {
		return false, err
	}
	if st.Commission > 0 {
		if err := insertSQLiteLedgerEntry(ctx, tx, HouseAccountID, EntryCommission, st.Commission, RefSession, st.SessionID); err != nil {
			return false, err
		}
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLiteStore) GetSettlement(ctx context.Context, sessionID string) (*Settlement, error) {
	var st Settlement
	var players, actions string
	var settled int64
	err := s.DB.QueryRowContext(ctx, `
SELECT id, room_name, winner_id, winner_seat, winning_category, fold_win, pot_total, commission, net, players, action_log, settled_at
FROM sessions WHERE id = ?`, sessionID).Scan(
		&st.SessionID, &st.RoomName, &st.WinnerID, &st.WinnerSeat, &st.WinningCategory, &st.FoldWin,
		&st.PotTotal, &st.Commission, &st.Net, &players, &actions, &settled)
	if err != nil {
		return nil, mapSQLNotFound(err)
	}
	st.Players = []byte(players)
	st.ActionLog = []byte(actions)
	st.SettledAt = time.UnixMilli(settled).UTC()
	return &st, nil
}

func (s *SQLiteStore) CountSettlements(ctx context.Context, roomName string) (int64, error) {
	var c int64
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(1) FROM sessions WHERE (? = '' OR room_name = ?)`, roomName, roomName).Scan(&c)
	return c, err
}
