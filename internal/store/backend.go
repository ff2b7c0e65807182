package store

import (
	"context"
	"fmt"
	"strings"
)

// Backend is the storage surface shared by the Postgres and SQLite stores.
type Backend interface {
	Ping(ctx context.Context) error
	Close()

	GetAccountBalance(ctx context.Context, userID string) (int64, error)
	Debit(ctx context.Context, userID string, amount int64, entryType, refType, refID string) (int64, error)
	Credit(ctx context.Context, userID string, amount int64, entryType, refType, refID string) (int64, error)
	EnsureAccount(ctx context.Context, userID string, initial int64) error
	ListLedgerEntries(ctx context.Context, userID string, limit int) ([]LedgerEntry, error)

	ListRooms(ctx context.Context) ([]Room, error)
	CreateRoom(ctx context.Context, r Room) (string, error)
	EnsureDefaultRooms(ctx context.Context) error

	SettleSession(ctx context.Context, st Settlement) (bool, error)
	GetSettlement(ctx context.Context, sessionID string) (*Settlement, error)
	CountSettlements(ctx context.Context, roomName string) (int64, error)
}

var (
	_ Backend = (*Store)(nil)
	_ Backend = (*SQLiteStore)(nil)
)

func Open(driver, postgresDSN, sqlitePath string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "postgres", "pg":
		if strings.TrimSpace(postgresDSN) == "" {
			return nil, fmt.Errorf("postgres driver requires POSTGRES_DSN")
		}
		st, err := New(postgresDSN)
		if err != nil {
			return nil, err
		}
		return st, nil
	case "", "sqlite":
		st, err := NewSQLite(sqlitePath)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}
