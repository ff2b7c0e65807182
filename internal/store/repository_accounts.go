package store

import (
	"context"

	"github.com/jackc/pgx/v5"
)

func (s *Store) GetAccountBalance(ctx context.Context, userID string) (int64, error) {
	var bal int64
	err := s.Pool.QueryRow(ctx, `SELECT balance FROM accounts WHERE user_id = $1`, userID).Scan(&bal)
	if err != nil {
		return 0, mapNotFound(err)
	}
	return bal, nil
}

func (s *Store) Debit(ctx context.Context, userID string, amount int64, entryType, refType, refID string) (int64, error) {
	if amount < 0 {
		return 0, errNegativeAmount
	}
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var bal int64
	if err := tx.QueryRow(ctx, `SELECT balance FROM accounts WHERE user_id = $1 FOR UPDATE`, userID).Scan(&bal); err != nil {
		return 0, mapNotFound(err)
	}
	if bal < amount {
		return 0, ErrInsufficientBalance
	}
	newBal := bal - amount
	if _, err := tx.Exec(ctx, `UPDATE accounts SET balance = $1, updated_at = now() WHERE user_id = $2`, newBal, userID); err != nil {
		return 0, err
	}
	if err := insertLedgerEntry(ctx, tx, userID, entryType, -amount, refType, refID); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return newBal, nil
}

func (s *Store) Credit(ctx context.Context, userID string, amount int64, entryType, refType, refID string) (int64, error) {
	if amount < 0 {
		return 0, errNegativeAmount
	}
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	newBal, err := creditTx(ctx, tx, userID, amount, entryType, refType, refID)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return newBal, nil
}

func creditTx(ctx context.Context, tx pgx.Tx, userID string, amount int64, entryType, refType, refID string) (int64, error) {
	var bal int64
	if err := tx.QueryRow(ctx, `SELECT balance FROM accounts WHERE user_id = $1 FOR UPDATE`, userID).Scan(&bal); err != nil {
		return 0, mapNotFound(err)
	}
	newBal := bal + amount
	if _, err := tx.Exec(ctx, `UPDATE accounts SET balance = $1, updated_at = now() WHERE user_id = $2`, newBal, userID); err != nil {
		return 0, err
	}
	if err := insertLedgerEntry(ctx, tx, userID, entryType, amount, refType, refID); err != nil {
		return 0, err
	}
	return newBal, nil
}

func insertLedgerEntry(ctx context.Context, tx pgx.Tx, userID, entryType string, amount int64, refType, refID string) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO ledger_entries (id, user_id, type, amount, ref_type, ref_id) VALUES ($1,$2,$3,$4,$5,$6)`,
		NewID(), userID, entryType, amount, refType, refID)
	return err
}

func (s *Store) EnsureAccount(ctx context.Context, userID string, initial int64) error {
	_, err := s.Pool.Exec(ctx, `INSERT INTO accounts (user_id, balance) VALUES ($1,$2) ON CONFLICT (user_id) DO NOTHING`, userID, initial)
	return err
}

func (s *Store) ListLedgerEntries(ctx context.Context, userID string, limit int) ([]LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.Pool.Query(ctx, `
SELECT id, user_id, type, amount, ref_type, ref_id, created_at
FROM ledger_entries
WHERE ($1 = '' OR user_id = $1)
ORDER BY created_at DESC, id DESC
LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []LedgerEntry{}
	for rows.Next() {
		var e LedgerEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Type, &e.Amount, &e.RefType, &e.RefID, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
