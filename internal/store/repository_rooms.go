package store

import "context"

func (s *Store) ListRooms(ctx context.Context) ([]Room, error) {
	rows, err := s.Pool.Query(ctx, `
SELECT id, name, min_bet, max_bet, buy_in, max_players, status, created_at
FROM rooms WHERE status = 'active' ORDER BY buy_in ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Room{}
	for rows.Next() {
		var r Room
		if err := rows.Scan(&r.ID, &r.Name, &r.MinBet, &r.MaxBet, &r.BuyIn, &r.MaxPlayers, &r.Status, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) CreateRoom(ctx context.Context, r Room) (string, error) {
	id := NewID()
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO rooms (id, name, min_bet, max_bet, buy_in, max_players, status) VALUES ($1,$2,$3,$4,$5,$6,'active')`,
		id, r.Name, r.MinBet, r.MaxBet, r.BuyIn, r.MaxPlayers)
	return id, err
}

func (s *Store) CountRooms(ctx context.Context) (int, error) {
	var c int
	if err := s.Pool.QueryRow(ctx, `SELECT COUNT(1) FROM rooms`).Scan(&c); err != nil {
		return 0, err
	}
	return c, nil
}

func (s *Store) EnsureDefaultRooms(ctx context.Context) error {
	c, err := s.CountRooms(ctx)
	if err != nil {
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
