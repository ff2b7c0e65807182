package game

import "time"

// NewSession seats players in order. Each player's buy-in is already debited
// and goes straight into the pot.
func NewSession(id string, room RoomTemplate, players []Player, now time.Time) (*Session, error) {
	if err := room.Validate(); err != nil {
		return nil, err
	}
	if len(players) < 2 || len(players) > room.MaxPlayers {
		return nil, ErrNotEnoughSeats
	}
	s := &Session{
		ID:        id,
		Status:    StatusDealing,
		Room:      room,
		Seats:     make([]*Seat, 0, len(players)),
		CreatedAt: now,
	}
	for i, p := range players {
		s.Seats = append(s.Seats, &Seat{
			UserID:      p.UserID,
			DisplayName: p.DisplayName,
			Index:       i,
			State:       SeatActive,
		})
		s.commit(i, room.BuyIn)
	}
	return s, nil
}

func (s *Session) commit(seat int, amount int64) {
	s.Seats[seat].TotalCommitted += amount
	s.Pot.Total += amount
}

func (s *Session) DealHands(d *Deck) error {
	if s.Status != StatusDealing {
		return ErrSessionClosed
	}
	hands, err := Deal(d, len(s.Seats))
	if err != nil {
		return err
	}
	for i, h := range hands {
		s.Seats[i].Hand = h
	}
	s.Deck = d
	return nil
}

// StartBetting opens the first round with the first seat to act.
func (s *Session) StartBetting() {
	s.Status = StatusBetting
	s.RoundStake = s.Room.MinBet
	s.Round = 1
	s.TurnPointer = 0
	for i, seat := range s.Seats {
		if seat.State == SeatActive {
			s.TurnPointer = i
			break
		}
	}
	s.TurnGeneration++
}

// Apply records an action that already passed ValidateAction and, for calls
// and raises, whose debit already succeeded.
func (s *Session) Apply(seat int, a Action, reason string, now time.Time) ActionRecord {
	st := s.Seats[seat]
	var amount int64
	switch a.Kind {
	case ActionFold:
		if st.State == SeatActive {
			st.State = SeatFolded
		}
	case ActionCall:
		amount = s.RoundStake
		st.CurrentBet = amount
		s.commit(seat, amount)
	case ActionRaise:
		amount = a.Amount
		s.RoundStake = amount
		st.CurrentBet = amount
		s.commit(seat, amount)
	}
	s.TurnGeneration++
	rec := ActionRecord{
		Round:  s.Round,
		Seat:   seat,
		Action: a.Kind,
		Amount: amount,
		Reason: reason,
		At:     now,
	}
	s.ActionLog = append(s.ActionLog, rec)
	return rec
}

// Terminal reports whether betting is over. It never moves the turn.
func (s *Session) Terminal() OutcomeKind {
	active := s.ActiveSeats()
	if len(active) <= 1 {
		return OutcomeFoldWin
	}
	for _, idx := range active {
		if s.Seats[idx].CurrentBet != s.RoundStake {
			return OutcomeContinue
		}
	}
	return OutcomeShowdown
}

// AdvanceTurn moves TurnPointer to the next Active seat, wrapping. Passing
// seat zero again starts a new round.
func (s *Session) AdvanceTurn() {
	n := len(s.Seats)
	for step := 1; step <= n; step++ {
		idx := (s.TurnPointer + step) % n
		if s.Seats[idx].State != SeatActive {
			continue
		}
		if idx <= s.TurnPointer {
			s.Round++
		}
		s.TurnPointer = idx
		s.TurnGeneration++
		return
	}
}

func (s *Session) ActiveSeats() []int {
	out := make([]int, 0, len(s.Seats))
	for i, seat := range s.Seats {
		if seat.State == SeatActive {
			out = append(out, i)
		}
	}
	return out
}

func (s *Session) SeatOf(userID string) (int, bool) {
	for i, seat := range s.Seats {
		if seat.UserID == userID {
			return i, true
		}
	}
	return -1, false
}

// MarkDisconnected flags the user's seat. wasTurn is true when the seat was
// the one being waited on, which the caller must resolve as a fold.
func (s *Session) MarkDisconnected(userID string) (seat int, wasTurn bool, ok bool) {
	seat, ok = s.SeatOf(userID)
	if !ok {
		return -1, false, false
	}
	st := s.Seats[seat]
	if st.State == SeatDisconnected {
		return seat, false, true
	}
	wasTurn = s.Status == StatusBetting && s.TurnPointer == seat && st.State == SeatActive
	st.State = SeatDisconnected
	return seat, wasTurn, true
}

// Showdown picks the winner and fixes the pot split. With a single Active
// seat left it wins without comparison. If nobody is Active, the seats that
// never folded are compared, and failing that every seat.
func (s *Session) Showdown() Result {
	s.Status = StatusShowdown
	s.Pot.Settle()

	evals := make([]HandEvaluation, len(s.Seats))
	for i, seat := range s.Seats {
		evals[i] = Evaluate(seat.Hand)
	}

	contenders := s.ActiveSeats()
	if len(contenders) == 1 {
		w := contenders[0]
		return Result{WinnerSeat: w, WinnerID: s.Seats[w].UserID, FoldWin: true, Evaluations: evals}
	}
	if len(contenders) == 0 {
		for i, seat := range s.Seats {
			if seat.State != SeatFolded {
				contenders = append(contenders, i)
			}
		}
	}
	if len(contenders) == 0 {
		for i := range s.Seats {
			contenders = append(contenders, i)
		}
	}
	hands := make([]Hand, 0, len(contenders))
	for _, idx := range contenders {
		hands = append(hands, s.Seats[idx].Hand)
	}
	best, _ := FindWinner(hands)
	w := contenders[best]
	return Result{WinnerSeat: w, WinnerID: s.Seats[w].UserID, Evaluations: evals}
}

func (s *Session) MarkSettled() {
	s.Status = StatusSettled
}

// Committed sums every seat's contribution. It always equals Pot.Total.
func (s *Session) Committed() int64 {
	var sum int64
	for _, seat := range s.Seats {
		sum += seat.TotalCommitted
	}
	return sum
}

func (s *Session) UserIDs() []string {
	out := make([]string, 0, len(s.Seats))
	for _, seat := range s.Seats {
		out = append(out, seat.UserID)
	}
	return out
}
