package coordinator

import (
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"teenpatti-casino/internal/game"
	"teenpatti-casino/internal/ledger"
	"teenpatti-casino/internal/lobby"
	"teenpatti-casino/internal/stream"
)

// formation is a quorum taken off a queue whose buy-ins are being debited.
type formation struct {
	sessionID string
	room      game.RoomTemplate
	players   []lobby.QueuedPlayer
	// dropped maps users who left mid-formation to the reason they gave.
	dropped   map[string]string
}

// tryForm takes quorums off the room's queue until fewer than two wait.
func (c *Coordinator) tryForm(room string) {
	tpl, ok := c.matcher.Room(room)
	if !ok {
		return
	}
	for {
		players := c.matcher.TakeQuorum(room)
		if players == nil {
			return
		}
		f := &formation{
			sessionID: c.opts.NewID(),
			room:      tpl,
			players:   players,
			dropped:   map[string]string{},
		}
		for _, p := range players {
			c.forming[p.UserID] = f
		}
		log.Info().Str("session_id", f.sessionID).Str("room", tpl.Name).Int("players", len(players)).Msg("quorum reached")
		go c.debitBuyIns(f)
	}
}

// debitBuyIns debits every player independently; one failure never undoes
// another player's debit.
func (c *Coordinator) debitBuyIns(f *formation) {
	errs := make([]error, len(f.players))
	var wg sync.WaitGroup
	for i, p := range f.players {
		wg.Add(1)
		go func(i int, userID string) {
			defer wg.Done()
			ctx, cancel := c.ledgerCtx()
			defer cancel()
			_, errs[i] = c.ledger.DebitBuyIn(ctx, userID, f.sessionID, f.room.BuyIn)
			if errs[i] != nil && !errors.Is(errs[i], ledger.ErrInsufficientFunds) {
				errs[i] = c.reconcileBuyIn(f, userID, errs[i])
			}
		}(i, p.UserID)
	}
	wg.Wait()
	c.post(&formationDone{f: f, errs: errs})
}

// reconcileBuyIn looks the debit up by its session reference when the
// ledger call failed without a verdict. A booked debit counts as success.
func (c *Coordinator) reconcileBuyIn(f *formation, userID string, debitErr error) error {
	ctx, cancel := c.ledgerCtx()
	defer cancel()
	booked, err := c.ledger.BuyInDebited(ctx, userID, f.sessionID)
	if err != nil {
		metricBuyInUnknown.Add(1)
		log.Error().Err(debitErr).AnErr("lookup_err", err).Str("user_id", userID).Str("session_id", f.sessionID).
			Int64("amount", f.room.BuyIn).Msg("buy-in debit outcome unknown")
		return debitErr
	}
	if booked {
		log.Warn().Err(debitErr).Str("user_id", userID).Str("session_id", f.sessionID).Msg("buy-in debit booked despite error")
		return nil
	}
	return debitErr
}

type formationDone struct {
	f    *formation
	errs []error
}

func (d *formationDone) name() string { return "formation_done" }

func (d *formationDone) handle(c *Coordinator) {
	f := d.f
	for _, p := range f.players {
		if c.forming[p.UserID] == f {
			delete(c.forming, p.UserID)
		}
	}
	seated := make([]lobby.QueuedPlayer, 0, len(f.players))
	for i, p := range f.players {
		err := d.errs[i]
		if reason, ok := f.dropped[p.UserID]; ok {
			if err == nil {
				c.refund(f.sessionID, p.UserID, f.room.BuyIn)
			}
			log.Info().Str("user_id", p.UserID).Str("session_id", f.sessionID).Msg("player left during formation")
			c.pub.Private("", p.UserID, stream.EventLeft, LeftEvent{Room: f.room.Name, Reason: reason})
			continue
		}
		if err != nil {
			if !errors.Is(err, ledger.ErrInsufficientFunds) {
				metricLedgerErrors.Add(1)
				log.Error().Err(err).Str("user_id", p.UserID).Str("session_id", f.sessionID).Msg("buy-in debit failed")
			}
			_, code := MapError(err)
			c.pub.Private("", p.UserID, stream.EventError, ErrorEvent{Code: code, Message: "buy-in debit failed"})
			continue
		}
		seated = append(seated, p)
	}

	if len(seated) < lobby.MinQuorum {
		c.unwindFormation(f, seated)
		return
	}

	players := make([]game.Player, 0, len(seated))
	for _, p := range seated {
		players = append(players, game.Player{UserID: p.UserID, DisplayName: p.DisplayName})
	}
	s, err := game.NewSession(f.sessionID, f.room, players, c.opts.Now())
	if err != nil {
		log.Error().Err(err).Str("session_id", f.sessionID).Msg("session create failed")
		for _, p := range seated {
			c.refund(f.sessionID, p.UserID, f.room.BuyIn)
		}
		return
	}
	if err := s.DealHands(c.opts.NewDeck()); err != nil {
		c.abort(s, err)
		return
	}

	rt := &sessionRuntime{session: s}
	c.sessions[s.ID] = rt
	for _, p := range seated {
		c.byUser[p.UserID] = s.ID
	}
	metricSessionsFormed.Add(1)
	metricSessionsActive.Add(1)
	log.Info().Str("session_id", s.ID).Str("room", f.room.Name).Int("seats", len(s.Seats)).Msg("session formed")

	c.broadcast(rt, stream.EventSessionFormed, newSessionFormedEvent(s))
	for i, seat := range s.Seats {
		c.pub.Private(s.ID, seat.UserID, stream.EventPrivateHand, PrivateHandEvent{Seat: i, Cards: seat.Hand.Strings()})
	}
	s.StartBetting()
	if s.Terminal() != game.OutcomeContinue {
		c.showdown(rt)
		return
	}
	c.startTurn(rt)
}

// unwindFormation handles a quorum lost to failed debits: survivors get
// their buy-in back and return to the head of the queue.
func (c *Coordinator) unwindFormation(f *formation, seated []lobby.QueuedPlayer) {
	back := make([]lobby.QueuedPlayer, 0, len(seated))
	for _, p := range seated {
		c.refund(f.sessionID, p.UserID, f.room.BuyIn)
		back = append(back, p)
	}
	log.Info().Str("session_id", f.sessionID).Int("requeued", len(back)).Msg("quorum lost")
	if len(back) == 0 {
		return
	}
	if err := c.matcher.Requeue(f.room.Name, back); err != nil {
		log.Error().Err(err).Str("room", f.room.Name).Msg("requeue failed")
		return
	}
	for _, p := range back {
		pos := 0
		for i, q := range c.matcher.Queue(f.room.Name) {
			if q.UserID == p.UserID {
				pos = i + 1
				break
			}
		}
		c.pub.Private("", p.UserID, stream.EventQueued, QueuedEvent{Room: f.room.Name, Position: pos, Requeued: true})
	}
	c.tryForm(f.room.Name)
}

// abort ends a session that could not be dealt and refunds every buy-in.
func (c *Coordinator) abort(s *game.Session, cause error) {
	metricSessionsAborted.Add(1)
	log.Error().Err(cause).Str("session_id", s.ID).Msg("session aborted")
	for _, seat := range s.Seats {
		c.refund(s.ID, seat.UserID, seat.TotalCommitted)
	}
	_, code := MapError(cause)
	c.pub.Broadcast(s.ID, s.UserIDs(), stream.EventSessionAborted, SessionAbortedEvent{SessionID: s.ID, Reason: code})
	c.pub.CloseSession(s.ID)
}

// refund returns a buy-in, retrying with backoff until the ledger accepts
// it or the coordinator shuts down.
func (c *Coordinator) refund(sessionID, userID string, amount int64) {
	go c.refundAttempt(sessionID, userID, amount, 1)
}

func (c *Coordinator) refundAttempt(sessionID, userID string, amount int64, attempt int) {
	ctx, cancel := c.ledgerCtx()
	_, err := c.ledger.RefundBuyIn(ctx, userID, sessionID, amount)
	cancel()
	if err == nil {
		return
	}
	metricLedgerErrors.Add(1)
	if c.ctx.Err() != nil {
		log.Error().Err(err).Str("session_id", sessionID).Str("user_id", userID).Int64("amount", amount).Msg("refund abandoned on shutdown")
		return
	}
	delay := retryDelay(c.opts.RetryBase, c.opts.RetryMaxDelay, attempt)
	log.Warn().Err(err).Str("session_id", sessionID).Str("user_id", userID).Dur("retry_in", delay).Msg("refund failed, will retry")
	c.opts.AfterFunc(delay, func() {
		c.refundAttempt(sessionID, userID, amount, attempt+1)
	})
}
