package coordinator

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"teenpatti-casino/internal/game"
	"teenpatti-casino/internal/ledger"
	"teenpatti-casino/internal/stream"
)

type sessionRuntime struct {
	session  *game.Session
	deadline time.Time
	stop     func() bool
	pending  *pendingBet
	result   *game.Result

	settling       bool
	settleAttempts int
	stopRetry      func() bool
}

// pendingBet is a call or raise whose debit is in flight.
type pendingBet struct {
	seat   int
	userID string
	action game.Action
	cost   int64
	reply  chan error
}

func (rt *sessionRuntime) stopTimer() {
	if rt.stop != nil {
		rt.stop()
		rt.stop = nil
	}
	if rt.stopRetry != nil {
		rt.stopRetry()
		rt.stopRetry = nil
	}
}

func (c *Coordinator) broadcast(rt *sessionRuntime, name string, data any) {
	c.pub.Broadcast(rt.session.ID, rt.session.UserIDs(), name, data)
}

// startTurn arms a fresh timer for TurnPointer and announces the turn.
func (c *Coordinator) startTurn(rt *sessionRuntime) {
	s := rt.session
	rt.deadline = c.opts.Now().Add(c.opts.TurnTimeout)
	c.armTimer(rt, c.opts.TurnTimeout)
	c.broadcast(rt, stream.EventTurnStarted, TurnStartedEvent{
		Seat:       s.TurnPointer,
		UserID:     s.Seats[s.TurnPointer].UserID,
		Round:      s.Round,
		RoundStake: s.RoundStake,
		PotTotal:   s.Pot.Total,
		Deadline:   rt.deadline.UnixMilli(),
	})
}

func (c *Coordinator) armTimer(rt *sessionRuntime, d time.Duration) {
	if rt.stop != nil {
		rt.stop()
	}
	id, seat, gen := rt.session.ID, rt.session.TurnPointer, rt.session.TurnGeneration
	rt.stop = c.opts.AfterFunc(d, func() {
		c.post(&turnTimeout{sessionID: id, seat: seat, generation: gen})
	})
}

// resumeTurn re-arms the current turn with whatever time it had left, or
// ends betting if seats dropped out while the turn was held.
func (c *Coordinator) resumeTurn(rt *sessionRuntime) {
	if rt.session.Seats[rt.session.TurnPointer].State != game.SeatActive {
		c.applyAction(rt, rt.session.TurnPointer, game.Fold(), ReasonDisconnect)
		return
	}
	if rt.session.Terminal() != game.OutcomeContinue {
		c.showdown(rt)
		return
	}
	remaining := rt.deadline.Sub(c.opts.Now())
	if remaining < 0 {
		remaining = 0
	}
	c.armTimer(rt, remaining)
}

func (c *Coordinator) act(rt *sessionRuntime, cmd *actCmd) {
	s := rt.session
	seat := cmd.seat
	if seat < 0 {
		var ok bool
		if seat, ok = s.SeatOf(cmd.userID); !ok {
			cmd.fail(game.ErrNotYourTurn)
			return
		}
	}
	if seat >= len(s.Seats) || s.Seats[seat].UserID != cmd.userID {
		cmd.fail(game.ErrNotYourTurn)
		return
	}
	if rt.pending != nil {
		cmd.fail(ErrActionPending)
		return
	}
	cost, err := game.ValidateAction(s, seat, cmd.action)
	if err != nil {
		cmd.fail(err)
		return
	}
	metricActionTotal.Add(1)
	if cmd.action.Kind == game.ActionFold {
		c.applyAction(rt, seat, cmd.action, "")
		replyErr(cmd.reply, nil)
		return
	}

	if rt.stop != nil {
		rt.stop()
		rt.stop = nil
	}
	bet := &pendingBet{seat: seat, userID: cmd.userID, action: cmd.action, cost: cost, reply: cmd.reply}
	rt.pending = bet
	sessionID := s.ID
	go func() {
		ctx, cancel := c.ledgerCtx()
		defer cancel()
		_, err := c.ledger.DebitBet(ctx, bet.userID, sessionID, bet.cost)
		c.post(&debitDone{sessionID: sessionID, bet: bet, err: err})
	}()
}

type debitDone struct {
	sessionID string
	bet       *pendingBet
	err       error
}

func (d *debitDone) name() string { return "debit_done" }

func (d *debitDone) fail(err error) { replyErr(d.bet.reply, err) }

func (d *debitDone) handle(c *Coordinator) {
	rt := c.sessions[d.sessionID]
	if rt == nil || rt.pending != d.bet {
		return
	}
	rt.pending = nil
	bet := d.bet
	switch {
	case d.err == nil:
		c.applyAction(rt, bet.seat, bet.action, "")
		replyErr(bet.reply, nil)
	case errors.Is(d.err, ledger.ErrInsufficientFunds):
		replyErr(bet.reply, d.err)
		c.resumeTurn(rt)
	default:
		metricLedgerErrors.Add(1)
		log.Error().Err(d.err).Str("session_id", d.sessionID).Str("user_id", bet.userID).Msg("bet debit failed, folding seat")
		c.applyAction(rt, bet.seat, game.Fold(), ReasonLedgerError)
		replyErr(bet.reply, fmt.Errorf("debit bet: %w", d.err))
	}
}

// applyAction records an accepted action, announces it and moves the
// session on: next turn, or showdown when betting is over.
func (c *Coordinator) applyAction(rt *sessionRuntime, seat int, a game.Action, reason string) {
	s := rt.session
	if rt.stop != nil {
		rt.stop()
		rt.stop = nil
	}
	rec := s.Apply(seat, a, reason, c.opts.Now())
	c.broadcast(rt, stream.EventActionApplied, ActionAppliedEvent{
		Seat:       seat,
		UserID:     s.Seats[seat].UserID,
		Action:     rec.Action,
		Amount:     rec.Amount,
		Reason:     reason,
		RoundStake: s.RoundStake,
		PotTotal:   s.Pot.Total,
		SeatState:  s.Seats[seat].State,
	})
	log.Debug().
		Str("session_id", s.ID).
		Int("seat", seat).
		Str("action", string(rec.Action)).
		Int64("amount", rec.Amount).
		Str("reason", reason).
		Msg("action applied")

	if s.Terminal() != game.OutcomeContinue {
		c.showdown(rt)
		return
	}
	s.AdvanceTurn()
	c.startTurn(rt)
}

type turnTimeout struct {
	sessionID  string
	seat       int
	generation uint64
}

func (t *turnTimeout) name() string { return "turn_timeout" }

func (t *turnTimeout) handle(c *Coordinator) {
	rt := c.sessions[t.sessionID]
	if rt == nil || rt.pending != nil {
		return
	}
	s := rt.session
	if s.Status != game.StatusBetting || s.TurnPointer != t.seat || s.TurnGeneration != t.generation {
		return
	}
	if s.Seats[t.seat].State != game.SeatActive {
		return
	}
	metricTurnTimeouts.Add(1)
	log.Info().Str("session_id", s.ID).Int("seat", t.seat).Msg("turn timed out")
	c.applyAction(rt, t.seat, game.Fold(), ReasonTimeout)
}

// disconnectSeat marks the user's seat as gone for the rest of the hand.
// A bet in flight is resolved when its debit completes.
func (c *Coordinator) disconnectSeat(rt *sessionRuntime, userID, reason string) {
	s := rt.session
	seat, wasTurn, ok := s.MarkDisconnected(userID)
	if !ok {
		return
	}
	log.Info().Str("session_id", s.ID).Int("seat", seat).Str("reason", reason).Msg("seat disconnected")
	if s.Status != game.StatusBetting || rt.pending != nil {
		return
	}
	if wasTurn {
		c.applyAction(rt, seat, game.Fold(), reason)
		return
	}
	if s.Terminal() != game.OutcomeContinue {
		c.showdown(rt)
	}
}
