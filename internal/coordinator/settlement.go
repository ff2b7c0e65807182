package coordinator

import (
	"time"

	"github.com/rs/zerolog/log"

	"teenpatti-casino/internal/game"
	"teenpatti-casino/internal/ledger"
	"teenpatti-casino/internal/stream"
)

// showdown fixes the winner and starts settlement. The session stays in
// Showdown until the ledger accepts the credit.
func (c *Coordinator) showdown(rt *sessionRuntime) {
	if rt.stop != nil {
		rt.stop()
		rt.stop = nil
	}
	res := rt.session.Showdown()
	rt.result = &res
	log.Info().
		Str("session_id", rt.session.ID).
		Int("winner_seat", res.WinnerSeat).
		Str("winner_id", res.WinnerID).
		Bool("fold_win", res.FoldWin).
		Int64("pot", rt.session.Pot.Total).
		Msg("showdown")
	c.settle(rt)
}

func (c *Coordinator) settle(rt *sessionRuntime) {
	rec, err := ledger.NewSettlement(rt.session, *rt.result)
	if err != nil {
		c.retrySettle(rt, err)
		return
	}
	rec.SettledAt = c.opts.Now()
	rt.settling = true
	go func() {
		ctx, cancel := c.ledgerCtx()
		defer cancel()
		err := c.ledger.Settle(ctx, rec)
		c.post(&settleDone{sessionID: rec.SessionID, err: err})
	}()
}

// retrySettle schedules another settlement attempt. The winner's credit is
// never dropped; the delay doubles up to RetryMaxDelay.
func (c *Coordinator) retrySettle(rt *sessionRuntime, cause error) {
	rt.settleAttempts++
	delay := retryDelay(c.opts.RetryBase, c.opts.RetryMaxDelay, rt.settleAttempts)
	metricSettleRetries.Add(1)
	log.Warn().
		Err(cause).
		Str("session_id", rt.session.ID).
		Int("attempt", rt.settleAttempts).
		Dur("retry_in", delay).
		Msg("settlement failed, will retry")
	id := rt.session.ID
	rt.stopRetry = c.opts.AfterFunc(delay, func() {
		c.post(&settleRetry{sessionID: id})
	})
}

func retryDelay(base, maxDelay time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 30 {
		return maxDelay
	}
	delay := base * time.Duration(1<<(attempt-1))
	if delay > maxDelay || delay <= 0 {
		return maxDelay
	}
	return delay
}

type settleDone struct {
	sessionID string
	err       error
}

func (d *settleDone) name() string { return "settle_done" }

func (d *settleDone) handle(c *Coordinator) {
	rt := c.sessions[d.sessionID]
	if rt == nil {
		return
	}
	rt.settling = false
	if d.err != nil {
		metricLedgerErrors.Add(1)
		c.retrySettle(rt, d.err)
		return
	}
	c.finishSession(rt)
}

type settleRetry struct {
	sessionID string
}

func (r *settleRetry) name() string { return "settle_retry" }

func (r *settleRetry) handle(c *Coordinator) {
	rt := c.sessions[r.sessionID]
	if rt == nil || rt.settling || rt.session.Status != game.StatusShowdown {
		return
	}
	rt.stopRetry = nil
	c.settle(rt)
}

// finishSession announces the result and frees every seated user.
func (c *Coordinator) finishSession(rt *sessionRuntime) {
	s := rt.session
	s.MarkSettled()
	c.broadcast(rt, stream.EventSessionSettled, newSessionSettledEvent(s, *rt.result))
	for _, userID := range s.UserIDs() {
		if c.byUser[userID] == s.ID {
			delete(c.byUser, userID)
		}
	}
	delete(c.sessions, s.ID)
	c.pub.CloseSession(s.ID)
	metricSessionsSettled.Add(1)
	metricSessionsActive.Add(-1)
	log.Info().
		Str("session_id", s.ID).
		Str("winner_id", rt.result.WinnerID).
		Int64("net", s.Pot.Net).
		Int64("commission", s.Pot.Commission).
		Int("attempts", rt.settleAttempts+1).
		Msg("session settled")
}
