package coordinator

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"teenpatti-casino/internal/game"
	"teenpatti-casino/internal/ledger"
	"teenpatti-casino/internal/lobby"
	"teenpatti-casino/internal/stream"
)

const (
	ReasonTimeout     = "timeout"
	ReasonDisconnect  = "disconnect"
	ReasonLeave       = "leave"
	ReasonLedgerError = "ledger_error"
)

type event interface {
	name() string
	handle(c *Coordinator)
}

// failer is implemented by events that carry a caller waiting for a reply.
type failer interface {
	fail(err error)
}

type JoinResult struct {
	Room     string `json:"room"`
	Position int    `json:"position"`
	Balance  int64  `json:"balance"`
}

// Join checks the user's balance against the room buy-in and queues them.
// A session forms as soon as the room holds a quorum.
func (c *Coordinator) Join(ctx context.Context, room, userID, displayName string) (JoinResult, error) {
	cmd := &joinCmd{room: room, userID: userID, displayName: displayName, reply: make(chan joinReply, 1)}
	r, err := await(ctx, c, cmd, cmd.reply)
	if err != nil {
		return JoinResult{}, err
	}
	return r.res, r.err
}

// Leave takes the user out of the room's waiting queue. A seated user
// forfeits the hand as if disconnected. Leaving while idle, or while playing
// in a different room, is a no-op.
func (c *Coordinator) Leave(ctx context.Context, room, userID string) error {
	cmd := &leaveCmd{room: room, userID: userID, reason: ReasonLeave, reply: make(chan error, 1)}
	err, waitErr := await(ctx, c, cmd, cmd.reply)
	if waitErr != nil {
		return waitErr
	}
	return err
}

// Disconnect is Leave without a room: the user's connection is gone.
func (c *Coordinator) Disconnect(ctx context.Context, userID string) error {
	cmd := &leaveCmd{userID: userID, reason: ReasonDisconnect, reply: make(chan error, 1)}
	err, waitErr := await(ctx, c, cmd, cmd.reply)
	if waitErr != nil {
		return waitErr
	}
	return err
}

// Act submits the user's action for a seat. A negative seat means the
// user's own seat. Call and raise return once the debit has settled.
func (c *Coordinator) Act(ctx context.Context, sessionID, userID string, seat int, action game.Action) error {
	cmd := &actCmd{sessionID: sessionID, userID: userID, seat: seat, action: action, reply: make(chan error, 1)}
	err, waitErr := await(ctx, c, cmd, cmd.reply)
	if waitErr != nil {
		return waitErr
	}
	return err
}

func await[T any](ctx context.Context, c *Coordinator, ev event, reply chan T) (T, error) {
	var zero T
	select {
	case c.events <- ev:
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-c.done:
		return zero, ErrCoordinatorClosed
	}
	select {
	case r := <-reply:
		return r, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-c.done:
		return zero, ErrCoordinatorClosed
	}
}

type joinReply struct {
	res JoinResult
	err error
}

type joinCmd struct {
	room        string
	userID      string
	displayName string
	reply       chan joinReply
}

func (cmd *joinCmd) name() string { return "join" }

func (cmd *joinCmd) fail(err error) {
	metricJoinErrors.Add(1)
	select {
	case cmd.reply <- joinReply{err: err}:
	default:
	}
}

func (cmd *joinCmd) handle(c *Coordinator) {
	metricJoinTotal.Add(1)
	room, ok := c.matcher.Room(cmd.room)
	if !ok {
		cmd.fail(lobby.ErrRoomNotFound)
		return
	}
	if c.alreadyJoined(cmd.userID) {
		cmd.fail(lobby.ErrAlreadyQueued)
		return
	}
	c.joining[cmd.userID] = cmd
	go func() {
		ctx, cancel := c.ledgerCtx()
		defer cancel()
		bal, err := c.ledger.Balance(ctx, cmd.userID)
		c.post(&balanceDone{cmd: cmd, room: room, balance: bal, err: err})
	}()
}

type balanceDone struct {
	cmd     *joinCmd
	room    game.RoomTemplate
	balance int64
	err     error
}

func (d *balanceDone) name() string { return "balance_done" }

func (d *balanceDone) fail(err error) { d.cmd.fail(err) }

func (d *balanceDone) handle(c *Coordinator) {
	cmd := d.cmd
	if c.joining[cmd.userID] != cmd {
		cmd.fail(ErrJoinCancelled)
		return
	}
	delete(c.joining, cmd.userID)
	if d.err != nil {
		metricLedgerErrors.Add(1)
		log.Error().Err(d.err).Str("user_id", cmd.userID).Msg("balance check failed")
		cmd.fail(fmt.Errorf("balance check: %w", d.err))
		return
	}
	if d.balance < d.room.BuyIn {
		cmd.fail(ledger.ErrInsufficientFunds)
		return
	}
	pos, err := c.matcher.Enqueue(d.room.Name, lobby.QueuedPlayer{
		UserID:      cmd.userID,
		DisplayName: cmd.displayName,
		EnqueuedAt:  c.opts.Now(),
	})
	if err != nil {
		cmd.fail(err)
		return
	}
	log.Info().Str("user_id", cmd.userID).Str("room", d.room.Name).Int("position", pos).Msg("player queued")
	c.pub.Private("", cmd.userID, stream.EventQueued, QueuedEvent{Room: d.room.Name, Position: pos})
	cmd.reply <- joinReply{res: JoinResult{Room: d.room.Name, Position: pos, Balance: d.balance}}
	c.tryForm(d.room.Name)
}

type leaveCmd struct {
	room   string
	userID string
	reason string
	reply  chan error
}

func (cmd *leaveCmd) name() string { return "leave" }

func (cmd *leaveCmd) fail(err error) { replyErr(cmd.reply, err) }

func (cmd *leaveCmd) handle(c *Coordinator) {
	if cmd.room != "" {
		tpl, ok := c.matcher.Room(cmd.room)
		if !ok {
			cmd.fail(lobby.ErrRoomNotFound)
			return
		}
		if m := c.membership(cmd.userID); m.Status != MemberIdle && !strings.EqualFold(m.Room, tpl.Name) {
			log.Debug().Str("user_id", cmd.userID).Str("room", cmd.room).Str("member_room", m.Room).Msg("leave for another room ignored")
			replyErr(cmd.reply, nil)
			return
		}
	}
	c.release(cmd.userID, cmd.reason)
	replyErr(cmd.reply, nil)
}

// release detaches the user from whatever stage of play they are in.
func (c *Coordinator) release(userID, reason string) {
	if _, ok := c.joining[userID]; ok {
		delete(c.joining, userID)
		return
	}
	if room, ok := c.matcher.Dequeue(userID); ok {
		log.Info().Str("user_id", userID).Str("room", room).Str("reason", reason).Msg("player left queue")
		c.pub.Private("", userID, stream.EventLeft, LeftEvent{Room: room, Reason: reason})
		return
	}
	if f, ok := c.forming[userID]; ok {
		f.dropped[userID] = reason
		return
	}
	if sessionID, ok := c.byUser[userID]; ok {
		if rt := c.sessions[sessionID]; rt != nil {
			c.disconnectSeat(rt, userID, reason)
		}
	}
}

type actCmd struct {
	sessionID string
	userID    string
	seat      int
	action    game.Action
	reply     chan error
}

func (cmd *actCmd) name() string { return "act" }

func (cmd *actCmd) fail(err error) {
	metricActionErrors.Add(1)
	replyErr(cmd.reply, err)
}

// replyErr never blocks; every reply channel holds exactly one answer.
func replyErr(ch chan error, err error) {
	select {
	case ch <- err:
	default:
	}
}

func (cmd *actCmd) handle(c *Coordinator) {
	rt := c.sessions[cmd.sessionID]
	if rt == nil {
		cmd.fail(ErrSessionNotFound)
		return
	}
	c.act(rt, cmd)
}

type queryCmd struct {
	fn   func()
	done chan struct{}
}

func (q *queryCmd) name() string { return "query" }

func (q *queryCmd) fail(error) { close(q.done) }

func (q *queryCmd) handle(*Coordinator) {
	q.fn()
	close(q.done)
}

// query runs fn on the dispatch goroutine and waits for it.
func (c *Coordinator) query(ctx context.Context, fn func()) error {
	q := &queryCmd{fn: fn, done: make(chan struct{})}
	select {
	case c.events <- q:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrCoordinatorClosed
	}
	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrCoordinatorClosed
	}
}
