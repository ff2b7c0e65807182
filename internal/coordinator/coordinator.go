package coordinator

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"teenpatti-casino/internal/game"
	"teenpatti-casino/internal/lobby"
	"teenpatti-casino/internal/store"
)

const (
	defaultTurnTimeout   = 30 * time.Second
	defaultRetryBase     = 500 * time.Millisecond
	defaultRetryMaxDelay = 30 * time.Second
	defaultLedgerTimeout = 5 * time.Second
	eventQueueSize       = 256
)

// Ledger is the chip ledger the coordinator debits and credits through.
type Ledger interface {
	Balance(ctx context.Context, userID string) (int64, error)
	DebitBuyIn(ctx context.Context, userID, sessionID string, amount int64) (int64, error)
	RefundBuyIn(ctx context.Context, userID, sessionID string, amount int64) (int64, error)
	BuyInDebited(ctx context.Context, userID, sessionID string) (bool, error)
	DebitBet(ctx context.Context, userID, sessionID string, amount int64) (int64, error)
	Settle(ctx context.Context, st store.Settlement) error
}

// Publisher delivers outbound events. Broadcast reaches the session stream
// and every member; Private reaches one user only.
type Publisher interface {
	Broadcast(sessionID string, members []string, event string, data any)
	Private(sessionID, userID, event string, data any)
	CloseSession(sessionID string)
}

type Options struct {
	TurnTimeout   time.Duration
	RetryBase     time.Duration
	RetryMaxDelay time.Duration
	LedgerTimeout time.Duration
	MaxQueue      int

	// AfterFunc schedules f after d and returns a stop function.
	AfterFunc func(d time.Duration, f func()) func() bool
	Now       func() time.Time
	NewDeck   func() *game.Deck
	NewID     func() string
}

func (o Options) withDefaults() Options {
	if o.TurnTimeout <= 0 {
		o.TurnTimeout = defaultTurnTimeout
	}
	if o.RetryBase <= 0 {
		o.RetryBase = defaultRetryBase
	}
	if o.RetryMaxDelay <= 0 {
		o.RetryMaxDelay = defaultRetryMaxDelay
	}
	if o.LedgerTimeout <= 0 {
		o.LedgerTimeout = defaultLedgerTimeout
	}
	if o.AfterFunc == nil {
		o.AfterFunc = func(d time.Duration, f func()) func() bool {
			return time.AfterFunc(d, f).Stop
		}
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.NewDeck == nil {
		var mu sync.Mutex
		rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
		o.NewDeck = func() *game.Deck {
			mu.Lock()
			defer mu.Unlock()
			return game.NewShuffledDeck(rnd)
		}
	}
	if o.NewID == nil {
		o.NewID = uuid.NewString
	}
	return o
}

// Coordinator owns the lobby and every live session. All state below the
// channel fields is touched only by the dispatch goroutine.
type Coordinator struct {
	ledger Ledger
	pub    Publisher
	opts   Options
	rooms  []game.RoomTemplate

	events    chan event
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc

	matcher  *lobby.Matcher
	joining  map[string]*joinCmd
	forming  map[string]*formation
	byUser   map[string]string
	sessions map[string]*sessionRuntime
}

// New builds a coordinator over the room catalog and starts its dispatch loop.
func New(rooms []game.RoomTemplate, led Ledger, pub Publisher, opts Options) (*Coordinator, error) {
	opts = opts.withDefaults()
	m, err := lobby.NewMatcher(rooms, opts.MaxQueue)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		ledger:   led,
		pub:      pub,
		opts:     opts,
		rooms:    m.Rooms(),
		events:   make(chan event, eventQueueSize),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
		matcher:  m,
		joining:  map[string]*joinCmd{},
		forming:  map[string]*formation{},
		byUser:   map[string]string{},
		sessions: map[string]*sessionRuntime{},
	}
	go c.run()
	return c, nil
}

// Close stops the dispatch loop. Sessions still in flight are abandoned.
func (c *Coordinator) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.cancel()
		<-c.stopped
	})
}

func (c *Coordinator) Rooms() []game.RoomTemplate {
	out := make([]game.RoomTemplate, len(c.rooms))
	copy(out, c.rooms)
	return out
}

func (c *Coordinator) run() {
	defer close(c.stopped)
	for {
		select {
		case <-c.done:
			for _, rt := range c.sessions {
				rt.stopTimer()
			}
			return
		case ev := <-c.events:
			c.dispatch(ev)
		}
	}
}

// dispatch runs one handler to completion. A panic is confined to the event
// that raised it.
func (c *Coordinator) dispatch(ev event) {
	defer func() {
		if r := recover(); r != nil {
			metricHandlerPanics.Add(1)
			log.Error().Interface("panic", r).Str("event", ev.name()).Msg("coordinator handler panic")
			if f, ok := ev.(failer); ok {
				f.fail(ErrInternal)
			}
		}
	}()
	ev.handle(c)
}

// post hands an event to the loop from any goroutine.
func (c *Coordinator) post(ev event) bool {
	select {
	case c.events <- ev:
		return true
	case <-c.done:
		return false
	}
}

func (c *Coordinator) ledgerCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.ctx, c.opts.LedgerTimeout)
}

func (c *Coordinator) alreadyJoined(userID string) bool {
	if _, ok := c.joining[userID]; ok {
		return true
	}
	if _, ok := c.matcher.QueuedRoom(userID); ok {
		return true
	}
	if _, ok := c.forming[userID]; ok {
		return true
	}
	_, ok := c.byUser[userID]
	return ok
}
