package coordinator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"teenpatti-casino/internal/game"
	"teenpatti-casino/internal/ledger"
	"teenpatti-casino/internal/lobby"
	"teenpatti-casino/internal/store"
)

type manualTimers struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
}

type manualTimer struct {
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newManualTimers() *manualTimers {
	return &manualTimers{now: time.Unix(1_700_000_000, 0)}
}

func (m *manualTimers) AfterFunc(d time.Duration, f func()) func() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &manualTimer{at: m.now.Add(d), f: f}
	m.timers = append(m.timers, t)
	return func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		if t.stopped || t.fired {
			return false
		}
		t.stopped = true
		return true
	}
}

func (m *manualTimers) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the clock and fires every timer that came due.
func (m *manualTimers) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	var due []func()
	for _, t := range m.timers {
		if t.stopped || t.fired || t.at.After(m.now) {
			continue
		}
		t.fired = true
		due = append(due, t.f)
	}
	m.mu.Unlock()
	for _, f := range due {
		f()
	}
}

func (m *manualTimers) Armed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

type recordedEvent struct {
	SessionID string
	UserID    string
	Members   []string
	Name      string
	Data      any
}

// recordingPublisher keeps every event. onBroadcast, when set before the
// first command, runs on the coordinator loop for each broadcast.
type recordingPublisher struct {
	mu          sync.Mutex
	events      []recordedEvent
	private     []recordedEvent
	closed      []string
	onBroadcast func(recordedEvent)
}

func (p *recordingPublisher) Broadcast(sessionID string, members []string, name string, data any) {
	ev := recordedEvent{SessionID: sessionID, Members: append([]string(nil), members...), Name: name, Data: data}
	p.mu.Lock()
	p.events = append(p.events, ev)
	hook := p.onBroadcast
	p.mu.Unlock()
	if hook != nil {
		hook(ev)
	}
}

func (p *recordingPublisher) Private(sessionID, userID, name string, data any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.private = append(p.private, recordedEvent{SessionID: sessionID, UserID: userID, Name: name, Data: data})
}

func (p *recordingPublisher) CloseSession(sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = append(p.closed, sessionID)
}

func (p *recordingPublisher) Broadcasts(name string) []recordedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []recordedEvent
	for _, ev := range p.events {
		if ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}

func (p *recordingPublisher) Privates(name string) []recordedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []recordedEvent
	for _, ev := range p.private {
		if ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}

type ledgerCall struct {
	Kind      string
	UserID    string
	SessionID string
	Amount    int64
}

// fakeLedger keeps balances in memory. settleFailures makes that many
// Settle calls fail before one succeeds. buyInGate holds buy-in debits until
// it is closed. buyInLostReply books a buy-in but still returns an error.
type fakeLedger struct {
	mu             sync.Mutex
	balances       map[string]int64
	calls          []ledgerCall
	settled        []store.Settlement
	settleCalls    int
	settleFailures int
	betErr         error
	buyInGate      chan struct{}
	buyInLostReply error
	lookupErr      error
}

func newFakeLedger(balances map[string]int64) *fakeLedger {
	return &fakeLedger{balances: balances}
}

func (l *fakeLedger) Balance(_ context.Context, userID string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[userID], nil
}

func (l *fakeLedger) debit(kind, userID, sessionID string, amount int64) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.balances[userID] < amount {
		return 0, ledger.ErrInsufficientFunds
	}
	l.balances[userID] -= amount
	l.calls = append(l.calls, ledgerCall{Kind: kind, UserID: userID, SessionID: sessionID, Amount: amount})
	return l.balances[userID], nil
}

func (l *fakeLedger) DebitBuyIn(_ context.Context, userID, sessionID string, amount int64) (int64, error) {
	l.mu.Lock()
	gate, lost := l.buyInGate, l.buyInLostReply
	l.mu.Unlock()
	if gate != nil {
		<-gate
	}
	bal, err := l.debit(store.EntryBuyIn, userID, sessionID, amount)
	if err == nil && lost != nil {
		return 0, lost
	}
	return bal, err
}

func (l *fakeLedger) BuyInDebited(_ context.Context, userID, sessionID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.lookupErr != nil {
		return false, l.lookupErr
	}
	for _, c := range l.calls {
		if c.Kind == store.EntryBuyIn && c.UserID == userID && c.SessionID == sessionID {
			return true, nil
		}
	}
	return false, nil
}

func (l *fakeLedger) DebitBet(_ context.Context, userID, sessionID string, amount int64) (int64, error) {
	l.mu.Lock()
	err := l.betErr
	l.mu.Unlock()
	if err != nil {
		return 0, err
	}
	return l.debit(store.EntryBet, userID, sessionID, amount)
}

func (l *fakeLedger) RefundBuyIn(_ context.Context, userID, sessionID string, amount int64) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[userID] += amount
	l.calls = append(l.calls, ledgerCall{Kind: store.EntryBuyInRefund, UserID: userID, SessionID: sessionID, Amount: amount})
	return l.balances[userID], nil
}

func (l *fakeLedger) Settle(_ context.Context, st store.Settlement) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.settleCalls++
	if l.settleFailures > 0 {
		l.settleFailures--
		return errors.New("ledger offline")
	}
	l.balances[st.WinnerID] += st.Net
	l.settled = append(l.settled, st)
	return nil
}

func (l *fakeLedger) BalanceOf(userID string) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[userID]
}

func (l *fakeLedger) Calls(kind string) []ledgerCall {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []ledgerCall
	for _, c := range l.calls {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

func (l *fakeLedger) Settled() []store.Settlement {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]store.Settlement(nil), l.settled...)
}

func (l *fakeLedger) SettleCalls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.settleCalls
}

type harness struct {
	c      *Coordinator
	led    Ledger
	pub    *recordingPublisher
	timers *manualTimers
}

// newHarness builds a coordinator over the stock rooms that deals from an
// unshuffled deck: with two players seat 0 holds A-Q-10 of clubs and seat 1
// holds K-J-9 of clubs.
func newHarness(t *testing.T, led Ledger, mutate func(*Options)) *harness {
	t.Helper()
	timers := newManualTimers()
	pub := &recordingPublisher{}
	opts := Options{
		TurnTimeout:   30 * time.Second,
		RetryBase:     100 * time.Millisecond,
		RetryMaxDelay: time.Second,
		AfterFunc:     timers.AfterFunc,
		Now:           timers.Now,
		NewDeck:       game.NewDeck,
	}
	if mutate != nil {
		mutate(&opts)
	}
	c, err := New(lobby.TemplatesFromCatalog(store.DefaultRooms), led, pub, opts)
	if err != nil {
		t.Fatalf("new coordinator: %v", err)
	}
	t.Cleanup(c.Close)
	return &harness{c: c, led: led, pub: pub, timers: timers}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func (h *harness) join(t *testing.T, room, userID string) JoinResult {
	t.Helper()
	res, err := h.c.Join(context.Background(), room, userID, "")
	if err != nil {
		t.Fatalf("join %s: %v", userID, err)
	}
	return res
}

// formPair seats p1 and p2 in the Beginner room and waits for the first turn.
func (h *harness) formPair(t *testing.T) string {
	t.Helper()
	h.join(t, "Beginner", "p1")
	h.join(t, "Beginner", "p2")
	waitFor(t, "first turn", func() bool { return len(h.pub.Broadcasts("turn-started")) == 1 })
	return h.pub.Broadcasts("session-formed")[0].SessionID
}

func (h *harness) settledEvent(t *testing.T) SessionSettledEvent {
	t.Helper()
	waitFor(t, "settlement", func() bool { return len(h.pub.Broadcasts("session-settled")) == 1 })
	return h.pub.Broadcasts("session-settled")[0].Data.(SessionSettledEvent)
}
