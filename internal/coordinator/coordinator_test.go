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

func funded(ids ...string) map[string]int64 {
	out := make(map[string]int64, len(ids))
	for _, id := range ids {
		out[id] = 1000
	}
	return out
}

func TestThreeJoinsFormOneSessionOfTwo(t *testing.T) {
	led := newFakeLedger(funded("p1", "p2", "p3"))
	h := newHarness(t, led, nil)
	ctx := context.Background()

	if res := h.join(t, "Beginner", "p1"); res.Position != 1 {
		t.Fatalf("p1 position = %d, want 1", res.Position)
	}
	h.join(t, "Beginner", "p2")
	if res := h.join(t, "Beginner", "p3"); res.Position != 1 {
		t.Fatalf("p3 position = %d, want 1", res.Position)
	}
	waitFor(t, "session formed", func() bool { return len(h.pub.Broadcasts("turn-started")) == 1 })

	formed := h.pub.Broadcasts("session-formed")
	if len(formed) != 1 {
		t.Fatalf("formed sessions = %d, want 1", len(formed))
	}
	ev := formed[0].Data.(SessionFormedEvent)
	if len(ev.Seats) != 2 || ev.Seats[0].UserID != "p1" || ev.Seats[1].UserID != "p2" {
		t.Fatalf("seats = %+v", ev.Seats)
	}
	if ev.PotTotal != 200 {
		t.Fatalf("pot = %d, want 200", ev.PotTotal)
	}
	if got := len(led.Calls(store.EntryBuyIn)); got != 2 {
		t.Fatalf("buy-in debits = %d, want 2", got)
	}

	m, err := h.c.Membership(ctx, "p3")
	if err != nil {
		t.Fatalf("membership: %v", err)
	}
	if m.Status != MemberQueued || m.Room != "Beginner" {
		t.Fatalf("p3 membership = %+v", m)
	}
	m, _ = h.c.Membership(ctx, "p1")
	if m.Status != MemberSeated || m.SessionID != ev.SessionID {
		t.Fatalf("p1 membership = %+v", m)
	}

	turn := h.pub.Broadcasts("turn-started")[0].Data.(TurnStartedEvent)
	if turn.Seat != 0 || turn.RoundStake != 10 || turn.PotTotal != 200 {
		t.Fatalf("turn = %+v", turn)
	}

	rooms, err := h.c.RoomStats(ctx)
	if err != nil {
		t.Fatalf("room stats: %v", err)
	}
	if rooms[0].Name != "Beginner" || rooms[0].Waiting != 1 || rooms[0].ActiveSessions != 1 {
		t.Fatalf("beginner stats = %+v", rooms[0])
	}
}

func TestPrivateHandsOnlyReachTheirOwner(t *testing.T) {
	h := newHarness(t, newFakeLedger(funded("p1", "p2")), nil)
	h.formPair(t)

	hands := h.pub.Privates("private-hand")
	if len(hands) != 2 {
		t.Fatalf("private hands = %d, want 2", len(hands))
	}
	for _, ev := range hands {
		data := ev.Data.(PrivateHandEvent)
		want := map[string]int{"p1": 0, "p2": 1}[ev.UserID]
		if data.Seat != want || len(data.Cards) != 3 {
			t.Fatalf("private hand for %s = %+v", ev.UserID, data)
		}
	}
	if got := h.pub.Broadcasts("private-hand"); len(got) != 0 {
		t.Fatalf("private hand broadcast to the session: %+v", got)
	}
	view, err := h.c.PublicView(context.Background(), hands[0].SessionID)
	if err != nil {
		t.Fatalf("public view: %v", err)
	}
	for _, seat := range view.Seats {
		if len(seat.Cards) != 0 {
			t.Fatalf("public view leaks cards: %+v", seat)
		}
	}
}

func TestRaiseThenCallDebitsRaisedStake(t *testing.T) {
	led := newFakeLedger(funded("p1", "p2"))
	h := newHarness(t, led, nil)
	sessionID := h.formPair(t)
	ctx := context.Background()

	if err := h.c.Act(ctx, sessionID, "p1", 0, game.Raise(20)); err != nil {
		t.Fatalf("raise: %v", err)
	}
	turn := h.pub.Broadcasts("turn-started")[1].Data.(TurnStartedEvent)
	if turn.Seat != 1 || turn.RoundStake != 20 || turn.PotTotal != 220 {
		t.Fatalf("second turn = %+v", turn)
	}
	if err := h.c.Act(ctx, sessionID, "p2", 1, game.Call()); err != nil {
		t.Fatalf("call: %v", err)
	}

	bets := led.Calls(store.EntryBet)
	if len(bets) != 2 || bets[0].Amount != 20 || bets[1].Amount != 20 || bets[1].UserID != "p2" {
		t.Fatalf("bets = %+v", bets)
	}

	settled := h.settledEvent(t)
	if settled.WinnerID != "p1" || settled.FoldWin || settled.WinningCategory != "color" {
		t.Fatalf("settled = %+v", settled)
	}
	if settled.Pot.Total != 240 || settled.Pot.Commission != 7 || settled.Pot.Net != 233 {
		t.Fatalf("pot = %+v", settled.Pot)
	}
	if len(settled.AllHands) != 2 || len(settled.AllHands[1].Cards) != 3 {
		t.Fatalf("all hands = %+v", settled.AllHands)
	}

	var debited int64
	for _, c := range append(led.Calls(store.EntryBuyIn), led.Calls(store.EntryBet)...) {
		debited += c.Amount
	}
	if debited != settled.Pot.Total {
		t.Fatalf("debited %d, pot %d", debited, settled.Pot.Total)
	}
	if got := led.BalanceOf("p1"); got != 1000-100-20+233 {
		t.Fatalf("p1 balance = %d", got)
	}
	if got := led.BalanceOf("p2"); got != 880 {
		t.Fatalf("p2 balance = %d, want 880", got)
	}

	if _, err := h.c.PublicView(ctx, sessionID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected settled session to be removed, got %v", err)
	}
	m, _ := h.c.Membership(ctx, "p2")
	if m.Status != MemberIdle {
		t.Fatalf("p2 membership = %+v, want idle", m)
	}
}

func TestTurnTimeoutFoldsAndAwardsPot(t *testing.T) {
	h := newHarness(t, newFakeLedger(funded("p1", "p2")), nil)
	h.formPair(t)

	h.timers.Advance(29 * time.Second)
	if got := len(h.pub.Broadcasts("action-applied")); got != 0 {
		t.Fatalf("early timeout applied %d actions", got)
	}
	h.timers.Advance(time.Second)

	settled := h.settledEvent(t)
	if settled.WinnerID != "p2" || !settled.FoldWin {
		t.Fatalf("settled = %+v", settled)
	}
	if settled.Pot.Commission != 6 || settled.Pot.Net != 194 {
		t.Fatalf("pot = %+v", settled.Pot)
	}
	applied := h.pub.Broadcasts("action-applied")[0].Data.(ActionAppliedEvent)
	if applied.Action != game.ActionFold || applied.Reason != ReasonTimeout || applied.Seat != 0 {
		t.Fatalf("applied = %+v", applied)
	}
}

func TestStaleTimerIsIgnored(t *testing.T) {
	h := newHarness(t, newFakeLedger(funded("p1", "p2")), nil)
	sessionID := h.formPair(t)
	ctx := context.Background()

	view, _ := h.c.PublicView(ctx, sessionID)
	if err := h.c.Act(ctx, sessionID, "p1", 0, game.Call()); err != nil {
		t.Fatalf("call: %v", err)
	}
	h.c.post(&turnTimeout{sessionID: sessionID, seat: 0, generation: 1})
	h.c.post(&turnTimeout{sessionID: sessionID, seat: 1, generation: 1})

	after, err := h.c.PublicView(ctx, sessionID)
	if err != nil {
		t.Fatalf("public view: %v", err)
	}
	if len(after.ActionLog) != len(view.ActionLog)+1 {
		t.Fatalf("action log = %+v", after.ActionLog)
	}
	if after.TurnPointer != 1 || after.Seats[1].State != string(game.SeatActive) {
		t.Fatalf("stale timer changed the session: %+v", after)
	}
	if h.timers.Armed() != 1 {
		t.Fatalf("armed timers = %d, want 1", h.timers.Armed())
	}
}

func TestDisconnectOnTurnFolds(t *testing.T) {
	h := newHarness(t, newFakeLedger(funded("p1", "p2")), nil)
	h.formPair(t)

	if err := h.c.Disconnect(context.Background(), "p1"); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	settled := h.settledEvent(t)
	if settled.WinnerID != "p2" || !settled.FoldWin {
		t.Fatalf("settled = %+v", settled)
	}
	applied := h.pub.Broadcasts("action-applied")[0].Data.(ActionAppliedEvent)
	if applied.Reason != ReasonDisconnect || applied.SeatState != game.SeatDisconnected {
		t.Fatalf("applied = %+v", applied)
	}
}

func TestDisconnectOffTurnEndsHeadsUp(t *testing.T) {
	h := newHarness(t, newFakeLedger(funded("p1", "p2")), nil)
	h.formPair(t)

	if err := h.c.Disconnect(context.Background(), "p2"); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	settled := h.settledEvent(t)
	if settled.WinnerID != "p1" || !settled.FoldWin {
		t.Fatalf("settled = %+v", settled)
	}
	if got := len(h.pub.Broadcasts("action-applied")); got != 0 {
		t.Fatalf("off-turn disconnect applied %d actions", got)
	}
}

func TestJoinWithoutBuyInIsRejected(t *testing.T) {
	led := newFakeLedger(map[string]int64{"poor": 50})
	h := newHarness(t, led, nil)
	ctx := context.Background()

	if _, err := h.c.Join(ctx, "Beginner", "poor", ""); !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	m, _ := h.c.Membership(ctx, "poor")
	if m.Status != MemberIdle {
		t.Fatalf("membership = %+v, want idle", m)
	}
	if _, err := h.c.Join(ctx, "High Rollers", "poor", ""); !errors.Is(err, lobby.ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
}

func TestBetBeyondBalanceLeavesSessionUntouched(t *testing.T) {
	led := newFakeLedger(map[string]int64{"p1": 110, "p2": 1000})
	h := newHarness(t, led, nil)
	sessionID := h.formPair(t)
	ctx := context.Background()

	if err := h.c.Act(ctx, sessionID, "p1", 0, game.Raise(20)); !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	view, _ := h.c.PublicView(ctx, sessionID)
	if len(view.ActionLog) != 0 || view.TurnPointer != 0 || view.Pot.Total != 200 || view.RoundStake != 10 {
		t.Fatalf("session mutated: %+v", view)
	}
	if h.timers.Armed() != 1 {
		t.Fatalf("armed timers = %d, want 1", h.timers.Armed())
	}
	if err := h.c.Act(ctx, sessionID, "p1", 0, game.Call()); err != nil {
		t.Fatalf("call after failed raise: %v", err)
	}
	if got := led.BalanceOf("p1"); got != 0 {
		t.Fatalf("p1 balance = %d, want 0", got)
	}
}

func TestBetLedgerFailureFoldsSeat(t *testing.T) {
	led := newFakeLedger(funded("p1", "p2"))
	led.betErr = errors.New("connection reset")
	h := newHarness(t, led, nil)
	sessionID := h.formPair(t)

	err := h.c.Act(context.Background(), sessionID, "p1", 0, game.Call())
	if err == nil || errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected ledger error, got %v", err)
	}
	settled := h.settledEvent(t)
	if settled.WinnerID != "p2" {
		t.Fatalf("winner = %s, want p2", settled.WinnerID)
	}
	applied := h.pub.Broadcasts("action-applied")[0].Data.(ActionAppliedEvent)
	if applied.Reason != ReasonLedgerError {
		t.Fatalf("reason = %q", applied.Reason)
	}
}

func TestActRejectsBadCommands(t *testing.T) {
	h := newHarness(t, newFakeLedger(funded("p1", "p2")), nil)
	sessionID := h.formPair(t)
	ctx := context.Background()

	cases := []struct {
		name    string
		session string
		user    string
		seat    int
		action  game.Action
		want    error
	}{
		{"unknown session", "nope", "p1", 0, game.Call(), ErrSessionNotFound},
		{"out of turn", sessionID, "p2", 1, game.Call(), game.ErrNotYourTurn},
		{"someone else's seat", sessionID, "p2", 0, game.Call(), game.ErrNotYourTurn},
		{"raise below double", sessionID, "p1", 0, game.Raise(15), game.ErrInvalidAction},
		{"raise above max", sessionID, "p1", 0, game.Raise(200), game.ErrInvalidAction},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := h.c.Act(ctx, tc.session, tc.user, tc.seat, tc.action); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
	view, _ := h.c.PublicView(ctx, sessionID)
	if len(view.ActionLog) != 0 {
		t.Fatalf("rejected commands mutated the log: %+v", view.ActionLog)
	}
	if err := h.c.Act(ctx, sessionID, "p1", -1, game.Fold()); err != nil {
		t.Fatalf("fold on own seat: %v", err)
	}
}

func TestJoinTwiceIsRejected(t *testing.T) {
	h := newHarness(t, newFakeLedger(funded("p1", "p2")), nil)
	h.formPair(t)
	if _, err := h.c.Join(context.Background(), "VIP", "p1", ""); !errors.Is(err, lobby.ErrAlreadyQueued) {
		t.Fatalf("expected ErrAlreadyQueued, got %v", err)
	}
}

func TestLeaveQueue(t *testing.T) {
	h := newHarness(t, newFakeLedger(funded("p1")), nil)
	ctx := context.Background()
	h.join(t, "Advanced", "p1")
	if err := h.c.Leave(ctx, "Advanced", "p1"); err != nil {
		t.Fatalf("leave: %v", err)
	}
	left := h.pub.Privates("left")
	if len(left) != 1 || left[0].Data.(LeftEvent).Room != "Advanced" {
		t.Fatalf("left events = %+v", left)
	}
	if err := h.c.Leave(ctx, "Advanced", "p1"); err != nil {
		t.Fatalf("second leave: %v", err)
	}
	if err := h.c.Leave(ctx, "Nowhere", "p1"); !errors.Is(err, lobby.ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
	h.join(t, "Advanced", "p1")
}

func TestLeaveIgnoresOtherRooms(t *testing.T) {
	h := newHarness(t, newFakeLedger(funded("p1", "p2", "p3")), nil)
	ctx := context.Background()

	h.join(t, "Beginner", "p3")
	if err := h.c.Leave(ctx, "VIP", "p3"); err != nil {
		t.Fatalf("leave other room: %v", err)
	}
	m, _ := h.c.Membership(ctx, "p3")
	if m.Status != MemberQueued || m.Room != "Beginner" {
		t.Fatalf("p3 membership = %+v, want queued in Beginner", m)
	}
	if got := h.pub.Privates("left"); len(got) != 0 {
		t.Fatalf("left events = %+v", got)
	}
	if err := h.c.Leave(ctx, "Beginner", "p3"); err != nil {
		t.Fatalf("leave: %v", err)
	}

	sessionID := h.formPair(t)
	if err := h.c.Leave(ctx, "Intermediate", "p1"); err != nil {
		t.Fatalf("leave other room while seated: %v", err)
	}
	view, err := h.c.PublicView(ctx, sessionID)
	if err != nil {
		t.Fatalf("public view: %v", err)
	}
	if view.Seats[0].State != string(game.SeatActive) {
		t.Fatalf("seat 0 state = %s, want active", view.Seats[0].State)
	}
}

// gateBuyIns holds buy-in debits until the returned func runs.
func gateBuyIns(t *testing.T, led *fakeLedger) func() {
	t.Helper()
	gate := make(chan struct{})
	led.buyInGate = gate
	release := sync.OnceFunc(func() { close(gate) })
	t.Cleanup(release)
	return release
}

func waitForming(t *testing.T, h *harness, users ...string) {
	t.Helper()
	waitFor(t, "formation", func() bool {
		for _, u := range users {
			m, err := h.c.Membership(context.Background(), u)
			if err != nil || m.Status != MemberForming {
				return false
			}
		}
		return true
	})
}

func TestLeaveDuringFormationRefundsEveryone(t *testing.T) {
	led := newFakeLedger(funded("p1", "p2"))
	release := gateBuyIns(t, led)
	h := newHarness(t, led, nil)
	ctx := context.Background()

	h.join(t, "Beginner", "p1")
	h.join(t, "Beginner", "p2")
	waitForming(t, h, "p1", "p2")

	if err := h.c.Disconnect(ctx, "p1"); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	if err := h.c.Leave(ctx, "Beginner", "p2"); err != nil {
		t.Fatalf("leave: %v", err)
	}
	release()

	waitFor(t, "refunds", func() bool { return len(led.Calls(store.EntryBuyInRefund)) == 2 })
	if led.BalanceOf("p1") != 1000 || led.BalanceOf("p2") != 1000 {
		t.Fatalf("balances = %d %d, want 1000 1000", led.BalanceOf("p1"), led.BalanceOf("p2"))
	}
	if got := h.pub.Broadcasts("session-formed"); len(got) != 0 {
		t.Fatalf("session formed without players: %+v", got)
	}
	if got := led.SettleCalls(); got != 0 {
		t.Fatalf("settle calls = %d, want 0", got)
	}
	reasons := map[string]string{}
	for _, ev := range h.pub.Privates("left") {
		reasons[ev.UserID] = ev.Data.(LeftEvent).Reason
	}
	if reasons["p1"] != ReasonDisconnect || reasons["p2"] != ReasonLeave {
		t.Fatalf("left reasons = %+v", reasons)
	}
	for _, u := range []string{"p1", "p2"} {
		if m, _ := h.c.Membership(ctx, u); m.Status != MemberIdle {
			t.Fatalf("%s membership = %+v, want idle", u, m)
		}
	}
}

func TestLeaveDuringFormationRequeuesTheRest(t *testing.T) {
	led := newFakeLedger(funded("p1", "p2"))
	release := gateBuyIns(t, led)
	h := newHarness(t, led, nil)
	ctx := context.Background()

	h.join(t, "Beginner", "p1")
	h.join(t, "Beginner", "p2")
	waitForming(t, h, "p1", "p2")
	if err := h.c.Disconnect(ctx, "p1"); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	release()

	waitFor(t, "refunds", func() bool { return len(led.Calls(store.EntryBuyInRefund)) == 2 })
	m, _ := h.c.Membership(ctx, "p2")
	if m.Status != MemberQueued || m.Room != "Beginner" {
		t.Fatalf("p2 membership = %+v, want queued", m)
	}
	queued := h.pub.Privates("queued")
	last := queued[len(queued)-1]
	if last.UserID != "p2" || !last.Data.(QueuedEvent).Requeued {
		t.Fatalf("last queued event = %+v", last)
	}
	if led.BalanceOf("p1") != 1000 || led.BalanceOf("p2") != 1000 {
		t.Fatalf("balances = %d %d", led.BalanceOf("p1"), led.BalanceOf("p2"))
	}
	if got := h.pub.Broadcasts("session-formed"); len(got) != 0 {
		t.Fatalf("session formed: %+v", got)
	}
}

func TestBuyInWithLostReplyIsFoundByReference(t *testing.T) {
	led := newFakeLedger(funded("p1", "p2"))
	led.buyInLostReply = context.DeadlineExceeded
	h := newHarness(t, led, nil)
	h.formPair(t)

	if got := len(led.Calls(store.EntryBuyIn)); got != 2 {
		t.Fatalf("buy-in debits = %d, want 2", got)
	}
	if got := led.Calls(store.EntryBuyInRefund); len(got) != 0 {
		t.Fatalf("refunds = %+v", got)
	}
	if got := h.pub.Privates("error"); len(got) != 0 {
		t.Fatalf("error events = %+v", got)
	}
}

func TestBuyInWithUnknownOutcomeIsCounted(t *testing.T) {
	led := newFakeLedger(funded("p1", "p2"))
	led.buyInLostReply = context.DeadlineExceeded
	led.lookupErr = errors.New("ledger offline")
	h := newHarness(t, led, nil)
	before := metricBuyInUnknown.Value()

	h.join(t, "Beginner", "p1")
	h.join(t, "Beginner", "p2")
	waitFor(t, "buy-in errors", func() bool { return len(h.pub.Privates("error")) == 2 })

	if got := metricBuyInUnknown.Value() - before; got != 2 {
		t.Fatalf("unknown outcomes = %d, want 2", got)
	}
	if got := h.pub.Broadcasts("session-formed"); len(got) != 0 {
		t.Fatalf("session formed: %+v", got)
	}
}

func TestPotMatchesCommittedAfterEveryAction(t *testing.T) {
	led := newFakeLedger(funded("p1", "p2"))
	h := newHarness(t, led, nil)
	var mu sync.Mutex
	var pots []int64
	h.pub.onBroadcast = func(ev recordedEvent) {
		if ev.Name != "action-applied" {
			return
		}
		rt := h.c.sessions[ev.SessionID]
		if rt == nil {
			t.Errorf("no session for action-applied %s", ev.SessionID)
			return
		}
		s := rt.session
		if s.Committed() != s.Pot.Total {
			t.Errorf("committed = %d, pot = %d", s.Committed(), s.Pot.Total)
		}
		if got := ev.Data.(ActionAppliedEvent).PotTotal; got != s.Pot.Total {
			t.Errorf("event pot = %d, session pot = %d", got, s.Pot.Total)
		}
		mu.Lock()
		pots = append(pots, s.Pot.Total)
		mu.Unlock()
	}
	sessionID := h.formPair(t)
	ctx := context.Background()

	steps := []struct {
		user   string
		action game.Action
	}{
		{"p1", game.Raise(20)},
		{"p2", game.Raise(40)},
		{"p1", game.Raise(80)},
		{"p2", game.Call()},
	}
	for _, st := range steps {
		if err := h.c.Act(ctx, sessionID, st.user, -1, st.action); err != nil {
			t.Fatalf("%s %v: %v", st.user, st.action.Kind, err)
		}
	}
	settled := h.settledEvent(t)

	mu.Lock()
	defer mu.Unlock()
	want := []int64{220, 260, 340, 420}
	if len(pots) != len(want) {
		t.Fatalf("pots = %v, want %v", pots, want)
	}
	for i := range want {
		if pots[i] != want[i] {
			t.Fatalf("pots = %v, want %v", pots, want)
		}
	}
	var debited int64
	for _, c := range append(led.Calls(store.EntryBuyIn), led.Calls(store.EntryBet)...) {
		debited += c.Amount
	}
	if debited != settled.Pot.Total || settled.Pot.Total != 420 {
		t.Fatalf("debited %d, settled pot %d", debited, settled.Pot.Total)
	}
}

func TestSettlementRetriesUntilLedgerRecovers(t *testing.T) {
	led := newFakeLedger(funded("p1", "p2"))
	led.settleFailures = 2
	h := newHarness(t, led, nil)
	sessionID := h.formPair(t)
	ctx := context.Background()

	if err := h.c.Act(ctx, sessionID, "p1", 0, game.Fold()); err != nil {
		t.Fatalf("fold: %v", err)
	}
	waitFor(t, "first settle attempt", func() bool { return led.SettleCalls() == 1 && h.timers.Armed() == 1 })
	view, err := h.c.PublicView(ctx, sessionID)
	if err != nil {
		t.Fatalf("session dropped after failed settlement: %v", err)
	}
	if view.Status != string(game.StatusShowdown) {
		t.Fatalf("status = %s, want showdown", view.Status)
	}

	h.timers.Advance(100 * time.Millisecond)
	waitFor(t, "second settle attempt", func() bool { return led.SettleCalls() == 2 && h.timers.Armed() == 1 })
	h.timers.Advance(100 * time.Millisecond)
	if led.SettleCalls() != 2 {
		t.Fatalf("retry fired before its doubled delay")
	}
	h.timers.Advance(100 * time.Millisecond)

	settled := h.settledEvent(t)
	if settled.WinnerID != "p2" {
		t.Fatalf("winner = %s", settled.WinnerID)
	}
	if got := len(led.Settled()); got != 1 {
		t.Fatalf("settlements = %d, want 1", got)
	}
	if got := led.BalanceOf("p2"); got != 900+194 {
		t.Fatalf("p2 balance = %d", got)
	}
}

func TestDeckExhaustionAbortsAndRefunds(t *testing.T) {
	led := newFakeLedger(funded("p1", "p2"))
	h := newHarness(t, led, func(o *Options) {
		o.NewDeck = func() *game.Deck {
			d := game.NewDeck()
			_, _ = game.Deal(d, 17)
			return d
		}
	})
	h.join(t, "Beginner", "p1")
	h.join(t, "Beginner", "p2")

	waitFor(t, "abort", func() bool { return len(h.pub.Broadcasts("session-aborted")) == 1 })
	ev := h.pub.Broadcasts("session-aborted")[0].Data.(SessionAbortedEvent)
	if ev.Reason != "deck_exhausted" {
		t.Fatalf("reason = %q", ev.Reason)
	}
	waitFor(t, "refunds", func() bool { return len(led.Calls(store.EntryBuyInRefund)) == 2 })
	if led.BalanceOf("p1") != 1000 || led.BalanceOf("p2") != 1000 {
		t.Fatalf("balances = %d %d", led.BalanceOf("p1"), led.BalanceOf("p2"))
	}
	m, _ := h.c.Membership(context.Background(), "p1")
	if m.Status != MemberIdle {
		t.Fatalf("membership = %+v", m)
	}
}

func TestFailedBuyInRequeuesSurvivor(t *testing.T) {
	led := newFakeLedger(funded("p3", "p4"))
	h := newHarness(t, led, nil)
	ctx := context.Background()

	// p3 passes the balance check but is broke by the time buy-ins are taken.
	h.join(t, "Intermediate", "p3")
	led.mu.Lock()
	led.balances["p3"] = 0
	led.mu.Unlock()
	h.join(t, "Intermediate", "p4")

	waitFor(t, "requeue", func() bool { return len(led.Calls(store.EntryBuyInRefund)) == 1 })
	m, _ := h.c.Membership(ctx, "p4")
	if m.Status != MemberQueued || m.Room != "Intermediate" {
		t.Fatalf("p4 membership = %+v", m)
	}
	m, _ = h.c.Membership(ctx, "p3")
	if m.Status != MemberIdle {
		t.Fatalf("p3 membership = %+v", m)
	}
	errs := h.pub.Privates("error")
	if len(errs) != 1 || errs[0].UserID != "p3" || errs[0].Data.(ErrorEvent).Code != "insufficient_funds" {
		t.Fatalf("error events = %+v", errs)
	}
}

func TestRetryDelayDoublesAndCaps(t *testing.T) {
	base, maxDelay := 500*time.Millisecond, 30*time.Second
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 500 * time.Millisecond},
		{2, time.Second},
		{3, 2 * time.Second},
		{7, 30 * time.Second},
		{64, 30 * time.Second},
	}
	for _, tc := range cases {
		if got := retryDelay(base, maxDelay, tc.attempt); got != tc.want {
			t.Fatalf("retryDelay(%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}

func TestHandlerPanicDoesNotStopLoop(t *testing.T) {
	h := newHarness(t, newFakeLedger(funded("p1")), nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := h.c.query(ctx, func() { panic("boom") })
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if _, err := h.c.ActiveSessionCount(ctx); err != nil {
		t.Fatalf("loop stopped after panic: %v", err)
	}
}
