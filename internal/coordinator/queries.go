package coordinator

import (
	"context"

	"teenpatti-casino/internal/game/viewmodel"
	"teenpatti-casino/internal/lobby"
)

type RoomView struct {
	lobby.RoomStats
	ActiveSessions int `json:"active_sessions"`
}

// Membership describes where a user currently is.
type Membership struct {
	UserID    string `json:"user_id"`
	Status    string `json:"status"`
	Room      string `json:"room,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

const (
	MemberIdle    = "idle"
	MemberJoining = "joining"
	MemberQueued  = "queued"
	MemberForming = "forming"
	MemberSeated  = "seated"
)

func (c *Coordinator) RoomStats(ctx context.Context) ([]RoomView, error) {
	var out []RoomView
	err := c.query(ctx, func() {
		active := map[string]int{}
		for _, rt := range c.sessions {
			active[rt.session.Room.Name]++
		}
		stats := c.matcher.Stats()
		out = make([]RoomView, 0, len(stats))
		for _, st := range stats {
			out = append(out, RoomView{RoomStats: st, ActiveSessions: active[st.Name]})
		}
	})
	return out, err
}

func (c *Coordinator) ActiveSessionCount(ctx context.Context) (int, error) {
	var n int
	err := c.query(ctx, func() { n = len(c.sessions) })
	return n, err
}

// PublicView is the spectator projection; hands stay hidden until showdown.
func (c *Coordinator) PublicView(ctx context.Context, sessionID string) (viewmodel.SessionView, error) {
	var (
		view  viewmodel.SessionView
		found bool
	)
	err := c.query(ctx, func() {
		rt := c.sessions[sessionID]
		if rt == nil {
			return
		}
		view, found = viewmodel.BuildPublicView(rt.session), true
	})
	if err != nil {
		return viewmodel.SessionView{}, err
	}
	if !found {
		return viewmodel.SessionView{}, ErrSessionNotFound
	}
	return view, nil
}

func (c *Coordinator) PlayerView(ctx context.Context, sessionID, userID string) (viewmodel.SessionView, error) {
	var (
		view  viewmodel.SessionView
		found bool
	)
	err := c.query(ctx, func() {
		rt := c.sessions[sessionID]
		if rt == nil {
			return
		}
		view, found = viewmodel.BuildPlayerView(rt.session, userID), true
	})
	if err != nil {
		return viewmodel.SessionView{}, err
	}
	if !found {
		return viewmodel.SessionView{}, ErrSessionNotFound
	}
	return view, nil
}

func (c *Coordinator) Membership(ctx context.Context, userID string) (Membership, error) {
	var m Membership
	err := c.query(ctx, func() { m = c.membership(userID) })
	return m, err
}

// membership reads the user's stage of play. Loop goroutine only.
func (c *Coordinator) membership(userID string) Membership {
	m := Membership{UserID: userID, Status: MemberIdle}
	if cmd, ok := c.joining[userID]; ok {
		m.Status, m.Room = MemberJoining, cmd.room
		return m
	}
	if room, ok := c.matcher.QueuedRoom(userID); ok {
		m.Status, m.Room = MemberQueued, room
		return m
	}
	if f, ok := c.forming[userID]; ok {
		m.Status, m.Room, m.SessionID = MemberForming, f.room.Name, f.sessionID
		return m
	}
	if id, ok := c.byUser[userID]; ok {
		m.Status, m.SessionID = MemberSeated, id
		if rt := c.sessions[id]; rt != nil {
			m.Room = rt.session.Room.Name
		}
	}
	return m
}
