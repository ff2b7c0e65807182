package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"teenpatti-casino/internal/coordinator"
	"teenpatti-casino/internal/game"
	"teenpatti-casino/internal/stream"
)

const commandTimeout = 10 * time.Second

// Coordinator is the command surface a player connection drives.
type Coordinator interface {
	Join(ctx context.Context, room, userID, displayName string) (coordinator.JoinResult, error)
	Leave(ctx context.Context, room, userID string) error
	Act(ctx context.Context, sessionID, userID string, seat int, action game.Action) error
	Disconnect(ctx context.Context, userID string) error
}

type Client struct {
	conn   *websocket.Conn
	send   chan []byte
	userID string
	events chan stream.StreamEvent
	buf    *stream.EventBuffer
	lastID int64
}

type Server struct {
	coord    Coordinator
	hub      *stream.Hub
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[string]map[*Client]struct{}
}

func NewServer(coord Coordinator, hub *stream.Hub) *Server {
	return &Server{
		coord:    coord,
		hub:      hub,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		clients:  map[string]map[*Client]struct{}{},
	}
}

// ServeHTTP upgrades a player connection. The user is named by the user_id
// query parameter; last_event_id replays buffered events after a reconnect.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		http.Error(w, `{"error":"invalid_request"}`, http.StatusBadRequest)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	buf := s.hub.UserBuffer(userID)
	c := &Client{conn: conn, send: make(chan []byte, 32), userID: userID, buf: buf, events: buf.Subscribe()}
	s.register(c)

	if lastID := r.URL.Query().Get("last_event_id"); lastID != "" {
		for _, ev := range buf.ReplayAfter(lastID) {
			s.sendEvent(c, ev)
			c.lastID = eventSeq(ev.EventID)
		}
	}

	go s.writeLoop(c)
	go s.forwardLoop(c)
	s.readLoop(c)
}

func (s *Server) register(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.clients[c.userID]
	if set == nil {
		set = map[*Client]struct{}{}
		s.clients[c.userID] = set
	}
	set[c] = struct{}{}
}

// unregister drops the connection. The user is only reported disconnected
// once their last connection is gone.
func (s *Server) unregister(c *Client) {
	s.mu.Lock()
	set := s.clients[c.userID]
	delete(set, c)
	last := len(set) == 0
	if last {
		delete(s.clients, c.userID)
	}
	s.mu.Unlock()

	c.buf.Unsubscribe(c.events)
	safeClose(c.send)
	if !last {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	if err := s.coord.Disconnect(ctx, c.userID); err != nil {
		log.Warn().Err(err).Str("user_id", c.userID).Msg("disconnect not delivered")
	}
}

func (s *Server) ConnectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, set := range s.clients {
		n += len(set)
	}
	return n
}

func (s *Server) readLoop(c *Client) {
	defer func() {
		s.unregister(c)
		_ = c.conn.Close()
	}()

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		s.handleMessage(c, msg)
	}
}

func (s *Server) handleMessage(c *Client, msg []byte) {
	var base struct {
		Type      string `json:"type"`
		RequestID string `json:"request_id"`
	}
	if err := json.Unmarshal(msg, &base); err != nil {
		s.sendResult(c, Result{Command: "unknown", Error: "invalid_json"})
		return
	}
	if len(base.RequestID) > maxRequestIDLen {
		s.sendResult(c, Result{Command: base.Type, RequestID: base.RequestID, Error: "invalid_request_id"})
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	switch base.Type {
	case TypeJoin:
		var join JoinMessage
		if err := json.Unmarshal(msg, &join); err != nil {
			s.sendResult(c, Result{Command: TypeJoin, RequestID: base.RequestID, Error: "invalid_json"})
			return
		}
		res, err := s.coord.Join(ctx, join.Room, c.userID, join.DisplayName)
		s.reply(c, TypeJoin, join.RequestID, res, err)
	case TypeLeave:
		var leave LeaveMessage
		if err := json.Unmarshal(msg, &leave); err != nil {
			s.sendResult(c, Result{Command: TypeLeave, RequestID: base.RequestID, Error: "invalid_json"})
			return
		}
		err := s.coord.Leave(ctx, leave.Room, c.userID)
		s.reply(c, TypeLeave, leave.RequestID, nil, err)
	case TypeAct:
		var act ActMessage
		if err := json.Unmarshal(msg, &act); err != nil {
			s.sendResult(c, Result{Command: TypeAct, RequestID: base.RequestID, Error: "invalid_json"})
			return
		}
		action, err := game.ParseAction(act.Action, act.Amount)
		if err != nil {
			s.reply(c, TypeAct, act.RequestID, nil, err)
			return
		}
		seat := -1
		if act.Seat != nil {
			seat = *act.Seat
		}
		err = s.coord.Act(ctx, act.SessionID, c.userID, seat, action)
		s.reply(c, TypeAct, act.RequestID, nil, err)
	default:
		s.sendResult(c, Result{Command: base.Type, RequestID: base.RequestID, Error: "unknown_type"})
	}
}

func (s *Server) reply(c *Client, command, requestID string, data any, err error) {
	res := Result{Command: command, RequestID: requestID, Ok: err == nil, Data: data}
	if err != nil {
		_, res.Error = coordinator.MapError(err)
		res.Data = nil
	}
	s.sendResult(c, res)
}

func (s *Server) sendResult(c *Client, res Result) {
	res.Type = TypeResult
	res.ProtocolVersion = ProtocolVersion
	msg, _ := json.Marshal(res)
	safeSend(c.send, msg)
}

func (s *Server) sendEvent(c *Client, ev stream.StreamEvent) {
	msg, _ := json.Marshal(Event{Type: TypeEvent, ProtocolVersion: ProtocolVersion, StreamEvent: ev})
	safeSend(c.send, msg)
}

func (s *Server) forwardLoop(c *Client) {
	for ev := range c.events {
		if eventSeq(ev.EventID) <= c.lastID {
			continue
		}
		s.sendEvent(c, ev)
	}
}

func (s *Server) writeLoop(c *Client) {
	for msg := range c.send {
		_ = c.conn.WriteMessage(websocket.TextMessage, msg)
	}
}

func eventSeq(id string) int64 {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func safeClose(ch chan []byte) {
	defer func() {
		_ = recover()
	}()
	close(ch)
}

func safeSend(ch chan []byte, msg []byte) {
	defer func() {
		_ = recover()
	}()
	select {
	case ch <- msg:
	default:
	}
}
