package lobby

import (
	"errors"
	"sort"
	"strings"
	"time"

	"teenpatti-casino/internal/game"
	"teenpatti-casino/internal/store"
)

var (
	ErrRoomNotFound   = errors.New("room_not_found")
	ErrAlreadyQueued  = errors.New("already_joined")
	ErrQueueFull      = errors.New("queue_full")
	ErrDuplicateRoom  = errors.New("duplicate_room")
	ErrNoRoomsDefined = errors.New("no_rooms_defined")
)

// MinQuorum is the smallest table the matcher will form.
const MinQuorum = 2

type QueuedPlayer struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name,omitempty"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
}

type WaitingQueue struct {
	Room    game.RoomTemplate
	players []QueuedPlayer
}

type RoomStats struct {
	Name       string `json:"name"`
	Waiting    int    `json:"waiting"`
	MinBet     int64  `json:"min_bet"`
	MaxBet     int64  `json:"max_bet"`
	BuyIn      int64  `json:"buy_in"`
	MaxPlayers int    `json:"max_players"`
}

// Matcher holds one FIFO queue per room. It is owned by a single goroutine.
type Matcher struct {
	queues   map[string]*WaitingQueue
	order    []string
	byUser   map[string]string
	maxQueue int
}

// NewMatcher takes the room catalog once; templates never change afterwards.
// maxQueue bounds each room's queue, zero meaning unbounded.
func NewMatcher(rooms []game.RoomTemplate, maxQueue int) (*Matcher, error) {
	if len(rooms) == 0 {
		return nil, ErrNoRoomsDefined
	}
	m := &Matcher{
		queues:   make(map[string]*WaitingQueue, len(rooms)),
		byUser:   map[string]string{},
		maxQueue: maxQueue,
	}
	for _, r := range rooms {
		if err := r.Validate(); err != nil {
			return nil, err
		}
		key := roomKey(r.Name)
		if _, ok := m.queues[key]; ok {
			return nil, ErrDuplicateRoom
		}
		m.queues[key] = &WaitingQueue{Room: r}
		m.order = append(m.order, key)
	}
	return m, nil
}

func roomKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (m *Matcher) Room(name string) (game.RoomTemplate, bool) {
	q, ok := m.queues[roomKey(name)]
	if !ok {
		return game.RoomTemplate{}, false
	}
	return q.Room, true
}

func (m *Matcher) Rooms() []game.RoomTemplate {
	out := make([]game.RoomTemplate, 0, len(m.order))
	for _, key := range m.order {
		out = append(out, m.queues[key].Room)
	}
	return out
}

// Enqueue appends the player and returns its 1-based queue position.
func (m *Matcher) Enqueue(room string, p QueuedPlayer) (int, error) {
	q, ok := m.queues[roomKey(room)]
	if !ok {
		return 0, ErrRoomNotFound
	}
	if _, queued := m.byUser[p.UserID]; queued {
		return 0, ErrAlreadyQueued
	}
	if m.maxQueue > 0 && len(q.players) >= m.maxQueue {
		return 0, ErrQueueFull
	}
	q.players = append(q.players, p)
	m.byUser[p.UserID] = roomKey(room)
	return len(q.players), nil
}

// Requeue puts players back at the head of the room's queue in their
// original order.
func (m *Matcher) Requeue(room string, players []QueuedPlayer) error {
	q, ok := m.queues[roomKey(room)]
	if !ok {
		return ErrRoomNotFound
	}
	head := make([]QueuedPlayer, 0, len(players)+len(q.players))
	for _, p := range players {
		if _, queued := m.byUser[p.UserID]; queued {
			continue
		}
		head = append(head, p)
		m.byUser[p.UserID] = roomKey(room)
	}
	sort.SliceStable(head, func(i, j int) bool { return head[i].EnqueuedAt.Before(head[j].EnqueuedAt) })
	q.players = append(head, q.players...)
	return nil
}

// Dequeue removes a still-queued player. Removing an absent player is a no-op.
func (m *Matcher) Dequeue(userID string) (string, bool) {
	key, ok := m.byUser[userID]
	if !ok {
		return "", false
	}
	delete(m.byUser, userID)
	q := m.queues[key]
	for i, p := range q.players {
		if p.UserID == userID {
			q.players = append(q.players[:i], q.players[i+1:]...)
			break
		}
	}
	return q.Room.Name, true
}

// TakeQuorum removes up to MaxPlayers players in FIFO order once the queue
// holds at least MinQuorum. It returns nil otherwise.
func (m *Matcher) TakeQuorum(room string) []QueuedPlayer {
	q, ok := m.queues[roomKey(room)]
	if !ok || len(q.players) < MinQuorum {
		return nil
	}
	n := len(q.players)
	if n > q.Room.MaxPlayers {
		n = q.Room.MaxPlayers
	}
	taken := make([]QueuedPlayer, n)
	copy(taken, q.players[:n])
	q.players = append([]QueuedPlayer(nil), q.players[n:]...)
	for _, p := range taken {
		delete(m.byUser, p.UserID)
	}
	return taken
}

func (m *Matcher) QueuedRoom(userID string) (string, bool) {
	key, ok := m.byUser[userID]
	if !ok {
		return "", false
	}
	return m.queues[key].Room.Name, true
}

func (m *Matcher) Len(room string) int {
	q, ok := m.queues[roomKey(room)]
	if !ok {
		return 0
	}
	return len(q.players)
}

func (m *Matcher) Queue(room string) []QueuedPlayer {
	q, ok := m.queues[roomKey(room)]
	if !ok {
		return nil
	}
	out := make([]QueuedPlayer, len(q.players))
	copy(out, q.players)
	return out
}

func (m *Matcher) Stats() []RoomStats {
	out := make([]RoomStats, 0, len(m.order))
	for _, key := range m.order {
		q := m.queues[key]
		out = append(out, RoomStats{
			Name:       q.Room.Name,
			Waiting:    len(q.players),
			MinBet:     q.Room.MinBet,
			MaxBet:     q.Room.MaxBet,
			BuyIn:      q.Room.BuyIn,
			MaxPlayers: q.Room.MaxPlayers,
		})
	}
	return out
}

// TemplatesFromCatalog converts catalog rows into room templates, filling
// the default seat limit when a row leaves it unset.
func TemplatesFromCatalog(rows []store.Room) []game.RoomTemplate {
	out := make([]game.RoomTemplate, 0, len(rows))
	for _, r := range rows {
		maxPlayers := r.MaxPlayers
		if maxPlayers <= 0 {
			maxPlayers = game.DefaultMaxPlayers
		}
		out = append(out, game.RoomTemplate{
			Name:       r.Name,
			MinBet:     r.MinBet,
			MaxBet:     r.MaxBet,
			BuyIn:      r.BuyIn,
			MaxPlayers: maxPlayers,
		})
	}
	return out
}
