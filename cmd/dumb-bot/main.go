package main

import (
	"encoding/json"
	"math/rand"
	"net/url"
	"os"
	"time"

	"teenpatti-casino/internal/config"
	"teenpatti-casino/internal/coordinator"
	"teenpatti-casino/internal/logging"
	"teenpatti-casino/internal/stream"
	"teenpatti-casino/internal/ws"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

type bot struct {
	cfg     config.BotConfig
	conn    *websocket.Conn
	rnd     *rand.Rand
	maxBet  int64
	session string
	played  int
}

func main() {
	logCfg, err := config.LoadLog()
	if err != nil {
		panic(err)
	}
	if err := logging.Init(logCfg); err != nil {
		panic(err)
	}
	cfg, err := config.LoadBot()
	if err != nil {
		log.Fatal().Err(err).Msg("load bot config failed")
	}

	u, err := url.Parse(cfg.WSURL)
	if err != nil {
		log.Fatal().Err(err).Str("url", cfg.WSURL).Msg("invalid ws url")
	}
	q := u.Query()
	q.Set("user_id", cfg.UserID)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal().Err(err).Msg("dial failed")
	}
	defer conn.Close()

	b := &bot{cfg: cfg, conn: conn, rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
	b.join()
	if err := b.run(); err != nil {
		log.Error().Err(err).Msg("bot stopped")
		os.Exit(1)
	}
}

func (b *bot) run() error {
	for {
		_, data, err := b.conn.ReadMessage()
		if err != nil {
			return err
		}
		var base struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &base); err != nil {
			continue
		}
		switch base.Type {
		case ws.TypeResult:
			var res ws.Result
			if err := json.Unmarshal(data, &res); err == nil && !res.Ok {
				log.Warn().Str("command", res.Command).Str("error", res.Error).Msg("command rejected")
			}
		case ws.TypeEvent:
			var ev struct {
				Event     string          `json:"event"`
				SessionID string          `json:"session_id"`
				Data      json.RawMessage `json:"data"`
			}
			if err := json.Unmarshal(data, &ev); err != nil {
				continue
			}
			if done := b.onEvent(ev.Event, ev.SessionID, ev.Data); done {
				return nil
			}
		}
	}
}

func (b *bot) onEvent(name, sessionID string, data json.RawMessage) bool {
	switch name {
	case stream.EventSessionFormed:
		var ev coordinator.SessionFormedEvent
		if err := json.Unmarshal(data, &ev); err == nil {
			b.session = ev.SessionID
			b.maxBet = ev.Room.MaxBet
			log.Info().Str("session_id", ev.SessionID).Int("seats", len(ev.Seats)).Msg("seated")
		}
	case stream.EventPrivateHand:
		var ev coordinator.PrivateHandEvent
		if err := json.Unmarshal(data, &ev); err == nil {
			log.Info().Strs("cards", ev.Cards).Int("seat", ev.Seat).Msg("hand dealt")
		}
	case stream.EventTurnStarted:
		var ev coordinator.TurnStartedEvent
		if err := json.Unmarshal(data, &ev); err != nil || ev.UserID != b.cfg.UserID {
			return false
		}
		b.act(sessionID, ev)
	case stream.EventSessionSettled, stream.EventSessionAborted:
		if sessionID != b.session {
			return false
		}
		b.played++
		b.session = ""
		log.Info().Str("event", name).Int("played", b.played).Msg("session over")
		if b.cfg.Hands > 0 && b.played >= b.cfg.Hands {
			return true
		}
		b.join()
	}
	return false
}

func (b *bot) act(sessionID string, turn coordinator.TurnStartedEvent) {
	msg := ws.ActMessage{Type: ws.TypeAct, SessionID: sessionID, Action: "call"}
	roll := b.rnd.Intn(100)
	switch {
	case roll < b.cfg.RaisePercent && 2*turn.RoundStake <= b.maxBet:
		msg.Action = "raise"
		msg.Amount = 2 * turn.RoundStake
	case roll >= 95:
		msg.Action = "fold"
	}
	log.Info().Str("session_id", sessionID).Int("round", turn.Round).Str("action", msg.Action).Msg("acting")
	b.send(msg)
}

func (b *bot) join() {
	b.send(ws.JoinMessage{Type: ws.TypeJoin, Room: b.cfg.Room, DisplayName: b.cfg.UserID})
}

func (b *bot) send(v any) {
	if err := b.conn.WriteJSON(v); err != nil {
		log.Error().Err(err).Msg("write failed")
	}
}
