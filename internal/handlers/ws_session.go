// internal/handlers/ws_session.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/zing/internal/auth"
	"github.com/jason-s-yu/zing/internal/engine"
	"github.com/jason-s-yu/zing/internal/game"
	"github.com/jason-s-yu/zing/internal/matchmaking"
	"github.com/sirupsen/logrus"
)

const (
	subprotocol  = "zing"
	outBuffer    = 64
	writeTimeout = 5 * time.Second
	pingInterval = 30 * time.Second
)

// clientMessage is every message a client may send, on either endpoint.
type clientMessage struct {
	Type      string            `json:"type"`
	CardID    string            `json:"cardId,omitempty"`
	Teams     map[uuid.UUID]int `json:"teams,omitempty"`
	Enabled   *bool             `json:"enabled,omitempty"`
	Mode      string            `json:"mode,omitempty"`
	PartyCode string            `json:"partyCode,omitempty"`
}

type errorMessage struct {
	Type    string          `json:"type"`
	Reason  game.ReasonCode `json:"reason,omitempty"`
	Message string          `json:"message,omitempty"`
}

type pongMessage struct {
	Type string `json:"type"`
}

// wsClient is one websocket as seen by rooms and the matchmaker. Sends never block; the
// write pump drains them in order.
type wsClient struct {
	id   auth.Identity
	out  chan any
	done chan struct{}
	once sync.Once
	room atomic.Pointer[game.Room]
}

func newWSClient(id auth.Identity) *wsClient {
	return &wsClient{
		id:   id,
		out:  make(chan any, outBuffer),
		done: make(chan struct{}),
	}
}

// Send implements game.Conn.
func (c *wsClient) Send(ev engine.Event) bool { return c.push(ev) }

func (c *wsClient) push(msg any) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.out <- msg:
		return true
	default:
		return false
	}
}

func (c *wsClient) stop() { c.once.Do(func() { close(c.done) }) }

func (c *wsClient) setRoom(r *game.Room) { c.room.Store(r) }

func (c *wsClient) currentRoom() *game.Room { return c.room.Load() }

// encodeFor serializes an outgoing message for viewer, hiding other players' dealt cards.
func encodeFor(viewer uuid.UUID, msg any) ([]byte, error) {
	if ev, ok := msg.(engine.Event); ok {
		if p, ok := ev.Payload.(engine.HandsDealtPayload); ok {
			ev.Payload = p.ForViewer(viewer)
		}
		msg = ev
	}
	return json.Marshal(msg)
}

// session runs the read and write pumps of one websocket.
type session struct {
	gs     *GameServer
	ws     *websocket.Conn
	client *wsClient
	log    *logrus.Entry
}

func (gs *GameServer) newSession(ws *websocket.Conn, client *wsClient, path string) *session {
	return &session{
		gs:     gs,
		ws:     ws,
		client: client,
		log:    gs.log.WithFields(logrus.Fields{"player": client.id.UserID, "path": path}),
	}
}

// run blocks until the socket closes, then releases the player's room seat and queue slot.
func (s *session) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go s.writePump(ctx)
	s.readPump(ctx)

	s.client.stop()
	s.gs.Matchmaker.Cancel(s.client.id.UserID)
	s.gs.LeaveParty(s.client.id.UserID)
	if room := s.client.currentRoom(); room != nil {
		if _, err := room.Handle(game.Disconnect{PlayerID: s.client.id.UserID, Conn: s.client}); err != nil {
			s.log.WithError(err).Debug("disconnect not applied")
		}
	}
}

// readPump reads client messages until the connection fails or ctx ends.
func (s *session) readPump(ctx context.Context) {
	for {
		msgType, data, err := s.ws.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			switch {
			case status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway:
				s.log.Debug("websocket closed normally")
			case errors.Is(err, context.Canceled):
				s.log.Debug("websocket context canceled")
			default:
				s.log.Debugf("websocket read ended: %v (status %d)", err, status)
			}
			return
		}
		if msgType != websocket.MessageText {
			s.log.Warnf("ignoring non-text message type %d", msgType)
			continue
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.sendError("", "invalid JSON format")
			continue
		}
		s.log.Tracef("received %s", msg.Type)
		s.handle(ctx, msg)
	}
}

func (s *session) handle(ctx context.Context, msg clientMessage) {
	me := s.client.id.UserID
	switch msg.Type {
	case "ping":
		s.client.push(pongMessage{Type: "pong"})

	case "play_card":
		card, err := engine.ParseCard(msg.CardID)
		if err != nil {
			s.sendError(game.ReasonCardNotInHand, err.Error())
			return
		}
		s.roomCommand(game.PlayCard{PlayerID: me, Card: card})
	case "start":
		s.roomCommand(game.Start{ActorID: me, Teams: msg.Teams})
	case "set_teams":
		s.roomCommand(game.SetTeams{ActorID: me, Teams: msg.Teams})
	case "set_timer":
		if msg.Enabled == nil {
			s.sendError("", "set_timer needs enabled")
			return
		}
		s.roomCommand(game.SetTimer{ActorID: me, Enabled: *msg.Enabled})
	case "leave":
		if s.roomCommand(game.Leave{PlayerID: me}) {
			s.client.setRoom(nil)
		}

	case "queue":
		mode, err := game.ParseMode(msg.Mode)
		if err != nil {
			s.sendError("", err.Error())
			return
		}
		s.enqueue(ctx, mode)
	case "queue_party":
		if s.inRoom() {
			return
		}
		code := strings.TrimSpace(msg.PartyCode)
		if code == "" {
			s.sendError("", "queue_party needs partyCode")
			return
		}
		if _, err := s.gs.JoinParty(ctx, code, s.entrant()); err != nil {
			s.sendError("", err.Error())
		}
	case "cancel_queue":
		s.gs.Matchmaker.Cancel(me)
		s.gs.LeaveParty(me)

	default:
		s.sendError("", fmt.Sprintf("unknown message type: %s", msg.Type))
	}
}

func (s *session) enqueue(ctx context.Context, mode game.Mode) {
	if s.inRoom() {
		return
	}
	if _, err := s.gs.Matchmaker.Enqueue(ctx, mode, s.entrant()); err != nil {
		s.sendError("", err.Error())
	}
}

func (s *session) entrant() matchmaking.Entrant {
	return matchmaking.Entrant{PlayerID: s.client.id.UserID, Name: s.client.id.Name, Conn: s.client}
}

func (s *session) inRoom() bool {
	if s.client.currentRoom() != nil {
		s.sendError(game.ReasonAlreadyStarted, "already seated in a room")
		return true
	}
	return false
}

// roomCommand forwards cmd to the client's room and reports refusals. Refused plays are
// already answered by the room's private intent_rejected notice.
func (s *session) roomCommand(cmd game.Command) bool {
	room := s.client.currentRoom()
	if room == nil {
		s.sendError(game.ReasonNotAMember, "not in a room")
		return false
	}
	events, err := room.Handle(cmd)
	if err == nil {
		return true
	}
	for _, ev := range events {
		if ev.Type == game.EventIntentRejected {
			return false
		}
	}
	reason := game.ReasonOf(err)
	if reason == "" {
		s.log.WithError(err).Warn("room command failed")
	}
	s.sendError(reason, "")
	return false
}

func (s *session) sendError(reason game.ReasonCode, message string) {
	if !s.client.push(errorMessage{Type: "error", Reason: reason, Message: message}) {
		s.log.Warn("connection backed up, dropped error message")
	}
}

// writePump drains the client's outbound queue and keeps the connection alive with pings.
func (s *session) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.client.done:
			return
		case msg := <-s.client.out:
			data, err := encodeFor(s.client.id.UserID, msg)
			if err != nil {
				s.log.Warnf("failed to marshal outgoing message: %v", err)
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err = s.ws.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				s.log.Warnf("failed to write to websocket: %v", err)
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := s.ws.Ping(pingCtx)
			cancel()
			if err != nil {
				s.log.Warnf("ping failed, assuming disconnect: %v", err)
				return
			}
		}
	}
}
