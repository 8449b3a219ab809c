// internal/handlers/game_server.go
package handlers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/zing/internal/auth"
	"github.com/jason-s-yu/zing/internal/game"
	"github.com/jason-s-yu/zing/internal/matchmaking"
	"github.com/jason-s-yu/zing/internal/models"
	"github.com/sirupsen/logrus"
)

// UserStore mints and looks up guest identities. Without one, guests exist only in their
// bearer token.
type UserStore interface {
	CreateGuestUser(ctx context.Context, username string) (*models.User, error)
}

// EventHistory reads back the persisted event log of a finished room.
type EventHistory interface {
	EventsForRoom(ctx context.Context, roomID uuid.UUID) ([]models.EventRecord, error)
}

// ServerOptions wires a GameServer. Nil sinks are left out of every room.
type ServerOptions struct {
	Logger      *logrus.Logger
	Signer      *auth.Signer
	Tokens      *auth.ReconnectTokens
	Users       UserStore
	Sink        game.EventSink
	Broadcaster game.Broadcaster
	Recorder    game.MatchRecorder
	History     EventHistory

	TargetScore  int
	TurnDuration time.Duration
	LobbyGrace   time.Duration
	MatchGrace   time.Duration
}

// GameServer is a high-level struct that holds the room store and the matchmaker, and
// creates rooms for both the HTTP surface and formed matches.
type GameServer struct {
	Rooms      *game.RoomStore
	Matchmaker *matchmaking.Coordinator

	opts ServerOptions
	log  *logrus.Entry

	partyMu sync.Mutex
	parties map[string]matchmaking.Entrant // party code -> first member waiting for a partner
}

func NewGameServer(opts ServerOptions) *GameServer {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	gs := &GameServer{
		Rooms:   game.NewRoomStore(),
		opts:    opts,
		log:     opts.Logger.WithField("component", "server"),
		parties: make(map[string]matchmaking.Entrant),
	}
	gs.Matchmaker = matchmaking.NewCoordinator(gs, matchmaking.Options{Logger: gs.log})
	return gs
}

// NewRoom creates a room with the server's collaborators and registers it in the store.
// The room removes itself from the store when it closes, or after the lobby grace period
// if nobody has joined by then.
func (gs *GameServer) NewRoom(hostID uuid.UUID, settings game.Settings) *game.Room {
	if settings.TargetScore <= 0 {
		settings.TargetScore = gs.opts.TargetScore
	}
	opts := game.Options{
		Logger:       gs.log.WithField("component", "room"),
		Sink:         gs.opts.Sink,
		Broadcaster:  gs.opts.Broadcaster,
		Recorder:     gs.opts.Recorder,
		TurnDuration: gs.opts.TurnDuration,
		LobbyGrace:   gs.opts.LobbyGrace,
		MatchGrace:   gs.opts.MatchGrace,
		OnClose:      gs.Rooms.DeleteRoom,
	}
	if gs.opts.Tokens != nil {
		opts.Tokens = gs.opts.Tokens
	}
	room := game.NewRoom(hostID, settings, opts)
	gs.Rooms.AddRoom(room)

	// a room nobody ever joins would otherwise live forever
	grace := gs.opts.LobbyGrace
	if grace <= 0 {
		grace = game.DefaultLobbyGrace
	}
	time.AfterFunc(grace, func() {
		if room.Phase() == game.PhaseEmpty {
			gs.log.WithField("room", room.ID).Info("closing room nobody joined")
			room.Close()
		}
	})
	return room
}

// StartMatch seats matched entrants in a fresh private room and starts it. Matchmade
// rooms always run the turn timer.
func (gs *GameServer) StartMatch(ctx context.Context, mode game.Mode, seats []matchmaking.Assignment) (uuid.UUID, error) {
	if len(seats) == 0 {
		return uuid.Nil, fmt.Errorf("no players to seat")
	}
	code := uuid.NewString()
	host := seats[0].PlayerID
	room := gs.NewRoom(host, game.Settings{
		Mode:         mode,
		Visibility:   game.VisibilityPrivate,
		AccessCode:   code,
		TimerEnabled: true,
	})

	teams := make(map[uuid.UUID]int, len(seats))
	for _, s := range seats {
		join := game.Join{PlayerID: s.PlayerID, Name: s.Name, AccessCode: code, Conn: s.Conn}
		if _, err := room.Handle(join); err != nil {
			room.Close()
			return uuid.Nil, fmt.Errorf("seat %s: %w", s.PlayerID, err)
		}
		teams[s.PlayerID] = s.Team
	}
	if _, err := room.Handle(game.Start{ActorID: host, Teams: teams}); err != nil {
		room.Close()
		return uuid.Nil, fmt.Errorf("start matched room: %w", err)
	}

	for _, s := range seats {
		if c, ok := s.Conn.(*wsClient); ok {
			c.setRoom(room)
		}
	}
	gs.log.WithField("room", room.ID).Infof("started matched %s room", mode)
	return room.ID, nil
}

// JoinParty pairs two players that share a party code and queues them for 2v2. The first
// caller waits; the second completes the party.
func (gs *GameServer) JoinParty(ctx context.Context, code string, e matchmaking.Entrant) (bool, error) {
	gs.partyMu.Lock()
	first, waiting := gs.parties[code]
	if !waiting {
		gs.parties[code] = e
		gs.partyMu.Unlock()
		return false, nil
	}
	if first.PlayerID == e.PlayerID {
		gs.partyMu.Unlock()
		return false, nil
	}
	delete(gs.parties, code)
	gs.partyMu.Unlock()

	if _, err := gs.Matchmaker.EnqueueParty(ctx, []matchmaking.Entrant{first, e}); err != nil {
		gs.restorePartner(code, first)
		return false, err
	}
	return true, nil
}

// restorePartner puts the first member back in the waiting slot after a failed pairing,
// unless they have since queued on their own or someone else took the code.
func (gs *GameServer) restorePartner(code string, first matchmaking.Entrant) {
	if _, _, queued := gs.Matchmaker.Position(first.PlayerID); queued {
		return
	}
	gs.partyMu.Lock()
	defer gs.partyMu.Unlock()
	if _, taken := gs.parties[code]; !taken {
		gs.parties[code] = first
	}
}

// LeaveParty drops a player still waiting for a partner.
func (gs *GameServer) LeaveParty(playerID uuid.UUID) {
	gs.partyMu.Lock()
	defer gs.partyMu.Unlock()
	for code, e := range gs.parties {
		if e.PlayerID == playerID {
			delete(gs.parties, code)
		}
	}
}

// Shutdown closes every live room.
func (gs *GameServer) Shutdown() {
	gs.Rooms.CloseAll()
}
