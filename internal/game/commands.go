// internal/game/commands.go
package game

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/zing/internal/engine"
)

// Command is one inbound action for a room: a player intent, an admin action, or a timer
// firing. Every command goes through Room.Handle.
type Command interface {
	isCommand()
}

// Join adds a member. Players may only join while the room is forming; spectators may
// join at any time. Joining again with a known id refreshes the connection.
type Join struct {
	PlayerID   uuid.UUID
	Name       string
	Role       engine.Role
	AccessCode string
	Conn       Conn
}

// Leave removes a member before the match, or forfeits their seat to auto-play during it.
type Leave struct {
	PlayerID uuid.UUID
}

// Start deals the first round. Teams optionally overrides seat-parity team assignment.
type Start struct {
	ActorID uuid.UUID
	Teams   map[uuid.UUID]int
}

// SetTeams records a manual team assignment for the next Start.
type SetTeams struct {
	ActorID uuid.UUID
	Teams   map[uuid.UUID]int
}

type SetTimer struct {
	ActorID uuid.UUID
	Enabled bool
}

// PlayCard is the single player intent.
type PlayCard struct {
	PlayerID uuid.UUID
	Card     engine.Card
}

// TurnTimeout fires when a turn countdown expires. It is ignored unless TurnSeq is still
// the room's current turn sequence.
type TurnTimeout struct {
	PlayerID uuid.UUID
	TurnSeq  uint64
}

// Disconnect marks a member offline. When Conn is set, the command only applies if that is
// still the member's current connection, so a replaced socket closing late is ignored.
type Disconnect struct {
	PlayerID uuid.UUID
	Conn     Conn
}

// Reconnect restores a member's connection from a reconnect token.
type Reconnect struct {
	Token string
	Conn  Conn
}

// Evict fires when a disconnected member's grace period runs out. Epoch guards against a
// reconnect that happened in between.
type Evict struct {
	PlayerID uuid.UUID
	Epoch    uint64
}

func (Join) isCommand()        {}
func (Leave) isCommand()       {}
func (Start) isCommand()       {}
func (SetTeams) isCommand()    {}
func (SetTimer) isCommand()    {}
func (PlayCard) isCommand()    {}
func (TurnTimeout) isCommand() {}
func (Disconnect) isCommand()  {}
func (Reconnect) isCommand()   {}
func (Evict) isCommand()       {}
