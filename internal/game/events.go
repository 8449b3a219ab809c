// internal/game/events.go
package game

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/zing/internal/engine"
)

// Room-level event types. Card-level types (hands_dealt, card_played, talon_taken) live in
// the engine package.
const (
	EventRoomStarted        engine.EventType = "room_started"
	EventRoundEnd           engine.EventType = "round_end"
	EventMatchUpdate        engine.EventType = "match_update"
	EventMatchEnd           engine.EventType = "match_end"
	EventMatchAbandoned     engine.EventType = "match_abandoned"
	EventTurnTimeout        engine.EventType = "turn_timeout"
	EventPlayerJoined       engine.EventType = "player_joined"
	EventPlayerLeft         engine.EventType = "player_left"
	EventPlayerDisconnected engine.EventType = "player_disconnected"
	EventPlayerReconnected  engine.EventType = "player_reconnected"
	EventPlayerEvicted      engine.EventType = "player_evicted"
	EventTeamsUpdated       engine.EventType = "teams_updated"
	EventTimerUpdated       engine.EventType = "timer_updated"
	EventHostChanged        engine.EventType = "host_changed"

	// Private notices, delivered to one member only.
	EventIntentRejected engine.EventType = "intent_rejected"
	EventReconnectToken engine.EventType = "reconnect_token"
	EventStateSync      engine.EventType = "state_sync"
	EventQueued         engine.EventType = "queued"
	EventMatchFound     engine.EventType = "match_found"
)

type SeatView struct {
	PlayerID uuid.UUID `json:"playerId"`
	Name     string    `json:"name"`
	Seat     int       `json:"seat"`
	Team     int       `json:"team"`
}

type RoomStartedPayload struct {
	GameID       uuid.UUID  `json:"gameId"`
	Mode         Mode       `json:"mode"`
	Seats        []SeatView `json:"seats"`
	TargetScore  int        `json:"targetScore"`
	TimerEnabled bool       `json:"timerEnabled"`
}

type RoundEndPayload struct {
	Round int               `json:"round"`
	Score engine.RoundScore `json:"score"`
}

type MatchUpdatePayload struct {
	Cumulative  [engine.TeamCount]int `json:"cumulative"`
	LastRound   engine.RoundScore     `json:"lastRound"`
	TargetScore int                   `json:"targetScore"`
}

type MatchEndPayload struct {
	WinnerTeam  int                   `json:"winnerTeam"`
	FinalScores [engine.TeamCount]int `json:"finalScores"`
	Rounds      int                   `json:"rounds"`
}

type MatchAbandonedPayload struct {
	Scores [engine.TeamCount]int `json:"scores"`
	Rounds int                   `json:"rounds"`
}

type TurnTimeoutPayload struct {
	PlayerID uuid.UUID   `json:"playerId"`
	Card     engine.Card `json:"cardId"`
}

// MemberPayload accompanies the player_* membership events.
type MemberPayload struct {
	PlayerID uuid.UUID   `json:"playerId"`
	Name     string      `json:"name"`
	Role     engine.Role `json:"role"`
}

type TeamsPayload struct {
	Teams map[uuid.UUID]int `json:"teams"`
}

type TimerPayload struct {
	Enabled bool `json:"enabled"`
}

type HostChangedPayload struct {
	HostID uuid.UUID `json:"hostId"`
}

type IntentRejectedPayload struct {
	Reason ReasonCode  `json:"reason"`
	Card   engine.Card `json:"cardId,omitzero"`
}

type ReconnectTokenPayload struct {
	RoomID uuid.UUID `json:"roomId"`
	Token  string    `json:"token"`
}

type QueuedPayload struct {
	Mode     Mode `json:"mode"`
	Position int  `json:"position"`
}

type MatchFoundPayload struct {
	RoomID uuid.UUID `json:"roomId"`
	Mode   Mode      `json:"mode"`
	Team   int       `json:"team"`
}
