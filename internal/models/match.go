// internal/models/match.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// MatchPlayer is one seat in a finished match.
type MatchPlayer struct {
	PlayerID uuid.UUID `json:"playerId"`
	Name     string    `json:"name"`
	Seat     int       `json:"seat"`
	Team     int       `json:"team"`
}

// MatchSummary is handed to the match-record sink when a match ends.
type MatchSummary struct {
	RoomID      uuid.UUID     `json:"roomId"`
	GameID      uuid.UUID     `json:"gameId"`
	Mode        string        `json:"mode"`
	Players     []MatchPlayer `json:"players"`
	FinalScores [2]int        `json:"finalScores"`
	WinnerTeam  int           `json:"winnerTeam"`
	Rounds      int           `json:"rounds"`
	StartedAt   time.Time     `json:"startedAt"`
	EndedAt     time.Time     `json:"endedAt"`
}

// Duration of the match.
func (s MatchSummary) Duration() time.Duration { return s.EndedAt.Sub(s.StartedAt) }
