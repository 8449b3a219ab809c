// internal/game/sync_state.go
package game

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/zing/internal/engine"
)

// MemberView is one member as seen by everybody in the room.
type MemberView struct {
	ID         uuid.UUID   `json:"id"`
	Name       string      `json:"name"`
	Role       engine.Role `json:"role"`
	Seat       int         `json:"seat"`
	Team       int         `json:"team"`
	Connected  bool        `json:"connected"`
	Evicted    bool        `json:"evicted,omitempty"`
	IsHost     bool        `json:"isHost"`
	HandSize   int         `json:"handSize"`
	TakenCount int         `json:"takenCount"`
}

// Snapshot is the room state from one viewer's perspective. Only the viewer's own hand is
// revealed; a zero viewer sees no hand at all.
type Snapshot struct {
	RoomID       uuid.UUID    `json:"roomId"`
	GameID       uuid.UUID    `json:"gameId,omitzero"`
	Phase        Phase        `json:"phase"`
	Mode         Mode         `json:"mode"`
	Visibility   Visibility   `json:"visibility"`
	HostID       uuid.UUID    `json:"hostId,omitzero"`
	TimerEnabled bool         `json:"timerEnabled"`
	TargetScore  int          `json:"targetScore"`
	Seq          uint64       `json:"seq"`
	Members      []MemberView `json:"members"`

	Talon       []engine.Card         `json:"talon,omitempty"`
	DeckSize    int                   `json:"deckSize"`
	FaceUp      []engine.Card         `json:"faceUp,omitempty"`
	CurrentTurn uuid.UUID             `json:"currentTurnPlayerId,omitzero"`
	DealerID    uuid.UUID             `json:"dealerId,omitzero"`
	HandNumber  int                   `json:"handNumber"`
	Round       int                   `json:"round"`
	Scores      [engine.TeamCount]int `json:"scores"`
	LastRound   *engine.RoundScore    `json:"currentRoundScore,omitempty"`
	MatchOver   bool                  `json:"matchOver"`
	Hand        []engine.Card         `json:"hand,omitempty"`
	Legal       []engine.Intent       `json:"legalIntents,omitempty"`
}

// RoomSummary is the listing entry for a room.
type RoomSummary struct {
	ID           uuid.UUID  `json:"id"`
	Mode         Mode       `json:"mode"`
	Visibility   Visibility `json:"visibility"`
	Phase        Phase      `json:"phase"`
	HostID       uuid.UUID  `json:"hostId,omitzero"`
	Players      int        `json:"players"`
	Seats        int        `json:"seats"`
	Spectators   int        `json:"spectators"`
	TimerEnabled bool       `json:"timerEnabled"`
	TargetScore  int        `json:"targetScore"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// Snapshot returns the current state as seen by viewer.
func (r *Room) Snapshot(viewer uuid.UUID) Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked(viewer)
}

// Summary returns the public listing entry.
func (r *Room) Summary() RoomSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := RoomSummary{
		ID:           r.ID,
		Mode:         r.settings.Mode,
		Visibility:   r.settings.Visibility,
		Phase:        r.phase,
		HostID:       r.hostID,
		Seats:        r.settings.Mode.Seats(),
		TimerEnabled: r.settings.TimerEnabled,
		TargetScore:  r.settings.TargetScore,
		CreatedAt:    r.CreatedAt,
	}
	for _, m := range r.members {
		if m.Role == engine.RoleSpectator {
			s.Spectators++
		} else if !m.Evicted {
			s.Players++
		}
	}
	return s
}

// snapshotLocked builds the viewer's snapshot. Assumes lock is held.
func (r *Room) snapshotLocked(viewer uuid.UUID) Snapshot {
	snap := Snapshot{
		RoomID:       r.ID,
		Phase:        r.phase,
		Mode:         r.settings.Mode,
		Visibility:   r.settings.Visibility,
		HostID:       r.hostID,
		TimerEnabled: r.settings.TimerEnabled,
		TargetScore:  r.settings.TargetScore,
		Seq:          r.seq,
		Members:      make([]MemberView, 0, len(r.members)),
	}

	g := r.game
	for _, m := range r.members {
		mv := MemberView{
			ID:        m.ID,
			Name:      m.Name,
			Role:      m.Role,
			Seat:      -1,
			Team:      -1,
			Connected: m.Connected,
			Evicted:   m.Evicted,
			IsHost:    m.ID == r.hostID,
		}
		if t, ok := r.teams[m.ID]; ok {
			mv.Team = t
		}
		if g != nil {
			if p := g.Player(m.ID); p != nil {
				mv.Seat, mv.Team = p.Seat, p.Team
				mv.HandSize, mv.TakenCount = len(p.Hand), len(p.Taken)
			}
		}
		snap.Members = append(snap.Members, mv)
	}

	if g == nil {
		return snap
	}
	snap.GameID = g.ID
	snap.TargetScore = g.TargetScore
	snap.Talon = slices.Clone(g.Talon)
	snap.DeckSize = len(g.Deck)
	snap.FaceUp = slices.Clone(g.FaceUp)
	snap.CurrentTurn = g.CurrentTurn
	snap.DealerID = g.DealerID
	snap.HandNumber = g.HandNumber
	snap.Round = g.Round
	snap.Scores = g.Scores
	snap.MatchOver = g.MatchOver
	if g.LastRound != nil {
		last := *g.LastRound
		snap.LastRound = &last
	}
	if p := g.Player(viewer); p != nil {
		snap.Hand = slices.Clone(p.Hand)
		if r.phase == PhaseInRound && g.CurrentTurn == viewer {
			snap.Legal = engine.LegalIntents(g, viewer)
		}
	}
	return snap
}
