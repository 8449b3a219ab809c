// Package engine implements the zing card game rules: the seeded deck, dealing, legal
// moves, intent application and round scoring. It holds no locks and performs no I/O;
// the session layer owns concurrency and event delivery.
package engine

import (
	"fmt"

	"github.com/google/uuid"
)

const (
	// DefaultTargetScore ends the match once a team reaches it.
	DefaultTargetScore = 101
	// HandSize is the number of cards dealt to each player per mini-hand.
	HandSize = 4
	// TeamCount is fixed: every seat belongs to team 0 or team 1.
	TeamCount = 2
)

// Role of a room member.
type Role string

const (
	RolePlayer    Role = "player"
	RoleSpectator Role = "spectator"
)

// PlayerState is one seated participant's view of the round.
type PlayerState struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Seat      int       `json:"seat"`
	Role      Role      `json:"role"`
	Team      int       `json:"team"`
	Hand      []Card    `json:"hand"`
	Taken     []Card    `json:"taken"`
	Connected bool      `json:"connected"`
}

// PendingZing marks a card that landed alone on an empty talon and has not been
// covered or captured yet.
type PendingZing struct {
	Card     Card      `json:"cardId"`
	PlayerID uuid.UUID `json:"playerId"`
}

// ZingTally accumulates zing bonuses for one team within a round.
type ZingTally struct {
	Points int `json:"points"`
	Count  int `json:"count"`
}

// Game is the state of one match: the round in progress plus cumulative scores.
type Game struct {
	ID          uuid.UUID      `json:"id"`
	Players     []*PlayerState `json:"players"`
	Talon       []Card         `json:"talon"`
	Deck        []Card         `json:"deck"`
	FaceUp      []Card         `json:"faceUp"`
	CurrentTurn uuid.UUID      `json:"currentTurnPlayerId"`
	DealerID    uuid.UUID      `json:"dealerId"`
	HandNumber  int            `json:"handNumber"`
	Round       int            `json:"round"`
	Seed        string         `json:"seed"`
	Scores      [TeamCount]int `json:"scores"`
	LastRound   *RoundScore    `json:"currentRoundScore,omitempty"`
	TargetScore int            `json:"targetScore"`
	MatchOver   bool           `json:"matchOver"`

	// Round-scoped bookkeeping, reset by InitialDeal.
	PendingZing *PendingZing         `json:"pendingZing,omitempty"`
	RoundZing   [TeamCount]ZingTally `json:"roundZing"`
	LastTakerID uuid.UUID            `json:"lastTakerId"`
}

// NewGame builds a match for the given seated players. Players must already carry their
// seat and team; they are kept in seat order.
func NewGame(players []*PlayerState, targetScore int) *Game {
	if targetScore <= 0 {
		targetScore = DefaultTargetScore
	}
	seated := make([]*PlayerState, len(players))
	copy(seated, players)
	for i := 1; i < len(seated); i++ {
		for j := i; j > 0 && seated[j].Seat < seated[j-1].Seat; j-- {
			seated[j], seated[j-1] = seated[j-1], seated[j]
		}
	}
	return &Game{
		ID:          uuid.New(),
		Players:     seated,
		TargetScore: targetScore,
	}
}

// Player returns the player with the given id, or nil.
func (g *Game) Player(id uuid.UUID) *PlayerState {
	for _, p := range g.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// PlayerAtSeat returns the player seated at seat, or nil.
func (g *Game) PlayerAtSeat(seat int) *PlayerState {
	for _, p := range g.Players {
		if p.Seat == seat {
			return p
		}
	}
	return nil
}

// seated returns the non-spectator players in seat order.
func (g *Game) seated() []*PlayerState {
	out := make([]*PlayerState, 0, len(g.Players))
	for _, p := range g.Players {
		if p.Role != RoleSpectator {
			out = append(out, p)
		}
	}
	return out
}

// nextSeated returns the seated player after id in fixed seating order.
func (g *Game) nextSeated(id uuid.UUID) *PlayerState {
	seated := g.seated()
	if len(seated) == 0 {
		return nil
	}
	for i, p := range seated {
		if p.ID == id {
			return seated[(i+1)%len(seated)]
		}
	}
	return seated[0]
}

// AllHandsEmpty reports whether no seated player holds a card.
func (g *Game) AllHandsEmpty() bool {
	for _, p := range g.seated() {
		if len(p.Hand) > 0 {
			return false
		}
	}
	return true
}

// CheckInvariant verifies that every card is in exactly one place: a hand, a taken pile,
// the talon or the deck.
func (g *Game) CheckInvariant() error {
	seen := make(map[Card]bool, DeckSize)
	count := func(where string, cards []Card) error {
		for _, c := range cards {
			if !c.Valid() {
				return fmt.Errorf("invalid card %d in %s", uint8(c), where)
			}
			if seen[c] {
				return fmt.Errorf("card %s duplicated (found again in %s)", c, where)
			}
			seen[c] = true
		}
		return nil
	}
	if err := count("talon", g.Talon); err != nil {
		return err
	}
	if err := count("deck", g.Deck); err != nil {
		return err
	}
	for _, p := range g.Players {
		if err := count("hand of "+p.Name, p.Hand); err != nil {
			return err
		}
		if err := count("taken pile of "+p.Name, p.Taken); err != nil {
			return err
		}
	}
	if len(seen) != DeckSize {
		return fmt.Errorf("expected %d cards accounted for, found %d", DeckSize, len(seen))
	}
	return nil
}
