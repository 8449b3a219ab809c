// internal/engine/intent.go
package engine

import (
	"slices"

	"github.com/google/uuid"
)

// IntentKind names a player action. The core game has a single kind.
type IntentKind string

const IntentPlayCard IntentKind = "play_card"

const (
	zingPoints       = 10
	doubleZingPoints = 20
)

// Intent is a requested move by one player.
type Intent struct {
	Kind     IntentKind `json:"kind"`
	PlayerID uuid.UUID  `json:"playerId"`
	Card     Card       `json:"cardId"`
}

// LegalIntents lists every move available to playerID. Spectators and unknown ids get
// none; a seated player may play any card in hand.
func LegalIntents(g *Game, playerID uuid.UUID) []Intent {
	p := g.Player(playerID)
	if p == nil || p.Role == RoleSpectator {
		return nil
	}
	out := make([]Intent, 0, len(p.Hand))
	for _, c := range p.Hand {
		out = append(out, Intent{Kind: IntentPlayCard, PlayerID: playerID, Card: c})
	}
	return out
}

// ApplyIntent plays a card and returns the resulting event, or nil when the player or
// card is not found. It does not check whose turn it is; the session does that.
func ApplyIntent(g *Game, in Intent) *Event {
	if in.Kind != "" && in.Kind != IntentPlayCard {
		return nil
	}
	p := g.Player(in.PlayerID)
	if p == nil || p.Role == RoleSpectator {
		return nil
	}
	idx := slices.Index(p.Hand, in.Card)
	if idx < 0 {
		return nil
	}
	p.Hand = slices.Delete(p.Hand, idx, idx+1)

	talonBefore := len(g.Talon)
	var prevTop Card
	if talonBefore > 0 {
		prevTop = g.Talon[talonBefore-1]
	}
	g.Talon = append(g.Talon, in.Card)

	// no extra turn on capture
	g.CurrentTurn = g.nextSeated(p.ID).ID

	captures := talonBefore > 0 && (in.Card.Rank() == prevTop.Rank() || in.Card.IsJack())
	if !captures {
		if talonBefore == 0 {
			g.PendingZing = &PendingZing{Card: in.Card, PlayerID: p.ID}
		} else {
			g.PendingZing = nil
		}
		return &Event{
			Type:    EventCardPlayed,
			ActorID: p.ID,
			Payload: CardPlayedPayload{PlayerID: p.ID, Card: in.Card},
		}
	}

	var zing *Zing
	if pending := g.PendingZing; pending != nil && talonBefore == 1 && pending.Card == prevTop {
		switch {
		case in.Card.IsJack() && pending.Card.IsJack():
			zing = &Zing{Points: doubleZingPoints, Double: true}
		case in.Card.IsJack():
			// a Jack sweeping a lone non-Jack is an ordinary capture
		default:
			zing = &Zing{Points: zingPoints}
		}
	}
	if zing != nil {
		g.RoundZing[p.Team].Points += zing.Points
		g.RoundZing[p.Team].Count++
	}

	taken := g.Talon
	g.Talon = []Card{}
	p.Taken = append(p.Taken, taken...)
	g.PendingZing = nil
	g.LastTakerID = p.ID

	return &Event{
		Type:    EventTalonTaken,
		ActorID: p.ID,
		Payload: TalonTakenPayload{PlayerID: p.ID, Card: in.Card, Taken: taken, Zing: zing},
	}
}

// NeedsStrandedAward reports whether cards are left on the talon after the last card of
// the round has been played.
func NeedsStrandedAward(g *Game) bool {
	return len(g.Deck) == 0 && g.AllHandsEmpty() && len(g.Talon) > 0
}

// AwardStrandedTalon gives the remaining talon to the last player who captured, falling
// back to the dealer and then the first seat. It returns nil when the talon is empty.
func AwardStrandedTalon(g *Game) *Event {
	if len(g.Talon) == 0 {
		return nil
	}
	recipient := g.Player(g.LastTakerID)
	if recipient == nil {
		recipient = g.Player(g.DealerID)
	}
	if recipient == nil {
		recipient = g.seated()[0]
	}
	taken := g.Talon
	g.Talon = []Card{}
	recipient.Taken = append(recipient.Taken, taken...)
	g.PendingZing = nil
	return &Event{
		Type:    EventTalonTaken,
		ActorID: recipient.ID,
		Payload: TalonTakenPayload{PlayerID: recipient.ID, Taken: taken, Stranded: true},
	}
}
