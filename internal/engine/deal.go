// internal/engine/deal.go
package engine

import (
	"slices"

	"github.com/google/uuid"
)

const (
	talonSize = 4
	halfDeck  = DeckSize / 2
)

// InitialDeal starts a round: it shuffles a fresh deck with seed, lays out the talon,
// reserves the face-up indicator for the dealer and deals the first mini-hand.
//
// The deck is split into halves A and B. The last card of B is the cut card; four more
// cards popped from B form the talon, the first popped ending on top. The draw deck is
// A, then what is left of B, then the cut card. Cards are drawn from the end of the draw
// deck and the dealer is served last, so Deck[0] (the face-up reveal) reaches the dealer
// on the final deal of the round.
//
// If the talon contains a Jack, the first such Jack is pulled out of the talon, replaced
// with the next card of B and reserved for the dealer right behind the reveal; FaceUp then
// holds both cards. Round bookkeeping (pending zing, zing tallies, last taker) is reset.
func InitialDeal(g *Game, seed string, dealerSeat int) Event {
	deck := NewDeck(seed)
	a := slices.Clone(deck[:halfDeck])
	b := slices.Clone(deck[halfDeck:])

	cut := b[len(b)-1]
	b = b[:len(b)-1]

	talon := make([]Card, 0, talonSize)
	pop := func() Card {
		c := b[len(b)-1]
		b = b[:len(b)-1]
		return c
	}
	for range talonSize {
		talon = append([]Card{pop()}, talon...)
	}

	var swappedJack Card
	for i := len(talon) - 1; i >= 0; i-- {
		if talon[i].IsJack() {
			swappedJack = talon[i]
			talon[i] = pop()
			break
		}
	}

	draw := make([]Card, 0, DeckSize)
	draw = append(draw, a...)
	draw = append(draw, b...)
	draw = append(draw, cut)

	faceUp := []Card{draw[0]}
	if swappedJack != 0 {
		draw = slices.Insert(draw, 1, swappedJack)
		faceUp = append(faceUp, swappedJack)
	}

	for _, p := range g.Players {
		p.Hand = []Card{}
		p.Taken = []Card{}
	}
	g.Talon = talon
	g.Deck = draw
	g.FaceUp = faceUp
	g.Seed = seed
	g.PendingZing = nil
	g.RoundZing = [TeamCount]ZingTally{}
	g.LastTakerID = uuid.Nil
	g.Round++

	dealer := g.PlayerAtSeat(dealerSeat)
	if dealer == nil || dealer.Role == RoleSpectator {
		dealer = g.seated()[0]
	}
	g.DealerID = dealer.ID

	dealt := g.dealAround(HandSize)
	g.CurrentTurn = g.nextSeated(g.DealerID).ID
	g.HandNumber = 1

	return Event{
		Type: EventHandsDealt,
		Payload: HandsDealtPayload{
			HandNumber: g.HandNumber,
			Dealt:      dealt,
			DeckSize:   len(g.Deck),
			Initial:    true,
			DealerID:   g.DealerID,
			Talon:      slices.Clone(g.Talon),
			FaceUp:     slices.Clone(g.FaceUp),
			Seed:       seed,
		},
	}
}

// DealNextHands deals up to countPerPlayer cards to every seated player, stopping early
// when the deck runs out, then hands the turn to the seat after the dealer.
func DealNextHands(g *Game, countPerPlayer int) Event {
	if countPerPlayer <= 0 {
		countPerPlayer = HandSize
	}
	dealt := g.dealAround(countPerPlayer)
	g.CurrentTurn = g.nextSeated(g.DealerID).ID
	g.HandNumber++
	return Event{
		Type: EventHandsDealt,
		Payload: HandsDealtPayload{
			HandNumber: g.HandNumber,
			Dealt:      dealt,
			DeckSize:   len(g.Deck),
		},
	}
}

// dealAround serves seated players starting after the dealer and ending with the dealer,
// each taking up to count cards from the end of the deck.
func (g *Game) dealAround(count int) map[uuid.UUID][]Card {
	dealt := make(map[uuid.UUID][]Card)
	seated := g.seated()
	start := 0
	for i, p := range seated {
		if p.ID == g.DealerID {
			start = i + 1
		}
	}
	for k := range seated {
		p := seated[(start+k)%len(seated)]
		got := []Card{}
		for range count {
			if len(g.Deck) == 0 {
				break
			}
			c := g.Deck[len(g.Deck)-1]
			g.Deck = g.Deck[:len(g.Deck)-1]
			p.Hand = append(p.Hand, c)
			got = append(got, c)
		}
		dealt[p.ID] = got
	}
	return dealt
}
