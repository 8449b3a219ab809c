package engine

import (
	"fmt"
	"strings"
)

// Suit of a card.
type Suit uint8

const (
	SuitClubs Suit = iota
	SuitDiamonds
	SuitHearts
	SuitSpades
)

// Rank of a card. Ace is low in the canonical ordering; it has no ordering role in play.
type Rank uint8

const (
	RankAce   Rank = 1
	RankTwo   Rank = 2
	RankThree Rank = 3
	RankFour  Rank = 4
	RankFive  Rank = 5
	RankSix   Rank = 6
	RankSeven Rank = 7
	RankEight Rank = 8
	RankNine  Rank = 9
	RankTen   Rank = 10
	RankJack  Rank = 11
	RankQueen Rank = 12
	RankKing  Rank = 13
)

// DeckSize is the number of cards in play for a round.
const DeckSize = 52

var suitLetters = [...]string{SuitClubs: "C", SuitDiamonds: "D", SuitHearts: "H", SuitSpades: "S"}

var rankSymbols = [...]string{
	RankAce: "A", RankTwo: "2", RankThree: "3", RankFour: "4", RankFive: "5", RankSix: "6",
	RankSeven: "7", RankEight: "8", RankNine: "9", RankTen: "10", RankJack: "J",
	RankQueen: "Q", RankKing: "K",
}

// Card is a packed value: upper 4 bits suit, lower 4 bits rank. The zero value is not a card.
type Card uint8

// NewCard builds a card from suit and rank.
func NewCard(s Suit, r Rank) Card {
	return Card(uint8(s)<<4 | uint8(r)&0x0F)
}

func (c Card) Suit() Suit { return Suit(uint8(c) >> 4) }
func (c Card) Rank() Rank { return Rank(uint8(c) & 0x0F) }

// Valid reports whether c is one of the 52 cards.
func (c Card) Valid() bool {
	return c.Suit() <= SuitSpades && c.Rank() >= RankAce && c.Rank() <= RankKing
}

// IsJack reports whether the card is a Jack of any suit.
func (c Card) IsJack() bool { return c.Rank() == RankJack }

// Points returns the card's scoring value. The ten of diamonds is worth 2,
// the two of clubs 1, every other ten, jack, queen, king and ace 1.
func (c Card) Points() int {
	switch {
	case c.Rank() == RankTen && c.Suit() == SuitDiamonds:
		return 2
	case c.Rank() == RankTwo && c.Suit() == SuitClubs:
		return 1
	case c.Rank() == RankAce, c.Rank() >= RankTen:
		return 1
	}
	return 0
}

// String returns the card id, e.g. "10D", "JS", "2C".
func (c Card) String() string {
	if !c.Valid() {
		return "??"
	}
	return rankSymbols[c.Rank()] + suitLetters[c.Suit()]
}

// ParseCard parses a card id produced by String.
func ParseCard(id string) (Card, error) {
	id = strings.ToUpper(strings.TrimSpace(id))
	if len(id) < 2 {
		return 0, fmt.Errorf("invalid card id %q", id)
	}
	rankPart, suitPart := id[:len(id)-1], id[len(id)-1:]
	suit := -1
	for s, l := range suitLetters {
		if l == suitPart {
			suit = s
		}
	}
	rank := -1
	for r, sym := range rankSymbols {
		if sym != "" && sym == rankPart {
			rank = r
		}
	}
	if suit < 0 || rank < 0 {
		return 0, fmt.Errorf("invalid card id %q", id)
	}
	return NewCard(Suit(suit), Rank(rank)), nil
}

// MarshalText encodes the card as its id so JSON payloads carry readable cards.
func (c Card) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("cannot encode invalid card %d", uint8(c))
	}
	return []byte(c.String()), nil
}

func (c *Card) UnmarshalText(b []byte) error {
	parsed, err := ParseCard(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
