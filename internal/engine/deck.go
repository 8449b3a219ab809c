package engine

import "hash/fnv"

// NewDeck returns the 52 cards in canonical suit-major order (clubs, diamonds, hearts,
// spades; ace through king within a suit). With a non-empty seed the deck is shuffled
// with ShuffleSeeded.
func NewDeck(seed string) []Card {
	deck := make([]Card, 0, DeckSize)
	for s := SuitClubs; s <= SuitSpades; s++ {
		for r := RankAce; r <= RankKing; r++ {
			deck = append(deck, NewCard(s, r))
		}
	}
	if seed != "" {
		ShuffleSeeded(deck, seed)
	}
	return deck
}

// ShuffleSeeded permutes cards in place with a Fisher-Yates shuffle driven by a
// mulberry32 generator seeded from the FNV-1a hash of seed. The permutation depends only
// on the seed string, so a stored seed replays the same deal on any platform.
func ShuffleSeeded(cards []Card, seed string) {
	rng := newMulberry32(seed)
	for i := len(cards) - 1; i > 0; i-- {
		j := rng.intn(i + 1)
		cards[i], cards[j] = cards[j], cards[i]
	}
}

type mulberry32 struct {
	state uint32
}

func newMulberry32(seed string) *mulberry32 {
	h := fnv.New32a()
	h.Write([]byte(seed))
	return &mulberry32{state: h.Sum32()}
}

func (m *mulberry32) next() uint32 {
	m.state += 0x6D2B79F5
	t := m.state
	t = (t ^ t>>15) * (t | 1)
	t ^= t + (t^t>>7)*(t|61)
	return t ^ t>>14
}

// intn maps the next 32-bit output onto [0, n) as floor(x/2^32 * n).
func (m *mulberry32) intn(n int) int {
	return int(uint64(m.next()) * uint64(n) >> 32)
}
