package engine

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a single state transition.
type EventType string

const (
	EventHandsDealt EventType = "hands_dealt"
	EventCardPlayed EventType = "card_played"
	EventTalonTaken EventType = "talon_taken"
)

// Event is an immutable fact about one transition. Seq, RoomID, GameID and At are stamped
// by the session that emits it; the engine only fills Type, ActorID and Payload.
// A non-nil Recipient marks a private notice for one member; private notices carry no
// sequence number and are never persisted.
type Event struct {
	Seq       uint64    `json:"seq,omitzero"`
	Type      EventType `json:"type"`
	RoomID    uuid.UUID `json:"roomId,omitzero"`
	GameID    uuid.UUID `json:"gameId,omitzero"`
	ActorID   uuid.UUID `json:"actorId,omitzero"`
	Payload   any       `json:"payload,omitempty"`
	At        time.Time `json:"at,omitzero"`
	Recipient uuid.UUID `json:"-"`
}

// Private reports whether the event is addressed to a single member.
func (e Event) Private() bool { return e.Recipient != uuid.Nil }

// HandsDealtPayload accompanies hands_dealt. Talon, FaceUp, DealerID and Seed are set
// only on the first deal of a round.
type HandsDealtPayload struct {
	HandNumber int                  `json:"handNumber"`
	Dealt      map[uuid.UUID][]Card `json:"dealt"`
	DeckSize   int                  `json:"deckSize"`
	Initial    bool                 `json:"initial,omitempty"`
	DealerID   uuid.UUID            `json:"dealerId,omitzero"`
	Talon      []Card               `json:"talon,omitempty"`
	FaceUp     []Card               `json:"faceUp,omitempty"`
	Seed       string               `json:"seed,omitempty"`
}

// ForViewer returns a copy that only reveals the viewer's own dealt cards and drops the
// seed. Other players keep an empty entry so clients still see who was dealt.
func (p HandsDealtPayload) ForViewer(viewer uuid.UUID) HandsDealtPayload {
	out := p
	out.Seed = ""
	out.Dealt = make(map[uuid.UUID][]Card, len(p.Dealt))
	for id, cards := range p.Dealt {
		if id == viewer {
			out.Dealt[id] = cards
			continue
		}
		out.Dealt[id] = nil
	}
	return out
}

type CardPlayedPayload struct {
	PlayerID uuid.UUID `json:"playerId"`
	Card     Card      `json:"cardId"`
}

// Zing describes a zing bonus awarded with a capture.
type Zing struct {
	Points int  `json:"points"`
	Double bool `json:"double"`
}

type TalonTakenPayload struct {
	PlayerID uuid.UUID `json:"playerId"`
	Card     Card      `json:"cardId,omitzero"`
	Taken    []Card    `json:"taken"`
	Zing     *Zing     `json:"zing"`
	Stranded bool      `json:"stranded,omitempty"`
}
