package broadcast

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/jason-s-yu/zing/internal/engine"
	"github.com/jason-s-yu/zing/internal/game"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	subject string
	data    []byte
}

type fakePublisher struct {
	msgs []published
}

func (f *fakePublisher) Publish(subj string, data []byte) error {
	f.msgs = append(f.msgs, published{subject: subj, data: data})
	return nil
}

func TestBroadcastStripsDealtHands(t *testing.T) {
	pub := &fakePublisher{}
	b := newNATS(pub, logrus.NewEntry(logrus.New()))
	room, player := uuid.New(), uuid.New()
	c, err := engine.ParseCard("AS")
	require.NoError(t, err)

	ev := &engine.Event{
		Seq:    4,
		Type:   engine.EventHandsDealt,
		RoomID: room,
		Payload: engine.HandsDealtPayload{
			HandNumber: 1,
			Dealt:      map[uuid.UUID][]engine.Card{player: {c}},
			Seed:       "golden",
		},
	}
	require.NoError(t, b.Broadcast(context.Background(), room, ev))
	require.Len(t, pub.msgs, 1)
	assert.Equal(t, "zing.room."+room.String(), pub.msgs[0].subject)

	var env struct {
		Kind  string `json:"kind"`
		Event struct {
			Seq     uint64                   `json:"seq"`
			Payload engine.HandsDealtPayload `json:"payload"`
		} `json:"event"`
	}
	require.NoError(t, json.Unmarshal(pub.msgs[0].data, &env))
	assert.Equal(t, KindEvent, env.Kind)
	assert.Equal(t, uint64(4), env.Event.Seq)
	assert.Empty(t, env.Event.Payload.Dealt[player])
	assert.Empty(t, env.Event.Payload.Seed)

	// the room's own copy is untouched
	assert.Len(t, ev.Payload.(engine.HandsDealtPayload).Dealt[player], 1)
}

func TestBroadcastSnapshot(t *testing.T) {
	pub := &fakePublisher{}
	b := newNATS(pub, logrus.NewEntry(logrus.New()))
	room := uuid.New()

	require.NoError(t, b.Broadcast(context.Background(), room, &game.Snapshot{RoomID: room, Phase: game.PhaseForming}))
	var env Envelope
	require.NoError(t, json.Unmarshal(pub.msgs[0].data, &env))
	assert.Equal(t, KindSnapshot, env.Kind)
	require.NotNil(t, env.Snapshot)
	assert.Equal(t, game.PhaseForming, env.Snapshot.Phase)

	assert.Error(t, b.Broadcast(context.Background(), room, "nope"))
}
