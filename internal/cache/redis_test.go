package cache

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/zing/internal/engine"
	"github.com/jason-s-yu/zing/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRecordRoundTrip(t *testing.T) {
	c, err := engine.ParseCard("10D")
	require.NoError(t, err)
	ev := engine.Event{
		Seq:     7,
		Type:    engine.EventCardPlayed,
		RoomID:  uuid.New(),
		GameID:  uuid.New(),
		ActorID: uuid.New(),
		Payload: engine.CardPlayedPayload{Card: c},
		At:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	rec, err := models.NewEventRecord(ev)
	require.NoError(t, err)
	data, err := json.Marshal(rec)
	require.NoError(t, err)

	got, err := DecodeRecord(string(data))
	require.NoError(t, err)
	assert.Equal(t, ev.RoomID, got.RoomID)
	assert.Equal(t, ev.GameID, got.GameID)
	assert.Equal(t, uint64(7), got.Seq)
	assert.Equal(t, "card_played", got.Type)
	assert.True(t, ev.At.Equal(got.At))
	assert.Contains(t, string(got.Payload), `"10D"`)
}

func TestDecodeRecordRejectsGarbage(t *testing.T) {
	_, err := DecodeRecord("not json")
	assert.Error(t, err)
	_, err = DecodeRecord(`{"type":"card_played"}`)
	assert.Error(t, err)
}
