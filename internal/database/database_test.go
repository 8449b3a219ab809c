package database

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/zing/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventArgsNullsZeroIDs(t *testing.T) {
	room := uuid.New()
	at := time.Now()
	args := eventArgs(models.EventRecord{
		RoomID:  room,
		Seq:     3,
		Type:    "player_joined",
		Payload: json.RawMessage(`{"name":"ana"}`),
		At:      at,
	})
	require.Len(t, args, 7)
	assert.Equal(t, room, args[0])
	assert.Equal(t, int64(3), args[1])
	assert.Nil(t, args[2])
	assert.Equal(t, "player_joined", args[3])
	assert.Nil(t, args[4])
	assert.Equal(t, []byte(`{"name":"ana"}`), args[5])
	assert.Equal(t, at, args[6])
}

func TestSchemaIsEmbedded(t *testing.T) {
	assert.Contains(t, schema, "PRIMARY KEY (room_id, seq)")
	assert.Contains(t, schema, "CREATE TABLE IF NOT EXISTS matches")
}
