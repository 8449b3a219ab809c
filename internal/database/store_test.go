package database

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/zing/internal/engine"
	"github.com/jason-s-yu/zing/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestStore connects to the database named by ZING_TEST_POSTGRES_DSN and applies the
// schema, skipping the test when it is unset.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("ZING_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("ZING_TEST_POSTGRES_DSN not set")
	}
	logger, _ := test.NewNullLogger()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s, err := Connect(ctx, dsn, logrus.NewEntry(logger))
	require.NoError(t, err)
	t.Cleanup(s.Close)
	require.NoError(t, s.Migrate(ctx))
	return s
}

func TestStoreEventsAreIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	room, game, actor := uuid.New(), uuid.New(), uuid.New()
	at := time.Now().UTC().Truncate(time.Microsecond)

	joined := engine.Event{Seq: 1, Type: "player_joined", RoomID: room, ActorID: actor, Payload: map[string]string{"name": "ana"}, At: at}
	require.NoError(t, s.Append(ctx, joined))
	require.NoError(t, s.Append(ctx, joined), "a replayed seq is ignored")

	rec := func(seq uint64, typ string) models.EventRecord {
		return models.EventRecord{RoomID: room, GameID: game, Seq: seq, Type: typ, Payload: json.RawMessage(`{}`), At: at}
	}
	batch := []models.EventRecord{rec(1, "player_joined"), rec(2, "game_started"), rec(3, "hands_dealt")}
	require.NoError(t, s.InsertEvents(ctx, batch))
	require.NoError(t, s.InsertEvents(ctx, batch[1:]), "redelivered batches are ignored")
	require.NoError(t, s.InsertEvents(ctx, nil))

	got, err := s.EventsForRoom(ctx, room)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, r := range got {
		assert.EqualValues(t, i+1, r.Seq)
	}
	// the first write of seq 1 wins
	assert.Equal(t, actor, got[0].ActorID)
	assert.Equal(t, uuid.Nil, got[0].GameID)
	assert.JSONEq(t, `{"name":"ana"}`, string(got[0].Payload))
	assert.Equal(t, game, got[1].GameID)
	assert.Equal(t, uuid.Nil, got[1].ActorID)
	assert.True(t, at.Equal(got[2].At))

	none, err := s.EventsForRoom(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStoreRecordMatchOnce(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	start := time.Now().Add(-time.Hour)
	m := models.MatchSummary{
		RoomID: uuid.New(),
		GameID: uuid.New(),
		Mode:   "1v1",
		Players: []models.MatchPlayer{
			{PlayerID: uuid.New(), Name: "ana", Seat: 0, Team: 0},
			{PlayerID: uuid.New(), Name: "bo", Seat: 1, Team: 1},
		},
		FinalScores: [2]int{104, 61},
		WinnerTeam:  0,
		Rounds:      3,
		StartedAt:   start,
		EndedAt:     start.Add(40 * time.Minute),
	}
	require.NoError(t, s.RecordMatch(ctx, m))
	require.NoError(t, s.RecordMatch(ctx, m), "recording the same game again is a no-op")

	var players, winners int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE won) FROM match_players WHERE match_id = $1`, m.GameID,
	).Scan(&players, &winners)
	require.NoError(t, err)
	assert.Equal(t, 2, players)
	assert.Equal(t, 1, winners)
}
