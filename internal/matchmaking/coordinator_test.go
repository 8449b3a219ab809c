package matchmaking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jason-s-yu/zing/internal/engine"
	"github.com/jason-s-yu/zing/internal/game"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFactory struct {
	mu    sync.Mutex
	fail  bool
	calls [][]Assignment
}

func (f *fakeFactory) StartMatch(_ context.Context, _ game.Mode, seats []Assignment) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, seats)
	if f.fail {
		return uuid.Nil, errors.New("start refused")
	}
	return uuid.New(), nil
}

type recordingConn struct {
	mu     sync.Mutex
	events []engine.Event
}

func (c *recordingConn) Send(ev engine.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return true
}

func (c *recordingConn) last() engine.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.events[len(c.events)-1]
}

// reverse is a deterministic stand-in for the random solo shuffle.
func reverse(n int, swap func(i, j int)) {
	for i := 0; i < n/2; i++ {
		swap(i, n-1-i)
	}
}

func newCoordinator(f *fakeFactory) *Coordinator {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	return NewCoordinator(f, Options{Logger: logrus.NewEntry(logger), Shuffle: reverse})
}

func entrants(n int) []Entrant {
	out := make([]Entrant, n)
	for i := range out {
		out[i] = Entrant{PlayerID: uuid.New(), Name: fmt.Sprintf("p%d", i), Conn: &recordingConn{}}
	}
	return out
}

func teamsOf(seats []Assignment) map[uuid.UUID]int {
	out := make(map[uuid.UUID]int, len(seats))
	for _, s := range seats {
		out[s.PlayerID] = s.Team
	}
	return out
}

func TestOneVsOneFIFO(t *testing.T) {
	f := &fakeFactory{}
	c := newCoordinator(f)
	ctx := context.Background()
	p := entrants(3)

	res, err := c.Enqueue(ctx, game.Mode1v1, p[0])
	require.NoError(t, err)
	assert.False(t, res.Formed)
	queued := p[0].Conn.(*recordingConn).last()
	assert.Equal(t, game.EventQueued, queued.Type)
	assert.Equal(t, 1, queued.Payload.(game.QueuedPayload).Position)

	res, err = c.Enqueue(ctx, game.Mode1v1, p[1])
	require.NoError(t, err)
	require.True(t, res.Formed)
	assert.Equal(t, map[uuid.UUID]int{p[0].PlayerID: 0, p[1].PlayerID: 1}, teamsOf(res.Seats))

	found := p[1].Conn.(*recordingConn).last()
	assert.Equal(t, game.EventMatchFound, found.Type)
	assert.Equal(t, res.RoomID, found.Payload.(game.MatchFoundPayload).RoomID)
	assert.Equal(t, 1, found.Payload.(game.MatchFoundPayload).Team)

	res, err = c.Enqueue(ctx, game.Mode1v1, p[2])
	require.NoError(t, err)
	assert.False(t, res.Formed)
	_, pos, ok := c.Position(p[2].PlayerID)
	assert.True(t, ok)
	assert.Equal(t, 1, pos)
	_, _, ok = c.Position(p[0].PlayerID)
	assert.False(t, ok)
}

func TestEnqueueErrors(t *testing.T) {
	c := newCoordinator(&fakeFactory{})
	ctx := context.Background()
	p := entrants(3)

	_, err := c.Enqueue(ctx, game.Mode("3v3"), p[0])
	assert.ErrorIs(t, err, ErrUnknownMode)

	_, err = c.Enqueue(ctx, game.Mode2v2, p[0])
	require.NoError(t, err)
	_, err = c.Enqueue(ctx, game.Mode1v1, p[0])
	assert.ErrorIs(t, err, ErrAlreadyQueued)

	_, err = c.EnqueueParty(ctx, []Entrant{p[1]})
	assert.ErrorIs(t, err, ErrPartySize)
	_, err = c.EnqueueParty(ctx, []Entrant{p[1], p[1]})
	assert.ErrorIs(t, err, ErrPartySize)
	_, err = c.EnqueueParty(ctx, []Entrant{p[0], p[2]})
	assert.ErrorIs(t, err, ErrAlreadyQueued)
	assert.Equal(t, 1, c.Len(game.Mode2v2))
}

func TestPartiesMatchEachOtherFirst(t *testing.T) {
	f := &fakeFactory{}
	c := newCoordinator(f)
	ctx := context.Background()
	p := entrants(5)

	_, err := c.Enqueue(ctx, game.Mode2v2, p[0])
	require.NoError(t, err)
	res, err := c.EnqueueParty(ctx, p[1:3])
	require.NoError(t, err)
	assert.False(t, res.Formed)

	res, err = c.EnqueueParty(ctx, p[3:5])
	require.NoError(t, err)
	require.True(t, res.Formed)
	assert.Equal(t, map[uuid.UUID]int{
		p[1].PlayerID: 0, p[2].PlayerID: 0,
		p[3].PlayerID: 1, p[4].PlayerID: 1,
	}, teamsOf(res.Seats))

	mode, pos, ok := c.Position(p[0].PlayerID)
	assert.True(t, ok)
	assert.Equal(t, game.Mode2v2, mode)
	assert.Equal(t, 1, pos)
}

func TestPartyWithTwoSolos(t *testing.T) {
	c := newCoordinator(&fakeFactory{})
	ctx := context.Background()
	p := entrants(4)

	_, err := c.EnqueueParty(ctx, p[:2])
	require.NoError(t, err)
	_, err = c.Enqueue(ctx, game.Mode2v2, p[2])
	require.NoError(t, err)
	res, err := c.Enqueue(ctx, game.Mode2v2, p[3])
	require.NoError(t, err)
	require.True(t, res.Formed)
	assert.Equal(t, map[uuid.UUID]int{
		p[0].PlayerID: 0, p[1].PlayerID: 0,
		p[2].PlayerID: 1, p[3].PlayerID: 1,
	}, teamsOf(res.Seats))
	assert.Zero(t, c.Len(game.Mode2v2))
}

func TestFourSolosAreShuffled(t *testing.T) {
	c := newCoordinator(&fakeFactory{})
	ctx := context.Background()
	p := entrants(4)

	var res MatchResult
	for _, e := range p {
		var err error
		res, err = c.Enqueue(ctx, game.Mode2v2, e)
		require.NoError(t, err)
	}
	require.True(t, res.Formed)
	ordered := make([]uuid.UUID, 0, 4)
	for _, s := range res.Seats {
		ordered = append(ordered, s.PlayerID)
	}
	assert.Equal(t, []uuid.UUID{p[3].PlayerID, p[2].PlayerID, p[1].PlayerID, p[0].PlayerID}, ordered)
	assert.Equal(t, map[uuid.UUID]int{
		p[3].PlayerID: 0, p[2].PlayerID: 1,
		p[1].PlayerID: 0, p[0].PlayerID: 1,
	}, teamsOf(res.Seats))
}

func TestFailedStartRequeuesInOrder(t *testing.T) {
	f := &fakeFactory{fail: true}
	c := newCoordinator(f)
	ctx := context.Background()
	p := entrants(3)

	_, err := c.Enqueue(ctx, game.Mode1v1, p[0])
	require.NoError(t, err)
	res, err := c.Enqueue(ctx, game.Mode1v1, p[1])
	require.NoError(t, err)
	assert.False(t, res.Formed)
	require.Len(t, f.calls, 1)

	for i, e := range p[:2] {
		_, pos, ok := c.Position(e.PlayerID)
		require.True(t, ok)
		assert.Equal(t, i+1, pos)
	}

	f.fail = false
	res, err = c.Enqueue(ctx, game.Mode1v1, p[2])
	require.NoError(t, err)
	require.True(t, res.Formed)
	assert.Equal(t, map[uuid.UUID]int{p[0].PlayerID: 0, p[1].PlayerID: 1}, teamsOf(res.Seats))
	_, pos, ok := c.Position(p[2].PlayerID)
	assert.True(t, ok)
	assert.Equal(t, 1, pos)
}

func TestFailedPartyMatchRestoresParties(t *testing.T) {
	f := &fakeFactory{fail: true}
	c := newCoordinator(f)
	ctx := context.Background()
	p := entrants(4)

	_, err := c.EnqueueParty(ctx, p[:2])
	require.NoError(t, err)
	res, err := c.EnqueueParty(ctx, p[2:])
	require.NoError(t, err)
	assert.False(t, res.Formed)
	assert.Equal(t, 4, c.Len(game.Mode2v2))

	_, pos, _ := c.Position(p[0].PlayerID)
	assert.Equal(t, 1, pos)
	_, pos, _ = c.Position(p[3].PlayerID)
	assert.Equal(t, 2, pos)
}

func TestCancel(t *testing.T) {
	c := newCoordinator(&fakeFactory{})
	ctx := context.Background()
	p := entrants(3)

	_, err := c.Enqueue(ctx, game.Mode1v1, p[0])
	require.NoError(t, err)
	_, err = c.EnqueueParty(ctx, p[1:])
	require.NoError(t, err)

	assert.True(t, c.Cancel(p[0].PlayerID))
	assert.False(t, c.Cancel(p[0].PlayerID))
	assert.Zero(t, c.Len(game.Mode1v1))

	assert.True(t, c.Cancel(p[2].PlayerID))
	_, _, ok := c.Position(p[1].PlayerID)
	assert.False(t, ok)
	assert.Zero(t, c.Len(game.Mode2v2))

	// cancelled players can queue again
	_, err = c.Enqueue(ctx, game.Mode1v1, p[1])
	assert.NoError(t, err)
}
