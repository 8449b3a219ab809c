// internal/matchmaking/coordinator.go
package matchmaking

import (
	"context"
	"errors"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/zing/internal/engine"
	"github.com/jason-s-yu/zing/internal/game"
	"github.com/sirupsen/logrus"
)

var (
	ErrAlreadyQueued = errors.New("player is already queued")
	ErrUnknownMode   = errors.New("unknown queue mode")
	ErrPartySize     = errors.New("a party must have exactly two distinct players")
)

// Entrant is one player waiting for a match. Conn, when set, receives queue notices and
// is handed to the room once a match forms.
type Entrant struct {
	PlayerID uuid.UUID
	Name     string
	Conn     game.Conn
}

// Assignment places an entrant on a team in a freshly formed match.
type Assignment struct {
	Entrant
	Team int
}

// RoomFactory creates a room for matched entrants, joins them and starts the session.
type RoomFactory interface {
	StartMatch(ctx context.Context, mode game.Mode, seats []Assignment) (uuid.UUID, error)
}

// MatchResult reports whether an enqueue formed a match, and with whom.
type MatchResult struct {
	Formed bool
	RoomID uuid.UUID
	Mode   game.Mode
	Seats  []Assignment
}

type entry struct {
	Entrant
	queuedAt time.Time
}

type party struct {
	id       uuid.UUID
	members  [2]Entrant
	queuedAt time.Time
}

// Options configures a Coordinator.
type Options struct {
	Logger *logrus.Entry
	// Shuffle randomizes the order of four solo entrants before teams are assigned.
	Shuffle func(n int, swap func(i, j int))
	Now     func() time.Time
}

// Coordinator keeps the per-mode queues and forms matches as soon as enough entrants are
// waiting. All queue changes happen under one mutex, so a match is formed at most once.
type Coordinator struct {
	mu      sync.Mutex
	solo    map[game.Mode][]*entry
	parties []*party // 2v2 only
	queued  map[uuid.UUID]game.Mode

	factory RoomFactory
	log     *logrus.Entry
	shuffle func(n int, swap func(i, j int))
	now     func() time.Time
}

func NewCoordinator(factory RoomFactory, opts Options) *Coordinator {
	if opts.Logger == nil {
		opts.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if opts.Shuffle == nil {
		opts.Shuffle = rand.Shuffle
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Coordinator{
		solo: map[game.Mode][]*entry{
			game.Mode1v1: {},
			game.Mode2v2: {},
		},
		queued:  make(map[uuid.UUID]game.Mode),
		factory: factory,
		log:     opts.Logger.WithField("component", "matchmaking"),
		shuffle: opts.Shuffle,
		now:     opts.Now,
	}
}

// Enqueue adds a solo entrant to the mode's queue and forms a match if one is ready.
func (c *Coordinator) Enqueue(ctx context.Context, mode game.Mode, e Entrant) (MatchResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.solo[mode]; !ok {
		return MatchResult{}, ErrUnknownMode
	}
	if _, ok := c.queued[e.PlayerID]; ok {
		return MatchResult{}, ErrAlreadyQueued
	}
	c.solo[mode] = append(c.solo[mode], &entry{Entrant: e, queuedAt: c.now()})
	c.queued[e.PlayerID] = mode
	c.log.WithField("player", e.PlayerID).Debugf("queued for %s", mode)
	c.notifyQueued(mode, e, len(c.solo[mode]))

	return c.tryMatch(ctx, mode), nil
}

// EnqueueParty queues two players who want to play 2v2 on the same team.
func (c *Coordinator) EnqueueParty(ctx context.Context, members []Entrant) (MatchResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(members) != 2 || members[0].PlayerID == members[1].PlayerID {
		return MatchResult{}, ErrPartySize
	}
	for _, m := range members {
		if _, ok := c.queued[m.PlayerID]; ok {
			return MatchResult{}, ErrAlreadyQueued
		}
	}
	p := &party{id: uuid.New(), members: [2]Entrant{members[0], members[1]}, queuedAt: c.now()}
	c.parties = append(c.parties, p)
	for _, m := range p.members {
		c.queued[m.PlayerID] = game.Mode2v2
		c.notifyQueued(game.Mode2v2, m, len(c.parties))
	}
	c.log.WithField("party", p.id).Debug("party queued for 2v2")

	return c.tryMatch(ctx, game.Mode2v2), nil
}

// Cancel removes a player from whichever queue holds them. Cancelling one member of a
// party withdraws the whole party. It reports whether anything was removed.
func (c *Coordinator) Cancel(playerID uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	mode, ok := c.queued[playerID]
	if !ok {
		return false
	}
	if i := slices.IndexFunc(c.solo[mode], func(e *entry) bool { return e.PlayerID == playerID }); i >= 0 {
		c.solo[mode] = slices.Delete(c.solo[mode], i, i+1)
		delete(c.queued, playerID)
		c.log.WithField("player", playerID).Debugf("left %s queue", mode)
		return true
	}
	if i := slices.IndexFunc(c.parties, func(p *party) bool { return p.has(playerID) }); i >= 0 {
		p := c.parties[i]
		c.parties = slices.Delete(c.parties, i, i+1)
		for _, m := range p.members {
			delete(c.queued, m.PlayerID)
		}
		c.log.WithField("party", p.id).Debug("party left 2v2 queue")
		return true
	}
	delete(c.queued, playerID)
	return false
}

// Position returns the 1-based queue position of a player, counting parties and solo
// entrants separately.
func (c *Coordinator) Position(playerID uuid.UUID) (game.Mode, int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	mode, ok := c.queued[playerID]
	if !ok {
		return "", 0, false
	}
	if i := slices.IndexFunc(c.solo[mode], func(e *entry) bool { return e.PlayerID == playerID }); i >= 0 {
		return mode, i + 1, true
	}
	if i := slices.IndexFunc(c.parties, func(p *party) bool { return p.has(playerID) }); i >= 0 {
		return mode, i + 1, true
	}
	return "", 0, false
}

// Len returns the number of queued players for mode, party members included.
func (c *Coordinator) Len(mode game.Mode) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.solo[mode])
	if mode == game.Mode2v2 {
		n += 2 * len(c.parties)
	}
	return n
}

// tryMatch forms at most one match for mode. Assumes lock is held.
func (c *Coordinator) tryMatch(ctx context.Context, mode game.Mode) MatchResult {
	if mode == game.Mode1v1 {
		q := c.solo[mode]
		if len(q) < 2 {
			return MatchResult{}
		}
		picked := slices.Clone(q[:2])
		c.solo[mode] = slices.Delete(q, 0, 2)
		seats := []Assignment{{Entrant: picked[0].Entrant, Team: 0}, {Entrant: picked[1].Entrant, Team: 1}}
		return c.form(ctx, mode, seats, picked, nil)
	}

	q := c.solo[mode]
	switch {
	case len(c.parties) >= 2:
		picked := slices.Clone(c.parties[:2])
		c.parties = slices.Delete(c.parties, 0, 2)
		seats := append(picked[0].assign(0), picked[1].assign(1)...)
		return c.form(ctx, mode, seats, nil, picked)

	case len(c.parties) >= 1 && len(q) >= 2:
		p := c.parties[0]
		c.parties = slices.Delete(c.parties, 0, 1)
		solos := slices.Clone(q[:2])
		c.solo[mode] = slices.Delete(q, 0, 2)
		seats := append(p.assign(0),
			Assignment{Entrant: solos[0].Entrant, Team: 1},
			Assignment{Entrant: solos[1].Entrant, Team: 1})
		return c.form(ctx, mode, seats, solos, []*party{p})

	case len(q) >= 4:
		solos := slices.Clone(q[:4])
		c.solo[mode] = slices.Delete(q, 0, 4)
		order := slices.Clone(solos)
		c.shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		seats := make([]Assignment, 0, len(order))
		for i, e := range order {
			seats = append(seats, Assignment{Entrant: e.Entrant, Team: i % engine.TeamCount})
		}
		return c.form(ctx, mode, seats, solos, nil)
	}
	return MatchResult{}
}

// form asks the factory for a room. On failure the picked entrants and parties go back to
// the front of their queues in their original order. Assumes lock is held.
func (c *Coordinator) form(ctx context.Context, mode game.Mode, seats []Assignment, solos []*entry, parties []*party) MatchResult {
	roomID, err := c.factory.StartMatch(ctx, mode, seats)
	if err != nil {
		c.log.WithError(err).Warnf("could not start %s match, re-queuing %d players", mode, len(seats))
		c.solo[mode] = append(solos, c.solo[mode]...)
		if len(parties) > 0 {
			c.parties = append(parties, c.parties...)
		}
		return MatchResult{Mode: mode}
	}

	for _, s := range seats {
		delete(c.queued, s.PlayerID)
		c.send(s.Entrant, game.EventMatchFound, game.MatchFoundPayload{RoomID: roomID, Mode: mode, Team: s.Team})
	}
	c.log.WithField("room", roomID).Infof("formed %s match with %d players", mode, len(seats))
	c.notifyPositions(mode)
	return MatchResult{Formed: true, RoomID: roomID, Mode: mode, Seats: seats}
}

// notifyPositions tells everyone still waiting in mode where they stand.
func (c *Coordinator) notifyPositions(mode game.Mode) {
	for i, e := range c.solo[mode] {
		c.notifyQueued(mode, e.Entrant, i+1)
	}
	if mode != game.Mode2v2 {
		return
	}
	for i, p := range c.parties {
		for _, m := range p.members {
			c.notifyQueued(mode, m, i+1)
		}
	}
}

func (c *Coordinator) notifyQueued(mode game.Mode, e Entrant, pos int) {
	c.send(e, game.EventQueued, game.QueuedPayload{Mode: mode, Position: pos})
}

func (c *Coordinator) send(e Entrant, t engine.EventType, payload any) {
	if e.Conn == nil {
		return
	}
	ev := engine.Event{Type: t, Recipient: e.PlayerID, Payload: payload, At: c.now()}
	if !e.Conn.Send(ev) {
		c.log.WithField("player", e.PlayerID).Warnf("connection backed up, dropped %s", t)
	}
}

func (p *party) has(id uuid.UUID) bool {
	return p.members[0].PlayerID == id || p.members[1].PlayerID == id
}

func (p *party) assign(team int) []Assignment {
	return []Assignment{{Entrant: p.members[0], Team: team}, {Entrant: p.members[1], Team: team}}
}
