// internal/game/room.go
package game

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/zing/internal/engine"
	"github.com/jason-s-yu/zing/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	dispatchBuffer = 256
	sinkTimeout    = 2 * time.Second

	DefaultTurnDuration = 15 * time.Second
	DefaultLobbyGrace   = 120 * time.Second
	DefaultMatchGrace   = 30 * time.Minute
)

// Options wires a room to its collaborators. Nil sinks are skipped.
type Options struct {
	Logger      *logrus.Entry
	Sink        EventSink
	Broadcaster Broadcaster
	Recorder    MatchRecorder
	Tokens      TokenIssuer

	TurnDuration time.Duration
	LobbyGrace   time.Duration
	MatchGrace   time.Duration

	// Seeder returns the shuffle seed for each new round.
	Seeder func() string
	// OnClose is called, on its own goroutine, once the room has closed.
	OnClose func(roomID uuid.UUID)
	Now     func() time.Time
}

func (o *Options) applyDefaults() {
	if o.Logger == nil {
		o.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if o.TurnDuration <= 0 {
		o.TurnDuration = DefaultTurnDuration
	}
	if o.LobbyGrace <= 0 {
		o.LobbyGrace = DefaultLobbyGrace
	}
	if o.MatchGrace <= 0 {
		o.MatchGrace = DefaultMatchGrace
	}
	if o.Seeder == nil {
		o.Seeder = uuid.NewString
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Member is anyone attached to the room, seated or spectating.
type Member struct {
	ID        uuid.UUID
	Name      string
	Role      engine.Role
	Connected bool
	Evicted   bool
	JoinedAt  time.Time

	conn       Conn
	evictTimer *time.Timer
	evictEpoch uint64
}

type outbound struct {
	event    *engine.Event
	snapshot *Snapshot
}

// Room owns one match from forming to match end. All state is guarded by mu and every
// change goes through Handle, so commands for the same room never interleave.
type Room struct {
	ID        uuid.UUID
	CreatedAt time.Time

	mu        sync.Mutex
	settings  Settings
	phase     Phase
	hostID    uuid.UUID
	members   []*Member
	teams     map[uuid.UUID]int
	game      *engine.Game
	seq       uint64
	turnSeq   uint64
	turnTimer *time.Timer
	startedAt time.Time
	closed    bool
	dropped   uint64

	// per-command scratch
	out   []engine.Event
	dirty bool

	opts     Options
	log      *logrus.Entry // guarded by mu, gains the game field on start
	baseLog  *logrus.Entry // for timer callbacks and the dispatcher
	dispatch chan outbound
}

// NewRoom creates an empty room. hostID may be uuid.Nil, in which case the first seated
// member to join becomes host.
func NewRoom(hostID uuid.UUID, settings Settings, opts Options) *Room {
	settings.applyDefaults()
	opts.applyDefaults()
	id, _ := uuid.NewV7()
	r := &Room{
		ID:        id,
		CreatedAt: opts.Now(),
		settings:  settings,
		phase:     PhaseEmpty,
		hostID:    hostID,
		teams:     make(map[uuid.UUID]int),
		opts:      opts,
		log:       opts.Logger.WithField("room", id),
		dispatch:  make(chan outbound, dispatchBuffer),
	}
	r.baseLog = r.log
	go r.runDispatch()
	return r
}

// Handle applies one command and returns every event it produced, private notices
// included, in emission order.
func (r *Room) Handle(cmd Command) ([]engine.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.out, r.dirty = nil, false
	if r.closed {
		return nil, refuse(ReasonRoomClosed)
	}

	var err error
	switch c := cmd.(type) {
	case Join:
		err = r.join(c)
	case Leave:
		err = r.leave(c)
	case Start:
		err = r.start(c)
	case SetTeams:
		err = r.setTeams(c)
	case SetTimer:
		err = r.setTimer(c)
	case PlayCard:
		err = r.playCard(c)
	case TurnTimeout:
		err = r.turnTimeout(c)
	case Disconnect:
		err = r.disconnect(c)
	case Reconnect:
		err = r.reconnect(c)
	case Evict:
		err = r.evict(c)
	default:
		err = fmt.Errorf("unsupported command %T", cmd)
	}

	if r.dirty && r.opts.Broadcaster != nil {
		snap := r.snapshotLocked(uuid.Nil)
		r.enqueue(outbound{snapshot: &snap})
	}
	events := r.out
	r.out = nil
	return events, err
}

// Close stops every timer and retires the room.
func (r *Room) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.close()
}

func (r *Room) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

func (r *Room) HostID() uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hostID
}

// IsMember reports whether id is attached and not evicted.
func (r *Room) IsMember(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.member(id)
	return m != nil && !m.Evicted
}

// --- membership ---

func (r *Room) join(c Join) error {
	if c.Role == "" {
		c.Role = engine.RolePlayer
	}
	if m := r.member(c.PlayerID); m != nil {
		if m.Evicted {
			return refuse(ReasonNotAMember)
		}
		r.attach(m, c.Conn)
		return nil
	}
	if r.settings.Visibility == VisibilityPrivate && c.AccessCode != r.settings.AccessCode {
		return refuse(ReasonBadAccessCode)
	}
	if c.Role == engine.RolePlayer {
		switch r.phase {
		case PhaseEmpty, PhaseForming:
		case PhaseMatchOver:
			return refuse(ReasonMatchOver)
		default:
			return refuse(ReasonAlreadyStarted)
		}
		if len(r.players()) >= r.settings.Mode.Seats() {
			return refuse(ReasonRoomFull)
		}
	}

	m := &Member{
		ID:        c.PlayerID,
		Name:      c.Name,
		Role:      c.Role,
		Connected: true,
		JoinedAt:  r.opts.Now(),
		conn:      c.Conn,
	}
	r.members = append(r.members, m)
	if r.phase == PhaseEmpty {
		r.phase = PhaseForming
	}
	if r.hostID == uuid.Nil && m.Role == engine.RolePlayer {
		r.hostID = m.ID
	}
	r.log.WithField("player", m.ID).Infof("%s joined as %s", m.Name, m.Role)
	r.emit(engine.Event{Type: EventPlayerJoined, ActorID: m.ID, Payload: memberPayload(m)})
	r.sendSession(m)
	return nil
}

// attach restores a known member's connection. Assumes lock is held.
func (r *Room) attach(m *Member, conn Conn) {
	wasConnected := m.Connected
	r.stopEviction(m)
	m.conn = conn
	m.Connected = true
	r.syncPlayerConnected(m)
	if !wasConnected {
		r.log.WithField("player", m.ID).Info("member reconnected")
		r.emit(engine.Event{Type: EventPlayerReconnected, ActorID: m.ID, Payload: memberPayload(m)})
	}
	r.sendSession(m)
	if r.waitingOn(m.ID) && !r.settings.TimerEnabled {
		r.resetTurnClock()
	}
}

func (r *Room) leave(c Leave) error {
	m := r.member(c.PlayerID)
	if m == nil || m.Evicted {
		return refuse(ReasonNotAMember)
	}
	r.stopEviction(m)
	r.revokeToken(m)

	if r.removable(m) {
		r.removeMember(m)
		r.emit(engine.Event{Type: EventPlayerLeft, ActorID: m.ID, Payload: memberPayload(m)})
		r.afterRemoval(m.ID)
		return nil
	}

	// The seat stays in the match and is auto-played from here on.
	m.conn = nil
	m.Connected = false
	m.Evicted = true
	r.syncPlayerConnected(m)
	r.emit(engine.Event{Type: EventPlayerLeft, ActorID: m.ID, Payload: memberPayload(m)})
	if r.allSeatedEvicted() {
		r.abandon()
		return nil
	}
	if r.waitingOn(m.ID) {
		r.resetTurnClock()
	}
	return nil
}

func (r *Room) disconnect(c Disconnect) error {
	m := r.member(c.PlayerID)
	if m == nil {
		return refuse(ReasonNotAMember)
	}
	if !m.Connected || (c.Conn != nil && c.Conn != m.conn) {
		return nil
	}
	m.conn = nil
	m.Connected = false
	r.syncPlayerConnected(m)
	r.log.WithField("player", m.ID).Info("member disconnected")
	r.emit(engine.Event{Type: EventPlayerDisconnected, ActorID: m.ID, Payload: memberPayload(m)})

	if r.phase == PhaseMatchOver && r.connectedCount() == 0 {
		r.close()
		return nil
	}

	grace := r.opts.MatchGrace
	if r.removable(m) {
		grace = r.opts.LobbyGrace
	}
	r.scheduleEviction(m, grace)

	if r.waitingOn(m.ID) && !r.settings.TimerEnabled {
		r.resetTurnClock()
	}
	return nil
}

func (r *Room) reconnect(c Reconnect) error {
	if r.opts.Tokens == nil {
		return refuse(ReasonInvalidToken)
	}
	roomID, playerID, err := r.opts.Tokens.Verify(c.Token)
	if err != nil {
		return &RoomError{Code: ReasonInvalidToken, Err: err}
	}
	if roomID != r.ID {
		return refuse(ReasonInvalidToken)
	}
	m := r.member(playerID)
	if m == nil || m.Evicted {
		return refuse(ReasonNotAMember)
	}
	r.attach(m, c.Conn)
	return nil
}

func (r *Room) evict(c Evict) error {
	m := r.member(c.PlayerID)
	if m == nil || m.Connected || m.Evicted || c.Epoch != m.evictEpoch {
		r.log.Debugf("stale eviction for %s ignored", c.PlayerID)
		return nil
	}
	m.evictTimer = nil
	r.revokeToken(m)
	r.log.WithField("player", m.ID).Info("evicting member after grace period")

	if r.removable(m) {
		r.removeMember(m)
		r.emit(engine.Event{Type: EventPlayerEvicted, ActorID: m.ID, Payload: memberPayload(m)})
		r.afterRemoval(m.ID)
		return nil
	}

	m.Evicted = true
	r.emit(engine.Event{Type: EventPlayerEvicted, ActorID: m.ID, Payload: memberPayload(m)})
	if r.allSeatedEvicted() {
		r.abandon()
	}
	return nil
}

// --- host actions ---

func (r *Room) setTeams(c SetTeams) error {
	if err := r.requireForming(); err != nil {
		return err
	}
	if c.ActorID != r.hostID {
		return refuse(ReasonNotHost)
	}
	teams := make(map[uuid.UUID]int, len(c.Teams))
	for id, t := range c.Teams {
		m := r.member(id)
		if m == nil || m.Role != engine.RolePlayer {
			return refuse(ReasonNotAMember)
		}
		if t < 0 || t >= engine.TeamCount {
			return refuse(ReasonMissingTeamAssignment)
		}
		teams[id] = t
	}
	r.teams = teams
	r.emit(engine.Event{Type: EventTeamsUpdated, ActorID: c.ActorID, Payload: TeamsPayload{Teams: teams}})
	return nil
}

func (r *Room) setTimer(c SetTimer) error {
	if r.phase == PhaseMatchOver {
		return refuse(ReasonMatchOver)
	}
	if c.ActorID != r.hostID {
		return refuse(ReasonNotHost)
	}
	r.settings.TimerEnabled = c.Enabled
	r.emit(engine.Event{Type: EventTimerUpdated, ActorID: c.ActorID, Payload: TimerPayload{Enabled: c.Enabled}})
	if r.phase == PhaseInRound {
		r.resetTurnClock()
	}
	return nil
}

func (r *Room) start(c Start) error {
	if err := r.requireForming(); err != nil {
		return err
	}
	if c.ActorID != r.hostID {
		return refuse(ReasonNotHost)
	}
	players := r.players()
	switch n := len(players); {
	case n != 2 && n != 4:
		return refuse(ReasonInvalidPlayerCount)
	case n != r.settings.Mode.Seats():
		return refuse(ReasonModeMismatch)
	}

	teams := r.teams
	if len(c.Teams) > 0 {
		teams = c.Teams
	}
	seats, err := assignSeats(players, teams)
	if err != nil {
		return err
	}

	r.game = engine.NewGame(seats, r.settings.TargetScore)
	r.startedAt = r.opts.Now()
	r.log = r.log.WithField("game", r.game.ID)

	views := make([]SeatView, 0, len(r.game.Players))
	for _, p := range r.game.Players {
		views = append(views, SeatView{PlayerID: p.ID, Name: p.Name, Seat: p.Seat, Team: p.Team})
	}
	r.log.Infof("match started with %d players", len(views))
	r.emit(engine.Event{
		Type:    EventRoomStarted,
		ActorID: c.ActorID,
		Payload: RoomStartedPayload{
			GameID:       r.game.ID,
			Mode:         r.settings.Mode,
			Seats:        views,
			TargetScore:  r.game.TargetScore,
			TimerEnabled: r.settings.TimerEnabled,
		},
	})
	r.dealRound(0)
	r.mustHoldInvariant()
	r.resetTurnClock()
	return nil
}

// assignSeats seats players in join order with alternating teams, or, given an explicit
// assignment, interleaves the two teams so that seating alternates between them.
func assignSeats(players []*Member, teams map[uuid.UUID]int) ([]*engine.PlayerState, error) {
	newState := func(m *Member, seat, team int) *engine.PlayerState {
		return &engine.PlayerState{
			ID:        m.ID,
			Name:      m.Name,
			Seat:      seat,
			Role:      engine.RolePlayer,
			Team:      team,
			Hand:      []engine.Card{},
			Taken:     []engine.Card{},
			Connected: m.Connected,
		}
	}

	out := make([]*engine.PlayerState, 0, len(players))
	if len(teams) == 0 {
		for i, m := range players {
			out = append(out, newState(m, i, i%engine.TeamCount))
		}
		return out, nil
	}

	var byTeam [engine.TeamCount][]*Member
	for _, m := range players {
		t, ok := teams[m.ID]
		if !ok || t < 0 || t >= engine.TeamCount {
			return nil, refuse(ReasonMissingTeamAssignment)
		}
		byTeam[t] = append(byTeam[t], m)
	}
	if len(byTeam[0]) != len(byTeam[1]) {
		return nil, refuse(ReasonMissingTeamAssignment)
	}
	for i := range byTeam[0] {
		out = append(out, newState(byTeam[0][i], 2*i, 0), newState(byTeam[1][i], 2*i+1, 1))
	}
	return out, nil
}

// --- play ---

func (r *Room) playCard(c PlayCard) error {
	if err := r.requireInRound(); err != nil {
		return r.reject(c.PlayerID, err.Code, c.Card)
	}
	if m := r.member(c.PlayerID); m == nil || m.Evicted {
		return r.reject(c.PlayerID, ReasonUnknownPlayer, c.Card)
	}
	if r.game.CurrentTurn != c.PlayerID {
		return r.reject(c.PlayerID, ReasonNotYourTurn, c.Card)
	}
	return r.applyPlay(c.PlayerID, c.Card)
}

func (r *Room) turnTimeout(c TurnTimeout) error {
	if r.phase != PhaseInRound || c.TurnSeq != r.turnSeq || r.game.CurrentTurn != c.PlayerID {
		r.log.Debugf("stale turn timer for %s (seq %d, current %d)", c.PlayerID, c.TurnSeq, r.turnSeq)
		return nil
	}
	p := r.game.Player(c.PlayerID)
	if p == nil || len(p.Hand) == 0 {
		return nil
	}
	card := p.Hand[0]
	r.log.WithField("player", p.ID).Debugf("turn timed out, auto-playing %s", card)
	r.emit(engine.Event{Type: EventTurnTimeout, ActorID: p.ID, Payload: TurnTimeoutPayload{PlayerID: p.ID, Card: card}})
	return r.applyPlay(p.ID, card)
}

// applyPlay runs an intent through the engine and then the post-play pipeline: next deal,
// stranded talon, round end. Assumes lock is held and the turn has been checked.
func (r *Room) applyPlay(playerID uuid.UUID, card engine.Card) error {
	g := r.game
	ev := engine.ApplyIntent(g, engine.Intent{Kind: engine.IntentPlayCard, PlayerID: playerID, Card: card})
	if ev == nil {
		return r.reject(playerID, ReasonCardNotInHand, card)
	}
	r.emit(*ev)

	if g.AllHandsEmpty() && len(g.Deck) > 0 {
		// a fresh deal just happened, skip end-of-round checks this cycle
		r.emit(engine.DealNextHands(g, engine.HandSize))
	} else {
		if engine.NeedsStrandedAward(g) {
			if stranded := engine.AwardStrandedTalon(g); stranded != nil {
				r.emit(*stranded)
			}
		}
		if engine.IsRoundOver(g) {
			r.finishRound()
		}
	}
	r.mustHoldInvariant()
	r.resetTurnClock()
	return nil
}

// dealRound shuffles with a fresh seed and deals a new round. Assumes lock is held.
func (r *Room) dealRound(dealerSeat int) {
	seed := r.opts.Seeder()
	ev := engine.InitialDeal(r.game, seed, dealerSeat)
	r.phase = PhaseInRound
	r.log.WithField("round", r.game.Round).Infof("dealt round, dealer seat %d", dealerSeat)
	r.emit(ev)
}

// finishRound scores the round, updates the match and either ends it or deals again
// with the next dealer. Assumes lock is held.
func (r *Room) finishRound() {
	g := r.game
	rs := engine.ComputeRoundScores(g)
	r.phase = PhaseBetweenRounds
	r.emit(engine.Event{Type: EventRoundEnd, Payload: RoundEndPayload{Round: g.Round, Score: rs}})

	engine.ApplyRoundScore(g, rs)
	r.emit(engine.Event{
		Type:    EventMatchUpdate,
		Payload: MatchUpdatePayload{Cumulative: g.Scores, LastRound: rs, TargetScore: g.TargetScore},
	})
	r.log.WithField("round", g.Round).Infof("round ended %v, match %v", rs.Totals(), g.Scores)

	if winner, ok := engine.MatchWinner(g.Scores, g.TargetScore); ok {
		g.MatchOver = true
		r.phase = PhaseMatchOver
		r.stopTurnTimer()
		r.emit(engine.Event{
			Type:    EventMatchEnd,
			Payload: MatchEndPayload{WinnerTeam: winner, FinalScores: g.Scores, Rounds: g.Round},
		})
		r.log.Infof("match over, team %d wins %v", winner, g.Scores)
		r.recordMatch(winner)
		return
	}
	if g.Scores[0] >= g.TargetScore {
		r.log.Infof("teams tied at %d, playing another round", g.Scores[0])
	}

	dealer := g.Player(g.DealerID)
	r.dealRound((dealer.Seat + 1) % len(g.Players))
}

// mustHoldInvariant panics when a card went missing or got duplicated.
func (r *Room) mustHoldInvariant() {
	if err := r.game.CheckInvariant(); err != nil {
		r.log.Panicf("card invariant violated: %v", err)
	}
}

func (r *Room) reject(playerID uuid.UUID, code ReasonCode, card engine.Card) error {
	r.log.WithField("player", playerID).Debugf("intent rejected: %s", code)
	r.emit(engine.Event{
		Type:      EventIntentRejected,
		ActorID:   playerID,
		Recipient: playerID,
		Payload:   IntentRejectedPayload{Reason: code, Card: card},
	})
	return refuse(code)
}

func (r *Room) abandon() {
	g := r.game
	r.log.Warn("every seated player was evicted, abandoning match")
	r.emit(engine.Event{Type: EventMatchAbandoned, Payload: MatchAbandonedPayload{Scores: g.Scores, Rounds: g.Round}})
	r.close()
}

func (r *Room) recordMatch(winner int) {
	if r.opts.Recorder == nil {
		return
	}
	g := r.game
	summary := models.MatchSummary{
		RoomID:      r.ID,
		GameID:      g.ID,
		Mode:        string(r.settings.Mode),
		FinalScores: g.Scores,
		WinnerTeam:  winner,
		Rounds:      g.Round,
		StartedAt:   r.startedAt,
		EndedAt:     r.opts.Now(),
	}
	for _, p := range g.Players {
		summary.Players = append(summary.Players, models.MatchPlayer{PlayerID: p.ID, Name: p.Name, Seat: p.Seat, Team: p.Team})
	}
	rec, log := r.opts.Recorder, r.log
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
		defer cancel()
		if err := rec.RecordMatch(ctx, summary); err != nil {
			log.WithError(err).Warn("failed to record match summary")
		}
	}()
}

// --- emission ---

// emit stamps ev, delivers it to connected members and queues public events for the
// sinks. Private events carry no sequence number. Assumes lock is held.
func (r *Room) emit(ev engine.Event) {
	ev.RoomID = r.ID
	if r.game != nil {
		ev.GameID = r.game.ID
	}
	ev.At = r.opts.Now()

	if ev.Private() {
		if m := r.member(ev.Recipient); m != nil {
			r.deliver(m, ev)
		}
		r.out = append(r.out, ev)
		return
	}

	r.seq++
	ev.Seq = r.seq
	r.out = append(r.out, ev)
	r.dirty = true
	for _, m := range r.members {
		if m.Connected {
			r.deliver(m, ev)
		}
	}
	r.enqueue(outbound{event: &ev})
}

func (r *Room) deliver(m *Member, ev engine.Event) {
	if m.conn == nil {
		return
	}
	if !m.conn.Send(ev) {
		r.log.WithField("player", m.ID).Warnf("connection backed up, dropped %s", ev.Type)
	}
}

func (r *Room) enqueue(o outbound) {
	if r.closed || (r.opts.Sink == nil && r.opts.Broadcaster == nil) {
		return
	}
	select {
	case r.dispatch <- o:
	default:
		r.dropped++
		if o.event != nil {
			r.log.Warnf("dispatch queue full, dropping event seq %d (%d dropped)", o.event.Seq, r.dropped)
		} else {
			r.log.Warnf("dispatch queue full, dropping snapshot (%d dropped)", r.dropped)
		}
	}
}

// DroppedEvents counts outbound messages the sink and broadcaster never saw because the
// dispatch queue was full. Each dropped event leaves a seq gap in the persisted log.
func (r *Room) DroppedEvents() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// runDispatch hands events to the sink and broadcaster in emission order, off the room
// lock. It exits when the room closes.
func (r *Room) runDispatch() {
	for o := range r.dispatch {
		ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
		if o.event != nil {
			if r.opts.Sink != nil {
				if err := r.opts.Sink.Append(ctx, *o.event); err != nil {
					r.baseLog.WithError(err).Warnf("event sink append failed for seq %d", o.event.Seq)
				}
			}
			if r.opts.Broadcaster != nil {
				if err := r.opts.Broadcaster.Broadcast(ctx, r.ID, o.event); err != nil {
					r.baseLog.WithError(err).Warn("broadcast failed")
				}
			}
		} else if o.snapshot != nil && r.opts.Broadcaster != nil {
			if err := r.opts.Broadcaster.Broadcast(ctx, r.ID, o.snapshot); err != nil {
				r.baseLog.WithError(err).Warn("snapshot broadcast failed")
			}
		}
		cancel()
	}
}

// sendSession issues a fresh reconnect token and a state snapshot to m.
func (r *Room) sendSession(m *Member) {
	if r.opts.Tokens != nil {
		token, err := r.opts.Tokens.Issue(r.ID, m.ID)
		if err != nil {
			r.log.WithError(err).Warn("could not issue reconnect token")
		} else {
			r.emit(engine.Event{
				Type:      EventReconnectToken,
				Recipient: m.ID,
				Payload:   ReconnectTokenPayload{RoomID: r.ID, Token: token},
			})
		}
	}
	r.emit(engine.Event{Type: EventStateSync, Recipient: m.ID, Payload: r.snapshotLocked(m.ID)})
}

// --- timers ---

// resetTurnClock advances the turn sequence, which invalidates any pending timeout, and
// starts a countdown when the current player is on the clock: timers are enabled for the
// room, or the player is not connected to move.
// Assumes lock is held.
func (r *Room) resetTurnClock() {
	r.turnSeq++
	r.stopTurnTimer()
	if r.phase != PhaseInRound || r.game == nil {
		return
	}
	playerID := r.game.CurrentTurn
	if m := r.member(playerID); !r.settings.TimerEnabled && m != nil && m.Connected {
		return
	}
	seq := r.turnSeq
	r.turnTimer = time.AfterFunc(r.opts.TurnDuration, func() {
		if _, err := r.Handle(TurnTimeout{PlayerID: playerID, TurnSeq: seq}); err != nil {
			r.baseLog.WithError(err).Debug("turn timeout not applied")
		}
	})
}

func (r *Room) stopTurnTimer() {
	if r.turnTimer != nil {
		r.turnTimer.Stop()
		r.turnTimer = nil
	}
}

func (r *Room) scheduleEviction(m *Member, grace time.Duration) {
	r.stopEviction(m)
	id, epoch := m.ID, m.evictEpoch
	m.evictTimer = time.AfterFunc(grace, func() {
		if _, err := r.Handle(Evict{PlayerID: id, Epoch: epoch}); err != nil {
			r.baseLog.WithError(err).Debug("eviction not applied")
		}
	})
}

// stopEviction cancels a pending eviction and bumps the epoch so a timer that already
// fired is ignored.
func (r *Room) stopEviction(m *Member) {
	m.evictEpoch++
	if m.evictTimer != nil {
		m.evictTimer.Stop()
		m.evictTimer = nil
	}
}

// close stops all timers and retires the room. Assumes lock is held.
func (r *Room) close() {
	if r.closed {
		return
	}
	r.stopTurnTimer()
	for _, m := range r.members {
		r.stopEviction(m)
	}
	r.phase = PhaseClosed
	r.closed = true
	close(r.dispatch)
	r.log.Info("room closed")
	if r.opts.OnClose != nil {
		go r.opts.OnClose(r.ID)
	}
}

// --- helpers, all assume lock is held ---

func (r *Room) member(id uuid.UUID) *Member {
	for _, m := range r.members {
		if m.ID == id {
			return m
		}
	}
	return nil
}

// players returns seated, non-evicted members in join order.
func (r *Room) players() []*Member {
	out := make([]*Member, 0, len(r.members))
	for _, m := range r.members {
		if m.Role == engine.RolePlayer && !m.Evicted {
			out = append(out, m)
		}
	}
	return out
}

func (r *Room) connectedCount() int {
	n := 0
	for _, m := range r.members {
		if m.Connected {
			n++
		}
	}
	return n
}

// removable reports whether m can be dropped from the room outright instead of keeping a
// seat in a running match.
func (r *Room) removable(m *Member) bool {
	return m.Role == engine.RoleSpectator || r.game == nil || r.phase == PhaseMatchOver
}

func (r *Room) removeMember(m *Member) {
	for i, x := range r.members {
		if x == m {
			r.members = append(r.members[:i], r.members[i+1:]...)
			break
		}
	}
	delete(r.teams, m.ID)
}

// afterRemoval hands the host role on and closes the room once nobody is left.
func (r *Room) afterRemoval(removed uuid.UUID) {
	if len(r.members) == 0 {
		r.close()
		return
	}
	if r.hostID != removed {
		return
	}
	r.hostID = uuid.Nil
	for _, m := range r.members {
		if m.Role == engine.RolePlayer && !m.Evicted {
			r.hostID = m.ID
			break
		}
	}
	if r.hostID == uuid.Nil {
		r.hostID = r.members[0].ID
	}
	r.emit(engine.Event{Type: EventHostChanged, Payload: HostChangedPayload{HostID: r.hostID}})
}

func (r *Room) allSeatedEvicted() bool {
	if r.game == nil {
		return false
	}
	for _, p := range r.game.Players {
		if m := r.member(p.ID); m != nil && !m.Evicted {
			return false
		}
	}
	return true
}

func (r *Room) waitingOn(id uuid.UUID) bool {
	return r.phase == PhaseInRound && r.game != nil && r.game.CurrentTurn == id
}

func (r *Room) syncPlayerConnected(m *Member) {
	if r.game == nil {
		return
	}
	if p := r.game.Player(m.ID); p != nil {
		p.Connected = m.Connected
	}
}

func (r *Room) revokeToken(m *Member) {
	if r.opts.Tokens != nil {
		r.opts.Tokens.RevokePlayer(r.ID, m.ID)
	}
}

func (r *Room) requireForming() *RoomError {
	switch r.phase {
	case PhaseForming:
		return nil
	case PhaseEmpty:
		return refuse(ReasonInvalidPlayerCount)
	case PhaseMatchOver:
		return refuse(ReasonMatchOver)
	}
	return refuse(ReasonAlreadyStarted)
}

func (r *Room) requireInRound() *RoomError {
	switch r.phase {
	case PhaseInRound:
		return nil
	case PhaseMatchOver:
		return refuse(ReasonMatchOver)
	}
	return refuse(ReasonNotInRound)
}

func memberPayload(m *Member) MemberPayload {
	return MemberPayload{PlayerID: m.ID, Name: m.Name, Role: m.Role}
}
