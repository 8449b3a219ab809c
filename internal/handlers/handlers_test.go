package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/zing/internal/auth"
	"github.com/jason-s-yu/zing/internal/game"
	"github.com/jason-s-yu/zing/internal/matchmaking"
	"github.com/jason-s-yu/zing/internal/models"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	gs     *GameServer
	srv    *httptest.Server
	signer *auth.Signer
}

func newTestServer(t *testing.T, tweaks ...func(*ServerOptions)) *testServer {
	t.Helper()
	logger, _ := test.NewNullLogger()
	signer, err := auth.NewSigner(0)
	require.NoError(t, err)
	opts := ServerOptions{
		Logger:       logger,
		Signer:       signer,
		Tokens:       auth.NewReconnectTokens(signer.PrivateKey(), time.Hour),
		TargetScore:  101,
		TurnDuration: time.Hour,
		LobbyGrace:   time.Hour,
		MatchGrace:   time.Hour,
	}
	for _, tweak := range tweaks {
		tweak(&opts)
	}
	gs := NewGameServer(opts)
	srv := httptest.NewServer(Routes(gs, logger, nil))
	t.Cleanup(func() {
		srv.Close()
		gs.Shutdown()
	})
	return &testServer{gs: gs, srv: srv, signer: signer}
}

func (ts *testServer) token(t *testing.T, name string) (uuid.UUID, string) {
	t.Helper()
	id := uuid.New()
	tok, err := ts.signer.CreateJWT(id, name)
	require.NoError(t, err)
	return id, tok
}

func (ts *testServer) do(t *testing.T, method, path, token, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, ts.srv.URL+path, bytes.NewBufferString(body))
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (ts *testServer) dial(t *testing.T, ctx context.Context, path, token string) *websocket.Conn {
	t.Helper()
	target := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + path
	c, _, err := websocket.Dial(ctx, target, &websocket.DialOptions{
		Subprotocols: []string{subprotocol},
		HTTPHeader:   http.Header{"Authorization": {"Bearer " + token}},
	})
	require.NoError(t, err)
	t.Cleanup(func() { c.CloseNow() })
	return c
}

func (ts *testServer) createRoom(t *testing.T, token, body string) createRoomResponse {
	t.Helper()
	resp := ts.do(t, http.MethodPost, "/rooms", token, body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var out createRoomResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

// readUntil reads messages until one of type typ arrives.
func readUntil(t *testing.T, ctx context.Context, c *websocket.Conn, typ string) map[string]any {
	t.Helper()
	for {
		_, data, err := c.Read(ctx)
		require.NoError(t, err, "waiting for %s", typ)
		var msg map[string]any
		require.NoError(t, json.Unmarshal(data, &msg))
		if msg["type"] == typ {
			return msg
		}
	}
}

func send(t *testing.T, ctx context.Context, c *websocket.Conn, msg any) {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, c.Write(ctx, websocket.MessageText, data))
}

func TestGuestHandlerMintsToken(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.do(t, http.MethodPost, "/auth/guest?name=Ana", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out guestResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "Ana", out.Name)
	assert.NotEqual(t, uuid.Nil, out.UserID)

	id, err := ts.signer.AuthenticateJWT(out.Token)
	require.NoError(t, err)
	assert.Equal(t, out.UserID, id.UserID)
	assert.Equal(t, "Ana", id.Name)

	var found bool
	for _, c := range resp.Cookies() {
		if c.Name == authCookie {
			found = c.Value == out.Token
		}
	}
	assert.True(t, found, "auth cookie should carry the token")
}

func TestExtractCookieToken(t *testing.T) {
	assert.Equal(t, "abc", extractCookieToken("theme=dark; auth_token=abc", authCookie))
	assert.Equal(t, "abc", extractCookieToken(`auth_token="abc"; theme=dark`, authCookie))
	assert.Empty(t, extractCookieToken("xauth_token=abc", authCookie))
	assert.Empty(t, extractCookieToken("", authCookie))
}

func TestBearerTokenSources(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/rooms?token=q", nil)
	assert.Equal(t, "q", bearerToken(req))

	req.Header.Set("Cookie", "auth_token=c")
	assert.Equal(t, "c", bearerToken(req))

	req.Header.Set("Authorization", "Bearer h")
	assert.Equal(t, "h", bearerToken(req))
}

func TestHeartbeat(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.do(t, http.MethodGet, "/ping", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreateAndListRooms(t *testing.T) {
	ts := newTestServer(t)
	host, tok := ts.token(t, "host")

	public := ts.createRoom(t, tok, `{"mode":"2v2","timerEnabled":true}`)
	assert.Equal(t, host, public.HostID)
	assert.Equal(t, 4, public.Seats)
	assert.Equal(t, 101, public.TargetScore)
	assert.Empty(t, public.AccessCode)

	private := ts.createRoom(t, tok, `{"visibility":"private"}`)
	assert.NotEmpty(t, private.AccessCode)

	resp := ts.do(t, http.MethodPost, "/rooms", tok, `{"mode":"3v3"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/rooms", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listed []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listed))
	require.Len(t, listed, 1)
	assert.Equal(t, public.ID.String(), listed[0]["id"])

	resp = ts.do(t, http.MethodGet, "/rooms?mode=1v1", "", "")
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listed))
	assert.Empty(t, listed)

	resp = ts.do(t, http.MethodGet, "/rooms/"+uuid.NewString(), "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRoomWebsocketPlaysWithRedactedHands(t *testing.T) {
	ts := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	hostID, hostTok := ts.token(t, "host")
	guestID, guestTok := ts.token(t, "guest")
	room := ts.createRoom(t, hostTok, `{"mode":"1v1"}`)
	path := "/rooms/" + room.ID.String() + "/ws"

	hc := ts.dial(t, ctx, path, hostTok)
	tokenMsg := readUntil(t, ctx, hc, "reconnect_token")
	assert.NotEmpty(t, tokenMsg["payload"].(map[string]any)["token"])
	readUntil(t, ctx, hc, "state_sync")

	gc := ts.dial(t, ctx, path, guestTok)
	readUntil(t, ctx, gc, "state_sync")
	readUntil(t, ctx, hc, "player_joined")

	// only the host may start
	send(t, ctx, gc, map[string]any{"type": "start"})
	errMsg := readUntil(t, ctx, gc, "error")
	assert.Equal(t, "not_host", errMsg["reason"])

	send(t, ctx, hc, map[string]any{"type": "start"})
	for _, tc := range []struct {
		conn     *websocket.Conn
		self     uuid.UUID
		opponent uuid.UUID
	}{
		{hc, hostID, guestID},
		{gc, guestID, hostID},
	} {
		dealt := readUntil(t, ctx, tc.conn, "hands_dealt")
		payload := dealt["payload"].(map[string]any)
		hands := payload["dealt"].(map[string]any)
		assert.Len(t, hands[tc.self.String()], 4)
		assert.Nil(t, hands[tc.opponent.String()])
		assert.NotContains(t, payload, "seed")
	}

	// playing out of turn is answered with a private intent_rejected only
	resp := ts.do(t, http.MethodGet, "/rooms/"+room.ID.String(), guestTok, "")
	var snap map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	turn := snap["currentTurnPlayerId"]
	idle := gc
	if turn == guestID.String() {
		idle = hc
	}
	send(t, ctx, idle, map[string]any{"type": "play_card", "cardId": "2C"})
	rejected := readUntil(t, ctx, idle, "intent_rejected")
	assert.Equal(t, "not_your_turn", rejected["payload"].(map[string]any)["reason"])

	send(t, ctx, idle, map[string]any{"type": "ping"})
	readUntil(t, ctx, idle, "pong")
}

func memberConnected(room *game.Room, id uuid.UUID) bool {
	for _, m := range room.Snapshot(uuid.Nil).Members {
		if m.ID == id {
			return m.Connected
		}
	}
	return false
}

func TestRoomReconnectUnderNewBearerKeepsSeat(t *testing.T) {
	ts := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	hostID, hostTok := ts.token(t, "host")
	_, guestTok := ts.token(t, "guest")
	created := ts.createRoom(t, hostTok, `{"mode":"1v1"}`)
	path := "/rooms/" + created.ID.String() + "/ws"
	reconnectToken := func(c *websocket.Conn) string {
		msg := readUntil(t, ctx, c, "reconnect_token")
		return msg["payload"].(map[string]any)["token"].(string)
	}

	hc := ts.dial(t, ctx, path, hostTok)
	hostSeat := reconnectToken(hc)
	gc := ts.dial(t, ctx, path, guestTok)
	guestSeat := reconnectToken(gc)
	readUntil(t, ctx, hc, "player_joined")

	send(t, ctx, hc, map[string]any{"type": "start"})
	readUntil(t, ctx, hc, "hands_dealt")
	readUntil(t, ctx, gc, "hands_dealt")

	room, ok := ts.gs.Rooms.GetRoom(created.ID)
	require.True(t, ok)
	turn := room.Snapshot(uuid.Nil).CurrentTurn
	lost, seat := gc, guestSeat
	if turn == hostID {
		lost, seat = hc, hostSeat
	}

	lost.CloseNow()
	require.Eventually(t, func() bool { return !memberConnected(room, turn) }, 2*time.Second, 10*time.Millisecond)

	// the cookie is gone, so the socket arrives under a brand new guest identity
	_, freshTok := ts.token(t, "fresh guest")
	rc := ts.dial(t, ctx, path+"?reconnect="+url.QueryEscape(seat), freshTok)
	synced := readUntil(t, ctx, rc, "state_sync")
	assert.NotEmpty(t, synced["payload"].(map[string]any)["hand"])
	assert.True(t, memberConnected(room, turn))

	hand := room.Snapshot(turn).Hand
	require.NotEmpty(t, hand)
	send(t, ctx, rc, map[string]any{"type": "play_card", "cardId": hand[0].String()})
	require.Eventually(t, func() bool {
		return room.Snapshot(uuid.Nil).CurrentTurn != turn
	}, 2*time.Second, 10*time.Millisecond, "the reconnected seat should be able to play")

	rc.CloseNow()
	require.Eventually(t, func() bool { return !memberConnected(room, turn) }, 2*time.Second, 10*time.Millisecond,
		"closing the reconnected socket should release the seat")
}

func TestRoomWebsocketRefusals(t *testing.T) {
	ts := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, tok := ts.token(t, "p")
	base := "ws" + strings.TrimPrefix(ts.srv.URL, "http")

	t.Run("subprotocol", func(t *testing.T) {
		room := ts.createRoom(t, tok, `{}`)
		c, _, err := websocket.Dial(ctx, base+"/rooms/"+room.ID.String()+"/ws", nil)
		require.NoError(t, err)
		defer c.CloseNow()
		_, _, err = c.Read(ctx)
		assert.Equal(t, websocket.StatusCode(BadSubprotocolError), websocket.CloseStatus(err))
	})

	t.Run("unknown room", func(t *testing.T) {
		c := ts.dial(t, ctx, "/rooms/"+uuid.NewString()+"/ws", tok)
		_, _, err := c.Read(ctx)
		assert.Equal(t, websocket.StatusCode(InvalidRoomIDError), websocket.CloseStatus(err))
	})

	t.Run("private without code", func(t *testing.T) {
		room := ts.createRoom(t, tok, `{"visibility":"private"}`)
		c := ts.dial(t, ctx, "/rooms/"+room.ID.String()+"/ws", tok)
		_, _, err := c.Read(ctx)
		assert.Equal(t, websocket.StatusCode(JoinRefusedError), websocket.CloseStatus(err))
	})

	t.Run("bad reconnect token", func(t *testing.T) {
		room := ts.createRoom(t, tok, `{}`)
		c := ts.dial(t, ctx, "/rooms/"+room.ID.String()+"/ws?reconnect=garbage", tok)
		_, _, err := c.Read(ctx)
		assert.Equal(t, websocket.StatusCode(InvalidReconnectError), websocket.CloseStatus(err))
	})

	t.Run("reconnect token for another room", func(t *testing.T) {
		room := ts.createRoom(t, tok, `{}`)
		other, err := ts.gs.opts.Tokens.Issue(uuid.New(), uuid.New())
		require.NoError(t, err)
		c := ts.dial(t, ctx, "/rooms/"+room.ID.String()+"/ws?reconnect="+url.QueryEscape(other), tok)
		_, _, err = c.Read(ctx)
		assert.Equal(t, websocket.StatusCode(InvalidReconnectError), websocket.CloseStatus(err))
	})
}

func TestQueueWebsocketFormsMatch(t *testing.T) {
	ts := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, aTok := ts.token(t, "a")
	_, bTok := ts.token(t, "b")

	a := ts.dial(t, ctx, "/queue/ws?mode=1v1", aTok)
	queued := readUntil(t, ctx, a, "queued")
	assert.EqualValues(t, 1, queued["payload"].(map[string]any)["position"])

	b := ts.dial(t, ctx, "/queue/ws?mode=1v1", bTok)
	foundA := readUntil(t, ctx, a, "match_found")
	foundB := readUntil(t, ctx, b, "match_found")

	roomID := foundA["payload"].(map[string]any)["roomId"].(string)
	assert.Equal(t, roomID, foundB["payload"].(map[string]any)["roomId"])

	id, err := uuid.Parse(roomID)
	require.NoError(t, err)
	room, ok := ts.gs.Rooms.GetRoom(id)
	require.True(t, ok)
	assert.Equal(t, "in_round", string(room.Phase()))
	assert.Zero(t, ts.gs.Matchmaker.Len("1v1"))
}

func TestQueueWebsocketPartyPlaysTogether(t *testing.T) {
	ts := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var conns []*websocket.Conn
	for i, path := range []string{
		"/queue/ws?party=friends",
		"/queue/ws?party=friends",
		"/queue/ws?mode=2v2",
		"/queue/ws?mode=2v2",
	} {
		_, tok := ts.token(t, fmt.Sprintf("p%d", i))
		conns = append(conns, ts.dial(t, ctx, path, tok))
	}

	var roomID any
	for i, c := range conns {
		found := readUntil(t, ctx, c, "match_found")
		payload := found["payload"].(map[string]any)
		wantTeam := 1
		if i < 2 {
			wantTeam = 0
		}
		assert.EqualValues(t, wantTeam, payload["team"], "player %d", i)
		if roomID == nil {
			roomID = payload["roomId"]
		}
		assert.Equal(t, roomID, payload["roomId"])
	}
}

type fakeHistory struct {
	records map[uuid.UUID][]models.EventRecord
}

func (f fakeHistory) EventsForRoom(_ context.Context, roomID uuid.UUID) ([]models.EventRecord, error) {
	return f.records[roomID], nil
}

func TestRoomEventsHandler(t *testing.T) {
	finished := uuid.New()
	history := fakeHistory{records: map[uuid.UUID][]models.EventRecord{
		finished: {
			{RoomID: finished, Seq: 1, Type: "game_started", Payload: json.RawMessage(`{}`)},
			{RoomID: finished, Seq: 2, Type: "card_played", Payload: json.RawMessage(`{"cardId":"8C"}`)},
		},
	}}

	t.Run("disabled without a store", func(t *testing.T) {
		ts := newTestServer(t)
		resp := ts.do(t, http.MethodGet, "/rooms/"+finished.String()+"/events", "", "")
		assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
	})

	ts := newTestServer(t, func(o *ServerOptions) { o.History = history })
	_, tok := ts.token(t, "host")

	resp := ts.do(t, http.MethodGet, "/rooms/"+finished.String()+"/events", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got []models.EventRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got, 2)
	assert.EqualValues(t, 1, got[0].Seq)
	assert.Equal(t, "card_played", got[1].Type)

	live := ts.createRoom(t, tok, `{}`)
	resp = ts.do(t, http.MethodGet, "/rooms/"+live.ID.String()+"/events", "", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/rooms/"+uuid.NewString()+"/events", "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/rooms/nope/events", "", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestJoinPartyKeepsPartnerWhenPairingFails(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	a := matchmaking.Entrant{PlayerID: uuid.New(), Name: "a"}
	b := matchmaking.Entrant{PlayerID: uuid.New(), Name: "b"}

	_, err := ts.gs.Matchmaker.Enqueue(ctx, game.Mode2v2, b)
	require.NoError(t, err)

	paired, err := ts.gs.JoinParty(ctx, "friends", a)
	require.NoError(t, err)
	assert.False(t, paired)

	_, err = ts.gs.JoinParty(ctx, "friends", b)
	assert.ErrorIs(t, err, matchmaking.ErrAlreadyQueued)

	// a is still waiting, so b can complete the party once out of the solo queue
	ts.gs.Matchmaker.Cancel(b.PlayerID)
	paired, err = ts.gs.JoinParty(ctx, "friends", b)
	require.NoError(t, err)
	assert.True(t, paired)
	_, _, queued := ts.gs.Matchmaker.Position(a.PlayerID)
	assert.True(t, queued)
}

func TestQueueWebsocketRejectsBadMode(t *testing.T) {
	ts := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, tok := ts.token(t, "a")

	c := ts.dial(t, ctx, "/queue/ws?mode=3v3", tok)
	_, _, err := c.Read(ctx)
	assert.Equal(t, websocket.StatusCode(InvalidQueueRequestError), websocket.CloseStatus(err))
}
