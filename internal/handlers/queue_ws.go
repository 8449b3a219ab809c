// internal/handlers/queue_ws.go
package handlers

import (
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/jason-s-yu/zing/internal/game"
	"github.com/jason-s-yu/zing/internal/middleware"
)

// QueueWSHandler serves /queue/ws. With mode=<1v1|2v2> the player is queued on connect;
// with party=<code> they wait for a partner holding the same code and queue together for
// 2v2. Once matched, the same socket carries the room's events and accepts play intents.
func QueueWSHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, authErr := gs.ensureIdentity(w, r)

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{subprotocol},
			OriginPatterns: []string{"*"}, // Adjust in production
		})
		if err != nil {
			gs.log.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != subprotocol {
			c.Close(BadSubprotocolError, "client must speak the zing subprotocol")
			return
		}
		if authErr != nil {
			gs.log.Warnf("user authentication failed for queue: %v", authErr)
			c.Close(InvalidAuthTokenError, "authentication failed")
			return
		}

		q := r.URL.Query()
		var mode game.Mode
		if raw := q.Get("mode"); raw != "" {
			if mode, err = game.ParseMode(raw); err != nil {
				c.Close(InvalidQueueRequestError, err.Error())
				return
			}
		}
		party := strings.TrimSpace(q.Get("party"))
		if party != "" && mode == game.Mode1v1 {
			c.Close(InvalidQueueRequestError, "parties only queue for 2v2")
			return
		}

		client := newWSClient(id)
		s := gs.newSession(c, client, r.URL.Path)
		middleware.LogWebSocketConnect(s.log, r.RemoteAddr, r.URL.Path)

		switch {
		case party != "":
			if _, err := gs.JoinParty(r.Context(), party, s.entrant()); err != nil {
				c.Close(InvalidQueueRequestError, err.Error())
				return
			}
		case mode != "":
			s.enqueue(r.Context(), mode)
		}

		s.run(r.Context())
		middleware.LogWebSocketDisconnect(s.log, r.RemoteAddr, r.URL.Path, nil)
		c.Close(websocket.StatusNormalClosure, "")
	}
}
