// internal/handlers/room_ws.go
package handlers

import (
	"net/http"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jason-s-yu/zing/internal/engine"
	"github.com/jason-s-yu/zing/internal/game"
	"github.com/jason-s-yu/zing/internal/middleware"
)

// RoomWSHandler attaches a websocket to a room at /rooms/{id}/ws.
//
// Query parameters: reconnect=<token> resumes a seat, role=spectator watches without a
// seat, code=<access code> is required for private rooms.
func RoomWSHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			http.Error(w, "invalid room id", http.StatusBadRequest)
			return
		}
		// the auth cookie has to be written before the upgrade
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
			gs.log.Warnf("user authentication failed for room %s: %v", roomID, authErr)
			c.Close(InvalidAuthTokenError, "authentication failed")
			return
		}

		room, ok := gs.Rooms.GetRoom(roomID)
		if !ok {
			c.Close(InvalidRoomIDError, "room does not exist")
			return
		}

		q := r.URL.Query()
		token := q.Get("reconnect")
		if token != "" {
			// the seat belongs to whoever the token names, not the bearer, which is a
			// fresh guest when the client lost its cookie
			seat, err := gs.reconnectSeat(roomID, token)
			if err != nil {
				gs.log.WithField("room", roomID).Debugf("reconnect refused: %v", err)
				c.Close(InvalidReconnectError, string(game.ReasonInvalidToken))
				return
			}
			id.UserID = seat
		}

		client := newWSClient(id)
		if token != "" {
			if _, err := room.Handle(game.Reconnect{Token: token, Conn: client}); err != nil {
				gs.log.WithField("room", roomID).Debugf("reconnect refused: %v", err)
				c.Close(InvalidReconnectError, string(game.ReasonOf(err)))
				return
			}
		} else {
			role := engine.RolePlayer
			if q.Get("role") == string(engine.RoleSpectator) {
				role = engine.RoleSpectator
			}
			join := game.Join{
				PlayerID:   id.UserID,
				Name:       id.Name,
				Role:       role,
				AccessCode: q.Get("code"),
				Conn:       client,
			}
			if _, err := room.Handle(join); err != nil {
				gs.log.WithField("room", roomID).Debugf("join refused: %v", err)
				c.Close(JoinRefusedError, string(game.ReasonOf(err)))
				return
			}
		}
		client.setRoom(room)

		log := gs.log.WithField("room", roomID)
		middleware.LogWebSocketConnect(log, r.RemoteAddr, r.URL.Path)
		gs.newSession(c, client, r.URL.Path).run(r.Context())
		middleware.LogWebSocketDisconnect(log, r.RemoteAddr, r.URL.Path, nil)
		c.Close(websocket.StatusNormalClosure, "")
	}
}
