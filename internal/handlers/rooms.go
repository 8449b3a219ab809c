// internal/handlers/rooms.go
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jason-s-yu/zing/internal/game"
	"github.com/sirupsen/logrus"
)

type createRoomRequest struct {
	Mode         string `json:"mode"`
	Visibility   string `json:"visibility"`
	AccessCode   string `json:"accessCode"`
	TimerEnabled bool   `json:"timerEnabled"`
	TargetScore  int    `json:"targetScore"`
}

type createRoomResponse struct {
	game.RoomSummary
	AccessCode string `json:"accessCode,omitempty"`
}

// CreateRoomHandler creates a room hosted by the caller. The host joins it over
// /rooms/{id}/ws like everyone else. Private rooms get a generated access code unless one
// is supplied.
func CreateRoomHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := gs.ensureIdentity(w, r)
		if err != nil {
			gs.log.WithError(err).Warn("room creation without identity")
			http.Error(w, "could not identify caller", http.StatusInternalServerError)
			return
		}

		var req createRoomRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "bad room request payload", http.StatusBadRequest)
			return
		}

		settings := game.Settings{
			TimerEnabled: req.TimerEnabled,
			TargetScore:  req.TargetScore,
			AccessCode:   req.AccessCode,
		}
		if req.Mode != "" {
			if settings.Mode, err = game.ParseMode(req.Mode); err != nil {
				http.Error(w, "invalid game mode", http.StatusBadRequest)
				return
			}
		}
		switch game.Visibility(req.Visibility) {
		case "", game.VisibilityPublic:
			settings.Visibility = game.VisibilityPublic
		case game.VisibilityPrivate:
			settings.Visibility = game.VisibilityPrivate
			if settings.AccessCode == "" {
				settings.AccessCode = uuid.NewString()[:8]
			}
		default:
			http.Error(w, "invalid visibility", http.StatusBadRequest)
			return
		}
		if req.TargetScore < 0 {
			http.Error(w, "invalid target score", http.StatusBadRequest)
			return
		}

		room := gs.NewRoom(id.UserID, settings)
		gs.log.WithFields(logrus.Fields{"room": room.ID, "player": id.UserID}).Info("room created")

		resp := createRoomResponse{RoomSummary: room.Summary()}
		if settings.Visibility == game.VisibilityPrivate {
			resp.AccessCode = settings.AccessCode
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(resp)
	}
}

// ListRoomsHandler lists public rooms that are still open. mode=<1v1|2v2> narrows the
// listing.
func ListRoomsHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mode := game.Mode(r.URL.Query().Get("mode"))
		rooms := gs.Rooms.List(func(s game.RoomSummary) bool {
			if s.Visibility != game.VisibilityPublic || s.Phase == game.PhaseClosed {
				return false
			}
			return mode == "" || s.Mode == mode
		})
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(rooms)
	}
}

// GetRoomHandler returns a room's summary, or its full state for a member.
func GetRoomHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			http.Error(w, "invalid room id", http.StatusBadRequest)
			return
		}
		room, ok := gs.Rooms.GetRoom(roomID)
		if !ok {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if id, err := gs.authenticate(r); err == nil && room.IsMember(id.UserID) {
			json.NewEncoder(w).Encode(room.Snapshot(id.UserID))
			return
		}
		json.NewEncoder(w).Encode(room.Summary())
	}
}

// RoomEventsHandler returns the persisted event log of a finished room. Live rooms are
// refused since the log carries every dealt hand.
func RoomEventsHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if gs.opts.History == nil {
			http.Error(w, "event history is not enabled", http.StatusNotImplemented)
			return
		}
		roomID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			http.Error(w, "invalid room id", http.StatusBadRequest)
			return
		}
		if _, live := gs.Rooms.GetRoom(roomID); live {
			http.Error(w, "room is still open", http.StatusConflict)
			return
		}
		records, err := gs.opts.History.EventsForRoom(r.Context(), roomID)
		if err != nil {
			gs.log.WithError(err).WithField("room", roomID).Warn("event history lookup failed")
			http.Error(w, "could not load events", http.StatusInternalServerError)
			return
		}
		if len(records) == 0 {
			http.Error(w, "no events for room", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(records)
	}
}
