// internal/handlers/routes.go
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jason-s-yu/zing/internal/middleware"
	"github.com/sirupsen/logrus"
)

// DefaultAllowedOrigins is used when no origins are configured.
var DefaultAllowedOrigins = []string{"https://*", "http://*"}

// Routes mounts every HTTP and websocket endpoint behind request logging, panic recovery,
// a /ping heartbeat and CORS for allowedOrigins.
func Routes(gs *GameServer, logger *logrus.Logger, allowedOrigins []string) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = DefaultAllowedOrigins
	}

	r := chi.NewRouter()
	r.Use(middleware.LogMiddleware(logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Heartbeat("/ping"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	r.Post("/auth/guest", GuestHandler(gs))

	r.Post("/rooms", CreateRoomHandler(gs))
	r.Get("/rooms", ListRoomsHandler(gs))
	r.Get("/rooms/{id}", GetRoomHandler(gs))
	r.Get("/rooms/{id}/events", RoomEventsHandler(gs))
	r.Get("/rooms/{id}/ws", RoomWSHandler(gs))
	r.Get("/queue/ws", QueueWSHandler(gs))

	return r
}
