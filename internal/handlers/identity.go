// internal/handlers/identity.go
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jason-s-yu/zing/internal/auth"
)

const authCookie = "auth_token"

// bearerToken finds the caller's token in the Authorization header, the auth cookie, or
// the token query parameter, in that order. Browsers cannot set headers on a websocket
// handshake, hence the last two.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if token := extractCookieToken(r.Header.Get("Cookie"), authCookie); token != "" {
		return token
	}
	return r.URL.Query().Get("token")
}

// authenticate resolves the caller to an identity without creating one.
func (gs *GameServer) authenticate(r *http.Request) (auth.Identity, error) {
	token := bearerToken(r)
	if token == "" {
		return auth.Identity{}, fmt.Errorf("missing %s", authCookie)
	}
	return gs.opts.Signer.AuthenticateJWT(token)
}

// ensureIdentity authenticates the caller, minting a guest and setting the auth cookie
// when no valid token was presented. It must run before a websocket upgrade so the cookie
// can still be written.
func (gs *GameServer) ensureIdentity(w http.ResponseWriter, r *http.Request) (auth.Identity, error) {
	if id, err := gs.authenticate(r); err == nil {
		return id, nil
	}
	id, token, err := gs.mintGuest(r)
	if err != nil {
		return auth.Identity{}, err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     authCookie,
		Value:    token,
		HttpOnly: true,
		Path:     "/",
	})
	return id, nil
}

func (gs *GameServer) mintGuest(r *http.Request) (auth.Identity, string, error) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		name = "Guest"
	}
	var userID uuid.UUID
	if gs.opts.Users != nil {
		u, err := gs.opts.Users.CreateGuestUser(r.Context(), name)
		if err != nil {
			return auth.Identity{}, "", fmt.Errorf("failed to create ephemeral user: %w", err)
		}
		userID = u.ID
	} else {
		userID = uuid.New()
	}
	token, err := gs.opts.Signer.CreateJWT(userID, name)
	if err != nil {
		return auth.Identity{}, "", fmt.Errorf("failed to create ephemeral JWT: %w", err)
	}
	gs.log.WithField("player", userID).Debugf("minted guest %q", name)
	return auth.Identity{UserID: userID, Name: name}, token, nil
}

// reconnectSeat resolves a reconnect token to the player whose seat it restores.
func (gs *GameServer) reconnectSeat(roomID uuid.UUID, token string) (uuid.UUID, error) {
	if gs.opts.Tokens == nil {
		return uuid.Nil, fmt.Errorf("reconnect tokens are disabled")
	}
	tokenRoom, playerID, err := gs.opts.Tokens.Verify(token)
	if err != nil {
		return uuid.Nil, err
	}
	if tokenRoom != roomID {
		return uuid.Nil, fmt.Errorf("token is for room %s", tokenRoom)
	}
	return playerID, nil
}

type guestResponse struct {
	UserID uuid.UUID `json:"userId"`
	Name   string    `json:"name"`
	Token  string    `json:"token"`
}

// GuestHandler issues a guest identity and returns its bearer token.
func GuestHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, token, err := gs.mintGuest(r)
		if err != nil {
			gs.log.WithError(err).Warn("guest creation failed")
			http.Error(w, "could not create guest", http.StatusInternalServerError)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: authCookie, Value: token, HttpOnly: true, Path: "/"})
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(guestResponse{UserID: id.UserID, Name: id.Name, Token: token})
	}
}
