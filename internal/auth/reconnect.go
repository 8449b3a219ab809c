// internal/auth/reconnect.go
package auth

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const reconnectPurpose = "reconnect"

var ErrTokenRevoked = errors.New("reconnect token revoked or superseded")

type reconnectClaims struct {
	RoomID  string `json:"room"`
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

type binding struct {
	roomID   uuid.UUID
	playerID uuid.UUID
	expires  time.Time
}

// ReconnectTokens issues short-lived tokens that prove prior membership of a room. Only
// the most recently issued token for a (room, player) pair is accepted.
type ReconnectTokens struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
	ttl        time.Duration
	now        func() time.Time

	mu     sync.Mutex
	active map[string]binding // keyed by jti
}

func NewReconnectTokens(key ed25519.PrivateKey, ttl time.Duration) *ReconnectTokens {
	return &ReconnectTokens{
		privateKey: key,
		publicKey:  key.Public().(ed25519.PublicKey),
		ttl:        ttl,
		now:        time.Now,
		active:     make(map[string]binding),
	}
}

// Issue returns a new token for playerID in roomID, superseding earlier ones.
func (t *ReconnectTokens) Issue(roomID, playerID uuid.UUID) (string, error) {
	now := t.now()
	jti := uuid.NewString()
	claims := reconnectClaims{
		RoomID:  roomID.String(),
		Purpose: reconnectPurpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   playerID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(t.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign reconnect token: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for id, b := range t.active {
		if (b.roomID == roomID && b.playerID == playerID) || now.After(b.expires) {
			delete(t.active, id)
		}
	}
	t.active[jti] = binding{roomID: roomID, playerID: playerID, expires: now.Add(t.ttl)}
	return signed, nil
}

// Verify checks signature, purpose, expiry and that the token has not been superseded or
// revoked.
func (t *ReconnectTokens) Verify(token string) (roomID, playerID uuid.UUID, err error) {
	var claims reconnectClaims
	_, err = jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return t.publicKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}), jwt.WithTimeFunc(t.now))
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("reconnect token: %w", err)
	}
	if claims.Purpose != reconnectPurpose {
		return uuid.Nil, uuid.Nil, fmt.Errorf("token is not a reconnect token")
	}

	t.mu.Lock()
	b, ok := t.active[claims.ID]
	t.mu.Unlock()
	if !ok {
		return uuid.Nil, uuid.Nil, ErrTokenRevoked
	}
	if b.roomID.String() != claims.RoomID || b.playerID.String() != claims.Subject {
		return uuid.Nil, uuid.Nil, fmt.Errorf("reconnect token binding mismatch")
	}
	return b.roomID, b.playerID, nil
}

// RevokePlayer invalidates every token bound to (roomID, playerID).
func (t *ReconnectTokens) RevokePlayer(roomID, playerID uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, b := range t.active {
		if b.roomID == roomID && b.playerID == playerID {
			delete(t.active, id)
		}
	}
}
