package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignerRoundTrip(t *testing.T) {
	s, err := NewSigner(0)
	require.NoError(t, err)

	id := uuid.New()
	token, err := s.CreateJWT(id, "ana")
	require.NoError(t, err)

	got, err := s.AuthenticateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, id, got.UserID)
	assert.Equal(t, "ana", got.Name)

	other, err := NewSigner(0)
	require.NoError(t, err)
	_, err = other.AuthenticateJWT(token)
	assert.Error(t, err)
	_, err = s.AuthenticateJWT("not-a-token")
	assert.Error(t, err)
}

func TestSignerFromPath(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	dir := t.TempDir()
	privPath := filepath.Join(dir, "jwt")
	pubPath := filepath.Join(dir, "jwt.pub")
	require.NoError(t, os.WriteFile(privPath, priv, 0o600))
	require.NoError(t, os.WriteFile(pubPath, pub, 0o644))

	s, err := NewSignerFromPath(privPath, pubPath, time.Hour)
	require.NoError(t, err)
	id := uuid.New()
	token, err := s.CreateJWT(id, "ana")
	require.NoError(t, err)

	// a restart with the same files still accepts tokens issued before it
	again, err := NewSignerFromPath(privPath, pubPath, time.Hour)
	require.NoError(t, err)
	got, err := again.AuthenticateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, id, got.UserID)

	_, err = NewSignerFromPath(filepath.Join(dir, "missing"), pubPath, 0)
	assert.Error(t, err)
	_, err = NewSignerFromPath(pubPath, pubPath, 0)
	assert.Error(t, err, "public key bytes are not a private key")
}

func TestParseExpire(t *testing.T) {
	for _, s := range []string{"", "0", "never"} {
		d, err := ParseExpire(s)
		require.NoError(t, err)
		assert.Zero(t, d)
	}
	d, err := ParseExpire("72h")
	require.NoError(t, err)
	assert.Equal(t, 72*time.Hour, d)
	_, err = ParseExpire("soon")
	assert.Error(t, err)
}

func newTokens(t *testing.T, ttl time.Duration) *ReconnectTokens {
	t.Helper()
	s, err := NewSigner(0)
	require.NoError(t, err)
	return NewReconnectTokens(s.PrivateKey(), ttl)
}

func TestReconnectTokenBinding(t *testing.T) {
	tokens := newTokens(t, time.Minute)
	room, player := uuid.New(), uuid.New()

	token, err := tokens.Issue(room, player)
	require.NoError(t, err)

	gotRoom, gotPlayer, err := tokens.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, room, gotRoom)
	assert.Equal(t, player, gotPlayer)
}

func TestReconnectTokenSupersededAndRevoked(t *testing.T) {
	tokens := newTokens(t, time.Minute)
	room, player := uuid.New(), uuid.New()

	first, err := tokens.Issue(room, player)
	require.NoError(t, err)
	second, err := tokens.Issue(room, player)
	require.NoError(t, err)

	_, _, err = tokens.Verify(first)
	assert.ErrorIs(t, err, ErrTokenRevoked)
	_, _, err = tokens.Verify(second)
	require.NoError(t, err)

	tokens.RevokePlayer(room, player)
	_, _, err = tokens.Verify(second)
	assert.ErrorIs(t, err, ErrTokenRevoked)
}

func TestReconnectTokenExpires(t *testing.T) {
	tokens := newTokens(t, time.Minute)
	start := time.Now()
	tokens.now = func() time.Time { return start }

	token, err := tokens.Issue(uuid.New(), uuid.New())
	require.NoError(t, err)

	tokens.now = func() time.Time { return start.Add(2 * time.Minute) }
	_, _, err = tokens.Verify(token)
	assert.Error(t, err)
}

func TestReconnectTokenRejectsBearerToken(t *testing.T) {
	s, err := NewSigner(0)
	require.NoError(t, err)
	tokens := NewReconnectTokens(s.PrivateKey(), time.Minute)

	bearer, err := s.CreateJWT(uuid.New(), "ana")
	require.NoError(t, err)
	_, _, err = tokens.Verify(bearer)
	assert.Error(t, err)
}
