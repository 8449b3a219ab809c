package game

import (
	"context"

	"github.com/google/uuid"
	"github.com/jason-s-yu/zing/internal/engine"
	"github.com/jason-s-yu/zing/internal/models"
)

// Conn is a member's live connection. Send must not block; it reports false when the
// event had to be dropped.
type Conn interface {
	Send(ev engine.Event) bool
}

// EventSink durably appends public room events. It is called once per event in
// increasing sequence order; failures are logged and never roll back the room.
type EventSink interface {
	Append(ctx context.Context, ev engine.Event) error
}

// Broadcaster fans room events and state snapshots out to other processes.
type Broadcaster interface {
	Broadcast(ctx context.Context, roomID uuid.UUID, msg any) error
}

// MatchRecorder receives final match summaries.
type MatchRecorder interface {
	RecordMatch(ctx context.Context, s models.MatchSummary) error
}

// TokenIssuer issues and checks reconnect tokens bound to a (room, player) pair.
type TokenIssuer interface {
	Issue(roomID, playerID uuid.UUID) (string, error)
	Verify(token string) (roomID, playerID uuid.UUID, err error)
	RevokePlayer(roomID, playerID uuid.UUID)
}
