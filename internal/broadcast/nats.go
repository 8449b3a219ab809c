// internal/broadcast/nats.go
package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/zing/internal/engine"
	"github.com/jason-s-yu/zing/internal/game"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// SubjectPrefix is prepended to the room id to form the publish subject.
const SubjectPrefix = "zing.room."

// Envelope is what subscribers receive: either one event or a state snapshot.
type Envelope struct {
	Kind     string         `json:"kind"`
	RoomID   uuid.UUID      `json:"roomId"`
	Event    *engine.Event  `json:"event,omitempty"`
	Snapshot *game.Snapshot `json:"snapshot,omitempty"`
}

const (
	KindEvent    = "event"
	KindSnapshot = "snapshot"
)

type publisher interface {
	Publish(subj string, data []byte) error
}

// NATS fans room traffic out to other processes over a NATS subject per room.
type NATS struct {
	pub publisher
	log *logrus.Entry
}

// Connect dials the NATS server at url.
func Connect(url, name string) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name(name),
		nats.Timeout(10 * time.Second),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(5),
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats at %s: %w", url, err)
	}
	return nc, nil
}

func NewNATS(nc *nats.Conn, log *logrus.Entry) *NATS {
	return newNATS(nc, log)
}

func newNATS(pub publisher, log *logrus.Entry) *NATS {
	return &NATS{pub: pub, log: log.WithField("component", "broadcast")}
}

func Subject(roomID uuid.UUID) string {
	return SubjectPrefix + roomID.String()
}

// Broadcast publishes an event or snapshot for roomID. Dealt hands are stripped since
// the subject is readable by anyone subscribed to the room.
func (b *NATS) Broadcast(ctx context.Context, roomID uuid.UUID, msg any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	env := Envelope{RoomID: roomID}
	switch m := msg.(type) {
	case *engine.Event:
		ev := *m
		if p, ok := ev.Payload.(engine.HandsDealtPayload); ok {
			ev.Payload = p.ForViewer(uuid.Nil)
		}
		env.Kind, env.Event = KindEvent, &ev
	case *game.Snapshot:
		env.Kind, env.Snapshot = KindSnapshot, m
	default:
		return fmt.Errorf("cannot broadcast %T", msg)
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", env.Kind, err)
	}
	if err := b.pub.Publish(Subject(roomID), data); err != nil {
		return fmt.Errorf("publish to %s: %w", Subject(roomID), err)
	}
	b.log.WithField("room", roomID).Tracef("published %s", env.Kind)
	return nil
}
