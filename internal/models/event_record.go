// internal/models/event_record.go
package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/zing/internal/engine"
)

// EventRecord is the persisted form of one room event: the row written by the event sink
// and the message carried on the historian queue.
type EventRecord struct {
	RoomID  uuid.UUID       `json:"roomId"`
	GameID  uuid.UUID       `json:"gameId"`
	Seq     uint64          `json:"seq"`
	Type    string          `json:"type"`
	ActorID uuid.UUID       `json:"actorId"`
	Payload json.RawMessage `json:"payload"`
	At      time.Time       `json:"at"`
}

// NewEventRecord encodes an emitted event for persistence.
func NewEventRecord(ev engine.Event) (EventRecord, error) {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return EventRecord{}, fmt.Errorf("marshal %s payload: %w", ev.Type, err)
	}
	return EventRecord{
		RoomID:  ev.RoomID,
		GameID:  ev.GameID,
		Seq:     ev.Seq,
		Type:    string(ev.Type),
		ActorID: ev.ActorID,
		Payload: payload,
		At:      ev.At,
	}, nil
}
