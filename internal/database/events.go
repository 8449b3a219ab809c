// internal/database/events.go
package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/zing/internal/engine"
	"github.com/jason-s-yu/zing/internal/models"
)

// Replays of the same (room, seq) are ignored, so delivery may be at-least-once.
const insertEventQ = `
	INSERT INTO room_events (room_id, seq, game_id, event_type, actor_id, payload, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (room_id, seq) DO NOTHING
`

// Append writes one event directly. It satisfies the room's event sink.
func (s *Store) Append(ctx context.Context, ev engine.Event) error {
	rec, err := models.NewEventRecord(ev)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, insertEventQ, eventArgs(rec)...); err != nil {
		return fmt.Errorf("insert event %d for room %s: %w", rec.Seq, rec.RoomID, err)
	}
	return nil
}

// InsertEvents writes a batch of queued records in one transaction.
func (s *Store) InsertEvents(ctx context.Context, recs []models.EventRecord) error {
	if len(recs) == 0 {
		return nil
	}
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, rec := range recs {
			batch.Queue(insertEventQ, eventArgs(rec)...)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("insert %d events: %w", len(recs), err)
	}
	return nil
}

// EventsForRoom returns a room's events in sequence order.
func (s *Store) EventsForRoom(ctx context.Context, roomID uuid.UUID) ([]models.EventRecord, error) {
	q := `
	SELECT room_id, seq, game_id, event_type, actor_id, payload, created_at
	FROM room_events
	WHERE room_id = $1
	ORDER BY seq
	`
	rows, err := s.pool.Query(ctx, q, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.EventRecord
	for rows.Next() {
		var (
			rec     models.EventRecord
			seq     int64
			gameID  *uuid.UUID
			actorID *uuid.UUID
		)
		if err := rows.Scan(&rec.RoomID, &seq, &gameID, &rec.Type, &actorID, &rec.Payload, &rec.At); err != nil {
			return nil, err
		}
		rec.Seq = uint64(seq)
		if gameID != nil {
			rec.GameID = *gameID
		}
		if actorID != nil {
			rec.ActorID = *actorID
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func eventArgs(rec models.EventRecord) []any {
	return []any{
		rec.RoomID, int64(rec.Seq), nullUUID(rec.GameID), rec.Type,
		nullUUID(rec.ActorID), []byte(rec.Payload), rec.At,
	}
}

// nullUUID maps the zero id to SQL NULL.
func nullUUID(id uuid.UUID) any {
	if id == uuid.Nil {
		return nil
	}
	return id
}
