// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jason-s-yu/zing/internal/engine"
	"github.com/jason-s-yu/zing/internal/models"
	"github.com/redis/go-redis/v9"
)

// DefaultQueueName is the Redis list the historian drains.
const DefaultQueueName = "zing_events"

// Connect creates a Redis client for addr and checks that it answers.
func Connect(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// EventQueue is a Redis list of event records. Rooms push with Append; the historian pops.
type EventQueue struct {
	rdb  *redis.Client
	name string
}

func NewEventQueue(rdb *redis.Client, name string) *EventQueue {
	if name == "" {
		name = DefaultQueueName
	}
	return &EventQueue{rdb: rdb, name: name}
}

// Append serializes ev and pushes it to the tail of the queue.
func (q *EventQueue) Append(ctx context.Context, ev engine.Event) error {
	rec, err := models.NewEventRecord(ev)
	if err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal event record: %w", err)
	}
	if err := q.rdb.RPush(ctx, q.name, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", q.name, err)
	}
	return nil
}

// Pop blocks up to timeout for the next record. ok is false when the wait timed out.
func (q *EventQueue) Pop(ctx context.Context, timeout time.Duration) (rec models.EventRecord, ok bool, err error) {
	res, err := q.rdb.BLPop(ctx, timeout, q.name).Result()
	if errors.Is(err, redis.Nil) {
		return rec, false, nil
	}
	if err != nil {
		return rec, false, fmt.Errorf("BLPop %s: %w", q.name, err)
	}
	// res[0] is the list name and res[1] the payload.
	if len(res) < 2 {
		return rec, false, nil
	}
	rec, err = DecodeRecord(res[1])
	if err != nil {
		return rec, false, err
	}
	return rec, true, nil
}

// DecodeRecord parses one queued message.
func DecodeRecord(payload string) (models.EventRecord, error) {
	var rec models.EventRecord
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return rec, fmt.Errorf("invalid event record: %w", err)
	}
	if rec.Seq == 0 {
		return rec, errors.New("invalid event record: missing seq")
	}
	return rec, nil
}

func (q *EventQueue) Name() string { return q.name }
