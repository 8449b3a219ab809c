package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a resolved identity. Guests are ephemeral rows created on first connect.
type User struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	IsEphemeral bool      `json:"is_ephemeral"`
	CreatedAt   time.Time `json:"created_at"`
}
