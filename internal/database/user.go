// internal/database/user.go
package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jason-s-yu/zing/internal/models"
)

// CreateGuestUser inserts an ephemeral user with the given display name.
func (s *Store) CreateGuestUser(ctx context.Context, username string) (*models.User, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("failed to generate user id: %w", err)
	}
	u := models.User{ID: id, Username: username, IsEphemeral: true}

	q := `INSERT INTO users (id, username, is_ephemeral)
	      VALUES ($1, $2, $3)
	      RETURNING created_at`
	if err := s.pool.QueryRow(ctx, q, u.ID, u.Username, u.IsEphemeral).Scan(&u.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	return &u, nil
}

func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	q := `
	SELECT id, username, is_ephemeral, created_at
	FROM users
	WHERE id=$1
	`
	err := s.pool.QueryRow(ctx, q, id).Scan(&u.ID, &u.Username, &u.IsEphemeral, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
