// internal/database/match.go
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/zing/internal/models"
)

// RecordMatch stores a finished match and its seats. It satisfies the room's match
// recorder; recording the same game twice is a no-op.
func (s *Store) RecordMatch(ctx context.Context, m models.MatchSummary) error {
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		insertMatch := `
			INSERT INTO matches (id, room_id, mode, winner_team, score_team0, score_team1, rounds, started_at, ended_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (id) DO NOTHING
		`
		tag, err := tx.Exec(ctx, insertMatch,
			m.GameID, m.RoomID, m.Mode, m.WinnerTeam,
			m.FinalScores[0], m.FinalScores[1], m.Rounds, m.StartedAt, m.EndedAt,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return nil
		}

		insertPlayer := `
			INSERT INTO match_players (match_id, player_id, name, seat, team, won)
			VALUES ($1, $2, $3, $4, $5, $6)
		`
		for _, p := range m.Players {
			if _, err := tx.Exec(ctx, insertPlayer, m.GameID, p.PlayerID, p.Name, p.Seat, p.Team, p.Team == m.WinnerTeam); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("record match %s: %w", m.GameID, err)
	}
	s.log.WithField("game", m.GameID).Infof("recorded match, team %d won in %s", m.WinnerTeam, m.Duration().Round(time.Second))
	return nil
}
