package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/gemfall/arcade/internal/services/arcade/storage"
)

// UpsertPlayer ensures a player row exists. A non-empty display name replaces
// the stored one; an empty name leaves it untouched.
func (s *Store) UpsertPlayer(ctx context.Context, playerID, displayName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(playerID) == "" {
		return fmt.Errorf("player id is required")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO players (player_id, display_name, created_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(player_id) DO UPDATE SET
		    display_name = CASE WHEN excluded.display_name != '' THEN excluded.display_name ELSE display_name END`,
		playerID,
		strings.TrimSpace(displayName),
		toMillis(s.now()),
	)
	if err != nil {
		return fmt.Errorf("upsert player: %w", err)
	}
	return nil
}

// AddGems adds a session reward to the player's running total.
func (s *Store) AddGems(ctx context.Context, playerID string, gems int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(playerID) == "" {
		return fmt.Errorf("player id is required")
	}
	if gems < 1 {
		return nil
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE players SET total_gems = total_gems + ? WHERE player_id = ?`,
		gems,
		playerID,
	)
	if err != nil {
		return fmt.Errorf("add gems: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("add gems rows affected: %w", err)
	}
	if affected != 1 {
		return storage.ErrNotFound
	}
	return nil
}

// TopPlayers lists players ordered by total gems.
func (s *Store) TopPlayers(ctx context.Context, limit int) ([]storage.PlayerRank, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit < 1 {
		return nil, fmt.Errorf("limit must be positive")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT player_id, display_name, total_gems
		 FROM players
		 ORDER BY total_gems DESC, player_id ASC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list top players: %w", err)
	}
	defer rows.Close()

	var ranks []storage.PlayerRank
	for rows.Next() {
		var rank storage.PlayerRank
		if err := rows.Scan(&rank.PlayerID, &rank.DisplayName, &rank.TotalGems); err != nil {
			return nil, fmt.Errorf("scan player rank: %w", err)
		}
		ranks = append(ranks, rank)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate top players: %w", err)
	}
	return ranks, nil
}
