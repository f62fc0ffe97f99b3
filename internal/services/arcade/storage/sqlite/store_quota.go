package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// IncrementIfBelow admits and counts one play in a single conditional upsert.
// The insert branch covers the first play of a period; the update branch only
// fires while the stored count is below max, so two racing calls at
// count == max-1 admit exactly one.
func (s *Store) IncrementIfBelow(ctx context.Context, playerID, periodKey string, max int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if s == nil || s.sqlDB == nil {
		return false, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(playerID) == "" {
		return false, fmt.Errorf("player id is required")
	}
	if strings.TrimSpace(periodKey) == "" {
		return false, fmt.Errorf("period key is required")
	}
	if max < 1 {
		return false, nil
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO quota (player_id, period_key, count)
		 VALUES (?, ?, 1)
		 ON CONFLICT(player_id, period_key)
		 DO UPDATE SET count = count + 1 WHERE count < ?`,
		playerID,
		periodKey,
		max,
	)
	if err != nil {
		return false, fmt.Errorf("increment quota: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("increment quota rows affected: %w", err)
	}
	return affected == 1, nil
}

// QuotaCount returns the play count for the player and period.
func (s *Store) QuotaCount(ctx context.Context, playerID, periodKey string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(playerID) == "" {
		return 0, fmt.Errorf("player id is required")
	}
	if strings.TrimSpace(periodKey) == "" {
		return 0, fmt.Errorf("period key is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT count FROM quota WHERE player_id = ? AND period_key = ?`,
		playerID,
		periodKey,
	)
	var count int
	if err := row.Scan(&count); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("get quota count: %w", err)
	}
	return count, nil
}
