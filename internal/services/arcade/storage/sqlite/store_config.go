package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ConfigValue returns the raw configuration value for key.
func (s *Store) ConfigValue(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	if s == nil || s.sqlDB == nil {
		return "", false, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(key) == "" {
		return "", false, fmt.Errorf("config key is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `SELECT value FROM config WHERE key = ?`, key)
	var value string
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get config value: %w", err)
	}
	return value, true, nil
}

// SetConfigValue upserts an operator configuration value.
func (s *Store) SetConfigValue(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("config key is required")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO config (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key,
		value,
	)
	if err != nil {
		return fmt.Errorf("set config value: %w", err)
	}
	return nil
}
