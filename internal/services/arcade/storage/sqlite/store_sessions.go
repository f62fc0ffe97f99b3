package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gemfall/arcade/internal/services/arcade/domain"
	"github.com/gemfall/arcade/internal/services/arcade/storage"
)

// CreateSession persists a new active session.
func (s *Store) CreateSession(ctx context.Context, rec storage.SessionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(rec.Session.ID) == "" {
		return fmt.Errorf("session id is required")
	}
	if strings.TrimSpace(rec.Session.PlayerID) == "" {
		return fmt.Errorf("player id is required")
	}

	mines, err := encodeCells(rec.Session.Mines)
	if err != nil {
		return fmt.Errorf("encode mine positions: %w", err)
	}
	revealed, err := encodeCells(rec.Session.Revealed)
	if err != nil {
		return fmt.Errorf("encode revealed positions: %w", err)
	}

	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO sessions (
		    id, player_id, grid_size, mine_positions, revealed_positions,
		    status, version, started_at, ended_at, claimed_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Session.ID,
		rec.Session.PlayerID,
		rec.Session.GridSize,
		mines,
		revealed,
		string(rec.Session.Status),
		rec.Version,
		toMillis(rec.Session.StartedAt),
		toNullMillis(rec.Session.EndedAt),
		toNullMillis(rec.Session.ClaimedAt),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetSession loads a session by id.
func (s *Store) GetSession(ctx context.Context, id string) (storage.SessionRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.SessionRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.SessionRecord{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(id) == "" {
		return storage.SessionRecord{}, fmt.Errorf("session id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, player_id, grid_size, mine_positions, revealed_positions,
		        status, version, started_at, ended_at, claimed_at,
		        claim_token, transfer_hash, transfer_destination, transfer_amount
		 FROM sessions
		 WHERE id = ?`,
		id,
	)
	return scanSession(row)
}

// UpdateSessionProgress persists a reveal or cash-out transition. The update
// is conditional on the stored version and on the session not having ended,
// so racing writers and late calls against terminal sessions both fail.
func (s *Store) UpdateSessionProgress(ctx context.Context, rec storage.SessionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(rec.Session.ID) == "" {
		return fmt.Errorf("session id is required")
	}

	revealed, err := encodeCells(rec.Session.Revealed)
	if err != nil {
		return fmt.Errorf("encode revealed positions: %w", err)
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE sessions
		 SET revealed_positions = ?,
		     status = ?,
		     ended_at = ?,
		     version = version + 1
		 WHERE id = ? AND version = ? AND ended_at IS NULL`,
		revealed,
		string(rec.Session.Status),
		toNullMillis(rec.Session.EndedAt),
		rec.Session.ID,
		rec.Version,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session rows affected: %w", err)
	}
	if affected == 1 {
		return nil
	}
	return s.classifyConditionalFailure(ctx, rec.Session.ID)
}

// classifyConditionalFailure distinguishes why a conditional update matched
// no rows: missing session, terminal session, or a lost version race.
func (s *Store) classifyConditionalFailure(ctx context.Context, id string) error {
	row := s.sqlDB.QueryRowContext(ctx, `SELECT ended_at FROM sessions WHERE id = ?`, id)
	var endedAt sql.NullInt64
	if err := row.Scan(&endedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("inspect session: %w", err)
	}
	if endedAt.Valid {
		return storage.ErrSessionEnded
	}
	return storage.ErrVersionMismatch
}

// BeginClaim atomically takes the settlement marker for a won, unclaimed session.
func (s *Store) BeginClaim(ctx context.Context, sessionID, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("claim token is required")
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE sessions
		 SET claim_token = ?
		 WHERE id = ? AND status = ? AND claimed_at IS NULL AND claim_token IS NULL`,
		token,
		sessionID,
		string(domain.StatusWon),
	)
	if err != nil {
		return fmt.Errorf("begin claim: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("begin claim rows affected: %w", err)
	}
	if affected == 1 {
		return nil
	}

	row := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(1) FROM sessions WHERE id = ?`, sessionID)
	var count int
	if err := row.Scan(&count); err != nil {
		return fmt.Errorf("inspect claim: %w", err)
	}
	if count == 0 {
		return storage.ErrNotFound
	}
	return storage.ErrClaimUnavailable
}

// FinishClaim records the confirmed transfer and finalizes claimed-at. The
// update is keyed on the claim token so only the in-flight settlement lands.
func (s *Store) FinishClaim(ctx context.Context, sessionID, token string, receipt storage.TransferReceipt, claimedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE sessions
		 SET claimed_at = ?,
		     claim_token = NULL,
		     transfer_hash = ?,
		     transfer_destination = ?,
		     transfer_amount = ?
		 WHERE id = ? AND claim_token = ?`,
		toMillis(claimedAt),
		nullString(receipt.Hash),
		nullString(receipt.Destination),
		receipt.Amount,
		sessionID,
		token,
	)
	if err != nil {
		return fmt.Errorf("finish claim: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish claim rows affected: %w", err)
	}
	if affected != 1 {
		return storage.ErrClaimUnavailable
	}
	return nil
}

// AbortClaim releases the settlement marker after a failed transfer.
func (s *Store) AbortClaim(ctx context.Context, sessionID, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE sessions SET claim_token = NULL WHERE id = ? AND claim_token = ?`,
		sessionID,
		token,
	)
	if err != nil {
		return fmt.Errorf("abort claim: %w", err)
	}
	return nil
}

// RecentSessions lists the latest sessions joined with player display names.
func (s *Store) RecentSessions(ctx context.Context, limit int) ([]storage.ActivityEntry, error) {
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
		`SELECT s.id, s.player_id, p.display_name, s.status,
		        s.mine_positions, s.revealed_positions, s.started_at, s.ended_at
		 FROM sessions s
		 JOIN players p ON p.player_id = s.player_id
		 ORDER BY s.started_at DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list recent sessions: %w", err)
	}
	defer rows.Close()

	var entries []storage.ActivityEntry
	for rows.Next() {
		var (
			entry       storage.ActivityEntry
			statusRaw   string
			minesRaw    string
			revealedRaw string
			startedAt   int64
			endedAt     sql.NullInt64
		)
		if err := rows.Scan(
			&entry.SessionID,
			&entry.PlayerID,
			&entry.DisplayName,
			&statusRaw,
			&minesRaw,
			&revealedRaw,
			&startedAt,
			&endedAt,
		); err != nil {
			return nil, fmt.Errorf("scan recent session: %w", err)
		}

		status, err := domain.ParseStatus(statusRaw)
		if err != nil {
			return nil, fmt.Errorf("recent session %s: %w", entry.SessionID, err)
		}
		mines, err := decodeCells(minesRaw)
		if err != nil {
			return nil, fmt.Errorf("recent session %s mines: %w", entry.SessionID, err)
		}
		revealed, err := decodeCells(revealedRaw)
		if err != nil {
			return nil, fmt.Errorf("recent session %s revealed: %w", entry.SessionID, err)
		}

		entry.Status = status
		entry.Reward = rewardFor(mines, revealed)
		entry.StartedAt = fromMillis(startedAt)
		entry.EndedAt = fromNullMillis(endedAt)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent sessions: %w", err)
	}
	return entries, nil
}

func scanSession(row *sql.Row) (storage.SessionRecord, error) {
	var (
		rec         storage.SessionRecord
		minesRaw    string
		revealedRaw string
		statusRaw   string
		startedAt   int64
		endedAt     sql.NullInt64
		claimedAt   sql.NullInt64
		claimToken  sql.NullString
		hash        sql.NullString
		destination sql.NullString
	)
	err := row.Scan(
		&rec.Session.ID,
		&rec.Session.PlayerID,
		&rec.Session.GridSize,
		&minesRaw,
		&revealedRaw,
		&statusRaw,
		&rec.Version,
		&startedAt,
		&endedAt,
		&claimedAt,
		&claimToken,
		&hash,
		&destination,
		&rec.TransferAmount,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.SessionRecord{}, storage.ErrNotFound
		}
		return storage.SessionRecord{}, fmt.Errorf("scan session: %w", err)
	}

	status, err := domain.ParseStatus(statusRaw)
	if err != nil {
		return storage.SessionRecord{}, err
	}
	mines, err := decodeCells(minesRaw)
	if err != nil {
		return storage.SessionRecord{}, fmt.Errorf("decode mine positions: %w", err)
	}
	revealed, err := decodeCells(revealedRaw)
	if err != nil {
		return storage.SessionRecord{}, fmt.Errorf("decode revealed positions: %w", err)
	}

	rec.Session.Status = status
	rec.Session.Mines = mines
	rec.Session.Revealed = revealed
	rec.Session.StartedAt = fromMillis(startedAt)
	rec.Session.EndedAt = fromNullMillis(endedAt)
	rec.Session.ClaimedAt = fromNullMillis(claimedAt)
	rec.ClaimToken = claimToken.String
	rec.TransferHash = hash.String
	rec.TransferDestination = destination.String
	return rec, nil
}

func encodeCells(cells []int) (string, error) {
	if cells == nil {
		cells = []int{}
	}
	raw, err := json.Marshal(cells)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func decodeCells(raw string) ([]int, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var cells []int
	if err := json.Unmarshal([]byte(raw), &cells); err != nil {
		return nil, err
	}
	if len(cells) == 0 {
		return nil, nil
	}
	return cells, nil
}

func rewardFor(mines, revealed []int) int {
	isMine := make(map[int]bool, len(mines))
	for _, cell := range mines {
		isMine[cell] = true
	}
	reward := 0
	for _, cell := range revealed {
		if !isMine[cell] {
			reward++
		}
	}
	return reward
}
