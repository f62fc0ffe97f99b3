// Package storage defines the persistence contracts for the arcade service.
//
// Correctness under concurrent requests is enforced here, not in handlers:
// every mutating contract is an atomic conditional update, and a failed
// condition surfaces as a sentinel error the service layer translates into a
// client-facing code.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/gemfall/arcade/internal/services/arcade/domain"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// ErrVersionMismatch indicates a conditional session update lost a race.
var ErrVersionMismatch = errors.New("session version mismatch")

// ErrSessionEnded indicates a conditional update hit an already-terminal session.
var ErrSessionEnded = errors.New("session already ended")

// ErrClaimUnavailable indicates the settlement claim marker is already taken
// or the session is already claimed.
var ErrClaimUnavailable = errors.New("claim marker unavailable")

// SessionRecord pairs the domain session with its storage metadata.
type SessionRecord struct {
	Session domain.Session

	// Version guards read-modify-write cycles; it increments on every
	// progress update.
	Version int64

	// ClaimToken is the retry-safe settlement marker. It is set while an
	// external transfer is in flight and cleared if the transfer fails.
	ClaimToken string

	TransferHash        string
	TransferDestination string
	TransferAmount      int64
}

// TransferReceipt captures the confirmed external transfer for a session.
type TransferReceipt struct {
	Hash        string
	Destination string
	Amount      int64
}

// ActivityEntry is one row of the recent-sessions read view.
type ActivityEntry struct {
	SessionID   string
	PlayerID    string
	DisplayName string
	Status      domain.Status
	Reward      int
	StartedAt   time.Time
	EndedAt     *time.Time
}

// PlayerRank is one row of the leaderboard read view.
type PlayerRank struct {
	PlayerID    string
	DisplayName string
	TotalGems   int64
}

// SessionStore persists sessions and owns transition validity.
type SessionStore interface {
	// CreateSession persists a new active session.
	CreateSession(ctx context.Context, rec SessionRecord) error

	// GetSession loads a session by id, or ErrNotFound.
	GetSession(ctx context.Context, id string) (SessionRecord, error)

	// UpdateSessionProgress persists revealed positions, status and ended-at
	// under the condition that the stored row still carries rec.Version and
	// has no ended_at. Returns ErrSessionEnded when the row is terminal and
	// ErrVersionMismatch when a concurrent writer won the race.
	UpdateSessionProgress(ctx context.Context, rec SessionRecord) error

	// BeginClaim atomically sets the claim token on a won, unclaimed,
	// unmarked session. Returns ErrClaimUnavailable when another claim holds
	// the marker or the session is already claimed, ErrNotFound otherwise.
	BeginClaim(ctx context.Context, sessionID, token string) error

	// FinishClaim persists the transfer receipt and claimed-at timestamp for
	// the session currently holding token.
	FinishClaim(ctx context.Context, sessionID, token string, receipt TransferReceipt, claimedAt time.Time) error

	// AbortClaim clears the claim token so a later settlement call may retry.
	AbortClaim(ctx context.Context, sessionID, token string) error

	// RecentSessions lists the latest sessions with owner display names.
	RecentSessions(ctx context.Context, limit int) ([]ActivityEntry, error)
}

// QuotaStore tracks per-player play counts within a period.
type QuotaStore interface {
	// IncrementIfBelow atomically increments the play count for the player
	// and period only when the pre-increment count is below max, creating
	// the record on first play. It reports whether the caller was admitted.
	IncrementIfBelow(ctx context.Context, playerID, periodKey string, max int) (bool, error)

	// QuotaCount returns the play count for the player and period, zero when
	// no record exists.
	QuotaCount(ctx context.Context, playerID, periodKey string) (int, error)
}

// ConfigStore reads operator configuration values.
type ConfigStore interface {
	// ConfigValue returns the raw value for key and whether it exists.
	ConfigValue(ctx context.Context, key string) (string, bool, error)
}

// PlayerStore persists player records and reward totals.
type PlayerStore interface {
	// UpsertPlayer ensures a player row exists, updating the display name
	// when a non-empty one is provided.
	UpsertPlayer(ctx context.Context, playerID, displayName string) error

	// AddGems adds a session reward to the player's running total.
	AddGems(ctx context.Context, playerID string, gems int) error

	// TopPlayers lists players ordered by total gems.
	TopPlayers(ctx context.Context, limit int) ([]PlayerRank, error)
}

// Store aggregates every persistence contract the service needs.
type Store interface {
	SessionStore
	QuotaStore
	ConfigStore
	PlayerStore
	Close() error
}
