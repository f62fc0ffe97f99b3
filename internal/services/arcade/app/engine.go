package app

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"

	apperrors "github.com/gemfall/arcade/internal/errors"
	"github.com/gemfall/arcade/internal/id"
	"github.com/gemfall/arcade/internal/random"
	"github.com/gemfall/arcade/internal/services/arcade/domain"
	"github.com/gemfall/arcade/internal/services/arcade/storage"
)

// Engine drives the session lifecycle: start, reveal, cash out, and the read
// views. Concurrency is delegated to the conditional storage contracts; the
// engine only translates their sentinels into client-facing codes.
type Engine struct {
	sessions storage.SessionStore
	players  storage.PlayerStore
	quota    *QuotaLedger

	newID   func() (string, error)
	newSeed func() (int64, error)
	now     func() time.Time
}

// NewEngine builds an engine over the given stores and quota ledger.
func NewEngine(sessions storage.SessionStore, players storage.PlayerStore, quota *QuotaLedger) *Engine {
	return &Engine{
		sessions: sessions,
		players:  players,
		quota:    quota,
		newID:    id.NewID,
		newSeed:  random.NewSeed,
		now:      time.Now,
	}
}

// RevealResult pairs the updated session with the outcome of one reveal.
type RevealResult struct {
	Session domain.Session
	Outcome domain.RevealOutcome
}

// StartSession admits the player against quota, ensures their record exists,
// and creates a fresh session with randomly placed mines.
func (e *Engine) StartSession(ctx context.Context, playerID, displayName string) (domain.Session, error) {
	if strings.TrimSpace(playerID) == "" {
		return domain.Session{}, apperrors.New(apperrors.CodeUnauthorized, "player identity is required")
	}
	if err := e.quota.CheckAndIncrement(ctx, playerID); err != nil {
		return domain.Session{}, err
	}
	if err := e.players.UpsertPlayer(ctx, playerID, displayName); err != nil {
		return domain.Session{}, apperrors.Wrap(apperrors.CodeStorageFailure, "upsert player", err)
	}

	seed, err := e.newSeed()
	if err != nil {
		return domain.Session{}, apperrors.Wrap(apperrors.CodeUnknown, "generate mine seed", err)
	}
	sessionID, err := e.newID()
	if err != nil {
		return domain.Session{}, apperrors.Wrap(apperrors.CodeUnknown, "generate session id", err)
	}

	mines := domain.SampleMines(rand.New(rand.NewSource(seed)))
	session := domain.NewSession(sessionID, playerID, mines, e.now())
	if err := e.sessions.CreateSession(ctx, storage.SessionRecord{Session: session}); err != nil {
		return domain.Session{}, apperrors.Wrap(apperrors.CodeStorageFailure, "create session", err)
	}
	return session, nil
}

// RevealCell uncovers one cell of the player's session. A clearance win
// credits the reward to the player's gem total.
func (e *Engine) RevealCell(ctx context.Context, playerID, sessionID string, cell int) (RevealResult, error) {
	rec, err := e.ownedSession(ctx, playerID, sessionID)
	if err != nil {
		return RevealResult{}, err
	}

	outcome, err := rec.Session.Reveal(cell, e.now())
	if err != nil {
		return RevealResult{}, err
	}
	if err := e.sessions.UpdateSessionProgress(ctx, rec); err != nil {
		return RevealResult{}, translateUpdateError(err)
	}
	if outcome.Won {
		if err := e.players.AddGems(ctx, playerID, rec.Session.Reward()); err != nil {
			return RevealResult{}, apperrors.Wrap(apperrors.CodeStorageFailure, "credit gems", err)
		}
	}
	return RevealResult{Session: rec.Session, Outcome: outcome}, nil
}

// CashOut ends the player's session as won and credits the accumulated
// reward.
func (e *Engine) CashOut(ctx context.Context, playerID, sessionID string) (domain.Session, error) {
	rec, err := e.ownedSession(ctx, playerID, sessionID)
	if err != nil {
		return domain.Session{}, err
	}

	if err := rec.Session.CashOut(e.now()); err != nil {
		return domain.Session{}, err
	}
	if err := e.sessions.UpdateSessionProgress(ctx, rec); err != nil {
		return domain.Session{}, translateUpdateError(err)
	}
	if err := e.players.AddGems(ctx, playerID, rec.Session.Reward()); err != nil {
		return domain.Session{}, apperrors.Wrap(apperrors.CodeStorageFailure, "credit gems", err)
	}
	return rec.Session, nil
}

// Session loads the player's session for read access.
func (e *Engine) Session(ctx context.Context, playerID, sessionID string) (domain.Session, error) {
	rec, err := e.ownedSession(ctx, playerID, sessionID)
	if err != nil {
		return domain.Session{}, err
	}
	return rec.Session, nil
}

// Leaderboard lists players ordered by accumulated gems.
func (e *Engine) Leaderboard(ctx context.Context, limit int) ([]storage.PlayerRank, error) {
	ranks, err := e.players.TopPlayers(ctx, limit)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorageFailure, "list leaderboard", err)
	}
	return ranks, nil
}

// Activity lists the most recent sessions across all players.
func (e *Engine) Activity(ctx context.Context, limit int) ([]storage.ActivityEntry, error) {
	entries, err := e.sessions.RecentSessions(ctx, limit)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorageFailure, "list activity", err)
	}
	return entries, nil
}

// QuotaStatus reports the player's remaining allowance.
func (e *Engine) QuotaStatus(ctx context.Context, playerID string) (QuotaStatus, error) {
	if strings.TrimSpace(playerID) == "" {
		return QuotaStatus{}, apperrors.New(apperrors.CodeUnauthorized, "player identity is required")
	}
	return e.quota.Status(ctx, playerID)
}

func (e *Engine) ownedSession(ctx context.Context, playerID, sessionID string) (storage.SessionRecord, error) {
	if strings.TrimSpace(playerID) == "" {
		return storage.SessionRecord{}, apperrors.New(apperrors.CodeUnauthorized, "player identity is required")
	}
	if strings.TrimSpace(sessionID) == "" {
		return storage.SessionRecord{}, apperrors.New(apperrors.CodeSessionNotFound, "session id is required")
	}
	rec, err := e.sessions.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.SessionRecord{}, apperrors.New(apperrors.CodeSessionNotFound, "session not found")
		}
		return storage.SessionRecord{}, apperrors.Wrap(apperrors.CodeStorageFailure, "load session", err)
	}
	if rec.Session.PlayerID != playerID {
		return storage.SessionRecord{}, apperrors.New(apperrors.CodeForbidden, "session belongs to another player")
	}
	return rec, nil
}

func translateUpdateError(err error) error {
	switch {
	case errors.Is(err, storage.ErrSessionEnded):
		return apperrors.New(apperrors.CodeSessionEnded, "session already ended")
	case errors.Is(err, storage.ErrVersionMismatch):
		return apperrors.New(apperrors.CodeConflict, "session modified concurrently")
	case errors.Is(err, storage.ErrNotFound):
		return apperrors.New(apperrors.CodeSessionNotFound, "session not found")
	default:
		return apperrors.Wrap(apperrors.CodeStorageFailure, "update session", err)
	}
}
