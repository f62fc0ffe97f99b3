package app

import (
	"context"
	"testing"
	"time"

	apperrors "github.com/gemfall/arcade/internal/errors"
	"github.com/gemfall/arcade/internal/services/arcade/domain"
	"github.com/gemfall/arcade/internal/services/arcade/storage"
)

var engineNow = time.Date(2025, 6, 1, 19, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, store *fakeStore) *Engine {
	t.Helper()
	store.config[maxPlaysKey] = "10"
	ledger := newTestLedger(t, store, engineNow)
	engine := NewEngine(store, store, ledger)
	engine.now = func() time.Time { return engineNow }
	engine.newID = func() (string, error) { return "sess-1", nil }
	engine.newSeed = func() (int64, error) { return 42, nil }
	return engine
}

// seedFixedSession installs a session with known mines so reveals are
// deterministic.
func seedFixedSession(store *fakeStore, id, playerID string, mines []int) {
	store.players[playerID] = 0
	store.sessions[id] = storage.SessionRecord{
		Session: domain.NewSession(id, playerID, mines, engineNow),
	}
}

func TestStartSessionCreatesActiveSession(t *testing.T) {
	store := newFakeStore()
	engine := newTestEngine(t, store)

	session, err := engine.StartSession(context.Background(), "player-1", "Alice")
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	if session.ID != "sess-1" {
		t.Fatalf("session id = %q", session.ID)
	}
	if session.Status != domain.StatusActive {
		t.Fatalf("status = %q", session.Status)
	}
	if len(session.Mines) != domain.MineCount {
		t.Fatalf("mines = %v", session.Mines)
	}
	if len(session.Revealed) != 0 {
		t.Fatalf("revealed = %v", session.Revealed)
	}
	if _, ok := store.sessions["sess-1"]; !ok {
		t.Fatal("session not persisted")
	}
	if store.names["player-1"] != "Alice" {
		t.Fatalf("display name = %q", store.names["player-1"])
	}
}

func TestStartSessionRequiresIdentity(t *testing.T) {
	store := newFakeStore()
	engine := newTestEngine(t, store)

	_, err := engine.StartSession(context.Background(), " ", "")
	if !apperrors.IsCode(err, apperrors.CodeUnauthorized) {
		t.Fatalf("expected CodeUnauthorized, got %v", err)
	}
}

func TestStartSessionConsumesQuota(t *testing.T) {
	store := newFakeStore()
	engine := newTestEngine(t, store)
	store.config[maxPlaysKey] = "1"
	ctx := context.Background()

	if _, err := engine.StartSession(ctx, "player-1", ""); err != nil {
		t.Fatalf("first start: %v", err)
	}
	_, err := engine.StartSession(ctx, "player-1", "")
	if !apperrors.IsCode(err, apperrors.CodeQuotaExhausted) {
		t.Fatalf("expected CodeQuotaExhausted, got %v", err)
	}
}

func TestRevealCellSafe(t *testing.T) {
	store := newFakeStore()
	engine := newTestEngine(t, store)
	seedFixedSession(store, "sess-1", "player-1", []int{1, 5, 9})

	result, err := engine.RevealCell(context.Background(), "player-1", "sess-1", 4)
	if err != nil {
		t.Fatalf("reveal: %v", err)
	}
	if result.Outcome.IsMine || result.Outcome.GameOver {
		t.Fatalf("outcome = %+v, want safe non-terminal", result.Outcome)
	}
	if result.Session.Reward() != 1 {
		t.Fatalf("reward = %d, want 1", result.Session.Reward())
	}
	if store.sessions["sess-1"].Version != 1 {
		t.Fatalf("version = %d, want 1", store.sessions["sess-1"].Version)
	}
}

func TestRevealCellMineLosesWithoutCredit(t *testing.T) {
	store := newFakeStore()
	engine := newTestEngine(t, store)
	seedFixedSession(store, "sess-1", "player-1", []int{1, 5, 9})
	ctx := context.Background()

	if _, err := engine.RevealCell(ctx, "player-1", "sess-1", 4); err != nil {
		t.Fatalf("safe reveal: %v", err)
	}
	result, err := engine.RevealCell(ctx, "player-1", "sess-1", 5)
	if err != nil {
		t.Fatalf("mine reveal: %v", err)
	}
	if !result.Outcome.IsMine || !result.Outcome.GameOver || result.Outcome.Won {
		t.Fatalf("outcome = %+v, want lost", result.Outcome)
	}
	if result.Session.Status != domain.StatusLost {
		t.Fatalf("status = %q", result.Session.Status)
	}
	if got := store.gems("player-1"); got != 0 {
		t.Fatalf("gems = %d, want 0 on loss", got)
	}
}

func TestRevealCellClearanceWinCredits(t *testing.T) {
	store := newFakeStore()
	engine := newTestEngine(t, store)
	seedFixedSession(store, "sess-1", "player-1", []int{22, 23, 24})
	ctx := context.Background()

	var last RevealResult
	for cell := 0; cell < 22; cell++ {
		result, err := engine.RevealCell(ctx, "player-1", "sess-1", cell)
		if err != nil {
			t.Fatalf("reveal %d: %v", cell, err)
		}
		last = result
	}
	if !last.Outcome.Won || !last.Outcome.GameOver {
		t.Fatalf("outcome = %+v, want clearance win", last.Outcome)
	}
	if got := store.gems("player-1"); got != 22 {
		t.Fatalf("gems = %d, want 22", got)
	}
}

func TestRevealCellOwnership(t *testing.T) {
	store := newFakeStore()
	engine := newTestEngine(t, store)
	seedFixedSession(store, "sess-1", "player-1", []int{1, 5, 9})

	_, err := engine.RevealCell(context.Background(), "player-2", "sess-1", 4)
	if !apperrors.IsCode(err, apperrors.CodeForbidden) {
		t.Fatalf("expected CodeForbidden, got %v", err)
	}
}

func TestRevealCellMissingSession(t *testing.T) {
	store := newFakeStore()
	engine := newTestEngine(t, store)

	_, err := engine.RevealCell(context.Background(), "player-1", "ghost", 4)
	if !apperrors.IsCode(err, apperrors.CodeSessionNotFound) {
		t.Fatalf("expected CodeSessionNotFound, got %v", err)
	}
}

func TestRevealCellWriteConflict(t *testing.T) {
	store := newFakeStore()
	engine := newTestEngine(t, store)
	seedFixedSession(store, "sess-1", "player-1", []int{1, 5, 9})
	store.failUpdate = storage.ErrVersionMismatch

	_, err := engine.RevealCell(context.Background(), "player-1", "sess-1", 4)
	if !apperrors.IsCode(err, apperrors.CodeConflict) {
		t.Fatalf("expected CodeConflict, got %v", err)
	}
}

func TestCashOutCreditsReward(t *testing.T) {
	store := newFakeStore()
	engine := newTestEngine(t, store)
	seedFixedSession(store, "sess-1", "player-1", []int{1, 5, 9})
	ctx := context.Background()

	for _, cell := range []int{4, 8, 12} {
		if _, err := engine.RevealCell(ctx, "player-1", "sess-1", cell); err != nil {
			t.Fatalf("reveal %d: %v", cell, err)
		}
	}
	session, err := engine.CashOut(ctx, "player-1", "sess-1")
	if err != nil {
		t.Fatalf("cash out: %v", err)
	}
	if session.Status != domain.StatusWon {
		t.Fatalf("status = %q", session.Status)
	}
	if got := store.gems("player-1"); got != 3 {
		t.Fatalf("gems = %d, want 3", got)
	}
}

func TestCashOutNothingRevealed(t *testing.T) {
	store := newFakeStore()
	engine := newTestEngine(t, store)
	seedFixedSession(store, "sess-1", "player-1", []int{1, 5, 9})

	_, err := engine.CashOut(context.Background(), "player-1", "sess-1")
	if !apperrors.IsCode(err, apperrors.CodeNothingRevealed) {
		t.Fatalf("expected CodeNothingRevealed, got %v", err)
	}
}

func TestCashOutEndedSession(t *testing.T) {
	store := newFakeStore()
	engine := newTestEngine(t, store)
	seedFixedSession(store, "sess-1", "player-1", []int{1, 5, 9})
	ctx := context.Background()

	if _, err := engine.RevealCell(ctx, "player-1", "sess-1", 4); err != nil {
		t.Fatalf("reveal: %v", err)
	}
	if _, err := engine.CashOut(ctx, "player-1", "sess-1"); err != nil {
		t.Fatalf("cash out: %v", err)
	}
	_, err := engine.CashOut(ctx, "player-1", "sess-1")
	if !apperrors.IsCode(err, apperrors.CodeSessionEnded) {
		t.Fatalf("expected CodeSessionEnded, got %v", err)
	}
}
