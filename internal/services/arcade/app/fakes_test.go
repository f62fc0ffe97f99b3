package app

import (
	"context"
	"sync"
	"time"

	"github.com/gemfall/arcade/internal/services/arcade/storage"
)

// fakeStore is an in-memory storage.Store with the same conditional-update
// semantics as the real one.
type fakeStore struct {
	mu       sync.Mutex
	sessions map[string]storage.SessionRecord
	quota    map[string]int
	config   map[string]string
	players  map[string]int64
	names    map[string]string

	failUpdate error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions: map[string]storage.SessionRecord{},
		quota:    map[string]int{},
		config:   map[string]string{},
		players:  map[string]int64{},
		names:    map[string]string{},
	}
}

func (f *fakeStore) CreateSession(_ context.Context, rec storage.SessionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[rec.Session.ID] = rec
	return nil
}

func (f *fakeStore) GetSession(_ context.Context, id string) (storage.SessionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.sessions[id]
	if !ok {
		return storage.SessionRecord{}, storage.ErrNotFound
	}
	return rec, nil
}

func (f *fakeStore) UpdateSessionProgress(_ context.Context, rec storage.SessionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpdate != nil {
		return f.failUpdate
	}
	current, ok := f.sessions[rec.Session.ID]
	if !ok {
		return storage.ErrNotFound
	}
	if current.Session.EndedAt != nil {
		return storage.ErrSessionEnded
	}
	if current.Version != rec.Version {
		return storage.ErrVersionMismatch
	}
	rec.Version++
	f.sessions[rec.Session.ID] = rec
	return nil
}

func (f *fakeStore) BeginClaim(_ context.Context, sessionID, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.sessions[sessionID]
	if !ok {
		return storage.ErrNotFound
	}
	if rec.Session.Status != "won" || rec.Session.ClaimedAt != nil || rec.ClaimToken != "" {
		return storage.ErrClaimUnavailable
	}
	rec.ClaimToken = token
	f.sessions[sessionID] = rec
	return nil
}

func (f *fakeStore) FinishClaim(_ context.Context, sessionID, token string, receipt storage.TransferReceipt, claimedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.sessions[sessionID]
	if !ok || rec.ClaimToken != token {
		return storage.ErrClaimUnavailable
	}
	at := claimedAt.UTC()
	rec.Session.ClaimedAt = &at
	rec.ClaimToken = ""
	rec.TransferHash = receipt.Hash
	rec.TransferDestination = receipt.Destination
	rec.TransferAmount = receipt.Amount
	f.sessions[sessionID] = rec
	return nil
}

func (f *fakeStore) AbortClaim(_ context.Context, sessionID, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.sessions[sessionID]
	if !ok || rec.ClaimToken != token {
		return storage.ErrClaimUnavailable
	}
	rec.ClaimToken = ""
	f.sessions[sessionID] = rec
	return nil
}

func (f *fakeStore) RecentSessions(_ context.Context, limit int) ([]storage.ActivityEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var entries []storage.ActivityEntry
	for _, rec := range f.sessions {
		entries = append(entries, storage.ActivityEntry{
			SessionID: rec.Session.ID,
			PlayerID:  rec.Session.PlayerID,
			Status:    rec.Session.Status,
			Reward:    rec.Session.Reward(),
			StartedAt: rec.Session.StartedAt,
			EndedAt:   rec.Session.EndedAt,
		})
		if len(entries) == limit {
			break
		}
	}
	return entries, nil
}

func (f *fakeStore) IncrementIfBelow(_ context.Context, playerID, periodKey string, max int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := playerID + "|" + periodKey
	if f.quota[key] >= max {
		return false, nil
	}
	f.quota[key]++
	return true, nil
}

func (f *fakeStore) QuotaCount(_ context.Context, playerID, periodKey string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.quota[playerID+"|"+periodKey], nil
}

func (f *fakeStore) ConfigValue(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	value, ok := f.config[key]
	return value, ok, nil
}

func (f *fakeStore) UpsertPlayer(_ context.Context, playerID, displayName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.players[playerID]; !ok {
		f.players[playerID] = 0
	}
	if displayName != "" {
		f.names[playerID] = displayName
	}
	return nil
}

func (f *fakeStore) AddGems(_ context.Context, playerID string, gems int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.players[playerID]; !ok {
		return storage.ErrNotFound
	}
	f.players[playerID] += int64(gems)
	return nil
}

func (f *fakeStore) TopPlayers(_ context.Context, limit int) ([]storage.PlayerRank, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ranks []storage.PlayerRank
	for playerID, gems := range f.players {
		ranks = append(ranks, storage.PlayerRank{PlayerID: playerID, DisplayName: f.names[playerID], TotalGems: gems})
		if len(ranks) == limit {
			break
		}
	}
	return ranks, nil
}

func (f *fakeStore) Close() error { return nil }

func (f *fakeStore) gems(playerID string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.players[playerID]
}

// fakeResolver resolves every player to a fixed address or a fixed error.
type fakeResolver struct {
	address string
	err     error
	calls   int
}

func (r *fakeResolver) ResolveAddress(context.Context, string) (string, error) {
	r.calls++
	if r.err != nil {
		return "", r.err
	}
	return r.address, nil
}

// fakeTransferrer records transfer calls and returns a canned receipt.
type fakeTransferrer struct {
	receipt  storage.TransferReceipt
	err      error
	calls    int
	lastTo   string
	lastGems int
}

func (t *fakeTransferrer) Transfer(_ context.Context, destination string, gems int) (storage.TransferReceipt, error) {
	t.calls++
	t.lastTo = destination
	t.lastGems = gems
	if t.err != nil {
		return storage.TransferReceipt{}, t.err
	}
	return t.receipt, nil
}
