package app

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	apperrors "github.com/gemfall/arcade/internal/errors"
	"github.com/gemfall/arcade/internal/id"
	"github.com/gemfall/arcade/internal/services/arcade/domain"
	"github.com/gemfall/arcade/internal/services/arcade/storage"
)

// AddressResolver maps a player identity to a payable destination address.
type AddressResolver interface {
	ResolveAddress(ctx context.Context, playerID string) (string, error)
}

// TokenTransferrer executes an external token transfer and returns its
// receipt once the transfer is confirmed.
type TokenTransferrer interface {
	Transfer(ctx context.Context, destination string, gems int) (storage.TransferReceipt, error)
}

// ErrTransferIndeterminate marks a transfer whose outcome is unknown: the
// transaction was broadcast but confirmation failed or timed out, so it may
// still land. Implementations wrap it so the coordinator knows the claim
// marker must not be released.
var ErrTransferIndeterminate = errors.New("transfer outcome indeterminate")

// defaultSettleTimeout bounds the resolve-and-transfer window per claim.
const defaultSettleTimeout = 45 * time.Second

// Settlement pays out won sessions exactly once. A pending claim marker is
// taken before any external call and either finalized with the receipt or
// released on failure, so a crash mid-transfer leaves the marker for an
// operator to inspect rather than risking a double payout.
type Settlement struct {
	sessions    storage.SessionStore
	resolver    AddressResolver
	transferrer TokenTransferrer
	timeout     time.Duration

	newToken func() (string, error)
	now      func() time.Time
}

// NewSettlement builds a settlement coordinator over the session store and
// the external collaborators.
func NewSettlement(sessions storage.SessionStore, resolver AddressResolver, transferrer TokenTransferrer, timeout time.Duration) *Settlement {
	if timeout <= 0 {
		timeout = defaultSettleTimeout
	}
	return &Settlement{
		sessions:    sessions,
		resolver:    resolver,
		transferrer: transferrer,
		timeout:     timeout,
		newToken:    id.NewID,
		now:         time.Now,
	}
}

// Settle resolves the player's destination address and transfers the session
// reward. Repeated calls for an already-claimed session fail with
// CodeAlreadyClaimed; a concurrent in-flight claim fails with
// CodeSettlementInProgress.
func (s *Settlement) Settle(ctx context.Context, playerID, sessionID string) (storage.TransferReceipt, error) {
	if strings.TrimSpace(playerID) == "" {
		return storage.TransferReceipt{}, apperrors.New(apperrors.CodeUnauthorized, "player identity is required")
	}
	rec, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.TransferReceipt{}, apperrors.New(apperrors.CodeSessionNotFound, "session not found")
		}
		return storage.TransferReceipt{}, apperrors.Wrap(apperrors.CodeStorageFailure, "load session", err)
	}
	if rec.Session.PlayerID != playerID {
		return storage.TransferReceipt{}, apperrors.New(apperrors.CodeForbidden, "session belongs to another player")
	}
	if rec.Session.Status != domain.StatusWon {
		return storage.TransferReceipt{}, apperrors.New(apperrors.CodeNotWon, "session is not won")
	}
	if rec.Session.ClaimedAt != nil {
		return storage.TransferReceipt{}, apperrors.New(apperrors.CodeAlreadyClaimed, "reward already claimed")
	}
	reward := rec.Session.Reward()
	if reward < 1 {
		return storage.TransferReceipt{}, apperrors.New(apperrors.CodeNothingToSettle, "session has no reward")
	}

	token, err := s.newToken()
	if err != nil {
		return storage.TransferReceipt{}, apperrors.Wrap(apperrors.CodeUnknown, "generate claim token", err)
	}
	if err := s.sessions.BeginClaim(ctx, sessionID, token); err != nil {
		switch {
		case errors.Is(err, storage.ErrClaimUnavailable):
			return storage.TransferReceipt{}, apperrors.New(apperrors.CodeSettlementInProgress, "settlement already in progress")
		case errors.Is(err, storage.ErrNotFound):
			return storage.TransferReceipt{}, apperrors.New(apperrors.CodeSessionNotFound, "session not found")
		default:
			return storage.TransferReceipt{}, apperrors.Wrap(apperrors.CodeStorageFailure, "begin claim", err)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	destination, err := s.resolver.ResolveAddress(callCtx, playerID)
	if err != nil {
		s.releaseClaim(ctx, sessionID, token)
		if apperrors.GetCode(err) != apperrors.CodeUnknown {
			return storage.TransferReceipt{}, err
		}
		return storage.TransferReceipt{}, apperrors.Wrap(apperrors.CodeUpstreamResolver, "resolve destination", err)
	}

	receipt, err := s.transferrer.Transfer(callCtx, destination, reward)
	if err != nil {
		// A broadcast transaction can still mine after a confirmation
		// timeout. Releasing the marker here would let a retry broadcast a
		// second transfer, so the claim stays pending for reconciliation.
		if errors.Is(err, ErrTransferIndeterminate) {
			log.Printf("settlement: transfer for session %s indeterminate, claim held: %v", sessionID, err)
			return storage.TransferReceipt{}, apperrors.Wrap(apperrors.CodeUpstreamTransfer, "transfer outcome unknown", err)
		}
		s.releaseClaim(ctx, sessionID, token)
		if apperrors.GetCode(err) != apperrors.CodeUnknown {
			return storage.TransferReceipt{}, err
		}
		return storage.TransferReceipt{}, apperrors.Wrap(apperrors.CodeUpstreamTransfer, "transfer reward", err)
	}

	// The transfer has happened. From here the marker must not be released:
	// a finalize failure leaves the claim pending for manual reconciliation
	// instead of opening a double-payout window.
	if err := s.sessions.FinishClaim(ctx, sessionID, token, receipt, s.now()); err != nil {
		log.Printf("settlement: finalize claim for session %s after transfer %s: %v", sessionID, receipt.Hash, err)
		return storage.TransferReceipt{}, apperrors.Wrap(apperrors.CodeStorageFailure, "finalize claim", err)
	}
	return receipt, nil
}

// releaseClaim returns the marker after a failed external call. The release
// itself is best effort; a leaked marker only blocks retries until cleared.
func (s *Settlement) releaseClaim(ctx context.Context, sessionID, token string) {
	if err := s.sessions.AbortClaim(ctx, sessionID, token); err != nil {
		log.Printf("settlement: release claim for session %s: %v", sessionID, err)
	}
}
