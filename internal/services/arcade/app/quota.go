// Package app orchestrates arcade gameplay over the storage contracts: quota
// admission, the session engine, and reward settlement.
package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/gemfall/arcade/internal/errors"
	"github.com/gemfall/arcade/internal/services/arcade/domain/period"
	"github.com/gemfall/arcade/internal/services/arcade/storage"
)

// maxPlaysKey is the operator configuration key holding the per-period play
// allowance. There is no compiled-in fallback: a missing or malformed value
// denies every play.
const maxPlaysKey = "max_plays"

// QuotaLedger admits plays against a bounded per-period allowance.
type QuotaLedger struct {
	quotas     storage.QuotaStore
	config     storage.ConfigStore
	anchorHour int
	loc        *time.Location

	// now is swappable for tests.
	now func() time.Time
}

// NewQuotaLedger builds a ledger whose periods roll over at anchorHour local
// time in zone.
func NewQuotaLedger(quotas storage.QuotaStore, config storage.ConfigStore, zone string, anchorHour int) (*QuotaLedger, error) {
	if quotas == nil || config == nil {
		return nil, fmt.Errorf("quota and config stores are required")
	}
	if strings.TrimSpace(zone) == "" {
		zone = period.DefaultZone
	}
	if anchorHour < 0 || anchorHour > 23 {
		return nil, fmt.Errorf("anchor hour %d outside 0-23", anchorHour)
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("load quota zone %q: %w", zone, err)
	}
	return &QuotaLedger{
		quotas:     quotas,
		config:     config,
		anchorHour: anchorHour,
		loc:        loc,
		now:        time.Now,
	}, nil
}

// QuotaStatus is a read-only snapshot of a player's allowance in the current
// period.
type QuotaStatus struct {
	MaxPlays  int
	Used      int
	Remaining int
	NextReset time.Time
}

// CheckAndIncrement admits one play for the player in the current period,
// consuming one unit of allowance. Exhausted quota surfaces as
// CodeQuotaExhausted; the consumed unit is never refunded, even when the
// caller later fails to create a session.
func (l *QuotaLedger) CheckAndIncrement(ctx context.Context, playerID string) error {
	max, err := l.maxPlays(ctx)
	if err != nil {
		return err
	}
	key := period.KeyFor(l.now(), l.anchorHour, l.loc)
	admitted, err := l.quotas.IncrementIfBelow(ctx, playerID, key, max)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorageFailure, "increment quota", err)
	}
	if !admitted {
		return apperrors.WithMetadata(
			apperrors.CodeQuotaExhausted,
			"play quota exhausted for current period",
			map[string]string{"period": key},
		)
	}
	return nil
}

// Status reports the player's remaining allowance and the next reset instant.
func (l *QuotaLedger) Status(ctx context.Context, playerID string) (QuotaStatus, error) {
	max, err := l.maxPlays(ctx)
	if err != nil {
		return QuotaStatus{}, err
	}
	now := l.now()
	key := period.KeyFor(now, l.anchorHour, l.loc)
	used, err := l.quotas.QuotaCount(ctx, playerID, key)
	if err != nil {
		return QuotaStatus{}, apperrors.Wrap(apperrors.CodeStorageFailure, "read quota count", err)
	}
	remaining := max - used
	if remaining < 0 {
		remaining = 0
	}
	return QuotaStatus{
		MaxPlays:  max,
		Used:      used,
		Remaining: remaining,
		NextReset: period.NextResetAfter(now, l.anchorHour, l.loc),
	}, nil
}

// maxPlays reads the allowance fresh on every call so operator changes take
// effect without a restart.
func (l *QuotaLedger) maxPlays(ctx context.Context) (int, error) {
	value, found, err := l.config.ConfigValue(ctx, maxPlaysKey)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodeStorageFailure, "read max_plays", err)
	}
	if !found {
		return 0, apperrors.New(apperrors.CodeConfigMissing, "max_plays is not configured")
	}
	max, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || max < 0 {
		return 0, apperrors.WithMetadata(
			apperrors.CodeConfigInvalid,
			"max_plays is not a non-negative integer",
			map[string]string{"value": value},
		)
	}
	return max, nil
}
