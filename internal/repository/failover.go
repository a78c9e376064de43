package repository

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"rentcrm/internal/domain"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// ErrPrimaryUnavailable is returned by IsRevoked while the primary is marked down.
var ErrPrimaryUnavailable = errors.New("primary session store unavailable")

// FailoverSessionStore routes calls to primary and switches to fallback on
// the first error. The primary is retried once per recovery interval.
//
// Revocations are written to both stores and a token counts as revoked when
// either store says so. A revocation check never falls back: when the primary
// cannot answer IsRevoked returns an error, so callers reject the token.
// Only rate limiting is served by the fallback alone.
type FailoverSessionStore struct {
	primary   domain.SessionStore
	fallback  domain.SessionStore
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
}

func NewFailoverSessionStore(primary, fallback domain.SessionStore, logger *zerolog.Logger) *FailoverSessionStore {
	return &FailoverSessionStore{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

// usePrimary reports whether the next call should go to the primary store.
func (r *FailoverSessionStore) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	return time.Since(time.Unix(0, r.lastCheck.Load())) > recoveryInterval
}

func (r *FailoverSessionStore) observe(err error) {
	if err == nil {
		if r.isDown.Swap(false) {
			r.logger.Info().Msg("Primary session store recovered")
		}
		return
	}
	if !r.isDown.Swap(true) {
		r.logger.Error().Err(err).Msg("Primary session store failed, falling back to memory")
	}
	r.lastCheck.Store(time.Now().UnixNano())
}

func (r *FailoverSessionStore) RevokeToken(ctx context.Context, tokenID string, ttl time.Duration) error {
	localErr := r.fallback.RevokeToken(ctx, tokenID, ttl)
	if !r.usePrimary() {
		return localErr
	}
	err := r.primary.RevokeToken(ctx, tokenID, ttl)
	r.observe(err)
	if err != nil && localErr != nil {
		return fmt.Errorf("revoke token: %w", errors.Join(err, localErr))
	}
	return nil
}

func (r *FailoverSessionStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if revoked, err := r.fallback.IsRevoked(ctx, tokenID); err == nil && revoked {
		return true, nil
	}
	if !r.usePrimary() {
		return false, ErrPrimaryUnavailable
	}
	revoked, err := r.primary.IsRevoked(ctx, tokenID)
	r.observe(err)
	if err != nil {
		return false, fmt.Errorf("check revocation: %w", err)
	}
	return revoked, nil
}

func (r *FailoverSessionStore) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.usePrimary() {
		allowed, err := r.primary.CheckRateLimit(ctx, key, limit, window)
		r.observe(err)
		if err == nil {
			return allowed, nil
		}
	}
	return r.fallback.CheckRateLimit(ctx, key, limit, window)
}
