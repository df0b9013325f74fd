package redis

import (
	"context"
	"errors"

	"github.com/lernhub/progress-engine/internal/domain/reward"
)

// ══════════════════════════════════════════════════════════════════════════════
// CACHED REWARD REPOSITORY
// Cache-aside decorator over the persistent reward repository. Only the
// profile read is cached: it is the hot path (every profile page hit) and
// the TTL is short enough that staleness is bounded even if an invalidation
// is lost. Writes always go to the database first.
// ══════════════════════════════════════════════════════════════════════════════

// CachedRewardRepository wraps a reward.Repository with a Redis cache for
// profile reads. Award invalidates the cached profile so the next read sees
// the new total.
type CachedRewardRepository struct {
	inner reward.Repository
	cache *Cache
}

// NewCachedRewardRepository creates a caching decorator around inner.
func NewCachedRewardRepository(inner reward.Repository, cache *Cache) *CachedRewardRepository {
	return &CachedRewardRepository{inner: inner, cache: cache}
}

// Award delegates to the persistent repository, then drops the cached
// profile. Invalidation failure is not an award failure; the entry expires
// on its own within ProfileTTL.
func (r *CachedRewardRepository) Award(ctx context.Context, tx *reward.XPTransaction, table *reward.LevelTable) (reward.AwardResult, error) {
	result, err := r.inner.Award(ctx, tx, table)
	if err != nil {
		return result, err
	}
	_ = r.cache.Delete(ctx, ProfileKey(tx.UserID))
	return result, nil
}

// GetProfile serves from cache when possible. Any cache error falls through
// to the database; a degraded cache never breaks reads.
func (r *CachedRewardRepository) GetProfile(ctx context.Context, userID string) (*reward.Profile, error) {
	key := ProfileKey(userID)

	var cached reward.Profile
	err := r.cache.Get(ctx, key, &cached)
	if err == nil {
		return &cached, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		// Fall through to the database on connection or decode trouble.
		_ = r.cache.Delete(ctx, key)
	}

	profile, err := r.inner.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	_ = r.cache.Set(ctx, key, profile, ProfileTTL)
	return profile, nil
}

// ListTransactions is not cached; history pages are cold reads.
func (r *CachedRewardRepository) ListTransactions(ctx context.Context, userID string, limit, offset int) ([]*reward.XPTransaction, error) {
	return r.inner.ListTransactions(ctx, userID, limit, offset)
}

// SumLedger always reads the database; reconciliation must see the truth.
func (r *CachedRewardRepository) SumLedger(ctx context.Context, userID string) (int, error) {
	return r.inner.SumLedger(ctx, userID)
}

// Reconcile delegates and leaves invalidation to TTL expiry. Repaired
// profiles may be served stale for at most ProfileTTL.
func (r *CachedRewardRepository) Reconcile(ctx context.Context, table *reward.LevelTable) (int, error) {
	return r.inner.Reconcile(ctx, table)
}

// LoadLevels delegates; the level table is loaded once at startup.
func (r *CachedRewardRepository) LoadLevels(ctx context.Context) ([]reward.Level, error) {
	return r.inner.LoadLevels(ctx)
}
