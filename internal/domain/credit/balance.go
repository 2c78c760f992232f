package credit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/subkeep/subkeep-api/internal/pkg/cache"
)

// BalanceCache is the read-through cache in front of the ledger sum.
// Writers invalidate, never update: the next read recomputes from the
// ledger. Cache failures degrade to ledger reads and are only logged.
type BalanceCache struct {
	cache cache.Cache
	ttl   time.Duration
}

func NewBalanceCache(c cache.Cache, ttl time.Duration) *BalanceCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &BalanceCache{cache: c, ttl: ttl}
}

func balanceKey(userID uuid.UUID) string {
	return "balance:" + userID.String()
}

func (bc *BalanceCache) Get(ctx context.Context, userID uuid.UUID) (*Balance, bool) {
	if bc.cache == nil {
		return nil, false
	}

	raw, err := bc.cache.Get(ctx, balanceKey(userID))
	if err != nil {
		if err != cache.ErrCacheMiss {
			log.Warn().Err(err).Str("user_id", userID.String()).Msg("Balance cache read failed")
		}
		return nil, false
	}

	var b Balance
	if err := json.Unmarshal(raw, &b); err != nil {
		log.Warn().Err(err).Str("user_id", userID.String()).Msg("Balance cache entry corrupt, dropping")
		_ = bc.cache.Delete(ctx, balanceKey(userID))
		return nil, false
	}
	return &b, true
}

func (bc *BalanceCache) Set(ctx context.Context, b *Balance) {
	if bc.cache == nil {
		return
	}
	raw, err := json.Marshal(b)
	if err != nil {
		return
	}
	if err := bc.cache.Set(ctx, balanceKey(b.UserID), raw, bc.ttl); err != nil {
		log.Warn().Err(err).Str("user_id", b.UserID.String()).Msg("Balance cache write failed")
	}
}

func (bc *BalanceCache) Invalidate(ctx context.Context, userID uuid.UUID) {
	if bc.cache == nil {
		return
	}
	if err := bc.cache.Delete(ctx, balanceKey(userID)); err != nil {
		log.Warn().Err(err).Str("user_id", userID.String()).Msg("Balance cache invalidation failed")
	}
}
