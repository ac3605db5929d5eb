package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/GauravKarakoti/OddsSync/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache for market records and option totals. Writes go to the primary
// store and invalidate the cache; reads check Redis first then fall back
// to the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) InsertMarket(ctx context.Context, m *model.Market) error {
	if err := s.primary.InsertMarket(ctx, m); err != nil {
		return err
	}
	s.cacheMarket(ctx, m)
	return nil
}

func (s *CachedStore) UpdateMarket(ctx context.Context, m *model.Market) error {
	if err := s.primary.UpdateMarket(ctx, m); err != nil {
		return err
	}
	// Invalidate; next read re-populates.
	s.rdb.Del(ctx, marketKey(m.MarketID))
	return nil
}

func (s *CachedStore) ApplyBet(ctx context.Context, bet *model.Bet, optionTotal, marketTotal uint64, deliveryKey string) error {
	if err := s.primary.ApplyBet(ctx, bet, optionTotal, marketTotal, deliveryKey); err != nil {
		return err
	}
	// The market record (total_bets) and the totals table both changed.
	s.rdb.Del(ctx, marketKey(bet.MarketID), totalsKey(bet.MarketID))
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetMarket(ctx context.Context, marketID uint64) (*model.Market, error) {
	data, err := s.rdb.Get(ctx, marketKey(marketID)).Bytes()
	if err == nil {
		var m model.Market
		if json.Unmarshal(data, &m) == nil {
			return &m, nil
		}
	}

	m, err := s.primary.GetMarket(ctx, marketID)
	if err != nil || m == nil {
		return m, err
	}

	s.cacheMarket(ctx, m)
	return m, nil
}

func (s *CachedStore) GetMarketDomain(ctx context.Context, marketID uint64) (string, bool, error) {
	// The id→domain mapping is immutable, so it caches without a TTL race.
	domain, err := s.rdb.Get(ctx, domainKey(marketID)).Result()
	if err == nil {
		return domain, true, nil
	}

	domain, found, err := s.primary.GetMarketDomain(ctx, marketID)
	if err != nil || !found {
		return domain, found, err
	}

	s.rdb.Set(ctx, domainKey(marketID), domain, s.ttl)
	return domain, true, nil
}

func (s *CachedStore) GetOptionTotals(ctx context.Context, marketID uint64) (map[uint32]uint64, error) {
	data, err := s.rdb.Get(ctx, totalsKey(marketID)).Bytes()
	if err == nil {
		var totals map[uint32]uint64
		if json.Unmarshal(data, &totals) == nil {
			return totals, nil
		}
	}

	totals, err := s.primary.GetOptionTotals(ctx, marketID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(totals); err == nil {
		s.rdb.Set(ctx, totalsKey(marketID), data, s.ttl)
	}
	return totals, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) NextMarketID(ctx context.Context) (uint64, error) {
	return s.primary.NextMarketID(ctx)
}

func (s *CachedStore) NextBetID(ctx context.Context) (uint64, error) {
	return s.primary.NextBetID(ctx)
}

func (s *CachedStore) NextOutboundSequence(ctx context.Context, destDomain string) (uint64, error) {
	return s.primary.NextOutboundSequence(ctx, destDomain)
}

func (s *CachedStore) ListMarkets(ctx context.Context) ([]model.Market, error) {
	return s.primary.ListMarkets(ctx)
}

func (s *CachedStore) GetBet(ctx context.Context, betID uint64) (*model.Bet, error) {
	return s.primary.GetBet(ctx, betID)
}

func (s *CachedStore) GetBetsByMarket(ctx context.Context, marketID uint64) ([]model.Bet, error) {
	return s.primary.GetBetsByMarket(ctx, marketID)
}

func (s *CachedStore) GetBetsByUser(ctx context.Context, bettor string) ([]model.Bet, error) {
	return s.primary.GetBetsByUser(ctx, bettor)
}

// --- Cache helpers ---

func (s *CachedStore) cacheMarket(ctx context.Context, m *model.Market) {
	if data, err := json.Marshal(m); err == nil {
		s.rdb.Set(ctx, marketKey(m.MarketID), data, s.ttl)
	}
}

func marketKey(id uint64) string { return fmt.Sprintf("market:%d", id) }
func domainKey(id uint64) string { return fmt.Sprintf("domain:%d", id) }
func totalsKey(id uint64) string { return fmt.Sprintf("totals:%d", id) }
