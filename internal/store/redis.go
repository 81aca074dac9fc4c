package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/harvestbet/pari-engine/internal/limits"
	"github.com/harvestbet/pari-engine/internal/model"
	"github.com/harvestbet/pari-engine/internal/parimutuel"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Writes go to the primary store and invalidate the cache; reads
// check Redis first then fall back to the primary.
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

func (s *CachedStore) CreateMarket(ctx context.Context, m *model.Market) error {
	if err := s.primary.CreateMarket(ctx, m); err != nil {
		return err
	}
	s.cacheMarket(ctx, m)
	return nil
}

func (s *CachedStore) UpdateMarketStatus(ctx context.Context, id, status string, outcome model.Side) error {
	if err := s.primary.UpdateMarketStatus(ctx, id, status, outcome); err != nil {
		return err
	}
	// Invalidate; next read re-populates.
	s.rdb.Del(ctx, marketKey(id))
	return nil
}

func (s *CachedStore) CommitStake(ctx context.Context, stake *model.Stake, yesPool, noPool decimal.Decimal) error {
	if err := s.primary.CommitStake(ctx, stake, yesPool, noPool); err != nil {
		return err
	}
	s.rdb.Del(ctx, marketKey(stake.MarketID), bettorKey(stake.BettorID))
	return nil
}

func (s *CachedStore) ApplySettlement(ctx context.Context, marketID, status string, outcome model.Side,
	payouts []parimutuel.StakePayout, entry *model.CharityLedgerEntry) error {

	if err := s.primary.ApplySettlement(ctx, marketID, status, outcome, payouts, entry); err != nil {
		return err
	}
	// Settlement touches every stake of the market; drop the market key and
	// all bettor stake caches rather than tracking each bettor.
	s.rdb.Del(ctx, marketKey(marketID))
	s.invalidateBettors(ctx)
	return nil
}

func (s *CachedStore) DistributeCharityEntry(ctx context.Context, id, recipientName, recipientAddress string, at time.Time) error {
	return s.primary.DistributeCharityEntry(ctx, id, recipientName, recipientAddress, at)
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetMarket(ctx context.Context, id string) (*model.Market, error) {
	data, err := s.rdb.Get(ctx, marketKey(id)).Bytes()
	if err == nil {
		var m model.Market
		if json.Unmarshal(data, &m) == nil {
			return &m, nil
		}
	}

	m, err := s.primary.GetMarket(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cacheMarket(ctx, m)
	return m, nil
}

func (s *CachedStore) GetMarketByProposition(ctx context.Context, ticker string) (*model.Market, error) {
	// Try cache via proposition→marketID mapping.
	marketID, err := s.rdb.Get(ctx, propositionKey(ticker)).Result()
	if err == nil {
		return s.GetMarket(ctx, marketID)
	}

	m, err := s.primary.GetMarketByProposition(ctx, ticker)
	if err != nil {
		return nil, err
	}

	s.cacheMarket(ctx, m)
	s.rdb.Set(ctx, propositionKey(ticker), m.ID, s.ttl)
	return m, nil
}

func (s *CachedStore) GetStakesByBettor(ctx context.Context, bettorID string) ([]model.Stake, error) {
	data, err := s.rdb.Get(ctx, bettorKey(bettorID)).Bytes()
	if err == nil {
		var stakes []model.Stake
		if json.Unmarshal(data, &stakes) == nil {
			return stakes, nil
		}
	}

	stakes, err := s.primary.GetStakesByBettor(ctx, bettorID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(stakes); err == nil {
		s.rdb.Set(ctx, bettorKey(bettorID), data, s.ttl)
	}
	return stakes, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ListMarkets(ctx context.Context) ([]model.Market, error) {
	return s.primary.ListMarkets(ctx)
}

func (s *CachedStore) GetStakesByMarket(ctx context.Context, marketID string) ([]model.Stake, error) {
	return s.primary.GetStakesByMarket(ctx, marketID)
}

func (s *CachedStore) GetBettorExposures(ctx context.Context, bettorID string) ([]limits.Exposure, error) {
	return s.primary.GetBettorExposures(ctx, bettorID)
}

func (s *CachedStore) ListCharityEntries(ctx context.Context) ([]model.CharityLedgerEntry, error) {
	return s.primary.ListCharityEntries(ctx)
}

func (s *CachedStore) CharityTotal(ctx context.Context) (decimal.Decimal, error) {
	return s.primary.CharityTotal(ctx)
}

// --- Cache helpers ---

func (s *CachedStore) cacheMarket(ctx context.Context, m *model.Market) {
	if data, err := json.Marshal(m); err == nil {
		s.rdb.Set(ctx, marketKey(m.ID), data, s.ttl)
	}
}

func (s *CachedStore) invalidateBettors(ctx context.Context) {
	iter := s.rdb.Scan(ctx, 0, bettorKey("*"), 100).Iterator()
	for iter.Next(ctx) {
		s.rdb.Del(ctx, iter.Val())
	}
}

func marketKey(id string) string       { return fmt.Sprintf("market:%s", id) }
func propositionKey(t string) string   { return fmt.Sprintf("proposition:%s", t) }
func bettorKey(bettorID string) string { return fmt.Sprintf("stakes:%s", bettorID) }
