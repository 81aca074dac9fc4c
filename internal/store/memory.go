package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/harvestbet/pari-engine/internal/limits"
	"github.com/harvestbet/pari-engine/internal/model"
	"github.com/harvestbet/pari-engine/internal/parimutuel"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu      sync.RWMutex
	markets map[string]*model.Market
	stakes  []model.Stake
	charity []model.CharityLedgerEntry
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		markets: make(map[string]*model.Market),
	}
}

func (s *MemoryStore) CreateMarket(_ context.Context, m *model.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.markets {
		if existing.Proposition == m.Proposition {
			return fmt.Errorf("market for proposition %s already exists", m.Proposition)
		}
	}

	// Store a copy to avoid external mutation.
	copy := *m
	s.markets[m.ID] = &copy
	return nil
}

func (s *MemoryStore) GetMarket(_ context.Context, id string) (*model.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.markets[id]
	if !ok {
		return nil, fmt.Errorf("market %s not found", id)
	}
	copy := *m
	return &copy, nil
}

func (s *MemoryStore) GetMarketByProposition(_ context.Context, ticker string) (*model.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.markets {
		if m.Proposition == ticker {
			copy := *m
			return &copy, nil
		}
	}
	return nil, fmt.Errorf("market for proposition %s not found", ticker)
}

func (s *MemoryStore) ListMarkets(_ context.Context) ([]model.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	markets := make([]model.Market, 0, len(s.markets))
	for _, m := range s.markets {
		markets = append(markets, *m)
	}
	sort.Slice(markets, func(i, j int) bool {
		return markets[i].CreatedAt.After(markets[j].CreatedAt)
	})
	return markets, nil
}

func (s *MemoryStore) UpdateMarketStatus(_ context.Context, id, status string, outcome model.Side) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.markets[id]
	if !ok {
		return fmt.Errorf("market %s not found", id)
	}
	m.Status = status
	if outcome != "" {
		m.Outcome = outcome
	}
	return nil
}

func (s *MemoryStore) CommitStake(_ context.Context, stake *model.Stake, yesPool, noPool decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.markets[stake.MarketID]
	if !ok {
		return fmt.Errorf("market %s not found", stake.MarketID)
	}

	s.stakes = append(s.stakes, *stake)
	m.YesPool = yesPool
	m.NoPool = noPool
	return nil
}

func (s *MemoryStore) GetStakesByMarket(_ context.Context, marketID string) ([]model.Stake, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Stake
	for _, st := range s.stakes {
		if st.MarketID == marketID {
			result = append(result, st)
		}
	}
	return result, nil
}

func (s *MemoryStore) GetStakesByBettor(_ context.Context, bettorID string) ([]model.Stake, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Stake
	for _, st := range s.stakes {
		if st.BettorID == bettorID {
			result = append(result, st)
		}
	}
	return result, nil
}

// GetBettorExposures aggregates pending stakes into per-market totals.
func (s *MemoryStore) GetBettorExposures(_ context.Context, bettorID string) ([]limits.Exposure, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	totals := make(map[string]decimal.Decimal)
	for _, st := range s.stakes {
		if st.BettorID != bettorID || st.Status != model.StakePending {
			continue
		}
		totals[st.MarketID] = totals[st.MarketID].Add(st.Amount)
	}

	var exposures []limits.Exposure
	for marketID, total := range totals {
		province := ""
		if m := s.markets[marketID]; m != nil {
			province = m.Province
		}
		exposures = append(exposures, limits.Exposure{
			MarketID: marketID,
			Province: province,
			Total:    total,
		})
	}
	return exposures, nil
}

func (s *MemoryStore) ApplySettlement(_ context.Context, marketID, status string, outcome model.Side,
	payouts []parimutuel.StakePayout, entry *model.CharityLedgerEntry) error {

	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.markets[marketID]
	if !ok {
		return fmt.Errorf("market %s not found", marketID)
	}

	byStake := make(map[string]parimutuel.StakePayout, len(payouts))
	for _, p := range payouts {
		byStake[p.StakeID] = p
	}

	for i := range s.stakes {
		p, ok := byStake[s.stakes[i].ID]
		if !ok {
			continue
		}
		payout := p.Payout
		s.stakes[i].Status = p.Status
		s.stakes[i].Payout = &payout
	}

	m.Status = status
	if outcome != "" {
		m.Outcome = outcome
	}
	if entry != nil {
		s.charity = append(s.charity, *entry)
	}
	return nil
}

func (s *MemoryStore) ListCharityEntries(_ context.Context) ([]model.CharityLedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]model.CharityLedgerEntry, len(s.charity))
	copy(entries, s.charity)
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	return entries, nil
}

func (s *MemoryStore) CharityTotal(_ context.Context) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := decimal.Zero
	for _, e := range s.charity {
		total = total.Add(e.Amount)
	}
	return total, nil
}

func (s *MemoryStore) DistributeCharityEntry(_ context.Context, id, recipientName, recipientAddress string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.charity {
		if s.charity[i].ID != id {
			continue
		}
		if s.charity[i].Status == model.CharityDistributed {
			return fmt.Errorf("charity entry %s already distributed", id)
		}
		s.charity[i].Status = model.CharityDistributed
		s.charity[i].RecipientName = recipientName
		s.charity[i].RecipientAddress = recipientAddress
		distributedAt := at
		s.charity[i].DistributedAt = &distributedAt
		return nil
	}
	return fmt.Errorf("charity entry %s not found", id)
}
