package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/harvestbet/pari-engine/internal/model"
	"github.com/harvestbet/pari-engine/internal/parimutuel"
	"github.com/harvestbet/pari-engine/internal/store"
)

var now = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func seedMarket(t *testing.T, s *store.MemoryStore, id, proposition string) *model.Market {
	t.Helper()
	m := &model.Market{
		ID:          id,
		Proposition: proposition,
		Title:       "test market",
		City:        "CHENGDU",
		Province:    "SICHUAN",
		Condition:   "RAIN",
		YesPool:     decimal.Zero,
		NoPool:      decimal.Zero,
		DefaultOdds: decimal.NewFromInt(2),
		Deadline:    now.Add(24 * time.Hour),
		Status:      model.StatusOpen,
		CreatedAt:   now,
	}
	if err := s.CreateMarket(context.Background(), m); err != nil {
		t.Fatalf("failed to create market: %v", err)
	}
	return m
}

func TestCreateMarket_DuplicatePropositionRejected(t *testing.T) {
	s := store.NewMemoryStore()
	seedMarket(t, s, "m1", "HB-CHENGDU-RAIN-25MM-20260815")

	dup := &model.Market{ID: "m2", Proposition: "HB-CHENGDU-RAIN-25MM-20260815"}
	if err := s.CreateMarket(context.Background(), dup); err == nil {
		t.Error("expected error for duplicate proposition")
	}
}

func TestGetMarket_ReturnsCopy(t *testing.T) {
	s := store.NewMemoryStore()
	seedMarket(t, s, "m1", "HB-CHENGDU-RAIN-25MM-20260815")

	first, _ := s.GetMarket(context.Background(), "m1")
	first.YesPool = decimal.NewFromInt(999)

	second, _ := s.GetMarket(context.Background(), "m1")
	if !second.YesPool.IsZero() {
		t.Error("mutation of a returned market leaked into the store")
	}
}

func TestCommitStake_UpdatesPoolsAtomically(t *testing.T) {
	s := store.NewMemoryStore()
	seedMarket(t, s, "m1", "HB-CHENGDU-RAIN-25MM-20260815")

	stake := &model.Stake{
		ID:       "s1",
		MarketID: "m1",
		BettorID: "0xabc",
		Side:     model.SideYes,
		Amount:   decimal.NewFromInt(100),
		Status:   model.StakePending,
		PlacedAt: now,
	}
	err := s.CommitStake(context.Background(), stake, decimal.NewFromInt(100), decimal.Zero)
	if err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	m, _ := s.GetMarket(context.Background(), "m1")
	if !m.YesPool.Equal(decimal.NewFromInt(100)) {
		t.Errorf("expected yes pool 100, got %s", m.YesPool)
	}
	stakes, _ := s.GetStakesByMarket(context.Background(), "m1")
	if len(stakes) != 1 || stakes[0].ID != "s1" {
		t.Fatalf("expected 1 stake s1, got %v", stakes)
	}
}

func TestCommitStake_UnknownMarket(t *testing.T) {
	s := store.NewMemoryStore()
	stake := &model.Stake{ID: "s1", MarketID: "nope"}
	if err := s.CommitStake(context.Background(), stake, decimal.Zero, decimal.Zero); err == nil {
		t.Error("expected error for unknown market")
	}
}

func TestApplySettlement_UpdatesStakesMarketAndLedger(t *testing.T) {
	s := store.NewMemoryStore()
	seedMarket(t, s, "m1", "HB-CHENGDU-RAIN-25MM-20260815")

	win := &model.Stake{ID: "s1", MarketID: "m1", BettorID: "0xwin",
		Side: model.SideYes, Amount: decimal.NewFromInt(100), Status: model.StakePending}
	lose := &model.Stake{ID: "s2", MarketID: "m1", BettorID: "0xlose",
		Side: model.SideNo, Amount: decimal.NewFromInt(50), Status: model.StakePending}
	s.CommitStake(context.Background(), win, decimal.NewFromInt(100), decimal.Zero)
	s.CommitStake(context.Background(), lose, decimal.NewFromInt(100), decimal.NewFromInt(50))

	payouts := []parimutuel.StakePayout{
		{StakeID: "s1", Status: model.StakeWon, Payout: decimal.NewFromFloat(149.5)},
		{StakeID: "s2", Status: model.StakeLost, Payout: decimal.Zero},
	}
	entry := &model.CharityLedgerEntry{
		ID: "c1", SourceMarketID: "m1",
		Amount: decimal.NewFromFloat(0.5), Status: model.CharityPending, CreatedAt: now,
	}

	err := s.ApplySettlement(context.Background(), "m1", model.StatusSettled, model.SideYes, payouts, entry)
	if err != nil {
		t.Fatalf("settlement failed: %v", err)
	}

	m, _ := s.GetMarket(context.Background(), "m1")
	if m.Status != model.StatusSettled || m.Outcome != model.SideYes {
		t.Errorf("market not settled: %s %s", m.Status, m.Outcome)
	}

	stakes, _ := s.GetStakesByMarket(context.Background(), "m1")
	for _, st := range stakes {
		if st.Payout == nil {
			t.Fatalf("stake %s missing payout", st.ID)
		}
	}

	total, _ := s.CharityTotal(context.Background())
	if !total.Equal(decimal.NewFromFloat(0.5)) {
		t.Errorf("expected charity total 0.5, got %s", total)
	}
}

func TestGetBettorExposures_PendingOnly(t *testing.T) {
	s := store.NewMemoryStore()
	seedMarket(t, s, "m1", "HB-CHENGDU-RAIN-25MM-20260815")

	pending := &model.Stake{ID: "s1", MarketID: "m1", BettorID: "0xabc",
		Side: model.SideYes, Amount: decimal.NewFromInt(100), Status: model.StakePending}
	s.CommitStake(context.Background(), pending, decimal.NewFromInt(100), decimal.Zero)

	settled := &model.Stake{ID: "s2", MarketID: "m1", BettorID: "0xabc",
		Side: model.SideYes, Amount: decimal.NewFromInt(40), Status: model.StakePending}
	s.CommitStake(context.Background(), settled, decimal.NewFromInt(140), decimal.Zero)
	s.ApplySettlement(context.Background(), "m1", model.StatusSettled, model.SideYes,
		[]parimutuel.StakePayout{{StakeID: "s2", Status: model.StakeWon, Payout: decimal.NewFromInt(40)}}, nil)

	exposures, err := s.GetBettorExposures(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("exposures failed: %v", err)
	}
	if len(exposures) != 1 {
		t.Fatalf("expected 1 exposure, got %d", len(exposures))
	}
	if !exposures[0].Total.Equal(decimal.NewFromInt(100)) {
		t.Errorf("expected pending exposure 100, got %s", exposures[0].Total)
	}
	if exposures[0].Province != "SICHUAN" {
		t.Errorf("expected province SICHUAN, got %s", exposures[0].Province)
	}
}

func TestDistributeCharityEntry(t *testing.T) {
	s := store.NewMemoryStore()
	seedMarket(t, s, "m1", "HB-CHENGDU-RAIN-25MM-20260815")
	entry := &model.CharityLedgerEntry{
		ID: "c1", SourceMarketID: "m1",
		Amount: decimal.NewFromFloat(0.5), Status: model.CharityPending, CreatedAt: now,
	}
	s.ApplySettlement(context.Background(), "m1", model.StatusSettled, model.SideYes, nil, entry)

	err := s.DistributeCharityEntry(context.Background(), "c1", "Sichuan Farmers Fund", "0xfund", now)
	if err != nil {
		t.Fatalf("distribute failed: %v", err)
	}

	entries, _ := s.ListCharityEntries(context.Background())
	if entries[0].Status != model.CharityDistributed {
		t.Errorf("expected distributed, got %s", entries[0].Status)
	}
	if entries[0].DistributedAt == nil || !entries[0].DistributedAt.Equal(now) {
		t.Errorf("expected distributed_at %v, got %v", now, entries[0].DistributedAt)
	}

	if err := s.DistributeCharityEntry(context.Background(), "c1", "x", "", now); err == nil {
		t.Error("expected error for double distribution")
	}
	if err := s.DistributeCharityEntry(context.Background(), "missing", "x", "", now); err == nil {
		t.Error("expected error for unknown entry")
	}
}
