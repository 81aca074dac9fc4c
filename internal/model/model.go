// Package model defines the core domain types shared across the betting engine.
// All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side identifies one of the two mutually exclusive outcomes of a market.
type Side string

const (
	SideYes Side = "YES"
	SideNo  Side = "NO"
)

// Valid reports whether s is one of the two recognized sides.
func (s Side) Valid() bool {
	return s == SideYes || s == SideNo
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideYes {
		return SideNo
	}
	return SideYes
}

// Market lifecycle states. Transitions:
//
//	Open → Closed → Settled
//	Open|Closed → Cancelled
//
// Settled and Cancelled are terminal.
const (
	StatusOpen      = "open"
	StatusClosed    = "closed"
	StatusSettled   = "settled"
	StatusCancelled = "cancelled"
)

// Stake lifecycle states, assigned at settlement or cancellation.
const (
	StakePending  = "pending"
	StakeWon      = "won"
	StakeLost     = "lost"
	StakeRefunded = "refunded"
)

// Charity ledger entry states.
const (
	CharityPending     = "pending"
	CharityDistributed = "distributed"
)

// Market represents the pool state of a binary pari-mutuel market tied to
// one weather proposition in one city.
//
// Pools only increase while the market is Open; the single settlement (or
// cancellation) event is the only thing that finalizes them.
type Market struct {
	ID          string          `json:"id" db:"id"`
	Proposition string          `json:"proposition" db:"proposition"` // HB-{city}-{condition}-{threshold}-{YYYYMMDD}
	Title       string          `json:"title" db:"title"`
	Description string          `json:"description,omitempty" db:"description"`
	City        string          `json:"city" db:"city"`
	Province    string          `json:"province" db:"province"`
	Condition   string          `json:"condition" db:"condition"` // RAIN, SNOW, TEMP, WIND, DROUGHT
	Crop        string          `json:"crop,omitempty" db:"crop"`
	YesPool     decimal.Decimal `json:"yes_pool" db:"yes_pool"`
	NoPool      decimal.Decimal `json:"no_pool" db:"no_pool"`
	// DefaultOdds are quoted while the opposing pool is empty, seeded from
	// the forecast probability at creation time.
	DefaultOdds decimal.Decimal `json:"default_odds" db:"default_odds"`
	Deadline    time.Time       `json:"deadline" db:"deadline"`
	Status      string          `json:"status" db:"status"`
	Outcome     Side            `json:"outcome,omitempty" db:"outcome"` // empty until settled
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// TotalPool returns yes_pool + no_pool.
func (m *Market) TotalPool() decimal.Decimal {
	return m.YesPool.Add(m.NoPool)
}

// Pool returns the pool staked on the given side.
func (m *Market) Pool(side Side) decimal.Decimal {
	if side == SideYes {
		return m.YesPool
	}
	return m.NoPool
}

// Quote is the implied odds and potential payout for a hypothetical stake,
// computed against pool state that already includes the stake itself, so the
// quoted odds are always achievable at commit time.
type Quote struct {
	Side                 Side            `json:"side"`
	Amount               decimal.Decimal `json:"amount"`
	Odds                 decimal.Decimal `json:"odds"`
	PotentialPayout      decimal.Decimal `json:"potential_payout"`
	SidePercentageBefore decimal.Decimal `json:"side_percentage_before"`
}

// Stake is an immutable record of one accepted bet.
// Created once by PlaceStake; mutated exactly once (payout + status) by
// settlement or cancellation; never deleted (audit trail).
type Stake struct {
	ID       string          `json:"id" db:"id"`
	MarketID string          `json:"market_id" db:"market_id"`
	BettorID string          `json:"bettor_id" db:"bettor_id"` // opaque: wallet address or account id
	Side     Side            `json:"side" db:"side"`
	Amount   decimal.Decimal `json:"amount" db:"amount"`
	// Odds and PotentialPayout are captured at commit time so the bettor's
	// confirmation and the audit trail agree even after later stakes shift
	// the pool.
	Odds            decimal.Decimal  `json:"odds" db:"odds"`
	PotentialPayout decimal.Decimal  `json:"potential_payout" db:"potential_payout"`
	Status          string           `json:"status" db:"status"`
	Payout          *decimal.Decimal `json:"payout,omitempty" db:"payout"` // nil until settled
	PlacedAt        time.Time        `json:"placed_at" db:"placed_at"`
}

// CharityLedgerEntry records the fee skimmed from a market's losing pool at
// settlement, destined for the charity fund.
type CharityLedgerEntry struct {
	ID               string          `json:"id" db:"id"`
	SourceMarketID   string          `json:"source_market_id" db:"source_market_id"`
	Amount           decimal.Decimal `json:"amount" db:"amount"`
	Status           string          `json:"status" db:"status"`
	RecipientName    string          `json:"recipient_name,omitempty" db:"recipient_name"`
	RecipientAddress string          `json:"recipient_address,omitempty" db:"recipient_address"`
	DistributedAt    *time.Time      `json:"distributed_at,omitempty" db:"distributed_at"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
}
