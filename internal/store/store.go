// Package store defines the persistence interface for the betting engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/harvestbet/pari-engine/internal/limits"
	"github.com/harvestbet/pari-engine/internal/model"
	"github.com/harvestbet/pari-engine/internal/parimutuel"
)

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer.
//
// CommitStake and ApplySettlement are the only multi-record writes and must
// be all-or-nothing: a failed call leaves no partial mutation behind.
type Store interface {
	// --- Market operations ---

	// CreateMarket persists a new market.
	CreateMarket(ctx context.Context, market *model.Market) error

	// GetMarket retrieves a market by its ID.
	GetMarket(ctx context.Context, id string) (*model.Market, error)

	// GetMarketByProposition retrieves a market by its proposition ticker.
	GetMarketByProposition(ctx context.Context, ticker string) (*model.Market, error)

	// ListMarkets returns all markets, newest first.
	ListMarkets(ctx context.Context) ([]model.Market, error)

	// UpdateMarketStatus records a lifecycle transition. outcome is empty
	// except for the Closed→Settled transition.
	UpdateMarketStatus(ctx context.Context, id, status string, outcome model.Side) error

	// --- Stakes (immutable audit trail) ---

	// CommitStake atomically appends a stake record and sets the market's
	// pool totals to the given values.
	CommitStake(ctx context.Context, stake *model.Stake, yesPool, noPool decimal.Decimal) error

	// GetStakesByMarket returns all stakes for a market, oldest first.
	GetStakesByMarket(ctx context.Context, marketID string) ([]model.Stake, error)

	// GetStakesByBettor returns all stakes for a bettor, oldest first.
	GetStakesByBettor(ctx context.Context, bettorID string) ([]model.Stake, error)

	// GetBettorExposures returns a bettor's pending stake totals per market.
	GetBettorExposures(ctx context.Context, bettorID string) ([]limits.Exposure, error)

	// --- Settlement ---

	// ApplySettlement atomically records a settlement (or cancellation):
	// the market transitions to status with the given outcome, every stake
	// in payouts receives its status and payout, and the charity entry is
	// appended when non-nil.
	ApplySettlement(ctx context.Context, marketID, status string, outcome model.Side,
		payouts []parimutuel.StakePayout, entry *model.CharityLedgerEntry) error

	// --- Charity ledger ---

	// ListCharityEntries returns all charity ledger entries, newest first.
	ListCharityEntries(ctx context.Context) ([]model.CharityLedgerEntry, error)

	// CharityTotal returns the sum of all charity ledger entry amounts.
	CharityTotal(ctx context.Context) (decimal.Decimal, error)

	// DistributeCharityEntry marks a pending entry as distributed to the
	// given recipient.
	DistributeCharityEntry(ctx context.Context, id, recipientName, recipientAddress string, at time.Time) error
}
