// Package parimutuel implements pari-mutuel pricing and settlement for
// binary weather betting markets.
//
// In the pari-mutuel model payouts are drawn from the pooled stakes of all
// participants: winners split the losing pool in proportion to their share
// of the winning pool, rather than trading against fixed bookmaker odds.
// A quote therefore depends only on the two pool totals and the size of the
// hypothetical stake.
//
// Odds are quoted post-stake inclusive: the hypothetical stake is added to
// its side before dividing, so the quoted odds are always achievable if the
// pools do not move before commit.
//
// All monetary values use shopspring/decimal — never float64 for money.
package parimutuel

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/harvestbet/pari-engine/internal/model"
)

var (
	// ErrMarketClosed is returned when a quote or stake targets a market
	// that is no longer open for betting.
	ErrMarketClosed = errors.New("parimutuel: market is not open")

	// ErrDeadlinePassed is returned when a stake arrives after the market
	// deadline, even if the status has not yet flipped to closed.
	ErrDeadlinePassed = errors.New("parimutuel: market deadline has passed")

	// ErrStakeNotPositive is returned when a stake amount is zero or negative.
	ErrStakeNotPositive = errors.New("parimutuel: stake amount must be positive")

	// ErrInvalidState is returned on an illegal market state transition.
	ErrInvalidState = errors.New("parimutuel: invalid market state for this operation")

	// ErrUnknownOutcome is returned when a settlement outcome is neither
	// YES nor NO.
	ErrUnknownOutcome = errors.New("parimutuel: unknown outcome")

	// ErrDuplicateSettlement is returned when settle is called on a market
	// that has already been settled.
	ErrDuplicateSettlement = errors.New("parimutuel: market already settled")

	// ErrInvalidFeeRate is returned when the charity fee rate is outside [0, 1).
	ErrInvalidFeeRate = errors.New("parimutuel: fee rate must be in [0, 1)")

	// ErrInvalidDefaultOdds is returned when the configured default odds
	// are below 1.
	ErrInvalidDefaultOdds = errors.New("parimutuel: default odds must be >= 1")
)

// MoneyScale is the number of decimal places for payout/fee rounding.
// Matches 6-decimal stablecoin minor units.
const MoneyScale int32 = 6

// PricingPolicy computes implied odds and potential payouts from pool state.
// It is stateless — pool quantities are passed as arguments, not stored.
type PricingPolicy struct {
	defaultOdds decimal.Decimal
}

// NewPricingPolicy creates a pricing policy with the given default odds,
// used when the opposing pool is empty and the proportional formula would
// degenerate to 1.0 (nothing to win).
func NewPricingPolicy(defaultOdds decimal.Decimal) (*PricingPolicy, error) {
	if defaultOdds.LessThan(decimal.NewFromInt(1)) {
		return nil, ErrInvalidDefaultOdds
	}
	return &PricingPolicy{defaultOdds: defaultOdds}, nil
}

// DefaultOdds returns the configured default odds.
func (p *PricingPolicy) DefaultOdds() decimal.Decimal {
	return p.defaultOdds
}

// Quote computes the implied odds and potential payout for staking amount on
// side of the given market. Pure function of the inputs: the market is never
// mutated and repeated calls with identical state yield identical output.
//
//	pool_same  = pool(side) + amount
//	pool_total = yes_pool + no_pool + amount
//	odds       = pool_total / pool_same
//
// When the opposing pool is empty the formula collapses to odds = 1.0, so
// the configured default odds are quoted instead.
func (p *PricingPolicy) Quote(market *model.Market, side model.Side, amount decimal.Decimal) (*model.Quote, error) {
	if market.Status != model.StatusOpen {
		return nil, ErrMarketClosed
	}
	if !side.Valid() {
		return nil, ErrUnknownOutcome
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrStakeNotPositive
	}

	totalBefore := market.TotalPool()

	// Share of the total pool currently on this side; 0.5 on an empty market.
	half := decimal.NewFromFloat(0.5)
	sidePct := half
	if totalBefore.IsPositive() {
		sidePct = market.Pool(side).Div(totalBefore).Round(MoneyScale)
	}

	var odds decimal.Decimal
	if market.Pool(side.Opposite()).IsZero() {
		// Empty opposing pool: the proportional formula collapses to 1.0.
		// Quote the market's seeded odds, or the policy default.
		odds = market.DefaultOdds
		if odds.LessThan(decimal.NewFromInt(1)) {
			odds = p.defaultOdds
		}
	} else {
		poolSame := market.Pool(side).Add(amount)
		poolTotal := totalBefore.Add(amount)
		odds = poolTotal.Div(poolSame).Round(MoneyScale)
	}

	return &model.Quote{
		Side:                 side,
		Amount:               amount,
		Odds:                 odds,
		PotentialPayout:      amount.Mul(odds).Round(MoneyScale),
		SidePercentageBefore: sidePct,
	}, nil
}
