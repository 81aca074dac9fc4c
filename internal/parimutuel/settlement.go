package parimutuel

import (
	"github.com/shopspring/decimal"

	"github.com/harvestbet/pari-engine/internal/model"
)

// StakePayout is the settlement result for one stake.
type StakePayout struct {
	StakeID string          `json:"stake_id"`
	Status  string          `json:"status"` // won, lost, refunded
	Payout  decimal.Decimal `json:"payout"`
}

// SettlementResult is the full accounting for one settled market.
//
// Conservation invariant, modulo rounding of one minor unit per stake:
//
//	Σ payouts + charity_fee == winning_pool + losing_pool
type SettlementResult struct {
	MarketID    string          `json:"market_id"`
	Outcome     model.Side      `json:"outcome"`
	WinningPool decimal.Decimal `json:"winning_pool"`
	LosingPool  decimal.Decimal `json:"losing_pool"`
	CharityFee  decimal.Decimal `json:"charity_fee"`
	Payouts     []StakePayout   `json:"payouts"`
}

// TotalPaid returns the sum of all payouts in the result.
func (r *SettlementResult) TotalPaid() decimal.Decimal {
	total := decimal.Zero
	for _, p := range r.Payouts {
		total = total.Add(p.Payout)
	}
	return total
}

// SettlementEngine computes payouts and the charity fee from a market's
// final pool split. It never moves funds itself — it only computes how much
// should move. Stateless, like PricingPolicy.
type SettlementEngine struct{}

// NewSettlementEngine creates a settlement engine.
func NewSettlementEngine() *SettlementEngine {
	return &SettlementEngine{}
}

// Settle computes the payout for every stake of a closed market given the
// final outcome.
//
// The charity fee is skimmed from the losing pool only, before
// redistribution:
//
//	fee             = losing_pool * feeRate
//	winner payout_i = amount_i + amount_i / winning_pool * losing_pool * (1 - feeRate)
//	loser payout_i  = 0
//
// Degenerate case: when nobody staked the winning side there are no winners
// to distribute to; every losing-side stake is refunded at face value and no
// fee is taken. (Symmetric with cancellation — nobody is punished for an
// outcome no one backed.)
//
// stakes must be the complete set of stake records for the market; the pools
// are recomputed from them rather than trusted from the market row.
func (e *SettlementEngine) Settle(market *model.Market, outcome model.Side, stakes []model.Stake, feeRate decimal.Decimal) (*SettlementResult, error) {
	if market.Status == model.StatusSettled {
		return nil, ErrDuplicateSettlement
	}
	if market.Status != model.StatusClosed {
		return nil, ErrInvalidState
	}
	if !outcome.Valid() {
		return nil, ErrUnknownOutcome
	}
	if feeRate.IsNegative() || feeRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, ErrInvalidFeeRate
	}

	winningPool := decimal.Zero
	losingPool := decimal.Zero
	for _, s := range stakes {
		if s.Side == outcome {
			winningPool = winningPool.Add(s.Amount)
		} else {
			losingPool = losingPool.Add(s.Amount)
		}
	}

	result := &SettlementResult{
		MarketID:    market.ID,
		Outcome:     outcome,
		WinningPool: winningPool,
		LosingPool:  losingPool,
		CharityFee:  decimal.Zero,
		Payouts:     make([]StakePayout, 0, len(stakes)),
	}

	if winningPool.IsZero() {
		for _, s := range stakes {
			result.Payouts = append(result.Payouts, StakePayout{
				StakeID: s.ID,
				Status:  model.StakeRefunded,
				Payout:  s.Amount,
			})
		}
		return result, nil
	}

	oneMinusFee := decimal.NewFromInt(1).Sub(feeRate)
	prize := losingPool.Mul(oneMinusFee)
	result.CharityFee = losingPool.Mul(feeRate).Round(MoneyScale)

	for _, s := range stakes {
		if s.Side != outcome {
			result.Payouts = append(result.Payouts, StakePayout{
				StakeID: s.ID,
				Status:  model.StakeLost,
				Payout:  decimal.Zero,
			})
			continue
		}
		share := s.Amount.Div(winningPool).Mul(prize)
		result.Payouts = append(result.Payouts, StakePayout{
			StakeID: s.ID,
			Status:  model.StakeWon,
			Payout:  s.Amount.Add(share).Round(MoneyScale),
		})
	}

	return result, nil
}

// Cancel computes the refund for every stake of a cancelled market: payout
// equals the stake's own amount, no fee is taken, no charity entry results.
// Only Open or Closed markets may be cancelled.
func (e *SettlementEngine) Cancel(market *model.Market, stakes []model.Stake) (*SettlementResult, error) {
	if market.Status != model.StatusOpen && market.Status != model.StatusClosed {
		return nil, ErrInvalidState
	}

	result := &SettlementResult{
		MarketID:   market.ID,
		CharityFee: decimal.Zero,
		Payouts:    make([]StakePayout, 0, len(stakes)),
	}
	for _, s := range stakes {
		result.Payouts = append(result.Payouts, StakePayout{
			StakeID: s.ID,
			Status:  model.StakeRefunded,
			Payout:  s.Amount,
		})
	}
	return result, nil
}
