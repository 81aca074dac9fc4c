// Package limits enforces per-bettor stake limits that account for weather
// correlation between cities in the same province.
//
// A drought that hits one city in Sichuan tends to hit its neighbors too, so
// a bettor staking the same side across a whole province carries correlated
// risk against the platform's payout capacity. This package caps both the
// stake in any single market and the aggregate staked across markets sharing
// a province.
package limits

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrMarketLimitExceeded is returned when a stake would push a bettor's
	// total in a single market beyond the per-market maximum.
	ErrMarketLimitExceeded = errors.New("limits: per-market stake limit exceeded")

	// ErrProvinceLimitExceeded is returned when a stake would push a
	// bettor's aggregate across one province beyond the province maximum.
	ErrProvinceLimitExceeded = errors.New("limits: province stake limit exceeded")
)

// StakeLimiter enforces stake limits with province-level correlation
// awareness.
type StakeLimiter struct {
	// MaxPerMarket is the maximum total a bettor may stake in one market.
	MaxPerMarket decimal.Decimal

	// MaxPerProvince is the maximum aggregate a bettor may stake across
	// all markets in one province.
	MaxPerProvince decimal.Decimal
}

// NewStakeLimiter creates a limiter with the given per-market and
// per-province maximums.
func NewStakeLimiter(maxPerMarket, maxPerProvince decimal.Decimal) *StakeLimiter {
	return &StakeLimiter{
		MaxPerMarket:   maxPerMarket,
		MaxPerProvince: maxPerProvince,
	}
}

// Exposure summarizes a bettor's existing stakes per market.
type Exposure struct {
	MarketID string
	Province string
	Total    decimal.Decimal
}

// CheckLimit validates whether a new stake respects the limits.
//
// Parameters:
//   - marketID, province: the market being staked and its province
//   - amount: the new stake amount
//   - existing: the bettor's current per-market exposure
//
// Returns nil if the stake is within limits, or an error describing the
// violation.
func (l *StakeLimiter) CheckLimit(
	marketID, province string,
	amount decimal.Decimal,
	existing []Exposure,
) error {
	inMarket := amount
	inProvince := amount

	for _, e := range existing {
		if e.MarketID == marketID {
			inMarket = inMarket.Add(e.Total)
		}
		if e.Province == province {
			inProvince = inProvince.Add(e.Total)
		}
	}

	if inMarket.GreaterThan(l.MaxPerMarket) {
		return ErrMarketLimitExceeded
	}
	if inProvince.GreaterThan(l.MaxPerProvince) {
		return ErrProvinceLimitExceeded
	}
	return nil
}
