// Package proposition handles weather proposition ticker parsing, validation,
// and derivation of market parameters from forecast data.
package proposition

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/shopspring/decimal"
)

// Supported weather conditions.
const (
	CondRain    = "RAIN"
	CondSnow    = "SNOW"
	CondTemp    = "TEMP"
	CondWind    = "WIND"
	CondDrought = "DROUGHT"
)

var validConditions = map[string]bool{
	CondRain:    true,
	CondSnow:    true,
	CondTemp:    true,
	CondWind:    true,
	CondDrought: true,
}

// tickerRegex matches: HB-{city}-{condition}-{threshold}-{YYYYMMDD}
// Example: HB-CHENGDU-RAIN-25MM-20260815
var tickerRegex = regexp.MustCompile(
	`^HB-([A-Z]+)-([A-Z]+)-([0-9]+[A-Z]*)-(\d{8})$`,
)

var (
	ErrInvalidTicker    = errors.New("proposition: invalid ticker format")
	ErrInvalidCondition = errors.New("proposition: unsupported weather condition")
	ErrInvalidForecast  = errors.New("proposition: forecast probability must be in (0, 1)")
)

// Proposition represents a parsed weather proposition.
type Proposition struct {
	Ticker     string    `json:"ticker"`
	City       string    `json:"city"`
	Condition  string    `json:"condition"`
	Threshold  string    `json:"threshold"`
	TargetDate time.Time `json:"target_date"`
}

// Parse parses and validates a proposition ticker string.
// Format: HB-{city}-{condition}-{threshold}-{YYYYMMDD}
func Parse(ticker string) (*Proposition, error) {
	matches := tickerRegex.FindStringSubmatch(ticker)
	if matches == nil {
		return nil, fmt.Errorf("%w: %s (expected HB-{city}-{condition}-{threshold}-{YYYYMMDD})",
			ErrInvalidTicker, ticker)
	}

	city := matches[1]
	condition := matches[2]
	threshold := matches[3]
	dateStr := matches[4]

	if !validConditions[condition] {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCondition, condition)
	}

	target, err := time.Parse("20060102", dateStr)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid date %s", ErrInvalidTicker, dateStr)
	}

	return &Proposition{
		Ticker:     ticker,
		City:       city,
		Condition:  condition,
		Threshold:  threshold,
		TargetDate: target,
	}, nil
}

// Deadline returns the betting deadline for the proposition: the start of
// the target date in UTC. Once the day the proposition is about has begun,
// the outcome is partially observable and betting must stop.
func (p *Proposition) Deadline() time.Time {
	return time.Date(
		p.TargetDate.Year(), p.TargetDate.Month(), p.TargetDate.Day(),
		0, 0, 0, 0, time.UTC,
	)
}

// DeriveDefaultOdds computes the default quoted odds for a market from the
// forecast exceedance probability of its proposition (e.g. the probability
// of >= 25mm precipitation from probabilistic QPF products).
//
// On an empty market the pools carry no information, so the quote falls back
// to the forecast: fair odds for an event with probability p are 1/p.
// The result is clamped to [1.01, 10] to prevent degenerate quotes on
// near-certain or near-impossible propositions.
func DeriveDefaultOdds(forecastProbability decimal.Decimal) (decimal.Decimal, error) {
	if forecastProbability.LessThanOrEqual(decimal.Zero) ||
		forecastProbability.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return decimal.Zero, ErrInvalidForecast
	}

	odds := decimal.NewFromInt(1).Div(forecastProbability).Round(2)

	minOdds := decimal.NewFromFloat(1.01)
	maxOdds := decimal.NewFromInt(10)
	if odds.LessThan(minOdds) {
		return minOdds, nil
	}
	if odds.GreaterThan(maxOdds) {
		return maxOdds, nil
	}
	return odds, nil
}
