package proposition

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParse_Valid(t *testing.T) {
	p, err := Parse("HB-CHENGDU-RAIN-25MM-20260815")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if p.City != "CHENGDU" {
		t.Errorf("expected city CHENGDU, got %s", p.City)
	}
	if p.Condition != CondRain {
		t.Errorf("expected condition RAIN, got %s", p.Condition)
	}
	if p.Threshold != "25MM" {
		t.Errorf("expected threshold 25MM, got %s", p.Threshold)
	}
	want := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)
	if !p.TargetDate.Equal(want) {
		t.Errorf("expected target date %v, got %v", want, p.TargetDate)
	}
}

func TestParse_AllConditions(t *testing.T) {
	for _, cond := range []string{CondRain, CondSnow, CondTemp, CondWind, CondDrought} {
		if _, err := Parse("HB-HARBIN-" + cond + "-10-20261201"); err != nil {
			t.Errorf("condition %s should parse, got %v", cond, err)
		}
	}
}

func TestParse_InvalidFormat(t *testing.T) {
	tests := []string{
		"",
		"CHENGDU-RAIN-25MM-20260815",       // missing prefix
		"HB-chengdu-RAIN-25MM-20260815",    // lowercase city
		"HB-CHENGDU-RAIN-25MM",             // missing date
		"HB-CHENGDU-RAIN-25MM-2026-08-15",  // wrong date format
		"ATMX-872a1070b-PRECIP-25MM-20250815",
	}
	for _, ticker := range tests {
		if _, err := Parse(ticker); !errors.Is(err, ErrInvalidTicker) {
			t.Errorf("expected ErrInvalidTicker for %q, got %v", ticker, err)
		}
	}
}

func TestParse_UnsupportedCondition(t *testing.T) {
	_, err := Parse("HB-CHENGDU-FOG-25MM-20260815")
	if !errors.Is(err, ErrInvalidCondition) {
		t.Errorf("expected ErrInvalidCondition, got %v", err)
	}
}

func TestDeadline_StartOfTargetDay(t *testing.T) {
	p, err := Parse("HB-CHENGDU-RAIN-25MM-20260815")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)
	if !p.Deadline().Equal(want) {
		t.Errorf("expected deadline %v, got %v", want, p.Deadline())
	}
}

func TestDeriveDefaultOdds_FairInverse(t *testing.T) {
	// p = 0.4 → odds = 2.5
	odds, err := DeriveDefaultOdds(decimal.NewFromFloat(0.4))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !odds.Equal(decimal.NewFromFloat(2.5)) {
		t.Errorf("expected odds 2.5, got %s", odds)
	}
}

func TestDeriveDefaultOdds_Clamped(t *testing.T) {
	// Near-certain proposition clamps to the floor.
	odds, err := DeriveDefaultOdds(decimal.NewFromFloat(0.999))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !odds.Equal(decimal.NewFromFloat(1.01)) {
		t.Errorf("expected floor 1.01, got %s", odds)
	}

	// Near-impossible proposition clamps to the ceiling.
	odds, err = DeriveDefaultOdds(decimal.NewFromFloat(0.001))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !odds.Equal(decimal.NewFromInt(10)) {
		t.Errorf("expected ceiling 10, got %s", odds)
	}
}

func TestDeriveDefaultOdds_InvalidProbability(t *testing.T) {
	for _, p := range []float64{0, -0.5, 1, 1.5} {
		if _, err := DeriveDefaultOdds(decimal.NewFromFloat(p)); !errors.Is(err, ErrInvalidForecast) {
			t.Errorf("expected ErrInvalidForecast for p=%.2f, got %v", p, err)
		}
	}
}
