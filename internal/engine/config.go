package engine

import (
	"errors"
	"fmt"
	"time"

	"SignalBacktest/internal/model"
	"SignalBacktest/internal/sizing"
	"SignalBacktest/internal/strategy"
)

// EndOfHorizon decides what happens to positions still open when the
// simulation stops before their scheduled exit.
type EndOfHorizon string

const (
	HorizonClose EndOfHorizon = "close" // sell at the last available close and record the trade
	HorizonDrop  EndOfHorizon = "drop"  // discard without a trade
)

// Config holds the parameters of one simulation.
type Config struct {
	Mode            sizing.Mode
	HoldPeriod      int     // trading sessions between entry and scheduled exit
	InitialCapital  float64
	Commission      float64 // fixed cost per round trip, charged at exit
	Slippage        float64 // fractional penalty on both fills
	RiskFraction    float64
	FallbackStopPct float64
	EndOfHorizon    EndOfHorizon
	EndDate         time.Time // optional; zero runs until every position has closed
	Filter          strategy.Filter
}

// DefaultConfig returns the stock parameters.
func DefaultConfig() Config {
	return Config{
		Mode:            sizing.ModeRisk,
		HoldPeriod:      5,
		InitialCapital:  10000,
		RiskFraction:    sizing.DefaultRiskFraction,
		FallbackStopPct: sizing.DefaultFallbackStopPct,
		EndOfHorizon:    HorizonClose,
	}
}

func (c *Config) applyDefaults() {
	if c.RiskFraction == 0 {
		c.RiskFraction = sizing.DefaultRiskFraction
	}
	if c.FallbackStopPct == 0 {
		c.FallbackStopPct = sizing.DefaultFallbackStopPct
	}
	if c.EndOfHorizon == "" {
		c.EndOfHorizon = HorizonClose
	}
	if !c.EndDate.IsZero() {
		c.EndDate = model.Day(c.EndDate)
	}
}

// Validate checks the parameters are usable.
func (c Config) Validate() error {
	if c.HoldPeriod < 1 {
		return errors.New("hold_period must be at least 1")
	}
	if c.InitialCapital <= 0 {
		return errors.New("initial_capital must be positive")
	}
	if c.Commission < 0 {
		return errors.New("commission must not be negative")
	}
	if c.Slippage < 0 || c.Slippage >= 1 {
		return errors.New("slippage must be in [0, 1)")
	}
	if c.RiskFraction < 0 || c.RiskFraction > 1 {
		return errors.New("risk_fraction must be in [0, 1]")
	}
	if c.FallbackStopPct < 0 {
		return errors.New("fallback_stop_pct must not be negative")
	}
	switch c.EndOfHorizon {
	case "", HorizonClose, HorizonDrop:
	default:
		return fmt.Errorf("unknown end_of_horizon %q", c.EndOfHorizon)
	}
	return nil
}
