package engine

import (
	"time"

	"SignalBacktest/internal/model"
)

// SkipReason explains why an actionable signal produced no trade.
type SkipReason string

const (
	SkipNoData          SkipReason = "no_price_data"
	SkipNoEntryDate     SkipReason = "no_entry_date"
	SkipNoExitDate      SkipReason = "no_exit_date"
	SkipOutsideHorizon  SkipReason = "outside_horizon"
	SkipNotAdmitted     SkipReason = "position_limit"
	SkipInvalidSizing   SkipReason = "invalid_sizing"
	SkipInsufficientCap SkipReason = "insufficient_capital"
)

// Skip records one actionable signal that did not open a position.
type Skip struct {
	Ticker     string
	SignalDate time.Time
	Reason     SkipReason
	Err        error
}

// Result is everything a run produced.
type Result struct {
	Trades  []model.Trade
	Equity  []model.EquitySample
	Skips   []Skip
	Ignored int // signals that were never actionable (HOLD, SELL, filtered)
	// Dropped counts positions discarded at the end of the horizon under HorizonDrop.
	Dropped int
}
