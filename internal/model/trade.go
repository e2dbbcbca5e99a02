package model

import "time"

// ExitReason tells how a position was closed.
type ExitReason string

const (
	ExitScheduled ExitReason = "scheduled"
	ExitHorizon   ExitReason = "horizon"
)

// Position is an open long position.
type Position struct {
	Ticker     string
	SignalDate time.Time
	EntryDate  time.Time
	ExitDate   time.Time // planned, resolved once at entry
	EntryPrice float64   // slippage-adjusted
	Quantity   int64
	Reserved   float64 // Quantity * EntryPrice
}

// Trade is a closed position.
type Trade struct {
	Ticker     string     `json:"ticker"`
	SignalDate time.Time  `json:"signal_date"`
	EntryDate  time.Time  `json:"entry_date"`
	ExitDate   time.Time  `json:"exit_date"`
	EntryPrice float64    `json:"entry_price"`
	ExitPrice  float64    `json:"exit_price"`
	Quantity   int64      `json:"quantity"`
	GrossPnL   float64    `json:"gross_pnl"`
	Commission float64    `json:"commission"`
	NetPnL     float64    `json:"net_pnl"`
	ExitReason ExitReason `json:"exit_reason"`
}

// EquitySample is the end-of-day portfolio valuation.
type EquitySample struct {
	Date       time.Time `json:"date"`
	Cash       float64   `json:"cash"`
	Reserved   float64   `json:"reserved"`
	Unrealized float64   `json:"unrealized"`
	Equity     float64   `json:"equity"`
	Open       int       `json:"open_positions"`
}
