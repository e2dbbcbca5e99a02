// Package recorder archives finished backtest runs.
package recorder

import (
	"time"

	"SignalBacktest/internal/model"
)

// RunRecord holds everything persisted for one run.
type RunRecord struct {
	RunID      string
	SignalFile string
	StartedAt  time.Time
	Mode       string
	HoldPeriod int
	Params     string // JSON of the effective config
	Report     model.Report
	Trades     []model.Trade
	Equity     []model.EquitySample
}

// RunSummary is the archived headline of a run.
type RunSummary struct {
	RunID       string
	SignalFile  string
	StartedAt   time.Time
	Mode        string
	NTrades     int
	TotalPnL    float64
	TotalReturn float64
	WinRate     float64
	MaxDrawdown float64
}

// Recorder persists run history for later analysis.
type Recorder interface {
	RecordRun(rec *RunRecord) error
	LastRuns(limit int) ([]RunSummary, error)
	Close() error
}
