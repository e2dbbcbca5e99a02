package model

// Report summarizes a finished run.
type Report struct {
	NTrades        int                    `json:"n_trades"`
	TotalPnL       float64                `json:"total_pnl"`
	TotalReturn    float64                `json:"total_return"`
	WinRate        float64                `json:"win_rate"`
	MaxDrawdown    float64                `json:"max_drawdown"`
	MaxDrawdownPct float64                `json:"max_drawdown_pct"`
	InitialCapital float64                `json:"initial_capital"`
	FinalEquity    float64                `json:"final_equity"`
	AvgTrade       float64                `json:"avg_trade"`
	ProfitFactor   float64                `json:"profit_factor"`
	PerTicker      map[string]TickerStats `json:"per_ticker"`
}

// TickerStats is the per-ticker slice of a Report.
type TickerStats struct {
	Trades   int     `json:"n_trades"`
	Wins     int     `json:"wins"`
	TotalPnL float64 `json:"total_pnl"`
	WinRate  float64 `json:"win_rate"`
	Best     float64 `json:"best"`
	Worst    float64 `json:"worst"`
}
