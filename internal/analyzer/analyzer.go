// Package analyzer rolls a finished ledger and equity curve into a Report.
package analyzer

import (
	"SignalBacktest/internal/calculator"
	"SignalBacktest/internal/model"
)

const (
	// profitFactorCap stands in for an infinite profit factor when nothing lost.
	profitFactorCap = 999
	// ratioPlaces trims float noise from reported ratios.
	ratioPlaces = 10
)

// Analyze computes the summary metrics of a run. An empty ledger yields a
// Report whose numeric fields are all zero.
func Analyze(trades []model.Trade, curve []model.EquitySample, initialCapital float64) model.Report {
	rep := model.Report{
		InitialCapital: initialCapital,
		PerTicker:      map[string]model.TickerStats{},
	}
	if len(trades) == 0 {
		return rep
	}

	var wins int
	var gain, loss float64
	pnls := make([]float64, len(trades))
	for i, t := range trades {
		pnls[i] = t.NetPnL
		rep.TotalPnL += t.NetPnL
		if t.NetPnL > 0 {
			wins++
			gain += t.NetPnL
		} else {
			loss -= t.NetPnL
		}

		st, seen := rep.PerTicker[t.Ticker]
		st.Trades++
		st.TotalPnL += t.NetPnL
		if t.NetPnL > 0 {
			st.Wins++
		}
		if !seen || t.NetPnL > st.Best {
			st.Best = t.NetPnL
		}
		if !seen || t.NetPnL < st.Worst {
			st.Worst = t.NetPnL
		}
		st.WinRate = calculator.Round(float64(st.Wins)/float64(st.Trades), ratioPlaces)
		rep.PerTicker[t.Ticker] = st
	}

	rep.NTrades = len(trades)
	rep.WinRate = calculator.Round(float64(wins)/float64(len(trades)), ratioPlaces)
	rep.AvgTrade, _ = calculator.CalculateSMA(pnls, len(pnls))
	switch {
	case loss > 0:
		rep.ProfitFactor = calculator.Round(gain/loss, ratioPlaces)
	case gain > 0:
		rep.ProfitFactor = profitFactorCap
	}

	rep.FinalEquity = initialCapital + rep.TotalPnL
	if n := len(curve); n > 0 {
		rep.FinalEquity = curve[n-1].Equity
	}
	rep.TotalReturn = calculator.Round(calculator.SafeDiv(rep.FinalEquity-initialCapital, initialCapital), ratioPlaces)
	rep.MaxDrawdown, rep.MaxDrawdownPct = MaxDrawdown(curve)
	rep.MaxDrawdownPct = calculator.Round(rep.MaxDrawdownPct, ratioPlaces)
	return rep
}

// MaxDrawdown scans the curve once, tracking the running peak, and returns the
// largest peak-to-trough decline in money and as a fraction of that peak.
func MaxDrawdown(curve []model.EquitySample) (abs, pct float64) {
	if len(curve) == 0 {
		return 0, 0
	}
	peak := curve[0].Equity
	for _, s := range curve {
		if s.Equity > peak {
			peak = s.Equity
		}
		dd := peak - s.Equity
		if dd > abs {
			abs = dd
			pct = calculator.SafeDiv(dd, peak)
		}
	}
	return abs, pct
}
