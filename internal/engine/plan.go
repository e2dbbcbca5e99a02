package engine

import (
	"errors"
	"time"

	"SignalBacktest/internal/market"
	"SignalBacktest/internal/model"
)

// planned is an accepted signal waiting for its entry day. Its exit date is
// resolved here, once, so the daily loop only compares dates.
type planned struct {
	sig       model.Signal
	series    *market.Series
	entryDate time.Time
	exitDate  time.Time
}

// plan resolves entry and exit dates for every actionable signal.
func (s *Simulator) plan(feed *market.Feed, res *Result) []*planned {
	var out []*planned
	for _, sig := range feed.Signals() {
		if !s.cfg.Filter.Actionable(sig) {
			res.Ignored++
			continue
		}
		series, err := s.store.Series(sig.Ticker)
		if err != nil {
			s.skip(res, sig, SkipNoData, err)
			continue
		}
		entry, err := series.NextTradingDate(sig.Date)
		if err != nil {
			s.skip(res, sig, SkipNoEntryDate, err)
			continue
		}
		if !s.cfg.EndDate.IsZero() && entry.After(s.cfg.EndDate) {
			s.skip(res, sig, SkipOutsideHorizon, errors.New("entry after end date"))
			continue
		}
		exit, err := series.SessionsAfter(entry, s.cfg.HoldPeriod)
		if err != nil {
			s.skip(res, sig, SkipNoExitDate, err)
			continue
		}
		out = append(out, &planned{sig: sig, series: series, entryDate: entry, exitDate: exit})
	}
	return out
}
