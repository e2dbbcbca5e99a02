// Package engine replays a signal feed against price history one calendar
// day at a time.
package engine

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"SignalBacktest/internal/fund"
	"SignalBacktest/internal/market"
	"SignalBacktest/internal/model"
	"SignalBacktest/internal/sizing"
)

// Simulator runs backtests for one configuration over a shared Store.
// It keeps no state between runs, so Run may be called concurrently.
type Simulator struct {
	cfg    Config
	store  *market.Store
	sizer  sizing.Sizer
	logger *zap.Logger
}

// New validates cfg and builds a Simulator.
func New(cfg Config, store *market.Store, logger *zap.Logger) (*Simulator, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	if store == nil {
		return nil, errors.New("engine: nil price store")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Simulator{cfg: cfg, store: store, sizer: sizing.New(cfg.Mode), logger: logger}, nil
}

// Config returns the effective configuration.
func (s *Simulator) Config() Config { return s.cfg }

// run is the mutable state of a single Run call.
type run struct {
	book       *fund.Book
	open       map[*model.Position]*market.Series
	allocation float64
}

// Run simulates feed and returns the ledger and daily equity curve.
func (s *Simulator) Run(feed *market.Feed) (*Result, error) {
	if feed == nil {
		return nil, errors.New("engine: nil signal feed")
	}
	res := &Result{Trades: []model.Trade{}, Equity: []model.EquitySample{}}
	plans := s.plan(feed, res)

	r := &run{
		book: fund.NewBook(s.cfg.InitialCapital),
		open: make(map[*model.Position]*market.Series),
	}
	if n := len(feed.Tickers()); n > 0 {
		r.allocation = s.cfg.InitialCapital / float64(n)
	}

	if len(plans) == 0 {
		s.flatCurve(feed, res)
		s.logRun(feed, res)
		return res, nil
	}

	byEntry := make(map[time.Time][]*planned)
	start := plans[0].entryDate
	for _, p := range plans {
		byEntry[p.entryDate] = append(byEntry[p.entryDate], p)
		if p.entryDate.Before(start) {
			start = p.entryDate
		}
	}

	stop := s.store.LastDate()
	if !s.cfg.EndDate.IsZero() && s.cfg.EndDate.Before(stop) {
		stop = s.cfg.EndDate
	}
	remaining := len(plans)
	var last time.Time
	for day := start; !day.After(stop); day = day.AddDate(0, 0, 1) {
		s.closeDue(r, day, res)
		todays := byEntry[day]
		for _, p := range todays {
			s.enter(r, p, res)
		}
		remaining -= len(todays)
		res.Equity = append(res.Equity, r.book.Mark(day, s.marker(r, day)))
		last = day
		if remaining == 0 && r.book.OpenCount() == 0 {
			break
		}
	}

	if r.book.OpenCount() > 0 {
		s.endHorizon(r, last, res)
	}
	s.logRun(feed, res)
	return res, nil
}

// closeDue sells every position scheduled to exit on day.
func (s *Simulator) closeDue(r *run, day time.Time, res *Result) {
	for _, pos := range r.book.Positions() {
		if !pos.ExitDate.Equal(day) {
			continue
		}
		series := r.open[pos]
		bar, ok := series.Bar(day)
		if !ok {
			// ExitDate always comes from the series index.
			s.logger.Error("scheduled exit without bar", zap.String("ticker", pos.Ticker), zap.String("date", model.FormatDay(day)))
			continue
		}
		s.closePosition(r, pos, bar.Close*(1-s.cfg.Slippage), day, model.ExitScheduled, res)
	}
}

func (s *Simulator) closePosition(r *run, pos *model.Position, price float64, day time.Time, reason model.ExitReason, res *Result) {
	tr, err := r.book.Close(pos, price, day, reason)
	if err != nil {
		s.logger.Error("close position", zap.String("ticker", pos.Ticker), zap.Error(err))
		return
	}
	delete(r.open, pos)
	res.Trades = append(res.Trades, tr)
	s.logger.Debug("position closed",
		zap.String("ticker", tr.Ticker),
		zap.String("exit_date", model.FormatDay(day)),
		zap.Float64("exit_price", tr.ExitPrice),
		zap.Float64("net_pnl", tr.NetPnL),
		zap.String("reason", string(reason)),
	)
}

// enter sizes and funds a planned entry.
func (s *Simulator) enter(r *run, p *planned, res *Result) {
	if !s.cfg.Mode.Admits(r.book.OpenCount(), r.book.OpenIn(p.series.Ticker())) {
		s.skip(res, p.sig, SkipNotAdmitted, fmt.Errorf("mode %s position limit", s.cfg.Mode))
		return
	}
	bar, ok := p.series.Bar(p.entryDate)
	if !ok {
		s.skip(res, p.sig, SkipNoData, model.ErrDataUnavailable)
		return
	}
	price := bar.EntryReference() * (1 + s.cfg.Slippage)
	available := r.book.Free() - s.cfg.Commission
	if available < 0 {
		available = 0
	}
	qty := s.sizer.Size(sizing.Request{
		Available:        available,
		EntryPrice:       price,
		RiskFraction:     s.cfg.RiskFraction,
		FallbackStopPct:  s.cfg.FallbackStopPct,
		ATR:              bar.ATR,
		HasATR:           bar.HasATR,
		TickerAllocation: r.allocation,
	})
	if qty <= 0 {
		s.skip(res, p.sig, SkipInvalidSizing, model.ErrInvalidSizing)
		return
	}
	pos := &model.Position{
		Ticker:     p.series.Ticker(),
		SignalDate: p.sig.Date,
		EntryDate:  p.entryDate,
		ExitDate:   p.exitDate,
		EntryPrice: price,
		Quantity:   qty,
	}
	if err := r.book.Open(pos, s.cfg.Commission); err != nil {
		reason := SkipInvalidSizing
		if errors.Is(err, model.ErrInsufficientCapital) {
			reason = SkipInsufficientCap
		}
		s.skip(res, p.sig, reason, err)
		return
	}
	r.open[pos] = p.series
	s.logger.Debug("position opened",
		zap.String("ticker", pos.Ticker),
		zap.String("entry_date", model.FormatDay(pos.EntryDate)),
		zap.String("exit_date", model.FormatDay(pos.ExitDate)),
		zap.Float64("entry_price", pos.EntryPrice),
		zap.Int64("quantity", pos.Quantity),
	)
}

// marker values a position at the day's close, the last known close, or its entry price.
func (s *Simulator) marker(r *run, day time.Time) func(*model.Position) float64 {
	return func(pos *model.Position) float64 {
		series := r.open[pos]
		if bar, ok := series.Bar(day); ok {
			return bar.Close
		}
		if c, ok := series.LastCloseOnOrBefore(day); ok {
			return c
		}
		return pos.EntryPrice
	}
}

// endHorizon settles positions still open after the last simulated day and
// re-marks that day so the curve ends on the settled book.
func (s *Simulator) endHorizon(r *run, last time.Time, res *Result) {
	for _, pos := range r.book.Positions() {
		if s.cfg.EndOfHorizon == HorizonDrop {
			r.book.Drop(pos)
			delete(r.open, pos)
			res.Dropped++
			s.logger.Debug("position dropped at horizon", zap.String("ticker", pos.Ticker))
			continue
		}
		price := pos.EntryPrice
		if c, ok := r.open[pos].LastCloseOnOrBefore(last); ok {
			price = c * (1 - s.cfg.Slippage)
		}
		s.closePosition(r, pos, price, last, model.ExitHorizon, res)
	}
	if n := len(res.Equity); n > 0 {
		res.Equity[n-1] = r.book.Mark(last, s.marker(r, last))
	}
}

// flatCurve emits initial capital for every day the feed spans when nothing traded.
func (s *Simulator) flatCurve(feed *market.Feed, res *Result) {
	first, last, ok := feed.Span()
	if !ok {
		return
	}
	if !s.cfg.EndDate.IsZero() && last.After(s.cfg.EndDate) {
		last = s.cfg.EndDate
	}
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		res.Equity = append(res.Equity, model.EquitySample{Date: day, Cash: s.cfg.InitialCapital, Equity: s.cfg.InitialCapital})
	}
}

func (s *Simulator) skip(res *Result, sig model.Signal, reason SkipReason, err error) {
	res.Skips = append(res.Skips, Skip{Ticker: sig.Ticker, SignalDate: sig.Date, Reason: reason, Err: err})
	s.logger.Debug("signal skipped",
		zap.String("ticker", sig.Ticker),
		zap.String("signal_date", model.FormatDay(sig.Date)),
		zap.String("reason", string(reason)),
		zap.Error(err),
	)
}

func (s *Simulator) logRun(feed *market.Feed, res *Result) {
	s.logger.Info("simulation finished",
		zap.String("mode", s.cfg.Mode.String()),
		zap.Int("signals", feed.Len()),
		zap.Int("trades", len(res.Trades)),
		zap.Int("skipped", len(res.Skips)),
		zap.Int("days", len(res.Equity)),
	)
}
