// Package collector loads price tables and signal files into the in-memory
// structures the engine replays.
package collector

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"SignalBacktest/internal/calculator"
	"SignalBacktest/internal/market"
	"SignalBacktest/internal/model"
)

// Collector orchestrates loading and validation of run inputs.
type Collector struct {
	Prices    PriceFetcher
	Signals   SignalFetcher
	DeriveATR bool
	logger    *zap.Logger
}

// NewCollector creates a new Collector.
func NewCollector(prices PriceFetcher, signals SignalFetcher, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{Prices: prices, Signals: signals, logger: logger}
}

// LoadStore fetches the price table and indexes it per ticker.
func (c *Collector) LoadStore(ctx context.Context) (*market.Store, error) {
	points, err := c.Prices.FetchPrices(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch prices from %s: %w", c.Prices.Name(), err)
	}
	if c.DeriveATR {
		points = append([]model.PricePoint(nil), points...)
		if err := deriveATR(points); err != nil {
			return nil, fmt.Errorf("derive atr: %w", err)
		}
	}
	store, err := market.NewStore(points)
	if err != nil {
		return nil, err
	}
	c.logger.Info("price table loaded",
		zap.String("source", c.Prices.Name()),
		zap.Int("rows", len(points)),
		zap.Int("tickers", len(store.Tickers())),
		zap.Bool("derive_atr", c.DeriveATR),
	)
	return store, nil
}

// LoadFeed fetches and validates one signal file.
func (c *Collector) LoadFeed(ctx context.Context, path string) (*market.Feed, error) {
	if c.Signals == nil {
		return nil, fmt.Errorf("no signal source configured")
	}
	signals, err := c.Signals.FetchSignals(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("fetch signals %s: %w", path, err)
	}
	feed, err := market.NewFeed(signals)
	if err != nil {
		return nil, fmt.Errorf("signals %s: %w", path, err)
	}
	c.logger.Info("signal file loaded", zap.String("path", path), zap.Int("signals", feed.Len()))
	return feed, nil
}

// deriveATR fills missing ATR per ticker in date order. points is reordered.
func deriveATR(points []model.PricePoint) error {
	sort.SliceStable(points, func(i, j int) bool {
		ti, tj := strings.ToUpper(points[i].Ticker), strings.ToUpper(points[j].Ticker)
		if ti != tj {
			return ti < tj
		}
		return points[i].Date.Before(points[j].Date)
	})
	for start := 0; start < len(points); {
		end := start + 1
		for end < len(points) && strings.EqualFold(points[end].Ticker, points[start].Ticker) {
			end++
		}
		if err := calculator.DeriveATR(points[start:end], calculator.DefaultATRPeriod); err != nil {
			return err
		}
		start = end
	}
	return nil
}

// Sources names where a Collector reads its inputs.
type Sources struct {
	PricesCSV    string
	PricesSQLite string // takes precedence over PricesCSV when set
	PriceTable   string
	DeriveATR    bool
}

// FromSources builds a Collector that reads signal files from disk and prices
// from the configured table.
func FromSources(src Sources, logger *zap.Logger) *Collector {
	files := NewCSVFetcher(src.PricesCSV)
	var prices PriceFetcher = files
	if src.PricesSQLite != "" {
		sf := NewSQLiteFetcher(src.PricesSQLite)
		if src.PriceTable != "" {
			sf.Table = src.PriceTable
		}
		prices = sf
	}
	c := NewCollector(prices, files, logger)
	c.DeriveATR = src.DeriveATR
	return c
}
