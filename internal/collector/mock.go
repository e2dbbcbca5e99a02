package collector

import (
	"context"
	"fmt"
	"time"

	"SignalBacktest/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
// When Points is nil it generates Days weekday bars per ticker starting at Start.
type MockFetcher struct {
	Points  []model.PricePoint
	Signals map[string][]model.Signal

	Tickers []string
	Price   float64
	Days    int
	Start   time.Time
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchPrices(_ context.Context) ([]model.PricePoint, error) {
	if m.Points != nil {
		return m.Points, nil
	}
	var out []model.PricePoint
	for _, t := range m.Tickers {
		out = append(out, generateMockBars(t, m.Price, m.Days, m.Start)...)
	}
	return out, nil
}

func (m *MockFetcher) FetchSignals(_ context.Context, path string) ([]model.Signal, error) {
	sigs, ok := m.Signals[path]
	if !ok {
		return nil, fmt.Errorf("mock: no signals for %s", path)
	}
	return sigs, nil
}

func generateMockBars(ticker string, basePrice float64, count int, start time.Time) []model.PricePoint {
	bars := make([]model.PricePoint, 0, count)
	d := model.Day(start)
	for i := 0; len(bars) < count; d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		p := basePrice * (1 + float64(i-count/2)*0.001)
		bars = append(bars, model.PricePoint{
			Ticker:   ticker,
			Date:     d,
			Open:     p * 0.999,
			HasOpen:  true,
			High:     p * 1.005,
			Low:      p * 0.995,
			Close:    p,
			AdjClose: p,
			Volume:   1000000,
		})
		i++
	}
	return bars
}
