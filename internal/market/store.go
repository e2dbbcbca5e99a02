package market

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"SignalBacktest/internal/model"
)

// Store holds every ticker's Series.
type Store struct {
	series map[string]*Series
}

// NewStore groups points by ticker and builds one Series each.
func NewStore(points []model.PricePoint) (*Store, error) {
	grouped := make(map[string][]model.PricePoint)
	for _, p := range points {
		key := strings.ToUpper(strings.TrimSpace(p.Ticker))
		grouped[key] = append(grouped[key], p)
	}
	st := &Store{series: make(map[string]*Series, len(grouped))}
	for ticker, pts := range grouped {
		s, err := NewSeries(ticker, pts)
		if err != nil {
			return nil, err
		}
		st.series[ticker] = s
	}
	return st, nil
}

// Series returns the price history for ticker, case-insensitively.
func (st *Store) Series(ticker string) (*Series, error) {
	s, ok := st.series[strings.ToUpper(strings.TrimSpace(ticker))]
	if !ok || s.Len() == 0 {
		return nil, fmt.Errorf("ticker %q: %w", ticker, model.ErrDataUnavailable)
	}
	return s, nil
}

// Tickers lists the tickers in the store, sorted.
func (st *Store) Tickers() []string {
	out := make([]string, 0, len(st.series))
	for t := range st.series {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// LastDate is the latest trading date across all tickers.
func (st *Store) LastDate() time.Time {
	var last time.Time
	for _, s := range st.series {
		if s.Last().After(last) {
			last = s.Last()
		}
	}
	return last
}
