// Package market is the read-only view of the price table and signal feed a
// simulation runs against. Nothing here is mutated after construction, so a
// Store can be shared by concurrent runs.
package market

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"SignalBacktest/internal/model"
)

// Series is the date-sorted price history of one ticker.
type Series struct {
	ticker string
	points []model.PricePoint
	index  map[time.Time]int
}

// NewSeries sorts points by date and indexes them. Duplicate dates are rejected.
func NewSeries(ticker string, points []model.PricePoint) (*Series, error) {
	sorted := make([]model.PricePoint, len(points))
	copy(sorted, points)
	for i := range sorted {
		sorted[i].Date = model.Day(sorted[i].Date)
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	idx := make(map[time.Time]int, len(sorted))
	for i, p := range sorted {
		if _, dup := idx[p.Date]; dup {
			return nil, &model.MalformedInputError{
				Field:  "Date",
				Reason: fmt.Sprintf("duplicate date %s for ticker %s", model.FormatDay(p.Date), ticker),
			}
		}
		idx[p.Date] = i
	}
	return &Series{ticker: strings.ToUpper(ticker), points: sorted, index: idx}, nil
}

func (s *Series) Ticker() string { return s.ticker }
func (s *Series) Len() int       { return len(s.points) }

// Points returns a copy of the rows in ascending date order.
func (s *Series) Points() []model.PricePoint {
	out := make([]model.PricePoint, len(s.points))
	copy(out, s.points)
	return out
}

// First and Last return the boundary trading dates. Zero time when empty.
func (s *Series) First() time.Time {
	if len(s.points) == 0 {
		return time.Time{}
	}
	return s.points[0].Date
}

func (s *Series) Last() time.Time {
	if len(s.points) == 0 {
		return time.Time{}
	}
	return s.points[len(s.points)-1].Date
}

// Bar returns the row traded on date.
func (s *Series) Bar(date time.Time) (model.PricePoint, bool) {
	i, ok := s.index[model.Day(date)]
	if !ok {
		return model.PricePoint{}, false
	}
	return s.points[i], true
}

// NextTradingDate returns the first trading date strictly after date.
func (s *Series) NextTradingDate(date time.Time) (time.Time, error) {
	d := model.Day(date)
	i := sort.Search(len(s.points), func(i int) bool { return s.points[i].Date.After(d) })
	if i == len(s.points) {
		return time.Time{}, fmt.Errorf("%s: no trading date after %s: %w", s.ticker, model.FormatDay(d), model.ErrDataUnavailable)
	}
	return s.points[i].Date, nil
}

// SessionsAfter returns the trading date n sessions after the trading date date.
func (s *Series) SessionsAfter(date time.Time, n int) (time.Time, error) {
	d := model.Day(date)
	i, ok := s.index[d]
	if !ok {
		return time.Time{}, fmt.Errorf("%s: %s is not a trading date: %w", s.ticker, model.FormatDay(d), model.ErrDataUnavailable)
	}
	j := i + n
	if n < 0 || j >= len(s.points) {
		return time.Time{}, fmt.Errorf("%s: no trading date %d sessions after %s: %w", s.ticker, n, model.FormatDay(d), model.ErrDataUnavailable)
	}
	return s.points[j].Date, nil
}

// LastCloseOnOrBefore returns the close of the latest bar dated on or before date.
func (s *Series) LastCloseOnOrBefore(date time.Time) (float64, bool) {
	d := model.Day(date)
	if i, ok := s.index[d]; ok {
		return s.points[i].Close, true
	}
	i := sort.Search(len(s.points), func(i int) bool { return s.points[i].Date.After(d) })
	if i == 0 {
		return 0, false
	}
	return s.points[i-1].Close, true
}
