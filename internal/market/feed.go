package market

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"SignalBacktest/internal/model"
)

// Feed is the chronologically ordered signal feed of one run.
type Feed struct {
	signals []model.Signal
	tickers []string
}

// NewFeed normalizes tickers and dates, sorts by date (stable, so same-day rows
// keep file order) and rejects a second row for the same (date, ticker).
func NewFeed(signals []model.Signal) (*Feed, error) {
	out := make([]model.Signal, len(signals))
	copy(out, signals)
	for i := range out {
		out[i].Ticker = strings.ToUpper(strings.TrimSpace(out[i].Ticker))
		out[i].Date = model.Day(out[i].Date)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })

	type key struct {
		date   time.Time
		ticker string
	}
	seen := make(map[key]struct{}, len(out))
	var tickers []string
	known := make(map[string]struct{})
	for _, s := range out {
		k := key{s.Date, s.Ticker}
		if _, dup := seen[k]; dup {
			return nil, &model.MalformedInputError{
				Field:  "Ticker",
				Reason: fmt.Sprintf("duplicate signal for %s on %s", s.Ticker, model.FormatDay(s.Date)),
			}
		}
		seen[k] = struct{}{}
		if _, ok := known[s.Ticker]; !ok {
			known[s.Ticker] = struct{}{}
			tickers = append(tickers, s.Ticker)
		}
	}
	return &Feed{signals: out, tickers: tickers}, nil
}

// Signals returns the ordered signals. Callers must not modify the slice.
func (f *Feed) Signals() []model.Signal { return f.signals }

// Len is the number of signals.
func (f *Feed) Len() int { return len(f.signals) }

// Tickers lists distinct tickers in order of first appearance.
func (f *Feed) Tickers() []string { return f.tickers }

// Span returns the first and last signal dates. ok is false for an empty feed.
func (f *Feed) Span() (first, last time.Time, ok bool) {
	if len(f.signals) == 0 {
		return time.Time{}, time.Time{}, false
	}
	return f.signals[0].Date, f.signals[len(f.signals)-1].Date, true
}
