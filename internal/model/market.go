package model

import "time"

// DateLayout is the calendar-date format used for every date crossing a file boundary.
const DateLayout = "2006-01-02"

// PricePoint is one daily bar of the upstream price table.
type PricePoint struct {
	Ticker   string
	Date     time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	AdjClose float64
	Volume   float64
	ATR      float64
	HasATR   bool // false when the table carries no volatility column for this row
	HasOpen  bool
}

// EntryReference returns the price a position opening on this bar is filled at
// before slippage. Falls back to the close when the bar has no open.
func (p PricePoint) EntryReference() float64 {
	if p.HasOpen && p.Open > 0 {
		return p.Open
	}
	return p.Close
}

// Day truncates t to a UTC calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a calendar-date string, accepting a trailing time component.
func ParseDay(s string) (time.Time, error) {
	if len(s) > len(DateLayout) {
		for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
			if t, err := time.Parse(layout, s); err == nil {
				return Day(t), nil
			}
		}
		s = s[:len(DateLayout)]
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

// FormatDay renders t as a calendar-date string.
func FormatDay(t time.Time) string { return t.Format(DateLayout) }
