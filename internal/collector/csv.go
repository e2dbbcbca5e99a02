package collector

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"SignalBacktest/internal/calculator"
	"SignalBacktest/internal/model"
)

// header maps lower-cased column names to their index.
type header struct {
	file  string
	names []string
	index map[string]int
}

func newHeader(file string, rec []string) header {
	h := header{file: file, names: rec, index: make(map[string]int, len(rec))}
	for i, name := range rec {
		key := strings.ToLower(strings.TrimSpace(name))
		if _, dup := h.index[key]; !dup {
			h.index[key] = i
		}
	}
	return h
}

// lookup returns the index of the first alias present.
func (h header) lookup(aliases ...string) (int, bool) {
	for _, a := range aliases {
		if i, ok := h.index[a]; ok {
			return i, true
		}
	}
	return -1, false
}

func (h header) require(aliases ...string) (int, error) {
	if i, ok := h.lookup(aliases...); ok {
		return i, nil
	}
	return -1, &model.MalformedInputError{File: h.file, Field: aliases[0], Reason: "missing required column"}
}

func cell(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func readHeader(file string, r *csv.Reader) (header, error) {
	rec, err := r.Read()
	if errors.Is(err, io.EOF) {
		return header{}, &model.MalformedInputError{File: file, Reason: "empty file"}
	}
	if err != nil {
		return header{}, fmt.Errorf("read header of %s: %w", file, err)
	}
	return newHeader(file, rec), nil
}

// CSVFetcher reads the merged price table and signal files from disk.
type CSVFetcher struct {
	PricesPath string
}

// NewCSVFetcher creates a fetcher for the price table at pricesPath.
func NewCSVFetcher(pricesPath string) *CSVFetcher {
	return &CSVFetcher{PricesPath: pricesPath}
}

func (f *CSVFetcher) Name() string { return "csv" }

// FetchPrices parses the price table file.
func (f *CSVFetcher) FetchPrices(_ context.Context) ([]model.PricePoint, error) {
	file, err := os.Open(f.PricesPath)
	if err != nil {
		return nil, fmt.Errorf("open price table: %w", err)
	}
	defer file.Close()
	return ParsePrices(f.PricesPath, file)
}

// FetchSignals parses the signal file at path.
func (f *CSVFetcher) FetchSignals(_ context.Context, path string) ([]model.Signal, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open signal file: %w", err)
	}
	defer file.Close()
	return ParseSignals(path, file)
}

type priceColumns struct {
	date, ticker, open, high, low, close, adj, volume, atr int
}

func (h header) priceColumns() (priceColumns, error) {
	var c priceColumns
	var err error
	date, ok := h.lookup("date", "datetime", "time")
	if !ok {
		// merged tables written with the date as the index column leave it
		// unnamed or use a name of their own.
		date = 0
	}
	c.date = date
	if c.ticker, err = h.require("ticker", "symbol"); err != nil {
		return c, err
	}
	if c.close, err = h.require("close"); err != nil {
		return c, err
	}
	if c.date == c.ticker || c.date == c.close {
		return c, &model.MalformedInputError{File: h.file, Field: "date", Reason: "missing required column"}
	}
	c.open, _ = h.lookup("open")
	c.high, _ = h.lookup("high")
	c.low, _ = h.lookup("low")
	c.adj, _ = h.lookup("adj close", "adj_close", "adjclose")
	c.volume, _ = h.lookup("volume")
	c.atr, _ = h.lookup("atr_14", "atr")
	return c, nil
}

// ParsePrices reads a price table. name labels errors.
func ParsePrices(name string, r io.Reader) ([]model.PricePoint, error) {
	cr := newCSVReader(r)
	h, err := readHeader(name, cr)
	if err != nil {
		return nil, err
	}
	cols, err := h.priceColumns()
	if err != nil {
		return nil, err
	}

	var points []model.PricePoint
	for row := 1; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &model.MalformedInputError{File: name, Row: row, Reason: err.Error()}
		}
		if isBlank(rec) {
			continue
		}
		p, err := parsePriceRow(name, row, h, cols, rec)
		if err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, nil
}

func parsePriceRow(name string, row int, h header, c priceColumns, rec []string) (model.PricePoint, error) {
	bad := func(col int, reason string) error {
		field := ""
		if col >= 0 && col < len(h.names) {
			field = h.names[col]
		}
		return &model.MalformedInputError{File: name, Row: row, Field: field, Reason: reason}
	}

	var p model.PricePoint
	date, err := model.ParseDay(cell(rec, c.date))
	if err != nil {
		return p, bad(c.date, "invalid date")
	}
	p.Date = date
	p.Ticker = strings.ToUpper(cell(rec, c.ticker))
	if p.Ticker == "" {
		return p, bad(c.ticker, "empty ticker")
	}

	closeVal, ok, err := parseNumber(cell(rec, c.close))
	if err != nil || !ok {
		return p, bad(c.close, "close must be a finite number")
	}
	p.Close = closeVal

	optional := []struct {
		col int
		dst *float64
		has *bool
	}{
		{c.open, &p.Open, &p.HasOpen},
		{c.high, &p.High, nil},
		{c.low, &p.Low, nil},
		{c.adj, &p.AdjClose, nil},
		{c.volume, &p.Volume, nil},
	}
	for _, o := range optional {
		if o.col < 0 {
			continue
		}
		v, ok, err := parseNumber(cell(rec, o.col))
		if err != nil {
			return p, bad(o.col, "not a finite number")
		}
		if ok {
			*o.dst = v
			if o.has != nil {
				*o.has = true
			}
		}
	}
	if c.high < 0 {
		p.High = p.Close
	}
	if c.low < 0 {
		p.Low = p.Close
	}
	if c.atr >= 0 {
		// The feature table leaves ATR as NaN through its warmup window.
		if v, err := strconv.ParseFloat(cell(rec, c.atr), 64); err == nil && calculator.IsFinite(v) {
			p.ATR = v
			p.HasATR = true
		}
	}
	return p, nil
}

// parseNumber reports ok=false for an empty cell and an error for an
// unparsable or non-finite one.
func parseNumber(s string) (float64, bool, error) {
	if s == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, err
	}
	if !calculator.IsFinite(v) {
		return 0, false, errors.New("non-finite value")
	}
	return v, true, nil
}

// ParseSignals reads a signal file. name labels errors.
func ParseSignals(name string, r io.Reader) ([]model.Signal, error) {
	cr := newCSVReader(r)
	h, err := readHeader(name, cr)
	if err != nil {
		return nil, err
	}
	dateCol, err := h.require("date")
	if err != nil {
		return nil, err
	}
	tickerCol, err := h.require("ticker", "symbol")
	if err != nil {
		return nil, err
	}
	signalCol, err := h.require("signal")
	if err != nil {
		return nil, err
	}
	predCol, _ := h.lookup("predicted_return_5d", "pred_reg", "predicted_return")

	var signals []model.Signal
	for row := 1; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &model.MalformedInputError{File: name, Row: row, Reason: err.Error()}
		}
		if isBlank(rec) {
			continue
		}
		date, err := model.ParseDay(cell(rec, dateCol))
		if err != nil {
			return nil, &model.MalformedInputError{File: name, Row: row, Field: h.names[dateCol], Reason: "invalid date"}
		}
		sig := model.Signal{
			Date:   date,
			Ticker: strings.ToUpper(cell(rec, tickerCol)),
			Kind:   model.ParseSignalKind(cell(rec, signalCol)),
		}
		if sig.Ticker == "" {
			return nil, &model.MalformedInputError{File: name, Row: row, Field: h.names[tickerCol], Reason: "empty ticker"}
		}
		if predCol >= 0 {
			v, ok, err := parseNumber(cell(rec, predCol))
			if err != nil {
				return nil, &model.MalformedInputError{File: name, Row: row, Field: h.names[predCol], Reason: "not a finite number"}
			}
			sig.PredictedReturn, sig.HasPredictedReturn = v, ok
		}
		signals = append(signals, sig)
	}
	return signals, nil
}

func isBlank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
