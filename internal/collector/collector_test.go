package collector

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"SignalBacktest/internal/model"
)

const priceTable = `Date,Ticker,Open,High,Low,Close,Adj Close,Volume,ATR_14
2024-01-02,tick,100,101,99,100.5,100.5,1000,
2024-01-03,TICK,101,102,100,101.5,101.5,1000,1.25
2024-01-02,OTHER,50,51,49,50.5,50.5,500,nan
`

func TestParsePrices(t *testing.T) {
	points, err := ParsePrices("merged.csv", strings.NewReader(priceTable))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(points))
	}
	p := points[0]
	if p.Ticker != "TICK" || p.Open != 100 || !p.HasOpen || p.Close != 100.5 || p.AdjClose != 100.5 {
		t.Errorf("unexpected first point %+v", p)
	}
	if p.HasATR {
		t.Errorf("expected no ATR on blank cell")
	}
	if !points[1].HasATR || points[1].ATR != 1.25 {
		t.Errorf("expected ATR 1.25, got %+v", points[1])
	}
	if points[2].HasATR {
		t.Errorf("expected NaN ATR to be treated as missing")
	}
}

func TestParsePrices_UnnamedDateColumn(t *testing.T) {
	in := ",Ticker,Close\n2024-01-02 00:00:00,TICK,10\n"
	points, err := ParsePrices("merged.csv", strings.NewReader(in))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := model.FormatDay(points[0].Date); got != "2024-01-02" {
		t.Errorf("expected 2024-01-02, got %s", got)
	}
	if points[0].HasOpen {
		t.Errorf("expected HasOpen false without an Open column")
	}
}

func TestParsePrices_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
		field string
	}{
		{"missing close column", "Date,Ticker,Open\n2024-01-02,T,1\n", "close"},
		{"non-finite close", "Date,Ticker,Close\n2024-01-02,T,inf\n", "Close"},
		{"blank close", "Date,Ticker,Close\n2024-01-02,T,\n", "Close"},
		{"bad date", "Date,Ticker,Close\nyesterday,T,1\n", "Date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePrices("merged.csv", strings.NewReader(tt.input))
			if !errors.Is(err, model.ErrMalformedInput) {
				t.Fatalf("expected malformed input, got %v", err)
			}
			var me *model.MalformedInputError
			if !errors.As(err, &me) || me.Field != tt.field || me.File != "merged.csv" {
				t.Errorf("expected field %q in merged.csv, got %+v", tt.field, me)
			}
		})
	}
}

func TestParseSignals(t *testing.T) {
	in := "date,TICKER,signal,pred_reg\n2024-01-02,tick,buy,0.02\n2024-01-02,other,SELL,\n2024-01-03,tick,,\n"
	sigs, err := ParseSignals("generated_signals_x.csv", strings.NewReader(in))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sigs) != 3 {
		t.Fatalf("expected 3 signals, got %d", len(sigs))
	}
	if sigs[0].Ticker != "TICK" || sigs[0].Kind != model.SignalBuy || !sigs[0].HasPredictedReturn || sigs[0].PredictedReturn != 0.02 {
		t.Errorf("unexpected first signal %+v", sigs[0])
	}
	if sigs[1].Kind != model.SignalSell || sigs[1].HasPredictedReturn {
		t.Errorf("unexpected second signal %+v", sigs[1])
	}
	if sigs[2].Kind != model.SignalHold {
		t.Errorf("expected blank signal to parse as HOLD, got %v", sigs[2].Kind)
	}
}

func TestParseSignals_MissingColumn(t *testing.T) {
	_, err := ParseSignals("s.csv", strings.NewReader("Date,Ticker\n2024-01-02,T\n"))
	var me *model.MalformedInputError
	if !errors.As(err, &me) || me.Field != "signal" {
		t.Fatalf("expected missing signal column, got %v", err)
	}
}

func TestParseSignals_UTF16(t *testing.T) {
	text := "Date,Ticker,Signal\r\n2024-01-02,TICK,BUY\r\n"
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xFE})
	for _, r := range text {
		buf.WriteByte(byte(r))
		buf.WriteByte(0)
	}
	sigs, err := ParseSignals("utf16.csv", &buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sigs) != 1 || sigs[0].Ticker != "TICK" || sigs[0].Kind != model.SignalBuy {
		t.Errorf("unexpected signals %+v", sigs)
	}
}

func TestParseSignals_UTF8BOM(t *testing.T) {
	in := "\ufeffDate,Ticker,Signal\n2024-01-02,TICK,BUY\n"
	sigs, err := ParseSignals("bom.csv", strings.NewReader(in))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sigs) != 1 {
		t.Fatalf("expected 1 signal, got %d", len(sigs))
	}
}

func TestCSVFetcher(t *testing.T) {
	dir := t.TempDir()
	prices := filepath.Join(dir, "merged_data.csv")
	signals := filepath.Join(dir, "generated_signals_a.csv")
	if err := os.WriteFile(prices, []byte(priceTable), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(signals, []byte("Date,Ticker,Signal\n2024-01-02,TICK,BUY\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	f := NewCSVFetcher(prices)
	c := NewCollector(f, f, nil)
	store, err := c.LoadStore(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := store.Tickers(); len(got) != 2 {
		t.Errorf("expected 2 tickers, got %v", got)
	}
	feed, err := c.LoadFeed(context.Background(), signals)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if feed.Len() != 1 {
		t.Errorf("expected 1 signal, got %d", feed.Len())
	}
}

func TestCollector_DeriveATR(t *testing.T) {
	m := &MockFetcher{Tickers: []string{"AAA"}, Price: 100, Days: 20, Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewCollector(m, m, nil)
	c.DeriveATR = true
	store, err := c.LoadStore(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	series, err := store.Series("aaa")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pts := series.Points()
	if pts[12].HasATR {
		t.Errorf("expected no ATR inside warmup window")
	}
	if !pts[13].HasATR || pts[13].ATR <= 0 {
		t.Errorf("expected derived ATR at index 13, got %+v", pts[13])
	}
}

func TestCollector_DuplicateSignals(t *testing.T) {
	d := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	m := &MockFetcher{Signals: map[string][]model.Signal{
		"dup": {{Date: d, Ticker: "A", Kind: model.SignalBuy}, {Date: d, Ticker: "a", Kind: model.SignalHold}},
	}}
	c := NewCollector(m, m, nil)
	if _, err := c.LoadFeed(context.Background(), "dup"); !errors.Is(err, model.ErrMalformedInput) {
		t.Errorf("expected malformed input, got %v", err)
	}
}

func TestSQLiteFetcher(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prices.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	stmts := []string{
		`CREATE TABLE prices (date TEXT, ticker TEXT, open REAL, high REAL, low REAL, close REAL, adj_close REAL, volume REAL, atr_14 REAL)`,
		`INSERT INTO prices VALUES ('2024-01-03','tick',NULL,2,1,1.5,1.5,10,0.5)`,
		`INSERT INTO prices VALUES ('2024-01-02','tick',1,2,1,1.2,1.2,10,NULL)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			t.Fatalf("exec: %v", err)
		}
	}
	db.Close()

	points, err := NewSQLiteFetcher(path).FetchPrices(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(points))
	}
	if points[0].Ticker != "TICK" || model.FormatDay(points[0].Date) != "2024-01-02" || points[0].HasATR {
		t.Errorf("unexpected first point %+v", points[0])
	}
	if points[1].HasOpen || !points[1].HasATR || points[1].ATR != 0.5 {
		t.Errorf("unexpected second point %+v", points[1])
	}
}

func TestFromSources(t *testing.T) {
	c := FromSources(Sources{PricesCSV: "a.csv"}, nil)
	if c.Prices.Name() != "csv" {
		t.Errorf("expected csv prices, got %s", c.Prices.Name())
	}
	c = FromSources(Sources{PricesCSV: "a.csv", PricesSQLite: "p.db", PriceTable: "bars", DeriveATR: true}, nil)
	sf, ok := c.Prices.(*SQLiteFetcher)
	if !ok || sf.Table != "bars" || !c.DeriveATR {
		t.Errorf("unexpected collector %+v", c)
	}
}
