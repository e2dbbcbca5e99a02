package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"SignalBacktest/internal/collector"
	"SignalBacktest/internal/engine"
	"SignalBacktest/internal/model"
	"SignalBacktest/internal/recorder"
	"SignalBacktest/internal/sizing"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newTestRunner(t *testing.T, rec recorder.Recorder, parallel int) (*Runner, string) {
	t.Helper()
	dir := t.TempDir()
	prices := &collector.MockFetcher{
		Tickers: []string{"AAA", "BBB"},
		Price:   100,
		Days:    30,
		Start:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	col := collector.NewCollector(prices, collector.NewCSVFetcher(""), nil)
	cfg := engine.DefaultConfig()
	cfg.Mode = sizing.ModeSingle
	r := New(col, cfg, Options{OutputDir: filepath.Join(dir, "out"), MaxParallel: parallel}, rec, nil)
	var n atomic.Int64
	r.newID = func() string { return fmt.Sprintf("run%d", n.Add(1)) }
	return r, dir
}

func TestRunBatch(t *testing.T) {
	rec, err := recorder.NewSQLiteRecorder(filepath.Join(t.TempDir(), "runs.db"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer rec.Close()

	r, dir := newTestRunner(t, rec, 2)
	writeFile(t, filepath.Join(dir, "generated_signals_a.csv"), "Date,Ticker,Signal\n2024-01-02,AAA,BUY\n")
	writeFile(t, filepath.Join(dir, "generated_signals_b.csv"), "Date,Ticker,Signal\n2024-01-02,BBB,BUY\n2024-01-03,AAA,BUY\n")
	writeFile(t, filepath.Join(dir, "generated_signals_c.csv"), "Date,Ticker\n2024-01-02,AAA\n")

	batch, err := r.RunBatch(context.Background(), filepath.Join(dir, "generated_signals_*.csv"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batch.Runs) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(batch.Runs))
	}
	if batch.Failed() != 1 {
		t.Errorf("expected 1 failed run, got %d", batch.Failed())
	}

	a, b, c := batch.Runs[0], batch.Runs[1], batch.Runs[2]
	if a.Err != nil || a.Report.NTrades != 1 {
		t.Errorf("expected one trade for file a, got %+v", a)
	}
	// mode A rejects the AAA entry while BBB is open
	if b.Err != nil || b.Report.NTrades != 1 || b.Skipped != 1 {
		t.Errorf("expected one trade and one skip for file b, got %+v", b)
	}
	if !errors.Is(c.Err, model.ErrMalformedInput) {
		t.Errorf("expected malformed input for file c, got %v", c.Err)
	}
	for _, p := range []string{a.Paths.Trades, a.Paths.Equity, a.Paths.Report} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("expected output %s: %v", p, err)
		}
	}
	if Stem(a.SignalFile) != "generated_signals_a" {
		t.Errorf("unexpected stem %q", Stem(a.SignalFile))
	}

	runs, err := rec.LastRuns(10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("expected 2 archived runs, got %d", len(runs))
	}
	if r.Last() != batch {
		t.Errorf("expected Last to return the finished batch")
	}
}

func TestRunBatch_NoFiles(t *testing.T) {
	r, dir := newTestRunner(t, nil, 1)
	_, err := r.RunBatch(context.Background(), filepath.Join(dir, "*.csv"))
	if !errors.Is(err, ErrNoSignalFiles) {
		t.Errorf("expected ErrNoSignalFiles, got %v", err)
	}
}

func TestRunBatch_SameResultsSerialAndParallel(t *testing.T) {
	reports := make([]model.Report, 0, 2)
	for _, parallel := range []int{1, 4} {
		r, dir := newTestRunner(t, nil, parallel)
		for i := 0; i < 4; i++ {
			writeFile(t, filepath.Join(dir, fmt.Sprintf("s%d.csv", i)),
				fmt.Sprintf("Date,Ticker,Signal\n2024-01-0%d,AAA,BUY\n", i+2))
		}
		batch, err := r.RunBatch(context.Background(), filepath.Join(dir, "s*.csv"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		reports = append(reports, batch.Runs[3].Report)
	}
	if reports[0].TotalPnL != reports[1].TotalPnL || reports[0].NTrades != reports[1].NTrades {
		t.Errorf("serial and parallel runs differ: %+v vs %+v", reports[0], reports[1])
	}
}

func TestRunBatch_Canceled(t *testing.T) {
	r, dir := newTestRunner(t, nil, 1)
	writeFile(t, filepath.Join(dir, "s.csv"), "Date,Ticker,Signal\n2024-01-02,AAA,BUY\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.RunBatch(ctx, filepath.Join(dir, "s.csv")); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
