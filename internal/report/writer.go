// Package report serializes a run into the trade log, equity curve and
// performance report files.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"SignalBacktest/internal/model"
)

var tradeHeader = []string{
	"Ticker", "signal_date", "entry_date", "exit_date",
	"entry_price", "exit_price", "quantity", "gross_pnl", "commission", "net_pnl", "exit_reason",
}

var equityHeader = []string{"date", "cash", "reserved", "unrealized", "equity", "open_positions"}

// WriteTrades writes the ledger as CSV. An empty ledger still gets its header.
func WriteTrades(w io.Writer, trades []model.Trade) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(tradeHeader); err != nil {
		return err
	}
	for _, t := range trades {
		rec := []string{
			t.Ticker,
			model.FormatDay(t.SignalDate),
			model.FormatDay(t.EntryDate),
			model.FormatDay(t.ExitDate),
			formatF(t.EntryPrice),
			formatF(t.ExitPrice),
			strconv.FormatInt(t.Quantity, 10),
			formatF(t.GrossPnL),
			formatF(t.Commission),
			formatF(t.NetPnL),
			string(t.ExitReason),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteEquity writes one CSV row per simulated day.
func WriteEquity(w io.Writer, curve []model.EquitySample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(equityHeader); err != nil {
		return err
	}
	for _, s := range curve {
		rec := []string{
			model.FormatDay(s.Date),
			formatF(s.Cash),
			formatF(s.Reserved),
			formatF(s.Unrealized),
			formatF(s.Equity),
			strconv.Itoa(s.Open),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteReport writes rep as indented JSON.
func WriteReport(w io.Writer, rep model.Report) error {
	if rep.PerTicker == nil {
		rep.PerTicker = map[string]model.TickerStats{}
	}
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// Paths are the files produced for one run.
type Paths struct {
	Trades string `json:"trades_file"`
	Equity string `json:"equity_file"`
	Report string `json:"report"`
}

// Output bundles what WriteFiles persists.
type Output struct {
	Trades []model.Trade
	Equity []model.EquitySample
	Report model.Report
}

// WriteFiles writes the three artifacts under dir, named after the signal
// file stem and run id.
func WriteFiles(dir, stem, runID string, out Output) (Paths, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Paths{}, fmt.Errorf("create output dir: %w", err)
	}
	p := Paths{
		Trades: filepath.Join(dir, fmt.Sprintf("trade_log_%s_%s.csv", stem, runID)),
		Equity: filepath.Join(dir, fmt.Sprintf("equity_curve_%s_%s.csv", stem, runID)),
		Report: filepath.Join(dir, fmt.Sprintf("backtest_report_%s_%s.json", stem, runID)),
	}
	if err := writeFile(p.Trades, func(w io.Writer) error { return WriteTrades(w, out.Trades) }); err != nil {
		return Paths{}, fmt.Errorf("write trade log: %w", err)
	}
	if err := writeFile(p.Equity, func(w io.Writer) error { return WriteEquity(w, out.Equity) }); err != nil {
		return Paths{}, fmt.Errorf("write equity curve: %w", err)
	}
	if err := writeFile(p.Report, func(w io.Writer) error { return WriteReport(w, out.Report) }); err != nil {
		return Paths{}, fmt.Errorf("write report: %w", err)
	}
	return p, nil
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func formatF(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
