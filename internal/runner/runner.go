// Package runner executes batches of independent backtests, one per signal
// file, against a shared price table.
package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"SignalBacktest/internal/analyzer"
	"SignalBacktest/internal/collector"
	"SignalBacktest/internal/engine"
	"SignalBacktest/internal/market"
	"SignalBacktest/internal/model"
	"SignalBacktest/internal/recorder"
	"SignalBacktest/internal/report"
)

// ErrNoSignalFiles is returned when a batch pattern matches nothing.
var ErrNoSignalFiles = errors.New("no signal files matched")

// Options control batch execution.
type Options struct {
	OutputDir   string
	MaxParallel int // <= 0 means one run at a time
}

// RunSummary is the outcome of one signal file.
type RunSummary struct {
	RunID      string
	SignalFile string
	Report     model.Report
	Paths      report.Paths
	Skipped    int
	Err        error
}

// Batch is the outcome of one RunBatch call, runs in file order.
type Batch struct {
	StartedAt time.Time
	Finished  time.Time
	Pattern   string
	Runs      []RunSummary
}

// Failed counts runs that returned an error.
func (b *Batch) Failed() int {
	n := 0
	for _, r := range b.Runs {
		if r.Err != nil {
			n++
		}
	}
	return n
}

// Runner wires collector, engine, report writer and recorder together.
type Runner struct {
	collector *collector.Collector
	cfg       engine.Config
	opts      Options
	recorder  recorder.Recorder
	logger    *zap.Logger
	newID     func() string

	mu   sync.Mutex
	last *Batch
}

// New creates a Runner. A nil recorder disables archiving.
func New(col *collector.Collector, cfg engine.Config, opts Options, rec recorder.Recorder, logger *zap.Logger) *Runner {
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = 1
	}
	return &Runner{
		collector: col,
		cfg:       cfg,
		opts:      opts,
		recorder:  rec,
		logger:    logger,
		newID:     uuid.NewString,
	}
}

// Last returns the most recent finished batch, or nil.
func (r *Runner) Last() *Batch {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// Expand resolves pattern to a sorted list of signal files.
func Expand(pattern string) ([]string, error) {
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("bad signal pattern %q: %w", pattern, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoSignalFiles, pattern)
	}
	sort.Strings(files)
	return files, nil
}

// RunBatch loads the price table once and runs every file matching pattern.
// A failing file is reported in its RunSummary and does not stop the others.
func (r *Runner) RunBatch(ctx context.Context, pattern string) (*Batch, error) {
	files, err := Expand(pattern)
	if err != nil {
		return nil, err
	}
	store, err := r.collector.LoadStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("load prices: %w", err)
	}
	sim, err := engine.New(r.cfg, store, r.logger)
	if err != nil {
		return nil, err
	}

	batch := &Batch{StartedAt: time.Now(), Pattern: pattern, Runs: make([]RunSummary, len(files))}
	r.logger.Info("batch started", zap.String("pattern", pattern), zap.Int("files", len(files)), zap.Int("max_parallel", r.opts.MaxParallel))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.MaxParallel)
	for i, file := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				batch.Runs[i] = RunSummary{SignalFile: file, Err: err}
				return err
			}
			batch.Runs[i] = r.runFile(gctx, sim, file)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return batch, err
	}
	batch.Finished = time.Now()

	r.mu.Lock()
	r.last = batch
	r.mu.Unlock()

	r.logger.Info("batch finished",
		zap.String("pattern", pattern),
		zap.Int("runs", len(batch.Runs)),
		zap.Int("failed", batch.Failed()),
		zap.Duration("elapsed", batch.Finished.Sub(batch.StartedAt)),
	)
	return batch, nil
}

func (r *Runner) runFile(ctx context.Context, sim *engine.Simulator, file string) RunSummary {
	sum := RunSummary{RunID: r.newID(), SignalFile: file}
	started := time.Now()

	feed, err := r.collector.LoadFeed(ctx, file)
	if err != nil {
		sum.Err = err
		r.logger.Error("signal file rejected", zap.String("file", file), zap.Error(err))
		return sum
	}
	res, rep, err := Simulate(sim, feed)
	if err != nil {
		sum.Err = err
		r.logger.Error("simulation failed", zap.String("file", file), zap.Error(err))
		return sum
	}
	sum.Report = rep
	sum.Skipped = len(res.Skips)

	paths, err := report.WriteFiles(r.opts.OutputDir, Stem(file), sum.RunID, report.Output{
		Trades: res.Trades,
		Equity: res.Equity,
		Report: rep,
	})
	if err != nil {
		sum.Err = err
		r.logger.Error("write outputs", zap.String("file", file), zap.Error(err))
		return sum
	}
	sum.Paths = paths

	cfg := sim.Config()
	if err := r.recorder.RecordRun(&recorder.RunRecord{
		RunID:      sum.RunID,
		SignalFile: file,
		StartedAt:  started,
		Mode:       cfg.Mode.String(),
		HoldPeriod: cfg.HoldPeriod,
		Params:     paramsJSON(cfg),
		Report:     rep,
		Trades:     res.Trades,
		Equity:     res.Equity,
	}); err != nil {
		r.logger.Error("record run", zap.String("run_id", sum.RunID), zap.Error(err))
	}
	return sum
}

// Simulate runs one feed and analyzes its result.
func Simulate(sim *engine.Simulator, feed *market.Feed) (*engine.Result, model.Report, error) {
	res, err := sim.Run(feed)
	if err != nil {
		return nil, model.Report{}, err
	}
	return res, analyzer.Analyze(res.Trades, res.Equity, sim.Config().InitialCapital), nil
}

// Stem is the signal file name without directory and extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

type params struct {
	Mode               string   `json:"sizing"`
	HoldPeriod         int      `json:"hold_period"`
	InitialCapital     float64  `json:"initial_capital"`
	Commission         float64  `json:"commission"`
	Slippage           float64  `json:"slippage"`
	RiskFraction       float64  `json:"risk_fraction"`
	FallbackStopPct    float64  `json:"fallback_stop_pct"`
	EndOfHorizon       string   `json:"end_of_horizon"`
	EndDate            string   `json:"end_date,omitempty"`
	MinPredictedReturn *float64 `json:"min_predicted_return,omitempty"`
}

func paramsJSON(cfg engine.Config) string {
	p := params{
		Mode:               cfg.Mode.String(),
		HoldPeriod:         cfg.HoldPeriod,
		InitialCapital:     cfg.InitialCapital,
		Commission:         cfg.Commission,
		Slippage:           cfg.Slippage,
		RiskFraction:       cfg.RiskFraction,
		FallbackStopPct:    cfg.FallbackStopPct,
		EndOfHorizon:       string(cfg.EndOfHorizon),
		MinPredictedReturn: cfg.Filter.MinPredictedReturn,
	}
	if !cfg.EndDate.IsZero() {
		p.EndDate = model.FormatDay(cfg.EndDate)
	}
	data, _ := json.Marshal(p)
	return string(data)
}
