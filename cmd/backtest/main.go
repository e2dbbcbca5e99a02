package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"SignalBacktest/internal/collector"
	"SignalBacktest/internal/config"
	"SignalBacktest/internal/engine"
	"SignalBacktest/internal/recorder"
	"SignalBacktest/internal/runner"
	"SignalBacktest/internal/sizing"
)

func main() {
	var (
		cfgPath      = flag.String("config", "configs/config.yaml", "Path to YAML config (CONFIG_PATH overrides the default)")
		prices       = flag.String("prices", "", "Price table CSV (merged_data.csv layout)")
		pricesSQLite = flag.String("prices-sqlite", "", "SQLite database holding a prices table")
		signals      = flag.String("signals", "", "Signal file or glob, e.g. 'data/generated_signals_*.csv'")
		outDir       = flag.String("out", "", "Output directory for trade logs, equity curves and reports")
		sizingMode   = flag.String("sizing", "", "Sizing mode: A (single), B (fixed fraction) or C (risk)")
		hold         = flag.Int("hold", 0, "Holding period in trading sessions")
		capital      = flag.Float64("capital", 0, "Initial capital")
		commission   = flag.Float64("commission", 0, "Fixed round-trip commission per trade")
		slippage     = flag.Float64("slippage", 0, "Fractional slippage applied to entry and exit")
		horizon      = flag.String("end-of-horizon", "", "Positions open at the end: 'close' or 'drop'")
		endDate      = flag.String("end-date", "", "Last simulated date (YYYY-MM-DD)")
		parallel     = flag.Int("parallel", 0, "Signal files simulated concurrently")
		deriveATR    = flag.Bool("derive-atr", false, "Derive ATR_14 from high/low/close when the table lacks it")
		debug        = flag.Bool("debug", false, "Log every skipped signal and fill")
	)
	flag.Parse()

	logger := newLogger(*debug)
	defer logger.Sync()

	path := *cfgPath
	if v := os.Getenv("CONFIG_PATH"); v != "" && !isSet("config") {
		path = v
	}
	cfg, err := config.Load(path)
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	// Flags override the file and environment only when given.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "prices":
			cfg.Data.Prices = *prices
			cfg.Data.PricesSQLite = ""
		case "prices-sqlite":
			cfg.Data.PricesSQLite = *pricesSQLite
		case "signals":
			cfg.Data.SignalsGlob = *signals
		case "out":
			cfg.Output.Dir = *outDir
		case "sizing":
			m, err := sizing.ParseMode(*sizingMode)
			if err != nil {
				logger.Fatal("invalid -sizing", zap.Error(err))
			}
			cfg.Backtest.Sizing = m
		case "hold":
			cfg.Backtest.HoldPeriod = *hold
		case "capital":
			cfg.Backtest.InitialCapital = *capital
		case "commission":
			cfg.Backtest.Commission = *commission
		case "slippage":
			cfg.Backtest.Slippage = *slippage
		case "end-of-horizon":
			cfg.Backtest.EndOfHorizon = engine.EndOfHorizon(*horizon)
		case "end-date":
			cfg.Backtest.EndDate = *endDate
		case "parallel":
			cfg.Runner.MaxParallel = *parallel
		case "derive-atr":
			cfg.Backtest.DeriveATR = *deriveATR
		}
	})
	if err := cfg.Validate(); err != nil {
		logger.Fatal("config validation", zap.Error(err))
	}
	ec, err := cfg.Engine()
	if err != nil {
		logger.Fatal("engine config", zap.Error(err))
	}

	col := newCollector(cfg, logger)

	var rec recorder.Recorder = recorder.NewNoopRecorder()
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, logger)
		if err != nil {
			logger.Warn("init sqlite recorder failed, using noop", zap.Error(err))
		} else {
			rec = sr
			defer sr.Close()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	run := runner.New(col, ec, runner.Options{OutputDir: cfg.Output.Dir, MaxParallel: cfg.Runner.MaxParallel}, rec, logger)
	batch, err := run.RunBatch(ctx, cfg.Data.SignalsGlob)
	if err != nil {
		logger.Fatal("batch", zap.Error(err))
	}

	for _, r := range batch.Runs {
		if r.Err != nil {
			fmt.Printf("%-40s FAILED %v\n", runner.Stem(r.SignalFile), r.Err)
			continue
		}
		fmt.Printf("%-40s trades=%-5d pnl=%12.2f return=%8.4f win=%6.3f maxdd=%10.2f  %s\n",
			runner.Stem(r.SignalFile), r.Report.NTrades, r.Report.TotalPnL, r.Report.TotalReturn,
			r.Report.WinRate, r.Report.MaxDrawdown, r.Paths.Report)
	}
	if batch.Failed() > 0 {
		logger.Error("batch finished with failures", zap.Int("failed", batch.Failed()))
		logger.Sync()
		os.Exit(1)
	}
}

func newLogger(debug bool) *zap.Logger {
	zc := zap.NewProductionConfig()
	if debug {
		zc.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, err := zc.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

func newCollector(cfg *config.Config, logger *zap.Logger) *collector.Collector {
	col := collector.FromSources(collector.Sources{
		PricesCSV:    cfg.Data.Prices,
		PricesSQLite: cfg.Data.PricesSQLite,
		PriceTable:   cfg.Data.PriceTable,
		DeriveATR:    cfg.Backtest.DeriveATR,
	}, logger)
	logger.Info("inputs", zap.String("prices", col.Prices.Name()), zap.String("signals", cfg.Data.SignalsGlob))
	return col
}

func isSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}
