package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"SignalBacktest/internal/collector"
	"SignalBacktest/internal/config"
	"SignalBacktest/internal/notifier"
	"SignalBacktest/internal/recorder"
	"SignalBacktest/internal/runner"
	"SignalBacktest/internal/scheduler"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	logger.Info("backtest daemon starting")

	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("config validation", zap.Error(err))
	}
	ec, err := cfg.Engine()
	if err != nil {
		logger.Fatal("engine config", zap.Error(err))
	}

	col := collector.FromSources(collector.Sources{
		PricesCSV:    cfg.Data.Prices,
		PricesSQLite: cfg.Data.PricesSQLite,
		PriceTable:   cfg.Data.PriceTable,
		DeriveATR:    cfg.Backtest.DeriveATR,
	}, logger)
	logger.Info("data source", zap.String("prices", col.Prices.Name()), zap.String("signals", cfg.Data.SignalsGlob))

	// Init recorder
	var rec recorder.Recorder
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, logger)
		if err != nil {
			logger.Warn("init sqlite recorder failed, using noop", zap.Error(err))
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
			defer sr.Close()
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}

	// Telegram is optional for the daemon; without it batches only log.
	var tn *notifier.TelegramNotifier
	if err := cfg.ValidateTelegram(); err != nil {
		logger.Warn("telegram disabled", zap.Error(err))
	} else {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, logger)
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	run := runner.New(col, ec, runner.Options{OutputDir: cfg.Output.Dir, MaxParallel: cfg.Runner.MaxParallel}, rec, logger)

	var n scheduler.Notifier
	if tn != nil {
		n = tn
	}
	sched := scheduler.NewScheduler(ctx, run, n, rec, cfg.Data.SignalsGlob, logger)
	if err := sched.RegisterBatch(cfg.Schedule.BatchCron); err != nil {
		logger.Fatal("register cron task", zap.Error(err))
	}
	sched.Start()
	defer sched.Stop()

	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand)
		logger.Info("telegram polling started")
	}

	// Optional: run immediately on start
	if os.Getenv("RUN_ON_START") == "true" {
		logger.Info("RUN_ON_START enabled, executing batch now")
		go sched.RunNow()
	}

	logger.Info("backtest daemon is running", zap.String("cron", cfg.Schedule.BatchCron))

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutdown signal received, stopping")
	cancel()
}
