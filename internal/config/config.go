// Package config loads YAML configuration with environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"SignalBacktest/internal/engine"
	"SignalBacktest/internal/model"
	"SignalBacktest/internal/sizing"
	"SignalBacktest/internal/strategy"
)

// Config holds all application configuration.
type Config struct {
	Backtest struct {
		Sizing             sizing.Mode         `yaml:"sizing"`
		HoldPeriod         int                 `yaml:"hold_period"`
		InitialCapital     float64             `yaml:"initial_capital"`
		Commission         float64             `yaml:"commission"`
		Slippage           float64             `yaml:"slippage"`
		RiskFraction       float64             `yaml:"risk_fraction"`
		FallbackStopPct    float64             `yaml:"fallback_stop_pct"`
		EndOfHorizon       engine.EndOfHorizon `yaml:"end_of_horizon"`
		EndDate            string              `yaml:"end_date"`
		MinPredictedReturn *float64            `yaml:"min_predicted_return"`
		DeriveATR          bool                `yaml:"derive_atr"`
	} `yaml:"backtest"`
	Data struct {
		Prices       string `yaml:"prices"`
		PricesSQLite string `yaml:"prices_sqlite"`
		PriceTable   string `yaml:"price_table"`
		SignalsGlob  string `yaml:"signals_glob"`
	} `yaml:"data"`
	Output struct {
		Dir string `yaml:"dir"`
	} `yaml:"output"`
	Runner struct {
		MaxParallel int `yaml:"max_parallel"`
	} `yaml:"runner"`
	Schedule struct {
		BatchCron string `yaml:"batch_cron"`
	} `yaml:"schedule"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("BACKTEST_PRICES"); v != "" {
		cfg.Data.Prices = v
	}
	if v := os.Getenv("BACKTEST_SIGNALS_GLOB"); v != "" {
		cfg.Data.SignalsGlob = v
	}
	if v := os.Getenv("BACKTEST_OUTPUT_DIR"); v != "" {
		cfg.Output.Dir = v
	}
	if v := os.Getenv("BACKTEST_SIZING"); v != "" {
		mode, err := sizing.ParseMode(v)
		if err != nil {
			return nil, fmt.Errorf("BACKTEST_SIZING: %w", err)
		}
		cfg.Backtest.Sizing = mode
	}
	if v := os.Getenv("BACKTEST_MAX_PARALLEL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Runner.MaxParallel = n
		}
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("CRON_BATCH"); v != "" {
		cfg.Schedule.BatchCron = v
	}

	// Defaults
	def := engine.DefaultConfig()
	if cfg.Backtest.HoldPeriod == 0 {
		cfg.Backtest.HoldPeriod = def.HoldPeriod
	}
	if cfg.Backtest.InitialCapital == 0 {
		cfg.Backtest.InitialCapital = def.InitialCapital
	}
	if cfg.Backtest.RiskFraction == 0 {
		cfg.Backtest.RiskFraction = def.RiskFraction
	}
	if cfg.Backtest.FallbackStopPct == 0 {
		cfg.Backtest.FallbackStopPct = def.FallbackStopPct
	}
	if cfg.Backtest.EndOfHorizon == "" {
		cfg.Backtest.EndOfHorizon = def.EndOfHorizon
	}
	if cfg.Data.Prices == "" && cfg.Data.PricesSQLite == "" {
		cfg.Data.Prices = "data/merged_data.csv"
	}
	if cfg.Data.SignalsGlob == "" {
		cfg.Data.SignalsGlob = "data/generated_signals_*.csv"
	}
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = "results"
	}
	if cfg.Runner.MaxParallel == 0 {
		cfg.Runner.MaxParallel = 4
	}
	if cfg.Schedule.BatchCron == "" {
		cfg.Schedule.BatchCron = "0 30 6 * * 1-5"
	}

	return cfg, nil
}

// Validate checks that the backtest parameters and inputs are usable.
func (c *Config) Validate() error {
	if c.Data.Prices == "" && c.Data.PricesSQLite == "" {
		return fmt.Errorf("data.prices or data.prices_sqlite is required")
	}
	if c.Data.SignalsGlob == "" {
		return fmt.Errorf("data.signals_glob is required")
	}
	if c.Runner.MaxParallel < 1 {
		return fmt.Errorf("runner.max_parallel must be at least 1")
	}
	if c.Backtest.EndDate != "" {
		if _, err := model.ParseDay(c.Backtest.EndDate); err != nil {
			return fmt.Errorf("backtest.end_date: %w", err)
		}
	}
	ec, err := c.Engine()
	if err != nil {
		return err
	}
	if err := ec.Validate(); err != nil {
		return fmt.Errorf("backtest: %w", err)
	}
	return nil
}

// ValidateTelegram checks the notifier settings required by the daemon.
func (c *Config) ValidateTelegram() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	if c.Telegram.ChatID == "" {
		return fmt.Errorf("telegram.chat_id is required")
	}
	return nil
}

// Engine converts the backtest block into simulator parameters.
func (c *Config) Engine() (engine.Config, error) {
	b := c.Backtest
	ec := engine.Config{
		Mode:            b.Sizing,
		HoldPeriod:      b.HoldPeriod,
		InitialCapital:  b.InitialCapital,
		Commission:      b.Commission,
		Slippage:        b.Slippage,
		RiskFraction:    b.RiskFraction,
		FallbackStopPct: b.FallbackStopPct,
		EndOfHorizon:    b.EndOfHorizon,
		Filter:          strategy.Filter{MinPredictedReturn: b.MinPredictedReturn},
	}
	if b.EndDate != "" {
		d, err := model.ParseDay(b.EndDate)
		if err != nil {
			return ec, fmt.Errorf("backtest.end_date: %w", err)
		}
		ec.EndDate = d
	}
	return ec, nil
}

