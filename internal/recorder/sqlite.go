package recorder

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"SignalBacktest/internal/model"
)

// SQLiteRecorder persists run history to a SQLite database.
type SQLiteRecorder struct {
	db     *sql.DB
	mu     sync.Mutex
	logger *zap.Logger
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, logger *zap.Logger) (*SQLiteRecorder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL so dashboards can read while a batch writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, logger: logger}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.Info("sqlite recorder opened", zap.String("path", dbPath))
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id           TEXT PRIMARY KEY,
			started_at       INTEGER NOT NULL,
			signal_file      TEXT,
			mode             TEXT,
			hold_period      INTEGER,
			params           TEXT,
			n_trades         INTEGER,
			total_pnl        REAL,
			total_return     REAL,
			win_rate         REAL,
			max_drawdown     REAL,
			max_drawdown_pct REAL,
			final_equity     REAL,
			profit_factor    REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at)`,

		`CREATE TABLE IF NOT EXISTS trades (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id      TEXT NOT NULL,
			ticker      TEXT,
			signal_date TEXT,
			entry_date  TEXT,
			exit_date   TEXT,
			entry_price REAL,
			exit_price  REAL,
			quantity    INTEGER,
			gross_pnl   REAL,
			commission  REAL,
			net_pnl     REAL,
			exit_reason TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_run ON trades(run_id)`,

		`CREATE TABLE IF NOT EXISTS equity (
			run_id         TEXT NOT NULL,
			date           TEXT NOT NULL,
			cash           REAL,
			reserved       REAL,
			unrealized     REAL,
			equity         REAL,
			open_positions INTEGER,
			PRIMARY KEY (run_id, date)
		)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// RecordRun stores the run row, its ledger and its equity curve in one transaction.
func (r *SQLiteRecorder) RecordRun(rec *RunRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	rep := rec.Report
	if _, err := tx.Exec(`INSERT INTO runs
		(run_id, started_at, signal_file, mode, hold_period, params,
		 n_trades, total_pnl, total_return, win_rate, max_drawdown, max_drawdown_pct,
		 final_equity, profit_factor)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		rec.RunID, rec.StartedAt.Unix(), rec.SignalFile, rec.Mode, rec.HoldPeriod, rec.Params,
		rep.NTrades, rep.TotalPnL, rep.TotalReturn, rep.WinRate, rep.MaxDrawdown, rep.MaxDrawdownPct,
		rep.FinalEquity, rep.ProfitFactor,
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	tradeStmt, err := tx.Prepare(`INSERT INTO trades
		(run_id, ticker, signal_date, entry_date, exit_date, entry_price, exit_price,
		 quantity, gross_pnl, commission, net_pnl, exit_reason)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare trades: %w", err)
	}
	defer tradeStmt.Close()
	for _, t := range rec.Trades {
		if _, err := tradeStmt.Exec(rec.RunID, t.Ticker,
			model.FormatDay(t.SignalDate), model.FormatDay(t.EntryDate), model.FormatDay(t.ExitDate),
			t.EntryPrice, t.ExitPrice, t.Quantity, t.GrossPnL, t.Commission, t.NetPnL, string(t.ExitReason),
		); err != nil {
			return fmt.Errorf("insert trade: %w", err)
		}
	}

	eqStmt, err := tx.Prepare(`INSERT INTO equity
		(run_id, date, cash, reserved, unrealized, equity, open_positions)
		VALUES (?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare equity: %w", err)
	}
	defer eqStmt.Close()
	for _, s := range rec.Equity {
		if _, err := eqStmt.Exec(rec.RunID, model.FormatDay(s.Date), s.Cash, s.Reserved, s.Unrealized, s.Equity, s.Open); err != nil {
			return fmt.Errorf("insert equity: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// LastRuns returns up to limit runs, newest first.
func (r *SQLiteRecorder) LastRuns(limit int) ([]RunSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.Query(`SELECT run_id, started_at, signal_file, mode,
		n_trades, total_pnl, total_return, win_rate, max_drawdown
		FROM runs ORDER BY started_at DESC, run_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var s RunSummary
		var started int64
		if err := rows.Scan(&s.RunID, &started, &s.SignalFile, &s.Mode,
			&s.NTrades, &s.TotalPnL, &s.TotalReturn, &s.WinRate, &s.MaxDrawdown); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		s.StartedAt = time.Unix(started, 0).UTC()
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	r.logger.Info("closing sqlite recorder")
	return r.db.Close()
}
