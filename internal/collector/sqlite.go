package collector

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	_ "modernc.org/sqlite"

	"SignalBacktest/internal/calculator"
	"SignalBacktest/internal/model"
)

// DefaultPriceTable is the table SQLiteFetcher reads when none is set.
const DefaultPriceTable = "prices"

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLiteFetcher reads the price table from a SQLite database with columns
// date, ticker, open, high, low, close, adj_close, volume and atr_14.
// Every column except date, ticker and close may be NULL.
type SQLiteFetcher struct {
	Path  string
	Table string
}

// NewSQLiteFetcher creates a fetcher for the default price table in dbPath.
func NewSQLiteFetcher(dbPath string) *SQLiteFetcher {
	return &SQLiteFetcher{Path: dbPath, Table: DefaultPriceTable}
}

func (f *SQLiteFetcher) Name() string { return "sqlite" }

// FetchPrices loads every row of the price table.
func (f *SQLiteFetcher) FetchPrices(ctx context.Context) ([]model.PricePoint, error) {
	table := f.Table
	if table == "" {
		table = DefaultPriceTable
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid price table name %q", table)
	}

	db, err := sql.Open("sqlite", f.Path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, `SELECT date, ticker, open, high, low, close, adj_close, volume, atr_14
		FROM `+table+` ORDER BY ticker, date`)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	var points []model.PricePoint
	row := 0
	for rows.Next() {
		row++
		var date, ticker string
		var open, high, low, closeVal, adj, vol, atr sql.NullFloat64
		if err := rows.Scan(&date, &ticker, &open, &high, &low, &closeVal, &adj, &vol, &atr); err != nil {
			return nil, fmt.Errorf("scan %s row %d: %w", table, row, err)
		}
		d, err := model.ParseDay(date)
		if err != nil {
			return nil, &model.MalformedInputError{File: f.Path, Row: row, Field: "date", Reason: "invalid date"}
		}
		if !closeVal.Valid || !calculator.IsFinite(closeVal.Float64) {
			return nil, &model.MalformedInputError{File: f.Path, Row: row, Field: "close", Reason: "close must be a finite number"}
		}
		p := model.PricePoint{
			Ticker:   strings.ToUpper(strings.TrimSpace(ticker)),
			Date:     d,
			Open:     open.Float64,
			HasOpen:  open.Valid,
			High:     orDefault(high, closeVal.Float64),
			Low:      orDefault(low, closeVal.Float64),
			Close:    closeVal.Float64,
			AdjClose: adj.Float64,
			Volume:   vol.Float64,
		}
		if atr.Valid && calculator.IsFinite(atr.Float64) {
			p.ATR, p.HasATR = atr.Float64, true
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}
	return points, nil
}

func orDefault(v sql.NullFloat64, def float64) float64 {
	if v.Valid {
		return v.Float64
	}
	return def
}
