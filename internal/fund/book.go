// Package fund keeps the cash book of a single simulation run.
package fund

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"SignalBacktest/internal/model"
)

// Book tracks cash, reserved capital and the open positions of one run.
// All money is held as decimal so the accounting identity holds exactly;
// floats only appear at the boundary. A Book has a single owner and is not
// safe for concurrent use.
type Book struct {
	initial   decimal.Decimal
	cash      decimal.Decimal
	reserved  decimal.Decimal
	committed decimal.Decimal // closing commissions owed by open positions
	open      []*entry
	perTicker map[string]int
}

type entry struct {
	pos        *model.Position
	cost       decimal.Decimal
	commission decimal.Decimal
}

// NewBook starts a book with initialCapital in cash.
func NewBook(initialCapital float64) *Book {
	c := decimal.NewFromFloat(initialCapital)
	return &Book{initial: c, cash: c, perTicker: make(map[string]int)}
}

// Initial returns the starting capital.
func (b *Book) Initial() float64 { return b.initial.InexactFloat64() }

// Cash is the unreserved cash balance, including commissions set aside for open positions.
func (b *Book) Cash() float64 { return b.cash.InexactFloat64() }

// Reserved is the capital locked in open positions at entry cost.
func (b *Book) Reserved() float64 { return b.reserved.InexactFloat64() }

// Free is the cash a new entry may spend.
func (b *Book) Free() float64 { return b.cash.Sub(b.committed).InexactFloat64() }

// OpenCount is the number of open positions.
func (b *Book) OpenCount() int { return len(b.open) }

// OpenIn is the number of open positions in ticker.
func (b *Book) OpenIn(ticker string) int { return b.perTicker[ticker] }

// Positions returns the open positions in the order they were opened.
func (b *Book) Positions() []*model.Position {
	out := make([]*model.Position, len(b.open))
	for i, e := range b.open {
		out[i] = e.pos
	}
	return out
}

// Open debits the cost of p from cash and reserves it. The round-trip
// commission is set aside so the close can never drive cash negative.
func (b *Book) Open(p *model.Position, commission float64) error {
	if p.Quantity <= 0 {
		return fmt.Errorf("%s: quantity %d: %w", p.Ticker, p.Quantity, model.ErrInvalidSizing)
	}
	cost := decimal.NewFromFloat(p.EntryPrice).Mul(decimal.NewFromInt(p.Quantity))
	comm := decimal.NewFromFloat(commission)
	free := b.cash.Sub(b.committed)
	if cost.Add(comm).GreaterThan(free) {
		return fmt.Errorf("%s: cost %s + commission %s exceeds free cash %s: %w",
			p.Ticker, cost.StringFixed(2), comm.StringFixed(2), free.StringFixed(2), model.ErrInsufficientCapital)
	}
	b.cash = b.cash.Sub(cost)
	b.reserved = b.reserved.Add(cost)
	b.committed = b.committed.Add(comm)
	p.Reserved = cost.InexactFloat64()
	b.open = append(b.open, &entry{pos: p, cost: cost, commission: comm})
	b.perTicker[p.Ticker]++
	return nil
}

// Close sells p at exitPrice on date, releases its reservation and returns the trade.
func (b *Book) Close(p *model.Position, exitPrice float64, date time.Time, reason model.ExitReason) (model.Trade, error) {
	i := b.find(p)
	if i < 0 {
		return model.Trade{}, fmt.Errorf("%s: position not open", p.Ticker)
	}
	e := b.open[i]
	qty := decimal.NewFromInt(p.Quantity)
	proceeds := decimal.NewFromFloat(exitPrice).Mul(qty)
	gross := proceeds.Sub(e.cost)
	net := gross.Sub(e.commission)

	b.reserved = b.reserved.Sub(e.cost)
	b.committed = b.committed.Sub(e.commission)
	b.cash = b.cash.Add(proceeds).Sub(e.commission)

	b.open = append(b.open[:i], b.open[i+1:]...)
	b.perTicker[p.Ticker]--
	if b.perTicker[p.Ticker] == 0 {
		delete(b.perTicker, p.Ticker)
	}
	return model.Trade{
		Ticker:     p.Ticker,
		SignalDate: p.SignalDate,
		EntryDate:  p.EntryDate,
		ExitDate:   date,
		EntryPrice: p.EntryPrice,
		ExitPrice:  exitPrice,
		Quantity:   p.Quantity,
		GrossPnL:   gross.InexactFloat64(),
		Commission: e.commission.InexactFloat64(),
		NetPnL:     net.InexactFloat64(),
		ExitReason: reason,
	}, nil
}

// Drop removes p without recording a trade. Its reservation and commission
// are released back to cash at entry cost.
func (b *Book) Drop(p *model.Position) {
	i := b.find(p)
	if i < 0 {
		return
	}
	e := b.open[i]
	b.reserved = b.reserved.Sub(e.cost)
	b.committed = b.committed.Sub(e.commission)
	b.cash = b.cash.Add(e.cost)
	b.open = append(b.open[:i], b.open[i+1:]...)
	b.perTicker[p.Ticker]--
	if b.perTicker[p.Ticker] == 0 {
		delete(b.perTicker, p.Ticker)
	}
}

// Mark values every open position with mark and returns the day's sample.
// mark returns the price to value a position at.
func (b *Book) Mark(date time.Time, mark func(*model.Position) float64) model.EquitySample {
	unrealized := decimal.Zero
	for _, e := range b.open {
		value := decimal.NewFromFloat(mark(e.pos)).Mul(decimal.NewFromInt(e.pos.Quantity))
		unrealized = unrealized.Add(value.Sub(e.cost))
	}
	equity := b.cash.Add(b.reserved).Add(unrealized)
	return model.EquitySample{
		Date:       date,
		Cash:       b.cash.InexactFloat64(),
		Reserved:   b.reserved.InexactFloat64(),
		Unrealized: unrealized.InexactFloat64(),
		Equity:     equity.InexactFloat64(),
		Open:       len(b.open),
	}
}

func (b *Book) find(p *model.Position) int {
	for i, e := range b.open {
		if e.pos == p {
			return i
		}
	}
	return -1
}
