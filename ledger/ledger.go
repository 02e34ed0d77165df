// Package ledger keeps capital and per-symbol positions for one cycle run.
package ledger

import (
	"fmt"
	"sort"
	"time"

	"github.com/rustyeddy/gridtrader/broker"
	"github.com/rustyeddy/gridtrader/grid"
	"github.com/shopspring/decimal"
)

// Position is the aggregate holding in one symbol.
type Position struct {
	Symbol          string          `json:"symbol"`
	Side            grid.Side       `json:"side"`
	Quantity        int64           `json:"quantity"`
	AvgEntryPrice   decimal.Decimal `json:"avg_entry_price"`
	MarkPrice       decimal.Decimal `json:"mark_price"`
	RealizedPnL     decimal.Decimal `json:"realized_pnl"`
	UnrealizedPnL   decimal.Decimal `json:"unrealized_pnl"`
	TotalCommission decimal.Decimal `json:"total_commission"`
	OpenedAt        time.Time       `json:"opened_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	ClosedAt        time.Time       `json:"closed_at"`

	// entry costs still attributed to the open quantity
	entryCosts decimal.Decimal
}

// Open reports whether the position holds any quantity.
func (p Position) Open() bool { return p.Quantity > 0 }

func (p Position) direction() decimal.Decimal {
	if p.Side == grid.Short {
		return decimal.NewFromInt(-1)
	}
	return decimal.NewFromInt(1)
}

// MarketValue is the signed value of the holding at the mark price; a short
// holding is a liability.
func (p Position) MarketValue() decimal.Decimal {
	price := p.MarkPrice
	if price.IsZero() {
		price = p.AvgEntryPrice
	}
	return price.Mul(decimal.NewFromInt(p.Quantity)).Mul(p.direction())
}

// Ledger is not safe for concurrent use. Each cycle owns its own.
type Ledger struct {
	initial    decimal.Decimal
	capital    decimal.Decimal
	commission decimal.Decimal
	realized   decimal.Decimal
	positions  map[string]*Position
}

// New returns a ledger holding initialCapital in cash.
func New(initialCapital decimal.Decimal) *Ledger {
	return &Ledger{
		initial:   initialCapital,
		capital:   initialCapital,
		positions: make(map[string]*Position),
	}
}

func (l *Ledger) InitialCapital() decimal.Decimal { return l.initial }

// Capital is the cash balance. It may go negative.
func (l *Ledger) Capital() decimal.Decimal { return l.capital }

// Commission is the total of commission and fees paid.
func (l *Ledger) Commission() decimal.Decimal { return l.commission }

// RealizedPnL sums realized results across symbols.
func (l *Ledger) RealizedPnL() decimal.Decimal { return l.realized }

// Equity is capital plus the market value of open positions.
func (l *Ledger) Equity() decimal.Decimal {
	eq := l.capital
	for _, p := range l.positions {
		if p.Open() {
			eq = eq.Add(p.MarketValue())
		}
	}
	return eq
}

// HasOpenPosition reports whether any symbol holds quantity.
func (l *Ledger) HasOpenPosition() bool {
	for _, p := range l.positions {
		if p.Open() {
			return true
		}
	}
	return false
}

// Position returns a copy of the position in symbol.
func (l *Ledger) Position(symbol string) (Position, bool) {
	p, ok := l.positions[symbol]
	if !ok {
		return Position{}, false
	}
	return *p, true
}

// Positions returns copies of all positions ordered by symbol.
func (l *Ledger) Positions() []Position {
	out := make([]Position, 0, len(l.positions))
	for _, p := range l.positions {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Apply books t. Capital moves by the trade's cash flow. A trade on the side
// of the open position extends it at the quantity weighted average price; an
// opposite trade reduces it and realizes
//
//	dir*(price-avg)*closed - exit costs - entry costs*closed/qty
//
// so a full round trip realizes the price difference less both commissions.
// Quantity beyond the open position starts a new position on the other side.
// The returned trade carries RealizedPnL when it reduced a position.
func (l *Ledger) Apply(t broker.Trade) (broker.Trade, error) {
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("ledger: %w", err)
	}

	l.capital = l.capital.Add(t.CashFlow())
	l.commission = l.commission.Add(t.Costs())

	side := grid.Long
	if t.Side == broker.Sell {
		side = grid.Short
	}

	p, ok := l.positions[t.Symbol]
	if !ok {
		p = &Position{Symbol: t.Symbol}
		l.positions[t.Symbol] = p
	}
	p.TotalCommission = p.TotalCommission.Add(t.Costs())
	p.UpdatedAt = t.ExecutedAt

	if !p.Open() {
		l.open(p, side, t.Quantity, t.Price, t.Costs(), t.ExecutedAt)
		return t, nil
	}

	if p.Side == side {
		prev := decimal.NewFromInt(p.Quantity)
		add := decimal.NewFromInt(t.Quantity)
		p.AvgEntryPrice = p.AvgEntryPrice.Mul(prev).Add(t.Price.Mul(add)).Div(prev.Add(add))
		p.Quantity += t.Quantity
		p.entryCosts = p.entryCosts.Add(t.Costs())
		return t, nil
	}

	closed := min(t.Quantity, p.Quantity)
	closedD := decimal.NewFromInt(closed)
	tradeQty := decimal.NewFromInt(t.Quantity)

	exitCosts := t.Costs().Mul(closedD).Div(tradeQty)
	entryCosts := p.entryCosts.Mul(closedD).Div(decimal.NewFromInt(p.Quantity))

	pnl := t.Price.Sub(p.AvgEntryPrice).Mul(closedD).Mul(p.direction()).
		Sub(exitCosts).Sub(entryCosts)

	p.RealizedPnL = p.RealizedPnL.Add(pnl)
	l.realized = l.realized.Add(pnl)
	p.entryCosts = p.entryCosts.Sub(entryCosts)
	p.Quantity -= closed
	t.RealizedPnL = decimal.NewNullDecimal(pnl)

	if p.Quantity == 0 {
		p.ClosedAt = t.ExecutedAt
		p.UnrealizedPnL = decimal.Zero
		p.entryCosts = decimal.Zero
	} else {
		p.UnrealizedPnL = l.unrealized(p)
	}

	if rest := t.Quantity - closed; rest > 0 {
		l.open(p, side, rest, t.Price, t.Costs().Sub(exitCosts), t.ExecutedAt)
	}
	return t, nil
}

func (l *Ledger) open(p *Position, side grid.Side, qty int64, price, costs decimal.Decimal, at time.Time) {
	p.Side = side
	p.Quantity = qty
	p.AvgEntryPrice = price
	p.MarkPrice = price
	p.UnrealizedPnL = decimal.Zero
	p.entryCosts = costs
	p.OpenedAt = at
	p.ClosedAt = time.Time{}
}

// Mark revalues the open position in symbol at price.
func (l *Ledger) Mark(symbol string, price decimal.Decimal, at time.Time) {
	p, ok := l.positions[symbol]
	if !ok || !p.Open() {
		return
	}
	p.MarkPrice = price
	p.UpdatedAt = at
	p.UnrealizedPnL = l.unrealized(p)
}

func (l *Ledger) unrealized(p *Position) decimal.Decimal {
	price := p.MarkPrice
	if price.IsZero() {
		return decimal.Zero
	}
	return price.Sub(p.AvgEntryPrice).Mul(decimal.NewFromInt(p.Quantity)).Mul(p.direction())
}
