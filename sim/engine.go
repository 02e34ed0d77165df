// Package sim runs a grid template against a historical price series.
//
// The engine is single threaded and performs no I/O. Identical inputs and
// seed produce identical results, ids included.
package sim

import (
	"fmt"
	"time"

	"github.com/rustyeddy/gridtrader/broker"
	"github.com/rustyeddy/gridtrader/events"
	"github.com/rustyeddy/gridtrader/fill"
	"github.com/rustyeddy/gridtrader/grid"
	"github.com/rustyeddy/gridtrader/ledger"
	"github.com/rustyeddy/gridtrader/market"
	"github.com/rustyeddy/gridtrader/perf"
	"github.com/rustyeddy/gridtrader/pkg/id"
	"github.com/shopspring/decimal"
)

// DefaultInitialCapital is used when Options leaves it zero.
var DefaultInitialCapital = decimal.NewFromInt(100000)

type Options struct {
	InitialCapital decimal.Decimal
	// Fill prices executions. Nil means no slippage and no commission.
	Fill fill.Model
	// Seed drives the id sequence.
	Seed int64
	// Sink receives lifecycle events synchronously. Nil discards them.
	Sink events.Sink
	// MultiPosition lifts the strategy wide single open position rule so
	// every level can hold its own position.
	MultiPosition bool
}

type Engine struct {
	opts Options
}

func NewEngine(opts Options) (*Engine, error) {
	if opts.InitialCapital.IsZero() {
		opts.InitialCapital = DefaultInitialCapital
	}
	if opts.InitialCapital.IsNegative() {
		return nil, fmt.Errorf("sim: initial capital must not be negative")
	}
	if opts.Fill == nil {
		m, err := fill.NewSimulated(fill.Config{}, opts.Seed)
		if err != nil {
			return nil, err
		}
		opts.Fill = m
	}
	if opts.Sink == nil {
		opts.Sink = events.Discard
	}
	return &Engine{opts: opts}, nil
}

func (e *Engine) Options() Options { return e.opts }

// run holds the state of one Run call.
type run struct {
	opts   Options
	tmpl   grid.Template
	ids    *id.Sequence
	ledger *ledger.Ledger

	cycle   *grid.Cycle
	retired []grid.Level
	cycles  []CycleSummary
	trades  []broker.Trade
	equity  []perf.EquityPoint
}

// Run drives template t over series and returns the result. The series must
// be non-empty with strictly increasing timestamps.
func (e *Engine) Run(t grid.Template, series market.Series) (*Result, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateSeries(series); err != nil {
		return nil, err
	}

	r := &run{
		opts:   e.opts,
		tmpl:   t,
		ids:    id.NewSequence(e.opts.Seed),
		ledger: ledger.New(e.opts.InitialCapital),
		equity: make([]perf.EquityPoint, 0, len(series)),
	}

	for _, bar := range series {
		if err := r.step(bar); err != nil {
			return nil, err
		}
	}
	return r.result(series), nil
}

func (r *run) step(bar market.Candle) error {
	at := bar.Time

	if r.cycle == nil || (r.cycle.State == grid.Completed && r.tmpl.AutoRestart) {
		if err := r.newCycle(bar); err != nil {
			return err
		}
	}

	if r.cycle.State == grid.Waiting && r.triggered(bar) {
		if err := r.moveCycle(r.cycle.Start, at); err != nil {
			return err
		}
	}

	if r.cycle.State == grid.Running {
		if err := r.evaluate(bar); err != nil {
			return err
		}
	}

	r.ledger.Mark(r.tmpl.Symbol, bar.Close, at)

	if r.cycle.State == grid.Running && r.cycle.AllDone() {
		if err := r.moveCycle(r.cycle.Complete, at); err != nil {
			return err
		}
	}

	r.equity = append(r.equity, perf.EquityPoint{Time: at, Capital: r.ledger.Capital()})
	return nil
}

func (r *run) triggered(bar market.Candle) bool {
	if !r.tmpl.AutoStartTrigger.Valid {
		return true
	}
	return bar.RangePct().GreaterThanOrEqual(r.tmpl.AutoStartTrigger.Decimal)
}

func (r *run) newCycle(bar market.Candle) error {
	if r.cycle != nil {
		r.retire()
	}
	c, err := grid.NewCycle(r.ids.Next(bar.Time), r.tmpl)
	if err != nil {
		return err
	}
	c.SingleOpenPosition = !r.opts.MultiPosition
	r.cycle = c
	return nil
}

func (r *run) retire() {
	c := r.cycle
	r.retired = append(r.retired, c.Levels()...)
	r.cycles = append(r.cycles, summarize(c))
}

func (r *run) moveCycle(move func() error, at time.Time) error {
	from := r.cycle.State
	if err := move(); err != nil {
		return err
	}
	r.opts.Sink.Publish(events.CycleStateChanged{CycleID: r.cycle.ID, From: from, To: r.cycle.State, Time: at})
	return nil
}

// evaluate walks the levels in ascending index. A level entered on this
// observation is not considered for exit until the next one.
func (r *run) evaluate(bar market.Candle) error {
	price := bar.Close
	for i := 0; i < r.cycle.Len(); i++ {
		switch r.cycle.Level(i).Status {
		case grid.Planned:
			if r.cycle.ShouldEnter(i, price, r.ledger.HasOpenPosition()) {
				if err := r.enter(i, price, bar); err != nil {
					return err
				}
			}
		case grid.EntryFilled:
			if reason, ok := r.cycle.ShouldExit(i, price); ok {
				if err := r.exit(i, price, reason, bar); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (r *run) enter(i int, price decimal.Decimal, bar market.Candle) error {
	lv := r.cycle.Level(i)
	side := r.cycle.Side

	tr, err := r.execute(i, broker.EntrySide(side), lv.QtyPlanned, r.opts.Fill.Price(fill.Entry, side, price), bar)
	if err != nil {
		return err
	}
	if err := lv.FillEntry(tr.Quantity, bar.Time); err != nil {
		return err
	}
	r.publishLevel(i, grid.Planned, price, bar, "")
	r.publishTrade(i, tr)
	return nil
}

func (r *run) exit(i int, price decimal.Decimal, reason grid.ExitReason, bar market.Candle) error {
	lv := r.cycle.Level(i)
	side := r.cycle.Side

	tr, err := r.execute(i, broker.ExitSide(side), lv.PendingExitQty(), r.opts.Fill.Price(fill.Exit, side, price), bar)
	if err != nil {
		return err
	}
	if err := lv.FillExit(tr.Quantity, bar.Time); err != nil {
		return err
	}
	r.publishLevel(i, grid.EntryFilled, price, bar, reason)
	r.publishTrade(i, tr)
	return nil
}

func (r *run) execute(i int, side broker.OrderSide, qty int64, price decimal.Decimal, bar market.Candle) (broker.Trade, error) {
	if !price.IsPositive() {
		return broker.Trade{}, &grid.ConfigurationError{
			Field:  "slippage",
			Reason: fmt.Sprintf("pushes the %s fill of level %d at %s to %s", side, i, bar.Time.Format("2006-01-02 15:04"), price),
		}
	}
	tr := broker.Trade{
		ID:         r.ids.Next(bar.Time),
		OrderID:    r.ids.Next(bar.Time),
		CycleID:    r.cycle.ID,
		LevelIndex: i,
		Symbol:     r.tmpl.Symbol,
		Side:       side,
		Quantity:   qty,
		Price:      price,
		Commission: r.opts.Fill.Commission(),
		ExecutedAt: bar.Time,
	}
	booked, err := r.ledger.Apply(tr)
	if err != nil {
		return broker.Trade{}, fmt.Errorf("sim: level %d at %s: %w", i, bar.Time.Format("2006-01-02 15:04"), err)
	}
	r.trades = append(r.trades, booked)
	return booked, nil
}

func (r *run) publishLevel(i int, from grid.LevelStatus, price decimal.Decimal, bar market.Candle, reason grid.ExitReason) {
	r.opts.Sink.Publish(events.LevelStateChanged{
		CycleID: r.cycle.ID,
		Index:   i,
		From:    from,
		To:      r.cycle.Level(i).Status,
		Price:   price,
		Time:    bar.Time,
		Reason:  reason,
	})
}

func (r *run) publishTrade(i int, tr broker.Trade) {
	r.opts.Sink.Publish(events.TradeExecuted{CycleID: r.cycle.ID, Index: i, Trade: tr})
}
