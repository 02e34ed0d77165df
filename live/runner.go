// Package live drives a grid cycle against a broker session: prices come in
// on a channel, orders go out through the session and fills come back as
// broker events.
package live

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rustyeddy/gridtrader/broker"
	"github.com/rustyeddy/gridtrader/events"
	"github.com/rustyeddy/gridtrader/fill"
	"github.com/rustyeddy/gridtrader/grid"
	"github.com/rustyeddy/gridtrader/ledger"
	"github.com/rustyeddy/gridtrader/market"
	"github.com/rustyeddy/gridtrader/metrics"
	"github.com/shopspring/decimal"
)

// ErrSessionClosed is returned by Run when the session's event channel
// closes.
var ErrSessionClosed = errors.New("live: broker session closed")

type Runner struct {
	Session broker.Session
	Cycle   *grid.Cycle
	Ledger  *ledger.Ledger
	Sink    events.Sink
	Logger  *slog.Logger

	// AutoStartTrigger holds a WAITING cycle until a bar's intraday range in
	// percent reaches it. Unset starts on the first price.
	AutoStartTrigger decimal.NullDecimal

	working map[string]workingOrder
}

type workingOrder struct {
	index int
	leg   fill.Leg
}

func (r *Runner) check() error {
	if r.Session == nil {
		return fmt.Errorf("live: Session is required")
	}
	if r.Cycle == nil {
		return fmt.Errorf("live: Cycle is required")
	}
	if r.Ledger == nil {
		return fmt.Errorf("live: Ledger is required")
	}
	if r.Sink == nil {
		r.Sink = events.Discard
	}
	if r.Logger == nil {
		r.Logger = slog.Default()
	}
	if r.working == nil {
		r.working = make(map[string]workingOrder)
	}
	return nil
}

// Run processes prices and broker events until ctx is done or prices closes.
func (r *Runner) Run(ctx context.Context, prices <-chan market.Candle) error {
	if err := r.check(); err != nil {
		return err
	}
	evs := r.Session.Events()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c, ok := <-prices:
			if !ok {
				return nil
			}
			if err := r.OnPrice(ctx, c); err != nil {
				return err
			}
		case ev, ok := <-evs:
			if !ok {
				return ErrSessionClosed
			}
			if err := r.HandleEvent(ev); err != nil {
				return err
			}
		}
	}
}

// OnPrice starts the cycle when its trigger is met and places orders for
// every level whose threshold the close crossed.
func (r *Runner) OnPrice(ctx context.Context, c market.Candle) error {
	if err := r.check(); err != nil {
		return err
	}
	price := c.Close

	if q, ok := r.Session.(broker.Quoter); ok {
		if err := q.SetPrice(ctx, r.Cycle.Symbol, price); err != nil {
			return err
		}
	}

	if r.Cycle.State == grid.Waiting && r.triggered(c) {
		if err := r.moveCycle(r.Cycle.Start, c); err != nil {
			return err
		}
		r.Logger.Info("cycle started", "cycle", r.Cycle.ID, "price", price)
	}

	if r.Cycle.State == grid.Running {
		for i := 0; i < r.Cycle.Len(); i++ {
			lv := r.Cycle.Level(i)
			switch lv.Status {
			case grid.Planned:
				if r.Cycle.ShouldEnter(i, price, r.busy()) {
					if err := r.placeEntry(ctx, i, c); err != nil {
						return err
					}
				}
			case grid.EntryFilled:
				if reason, ok := r.Cycle.ShouldExit(i, price); ok {
					if err := r.placeExit(ctx, i, reason, c); err != nil {
						return err
					}
				}
			}
		}
	}

	r.Ledger.Mark(r.Cycle.Symbol, price, c.Time)
	return nil
}

// busy reports whether a position is open or an entry is working, which
// blocks further entries under the single position rule.
func (r *Runner) busy() bool {
	if r.Ledger.HasOpenPosition() {
		return true
	}
	for _, w := range r.working {
		if w.leg == fill.Entry {
			return true
		}
	}
	return false
}

func (r *Runner) triggered(c market.Candle) bool {
	if !r.AutoStartTrigger.Valid {
		return true
	}
	return c.RangePct().GreaterThanOrEqual(r.AutoStartTrigger.Decimal)
}

func (r *Runner) placeEntry(ctx context.Context, i int, c market.Candle) error {
	lv := r.Cycle.Level(i)
	o := r.order(i, broker.EntrySide(r.Cycle.Side), lv.PendingEntryQty(), lv.EntryPrice, c)

	id, err := r.Session.PlaceOrder(ctx, o)
	if err != nil {
		return fmt.Errorf("live: place entry for level %d: %w", i, err)
	}
	r.working[id] = workingOrder{index: i, leg: fill.Entry}
	if err := lv.PlaceEntry(id); err != nil {
		return err
	}
	r.Logger.Info("entry placed", "cycle", r.Cycle.ID, "level", i, "order", id, "limit", lv.EntryPrice)
	r.publishLevel(i, grid.Planned, c.Close, c, "")
	return nil
}

func (r *Runner) placeExit(ctx context.Context, i int, reason grid.ExitReason, c market.Candle) error {
	lv := r.Cycle.Level(i)
	limit := lv.ExitPrice
	if reason == grid.ExitGuardian {
		limit = lv.GuardianPrice.Decimal
	}
	o := r.order(i, broker.ExitSide(r.Cycle.Side), lv.PendingExitQty(), limit, c)

	id, err := r.Session.PlaceOrder(ctx, o)
	if err != nil {
		return fmt.Errorf("live: place exit for level %d: %w", i, err)
	}
	r.working[id] = workingOrder{index: i, leg: fill.Exit}
	if err := lv.PlaceExit(id); err != nil {
		return err
	}
	r.Logger.Info("exit placed", "cycle", r.Cycle.ID, "level", i, "order", id, "limit", limit, "reason", reason)
	r.publishLevel(i, grid.EntryFilled, c.Close, c, reason)
	return nil
}

func (r *Runner) order(i int, side broker.OrderSide, qty int64, limit decimal.Decimal, c market.Candle) broker.Order {
	return broker.Order{
		CycleID:    r.Cycle.ID,
		LevelIndex: i,
		Symbol:     r.Cycle.Symbol,
		Side:       side,
		Type:       broker.Limit,
		Quantity:   qty,
		LimitPrice: decimal.NewNullDecimal(limit),
		Status:     broker.StatusNew,
		CreatedAt:  c.Time,
	}
}

// HandleEvent books the fill carried by ev and advances the level. Orders
// that end without completing put the level back: an entry with nothing
// filled returns to PLANNED, an exit returns to ENTRY_FILLED.
func (r *Runner) HandleEvent(ev broker.Event) error {
	if err := r.check(); err != nil {
		return err
	}
	w, ok := r.working[ev.OrderID]
	if !ok {
		r.Logger.Debug("event for unknown order", "order", ev.OrderID, "status", ev.Status)
		return nil
	}
	lv := r.Cycle.Level(w.index)
	from := lv.Status

	if ev.Trade != nil {
		booked, err := r.Ledger.Apply(*ev.Trade)
		if err != nil {
			return fmt.Errorf("live: book fill of %s: %w", ev.OrderID, err)
		}
		if w.leg == fill.Entry {
			err = lv.FillEntry(booked.Quantity, booked.ExecutedAt)
		} else {
			err = lv.FillExit(booked.Quantity, booked.ExecutedAt)
		}
		if err != nil {
			return err
		}
		metrics.TradesTotal.WithLabelValues(string(booked.Side)).Inc()
		r.Sink.Publish(events.TradeExecuted{CycleID: r.Cycle.ID, Index: w.index, Trade: booked})
	}

	if ev.Status.Terminal() {
		delete(r.working, ev.OrderID)
		var err error
		if w.leg == fill.Entry {
			err = lv.SettleEntry()
		} else {
			err = lv.SettleExit()
		}
		if err != nil {
			return err
		}
		if ev.Status != broker.StatusFilled {
			r.Logger.Info("order ended unfilled", "order", ev.OrderID, "status", ev.Status, "level", w.index)
		}
	}

	if lv.Status != from {
		r.Sink.Publish(events.LevelStateChanged{
			CycleID: r.Cycle.ID,
			Index:   w.index,
			From:    from,
			To:      lv.Status,
			Price:   tradePrice(ev),
			Time:    ev.Time,
		})
		if lv.Status == grid.Done {
			metrics.LevelsCompleted.Inc()
		}
	}

	if r.Cycle.State == grid.Running && r.Cycle.AllDone() {
		from := r.Cycle.State
		if err := r.Cycle.Complete(); err != nil {
			return err
		}
		r.Sink.Publish(events.CycleStateChanged{CycleID: r.Cycle.ID, From: from, To: r.Cycle.State, Time: ev.Time})
		r.Logger.Info("cycle completed", "cycle", r.Cycle.ID, "capital", r.Ledger.Capital())
	}
	return nil
}

// Stop cancels every working order, handles session events until each of
// them reported a terminal status, then stops the cycle. ctx bounds the
// wait.
func (r *Runner) Stop(ctx context.Context) error {
	if err := r.check(); err != nil {
		return err
	}
	var errs []error
	for id := range r.working {
		if _, err := r.Session.CancelOrder(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("cancel %s: %w", id, err))
		}
	}
	if len(errs) == 0 {
		if err := r.drain(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if r.Cycle.State == grid.Running || r.Cycle.State == grid.Paused {
		from := r.Cycle.State
		if err := r.Cycle.Stop(); err != nil {
			errs = append(errs, err)
		} else {
			r.Sink.Publish(events.CycleStateChanged{CycleID: r.Cycle.ID, From: from, To: r.Cycle.State})
		}
	}
	return errors.Join(errs...)
}

// drain handles events until no order is working. A fill that raced the
// cancel is still booked.
func (r *Runner) drain(ctx context.Context) error {
	evs := r.Session.Events()
	for len(r.working) > 0 {
		select {
		case <-ctx.Done():
			return fmt.Errorf("live: %d order(s) still working: %w", len(r.working), ctx.Err())
		case ev, ok := <-evs:
			if !ok {
				return ErrSessionClosed
			}
			if err := r.HandleEvent(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// Working returns the number of orders waiting at the broker.
func (r *Runner) Working() int { return len(r.working) }

func (r *Runner) moveCycle(move func() error, c market.Candle) error {
	from := r.Cycle.State
	if err := move(); err != nil {
		return err
	}
	r.Sink.Publish(events.CycleStateChanged{CycleID: r.Cycle.ID, From: from, To: r.Cycle.State, Time: c.Time})
	return nil
}

func (r *Runner) publishLevel(i int, from grid.LevelStatus, price decimal.Decimal, c market.Candle, reason grid.ExitReason) {
	r.Sink.Publish(events.LevelStateChanged{
		CycleID: r.Cycle.ID,
		Index:   i,
		From:    from,
		To:      r.Cycle.Level(i).Status,
		Price:   price,
		Time:    c.Time,
		Reason:  reason,
	})
}

func tradePrice(ev broker.Event) decimal.Decimal {
	if ev.Trade != nil {
		return ev.Trade.Price
	}
	return ev.Order.LimitPrice.Decimal
}
