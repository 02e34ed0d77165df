// Package paper is a simulated broker session. One goroutine owns every
// order; callers talk to it over a request channel, so a cancel and a fill
// evaluation for the same order can never interleave.
package paper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rustyeddy/gridtrader/broker"
	"github.com/rustyeddy/gridtrader/fill"
	"github.com/rustyeddy/gridtrader/metrics"
	"github.com/shopspring/decimal"
)

const (
	DefaultPollInterval = 500 * time.Millisecond
	DefaultMaxAttempts  = 10
	DefaultEventBuffer  = 256
)

var (
	ErrClosed       = errors.New("paper: broker is not running")
	ErrUnknownOrder = errors.New("paper: unknown order")
	ErrNoPrice      = errors.New("paper: no price for symbol")
)

// Config tunes the broker. Zero values take the defaults above.
type Config struct {
	PollInterval time.Duration
	MaxAttempts  int
	EventBuffer  int
}

// Broker implements broker.Session and broker.Quoter.
type Broker struct {
	cfg    Config
	model  fill.Model
	log    *slog.Logger
	now    func() time.Time
	reqs   chan request
	events chan broker.Event
	done   chan struct{}

	// owned by Run
	orders map[string]*working
	order  []string
	prices map[string]decimal.Decimal
	outbox []broker.Event
}

type working struct {
	order    broker.Order
	attempts int
}

type requestKind int

const (
	placeReq requestKind = iota
	cancelReq
	priceReq
	lookupReq
)

type request struct {
	kind   requestKind
	order  broker.Order
	id     string
	symbol string
	price  decimal.Decimal
	reply  chan response
}

type response struct {
	id    string
	ok    bool
	order broker.Order
	err   error
}

// New returns a broker that fills through model. Call Run before placing
// orders.
func New(cfg Config, model fill.Model, log *slog.Logger) *Broker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = DefaultEventBuffer
	}
	if log == nil {
		log = slog.Default()
	}
	return &Broker{
		cfg:    cfg,
		model:  model,
		log:    log.With("component", "paper"),
		now:    time.Now,
		reqs:   make(chan request),
		events: make(chan broker.Event, cfg.EventBuffer),
		done:   make(chan struct{}),
		orders: make(map[string]*working),
		prices: make(map[string]decimal.Decimal),
	}
}

// Events delivers order status changes. The channel is closed when Run
// returns.
func (b *Broker) Events() <-chan broker.Event { return b.events }

// Run owns the order book until ctx is done.
func (b *Broker) Run(ctx context.Context) error {
	defer close(b.events)
	defer close(b.done)

	tick := time.NewTicker(b.cfg.PollInterval)
	defer tick.Stop()

	for {
		// Undelivered events are queued so the loop never blocks on a slow
		// reader while that reader waits for a reply.
		var out chan broker.Event
		var next broker.Event
		if len(b.outbox) > 0 {
			out = b.events
			next = b.outbox[0]
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-b.reqs:
			req.reply <- b.handle(req)
		case <-tick.C:
			b.poll()
		case out <- next:
			b.outbox = b.outbox[1:]
		}
	}
}

func (b *Broker) call(ctx context.Context, req request) (response, error) {
	req.reply = make(chan response, 1)
	select {
	case b.reqs <- req:
	case <-b.done:
		return response{}, ErrClosed
	case <-ctx.Done():
		return response{}, ctx.Err()
	}
	select {
	case resp := <-req.reply:
		return resp, resp.err
	case <-ctx.Done():
		return response{}, ctx.Err()
	}
}

// PlaceOrder accepts o and returns its broker id. Market orders are resolved
// at once against the last price; limit orders wait for the poll loop.
func (b *Broker) PlaceOrder(ctx context.Context, o broker.Order) (string, error) {
	resp, err := b.call(ctx, request{kind: placeReq, order: o})
	return resp.id, err
}

// CancelOrder cancels a PENDING, PLACED or PARTIAL order. It reports false
// for orders that already reached another state.
func (b *Broker) CancelOrder(ctx context.Context, id string) (bool, error) {
	resp, err := b.call(ctx, request{kind: cancelReq, id: id})
	return resp.ok, err
}

// SetPrice records the market price used by the next evaluation of symbol.
func (b *Broker) SetPrice(ctx context.Context, symbol string, price decimal.Decimal) error {
	_, err := b.call(ctx, request{kind: priceReq, symbol: symbol, price: price})
	return err
}

// Order returns a snapshot of the order with broker id.
func (b *Broker) Order(ctx context.Context, id string) (broker.Order, error) {
	resp, err := b.call(ctx, request{kind: lookupReq, id: id})
	return resp.order, err
}

func (b *Broker) handle(req request) response {
	switch req.kind {
	case placeReq:
		return b.place(req.order)
	case cancelReq:
		return b.cancel(req.id)
	case priceReq:
		if !req.price.IsPositive() {
			return response{err: fmt.Errorf("paper: price for %s must be positive", req.symbol)}
		}
		b.prices[symbolKey(req.symbol)] = req.price
		return response{ok: true}
	case lookupReq:
		w, ok := b.orders[req.id]
		if !ok {
			return response{err: fmt.Errorf("%w: %s", ErrUnknownOrder, req.id)}
		}
		return response{ok: true, order: w.order}
	}
	return response{err: fmt.Errorf("paper: unknown request %d", req.kind)}
}

func (b *Broker) place(o broker.Order) response {
	if err := o.Validate(); err != nil {
		return response{err: err}
	}
	now := b.now()
	if o.Status == "" {
		o.Status = broker.StatusNew
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.BrokerID = "PAPER-" + strings.ToUpper(uuid.NewString()[:8])

	price, havePrice := b.prices[symbolKey(o.Symbol)]
	if o.Type == broker.Market && !havePrice {
		return response{err: fmt.Errorf("%w %s", ErrNoPrice, o.Symbol)}
	}

	if err := o.Transition(broker.StatusPending, now); err != nil {
		return response{err: err}
	}
	w := &working{order: o}
	b.orders[o.BrokerID] = w
	b.order = append(b.order, o.BrokerID)

	b.log.Debug("order accepted", "id", o.BrokerID, "side", o.Side, "type", o.Type, "qty", o.Quantity)

	if o.Type == broker.Market {
		b.evaluate(w, price, now)
		return response{id: o.BrokerID, ok: true}
	}

	if err := w.order.Transition(broker.StatusPlaced, now); err != nil {
		return response{err: err}
	}
	b.emit(w.order, nil, now)
	return response{id: o.BrokerID, ok: true}
}

func (b *Broker) cancel(id string) response {
	w, ok := b.orders[id]
	if !ok {
		return response{err: fmt.Errorf("%w: %s", ErrUnknownOrder, id)}
	}
	if !w.order.CanCancel() {
		return response{ok: false}
	}
	now := b.now()
	if err := w.order.Transition(broker.StatusCancelled, now); err != nil {
		return response{err: err}
	}
	b.emit(w.order, nil, now)
	return response{ok: true}
}

// poll evaluates every working order once, in placement order. An order that
// has used up its attempts without filling expires.
func (b *Broker) poll() {
	now := b.now()
	live := b.order[:0]
	for _, id := range b.order {
		w := b.orders[id]
		if !w.order.Active() {
			continue
		}

		if price, ok := b.prices[symbolKey(w.order.Symbol)]; ok {
			b.evaluate(w, price, now)
		}
		if !w.order.Active() {
			continue
		}

		w.attempts++
		if w.attempts >= b.cfg.MaxAttempts {
			if err := w.order.Transition(broker.StatusExpired, now); err != nil {
				b.log.Error("expire order", "id", id, "err", err)
				continue
			}
			b.log.Info("order expired", "id", id, "filled", w.order.FilledQuantity, "qty", w.order.Quantity)
			b.emit(w.order, nil, now)
			continue
		}
		live = append(live, id)
	}
	b.order = live
}

func (b *Broker) evaluate(w *working, price decimal.Decimal, now time.Time) {
	before := w.order
	filled, err := b.model.Resolve(&w.order, price, now)
	if err != nil {
		b.log.Error("resolve order", "id", w.order.BrokerID, "err", err)
		return
	}
	if !filled {
		return
	}

	fillPrice := price
	if w.order.Type == broker.Limit {
		fillPrice = w.order.LimitPrice.Decimal
	}
	tr := &broker.Trade{
		ID:         uuid.NewString(),
		OrderID:    w.order.BrokerID,
		CycleID:    w.order.CycleID,
		LevelIndex: w.order.LevelIndex,
		Symbol:     w.order.Symbol,
		Side:       w.order.Side,
		Quantity:   w.order.FilledQuantity - before.FilledQuantity,
		Price:      fillPrice,
		Commission: w.order.Commission.Sub(before.Commission),
		ExecutedAt: now,
	}
	b.log.Info("order filled", "id", w.order.BrokerID, "status", w.order.Status, "qty", tr.Quantity, "price", tr.Price)
	b.emit(w.order, tr, now)
}

func (b *Broker) emit(o broker.Order, tr *broker.Trade, at time.Time) {
	metrics.PaperOrders.WithLabelValues(string(o.Status)).Inc()
	b.outbox = append(b.outbox, broker.Event{
		OrderID: o.BrokerID,
		Status:  o.Status,
		Order:   o,
		Trade:   tr,
		Time:    at,
	})
}

func symbolKey(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
