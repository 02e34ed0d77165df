package broker

import (
	"fmt"
	"time"

	"github.com/rustyeddy/gridtrader/grid"
	"github.com/shopspring/decimal"
)

type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

type OrderType string

const (
	Market OrderType = "MARKET"
	Limit  OrderType = "LIMIT"
)

type OrderStatus string

const (
	StatusNew       OrderStatus = "NEW"
	StatusPending   OrderStatus = "PENDING"
	StatusPlaced    OrderStatus = "PLACED"
	StatusPartial   OrderStatus = "PARTIAL"
	StatusFilled    OrderStatus = "FILLED"
	StatusCancelled OrderStatus = "CANCELLED"
	StatusRejected  OrderStatus = "REJECTED"
	StatusExpired   OrderStatus = "EXPIRED"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	StatusNew:     {StatusPending, StatusRejected, StatusCancelled},
	StatusPending: {StatusPlaced, StatusPartial, StatusFilled, StatusRejected, StatusCancelled},
	StatusPlaced:  {StatusPartial, StatusFilled, StatusCancelled, StatusExpired},
	StatusPartial: {StatusPartial, StatusFilled, StatusCancelled, StatusExpired},
}

// Terminal reports whether the order can no longer change.
func (s OrderStatus) Terminal() bool {
	switch s {
	case StatusFilled, StatusCancelled, StatusRejected, StatusExpired:
		return true
	}
	return false
}

// CanTransition reports whether s -> to is allowed.
func (s OrderStatus) CanTransition(to OrderStatus) bool {
	for _, next := range orderTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Order is a request to buy or sell. Once it reaches a terminal status every
// mutating method fails with a *grid.StateError.
type Order struct {
	ID         string              `json:"id"`
	BrokerID   string              `json:"broker_id,omitempty"`
	CycleID    string              `json:"cycle_id,omitempty"`
	LevelIndex int                 `json:"level_index"`
	Symbol     string              `json:"symbol"`
	Side       OrderSide           `json:"side"`
	Type       OrderType           `json:"type"`
	Quantity   int64               `json:"quantity"`
	LimitPrice decimal.NullDecimal `json:"limit_price"`

	Status         OrderStatus     `json:"status"`
	FilledQuantity int64           `json:"filled_quantity"`
	AvgFillPrice   decimal.Decimal `json:"avg_fill_price"`
	Commission     decimal.Decimal `json:"commission"`

	CreatedAt   time.Time `json:"created_at"`
	SubmittedAt time.Time `json:"submitted_at"`
	FilledAt    time.Time `json:"filled_at"`
	CancelledAt time.Time `json:"cancelled_at"`
}

// Validate checks the static fields of a new order.
func (o Order) Validate() error {
	if o.Symbol == "" {
		return fmt.Errorf("order: symbol is required")
	}
	if o.Side != Buy && o.Side != Sell {
		return fmt.Errorf("order: side must be BUY or SELL, got %q", o.Side)
	}
	if o.Quantity <= 0 {
		return fmt.Errorf("order: quantity must be positive, got %d", o.Quantity)
	}
	switch o.Type {
	case Market:
	case Limit:
		if !o.LimitPrice.Valid || !o.LimitPrice.Decimal.IsPositive() {
			return fmt.Errorf("order: limit order needs a positive limit price")
		}
	default:
		return fmt.Errorf("order: type must be MARKET or LIMIT, got %q", o.Type)
	}
	return nil
}

// Remaining is the quantity still to fill.
func (o Order) Remaining() int64 {
	return max(0, o.Quantity-o.FilledQuantity)
}

// Active reports whether the order can still fill.
func (o Order) Active() bool {
	return !o.Status.Terminal()
}

// CanCancel reports whether a cancel request may be honoured.
func (o Order) CanCancel() bool {
	switch o.Status {
	case StatusPending, StatusPlaced, StatusPartial:
		return true
	}
	return false
}

// Transition moves the order to status to.
func (o *Order) Transition(to OrderStatus, at time.Time) error {
	if !o.Status.CanTransition(to) {
		return &grid.StateError{Subject: "order " + o.ID, From: string(o.Status), To: string(to)}
	}
	o.Status = to
	switch to {
	case StatusPending:
		o.SubmittedAt = at
	case StatusFilled:
		o.FilledAt = at
	case StatusCancelled:
		o.CancelledAt = at
	}
	return nil
}

// Fill books qty at price. The average fill price is quantity weighted and
// the order becomes FILLED when nothing remains, PARTIAL otherwise.
func (o *Order) Fill(qty int64, price, commission decimal.Decimal, at time.Time) error {
	if qty <= 0 || qty > o.Remaining() {
		return fmt.Errorf("order %s: fill quantity %d outside 1..%d", o.ID, qty, o.Remaining())
	}

	to := StatusPartial
	if qty == o.Remaining() {
		to = StatusFilled
	}
	if err := o.Transition(to, at); err != nil {
		return err
	}

	prev := decimal.NewFromInt(o.FilledQuantity)
	add := decimal.NewFromInt(qty)
	total := prev.Add(add)
	o.AvgFillPrice = o.AvgFillPrice.Mul(prev).Add(price.Mul(add)).Div(total)
	o.FilledQuantity += qty
	o.Commission = o.Commission.Add(commission)
	return nil
}
