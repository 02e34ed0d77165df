package broker

import (
	"context"
	"time"

	"github.com/rustyeddy/gridtrader/grid"
	"github.com/shopspring/decimal"
)

// Session is a broker connection used by the live path. Fills and status
// changes arrive asynchronously on Events.
type Session interface {
	PlaceOrder(ctx context.Context, o Order) (string, error)
	CancelOrder(ctx context.Context, id string) (bool, error)
	Events() <-chan Event
}

// Quoter is implemented by sessions that take their market price from the
// caller, such as the paper broker.
type Quoter interface {
	SetPrice(ctx context.Context, symbol string, price decimal.Decimal) error
}

// Event reports an order status change. Trade is set when the change came
// with a fill.
type Event struct {
	OrderID string      `json:"order_id"`
	Status  OrderStatus `json:"status"`
	Order   Order       `json:"order"`
	Trade   *Trade      `json:"trade,omitempty"`
	Time    time.Time   `json:"time"`
}

// EntrySide is the order side that opens a position for a grid side.
func EntrySide(s grid.Side) OrderSide {
	if s == grid.Short {
		return Sell
	}
	return Buy
}

// ExitSide is the order side that closes a position for a grid side.
func ExitSide(s grid.Side) OrderSide {
	if s == grid.Short {
		return Buy
	}
	return Sell
}
