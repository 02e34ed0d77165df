package broker

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Trade is one execution. It is never modified after the ledger has set
// RealizedPnL.
type Trade struct {
	ID          string              `json:"id"`
	OrderID     string              `json:"order_id"`
	CycleID     string              `json:"cycle_id,omitempty"`
	LevelIndex  int                 `json:"level_index"`
	Symbol      string              `json:"symbol"`
	Side        OrderSide           `json:"side"`
	Quantity    int64               `json:"quantity"`
	Price       decimal.Decimal     `json:"price"`
	Commission  decimal.Decimal     `json:"commission"`
	Fees        decimal.Decimal     `json:"fees"`
	RealizedPnL decimal.NullDecimal `json:"realized_pnl"`
	ExecutedAt  time.Time           `json:"executed_at"`
}

func (t Trade) Validate() error {
	if t.Quantity <= 0 {
		return fmt.Errorf("trade %s: quantity must be positive, got %d", t.ID, t.Quantity)
	}
	if !t.Price.IsPositive() {
		return fmt.Errorf("trade %s: price must be positive, got %s", t.ID, t.Price)
	}
	if t.Side != Buy && t.Side != Sell {
		return fmt.Errorf("trade %s: side must be BUY or SELL, got %q", t.ID, t.Side)
	}
	return nil
}

// Notional is price times quantity.
func (t Trade) Notional() decimal.Decimal {
	return t.Price.Mul(decimal.NewFromInt(t.Quantity))
}

// Costs is commission plus fees.
func (t Trade) Costs() decimal.Decimal {
	return t.Commission.Add(t.Fees)
}

// CashFlow is the signed effect on capital: a BUY pays notional plus costs,
// a SELL receives notional minus costs.
func (t Trade) CashFlow() decimal.Decimal {
	if t.Side == Buy {
		return t.Notional().Add(t.Costs()).Neg()
	}
	return t.Notional().Sub(t.Costs())
}
