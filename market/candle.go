package market

import (
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Candle is one OHLCV observation.
type Candle struct {
	Time   time.Time       `json:"time"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume int64           `json:"volume"`
}

// Range is the intraday span high-low.
func (c Candle) Range() decimal.Decimal {
	return c.High.Sub(c.Low)
}

// RangePct is the intraday span as a percentage of the low.
// A non-positive low yields zero.
func (c Candle) RangePct() decimal.Decimal {
	if !c.Low.IsPositive() {
		return decimal.Zero
	}
	return c.Range().Div(c.Low).Mul(hundred)
}
