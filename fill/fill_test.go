package fill

import (
	"testing"
	"time"

	"github.com/rustyeddy/gridtrader/broker"
	"github.com/rustyeddy/gridtrader/grid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// fixedRand returns its values in order, repeating the last one.
type fixedRand struct {
	vals []float64
	i    int
}

func (r *fixedRand) Float64() float64 {
	v := r.vals[min(r.i, len(r.vals)-1)]
	r.i++
	return v
}

func placedLimit(side broker.OrderSide, qty int64, limit string) *broker.Order {
	return &broker.Order{
		ID:         "ord-1",
		Symbol:     "SPY",
		Side:       side,
		Type:       broker.Limit,
		Quantity:   qty,
		LimitPrice: decimal.NewNullDecimal(d(limit)),
		Status:     broker.StatusPlaced,
	}
}

func TestPriceSlippage(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Slippage = d("0.05")
	m, err := NewSimulated(cfg, 1)
	require.NoError(t, err)

	p := d("100")
	assert.True(t, m.Price(Entry, grid.Long, p).Equal(d("100.05")))
	assert.True(t, m.Price(Entry, grid.Short, p).Equal(d("99.95")))
	assert.True(t, m.Price(Exit, grid.Long, p).Equal(d("99.95")))
	assert.True(t, m.Price(Exit, grid.Short, p).Equal(d("100.05")))
	assert.True(t, m.Commission().Equal(d("1")))
}

func TestResolveForcedPartialFill(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.FillProbability = 1
	cfg.PartialFillProbability = 1
	m, err := NewSimulated(cfg, 7)
	require.NoError(t, err)

	o := placedLimit(broker.Buy, 100, "100")
	filled, err := m.Resolve(o, d("100"), time.Now())
	require.NoError(t, err)
	require.True(t, filled)
	assert.Equal(t, broker.StatusPartial, o.Status)
	assert.Equal(t, int64(50), o.FilledQuantity)
	assert.True(t, o.AvgFillPrice.Equal(d("100")))
	assert.True(t, o.Commission.Equal(d("1")))
}

func TestResolveFullFill(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.FillProbability = 1
	cfg.PartialFillProbability = 0
	m, err := NewSimulated(cfg, 7)
	require.NoError(t, err)

	o := placedLimit(broker.Sell, 10, "101")
	filled, err := m.Resolve(o, d("101.5"), time.Now())
	require.NoError(t, err)
	require.True(t, filled)
	assert.Equal(t, broker.StatusFilled, o.Status)
	assert.Equal(t, int64(10), o.FilledQuantity)
	assert.True(t, o.AvgFillPrice.Equal(d("101")), "limit orders fill at the limit")
}

func TestResolveLimitNotReached(t *testing.T) {
	t.Parallel()

	rng := &fixedRand{vals: []float64{0}}
	m, err := NewSimulatedWithRand(DefaultConfig(), rng)
	require.NoError(t, err)

	buy := placedLimit(broker.Buy, 10, "100")
	filled, err := m.Resolve(buy, d("100.01"), time.Now())
	require.NoError(t, err)
	assert.False(t, filled)
	assert.Equal(t, broker.StatusPlaced, buy.Status)
	assert.Equal(t, 0, rng.i, "no roll without a reachable limit")

	sell := placedLimit(broker.Sell, 10, "100")
	filled, err = m.Resolve(sell, d("99.99"), time.Now())
	require.NoError(t, err)
	assert.False(t, filled)
}

func TestResolveFillRollFails(t *testing.T) {
	t.Parallel()

	m, err := NewSimulatedWithRand(DefaultConfig(), &fixedRand{vals: []float64{0.99}})
	require.NoError(t, err)

	o := placedLimit(broker.Buy, 10, "100")
	filled, err := m.Resolve(o, d("99"), time.Now())
	require.NoError(t, err)
	assert.False(t, filled)
	assert.Equal(t, int64(0), o.FilledQuantity)
}

func TestResolvePartialThenRest(t *testing.T) {
	t.Parallel()

	// fill, partial, fill, no partial
	rng := &fixedRand{vals: []float64{0.1, 0.05, 0.1, 0.5}}
	m, err := NewSimulatedWithRand(DefaultConfig(), rng)
	require.NoError(t, err)

	o := placedLimit(broker.Buy, 7, "100")
	filled, err := m.Resolve(o, d("100"), time.Now())
	require.NoError(t, err)
	require.True(t, filled)
	assert.Equal(t, int64(3), o.FilledQuantity)
	assert.Equal(t, broker.StatusPartial, o.Status)

	filled, err = m.Resolve(o, d("100"), time.Now())
	require.NoError(t, err)
	require.True(t, filled)
	assert.Equal(t, int64(7), o.FilledQuantity)
	assert.Equal(t, broker.StatusFilled, o.Status)

	filled, err = m.Resolve(o, d("100"), time.Now())
	require.NoError(t, err)
	assert.False(t, filled, "terminal orders are left alone")
}

func TestResolveMarketOrder(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.PartialFillProbability = 0
	m, err := NewSimulated(cfg, 3)
	require.NoError(t, err)

	o := &broker.Order{ID: "m", Symbol: "SPY", Side: broker.Buy, Type: broker.Market, Quantity: 5, Status: broker.StatusPending}
	filled, err := m.Resolve(o, d("42.10"), time.Now())
	require.NoError(t, err)
	require.True(t, filled)
	assert.True(t, o.AvgFillPrice.Equal(d("42.10")))
	assert.Equal(t, broker.StatusFilled, o.Status)
}

func TestSeededModelsAgree(t *testing.T) {
	t.Parallel()

	run := func() []int64 {
		m, err := NewSimulated(DefaultConfig(), 99)
		require.NoError(t, err)
		var out []int64
		for i := 0; i < 50; i++ {
			o := placedLimit(broker.Buy, 10, "100")
			_, err := m.Resolve(o, d("100"), time.Time{})
			require.NoError(t, err)
			out = append(out, o.FilledQuantity)
		}
		return out
	}
	assert.Equal(t, run(), run())
}

func TestNewSimulatedValidation(t *testing.T) {
	t.Parallel()

	bad := DefaultConfig()
	bad.FillProbability = 1.5
	_, err := NewSimulated(bad, 1)
	assert.Error(t, err)

	var ce *grid.ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "fill_probability", ce.Field)

	bad = DefaultConfig()
	bad.Commission = d("-1")
	_, err = NewSimulated(bad, 1)
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "commission", ce.Field)

	bad = DefaultConfig()
	bad.Slippage = d("-0.01")
	_, err = NewSimulated(bad, 1)
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "slippage", ce.Field)

	_, err = NewSimulatedWithRand(DefaultConfig(), nil)
	assert.Error(t, err)
}
