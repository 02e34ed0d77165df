package sim

import (
	"encoding/json"
	"math/rand"
	"testing"
	"time"

	"github.com/rustyeddy/gridtrader/events"
	"github.com/rustyeddy/gridtrader/fill"
	"github.com/rustyeddy/gridtrader/grid"
	"github.com/rustyeddy/gridtrader/market"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var t0 = time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC)

func flatBars(closes ...string) market.Series {
	s := make(market.Series, len(closes))
	for i, c := range closes {
		p := d(c)
		s[i] = market.Candle{Time: t0.Add(time.Duration(i) * time.Minute), Open: p, High: p, Low: p, Close: p, Volume: 1000}
	}
	return s
}

func template(side grid.Side, levels int) grid.Template {
	return grid.Template{
		ID:          "tmpl-1",
		Name:        "test grid",
		Symbol:      "SPY",
		Side:        side,
		AnchorPrice: d("100"),
		Step:        d("1"),
		StepMode:    grid.Absolute,
		Levels:      levels,
		QtyPerLevel: 10,
	}
}

func newEngine(t *testing.T, slippage, commission string, sink events.Sink) *Engine {
	t.Helper()
	cfg := fill.DefaultConfig()
	cfg.Slippage = d(slippage)
	cfg.Commission = d(commission)
	m, err := fill.NewSimulated(cfg, 1)
	require.NoError(t, err)

	e, err := NewEngine(Options{InitialCapital: d("10000"), Fill: m, Seed: 1, Sink: sink})
	require.NoError(t, err)
	return e
}

func capitals(res *Result) []string {
	out := make([]string, len(res.Equity))
	for i, p := range res.Equity {
		out[i] = p.Capital.String()
	}
	return out
}

func TestFlatSeriesAboveEntriesProducesNoTrades(t *testing.T) {
	t.Parallel()

	tmpl := template(grid.Long, 3)
	tmpl.AnchorPrice = d("99")

	res, err := newEngine(t, "0.01", "1", nil).Run(tmpl, flatBars("100", "100", "100", "100"))
	require.NoError(t, err)

	assert.Empty(t, res.Trades)
	assert.Equal(t, 0, res.Stats.TotalTrades)
	assert.Equal(t, 0, res.Stats.LevelsTriggered)
	assert.True(t, res.EndingCapital.Equal(d("10000")))
	assert.Equal(t, []string{"10000", "10000", "10000", "10000"}, capitals(res))
	assert.Zero(t, res.Stats.Sharpe)
	for _, lv := range res.Levels {
		assert.Equal(t, grid.Planned, lv.Status)
	}
}

func TestLongLadderWalksEveryLevel(t *testing.T) {
	t.Parallel()

	rec := &events.Recorder{}
	res, err := newEngine(t, "0", "1", rec).Run(template(grid.Long, 3),
		flatBars("100.5", "100", "99", "101", "99", "100", "98", "99"))
	require.NoError(t, err)

	require.Len(t, res.Trades, 6)
	assert.Equal(t,
		[]string{"10000", "8999", "8999", "10008", "9017", "10016", "9035", "10024"},
		capitals(res))
	assert.True(t, res.EndingCapital.Equal(d("10024")))
	assert.True(t, res.EndingEquity.Equal(d("10024")))

	for _, i := range []int{1, 3, 5} {
		require.True(t, res.Trades[i].RealizedPnL.Valid)
		assert.True(t, res.Trades[i].RealizedPnL.Decimal.Equal(d("8")))
	}
	assert.False(t, res.Trades[0].RealizedPnL.Valid)

	assert.Equal(t, 3, res.Stats.WinningTrades)
	assert.InDelta(t, 50.0, res.Stats.WinRate, 1e-9)
	assert.Equal(t, 3, res.Stats.LevelsTriggered)
	assert.Equal(t, 3, res.Stats.LevelsCompleted)
	assert.Zero(t, res.Stats.ProfitFactor)
	assert.Equal(t, 8, res.Stats.TradingDays)

	require.Len(t, res.Cycles, 1)
	assert.Equal(t, grid.Completed, res.Cycles[0].State)
	for _, lv := range res.Levels {
		assert.Equal(t, grid.Done, lv.Status)
	}

	changes := rec.LevelChanges()
	require.Len(t, changes, 6)
	assert.Equal(t, grid.Planned, changes[0].From)
	assert.Equal(t, grid.EntryFilled, changes[0].To)
	assert.Equal(t, grid.Done, changes[1].To)
	assert.Equal(t, grid.ExitTarget, changes[1].Reason)
	assert.Len(t, rec.Trades(), 6)
	assert.Len(t, rec.Events(), 14)
}

func TestSingleOpenPositionBlocksDeeperLevels(t *testing.T) {
	t.Parallel()

	series := flatBars("100", "99", "98")

	single, err := newEngine(t, "0", "0", nil).Run(template(grid.Long, 3), series)
	require.NoError(t, err)
	assert.Len(t, single.Trades, 1)
	assert.Equal(t, 1, single.Stats.LevelsTriggered)

	e, err := NewEngine(Options{InitialCapital: d("10000"), MultiPosition: true})
	require.NoError(t, err)
	multi, err := e.Run(template(grid.Long, 3), series)
	require.NoError(t, err)
	assert.Len(t, multi.Trades, 3)
	assert.Equal(t, 3, multi.Stats.LevelsTriggered)
	assert.True(t, multi.EndingCapital.Equal(d("7030")))
	assert.True(t, multi.EndingEquity.Equal(d("9970")), "equity %s", multi.EndingEquity)
}

func TestShortRoundTrip(t *testing.T) {
	t.Parallel()

	res, err := newEngine(t, "0", "1", nil).Run(template(grid.Short, 2), flatBars("100", "99"))
	require.NoError(t, err)
	require.Len(t, res.Trades, 2)
	assert.Equal(t, []string{"10999", "10008"}, capitals(res))
	assert.True(t, res.Trades[1].RealizedPnL.Decimal.Equal(d("8")))
}

func TestSlippageAndCommission(t *testing.T) {
	t.Parallel()

	res, err := newEngine(t, "0.1", "1", nil).Run(template(grid.Long, 1), flatBars("100", "101"))
	require.NoError(t, err)
	require.Len(t, res.Trades, 2)
	assert.True(t, res.Trades[0].Price.Equal(d("100.1")))
	assert.True(t, res.Trades[1].Price.Equal(d("100.9")))
	assert.True(t, res.Trades[1].RealizedPnL.Decimal.Equal(d("6")))
}

func TestGuardianExit(t *testing.T) {
	t.Parallel()

	tmpl := template(grid.Long, 2)
	tmpl.GuardianMode = grid.Absolute
	tmpl.GuardianValue = d("0.5")

	rec := &events.Recorder{}
	res, err := newEngine(t, "0", "1", rec).Run(tmpl, flatBars("100", "100.6"))
	require.NoError(t, err)
	require.Len(t, res.Trades, 2)
	assert.True(t, res.Trades[1].RealizedPnL.Decimal.Equal(d("4")))

	changes := rec.LevelChanges()
	require.Len(t, changes, 2)
	assert.Equal(t, grid.ExitGuardian, changes[1].Reason)
}

func TestAutoStartTrigger(t *testing.T) {
	t.Parallel()

	tmpl := template(grid.Long, 2)
	tmpl.AutoStartTrigger = decimal.NewNullDecimal(d("2"))

	series := market.Series{
		{Time: t0, Open: d("100"), High: d("100"), Low: d("99"), Close: d("99")},
		{Time: t0.Add(time.Minute), Open: d("99"), High: d("101"), Low: d("98"), Close: d("99")},
	}

	rec := &events.Recorder{}
	res, err := newEngine(t, "0", "0", rec).Run(tmpl, series)
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)
	assert.True(t, res.Trades[0].ExecutedAt.Equal(t0.Add(time.Minute)))

	first := rec.Events()[0].(events.CycleStateChanged)
	assert.Equal(t, grid.Waiting, first.From)
	assert.Equal(t, grid.Running, first.To)
	assert.True(t, first.Time.Equal(t0.Add(time.Minute)))
}

func TestAutoRestart(t *testing.T) {
	t.Parallel()

	series := flatBars("100", "101", "100", "101")

	once, err := newEngine(t, "0", "0", nil).Run(template(grid.Long, 1), series)
	require.NoError(t, err)
	assert.Len(t, once.Trades, 2)
	assert.Len(t, once.Cycles, 1)

	tmpl := template(grid.Long, 1)
	tmpl.AutoRestart = true
	again, err := newEngine(t, "0", "0", nil).Run(tmpl, series)
	require.NoError(t, err)
	assert.Len(t, again.Trades, 4)
	require.Len(t, again.Cycles, 2)
	assert.NotEqual(t, again.Cycles[0].ID, again.Cycles[1].ID)
	assert.Equal(t, 2, again.Stats.LevelsCompleted)
	assert.True(t, again.EndingCapital.Equal(d("10020")))
}

func TestRunIsDeterministic(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(5))
	closes := make([]string, 300)
	p := 100.0
	for i := range closes {
		p += rng.NormFloat64() * 0.5
		closes[i] = decimal.NewFromFloat(p).Round(2).String()
	}
	series := flatBars(closes...)

	run := func() []byte {
		e := newEngine(t, "0.01", "1", nil)
		res, err := e.Run(template(grid.Long, 5), series)
		require.NoError(t, err)
		raw, err := json.Marshal(res)
		require.NoError(t, err)
		return raw
	}
	assert.Equal(t, run(), run())
}

func TestRunRejectsBadInput(t *testing.T) {
	t.Parallel()

	e := newEngine(t, "0", "0", nil)

	_, err := e.Run(template(grid.Long, 3), nil)
	var de *grid.DataError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, -1, de.Index)

	dup := flatBars("100", "101")
	dup[1].Time = dup[0].Time
	_, err = e.Run(template(grid.Long, 3), dup)
	require.ErrorAs(t, err, &de)
	assert.Equal(t, 1, de.Index)
	assert.Contains(t, de.Reason, "duplicate")

	back := flatBars("100", "101", "102")
	back[2].Time = t0.Add(-time.Minute)
	_, err = e.Run(template(grid.Long, 3), back)
	require.ErrorAs(t, err, &de)
	assert.Equal(t, 2, de.Index)

	inverted := flatBars("100")
	inverted[0].High = d("90")
	_, err = e.Run(template(grid.Long, 3), inverted)
	require.ErrorAs(t, err, &de)

	bad := template(grid.Long, 0)
	_, err = e.Run(bad, flatBars("100"))
	var ce *grid.ConfigurationError
	require.ErrorAs(t, err, &ce)
}

// The entry fills at the close past the level; realized P&L runs from that
// fill.
func TestRealizedPnLFromEntryFill(t *testing.T) {
	t.Parallel()

	res, err := newEngine(t, "0.01", "1", nil).Run(template(grid.Long, 1), flatBars("99.5", "101"))
	require.NoError(t, err)
	require.Len(t, res.Trades, 2)

	entry, exit := res.Trades[0], res.Trades[1]
	assert.True(t, entry.Price.Equal(d("99.51")), entry.Price.String())
	assert.True(t, exit.Price.Equal(d("100.99")), exit.Price.String())
	require.True(t, exit.RealizedPnL.Valid)
	assert.Equal(t, "12.8", exit.RealizedPnL.Decimal.String())

	assert.True(t, res.EndingCapital.Equal(d("10012.8")), res.EndingCapital.String())
	assert.Equal(t, 1, res.Stats.WinningTrades)
}

func TestSlippageBeyondPriceIsConfigurationError(t *testing.T) {
	t.Parallel()

	tmpl := template(grid.Short, 1)
	_, err := newEngine(t, "100", "1", nil).Run(tmpl, flatBars("100", "100"))

	var ce *grid.ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "slippage", ce.Field)
}
