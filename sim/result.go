package sim

import (
	"time"

	"github.com/rustyeddy/gridtrader/broker"
	"github.com/rustyeddy/gridtrader/grid"
	"github.com/rustyeddy/gridtrader/market"
	"github.com/rustyeddy/gridtrader/perf"
	"github.com/shopspring/decimal"
)

// CycleSummary describes one cycle of a run. Runs with AutoRestart can have
// several.
type CycleSummary struct {
	ID        string          `json:"id"`
	State     grid.CycleState `json:"state"`
	Triggered int             `json:"triggered"`
	Completed int             `json:"completed"`
}

func summarize(c *grid.Cycle) CycleSummary {
	return CycleSummary{ID: c.ID, State: c.State, Triggered: c.Triggered(), Completed: c.Completed()}
}

// Result is the read-only outcome of a run.
type Result struct {
	TemplateID string    `json:"template_id"`
	Symbol     string    `json:"symbol"`
	Side       grid.Side `json:"side"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`

	StartingCapital decimal.Decimal `json:"starting_capital"`
	EndingCapital   decimal.Decimal `json:"ending_capital"`
	// EndingEquity adds the mark-to-market value of a position still open at
	// the end. The equity curve itself records capital only.
	EndingEquity decimal.Decimal `json:"ending_equity"`

	Trades []broker.Trade     `json:"trades"`
	Equity []perf.EquityPoint `json:"equity"`
	Levels []grid.Level       `json:"levels"`
	Cycles []CycleSummary     `json:"cycles"`
	Stats  perf.Stats         `json:"stats"`
}

func (r *run) result(series market.Series) *Result {
	first, _ := series.First()
	last, _ := series.Last()

	r.retire()
	levels := r.cycle.Levels()

	res := &Result{
		TemplateID:      r.tmpl.ID,
		Symbol:          r.tmpl.Symbol,
		Side:            r.tmpl.Side,
		Start:           first.Time,
		End:             last.Time,
		StartingCapital: r.ledger.InitialCapital(),
		EndingCapital:   r.ledger.Capital(),
		EndingEquity:    r.ledger.Equity(),
		Trades:          r.trades,
		Equity:          r.equity,
		Levels:          levels,
		Cycles:          r.cycles,
	}
	res.Stats = perf.Analyze(perf.Input{
		InitialCapital: res.StartingCapital,
		FinalCapital:   res.EndingCapital,
		Trades:         res.Trades,
		Equity:         res.Equity,
		Levels:         r.retired,
	})
	return res
}

// ValidateSeries checks that a series can be simulated: at least one bar,
// positive prices, high not below low and strictly increasing timestamps.
func ValidateSeries(s market.Series) error {
	if len(s) == 0 {
		return &grid.DataError{Index: -1, Reason: "price series is empty"}
	}
	for i, c := range s {
		if c.Time.IsZero() {
			return &grid.DataError{Index: i, Reason: "timestamp is missing"}
		}
		if !c.Close.IsPositive() || !c.Open.IsPositive() || !c.Low.IsPositive() {
			return &grid.DataError{Index: i, Reason: "prices must be positive"}
		}
		if c.High.LessThan(c.Low) {
			return &grid.DataError{Index: i, Reason: "high is below low"}
		}
		if c.Volume < 0 {
			return &grid.DataError{Index: i, Reason: "volume is negative"}
		}
		if i > 0 && !c.Time.After(s[i-1].Time) {
			if c.Time.Equal(s[i-1].Time) {
				return &grid.DataError{Index: i, Reason: "duplicate timestamp"}
			}
			return &grid.DataError{Index: i, Reason: "timestamps are not increasing"}
		}
	}
	return nil
}
