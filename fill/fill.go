// Package fill turns theoretical prices into executions.
//
// The backtest path only uses Price and Commission. Resolve is the paper
// path: it decides whether a working limit order fills and how much of it.
package fill

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/rustyeddy/gridtrader/broker"
	"github.com/rustyeddy/gridtrader/grid"
	"github.com/shopspring/decimal"
)

// Leg tells whether a fill opens or closes a level.
type Leg int

const (
	Entry Leg = iota
	Exit
)

func (l Leg) String() string {
	if l == Exit {
		return "exit"
	}
	return "entry"
}

// Model is the pluggable execution model.
type Model interface {
	// Price applies slippage to a theoretical price.
	Price(leg Leg, side grid.Side, price decimal.Decimal) decimal.Decimal
	// Commission is the fixed charge per fill.
	Commission() decimal.Decimal
	// Resolve decides the outcome of one evaluation of a working order at
	// price. It returns true when the order received a fill.
	Resolve(o *broker.Order, price decimal.Decimal, at time.Time) (bool, error)
}

// Rand is the random source used by Simulated. *rand.Rand satisfies it.
type Rand interface {
	Float64() float64
}

// Config holds the parameters of Simulated.
type Config struct {
	Slippage               decimal.Decimal
	Commission             decimal.Decimal
	FillProbability        float64
	PartialFillProbability float64
}

// DefaultConfig matches the paper broker defaults: 95% of eligible limit
// orders fill and 10% of those only partially.
func DefaultConfig() Config {
	return Config{
		Slippage:               decimal.Zero,
		Commission:             decimal.NewFromInt(1),
		FillProbability:        0.95,
		PartialFillProbability: 0.10,
	}
}

// Simulated is the default Model.
type Simulated struct {
	cfg Config
	rng Rand
}

// NewSimulated returns a model drawing from a math/rand source seeded with
// seed.
func NewSimulated(cfg Config, seed int64) (*Simulated, error) {
	return NewSimulatedWithRand(cfg, rand.New(rand.NewSource(seed)))
}

// NewSimulatedWithRand returns a model using rng, which tests use to pin
// outcomes.
func NewSimulatedWithRand(cfg Config, rng Rand) (*Simulated, error) {
	if cfg.Slippage.IsNegative() {
		return nil, &grid.ConfigurationError{Field: "slippage", Reason: "must not be negative"}
	}
	if cfg.Commission.IsNegative() {
		return nil, &grid.ConfigurationError{Field: "commission", Reason: "must not be negative"}
	}
	if cfg.FillProbability < 0 || cfg.FillProbability > 1 {
		return nil, &grid.ConfigurationError{Field: "fill_probability", Reason: "must be between 0 and 1"}
	}
	if cfg.PartialFillProbability < 0 || cfg.PartialFillProbability > 1 {
		return nil, &grid.ConfigurationError{Field: "partial_fill_probability", Reason: "must be between 0 and 1"}
	}
	if rng == nil {
		return nil, fmt.Errorf("fill: random source is required")
	}
	return &Simulated{cfg: cfg, rng: rng}, nil
}

func (m *Simulated) Config() Config { return m.cfg }

func (m *Simulated) Commission() decimal.Decimal { return m.cfg.Commission }

// Price moves price against the trader. Entries: LONG pays more, SHORT
// receives less. Exits: LONG receives less, SHORT pays more.
func (m *Simulated) Price(leg Leg, side grid.Side, price decimal.Decimal) decimal.Decimal {
	up := side == grid.Long
	if leg == Exit {
		up = !up
	}
	if up {
		return price.Add(m.cfg.Slippage)
	}
	return price.Sub(m.cfg.Slippage)
}

// Resolve fills a market order completely at price. A limit order fills only
// when price reached its limit and the fill roll succeeds; it then fills at
// the limit price. A successful partial roll fills half of the remaining
// quantity, at least one unit.
func (m *Simulated) Resolve(o *broker.Order, price decimal.Decimal, at time.Time) (bool, error) {
	if !o.Active() {
		return false, nil
	}
	remaining := o.Remaining()
	if remaining == 0 {
		return false, nil
	}

	fillPrice := price
	if o.Type == broker.Limit {
		if !limitReached(o, price) {
			return false, nil
		}
		if m.rng.Float64() >= m.cfg.FillProbability {
			return false, nil
		}
		fillPrice = o.LimitPrice.Decimal
	}

	qty := remaining
	if m.rng.Float64() < m.cfg.PartialFillProbability && remaining > 1 {
		qty = max(1, remaining/2)
	}

	if err := o.Fill(qty, fillPrice, m.cfg.Commission, at); err != nil {
		return false, err
	}
	return true, nil
}

func limitReached(o *broker.Order, price decimal.Decimal) bool {
	if o.Side == broker.Buy {
		return price.LessThanOrEqual(o.LimitPrice.Decimal)
	}
	return price.GreaterThanOrEqual(o.LimitPrice.Decimal)
}
