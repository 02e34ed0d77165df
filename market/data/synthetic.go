package data

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/rustyeddy/gridtrader/market"
	"github.com/shopspring/decimal"
)

const (
	syntheticStart = 100.0
	syntheticFloor = 1.0
	syntheticDrift = 0.5
	syntheticWick  = 0.5
)

// SyntheticProvider produces a seeded random walk. The same seed and request
// always yield the same series, so it stands in for a market data feed in
// tests and demos.
type SyntheticProvider struct {
	seed int64
}

func NewSyntheticProvider(seed int64) *SyntheticProvider {
	return &SyntheticProvider{seed: seed}
}

func (p *SyntheticProvider) Close() error { return nil }

// Load walks from 100.00 in normally distributed steps (sigma 0.5) with a
// floor of 1.00. Bars cover [From, To] inclusive at the request interval;
// a zero To yields 30 bars.
func (p *SyntheticProvider) Load(ctx context.Context, req Request) (market.Series, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	step := req.Interval.Step()
	from := req.From
	if from.IsZero() {
		from = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	to := req.To
	if to.IsZero() {
		to = from.Add(29 * step)
	}

	rng := rand.New(rand.NewSource(p.seed))
	price := syntheticStart

	var out market.Series
	for t := from; !t.After(to); t = t.Add(step) {
		open := price
		price = math.Max(syntheticFloor, price+rng.NormFloat64()*syntheticDrift)
		high := math.Max(open, price) + syntheticWick
		low := math.Max(syntheticFloor/2, math.Min(open, price)-syntheticWick)

		out = append(out, market.Candle{
			Time:   t.UTC(),
			Open:   cents(open),
			High:   cents(high),
			Low:    cents(low),
			Close:  cents(price),
			Volume: 1_000_000 + rng.Int63n(4_000_000),
		})
	}
	return out, nil
}

func cents(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f).Round(2)
}
