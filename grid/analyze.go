package grid

import (
	"math"

	"github.com/shopspring/decimal"
)

// Spacing describes the distance between consecutive entries.
type Spacing struct {
	Avg     float64 `json:"avg"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	StdDev  float64 `json:"std_dev"`
	Uniform bool    `json:"uniform"`
}

// Analysis summarizes a ladder before it is traded.
type Analysis struct {
	Spacing Spacing `json:"spacing"`
	// RequiredCapital is what entering every level would cost, commission
	// included.
	RequiredCapital decimal.Decimal `json:"required_capital"`
	// PotentialProfit is the net result if every level completes at its
	// exit, paying commission on both legs.
	PotentialProfit decimal.Decimal `json:"potential_profit"`
}

// Analyze computes spacing, capital need and best-case profit of levels.
func Analyze(levels []Level, commission decimal.Decimal) Analysis {
	var a Analysis

	two := decimal.NewFromInt(2)
	for _, lv := range levels {
		qty := decimal.NewFromInt(lv.QtyPlanned)
		a.RequiredCapital = a.RequiredCapital.Add(lv.EntryPrice.Mul(qty)).Add(commission)

		gross := lv.ExitPrice.Sub(lv.EntryPrice).Abs().Mul(qty)
		a.PotentialProfit = a.PotentialProfit.Add(gross.Sub(commission.Mul(two)))
	}

	if len(levels) < 2 {
		return a
	}

	steps := make([]float64, 0, len(levels)-1)
	for i := 0; i+1 < len(levels); i++ {
		d := levels[i+1].EntryPrice.Sub(levels[i].EntryPrice).Abs()
		steps = append(steps, d.InexactFloat64())
	}

	a.Spacing.Min = steps[0]
	a.Spacing.Max = steps[0]
	var sum float64
	for _, s := range steps {
		sum += s
		a.Spacing.Min = math.Min(a.Spacing.Min, s)
		a.Spacing.Max = math.Max(a.Spacing.Max, s)
	}
	a.Spacing.Avg = sum / float64(len(steps))

	var sq float64
	for _, s := range steps {
		sq += (s - a.Spacing.Avg) * (s - a.Spacing.Avg)
	}
	a.Spacing.StdDev = math.Sqrt(sq / float64(len(steps)))
	a.Spacing.Uniform = a.Spacing.StdDev < 0.01

	return a
}
