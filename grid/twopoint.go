package grid

import (
	"fmt"
	"time"

	"github.com/rustyeddy/gridtrader/market"
	"github.com/shopspring/decimal"
)

// TwoPointConfig spans a ladder between an opening price and a second price
// observed some time later.
type TwoPointConfig struct {
	Side        Side
	OpenPrice   decimal.Decimal
	SecondPrice decimal.Decimal
	Levels      int
	QtyPerLevel int64
	// MinStep is the smallest span accepted; defaults to 0.01.
	MinStep  decimal.Decimal
	TickSize decimal.Decimal
}

// TwoPointLadder is the outcome of BuildTwoPointLadder.
type TwoPointLadder struct {
	Levels []Level         `json:"levels"`
	Start  decimal.Decimal `json:"start"`
	Step   decimal.Decimal `json:"step"`
	// Inverted is set when the second price moved against the side (up for
	// LONG, down for SHORT). The ladder then starts at the second price and
	// the expectation behind the grid no longer holds.
	Inverted bool `json:"inverted"`
}

// BuildTwoPointLadder divides |second-open| evenly across the levels.
// A LONG ladder starts at the open and steps down; a SHORT one starts at the
// open and steps up. When the second price moved the other way the ladder
// starts at the second price instead and Inverted is reported.
func BuildTwoPointLadder(cfg TwoPointConfig) (TwoPointLadder, error) {
	if cfg.Side != Long && cfg.Side != Short {
		return TwoPointLadder{}, configErr("side", "must be LONG or SHORT, got %q", cfg.Side)
	}
	if cfg.Levels < 1 {
		return TwoPointLadder{}, configErr("levels", "must be at least 1, got %d", cfg.Levels)
	}
	if cfg.QtyPerLevel <= 0 {
		return TwoPointLadder{}, configErr("qty_per_level", "must be positive, got %d", cfg.QtyPerLevel)
	}
	if !cfg.OpenPrice.IsPositive() || !cfg.SecondPrice.IsPositive() {
		return TwoPointLadder{}, configErr("prices", "open and second price must be positive")
	}
	tick, err := tickOrDefault(cfg.TickSize)
	if err != nil {
		return TwoPointLadder{}, err
	}
	minStep := cfg.MinStep
	if minStep.IsZero() {
		minStep = DefaultTickSize
	}

	diff := cfg.SecondPrice.Sub(cfg.OpenPrice).Abs()
	if diff.LessThan(minStep) {
		return TwoPointLadder{}, configErr("span", "price span %s is below the minimum step %s", diff, minStep)
	}

	step := diff
	if cfg.Levels > 1 {
		step = diff.Div(decimal.NewFromInt(int64(cfg.Levels - 1)))
	}

	out := TwoPointLadder{Start: cfg.OpenPrice, Step: step}
	switch cfg.Side {
	case Long:
		if !cfg.SecondPrice.LessThan(cfg.OpenPrice) {
			out.Start = cfg.SecondPrice
			out.Inverted = true
		}
	case Short:
		if !cfg.SecondPrice.GreaterThan(cfg.OpenPrice) {
			out.Start = cfg.SecondPrice
			out.Inverted = true
		}
	}

	out.Levels = make([]Level, 0, cfg.Levels)
	for i := 0; i < cfg.Levels; i++ {
		offset := step.Mul(decimal.NewFromInt(int64(i)))

		var entry, exit decimal.Decimal
		if cfg.Side == Long {
			entry = out.Start.Sub(offset)
			exit = entry.Add(step)
		} else {
			entry = out.Start.Add(offset)
			exit = entry.Sub(step)
		}

		out.Levels = append(out.Levels, Level{
			Index:      i,
			EntryPrice: RoundToTick(entry, tick),
			ExitPrice:  RoundToTick(exit, tick),
			QtyPlanned: cfg.QtyPerLevel,
			Status:     Planned,
		})
	}

	if err := checkLadder(cfg.Side, out.Levels); err != nil {
		return TwoPointLadder{}, err
	}
	return out, nil
}

// TwoPointFromSeries takes the open of the first bar and the close of the
// first bar at or after first.Time+delay. When no bar is that late the first
// bar's close is used.
func TwoPointFromSeries(s market.Series, delay time.Duration, cfg TwoPointConfig) (TwoPointLadder, error) {
	return TwoPointFromSession(s, "", delay, cfg)
}

// TwoPointFromSession is TwoPointFromSeries anchored on the session open:
// the first bar stamped within a minute after clock (HH:MM, bar local time),
// so pre-market bars are skipped. An empty clock uses the first bar.
func TwoPointFromSession(s market.Series, clock string, delay time.Duration, cfg TwoPointConfig) (TwoPointLadder, error) {
	if len(s) == 0 {
		return TwoPointLadder{}, &DataError{Index: -1, Reason: "price series is empty"}
	}
	if clock != "" {
		at, err := time.Parse("15:04", clock)
		if err != nil {
			return TwoPointLadder{}, configErr("session_open", "must be HH:MM, got %q", clock)
		}
		open := at.Hour()*60 + at.Minute()
		start := -1
		for i, c := range s {
			h, m, _ := c.Time.Clock()
			if mins := h*60 + m; mins >= open && mins <= open+1 {
				start = i
				break
			}
		}
		if start < 0 {
			return TwoPointLadder{}, &DataError{Index: -1, Reason: fmt.Sprintf("no bar at session open %s", clock)}
		}
		s = s[start:]
	}

	first := s[0]
	cfg.OpenPrice = first.Open
	cfg.SecondPrice = first.Close

	target := first.Time.Add(delay)
	for _, c := range s {
		if !c.Time.Before(target) {
			cfg.SecondPrice = c.Close
			break
		}
	}
	return BuildTwoPointLadder(cfg)
}
