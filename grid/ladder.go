package grid

import (
	"github.com/shopspring/decimal"
)

// LadderConfig holds the inputs of BuildLadder.
type LadderConfig struct {
	Side        Side
	AnchorPrice decimal.Decimal
	Step        decimal.Decimal
	StepMode    StepMode
	Levels      int
	QtyPerLevel int64
	// TickSize defaults to DefaultTickSize when zero.
	TickSize decimal.Decimal

	GuardianMode  StepMode
	GuardianValue decimal.Decimal
}

// BuildLadder stages cfg.Levels levels around the anchor. Index 0 sits at the
// anchor and each further level is one step further away from it.
//
//	LONG:  entry[i] = anchor - step*i, exit[i] = entry[i] + step
//	SHORT: entry[i] = anchor + step*i, exit[i] = entry[i] - step
//
// Prices are rounded to the tick size, half to even.
func BuildLadder(cfg LadderConfig) ([]Level, error) {
	if cfg.Side != Long && cfg.Side != Short {
		return nil, configErr("side", "must be LONG or SHORT, got %q", cfg.Side)
	}
	if cfg.Levels < 1 {
		return nil, configErr("levels", "must be at least 1, got %d", cfg.Levels)
	}
	if !cfg.Step.IsPositive() {
		return nil, configErr("step", "must be positive, got %s", cfg.Step)
	}
	if !cfg.AnchorPrice.IsPositive() {
		return nil, configErr("anchor_price", "must be positive, got %s", cfg.AnchorPrice)
	}
	if cfg.StepMode != Absolute && cfg.StepMode != Percent {
		return nil, configErr("step_mode", "must be ABSOLUTE or PERCENT, got %q", cfg.StepMode)
	}
	if cfg.QtyPerLevel <= 0 {
		return nil, configErr("qty_per_level", "must be positive, got %d", cfg.QtyPerLevel)
	}
	tick, err := tickOrDefault(cfg.TickSize)
	if err != nil {
		return nil, err
	}
	if cfg.GuardianMode != "" {
		if cfg.GuardianMode != Absolute && cfg.GuardianMode != Percent {
			return nil, configErr("guardian_mode", "must be ABSOLUTE or PERCENT, got %q", cfg.GuardianMode)
		}
		if !cfg.GuardianValue.IsPositive() {
			return nil, configErr("guardian_value", "must be positive when guardian_mode is set")
		}
	}

	step := stepAbsolute(cfg.AnchorPrice, cfg.Step, cfg.StepMode)

	levels := make([]Level, 0, cfg.Levels)
	for i := 0; i < cfg.Levels; i++ {
		offset := step.Mul(decimal.NewFromInt(int64(i)))

		var entry, exit decimal.Decimal
		if cfg.Side == Long {
			entry = cfg.AnchorPrice.Sub(offset)
			exit = entry.Add(step)
		} else {
			entry = cfg.AnchorPrice.Add(offset)
			exit = entry.Sub(step)
		}

		lv := Level{
			Index:      i,
			EntryPrice: RoundToTick(entry, tick),
			ExitPrice:  RoundToTick(exit, tick),
			QtyPlanned: cfg.QtyPerLevel,
			Status:     Planned,
		}
		if cfg.GuardianMode != "" {
			g := stepAbsolute(entry, cfg.GuardianValue, cfg.GuardianMode)
			if cfg.Side == Long {
				g = entry.Add(g)
			} else {
				g = entry.Sub(g)
			}
			lv.GuardianPrice = decimal.NewNullDecimal(RoundToTick(g, tick))
		}
		levels = append(levels, lv)
	}

	if err := checkLadder(cfg.Side, levels); err != nil {
		return nil, err
	}
	return levels, nil
}

// RoundToTick rounds price to the nearest multiple of tick, half to even.
func RoundToTick(price, tick decimal.Decimal) decimal.Decimal {
	if !tick.IsPositive() {
		return price
	}
	return price.Div(tick).RoundBank(0).Mul(tick)
}

func tickOrDefault(tick decimal.Decimal) (decimal.Decimal, error) {
	if tick.IsZero() {
		return DefaultTickSize, nil
	}
	if tick.IsNegative() {
		return decimal.Zero, configErr("tick_size", "must be positive, got %s", tick)
	}
	return tick, nil
}

// checkLadder enforces the ladder invariants after tick rounding: positive
// prices, exits on the profitable side of entries and strictly monotonic
// entries moving away from the anchor.
func checkLadder(side Side, levels []Level) error {
	for i, lv := range levels {
		if !lv.EntryPrice.IsPositive() || !lv.ExitPrice.IsPositive() {
			return configErr("levels", "level %d reaches a non-positive price", i)
		}
		if side == Long && !lv.ExitPrice.GreaterThan(lv.EntryPrice) {
			return configErr("step", "level %d exit %s is not above entry %s at this tick size", i, lv.ExitPrice, lv.EntryPrice)
		}
		if side == Short && !lv.ExitPrice.LessThan(lv.EntryPrice) {
			return configErr("step", "level %d exit %s is not below entry %s at this tick size", i, lv.ExitPrice, lv.EntryPrice)
		}
		if i == 0 {
			continue
		}
		prev := levels[i-1].EntryPrice
		if side == Long && !lv.EntryPrice.LessThan(prev) {
			return configErr("step", "entries of levels %d and %d are not strictly decreasing", i-1, i)
		}
		if side == Short && !lv.EntryPrice.GreaterThan(prev) {
			return configErr("step", "entries of levels %d and %d are not strictly increasing", i-1, i)
		}
	}
	return nil
}
