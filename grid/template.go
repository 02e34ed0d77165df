package grid

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Side is the direction a grid trades in.
type Side string

const (
	Long  Side = "LONG"
	Short Side = "SHORT"
)

// ParseSide accepts LONG or SHORT in any case.
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToUpper(strings.TrimSpace(s))) {
	case Long:
		return Long, nil
	case Short:
		return Short, nil
	}
	return "", configErr("side", "must be LONG or SHORT, got %q", s)
}

// StepMode says whether a step is an absolute price amount or a percentage.
type StepMode string

const (
	Absolute StepMode = "ABSOLUTE"
	Percent  StepMode = "PERCENT"
)

// ParseStepMode accepts ABSOLUTE, CENTS (an alias) or PERCENT.
// The empty string parses to the empty mode, which callers treat as "none".
func ParseStepMode(s string) (StepMode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return "", nil
	case "ABSOLUTE", "CENTS":
		return Absolute, nil
	case "PERCENT":
		return Percent, nil
	}
	return "", configErr("step_mode", "must be ABSOLUTE or PERCENT, got %q", s)
}

// DefaultTickSize is the price increment used when none is configured.
var DefaultTickSize = decimal.RequireFromString("0.01")

var hundred = decimal.NewFromInt(100)

// Template is the immutable definition of a grid strategy.
type Template struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Symbol      string          `json:"symbol"`
	Side        Side            `json:"side"`
	AnchorPrice decimal.Decimal `json:"anchor_price"`
	Step        decimal.Decimal `json:"step"`
	StepMode    StepMode        `json:"step_mode"`
	Levels      int             `json:"levels"`
	QtyPerLevel int64           `json:"qty_per_level"`
	TickSize    decimal.Decimal `json:"tick_size"`

	// GuardianMode is empty when the template has no guardian.
	GuardianMode  StepMode        `json:"guardian_mode,omitempty"`
	GuardianValue decimal.Decimal `json:"guardian_value"`

	AutoRestart bool `json:"auto_restart"`
	// AutoStartTrigger holds the intraday range (percent) a bar must reach
	// before the cycle starts. Invalid means start immediately.
	AutoStartTrigger decimal.NullDecimal `json:"auto_start_trigger"`
}

// Validate checks the template without building the ladder.
func (t Template) Validate() error {
	if strings.TrimSpace(t.Symbol) == "" {
		return configErr("symbol", "is required")
	}
	if t.AutoStartTrigger.Valid {
		v := t.AutoStartTrigger.Decimal
		if v.IsNegative() || v.GreaterThan(hundred) {
			return configErr("auto_start_trigger", "must be between 0 and 100")
		}
	}
	_, err := BuildLadder(t.LadderConfig())
	return err
}

// StepAbsolute converts the step into a price distance.
func (t Template) StepAbsolute() decimal.Decimal {
	return stepAbsolute(t.AnchorPrice, t.Step, t.StepMode)
}

// LadderConfig extracts the ladder parameters of the template.
func (t Template) LadderConfig() LadderConfig {
	return LadderConfig{
		Side:          t.Side,
		AnchorPrice:   t.AnchorPrice,
		Step:          t.Step,
		StepMode:      t.StepMode,
		Levels:        t.Levels,
		QtyPerLevel:   t.QtyPerLevel,
		TickSize:      t.TickSize,
		GuardianMode:  t.GuardianMode,
		GuardianValue: t.GuardianValue,
	}
}

func (t Template) String() string {
	return fmt.Sprintf("%s %s %s anchor=%s step=%s %s levels=%d qty=%d",
		t.Name, t.Symbol, t.Side, t.AnchorPrice, t.Step, t.StepMode, t.Levels, t.QtyPerLevel)
}

func stepAbsolute(anchor, step decimal.Decimal, mode StepMode) decimal.Decimal {
	if mode == Percent {
		return anchor.Mul(step.Div(hundred))
	}
	return step
}
