package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rustyeddy/gridtrader/config"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// strategyFlags override the strategy section of the loaded config.
type strategyFlags struct {
	symbol   string
	side     string
	anchor   string
	step     string
	stepMode string
	levels   int
	qty      int64
	tick     string

	guardianMode  string
	guardianValue string
	autoRestart   bool
	multiPosition bool
}

func (f *strategyFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&f.symbol, "symbol", "s", "", "instrument symbol")
	fs.StringVar(&f.side, "side", "", "LONG or SHORT")
	fs.StringVarP(&f.anchor, "anchor", "a", "", "anchor price of level 0")
	fs.StringVar(&f.step, "step", "", "distance between levels")
	fs.StringVar(&f.stepMode, "step-mode", "", "ABSOLUTE or PERCENT")
	fs.IntVarP(&f.levels, "levels", "n", 0, "number of levels")
	fs.Int64VarP(&f.qty, "qty", "q", 0, "quantity per level")
	fs.StringVar(&f.tick, "tick", "", "tick size prices are rounded to")
	fs.StringVar(&f.guardianMode, "guardian-mode", "", "guardian step mode: ABSOLUTE or PERCENT")
	fs.StringVar(&f.guardianValue, "guardian-value", "", "guardian distance from the entry")
	fs.BoolVar(&f.autoRestart, "auto-restart", false, "start a new cycle when one completes")
	fs.BoolVar(&f.multiPosition, "multi-position", false, "let every level hold a position at once")
}

func (f *strategyFlags) apply(cmd *cobra.Command, s *config.StrategyConfig) error {
	fs := cmd.Flags()
	if fs.Changed("symbol") {
		s.Symbol = f.symbol
		s.ID = ""
	}
	if fs.Changed("side") {
		s.Side = f.side
		s.ID = ""
	}
	if fs.Changed("step-mode") {
		s.StepMode = f.stepMode
	}
	if fs.Changed("levels") {
		s.Levels = f.levels
	}
	if fs.Changed("qty") {
		s.QtyPerLevel = f.qty
	}
	if fs.Changed("guardian-mode") {
		s.GuardianMode = f.guardianMode
	}
	if fs.Changed("auto-restart") {
		s.AutoRestart = f.autoRestart
	}
	if fs.Changed("multi-position") {
		s.MultiPosition = f.multiPosition
	}

	for _, d := range []struct {
		flag string
		val  string
		set  func(decimal.Decimal)
	}{
		{"anchor", f.anchor, func(v decimal.Decimal) { s.AnchorPrice = v }},
		{"step", f.step, func(v decimal.Decimal) { s.Step = v }},
		{"tick", f.tick, func(v decimal.Decimal) { s.TickSize = &v }},
		{"guardian-value", f.guardianValue, func(v decimal.Decimal) { s.GuardianValue = &v }},
	} {
		if !fs.Changed(d.flag) {
			continue
		}
		v, err := decimal.NewFromString(d.val)
		if err != nil {
			return fmt.Errorf("bad --%s: %w", d.flag, err)
		}
		d.set(v)
	}
	return nil
}

// dataFlags override the data section.
type dataFlags struct {
	path     string
	from     string
	to       string
	interval string
	seed     int64
}

func (f *dataFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&f.path, "data", "d", "", "CSV file or directory of <SYMBOL>.csv files (switches the source to csv)")
	fs.StringVar(&f.from, "from", "", "first day, 2006-01-02 or RFC3339")
	fs.StringVar(&f.to, "to", "", "last day, 2006-01-02 or RFC3339")
	fs.StringVar(&f.interval, "interval", "", "bar interval: 1d or 1m")
	fs.Int64Var(&f.seed, "data-seed", 0, "seed of the synthetic series")
}

func (f *dataFlags) apply(cmd *cobra.Command, d *config.DataConfig) {
	fs := cmd.Flags()
	if fs.Changed("data") {
		d.Source = "csv"
		d.Path = f.path
	}
	if fs.Changed("from") {
		d.From = f.from
	}
	if fs.Changed("to") {
		d.To = f.to
	}
	if fs.Changed("interval") {
		d.Interval = f.interval
	}
	if fs.Changed("data-seed") {
		d.Seed = f.seed
	}
}

func decimalFlag(cmd *cobra.Command, name, val string, dst *decimal.Decimal) error {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, err := decimal.NewFromString(val)
	if err != nil {
		return fmt.Errorf("bad --%s: %w", name, err)
	}
	*dst = v
	return nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}
