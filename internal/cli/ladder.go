package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/rustyeddy/gridtrader/grid"
	"github.com/rustyeddy/gridtrader/market/data"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func newLadderCmd(rc *rootConfig) *cobra.Command {
	var (
		sf         strategyFlags
		commission string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "ladder",
		Short: "Build a grid ladder and show its spacing, capital need and potential profit",
		Long: `Build the ladder of the configured strategy, with flags overriding the
config file, and analyze it before trading.

Example:
  gridtrader ladder --symbol SPY --anchor 450 --step 0.5 --levels 10 --qty 5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := rc.cfg
			if err := sf.apply(cmd, &cfg.Strategy); err != nil {
				return err
			}
			comm := cfg.Execution.Commission
			if err := decimalFlag(cmd, "commission", commission, &comm); err != nil {
				return err
			}

			t, err := cfg.Template()
			if err != nil {
				return err
			}
			levels, err := grid.BuildLadder(t.LadderConfig())
			if err != nil {
				return err
			}
			a := grid.Analyze(levels, comm)

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, struct {
					Template grid.Template `json:"template"`
					Levels   []grid.Level  `json:"levels"`
					Analysis grid.Analysis `json:"analysis"`
				}{t, levels, a})
			}
			fmt.Fprintf(out, "%s %s %s, step %s (%s)\n\n", t.ID, t.Symbol, t.Side, t.StepAbsolute(), t.StepMode)
			printLevels(out, levels)
			printAnalysis(out, a)
			return nil
		},
	}

	sf.register(cmd)
	cmd.Flags().StringVar(&commission, "commission", "", "commission per fill (default from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")

	cmd.AddCommand(newTwoPointCmd(rc))
	return cmd
}

func newTwoPointCmd(rc *rootConfig) *cobra.Command {
	var (
		side       string
		open       string
		second     string
		levels     int
		qty        int64
		minStep    string
		tick       string
		commission string
		symbol     string
		delay      time.Duration
		session    string
		asJSON     bool
		df         dataFlags
	)

	cmd := &cobra.Command{
		Use:   "two-point",
		Short: "Span a ladder between an opening price and a later price",
		Long: `Divide the distance between two prices evenly across the levels.

Give both prices with --open and --second, or leave them out to take the
open of the first bar of the configured data and the close of the first bar
at least --delay later. --session-open HH:MM skips bars before the session
opens, e.g. pre-market bars.

Examples:
  gridtrader ladder two-point --open 100 --second 96 --levels 5
  gridtrader ladder two-point --data ./data --symbol SPY --interval 1m --delay 30m`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := rc.cfg
			tp := grid.TwoPointConfig{
				Levels:      cfg.Strategy.Levels,
				QtyPerLevel: cfg.Strategy.QtyPerLevel,
			}
			if cfg.Strategy.TickSize != nil {
				tp.TickSize = *cfg.Strategy.TickSize
			}

			s := cfg.Strategy.Side
			if cmd.Flags().Changed("side") {
				s = side
			}
			var err error
			if tp.Side, err = grid.ParseSide(s); err != nil {
				return err
			}
			if cmd.Flags().Changed("levels") {
				tp.Levels = levels
			}
			if cmd.Flags().Changed("qty") {
				tp.QtyPerLevel = qty
			}
			for _, d := range []struct {
				name, val string
				dst       *decimal.Decimal
			}{
				{"open", open, &tp.OpenPrice},
				{"second", second, &tp.SecondPrice},
				{"min-step", minStep, &tp.MinStep},
				{"tick", tick, &tp.TickSize},
			} {
				if err := decimalFlag(cmd, d.name, d.val, d.dst); err != nil {
					return err
				}
			}
			comm := cfg.Execution.Commission
			if err := decimalFlag(cmd, "commission", commission, &comm); err != nil {
				return err
			}

			var l grid.TwoPointLadder
			if tp.OpenPrice.IsZero() || tp.SecondPrice.IsZero() {
				l, err = twoPointFromData(cmd, rc, tp, session, delay)
			} else {
				l, err = grid.BuildTwoPointLadder(tp)
			}
			if err != nil {
				return err
			}
			a := grid.Analyze(l.Levels, comm)

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, struct {
					grid.TwoPointLadder
					Analysis grid.Analysis `json:"analysis"`
				}{l, a})
			}
			fmt.Fprintf(out, "%s ladder from %s, step %s\n", tp.Side, l.Start, l.Step)
			if l.Inverted {
				fmt.Fprintf(out, "warning: the second price moved against %s; the ladder starts at the second price\n", tp.Side)
			}
			fmt.Fprintln(out)
			printLevels(out, l.Levels)
			printAnalysis(out, a)
			return nil
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&side, "side", "", "LONG or SHORT (default from config)")
	fs.StringVar(&open, "open", "", "opening price")
	fs.StringVar(&second, "second", "", "second price")
	fs.IntVarP(&levels, "levels", "n", 0, "number of levels (default from config)")
	fs.Int64VarP(&qty, "qty", "q", 0, "quantity per level (default from config)")
	fs.StringVar(&minStep, "min-step", "", "smallest accepted span (default 0.01)")
	fs.StringVar(&tick, "tick", "", "tick size")
	fs.StringVar(&commission, "commission", "", "commission per fill (default from config)")
	fs.DurationVar(&delay, "delay", 30*time.Minute, "time between the open and the second price when reading data")
	fs.StringVar(&session, "session-open", "", "session open clock (HH:MM) when reading data")
	fs.BoolVar(&asJSON, "json", false, "print JSON")

	fs.StringVarP(&symbol, "symbol", "s", "", "instrument symbol when reading data")
	df.register(cmd)
	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		df.apply(cmd, &rc.cfg.Data)
		if cmd.Flags().Changed("symbol") {
			rc.cfg.Strategy.Symbol = symbol
		}
		return nil
	}
	return cmd
}

func twoPointFromData(cmd *cobra.Command, rc *rootConfig, tp grid.TwoPointConfig, session string, delay time.Duration) (grid.TwoPointLadder, error) {
	ds, err := rc.cfg.DataSource()
	if err != nil {
		return grid.TwoPointLadder{}, err
	}
	req, err := rc.cfg.DataRequest()
	if err != nil {
		return grid.TwoPointLadder{}, err
	}
	p, err := data.Open(ds)
	if err != nil {
		return grid.TwoPointLadder{}, err
	}
	defer p.Close()

	series, err := p.Load(cmd.Context(), req)
	if err != nil {
		return grid.TwoPointLadder{}, err
	}
	return grid.TwoPointFromSession(series, session, delay, tp)
}

func printLevels(w io.Writer, levels []grid.Level) {
	fmt.Fprintf(w, "%-6s %-10s %-10s %-10s %-6s %-13s\n", "Index", "Entry", "Exit", "Guardian", "Qty", "Status")
	for _, lv := range levels {
		g := "-"
		if lv.GuardianPrice.Valid {
			g = lv.GuardianPrice.Decimal.String()
		}
		fmt.Fprintf(w, "%-6d %-10s %-10s %-10s %-6d %-13s\n", lv.Index, lv.EntryPrice, lv.ExitPrice, g, lv.QtyPlanned, lv.Status)
	}
}

func printAnalysis(w io.Writer, a grid.Analysis) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Spacing:          avg %.4f  min %.4f  max %.4f  (uniform: %v)\n",
		a.Spacing.Avg, a.Spacing.Min, a.Spacing.Max, a.Spacing.Uniform)
	fmt.Fprintf(w, "Required Capital: %s\n", a.RequiredCapital.StringFixed(2))
	fmt.Fprintf(w, "Potential Profit: %s\n", a.PotentialProfit.StringFixed(2))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
