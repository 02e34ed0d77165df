package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rustyeddy/gridtrader/broker/paper"
	"github.com/rustyeddy/gridtrader/config"
	"github.com/rustyeddy/gridtrader/events"
	"github.com/rustyeddy/gridtrader/grid"
	"github.com/rustyeddy/gridtrader/journal"
	"github.com/rustyeddy/gridtrader/ledger"
	"github.com/rustyeddy/gridtrader/live"
	"github.com/rustyeddy/gridtrader/market"
	"github.com/rustyeddy/gridtrader/market/data"
	"github.com/rustyeddy/gridtrader/pkg/id"
	"github.com/spf13/cobra"
)

func newPaperCmd(rc *rootConfig) *cobra.Command {
	var (
		sf      strategyFlags
		df      dataFlags
		jf      journalFlags
		capital string
		pace    time.Duration
		settle  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "paper",
		Short: "Paper trade a grid against a replayed price feed",
		Long: `Paper replays the configured series as a live price feed into the paper
broker. Entry and exit orders are LIMIT orders that fill, partially fill or
expire the way the broker's fill model decides.

Example:
  gridtrader paper --config grid.yaml --pace 250ms`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := rc.cfg
			if err := sf.apply(cmd, &cfg.Strategy); err != nil {
				return err
			}
			df.apply(cmd, &cfg.Data)
			jf.apply(cmd, &cfg.Journal)
			if err := decimalFlag(cmd, "capital", capital, &cfg.Account.InitialCapital); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			ctx, cancel := signalContext(cmd)
			defer cancel()
			return runPaper(ctx, rc, cfg, pace, settle, cmd.OutOrStdout())
		},
	}

	sf.register(cmd)
	df.register(cmd)
	jf.register(cmd)
	cmd.Flags().StringVarP(&capital, "capital", "c", "", "initial capital (default from config)")
	cmd.Flags().DurationVar(&pace, "pace", 200*time.Millisecond, "delay between replayed bars")
	cmd.Flags().DurationVar(&settle, "settle", 0, "time working orders get after the last bar (default poll interval * max attempts)")
	return cmd
}

func runPaper(ctx context.Context, rc *rootConfig, cfg *config.Config, pace, settle time.Duration, out io.Writer) error {
	t, err := cfg.Template()
	if err != nil {
		return err
	}
	req, err := cfg.DataRequest()
	if err != nil {
		return err
	}
	ds, err := cfg.DataSource()
	if err != nil {
		return err
	}
	poll, err := cfg.PollInterval()
	if err != nil {
		return err
	}
	model, err := cfg.FillModel()
	if err != nil {
		return err
	}

	provider, err := data.Open(ds)
	if err != nil {
		return err
	}
	defer provider.Close()
	series, err := provider.Load(ctx, req)
	if err != nil {
		return err
	}
	if len(series) == 0 {
		return &grid.DataError{Index: -1, Reason: "price series is empty"}
	}

	j, err := journal.Open(ctx, cfg.JournalConfig())
	if err != nil {
		return err
	}
	defer j.Close()

	cycle, err := grid.NewCycle(id.New(), t)
	if err != nil {
		return err
	}
	cycle.SingleOpenPosition = !cfg.Strategy.MultiPosition

	brokerCfg := paper.Config{PollInterval: poll, MaxAttempts: cfg.Execution.MaxAttempts}
	b := paper.New(brokerCfg, model, rc.log)
	if settle <= 0 {
		if poll <= 0 {
			poll = paper.DefaultPollInterval
		}
		attempts := brokerCfg.MaxAttempts
		if attempts <= 0 {
			attempts = paper.DefaultMaxAttempts
		}
		settle = poll * time.Duration(attempts+1)
	}

	// The broker outlives the feed so Stop can still cancel working orders.
	brokerCtx, stopBroker := context.WithCancel(context.Background())
	defer stopBroker()
	brokerDone := make(chan error, 1)
	go func() { brokerDone <- b.Run(brokerCtx) }()

	runID := cycle.ID
	led := ledger.New(cfg.Account.InitialCapital)
	runner := &live.Runner{
		Session: b,
		Cycle:   cycle,
		Ledger:  led,
		Sink:    journalSink(j, runID, rc),
		Logger:  rc.log,
	}
	if t.AutoStartTrigger.Valid {
		runner.AutoStartTrigger = t.AutoStartTrigger
	}

	runCtx, stopRun := context.WithCancel(ctx)
	defer stopRun()
	prices := make(chan market.Candle)
	go replay(runCtx, series, pace, settle, prices, stopRun)

	rc.log.Info("paper session started", "cycle", cycle.ID, "symbol", t.Symbol, "bars", len(series))
	if err := runner.Run(runCtx, prices); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	stopCtx, cancelStop := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelStop()
	if err := runner.Stop(stopCtx); err != nil {
		rc.log.Warn("stop paper session", "err", err)
	}
	stopBroker()
	<-brokerDone

	last := series[len(series)-1]
	if err := j.RecordEquity(journal.EquitySnapshot{RunID: runID, Time: last.Time, Capital: led.Capital()}); err != nil {
		return err
	}

	printPaper(out, cycle, led)
	return nil
}

// replay feeds bars at the given pace, then leaves working orders settle
// before it cancels the session.
func replay(ctx context.Context, series market.Series, pace, settle time.Duration, out chan<- market.Candle, done context.CancelFunc) {
	defer done()
	for _, c := range series {
		select {
		case <-ctx.Done():
			return
		case out <- c:
		}
		if pace > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(pace):
			}
		}
	}
	select {
	case <-ctx.Done():
	case <-time.After(settle):
	}
}

// journalSink records the trades of a paper session.
func journalSink(j journal.Journal, runID string, rc *rootConfig) events.Sink {
	return events.SinkFunc(func(e events.Event) {
		te, ok := e.(events.TradeExecuted)
		if !ok {
			return
		}
		if err := j.RecordTrade(journal.TradeFromBroker(runID, te.Trade)); err != nil {
			rc.log.Warn("journal trade", "trade", te.Trade.ID, "err", err)
		}
	})
}

func printPaper(w io.Writer, c *grid.Cycle, led *ledger.Ledger) {
	fmt.Fprintln(w, "==================================================")
	fmt.Fprintln(w, " Paper Session")
	fmt.Fprintln(w, "==================================================")
	fmt.Fprintf(w, "Cycle:         %s (%s)\n", c.ID, c.State)
	fmt.Fprintf(w, "Symbol:        %s %s\n", c.Symbol, c.Side)
	fmt.Fprintf(w, "Triggered:     %d\n", c.Triggered())
	fmt.Fprintf(w, "Completed:     %d\n", c.Completed())
	fmt.Fprintln(w)
	printLevels(w, c.Levels())
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Start Capital: %s\n", led.InitialCapital().StringFixed(2))
	fmt.Fprintf(w, "Capital:       %s\n", led.Capital().StringFixed(2))
	fmt.Fprintf(w, "Equity:        %s\n", led.Equity().StringFixed(2))
	fmt.Fprintf(w, "Realized P/L:  %s\n", led.RealizedPnL().StringFixed(2))
	fmt.Fprintf(w, "Commission:    %s\n", led.Commission().StringFixed(2))
}
