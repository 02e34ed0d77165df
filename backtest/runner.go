// Package backtest loads a price series, runs a grid template over it and
// records the outcome.
package backtest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/rustyeddy/gridtrader/grid"
	"github.com/rustyeddy/gridtrader/journal"
	"github.com/rustyeddy/gridtrader/market"
	"github.com/rustyeddy/gridtrader/market/data"
	"github.com/rustyeddy/gridtrader/metrics"
	"github.com/rustyeddy/gridtrader/pkg/id"
	"github.com/rustyeddy/gridtrader/sim"
)

// Runner drives one backtest: provider -> engine -> journal.
type Runner struct {
	Provider data.Provider
	Engine   *sim.Engine
	// Journal receives trades, the equity curve and the run row. Nil
	// records nothing.
	Journal journal.Journal
	Logger  *slog.Logger

	// Dataset labels the data source in the run row.
	Dataset string
	// OrgDir receives <run id>.org when set.
	OrgDir string
}

// Report is a finished run: the engine result plus the summary row that was
// journaled.
type Report struct {
	*sim.Result
	Run  journal.Run
	Gaps market.GapStats
}

type outcome struct {
	res *sim.Result
	err error
}

// Run executes the backtest. The engine runs on its own goroutine so ctx can
// abandon a long run; the engine itself is never interrupted halfway through
// a bar.
func (r *Runner) Run(ctx context.Context, req data.Request, t grid.Template) (*Report, error) {
	if r.Provider == nil {
		return nil, fmt.Errorf("backtest: Provider is required")
	}
	if r.Engine == nil {
		return nil, fmt.Errorf("backtest: Engine is required")
	}
	log := r.Logger
	if log == nil {
		log = slog.Default()
	}
	j := r.Journal
	if j == nil {
		j = journal.Nop{}
	}
	if req.Symbol == "" {
		req.Symbol = t.Symbol
	}

	started := time.Now()
	series, err := r.Provider.Load(ctx, req)
	if err != nil {
		metrics.RunsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("backtest: load %s: %w", req.Symbol, err)
	}
	gaps := market.SummarizeGaps(series, req.Interval.Step())
	log.Debug("series loaded", "symbol", req.Symbol, "bars", len(series), "gaps", gaps.Gaps)
	if gaps.Suspicious > 0 {
		log.Warn("series has suspicious gaps", "symbol", req.Symbol, "count", gaps.Suspicious, "longest", gaps.Longest)
	}

	done := make(chan outcome, 1)
	go func() {
		res, err := r.Engine.Run(t, series)
		done <- outcome{res, err}
	}()

	var res *sim.Result
	select {
	case <-ctx.Done():
		metrics.RunsTotal.WithLabelValues("error").Inc()
		return nil, ctx.Err()
	case o := <-done:
		if o.err != nil {
			metrics.RunsTotal.WithLabelValues("error").Inc()
			return nil, o.err
		}
		res = o.res
	}

	metrics.RunsTotal.WithLabelValues("ok").Inc()
	metrics.RunDuration.Observe(time.Since(started).Seconds())
	metrics.EndingCapital.Set(res.EndingCapital.InexactFloat64())
	metrics.LevelsCompleted.Add(float64(res.Stats.LevelsCompleted))
	for _, tr := range res.Trades {
		metrics.TradesTotal.WithLabelValues(string(tr.Side)).Inc()
	}

	rep := &Report{Result: res, Run: Summarize(id.New(), r.Dataset, t, res), Gaps: gaps}
	if gaps.Suspicious > 0 {
		rep.Run.Notes = append(rep.Run.Notes,
			fmt.Sprintf("%d suspicious gap(s) in the series, longest %d bar(s)", gaps.Suspicious, gaps.Longest))
	}
	if r.OrgDir != "" {
		rep.Run.OrgPath = filepath.Join(r.OrgDir, rep.Run.RunID+".org")
	}

	if err := record(j, rep); err != nil {
		return rep, fmt.Errorf("backtest: journal: %w", err)
	}
	if rep.Run.OrgPath != "" {
		if err := os.MkdirAll(r.OrgDir, 0o755); err != nil {
			return rep, err
		}
		if err := rep.Run.WriteOrg(""); err != nil {
			return rep, err
		}
	}

	log.Info("backtest finished",
		"run", rep.Run.RunID,
		"symbol", res.Symbol,
		"bars", len(series),
		"trades", res.Stats.TotalTrades,
		"ending_capital", res.EndingCapital.StringFixed(2),
		"return_pct", res.Stats.TotalReturnPct.StringFixed(2),
		"took", time.Since(started),
	)
	return rep, nil
}

func record(j journal.Journal, rep *Report) error {
	for _, tr := range rep.Trades {
		if err := j.RecordTrade(journal.TradeFromBroker(rep.Run.RunID, tr)); err != nil {
			return err
		}
	}
	for _, p := range rep.Equity {
		if err := j.RecordEquity(journal.EquitySnapshot{RunID: rep.Run.RunID, Time: p.Time, Capital: p.Capital}); err != nil {
			return err
		}
	}
	return j.RecordRun(rep.Run)
}

// Summarize builds the journal row of a result.
func Summarize(runID, dataset string, t grid.Template, res *sim.Result) journal.Run {
	st := res.Stats
	cfg, _ := json.Marshal(t)

	run := journal.Run{
		RunID:           runID,
		Created:         time.Now().UTC(),
		TemplateID:      t.ID,
		Symbol:          res.Symbol,
		Side:            string(res.Side),
		Dataset:         dataset,
		Levels:          t.Levels,
		Start:           res.Start,
		End:             res.End,
		StartCapital:    res.StartingCapital,
		EndCapital:      res.EndingCapital,
		NetPnL:          res.EndingCapital.Sub(res.StartingCapital),
		ReturnPct:       st.TotalReturnPct.InexactFloat64(),
		Trades:          st.TotalTrades,
		Wins:            st.WinningTrades,
		Losses:          st.LosingTrades,
		WinRate:         st.WinRate,
		ProfitFactor:    st.ProfitFactor,
		Sharpe:          st.Sharpe,
		MaxDDPct:        st.MaxDrawdownPct.InexactFloat64(),
		LevelsTriggered: st.LevelsTriggered,
		LevelsCompleted: st.LevelsCompleted,
		Config:          cfg,
	}

	if st.LevelsTriggered == 0 {
		run.Notes = append(run.Notes, "no level was triggered")
	}
	if open := st.LevelsTriggered - st.LevelsCompleted; open > 0 {
		run.Notes = append(run.Notes, fmt.Sprintf("%d triggered level(s) still open at the end", open))
	}
	if !res.EndingEquity.Equal(res.EndingCapital) {
		run.Notes = append(run.Notes, fmt.Sprintf("ending equity %s includes the open position", res.EndingEquity.StringFixed(2)))
	}
	if len(res.Cycles) > 1 {
		run.Notes = append(run.Notes, fmt.Sprintf("%d cycles (auto restart)", len(res.Cycles)))
	}
	return run
}
