package backtest

import (
	"fmt"
	"io"
	"time"
)

// PrintResult writes the text report of a run.
func PrintResult(w io.Writer, rep *Report) {
	r := rep.Run

	fmt.Fprintln(w, "==================================================")
	fmt.Fprintln(w, " Grid Backtest Result")
	fmt.Fprintln(w, "==================================================")

	fmt.Fprintf(w, "Run ID:        %s\n", r.RunID)
	fmt.Fprintf(w, "Template:      %s\n", r.TemplateID)
	fmt.Fprintf(w, "Symbol:        %s\n", r.Symbol)
	fmt.Fprintf(w, "Side:          %s\n", r.Side)
	if r.Dataset != "" {
		fmt.Fprintf(w, "Dataset:       %s\n", r.Dataset)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Period")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Start:         %s\n", r.Start.Format(time.RFC3339))
	fmt.Fprintf(w, "End:           %s\n", r.End.Format(time.RFC3339))
	fmt.Fprintf(w, "Bars:          %d\n", rep.Stats.TradingDays)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Levels")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "%-6s %-10s %-10s %-10s %-13s\n", "Index", "Entry", "Exit", "Guardian", "Status")
	for _, lv := range rep.Levels {
		g := "-"
		if lv.GuardianPrice.Valid {
			g = lv.GuardianPrice.Decimal.String()
		}
		fmt.Fprintf(w, "%-6d %-10s %-10s %-10s %-13s\n", lv.Index, lv.EntryPrice, lv.ExitPrice, g, lv.Status)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Trade Statistics")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Trades:        %d\n", r.Trades)
	fmt.Fprintf(w, "Wins:          %d\n", r.Wins)
	fmt.Fprintf(w, "Losses:        %d\n", r.Losses)
	fmt.Fprintf(w, "Win Rate:      %.2f%%\n", r.WinRate)
	fmt.Fprintf(w, "Triggered:     %d\n", r.LevelsTriggered)
	fmt.Fprintf(w, "Completed:     %d\n", r.LevelsCompleted)
	if rep.Stats.AvgTimeInTrade > 0 {
		fmt.Fprintf(w, "Avg In Trade:  %s\n", rep.Stats.AvgTimeInTrade)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Account Performance")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Start Capital: %s\n", r.StartCapital.StringFixed(2))
	fmt.Fprintf(w, "End Capital:   %s\n", r.EndCapital.StringFixed(2))
	fmt.Fprintf(w, "Net P/L:       %s\n", r.NetPnL.StringFixed(2))
	fmt.Fprintf(w, "Return:        %.2f%%\n", r.ReturnPct)
	fmt.Fprintf(w, "Sharpe:        %.2f\n", r.Sharpe)

	if r.ProfitFactor > 0 {
		fmt.Fprintf(w, "Profit Factor: %.2f\n", r.ProfitFactor)
	}
	if r.MaxDDPct > 0 {
		fmt.Fprintf(w, "Max Drawdown:  %.2f%%\n", r.MaxDDPct)
	}
	if r.OrgPath != "" {
		fmt.Fprintf(w, "Org Report:    %s\n", r.OrgPath)
	}

	if len(r.Notes) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Observations")
		fmt.Fprintln(w, "--------------------------------------------------")
		for _, note := range r.Notes {
			fmt.Fprintf(w, "- %s\n", note)
		}
	}

	fmt.Fprintln(w)
}
