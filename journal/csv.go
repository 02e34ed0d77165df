package journal

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// CSVJournal writes trades.csv, equity.csv and runs.csv into a directory.
type CSVJournal struct {
	trades *csv.Writer
	equity *csv.Writer
	runs   *csv.Writer
	files  []*os.File
}

var (
	tradeHeader  = []string{"run_id", "trade_id", "order_id", "cycle_id", "level", "symbol", "side", "quantity", "price", "commission", "realized_pnl", "executed_at"}
	equityHeader = []string{"run_id", "time", "capital"}
	runHeader    = []string{"run_id", "created", "template_id", "symbol", "side", "levels", "start", "end", "start_capital", "end_capital", "net_pnl", "return_pct", "trades", "wins", "losses", "win_rate", "profit_factor", "sharpe", "max_dd_pct"}
)

// NewCSV creates (or truncates) the three files in dir.
func NewCSV(dir string) (*CSVJournal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	j := &CSVJournal{}
	open := func(name string, header []string) (*csv.Writer, error) {
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		j.files = append(j.files, f)
		w := csv.NewWriter(f)
		if err := w.Write(header); err != nil {
			return nil, err
		}
		w.Flush()
		return w, w.Error()
	}

	var err error
	if j.trades, err = open("trades.csv", tradeHeader); err != nil {
		j.closeFiles()
		return nil, err
	}
	if j.equity, err = open("equity.csv", equityHeader); err != nil {
		j.closeFiles()
		return nil, err
	}
	if j.runs, err = open("runs.csv", runHeader); err != nil {
		j.closeFiles()
		return nil, err
	}
	return j, nil
}

func (j *CSVJournal) RecordTrade(t TradeRecord) error {
	pnl := ""
	if t.RealizedPnL.Valid {
		pnl = t.RealizedPnL.Decimal.String()
	}
	return write(j.trades, []string{
		t.RunID,
		t.TradeID,
		t.OrderID,
		t.CycleID,
		strconv.Itoa(t.Level),
		t.Symbol,
		t.Side,
		strconv.FormatInt(t.Quantity, 10),
		t.Price.String(),
		t.Commission.String(),
		pnl,
		t.ExecutedAt.Format(time.RFC3339),
	})
}

func (j *CSVJournal) RecordEquity(e EquitySnapshot) error {
	return write(j.equity, []string{
		e.RunID,
		e.Time.Format(time.RFC3339),
		e.Capital.String(),
	})
}

func (j *CSVJournal) RecordRun(r Run) error {
	return write(j.runs, []string{
		r.RunID,
		r.Created.Format(time.RFC3339),
		r.TemplateID,
		r.Symbol,
		r.Side,
		strconv.Itoa(r.Levels),
		r.Start.Format(time.RFC3339),
		r.End.Format(time.RFC3339),
		r.StartCapital.String(),
		r.EndCapital.String(),
		r.NetPnL.String(),
		f(r.ReturnPct),
		strconv.Itoa(r.Trades),
		strconv.Itoa(r.Wins),
		strconv.Itoa(r.Losses),
		f(r.WinRate),
		f(r.ProfitFactor),
		f(r.Sharpe),
		f(r.MaxDDPct),
	})
}

func (j *CSVJournal) Close() error {
	for _, w := range []*csv.Writer{j.trades, j.equity, j.runs} {
		w.Flush()
		if err := w.Error(); err != nil {
			j.closeFiles()
			return err
		}
	}
	return j.closeFiles()
}

func (j *CSVJournal) closeFiles() error {
	var first error
	for _, f := range j.files {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	j.files = nil
	return first
}

func write(w *csv.Writer, rec []string) error {
	if err := w.Write(rec); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
