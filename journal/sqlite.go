package journal

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

type SQLiteJournal struct {
	db *sql.DB
}

// NewSQLite opens (creating when needed) the database at path and applies
// Schema. ":memory:" works for tests.
func NewSQLite(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// an in-memory database lives and dies with its connection
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: apply schema: %w", err)
	}
	return &SQLiteJournal{db: db}, nil
}

func (j *SQLiteJournal) RecordTrade(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(run_id, trade_id, order_id, cycle_id, level, symbol, side, quantity, price, commission, realized_pnl, executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.RunID, t.TradeID, t.OrderID, t.CycleID, t.Level, t.Symbol, t.Side,
		t.Quantity, t.Price.String(), t.Commission.String(), nullString(t.RealizedPnL), t.ExecutedAt.UTC(),
	)
	return err
}

func (j *SQLiteJournal) RecordEquity(e EquitySnapshot) error {
	_, err := j.db.Exec(`
		INSERT INTO equity (run_id, time, capital)
		VALUES (?, ?, ?)`,
		e.RunID, e.Time.UTC(), e.Capital.String(),
	)
	return err
}

// RecordRun inserts r or replaces an earlier row with the same id.
func (j *SQLiteJournal) RecordRun(r Run) error {
	_, err := j.db.Exec(`
		INSERT OR REPLACE INTO runs
		(run_id, created, template_id, symbol, side, dataset, levels, start_time, end_time,
		 start_capital, end_capital, net_pnl, return_pct, trades, wins, losses, win_rate,
		 profit_factor, sharpe, max_dd_pct, levels_triggered, levels_completed, config, org_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Created.UTC(), r.TemplateID, r.Symbol, r.Side, r.Dataset, r.Levels,
		r.Start.UTC(), r.End.UTC(),
		r.StartCapital.String(), r.EndCapital.String(), r.NetPnL.String(), r.ReturnPct,
		r.Trades, r.Wins, r.Losses, r.WinRate,
		r.ProfitFactor, r.Sharpe, r.MaxDDPct, r.LevelsTriggered, r.LevelsCompleted, r.Config, r.OrgPath,
	)
	return err
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

func nullString(d decimal.NullDecimal) sql.NullString {
	if !d.Valid {
		return sql.NullString{}
	}
	return sql.NullString{String: d.Decimal.String(), Valid: true}
}

func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("journal: bad decimal %q: %w", s, err)
	}
	return d, nil
}

func parseNullDecimal(s sql.NullString) (decimal.NullDecimal, error) {
	if !s.Valid {
		return decimal.NullDecimal{}, nil
	}
	d, err := parseDecimal(s.String)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}
