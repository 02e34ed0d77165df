package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetRun returns the summary row of runID.
func (j *SQLiteJournal) GetRun(ctx context.Context, runID string) (Run, error) {
	var r Run
	var start, end, net string

	row := j.db.QueryRowContext(ctx, `
		SELECT run_id, created, template_id, symbol, side, dataset, levels, start_time, end_time,
		       start_capital, end_capital, net_pnl, return_pct, trades, wins, losses, win_rate,
		       profit_factor, sharpe, max_dd_pct, levels_triggered, levels_completed, config, org_path
		FROM runs
		WHERE run_id = ?`, runID)

	err := row.Scan(
		&r.RunID, &r.Created, &r.TemplateID, &r.Symbol, &r.Side, &r.Dataset, &r.Levels,
		&r.Start, &r.End,
		&start, &end, &net, &r.ReturnPct, &r.Trades, &r.Wins, &r.Losses, &r.WinRate,
		&r.ProfitFactor, &r.Sharpe, &r.MaxDDPct, &r.LevelsTriggered, &r.LevelsCompleted, &r.Config, &r.OrgPath,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, fmt.Errorf("run %q: %w", runID, ErrNotFound)
		}
		return Run{}, err
	}

	if r.StartCapital, err = parseDecimal(start); err != nil {
		return Run{}, err
	}
	if r.EndCapital, err = parseDecimal(end); err != nil {
		return Run{}, err
	}
	if r.NetPnL, err = parseDecimal(net); err != nil {
		return Run{}, err
	}
	return r, nil
}

// ListTradesByRun returns the trades of runID in the order they were
// recorded.
func (j *SQLiteJournal) ListTradesByRun(ctx context.Context, runID string) ([]TradeRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT run_id, trade_id, order_id, cycle_id, level, symbol, side, quantity,
		       price, commission, realized_pnl, executed_at
		FROM trades
		WHERE run_id = ?
		ORDER BY rowid ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		var rec TradeRecord
		var price, commission string
		var pnl sql.NullString
		if err := rows.Scan(
			&rec.RunID, &rec.TradeID, &rec.OrderID, &rec.CycleID, &rec.Level, &rec.Symbol, &rec.Side, &rec.Quantity,
			&price, &commission, &pnl, &rec.ExecutedAt,
		); err != nil {
			return nil, err
		}
		if rec.Price, err = parseDecimal(price); err != nil {
			return nil, err
		}
		if rec.Commission, err = parseDecimal(commission); err != nil {
			return nil, err
		}
		if rec.RealizedPnL, err = parseNullDecimal(pnl); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListEquityByRun returns the capital curve of runID.
func (j *SQLiteJournal) ListEquityByRun(ctx context.Context, runID string) ([]EquitySnapshot, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT run_id, time, capital
		FROM equity
		WHERE run_id = ?
		ORDER BY rowid ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EquitySnapshot
	for rows.Next() {
		var e EquitySnapshot
		var capital string
		if err := rows.Scan(&e.RunID, &e.Time, &capital); err != nil {
			return nil, err
		}
		if e.Capital, err = parseDecimal(capital); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
