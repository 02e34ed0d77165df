package journal

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresJournal stores runs in PostgreSQL. Money columns are NUMERIC and
// travel as text so no precision is lost.
type PostgresJournal struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to dsn and applies PostgresSchema.
func NewPostgres(ctx context.Context, dsn string) (*PostgresJournal, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("journal: connect: %w", err)
	}
	if _, err := pool.Exec(ctx, PostgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("journal: apply schema: %w", err)
	}
	return &PostgresJournal{pool: pool}, nil
}

func (j *PostgresJournal) RecordTrade(t TradeRecord) error {
	var pnl *string
	if t.RealizedPnL.Valid {
		s := t.RealizedPnL.Decimal.String()
		pnl = &s
	}
	_, err := j.pool.Exec(context.Background(),
		`INSERT INTO trades
		 (run_id, trade_id, order_id, cycle_id, level, symbol, side, quantity, price, commission, realized_pnl, executed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::NUMERIC, $10::NUMERIC, $11::NUMERIC, $12)`,
		t.RunID, t.TradeID, t.OrderID, t.CycleID, t.Level, t.Symbol, t.Side, t.Quantity,
		t.Price.String(), t.Commission.String(), pnl, t.ExecutedAt,
	)
	return err
}

func (j *PostgresJournal) RecordEquity(e EquitySnapshot) error {
	_, err := j.pool.Exec(context.Background(),
		`INSERT INTO equity (run_id, time, capital) VALUES ($1, $2, $3::NUMERIC)`,
		e.RunID, e.Time, e.Capital.String(),
	)
	return err
}

func (j *PostgresJournal) RecordRun(r Run) error {
	_, err := j.pool.Exec(context.Background(),
		`INSERT INTO runs
		 (run_id, created, template_id, symbol, side, dataset, levels, start_time, end_time,
		  start_capital, end_capital, net_pnl, return_pct, trades, wins, losses, win_rate,
		  profit_factor, sharpe, max_dd_pct, levels_triggered, levels_completed, config, org_path)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::NUMERIC, $11::NUMERIC, $12::NUMERIC,
		         $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
		 ON CONFLICT (run_id) DO UPDATE SET
		  end_capital = EXCLUDED.end_capital, net_pnl = EXCLUDED.net_pnl,
		  return_pct = EXCLUDED.return_pct, trades = EXCLUDED.trades,
		  wins = EXCLUDED.wins, losses = EXCLUDED.losses, win_rate = EXCLUDED.win_rate,
		  profit_factor = EXCLUDED.profit_factor, sharpe = EXCLUDED.sharpe,
		  max_dd_pct = EXCLUDED.max_dd_pct, levels_triggered = EXCLUDED.levels_triggered,
		  levels_completed = EXCLUDED.levels_completed, org_path = EXCLUDED.org_path`,
		r.RunID, r.Created, r.TemplateID, r.Symbol, r.Side, r.Dataset, r.Levels, r.Start, r.End,
		r.StartCapital.String(), r.EndCapital.String(), r.NetPnL.String(),
		r.ReturnPct, r.Trades, r.Wins, r.Losses, r.WinRate,
		r.ProfitFactor, r.Sharpe, r.MaxDDPct, r.LevelsTriggered, r.LevelsCompleted, r.Config, r.OrgPath,
	)
	return err
}

func (j *PostgresJournal) GetRun(ctx context.Context, runID string) (Run, error) {
	var r Run
	var start, end, net string

	err := j.pool.QueryRow(ctx,
		`SELECT run_id, created, template_id, symbol, side, dataset, levels, start_time, end_time,
		        start_capital::TEXT, end_capital::TEXT, net_pnl::TEXT, return_pct, trades, wins, losses,
		        win_rate, profit_factor, sharpe, max_dd_pct, levels_triggered, levels_completed,
		        config, org_path
		 FROM runs WHERE run_id = $1`, runID).
		Scan(&r.RunID, &r.Created, &r.TemplateID, &r.Symbol, &r.Side, &r.Dataset, &r.Levels,
			&r.Start, &r.End,
			&start, &end, &net, &r.ReturnPct, &r.Trades, &r.Wins, &r.Losses,
			&r.WinRate, &r.ProfitFactor, &r.Sharpe, &r.MaxDDPct, &r.LevelsTriggered, &r.LevelsCompleted,
			&r.Config, &r.OrgPath)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Run{}, fmt.Errorf("run %q: %w", runID, ErrNotFound)
		}
		return Run{}, fmt.Errorf("get run %s: %w", runID, err)
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

func (j *PostgresJournal) ListTradesByRun(ctx context.Context, runID string) ([]TradeRecord, error) {
	rows, err := j.pool.Query(ctx,
		`SELECT run_id, trade_id, order_id, cycle_id, level, symbol, side, quantity,
		        price::TEXT, commission::TEXT, realized_pnl::TEXT, executed_at
		 FROM trades WHERE run_id = $1
		 ORDER BY executed_at ASC, trade_id ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		var rec TradeRecord
		var price, commission string
		var pnl *string
		if err := rows.Scan(&rec.RunID, &rec.TradeID, &rec.OrderID, &rec.CycleID, &rec.Level,
			&rec.Symbol, &rec.Side, &rec.Quantity, &price, &commission, &pnl, &rec.ExecutedAt); err != nil {
			return nil, err
		}
		if rec.Price, err = parseDecimal(price); err != nil {
			return nil, err
		}
		if rec.Commission, err = parseDecimal(commission); err != nil {
			return nil, err
		}
		if pnl != nil {
			d, err := parseDecimal(*pnl)
			if err != nil {
				return nil, err
			}
			rec.RealizedPnL.Decimal, rec.RealizedPnL.Valid = d, true
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (j *PostgresJournal) ListEquityByRun(ctx context.Context, runID string) ([]EquitySnapshot, error) {
	rows, err := j.pool.Query(ctx,
		`SELECT run_id, time, capital::TEXT FROM equity WHERE run_id = $1 ORDER BY time ASC`, runID)
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

func (j *PostgresJournal) Close() error {
	j.pool.Close()
	return nil
}
