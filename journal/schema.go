package journal

// Schema is the SQLite schema. Money is stored as decimal text.
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	created DATETIME NOT NULL,
	template_id TEXT NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	dataset TEXT NOT NULL,
	levels INTEGER NOT NULL,
	start_time DATETIME NOT NULL,
	end_time DATETIME NOT NULL,
	start_capital TEXT NOT NULL,
	end_capital TEXT NOT NULL,
	net_pnl TEXT NOT NULL,
	return_pct REAL NOT NULL,
	trades INTEGER NOT NULL,
	wins INTEGER NOT NULL,
	losses INTEGER NOT NULL,
	win_rate REAL NOT NULL,
	profit_factor REAL NOT NULL,
	sharpe REAL NOT NULL,
	max_dd_pct REAL NOT NULL,
	levels_triggered INTEGER NOT NULL,
	levels_completed INTEGER NOT NULL,
	config BLOB,
	org_path TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS trades (
	run_id TEXT NOT NULL,
	trade_id TEXT NOT NULL,
	order_id TEXT NOT NULL,
	cycle_id TEXT NOT NULL,
	level INTEGER NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	quantity INTEGER NOT NULL,
	price TEXT NOT NULL,
	commission TEXT NOT NULL,
	realized_pnl TEXT,
	executed_at DATETIME NOT NULL,
	PRIMARY KEY (run_id, trade_id)
);

CREATE TABLE IF NOT EXISTS equity (
	run_id TEXT NOT NULL,
	time DATETIME NOT NULL,
	capital TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_run ON trades(run_id, executed_at);
CREATE INDEX IF NOT EXISTS idx_equity_run ON equity(run_id, time);
`

// PostgresSchema is the same layout with NUMERIC money columns.
const PostgresSchema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	created TIMESTAMPTZ NOT NULL,
	template_id TEXT NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	dataset TEXT NOT NULL,
	levels INTEGER NOT NULL,
	start_time TIMESTAMPTZ NOT NULL,
	end_time TIMESTAMPTZ NOT NULL,
	start_capital NUMERIC NOT NULL,
	end_capital NUMERIC NOT NULL,
	net_pnl NUMERIC NOT NULL,
	return_pct DOUBLE PRECISION NOT NULL,
	trades INTEGER NOT NULL,
	wins INTEGER NOT NULL,
	losses INTEGER NOT NULL,
	win_rate DOUBLE PRECISION NOT NULL,
	profit_factor DOUBLE PRECISION NOT NULL,
	sharpe DOUBLE PRECISION NOT NULL,
	max_dd_pct DOUBLE PRECISION NOT NULL,
	levels_triggered INTEGER NOT NULL,
	levels_completed INTEGER NOT NULL,
	config BYTEA,
	org_path TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS trades (
	run_id TEXT NOT NULL,
	trade_id TEXT NOT NULL,
	order_id TEXT NOT NULL,
	cycle_id TEXT NOT NULL,
	level INTEGER NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	quantity BIGINT NOT NULL,
	price NUMERIC NOT NULL,
	commission NUMERIC NOT NULL,
	realized_pnl NUMERIC,
	executed_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (run_id, trade_id)
);

CREATE TABLE IF NOT EXISTS equity (
	run_id TEXT NOT NULL,
	time TIMESTAMPTZ NOT NULL,
	capital NUMERIC NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_run ON trades(run_id, executed_at);
CREATE INDEX IF NOT EXISTS idx_equity_run ON equity(run_id, time);
`
