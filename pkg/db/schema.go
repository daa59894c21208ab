package db

import "context"

const schema = `
CREATE TABLE IF NOT EXISTS trades (
	id TEXT PRIMARY KEY,
	contract_id TEXT NOT NULL,
	symbol TEXT NOT NULL,
	direction TEXT NOT NULL,
	strategy TEXT NOT NULL,
	stake REAL NOT NULL,
	entry_price REAL NOT NULL,
	exit_price REAL NOT NULL,
	take_profit REAL NOT NULL,
	stop_loss REAL NOT NULL,
	pnl REAL NOT NULL,
	settlement_status TEXT NOT NULL,
	opened_at TIMESTAMP NOT NULL,
	closed_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol);
CREATE INDEX IF NOT EXISTS idx_trades_closed_at ON trades(closed_at);

CREATE TABLE IF NOT EXISTS risk_metrics (
	date TEXT PRIMARY KEY,
	trades INTEGER NOT NULL DEFAULT 0,
	pnl REAL NOT NULL DEFAULT 0,
	wins INTEGER NOT NULL DEFAULT 0,
	losses INTEGER NOT NULL DEFAULT 0,
	consecutive_losses INTEGER NOT NULL DEFAULT 0
);
`

// Init creates tables if they do not exist.
func (d *Database) Init(ctx context.Context) error {
	_, err := d.DB.ExecContext(ctx, schema)
	return err
}
