package db

import (
	"context"
	"database/sql"
)

// InsertTrade stores a settled contract.
func (d *Database) InsertTrade(ctx context.Context, t Trade) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO trades (
			id, contract_id, symbol, direction, strategy, stake,
			entry_price, exit_price, take_profit, stop_loss, pnl,
			settlement_status, opened_at, closed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.ContractID, t.Symbol, t.Direction, t.Strategy, t.Stake,
		t.EntryPrice, t.ExitPrice, t.TakeProfit, t.StopLoss, t.PnL,
		t.SettlementStatus, t.OpenedAt, t.ClosedAt)
	return err
}

// ListRecentTrades returns the most recently closed trades, newest first.
func (d *Database) ListRecentTrades(ctx context.Context, limit int) ([]Trade, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.DB.QueryContext(ctx, `
		SELECT id, contract_id, symbol, direction, strategy, stake,
		       entry_price, exit_price, take_profit, stop_loss, pnl,
		       settlement_status, opened_at, closed_at
		FROM trades ORDER BY closed_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Trade
	for rows.Next() {
		var t Trade
		if err := rows.Scan(&t.ID, &t.ContractID, &t.Symbol, &t.Direction,
			&t.Strategy, &t.Stake, &t.EntryPrice, &t.ExitPrice, &t.TakeProfit,
			&t.StopLoss, &t.PnL, &t.SettlementStatus, &t.OpenedAt, &t.ClosedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpsertDailyMetrics writes the counters for one calendar day.
func (d *Database) UpsertDailyMetrics(ctx context.Context, m DailyMetrics) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO risk_metrics (date, trades, pnl, wins, losses, consecutive_losses)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			trades = excluded.trades,
			pnl = excluded.pnl,
			wins = excluded.wins,
			losses = excluded.losses,
			consecutive_losses = excluded.consecutive_losses
	`, m.Date, m.Trades, m.PnL, m.Wins, m.Losses, m.ConsecutiveLosses)
	return err
}

// GetDailyMetrics loads the counters for one calendar day. Returns a zero
// row (not an error) when the day has no entry yet.
func (d *Database) GetDailyMetrics(ctx context.Context, date string) (DailyMetrics, error) {
	m := DailyMetrics{Date: date}
	err := d.DB.QueryRowContext(ctx, `
		SELECT trades, pnl, wins, losses, consecutive_losses
		FROM risk_metrics WHERE date = ?
	`, date).Scan(&m.Trades, &m.PnL, &m.Wins, &m.Losses, &m.ConsecutiveLosses)
	if err == sql.ErrNoRows {
		return m, nil
	}
	return m, err
}
