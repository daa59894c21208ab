package db

import "time"

// Trade is one settled contract.
type Trade struct {
	ID               string
	ContractID       string
	Symbol           string
	Direction        string
	Strategy         string
	Stake            float64
	EntryPrice       float64
	ExitPrice        float64
	TakeProfit       float64
	StopLoss         float64
	PnL              float64
	SettlementStatus string // "won", "lost", "timeout_assumed_loss"
	OpenedAt         time.Time
	ClosedAt         time.Time
}

// DailyMetrics is the date-keyed risk counter row. One row per calendar day.
type DailyMetrics struct {
	Date              string // YYYY-MM-DD
	Trades            int
	PnL               float64
	Wins              int
	Losses            int
	ConsecutiveLosses int
}
