package risk

import (
	"errors"
	"time"

	"github.com/devpro-denny/R-25V1/internal/strategy"
)

// ErrLockViolation flags a broken single-trade invariant: an open recorded
// while the lock is already held, or a close recorded with no lock. This is
// a programming fault, never swallowed; the manager also halts admissions
// when it fires.
var ErrLockViolation = errors.New("risk: trade lock invariant violated")

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision               { return Decision{Allowed: true, Reason: "ok"} }
func reject(reason string) Decision { return Decision{Allowed: false, Reason: reason} }

// TradeInfo mirrors the open position for admission decisions. The trade
// engine owns the position itself; the manager keeps only this lock mirror.
type TradeInfo struct {
	TradeID    string
	ContractID string
	Symbol     string
	Direction  strategy.Direction
	Stake      float64
	EntryPrice float64
	TakeProfit float64
	StopLoss   float64
	RiskReward float64
	OpenedAt   time.Time
}

// TradeResult is a settled trade as reported back by the trade engine.
type TradeResult struct {
	TradeInfo
	ExitPrice        float64
	PnL              float64
	SettlementStatus string // "won", "lost", "timeout_assumed_loss"
	ClosedAt         time.Time
}

// Loss reports whether the result counts against the loss streak. Timeout
// settlements count conservatively as losses.
func (r TradeResult) Loss() bool { return r.PnL < 0 || r.SettlementStatus == SettlementTimeout }

// Settlement status values stored with each trade.
const (
	SettlementWon     = "won"
	SettlementLost    = "lost"
	SettlementTimeout = "timeout_assumed_loss"
)

// Manager is the admission-control gate shared by both strategy variants.
type Manager interface {
	CanOpenTrade(symbol string, sig strategy.Signal) Decision
	RecordTradeOpen(info TradeInfo) error
	RecordTradeClosed(res TradeResult) error
	IsTradeActive() bool
	ActiveTradeInfo() (TradeInfo, bool)
}

// DailyStats is a read-only snapshot of the day's counters.
type DailyStats struct {
	Date              string
	Trades            int
	PnL               float64
	Wins              int
	Losses            int
	ConsecutiveLosses int
	LastTradeTime     time.Time
}
