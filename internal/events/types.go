package events

import "time"

// Event enumerates high-level topics inside the bot core.
type Event string

const (
	EventSignalDecision Event = "signal_decision"
	EventLockAcquired   Event = "lock.acquired"
	EventLockReleased   Event = "lock.released"
	EventTradeOpened    Event = "trade.opened"
	EventTradeClosed    Event = "trade.closed"
	EventRiskAlert      Event = "risk_alert"
	EventCycleDone      Event = "cycle.done"
)

// SignalDecision reports the outcome of one symbol evaluation within a cycle.
type SignalDecision struct {
	Symbol    string    `json:"symbol"`
	Direction string    `json:"direction"`
	Score     float64   `json:"score"`
	Admitted  bool      `json:"admitted"`
	Reason    string    `json:"reason"`
	At        time.Time `json:"at"`
}

// LockTransition describes the single-trade lock being taken or released.
type LockTransition struct {
	Symbol     string    `json:"symbol"`
	ContractID string    `json:"contract_id"`
	Status     string    `json:"status,omitempty"`
	PnL        float64   `json:"pnl,omitempty"`
	At         time.Time `json:"at"`
}
