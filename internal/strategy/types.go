package strategy

import (
	"context"
	"time"
)

// Direction is a closed three-value signal direction.
type Direction uint8

const (
	None Direction = iota
	Buy
	Sell
)

func (d Direction) String() string {
	switch d {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "NONE"
	}
}

// Signal is a single evaluation outcome for one symbol in one cycle. It is
// immutable once produced and discarded after the cycle consumes it.
type Signal struct {
	Symbol        string
	Direction     Direction
	Score         float64
	EntryPrice    float64
	TakeProfit    float64
	StopLoss      float64
	RiskReward    float64
	MinRiskReward float64
	Reason        string
	BarTime       time.Time // close time of the signal bar, for new-bar gating
}

// Actionable reports whether the signal proposes a trade.
func (s Signal) Actionable() bool { return s.Direction != None }

// Strategy evaluates one symbol into a signal. Implementations must fail
// closed: missing or short data yields a NONE signal, never BUY/SELL.
type Strategy interface {
	Name() string
	Symbols() []string
	Evaluate(ctx context.Context, symbol string) (Signal, error)
}

// none builds a NONE signal with a reason, the common fail-closed return.
func none(symbol, reason string) Signal {
	return Signal{Symbol: symbol, Direction: None, Reason: reason}
}
